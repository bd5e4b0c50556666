package dto

import (
	"time"

	"github.com/noah-isme/school-portal-api/internal/gradebook"
)

// GradingSettingsResponse exposes the weights and subjects tables.
type GradingSettingsResponse struct {
	Weights   gradebook.WeightsTable  `json:"weights"`
	Subjects  gradebook.SubjectsTable `json:"subjects"`
	UpdatedAt *time.Time              `json:"updated_at,omitempty"`
}

// UpdateSubjectsRequest replaces the subjects table.
type UpdateSubjectsRequest struct {
	Subjects gradebook.SubjectsTable `json:"subjects" validate:"required,min=1"`
}
