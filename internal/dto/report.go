package dto

import (
	"time"

	"github.com/noah-isme/school-portal-api/internal/models"
)

// ReportRequest captures POST /reports/generate payload. Term is required for result
// sheets and report cards; Month narrows fee reports to one YYYY-MM ledger month.
type ReportRequest struct {
	Type   models.ReportType   `json:"type" binding:"required,oneof=class_results report_cards attendance fees"`
	Class  string              `json:"class" binding:"required,max=32"`
	Term   string              `json:"term" binding:"max=32"`
	Format models.ReportFormat `json:"format" binding:"required,oneof=csv pdf xlsx"`
	Month  string              `json:"month,omitempty" binding:"omitempty,datetime=2006-01"`
}

// ReportJobResponse is returned after enqueueing a report.
type ReportJobResponse struct {
	ID       string              `json:"id"`
	Status   models.ReportStatus `json:"status"`
	Progress int                 `json:"progress"`
}

// ReportStatusResponse exposes job progress; ResultURL is set once the export is ready.
type ReportStatusResponse struct {
	ID         string              `json:"id"`
	Type       models.ReportType   `json:"type"`
	Class      string              `json:"class"`
	Status     models.ReportStatus `json:"status"`
	Progress   int                 `json:"progress"`
	CreatedAt  time.Time           `json:"createdAt"`
	FinishedAt *time.Time          `json:"finishedAt,omitempty"`
	ResultURL  *string             `json:"resultUrl,omitempty"`
	Error      *string             `json:"error,omitempty"`
}
