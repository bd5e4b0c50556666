package gradebook

import (
	"time"

	"github.com/noah-isme/school-portal-api/internal/models"
)

// PendingEdits maps student ID -> subject -> raw obtained value.
type PendingEdits map[string]map[string]float64

// GradingSession holds unsaved edits for one class and term.
type GradingSession struct {
	ClassLabel string       `json:"class_label"`
	Term       string       `json:"term"`
	Pending    PendingEdits `json:"pending"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// NewSession starts an empty session for class and term.
func NewSession(classLabel, term string) *GradingSession {
	return &GradingSession{ClassLabel: classLabel, Term: term, Pending: PendingEdits{}}
}

// Stage records value for the student and subject, replacing an earlier edit.
func (s *GradingSession) Stage(studentID, subject string, value float64) {
	if s.Pending == nil {
		s.Pending = PendingEdits{}
	}
	if s.Pending[studentID] == nil {
		s.Pending[studentID] = map[string]float64{}
	}
	s.Pending[studentID][subject] = value
	s.UpdatedAt = time.Now().UTC()
}

// StageRaw stages a user-entered cell. Non-numeric input counts as zero.
func (s *GradingSession) StageRaw(studentID, subject, raw string) {
	value, _ := models.ParseNumeric(raw)
	s.Stage(studentID, subject, value)
}

// Edit returns the pending value for the student and subject.
func (s *GradingSession) Edit(studentID, subject string) (float64, bool) {
	if s == nil {
		return 0, false
	}
	v, ok := s.Pending[studentID][subject]
	return v, ok
}

// Len counts staged cells.
func (s *GradingSession) Len() int {
	if s == nil {
		return 0
	}
	n := 0
	for _, subjects := range s.Pending {
		n += len(subjects)
	}
	return n
}

// IsEmpty reports whether there is nothing to save.
func (s *GradingSession) IsEmpty() bool {
	return s.Len() == 0
}

// Clear drops every staged edit. Call it only after the roster was persisted.
func (s *GradingSession) Clear() {
	s.Pending = PendingEdits{}
	s.UpdatedAt = time.Now().UTC()
}
