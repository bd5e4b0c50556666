package dto

import (
	"github.com/noah-isme/school-portal-api/internal/gradebook"
	"github.com/noah-isme/school-portal-api/internal/models"
)

// GradebookCell is one student × subject entry of the editable grid.
type GradebookCell struct {
	Subject    string  `json:"subject"`
	Obtained   float64 `json:"obtained"`
	Total      float64 `json:"total"`
	Percentage int     `json:"percentage"`
	Grade      string  `json:"grade"`
	Pending    bool    `json:"pending"`
	Legacy     bool    `json:"legacy,omitempty"`
}

// GradebookRow groups the cells of one student.
type GradebookRow struct {
	StudentID string          `json:"student_id"`
	Name      string          `json:"name"`
	Cells     []GradebookCell `json:"cells"`
}

// GradebookGrid is returned by GET /gradebook/:class/:term.
type GradebookGrid struct {
	ClassLabel   string         `json:"class"`
	Term         string         `json:"term"`
	Subjects     []string       `json:"subjects"`
	Rows         []GradebookRow `json:"rows"`
	PendingEdits int            `json:"pending_edits"`
}

// StageEditsRequest carries cell values keyed by student ID then subject.
// Values may be numbers or numeric strings; anything else stages zero.
type StageEditsRequest struct {
	Edits map[string]map[string]models.LenientFloat `json:"edits" validate:"required,min=1"`
}

// SessionResponse describes the pending session after staging or discarding.
type SessionResponse struct {
	ClassLabel   string                 `json:"class"`
	Term         string                 `json:"term"`
	PendingEdits int                    `json:"pending_edits"`
	Pending      gradebook.PendingEdits `json:"pending"`
}

// SaveResult reports the outcome of POST /gradebook/:class/:term/save.
type SaveResult struct {
	Saved    bool   `json:"saved"`
	Code     string `json:"code,omitempty"`
	Message  string `json:"message"`
	Edits    int    `json:"edits"`
	Students int    `json:"students"`
}

// ArchiveResult reports how many students received a snapshot.
type ArchiveResult struct {
	ClassLabel string `json:"class"`
	Term       string `json:"term"`
	Archived   int    `json:"archived"`
}

// ClassSummaryResponse bundles the class statistics for one term.
type ClassSummaryResponse struct {
	Summary      gradebook.Summary         `json:"summary"`
	Rankings     []gradebook.RankedStudent `json:"rankings"`
	Distribution map[string]int            `json:"distribution"`
}

// ReportCardSubject is one line of a report card.
type ReportCardSubject struct {
	Subject    string  `json:"subject"`
	Obtained   float64 `json:"obtained"`
	Total      float64 `json:"total"`
	Percentage int     `json:"percentage"`
	Grade      string  `json:"grade"`
	Remarks    string  `json:"remarks,omitempty"`
}

// ReportCard is returned by GET /students/:id/report-card.
type ReportCard struct {
	StudentID  string              `json:"student_id"`
	Name       string              `json:"name"`
	ClassLabel string              `json:"class"`
	Term       string              `json:"term"`
	Archived   bool                `json:"archived"`
	Subjects   []ReportCardSubject `json:"subjects"`
	Overall    int                 `json:"overall"`
	Grade      string              `json:"grade"`
	Passed     bool                `json:"passed"`
	Position   int                 `json:"position,omitempty"`
	ClassSize  int                 `json:"class_size"`
	Attendance int                 `json:"attendance_percentage"`
}

// ImportResult summarises an xlsx marks import.
type ImportResult struct {
	Staged       int      `json:"staged"`
	Skipped      int      `json:"skipped"`
	UnknownIDs   []string `json:"unknown_ids,omitempty"`
	PendingEdits int      `json:"pending_edits"`
}
