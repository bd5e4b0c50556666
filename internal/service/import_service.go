package service

import (
	"context"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/school-portal-api/internal/dto"
	"github.com/noah-isme/school-portal-api/internal/models"
	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
	"github.com/noah-isme/school-portal-api/pkg/export"
)

const importIDHeader = "student id"

type gradebookStager interface {
	Grid(ctx context.Context, actor *models.JWTClaims, classLabel, term string) (*dto.GradebookGrid, error)
	StageEdits(ctx context.Context, actor *models.JWTClaims, classLabel, term string, req dto.StageEditsRequest) (*dto.SessionResponse, error)
}

// ImportService stages marks from uploaded spreadsheets.
type ImportService struct {
	gradebook gradebookStager
	audit     auditLogger
	logger    *zap.Logger
}

// NewImportService constructs the import service.
func NewImportService(gradebook gradebookStager, audit auditLogger, logger *zap.Logger) *ImportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImportService{gradebook: gradebook, audit: audit, logger: logger}
}

// StageFromXLSX reads the first sheet of r. The header row is "Student ID" followed by
// subject names; every numeric cell becomes a pending edit. Non-numeric cells, unknown
// subjects and students outside the class are skipped and counted.
func (s *ImportService) StageFromXLSX(ctx context.Context, actor *models.JWTClaims, classLabel, term string, r io.Reader) (*dto.ImportResult, error) {
	rows, err := export.ReadFirstSheet(r)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unreadable spreadsheet")
	}
	if len(rows) == 0 || len(rows[0]) == 0 || strings.ToLower(strings.TrimSpace(rows[0][0])) != importIDHeader {
		return nil, appErrors.Clone(appErrors.ErrValidation, "first column header must be Student ID")
	}

	grid, err := s.gradebook.Grid(ctx, actor, classLabel, term)
	if err != nil {
		return nil, err
	}
	inClass := make(map[string]bool, len(grid.Rows))
	for _, row := range grid.Rows {
		inClass[row.StudentID] = true
	}
	known := make(map[string]bool, len(grid.Subjects))
	for _, subject := range grid.Subjects {
		known[subject] = true
	}

	header := rows[0]
	result := &dto.ImportResult{PendingEdits: grid.PendingEdits}
	edits := map[string]map[string]models.LenientFloat{}
	for _, row := range rows[1:] {
		if len(row) == 0 {
			continue
		}
		studentID := strings.TrimSpace(row[0])
		if studentID == "" {
			continue
		}
		if !inClass[studentID] {
			result.UnknownIDs = append(result.UnknownIDs, studentID)
			continue
		}
		for col := 1; col < len(row) && col < len(header); col++ {
			cell := strings.TrimSpace(row[col])
			if cell == "" {
				continue
			}
			subject := strings.TrimSpace(header[col])
			value, ok := models.ParseNumeric(cell)
			if !known[subject] || !ok {
				result.Skipped++
				continue
			}
			if edits[studentID] == nil {
				edits[studentID] = map[string]models.LenientFloat{}
			}
			edits[studentID][subject] = models.LenientFloat(value)
			result.Staged++
		}
	}
	if result.Skipped > 0 || len(result.UnknownIDs) > 0 {
		s.logger.Warn("marks import skipped cells",
			zap.String("class", grid.ClassLabel),
			zap.String("term", grid.Term),
			zap.Int("skipped", result.Skipped),
			zap.Strings("unknown_ids", result.UnknownIDs),
		)
	}
	if len(edits) == 0 {
		return result, nil
	}

	session, err := s.gradebook.StageEdits(ctx, actor, grid.ClassLabel, grid.Term, dto.StageEditsRequest{Edits: edits})
	if err != nil {
		return nil, err
	}
	result.PendingEdits = session.PendingEdits
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionGradebookImport, "gradebook", grid.ClassLabel+"/"+grid.Term, nil, result)
	return result, nil
}
