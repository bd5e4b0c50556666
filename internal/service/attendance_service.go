package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/school-portal-api/internal/dto"
	"github.com/noah-isme/school-portal-api/internal/models"
	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
)

// AttendanceService marks days on a student's attendance aggregate.
type AttendanceService struct {
	roster    RosterStore
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAttendanceService constructs the attendance service.
func NewAttendanceService(roster RosterStore, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{roster: roster, audit: audit, validator: validate, logger: logger}
}

// Mark records one day. Re-marking a date replaces the earlier status.
func (s *AttendanceService) Mark(ctx context.Context, actor *models.JWTClaims, studentID string, req dto.MarkAttendanceRequest) (*dto.AttendanceResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Invalid(err, "invalid attendance payload")
	}
	if !req.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "status must be PRESENT, ABSENT or LATE")
	}
	students, err := s.roster.FetchRoster(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrRosterUnavailable.Code, appErrors.ErrRosterUnavailable.Status, appErrors.ErrRosterUnavailable.Message)
	}
	idx := findStudent(students, studentID)
	if idx < 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}

	updated := make([]models.Student, len(students))
	copy(updated, students)
	updated[idx].Attendance = students[idx].Attendance.Mark(req.Date, req.Status)
	if err := s.roster.SaveRoster(ctx, updated); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrRosterUnavailable.Code, appErrors.ErrRosterUnavailable.Status, "failed to save attendance")
	}
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionAttendanceMark, "student", studentID, nil, req)

	att := updated[idx].Attendance
	return &dto.AttendanceResponse{
		StudentID:  studentID,
		Present:    att.Present,
		Absent:     att.Absent,
		Late:       att.Late,
		Total:      att.Total,
		Percentage: att.Percentage(),
	}, nil
}
