package service

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/school-portal-api/internal/dto"
	"github.com/noah-isme/school-portal-api/internal/models"
	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
)

var feeMonthPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// FeeServiceConfig supplies the amount billed when a month is first paid.
type FeeServiceConfig struct {
	DefaultMonthly float64
	ClassMonthly   map[string]float64
}

func (c FeeServiceConfig) monthlyFor(class string) float64 {
	if amount, ok := c.ClassMonthly[class]; ok && amount > 0 {
		return amount
	}
	return c.DefaultMonthly
}

// FeeService maintains the month by month fee ledger.
type FeeService struct {
	roster    RosterStore
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
	cfg       FeeServiceConfig
	now       func() time.Time
}

// NewFeeService constructs the fee service.
func NewFeeService(roster RosterStore, audit auditLogger, validate *validator.Validate, logger *zap.Logger, cfg FeeServiceConfig) *FeeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeeService{roster: roster, audit: audit, validator: validate, logger: logger, cfg: cfg, now: time.Now}
}

// Ledger returns the student's records in month order with totals.
func (s *FeeService) Ledger(ctx context.Context, studentID string) (*dto.FeeLedgerResponse, error) {
	students, err := s.roster.FetchRoster(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrRosterUnavailable.Code, appErrors.ErrRosterUnavailable.Status, appErrors.ErrRosterUnavailable.Message)
	}
	idx := findStudent(students, studentID)
	if idx < 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	return ledgerResponse(studentID, students[idx].FeeHistory), nil
}

// Pay adds amount to month, creating the month with the class fee when it is missing.
func (s *FeeService) Pay(ctx context.Context, actor *models.JWTClaims, studentID, month string, req dto.PayFeeRequest) (*dto.FeeLedgerResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Invalid(err, "invalid payment payload")
	}
	if !feeMonthPattern.MatchString(month) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "month must be formatted YYYY-MM")
	}
	if math.IsNaN(req.Amount) || math.IsInf(req.Amount, 0) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "amount must be a finite number")
	}
	students, err := s.roster.FetchRoster(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrRosterUnavailable.Code, appErrors.ErrRosterUnavailable.Status, appErrors.ErrRosterUnavailable.Message)
	}
	idx := findStudent(students, studentID)
	if idx < 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}

	student := students[idx]
	ledger := make(models.FeeLedger, len(student.FeeHistory), len(student.FeeHistory)+1)
	copy(ledger, student.FeeHistory)
	pos := -1
	for i := range ledger {
		if ledger[i].Month == month {
			pos = i
			break
		}
	}
	if pos < 0 {
		amount := s.cfg.monthlyFor(student.Grade)
		if amount <= 0 {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("no monthly fee configured for class %s", student.Grade))
		}
		ledger = append(ledger, models.FeeRecord{Month: month, Amount: amount, Status: models.FeeUnpaid})
		pos = len(ledger) - 1
	}
	record := ledger[pos]
	if record.Outstanding() <= 0 {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("fee for %s is already paid", month))
	}
	paidAt := s.now().UTC()
	record.Paid += req.Amount
	record.Status = models.StatusFor(record.Amount, record.Paid)
	record.PaidAt = &paidAt
	ledger[pos] = record

	updated := make([]models.Student, len(students))
	copy(updated, students)
	updated[idx].FeeHistory = ledger.Sorted()
	if err := s.roster.SaveRoster(ctx, updated); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrRosterUnavailable.Code, appErrors.ErrRosterUnavailable.Status, "failed to save fee payment")
	}
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionFeePayment, "student", studentID, nil, record)
	s.logger.Info("fee payment recorded", zap.String("student_id", studentID), zap.String("month", month), zap.Float64("amount", req.Amount))
	return ledgerResponse(studentID, updated[idx].FeeHistory), nil
}

func ledgerResponse(studentID string, history models.FeeLedger) *dto.FeeLedgerResponse {
	sorted := history.Sorted()
	resp := &dto.FeeLedgerResponse{StudentID: studentID, Records: []models.FeeRecord(sorted)}
	for _, r := range sorted {
		resp.TotalDue += r.Amount
		resp.TotalPaid += r.Paid
		resp.Outstanding += r.Outstanding()
	}
	return resp
}
