package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/school-portal-api/internal/dto"
	"github.com/noah-isme/school-portal-api/internal/gradebook"
	"github.com/noah-isme/school-portal-api/internal/models"
	"github.com/noah-isme/school-portal-api/internal/repository"
	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
)

type studentAccountRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
}

// AdmissionServiceConfig controls generated student IDs.
type AdmissionServiceConfig struct {
	IDPrefix string
}

// AdmissionService turns intake forms into roster students.
type AdmissionService struct {
	roster    RosterStore
	accounts  studentAccountRepository
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
	prefix    string
	now       func() time.Time
}

// NewAdmissionService constructs the admission service.
func NewAdmissionService(roster RosterStore, accounts studentAccountRepository, audit auditLogger, validate *validator.Validate, logger *zap.Logger, cfg AdmissionServiceConfig) *AdmissionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	prefix := strings.ToUpper(strings.TrimSpace(cfg.IDPrefix))
	if prefix == "" {
		prefix = "STU"
	}
	return &AdmissionService{
		roster:    roster,
		accounts:  accounts,
		audit:     audit,
		validator: validate,
		logger:    logger,
		prefix:    prefix,
		now:       time.Now,
	}
}

// Admit validates the form, appends a new student and saves the roster. When an email is
// given a STUDENT login linked to the new record is created as well.
func (s *AdmissionService) Admit(ctx context.Context, actor *models.JWTClaims, req dto.AdmissionRequest) (*dto.AdmissionResponse, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Class = strings.TrimSpace(req.Class)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Invalid(err, "invalid admission payload")
	}
	if req.Email != "" && req.Password == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "password is required when email is provided")
	}
	if req.Email != "" {
		if err := s.ensureEmailFree(ctx, req.Email); err != nil {
			return nil, err
		}
	}

	students, err := s.roster.FetchRoster(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrRosterUnavailable.Code, appErrors.ErrRosterUnavailable.Status, appErrors.ErrRosterUnavailable.Message)
	}

	now := s.now().UTC()
	admission := models.Admission{
		Class:              req.Class,
		Guardian:           strings.TrimSpace(req.Guardian),
		Contact:            strings.TrimSpace(req.Contact),
		Address:            strings.TrimSpace(req.Address),
		DateOfBirth:        req.DateOfBirth,
		PreviousSchool:     strings.TrimSpace(req.PreviousSchool),
		PreviousPercentage: req.PreviousPercentage,
		AdmittedAt:         now,
	}
	if req.PreviousPercentage != nil {
		admission.PreviousGrade = gradebook.ClassifyLegacy(*req.PreviousPercentage)
	}
	student := models.Student{
		ID:              NextStudentID(students, s.prefix, now.Year()),
		Name:            req.Name,
		Grade:           req.Class,
		Admissions:      models.AdmissionList{admission},
		Attendance:      models.AttendanceSummary{},
		FeeHistory:      models.FeeLedger{},
		Results:         models.ResultList{},
		PreviousResults: models.TermSnapshotList{},
	}

	updated := make([]models.Student, len(students), len(students)+1)
	copy(updated, students)
	updated = append(updated, student)
	if err := s.roster.SaveRoster(ctx, updated); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrRosterUnavailable.Code, appErrors.ErrRosterUnavailable.Status, "failed to save admission")
	}
	s.logger.Info("student admitted", zap.String("student_id", student.ID), zap.String("class", student.Grade))
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionAdmission, "student", student.ID, nil, admission)

	resp := &dto.AdmissionResponse{Student: student}
	if req.Email == "" {
		return resp, nil
	}
	userID, err := s.createAccount(ctx, student, req.Email, req.Password)
	if err != nil {
		return nil, err
	}
	resp.UserID = userID
	return resp, nil
}

func (s *AdmissionService) ensureEmailFree(ctx context.Context, email string) error {
	if s.accounts == nil {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "student accounts are not available")
	}
	existing, err := s.accounts.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	}
	if existing != nil {
		return appErrors.Clone(appErrors.ErrConflict, "email already in use")
	}
	return nil
}

func (s *AdmissionService) createAccount(ctx context.Context, student models.Student, email, password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	studentID := student.ID
	user := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		FullName:     student.Name,
		Role:         models.RoleStudent,
		StudentID:    &studentID,
		Active:       true,
	}
	if err := s.accounts.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return "", appErrors.Clone(appErrors.ErrConflict, "email already in use")
		}
		s.logger.Error("student admitted without account", zap.String("student_id", student.ID), zap.Error(err))
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "student admitted but account creation failed")
	}
	return user.ID, nil
}

// NextStudentID returns PREFIX-YEAR-SEQ where SEQ is one past the highest sequence already
// used for that prefix and year.
func NextStudentID(students []models.Student, prefix string, year int) string {
	stem := fmt.Sprintf("%s-%d-", prefix, year)
	highest := 0
	for _, st := range students {
		if !strings.HasPrefix(st.ID, stem) {
			continue
		}
		seq, err := strconv.Atoi(strings.TrimPrefix(st.ID, stem))
		if err != nil || seq <= highest {
			continue
		}
		highest = seq
	}
	return fmt.Sprintf("%s%04d", stem, highest+1)
}
