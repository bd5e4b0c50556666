package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/school-portal-api/internal/dto"
	"github.com/noah-isme/school-portal-api/internal/gradebook"
	"github.com/noah-isme/school-portal-api/internal/models"
	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
)

type settingsRepository interface {
	ListByKeys(ctx context.Context, keys []string) ([]models.Configuration, error)
	Swap(ctx context.Context, cfg *models.Configuration) (*string, error)
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

var gradingSettingDescriptions = map[string]string{
	models.ConfigKeyGradingWeights:  "Maximum marks per subject, optionally per term",
	models.ConfigKeyGradingSubjects: "Subjects taught per class label",
}

// SettingsService stores the grading weights and subjects tables.
type SettingsService struct {
	repo      settingsRepository
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSettingsService constructs a SettingsService.
func NewSettingsService(repo settingsRepository, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *SettingsService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettingsService{repo: repo, audit: audit, validator: validate, logger: logger}
}

// Grading returns both tables. Missing entries yield empty tables.
func (s *SettingsService) Grading(ctx context.Context) (*dto.GradingSettingsResponse, error) {
	rows, err := s.repo.ListByKeys(ctx, []string{models.ConfigKeyGradingWeights, models.ConfigKeyGradingSubjects})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grading settings")
	}
	resp := &dto.GradingSettingsResponse{Subjects: gradebook.SubjectsTable{}}
	for _, row := range rows {
		switch row.Key {
		case models.ConfigKeyGradingWeights:
			if err := row.DecodeJSON(&resp.Weights); err != nil {
				s.logger.Warn("stored weights table unreadable", zap.Error(err))
				resp.Weights = gradebook.WeightsTable{}
			}
		case models.ConfigKeyGradingSubjects:
			if err := row.DecodeJSON(&resp.Subjects); err != nil {
				s.logger.Warn("stored subjects table unreadable", zap.Error(err))
				resp.Subjects = gradebook.SubjectsTable{}
			}
		}
		if resp.UpdatedAt == nil || row.UpdatedAt.After(*resp.UpdatedAt) {
			updated := row.UpdatedAt
			resp.UpdatedAt = &updated
		}
	}
	return resp, nil
}

// GradingTables is the read path used by the gradebook.
func (s *SettingsService) GradingTables(ctx context.Context) (gradebook.WeightsTable, gradebook.SubjectsTable, error) {
	resp, err := s.Grading(ctx)
	if err != nil {
		return gradebook.WeightsTable{}, nil, err
	}
	return resp.Weights, resp.Subjects, nil
}

// UpdateWeights replaces the weights table. Non-positive totals are rejected.
func (s *SettingsService) UpdateWeights(ctx context.Context, weights gradebook.WeightsTable, actor *models.JWTClaims) (*dto.GradingSettingsResponse, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := weights.Validate(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidWeights.Code, appErrors.ErrInvalidWeights.Status, err.Error())
	}
	if err := s.store(ctx, models.ConfigKeyGradingWeights, weights, actor); err != nil {
		return nil, err
	}
	return s.Grading(ctx)
}

// UpdateSubjects replaces the subjects table. Subject names are trimmed and de-duplicated.
func (s *SettingsService) UpdateSubjects(ctx context.Context, req dto.UpdateSubjectsRequest, actor *models.JWTClaims) (*dto.GradingSettingsResponse, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Invalid(err, "invalid subjects payload")
	}
	table, err := normalizeSubjects(req.Subjects)
	if err != nil {
		return nil, err
	}
	if err := s.store(ctx, models.ConfigKeyGradingSubjects, table, actor); err != nil {
		return nil, err
	}
	return s.Grading(ctx)
}

func (s *SettingsService) store(ctx context.Context, key string, value interface{}, actor *models.JWTClaims) error {
	cfg, err := models.NewJSONConfiguration(key, value, gradingSettingDescriptions[key], userIDPtr(actor))
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode grading settings")
	}
	prev, err := s.repo.Swap(ctx, cfg)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update grading settings")
	}
	s.logger.Info("grading settings updated", zap.String("key", key), zap.String("user_id", actor.UserID))
	old := ""
	if prev != nil {
		old = *prev
	}
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionSettingsUpdate, "configuration", key, json.RawMessage(orNull(old)), json.RawMessage(cfg.Value))
	return nil
}

func normalizeSubjects(in gradebook.SubjectsTable) (gradebook.SubjectsTable, error) {
	out := make(gradebook.SubjectsTable, len(in))
	classes := make([]string, 0, len(in))
	for class := range in {
		classes = append(classes, class)
	}
	sort.Strings(classes)
	for _, class := range classes {
		label := strings.TrimSpace(class)
		if label == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "class label must not be empty")
		}
		seen := map[string]bool{}
		var subjects []string
		for _, subject := range in[class] {
			subject = strings.TrimSpace(subject)
			if subject == "" || seen[subject] {
				continue
			}
			seen[subject] = true
			subjects = append(subjects, subject)
		}
		if len(subjects) == 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("class %s has no subjects", label))
		}
		out[label] = subjects
	}
	return out, nil
}

// recordAudit writes a best-effort audit entry; failures are logged and ignored.
func recordAudit(ctx context.Context, audit auditLogger, logger *zap.Logger, actor *models.JWTClaims, action, resource, resourceID string, oldValues, newValues interface{}) {
	if audit == nil {
		return
	}
	entry := &models.AuditLog{
		UserID:     userIDPtr(actor),
		Action:     action,
		Resource:   resource,
		ResourceID: strPtr(resourceID),
		IPAddress:  "system",
		UserAgent:  resource + "-service",
		CreatedAt:  time.Now().UTC(),
	}
	if oldValues != nil {
		entry.OldValues, _ = json.Marshal(oldValues)
	}
	if newValues != nil {
		entry.NewValues, _ = json.Marshal(newValues)
	}
	if err := audit.CreateAuditLog(ctx, entry); err != nil {
		logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}

func userIDPtr(actor *models.JWTClaims) *string {
	if actor == nil || actor.UserID == "" {
		return nil
	}
	return &actor.UserID
}

func strPtr(value string) *string {
	if value == "" {
		return nil
	}
	result := value
	return &result
}

func orNull(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return "null"
	}
	return raw
}
