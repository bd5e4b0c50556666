package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-portal-api/internal/dto"
	"github.com/noah-isme/school-portal-api/internal/models"
	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
)

type accountRepoStub struct {
	existing map[string]*models.User
	created  []*models.User
}

func (s *accountRepoStub) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if u, ok := s.existing[email]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (s *accountRepoStub) Create(ctx context.Context, user *models.User) error {
	s.created = append(s.created, user)
	return nil
}

func TestNextStudentID(t *testing.T) {
	students := []models.Student{
		{ID: "STU-2024-0007"},
		{ID: "STU-2024-0012"},
		{ID: "STU-2023-0099"},
		{ID: "ADM-2024-0500"},
		{ID: "STU-2024-abc"},
	}
	assert.Equal(t, "STU-2024-0013", NextStudentID(students, "STU", 2024))
	assert.Equal(t, "STU-2025-0001", NextStudentID(students, "STU", 2025))
	assert.Equal(t, "STU-2024-0001", NextStudentID(nil, "STU", 2024))
}

func TestAdmitAppendsStudentWithLegacyGrade(t *testing.T) {
	store := &fakeRosterStore{students: []models.Student{{ID: "STU-2024-0003", Grade: "10A"}}}
	accounts := &accountRepoStub{}
	audit := &auditRecorder{}
	svc := NewAdmissionService(store, accounts, audit, nil, nil, AdmissionServiceConfig{IDPrefix: "stu"})
	svc.now = func() time.Time { return time.Date(2024, 7, 1, 8, 0, 0, 0, time.UTC) }

	pct := 87
	resp, err := svc.Admit(context.Background(), &models.JWTClaims{UserID: "admin"}, dto.AdmissionRequest{
		Name:               "  Dina  ",
		Class:              "10A",
		Guardian:           "Rani",
		Contact:            "0812",
		PreviousPercentage: &pct,
		Email:              "Dina@School.test",
		Password:           "secret1",
	})
	require.NoError(t, err)
	assert.Equal(t, "STU-2024-0004", resp.Student.ID)
	assert.Equal(t, "Dina", resp.Student.Name)
	require.Len(t, store.saved, 2)
	profile, ok := store.saved[1].Profile()
	require.True(t, ok)
	assert.Equal(t, "A-", profile.PreviousGrade)

	require.Len(t, accounts.created, 1)
	user := accounts.created[0]
	assert.Equal(t, models.RoleStudent, user.Role)
	assert.Equal(t, "dina@school.test", user.Email)
	require.NotNil(t, user.StudentID)
	assert.Equal(t, "STU-2024-0004", *user.StudentID)
	assert.Equal(t, user.ID, resp.UserID)
	require.Len(t, audit.entries, 1)
	assert.Equal(t, models.AuditActionAdmission, audit.entries[0].Action)
}

func TestAdmitRejectsTakenEmailBeforeSaving(t *testing.T) {
	store := &fakeRosterStore{}
	accounts := &accountRepoStub{existing: map[string]*models.User{"x@school.test": {ID: "u1"}}}
	svc := NewAdmissionService(store, accounts, nil, nil, nil, AdmissionServiceConfig{})

	_, err := svc.Admit(context.Background(), nil, dto.AdmissionRequest{
		Name: "Xena", Class: "9B", Guardian: "G", Contact: "1", Email: "x@school.test", Password: "secret1",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Zero(t, store.saveCalls)
}

func TestAdmitValidatesPayload(t *testing.T) {
	svc := NewAdmissionService(&fakeRosterStore{}, nil, nil, nil, nil, AdmissionServiceConfig{})
	pct := 140
	_, err := svc.Admit(context.Background(), nil, dto.AdmissionRequest{Name: "Al", Class: "9B", Guardian: "G", Contact: "1", PreviousPercentage: &pct})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
