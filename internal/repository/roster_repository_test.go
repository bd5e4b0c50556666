package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-portal-api/internal/models"
)

var studentRowColumns = []string{"id", "name", "grade", "admissions", "attendance", "fee_history", "results", "previous_results", "created_at", "updated_at"}

func TestRosterRepositoryFetchRoster(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRosterRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(studentRowColumns).
		AddRow("STU-2024-0001", "Asha", "10A",
			`[{"class":"10A","guardian":"Ravi","contact":"555","admitted_at":"2024-01-10T00:00:00Z"}]`,
			`{"present":2,"absent":0,"late":1,"total":3}`,
			`[{"month":"2024-01","amount":500,"paid":500,"status":"PAID"}]`,
			`[{"subject":"Math","term":"Term1","total":50,"obtained":45,"percentage":90,"grade":"A+","remarks":""},{"subject":"History","term":"Term1","percentage":81}]`,
			`[{"term":"Term0","results":[]}]`,
			now, now).
		AddRow("STU-2024-0002", "Ben", "10A", nil, nil, nil, nil, nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM students ORDER BY created_at ASC, id ASC")).WillReturnRows(rows)

	students, err := repo.FetchRoster(context.Background())
	require.NoError(t, err)
	require.Len(t, students, 2)

	asha := students[0]
	profile, ok := asha.Profile()
	require.True(t, ok)
	assert.Equal(t, "Ravi", profile.Guardian)
	assert.Equal(t, 100, asha.Attendance.Percentage())
	assert.Equal(t, models.FeePaid, asha.FeeHistory[0].Status)
	require.Len(t, asha.Results, 2)
	assert.Equal(t, models.ScoredPoints{Obtained: 45, Total: 50}, asha.Results[0].Score)
	assert.Equal(t, models.LegacyPercent{}, asha.Results[1].Score)
	require.Len(t, asha.PreviousResults, 1)

	assert.Empty(t, students[1].Results)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRosterRepositorySaveRosterCommits(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRosterRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO students").
		WithArgs("S1", "Asha", "10A", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO students").
		WithArgs("S2", "Ben", "10B", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.SaveRoster(context.Background(), []models.Student{
		{ID: "S1", Name: "Asha", Grade: "10A"},
		{ID: "S2", Name: "Ben", Grade: "10B"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRosterRepositorySaveRosterRollsBack(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRosterRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO students").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO students").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	students := []models.Student{{ID: "S1", Grade: "10A"}, {ID: "S2", Grade: "10A"}}
	err := repo.SaveRoster(context.Background(), students)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "S2")
	assert.True(t, students[0].UpdatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRosterRepositorySaveEmptyRosterIsNoop(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()

	require.NoError(t, NewRosterRepository(db).SaveRoster(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRosterRepositoryList(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRosterRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(studentRowColumns).AddRow("S1", "Asha", "10A", "[]", "{}", "[]", "[]", "[]", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM students WHERE grade = $1 AND (LOWER(name) LIKE $2 OR LOWER(id) LIKE $2) ORDER BY name ASC, id ASC LIMIT 10 OFFSET 10")).
		WithArgs("10A", "%asha%").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM students WHERE grade = $1")).
		WithArgs("10A", "%asha%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	students, total, err := repo.List(context.Background(), models.StudentFilter{Grade: "10A", Search: "Asha", Page: 2, PageSize: 10, SortBy: "name"})
	require.NoError(t, err)
	assert.Len(t, students, 1)
	assert.Equal(t, 11, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}
