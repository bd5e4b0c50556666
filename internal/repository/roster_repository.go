package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/school-portal-api/internal/models"
)

const studentColumns = `id, name, grade, admissions, attendance, fee_history, results, previous_results, created_at, updated_at`

// RosterRepository stores the student roster. The whole roster is read and written at once.
type RosterRepository struct {
	db *sqlx.DB
}

// NewRosterRepository constructs a RosterRepository.
func NewRosterRepository(db *sqlx.DB) *RosterRepository {
	return &RosterRepository{db: db}
}

// FetchRoster returns every student in admission order.
func (r *RosterRepository) FetchRoster(ctx context.Context) ([]models.Student, error) {
	query := fmt.Sprintf(`SELECT %s FROM students ORDER BY created_at ASC, id ASC`, studentColumns)
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query); err != nil {
		return nil, fmt.Errorf("fetch roster: %w", err)
	}
	return students, nil
}

// SaveRoster upserts every student by ID in a single transaction.
func (r *RosterRepository) SaveRoster(ctx context.Context, students []models.Student) error {
	if len(students) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin roster tx: %w", err)
	}
	query := fmt.Sprintf(`INSERT INTO students (%s)
VALUES (:id, :name, :grade, :admissions, :attendance, :fee_history, :results, :previous_results, :created_at, :updated_at)
ON CONFLICT (id)
DO UPDATE SET name = EXCLUDED.name, grade = EXCLUDED.grade, admissions = EXCLUDED.admissions,
              attendance = EXCLUDED.attendance, fee_history = EXCLUDED.fee_history, results = EXCLUDED.results,
              previous_results = EXCLUDED.previous_results, updated_at = EXCLUDED.updated_at`, studentColumns)
	now := time.Now().UTC()
	for i := range students {
		row := students[i]
		if row.CreatedAt.IsZero() {
			row.CreatedAt = now
		}
		row.UpdatedAt = now
		if _, err := tx.NamedExecContext(ctx, query, row); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("save student %s: %w", row.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit roster tx: %w", err)
	}
	return nil
}

// FindByID returns a single student.
func (r *RosterRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	query := fmt.Sprintf(`SELECT %s FROM students WHERE id = $1`, studentColumns)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find student: %w", err)
	}
	return &student, nil
}

// List returns a page of students matching filter with the total count.
func (r *RosterRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	filter = filter.Normalized()
	var conditions []string
	var args []interface{}

	if filter.Grade != "" {
		conditions = append(conditions, fmt.Sprintf("grade = $%d", len(args)+1))
		args = append(args, filter.Grade)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(name) LIKE $%d OR LOWER(id) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"name":       "name",
		"id":         "id",
		"grade":      "grade",
		"created_at": "created_at",
	}
	column, ok := allowedSorts[filter.SortBy]
	if !ok {
		column = "created_at"
	}
	query := fmt.Sprintf(`SELECT %s FROM students%s ORDER BY %s %s, id ASC LIMIT %d OFFSET %d`, studentColumns, where, column, filter.SortOrder, filter.PageSize, filter.Offset())
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM students"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}
