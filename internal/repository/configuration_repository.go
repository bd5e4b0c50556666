package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/school-portal-api/internal/models"
)

const configurationColumns = `key, value, type, description, updated_by, updated_at`

// ConfigurationRepository persists key/value settings such as the grading weights and subjects tables.
type ConfigurationRepository struct {
	db *sqlx.DB
}

// NewConfigurationRepository constructs the repository.
func NewConfigurationRepository(db *sqlx.DB) *ConfigurationRepository {
	return &ConfigurationRepository{db: db}
}

// ListByKeys returns the stored settings among keys, ordered by key. Unknown keys are skipped.
func (r *ConfigurationRepository) ListByKeys(ctx context.Context, keys []string) ([]models.Configuration, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT %s FROM configurations WHERE key = ANY($1) ORDER BY key ASC`, configurationColumns)
	var configs []models.Configuration
	if err := r.db.SelectContext(ctx, &configs, query, pq.Array(keys)); err != nil {
		return nil, fmt.Errorf("list configurations: %w", err)
	}
	return configs, nil
}

// Swap writes cfg and returns the value it replaced (nil for a new key). The previous row is
// locked for the duration of the write so concurrent editors see a consistent before-image.
func (r *ConfigurationRepository) Swap(ctx context.Context, cfg *models.Configuration) (previous *string, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin configuration swap: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var old string
	switch err = tx.GetContext(ctx, &old, `SELECT value FROM configurations WHERE key = $1 FOR UPDATE`, cfg.Key); {
	case err == nil:
		previous = &old
	case errors.Is(err, sql.ErrNoRows):
		err = nil
	default:
		return nil, fmt.Errorf("lock configuration %s: %w", cfg.Key, err)
	}

	const upsert = `INSERT INTO configurations (key, value, type, description, updated_by, updated_at)
VALUES (:key, :value, :type, :description, :updated_by, :updated_at)
ON CONFLICT (key)
DO UPDATE SET value = EXCLUDED.value, type = EXCLUDED.type, description = EXCLUDED.description,
              updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at`
	cfg.UpdatedAt = time.Now().UTC()
	if _, err = tx.NamedExecContext(ctx, upsert, cfg); err != nil {
		return nil, fmt.Errorf("upsert configuration %s: %w", cfg.Key, err)
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit configuration %s: %w", cfg.Key, err)
	}
	return previous, nil
}
