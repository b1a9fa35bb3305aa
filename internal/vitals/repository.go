package vitals

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hdu-care/hdu-service/internal/apperr"
	"github.com/hdu-care/hdu-service/internal/db"
)

var (
	ErrConfigNotFound  = apperr.NotFound("vital sign configuration not found")
	ErrDuplicateConfig = apperr.Conflict("a vital sign with this name already exists")
)

// RepositoryInterface defines the contract for vital sign configuration access
type RepositoryInterface interface {
	List(ctx context.Context, q db.DBTX, activeOnly bool) ([]Config, error)
	Get(ctx context.Context, q db.DBTX, id string) (*Config, error)
	Create(ctx context.Context, q db.DBTX, c *Config) error
	Update(ctx context.Context, q db.DBTX, c *Config) error
	Delete(ctx context.Context, q db.DBTX, id string) error
	InsertIfMissing(ctx context.Context, q db.DBTX, c *Config) (bool, error)
}

type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

var _ RepositoryInterface = (*Repository)(nil)

const configColumns = `id, name, label, unit, data_type, normal_range_min, normal_range_max,
	is_active, display_order, created_at, updated_at`

func (r *Repository) List(ctx context.Context, q db.DBTX, activeOnly bool) ([]Config, error) {
	query := `SELECT ` + configColumns + ` FROM vital_signs_config`
	if activeOnly {
		query += ` WHERE is_active = TRUE`
	}
	query += ` ORDER BY display_order, name`

	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query vital sign configs: %w", err)
	}
	defer rows.Close()

	configs := []Config{}
	for rows.Next() {
		c, err := scanConfig(rows)
		if err != nil {
			return nil, err
		}
		configs = append(configs, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating vital sign configs: %w", err)
	}
	return configs, nil
}

func (r *Repository) Get(ctx context.Context, q db.DBTX, id string) (*Config, error) {
	row := q.QueryRowContext(ctx, `SELECT `+configColumns+` FROM vital_signs_config WHERE id = $1`, id)
	c, err := scanConfig(row)
	if db.IsNotFound(err) {
		return nil, ErrConfigNotFound
	}
	return c, err
}

func (r *Repository) Create(ctx context.Context, q db.DBTX, c *Config) error {
	err := q.QueryRowContext(ctx, `
		INSERT INTO vital_signs_config
		(id, name, label, unit, data_type, normal_range_min, normal_range_max, is_active, display_order)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`, c.ID, c.Name, c.Label, c.Unit, c.DataType, c.NormalRangeMin, c.NormalRangeMax, c.IsActive, c.DisplayOrder,
	).Scan(&c.CreatedAt)
	if db.IsUniqueViolation(err) {
		return ErrDuplicateConfig
	}
	if err != nil {
		return fmt.Errorf("failed to insert vital sign config: %w", err)
	}
	return nil
}

// InsertIfMissing inserts c unless a config with the same name exists.
func (r *Repository) InsertIfMissing(ctx context.Context, q db.DBTX, c *Config) (bool, error) {
	res, err := q.ExecContext(ctx, `
		INSERT INTO vital_signs_config
		(id, name, label, unit, data_type, normal_range_min, normal_range_max, is_active, display_order)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (name) DO NOTHING
	`, c.ID, c.Name, c.Label, c.Unit, c.DataType, c.NormalRangeMin, c.NormalRangeMax, c.IsActive, c.DisplayOrder)
	if err != nil {
		return false, fmt.Errorf("failed to seed vital sign config %s: %w", c.Name, err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *Repository) Update(ctx context.Context, q db.DBTX, c *Config) error {
	err := q.QueryRowContext(ctx, `
		UPDATE vital_signs_config
		SET label = $2, unit = $3, data_type = $4, normal_range_min = $5, normal_range_max = $6,
		    is_active = $7, display_order = $8, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`, c.ID, c.Label, c.Unit, c.DataType, c.NormalRangeMin, c.NormalRangeMax, c.IsActive, c.DisplayOrder,
	).Scan(&c.UpdatedAt)
	if db.IsNotFound(err) {
		return ErrConfigNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update vital sign config: %w", err)
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, q db.DBTX, id string) error {
	res, err := q.ExecContext(ctx, `DELETE FROM vital_signs_config WHERE id = $1`, id)
	if db.IsInvalidTextRepresentation(err) {
		return ErrConfigNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete vital sign config: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConfigNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanConfig(s scanner) (*Config, error) {
	var c Config
	var unit sql.NullString
	var rangeMin, rangeMax sql.NullFloat64
	var updatedAt sql.NullTime

	err := s.Scan(&c.ID, &c.Name, &c.Label, &unit, &c.DataType, &rangeMin, &rangeMax,
		&c.IsActive, &c.DisplayOrder, &c.CreatedAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan vital sign config: %w", err)
	}
	if unit.Valid {
		c.Unit = &unit.String
	}
	if rangeMin.Valid {
		c.NormalRangeMin = &rangeMin.Float64
	}
	if rangeMax.Valid {
		c.NormalRangeMax = &rangeMax.Float64
	}
	if updatedAt.Valid {
		c.UpdatedAt = &updatedAt.Time
	}
	return &c, nil
}
