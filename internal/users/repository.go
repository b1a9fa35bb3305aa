package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hdu-care/hdu-service/internal/db"
)

type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

const userColumns = `id, username, email, password_hash, full_name, role, status,
	reviewed_by, reviewed_at, created_at, updated_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row scanner) (*User, error) {
	var (
		u          User
		reviewedBy sql.NullString
		reviewedAt sql.NullTime
		updatedAt  sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.FullName, &u.Role, &u.Status,
		&reviewedBy, &reviewedAt, &u.CreatedAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if reviewedBy.Valid {
		u.ReviewedBy = &reviewedBy.String
	}
	if reviewedAt.Valid {
		u.ReviewedAt = &reviewedAt.Time
	}
	if updatedAt.Valid {
		u.UpdatedAt = &updatedAt.Time
	}
	return &u, nil
}

func (r *Repository) Create(ctx context.Context, q db.DBTX, u *User) error {
	err := q.QueryRowContext(ctx, `
		INSERT INTO users (id, username, email, password_hash, full_name, role, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, u.ID, u.Username, u.Email, u.PasswordHash, u.FullName, u.Role, u.Status).Scan(&u.CreatedAt)
	if db.IsUniqueViolation(err) {
		return ErrUserExists
	}
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (r *Repository) InsertIfMissing(ctx context.Context, q db.DBTX, u *User) (bool, error) {
	res, err := q.ExecContext(ctx, `
		INSERT INTO users (id, username, email, password_hash, full_name, role, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT DO NOTHING
	`, u.ID, u.Username, u.Email, u.PasswordHash, u.FullName, u.Role, u.Status)
	if err != nil {
		return false, fmt.Errorf("failed to seed user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *Repository) GetByID(ctx context.Context, q db.DBTX, id string) (*User, error) {
	u, err := scanUser(q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if db.IsNotFound(err) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

func (r *Repository) FindByLogin(ctx context.Context, q db.DBTX, identifier string) (*User, error) {
	u, err := scanUser(q.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE username = $1 OR LOWER(email) = LOWER($1)
		LIMIT 1
	`, strings.TrimSpace(identifier)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return u, nil
}

func (r *Repository) List(ctx context.Context, q db.DBTX, role, status string) ([]User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE 1=1`
	args := []interface{}{}
	if role != "" {
		args = append(args, role)
		query += fmt.Sprintf(" AND role = $%d", len(args))
	}
	if status != "" {
		args = append(args, status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += ` ORDER BY full_name, created_at`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	out := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

func (r *Repository) UpdateStatus(ctx context.Context, q db.DBTX, id, from, to, reviewerID string, at time.Time) (bool, error) {
	res, err := q.ExecContext(ctx, `
		UPDATE users
		SET status = $3, reviewed_by = $4, reviewed_at = $5, updated_at = $5
		WHERE id = $1 AND status = $2
	`, id, from, to, nullIfEmpty(reviewerID), at)
	if err != nil {
		return false, fmt.Errorf("failed to update user status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
