package users

import (
	"context"
	"time"

	"github.com/hdu-care/hdu-service/internal/db"
)

// RepositoryInterface defines the contract for user data access
type RepositoryInterface interface {
	Create(ctx context.Context, q db.DBTX, u *User) error
	// InsertIfMissing creates u unless the username or email is taken.
	InsertIfMissing(ctx context.Context, q db.DBTX, u *User) (bool, error)
	GetByID(ctx context.Context, q db.DBTX, id string) (*User, error)
	// FindByLogin matches identifier against username or email.
	FindByLogin(ctx context.Context, q db.DBTX, identifier string) (*User, error)
	List(ctx context.Context, q db.DBTX, role, status string) ([]User, error)
	// UpdateStatus moves a user from one status to another and reports
	// whether the user was still in the from status.
	UpdateStatus(ctx context.Context, q db.DBTX, id, from, to, reviewerID string, at time.Time) (bool, error)
}

// Ensure Repository implements RepositoryInterface
var _ RepositoryInterface = (*Repository)(nil)
