package bed

import (
	"context"

	"github.com/hdu-care/hdu-service/internal/apperr"
	"github.com/hdu-care/hdu-service/internal/db"
)

var (
	ErrBedNotFound  = apperr.NotFound("bed not found")
	ErrBedOccupied  = apperr.Conflict("bed is already occupied")
	ErrBedAvailable = apperr.Conflict("bed is not occupied")
)

// RepositoryInterface defines the contract for bed data access.
type RepositoryInterface interface {
	List(ctx context.Context, q db.DBTX, status string) ([]Bed, error)
	Get(ctx context.Context, q db.DBTX, id int64) (*Bed, error)
	Seed(ctx context.Context, q db.DBTX, count int) (int, error)

	// AssignCAS sets the patient only if the bed is still available and
	// reports whether it did.
	AssignCAS(ctx context.Context, q db.DBTX, id int64, patientID string) (bool, error)
	// ReleaseCAS clears the bed only if it still holds patientID.
	ReleaseCAS(ctx context.Context, q db.DBTX, id int64, patientID string) (bool, error)
}

var _ RepositoryInterface = (*Repository)(nil)
