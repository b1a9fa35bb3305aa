package bed

import (
	"context"

	"github.com/hdu-care/hdu-service/internal/patient"
)

// ServiceInterface defines the contract for bed business logic operations
type ServiceInterface interface {
	List(ctx context.Context, status string) ([]Bed, error)
	Get(ctx context.Context, id int64) (*Bed, error)
	Assign(ctx context.Context, actorID string, id int64, req patient.AdmitRequest) (*AssignResult, error)
	Deassign(ctx context.Context, actorID string, id int64) (*DeassignResult, error)
}

// MetricsRecorder counts bed operations and the admissions they open.
type MetricsRecorder interface {
	RecordBedOperation(ctx context.Context, operation string, success bool)
	RecordAdmission(ctx context.Context, urgent bool)
}
