package patient

import (
	"context"

	"github.com/hdu-care/hdu-service/internal/audit"
	"github.com/hdu-care/hdu-service/internal/db"
	"github.com/hdu-care/hdu-service/internal/pagination"
)

// ServiceInterface defines the contract for patient business logic operations
type ServiceInterface interface {
	List(ctx context.Context, filter ListFilter, params pagination.Params) (*PatientListResponse, error)
	Get(ctx context.Context, id string) (*Detail, error)
	Update(ctx context.Context, actorID, id string, req UpdateRequest) (*Detail, error)
	Analytics(ctx context.Context) (*Analytics, error)
	History(ctx context.Context, id string, params pagination.Params) (*audit.HistoryResponse, error)
	Discharge(ctx context.Context, actorID, id string, req DischargeRequest) (*DischargeResult, error)
}

// AdmissionInterface is the part of the service the bed workflow runs
// inside its own transaction.
type AdmissionInterface interface {
	AdmitInTx(ctx context.Context, q db.DBTX, actorID string, req AdmitRequest) (*AdmitResult, error)
	CloseAdmissionInTx(ctx context.Context, q db.DBTX, actorID, patientID string, reason, comments *string) (*Admission, error)
}

// HistoryReader lists audit rows about a patient.
type HistoryReader interface {
	ListForPatient(ctx context.Context, patientID string, limit, offset int) ([]audit.Log, int, error)
}

// MetricsRecorder counts discharges.
type MetricsRecorder interface {
	RecordDischarge(ctx context.Context)
}
