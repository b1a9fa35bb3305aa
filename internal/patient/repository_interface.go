package patient

import (
	"context"

	"github.com/hdu-care/hdu-service/internal/apperr"
	"github.com/hdu-care/hdu-service/internal/db"
)

var (
	ErrPatientNotFound = apperr.NotFound("patient not found")
	ErrContactNotFound = apperr.NotFound("emergency contact not found")
	ErrAlreadyAdmitted = apperr.Conflict("patient already has an active admission")
	ErrAlreadyInBed    = apperr.Conflict("patient is already assigned to a bed")
)

// RepositoryInterface defines the contract for patient aggregate access.
// Every method runs on the handle it is given so callers control the
// transaction.
type RepositoryInterface interface {
	NextPatientNumber(ctx context.Context, q db.DBTX, year int) (string, error)
	CreatePatient(ctx context.Context, q db.DBTX, p *Patient) error
	GetPatient(ctx context.Context, q db.DBTX, id string) (*Patient, error)
	FindByIdentity(ctx context.Context, q db.DBTX, nationalID, passport *string) (*Patient, error)
	UpdatePatient(ctx context.Context, q db.DBTX, p *Patient) error
	ListPatients(ctx context.Context, q db.DBTX, filter ListFilter, limit, offset int) ([]Summary, int, error)

	CreateAdmission(ctx context.Context, q db.DBTX, a *Admission) error
	GetActiveAdmission(ctx context.Context, q db.DBTX, patientID string) (*Admission, error)
	UpdateAdmission(ctx context.Context, q db.DBTX, a *Admission) error

	GetMedicalRecord(ctx context.Context, q db.DBTX, patientID string) (*MedicalRecord, error)
	CreateMedicalRecord(ctx context.Context, q db.DBTX, m *MedicalRecord) error
	UpdateMedicalRecord(ctx context.Context, q db.DBTX, m *MedicalRecord) error

	ListEmergencyContacts(ctx context.Context, q db.DBTX, patientID string) ([]EmergencyContact, error)
	CreateEmergencyContact(ctx context.Context, q db.DBTX, c *EmergencyContact) error
	UpdateEmergencyContact(ctx context.Context, q db.DBTX, c *EmergencyContact) error

	GetBedForPatient(ctx context.Context, q db.DBTX, patientID string) (*BedRef, error)
	ReleaseBed(ctx context.Context, q db.DBTX, patientID string) (*BedRef, error)

	DependentIDs(ctx context.Context, q db.DBTX, patientID string) (*Dependents, error)
	DeletePatientCascade(ctx context.Context, q db.DBTX, patientID string) error
	Analytics(ctx context.Context, q db.DBTX) (*Analytics, error)
}

// Ensure Repository implements RepositoryInterface
var _ RepositoryInterface = (*Repository)(nil)
