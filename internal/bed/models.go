package bed

import (
	"time"

	"github.com/hdu-care/hdu-service/internal/audit"
	"github.com/hdu-care/hdu-service/internal/patient"
)

// Bed states.
const (
	StatusAvailable = "available"
	StatusOccupied  = "occupied"
)

// DefaultPoolSize is the number of beds created by seeding.
const DefaultPoolSize = 10

// Bed is one bed of the unit. PatientID is nil while the bed is available.
type Bed struct {
	ID        int64      `json:"id"`
	BedNumber string     `json:"bedNumber"`
	PatientID *string    `json:"patientId"`
	Status    string     `json:"status"`
	Patient   *Occupant  `json:"patient,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

func (b Bed) AuditSnapshot() audit.State {
	return audit.State{
		"bedNumber": b.BedNumber,
		"patientId": b.PatientID,
	}
}

// Occupant is the patient summary shown with an occupied bed.
type Occupant struct {
	ID                string     `json:"id"`
	PatientNumber     string     `json:"patientNumber"`
	FullName          string     `json:"fullName"`
	Gender            string     `json:"gender"`
	IsIncomplete      bool       `json:"isIncomplete"`
	IsUrgentAdmission bool       `json:"isUrgentAdmission"`
	AdmissionID       *string    `json:"admissionId,omitempty"`
	AdmissionDateTime *time.Time `json:"admissionDateTime,omitempty"`
	Department        *string    `json:"department,omitempty"`
}

// AssignResult is returned after a patient was admitted to a bed.
type AssignResult struct {
	Bed          *Bed              `json:"bed"`
	Patient      patient.Patient   `json:"patient"`
	Admission    patient.Admission `json:"admission"`
	IsNewPatient bool              `json:"isNewPatient"`
}

// DeassignResult is returned after a bed was released.
type DeassignResult struct {
	Bed              *Bed               `json:"bed"`
	PatientID        string             `json:"patientId"`
	Admission        *patient.Admission `json:"admission,omitempty"`
	DocumentsRemoved int                `json:"documentsRemoved"`
}

type ListResponse struct {
	Success bool  `json:"success"`
	Beds    []Bed `json:"beds"`
	Count   int   `json:"count"`
}

type BedResponse struct {
	Success bool `json:"success"`
	Bed     *Bed `json:"bed"`
}

type AssignResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Result  *AssignResult `json:"result"`
}

type DeassignResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Result  *DeassignResult `json:"result"`
}
