package patient

import (
	"time"

	"github.com/hdu-care/hdu-service/internal/audit"
	"github.com/hdu-care/hdu-service/internal/pagination"
)

// Admission statuses.
const (
	StatusActive      = "Active"
	StatusDischarged  = "Discharged"
	StatusTransferred = "Transferred"
)

// Placeholders stored for an urgent admission with missing identity data.
const (
	PlaceholderName   = "Unknown Patient"
	PlaceholderGender = "Unknown"
)

// Genders accepted from clients.
var Genders = []interface{}{"Male", "Female", "Other"}

// List filters.
const (
	FilterActive     = "active"
	FilterIncomplete = "incomplete"
	FilterUrgent     = "urgent"
)

const dateLayout = "2006-01-02"

// Patient is one row of patients.
type Patient struct {
	ID                string     `json:"id"`
	PatientNumber     string     `json:"patientNumber"`
	FullName          string     `json:"fullName"`
	Gender            string     `json:"gender"`
	DateOfBirth       *string    `json:"dateOfBirth,omitempty"`
	NationalID        *string    `json:"nationalId,omitempty"`
	PassportNumber    *string    `json:"passportNumber,omitempty"`
	PhoneNumber       *string    `json:"phoneNumber,omitempty"`
	Address           *string    `json:"address,omitempty"`
	BloodGroup        *string    `json:"bloodGroup,omitempty"`
	IsIncomplete      bool       `json:"isIncomplete"`
	IsUrgentAdmission bool       `json:"isUrgentAdmission"`
	CreatedBy         *string    `json:"createdBy,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         *time.Time `json:"updatedAt,omitempty"`
}

func (p Patient) AuditSnapshot() audit.State {
	return audit.State{
		"patientNumber":     p.PatientNumber,
		"fullName":          p.FullName,
		"gender":            p.Gender,
		"dateOfBirth":       p.DateOfBirth,
		"nationalId":        p.NationalID,
		"passportNumber":    p.PassportNumber,
		"phoneNumber":       p.PhoneNumber,
		"address":           p.Address,
		"bloodGroup":        p.BloodGroup,
		"isIncomplete":      p.IsIncomplete,
		"isUrgentAdmission": p.IsUrgentAdmission,
	}
}

// Admission is one stay of a patient in the unit.
type Admission struct {
	ID                string     `json:"id"`
	PatientID         string     `json:"patientId"`
	Status            string     `json:"status"`
	Department        *string    `json:"department,omitempty"`
	ConsultantID      *string    `json:"consultantId,omitempty"`
	AdmissionDateTime time.Time  `json:"admissionDateTime"`
	DischargeDateTime *time.Time `json:"dischargeDateTime,omitempty"`
	DischargeReason   *string    `json:"dischargeReason,omitempty"`
	DoctorComments    *string    `json:"doctorComments,omitempty"`
	AdmittedBy        *string    `json:"admittedBy,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         *time.Time `json:"updatedAt,omitempty"`
}

func (a Admission) AuditSnapshot() audit.State {
	return audit.State{
		"status":            a.Status,
		"department":        a.Department,
		"consultantId":      a.ConsultantID,
		"admissionDateTime": a.AdmissionDateTime,
		"dischargeDateTime": a.DischargeDateTime,
		"dischargeReason":   a.DischargeReason,
		"doctorComments":    a.DoctorComments,
	}
}

type MedicalRecord struct {
	ID                 string     `json:"id"`
	PatientID          string     `json:"patientId"`
	Diagnosis          *string    `json:"diagnosis,omitempty"`
	Allergies          *string    `json:"allergies,omitempty"`
	ChronicConditions  *string    `json:"chronicConditions,omitempty"`
	CurrentMedications *string    `json:"currentMedications,omitempty"`
	Notes              *string    `json:"notes,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          *time.Time `json:"updatedAt,omitempty"`
}

func (m MedicalRecord) AuditSnapshot() audit.State {
	return audit.State{
		"diagnosis":          m.Diagnosis,
		"allergies":          m.Allergies,
		"chronicConditions":  m.ChronicConditions,
		"currentMedications": m.CurrentMedications,
		"notes":              m.Notes,
	}
}

type EmergencyContact struct {
	ID           string     `json:"id"`
	PatientID    string     `json:"patientId"`
	Name         string     `json:"name"`
	Relationship *string    `json:"relationship,omitempty"`
	PhoneNumber  string     `json:"phoneNumber"`
	Address      *string    `json:"address,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    *time.Time `json:"updatedAt,omitempty"`
}

func (c EmergencyContact) AuditSnapshot() audit.State {
	return audit.State{
		"name":         c.Name,
		"relationship": c.Relationship,
		"phoneNumber":  c.PhoneNumber,
		"address":      c.Address,
	}
}

// BedRef is the bed a patient occupies.
type BedRef struct {
	ID        int64  `json:"id"`
	BedNumber string `json:"bedNumber"`
}

// Detail is the full view of one patient.
type Detail struct {
	Patient
	ActiveAdmission   *Admission         `json:"activeAdmission,omitempty"`
	MedicalRecord     *MedicalRecord     `json:"medicalRecord,omitempty"`
	EmergencyContacts []EmergencyContact `json:"emergencyContacts"`
	Bed               *BedRef            `json:"bed,omitempty"`
}

// Summary is a patient row in list results.
type Summary struct {
	Patient
	BedNumber         *string    `json:"bedNumber,omitempty"`
	AdmissionStatus   *string    `json:"admissionStatus,omitempty"`
	AdmissionDateTime *time.Time `json:"admissionDateTime,omitempty"`
}

// MedicalRecordInput creates or replaces the fields of a medical record.
type MedicalRecordInput struct {
	Diagnosis          *string `json:"diagnosis"`
	Allergies          *string `json:"allergies"`
	ChronicConditions  *string `json:"chronicConditions"`
	CurrentMedications *string `json:"currentMedications"`
	Notes              *string `json:"notes"`
}

// Apply overwrites the fields present in the input.
func (in MedicalRecordInput) Apply(m MedicalRecord) MedicalRecord {
	if in.Diagnosis != nil {
		m.Diagnosis = in.Diagnosis
	}
	if in.Allergies != nil {
		m.Allergies = in.Allergies
	}
	if in.ChronicConditions != nil {
		m.ChronicConditions = in.ChronicConditions
	}
	if in.CurrentMedications != nil {
		m.CurrentMedications = in.CurrentMedications
	}
	if in.Notes != nil {
		m.Notes = in.Notes
	}
	return m
}

// EmergencyContactInput creates a contact, or updates one when ID is set.
type EmergencyContactInput struct {
	ID           string  `json:"id,omitempty"`
	Name         string  `json:"name"`
	Relationship *string `json:"relationship"`
	PhoneNumber  string  `json:"phoneNumber"`
	Address      *string `json:"address"`
}

// AdmitRequest is the patient data sent with a bed assignment.
type AdmitRequest struct {
	FullName          string                  `json:"fullName"`
	Gender            string                  `json:"gender"`
	DateOfBirth       *string                 `json:"dateOfBirth"`
	NationalID        *string                 `json:"nationalId"`
	PassportNumber    *string                 `json:"passportNumber"`
	PhoneNumber       *string                 `json:"phoneNumber"`
	Address           *string                 `json:"address"`
	BloodGroup        *string                 `json:"bloodGroup"`
	IsUrgentAdmission bool                    `json:"isUrgentAdmission"`
	Department        *string                 `json:"department"`
	ConsultantID      *string                 `json:"consultantId"`
	AdmissionDateTime *time.Time              `json:"admissionDateTime"`
	MedicalRecord     *MedicalRecordInput     `json:"medicalRecord"`
	EmergencyContacts []EmergencyContactInput `json:"emergencyContacts"`
}

// AdmitResult is what AdmitInTx produced.
type AdmitResult struct {
	Patient   Patient
	Admission Admission
	IsNew     bool
}

// UpdateRequest changes demographics and upserts dependents.
type UpdateRequest struct {
	FullName          *string                 `json:"fullName"`
	Gender            *string                 `json:"gender"`
	DateOfBirth       *string                 `json:"dateOfBirth"`
	NationalID        *string                 `json:"nationalId"`
	PassportNumber    *string                 `json:"passportNumber"`
	PhoneNumber       *string                 `json:"phoneNumber"`
	Address           *string                 `json:"address"`
	BloodGroup        *string                 `json:"bloodGroup"`
	MedicalRecord     *MedicalRecordInput     `json:"medicalRecord"`
	EmergencyContacts []EmergencyContactInput `json:"emergencyContacts"`
}

func (r UpdateRequest) touchesPatient() bool {
	return r.FullName != nil || r.Gender != nil || r.DateOfBirth != nil || r.NationalID != nil ||
		r.PassportNumber != nil || r.PhoneNumber != nil || r.Address != nil || r.BloodGroup != nil
}

// Apply overwrites the demographic fields present in the request; an empty
// optional field is cleared. A completed name and gender clear the
// incomplete flag.
func (r UpdateRequest) Apply(p Patient) Patient {
	if r.FullName != nil {
		p.FullName = *r.FullName
	}
	if r.Gender != nil {
		p.Gender = *r.Gender
	}
	if r.DateOfBirth != nil {
		p.DateOfBirth = blankToNil(r.DateOfBirth)
	}
	if r.NationalID != nil {
		p.NationalID = blankToNil(r.NationalID)
	}
	if r.PassportNumber != nil {
		p.PassportNumber = blankToNil(r.PassportNumber)
	}
	if r.PhoneNumber != nil {
		p.PhoneNumber = blankToNil(r.PhoneNumber)
	}
	if r.Address != nil {
		p.Address = blankToNil(r.Address)
	}
	if r.BloodGroup != nil {
		p.BloodGroup = blankToNil(r.BloodGroup)
	}
	if p.IsIncomplete && p.FullName != "" && p.FullName != PlaceholderName &&
		p.Gender != "" && p.Gender != PlaceholderGender {
		p.IsIncomplete = false
	}
	return p
}

// DischargeRequest closes the stay and erases the patient.
type DischargeRequest struct {
	DischargeReason string `json:"dischargeReason"`
	DoctorComments  string `json:"doctorComments"`
}

// DischargeResult summarises an erasure.
type DischargeResult struct {
	PatientID       string    `json:"patientId"`
	PatientNumber   string    `json:"patientNumber"`
	DischargedAt    time.Time `json:"dischargedAt"`
	BedNumber       *string   `json:"bedNumber,omitempty"`
	CriticalFactors int       `json:"criticalFactorsErased"`
	Documents       int       `json:"documentsErased"`
	AuditLogs       int64     `json:"auditLogsErased"`
}

// Dependents holds the ids of every row owned by a patient.
type Dependents struct {
	Admissions        []string
	MedicalRecords    []string
	EmergencyContacts []string
	CriticalFactors   []string
}

// All returns every id.
func (d Dependents) All() []string {
	out := make([]string, 0, len(d.Admissions)+len(d.MedicalRecords)+len(d.EmergencyContacts)+len(d.CriticalFactors))
	out = append(out, d.Admissions...)
	out = append(out, d.MedicalRecords...)
	out = append(out, d.EmergencyContacts...)
	return append(out, d.CriticalFactors...)
}

type ListFilter struct {
	Search string
	Status string
}

type BedOccupancy struct {
	Total         int     `json:"total"`
	Occupied      int     `json:"occupied"`
	Available     int     `json:"available"`
	OccupancyRate float64 `json:"occupancyRate"`
}

type Analytics struct {
	TotalPatients     int            `json:"totalPatients"`
	ActiveAdmissions  int            `json:"activeAdmissions"`
	UrgentAdmissions  int            `json:"urgentAdmissions"`
	IncompleteRecords int            `json:"incompleteRecords"`
	GenderBreakdown   map[string]int `json:"genderBreakdown"`
	Beds              BedOccupancy   `json:"beds"`
	AdmissionsLast24h int            `json:"admissionsLast24h"`
}

type PatientListResponse struct {
	Success    bool            `json:"success"`
	Patients   []Summary       `json:"patients"`
	Pagination pagination.Meta `json:"pagination"`
}

type DetailResponse struct {
	Success bool    `json:"success"`
	Message string  `json:"message,omitempty"`
	Patient *Detail `json:"patient"`
}

type AnalyticsResponse struct {
	Success   bool       `json:"success"`
	Analytics *Analytics `json:"analytics"`
}

type DischargeResponse struct {
	Success bool             `json:"success"`
	Message string           `json:"message"`
	Result  *DischargeResult `json:"result"`
}
