package audit

import (
	"time"

	"github.com/hdu-care/hdu-service/internal/pagination"
)

// Actions recorded in audit_logs.
const (
	ActionCreate      = "CREATE"
	ActionUpdate      = "UPDATE"
	ActionAcknowledge = "ACKNOWLEDGE"
)

// Table names used as audit targets.
const (
	TablePatients          = "patients"
	TableAdmissions        = "admissions"
	TableMedicalRecords    = "medical_records"
	TableEmergencyContacts = "emergency_contacts"
	TableBeds              = "beds"
	TableCriticalFactors   = "critical_factors"
	TablePatientDocuments  = "patient_documents"
	TableVitalSignsConfig  = "vital_signs_config"
	TableUsers             = "users"
)

// State is an entity snapshot keyed by JSON field name.
type State map[string]interface{}

// Change is one field delta of an UPDATE entry.
type Change struct {
	Old interface{} `json:"old"`
	New interface{} `json:"new"`
}

// Entry is what callers hand to the Recorder.
type Entry struct {
	ActorID     string
	Action      string
	TableName   string
	RecordID    string
	PatientID   string // subject patient, if any; used when erasing a discharged patient
	OldState    State
	NewState    State
	Description string
}

// Log is a persisted audit row.
type Log struct {
	ID          string                 `json:"id"`
	UserID      *string                `json:"userId,omitempty"`
	UserName    *string                `json:"userName,omitempty"`
	Action      string                 `json:"action"`
	TableName   string                 `json:"tableName"`
	RecordID    string                 `json:"recordId"`
	PatientID   *string                `json:"patientId,omitempty"`
	OldValues   map[string]interface{} `json:"oldValues"`
	NewValues   map[string]interface{} `json:"newValues"`
	Description string                 `json:"description,omitempty"`
	CreatedAt   time.Time              `json:"createdAt"`
}

// HistoryResponse is a page of audit rows.
type HistoryResponse struct {
	Success    bool            `json:"success"`
	Logs       []Log           `json:"logs"`
	Pagination pagination.Meta `json:"pagination"`
}
