package messaging

import (
	"time"

	"github.com/google/uuid"
)

// Event routing keys as constants
const (
	// Bed events
	EventBedAssigned = "bed.assigned"
	EventBedReleased = "bed.released"

	// Patient events
	EventPatientAdmitted   = "patient.admitted"
	EventPatientDischarged = "patient.discharged"

	// Vitals events
	EventVitalsRecorded    = "vitals.recorded"
	EventVitalsCritical    = "vitals.critical"
	EventAlertAcknowledged = "alert.acknowledged"

	// User events
	EventUserRegistered    = "user.registered"
	EventUserStatusChanged = "user.status_changed"
)

// ServiceName identifies this service in published events.
const ServiceName = "hdu-service"

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventType   string    `json:"event_type"`
	EventID     string    `json:"event_id"`
	Timestamp   time.Time `json:"timestamp"`
	ServiceName string    `json:"service_name"`
	ActorID     string    `json:"actor_id,omitempty"`
}

// NewBaseEvent creates a base event with common fields
func NewBaseEvent(eventType, actorID string) BaseEvent {
	return BaseEvent{
		EventType:   eventType,
		EventID:     uuid.New().String(),
		Timestamp:   time.Now().UTC(),
		ServiceName: ServiceName,
		ActorID:     actorID,
	}
}

// EventMeta exposes the envelope to the publisher.
func (b BaseEvent) EventMeta() BaseEvent { return b }

// BedEvent is published when a bed is assigned or released.
type BedEvent struct {
	BaseEvent
	Data BedData `json:"data"`
}

type BedData struct {
	BedID       int64  `json:"bed_id"`
	BedNumber   string `json:"bed_number"`
	PatientID   string `json:"patient_id"`
	AdmissionID string `json:"admission_id,omitempty"`
}

func NewBedEvent(eventType, actorID string, data BedData) BedEvent {
	return BedEvent{BaseEvent: NewBaseEvent(eventType, actorID), Data: data}
}

// PatientAdmittedEvent is published after a new admission commits.
type PatientAdmittedEvent struct {
	BaseEvent
	Data PatientAdmittedData `json:"data"`
}

type PatientAdmittedData struct {
	PatientID         string    `json:"patient_id"`
	PatientNumber     string    `json:"patient_number"`
	AdmissionID       string    `json:"admission_id"`
	BedNumber         string    `json:"bed_number"`
	IsUrgentAdmission bool      `json:"is_urgent_admission"`
	IsNewPatient      bool      `json:"is_new_patient"`
	AdmittedAt        time.Time `json:"admitted_at"`
}

func NewPatientAdmittedEvent(actorID string, data PatientAdmittedData) PatientAdmittedEvent {
	return PatientAdmittedEvent{BaseEvent: NewBaseEvent(EventPatientAdmitted, actorID), Data: data}
}

// PatientDischargedEvent is the only record of a patient that outlives the
// discharge erasure.
type PatientDischargedEvent struct {
	BaseEvent
	Data PatientDischargedData `json:"data"`
}

type PatientDischargedData struct {
	PatientID       string    `json:"patient_id"`
	PatientNumber   string    `json:"patient_number"`
	DischargeReason string    `json:"discharge_reason"`
	AdmittedAt      time.Time `json:"admitted_at"`
	DischargedAt    time.Time `json:"discharged_at"`
	CriticalFactors int       `json:"critical_factors_erased"`
	Documents       int       `json:"documents_erased"`
	AuditLogs       int64     `json:"audit_logs_erased"`
}

func NewPatientDischargedEvent(actorID string, data PatientDischargedData) PatientDischargedEvent {
	return PatientDischargedEvent{BaseEvent: NewBaseEvent(EventPatientDischarged, actorID), Data: data}
}

// VitalsEvent is published for every recorded sample and again, under
// EventVitalsCritical, when the sample is out of range.
type VitalsEvent struct {
	BaseEvent
	Data VitalsData `json:"data"`
}

type VitalsData struct {
	CriticalFactorID string            `json:"critical_factor_id"`
	PatientID        string            `json:"patient_id"`
	RecordedAt       time.Time         `json:"recorded_at"`
	Flags            map[string]string `json:"flags,omitempty"`
}

func NewVitalsEvent(eventType, actorID string, data VitalsData) VitalsEvent {
	return VitalsEvent{BaseEvent: NewBaseEvent(eventType, actorID), Data: data}
}

// AlertAcknowledgedEvent is published when an operator dismisses an alert.
type AlertAcknowledgedEvent struct {
	BaseEvent
	Data AlertAcknowledgedData `json:"data"`
}

type AlertAcknowledgedData struct {
	CriticalFactorID string    `json:"critical_factor_id"`
	PatientID        string    `json:"patient_id"`
	VitalNames       []string  `json:"vital_names"`
	AcknowledgedAt   time.Time `json:"acknowledged_at"`
}

func NewAlertAcknowledgedEvent(actorID string, data AlertAcknowledgedData) AlertAcknowledgedEvent {
	return AlertAcknowledgedEvent{BaseEvent: NewBaseEvent(EventAlertAcknowledged, actorID), Data: data}
}

// UserEvent is published on registration and on approval or rejection.
type UserEvent struct {
	BaseEvent
	Data UserData `json:"data"`
}

type UserData struct {
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	OldStatus string `json:"old_status,omitempty"`
	NewStatus string `json:"new_status"`
}

func NewUserEvent(eventType, actorID string, data UserData) UserEvent {
	return UserEvent{BaseEvent: NewBaseEvent(eventType, actorID), Data: data}
}
