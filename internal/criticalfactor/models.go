package criticalfactor

import (
	"time"

	"github.com/hdu-care/hdu-service/internal/audit"
	"github.com/hdu-care/hdu-service/internal/vitals"
)

// Critical patient list modes.
const (
	ModeLatest = "latest"
	ModeWindow = "window"
)

const (
	DefaultWindowHours = 24
	MaxWindowHours     = 24 * 30
	DefaultAlertDays   = 7
	MaxAlertDays       = 365
)

// Readings are the values of one vitals recording. Nil fields were not
// measured.
type Readings struct {
	HeartRate              *float64             `json:"heartRate"`
	BloodPressureSystolic  *float64             `json:"bloodPressureSystolic"`
	BloodPressureDiastolic *float64             `json:"bloodPressureDiastolic"`
	SpO2                   *float64             `json:"spO2"`
	Temperature            *float64             `json:"temperature"`
	GCS                    *float64             `json:"gcs"`
	PainScale              *float64             `json:"painScale"`
	BloodGlucose           *float64             `json:"bloodGlucose"`
	UrineOutput            *float64             `json:"urineOutput"`
	DynamicVitals          vitals.DynamicVitals `json:"dynamicVitals"`
	Notes                  *string              `json:"notes"`
}

func (r *Readings) builtin() map[string]*float64 {
	return map[string]*float64{
		vitals.HeartRate:              r.HeartRate,
		vitals.BloodPressureSystolic:  r.BloodPressureSystolic,
		vitals.BloodPressureDiastolic: r.BloodPressureDiastolic,
		vitals.SpO2:                   r.SpO2,
		vitals.Temperature:            r.Temperature,
		vitals.GCS:                    r.GCS,
		vitals.PainScale:              r.PainScale,
		vitals.BloodGlucose:           r.BloodGlucose,
		vitals.UrineOutput:            r.UrineOutput,
	}
}

// Sample returns the numeric readings keyed by vital name.
func (r *Readings) Sample() vitals.Sample {
	s := vitals.Sample{}
	for name, v := range r.builtin() {
		if v != nil {
			s[name] = *v
		}
	}
	s.AddDynamic(r.DynamicVitals)
	return s
}

// Empty reports whether no vital was measured.
func (r *Readings) Empty() bool {
	for _, v := range r.builtin() {
		if v != nil {
			return false
		}
	}
	for _, v := range r.DynamicVitals {
		if !v.IsNull() {
			return false
		}
	}
	return true
}

// Merge overwrites the readings set in other. Dynamic vitals are merged by
// name.
func (r Readings) Merge(other Readings) Readings {
	set := func(dst **float64, src *float64) {
		if src != nil {
			*dst = src
		}
	}
	set(&r.HeartRate, other.HeartRate)
	set(&r.BloodPressureSystolic, other.BloodPressureSystolic)
	set(&r.BloodPressureDiastolic, other.BloodPressureDiastolic)
	set(&r.SpO2, other.SpO2)
	set(&r.Temperature, other.Temperature)
	set(&r.GCS, other.GCS)
	set(&r.PainScale, other.PainScale)
	set(&r.BloodGlucose, other.BloodGlucose)
	set(&r.UrineOutput, other.UrineOutput)
	if other.Notes != nil {
		r.Notes = other.Notes
	}
	if len(other.DynamicVitals) > 0 {
		merged := vitals.DynamicVitals{}
		for k, v := range r.DynamicVitals {
			merged[k] = v
		}
		for k, v := range other.DynamicVitals {
			merged[k] = v
		}
		r.DynamicVitals = merged
	}
	return r
}

// CriticalFactor is one timestamped vitals sample of a patient. Flags are
// derived from the configuration when the sample is read.
type CriticalFactor struct {
	ID          string  `json:"id"`
	PatientID   string  `json:"patientId"`
	AdmissionID *string `json:"admissionId,omitempty"`
	Readings
	RecordedBy      *string      `json:"recordedBy,omitempty"`
	RecordedAt      time.Time    `json:"recordedAt"`
	IsAmended       bool         `json:"isAmended"`
	AmendedBy       *string      `json:"amendedBy,omitempty"`
	AmendedAt       *time.Time   `json:"amendedAt,omitempty"`
	AmendmentReason *string      `json:"amendmentReason,omitempty"`
	CreatedAt       time.Time    `json:"createdAt"`
	Flags           vitals.Flags `json:"flags,omitempty"`
}

func (c CriticalFactor) AuditSnapshot() audit.State {
	s := audit.State{
		"recordedAt":      c.RecordedAt,
		"dynamicVitals":   c.DynamicVitals.Snapshot(),
		"notes":           c.Notes,
		"isAmended":       c.IsAmended,
		"amendmentReason": c.AmendmentReason,
	}
	for name, v := range c.builtin() {
		s[name] = v
	}
	return s
}

// CreateRequest records a new sample.
type CreateRequest struct {
	PatientID string `json:"patientId"`
	Readings
	RecordedAt *time.Time `json:"recordedAt"`
}

// AmendRequest corrects a sample. Only the readings that are set change.
type AmendRequest struct {
	Readings
	AmendmentReason string `json:"amendmentReason"`
}

// CriticalQuery selects which samples make a patient critical.
type CriticalQuery struct {
	Mode  string
	Hours int
}

// CriticalPatient is a patient whose selected sample is out of range.
type CriticalPatient struct {
	PatientID         string          `json:"patientId"`
	PatientNumber     string          `json:"patientNumber"`
	FullName          string          `json:"fullName"`
	Gender            string          `json:"gender"`
	BedNumber         *string         `json:"bedNumber,omitempty"`
	CriticalFactorID  string          `json:"criticalFactorId"`
	RecordedAt        time.Time       `json:"recordedAt"`
	Flags             vitals.Flags    `json:"flags"`
	CriticalFactor    *CriticalFactor `json:"criticalFactor"`
	IsUrgentAdmission bool            `json:"isUrgentAdmission"`
}

// PatientSample is a sample joined with its patient and bed.
type PatientSample struct {
	CriticalFactor
	PatientNumber     string
	FullName          string
	Gender            string
	IsUrgentAdmission bool
	BedNumber         *string
}

// AcknowledgeRequest dismisses the alert of a sample.
type AcknowledgeRequest struct {
	CriticalFactorID string   `json:"criticalFactorId"`
	VitalNames       []string `json:"vitalNames"`
	Notes            *string  `json:"notes"`
}

// Acknowledgement is the outcome of an acknowledgment.
type Acknowledgement struct {
	CriticalFactorID string       `json:"criticalFactorId"`
	PatientID        string       `json:"patientId"`
	VitalNames       []string     `json:"vitalNames"`
	Flags            vitals.Flags `json:"flags"`
	RecordedAt       time.Time    `json:"recordedAt"`
	AcknowledgedAt   time.Time    `json:"acknowledgedAt"`
	AcknowledgedBy   string       `json:"acknowledgedBy"`
	Notes            *string      `json:"notes,omitempty"`
}

func (a Acknowledgement) AuditSnapshot() audit.State {
	return audit.State{
		"patientId":      a.PatientID,
		"vitalNames":     a.VitalNames,
		"flags":          map[string]string(a.Flags),
		"recordedAt":     a.RecordedAt,
		"acknowledgedAt": a.AcknowledgedAt,
		"notes":          a.Notes,
	}
}

// AckRecord is an acknowledgment read back from the audit trail.
type AckRecord struct {
	UserID         *string
	UserName       *string
	VitalNames     []string
	RecordedAt     time.Time
	AcknowledgedAt time.Time
}

type UserAckCount struct {
	UserID   string  `json:"userId"`
	UserName *string `json:"userName,omitempty"`
	Count    int     `json:"count"`
}

// AlertAnalytics summarises acknowledgments over a window of days.
type AlertAnalytics struct {
	Days                   int            `json:"days"`
	TotalAcknowledgements  int            `json:"totalAcknowledgements"`
	ByVital                map[string]int `json:"byVital"`
	ByUser                 []UserAckCount `json:"byUser"`
	AverageResponseSeconds *float64       `json:"averageResponseSeconds"`
}

type ListResponse struct {
	Success         bool             `json:"success"`
	CriticalFactors []CriticalFactor `json:"criticalFactors"`
	Count           int              `json:"count"`
}

type SuccessResponse struct {
	Success        bool            `json:"success"`
	Message        string          `json:"message,omitempty"`
	CriticalFactor *CriticalFactor `json:"criticalFactor"`
}

type CriticalPatientsResponse struct {
	Success  bool              `json:"success"`
	Mode     string            `json:"mode"`
	Hours    int               `json:"hours,omitempty"`
	Patients []CriticalPatient `json:"patients"`
	Count    int               `json:"count"`
}

type AcknowledgeResponse struct {
	Success         bool             `json:"success"`
	Message         string           `json:"message"`
	Acknowledgement *Acknowledgement `json:"acknowledgement"`
}

type AlertAnalyticsResponse struct {
	Success   bool            `json:"success"`
	Analytics *AlertAnalytics `json:"analytics"`
}
