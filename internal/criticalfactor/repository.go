package criticalfactor

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hdu-care/hdu-service/internal/apperr"
	"github.com/hdu-care/hdu-service/internal/audit"
	"github.com/hdu-care/hdu-service/internal/db"
)

var (
	ErrCriticalFactorNotFound = apperr.NotFound("critical factor not found")
	ErrPatientNotFound        = apperr.NotFound("patient not found")
)

// RepositoryInterface defines the contract for critical factor data access.
type RepositoryInterface interface {
	PatientExists(ctx context.Context, q db.DBTX, patientID string) (bool, error)
	ActiveAdmissionID(ctx context.Context, q db.DBTX, patientID string) (*string, error)
	Create(ctx context.Context, q db.DBTX, cf *CriticalFactor) error
	Get(ctx context.Context, q db.DBTX, id string) (*CriticalFactor, error)
	ListByPatient(ctx context.Context, q db.DBTX, patientID string, limit int) ([]CriticalFactor, error)
	Update(ctx context.Context, q db.DBTX, cf *CriticalFactor) error

	// LatestPerPatient returns the newest sample of every patient.
	LatestPerPatient(ctx context.Context, q db.DBTX) ([]PatientSample, error)
	// ListSince returns every sample recorded at or after since, newest first.
	ListSince(ctx context.Context, q db.DBTX, since time.Time) ([]PatientSample, error)
	Acknowledgements(ctx context.Context, q db.DBTX, since time.Time) ([]AckRecord, error)
}

type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

var _ RepositoryInterface = (*Repository)(nil)

const cfColumns = `cf.id, cf.patient_id, cf.admission_id,
	cf.heart_rate, cf.blood_pressure_systolic, cf.blood_pressure_diastolic, cf.sp_o2,
	cf.temperature, cf.gcs, cf.pain_scale, cf.blood_glucose, cf.urine_output,
	cf.dynamic_vitals, cf.notes, cf.recorded_by, cf.recorded_at,
	cf.is_amended, cf.amended_by, cf.amended_at, cf.amendment_reason, cf.created_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

func stringPtr(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	v := n.String
	return &v
}

func scanCriticalFactor(row scanner, extra ...interface{}) (*CriticalFactor, error) {
	var (
		cf        CriticalFactor
		amendedAt sql.NullTime
	)
	var admissionID, notes, recordedBy, amendedBy, amendReason sql.NullString
	var hr, sys, dia, spo2, temp, gcs, pain, glucose, urine sql.NullFloat64
	dest := []interface{}{
		&cf.ID, &cf.PatientID, &admissionID,
		&hr, &sys, &dia, &spo2, &temp, &gcs, &pain, &glucose, &urine,
		&cf.DynamicVitals, &notes, &recordedBy, &cf.RecordedAt,
		&cf.IsAmended, &amendedBy, &amendedAt, &amendReason, &cf.CreatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	cf.AdmissionID = stringPtr(admissionID)
	cf.HeartRate = floatPtr(hr)
	cf.BloodPressureSystolic = floatPtr(sys)
	cf.BloodPressureDiastolic = floatPtr(dia)
	cf.SpO2 = floatPtr(spo2)
	cf.Temperature = floatPtr(temp)
	cf.GCS = floatPtr(gcs)
	cf.PainScale = floatPtr(pain)
	cf.BloodGlucose = floatPtr(glucose)
	cf.UrineOutput = floatPtr(urine)
	cf.Notes = stringPtr(notes)
	cf.RecordedBy = stringPtr(recordedBy)
	cf.AmendedBy = stringPtr(amendedBy)
	cf.AmendmentReason = stringPtr(amendReason)
	if amendedAt.Valid {
		t := amendedAt.Time
		cf.AmendedAt = &t
	}
	return &cf, nil
}

func (r *Repository) PatientExists(ctx context.Context, q db.DBTX, patientID string) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM patients WHERE id = $1)`, patientID).Scan(&exists)
	if db.IsInvalidTextRepresentation(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check patient: %w", err)
	}
	return exists, nil
}

func (r *Repository) ActiveAdmissionID(ctx context.Context, q db.DBTX, patientID string) (*string, error) {
	var id string
	err := q.QueryRowContext(ctx, `
		SELECT id FROM admissions WHERE patient_id = $1 AND status = 'Active'
	`, patientID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active admission: %w", err)
	}
	return &id, nil
}

func (r *Repository) Create(ctx context.Context, q db.DBTX, cf *CriticalFactor) error {
	err := q.QueryRowContext(ctx, `
		INSERT INTO critical_factors (id, patient_id, admission_id,
			heart_rate, blood_pressure_systolic, blood_pressure_diastolic, sp_o2,
			temperature, gcs, pain_scale, blood_glucose, urine_output,
			dynamic_vitals, notes, recorded_by, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING created_at
	`, cf.ID, cf.PatientID, cf.AdmissionID,
		cf.HeartRate, cf.BloodPressureSystolic, cf.BloodPressureDiastolic, cf.SpO2,
		cf.Temperature, cf.GCS, cf.PainScale, cf.BloodGlucose, cf.UrineOutput,
		cf.DynamicVitals, cf.Notes, cf.RecordedBy, cf.RecordedAt,
	).Scan(&cf.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert critical factor: %w", err)
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, q db.DBTX, id string) (*CriticalFactor, error) {
	cf, err := scanCriticalFactor(q.QueryRowContext(ctx, `SELECT `+cfColumns+` FROM critical_factors cf WHERE cf.id = $1`, id))
	if db.IsNotFound(err) {
		return nil, ErrCriticalFactorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get critical factor: %w", err)
	}
	return cf, nil
}

func (r *Repository) ListByPatient(ctx context.Context, q db.DBTX, patientID string, limit int) ([]CriticalFactor, error) {
	query := `SELECT ` + cfColumns + ` FROM critical_factors cf WHERE cf.patient_id = $1 ORDER BY cf.recorded_at DESC`
	args := []interface{}{patientID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list critical factors: %w", err)
	}
	defer rows.Close()

	out := []CriticalFactor{}
	for rows.Next() {
		cf, err := scanCriticalFactor(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan critical factor: %w", err)
		}
		out = append(out, *cf)
	}
	return out, rows.Err()
}

func (r *Repository) Update(ctx context.Context, q db.DBTX, cf *CriticalFactor) error {
	res, err := q.ExecContext(ctx, `
		UPDATE critical_factors SET
			heart_rate = $2, blood_pressure_systolic = $3, blood_pressure_diastolic = $4, sp_o2 = $5,
			temperature = $6, gcs = $7, pain_scale = $8, blood_glucose = $9, urine_output = $10,
			dynamic_vitals = $11, notes = $12,
			is_amended = $13, amended_by = $14, amended_at = $15, amendment_reason = $16
		WHERE id = $1
	`, cf.ID,
		cf.HeartRate, cf.BloodPressureSystolic, cf.BloodPressureDiastolic, cf.SpO2,
		cf.Temperature, cf.GCS, cf.PainScale, cf.BloodGlucose, cf.UrineOutput,
		cf.DynamicVitals, cf.Notes,
		cf.IsAmended, cf.AmendedBy, cf.AmendedAt, cf.AmendmentReason,
	)
	if err != nil {
		return fmt.Errorf("failed to update critical factor: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrCriticalFactorNotFound
	}
	return nil
}

const sampleFrom = ` FROM critical_factors cf
	JOIN patients p ON p.id = cf.patient_id
	LEFT JOIN beds b ON b.patient_id = cf.patient_id`

const sampleExtra = `, p.patient_number, p.full_name, p.gender, p.is_urgent_admission, b.bed_number`

func (r *Repository) samples(ctx context.Context, q db.DBTX, query string, args ...interface{}) ([]PatientSample, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	out := []PatientSample{}
	for rows.Next() {
		var (
			s   PatientSample
			bed sql.NullString
		)
		cf, err := scanCriticalFactor(rows, &s.PatientNumber, &s.FullName, &s.Gender, &s.IsUrgentAdmission, &bed)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		s.CriticalFactor = *cf
		s.BedNumber = stringPtr(bed)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Repository) LatestPerPatient(ctx context.Context, q db.DBTX) ([]PatientSample, error) {
	return r.samples(ctx, q, `
		SELECT DISTINCT ON (cf.patient_id) `+cfColumns+sampleExtra+sampleFrom+`
		ORDER BY cf.patient_id, cf.recorded_at DESC
	`)
}

func (r *Repository) ListSince(ctx context.Context, q db.DBTX, since time.Time) ([]PatientSample, error) {
	return r.samples(ctx, q, `
		SELECT `+cfColumns+sampleExtra+sampleFrom+`
		WHERE cf.recorded_at >= $1
		ORDER BY cf.recorded_at DESC
	`, since)
}

// Acknowledgements reads ACKNOWLEDGE audit entries on critical factors.
func (r *Repository) Acknowledgements(ctx context.Context, q db.DBTX, since time.Time) ([]AckRecord, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT a.user_id, u.full_name, a.new_values
		FROM audit_logs a
		LEFT JOIN users u ON u.id = a.user_id
		WHERE a.action = $1 AND a.table_name = $2 AND a.created_at >= $3
		ORDER BY a.created_at
	`, audit.ActionAcknowledge, audit.TableCriticalFactors, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query acknowledgements: %w", err)
	}
	defer rows.Close()

	out := []AckRecord{}
	for rows.Next() {
		var (
			userID, userName sql.NullString
			raw              []byte
			snapshot         struct {
				VitalNames     []string  `json:"vitalNames"`
				RecordedAt     time.Time `json:"recordedAt"`
				AcknowledgedAt time.Time `json:"acknowledgedAt"`
			}
		)
		if err := rows.Scan(&userID, &userName, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan acknowledgement: %w", err)
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &snapshot); err != nil {
				return nil, fmt.Errorf("failed to decode acknowledgement: %w", err)
			}
		}
		out = append(out, AckRecord{
			UserID:         stringPtr(userID),
			UserName:       stringPtr(userName),
			VitalNames:     snapshot.VitalNames,
			RecordedAt:     snapshot.RecordedAt,
			AcknowledgedAt: snapshot.AcknowledgedAt,
		})
	}
	return out, rows.Err()
}
