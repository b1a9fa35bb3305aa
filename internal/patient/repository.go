package patient

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hdu-care/hdu-service/internal/db"
	"github.com/lib/pq"
)

type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

func nullTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

const patientColumns = `p.id, p.patient_number, p.full_name, p.gender, p.date_of_birth, p.national_id,
	p.passport_number, p.phone_number, p.address, p.blood_group, p.is_incomplete, p.is_urgent_admission,
	p.created_by, p.created_at, p.updated_at`

func scanPatient(row scanner, extra ...interface{}) (*Patient, error) {
	var p Patient
	var dob, updatedAt sql.NullTime
	var nationalID, passport, phone, address, bloodGroup, createdBy sql.NullString

	dest := []interface{}{&p.ID, &p.PatientNumber, &p.FullName, &p.Gender, &dob, &nationalID,
		&passport, &phone, &address, &bloodGroup, &p.IsIncomplete, &p.IsUrgentAdmission,
		&createdBy, &p.CreatedAt, &updatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	if dob.Valid {
		s := dob.Time.Format(dateLayout)
		p.DateOfBirth = &s
	}
	p.NationalID = nullString(nationalID)
	p.PassportNumber = nullString(passport)
	p.PhoneNumber = nullString(phone)
	p.Address = nullString(address)
	p.BloodGroup = nullString(bloodGroup)
	p.CreatedBy = nullString(createdBy)
	p.UpdatedAt = nullTime(updatedAt)
	return &p, nil
}

// NextPatientNumber bumps the counter of the given year and formats the
// result as PT-<year>-NNNN.
func (r *Repository) NextPatientNumber(ctx context.Context, q db.DBTX, year int) (string, error) {
	var n int
	err := q.QueryRowContext(ctx, `
		INSERT INTO patient_number_sequences (year, last_value) VALUES ($1, 1)
		ON CONFLICT (year) DO UPDATE SET last_value = patient_number_sequences.last_value + 1
		RETURNING last_value
	`, year).Scan(&n)
	if err != nil {
		return "", fmt.Errorf("failed to allocate patient number: %w", err)
	}
	return fmt.Sprintf("PT-%d-%04d", year, n), nil
}

func (r *Repository) CreatePatient(ctx context.Context, q db.DBTX, p *Patient) error {
	err := q.QueryRowContext(ctx, `
		INSERT INTO patients (id, patient_number, full_name, gender, date_of_birth, national_id,
			passport_number, phone_number, address, blood_group, is_incomplete, is_urgent_admission, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at
	`, p.ID, p.PatientNumber, p.FullName, p.Gender, p.DateOfBirth, p.NationalID,
		p.PassportNumber, p.PhoneNumber, p.Address, p.BloodGroup, p.IsIncomplete, p.IsUrgentAdmission, p.CreatedBy,
	).Scan(&p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert patient: %w", err)
	}
	return nil
}

func (r *Repository) GetPatient(ctx context.Context, q db.DBTX, id string) (*Patient, error) {
	row := q.QueryRowContext(ctx, `SELECT `+patientColumns+` FROM patients p WHERE p.id = $1`, id)
	p, err := scanPatient(row)
	if db.IsNotFound(err) {
		return nil, ErrPatientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}
	return p, nil
}

// FindByIdentity returns the patient with the national id or passport
// number, or nil when there is none. National id wins when both match
// different patients.
func (r *Repository) FindByIdentity(ctx context.Context, q db.DBTX, nationalID, passport *string) (*Patient, error) {
	if nationalID == nil && passport == nil {
		return nil, nil
	}
	row := q.QueryRowContext(ctx, `
		SELECT `+patientColumns+` FROM patients p
		WHERE ($1::text IS NOT NULL AND p.national_id = $1::text)
		   OR ($2::text IS NOT NULL AND p.passport_number = $2::text)
		ORDER BY (p.national_id IS NOT DISTINCT FROM $1::text) DESC, p.created_at
		LIMIT 1
	`, nationalID, passport)
	p, err := scanPatient(row)
	if db.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up patient identity: %w", err)
	}
	return p, nil
}

func (r *Repository) UpdatePatient(ctx context.Context, q db.DBTX, p *Patient) error {
	var updatedAt time.Time
	err := q.QueryRowContext(ctx, `
		UPDATE patients SET full_name = $2, gender = $3, date_of_birth = $4, national_id = $5,
			passport_number = $6, phone_number = $7, address = $8, blood_group = $9,
			is_incomplete = $10, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`, p.ID, p.FullName, p.Gender, p.DateOfBirth, p.NationalID,
		p.PassportNumber, p.PhoneNumber, p.Address, p.BloodGroup, p.IsIncomplete,
	).Scan(&updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrPatientNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update patient: %w", err)
	}
	p.UpdatedAt = &updatedAt
	return nil
}

func listWhere(filter ListFilter) (string, []interface{}) {
	var conds []string
	var args []interface{}
	if s := strings.TrimSpace(filter.Search); s != "" {
		args = append(args, "%"+s+"%")
		conds = append(conds, fmt.Sprintf("(p.full_name ILIKE $%d OR p.patient_number ILIKE $%d)", len(args), len(args)))
	}
	switch filter.Status {
	case FilterActive:
		conds = append(conds, "a.id IS NOT NULL")
	case FilterIncomplete:
		conds = append(conds, "p.is_incomplete = TRUE")
	case FilterUrgent:
		conds = append(conds, "p.is_urgent_admission = TRUE")
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

const listFrom = ` FROM patients p
	LEFT JOIN admissions a ON a.patient_id = p.id AND a.status = 'Active'
	LEFT JOIN beds b ON b.patient_id = p.id`

func (r *Repository) ListPatients(ctx context.Context, q db.DBTX, filter ListFilter, limit, offset int) ([]Summary, int, error) {
	where, args := listWhere(filter)

	var total int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*)`+listFrom+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count patients: %w", err)
	}

	args = append(args, limit, offset)
	query := `SELECT ` + patientColumns + `, b.bed_number, a.status, a.admission_date_time` + listFrom + where +
		fmt.Sprintf(` ORDER BY p.created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query patients: %w", err)
	}
	defer rows.Close()

	patients := []Summary{}
	for rows.Next() {
		var bedNumber, status sql.NullString
		var admittedAt sql.NullTime
		p, err := scanPatient(rows, &bedNumber, &status, &admittedAt)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan patient: %w", err)
		}
		patients = append(patients, Summary{
			Patient:           *p,
			BedNumber:         nullString(bedNumber),
			AdmissionStatus:   nullString(status),
			AdmissionDateTime: nullTime(admittedAt),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating patients: %w", err)
	}
	return patients, total, nil
}

const admissionColumns = `id, patient_id, status, department, consultant_id, admission_date_time,
	discharge_date_time, discharge_reason, doctor_comments, admitted_by, created_at, updated_at`

func scanAdmission(row scanner) (*Admission, error) {
	var a Admission
	var department, consultant, reason, comments, admittedBy sql.NullString
	var dischargedAt, updatedAt sql.NullTime
	err := row.Scan(&a.ID, &a.PatientID, &a.Status, &department, &consultant, &a.AdmissionDateTime,
		&dischargedAt, &reason, &comments, &admittedBy, &a.CreatedAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	a.Department = nullString(department)
	a.ConsultantID = nullString(consultant)
	a.DischargeDateTime = nullTime(dischargedAt)
	a.DischargeReason = nullString(reason)
	a.DoctorComments = nullString(comments)
	a.AdmittedBy = nullString(admittedBy)
	a.UpdatedAt = nullTime(updatedAt)
	return &a, nil
}

func (r *Repository) CreateAdmission(ctx context.Context, q db.DBTX, a *Admission) error {
	err := q.QueryRowContext(ctx, `
		INSERT INTO admissions (id, patient_id, status, department, consultant_id, admission_date_time, admitted_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, a.ID, a.PatientID, a.Status, a.Department, a.ConsultantID, a.AdmissionDateTime, a.AdmittedBy,
	).Scan(&a.CreatedAt)
	if db.IsUniqueViolation(err) {
		return ErrAlreadyAdmitted
	}
	if err != nil {
		return fmt.Errorf("failed to insert admission: %w", err)
	}
	return nil
}

// GetActiveAdmission returns nil when the patient has no active admission.
func (r *Repository) GetActiveAdmission(ctx context.Context, q db.DBTX, patientID string) (*Admission, error) {
	row := q.QueryRowContext(ctx, `SELECT `+admissionColumns+` FROM admissions
		WHERE patient_id = $1 AND status = 'Active'`, patientID)
	a, err := scanAdmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active admission: %w", err)
	}
	return a, nil
}

func (r *Repository) UpdateAdmission(ctx context.Context, q db.DBTX, a *Admission) error {
	var updatedAt time.Time
	err := q.QueryRowContext(ctx, `
		UPDATE admissions SET status = $2, department = $3, consultant_id = $4, discharge_date_time = $5,
			discharge_reason = $6, doctor_comments = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`, a.ID, a.Status, a.Department, a.ConsultantID, a.DischargeDateTime, a.DischargeReason, a.DoctorComments,
	).Scan(&updatedAt)
	if err != nil {
		return fmt.Errorf("failed to update admission: %w", err)
	}
	a.UpdatedAt = &updatedAt
	return nil
}

// GetMedicalRecord returns nil when the patient has none.
func (r *Repository) GetMedicalRecord(ctx context.Context, q db.DBTX, patientID string) (*MedicalRecord, error) {
	var m MedicalRecord
	var diagnosis, allergies, chronic, meds, notes sql.NullString
	var updatedAt sql.NullTime
	err := q.QueryRowContext(ctx, `
		SELECT id, patient_id, diagnosis, allergies, chronic_conditions, current_medications, notes,
			created_at, updated_at
		FROM medical_records WHERE patient_id = $1
	`, patientID).Scan(&m.ID, &m.PatientID, &diagnosis, &allergies, &chronic, &meds, &notes, &m.CreatedAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get medical record: %w", err)
	}
	m.Diagnosis = nullString(diagnosis)
	m.Allergies = nullString(allergies)
	m.ChronicConditions = nullString(chronic)
	m.CurrentMedications = nullString(meds)
	m.Notes = nullString(notes)
	m.UpdatedAt = nullTime(updatedAt)
	return &m, nil
}

func (r *Repository) CreateMedicalRecord(ctx context.Context, q db.DBTX, m *MedicalRecord) error {
	err := q.QueryRowContext(ctx, `
		INSERT INTO medical_records (id, patient_id, diagnosis, allergies, chronic_conditions, current_medications, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, m.ID, m.PatientID, m.Diagnosis, m.Allergies, m.ChronicConditions, m.CurrentMedications, m.Notes,
	).Scan(&m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert medical record: %w", err)
	}
	return nil
}

func (r *Repository) UpdateMedicalRecord(ctx context.Context, q db.DBTX, m *MedicalRecord) error {
	var updatedAt time.Time
	err := q.QueryRowContext(ctx, `
		UPDATE medical_records SET diagnosis = $2, allergies = $3, chronic_conditions = $4,
			current_medications = $5, notes = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`, m.ID, m.Diagnosis, m.Allergies, m.ChronicConditions, m.CurrentMedications, m.Notes,
	).Scan(&updatedAt)
	if err != nil {
		return fmt.Errorf("failed to update medical record: %w", err)
	}
	m.UpdatedAt = &updatedAt
	return nil
}

func (r *Repository) ListEmergencyContacts(ctx context.Context, q db.DBTX, patientID string) ([]EmergencyContact, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, patient_id, name, relationship, phone_number, address, created_at, updated_at
		FROM emergency_contacts WHERE patient_id = $1 ORDER BY created_at
	`, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to query emergency contacts: %w", err)
	}
	defer rows.Close()

	contacts := []EmergencyContact{}
	for rows.Next() {
		var c EmergencyContact
		var relationship, address sql.NullString
		var updatedAt sql.NullTime
		if err := rows.Scan(&c.ID, &c.PatientID, &c.Name, &relationship, &c.PhoneNumber, &address, &c.CreatedAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan emergency contact: %w", err)
		}
		c.Relationship = nullString(relationship)
		c.Address = nullString(address)
		c.UpdatedAt = nullTime(updatedAt)
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating emergency contacts: %w", err)
	}
	return contacts, nil
}

func (r *Repository) CreateEmergencyContact(ctx context.Context, q db.DBTX, c *EmergencyContact) error {
	err := q.QueryRowContext(ctx, `
		INSERT INTO emergency_contacts (id, patient_id, name, relationship, phone_number, address)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, c.ID, c.PatientID, c.Name, c.Relationship, c.PhoneNumber, c.Address).Scan(&c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert emergency contact: %w", err)
	}
	return nil
}

func (r *Repository) UpdateEmergencyContact(ctx context.Context, q db.DBTX, c *EmergencyContact) error {
	var updatedAt time.Time
	err := q.QueryRowContext(ctx, `
		UPDATE emergency_contacts SET name = $3, relationship = $4, phone_number = $5, address = $6, updated_at = NOW()
		WHERE id = $1 AND patient_id = $2
		RETURNING updated_at
	`, c.ID, c.PatientID, c.Name, c.Relationship, c.PhoneNumber, c.Address).Scan(&updatedAt)
	if db.IsNotFound(err) {
		return ErrContactNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update emergency contact: %w", err)
	}
	c.UpdatedAt = &updatedAt
	return nil
}

// GetBedForPatient returns nil when the patient has no bed.
func (r *Repository) GetBedForPatient(ctx context.Context, q db.DBTX, patientID string) (*BedRef, error) {
	var b BedRef
	err := q.QueryRowContext(ctx, `SELECT id, bed_number FROM beds WHERE patient_id = $1`, patientID).Scan(&b.ID, &b.BedNumber)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bed for patient: %w", err)
	}
	return &b, nil
}

// ReleaseBed frees the bed of the patient, returning nil when there was none.
func (r *Repository) ReleaseBed(ctx context.Context, q db.DBTX, patientID string) (*BedRef, error) {
	var b BedRef
	err := q.QueryRowContext(ctx, `
		UPDATE beds SET patient_id = NULL, updated_at = NOW()
		WHERE patient_id = $1
		RETURNING id, bed_number
	`, patientID).Scan(&b.ID, &b.BedNumber)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to release bed: %w", err)
	}
	return &b, nil
}

func (r *Repository) ids(ctx context.Context, q db.DBTX, table, patientID string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT id FROM `+pq.QuoteIdentifier(table)+` WHERE patient_id = $1`, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", table, err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan %s id: %w", table, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *Repository) DependentIDs(ctx context.Context, q db.DBTX, patientID string) (*Dependents, error) {
	var d Dependents
	var err error
	if d.Admissions, err = r.ids(ctx, q, "admissions", patientID); err != nil {
		return nil, err
	}
	if d.MedicalRecords, err = r.ids(ctx, q, "medical_records", patientID); err != nil {
		return nil, err
	}
	if d.EmergencyContacts, err = r.ids(ctx, q, "emergency_contacts", patientID); err != nil {
		return nil, err
	}
	if d.CriticalFactors, err = r.ids(ctx, q, "critical_factors", patientID); err != nil {
		return nil, err
	}
	return &d, nil
}

// DeletePatientCascade removes every dependent row and then the patient.
func (r *Repository) DeletePatientCascade(ctx context.Context, q db.DBTX, patientID string) error {
	for _, table := range []string{"critical_factors", "emergency_contacts", "medical_records", "admissions"} {
		if _, err := q.ExecContext(ctx, `DELETE FROM `+pq.QuoteIdentifier(table)+` WHERE patient_id = $1`, patientID); err != nil {
			return fmt.Errorf("failed to delete %s: %w", table, err)
		}
	}
	res, err := q.ExecContext(ctx, `DELETE FROM patients WHERE id = $1`, patientID)
	if err != nil {
		return fmt.Errorf("failed to delete patient: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrPatientNotFound
	}
	return nil
}

func (r *Repository) Analytics(ctx context.Context, q db.DBTX) (*Analytics, error) {
	a := &Analytics{GenderBreakdown: map[string]int{}}

	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE is_urgent_admission),
			COUNT(*) FILTER (WHERE is_incomplete)
		FROM patients
	`).Scan(&a.TotalPatients, &a.UrgentAdmissions, &a.IncompleteRecords)
	if err != nil {
		return nil, fmt.Errorf("failed to count patients: %w", err)
	}

	err = q.QueryRowContext(ctx, `
		SELECT COUNT(*) FILTER (WHERE status = 'Active'),
			COUNT(*) FILTER (WHERE admission_date_time >= NOW() - INTERVAL '24 hours')
		FROM admissions
	`).Scan(&a.ActiveAdmissions, &a.AdmissionsLast24h)
	if err != nil {
		return nil, fmt.Errorf("failed to count admissions: %w", err)
	}

	err = q.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(patient_id) FROM beds
	`).Scan(&a.Beds.Total, &a.Beds.Occupied)
	if err != nil {
		return nil, fmt.Errorf("failed to count beds: %w", err)
	}
	a.Beds.Available = a.Beds.Total - a.Beds.Occupied
	if a.Beds.Total > 0 {
		a.Beds.OccupancyRate = float64(a.Beds.Occupied) / float64(a.Beds.Total) * 100
	}

	rows, err := q.QueryContext(ctx, `SELECT gender, COUNT(*) FROM patients GROUP BY gender`)
	if err != nil {
		return nil, fmt.Errorf("failed to group patients by gender: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var gender string
		var n int
		if err := rows.Scan(&gender, &n); err != nil {
			return nil, fmt.Errorf("failed to scan gender count: %w", err)
		}
		a.GenderBreakdown[gender] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating gender counts: %w", err)
	}
	return a, nil
}
