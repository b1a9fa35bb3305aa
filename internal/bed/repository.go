package bed

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hdu-care/hdu-service/internal/db"
	"github.com/hdu-care/hdu-service/internal/patient"
)

type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

const bedColumns = `b.id, b.bed_number, b.patient_id, b.created_at, b.updated_at,
	p.patient_number, p.full_name, p.gender, p.is_incomplete, p.is_urgent_admission,
	a.id, a.admission_date_time, a.department`

const bedFrom = ` FROM beds b
	LEFT JOIN patients p ON p.id = b.patient_id
	LEFT JOIN admissions a ON a.patient_id = b.patient_id AND a.status = 'Active'`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanBed(row scanner) (*Bed, error) {
	var (
		b             Bed
		patientID     sql.NullString
		updatedAt     sql.NullTime
		patientNumber sql.NullString
		fullName      sql.NullString
		gender        sql.NullString
		incomplete    sql.NullBool
		urgent        sql.NullBool
		admissionID   sql.NullString
		admittedAt    sql.NullTime
		department    sql.NullString
	)
	err := row.Scan(&b.ID, &b.BedNumber, &patientID, &b.CreatedAt, &updatedAt,
		&patientNumber, &fullName, &gender, &incomplete, &urgent,
		&admissionID, &admittedAt, &department)
	if err != nil {
		return nil, err
	}

	if updatedAt.Valid {
		b.UpdatedAt = &updatedAt.Time
	}
	b.Status = StatusAvailable
	if !patientID.Valid {
		return &b, nil
	}

	b.Status = StatusOccupied
	b.PatientID = &patientID.String
	b.Patient = &Occupant{
		ID:                patientID.String,
		PatientNumber:     patientNumber.String,
		FullName:          fullName.String,
		Gender:            gender.String,
		IsIncomplete:      incomplete.Bool,
		IsUrgentAdmission: urgent.Bool,
	}
	if admissionID.Valid {
		b.Patient.AdmissionID = &admissionID.String
	}
	if admittedAt.Valid {
		t := admittedAt.Time
		b.Patient.AdmissionDateTime = &t
	}
	if department.Valid {
		b.Patient.Department = &department.String
	}
	return &b, nil
}

func (r *Repository) List(ctx context.Context, q db.DBTX, status string) ([]Bed, error) {
	query := `SELECT ` + bedColumns + bedFrom
	switch status {
	case StatusAvailable:
		query += ` WHERE b.patient_id IS NULL`
	case StatusOccupied:
		query += ` WHERE b.patient_id IS NOT NULL`
	}
	query += ` ORDER BY b.bed_number`

	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list beds: %w", err)
	}
	defer rows.Close()

	beds := []Bed{}
	for rows.Next() {
		b, err := scanBed(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bed: %w", err)
		}
		beds = append(beds, *b)
	}
	return beds, rows.Err()
}

func (r *Repository) Get(ctx context.Context, q db.DBTX, id int64) (*Bed, error) {
	b, err := scanBed(q.QueryRowContext(ctx, `SELECT `+bedColumns+bedFrom+` WHERE b.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBedNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bed: %w", err)
	}
	return b, nil
}

// Seed creates beds HDU-01..HDU-<count> that do not exist yet and returns
// how many were added.
func (r *Repository) Seed(ctx context.Context, q db.DBTX, count int) (int, error) {
	added := 0
	for i := 1; i <= count; i++ {
		res, err := q.ExecContext(ctx, `
			INSERT INTO beds (bed_number) VALUES ($1)
			ON CONFLICT (bed_number) DO NOTHING
		`, fmt.Sprintf("HDU-%02d", i))
		if err != nil {
			return added, fmt.Errorf("failed to seed bed %d: %w", i, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			added++
		}
	}
	return added, nil
}

func (r *Repository) AssignCAS(ctx context.Context, q db.DBTX, id int64, patientID string) (bool, error) {
	res, err := q.ExecContext(ctx, `
		UPDATE beds SET patient_id = $1, updated_at = NOW()
		WHERE id = $2 AND patient_id IS NULL
	`, patientID, id)
	if db.IsUniqueViolation(err) {
		return false, patient.ErrAlreadyInBed
	}
	if err != nil {
		return false, fmt.Errorf("failed to assign bed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to assign bed: %w", err)
	}
	return n == 1, nil
}

func (r *Repository) ReleaseCAS(ctx context.Context, q db.DBTX, id int64, patientID string) (bool, error) {
	res, err := q.ExecContext(ctx, `
		UPDATE beds SET patient_id = NULL, updated_at = NOW()
		WHERE id = $1 AND patient_id = $2
	`, id, patientID)
	if err != nil {
		return false, fmt.Errorf("failed to release bed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to release bed: %w", err)
	}
	return n == 1, nil
}
