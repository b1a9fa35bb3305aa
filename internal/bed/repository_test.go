package bed

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/hdu-care/hdu-service/internal/patient"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var bedRowColumns = []string{
	"id", "bed_number", "patient_id", "created_at", "updated_at",
	"patient_number", "full_name", "gender", "is_incomplete", "is_urgent_admission",
	"admission_id", "admission_date_time", "department",
}

func TestRepositoryList_Occupied(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE b.patient_id IS NOT NULL ORDER BY b.bed_number`)).
		WillReturnRows(sqlmock.NewRows(bedRowColumns).
			AddRow(2, "HDU-02", "patient-1", now, nil, "PT-2026-0001", "Amina", "Female", false, true, "adm-1", now, "HDU"))

	beds, err := NewRepository().List(context.Background(), conn, StatusOccupied)
	require.NoError(t, err)
	require.Len(t, beds, 1)
	assert.Equal(t, StatusOccupied, beds[0].Status)
	require.NotNil(t, beds[0].Patient)
	assert.Equal(t, "PT-2026-0001", beds[0].Patient.PatientNumber)
	assert.True(t, beds[0].Patient.IsUrgentAdmission)
	assert.Equal(t, "adm-1", *beds[0].Patient.AdmissionID)
}

func TestRepositoryGet_Available(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE b.id = $1`)).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows(bedRowColumns).
			AddRow(1, "HDU-01", nil, time.Now(), nil, nil, nil, nil, nil, nil, nil, nil, nil))

	b, err := NewRepository().Get(context.Background(), conn, 1)
	require.NoError(t, err)
	assert.Equal(t, StatusAvailable, b.Status)
	assert.Nil(t, b.PatientID)
	assert.Nil(t, b.Patient)
}

func TestRepositoryGet_NotFound(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE b.id = $1`)).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows(bedRowColumns))

	_, err = NewRepository().Get(context.Background(), conn, 7)
	assert.True(t, errors.Is(err, ErrBedNotFound))
}

func TestRepositoryAssignCAS(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	cas := regexp.QuoteMeta(`WHERE id = $2 AND patient_id IS NULL`)
	mock.ExpectExec(cas).WithArgs("patient-1", 3).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(cas).WithArgs("patient-2", 3).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(cas).WithArgs("patient-1", 4).WillReturnError(&pq.Error{Code: "23505"})

	repo := NewRepository()
	ok, err := repo.AssignCAS(context.Background(), conn, 3, "patient-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.AssignCAS(context.Background(), conn, 3, "patient-2")
	require.NoError(t, err)
	assert.False(t, ok, "second claim must lose")

	_, err = repo.AssignCAS(context.Background(), conn, 4, "patient-1")
	assert.True(t, errors.Is(err, patient.ErrAlreadyInBed))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryReleaseCAS(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	mock.ExpectExec(regexp.QuoteMeta(`WHERE id = $1 AND patient_id = $2`)).
		WithArgs(3, "patient-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := NewRepository().ReleaseCAS(context.Background(), conn, 3, "patient-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRepositorySeed(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	insert := regexp.QuoteMeta(`INSERT INTO beds (bed_number)`)
	mock.ExpectExec(insert).WithArgs("HDU-01").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(insert).WithArgs("HDU-02").WillReturnResult(sqlmock.NewResult(0, 1))

	added, err := NewRepository().Seed(context.Background(), conn, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	assert.NoError(t, mock.ExpectationsWereMet())
}
