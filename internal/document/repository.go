package document

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hdu-care/hdu-service/internal/apperr"
	"github.com/hdu-care/hdu-service/internal/db"
)

var (
	ErrDocumentNotFound = apperr.NotFound("document not found")
	ErrPatientNotFound  = apperr.NotFound("patient not found")
)

// RepositoryInterface defines the contract for patient_documents access
type RepositoryInterface interface {
	PatientExists(ctx context.Context, q db.DBTX, patientID string) (bool, error)
	Create(ctx context.Context, q db.DBTX, d *Document) error
	ListByPatient(ctx context.Context, q db.DBTX, patientID string) ([]Document, error)
	Get(ctx context.Context, q db.DBTX, id string) (*Document, error)
	Delete(ctx context.Context, q db.DBTX, id string) error
	DeleteForPatient(ctx context.Context, q db.DBTX, patientID string) ([]Document, error)
}

type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

var _ RepositoryInterface = (*Repository)(nil)

const documentColumns = `id, patient_id, document_type, file_name, original_name, storage_key,
	mime_type, size_bytes, uploaded_by, uploaded_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row scanner) (*Document, error) {
	var d Document
	var uploadedBy sql.NullString
	err := row.Scan(&d.ID, &d.PatientID, &d.DocumentType, &d.FileName, &d.OriginalName, &d.StorageKey,
		&d.MimeType, &d.SizeBytes, &uploadedBy, &d.UploadedAt)
	if err != nil {
		return nil, err
	}
	if uploadedBy.Valid {
		d.UploadedBy = &uploadedBy.String
	}
	return &d, nil
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

func (r *Repository) Create(ctx context.Context, q db.DBTX, d *Document) error {
	err := q.QueryRowContext(ctx, `
		INSERT INTO patient_documents (id, patient_id, document_type, file_name, original_name,
			storage_key, mime_type, size_bytes, uploaded_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING uploaded_at`,
		d.ID, d.PatientID, d.DocumentType, d.FileName, d.OriginalName,
		d.StorageKey, d.MimeType, d.SizeBytes, d.UploadedBy,
	).Scan(&d.UploadedAt)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

func (r *Repository) ListByPatient(ctx context.Context, q db.DBTX, patientID string) ([]Document, error) {
	docs, err := r.query(ctx, q, `SELECT `+documentColumns+` FROM patient_documents
		WHERE patient_id = $1 ORDER BY uploaded_at DESC`, patientID)
	if db.IsInvalidTextRepresentation(err) {
		return []Document{}, nil
	}
	return docs, err
}

func (r *Repository) Get(ctx context.Context, q db.DBTX, id string) (*Document, error) {
	row := q.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM patient_documents WHERE id = $1`, id)
	d, err := scanDocument(row)
	if db.IsNotFound(err) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return d, nil
}

func (r *Repository) Delete(ctx context.Context, q db.DBTX, id string) error {
	res, err := q.ExecContext(ctx, `DELETE FROM patient_documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

// DeleteForPatient removes every document row of the patient and returns
// what was removed so the caller can drop the files after commit.
func (r *Repository) DeleteForPatient(ctx context.Context, q db.DBTX, patientID string) ([]Document, error) {
	return r.query(ctx, q, `DELETE FROM patient_documents WHERE patient_id = $1
		RETURNING `+documentColumns, patientID)
}

func (r *Repository) query(ctx context.Context, q db.DBTX, query string, args ...interface{}) ([]Document, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	docs := []Document{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating documents: %w", err)
	}
	return docs, nil
}
