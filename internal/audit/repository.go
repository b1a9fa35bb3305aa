package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hdu-care/hdu-service/internal/db"
)

// Repository reads audit history.
type Repository struct {
	db db.DBTX
}

func NewRepository(q db.DBTX) *Repository {
	return &Repository{db: q}
}

// ListForPatient returns audit rows about a patient and its dependents,
// newest first, with the total count.
func (r *Repository) ListForPatient(ctx context.Context, patientID string, limit, offset int) ([]Log, int, error) {
	var total int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM audit_logs WHERE patient_id = $1 OR record_id = $2
	`, patientID, patientID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count audit logs: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT a.id, a.user_id, u.full_name, a.action, a.table_name, a.record_id, a.patient_id,
		       a.old_values, a.new_values, a.description, a.created_at
		FROM audit_logs a
		LEFT JOIN users u ON u.id = a.user_id
		WHERE a.patient_id = $1 OR a.record_id = $2
		ORDER BY a.created_at DESC
		LIMIT $3 OFFSET $4
	`, patientID, patientID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query audit logs: %w", err)
	}
	defer rows.Close()

	logs := []Log{}
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, 0, err
		}
		logs = append(logs, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating audit logs: %w", err)
	}
	return logs, total, nil
}

func scanLog(rows *sql.Rows) (*Log, error) {
	var l Log
	var userID, userName, patientID, description sql.NullString
	var oldRaw, newRaw []byte

	err := rows.Scan(
		&l.ID,
		&userID,
		&userName,
		&l.Action,
		&l.TableName,
		&l.RecordID,
		&patientID,
		&oldRaw,
		&newRaw,
		&description,
		&l.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan audit log: %w", err)
	}

	if userID.Valid {
		l.UserID = &userID.String
	}
	if userName.Valid {
		l.UserName = &userName.String
	}
	if patientID.Valid {
		l.PatientID = &patientID.String
	}
	l.Description = description.String

	if len(oldRaw) > 0 {
		if err := json.Unmarshal(oldRaw, &l.OldValues); err != nil {
			return nil, fmt.Errorf("failed to decode audit old values: %w", err)
		}
	}
	if len(newRaw) > 0 {
		if err := json.Unmarshal(newRaw, &l.NewValues); err != nil {
			return nil, fmt.Errorf("failed to decode audit new values: %w", err)
		}
	}
	return &l, nil
}
