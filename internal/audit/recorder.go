package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hdu-care/hdu-service/internal/db"
	"github.com/lib/pq"
)

// RecorderInterface is what services depend on.
type RecorderInterface interface {
	Record(ctx context.Context, q db.DBTX, e Entry) error
}

// Recorder writes audit rows through the caller's transaction so the log is
// atomic with the mutation it describes. A failed write must abort the
// caller's transaction.
type Recorder struct {
	now func() time.Time
}

func NewRecorder() *Recorder {
	return &Recorder{now: time.Now}
}

var _ RecorderInterface = (*Recorder)(nil)

func (r *Recorder) Record(ctx context.Context, q db.DBTX, e Entry) error {
	var oldValues, newValues interface{}

	switch e.Action {
	case ActionCreate, ActionAcknowledge:
		newValues = e.NewState
	case ActionUpdate:
		oldValues = e.OldState
		newValues = Diff(e.OldState, e.NewState)
	default:
		return fmt.Errorf("unknown audit action %q", e.Action)
	}

	oldJSON, err := marshalNullable(oldValues)
	if err != nil {
		return fmt.Errorf("failed to encode audit old values: %w", err)
	}
	newJSON, err := marshalNullable(newValues)
	if err != nil {
		return fmt.Errorf("failed to encode audit new values: %w", err)
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO audit_logs
		(id, user_id, action, table_name, record_id, patient_id, old_values, new_values, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		uuid.New().String(),
		nullString(e.ActorID),
		e.Action,
		e.TableName,
		e.RecordID,
		nullString(e.PatientID),
		oldJSON,
		newJSON,
		nullString(e.Description),
		r.now(),
	)
	if err != nil {
		return fmt.Errorf("failed to write audit log for %s/%s: %w", e.TableName, e.RecordID, err)
	}
	return nil
}

func marshalNullable(v interface{}) (interface{}, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case State:
		if t == nil {
			return nil, nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// DeleteForPatient erases every audit row about the patient or any of the
// given record ids.
func DeleteForPatient(ctx context.Context, q db.DBTX, patientID string, recordIDs []string) (int64, error) {
	ids := append([]string{patientID}, recordIDs...)
	result, err := q.ExecContext(ctx, `
		DELETE FROM audit_logs
		WHERE patient_id = $1 OR record_id = ANY($2)
	`, patientID, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("failed to delete audit logs: %w", err)
	}
	return result.RowsAffected()
}
