package testutil

import (
	"context"
	"sync"

	"github.com/hdu-care/hdu-service/internal/audit"
	"github.com/hdu-care/hdu-service/internal/db"
)

// InlineTx runs the callback directly with a nil DBTX. Services under test
// use mocked repositories that ignore the handle.
type InlineTx struct {
	mu    sync.Mutex
	Calls int
}

func (tx *InlineTx) InTx(ctx context.Context, fn func(q db.DBTX) error) error {
	tx.mu.Lock()
	tx.Calls++
	tx.mu.Unlock()
	return fn(nil)
}

// AuditRecorder captures audit entries in memory.
type AuditRecorder struct {
	mu      sync.Mutex
	Entries []audit.Entry
	Err     error
}

func (r *AuditRecorder) Record(ctx context.Context, q db.DBTX, e audit.Entry) error {
	if r.Err != nil {
		return r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Entries = append(r.Entries, e)
	return nil
}

// ByAction returns the captured entries with the given action and table.
func (r *AuditRecorder) ByAction(action, table string) []audit.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []audit.Entry
	for _, e := range r.Entries {
		if e.Action == action && e.TableName == table {
			out = append(out, e)
		}
	}
	return out
}
