package app

import (
	"time"

	"github.com/google/uuid"

	"ev-go/internal/vaulterr"
)

// Operation tracks one CLI invocation. Its ID correlates every log line the
// invocation writes.
type Operation struct {
	ID        string
	Name      string
	StartedAt time.Time
	Status    string // "running", "success" or the error code
}

// NewOperation starts an operation with a fresh random id.
func NewOperation(name string, now time.Time) *Operation {
	return &Operation{
		ID:        uuid.NewString(),
		Name:      name,
		StartedAt: now,
		Status:    "running",
	}
}

// Finish records the outcome. A nil err is success; otherwise the status is
// the stable code of err's kind.
func (op *Operation) Finish(err error) {
	if err == nil {
		op.Status = "success"
		return
	}
	op.Status = vaulterr.KindOf(err).Code()
}

// Done reports whether Finish has been called.
func (op *Operation) Done() bool {
	return op.Status != "running"
}
