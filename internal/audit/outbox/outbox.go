// Package outbox stages audit events for delivery to Kafka. Events are
// written to the audit_outbox table in the same transaction as the audit
// record and shipped by the worker; delivery is at least once.
package outbox

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

const DefaultTopic = "caskhouse.audit.events"

// Entry is one staged event.
type Entry struct {
	ID          uuid.UUID
	AggregateID string // visitor id, or the admin actor for operator actions
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

func (e *Entry) IsPending() bool {
	return e.ProcessedAt == nil
}

func NewEntry(aggregateID, eventType string, payload []byte, now time.Time) *Entry {
	return &Entry{
		ID:          uuid.New(),
		AggregateID: aggregateID,
		EventType:   eventType,
		Payload:     payload,
		CreatedAt:   now,
	}
}

// Store is the worker's view of the outbox. Implementations must be safe for
// concurrent use.
type Store interface {
	Append(ctx context.Context, entry *Entry) error
	// FetchUnprocessed returns up to limit pending entries, oldest first.
	FetchUnprocessed(ctx context.Context, limit int) ([]*Entry, error)
	MarkProcessed(ctx context.Context, id uuid.UUID, processedAt time.Time) error
	CountPending(ctx context.Context) (int64, error)
	DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
}

// TxAppender writes an entry inside a caller's transaction.
type TxAppender interface {
	AppendTx(ctx context.Context, tx *sql.Tx, entry *Entry) error
}

// Pruner adapts a Store to the cleanup worker: processed entries older than
// Retention are deleted on each sweep.
type Pruner struct {
	Store     Store
	Retention time.Duration
}

func (p Pruner) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	n, err := p.Store.DeleteProcessedBefore(ctx, now.Add(-p.Retention))
	return int(n), err
}
