package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"caskhouse/internal/audit/outbox"
	"caskhouse/internal/platform/database"
)

// PostgresStore persists events in audit_events. With an outbox attached,
// every event is also staged for Kafka in the same transaction.
type PostgresStore struct {
	db     *sql.DB
	outbox outbox.TxAppender
}

type PostgresOption func(*PostgresStore)

func WithOutbox(o outbox.TxAppender) PostgresOption {
	return func(s *PostgresStore) {
		s.outbox = o
	}
}

func NewPostgresStore(db *sql.DB, opts ...PostgresOption) *PostgresStore {
	s := &PostgresStore{db: db}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

const insertEvent = `
	INSERT INTO audit_events (id, timestamp, visitor_id, action, method, decision, reason, actor, request_id)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	id := uuid.New()
	args := []any{
		id,
		event.Timestamp,
		event.VisitorID,
		event.Action,
		event.Method,
		event.Decision,
		event.Reason,
		event.Actor,
		event.RequestID,
	}
	if s.outbox == nil {
		if _, err := s.db.ExecContext(ctx, insertEvent, args...); err != nil {
			return fmt.Errorf("insert audit event: %w", err)
		}
		return nil
	}

	payload, err := json.Marshal(newEnvelope(id, event))
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}
	aggregate := event.VisitorID
	if aggregate == "" {
		aggregate = event.Actor
	}

	entry := outbox.NewEntry(aggregate, event.Action, payload, event.Timestamp)
	return database.FromDB(s.db).WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, insertEvent, args...); err != nil {
			return fmt.Errorf("insert audit event: %w", err)
		}
		return s.outbox.AppendTx(ctx, tx, entry)
	})
}

// ListByVisitor returns events oldest first.
func (s *PostgresStore) ListByVisitor(ctx context.Context, visitorID string) ([]Event, error) {
	const query = `
		SELECT timestamp, visitor_id, action, method, decision, reason, actor, request_id
		FROM audit_events
		WHERE visitor_id = $1
		ORDER BY timestamp ASC
	`
	rows, err := s.db.QueryContext(ctx, query, visitorID)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.Timestamp, &e.VisitorID, &e.Action, &e.Method, &e.Decision, &e.Reason, &e.Actor, &e.RequestID); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
