package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	consent "caskhouse/contracts/consent"
	"caskhouse/internal/consentlog/models"
	"caskhouse/pkg/platform/sentinel"
)

// PostgresStore persists consent entries in consent_logs.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const uniqueViolation = "23505"

func (s *PostgresStore) Append(ctx context.Context, e *models.Entry) error {
	const query = `
		INSERT INTO consent_logs (
			id, visitor_id, necessary, analytics, marketing, functional,
			version, method, page_url, user_agent, ip_prefix, client_timestamp, received_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := s.db.ExecContext(ctx, query,
		e.ID, e.VisitorID, e.Necessary, e.Analytics, e.Marketing, e.Functional,
		e.Version, string(e.Method), e.PageURL, e.UserAgent, e.IPPrefix, e.ClientTimestamp, e.ReceivedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert consent log: %w", err)
	}
	return nil
}

// ListByVisitor returns the newest entries first.
func (s *PostgresStore) ListByVisitor(ctx context.Context, visitorID string, filter models.Filter) ([]*models.Entry, error) {
	const query = `
		SELECT id, visitor_id, necessary, analytics, marketing, functional,
		       version, method, page_url, user_agent, ip_prefix, client_timestamp, received_at
		FROM consent_logs
		WHERE visitor_id = $1 AND ($2::timestamptz IS NULL OR received_at >= $2)
		ORDER BY received_at DESC
		LIMIT $3
	`
	var since sql.NullTime
	if !filter.Since.IsZero() {
		since = sql.NullTime{Time: filter.Since, Valid: true}
	}

	rows, err := s.db.QueryContext(ctx, query, visitorID, since, filter.EffectiveLimit())
	if err != nil {
		return nil, fmt.Errorf("query consent logs: %w", err)
	}
	defer rows.Close()

	var out []*models.Entry
	for rows.Next() {
		var (
			e      models.Entry
			method string
		)
		if err := rows.Scan(
			&e.ID, &e.VisitorID, &e.Necessary, &e.Analytics, &e.Marketing, &e.Functional,
			&e.Version, &method, &e.PageURL, &e.UserAgent, &e.IPPrefix, &e.ClientTimestamp, &e.ReceivedAt,
		); err != nil {
			return nil, fmt.Errorf("scan consent log: %w", err)
		}
		e.Method = consent.Method(method)
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate consent logs: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) CountByVisitor(ctx context.Context, visitorID string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM consent_logs WHERE visitor_id = $1`, visitorID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count consent logs: %w", err)
	}
	return n, nil
}
