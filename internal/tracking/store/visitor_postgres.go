package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	tracking "caskhouse/contracts/tracking"
	"caskhouse/internal/tracking/models"
	"caskhouse/pkg/platform/sentinel"
)

// PostgresVisitorStore persists visitor snapshots in the visitors table.
type PostgresVisitorStore struct {
	db *sql.DB
}

func NewPostgresVisitorStore(db *sql.DB) *PostgresVisitorStore {
	return &PostgresVisitorStore{db: db}
}

func (s *PostgresVisitorStore) Upsert(ctx context.Context, v *models.Visitor) error {
	interests, err := json.Marshal(nonNil(v.Interests))
	if err != nil {
		return fmt.Errorf("marshal interests: %w", err)
	}
	snapshot, err := json.Marshal(v.Snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	const query = `
		INSERT INTO visitors (
			visitor_id, session_id, first_visit, browser, browser_version, os, mobile, bot,
			ip_prefix, email, name, phone, engagement_score, page_views, interests, snapshot, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (visitor_id) DO UPDATE SET
			session_id       = EXCLUDED.session_id,
			first_visit      = LEAST(visitors.first_visit, EXCLUDED.first_visit),
			browser          = EXCLUDED.browser,
			browser_version  = EXCLUDED.browser_version,
			os               = EXCLUDED.os,
			mobile           = EXCLUDED.mobile,
			bot              = EXCLUDED.bot,
			ip_prefix        = EXCLUDED.ip_prefix,
			email            = EXCLUDED.email,
			name             = EXCLUDED.name,
			phone            = EXCLUDED.phone,
			engagement_score = EXCLUDED.engagement_score,
			page_views       = EXCLUDED.page_views,
			interests        = EXCLUDED.interests,
			snapshot         = EXCLUDED.snapshot,
			updated_at       = EXCLUDED.updated_at
	`
	_, err = s.db.ExecContext(ctx, query,
		v.VisitorID, v.SessionID, nullTime(v.FirstVisit),
		v.Device.Browser, v.Device.BrowserVersion, v.Device.OS, v.Device.Mobile, v.Device.Bot,
		v.IPPrefix, v.Email, v.Name, v.Phone, v.EngagementScore, v.PageViews,
		interests, snapshot, v.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert visitor: %w", err)
	}
	return nil
}

func (s *PostgresVisitorStore) Get(ctx context.Context, visitorID string) (*models.Visitor, error) {
	const query = `
		SELECT visitor_id, session_id, first_visit, browser, browser_version, os, mobile, bot,
		       ip_prefix, email, name, phone, engagement_score, page_views, interests, snapshot, updated_at
		FROM visitors
		WHERE visitor_id = $1
	`
	var (
		v          models.Visitor
		firstVisit sql.NullTime
		interests  []byte
		snapshot   []byte
	)
	err := s.db.QueryRowContext(ctx, query, visitorID).Scan(
		&v.VisitorID, &v.SessionID, &firstVisit,
		&v.Device.Browser, &v.Device.BrowserVersion, &v.Device.OS, &v.Device.Mobile, &v.Device.Bot,
		&v.IPPrefix, &v.Email, &v.Name, &v.Phone, &v.EngagementScore, &v.PageViews,
		&interests, &snapshot, &v.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select visitor: %w", err)
	}
	if firstVisit.Valid {
		v.FirstVisit = firstVisit.Time
	}
	if err := json.Unmarshal(interests, &v.Interests); err != nil {
		return nil, fmt.Errorf("unmarshal interests: %w", err)
	}
	var snap tracking.VisitorSnapshot
	if err := json.Unmarshal(snapshot, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	v.Snapshot = snap
	return &v, nil
}

func (s *PostgresVisitorStore) Delete(ctx context.Context, visitorID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM visitors WHERE visitor_id = $1`, visitorID)
	if err != nil {
		return 0, fmt.Errorf("delete visitor: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete visitor rows affected: %w", err)
	}
	return int(n), nil
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func earliest(a, b time.Time) time.Time {
	switch {
	case a.IsZero():
		return b
	case b.IsZero():
		return a
	case a.Before(b):
		return a
	}
	return b
}
