package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"caskhouse/internal/siteconfig/models"
	"caskhouse/pkg/platform/sentinel"
)

// PostgresStore persists settings documents in site_config.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, key string) (*models.Config, error) {
	var (
		c        models.Config
		settings []byte
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT key, settings, updated_by, updated_at FROM site_config WHERE key = $1`, key,
	).Scan(&c.Key, &settings, &c.UpdatedBy, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select site config: %w", err)
	}
	c.Settings = settings
	return &c, nil
}

func (s *PostgresStore) Put(ctx context.Context, c *models.Config) error {
	const query = `
		INSERT INTO site_config (key, settings, updated_by, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO UPDATE SET
			settings   = EXCLUDED.settings,
			updated_by = EXCLUDED.updated_by,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, c.Key, []byte(c.Settings), c.UpdatedBy, c.UpdatedAt); err != nil {
		return fmt.Errorf("upsert site config: %w", err)
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, c *models.Config) error {
	const query = `
		INSERT INTO site_config (key, settings, updated_by, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO NOTHING
	`
	res, err := s.db.ExecContext(ctx, query, c.Key, []byte(c.Settings), c.UpdatedBy, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert site config: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert site config rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrConflict
	}
	return nil
}
