package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"caskhouse/internal/platform/config"
)

const connectTimeout = 10 * time.Second

// Client wraps a mongo client bound to one database.
type Client struct {
	client   *mongo.Client
	database string
}

// New connects and pings. It returns (nil, nil) when no URI is configured so
// callers can fall back to in-memory stores.
func New(ctx context.Context, cfg config.MongoConfig) (*Client, error) {
	if cfg.URI == "" {
		return nil, nil
	}
	if cfg.Database == "" {
		return nil, errors.New("mongo database not configured")
	}

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().
		ApplyURI(cfg.URI).
		SetAppName("caskhouse").
		SetServerSelectionTimeout(5*time.Second))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background()) //nolint:errcheck // best-effort cleanup on init failure
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return &Client{client: client, database: cfg.Database}, nil
}

// Wrap adopts an already connected client; used by integration tests.
func Wrap(client *mongo.Client, database string) *Client {
	return &Client{client: client, database: database}
}

func (c *Client) Database() *mongo.Database {
	return c.client.Database(c.database)
}

func (c *Client) Health(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errors.New("mongo not configured")
	}
	return c.client.Ping(ctx, readpref.Primary())
}

func (c *Client) Close(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Disconnect(ctx)
}
