package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"caskhouse/internal/tracking/models"
)

const capturePrefix = "caskhouse:capture:"

// RedisCaptureStore keeps captures as JSON strings with SET EX, plus a
// per-visitor index set so a visitor's captures can be listed and erased.
// Redis expiry replaces the cleanup sweep.
type RedisCaptureStore struct {
	client redis.UniversalClient
}

func NewRedisCaptureStore(client redis.UniversalClient) *RedisCaptureStore {
	return &RedisCaptureStore{client: client}
}

type captureDocument struct {
	VisitorID  string    `json:"visitorId"`
	FormType   string    `json:"formType"`
	FieldName  string    `json:"fieldName"`
	FieldValue string    `json:"fieldValue"`
	PageURL    string    `json:"pageUrl,omitempty"`
	CapturedAt time.Time `json:"capturedAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

func captureKey(c *models.CapturedField) string {
	return capturePrefix + c.Key()
}

func indexKey(visitorID string) string {
	return capturePrefix + "idx:" + visitorID
}

func (s *RedisCaptureStore) Put(ctx context.Context, c *models.CapturedField) error {
	ttl := c.ExpiresAt.Sub(c.CapturedAt)
	if ttl < time.Second {
		ttl = time.Second
	}
	payload, err := json.Marshal(captureDocument(*c))
	if err != nil {
		return fmt.Errorf("marshal capture: %w", err)
	}

	idx := indexKey(c.VisitorID)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, captureKey(c), payload, ttl)
		pipe.SAdd(ctx, idx, captureKey(c))
		pipe.Expire(ctx, idx, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("store capture: %w", err)
	}
	return nil
}

func (s *RedisCaptureStore) ListByVisitor(ctx context.Context, visitorID string) ([]*models.CapturedField, error) {
	idx := indexKey(visitorID)
	keys, err := s.client.SMembers(ctx, idx).Result()
	if err != nil {
		return nil, fmt.Errorf("list capture keys: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load captures: %w", err)
	}

	var (
		out   []*models.CapturedField
		stale []any
	)
	for i, raw := range values {
		str, ok := raw.(string)
		if !ok {
			stale = append(stale, keys[i])
			continue
		}
		var doc captureDocument
		if err := json.Unmarshal([]byte(str), &doc); err != nil {
			return nil, fmt.Errorf("unmarshal capture %s: %w", keys[i], err)
		}
		c := models.CapturedField(doc)
		out = append(out, &c)
	}
	if len(stale) > 0 {
		// Expired members; ignore failures, the next read retries.
		_ = s.client.SRem(ctx, idx, stale...).Err()
	}
	sortCaptures(out)
	return out, nil
}

func (s *RedisCaptureStore) DeleteByVisitor(ctx context.Context, visitorID string) (int, error) {
	idx := indexKey(visitorID)
	keys, err := s.client.SMembers(ctx, idx).Result()
	if err != nil {
		return 0, fmt.Errorf("list capture keys: %w", err)
	}

	var removed *redis.IntCmd
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(keys) > 0 {
			removed = pipe.Del(ctx, keys...)
		}
		pipe.Del(ctx, idx)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("delete captures: %w", err)
	}
	if removed == nil {
		return 0, nil
	}
	return int(removed.Val()), nil
}

// DeleteExpired is a no-op: keys carry their own TTL.
func (s *RedisCaptureStore) DeleteExpired(context.Context, time.Time) (int, error) {
	return 0, nil
}
