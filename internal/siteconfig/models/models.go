package models

import (
	"encoding/json"
	"strings"
	"time"
)

// DefaultKey is the record served by GET /api/site-config.
const DefaultKey = "site"

// Config is one persisted settings document.
type Config struct {
	Key       string
	Settings  json.RawMessage
	UpdatedBy string
	UpdatedAt time.Time
}

func (c *Config) Clone() *Config {
	out := *c
	out.Settings = append(json.RawMessage(nil), c.Settings...)
	return &out
}

// UpdateRequest is the body of PUT /admin/site-config.
type UpdateRequest struct {
	Key      string         `json:"key,omitempty" validate:"max=64"`
	Settings map[string]any `json:"settings" validate:"required"`
}

func (r *UpdateRequest) Normalize() {
	r.Key = strings.TrimSpace(r.Key)
	if r.Key == "" {
		r.Key = DefaultKey
	}
}

type Response struct {
	Key       string          `json:"key"`
	Settings  json.RawMessage `json:"settings"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

func (c *Config) Response() Response {
	return Response{Key: c.Key, Settings: c.Settings, UpdatedAt: c.UpdatedAt}
}
