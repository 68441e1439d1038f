package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, h *Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	h.Register(r)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestLiveness(t *testing.T) {
	rec := serve(t, New("test"), "/health/live")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"alive"}`, rec.Body.String())
}

func TestReadiness(t *testing.T) {
	t.Run("all checks up", func(t *testing.T) {
		h := New("test")
		h.RegisterCheck("postgres", func(context.Context) error { return nil })

		rec := serve(t, h, "/health/ready")
		require.Equal(t, http.StatusOK, rec.Code)

		var body ReadinessResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "ready", body.Status)
		assert.Equal(t, map[string]string{"postgres": "up"}, body.Checks)
	})

	t.Run("one check down", func(t *testing.T) {
		h := New("test")
		h.RegisterCheck("postgres", func(context.Context) error { return nil })
		h.RegisterCheck("redis", func(context.Context) error { return errors.New("connection refused") })

		rec := serve(t, h, "/health/ready")
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)

		var body ReadinessResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "not_ready", body.Status)
		assert.Equal(t, "down: connection refused", body.Checks["redis"])
	})

	t.Run("checks receive a deadline", func(t *testing.T) {
		h := New("test")
		var hadDeadline bool
		h.RegisterCheck("kafka", func(ctx context.Context) error {
			_, hadDeadline = ctx.Deadline()
			return nil
		})
		serve(t, h, "/health/ready")
		assert.True(t, hadDeadline)
	})
}

func TestStatus(t *testing.T) {
	rec := serve(t, New("staging"), "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var body StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "staging", body.Environment)
	assert.Equal(t, Version, body.Version)
}

func TestStatusListsDependencies(t *testing.T) {
	h := New("test")
	h.RegisterCheck("redis", func(context.Context) error { return nil })
	h.RegisterCheck("postgres", func(context.Context) error { return errors.New("not called") })
	h.RegisterCheck("redis", func(context.Context) error { return nil })

	rec := serve(t, h, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var body StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{"postgres", "redis"}, body.Dependencies)
}

func TestReadinessRunsChecksConcurrently(t *testing.T) {
	h := New("test")
	release := make(chan struct{})
	for _, name := range []string{"postgres", "redis", "kafka"} {
		h.RegisterCheck(name, func(ctx context.Context) error {
			select {
			case <-release:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}
	h.RegisterCheck("gate", func(context.Context) error {
		close(release)
		return nil
	})

	rec := serve(t, h, "/health/ready")
	assert.Equal(t, http.StatusOK, rec.Code)
}
