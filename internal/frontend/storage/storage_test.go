package storage

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recorder struct {
	mu      sync.Mutex
	changes []Change
}

func (r *recorder) record(c Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

func (r *recorder) snapshot() []Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Change(nil), r.changes...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMemory(t *testing.T) {
	m := NewMemory()
	rec := &recorder{}
	unsubscribe := m.Subscribe(rec.record)

	_, ok, err := m.Get("visitor_id")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Set("visitor_id", "v_1"))
	require.NoError(t, m.Set("visitor_id", "v_1"))
	require.NoError(t, m.Set("cookie_consent", "{}"))
	require.NoError(t, m.Remove("visitor_id"))
	require.NoError(t, m.Remove("missing"))

	keys, err := m.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"cookie_consent"}, keys)

	want := []Change{
		{Key: "visitor_id", NewValue: "v_1"},
		{Key: "cookie_consent", NewValue: "{}"},
		{Key: "visitor_id", OldValue: "v_1", Removed: true},
	}
	if diff := cmp.Diff(want, rec.snapshot()); diff != "" {
		t.Fatalf("changes mismatch (-want +got):\n%s", diff)
	}

	unsubscribe()
	unsubscribe()
	require.NoError(t, m.Set("after", "x"))
	assert.Len(t, rec.snapshot(), 3)
}

func TestFilePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "site", "storage.json")

	f, err := OpenFile(path, discardLogger())
	require.NoError(t, err)
	require.NoError(t, f.Set("visitor_id", "v_abc"))
	require.NoError(t, f.Set("form_autosave_consent", "true"))
	require.NoError(t, f.Remove("form_autosave_consent"))
	require.NoError(t, f.Close())
	require.NoError(t, f.Close())

	_, _, err = f.Get("visitor_id")
	require.ErrorIs(t, err, ErrClosed)
	require.ErrorIs(t, f.Set("x", "y"), ErrClosed)

	reopened, err := OpenFile(path, discardLogger())
	require.NoError(t, err)
	defer reopened.Close()

	v, ok, err := reopened.Get("visitor_id")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v_abc", v)

	keys, err := reopened.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"visitor_id"}, keys)
}

func TestFilePublishesExternalWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage.json")

	tabA, err := OpenFile(path, discardLogger())
	require.NoError(t, err)
	defer tabA.Close()
	tabB, err := OpenFile(path, discardLogger())
	require.NoError(t, err)
	defer tabB.Close()

	rec := &recorder{}
	tabA.Subscribe(rec.record)

	require.NoError(t, tabB.Set("cookie_consent", `{"analytics":true}`))

	require.Eventually(t, func() bool {
		for _, c := range rec.snapshot() {
			if c.Key == "cookie_consent" && c.External && c.NewValue == `{"analytics":true}` {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	v, ok, err := tabA.Get("cookie_consent")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"analytics":true}`, v)
}

func TestOpenFileRecoversFromCorruptDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "storage.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	f, err := OpenFile(path, discardLogger())
	require.NoError(t, err)
	defer f.Close()

	keys, err := f.Keys()
	require.NoError(t, err)
	assert.Empty(t, keys)

	aside, err := filepath.Glob(filepath.Join(dir, "storage.json.corrupt-*"))
	require.NoError(t, err)
	require.Len(t, aside, 1)
	raw, err := os.ReadFile(aside[0])
	require.NoError(t, err)
	assert.Equal(t, "{not json", string(raw))

	require.NoError(t, f.Set("visitor_id", "v_1"))
	reopened, err := OpenFile(path, discardLogger())
	require.NoError(t, err)
	defer reopened.Close()
	v, ok, err := reopened.Get("visitor_id")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v_1", v)
}
