package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "caskhouse/pkg/domain-errors"
	"caskhouse/pkg/requestcontext"
)

type failingStore struct {
	err error
}

func (s *failingStore) Append(context.Context, Event) error { return s.err }

func (s *failingStore) ListByVisitor(context.Context, string) ([]Event, error) { return nil, nil }

// blockingStore holds Append until release is closed.
type blockingStore struct {
	*InMemoryStore
	release chan struct{}
}

func (s *blockingStore) Append(ctx context.Context, e Event) error {
	<-s.release
	return s.InMemoryStore.Append(ctx, e)
}

func TestPublisherEmitStoresEvent(t *testing.T) {
	pub := NewPublisher(NewInMemoryStore())

	err := pub.Emit(context.Background(), Event{VisitorID: "v_abc", Action: string(ActionConsentLogged), Method: "banner"})
	require.NoError(t, err)

	events, err := pub.List(context.Background(), "v_abc")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "consent_logged", events[0].Action)
	assert.Equal(t, "banner", events[0].Method)
}

func TestPublisherEnrichesFromContext(t *testing.T) {
	fixed := time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)
	pub := NewPublisher(NewInMemoryStore())

	ctx := requestcontext.WithRequestID(context.Background(), "req-7")
	ctx = requestcontext.WithAdminSubject(ctx, "ops@caskhouse.test")
	ctx = requestcontext.WithTime(ctx, fixed)
	require.NoError(t, pub.Emit(ctx, Event{VisitorID: "v_1", Action: string(ActionLeadViewed)}))

	events, err := pub.List(context.Background(), "v_1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, fixed, events[0].Timestamp)
	assert.Equal(t, "req-7", events[0].RequestID)
	assert.Equal(t, "ops@caskhouse.test", events[0].Actor)
}

func TestPublisherUsesClockWithoutPinnedTime(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	pub := NewPublisher(NewInMemoryStore(), WithClock(func() time.Time { return fixed }))

	require.NoError(t, pub.Emit(context.Background(), Event{VisitorID: "v_2", Action: "x"}))
	events, _ := pub.List(context.Background(), "v_2")
	require.Len(t, events, 1)
	assert.Equal(t, fixed, events[0].Timestamp)
}

func TestPublisherSyncPropagatesStoreError(t *testing.T) {
	pub := NewPublisher(&failingStore{err: errors.New("disk full")})

	err := pub.Emit(context.Background(), Event{Action: "x"})
	assert.EqualError(t, err, "disk full")
}

func TestPublisherAsyncDrainsOnClose(t *testing.T) {
	store := NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(16))

	for range 5 {
		require.NoError(t, pub.Emit(context.Background(), Event{VisitorID: "v_3", Action: "x"}))
	}
	pub.Close()

	events, err := store.ListByVisitor(context.Background(), "v_3")
	require.NoError(t, err)
	assert.Len(t, events, 5)

	err = pub.Emit(context.Background(), Event{VisitorID: "v_3"})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
}

func TestPublisherAsyncBufferFull(t *testing.T) {
	store := &blockingStore{InMemoryStore: NewInMemoryStore(), release: make(chan struct{})}
	pub := NewPublisher(store, WithAsyncBuffer(1))

	// The worker takes the first event and blocks in Append; the second fills
	// the buffer; the third has nowhere to go.
	require.NoError(t, pub.Emit(context.Background(), Event{VisitorID: "v_4"}))
	require.Eventually(t, func() bool { return len(pub.events) == 0 }, time.Second, time.Millisecond)
	require.NoError(t, pub.Emit(context.Background(), Event{VisitorID: "v_4"}))

	err := pub.Emit(context.Background(), Event{VisitorID: "v_4"})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))

	close(store.release)
	pub.Close()
	events, _ := store.ListByVisitor(context.Background(), "v_4")
	assert.Len(t, events, 2)
}
