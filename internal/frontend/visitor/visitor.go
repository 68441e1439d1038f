// Package visitor maintains the visitor identity and session record. A
// stable id is always kept (minimal mode); page, click, scroll and event
// tracking with periodic heartbeats runs only while analytics consent is
// granted.
package visitor

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	contract "caskhouse/contracts/consent"
	"caskhouse/contracts/tracking"
	"caskhouse/internal/frontend/consent"
	"caskhouse/internal/frontend/storage"
)

const (
	KeyVisitorID  = "visitor_id"
	KeyFirstVisit = "visitor_first_visit"

	DefaultHeartbeat = 30 * time.Second
)

// Record is the visitor record as transmitted to the backend.
type Record = tracking.VisitorSnapshot

// ConsentSource is the part of the consent store the tracker depends on.
type ConsentSource interface {
	HasConsentFor(category consent.Category) bool
	OnChange(l consent.Listener) func()
}

// Transmitter sends visitor data to the backend. Every call is best-effort.
type Transmitter interface {
	SendVisitor(ctx context.Context, snapshot *tracking.VisitorSnapshot) bool
	SendVisitorBeacon(snapshot *tracking.VisitorSnapshot) bool
	SendEvent(ctx context.Context, req *tracking.EventRequest) bool
	RequestErasure(ctx context.Context, visitorID string) bool
}

// AnalyticsSink receives tracked events alongside the backend, like a
// third-party analytics tag.
type AnalyticsSink interface {
	TrackEvent(category, action, label string, value *float64)
}

// Identification carries contact details volunteered by the visitor.
type Identification struct {
	Email string
	Name  string
	Phone string
}

type Option func(*Tracker)

func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

func WithHeartbeat(interval time.Duration) Option {
	return func(t *Tracker) {
		if interval > 0 {
			t.heartbeat = interval
		}
	}
}

func WithAnalyticsSink(sink AnalyticsSink) Option {
	return func(t *Tracker) { t.sink = sink }
}

// Tracker owns one visitor record. Its state is guarded by mu, which is
// never held across network calls or consent callbacks.
type Tracker struct {
	storage   storage.Store
	consent   ConsentSource
	tx        Transmitter
	sink      AnalyticsSink
	env       Environment
	logger    *slog.Logger
	now       func() time.Time
	heartbeat time.Duration

	mu          sync.Mutex
	initialized bool
	running     bool
	record      Record
	pageScroll  int
	pageClicks  int
	scrollBonus bool
	unsubscribe func()
	stopBeat    context.CancelFunc
	beatDone    chan struct{}
}

func New(store storage.Store, consentSource ConsentSource, tx Transmitter, env Environment, opts ...Option) *Tracker {
	t := &Tracker{
		storage:   store,
		consent:   consentSource,
		tx:        tx,
		env:       env,
		logger:    slog.Default(),
		now:       time.Now,
		heartbeat: DefaultHeartbeat,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Initialize establishes the visitor id and minimal mode, escalates to full
// tracking when analytics consent is present, and follows consent changes.
// Later calls are no-ops.
func (t *Tracker) Initialize(ctx context.Context) {
	t.mu.Lock()
	if t.initialized {
		t.mu.Unlock()
		return
	}
	t.initialized = true
	t.mu.Unlock()

	rec := t.newRecord(ctx)
	t.mu.Lock()
	t.record = rec
	t.mu.Unlock()

	t.logger.DebugContext(ctx, "visitor initialized", "visitor_id", t.VisitorID())

	if t.consent == nil {
		return
	}
	if t.consent.HasConsentFor(contract.CategoryAnalytics) {
		t.Start()
	}
	unsubscribe := t.consent.OnChange(func(p consent.Preferences) {
		if p.Analytics {
			t.Start()
		} else {
			t.Stop()
		}
	})
	t.mu.Lock()
	t.unsubscribe = unsubscribe
	t.mu.Unlock()
}

func (t *Tracker) newRecord(ctx context.Context) Record {
	now := t.now().UTC()
	fingerprint := Fingerprint(t.env)

	id, persisted := t.loadOrCreateID(ctx, fingerprint, now)
	firstVisit, returning := t.loadFirstVisit(ctx, now, persisted)

	return Record{
		VisitorID:    id,
		Fingerprint:  fingerprint,
		FirstVisit:   firstVisit,
		SessionID:    "s_" + uuid.NewString(),
		SessionStart: now,
		Device:       parseDevice(t.env),
		Language:     t.env.Language,
		Screen:       t.env.Screen,
		Timezone:     t.env.Timezone,
		Referrer:     attribute(t.env.ReferrerURL, t.env.LandingURL),
		LandingPage:  landingPath(t.env.LandingURL),
		Returning:    returning,
		LastActivity: now,
	}
}

// loadOrCreateID reuses the stored id. When storage is unavailable a fresh
// id is used for this session only.
func (t *Tracker) loadOrCreateID(ctx context.Context, fingerprint string, now time.Time) (string, bool) {
	id, ok, err := t.storage.Get(KeyVisitorID)
	if err != nil {
		t.logger.WarnContext(ctx, "visitor storage unavailable, using anonymous id", "error", err)
		return NewID(fingerprint, now), false
	}
	if ok && strings.HasPrefix(id, "v_") {
		return id, true
	}
	id = NewID(fingerprint, now)
	if err := t.storage.Set(KeyVisitorID, id); err != nil {
		t.logger.WarnContext(ctx, "failed to persist visitor id", "error", err)
		return id, false
	}
	return id, true
}

func (t *Tracker) loadFirstVisit(ctx context.Context, now time.Time, persist bool) (time.Time, bool) {
	raw, ok, err := t.storage.Get(KeyFirstVisit)
	if err == nil && ok {
		if first, perr := time.Parse(time.RFC3339Nano, raw); perr == nil {
			return first, true
		}
		t.logger.WarnContext(ctx, "discarding malformed first visit", "value", raw)
	}
	if persist {
		if err := t.storage.Set(KeyFirstVisit, now.Format(time.RFC3339Nano)); err != nil {
			t.logger.WarnContext(ctx, "failed to persist first visit", "error", err)
		}
	}
	return now, false
}

// Start enters full tracking. It is idempotent.
func (t *Tracker) Start() {
	t.mu.Lock()
	if t.running || !t.initialized || t.record.VisitorID == "" {
		t.mu.Unlock()
		return
	}
	t.running = true
	ctx, cancel := context.WithCancel(context.Background())
	t.stopBeat = cancel
	done := make(chan struct{})
	t.beatDone = done
	interval := t.heartbeat
	t.mu.Unlock()

	go t.runHeartbeat(ctx, interval, done)
	t.transmit(ctx, tracking.TriggerStart)
}

// Stop leaves full tracking. Requests already sent are not cancelled.
// It is idempotent.
func (t *Tracker) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.running = false
	cancel, done := t.stopBeat, t.beatDone
	t.stopBeat, t.beatDone = nil, nil
	t.mu.Unlock()

	cancel()
	<-done
}

// Running reports whether full tracking is active.
func (t *Tracker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

func (t *Tracker) runHeartbeat(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			t.transmit(ctx, tracking.TriggerHeartbeat)
		case <-ctx.Done():
			return
		}
	}
}

// TrackPageView closes out the current page and opens a new one.
func (t *Tracker) TrackPageView(ctx context.Context, path, title string) {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	now := t.now().UTC()
	t.finalizePage(now)
	t.record.Pages = append(t.record.Pages, tracking.PageVisit{Path: path, Title: title, EnteredAt: now})
	t.pageScroll, t.pageClicks, t.scrollBonus = 0, 0, false
	t.record.PageViews++
	t.addEngagement(ScorePageView)
	t.touch(now)
	t.mu.Unlock()

	t.transmit(ctx, tracking.TriggerPageView)
}

// finalizePage must be called with t.mu held.
func (t *Tracker) finalizePage(now time.Time) {
	if len(t.record.Pages) == 0 {
		return
	}
	last := &t.record.Pages[len(t.record.Pages)-1]
	last.DurationMS = now.Sub(last.EnteredAt).Milliseconds()
	last.ScrollDepth = t.pageScroll
	last.Clicks = t.pageClicks
}

// TrackEvent forwards an interaction to the analytics sink and the backend.
func (t *Tracker) TrackEvent(ctx context.Context, category, action, label string, value *float64) {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	now := t.now().UTC()
	t.touch(now)
	req := &tracking.EventRequest{
		VisitorID: t.record.VisitorID,
		SessionID: t.record.SessionID,
		Category:  category,
		Action:    action,
		Label:     label,
		Value:     value,
		PageURL:   t.currentPath(),
		Timestamp: now,
	}
	t.mu.Unlock()

	if t.sink != nil {
		t.sink.TrackEvent(category, action, label, value)
	}
	t.tx.SendEvent(ctx, req)
}

// HandleClick records a click and infers interests from the clicked text.
func (t *Tracker) HandleClick(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return
	}
	t.pageClicks++
	if t.addInterests(matchInterests(text)) {
		t.addEngagement(ScoreInterestClick)
	}
	t.touch(t.now().UTC())
}

// HandleScroll records the scroll depth of the current page in percent.
func (t *Tracker) HandleScroll(depth int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return
	}
	depth = min(max(depth, 0), 100)
	t.pageScroll = max(t.pageScroll, depth)
	if t.pageScroll >= DeepScrollPercentage && !t.scrollBonus {
		t.scrollBonus = true
		t.addEngagement(ScoreDeepScroll)
	}
	t.touch(t.now().UTC())
}

// HandleFieldFocus infers interests from a form field's name.
func (t *Tracker) HandleFieldFocus(fieldName string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return
	}
	if t.addInterests(matchInterests(fieldName)) {
		t.addEngagement(ScoreInterestField)
	}
	t.touch(t.now().UTC())
}

// IdentifyVisitor merges the non-empty contact fields into the record. It
// works in minimal mode; the record is only transmitted while tracking.
func (t *Tracker) IdentifyVisitor(ctx context.Context, id Identification) {
	t.mu.Lock()
	if v := strings.ToLower(strings.TrimSpace(id.Email)); v != "" {
		t.record.Email = v
	}
	if v := strings.TrimSpace(id.Name); v != "" {
		t.record.Name = v
	}
	if v := strings.TrimSpace(id.Phone); v != "" {
		t.record.Phone = v
	}
	t.addEngagement(ScoreIdentification)
	t.touch(t.now().UTC())
	running := t.running
	t.mu.Unlock()

	if running {
		t.transmit(ctx, tracking.TriggerIdentify)
	}
}

// Unload beacons the final snapshot, as a page does while it is closed.
func (t *Tracker) Unload() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	now := t.now().UTC()
	t.finalizePage(now)
	t.touch(now)
	snap := t.snapshot(tracking.TriggerUnload)
	t.mu.Unlock()

	t.tx.SendVisitorBeacon(&snap)
}

// Forget erases the visitor: tracking stops, local identity keys are
// removed and the backend is asked to delete the visitor's data. It reports
// whether the erasure request was sent.
func (t *Tracker) Forget(ctx context.Context) bool {
	t.Stop()

	t.mu.Lock()
	id := t.record.VisitorID
	t.record = Record{}
	t.pageScroll, t.pageClicks, t.scrollBonus = 0, 0, false
	t.mu.Unlock()

	for _, key := range []string{KeyVisitorID, KeyFirstVisit} {
		if err := t.storage.Remove(key); err != nil {
			t.logger.WarnContext(ctx, "failed to clear visitor key", "key", key, "error", err)
		}
	}
	if id == "" {
		return false
	}
	return t.tx.RequestErasure(ctx, id)
}

// Close stops tracking and detaches from the consent store.
func (t *Tracker) Close() {
	t.Stop()
	t.mu.Lock()
	unsubscribe := t.unsubscribe
	t.unsubscribe = nil
	t.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}

// VisitorID returns the current id, or "" before Initialize and after Forget.
func (t *Tracker) VisitorID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.record.VisitorID
}

// VisitorData returns a deep copy of the record.
func (t *Tracker) VisitorData() Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.record.Clone()
}

func (t *Tracker) transmit(ctx context.Context, trigger tracking.Trigger) {
	t.mu.Lock()
	if t.record.VisitorID == "" {
		t.mu.Unlock()
		return
	}
	t.touch(t.now().UTC())
	snap := t.snapshot(trigger)
	t.mu.Unlock()

	t.tx.SendVisitor(ctx, &snap)
}

// The helpers below must be called with t.mu held.

func (t *Tracker) snapshot(trigger tracking.Trigger) Record {
	snap := t.record.Clone()
	snap.Trigger = trigger
	return snap
}

func (t *Tracker) touch(now time.Time) {
	t.record.LastActivity = now
	if !t.record.SessionStart.IsZero() {
		t.record.TimeSpentMS = now.Sub(t.record.SessionStart).Milliseconds()
	}
}

func (t *Tracker) addEngagement(n int) {
	t.record.EngagementScore = min(t.record.EngagementScore+n, MaxEngagement)
}

// addInterests reports whether any interest matched, new or not.
func (t *Tracker) addInterests(interests []string) bool {
	for _, in := range interests {
		if !slices.Contains(t.record.Interests, in) {
			t.record.Interests = append(t.record.Interests, in)
		}
	}
	return len(interests) > 0
}

func (t *Tracker) currentPath() string {
	if n := len(t.record.Pages); n > 0 {
		return t.record.Pages[n-1].Path
	}
	return t.record.LandingPage
}
