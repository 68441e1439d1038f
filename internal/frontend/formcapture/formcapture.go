// Package formcapture sends in-progress form input to the backend, one
// debounced capture per field, when the visitor has enabled auto-save.
package formcapture

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"caskhouse/contracts/tracking"
	"caskhouse/internal/frontend/storage"
	"caskhouse/internal/frontend/visitor"
)

const (
	AutoSaveKey     = "form_autosave_consent"
	DefaultDebounce = time.Second
)

// Identity resolves the visitor a capture belongs to.
type Identity interface {
	VisitorID() string
	IdentifyVisitor(ctx context.Context, id visitor.Identification)
}

type Sender interface {
	CaptureField(ctx context.Context, req *tracking.CaptureFieldRequest) bool
}

type Option func(*Bridge)

func WithDebounce(d time.Duration) Option {
	return func(b *Bridge) {
		if d > 0 {
			b.debounce = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(b *Bridge) {
		if logger != nil {
			b.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(b *Bridge) {
		if now != nil {
			b.now = now
		}
	}
}

// WithPageURL sets the source of the page URL attached to captures.
func WithPageURL(fn func() string) Option {
	return func(b *Bridge) {
		if fn != nil {
			b.pageURL = fn
		}
	}
}

type pending struct {
	timer *time.Timer
	gen   uint64
}

// Bridge schedules field captures. Each form field has its own timer; a new
// change cancels and replaces the field's pending capture.
type Bridge struct {
	storage  storage.Store
	identity Identity
	sender   Sender
	logger   *slog.Logger
	now      func() time.Time
	pageURL  func() string
	debounce time.Duration

	mu      sync.Mutex
	forms   map[string]map[string]struct{}
	timers  map[string]*pending
	gen     uint64
	anonID  string
	closed  bool
	flights sync.WaitGroup
}

func New(store storage.Store, identity Identity, sender Sender, opts ...Option) *Bridge {
	b := &Bridge{
		storage:  store,
		identity: identity,
		sender:   sender,
		logger:   slog.Default(),
		now:      time.Now,
		pageURL:  func() string { return "" },
		debounce: DefaultDebounce,
		forms:    make(map[string]map[string]struct{}),
		timers:   make(map[string]*pending),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Register declares the fields of formType that are captured.
func (b *Bridge) Register(formType string, fields ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.forms[formType]
	if !ok {
		set = make(map[string]struct{}, len(fields))
		b.forms[formType] = set
	}
	for _, f := range fields {
		set[f] = struct{}{}
	}
}

// AutoSave reports the persisted auto-save flag. Unreadable storage reads
// as disabled.
func (b *Bridge) AutoSave() bool {
	v, ok, err := b.storage.Get(AutoSaveKey)
	if err != nil {
		b.logger.Warn("failed to read auto-save flag", "error", err)
		return false
	}
	return ok && v == "true"
}

// SetAutoSave persists the flag. Disabling cancels every pending capture.
func (b *Bridge) SetAutoSave(enabled bool) error {
	value := "false"
	if enabled {
		value = "true"
	}
	err := b.storage.Set(AutoSaveKey, value)
	if !enabled {
		b.cancelAll()
	}
	return err
}

// Change records a new value for a registered field and (re)starts its timer.
func (b *Bridge) Change(formType, field, value string) {
	key := formType + ":" + field
	blank := strings.TrimSpace(value) == ""

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	if _, ok := b.forms[formType][field]; !ok {
		return
	}
	b.cancelLocked(key)
	if blank || !b.AutoSave() {
		return
	}

	b.gen++
	gen := b.gen
	b.timers[key] = &pending{
		gen: gen,
		timer: time.AfterFunc(b.debounce, func() {
			b.fire(key, gen, formType, field, value)
		}),
	}
}

// Pending returns the number of scheduled captures.
func (b *Bridge) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.timers)
}

func (b *Bridge) fire(key string, gen uint64, formType, field, value string) {
	b.mu.Lock()
	p, ok := b.timers[key]
	if !ok || p.gen != gen || b.closed {
		b.mu.Unlock()
		return
	}
	delete(b.timers, key)
	b.flights.Add(1)
	b.mu.Unlock()
	defer b.flights.Done()

	if !b.AutoSave() {
		b.logger.Debug("auto-save revoked, capture dropped", "form_type", formType, "field", field)
		return
	}

	ctx := context.Background()
	req := &tracking.CaptureFieldRequest{
		VisitorID:  b.visitorID(),
		FieldName:  field,
		FieldValue: value,
		FormType:   formType,
		Timestamp:  b.now().UTC(),
		PageURL:    b.pageURL(),
	}
	if !b.sender.CaptureField(ctx, req) {
		b.logger.Warn("field capture not sent", "form_type", formType, "field", field)
	}

	if b.identity == nil {
		return
	}
	switch field {
	case "email":
		b.identity.IdentifyVisitor(ctx, visitor.Identification{Email: value})
	case "name":
		b.identity.IdentifyVisitor(ctx, visitor.Identification{Name: value})
	}
}

func (b *Bridge) visitorID() string {
	if b.identity != nil {
		if id := b.identity.VisitorID(); id != "" {
			return id
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.anonID == "" {
		b.anonID = "anon_" + uuid.NewString()
	}
	return b.anonID
}

// cancelLocked must be called with b.mu held.
func (b *Bridge) cancelLocked(key string) {
	if p, ok := b.timers[key]; ok {
		p.timer.Stop()
		delete(b.timers, key)
	}
}

func (b *Bridge) cancelAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for key := range b.timers {
		b.cancelLocked(key)
	}
}

// Close cancels pending captures and waits for captures being sent.
func (b *Bridge) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.cancelAll()
	b.flights.Wait()
}
