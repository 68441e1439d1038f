// Package consent keeps the visitor's cookie-consent decision: a versioned
// preferences record in durable storage mirrored into a cookie, a bounded
// audit trail, cookie clearing for declined categories, and consent-mode
// signals for third-party tags.
package consent

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	contract "caskhouse/contracts/consent"
	"caskhouse/internal/frontend/cookies"
	"caskhouse/internal/frontend/storage"
)

const (
	StorageKey      = "cookie_consent"
	AuditStorageKey = "cookie_consent_audit"
	CookieName      = "cookie_consent"
	CookieMaxAge    = 365 * 24 * time.Hour
	MaxAuditEntries = 50

	DefaultPollInterval = 5 * time.Second
)

type (
	Preferences = contract.Preferences
	Category    = contract.Category
	Method      = contract.Method
	Action      = contract.Action
)

// CookiePrefixes lists the cookie name prefixes cleared when a category is
// declined.
var CookiePrefixes = map[Category][]string{
	contract.CategoryAnalytics:  {"_ga", "_gid", "_gat", "_gcl_dc", "_hj", "_clck", "_clsk"},
	contract.CategoryMarketing:  {"_fbp", "_fbc", "_gcl_au", "fr", "IDE", "_uet", "li_"},
	contract.CategoryFunctional: {"lang_pref", "pref_", "intercom-", "crisp-"},
}

// AuditEntry is one consent decision in the local audit trail.
type AuditEntry struct {
	Action      Action      `json:"action"`
	Preferences Preferences `json:"preferences"`
	Timestamp   time.Time   `json:"timestamp"`
	Method      Method      `json:"method"`
}

// Partial carries the flags a caller wants to set; nil leaves the base value.
type Partial struct {
	Analytics  *bool
	Marketing  *bool
	Functional *bool
}

func AcceptAll() Partial {
	t := true
	return Partial{Analytics: &t, Marketing: &t, Functional: &t}
}

func RejectAll() Partial {
	f := false
	return Partial{Analytics: &f, Marketing: &f, Functional: &f}
}

// Only grants exactly the given categories and declines the rest.
func Only(categories ...Category) Partial {
	p := RejectAll()
	for _, c := range categories {
		t := true
		switch c {
		case contract.CategoryAnalytics:
			p.Analytics = &t
		case contract.CategoryMarketing:
			p.Marketing = &t
		case contract.CategoryFunctional:
			p.Functional = &t
		}
	}
	return p
}

func (p Partial) over(base Preferences) Preferences {
	if p.Analytics != nil {
		base.Analytics = *p.Analytics
	}
	if p.Marketing != nil {
		base.Marketing = *p.Marketing
	}
	if p.Functional != nil {
		base.Functional = *p.Functional
	}
	base.Necessary = true
	return base
}

// Reporter receives consent decisions and erasure requests. Both calls are
// best-effort.
type Reporter interface {
	LogConsent(ctx context.Context, req *contract.LogRequest) bool
	RequestErasure(ctx context.Context, visitorID string) bool
}

// SignalSink receives consent-mode signals ("granted" or "denied" per
// storage type), the way a tag manager's consent update does.
type SignalSink interface {
	UpdateConsent(signals map[string]string)
}

type SignalSinkFunc func(signals map[string]string)

func (f SignalSinkFunc) UpdateConsent(signals map[string]string) { f(signals) }

// Listener is notified with the current preferences after every change.
type Listener func(Preferences)

// Store is the consent record for one browser profile.
type Store struct {
	storage  storage.Store
	jar      cookies.Jar
	reporter Reporter
	sink     SignalSink
	logger   *slog.Logger
	now      func() time.Time

	userAgent string
	secure    bool
	pageURL   func() string

	// writeMu serializes commits; mu guards the fields below and is never
	// held while storage publishes change events.
	writeMu   sync.Mutex
	mu        sync.Mutex
	visitorID func() string
	listeners map[int]Listener
	nextID    int
	lastSeen  string
}

type Option func(*Store)

func WithReporter(r Reporter) Option {
	return func(s *Store) { s.reporter = r }
}

func WithSignalSink(sink SignalSink) Option {
	return func(s *Store) { s.sink = sink }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithUserAgent sets the user agent stamped on saved records.
func WithUserAgent(ua string) Option {
	return func(s *Store) { s.userAgent = ua }
}

// WithSecure marks the consent cookie Secure, for pages served over HTTPS.
func WithSecure(secure bool) Option {
	return func(s *Store) { s.secure = secure }
}

// WithPageURL sets the source of the current page URL sent with reports.
func WithPageURL(fn func() string) Option {
	return func(s *Store) { s.pageURL = fn }
}

func WithVisitorID(fn func() string) Option {
	return func(s *Store) { s.visitorID = fn }
}

func New(store storage.Store, jar cookies.Jar, opts ...Option) *Store {
	s := &Store{
		storage:   store,
		jar:       jar,
		logger:    slog.Default(),
		now:       time.Now,
		pageURL:   func() string { return "" },
		listeners: make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.lastSeen = s.readRaw()
	return s
}

// SetVisitorIDSource sets where reports take the visitor id from.
func (s *Store) SetVisitorIDSource(fn func() string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visitorID = fn
}

func (s *Store) currentVisitorID() string {
	s.mu.Lock()
	fn := s.visitorID
	s.mu.Unlock()
	if fn == nil {
		return ""
	}
	return fn()
}

// HasConsent reports whether a readable preferences record exists.
func (s *Store) HasConsent() bool {
	_, ok := s.GetConsent()
	return ok
}

// GetConsent returns the stored record. Unreadable storage and malformed
// records are logged and reported as absent.
func (s *Store) GetConsent() (*Preferences, bool) {
	return s.decode(s.readRaw())
}

// HasConsentFor reports whether category is granted. Without a record every
// category, necessary included, is false.
func (s *Store) HasConsentFor(category Category) bool {
	prefs, ok := s.GetConsent()
	if !ok {
		return false
	}
	return prefs.Allows(category)
}

// SaveConsent records a fresh decision merged over the defaults.
func (s *Store) SaveConsent(ctx context.Context, partial Partial, method Method) Preferences {
	prefs := s.stamp(partial.over(Preferences{}))
	action := contract.ActionDenied
	if prefs.AnyOptional() {
		action = contract.ActionGranted
	}
	s.commit(ctx, prefs, action, method)
	return prefs
}

// UpdateConsent merges partial over the existing record, or over the
// defaults when nothing is stored.
func (s *Store) UpdateConsent(ctx context.Context, partial Partial) Preferences {
	base := Preferences{}
	if existing, ok := s.GetConsent(); ok {
		base = *existing
	}
	prefs := s.stamp(partial.over(base))
	s.commit(ctx, prefs, contract.ActionUpdated, contract.MethodPreferences)
	return prefs
}

// WithdrawConsent declines every optional category, clears all tracking
// cookie families and asks the backend to erase the visitor's data.
func (s *Store) WithdrawConsent(ctx context.Context) Preferences {
	prefs := s.stamp(RejectAll().over(Preferences{}))
	s.commit(ctx, prefs, contract.ActionWithdrawn, contract.MethodPreferences)

	if s.reporter == nil {
		return prefs
	}
	id := s.currentVisitorID()
	if id == "" {
		s.logger.WarnContext(ctx, "no visitor id yet, erasure request skipped")
		return prefs
	}
	s.reporter.RequestErasure(ctx, id)
	return prefs
}

func (s *Store) stamp(p Preferences) Preferences {
	p.Necessary = true
	p.Timestamp = s.now().UTC()
	p.UserAgent = s.userAgent
	p.Version = contract.PreferencesVersion
	return p
}

func (s *Store) commit(ctx context.Context, prefs Preferences, action Action, method Method) {
	raw, err := json.Marshal(prefs)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to encode consent", "error", err)
		return
	}

	s.writeMu.Lock()
	s.mu.Lock()
	s.lastSeen = string(raw)
	s.mu.Unlock()

	if err := s.storage.Set(StorageKey, string(raw)); err != nil {
		s.logger.WarnContext(ctx, "failed to persist consent", "error", err)
	}
	s.jar.Set(&http.Cookie{
		Name:     CookieName,
		Value:    url.QueryEscape(string(raw)),
		Path:     "/",
		MaxAge:   int(CookieMaxAge / time.Second),
		SameSite: http.SameSiteStrictMode,
		Secure:   s.secure,
	})
	s.appendAudit(ctx, AuditEntry{
		Action:      action,
		Preferences: prefs,
		Timestamp:   prefs.Timestamp,
		Method:      method,
	})
	s.writeMu.Unlock()

	s.applySideEffects(ctx, prefs)
	s.notify(prefs)
	s.report(ctx, prefs, action, method)
}

// appendAudit must be called with writeMu held.
func (s *Store) appendAudit(ctx context.Context, entry AuditEntry) {
	entries := s.AuditLog()
	entries = append(entries, entry)
	if over := len(entries) - MaxAuditEntries; over > 0 {
		entries = entries[over:]
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to encode consent audit log", "error", err)
		return
	}
	if err := s.storage.Set(AuditStorageKey, string(raw)); err != nil {
		s.logger.WarnContext(ctx, "failed to persist consent audit log", "error", err)
	}
}

// AuditLog returns the stored audit trail, oldest first.
func (s *Store) AuditLog() []AuditEntry {
	raw, ok, err := s.storage.Get(AuditStorageKey)
	if err != nil {
		s.logger.Warn("failed to read consent audit log", "error", err)
		return nil
	}
	if !ok || raw == "" {
		return nil
	}
	var entries []AuditEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		s.logger.Warn("discarding malformed consent audit log", "error", err)
		return nil
	}
	return entries
}

func (s *Store) applySideEffects(ctx context.Context, prefs Preferences) {
	for _, category := range contract.OptionalCategories {
		if prefs.Allows(category) {
			continue
		}
		removed := 0
		for _, prefix := range CookiePrefixes[category] {
			removed += s.jar.DeleteByPrefix(prefix)
		}
		if removed > 0 {
			s.logger.DebugContext(ctx, "cleared declined cookies", "category", category, "removed", removed)
		}
	}

	if s.sink != nil {
		s.sink.UpdateConsent(Signals(prefs))
	}
}

// Signals maps preferences to consent-mode storage signals.
func Signals(p Preferences) map[string]string {
	state := func(granted bool) string {
		if granted {
			return "granted"
		}
		return "denied"
	}
	return map[string]string{
		"analytics_storage":       state(p.Analytics),
		"ad_storage":              state(p.Marketing),
		"ad_user_data":            state(p.Marketing),
		"ad_personalization":      state(p.Marketing),
		"functionality_storage":   state(p.Functional),
		"personalization_storage": state(p.Functional),
		"security_storage":        "granted",
	}
}

func (s *Store) report(ctx context.Context, prefs Preferences, action Action, method Method) {
	if s.reporter == nil {
		return
	}
	s.reporter.LogConsent(ctx, &contract.LogRequest{
		VisitorID:   s.currentVisitorID(),
		Preferences: prefs,
		Method:      method,
		Action:      action,
		Timestamp:   prefs.Timestamp,
		URL:         s.pageURL(),
		UserAgent:   s.userAgent,
	})
}

// OnChange registers l and returns a function that removes it.
func (s *Store) OnChange(l Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

func (s *Store) notify(prefs Preferences) {
	s.mu.Lock()
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	ls := make([]Listener, 0, len(ids))
	for _, id := range ids {
		ls = append(ls, s.listeners[id])
	}
	s.mu.Unlock()

	for _, l := range ls {
		l(prefs)
	}
}

// Watch follows changes made by other sessions sharing the storage, through
// storage change events and a poll every interval, until ctx is done. The
// last write wins; a removed or unreadable record is reported as defaults.
func (s *Store) Watch(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	unsubscribe := s.storage.Subscribe(func(c storage.Change) {
		if c.Key == StorageKey {
			s.refresh()
		}
	})
	defer unsubscribe()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.refresh()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Store) refresh() {
	raw := s.readRaw()
	s.mu.Lock()
	if raw == s.lastSeen {
		s.mu.Unlock()
		return
	}
	s.lastSeen = raw
	s.mu.Unlock()

	prefs, ok := s.decode(raw)
	if !ok {
		prefs = &Preferences{Necessary: true}
	}
	s.notify(*prefs)
}

func (s *Store) readRaw() string {
	raw, ok, err := s.storage.Get(StorageKey)
	if err != nil {
		s.logger.Warn("failed to read consent", "error", err)
		return ""
	}
	if !ok {
		return ""
	}
	return raw
}

func (s *Store) decode(raw string) (*Preferences, bool) {
	if raw == "" {
		return nil, false
	}
	var prefs Preferences
	if err := json.Unmarshal([]byte(raw), &prefs); err != nil {
		s.logger.Warn("discarding malformed consent record", "error", err)
		return nil, false
	}
	prefs.Necessary = true
	return &prefs, true
}
