// Package app assembles the client SDK for one browser session: storage,
// cookie jar, backend client, consent store, visitor tracker and form
// capture, built once and passed around explicitly.
package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"caskhouse/internal/frontend/api"
	"caskhouse/internal/frontend/consent"
	"caskhouse/internal/frontend/cookies"
	"caskhouse/internal/frontend/formcapture"
	"caskhouse/internal/frontend/storage"
	"caskhouse/internal/frontend/visitor"
)

// Config describes the session's surroundings.
type Config struct {
	BaseURL     string
	StoragePath string
	Environment visitor.Environment

	HTTPClient   api.HTTPDoer
	Debounce     time.Duration
	Heartbeat    time.Duration
	PollInterval time.Duration
}

type Option func(*options)

type options struct {
	logger  *slog.Logger
	storage storage.Store
	jar     cookies.Jar
	sink    consent.SignalSink
	now     func() time.Time
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithStorage shares an existing store, like two tabs of one browser.
func WithStorage(st storage.Store) Option {
	return func(o *options) { o.storage = st }
}

func WithCookieJar(jar cookies.Jar) Option {
	return func(o *options) { o.jar = jar }
}

func WithSignalSink(sink consent.SignalSink) Option {
	return func(o *options) { o.sink = sink }
}

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// Session is the context object every client component hangs off.
type Session struct {
	Storage storage.Store
	Cookies cookies.Jar
	API     *api.Client
	Consent *consent.Store
	Visitor *visitor.Tracker
	Forms   *formcapture.Bridge

	logger       *slog.Logger
	pollInterval time.Duration
	closer       io.Closer

	mu        sync.Mutex
	page      string
	stopWatch context.CancelFunc
	watchDone chan struct{}
	started   bool
	closed    bool
}

func New(cfg Config, opts ...Option) (*Session, error) {
	o := options{logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Session{
		logger:       o.logger,
		pollInterval: cfg.PollInterval,
		page:         cfg.Environment.LandingURL,
	}

	switch {
	case o.storage != nil:
		s.Storage = o.storage
	case cfg.StoragePath != "":
		f, err := storage.OpenFile(cfg.StoragePath, o.logger)
		if err != nil {
			o.logger.Warn("durable storage unavailable, using memory",
				"path", cfg.StoragePath,
				"error", err,
			)
			s.Storage = storage.NewMemory()
			break
		}
		s.Storage, s.closer = f, f
	default:
		s.Storage = storage.NewMemory()
	}

	s.Cookies = o.jar
	if s.Cookies == nil {
		s.Cookies = cookies.NewMemory(cookies.WithClock(o.now))
	}

	s.API = api.New(cfg.BaseURL,
		api.WithHTTPClient(cfg.HTTPClient),
		api.WithLogger(o.logger),
		api.WithUserAgent(cfg.Environment.UserAgent),
	)

	s.Consent = consent.New(s.Storage, s.Cookies,
		consent.WithReporter(erasingReporter{Client: s.API, session: s}),
		consent.WithSignalSink(o.sink),
		consent.WithLogger(o.logger),
		consent.WithClock(o.now),
		consent.WithUserAgent(cfg.Environment.UserAgent),
		consent.WithSecure(isHTTPS(cfg.Environment.LandingURL)),
		consent.WithPageURL(s.PageURL),
	)

	s.Visitor = visitor.New(s.Storage, s.Consent, s.API, cfg.Environment,
		visitor.WithLogger(o.logger),
		visitor.WithClock(o.now),
		visitor.WithHeartbeat(cfg.Heartbeat),
	)
	s.Consent.SetVisitorIDSource(s.Visitor.VisitorID)

	s.Forms = formcapture.New(s.Storage, s.Visitor, s.API,
		formcapture.WithDebounce(cfg.Debounce),
		formcapture.WithLogger(o.logger),
		formcapture.WithClock(o.now),
		formcapture.WithPageURL(s.PageURL),
	)
	return s, nil
}

// erasingReporter routes consent withdrawal through the tracker so the
// local identity is dropped along with the backend erasure request.
type erasingReporter struct {
	*api.Client
	session *Session
}

func (r erasingReporter) RequestErasure(ctx context.Context, visitorID string) bool {
	if v := r.session.Visitor; v != nil && v.VisitorID() == visitorID {
		return v.Forget(ctx)
	}
	return r.Client.RequestErasure(ctx, visitorID)
}

func isHTTPS(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.Scheme == "https"
}

// Start initializes the visitor and follows consent changes made by other
// sessions sharing the storage. Later calls are no-ops.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.closed {
		s.mu.Unlock()
		return
	}
	s.started = true
	watchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.stopWatch = cancel
	s.watchDone = make(chan struct{})
	done := s.watchDone
	s.mu.Unlock()

	s.Visitor.Initialize(ctx)

	go func() {
		defer close(done)
		if err := s.Consent.Watch(watchCtx, s.pollInterval); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn("consent watch stopped", "error", err)
		}
	}()
}

// Navigate moves the session to a new page.
func (s *Session) Navigate(ctx context.Context, pageURL, title string) {
	s.mu.Lock()
	s.page = pageURL
	s.mu.Unlock()

	path := pageURL
	if u, err := url.Parse(pageURL); err == nil && u.Path != "" {
		path = u.Path
	}
	s.Visitor.TrackPageView(ctx, path, title)
}

// PageURL returns the URL of the current page.
func (s *Session) PageURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page
}

// Close unloads the page: the final visitor snapshot is beaconed, pending
// captures are cancelled and in-flight requests drained.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	cancel, done := s.stopWatch, s.watchDone
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	s.Visitor.Unload()
	s.Visitor.Close()
	s.Forms.Close()
	s.API.Close()

	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}
