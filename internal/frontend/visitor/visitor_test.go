package visitor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/goleak"

	contract "caskhouse/contracts/consent"
	"caskhouse/contracts/tracking"
	"caskhouse/internal/frontend/consent"
	"caskhouse/internal/frontend/cookies"
	"caskhouse/internal/frontend/storage"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"

var testEnv = Environment{
	UserAgent:   chromeUA,
	Language:    "en-GB",
	Screen:      "1920x1080",
	Timezone:    "Europe/London",
	ReferrerURL: "https://www.google.com/search?q=whisky+cask",
	LandingURL:  "https://caskhouse.test/casks?ref=x",
}

type fakeTransmitter struct {
	mu       sync.Mutex
	visitors []tracking.VisitorSnapshot
	beacons  []tracking.VisitorSnapshot
	events   []tracking.EventRequest
	erasures []string
}

func (f *fakeTransmitter) SendVisitor(_ context.Context, s *tracking.VisitorSnapshot) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visitors = append(f.visitors, *s)
	return true
}

func (f *fakeTransmitter) SendVisitorBeacon(s *tracking.VisitorSnapshot) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.beacons = append(f.beacons, *s)
	return true
}

func (f *fakeTransmitter) SendEvent(_ context.Context, req *tracking.EventRequest) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, *req)
	return true
}

func (f *fakeTransmitter) RequestErasure(_ context.Context, id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.erasures = append(f.erasures, id)
	return true
}

func (f *fakeTransmitter) triggers() []tracking.Trigger {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]tracking.Trigger, 0, len(f.visitors))
	for _, v := range f.visitors {
		out = append(out, v.Trigger)
	}
	return out
}

type sinkFunc func(category, action, label string, value *float64)

func (f sinkFunc) TrackEvent(category, action, label string, value *float64) {
	f(category, action, label, value)
}

type brokenStorage struct{ storage.Store }

func (brokenStorage) Get(string) (string, bool, error) { return "", false, errors.New("disabled") }
func (brokenStorage) Set(string, string) error { return errors.New("disabled") }
func (brokenStorage) Remove(string) error { return errors.New("disabled") }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type VisitorSuite struct {
	suite.Suite
	storage *storage.Memory
	consent *consent.Store
	tx      *fakeTransmitter
	now     time.Time
	tracker *Tracker
}

func TestVisitorSuite(t *testing.T) {
	suite.Run(t, new(VisitorSuite))
}

func (s *VisitorSuite) SetupTest() {
	s.storage = storage.NewMemory()
	s.consent = consent.New(s.storage, cookies.NewMemory(), consent.WithLogger(discardLogger()))
	s.tx = &fakeTransmitter{}
	s.now = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	s.tracker = s.newTracker(s.storage)
}

func (s *VisitorSuite) TearDownTest() {
	s.tracker.Close()
}

func (s *VisitorSuite) newTracker(st storage.Store, opts ...Option) *Tracker {
	base := []Option{
		WithLogger(discardLogger()),
		WithClock(func() time.Time { return s.now }),
		WithHeartbeat(time.Hour),
	}
	return New(st, s.consent, s.tx, testEnv, append(base, opts...)...)
}

func (s *VisitorSuite) grantAnalytics() {
	s.consent.SaveConsent(context.Background(), consent.Only(contract.CategoryAnalytics), contract.MethodBanner)
}

func (s *VisitorSuite) TestVisitorIDFormatAndPersistence() {
	s.tracker.Initialize(context.Background())
	id := s.tracker.VisitorID()
	s.Regexp(`^v_[0-9a-f]{16}_[0-9a-z]+$`, id)

	stored, ok, err := s.storage.Get(KeyVisitorID)
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(id, stored)
	s.False(s.tracker.VisitorData().Returning)
}

func (s *VisitorSuite) TestSecondSessionReusesVisitorID() {
	s.tracker.Initialize(context.Background())
	first := s.tracker.VisitorData()

	s.now = s.now.Add(72 * time.Hour)
	next := s.newTracker(s.storage)
	defer next.Close()
	next.Initialize(context.Background())

	s.Equal(first.VisitorID, next.VisitorID())
	data := next.VisitorData()
	s.True(data.Returning)
	s.Equal(first.FirstVisit, data.FirstVisit)
	s.NotEqual(first.SessionID, data.SessionID)
}

func (s *VisitorSuite) TestUnavailableStorageUsesSessionOnlyID() {
	tr := s.newTracker(brokenStorage{s.storage})
	defer tr.Close()
	tr.Initialize(context.Background())

	s.Regexp(`^v_[0-9a-f]{16}_`, tr.VisitorID())
	_, ok, _ := s.storage.Get(KeyVisitorID)
	s.False(ok)
}

func (s *VisitorSuite) TestMinimalModeWithoutConsent() {
	s.tracker.Initialize(context.Background())
	s.False(s.tracker.Running())

	s.tracker.TrackPageView(context.Background(), "/about", "About")
	s.tracker.HandleClick("Invest in a cask")
	s.tracker.HandleScroll(100)
	s.tracker.TrackEvent(context.Background(), "cta", "click", "hero", nil)
	s.tracker.Unload()

	data := s.tracker.VisitorData()
	s.Zero(data.PageViews)
	s.Empty(data.Interests)
	s.Zero(data.EngagementScore)
	s.Empty(s.tx.triggers())
	s.Empty(s.tx.events)
	s.Empty(s.tx.beacons)

	s.tracker.IdentifyVisitor(context.Background(), Identification{Email: " Lead@Example.com "})
	data = s.tracker.VisitorData()
	s.Equal("lead@example.com", data.Email)
	s.Equal(ScoreIdentification, data.EngagementScore)
	s.Empty(s.tx.triggers(), "identification is not transmitted in minimal mode")
}

func (s *VisitorSuite) TestExistingConsentStartsTracking() {
	s.grantAnalytics()
	s.tracker.Initialize(context.Background())
	s.True(s.tracker.Running())
	s.Equal([]tracking.Trigger{tracking.TriggerStart}, s.tx.triggers())
}

func (s *VisitorSuite) TestConsentChangesToggleTracking() {
	s.tracker.Initialize(context.Background())
	s.False(s.tracker.Running())

	s.grantAnalytics()
	s.True(s.tracker.Running())

	s.consent.SaveConsent(context.Background(), consent.RejectAll(), contract.MethodPreferences)
	s.False(s.tracker.Running())
}

func (s *VisitorSuite) TestStartStopIdempotent() {
	s.tracker.Initialize(context.Background())
	s.tracker.Start()
	s.tracker.Start()
	s.True(s.tracker.Running())
	s.Len(s.tx.triggers(), 1)

	s.tracker.Stop()
	s.tracker.Stop()
	s.False(s.tracker.Running())
}

func (s *VisitorSuite) TestStartBeforeInitializeIsIgnored() {
	s.tracker.Start()
	s.False(s.tracker.Running())
}

func (s *VisitorSuite) TestPageViewsAndEngagement() {
	s.grantAnalytics()
	s.tracker.Initialize(context.Background())
	ctx := context.Background()

	s.tracker.TrackPageView(ctx, "/casks", "Casks")
	s.tracker.HandleClick("Explore premium casks")
	s.tracker.HandleClick("Close")
	s.tracker.HandleScroll(80)
	s.tracker.HandleScroll(95)
	s.tracker.HandleFieldFocus("investment_budget")

	s.now = s.now.Add(90 * time.Second)
	s.tracker.TrackPageView(ctx, "/contact", "Contact")

	data := s.tracker.VisitorData()
	s.Equal(2, data.PageViews)
	s.Require().Len(data.Pages, 2)
	s.Equal(int64(90000), data.Pages[0].DurationMS)
	s.Equal(95, data.Pages[0].ScrollDepth)
	s.Equal(2, data.Pages[0].Clicks)
	s.Equal("/contact", data.Pages[1].Path)
	s.Equal([]string{InterestWhiskyCasks, InterestPremium, InterestInvestment}, data.Interests)

	want := ScorePageView + ScoreInterestClick + ScoreDeepScroll + ScoreInterestField + ScorePageView
	s.Equal(want, data.EngagementScore)
	s.Equal(int64(90000), data.TimeSpentMS)
}

func (s *VisitorSuite) TestEngagementIsCapped() {
	s.grantAnalytics()
	s.tracker.Initialize(context.Background())
	for range 10 {
		s.tracker.IdentifyVisitor(context.Background(), Identification{Name: "Ada"})
		s.tracker.HandleClick("whisky investment")
	}
	s.Equal(MaxEngagement, s.tracker.VisitorData().EngagementScore)
}

func (s *VisitorSuite) TestTrackEvent() {
	var sunk []string
	tr := s.newTracker(s.storage, WithAnalyticsSink(sinkFunc(func(category, action, _ string, _ *float64) {
		sunk = append(sunk, category+"/"+action)
	})))
	defer tr.Close()
	s.grantAnalytics()
	tr.Initialize(context.Background())

	value := 250.0
	tr.TrackEvent(context.Background(), "form", "submit", "consultation", &value)

	s.Equal([]string{"form/submit"}, sunk)
	s.Require().Len(s.tx.events, 1)
	ev := s.tx.events[0]
	s.Equal(tr.VisitorID(), ev.VisitorID)
	s.Equal("/casks", ev.PageURL)
	s.Equal(&value, ev.Value)
}

func (s *VisitorSuite) TestUnloadSendsBeacon() {
	s.grantAnalytics()
	s.tracker.Initialize(context.Background())
	s.tracker.TrackPageView(context.Background(), "/casks", "Casks")
	s.now = s.now.Add(10 * time.Second)
	s.tracker.Unload()

	s.Require().Len(s.tx.beacons, 1)
	b := s.tx.beacons[0]
	s.Equal(tracking.TriggerUnload, b.Trigger)
	s.Equal(int64(10000), b.Pages[0].DurationMS)
}

func (s *VisitorSuite) TestHeartbeat() {
	tr := s.newTracker(s.storage, WithHeartbeat(5*time.Millisecond))
	defer tr.Close()
	s.grantAnalytics()
	tr.Initialize(context.Background())

	s.Eventually(func() bool {
		for _, trig := range s.tx.triggers() {
			if trig == tracking.TriggerHeartbeat {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
}

func (s *VisitorSuite) TestForget() {
	s.grantAnalytics()
	s.tracker.Initialize(context.Background())
	id := s.tracker.VisitorID()

	s.True(s.tracker.Forget(context.Background()))

	s.False(s.tracker.Running())
	s.Empty(s.tracker.VisitorID())
	s.Equal([]string{id}, s.tx.erasures)
	for _, key := range []string{KeyVisitorID, KeyFirstVisit} {
		_, ok, err := s.storage.Get(key)
		s.Require().NoError(err)
		s.False(ok, key)
	}

	s.tracker.Start()
	s.False(s.tracker.Running(), "a forgotten visitor is not tracked again in this session")

	s.False(s.tracker.Forget(context.Background()), "nothing left to erase")
	s.Len(s.tx.erasures, 1)
}

func (s *VisitorSuite) TestVisitorDataIsACopy() {
	s.grantAnalytics()
	s.tracker.Initialize(context.Background())
	s.tracker.HandleClick("premium")

	data := s.tracker.VisitorData()
	data.Interests[0] = "tampered"
	s.Equal([]string{InterestPremium}, s.tracker.VisitorData().Interests)
}

func TestDeviceAndAttribution(t *testing.T) {
	d := parseDevice(testEnv)
	assert.Equal(t, "Chrome", d.Browser)
	assert.Equal(t, "Windows 10", d.OS)
	assert.False(t, d.Mobile)

	cases := []struct {
		name     string
		referrer string
		landing  string
		want     tracking.Referrer
	}{
		{"utm wins", "https://www.google.com/", "https://caskhouse.test/?utm_source=newsletter&utm_medium=email&utm_campaign=spring",
			tracking.Referrer{URL: "https://www.google.com/", Source: "newsletter", Medium: "email", Campaign: "spring"}},
		{"search engine", "https://www.bing.com/search?q=cask", "https://caskhouse.test/",
			tracking.Referrer{URL: "https://www.bing.com/search?q=cask", Source: "bing", Medium: "organic"}},
		{"referral", "https://whiskyforum.example/thread/1", "https://caskhouse.test/",
			tracking.Referrer{URL: "https://whiskyforum.example/thread/1", Source: "whiskyforum.example", Medium: "referral"}},
		{"direct", "", "https://caskhouse.test/", tracking.Referrer{Source: "direct", Medium: "none"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, attribute(tc.referrer, tc.landing))
		})
	}
}

func TestFingerprintAndID(t *testing.T) {
	fp := Fingerprint(testEnv)
	require.Len(t, fp, 16)
	assert.Equal(t, fp, Fingerprint(testEnv))

	other := testEnv
	other.Screen = "390x844"
	assert.NotEqual(t, fp, Fingerprint(other))

	created := time.UnixMilli(1780000000000)
	assert.Equal(t, "v_"+fp+"_mppy1i4g", NewID(fp, created))
}

func TestMatchInterests(t *testing.T) {
	assert.Equal(t, []string{InterestInvestment, InterestConsultation}, matchInterests("Book a call about your investment"))
	assert.Empty(t, matchInterests("   "))
	assert.Empty(t, matchInterests("Contact us"))
}
