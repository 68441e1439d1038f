package formcapture

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/goleak"

	"caskhouse/contracts/tracking"
	"caskhouse/internal/frontend/storage"
	"caskhouse/internal/frontend/visitor"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const debounce = 20 * time.Millisecond

type fakeSender struct {
	mu       sync.Mutex
	captures []tracking.CaptureFieldRequest
}

func (f *fakeSender) CaptureField(_ context.Context, req *tracking.CaptureFieldRequest) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.captures = append(f.captures, *req)
	return true
}

func (f *fakeSender) all() []tracking.CaptureFieldRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]tracking.CaptureFieldRequest(nil), f.captures...)
}

type fakeIdentity struct {
	mu         sync.Mutex
	id         string
	identified []visitor.Identification
}

func (f *fakeIdentity) VisitorID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.id
}

func (f *fakeIdentity) IdentifyVisitor(_ context.Context, id visitor.Identification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.identified = append(f.identified, id)
}

type BridgeSuite struct {
	suite.Suite
	storage  *storage.Memory
	sender   *fakeSender
	identity *fakeIdentity
	bridge   *Bridge
}

func TestBridgeSuite(t *testing.T) {
	suite.Run(t, new(BridgeSuite))
}

func (s *BridgeSuite) SetupTest() {
	s.storage = storage.NewMemory()
	s.sender = &fakeSender{}
	s.identity = &fakeIdentity{id: "v_0123456789abcdef_lx"}
	s.bridge = New(s.storage, s.identity, s.sender,
		WithDebounce(debounce),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithPageURL(func() string { return "https://caskhouse.test/contact" }),
	)
	s.bridge.Register("contact", "email", "name", "phone", "message")
}

func (s *BridgeSuite) TearDownTest() {
	s.bridge.Close()
}

// settle waits long enough for every scheduled timer to have fired.
func (s *BridgeSuite) settle() {
	s.Eventually(func() bool { return s.bridge.Pending() == 0 }, time.Second, debounce/4)
	time.Sleep(2 * debounce)
}

func (s *BridgeSuite) TestRapidChangesCaptureFinalValueOnce() {
	s.Require().NoError(s.bridge.SetAutoSave(true))
	for _, v := range []string{"a", "ad", "ada", "ada@", "ada@example.com"} {
		s.bridge.Change("contact", "email", v)
	}
	s.settle()

	got := s.sender.all()
	s.Require().Len(got, 1)
	s.Equal("ada@example.com", got[0].FieldValue)
	s.Equal("contact", got[0].FormType)
	s.Equal("v_0123456789abcdef_lx", got[0].VisitorID)
	s.Equal("https://caskhouse.test/contact", got[0].PageURL)
}

func (s *BridgeSuite) TestFieldsHaveIndependentTimers() {
	s.Require().NoError(s.bridge.SetAutoSave(true))
	s.bridge.Change("contact", "name", "Ad")
	s.bridge.Change("contact", "phone", "+44 20")
	s.bridge.Change("contact", "name", "Ada Lovelace")
	s.bridge.Change("contact", "phone", "+44 20 7946 0000")
	s.settle()

	values := map[string]string{}
	for _, c := range s.sender.all() {
		values[c.FieldName] = c.FieldValue
	}
	s.Equal(map[string]string{"name": "Ada Lovelace", "phone": "+44 20 7946 0000"}, values)
	s.Len(s.sender.all(), 2)
}

func (s *BridgeSuite) TestAutoSaveDisabledNeverCaptures() {
	s.False(s.bridge.AutoSave())
	s.bridge.Change("contact", "email", "ada@example.com")
	s.Zero(s.bridge.Pending())

	s.Require().NoError(s.bridge.SetAutoSave(false))
	s.bridge.Change("contact", "message", "I'd like a cask")
	time.Sleep(3 * debounce)
	s.Empty(s.sender.all())
}

func (s *BridgeSuite) TestRevokingAutoSaveCancelsPending() {
	s.Require().NoError(s.bridge.SetAutoSave(true))
	s.bridge.Change("contact", "message", "hello")
	s.Equal(1, s.bridge.Pending())

	s.Require().NoError(s.bridge.SetAutoSave(false))
	s.Zero(s.bridge.Pending())
	time.Sleep(3 * debounce)
	s.Empty(s.sender.all())
}

func (s *BridgeSuite) TestRevokedByAnotherSessionDropsCapture() {
	s.Require().NoError(s.bridge.SetAutoSave(true))
	s.bridge.Change("contact", "message", "hello")
	s.Require().NoError(s.storage.Set(AutoSaveKey, "false"))
	s.settle()
	s.Empty(s.sender.all())
}

func (s *BridgeSuite) TestCaptureSendsValueAsTyped() {
	s.Require().NoError(s.bridge.SetAutoSave(true))
	s.bridge.Change("contact", "message", "  Sherry cask, please \n")
	s.settle()

	got := s.sender.all()
	s.Require().Len(got, 1)
	s.Equal("  Sherry cask, please \n", got[0].FieldValue)
}

func (s *BridgeSuite) TestEmptyValueCancelsPendingCapture() {
	s.Require().NoError(s.bridge.SetAutoSave(true))
	s.bridge.Change("contact", "message", "draft")
	s.bridge.Change("contact", "message", "   ")
	s.Zero(s.bridge.Pending())
	time.Sleep(3 * debounce)
	s.Empty(s.sender.all())
}

func (s *BridgeSuite) TestUnregisteredFieldsAreIgnored() {
	s.Require().NoError(s.bridge.SetAutoSave(true))
	s.bridge.Change("contact", "password", "secret")
	s.bridge.Change("newsletter", "email", "ada@example.com")
	s.Zero(s.bridge.Pending())
}

func (s *BridgeSuite) TestEmailAndNameIdentifyVisitor() {
	s.Require().NoError(s.bridge.SetAutoSave(true))
	s.bridge.Change("contact", "email", "ada@example.com")
	s.bridge.Change("contact", "name", "Ada")
	s.bridge.Change("contact", "message", "hello")
	s.settle()

	s.identity.mu.Lock()
	defer s.identity.mu.Unlock()
	s.ElementsMatch([]visitor.Identification{{Email: "ada@example.com"}, {Name: "Ada"}}, s.identity.identified)
}

func (s *BridgeSuite) TestAnonymousFallbackID() {
	s.identity.mu.Lock()
	s.identity.id = ""
	s.identity.mu.Unlock()

	s.Require().NoError(s.bridge.SetAutoSave(true))
	s.bridge.Change("contact", "phone", "+44")
	s.bridge.Change("contact", "message", "hi")
	s.settle()

	got := s.sender.all()
	s.Require().Len(got, 2)
	s.Regexp(`^anon_[0-9a-f-]{36}$`, got[0].VisitorID)
	s.Equal(got[0].VisitorID, got[1].VisitorID, "fallback id is stable for the session")
}

func (s *BridgeSuite) TestCloseCancelsPending() {
	s.Require().NoError(s.bridge.SetAutoSave(true))
	s.bridge.Change("contact", "message", "hello")
	s.bridge.Close()
	s.bridge.Close()

	s.bridge.Change("contact", "message", "again")
	s.Zero(s.bridge.Pending())
	time.Sleep(3 * debounce)
	s.Empty(s.sender.all())
}
