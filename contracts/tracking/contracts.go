// Package tracking holds the wire shapes of the visitor, event and
// field-capture endpoints shared by the client SDK and the server.
package tracking

import (
	"strings"
	"time"
)

// Trigger says why a visitor snapshot was sent.
type Trigger string

const (
	TriggerPageView  Trigger = "page_view"
	TriggerHeartbeat Trigger = "heartbeat"
	TriggerIdentify  Trigger = "identify"
	TriggerUnload    Trigger = "unload"
	TriggerStart     Trigger = "start"
)

type Device struct {
	Browser        string `json:"browser,omitempty"`
	BrowserVersion string `json:"browserVersion,omitempty"`
	OS             string `json:"os,omitempty"`
	Platform       string `json:"platform,omitempty"`
	Mobile         bool   `json:"mobile"`
	Bot            bool   `json:"bot"`
}

type Referrer struct {
	URL      string `json:"url,omitempty" validate:"max=2048"`
	Source   string `json:"source,omitempty"`
	Medium   string `json:"medium,omitempty"`
	Campaign string `json:"campaign,omitempty"`
}

type PageVisit struct {
	Path        string    `json:"path" validate:"max=2048"`
	Title       string    `json:"title,omitempty" validate:"max=256"`
	EnteredAt   time.Time `json:"enteredAt"`
	DurationMS  int64     `json:"durationMs"`
	ScrollDepth int       `json:"scrollDepth" validate:"min=0,max=100"`
	Clicks      int       `json:"clicks" validate:"min=0"`
}

// VisitorSnapshot is the full visitor record as transmitted by the client.
type VisitorSnapshot struct {
	VisitorID       string      `json:"visitorId" validate:"required,max=128"`
	Fingerprint     string      `json:"fingerprint,omitempty" validate:"max=128"`
	FirstVisit      time.Time   `json:"firstVisit"`
	SessionID       string      `json:"sessionId,omitempty" validate:"max=128"`
	SessionStart    time.Time   `json:"sessionStart"`
	Device          Device      `json:"device"`
	Language        string      `json:"language,omitempty"`
	Screen          string      `json:"screen,omitempty"`
	Timezone        string      `json:"timezone,omitempty"`
	Referrer        Referrer    `json:"referrer"`
	LandingPage     string      `json:"landingPage,omitempty" validate:"max=2048"`
	PageViews       int         `json:"pageViews" validate:"min=0"`
	TimeSpentMS     int64       `json:"timeSpentMs" validate:"min=0"`
	Pages           []PageVisit `json:"pages,omitempty" validate:"max=500,dive"`
	Interests       []string    `json:"interests,omitempty" validate:"max=32"`
	EngagementScore int         `json:"engagementScore" validate:"min=0,max=100"`
	Email           string      `json:"email,omitempty" validate:"omitempty,max=254,email"`
	Name            string      `json:"name,omitempty" validate:"max=256"`
	Phone           string      `json:"phone,omitempty" validate:"max=64"`
	Returning       bool        `json:"returning"`
	LastActivity    time.Time   `json:"lastActivity"`
	Trigger         Trigger     `json:"trigger,omitempty"`
}

func (v *VisitorSnapshot) Normalize() {
	v.VisitorID = strings.TrimSpace(v.VisitorID)
	v.Email = strings.ToLower(strings.TrimSpace(v.Email))
	v.Name = strings.TrimSpace(v.Name)
	v.Phone = strings.TrimSpace(v.Phone)
}

// Clone returns a deep copy.
func (v VisitorSnapshot) Clone() VisitorSnapshot {
	out := v
	out.Pages = append([]PageVisit(nil), v.Pages...)
	out.Interests = append([]string(nil), v.Interests...)
	return out
}

// EventRequest is the body of POST /api/tracking/event.
type EventRequest struct {
	VisitorID string    `json:"visitorId" validate:"required,max=128"`
	SessionID string    `json:"sessionId,omitempty" validate:"max=128"`
	Category  string    `json:"category" validate:"required,max=64"`
	Action    string    `json:"action" validate:"required,max=128"`
	Label     string    `json:"label,omitempty" validate:"max=256"`
	Value     *float64  `json:"value,omitempty"`
	PageURL   string    `json:"pageUrl,omitempty" validate:"max=2048"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *EventRequest) Normalize() {
	e.VisitorID = strings.TrimSpace(e.VisitorID)
	e.Category = strings.TrimSpace(e.Category)
	e.Action = strings.TrimSpace(e.Action)
	e.Label = strings.TrimSpace(e.Label)
}

// CaptureFieldRequest is the body of POST /api/tracking/capture-field.
type CaptureFieldRequest struct {
	VisitorID  string    `json:"visitorId" validate:"required,max=128"`
	FieldName  string    `json:"fieldName" validate:"required,max=100"`
	FieldValue string    `json:"fieldValue" validate:"required,max=2000"`
	FormType   string    `json:"formType" validate:"required,max=64"`
	Timestamp  time.Time `json:"timestamp"`
	PageURL    string    `json:"pageUrl,omitempty" validate:"max=2048"`
}

func (c *CaptureFieldRequest) Normalize() {
	c.VisitorID = strings.TrimSpace(c.VisitorID)
	c.FieldName = strings.TrimSpace(c.FieldName)
	c.FormType = strings.TrimSpace(c.FormType)
	c.FieldValue = strings.TrimSpace(c.FieldValue)
}

// AcceptedResponse acknowledges an asynchronously processed submission.
type AcceptedResponse struct {
	ID     string `json:"id,omitempty"`
	Status string `json:"status"`
}

// EventRecord is the message published to the tracking events topic,
// keyed by visitor id.
type EventRecord struct {
	ID              string    `json:"id"`
	VisitorID       string    `json:"visitorId"`
	SessionID       string    `json:"sessionId,omitempty"`
	Category        string    `json:"category"`
	Action          string    `json:"action"`
	Label           string    `json:"label,omitempty"`
	Value           *float64  `json:"value,omitempty"`
	PageURL         string    `json:"pageUrl,omitempty"`
	ClientTimestamp time.Time `json:"clientTimestamp"`
	ReceivedAt      time.Time `json:"receivedAt"`
}
