package models

import (
	"time"

	"github.com/google/uuid"

	tracking "caskhouse/contracts/tracking"
)

// DeviceInfo is the server's own reading of the request User-Agent. It is
// stored next to the client's claims and wins when they disagree.
type DeviceInfo struct {
	Browser        string
	BrowserVersion string
	OS             string
	Mobile         bool
	Bot            bool
}

// Visitor is the latest snapshot received for a visitor id.
type Visitor struct {
	VisitorID       string
	SessionID       string
	FirstVisit      time.Time
	Device          DeviceInfo
	IPPrefix        string
	Email           string
	Name            string
	Phone           string
	EngagementScore int
	PageViews       int
	Interests       []string
	Snapshot        tracking.VisitorSnapshot
	UpdatedAt       time.Time
}

// Clone returns a deep copy.
func (v *Visitor) Clone() *Visitor {
	out := *v
	out.Interests = append([]string(nil), v.Interests...)
	out.Snapshot = v.Snapshot.Clone()
	return &out
}

// Event is one interaction reported by the client.
type Event struct {
	ID              uuid.UUID
	VisitorID       string
	SessionID       string
	Category        string
	Action          string
	Label           string
	Value           *float64
	PageURL         string
	IPPrefix        string
	ClientTimestamp time.Time
	ReceivedAt      time.Time
}

// CapturedField is the latest value typed into one form field. Captures are
// transient and disappear at ExpiresAt.
type CapturedField struct {
	VisitorID  string
	FormType   string
	FieldName  string
	FieldValue string
	PageURL    string
	CapturedAt time.Time
	ExpiresAt  time.Time
}

// Key identifies the field slot; a newer capture replaces the older one.
func (c *CapturedField) Key() string {
	return c.VisitorID + ":" + c.FormType + ":" + c.FieldName
}

func (c *CapturedField) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// Lead is the operator view of a visitor.
type Lead struct {
	Visitor      *Visitor
	Fields       []*CapturedField
	EventCount   int
	RecentEvents []*Event
}

// RecentEventLimit bounds Lead.RecentEvents.
const RecentEventLimit = 20

type CapturedFieldResponse struct {
	FormType   string    `json:"formType"`
	FieldName  string    `json:"fieldName"`
	FieldValue string    `json:"fieldValue"`
	PageURL    string    `json:"pageUrl,omitempty"`
	CapturedAt time.Time `json:"capturedAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

type EventResponse struct {
	ID         string    `json:"id"`
	Category   string    `json:"category"`
	Action     string    `json:"action"`
	Label      string    `json:"label,omitempty"`
	Value      *float64  `json:"value,omitempty"`
	PageURL    string    `json:"pageUrl,omitempty"`
	ReceivedAt time.Time `json:"receivedAt"`
}

type DeviceResponse struct {
	Browser        string `json:"browser"`
	BrowserVersion string `json:"browserVersion,omitempty"`
	OS             string `json:"os"`
	Mobile         bool   `json:"mobile"`
	Bot            bool   `json:"bot"`
}

type LeadResponse struct {
	VisitorID       string                  `json:"visitorId"`
	SessionID       string                  `json:"sessionId,omitempty"`
	FirstVisit      time.Time               `json:"firstVisit"`
	Email           string                  `json:"email,omitempty"`
	Name            string                  `json:"name,omitempty"`
	Phone           string                  `json:"phone,omitempty"`
	EngagementScore int                     `json:"engagementScore"`
	PageViews       int                     `json:"pageViews"`
	Interests       []string                `json:"interests"`
	Device          DeviceResponse          `json:"device"`
	IPPrefix        string                  `json:"ipPrefix,omitempty"`
	LandingPage     string                  `json:"landingPage,omitempty"`
	Referrer        tracking.Referrer       `json:"referrer"`
	EventCount      int                     `json:"eventCount"`
	CapturedFields  []CapturedFieldResponse `json:"capturedFields"`
	RecentEvents    []EventResponse         `json:"recentEvents"`
	UpdatedAt       time.Time               `json:"updatedAt"`
}

func (l *Lead) Response() LeadResponse {
	v := l.Visitor
	resp := LeadResponse{
		VisitorID:       v.VisitorID,
		SessionID:       v.SessionID,
		FirstVisit:      v.FirstVisit,
		Email:           v.Email,
		Name:            v.Name,
		Phone:           v.Phone,
		EngagementScore: v.EngagementScore,
		PageViews:       v.PageViews,
		Interests:       append([]string{}, v.Interests...),
		Device: DeviceResponse{
			Browser:        v.Device.Browser,
			BrowserVersion: v.Device.BrowserVersion,
			OS:             v.Device.OS,
			Mobile:         v.Device.Mobile,
			Bot:            v.Device.Bot,
		},
		IPPrefix:       v.IPPrefix,
		LandingPage:    v.Snapshot.LandingPage,
		Referrer:       v.Snapshot.Referrer,
		EventCount:     l.EventCount,
		CapturedFields: make([]CapturedFieldResponse, 0, len(l.Fields)),
		RecentEvents:   make([]EventResponse, 0, len(l.RecentEvents)),
		UpdatedAt:      v.UpdatedAt,
	}
	for _, f := range l.Fields {
		resp.CapturedFields = append(resp.CapturedFields, CapturedFieldResponse{
			FormType:   f.FormType,
			FieldName:  f.FieldName,
			FieldValue: f.FieldValue,
			PageURL:    f.PageURL,
			CapturedAt: f.CapturedAt,
			ExpiresAt:  f.ExpiresAt,
		})
	}
	for _, e := range l.RecentEvents {
		resp.RecentEvents = append(resp.RecentEvents, EventResponse{
			ID:         e.ID.String(),
			Category:   e.Category,
			Action:     e.Action,
			Label:      e.Label,
			Value:      e.Value,
			PageURL:    e.PageURL,
			ReceivedAt: e.ReceivedAt,
		})
	}
	return resp
}

// ErasureCounts reports what one visitor erasure removed.
type ErasureCounts struct {
	Visitors       int
	Events         int
	CapturedFields int
}
