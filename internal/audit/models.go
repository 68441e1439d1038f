package audit

import (
	"time"

	"github.com/google/uuid"
)

// Event is an append-only compliance record. Keep it transport-agnostic so
// stores and sinks can fan out.
type Event struct {
	Timestamp time.Time
	VisitorID string
	Action    string
	Method    string
	Decision  string
	Reason    string
	// Actor is the admin subject for operator actions, empty for visitors.
	Actor     string
	RequestID string
}

type Action string

const (
	ActionConsentLogged     Action = "consent_logged"
	ActionErasureRequested  Action = "erasure_requested"
	ActionErasureCompleted  Action = "erasure_completed"
	ActionErasureFailed     Action = "erasure_failed"
	ActionSiteConfigUpdated Action = "site_config_updated"
	ActionLeadViewed        Action = "lead_viewed"
)

// envelope is the wire form of an Event on the audit topic.
type envelope struct {
	ID        uuid.UUID `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	VisitorID string    `json:"visitorId,omitempty"`
	Action    string    `json:"action"`
	Method    string    `json:"method,omitempty"`
	Decision  string    `json:"decision,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Actor     string    `json:"actor,omitempty"`
	RequestID string    `json:"requestId,omitempty"`
}

func newEnvelope(id uuid.UUID, e Event) envelope {
	return envelope{
		ID:        id,
		Timestamp: e.Timestamp,
		VisitorID: e.VisitorID,
		Action:    e.Action,
		Method:    e.Method,
		Decision:  e.Decision,
		Reason:    e.Reason,
		Actor:     e.Actor,
		RequestID: e.RequestID,
	}
}
