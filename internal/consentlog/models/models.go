package models

import (
	"time"

	"github.com/google/uuid"

	consent "caskhouse/contracts/consent"
)

// Entry is one consent decision as received by the server. Entries are
// append-only; a visitor's history is the ordered list of their entries.
type Entry struct {
	ID              uuid.UUID
	VisitorID       string
	Necessary       bool
	Analytics       bool
	Marketing       bool
	Functional      bool
	Version         string
	Method          consent.Method
	PageURL         string
	UserAgent       string
	IPPrefix        string
	ClientTimestamp time.Time
	ReceivedAt      time.Time
}

// Decision is the audit verb implied by the entry's flags.
func (e *Entry) Decision() consent.Action {
	if e.Analytics || e.Marketing || e.Functional {
		return consent.ActionGranted
	}
	return consent.ActionDenied
}

// Allows reports the stored flag for category.
func (e *Entry) Allows(c consent.Category) bool {
	return consent.Preferences{
		Analytics:  e.Analytics,
		Marketing:  e.Marketing,
		Functional: e.Functional,
	}.Allows(c)
}

// Filter narrows listings. Zero values mean "no constraint".
type Filter struct {
	Since time.Time
	Limit int
}

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// EffectiveLimit clamps Limit into [1, MaxListLimit].
func (f Filter) EffectiveLimit() int {
	switch {
	case f.Limit <= 0:
		return DefaultListLimit
	case f.Limit > MaxListLimit:
		return MaxListLimit
	}
	return f.Limit
}

// EntryResponse is the admin listing representation.
type EntryResponse struct {
	ID              string    `json:"id"`
	VisitorID       string    `json:"visitorId"`
	Necessary       bool      `json:"necessary"`
	Analytics       bool      `json:"analytics"`
	Marketing       bool      `json:"marketing"`
	Functional      bool      `json:"functional"`
	Version         string    `json:"version"`
	Method          string    `json:"method"`
	Decision        string    `json:"decision"`
	PageURL         string    `json:"pageUrl,omitempty"`
	IPPrefix        string    `json:"ipPrefix,omitempty"`
	ClientTimestamp time.Time `json:"clientTimestamp"`
	ReceivedAt      time.Time `json:"receivedAt"`
}

func (e *Entry) Response() EntryResponse {
	return EntryResponse{
		ID:              e.ID.String(),
		VisitorID:       e.VisitorID,
		Necessary:       e.Necessary,
		Analytics:       e.Analytics,
		Marketing:       e.Marketing,
		Functional:      e.Functional,
		Version:         e.Version,
		Method:          string(e.Method),
		Decision:        string(e.Decision()),
		PageURL:         e.PageURL,
		IPPrefix:        e.IPPrefix,
		ClientTimestamp: e.ClientTimestamp,
		ReceivedAt:      e.ReceivedAt,
	}
}

type ListResponse struct {
	VisitorID string          `json:"visitorId"`
	Entries   []EntryResponse `json:"entries"`
}
