// Package consent holds the wire shapes exchanged between the browser-side
// consent store and the consent and erasure endpoints. Both the client SDK
// and the server handlers use these types, so changes here are API changes.
package consent

import (
	"strings"
	"time"
)

// ContractVersion identifies the wire schema. Bump on breaking changes.
const ContractVersion = "v1"

// PreferencesVersion is stamped on every saved preferences record.
const PreferencesVersion = "1.0"

// Category names a consent flag.
type Category string

const (
	CategoryNecessary  Category = "necessary"
	CategoryAnalytics  Category = "analytics"
	CategoryMarketing  Category = "marketing"
	CategoryFunctional Category = "functional"
)

// OptionalCategories are the categories a visitor can decline.
var OptionalCategories = []Category{CategoryAnalytics, CategoryMarketing, CategoryFunctional}

// Method records how a consent decision was captured.
type Method string

const (
	MethodBanner      Method = "banner"
	MethodPreferences Method = "preferences"
	MethodAPI         Method = "api"
	MethodImplied     Method = "implied"
)

func (m Method) IsValid() bool {
	switch m {
	case MethodBanner, MethodPreferences, MethodAPI, MethodImplied:
		return true
	}
	return false
}

// Action is the audit verb for a consent change.
type Action string

const (
	ActionGranted   Action = "granted"
	ActionDenied    Action = "denied"
	ActionUpdated   Action = "updated"
	ActionWithdrawn Action = "withdrawn"
)

// Preferences is the versioned consent record. Necessary is always true.
type Preferences struct {
	Necessary  bool      `json:"necessary"`
	Analytics  bool      `json:"analytics"`
	Marketing  bool      `json:"marketing"`
	Functional bool      `json:"functional"`
	Timestamp  time.Time `json:"timestamp"`
	UserAgent  string    `json:"userAgent" validate:"max=512"`
	Version    string    `json:"version" validate:"max=16"`
}

// Allows reports the flag for category; unknown categories are false.
func (p Preferences) Allows(c Category) bool {
	switch c {
	case CategoryNecessary:
		return true
	case CategoryAnalytics:
		return p.Analytics
	case CategoryMarketing:
		return p.Marketing
	case CategoryFunctional:
		return p.Functional
	}
	return false
}

// AnyOptional reports whether any optional category is granted.
func (p Preferences) AnyOptional() bool {
	return p.Analytics || p.Marketing || p.Functional
}

// LogRequest is the body of POST /api/consent/log.
type LogRequest struct {
	VisitorID   string      `json:"visitorId,omitempty" validate:"max=128"`
	Preferences Preferences `json:"preferences"`
	Method      Method      `json:"method" validate:"required,oneof=banner preferences api implied"`
	Action      Action      `json:"action,omitempty" validate:"omitempty,oneof=granted denied updated withdrawn"`
	Timestamp   time.Time   `json:"timestamp"`
	URL         string      `json:"url,omitempty" validate:"max=2048"`
	UserAgent   string      `json:"userAgent,omitempty" validate:"max=512"`
}

func (r *LogRequest) Normalize() {
	r.VisitorID = strings.TrimSpace(r.VisitorID)
	r.Method = Method(strings.ToLower(strings.TrimSpace(string(r.Method))))
	r.URL = strings.TrimSpace(r.URL)
	r.Preferences.Necessary = true
	if r.Preferences.Version == "" {
		r.Preferences.Version = PreferencesVersion
	}
}

type LogResponse struct {
	ID         string    `json:"id"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// ErasureRequest is the body of POST /api/gdpr/delete.
type ErasureRequest struct {
	VisitorID string `json:"visitorId" validate:"required,max=128"`
}

func (r *ErasureRequest) Normalize() {
	r.VisitorID = strings.TrimSpace(r.VisitorID)
}

// ErasureResponse reports how many records each store removed.
type ErasureResponse struct {
	VisitorID      string `json:"visitorId"`
	Status         string `json:"status"`
	Visitors       int    `json:"visitors"`
	Events         int    `json:"events"`
	CapturedFields int    `json:"capturedFields"`
}
