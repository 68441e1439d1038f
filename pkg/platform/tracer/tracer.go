// Package tracer is a small tracing facade over OpenTelemetry.
//
// Services depend on the Tracer interface; production wiring uses the OTel
// adapter (global provider, no-op unless an SDK is installed) and tests use
// NoopTracer.
package tracer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Span represents an active trace span.
type Span interface {
	// End completes the span. A non-nil err marks it failed.
	// End must be called exactly once, typically via defer.
	End(err error)

	SetAttributes(attrs ...Attribute)

	AddEvent(name string, attrs ...Attribute)
}

// Tracer creates spans. Implementations must be safe for concurrent use.
type Tracer interface {
	// Start creates a span; pass the returned context to child operations.
	//
	//   ctx, span := t.Start(ctx, tracer.SpanErasure,
	//       tracer.String(tracer.AttrVisitorHash, tracer.HashVisitorID(id)),
	//   )
	//   defer span.End(err)
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

type Attribute struct {
	Key   string
	Value any
}

func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

func Int64(key string, value int64) Attribute {
	return Attribute{Key: key, Value: value}
}

func Float64(key string, value float64) Attribute {
	return Attribute{Key: key, Value: value}
}

// Duration creates an attribute in milliseconds.
func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value.Milliseconds()}
}

// HashVisitorID returns a short SHA-256 digest so traces can be correlated
// without carrying the visitor id itself.
func HashVisitorID(visitorID string) string {
	if visitorID == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(visitorID))
	return hex.EncodeToString(hash[:8])
}

const (
	SpanVisitorUpsert = "tracking.visitor.upsert"
	SpanEventRecord   = "tracking.event.record"
	SpanEventPublish  = "tracking.event.publish"
	SpanCaptureField  = "tracking.capture.store"
	SpanLeadView      = "tracking.lead.view"
	SpanErasure       = "gdpr.erasure"
	SpanErasureStep   = "gdpr.erasure.step"
)

const (
	AttrVisitorHash = "visitor.hash"
	AttrTrigger     = "visitor.trigger"
	AttrCategory    = "event.category"
	AttrFormType    = "capture.form_type"
	AttrFieldName   = "capture.field_name"
	AttrStep        = "erasure.step"
	AttrRemoved     = "erasure.removed"
	AttrPublished   = "event.published"
)
