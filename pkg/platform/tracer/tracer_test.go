package tracer_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"caskhouse/pkg/platform/tracer"
)

func TestNoopTracer(t *testing.T) {
	tr := tracer.NewNoop()
	ctx := context.Background()

	newCtx, span := tr.Start(ctx, tracer.SpanErasure, tracer.String("key", "value"))
	assert.Equal(t, ctx, newCtx)
	require.NotNil(t, span)

	span.SetAttributes(tracer.Bool("flag", true))
	span.AddEvent("step", tracer.Int64("count", 42))
	span.End(errors.New("boom"))
}

func TestOTelTracer(t *testing.T) {
	tr := tracer.NewOTel(tracer.WithOTelTracer(noop.NewTracerProvider().Tracer("test")))

	ctx, span := tr.Start(context.Background(), tracer.SpanEventRecord,
		tracer.String(tracer.AttrCategory, "cta"),
		tracer.Int64("n", 1),
		tracer.Float64("ratio", 0.5),
	)
	require.NotNil(t, ctx)
	span.SetAttributes(tracer.Bool(tracer.AttrPublished, true))
	span.AddEvent("published")
	span.End(nil)
}

func TestNewOTelDefaultsToGlobalProvider(t *testing.T) {
	tr := tracer.NewOTel()
	_, span := tr.Start(context.Background(), tracer.SpanLeadView)
	span.End(errors.New("not found"))
}

func TestHashVisitorID(t *testing.T) {
	assert.Empty(t, tracer.HashVisitorID(""))

	h := tracer.HashVisitorID("v_0123456789abcdef_lq2x3")
	assert.Len(t, h, 16)
	assert.Equal(t, h, tracer.HashVisitorID("v_0123456789abcdef_lq2x3"))
	assert.NotEqual(t, h, tracer.HashVisitorID("v_fedcba9876543210_lq2x3"))
}

func TestAttributeConstructors(t *testing.T) {
	tests := []struct {
		name string
		attr tracer.Attribute
		want any
	}{
		{"string", tracer.String("k", "v"), "v"},
		{"bool", tracer.Bool("k", true), true},
		{"int64", tracer.Int64("k", 42), int64(42)},
		{"float64", tracer.Float64("k", 3.14), 3.14},
		{"duration in ms", tracer.Duration("k", 150*1e6), int64(150)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, "k", tt.attr.Key)
			assert.Equal(t, tt.want, tt.attr.Value)
		})
	}
}
