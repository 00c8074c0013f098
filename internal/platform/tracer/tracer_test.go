package tracer_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vcflow/internal/platform/tracer"
)

func TestNoopTracerLeavesContextAlone(t *testing.T) {
	ctx := context.Background()
	got, span := tracer.NewNoop().Start(ctx, tracer.SpanInvitationGet, tracer.String(tracer.AttrInvitationID, "abc"))
	assert.Equal(t, ctx, got)
	require.NotNil(t, span)
	span.SetAttributes(tracer.Bool(tracer.AttrExpired, true))
	span.AddEvent("status.flipped")
	span.End(errors.New("ignored"))
}

func TestOTelTracerUsesGlobalProvider(t *testing.T) {
	ctx, span := tracer.NewOTel().Start(context.Background(), tracer.SpanCredentialIssue,
		tracer.String(tracer.AttrCredentialKind, "signed"),
		tracer.Int(tracer.AttrCredentialCount, 2),
	)
	require.NotNil(t, ctx)
	span.End(nil)
}

func TestDurationAttributeIsMilliseconds(t *testing.T) {
	attr := tracer.Duration("latency", 1500*time.Millisecond)
	assert.Equal(t, int64(1500), attr.Value)
}
