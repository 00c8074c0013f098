// Package tracer is a small tracing seam over OpenTelemetry.
//
// Services depend on the Tracer interface; production wiring passes NewOTel(),
// tests pass NewNoop().
package tracer

import (
	"context"
	"time"
)

// Span is an active trace span. End must be called exactly once.
type Span interface {
	// End completes the span; a non-nil err marks it failed.
	End(err error)
	SetAttributes(attrs ...Attribute)
	AddEvent(name string, attrs ...Attribute)
}

// Tracer creates spans. Implementations must be safe for concurrent use.
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Attribute is a key-value pair attached to spans.
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

func Int(key string, value int) Attribute {
	return Attribute{Key: key, Value: value}
}

// Duration records value in milliseconds.
func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value.Milliseconds()}
}

// Span names.
const (
	SpanInvitationCreate   = "invitation.create"
	SpanInvitationGet      = "invitation.get"
	SpanInvitationClearAll = "invitation.clear_all"
	SpanOfferDecode        = "offer.decode"
	SpanOfferShorten       = "offer.shorten"
	SpanCredentialIssue    = "credential.issue"
	SpanCredentialVerify   = "credential.verify"
	SpanPresentationCreate = "presentation.create"
	SpanPresentationVerify = "presentation.verify"
)

// Attribute keys.
const (
	AttrInvitationID     = "invitation.id"
	AttrCredentialKind   = "credential.kind"
	AttrCredentialType   = "credential.type"
	AttrCredentialCount  = "presentation.credential_count"
	AttrCredentialsValid = "presentation.credentials_valid"
	AttrFallback         = "fallback"
	AttrExpired          = "expired"
)
