// Package tracer defines the minimal tracing interface the trading service
// depends on, plus an OpenTelemetry adapter. Keeping the interface internal
// avoids threading OTel APIs through the service.
package tracer

import "context"

// Attribute is a key/value pair recorded on spans.
type Attribute struct {
	Key   string
	Value any
}

// String builds a string attribute.
func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

// Bool builds a boolean attribute.
func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

// Tracer starts spans around service operations.
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Span is one traced operation.
type Span interface {
	End(err error)
	SetAttributes(attrs ...Attribute)
	AddEvent(name string, attrs ...Attribute)
}

// Noop is the default tracer; it records nothing.
type Noop struct{}

func (Noop) Start(ctx context.Context, _ string, _ ...Attribute) (context.Context, Span) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error)                       {}
func (noopSpan) SetAttributes(...Attribute)      {}
func (noopSpan) AddEvent(string, ...Attribute)   {}

// Verify interfaces are satisfied.
var (
	_ Tracer = Noop{}
	_ Span   = noopSpan{}
)
