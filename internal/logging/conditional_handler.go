package logging

import (
	"context"
	"errors"
	"log/slog"
)

// ErrConditionalHandlerInvalid is returned when a ConditionalHandler is
// missing its detector or its inner handler.
var ErrConditionalHandlerInvalid = errors.New("ConditionalHandler: detector and handler are required")

// InteractivityDetector reports whether output goes to a person.
// *terminal.Detector implements it.
type InteractivityDetector interface {
	IsInteractive() bool
}

// ConditionalHandler forwards records to an inner handler only while the
// detector's interactivity equals WhenInteractive. The detector is consulted
// on every record.
type ConditionalHandler struct {
	detector        InteractivityDetector
	whenInteractive bool
	inner           slog.Handler
}

// NewConditionalHandler wraps inner so it is active only when the session's
// interactivity equals whenInteractive.
func NewConditionalHandler(detector InteractivityDetector, whenInteractive bool, inner slog.Handler) (*ConditionalHandler, error) {
	if detector == nil || inner == nil {
		return nil, ErrConditionalHandlerInvalid
	}
	return &ConditionalHandler{
		detector:        detector,
		whenInteractive: whenInteractive,
		inner:           inner,
	}, nil
}

type consoleSuppressedKey struct{}

// WithoutConsole marks ctx so records logged with it skip every
// ConditionalHandler and reach only the remaining handlers, such as the
// JSON log file.
func WithoutConsole(ctx context.Context) context.Context {
	return context.WithValue(ctx, consoleSuppressedKey{}, true)
}

func consoleSuppressed(ctx context.Context) bool {
	suppressed, _ := ctx.Value(consoleSuppressedKey{}).(bool)
	return suppressed
}

func (h *ConditionalHandler) active(ctx context.Context) bool {
	return !consoleSuppressed(ctx) && h.detector.IsInteractive() == h.whenInteractive
}

// Enabled reports whether the handler is active and the inner handler
// accepts level.
func (h *ConditionalHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.active(ctx) && h.inner.Enabled(ctx, level)
}

// Handle delegates to the inner handler while active.
func (h *ConditionalHandler) Handle(ctx context.Context, r slog.Record) error {
	if !h.active(ctx) {
		return nil
	}
	return h.inner.Handle(ctx, r)
}

// WithAttrs returns a new handler with additional attributes.
func (h *ConditionalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ConditionalHandler{
		detector:        h.detector,
		whenInteractive: h.whenInteractive,
		inner:           h.inner.WithAttrs(attrs),
	}
}

// WithGroup returns a new handler with an additional group.
func (h *ConditionalHandler) WithGroup(name string) slog.Handler {
	return &ConditionalHandler{
		detector:        h.detector,
		whenInteractive: h.whenInteractive,
		inner:           h.inner.WithGroup(name),
	}
}
