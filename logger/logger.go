// Package logger carries request-scoped slog attributes on a context.
package logger

import (
	"context"
	"log/slog"
)

type ctxKey struct{}

// ContextHandler is a [slog.Handler] that appends any attributes stored on
// the context (via [Ctx]) to each record before handing off to its base.
type ContextHandler struct {
	slog.Handler
}

// NewContextHandler wraps the base handler.
func NewContextHandler(base slog.Handler) ContextHandler {
	return ContextHandler{Handler: base}
}

// Handle implements [slog.Handler].
func (h ContextHandler) Handle(ctx context.Context, record slog.Record) error {
	if attrs, ok := ctx.Value(ctxKey{}).([]slog.Attr); ok {
		record.AddAttrs(attrs...)
	}

	return h.Handler.Handle(ctx, record)
}

// Ctx returns a context carrying the given attributes in addition to any it
// already holds. Records logged with the resulting context pick them up.
func Ctx(ctx context.Context, toAppend ...slog.Attr) context.Context {
	existing, _ := ctx.Value(ctxKey{}).([]slog.Attr)

	attrs := make([]slog.Attr, 0, len(existing)+len(toAppend))
	attrs = append(attrs, existing...)
	attrs = append(attrs, toAppend...)

	return context.WithValue(ctx, ctxKey{}, attrs)
}
