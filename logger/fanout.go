package logger

import (
	"context"
	"errors"
	"log/slog"
)

// Tee returns a handler that passes every record to each of handlers. Nil handlers are
// skipped; with a single handler left it is returned as is.
func Tee(handlers ...slog.Handler) slog.Handler {
	kept := make([]slog.Handler, 0, len(handlers))

	for _, h := range handlers {
		if h != nil {
			kept = append(kept, h)
		}
	}

	switch len(kept) {
	case 0:
		return &nullHandler{}
	case 1:
		return kept[0]
	default:
		return &teeHandler{handlers: kept}
	}
}

type teeHandler struct {
	handlers []slog.Handler
}

func (t *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}

	return false
}

func (t *teeHandler) Handle(ctx context.Context, record slog.Record) error {
	var errs []error

	for _, h := range t.handlers {
		if !h.Enabled(ctx, record.Level) {
			continue
		}

		if err := h.Handle(ctx, record.Clone()); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (t *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Handler, len(t.handlers))
	for i, h := range t.handlers {
		out[i] = h.WithAttrs(attrs)
	}

	return &teeHandler{handlers: out}
}

func (t *teeHandler) WithGroup(name string) slog.Handler {
	out := make([]slog.Handler, len(t.handlers))
	for i, h := range t.handlers {
		out[i] = h.WithGroup(name)
	}

	return &teeHandler{handlers: out}
}
