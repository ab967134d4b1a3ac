package logger

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// AnnotateError attaches slog key-value pairs to err. Handlers installed by
// ConfigureLoggingWithOptions add them to any record that logs the error, wherever it
// ends up after wrapping. Returns nil if err is nil.
func AnnotateError(err error, args ...any) error {
	if err == nil {
		return nil
	}

	r := slog.NewRecord(time.Time{}, slog.LevelDebug, "", 0)
	r.Add(args...)

	attrs := make([]slog.Attr, 0, r.NumAttrs())

	r.Attrs(func(attr slog.Attr) bool {
		attrs = append(attrs, attr)

		return true
	})

	return &annotatedError{err: err, attrs: attrs}
}

type annotatedError struct {
	err   error
	attrs []slog.Attr
}

func (a *annotatedError) Error() string {
	return a.err.Error()
}

func (a *annotatedError) Unwrap() error {
	return a.err
}

// annotations collects the attributes of every annotated error in err's tree,
// outermost first.
func annotations(err error) []slog.Attr {
	var out []slog.Attr

	var walk func(error)

	walk = func(e error) {
		for e != nil {
			if a, ok := e.(*annotatedError); ok { //nolint:errorlint
				out = append(out, a.attrs...)
			}

			if joined, ok := e.(interface{ Unwrap() []error }); ok {
				for _, inner := range joined.Unwrap() {
					walk(inner)
				}

				return
			}

			e = errors.Unwrap(e)
		}
	}

	walk(err)

	return out
}

// annotationHandler adds the attributes of annotated errors to the records it passes on.
// Only the outermost one in a handler chain does the work.
type annotationHandler struct {
	inner slog.Handler
}

func withAnnotations(inner slog.Handler) slog.Handler {
	if _, ok := inner.(*annotationHandler); ok {
		return inner
	}

	return &annotationHandler{inner: inner}
}

func (h *annotationHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

type annotatedKey struct{}

func (h *annotationHandler) Handle(ctx context.Context, record slog.Record) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if ctx.Value(annotatedKey{}) != nil {
		return h.inner.Handle(ctx, record)
	}

	ctx = context.WithValue(ctx, annotatedKey{}, true)

	var extra []slog.Attr

	record.Attrs(func(attr slog.Attr) bool {
		if err, ok := attr.Value.Any().(error); ok {
			extra = append(extra, annotations(err)...)
		}

		return true
	})

	if len(extra) == 0 {
		return h.inner.Handle(ctx, record)
	}

	r := record.Clone()
	r.AddAttrs(extra...)

	return h.inner.Handle(ctx, r)
}

func (h *annotationHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &annotationHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *annotationHandler) WithGroup(name string) slog.Handler {
	return &annotationHandler{inner: h.inner.WithGroup(name)}
}
