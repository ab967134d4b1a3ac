// Package logger configures slog for binaries built on this module and hands out
// loggers that carry the subsystem and any values attached to the context.
package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/caarlos0/env/v11"
)

// Default subsystem name, set by ConfigureLoggingWithOptions.
var subsystem atomic.Value //nolint:gochecknoglobals

// configMutex protects concurrent calls to ConfigureLoggingWithOptions.
// This is necessary because the function modifies global state (slog.SetDefault and log.Default).
var configMutex sync.Mutex //nolint:gochecknoglobals

type contextKey string

// ErrInvalidLogOutput is returned when an invalid log output destination is specified.
var ErrInvalidLogOutput = errors.New("invalid log output")

// Options is used to configure logging.
type Options struct {
	Subsystem   string
	JSON        bool
	MinLevel    slog.Level
	LegacyLevel slog.Level
	Output      io.Writer
	// Handler, when set, replaces the text/JSON handler built from the fields above.
	Handler slog.Handler
}

// envConfig is read from the environment by ConfigureLogging.
type envConfig struct {
	JSON        bool       `env:"LOG_JSON"          envDefault:"false"`
	Level       slog.Level `env:"LOG_LEVEL"         envDefault:"INFO"`
	LegacyLevel slog.Level `env:"LEGACY_LOG_LEVEL"  envDefault:"INFO"`
	Output      string     `env:"LOG_OUTPUT"        envDefault:"stdout"`
}

// ConfigureLoggingWithOptions configures logging for the application.
// It returns the default logger.
func ConfigureLoggingWithOptions(opts Options) *slog.Logger {
	configMutex.Lock()
	defer configMutex.Unlock()

	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	handler := opts.Handler
	if handler == nil {
		handlerOpts := &slog.HandlerOptions{Level: opts.MinLevel}

		if opts.JSON {
			handler = slog.NewJSONHandler(opts.Output, handlerOpts)
		} else {
			handler = slog.NewTextHandler(opts.Output, handlerOpts)
		}
	}

	handler = withAnnotations(handler)
	logger := slog.New(handler)

	slog.SetDefault(logger)

	// Third party packages using the log package end up in the same handler.
	def := log.Default()
	*def = *slog.NewLogLogger(handler, opts.LegacyLevel)

	subsystem.Store(opts.Subsystem)

	return logger
}

// Option is a functional option for configuring logging via ConfigureLogging.
type Option func(*Options)

// WithHandler makes ConfigureLogging use the given handler.
func WithHandler(handler slog.Handler) Option {
	return func(o *Options) {
		o.Handler = handler
	}
}

// WithOutput overrides the LOG_OUTPUT destination.
func WithOutput(w io.Writer) Option {
	return func(o *Options) {
		o.Output = w
	}
}

// ConfigureLogging configures logging for the application from LOG_JSON, LOG_LEVEL,
// LEGACY_LOG_LEVEL and LOG_OUTPUT. It returns the default logger.
func ConfigureLogging(app string, opts ...Option) (*slog.Logger, error) {
	var cfg envConfig

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parsing logging environment: %w", err)
	}

	var output io.Writer

	switch cfg.Output {
	case "stdout":
		output = os.Stdout
	case "stderr":
		output = os.Stderr
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidLogOutput, cfg.Output)
	}

	options := Options{
		Subsystem:   app,
		JSON:        cfg.JSON,
		MinLevel:    cfg.Level,
		LegacyLevel: cfg.LegacyLevel,
		Output:      output,
	}

	for _, o := range opts {
		o(&options)
	}

	return ConfigureLoggingWithOptions(options), nil
}

// WithSubsystem adds a subsystem to the context, overriding the default one.
func WithSubsystem(ctx context.Context, subsystem string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}

	return context.WithValue(ctx, contextKey("subsystem"), subsystem)
}

// GetSubsystem returns the subsystem from the context, falling back to the default
// configured by ConfigureLogging.
func GetSubsystem(ctx context.Context) string {
	if ctx != nil {
		if val, ok := ctx.Value(contextKey("subsystem")).(string); ok {
			return val
		}
	}

	if defaultSub, ok := subsystem.Load().(string); ok {
		return defaultSub
	}

	return ""
}

// WithMuted adds a muted flag to the context. Loggers obtained from a muted
// context discard everything.
func WithMuted(ctx context.Context, muted bool) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}

	return context.WithValue(ctx, contextKey("mute"), muted)
}

func isMuted(ctx context.Context) bool {
	muted, ok := ctx.Value(contextKey("mute")).(bool)

	return ok && muted
}

// With returns a new context with the given values added.
// The values are added to the logger automatically.
func With(ctx context.Context, values ...any) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}

	if len(values) == 0 {
		return ctx
	}

	vals := append(getValues(ctx), values...)

	return context.WithValue(ctx, contextKey("loggerValues"), vals)
}

func getValues(ctx context.Context) []any {
	vals, ok := ctx.Value(contextKey("loggerValues")).([]any)
	if !ok {
		return nil
	}

	// Copy so that callers appending to the result never share a backing array.
	return append([]any(nil), vals...)
}

// nullHandler discards all log output. It backs the muted logger.
type nullHandler struct{}

func (n *nullHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (n *nullHandler) Handle(context.Context, slog.Record) error { return nil }
func (n *nullHandler) WithAttrs([]slog.Attr) slog.Handler        { return n }
func (n *nullHandler) WithGroup(string) slog.Handler             { return n }

var nullLogger = slog.New(&nullHandler{}) //nolint:gochecknoglobals

// Get returns a logger carrying the subsystem and any values added with With.
// Only the first non-nil context is used.
//
//nolint:contextcheck
func Get(ctx ...context.Context) *slog.Logger {
	realCtx := context.Background()

	for _, c := range ctx {
		if c != nil {
			realCtx = c

			break
		}
	}

	if isMuted(realCtx) {
		return nullLogger
	}

	logger := slog.Default().With("subsystem", GetSubsystem(realCtx))

	if vals := getValues(realCtx); len(vals) > 0 {
		logger = logger.With(vals...)
	}

	return logger
}
