package logger

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTee(t *testing.T) {
	t.Parallel()

	var debug, warn bytes.Buffer

	h := Tee(
		slog.NewTextHandler(&debug, &slog.HandlerOptions{Level: slog.LevelDebug}),
		nil,
		slog.NewTextHandler(&warn, &slog.HandlerOptions{Level: slog.LevelWarn}),
	)

	log := slog.New(h).With("machine", "phone")

	log.Debug("tick")
	log.Warn("slow")

	assert.Contains(t, debug.String(), "msg=tick")
	assert.Contains(t, debug.String(), "msg=slow")
	assert.NotContains(t, warn.String(), "msg=tick")
	assert.Contains(t, warn.String(), "msg=slow machine=phone")
}

func TestTeeDegenerate(t *testing.T) {
	t.Parallel()

	only := slog.NewTextHandler(&bytes.Buffer{}, nil)

	assert.Same(t, only, Tee(nil, only))
	assert.False(t, Tee().Enabled(t.Context(), slog.LevelError))
}
