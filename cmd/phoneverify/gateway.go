package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"
)

var errGatewayDown = errors.New("sms gateway unavailable")

// gateway stands in for an SMS provider. It remembers the last code per phone and
// delivers the text to the device through deliver after the configured delay.
type gateway struct {
	codeLength int
	latency    time.Duration
	failRate   float64

	mu    sync.Mutex
	rnd   *rand.Rand
	codes map[string]string
}

func newGateway(codeLength int, latency time.Duration, failRate float64, seed uint64) *gateway {
	return &gateway{
		codeLength: codeLength,
		latency:    latency,
		failRate:   failRate,
		rnd:        rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)), //nolint:gosec
		codes:      make(map[string]string),
	}
}

func (g *gateway) wait(ctx context.Context) error {
	if g.latency <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(g.latency)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Send issues a fresh code for phone and returns the message text the phone receives.
func (g *gateway) Send(ctx context.Context, phone string) (string, error) {
	if err := g.wait(ctx); err != nil {
		return "", err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.rnd.Float64() < g.failRate {
		return "", errGatewayDown
	}

	var code strings.Builder

	for range g.codeLength {
		code.WriteByte(byte('0' + g.rnd.IntN(10))) //nolint:mnd
	}

	g.codes[phone] = code.String()

	return fmt.Sprintf("Your code is %s", code.String()), nil
}

// Check reports whether code is the last one sent to phone.
func (g *gateway) Check(ctx context.Context, phone, code string) (bool, error) {
	if err := g.wait(ctx); err != nil {
		return false, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	sent, ok := g.codes[phone]

	return ok && sent == code, nil
}
