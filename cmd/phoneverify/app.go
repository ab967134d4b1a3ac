package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/amp-labs/amp-state/actor"
	"github.com/amp-labs/amp-state/cli"
	"github.com/amp-labs/amp-state/effect"
	"github.com/amp-labs/amp-state/logger"
	pv "github.com/amp-labs/amp-state/phoneverification"
	"github.com/amp-labs/amp-state/statemachine"
	"github.com/manifoldco/promptui"
)

const (
	actionEnterCode = "Enter code"
	actionRefresh   = "Refresh"
	actionQuit      = "Quit"
)

type machineRef = actor.Ref[pv.State, pv.Event]

// app performs the phone verification effects and talks to the user.
type app struct {
	ref     *machineRef
	gateway *gateway
	phone   string
	width   int
	// autoReceive is how long the simulated phone takes to hand an incoming SMS to the
	// machine. Negative means the user types the code.
	autoReceive time.Duration

	outMu sync.Mutex
	out   io.Writer

	closeOnce sync.Once
	closed    chan struct{}
}

func newApp(ref *machineRef, gw *gateway, phone string, out io.Writer) *app {
	return &app{
		ref:         ref,
		gateway:     gw,
		phone:       phone,
		width:       cli.DefaultWidth,
		autoReceive: -1,
		out:         out,
		closed:      make(chan struct{}),
	}
}

func pendingEffect(s pv.State) (pv.Effect, effect.Ticket, bool) {
	eff, ok := s.Effect()

	return eff, s.EffectTicket(), ok
}

func (a *app) printf(format string, args ...any) {
	a.outMu.Lock()
	defer a.outMu.Unlock()

	_, _ = fmt.Fprintf(a.out, format, args...)
}

// handle is the effect handler run by the reactor. Every effect is acknowledged with
// EffectHandled ahead of its result, so a finished effect never stays pending.
func (a *app) handle(ctx context.Context, eff pv.Effect, ticket effect.Ticket) []pv.Event {
	switch e := eff.(type) {
	case pv.SendSms:
		text, err := a.gateway.Send(ctx, a.phone)
		if err != nil {
			logger.Get(ctx).Warn("SMS not sent", "phone", a.phone, "error", err)

			return []pv.Event{pv.EffectHandled{Ticket: ticket}, pv.SmsFailed{Ticket: ticket}}
		}

		a.receive(ctx, text)

		return []pv.Event{pv.EffectHandled{Ticket: ticket}, pv.SmsSent{Ticket: ticket}}
	case pv.CheckCode:
		ok, err := a.gateway.Check(ctx, e.Phone, e.Code)
		if err != nil {
			logger.Get(ctx).Warn("Code check failed", "phone", e.Phone, "error", err)
		}

		if err != nil || !ok {
			return []pv.Event{pv.EffectHandled{Ticket: ticket}, pv.CodeRejected{Ticket: ticket}}
		}

		return []pv.Event{pv.EffectHandled{Ticket: ticket}, pv.CodeVerified{Ticket: ticket}}
	case pv.ShowError:
		a.printf("! %s\n", e.Message)

		return []pv.Event{pv.EffectHandled{Ticket: ticket}}
	case pv.Close:
		a.printf("%s verified\n", a.phone)
		a.closeOnce.Do(func() { close(a.closed) })

		return []pv.Event{pv.EffectHandled{Ticket: ticket}}
	default:
		logger.Get(ctx).Error("Unknown effect", "effect", fmt.Sprintf("%T", eff))

		return nil
	}
}

// receive shows the incoming SMS and, when enabled, hands it to the machine later.
func (a *app) receive(ctx context.Context, text string) {
	a.printf("SMS to %s: %s\n", a.phone, text)

	if a.autoReceive < 0 {
		return
	}

	time.AfterFunc(a.autoReceive, func() {
		if err := a.ref.Send(ctx, pv.SmsReceived{Message: text}); err != nil &&
			!errors.Is(err, actor.ErrDeadActor) {
			logger.Get(ctx).Warn("Could not deliver SMS", "error", err)
		}
	})
}

// trace logs every state change.
func (a *app) trace(ctx context.Context, change statemachine.Change[pv.State]) {
	logger.Get(ctx).Debug("Phone verification state",
		"code", change.New.Code(),
		"countdown", change.New.Countdown(),
		"in_progress", change.New.ShowProgress(),
		"effect_ticket", change.New.EffectTicket())
}

func render(s pv.State, width int) string {
	code := s.Code()
	if code == "" {
		code = "-"
	}

	lines := []string{
		"Phone: " + s.Phone(),
		"Code:  " + code,
	}

	if s.ShowProgress() {
		lines = append(lines, "Working...")
	}

	if s.ResendEnabled() {
		lines = append(lines, s.ResendLabel())
	} else {
		lines = append(lines, s.ResendLabel()+" in "+strconv.Itoa(s.Countdown())+"s")
	}

	return cli.Banner(lines, width, cli.AlignLeft)
}

// Done is closed once the machine asked to close.
func (a *app) Done() <-chan struct{} {
	return a.closed
}

func quitting(err error) bool {
	return errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF)
}

// interact drives the flow from the terminal until it is verified, the user quits or
// ctx is done.
func (a *app) interact(ctx context.Context, prompter *cli.Prompter, codeLength int) error {
	for {
		select {
		case <-a.closed:
			return nil
		case <-ctx.Done():
			return nil
		default:
		}

		st, err := a.ref.State(ctx)
		if err != nil {
			return err
		}

		a.printf("%s", render(st, a.width))

		idx, err := prompter.Choose("Next", []string{actionEnterCode, st.ResendLabel(), actionRefresh, actionQuit})
		if err != nil {
			if quitting(err) {
				return nil
			}

			return err
		}

		switch idx {
		case 0:
			code, err := prompter.Code("Code", codeLength)
			if err != nil {
				if quitting(err) {
					return nil
				}

				return err
			}

			if err := a.ref.Send(ctx, pv.CodeEntered{Text: code}); err != nil {
				return err
			}
		case 1:
			if !st.ResendEnabled() {
				a.printf("Resending is possible in %ds\n", st.Countdown())

				continue
			}

			if err := a.ref.Send(ctx, pv.ResendTapped{}); err != nil {
				return err
			}
		case 2: //nolint:mnd
			continue
		default:
			return nil
		}
	}
}

// wait blocks until the flow is verified or ctx is done.
func (a *app) wait(ctx context.Context) {
	select {
	case <-a.closed:
	case <-ctx.Done():
	}
}
