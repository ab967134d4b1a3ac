// Command phoneverify runs the phone verification flow against a simulated SMS gateway.
//
//	phoneverify -phone +37060000000 [-config phone.yaml] [-env-file .env] [-metrics-addr :9090]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/amp-labs/amp-state/actor"
	"github.com/amp-labs/amp-state/build"
	"github.com/amp-labs/amp-state/cli"
	"github.com/amp-labs/amp-state/driver"
	"github.com/amp-labs/amp-state/logger"
	pv "github.com/amp-labs/amp-state/phoneverification"
	"github.com/amp-labs/amp-state/shutdown"
	"github.com/amp-labs/amp-state/statemachine"
	"github.com/amp-labs/amp-state/telemetry"
)

const (
	appName      = "phoneverify"
	mailboxDepth = 16
)

var errMissingPhone = errors.New("-phone is required")

// buildInfo is set with -ldflags "-X main.buildInfo=<json>".
var buildInfo string //nolint:gochecknoglobals

type flags struct {
	phone       string
	config      string
	envFiles    []string
	metricsAddr string
	interactive bool
	autoReceive time.Duration
	latency     time.Duration
	failRate    float64
	seed        uint64
}

func parseFlags(args []string) (flags, error) {
	var (
		f       flags
		envFile string
	)

	fs := flag.NewFlagSet(appName, flag.ContinueOnError)
	fs.StringVar(&f.phone, "phone", "", "phone number to verify")
	fs.StringVar(&f.config, "config", "", "YAML file with the flow configuration")
	fs.StringVar(&envFile, "env-file", "", "comma separated dotenv files loaded before the environment is read")
	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	fs.BoolVar(&f.interactive, "interactive", true, "prompt for the code on the terminal")
	fs.DurationVar(&f.autoReceive, "auto-receive", -1, "hand incoming SMS to the flow after this delay (negative disables)")
	fs.DurationVar(&f.latency, "latency", 500*time.Millisecond, "simulated gateway latency") //nolint:mnd
	fs.Float64Var(&f.failRate, "fail-rate", 0, "probability that sending an SMS fails")
	fs.Uint64Var(&f.seed, "seed", uint64(time.Now().UnixNano()), "seed for generated codes") //nolint:gosec

	if err := fs.Parse(args); err != nil {
		return flags{}, err
	}

	if f.phone == "" {
		return flags{}, errMissingPhone
	}

	if envFile != "" {
		f.envFiles = strings.Split(envFile, ",")
	}

	return f, nil
}

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			slog.Error("phoneverify failed", "error", err)
		}

		os.Exit(1)
	}
}

func setupTelemetry(ctx context.Context) error {
	cfg, err := telemetry.LoadConfigFromEnv()
	if err != nil {
		return err
	}

	if cfg.ServiceName == "" {
		cfg.ServiceName = appName
	}

	if err := telemetry.Initialize(ctx, cfg); err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}

	shutdown.BeforeShutdown(func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
		defer cancel()

		if err := telemetry.Shutdown(flushCtx); err != nil {
			slog.Warn("Telemetry shutdown failed", "error", err)
		}
	})

	if h := telemetry.LogHandler(appName); h != nil {
		if _, err := logger.ConfigureLogging(appName, logger.WithHandler(logger.Tee(slog.Default().Handler(), h))); err != nil {
			return err
		}
	}

	return nil
}

func run(parent context.Context, args []string) error {
	f, err := parseFlags(args)
	if err != nil {
		return err
	}

	// Dotenv files are applied here, so they also feed the logging and telemetry settings.
	cfg, err := pv.LoadConfig(f.config, f.envFiles...)
	if err != nil {
		return err
	}

	log, err := logger.ConfigureLogging(appName)
	if err != nil {
		return err
	}

	log.Info("Starting", "build", build.Resolve(buildInfo), "phone", f.phone)

	ctx := shutdown.SetupHandler(parent)

	if err := setupTelemetry(ctx); err != nil {
		return err
	}

	if f.metricsAddr != "" {
		server := serveMetrics(f.metricsAddr)

		shutdown.BeforeShutdown(func() {
			_ = server.Shutdown(context.Background())
		})
	}

	machine, err := pv.NewMachine(f.phone, cfg, statemachine.WithLogger(statemachine.NewSlogLogger(logger.Get(ctx))))
	if err != nil {
		return err
	}

	ref := actor.Run(ctx, machine, machine.Name(), mailboxDepth)

	a := newApp(ref, newGateway(cfg.CodeLength, f.latency, f.failRate, f.seed), f.phone, os.Stdout)
	a.autoReceive = f.autoReceive

	reactor := driver.NewReactor(ctx, machine.Name(), ref, nil, pendingEffect, a.handle)

	binding := driver.Bind[pv.State](ref, func(ctx context.Context, change statemachine.Change[pv.State]) {
		reactor.Observe(ctx, change)
		a.trace(ctx, change)
	}, true)
	if err := binding.Start(ctx); err != nil {
		return err
	}

	ticker := driver.NewTicker[pv.Event]("countdown", ref, time.Second, pv.SecondPassed{})
	ticker.Start(ctx)

	if f.interactive {
		err = a.interact(ctx, cli.NewPrompter(), cfg.CodeLength)
	} else {
		a.wait(ctx)
	}

	ticker.Stop()

	_ = binding.Stop(context.Background())

	ref.Stop()
	ref.Wait()

	shutdown.RunHooks()

	return err
}
