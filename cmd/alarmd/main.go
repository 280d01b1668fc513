// alarmd runs an alarm panel and exposes it over HTTP and, optionally, an
// interactive console.
//
// Usage:
//
//	alarmd -listen :8080 -config alarm.yaml -repl
//
// Every flag falls back to an ALARMD_* environment variable; alarm dwell
// bounds can be overridden with ALARM_* variables.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/librescoot/tempfsm"
	"github.com/librescoot/tempfsm/alarm"
	"github.com/librescoot/tempfsm/internal/logging"
	"github.com/librescoot/tempfsm/internal/server"
	"github.com/librescoot/tempfsm/metrics"
)

var Version = "dev"

type daemonConfig struct {
	Listen        string        `env:"ALARMD_LISTEN" envDefault:":8080"`
	ConfigPath    string        `env:"ALARMD_CONFIG"`
	LogLevel      string        `env:"ALARMD_LOG_LEVEL" envDefault:"info"`
	LogConsole    bool          `env:"ALARMD_LOG_CONSOLE"`
	REPL          bool          `env:"ALARMD_REPL"`
	CommandLimit  int           `env:"ALARMD_COMMAND_LIMIT" envDefault:"30"`
	CommandWindow time.Duration `env:"ALARMD_COMMAND_WINDOW" envDefault:"1m"`
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "alarmd: %v\n", err)
		os.Exit(1)
	}
}

func parseConfig(args []string) (daemonConfig, error) {
	fs := flag.NewFlagSet("alarmd", flag.ContinueOnError)
	envFile := fs.String("env-file", "", "optional .env file loaded before reading the environment")

	// First pass only to find the env file
	var cfg daemonConfig
	bind(fs, &cfg)
	if err := fs.Parse(args); err != nil {
		return daemonConfig{}, err
	}
	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			return daemonConfig{}, fmt.Errorf("load env file: %w", err)
		}
	}

	// Environment provides defaults, explicit flags win
	cfg = daemonConfig{}
	if err := env.Parse(&cfg); err != nil {
		return daemonConfig{}, fmt.Errorf("parse env: %w", err)
	}
	fs = flag.NewFlagSet("alarmd", flag.ContinueOnError)
	fs.String("env-file", *envFile, "optional .env file loaded before reading the environment")
	bind(fs, &cfg)
	if err := fs.Parse(args); err != nil {
		return daemonConfig{}, err
	}
	return cfg, nil
}

func bind(fs *flag.FlagSet, cfg *daemonConfig) {
	fs.StringVar(&cfg.Listen, "listen", cfg.Listen, "HTTP listen address")
	fs.StringVar(&cfg.ConfigPath, "config", cfg.ConfigPath, "path to alarm YAML configuration")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	fs.BoolVar(&cfg.LogConsole, "log-console", cfg.LogConsole, "human readable logs")
	fs.BoolVar(&cfg.REPL, "repl", cfg.REPL, "read commands from stdin")
	fs.IntVar(&cfg.CommandLimit, "command-limit", cfg.CommandLimit, "commands per window and client IP (0 disables)")
	fs.DurationVar(&cfg.CommandWindow, "command-window", cfg.CommandWindow, "rate limit window")
}

// newPanel builds the alarm with transition logging and metrics attached
// before Startup fires, so the bootstrap transition is counted too.
func newPanel(ctx context.Context, cfg alarm.Config, logger zerolog.Logger, collector *metrics.Collector) (*alarm.Alarm, error) {
	fsmLogger := logging.WithComponent(logger, "fsm")
	return alarm.New(ctx, cfg,
		tempfsm.WithName("alarm"),
		tempfsm.WithLogger(fsmLogger),
		tempfsm.WithObserver(logging.Transitions(fsmLogger)),
		tempfsm.WithObserver(collector.Observe),
		tempfsm.WithExpiryErrorHandler(collector.ExpiryFailed(func(e tempfsm.ExpiryError) {
			fsmLogger.Warn().Err(e).Msg("timer expiry failed")
		})),
	)
}

func run(args []string) error {
	cfg, err := parseConfig(args)
	if err != nil {
		return err
	}

	logger := logging.New(logging.Config{Level: cfg.LogLevel, Console: cfg.LogConsole})
	logger.Info().Str("version", Version).Str("listen", cfg.Listen).Msg("starting alarmd")

	alarmCfg, err := alarm.LoadConfig(cfg.ConfigPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.New(reg)

	panel, err := newPanel(ctx, alarmCfg, logger, collector)
	if err != nil {
		return err
	}
	defer panel.Close()

	srv := &http.Server{
		Addr: cfg.Listen,
		Handler: server.New(panel, logging.WithComponent(logger, "http"), server.Options{
			CommandLimit:  cfg.CommandLimit,
			CommandWindow: cfg.CommandWindow,
			Metrics:       promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if cfg.REPL {
		g.Go(func() error {
			return runREPL(gctx, os.Stdin, os.Stdout, panel)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, errQuit) {
		return err
	}
	logger.Info().Msg("alarmd stopped")
	return nil
}
