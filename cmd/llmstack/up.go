package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"llmstack/internal/config"
	"llmstack/internal/env"
	"llmstack/internal/history"
	"llmstack/internal/logger"
	"llmstack/internal/metrics"
	"llmstack/internal/orchestrator"
	"llmstack/internal/server"
	"llmstack/internal/supervisor"
)

// UpFlags holds flags for the up command. Each overrides the corresponding
// config/env value when set.
type UpFlags struct {
	Host       string
	Timeout    time.Duration
	LogDir     string
	StatusAddr string
	HistoryDSN string
	Grace      time.Duration
	Verbose    bool
}

func createUpCommand(globalFlags *GlobalFlags, upFlags *UpFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "up",
		Short: "Start the inference stack and watch it until exit or interrupt",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUp(cmd, globalFlags, upFlags)
		},
	}
	cmd.Flags().StringVar(&upFlags.Host, "host", "", "bind host for all services")
	cmd.Flags().DurationVar(&upFlags.Timeout, "timeout", 0, "per-service startup budget")
	cmd.Flags().StringVar(&upFlags.LogDir, "log-dir", "", "directory for service log files")
	cmd.Flags().StringVar(&upFlags.StatusAddr, "status-addr", "", "address of the status API (empty string disables)")
	cmd.Flags().StringVar(&upFlags.HistoryDSN, "history-dsn", "", "SQLite DSN for run history (empty disables)")
	cmd.Flags().DurationVar(&upFlags.Grace, "grace", 0, "shutdown grace window before SIGKILL")
	cmd.Flags().BoolVarP(&upFlags.Verbose, "verbose", "v", false, "debug logging")
	return cmd
}

func runUp(cmd *cobra.Command, globalFlags *GlobalFlags, upFlags *UpFlags) error {
	level := slog.LevelInfo
	if upFlags.Verbose {
		level = slog.LevelDebug
	}
	log := logger.New(os.Stderr, level)

	cfg, err := config.Load(globalFlags.ConfigPath)
	if err != nil {
		return &exitError{code: exitConfig, err: err}
	}
	applyFlagOverrides(cmd, cfg, upFlags)

	descs, err := cfg.Descriptors()
	if err != nil {
		return &exitError{code: exitConfig, err: err}
	}

	var sink history.Sink = history.Nop{}
	if cfg.HistoryDSN != "" {
		s, err := history.NewSQLiteSink(cfg.HistoryDSN)
		if err != nil {
			// History is best-effort; a broken sink must not block the launch.
			log.Warn("run history disabled", "dsn", cfg.HistoryDSN, "err", err)
		} else {
			sink = s
			defer func() { _ = s.Close() }()
		}
	}

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		log.Warn("metrics registration failed", "err", err)
	}

	e := env.New()
	e.FromOS()
	orch := orchestrator.New(orchestrator.Config{
		Supervisor: supervisor.New(e, cfg.Sink()),
		Services:   descs,
		Grace:      cfg.Grace,
		Logger:     log,
		History:    sink,
	})

	if cfg.StatusAddr != "" {
		srv := server.NewServer(cfg.StatusAddr, orch)
		log.Info("status API listening", "addr", cfg.StatusAddr)
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	outcome := orch.Run(ctx)
	return outcomeError(log, outcome)
}

// applyFlagOverrides lets explicit flags win over config file and env.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config, f *UpFlags) {
	if cmd.Flags().Changed("host") {
		cfg.Host = f.Host
	}
	if cmd.Flags().Changed("timeout") {
		cfg.Timeout = f.Timeout
	}
	if cmd.Flags().Changed("log-dir") {
		cfg.LogDir = f.LogDir
	}
	if cmd.Flags().Changed("status-addr") {
		cfg.StatusAddr = f.StatusAddr
	}
	if cmd.Flags().Changed("history-dsn") {
		cfg.HistoryDSN = f.HistoryDSN
	}
	if cmd.Flags().Changed("grace") {
		cfg.Grace = f.Grace
	}
}

// outcomeError maps the run's terminal outcome to the process exit status.
func outcomeError(log *slog.Logger, out orchestrator.Outcome) error {
	switch out.Kind {
	case orchestrator.OutcomeAllReady, orchestrator.OutcomeInterrupted:
		log.Info("run finished", "outcome", out.String())
		return nil
	case orchestrator.OutcomeStartupFailed:
		return &exitError{code: exitStartupFailed, err: out.Err}
	case orchestrator.OutcomeUnexpectedExit:
		return &exitError{code: exitUnexpectedExit, err: out.Err}
	default:
		return &exitError{code: exitFailure, err: fmt.Errorf("unknown outcome: %s", out)}
	}
}
