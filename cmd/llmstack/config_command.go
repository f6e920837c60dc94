package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"llmstack/internal/config"
)

func createConfigCommand(globalFlags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration and launch plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(globalFlags.ConfigPath)
			if err != nil {
				return &exitError{code: exitConfig, err: err}
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "host        = %s\n", cfg.Host)
			_, _ = fmt.Fprintf(out, "ctx_size    = %d\n", cfg.CtxSize)
			_, _ = fmt.Fprintf(out, "timeout     = %s\n", cfg.Timeout)
			_, _ = fmt.Fprintf(out, "log_dir     = %s\n", cfg.LogDir)
			_, _ = fmt.Fprintf(out, "status_addr = %s\n", cfg.StatusAddr)
			_, _ = fmt.Fprintf(out, "history_dsn = %s\n", cfg.HistoryDSN)
			for _, d := range cfg.Plan() {
				_, _ = fmt.Fprintf(out, "\n[%s]\n", d.Name)
				_, _ = fmt.Fprintf(out, "  command   = %s\n", d.Command)
				_, _ = fmt.Fprintf(out, "  readiness = %s\n", d.Readiness.Describe())
				_, _ = fmt.Fprintf(out, "  timeout   = %s\n", d.Timeout)
				_, _ = fmt.Fprintf(out, "  log       = %s\n", d.LogPath)
			}
			return nil
		},
	}
}
