package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

type cliFlags struct {
	Debug         bool
	NoCache       bool
	TraceEndpoint string
	MetricsAddr   string
}

func main() {
	var flags cliFlags

	rootCmd := &cobra.Command{
		Use:   "pyrite",
		Short: "Static type checker",
		Long: `Pyrite checks modules produced by the pyrite front end: it reads
*.ast.json documents, runs two-pass analysis plus flow-sensitive
checking across the import graph, and reports diagnostics. Results are
cached per module so unchanged code is not re-checked.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if flags.Debug {
				level = slog.LevelDebug
			}
			handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: level,
			})
			slog.SetDefault(slog.New(handler))
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&flags.Debug, "debug", "d", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&flags.TraceEndpoint, "trace-endpoint", os.Getenv("PYRITE_OTLP_ENDPOINT"), "OTLP gRPC endpoint for trace export")

	rootCmd.AddCommand(checkCmd(&flags))
	rootCmd.AddCommand(watchCmd(&flags))

	if err := fang.Execute(context.Background(), rootCmd,
		fang.WithVersion("v0.1.0"),
		fang.WithErrorHandler(func(w io.Writer, styles fang.Styles, err error) {
			_, _ = fmt.Fprintln(w, err.Error())
		}),
	); err != nil {
		os.Exit(1)
	}
}

func checkCmd(flags *cliFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [dir]",
		Short: "Check a project once",
		Example: `  # Check the project containing the current directory
  pyrite check

  # Check a specific directory, bypassing the result cache
  pyrite check --no-cache ./src`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			return runCheck(cmd.Context(), dir, flags)
		},
	}
	cmd.Flags().BoolVar(&flags.NoCache, "no-cache", false, "Check everything, ignoring cached results")
	return cmd
}

func watchCmd(flags *cliFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Re-check the project whenever files change",
		Example: `  # Watch the current project
  pyrite watch

  # Watch and expose Prometheus metrics
  pyrite watch --metrics-addr :9090`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			return runWatch(cmd.Context(), dir, flags)
		},
	}
	cmd.Flags().BoolVar(&flags.NoCache, "no-cache", false, "Check everything, ignoring cached results")
	cmd.Flags().StringVar(&flags.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	return cmd
}
