// Command airq analyzes an hourly air-quality CSV: it cleans the data,
// computes statistics and correlations, classifies PM2.5 into AQI bands, ranks
// the most polluted hours and days, and writes charts plus tabular exports.
//
// Usage:
//
//	airq [analyze] [path]
//	airq validate [path]
//	airq genmock --out data/air_quality.csv --days 30 --seed 1
//
// Everything other than the input path is configured through environment
// variables (see internal/config).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// exitError carries a process exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) Unwrap() error { return e.err }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err == nil {
		return
	}

	code := 1
	var ee *exitError
	if errors.As(err, &ee) {
		code = ee.code
	}
	slog.Error("airq failed", "error", err, "exit_code", code)
	os.Exit(code)
}

func newRootCmd() *cobra.Command {
	analyze := newAnalyzeCmd()
	root := &cobra.Command{
		Use:           "airq [path]",
		Short:         "Air-quality analysis pipeline",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          analyze.RunE,
	}
	root.AddCommand(analyze, newValidateCmd(), newGenmockCmd())
	return root
}

func inputPath(args []string, fallback string) string {
	if len(args) == 1 {
		return args[0]
	}
	return fallback
}

func failf(code int, format string, args ...any) error {
	return &exitError{code: code, err: fmt.Errorf(format, args...)}
}
