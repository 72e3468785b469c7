package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/couchcryptid/air-quality-analysis/internal/adapter/chart"
	"github.com/couchcryptid/air-quality-analysis/internal/adapter/csvsource"
	"github.com/couchcryptid/air-quality-analysis/internal/adapter/kafka"
	"github.com/couchcryptid/air-quality-analysis/internal/config"
	"github.com/couchcryptid/air-quality-analysis/internal/observability"
	"github.com/couchcryptid/air-quality-analysis/internal/pipeline"
	"github.com/spf13/cobra"
)

const pushTimeout = 10 * time.Second

// traceOutput receives exported spans. It shares stderr with the logger so
// stdout carries only the report.
var traceOutput io.Writer = os.Stderr

func newAnalyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze [path]",
		Short: "Run the full pipeline and write charts and exports to OUTPUT_DIR",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd.Context(), cmd.OutOrStdout(), args)
		},
	}
}

func runAnalyze(ctx context.Context, out io.Writer, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	shutdown, err := observability.SetupTracing(cfg, traceOutput)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Error("tracer shutdown error", "error", err)
		}
	}()

	var publisher pipeline.Publisher
	if cfg.PublishEnabled() {
		writer := kafka.NewWriter(cfg, logger)
		defer func() {
			if err := writer.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}()
		publisher = writer
		logger.Info("kafka publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	p := pipeline.New(
		pipeline.SourceFunc(csvsource.Load),
		chart.NewRenderer(cfg.OutputDir),
		publisher,
		logger,
		metrics,
		pipeline.OptionsFromConfig(cfg),
	)

	rep, runErr := p.Run(ctx, inputPath(args, cfg.InputPath))
	pushMetrics(ctx, cfg, metrics, logger)
	if runErr != nil {
		return &exitError{code: 1, err: runErr}
	}

	if err := writeReport(out, rep); err != nil {
		return err
	}
	if rep.SinkFailed() {
		return failf(2, "analysis complete but %d outputs failed", len(rep.SinkErrors))
	}
	return nil
}

// pushMetrics sends the run's metrics to the Pushgateway when one is
// configured. A failed push is logged and does not change the exit code.
func pushMetrics(ctx context.Context, cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) {
	if cfg.PushgatewayURL == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), pushTimeout)
	defer cancel()
	if err := metrics.Push(ctx, cfg.PushgatewayURL, observability.ServiceName); err != nil {
		logger.Warn("pushgateway push failed", "url", cfg.PushgatewayURL, "error", err)
		return
	}
	logger.Debug("metrics pushed", "url", cfg.PushgatewayURL)
}
