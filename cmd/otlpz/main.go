// Command otlpz sends sample traces and metrics to an OTLP/HTTP collector.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/zoobzio/otlpz"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	envFile     string
	flushWait   time.Duration
	serviceName string

	rootCmd = &cobra.Command{
		Use:   "otlpz",
		Short: "Send sample telemetry to an OTLP/HTTP collector",
		Long: `otlpz emits sample spans and metrics using the otlpz library.
Endpoints, headers and service name come from the usual OTEL_* variables,
optionally loaded from a .env file.`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return loadEnv(envFile)
		},
	}

	nestedCmd = &cobra.Command{
		Use:   "nested",
		Short: "Emit a trace of nested spans with log events",
		RunE:  runNested,
	}

	metricsCmd = &cobra.Command{
		Use:   "metrics",
		Short: "Upload a counter and a gauge",
		RunE:  runMetrics,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading OTEL_* variables")
	rootCmd.PersistentFlags().StringVar(&serviceName, "service", "", "service.name override")
	rootCmd.PersistentFlags().DurationVar(&flushWait, "flush-timeout", 10*time.Second, "how long to wait for in-flight exports on exit")
	rootCmd.AddCommand(nestedCmd, metricsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadEnv loads path if it exists. Variables already set win.
func loadEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// setup reads the environment, installs the span-aware logger and registers
// the tracer globally.
func setup() (*otlpz.Tracer, *otlpz.Recorder, error) {
	cfg, err := otlpz.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	if serviceName != "" {
		cfg.ServiceName = serviceName
	}

	directives, err := otlpz.ParseLevelDirectives(cfg.LogDirectives)
	if err != nil {
		return nil, nil, err
	}
	logger := slog.New(otlpz.NewLogHandler(
		slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: otlpz.LevelTrace}),
		directives,
	))
	slog.SetDefault(logger)

	executor := otlpz.NewExecutor(0)
	tracer, err := cfg.NewTracer(otlpz.WithLogger(logger), otlpz.WithExecutor(executor))
	if err != nil {
		return nil, nil, err
	}
	otlpz.Register(executor, tracer)

	recorder := otlpz.NewRecorder()
	recorder.Attach(tracer)
	return tracer, recorder, nil
}

func shutdown(tracer *otlpz.Tracer) error {
	ctx, cancel := context.WithTimeout(context.Background(), flushWait)
	defer cancel()

	if err := tracer.Close(ctx); err != nil {
		return err
	}
	return otlpz.GlobalExecutor().Close(ctx)
}

func runNested(cmd *cobra.Command, _ []string) error {
	tracer, recorder, err := setup()
	if err != nil {
		return err
	}

	ctx, span := tracer.Span("main").WithKind(trace.SpanKindServer).Start(cmd.Context())
	slog.InfoContext(ctx, "hello, world!")
	if err := doWork1(ctx); err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()

	if err := shutdown(tracer); err != nil {
		return err
	}
	for _, s := range recorder.Export() {
		slog.Info("span exported",
			"name", s.Name,
			"trace_id", s.TraceID,
			"span_id", s.SpanID,
			"parent_id", s.ParentID,
			"events", len(s.Events))
	}
	return nil
}

func doWork1(ctx context.Context) error {
	ctx, span := otlpz.StartSpan("do_work1").Start(ctx)
	defer span.End()

	slog.InfoContext(ctx, "hello from do_work1")
	return doWork2(ctx)
}

func doWork2(ctx context.Context) error {
	ctx, span := otlpz.StartSpan("do_work2").WithAttribute("work.step", "2").Start(ctx)
	defer span.End()

	slog.InfoContext(ctx, "hello from do_work2")
	return doWork3(ctx)
}

func doWork3(ctx context.Context) error {
	ctx, span := otlpz.StartSpan("do_work3").Start(ctx)
	defer span.End()

	slog.DebugContext(ctx, "hello from do_work3")
	span.SetStatus(codes.Ok, "")
	return nil
}

func runMetrics(cmd *cobra.Command, _ []string) error {
	tracer, _, err := setup()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	orders := otlpz.NewCounter(tracer, "orders_processed", "Number of orders processed", "orders").
		WithAttribute("order.type", "standard")
	queue := otlpz.NewGauge(tracer, "queue_depth", "Orders waiting to be processed", "orders")

	orders.Inc()
	orders.Add(2)
	queue.Set(7)

	slog.InfoContext(ctx, "uploading metrics...")
	if err := orders.Upload(ctx); err != nil {
		return err
	}
	if err := queue.Upload(ctx); err != nil {
		return err
	}
	slog.InfoContext(ctx, "metrics uploaded successfully!", "orders", orders.Value(), "queue", queue.Value())

	return shutdown(tracer)
}
