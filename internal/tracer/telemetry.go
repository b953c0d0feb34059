package tracer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"

	"product-service/internal/config"
	"product-service/internal/logger"
	"product-service/internal/version"

	otelpyroscope "github.com/grafana/otel-profiling-go"
	"github.com/grafana/pyroscope-go"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

var (
	once         sync.Once
	shutdownFunc func(context.Context) error
	initErr      error
)

var stdoutWriter io.Writer = os.Stdout

var pyroLogrus = func() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.InfoLevel)
	return l
}()

// Options selects the span exporter and the profiler. OTLP wins over stdout; with neither,
// spans are still created for log correlation but never exported.
type Options struct {
	AppName      string
	OTLPEndpoint string
	Stdout       io.Writer
	PyroscopeURI string
}

// Setup installs the global tracer provider and propagators. The returned func flushes
// pending spans and stops the profiler.
func Setup(ctx context.Context, opts Options) (func(context.Context) error, error) {
	log := logger.Instance()

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(opts.AppName),
			semconv.ServiceVersionKey.String(version.Version),
			attribute.String("commit", version.Commit),
		),
	)
	if err != nil {
		return nil, err
	}

	tpOpts := []trace.TracerProviderOption{trace.WithResource(res)}
	switch {
	case opts.OTLPEndpoint != "":
		exp, err := otlptracegrpc.New(ctx,
			otlptracegrpc.WithInsecure(),
			otlptracegrpc.WithEndpoint(opts.OTLPEndpoint),
			otlptracegrpc.WithCompressor("gzip"),
		)
		if err != nil {
			return nil, err
		}
		tpOpts = append(tpOpts, trace.WithBatcher(exp))
		log.Info("Exporting traces over OTLP", slog.String("endpoint", opts.OTLPEndpoint))
	case opts.Stdout != nil:
		exp, err := stdouttrace.New(stdouttrace.WithWriter(opts.Stdout))
		if err != nil {
			return nil, err
		}
		tpOpts = append(tpOpts, trace.WithSyncer(exp))
		log.Info("Exporting traces to stdout")
	}
	tp := trace.NewTracerProvider(tpOpts...)

	var profiler *pyroscope.Profiler
	if opts.PyroscopeURI != "" {
		profiler, err = pyroscope.Start(pyroscope.Config{
			ApplicationName: opts.AppName,
			ServerAddress:   opts.PyroscopeURI,
			Logger:          pyroLogrus,
		})
		if err != nil {
			log.Error("Pyroscope failed to start", slog.String("error", err.Error()))
		} else {
			log.Info("Pyroscope started successfully")
		}
	}

	// span ids are attached to profiles only while a profiler runs
	if profiler != nil {
		otel.SetTracerProvider(otelpyroscope.NewTracerProvider(tp))
	} else {
		otel.SetTracerProvider(tp)
	}
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	log.Info("OpenTelemetry Tracer initialized")

	return func(ctx context.Context) error {
		err := tp.Shutdown(ctx)
		if profiler != nil {
			err = errors.Join(err, profiler.Stop())
		}
		return err
	}, nil
}

// Instance sets tracing up once from the process configuration.
func Instance(globalCtx context.Context) (func(context.Context) error, error) {
	once.Do(func() {
		cfg := config.Instance()
		opts := Options{
			AppName:      cfg.AppName,
			OTLPEndpoint: cfg.RemoteTraceRpcURI,
			PyroscopeURI: cfg.RemoteProfilingHttpURI,
		}
		if cfg.TraceStdout {
			opts.Stdout = stdoutWriter
		}
		shutdownFunc, initErr = Setup(globalCtx, opts)
		if initErr != nil {
			logger.Instance().Error("Failed to set up tracing", slog.String("error", initErr.Error()))
		}
	})
	return shutdownFunc, initErr
}
