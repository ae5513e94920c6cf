// Package telemetry installs the process-wide OpenTelemetry tracer provider.
package telemetry

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/WRLC/alma-item-checks-webhook-service/internal/config"
)

const tracesPath = "/v1/traces"

// NewTracerProvider builds an SDK tracer provider from cfg and registers it
// as the global provider. Spans go to an OTLP/HTTP exporter when
// cfg.OTLPEndpoint is set; extra options are applied after the defaults.
// Callers must Shutdown the provider to flush buffered spans.
func NewTracerProvider(
	ctx context.Context,
	cfg *config.TelemetryConfig,
	logger *zap.Logger,
	opts ...sdktrace.TracerProviderOption,
) (*sdktrace.TracerProvider, error) {
	logger = logger.Named("telemetry")

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(attribute.String("service.name", cfg.ServiceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("building trace resource: %w", err)
	}

	base := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	}

	if cfg.OTLPEndpoint != "" {
		endpoint, err := tracesURL(cfg.OTLPEndpoint)
		if err != nil {
			return nil, err
		}
		exp, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(endpoint))
		if err != nil {
			return nil, fmt.Errorf("creating OTLP trace exporter: %w", err)
		}
		base = append(base, sdktrace.WithBatcher(exp))
		logger.Info("exporting traces", zap.String("endpoint", endpoint), zap.Float64("sample_ratio", cfg.SampleRatio))
	} else {
		logger.Info("no OTLP endpoint configured, spans are not exported")
	}

	tp := sdktrace.NewTracerProvider(append(base, opts...)...)
	otel.SetTracerProvider(tp)

	return tp, nil
}

// tracesURL turns an OTLP base endpoint into the traces URL, appending the
// standard signal path when none is given.
func tracesURL(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid OTEL_EXPORTER_OTLP_ENDPOINT %q", endpoint)
	}
	if strings.Trim(u.Path, "/") == "" {
		u.Path = tracesPath
	}
	return u.String(), nil
}
