package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
}

// Metrics exposes the billing core's domain instruments. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	checkoutSessions metric.Int64Counter
	webhookEvents    metric.Int64Counter
	quotaDenied      metric.Int64Counter
	documents        metric.Int64Counter
	rateLimitDenied  metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(15*time.Second))),
	)
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return provider.Shutdown(ctx)
			},
		})
	}

	log.Info("metrics initialized",
		zap.String("endpoint", cfg.ExporterEndpoint),
		zap.String("protocol", cfg.ExporterProtocol),
	)
	return provider, nil
}

// New creates the domain instruments on the given provider.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "atelier"
	}
	meter := provider.Meter(name)

	m := &Metrics{}
	var err error
	if m.checkoutSessions, err = meter.Int64Counter("atelier_checkout_sessions_total"); err != nil {
		return nil, err
	}
	if m.webhookEvents, err = meter.Int64Counter("atelier_webhook_events_total"); err != nil {
		return nil, err
	}
	if m.quotaDenied, err = meter.Int64Counter("atelier_quota_denied_total"); err != nil {
		return nil, err
	}
	if m.documents, err = meter.Int64Counter("atelier_documents_created_total"); err != nil {
		return nil, err
	}
	if m.rateLimitDenied, err = meter.Int64Counter("atelier_rate_limit_denied_total"); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordCheckoutSession counts session creation attempts by routing and outcome.
func (m *Metrics) RecordCheckoutSession(ctx context.Context, route, outcome string) {
	if m == nil {
		return
	}
	m.checkoutSessions.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("route", route),
		attribute.String("outcome", outcome),
	)...))
}

// RecordWebhookEvent counts reconciled webhook deliveries.
func (m *Metrics) RecordWebhookEvent(ctx context.Context, eventType, outcome string) {
	if m == nil {
		return
	}
	m.webhookEvents.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("event_type", eventType),
		attribute.String("outcome", outcome),
	)...))
}

func (m *Metrics) RecordQuotaDenied(ctx context.Context, resource, plan string) {
	if m == nil {
		return
	}
	m.quotaDenied.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("resource", resource),
		attribute.String("plan", plan),
	)...))
}

func (m *Metrics) RecordDocumentCreated(ctx context.Context, docType string) {
	if m == nil {
		return
	}
	m.documents.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("doc_type", docType),
	)...))
}

func (m *Metrics) RecordRateLimitDenied(ctx context.Context, endpoint string) {
	if m == nil {
		return
	}
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("endpoint", endpoint),
	)...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"route":       {},
	"outcome":     {},
	"event_type":  {},
	"resource":    {},
	"plan":        {},
	"doc_type":    {},
	"endpoint":    {},
	"method":      {},
	"status_code": {},
}

// FilterAttributes strips labels outside the allow-list so ids never become
// metric dimensions.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
