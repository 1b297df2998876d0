// Package otel provides a metrics.Client that records through an OpenTelemetry
// meter and pushes to an OTLP collector.
package otel

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/architeacher/gpstracker/pkg/metrics"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

const meterName = "github.com/architeacher/gpstracker"

type (
	Config struct {
		Endpoint       string
		Insecure       bool
		ExportInterval time.Duration
		Descriptors    map[string]metrics.Descriptor
	}

	MetricsClient struct {
		provider    *sdkmetric.MeterProvider
		meter       metric.Meter
		descriptors map[string]metrics.Descriptor

		mu         sync.Mutex
		counters   map[string]metric.Int64Counter
		histograms map[string]metric.Float64Histogram
	}
)

// NewMetricsClient builds a push-based client exporting over OTLP/gRPC.
func NewMetricsClient(ctx context.Context, cfg Config, res *resource.Resource) (*MetricsClient, error) {
	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}

	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating OTLP metrics exporter: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if cfg.ExportInterval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(cfg.ExportInterval))
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)

	return NewWithMeterProvider(provider, cfg.Descriptors), nil
}

// NewWithMeterProvider wraps an existing SDK provider, used with a manual reader in tests.
func NewWithMeterProvider(provider *sdkmetric.MeterProvider, descriptors map[string]metrics.Descriptor) *MetricsClient {
	if descriptors == nil {
		descriptors = map[string]metrics.Descriptor{}
	}

	return &MetricsClient{
		provider:    provider,
		meter:       provider.Meter(meterName),
		descriptors: descriptors,
		counters:    make(map[string]metric.Int64Counter),
		histograms:  make(map[string]metric.Float64Histogram),
	}
}

// Inc adds integer values to a counter and records float values into a histogram.
// Instruments are created on first use; values of other types are ignored.
func (c *MetricsClient) Inc(ctx context.Context, key string, value any, attributes ...attribute.KeyValue) {
	opt := metric.WithAttributes(attributes...)

	switch v := value.(type) {
	case int:
		if counter := c.counter(key); counter != nil {
			counter.Add(ctx, int64(v), opt)
		}
	case int64:
		if counter := c.counter(key); counter != nil {
			counter.Add(ctx, v, opt)
		}
	case float64:
		if histogram := c.histogram(key); histogram != nil {
			histogram.Record(ctx, v, opt)
		}
	}
}

// Handler is not served: metrics are pushed to the collector.
func (c *MetricsClient) Handler() http.Handler {
	return http.NotFoundHandler()
}

func (c *MetricsClient) Shutdown(ctx context.Context) error {
	return c.provider.Shutdown(ctx)
}

func (c *MetricsClient) counter(key string) metric.Int64Counter {
	c.mu.Lock()
	defer c.mu.Unlock()

	if counter, ok := c.counters[key]; ok {
		return counter
	}

	counter, err := metrics.RegisterInt64Counter(c.meter, c.descriptors[key], key)
	if err != nil {
		return nil
	}

	c.counters[key] = counter

	return counter
}

func (c *MetricsClient) histogram(key string) metric.Float64Histogram {
	c.mu.Lock()
	defer c.mu.Unlock()

	if histogram, ok := c.histograms[key]; ok {
		return histogram
	}

	histogram, err := metrics.RegisterFloat64Histogram(c.meter, c.descriptors[key], key)
	if err != nil {
		return nil
	}

	c.histograms[key] = histogram

	return histogram
}
