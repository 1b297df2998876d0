// Package noop discards every measurement. It backs the tracker when
// METRICS_ENABLED is false and in tests that do not assert on metrics.
package noop

import (
	"context"
	"net/http"

	"github.com/architeacher/gpstracker/pkg/metrics"
	"go.opentelemetry.io/otel/attribute"
)

var _ metrics.Client = MetricsClient{}

type MetricsClient struct{}

func NewMetricsClient() MetricsClient {
	return MetricsClient{}
}

func (MetricsClient) Inc(context.Context, string, any, ...attribute.KeyValue) {}

// Handler answers scrapes with 404 so a misconfigured scraper is visible.
func (MetricsClient) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "metrics are disabled", http.StatusNotFound)
	})
}

func (MetricsClient) Shutdown(context.Context) error {
	return nil
}
