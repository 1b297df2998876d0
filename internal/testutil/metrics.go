package testutil

import (
	"context"
	"net/http"
	"sync"

	"go.opentelemetry.io/otel/attribute"
)

// Metrics records every Inc call for assertions.
type Metrics struct {
	mu     sync.Mutex
	values map[string][]any
	attrs  map[string][]attribute.KeyValue
}

func NewMetrics() *Metrics {
	return &Metrics{
		values: make(map[string][]any),
		attrs:  make(map[string][]attribute.KeyValue),
	}
}

func (m *Metrics) Inc(_ context.Context, key string, value any, attributes ...attribute.KeyValue) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[key] = append(m.values[key], value)
	m.attrs[key] = attributes
}

func (m *Metrics) Handler() http.Handler {
	return http.NotFoundHandler()
}

func (m *Metrics) Shutdown(context.Context) error {
	return nil
}

// Count returns how many times key was recorded.
func (m *Metrics) Count(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.values[key])
}

// LastAttribute returns the value of the named attribute on the latest record of key.
func (m *Metrics) LastAttribute(key string, name attribute.Key) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, attr := range m.attrs[key] {
		if attr.Key == name {
			return attr.Value.Emit()
		}
	}

	return ""
}
