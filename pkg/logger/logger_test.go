package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/architeacher/gpstracker/pkg/logger"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		level    string
		expected zerolog.Level
	}{
		{name: "debug", level: logger.LogLevelDebug, expected: zerolog.DebugLevel},
		{name: "upper case info", level: "INFO", expected: zerolog.InfoLevel},
		{name: "warning alias", level: logger.LogLevelWarning, expected: zerolog.WarnLevel},
		{name: "error", level: logger.LogLevelError, expected: zerolog.ErrorLevel},
		{name: "unknown falls back to info", level: "verbose", expected: zerolog.InfoLevel},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			require.Equal(t, tc.expected, logger.ParseLevel(tc.level))
		})
	}
}

func TestWithContext(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name                  string
		setupContext          func() context.Context
		expectedRequestID     string
		expectedCorrelationID string
	}{
		{
			name: "adds request ID to logger",
			setupContext: func() context.Context {
				return logger.ContextWithRequestID(context.Background(), "test-request-123")
			},
			expectedRequestID: "test-request-123",
		},
		{
			name: "adds correlation ID to logger",
			setupContext: func() context.Context {
				return logger.ContextWithCorrelationID(context.Background(), "corr-7")
			},
			expectedCorrelationID: "corr-7",
		},
		{
			name: "handles empty context",
			setupContext: func() context.Context {
				return context.Background()
			},
		},
		{
			name: "handles empty request ID",
			setupContext: func() context.Context {
				return logger.ContextWithRequestID(context.Background(), "")
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			log := logger.NewWithWriter(logger.LogLevelInfo, logger.JSONLoggingFormat, &buf)

			ctxLogger := log.WithContext(tc.setupContext())
			ctxLogger.Info().Msg("test message")

			var logEntry map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &logEntry))

			if tc.expectedRequestID != "" {
				require.Equal(t, tc.expectedRequestID, logEntry["request_id"])
			} else {
				require.NotContains(t, logEntry, "request_id")
			}

			if tc.expectedCorrelationID != "" {
				require.Equal(t, tc.expectedCorrelationID, logEntry["correlation_id"])
			} else {
				require.NotContains(t, logEntry, "correlation_id")
			}
		})
	}
}

func TestComponent(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.NewBufferedTestLogger(&buf).Component("partition-worker")

	log.Info().Msg("started")

	var logEntry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &logEntry))
	require.Equal(t, "partition-worker", logEntry["component"])
}

func TestContextAccessors(t *testing.T) {
	t.Parallel()

	ctx := logger.ContextWithRequestID(t.Context(), "req-1")
	ctx = logger.ContextWithCorrelationID(ctx, "corr-1")

	require.Equal(t, "req-1", logger.RequestIDFromContext(ctx))
	require.Equal(t, "corr-1", logger.CorrelationIDFromContext(ctx))
	require.Empty(t, logger.RequestIDFromContext(t.Context()))
}
