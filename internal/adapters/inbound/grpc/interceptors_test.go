package grpc_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	inboundgrpc "github.com/architeacher/gpstracker/internal/adapters/inbound/grpc"
	"github.com/architeacher/gpstracker/internal/config"
	"github.com/architeacher/gpstracker/pkg/logger"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func TestContextExtractorInterceptor(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name                  string
		metadata              metadata.MD
		expectedRequestID     string
		expectedCorrelationID string
	}{
		{
			name:              "extracts request ID from metadata",
			metadata:          metadata.Pairs(inboundgrpc.MetadataKeyRequestID, "test-request-123"),
			expectedRequestID: "test-request-123",
		},
		{
			name:              "uses first value when multiple request IDs present",
			metadata:          metadata.Pairs(inboundgrpc.MetadataKeyRequestID, "first-id", inboundgrpc.MetadataKeyRequestID, "second-id"),
			expectedRequestID: "first-id",
		},
		{
			name: "extracts correlation ID alongside request ID",
			metadata: metadata.Pairs(
				inboundgrpc.MetadataKeyRequestID, "req-7",
				inboundgrpc.MetadataKeyCorrelationID, "corr-7",
			),
			expectedRequestID:     "req-7",
			expectedCorrelationID: "corr-7",
		},
		{
			name:     "generates request ID when missing",
			metadata: metadata.MD{},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			interceptor := inboundgrpc.ContextExtractorInterceptor()

			var capturedCtx context.Context
			handler := func(ctx context.Context, _ any) (any, error) {
				capturedCtx = ctx

				return "response", nil
			}

			resp, err := interceptor(metadata.NewIncomingContext(t.Context(), tc.metadata), nil, &grpc.UnaryServerInfo{}, handler)
			require.NoError(t, err)
			require.Equal(t, "response", resp)

			requestID := logger.RequestIDFromContext(capturedCtx)
			if tc.expectedRequestID == "" {
				require.Len(t, requestID, 36)
			} else {
				require.Equal(t, tc.expectedRequestID, requestID)
			}

			require.Equal(t, tc.expectedCorrelationID, logger.CorrelationIDFromContext(capturedCtx))
		})
	}
}

func TestAccessLogInterceptor(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name         string
		cfg          config.AccessLog
		method       string
		handlerErr   error
		expectLog    bool
		expectedCode string
	}{
		{
			name:      "logs completed request",
			cfg:       config.AccessLog{Enabled: true},
			method:    "/gpstracker.Tracker/Anything",
			expectLog: true,
		},
		{
			name:         "logs failed request with code",
			cfg:          config.AccessLog{Enabled: true},
			method:       "/gpstracker.Tracker/Anything",
			handlerErr:   status.Error(codes.Unavailable, "queue down"),
			expectLog:    true,
			expectedCode: codes.Unavailable.String(),
		},
		{
			name:   "skips health checks by default",
			cfg:    config.AccessLog{Enabled: true},
			method: "/grpc.health.v1.Health/Check",
		},
		{
			name:      "logs health checks when enabled",
			cfg:       config.AccessLog{Enabled: true, LogHealthChecks: true},
			method:    "/grpc.health.v1.Health/Check",
			expectLog: true,
		},
		{
			name:   "disabled access log writes nothing",
			cfg:    config.AccessLog{},
			method: "/gpstracker.Tracker/Anything",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			interceptor := inboundgrpc.AccessLogInterceptor(logger.NewBufferedTestLogger(&buf), tc.cfg)

			handler := func(_ context.Context, _ any) (any, error) {
				return nil, tc.handlerErr
			}

			_, err := interceptor(t.Context(), nil, &grpc.UnaryServerInfo{FullMethod: tc.method}, handler)
			require.True(t, errors.Is(err, tc.handlerErr))

			if !tc.expectLog {
				require.Zero(t, buf.Len())

				return
			}

			var entry map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
			require.Equal(t, tc.method, entry["method"])

			if tc.expectedCode != "" {
				require.Equal(t, tc.expectedCode, entry["grpc_code"])
			}
		})
	}
}
