package grpc

import (
	"context"
	"strings"
	"time"

	"github.com/architeacher/gpstracker/internal/config"
	"github.com/architeacher/gpstracker/pkg/logger"
	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const (
	MetadataKeyRequestID     = "request-id"
	MetadataKeyCorrelationID = "correlation-id"

	healthServiceName = "grpc.health.v1.Health"
)

// ContextExtractorInterceptor copies request and correlation ids from the
// incoming metadata into the context, generating a request id when absent.
func ContextExtractorInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		_ *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		var requestID string

		if md, ok := metadata.FromIncomingContext(ctx); ok {
			requestID = firstValue(md, MetadataKeyRequestID)

			if correlationID := firstValue(md, MetadataKeyCorrelationID); correlationID != "" {
				ctx = logger.ContextWithCorrelationID(ctx, correlationID)
			}
		}

		if requestID == "" {
			requestID = uuid.NewString()
		}

		return handler(logger.ContextWithRequestID(ctx, requestID), req)
	}
}

func AccessLogInterceptor(log logger.Logger, cfg config.AccessLog) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		if !cfg.Enabled || (!cfg.LogHealthChecks && isHealthCheck(info.FullMethod)) {
			return handler(ctx, req)
		}

		start := time.Now()
		resp, err := handler(ctx, req)

		ctxLogger := log.WithContext(ctx)
		logEvent := ctxLogger.Info().
			Str("method", info.FullMethod).
			Dur("duration", time.Since(start))

		if err != nil {
			st, _ := status.FromError(err)
			logEvent.Str("grpc_code", st.Code().String()).
				Str("error", st.Message()).
				Msg("gRPC request failed")
		} else {
			logEvent.Msg("gRPC request completed")
		}

		return resp, err
	}
}

func isHealthCheck(fullMethod string) bool {
	return strings.Contains(fullMethod, healthServiceName)
}

func firstValue(md metadata.MD, key string) string {
	if values := md.Get(key); len(values) > 0 {
		return values[0]
	}

	return ""
}
