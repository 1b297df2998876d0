package infrastructure

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// NewGRPCServer builds the gRPC server that carries the standard health
// service. Interceptors run in the given order.
func NewGRPCServer(
	healthServer *health.Server,
	tracerProvider trace.TracerProvider,
	enableReflection bool,
	interceptors ...grpc.UnaryServerInterceptor,
) *grpc.Server {
	server := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler(otelgrpc.WithTracerProvider(tracerProvider))),
		grpc.ChainUnaryInterceptor(interceptors...),
	)

	healthpb.RegisterHealthServer(server, healthServer)

	if enableReflection {
		reflection.Register(server)
	}

	return server
}
