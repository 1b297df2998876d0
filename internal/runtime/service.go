package runtime

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	inboundgrpc "github.com/architeacher/gpstracker/internal/adapters/inbound/grpc"
)

type ServiceCtx struct {
	deps            *dependencies
	shutdownChannel chan os.Signal
	serverCtx       context.Context
	serverStopFunc  context.CancelFunc
	serverReady     chan struct{}
	depOptions      []DependencyOption

	// background tracks the consumers and the gRPC health reporter.
	background sync.WaitGroup
}

func New(opts ...ServiceOption) *ServiceCtx {
	ctx := &ServiceCtx{
		shutdownChannel: make(chan os.Signal, 1),
	}

	for _, opt := range opts {
		opt(ctx)
	}

	return ctx
}

func (c *ServiceCtx) Run() {
	if err := c.build(); err != nil {
		log.Fatalf("failed to build service: %v", err)
	}

	c.startConsumers()
	c.startService()
	c.shutdownHook()
	c.monitorConfigChanges()

	// Waits for one of the following shutdown conditions to happen.
	select {
	case <-c.serverCtx.Done():
	case <-c.shutdownChannel:
		defer close(c.shutdownChannel)
	}

	c.shutdown()
}

func (c *ServiceCtx) build() error {
	c.serverCtx, c.serverStopFunc = context.WithCancel(context.Background())

	var err error

	c.deps, err = initializeDependencies(c.serverCtx, c.depOptions...)
	if err != nil {
		return fmt.Errorf("initializing dependencies: %w", err)
	}

	return nil
}

func (c *ServiceCtx) startConsumers() {
	dispatcher := c.deps.queue.dispatcher
	if dispatcher == nil {
		c.deps.infra.logger.Info().Msg("consumers disabled, running as gateway only")

		return
	}

	c.background.Add(1)

	go func() {
		defer c.background.Done()

		c.deps.infra.logger.Info().
			Int("partitions", c.deps.config.Queue.Partitions).
			Msg("starting partition consumers")

		if err := dispatcher.Run(c.serverCtx); err != nil && !errors.Is(err, context.Canceled) {
			c.deps.infra.logger.Error().Err(err).Msg("partition consumers stopped")
			c.serverStopFunc()
		}
	}()
}

func (c *ServiceCtx) startService() {
	go func() {
		if c.serverReady != nil {
			c.serverReady <- struct{}{}
		}

		addr := c.deps.infra.publicHttpServer.Addr
		listener, err := net.Listen("tcp", addr)
		if err != nil {
			log.Fatalf("failed to listen on %s: %v", addr, err)
		}

		c.deps.infra.logger.Info().
			Str("address", addr).
			Msg("starting the http server")

		if c.serverReady != nil {
			close(c.serverReady)
		}

		if err := c.deps.infra.publicHttpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("public http server error: %v", err)
		}
	}()

	c.startAdminServer()
	c.startGRPCServer()
}

func (c *ServiceCtx) startAdminServer() {
	if c.deps.infra.adminHttpServer == nil {
		return
	}

	go func() {
		addr := c.deps.infra.adminHttpServer.Addr

		listener, err := net.Listen("tcp", addr)
		if err != nil {
			log.Fatalf("failed to listen on admin server %s: %v", addr, err)
		}

		c.deps.infra.logger.Info().
			Str("address", addr).
			Msg("starting the admin http server")

		if err := c.deps.infra.adminHttpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("admin http server error: %v", err)
		}
	}()
}

func (c *ServiceCtx) startGRPCServer() {
	if c.deps.infra.grpcServer == nil {
		return
	}

	cfg := c.deps.config.GRPCServer
	reporter := inboundgrpc.NewHealthReporter(
		c.deps.infra.grpcHealth,
		c.deps.services.healthChecker,
		cfg.HealthInterval,
		c.deps.infra.logger.Component("grpc-health"),
	)

	c.background.Add(1)

	go func() {
		defer c.background.Done()

		reporter.Run(c.serverCtx)
	}()

	go func() {
		addr := net.JoinHostPort(cfg.Host, strconv.FormatUint(uint64(cfg.Port), 10))

		listener, err := net.Listen("tcp", addr)
		if err != nil {
			log.Fatalf("failed to listen on grpc server %s: %v", addr, err)
		}

		c.deps.infra.logger.Info().
			Str("address", addr).
			Msg("starting the grpc server")

		if err := c.deps.infra.grpcServer.Serve(listener); err != nil {
			log.Fatalf("grpc server error: %v", err)
		}
	}()
}

func (c *ServiceCtx) monitorConfigChanges() {
	if c.deps.configLoader == nil {
		return
	}

	reloadErrors := c.deps.configLoader.WatchConfigSignals(c.serverCtx)
	go func() {
		for err := range reloadErrors {
			if err != nil {
				c.deps.infra.logger.Error().Err(err).Msg("config reload failed")
			} else {
				c.deps.infra.logger.Info().Msg("config reloaded successfully")
			}
		}
	}()
}

func (c *ServiceCtx) shutdownHook() {
	signal.Notify(c.shutdownChannel, syscall.SIGINT, syscall.SIGTERM)
}

func (c *ServiceCtx) shutdown() {
	c.deps.infra.logger.Info().Msg("shutting down service...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), c.deps.config.PublicHTTPServer.ShutdownTimeout)
	defer cancel()

	go func() {
		<-shutdownCtx.Done()

		if errors.Is(shutdownCtx.Err(), context.DeadlineExceeded) {
			c.deps.infra.logger.Error().Msg("graceful shutdown timed out.. forcing exit.")
			os.Exit(1)
		}
	}()

	// Stop taking submissions before the consumers drain.
	c.stopServers(shutdownCtx)

	// Cancel context that underlying processes would start cleanup.
	c.serverStopFunc()
	c.background.Wait()

	c.cleanup(shutdownCtx)

	c.deps.infra.logger.Info().Msg("service shutdown complete")
}

func (c *ServiceCtx) stopServers(ctx context.Context) {
	if err := c.deps.infra.publicHttpServer.Shutdown(ctx); err != nil {
		c.deps.infra.logger.Error().Err(err).Msg("failed to shutdown the http server gracefully")
	}

	if c.deps.infra.adminHttpServer != nil {
		if err := c.deps.infra.adminHttpServer.Shutdown(ctx); err != nil {
			c.deps.infra.logger.Error().Err(err).Msg("failed to shutdown the admin http server gracefully")
		}
	}

	if c.deps.infra.grpcServer != nil {
		c.deps.infra.grpcServer.GracefulStop()
	}
}

// WaitForServer blocks until the http server is running.
// If you want to be notified when the server is running,
// make sure you instantiate your server with WithWaitingForServer.
//
// Example:
//
//	srv := runtime.New(WithWaitingForServer())
//	go func() {
//		srv.Run()
//	}()
//
//	srv.WaitForServer()
func (c *ServiceCtx) WaitForServer() {
	if c.serverReady != nil {
		<-c.serverReady
	}
}

// Stop triggers the same graceful shutdown as SIGTERM.
func (c *ServiceCtx) Stop() {
	c.shutdownChannel <- syscall.SIGTERM
}

func (c *ServiceCtx) cleanup(shutdownCtx context.Context) {
	c.deps.infra.logger.Info().Msg("cleaning up resources...")

	c.deps.cleanup(shutdownCtx)

	c.deps.infra.logger.Info().Msg("cleanup completed")
}
