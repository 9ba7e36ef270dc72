package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/oggyb/muzz-matchmaking/internal/config"
	"github.com/oggyb/muzz-matchmaking/internal/transport/grpcapi"
)

// NewGRPCServer builds a gRPC server with the caller-identity and logging
// interceptors and registers all provided services
func NewGRPCServer(logger *slog.Logger, registrars ...Registrar) *grpc.Server {
	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			grpcapi.LoggingInterceptor(logger),
			grpcapi.IdentityInterceptor(logger),
		),
	)

	// register all services
	for _, r := range registrars {
		r.Register(grpcServer)
	}

	// enable reflection for easier debugging with grpcurl
	reflection.Register(grpcServer)

	return grpcServer
}

// StartGRPCServer serves on the configured address until ctx is done, then
// stops gracefully.
func StartGRPCServer(ctx context.Context, cfg *config.Config, logger *slog.Logger, registrars ...Registrar) error {
	addr := fmt.Sprintf("%s:%s", cfg.GRPC.Host, cfg.GRPC.Port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	grpcServer := NewGRPCServer(logger, registrars...)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("gRPC server listening", "addr", lis.Addr().String())
		errCh <- grpcServer.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		grpcServer.GracefulStop()
		return nil
	case err := <-errCh:
		return err
	}
}
