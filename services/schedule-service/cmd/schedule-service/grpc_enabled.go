//go:build protogen

package main

import (
	"context"
	"log/slog"
	"net"

	"github.com/tbraddock/clinicflow/libs/config"
	"github.com/tbraddock/clinicflow/libs/grpcx"
	"github.com/tbraddock/clinicflow/services/schedule-service/internal/availability"
	"github.com/tbraddock/clinicflow/services/schedule-service/internal/grpcserver"
	"github.com/tbraddock/clinicflow/services/schedule-service/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
)

func startGrpcServer(ctx context.Context, logger *slog.Logger, gen *availability.Generator, repo *storage.ScheduleRepository) error {
	port, err := config.Port("GRPC_PORT", "9090")
	if err != nil {
		return err
	}
	lis, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return err
	}

	srv := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(grpcx.UnaryServerRequestIDInterceptor()),
	)
	grpcserver.Register(srv, gen, repo)

	go func() {
		logger.Info("grpc server starting", "addr", lis.Addr().String())
		if err := srv.Serve(lis); err != nil {
			logger.Error("grpc server error", "err", err)
		}
	}()

	go func() {
		<-ctx.Done()
		srv.GracefulStop()
	}()

	return nil
}
