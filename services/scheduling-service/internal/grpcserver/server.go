package grpcserver

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/md-rashed-zaman/roomplanner/libs/grpcx"
	"github.com/md-rashed-zaman/roomplanner/services/scheduling-service/internal/scheduling"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const serviceName = "scheduling.v1.SchedulingService"

// Start serves gRPC on lis until ctx is done. Health flips to NOT_SERVING before the graceful stop.
// The returned channel closes once the server has fully stopped.
func Start(ctx context.Context, logger *slog.Logger, lis net.Listener, engine *scheduling.Engine, loc *time.Location) <-chan struct{} {
	srv := grpcx.NewServer(logger)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	if registerScheduling(srv, engine, loc) {
		hs.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		logger.Info("grpc server starting", "addr", lis.Addr().String())
		if err := srv.Serve(lis); err != nil && err != grpc.ErrServerStopped {
			logger.Error("grpc server error", "err", err)
		}
	}()

	go func() {
		<-ctx.Done()
		hs.Shutdown()
		srv.GracefulStop()
		logger.Info("grpc server stopped")
	}()

	return stopped
}
