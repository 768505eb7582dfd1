//go:build !protogen

package grpcserver

import (
	"time"

	"github.com/md-rashed-zaman/roomplanner/services/scheduling-service/internal/scheduling"
	"google.golang.org/grpc"
)

// Without generated stubs only the health service is exposed.
func registerScheduling(_ *grpc.Server, _ *scheduling.Engine, _ *time.Location) bool {
	return false
}
