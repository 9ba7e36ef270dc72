package server

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Registrar is a common interface for all gRPC service registrars
type Registrar interface {
	Register(s *grpc.Server)
}

// RegistrarFunc adapts a plain function to Registrar.
type RegistrarFunc func(s *grpc.Server)

func (f RegistrarFunc) Register(s *grpc.Server) { f(s) }

// Health registers the standard health service and reports every listed
// service as SERVING. The overall ("") status is always set.
func Health(services ...string) Registrar {
	return RegistrarFunc(func(s *grpc.Server) {
		hs := health.NewServer()
		hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		for _, name := range services {
			hs.SetServingStatus(name, healthpb.HealthCheckResponse_SERVING)
		}
		healthpb.RegisterHealthServer(s, hs)
	})
}
