package grpcapi

import (
	"google.golang.org/grpc"
)

// Registrar ties the Matchmaking service into the gRPC server
type Registrar struct {
	server *Server
}

// NewRegistrar creates a new Registrar for the Matchmaking service
func NewRegistrar(server *Server) *Registrar {
	return &Registrar{server: server}
}

// Register attaches the Matchmaking service implementation to the gRPC server
func (r *Registrar) Register(s *grpc.Server) {
	s.RegisterService(&ServiceDesc, r.server)
}
