// Package health exposes the standard gRPC health service so orchestrators
// can probe the process independently of the HTTP API.
package health

import (
	"fmt"
	"log"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Service is the name reported for the attendance API.
const Service = "turnstile.v1.Attendance"

type Server struct {
	grpc   *grpc.Server
	health *health.Server
	logger *log.Logger
}

// NewServer registers the health service.  Every service starts NOT_SERVING
// until SetServing is called.
func NewServer(logger *log.Logger) *Server {
	g := grpc.NewServer()
	h := health.NewServer()
	healthpb.RegisterHealthServer(g, h)

	h.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	h.SetServingStatus(Service, healthpb.HealthCheckResponse_NOT_SERVING)

	return &Server{grpc: g, health: h, logger: logger}
}

func (s *Server) SetServing() {
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(Service, healthpb.HealthCheckResponse_SERVING)
}

// SetNotServing flips every service to NOT_SERVING ahead of shutdown.
func (s *Server) SetNotServing() {
	s.health.Shutdown()
}

// Serve blocks accepting connections on lis.
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Printf("grpc health listening on %s", lis.Addr())
	if err := s.grpc.Serve(lis); err != nil {
		return fmt.Errorf("grpc serve: %w", err)
	}
	return nil
}

// ListenAndServe opens addr and serves on it.
func (s *Server) ListenAndServe(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("grpc listen %s: %w", addr, err)
	}
	return s.Serve(lis)
}

// Stop marks the process NOT_SERVING and drains in-flight RPCs.
func (s *Server) Stop() {
	s.SetNotServing()
	s.grpc.GracefulStop()
}
