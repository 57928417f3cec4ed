package ordinator

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/Lord-Y/ordinator/logger"
	"github.com/Lord-Y/ordinator/ordinatorpb"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
)

var kaep = keepalive.EnforcementPolicy{
	MinTime:             5 * time.Second, // If a client pings more than once every 5 seconds, terminate the connection
	PermitWithoutStream: true,            // Allow pings even when there are no active streams
}

var kasp = keepalive.ServerParameters{
	MaxConnectionIdle:     15 * time.Minute, // If a client is idle for 15 minutes, send a GOAWAY
	MaxConnectionAgeGrace: 5 * time.Second,  // Allow 5 seconds for pending RPCs to complete before forcibly closing connections
	Time:                  5 * time.Second,  // Ping the client if it is idle for 5 seconds to ensure the connection is still active
	Timeout:               time.Second,      // Wait 1 second for the ping ack before assuming the connection is dead
}

// ServerOptions holds config of the grpc server
type ServerOptions struct {
	// Logger expose zerolog so it can be override
	Logger *zerolog.Logger

	// Address is the address the server listens on
	Address string

	// Coordinator is served through ordinator.Coordinator and
	// ordinator.LogService when set
	Coordinator *Coordinator

	// LogBackend is served through ordinator.LogService when Coordinator is nil
	LogBackend LogBackend

	// ForceStopTimeout is the timeout after which grpc server will forced to stop.
	// Default to 60s
	ForceStopTimeout time.Duration
}

// Server runs the grpc services
type Server struct {
	// mu protects listener
	mu sync.Mutex

	// logger expose zerolog so it can be override
	logger *zerolog.Logger

	// address is the address the server listens on
	address string

	// listener is the grpc listener
	listener net.Listener

	// server is the grpc server
	server *grpc.Server

	// health reports the serving status
	health *health.Server

	// forceStopTimeout is the timeout after which grpc server will forced to stop
	forceStopTimeout time.Duration

	// stopping is closed when Stop is called
	stopping chan struct{}

	// stopOnce protects stopping
	stopOnce sync.Once
}

// serverStream overrides the context of a stream
type serverStream struct {
	grpc.ServerStream
	ctx context.Context
}

// Context returns the overridden context
func (s *serverStream) Context() context.Context {
	return s.ctx
}

// NewServer builds the grpc server and registers the services
func NewServer(options ServerOptions) (*Server, error) {
	if options.Coordinator == nil && options.LogBackend == nil {
		return nil, fmt.Errorf("%w: coordinator or log backend is required", ErrInvalidArgument)
	}
	if options.Logger == nil {
		options.Logger = logger.NewLogger()
	}
	if options.ForceStopTimeout <= 0 {
		options.ForceStopTimeout = defaultForceStopTimeout
	}

	s := &Server{
		logger:           options.Logger,
		address:          options.Address,
		health:           health.NewServer(),
		forceStopTimeout: options.ForceStopTimeout,
		stopping:         make(chan struct{}),
	}
	s.server = grpc.NewServer(
		grpc.KeepaliveEnforcementPolicy(kaep),
		grpc.KeepaliveParams(kasp),
		grpc.ChainUnaryInterceptor(s.unaryInterceptor),
		grpc.ChainStreamInterceptor(s.streamInterceptor),
	)
	healthpb.RegisterHealthServer(s.server, s.health)

	if options.Coordinator != nil {
		ordinatorpb.RegisterCoordinatorServer(s.server, &coordinatorService{
			logger:      options.Logger,
			coordinator: options.Coordinator,
		})
		ordinatorpb.RegisterLogServiceServer(s.server, &logService{
			logger:  options.Logger,
			backend: options.Coordinator,
		})

		s.setServing(options.Coordinator.IsReady())
		options.Coordinator.OnReadyChange(s.setServing)
	} else {
		ordinatorpb.RegisterLogServiceServer(s.server, &logService{
			logger:  options.Logger,
			backend: options.LogBackend,
		})
		s.setServing(true)
	}
	return s, nil
}

// setServing updates the health status of all services
func (s *Server) setServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	for _, service := range []string{"", ordinatorpb.Coordinator_ServiceDesc.ServiceName, ordinatorpb.LogService_ServiceDesc.ServiceName} {
		s.health.SetServingStatus(service, status)
	}
}

// isStopping tells if Stop has been called
func (s *Server) isStopping() bool {
	select {
	case <-s.stopping:
		return true
	default:
		return false
	}
}

// unaryInterceptor converts errors into grpc statuses
func (s *Server) unaryInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if s.isStopping() {
		return nil, toStatus(fmt.Errorf("%w: %s", ErrShutdown, info.FullMethod))
	}
	response, err := handler(ctx, req)
	if err != nil {
		s.logger.Trace().Err(err).Str("method", info.FullMethod).Msgf("Request failed")
		return nil, toStatus(err)
	}
	return response, nil
}

// streamInterceptor converts errors into grpc statuses.
// Streams still running when Stop is called end with ErrShutdown
func (s *Server) streamInterceptor(srv any, stream grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	if s.isStopping() {
		return toStatus(fmt.Errorf("%w: %s", ErrShutdown, info.FullMethod))
	}

	ctx, cancel := context.WithCancel(stream.Context())
	defer cancel()
	go func() {
		select {
		case <-s.stopping:
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := handler(srv, &serverStream{ServerStream: stream, ctx: ctx}); err != nil {
		if s.isStopping() {
			err = fmt.Errorf("%w: %s", ErrShutdown, info.FullMethod)
		}
		s.logger.Trace().Err(err).Str("method", info.FullMethod).Msgf("Stream ended")
		return toStatus(err)
	}
	return nil
}

// Serve accepts connections on the listener until Stop is called
func (s *Server) Serve(listener net.Listener) error {
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	s.logger.Info().Msgf("Starting gRPC server at %s", listener.Addr().String())
	if err := s.server.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return errors.Wrap(err, "Fail to serve gRPC server")
	}
	return nil
}

// Start listens on the configured address and serves until Stop is called
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return errors.Wrap(err, "Fail to listen gRPC server")
	}
	return s.Serve(listener)
}

// Addr returns the address the server listens on
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop gracefully stops the grpc server.
// Pending streams are forcibly closed after the force stop timeout
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopping)
	})
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(done)
	}()

	timer := time.NewTimer(s.forceStopTimeout)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		s.logger.Warn().Msgf("Timeout reached, forcing gRPC server to stop")
		s.server.Stop()
		<-done
	}
	s.logger.Info().Msg("Stopping gRPC server successful")
}
