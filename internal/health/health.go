package health

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// LedgerService is the service name reported alongside the overall status.
const LedgerService = "courtbook.Ledger"

// Pinger reports whether the ledger store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Checker keeps the gRPC health status in line with periodic store pings.
type Checker struct {
	store    Pinger
	interval time.Duration
	server   *grpchealth.Server
	logger   *zerolog.Logger
}

func NewChecker(store Pinger, interval time.Duration, logger *zerolog.Logger) *Checker {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Checker{
		store:    store,
		interval: interval,
		server:   grpchealth.NewServer(),
		logger:   logger,
	}
}

// Register adds the health service to s.
func (c *Checker) Register(s *grpc.Server) {
	grpc_health_v1.RegisterHealthServer(s, c.server)
}

// Check pings the store once and updates the status.
func (c *Checker) Check(ctx context.Context) grpc_health_v1.HealthCheckResponse_ServingStatus {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	status := grpc_health_v1.HealthCheckResponse_SERVING
	if err := c.store.Ping(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("Ledger store ping failed")
		status = grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}
	c.server.SetServingStatus("", status)
	c.server.SetServingStatus(LedgerService, status)
	return status
}

// Run checks on every interval until ctx is done, then reports NOT_SERVING.
func (c *Checker) Run(ctx context.Context) {
	c.Check(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			c.server.Shutdown()
			return
		case <-ticker.C:
			c.Check(ctx)
		}
	}
}

// Serve runs a gRPC server exposing only the health service on port.
func Serve(ctx context.Context, port int, checker *Checker, logger *zerolog.Logger) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("listen grpc health: %w", err)
	}

	gs := grpc.NewServer()
	checker.Register(gs)

	go checker.Run(ctx)
	go func() {
		<-ctx.Done()
		gs.GracefulStop()
	}()

	logger.Info().Str("addr", lis.Addr().String()).Msg("gRPC health listening")
	if err := gs.Serve(lis); err != nil {
		return fmt.Errorf("serve grpc health: %w", err)
	}
	return nil
}
