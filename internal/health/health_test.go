package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/health/grpc_health_v1"
)

type switchPinger struct{ err error }

func (p *switchPinger) Ping(context.Context) error { return p.err }

func TestChecker_FollowsStore(t *testing.T) {
	ctx := context.Background()
	pinger := &switchPinger{}
	c := NewChecker(pinger, time.Minute, nil)

	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, c.Check(ctx))
	resp, err := c.server.Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: LedgerService})
	require.NoError(t, err)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, resp.GetStatus())

	pinger.err = errors.New("down")
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING, c.Check(ctx))
	resp, err = c.server.Check(ctx, &grpc_health_v1.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING, resp.GetStatus())
}

func TestChecker_RunStopsWithContext(t *testing.T) {
	c := NewChecker(&switchPinger{}, 10*time.Millisecond, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}

	resp, err := c.server.Check(context.Background(), &grpc_health_v1.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING, resp.GetStatus())
}
