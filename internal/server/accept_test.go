package server

import (
	"context"
	"net"
	"os"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/typerace/internal/dependencies/clock"
	"github.com/mcoot/typerace/internal/dependencies/random"
	"github.com/mcoot/typerace/internal/protocol"
	"github.com/mcoot/typerace/internal/services/auth"
	"github.com/mcoot/typerace/internal/services/game"
	"github.com/mcoot/typerace/internal/services/handshake"
	"github.com/mcoot/typerace/internal/services/prompt"
	"github.com/mcoot/typerace/internal/services/queue"
	"github.com/mcoot/typerace/internal/services/scoring"
	"github.com/mcoot/typerace/internal/storage/memory"
	"github.com/mcoot/typerace/internal/testutil"
)

// flakyListener fails the first failures calls to Accept
type flakyListener struct {
	net.Listener
	failures atomic.Int32
	calls    atomic.Int32
}

func (l *flakyListener) Accept() (net.Conn, error) {
	l.calls.Add(1)
	if l.failures.Add(-1) >= 0 {
		return nil, &net.OpError{Op: "accept", Net: "tcp", Err: os.NewSyscallError("accept", syscall.EMFILE)}
	}
	return l.Listener.Accept()
}

func newBareServer(t *testing.T) *Server {
	t.Helper()
	logger := testutil.NopLogger()
	clk := clock.New()
	rnd := random.New()

	authService, err := auth.New(memory.New(), rnd, auth.DefaultConfig(), logger)
	require.NoError(t, err)
	queueManager := queue.NewManager(queue.DefaultConfig(), clk, authService, logger)
	games := game.NewController(prompt.New(rnd), scoring.New(), authService, queueManager, clk, logger)
	handshakeHandler := handshake.NewHandler(authService, queueManager, clk, logger)

	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	cfg.IdleDelay = 5 * time.Millisecond
	return New(cfg, queueManager, handshakeHandler, games, logger)
}

func TestServeSurvivesTransientAcceptErrors(t *testing.T) {
	srv := newBareServer(t)
	require.NoError(t, srv.Listen())
	flaky := &flakyListener{Listener: srv.listener}
	flaky.failures.Store(3)
	srv.listener = flaky

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	require.Eventually(t, func() bool { return flaky.calls.Load() > 3 }, 5*time.Second, 5*time.Millisecond)
	select {
	case err := <-done:
		t.Fatalf("Serve returned after accept errors: %v", err)
	default:
	}

	dialCtx, dialCancel := context.WithTimeout(ctx, 5*time.Second)
	defer dialCancel()
	conn, err := protocol.Dial(dialCtx, srv.Addr().String(), protocol.DefaultConfig())
	require.NoError(t, err)
	defer conn.Close()

	menu, err := conn.ReceiveFrame()
	require.NoError(t, err)
	assert.Contains(t, menu, "REC: Reconnect")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestNextAcceptDelay(t *testing.T) {
	assert.Equal(t, 5*time.Millisecond, nextAcceptDelay(0))
	assert.Equal(t, 10*time.Millisecond, nextAcceptDelay(5*time.Millisecond))
	assert.Equal(t, time.Second, nextAcceptDelay(800*time.Millisecond))
	assert.Equal(t, time.Second, nextAcceptDelay(time.Second))
}
