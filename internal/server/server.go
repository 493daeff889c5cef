// Package server accepts player connections and runs the matchmaking loop.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/mcoot/typerace/internal/model"
	"github.com/mcoot/typerace/internal/protocol"
	"github.com/mcoot/typerace/internal/services/game"
	"github.com/mcoot/typerace/internal/services/handshake"
	"github.com/mcoot/typerace/internal/services/queue"
	"github.com/mcoot/typerace/internal/session"
)

// Config holds configuration for the game server
type Config struct {
	// Addr is the TCP listen address, e.g. ":4000"
	Addr string

	Mode           model.MatchMode
	PlayersPerGame int

	// IdleDelay is how long the matchmaking loop sleeps when no team formed
	IdleDelay time.Duration

	Transport protocol.Config
}

// DefaultConfig returns sensible defaults for server configuration
func DefaultConfig() Config {
	return Config{
		Addr:           ":4000",
		Mode:           model.MatchModeSimple,
		PlayersPerGame: 2,
		IdleDelay:      50 * time.Millisecond,
		Transport:      protocol.DefaultConfig(),
	}
}

// MatchObserver is told when teams form and matches finish. Calls come from
// the matchmaking and match goroutines and must not block.
type MatchObserver interface {
	TeamFormed(players []string)
	MatchFinished(result model.MatchResult)
}

// Server owns the listening socket, one goroutine per connection and per
// running match, and the single matchmaking goroutine.
type Server struct {
	cfg       Config
	queue     *queue.Manager
	handshake *handshake.Handler
	games     *game.Controller
	observer  MatchObserver
	logger    *slog.Logger

	listener net.Listener
	wg       sync.WaitGroup

	mu    sync.Mutex
	conns map[*protocol.Conn]struct{}
}

// New creates a new game server
func New(cfg Config, queue *queue.Manager, handshake *handshake.Handler, games *game.Controller, logger *slog.Logger) *Server {
	return &Server{
		cfg:       cfg,
		queue:     queue,
		handshake: handshake,
		games:     games,
		logger:    logger.With(slog.String("component", "server")),
		conns:     make(map[*protocol.Conn]struct{}),
	}
}

// SetObserver registers o for match events; call before Serve
func (s *Server) SetObserver(o MatchObserver) {
	s.observer = o
}

// Listen binds the listening socket
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
	}
	s.listener = ln
	s.logger.Info("server listening",
		slog.String("addr", ln.Addr().String()),
		slog.String("mode", s.cfg.Mode.String()),
		slog.Int("players_per_game", s.cfg.PlayersPerGame),
	)
	return nil
}

// Addr returns the bound address; Listen must have succeeded
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve runs the accept and matchmaking loops until ctx is cancelled, then
// closes every connection and waits for their goroutines.
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.matchmake(ctx)
	}()

	go func() {
		<-ctx.Done()
		_ = s.listener.Close()
	}()

	s.accept(ctx)
	cancel()

	closed := s.closeConns()
	dropped := s.queue.CloseAll()
	s.wg.Wait()
	s.logger.Info("server stopped",
		slog.Int("connections_closed", closed),
		slog.Int("queued_dropped", dropped),
	)
	return nil
}

// accept runs until the listener is closed. Other accept errors, such as
// running out of file descriptors, are retried with a growing delay.
func (s *Server) accept(ctx context.Context) {
	var delay time.Duration
	for {
		c, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			delay = nextAcceptDelay(delay)
			s.logger.Warn("accept failed",
				slog.String("error", err.Error()),
				slog.Duration("retry_in", delay),
			)
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			continue
		}
		delay = 0

		conn := protocol.NewConn(c, s.cfg.Transport)
		s.track(conn)
		s.logger.Info("connection accepted", slog.String("remote_addr", conn.RemoteAddr()))

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			state := s.handshake.Handle(ctx, conn)
			s.logger.Debug("handshake finished",
				slog.String("remote_addr", conn.RemoteAddr()),
				slog.String("state", string(state)),
			)
		}()
	}
}

const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

func nextAcceptDelay(delay time.Duration) time.Duration {
	if delay == 0 {
		return minAcceptDelay
	}
	return min(delay*2, maxAcceptDelay)
}

// matchmake repeatedly sweeps the queue and starts a match goroutine for
// every team formed. It only sleeps when no team was formed.
func (s *Server) matchmake(ctx context.Context) {
	idle := time.NewTimer(s.cfg.IdleDelay)
	defer idle.Stop()

	for {
		if ctx.Err() != nil {
			return
		}

		s.queue.SweepLiveness()

		var team []*session.Session
		switch s.cfg.Mode {
		case model.MatchModeRank:
			s.queue.RelaxRankingWindow()
			team = s.queue.AttemptRankMatch(s.cfg.PlayersPerGame)
		default:
			team = s.queue.AttemptSimpleMatch(s.cfg.PlayersPerGame)
		}

		if team != nil {
			s.startMatch(ctx, team)
			continue
		}

		idle.Reset(s.cfg.IdleDelay)
		select {
		case <-ctx.Done():
			return
		case <-idle.C:
		}
	}
}

func (s *Server) startMatch(ctx context.Context, team []*session.Session) {
	names := make([]string, len(team))
	for i, member := range team {
		names[i] = member.Username()
	}
	s.logger.Info("team formed", slog.Any("players", names))
	if s.observer != nil {
		s.observer.TeamFormed(names)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		outcome := s.games.Run(ctx, team)
		if s.observer != nil {
			s.observer.MatchFinished(outcome.Result)
		}
	}()
}

// track remembers conn for shutdown and forgets connections already closed
func (s *Server) track(conn *protocol.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns {
		if c.Closed() {
			delete(s.conns, c)
		}
	}
	s.conns[conn] = struct{}{}
}

func (s *Server) closeConns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for c := range s.conns {
		if !c.Closed() {
			n++
		}
		_ = c.Close()
	}
	s.conns = make(map[*protocol.Conn]struct{})
	return n
}
