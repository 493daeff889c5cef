// Package queue implements the shared waiting pool that players sit in
// between authentication and a match.
package queue

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/mcoot/typerace/internal/dependencies/clock"
	"github.com/mcoot/typerace/internal/model"
	"github.com/mcoot/typerace/internal/protocol"
	"github.com/mcoot/typerace/internal/session"
)

// ProbeMessage is sent to every queued player during a liveness sweep
const ProbeMessage = "Checking if you are alive..."

// Config holds the matchmaking timing policy
type Config struct {
	// LivenessInterval is the minimum gap between liveness sweeps
	LivenessInterval time.Duration

	// RelaxInterval is how long the oldest arrival waits before the
	// ranking window widens
	RelaxInterval time.Duration

	InitialRankingDifference int
	RankingStep              int
}

// DefaultConfig returns the default matchmaking policy
func DefaultConfig() Config {
	return Config{
		LivenessInterval:         30 * time.Second,
		RelaxInterval:            60 * time.Second,
		InitialRankingDifference: 5,
		RankingStep:              5,
	}
}

// TokenIssuer mints reconnection tokens. Implementations must not block on
// anything that could be waiting for the queue lock.
type TokenIssuer interface {
	NewToken(username string) string
}

// Manager owns the waiting queue. Lock order is mu then windowMu; windowMu
// is never held while acquiring mu.
type Manager struct {
	cfg    Config
	clock  clock.Clock
	tokens TokenIssuer
	logger *slog.Logger

	mu            sync.Mutex
	sessions      []*session.Session
	lastLiveCheck time.Time

	windowMu          sync.Mutex
	rankingDifference int
	lastUpdate        time.Time
}

// NewManager creates an empty waiting queue
func NewManager(cfg Config, clock clock.Clock, tokens TokenIssuer, logger *slog.Logger) *Manager {
	return &Manager{
		cfg:               cfg,
		clock:             clock,
		tokens:            tokens,
		logger:            logger.With(slog.String("component", "queue")),
		rankingDifference: cfg.InitialRankingDifference,
	}
}

// Enqueue appends s and gives its player a fresh reconnection token.
// A player already waiting is rejected with ErrAlreadyQueued.
func (m *Manager) Enqueue(s *session.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, queued := range m.sessions {
		if queued.SamePlayer(s) {
			return model.ErrAlreadyQueued
		}
	}

	s.Player().SetToken(m.tokens.NewToken(s.Username()))

	if len(m.sessions) == 0 {
		arrived := s.ArrivedAt()
		m.lastLiveCheck = arrived
		m.windowMu.Lock()
		m.lastUpdate = arrived
		m.windowMu.Unlock()
	}
	m.sessions = append(m.sessions, s)

	m.logger.Info("player entered queue",
		slog.String("username", s.Username()),
		slog.Int("ranking", s.Player().Ranking()),
		slog.Int("queue_size", len(m.sessions)),
	)
	if m.logger.Enabled(context.Background(), slog.LevelDebug) {
		m.logger.Debug("waiting queue", slog.String("listing", m.listingLocked()))
	}
	return nil
}

// SweepLiveness probes every queued session once LivenessInterval has
// passed since the previous sweep, dropping those whose probe fails.
// Probes are sent with the queue lock held; each send is bounded by the
// transport write timeout.
func (m *Manager) SweepLiveness() []*session.Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lastLiveCheck.IsZero() || m.clock.Since(m.lastLiveCheck) <= m.cfg.LivenessInterval {
		return nil
	}

	var removed []*session.Session
	kept := make([]*session.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		if err := s.Send(ProbeMessage); err != nil {
			_ = s.Close()
			removed = append(removed, s)
			m.logger.Info("dropped unreachable player",
				slog.String("username", s.Username()),
				slog.String("error", err.Error()),
			)
			continue
		}
		kept = append(kept, s)
	}
	m.sessions = kept
	m.lastLiveCheck = m.clock.Now()

	if len(m.sessions) == 0 {
		m.windowMu.Lock()
		m.lastUpdate = time.Time{}
		m.windowMu.Unlock()
	}
	return removed
}

// RelaxRankingWindow widens the rank-mode window by one step when the
// oldest waiting arrival has been unmatched for longer than RelaxInterval.
func (m *Manager) RelaxRankingWindow() bool {
	m.windowMu.Lock()
	defer m.windowMu.Unlock()

	if m.lastUpdate.IsZero() || m.clock.Since(m.lastUpdate) <= m.cfg.RelaxInterval {
		return false
	}
	m.rankingDifference += m.cfg.RankingStep
	m.lastUpdate = m.clock.Now()
	m.logger.Info("ranking window relaxed", slog.Int("ranking_difference", m.rankingDifference))
	return true
}

// AttemptSimpleMatch removes and returns the n earliest arrivals, or nil
// when fewer than n are waiting.
func (m *Manager) AttemptSimpleMatch(n int) []*session.Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if n <= 0 || len(m.sessions) < n {
		return nil
	}
	team := slices.Clone(m.sessions[:n])
	m.sessions = slices.Clone(m.sessions[n:])
	return team
}

// AttemptRankMatch sorts the queue by ranking and removes the leftmost
// window whose spread fits the current ranking difference. The search is
// greedy: it takes the first window found, not the best one overall.
func (m *Manager) AttemptRankMatch(n int) []*session.Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if n <= 0 || len(m.sessions) < n {
		return nil
	}

	type ranked struct {
		s       *session.Session
		ranking int
	}
	entries := make([]ranked, len(m.sessions))
	for i, s := range m.sessions {
		entries[i] = ranked{s: s, ranking: s.Player().Ranking()}
	}
	slices.SortStableFunc(entries, func(a, b ranked) int {
		return cmp.Compare(a.ranking, b.ranking)
	})
	for i, e := range entries {
		m.sessions[i] = e.s
	}

	m.windowMu.Lock()
	diff := m.rankingDifference
	m.windowMu.Unlock()

	for i := 0; i+n-1 < len(entries); i++ {
		for j := i + n - 1; j < len(entries); j++ {
			if entries[j].ranking-entries[i].ranking > diff {
				// sorted, so a wider window only grows the spread
				break
			}
			team := slices.Clone(m.sessions[i : j+1])
			m.sessions = slices.Delete(slices.Clone(m.sessions), i, j+1)

			m.windowMu.Lock()
			m.rankingDifference = m.cfg.InitialRankingDifference
			m.lastUpdate = m.oldestArrivalLocked()
			m.windowMu.Unlock()
			return team
		}
	}
	return nil
}

// Reconnect splices t into the queued session whose player holds token.
// The session keeps its place in the queue; its old transport is closed.
func (m *Manager) Reconnect(token string, t protocol.Transport) (*session.Session, error) {
	if token == "" {
		return nil, model.ErrTokenNotFound
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.sessions {
		if s.Player().Token() != token {
			continue
		}
		old := s.ReplaceTransport(t)
		if old != nil && old != t {
			_ = old.Close()
		}
		m.logger.Info("player reconnected",
			slog.String("username", s.Username()),
			slog.String("remote_addr", t.RemoteAddr()),
		)
		return s, nil
	}
	return nil, model.ErrTokenNotFound
}

// Snapshot returns the current queue contents in queue order
func (m *Manager) Snapshot() []model.QueueEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := make([]model.QueueEntry, len(m.sessions))
	for i, s := range m.sessions {
		entries[i] = model.QueueEntry{
			Username:     s.Username(),
			Ranking:      s.Player().Ranking(),
			WaitingSince: s.ArrivedAt(),
		}
	}
	return entries
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// RankingDifference is the current rank-mode window
func (m *Manager) RankingDifference() int {
	m.windowMu.Lock()
	defer m.windowMu.Unlock()
	return m.rankingDifference
}

// CloseAll empties the queue and closes every waiting transport
func (m *Manager) CloseAll() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.sessions)
	for _, s := range m.sessions {
		_ = s.Close()
	}
	m.sessions = nil
	return n
}

// oldestArrivalLocked requires mu
func (m *Manager) oldestArrivalLocked() time.Time {
	var oldest time.Time
	for _, s := range m.sessions {
		if at := s.ArrivedAt(); oldest.IsZero() || at.Before(oldest) {
			oldest = at
		}
	}
	return oldest
}

// listingLocked requires mu
func (m *Manager) listingLocked() string {
	var b strings.Builder
	for i, s := range m.sessions {
		fmt.Fprintf(&b, "%d. %s (ranking: %d)\n", i+1, s.Username(), s.Player().Ranking())
	}
	return strings.TrimSuffix(b.String(), "\n")
}
