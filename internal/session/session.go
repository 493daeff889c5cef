// Package session holds the per-player connection state that outlives any
// single transport.
package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/mcoot/typerace/internal/model"
	"github.com/mcoot/typerace/internal/protocol"
)

// ID identifies a session for logging and lookups
type ID string

type slot struct {
	transport protocol.Transport
}

// Session binds an authenticated player to its current transport. The
// transport may be swapped by a reconnect while other goroutines hold the
// session, so every access goes through the atomic slot.
type Session struct {
	id     ID
	player *model.Player
	slot   atomic.Pointer[slot]

	mu        sync.Mutex
	arrivedAt time.Time
}

// New creates a session for player over t
func New(player *model.Player, t protocol.Transport) *Session {
	s := &Session{
		id:     ID(uuid.NewString()),
		player: player,
	}
	s.slot.Store(&slot{transport: t})
	return s
}

func (s *Session) ID() ID {
	return s.id
}

func (s *Session) Player() *model.Player {
	return s.player
}

// Username is the identity used for queue membership
func (s *Session) Username() string {
	return s.player.Username
}

// SamePlayer reports whether both sessions belong to the same user
func (s *Session) SamePlayer(other *Session) bool {
	return other != nil && s.player.Username == other.player.Username
}

// Transport returns the current transport
func (s *Session) Transport() protocol.Transport {
	return s.slot.Load().transport
}

// ReplaceTransport installs t and returns the previous transport, which the
// caller is responsible for closing.
func (s *Session) ReplaceTransport(t protocol.Transport) protocol.Transport {
	old := s.slot.Swap(&slot{transport: t})
	return old.transport
}

// Send writes a frame with the given payload to the current transport
func (s *Session) Send(payload string) error {
	return s.Transport().SendFrame(protocol.Frame(payload))
}

// Receive reads the next frame payload from the current transport
func (s *Session) Receive() (string, error) {
	return s.Transport().ReceiveFrame()
}

// Close closes the current transport
func (s *Session) Close() error {
	return s.Transport().Close()
}

// ArrivedAt is when the session last entered the waiting queue
func (s *Session) ArrivedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.arrivedAt
}

func (s *Session) MarkArrived(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.arrivedAt = t
}
