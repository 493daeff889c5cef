package mocks

import (
	"strings"
	"sync"

	"github.com/mcoot/typerace/internal/protocol"
)

// MockTransport replays scripted inbound frames and records outbound ones.
// Once the script runs dry it behaves like a peer that hung up.
type MockTransport struct {
	mu        sync.Mutex
	addr      string
	incoming  []string
	sent      []string
	failSends bool
	closed    bool
	onReceive func(payload string)
}

var _ protocol.Transport = (*MockTransport)(nil)

// NewMockTransport creates a transport that will deliver frames in order
func NewMockTransport(addr string, frames ...string) *MockTransport {
	return &MockTransport{
		addr:     addr,
		incoming: frames,
	}
}

// QueueFrames appends inbound frame payloads
func (t *MockTransport) QueueFrames(frames ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.incoming = append(t.incoming, frames...)
}

// FailSends makes every subsequent SendFrame fail
func (t *MockTransport) FailSends(fail bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failSends = fail
}

// OnReceive registers a hook run after each delivered frame
func (t *MockTransport) OnReceive(fn func(payload string)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onReceive = fn
}

func (t *MockTransport) SendFrame(text string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return protocol.ErrClosed
	}
	if t.failSends {
		return protocol.ErrPeerDisconnected
	}
	t.sent = append(t.sent, text)
	return nil
}

func (t *MockTransport) ReceiveFrame() (string, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return "", protocol.ErrClosed
	}
	if len(t.incoming) == 0 {
		t.closed = true
		t.mu.Unlock()
		return "", protocol.ErrPeerDisconnected
	}
	payload := t.incoming[0]
	t.incoming = t.incoming[1:]
	hook := t.onReceive
	t.mu.Unlock()

	if hook != nil {
		hook(payload)
	}
	return payload, nil
}

func (t *MockTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

func (t *MockTransport) RemoteAddr() string {
	return t.addr
}

// Closed reports whether the transport was closed
func (t *MockTransport) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// Sent returns the payloads of every frame sent so far
func (t *MockTransport) Sent() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.sent))
	for i, text := range t.sent {
		out[i] = payloadOf(text)
	}
	return out
}

// LastSent returns the payload of the most recent frame, or ""
func (t *MockTransport) LastSent() string {
	sent := t.Sent()
	if len(sent) == 0 {
		return ""
	}
	return sent[len(sent)-1]
}

// SentContaining reports whether any sent payload contains substr
func (t *MockTransport) SentContaining(substr string) bool {
	for _, p := range t.Sent() {
		if strings.Contains(p, substr) {
			return true
		}
	}
	return false
}

func payloadOf(text string) string {
	if text == protocol.Terminator {
		return ""
	}
	return strings.TrimSuffix(text, "\n"+protocol.Terminator)
}
