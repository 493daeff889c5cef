// Package protocol implements the line-oriented frame transport spoken by
// the game server and its clients. A frame is any number of text lines
// followed by a line ending in "END".
package protocol

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Terminator ends every frame
const Terminator = "END"

var (
	// ErrPeerDisconnected is returned once the remote side has gone away
	ErrPeerDisconnected = errors.New("peer disconnected")

	// ErrClosed is returned for operations on a locally closed transport
	ErrClosed = errors.New("transport closed")

	// ErrFrameTooLarge wraps ErrPeerDisconnected when a peer exceeds MaxFrameSize
	ErrFrameTooLarge = errors.New("frame too large")
)

// Transport is a bidirectional frame stream
type Transport interface {
	// SendFrame writes a complete frame built by the caller
	SendFrame(text string) error

	// ReceiveFrame blocks until a full frame arrives and returns its payload.
	// On disconnection it closes the transport and returns an error.
	ReceiveFrame() (string, error)

	Close() error
	RemoteAddr() string
}

// Config controls transport behaviour
type Config struct {
	// WriteTimeout bounds a single frame write; zero disables it
	WriteTimeout time.Duration

	// MaxFrameSize bounds the bytes read for one incoming frame, line
	// endings included; zero disables it
	MaxFrameSize int
}

// DefaultConfig returns the default transport configuration
func DefaultConfig() Config {
	return Config{
		WriteTimeout: 10 * time.Second,
		MaxFrameSize: 64 << 10,
	}
}

// Conn frames a net.Conn. Sends may come from several goroutines; receives
// are expected from one goroutine at a time but are serialized regardless.
type Conn struct {
	conn   net.Conn
	reader *bufio.Reader
	cfg    Config

	sendMu sync.Mutex
	recvMu sync.Mutex

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

var _ Transport = (*Conn)(nil)

// NewConn wraps an established connection
func NewConn(conn net.Conn, cfg Config) *Conn {
	return &Conn{
		conn:   conn,
		reader: bufio.NewReader(conn),
		cfg:    cfg,
	}
}

// Dial connects to a frame server
func Dial(ctx context.Context, addr string, cfg Config) (*Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return NewConn(conn, cfg), nil
}

// Frame appends the terminator line to payload
func Frame(payload string) string {
	if payload == "" {
		return Terminator
	}
	return payload + "\n" + Terminator
}

func (c *Conn) SendFrame(text string) error {
	if c.closed.Load() {
		return ErrClosed
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.cfg.WriteTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)); err != nil {
			return fmt.Errorf("%w: %w", ErrPeerDisconnected, err)
		}
	}
	if _, err := io.WriteString(c.conn, text+"\n"); err != nil {
		if c.closed.Load() {
			return ErrClosed
		}
		return fmt.Errorf("%w: %w", ErrPeerDisconnected, err)
	}
	return nil
}

func (c *Conn) ReceiveFrame() (string, error) {
	c.recvMu.Lock()
	defer c.recvMu.Unlock()

	if c.closed.Load() {
		return "", ErrClosed
	}

	var (
		lines []string
		line  []byte
		size  int
	)
	for {
		chunk, err := c.reader.ReadSlice('\n')
		size += len(chunk)
		if c.cfg.MaxFrameSize > 0 && size > c.cfg.MaxFrameSize {
			_ = c.Close()
			return "", fmt.Errorf("%w: %w", ErrPeerDisconnected, ErrFrameTooLarge)
		}
		line = append(line, chunk...)
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}

		if len(line) > 0 {
			text := strings.TrimSuffix(strings.TrimSuffix(string(line), "\n"), "\r")
			line = line[:0]
			if strings.HasSuffix(text, Terminator) {
				if rest := strings.TrimSuffix(text, Terminator); rest != "" {
					lines = append(lines, rest)
				}
				return strings.Join(lines, "\n"), nil
			}
			lines = append(lines, text)
		}
		if err != nil {
			wasClosed := c.closed.Load()
			_ = c.Close()
			if wasClosed {
				return "", ErrClosed
			}
			if errors.Is(err, io.EOF) {
				return "", ErrPeerDisconnected
			}
			return "", fmt.Errorf("%w: %w", ErrPeerDisconnected, err)
		}
	}
}

// Close closes the underlying connection. It is safe to call repeatedly.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

// Closed reports whether Close has been called
func (c *Conn) Closed() bool {
	return c.closed.Load()
}

func (c *Conn) RemoteAddr() string {
	if addr := c.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}
