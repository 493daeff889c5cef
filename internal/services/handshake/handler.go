// Package handshake drives a fresh connection through the login,
// registration and reconnection menu.
package handshake

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/mcoot/typerace/internal/dependencies/clock"
	"github.com/mcoot/typerace/internal/model"
	"github.com/mcoot/typerace/internal/protocol"
	"github.com/mcoot/typerace/internal/services/queue"
	"github.com/mcoot/typerace/internal/session"
)

// Menu options
const (
	OptionLogin     = "LOG"
	OptionRegister  = "REG"
	OptionReconnect = "REC"
)

const (
	banner = "--------------------------------------------------------------------\n" +
		"                   Welcome to the TypeRacer Game!\n" +
		"--------------------------------------------------------------------"
	menu = "Menu\nLOG: Login\nREG: Register\nREC: Reconnect"

	usernamePrompt = "Enter your username!"
	passwordPrompt = "Enter your password!"
	tokenPrompt    = "Enter your token!"

	unknownOption      = "The selected option does not exist."
	authSuccess        = "Authentication successful."
	badCredentials     = "The provided credentials do not match our records."
	usernameTaken      = "Username already exists."
	usernameInvalid    = "That username cannot be used."
	storeUnavailable   = "Something went wrong on our side. Please try again."
	reconnectSuccess   = "Reconnect successful."
	reconnectNotQueued = "You were not in the queue. You have to login or register first."
)

// State is a step of the handshake
type State string

const (
	StateMenu        State = "menu"
	StateLogin       State = "login"
	StateRegister    State = "register"
	StateReconnect   State = "reconnect"
	StateQueued      State = "queued"
	StateReconnected State = "reconnected"
	StateAborted     State = "aborted"
)

// Authenticator checks and creates credentials
type Authenticator interface {
	Login(ctx context.Context, username, password string) (*model.Player, error)
	Register(ctx context.Context, username, password string) (*model.Player, error)
}

// Queue is the part of the waiting queue the handshake needs
type Queue interface {
	Enqueue(s *session.Session) error
	Reconnect(token string, t protocol.Transport) (*session.Session, error)
}

// Handler runs the pre-queue menu for one connection at a time per call
type Handler struct {
	auth   Authenticator
	queue  Queue
	clock  clock.Clock
	logger *slog.Logger
}

// NewHandler creates a new handshake Handler
func NewHandler(auth Authenticator, queue Queue, clock clock.Clock, logger *slog.Logger) *Handler {
	return &Handler{
		auth:   auth,
		queue:  queue,
		clock:  clock,
		logger: logger.With(slog.String("component", "handshake")),
	}
}

// conversation is the state of one handshake. notice is a message carried
// into the next menu frame.
type conversation struct {
	t      protocol.Transport
	notice string
	logger *slog.Logger
}

func (c *conversation) send(payload string) error {
	return c.t.SendFrame(protocol.Frame(payload))
}

// ask sends a prompt and waits for the answer
func (c *conversation) ask(prompt string) (string, error) {
	if err := c.send(prompt); err != nil {
		return "", err
	}
	return c.t.ReceiveFrame()
}

// Handle runs the menu on t until the player is queued, reconnected or the
// connection is lost. On StateQueued and StateReconnected the transport is
// owned by a queued session; otherwise it has been closed.
func (h *Handler) Handle(ctx context.Context, t protocol.Transport) State {
	c := &conversation{
		t:      t,
		notice: banner,
		logger: h.logger.With(slog.String("remote_addr", t.RemoteAddr())),
	}

	state := StateMenu
	for {
		if err := ctx.Err(); err != nil && state != StateQueued && state != StateReconnected {
			state = StateAborted
		}

		var err error
		switch state {
		case StateMenu:
			state, err = h.menu(c)
		case StateLogin, StateRegister:
			state, err = h.authenticate(ctx, c, state)
		case StateReconnect:
			state, err = h.reconnect(c)
		case StateQueued, StateReconnected:
			return state
		case StateAborted:
			_ = t.Close()
			c.logger.Info("handshake aborted")
			return state
		}
		if err != nil {
			c.logger.Info("connection lost during handshake", slog.String("error", err.Error()))
			state = StateAborted
		}
	}
}

func (h *Handler) menu(c *conversation) (State, error) {
	text := menu
	if c.notice != "" {
		text = c.notice + "\n" + menu
		c.notice = ""
	}
	choice, err := c.ask(text)
	if err != nil {
		return StateAborted, err
	}

	switch strings.ToUpper(strings.TrimSpace(choice)) {
	case OptionLogin:
		return StateLogin, nil
	case OptionRegister:
		return StateRegister, nil
	case OptionReconnect:
		return StateReconnect, nil
	default:
		c.notice = unknownOption
		return StateMenu, nil
	}
}

func (h *Handler) authenticate(ctx context.Context, c *conversation, state State) (State, error) {
	username, err := c.ask(usernamePrompt)
	if err != nil {
		return StateAborted, err
	}
	password, err := c.ask(passwordPrompt)
	if err != nil {
		return StateAborted, err
	}

	var player *model.Player
	if state == StateLogin {
		player, err = h.auth.Login(ctx, username, password)
	} else {
		player, err = h.auth.Register(ctx, username, password)
	}
	if err != nil {
		c.notice = rejection(err)
		c.logger.Info("authentication rejected",
			slog.String("username", username),
			slog.String("state", string(state)),
			slog.String("error", err.Error()),
		)
		return StateMenu, nil
	}

	s := session.New(player, c.t)
	s.MarkArrived(h.clock.Now())
	c.logger.Info("player authenticated",
		slog.String("username", player.Username),
		slog.String("session_id", string(s.ID())),
	)
	if err := c.send(authSuccess); err != nil {
		return StateAborted, err
	}
	return h.enqueue(c, s)
}

func (h *Handler) enqueue(c *conversation, s *session.Session) (State, error) {
	if err := h.queue.Enqueue(s); err != nil {
		if errors.Is(err, model.ErrAlreadyQueued) {
			_ = c.send(queue.AlreadyQueuedMessage)
		}
		c.logger.Info("player not queued",
			slog.String("username", s.Username()),
			slog.String("error", err.Error()),
		)
		return StateAborted, nil
	}

	p := s.Player()
	if err := c.send(queue.EnteredMessage(p.Ranking(), p.Token())); err != nil {
		// already queued; the liveness sweep will drop it if it is gone
		c.logger.Info("queue notice not delivered",
			slog.String("username", s.Username()),
			slog.String("error", err.Error()),
		)
	}
	return StateQueued, nil
}

func (h *Handler) reconnect(c *conversation) (State, error) {
	token, err := c.ask(tokenPrompt)
	if err != nil {
		return StateAborted, err
	}

	s, err := h.queue.Reconnect(strings.TrimSpace(token), c.t)
	if err != nil {
		c.notice = reconnectNotQueued
		return StateMenu, nil
	}

	p := s.Player()
	if err := s.Send(reconnectSuccess); err == nil {
		_ = s.Send(queue.ReenteredMessage(p.Ranking(), p.Token(), false))
	}
	return StateReconnected, nil
}

func rejection(err error) string {
	switch {
	case errors.Is(err, model.ErrInvalidCredentials):
		return badCredentials
	case errors.Is(err, model.ErrUsernameExists):
		return usernameTaken
	case errors.Is(err, model.ErrInvalidUsername):
		return usernameInvalid
	default:
		return storeUnavailable
	}
}
