package sse

import (
	"encoding/json"
	"log/slog"

	"github.com/mcoot/typerace/internal/api/response"
	"github.com/mcoot/typerace/internal/model"
)

// Event names
const (
	EventConnected     = "connected"
	EventTeamFormed    = "team-formed"
	EventMatchFinished = "match-finished"
)

// Broadcaster turns matchmaking events into SSE messages on a hub
type Broadcaster struct {
	hub    *Hub
	logger *slog.Logger
}

// NewBroadcaster creates a new Broadcaster
func NewBroadcaster(hub *Hub, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		hub:    hub,
		logger: logger.With(slog.String("component", "sse-broadcaster")),
	}
}

// TeamFormed broadcasts the usernames of a team about to play
func (b *Broadcaster) TeamFormed(players []string) {
	b.send(EventTeamFormed, response.TeamFormed{Players: players})
}

// MatchFinished broadcasts a match's results
func (b *Broadcaster) MatchFinished(result model.MatchResult) {
	b.send(EventMatchFinished, response.MatchFinishedFromResult(result))
}

func (b *Broadcaster) send(event string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		b.logger.Error("sse failed to encode event",
			slog.String("event", event),
			slog.String("error", err.Error()))
		return
	}
	b.hub.BroadcastEvent(event, string(data))
}
