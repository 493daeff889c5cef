package handler

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/mcoot/typerace/internal/api/response"
	"github.com/mcoot/typerace/internal/model"
)

// PlayerDirectory is the read side of the player registry
type PlayerDirectory interface {
	Player(username string) (*model.Player, error)
	Leaderboard() []model.PlayerRecord
}

// QueueView is the read side of the waiting queue
type QueueView interface {
	Snapshot() []model.QueueEntry
	RankingDifference() int
}

// StatusHandler serves the read-only status endpoints
type StatusHandler struct {
	players        PlayerDirectory
	queue          QueueView
	mode           model.MatchMode
	playersPerGame int
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(players PlayerDirectory, queue QueueView, mode model.MatchMode, playersPerGame int) *StatusHandler {
	return &StatusHandler{
		players:        players,
		queue:          queue,
		mode:           mode,
		playersPerGame: playersPerGame,
	}
}

// Health handles GET /api/v1/health
func (h *StatusHandler) Health(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, response.Health{Status: "ok"})
}

// Queue handles GET /api/v1/queue
func (h *StatusHandler) Queue(w http.ResponseWriter, r *http.Request) {
	status := response.QueueStatusFromSnapshot(h.mode, h.playersPerGame, h.queue.RankingDifference(), h.queue.Snapshot())
	response.JSON(w, http.StatusOK, status)
}

// Leaderboard handles GET /api/v1/leaderboard
func (h *StatusHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, response.LeaderboardFromRecords(h.players.Leaderboard()))
}

// Player handles GET /api/v1/players/{username}
func (h *StatusHandler) Player(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]
	if strings.TrimSpace(username) == "" {
		WriteError(w, NewInvalidRequestError("username is required"))
		return
	}

	p, err := h.players.Player(username)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.PlayerFromRecord(p.Record()))
}
