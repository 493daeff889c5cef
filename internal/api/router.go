package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/typerace/internal/api/apierr"
	"github.com/mcoot/typerace/internal/api/handler"
	"github.com/mcoot/typerace/internal/api/middleware"
	"github.com/mcoot/typerace/internal/api/sse"
	"github.com/mcoot/typerace/internal/model"
)

const pathPrefix = "/api/v1"

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger         *slog.Logger
	Players        handler.PlayerDirectory
	Queue          handler.QueueView
	Mode           model.MatchMode
	PlayersPerGame int
	// Events enables the match event stream when set
	Events *sse.Hub
}

// NewRouter creates the read-only status API router. Routes sit on the root
// router so a wrong method gets 405 rather than falling through to 404.
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()
	r.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)

	statusHandler := handler.NewStatusHandler(cfg.Players, cfg.Queue, cfg.Mode, cfg.PlayersPerGame)

	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))

	r.HandleFunc(pathPrefix+"/health", statusHandler.Health).Methods(http.MethodGet)
	r.HandleFunc(pathPrefix+"/queue", statusHandler.Queue).Methods(http.MethodGet)
	r.HandleFunc(pathPrefix+"/leaderboard", statusHandler.Leaderboard).Methods(http.MethodGet)
	r.HandleFunc(pathPrefix+"/players/{username}", statusHandler.Player).Methods(http.MethodGet)

	if cfg.Events != nil {
		r.HandleFunc(pathPrefix+"/events", sse.Handler(cfg.Events)).Methods(http.MethodGet)
	}

	return r
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	apierr.WriteError(w, apierr.NewMethodNotAllowedError(r.Method))
}
