package api_test

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/typerace/internal/api"
	"github.com/mcoot/typerace/internal/api/apierr"
	"github.com/mcoot/typerace/internal/api/response"
	"github.com/mcoot/typerace/internal/dependencies/mocks"
	"github.com/mcoot/typerace/internal/factory"
	"github.com/mcoot/typerace/internal/model"
	"github.com/mcoot/typerace/internal/server"
	"github.com/mcoot/typerace/internal/session"
)

// testServer wires the router to a test application
type testServer struct {
	handler http.Handler
	app     *factory.TestApp
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	cfg := server.DefaultConfig()
	cfg.Mode = model.MatchModeRank
	cfg.PlayersPerGame = 3
	app := factory.NewTestApp(cfg)

	router := api.NewRouter(api.RouterConfig{
		Logger:         logger,
		Players:        app.AuthService,
		Queue:          app.Queue,
		Mode:           cfg.Mode,
		PlayersPerGame: cfg.PlayersPerGame,
	})

	return &testServer{handler: router, app: app}
}

func (ts *testServer) get(path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func (ts *testServer) register(t *testing.T, username string, ranking int) *model.Player {
	t.Helper()
	p, err := ts.app.AuthService.Register(context.Background(), username, "pw")
	require.NoError(t, err)
	p.AddRanking(ranking)
	return p
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&v))
	return v
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.get("/api/v1/health")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.Equal(t, "ok", decode[response.Health](t, rr).Status)
}

func TestQueueStatus(t *testing.T) {
	ts := newTestServer(t)

	alice := ts.register(t, "alice", 4)
	bob := ts.register(t, "bob", 1)
	require.NoError(t, ts.app.Queue.Enqueue(session.New(alice, mocks.NewMockTransport("a"))))
	ts.app.MockClock.Advance(1)
	require.NoError(t, ts.app.Queue.Enqueue(session.New(bob, mocks.NewMockTransport("b"))))

	rr := ts.get("/api/v1/queue")
	require.Equal(t, http.StatusOK, rr.Code)

	status := decode[response.QueueStatus](t, rr)
	assert.Equal(t, "rank", status.Mode)
	assert.Equal(t, 3, status.PlayersPerGame)
	assert.Equal(t, 5, status.RankingDifference)
	require.Len(t, status.Entries, 2)
	assert.Equal(t, "alice", status.Entries[0].Username)
	assert.Equal(t, 4, status.Entries[0].Ranking)
	assert.Equal(t, "bob", status.Entries[1].Username)
}

func TestEmptyQueue(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.get("/api/v1/queue")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decode[response.QueueStatus](t, rr).Entries)
}

func TestLeaderboard(t *testing.T) {
	ts := newTestServer(t)

	ts.register(t, "carol", 2)
	ts.register(t, "alice", 7)
	ts.register(t, "bob", 2)

	rr := ts.get("/api/v1/leaderboard")
	require.Equal(t, http.StatusOK, rr.Code)

	board := decode[response.Leaderboard](t, rr)
	assert.Equal(t, []response.Player{
		{Username: "alice", Ranking: 7},
		{Username: "bob", Ranking: 2},
		{Username: "carol", Ranking: 2},
	}, board.Players)
}

func TestPlayerLookup(t *testing.T) {
	ts := newTestServer(t)
	ts.register(t, "alice", 3)

	rr := ts.get("/api/v1/players/alice")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), "pw")
	assert.Equal(t, response.Player{Username: "alice", Ranking: 3}, decode[response.Player](t, rr))
}

func TestPlayerNotFound(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.get("/api/v1/players/nobody")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, apierr.CodePlayerNotFound, decode[apierr.ErrorResponse](t, rr).Error.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/leaderboard", nil)
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	assert.Equal(t, apierr.CodeMethodNotAllowed, decode[apierr.ErrorResponse](t, rr).Error.Code)
}

func TestMethodNotAllowedOnPlayerRoute(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/players/alice", nil)
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestUnknownPathNotFound(t *testing.T) {
	ts := newTestServer(t)
	assert.Equal(t, http.StatusNotFound, ts.get("/api/v1/nothing-here").Code)
}

func TestServerLifecycle(t *testing.T) {
	ts := newTestServer(t)
	cfg := api.DefaultServerConfig()
	cfg.Addr = "127.0.0.1:0"
	srv := api.NewServer(ts.handler, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, srv.Listen())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	resp, err := http.Get("http://" + srv.Addr() + "/api/v1/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, srv.Shutdown(context.Background()))
	assert.NoError(t, <-errCh)
}

func TestEventStream(t *testing.T) {
	app := factory.NewTestApp(server.DefaultConfig())

	router := api.NewRouter(api.RouterConfig{
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		Players:        app.AuthService,
		Queue:          app.Queue,
		Mode:           model.MatchModeSimple,
		PlayersPerGame: 2,
		Events:         app.Events,
	})
	srv := httptest.NewServer(router)
	defer srv.Close()
	defer func() { _ = app.Close() }()

	resp, err := http.Get(srv.URL + "/api/v1/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: connected\n", line)

	require.Eventually(t, func() bool { return app.Events.ClientCount() == 1 }, time.Second, 5*time.Millisecond)
	app.Events.BroadcastEvent("team-formed", `{"players":["alice","bob"]}`)

	for {
		line, err = reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "event: team-formed") {
			break
		}
	}
	line, err = reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "data: {\"players\":[\"alice\",\"bob\"]}\n", line)
}

func TestEventStreamDisabled(t *testing.T) {
	ts := newTestServer(t)
	assert.Equal(t, http.StatusNotFound, ts.get("/api/v1/events").Code)
}
