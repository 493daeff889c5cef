package server_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/typerace/internal/factory"
	"github.com/mcoot/typerace/internal/model"
	"github.com/mcoot/typerace/internal/protocol"
	"github.com/mcoot/typerace/internal/server"
)

const (
	sentence    = "Knowledge is power."
	waitTimeout = 5 * time.Second
)

type ServerSuite struct {
	suite.Suite
	app      *factory.TestApp
	observer server.MatchObserver
	cancel   context.CancelFunc
	done     chan error
}

func TestServerSuite(t *testing.T) {
	suite.Run(t, new(ServerSuite))
}

func (s *ServerSuite) start(mode model.MatchMode, n int) {
	cfg := server.DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	cfg.Mode = mode
	cfg.PlayersPerGame = n
	cfg.IdleDelay = 5 * time.Millisecond

	s.app = factory.NewTestApp(cfg)
	s.Require().NoError(s.app.LoadTestSentences())
	if s.observer != nil {
		s.app.Server.SetObserver(s.observer)
	}
	s.Require().NoError(s.app.Server.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan error, 1)
	go func() { s.done <- s.app.Server.Serve(ctx) }()
}

func (s *ServerSuite) TearDownTest() {
	if s.cancel != nil {
		s.stop()
	}
	s.observer = nil
}

func (s *ServerSuite) stop() {
	s.cancel()
	s.cancel = nil
	select {
	case err := <-s.done:
		s.NoError(err)
	case <-time.After(waitTimeout):
		s.Fail("server did not stop")
	}
}

// client is a framed test connection
type client struct {
	s       *ServerSuite
	conn    *protocol.Conn
	pending []string
}

func (s *ServerSuite) dial() *client {
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	conn, err := protocol.Dial(ctx, s.app.Server.Addr().String(), protocol.DefaultConfig())
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = conn.Close() })
	return &client{s: s, conn: conn}
}

func (c *client) send(payload string) {
	c.s.Require().NoError(c.conn.SendFrame(protocol.Frame(payload)))
}

type frameResult struct {
	payload string
	err     error
}

func (c *client) receive() (string, error) {
	ch := make(chan frameResult, 1)
	go func() {
		payload, err := c.conn.ReceiveFrame()
		ch <- frameResult{payload, err}
	}()
	select {
	case r := <-ch:
		return r.payload, r.err
	case <-time.After(waitTimeout):
		c.s.FailNow("timed out waiting for a frame")
		return "", nil
	}
}

// expect returns the first frame containing substr. Frames that do not
// match are kept, since the queue notice and the roster may arrive in
// either order.
func (c *client) expect(substr string) string {
	for i, payload := range c.pending {
		if strings.Contains(payload, substr) {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return payload
		}
	}
	for {
		payload, err := c.receive()
		c.s.Require().NoError(err, "waiting for %q", substr)
		if strings.Contains(payload, substr) {
			return payload
		}
		c.pending = append(c.pending, payload)
	}
}

func (c *client) register(username string) {
	c.expect("REC: Reconnect")
	c.send("REG")
	c.expect("Enter your username!")
	c.send(username)
	c.expect("Enter your password!")
	c.send("pw")
	c.expect("You entered the waiting queue")
}

func (s *ServerSuite) TestSimpleMatchEndToEnd() {
	s.start(model.MatchModeSimple, 2)

	alice := s.dial()
	alice.register("alice")
	bob := s.dial()
	bob.register("bob")

	roster := "The game started. The team for this game is: alice, bob."
	alice.expect(roster)
	bob.expect(roster)

	alice.expect(sentence)
	alice.send(sentence)
	alice.expect("Your time is")

	bob.expect(sentence)
	bob.send("not it")
	bob.expect("Input does not match with goal. Try again!")
	bob.send(sentence)
	bob.expect("Your time is")

	s.Contains(alice.expect("You won!"), "1. alice: 0.000 seconds")
	bob.expect("You lost!")

	alice.expect("Do you want to try again? (Yes/No)")
	alice.send("No")
	alice.expect("Thank you for playing our game!")
	_, err := alice.receive()
	s.ErrorIs(err, protocol.ErrPeerDisconnected)

	bob.expect("Do you want to try again? (Yes/No)")
	bob.send("no")
	bob.expect("Thank you for playing our game!")

	s.Eventually(func() bool {
		recs, err := s.app.Storage.LoadPlayers(context.Background())
		return err == nil && len(recs) == 2 && recs[0].Ranking == 1 && recs[1].Ranking == 0
	}, waitTimeout, 10*time.Millisecond)
}

func (s *ServerSuite) TestReplayReturnsToQueue() {
	s.start(model.MatchModeSimple, 2)

	alice := s.dial()
	alice.register("alice")
	bob := s.dial()
	bob.register("bob")

	alice.expect(sentence)
	alice.send(sentence)
	bob.expect(sentence)
	bob.send(sentence)

	alice.expect("Do you want to try again? (Yes/No)")
	alice.send("Yes")
	bob.expect("Do you want to try again? (Yes/No)")
	bob.send("No")

	alice.expect("You reentered the waiting queue with ranking 1.")
	s.Eventually(func() bool { return s.app.Queue.Len() == 1 }, waitTimeout, 10*time.Millisecond)
}

type recordingObserver struct {
	teams   chan []string
	results chan model.MatchResult
}

func (o *recordingObserver) TeamFormed(players []string) {
	o.teams <- players
}

func (o *recordingObserver) MatchFinished(result model.MatchResult) {
	o.results <- result
}

func (s *ServerSuite) TestObserverSeesTeamAndResult() {
	obs := &recordingObserver{
		teams:   make(chan []string, 1),
		results: make(chan model.MatchResult, 1),
	}
	s.observer = obs
	s.start(model.MatchModeSimple, 2)

	alice := s.dial()
	alice.register("alice")
	bob := s.dial()
	bob.register("bob")

	select {
	case team := <-obs.teams:
		s.Equal([]string{"alice", "bob"}, team)
	case <-time.After(waitTimeout):
		s.FailNow("no team formed")
	}

	alice.expect(sentence)
	alice.send(sentence)
	bob.expect(sentence)
	bob.send(sentence)
	alice.expect("Do you want to try again? (Yes/No)")
	alice.send("No")
	bob.expect("Do you want to try again? (Yes/No)")
	bob.send("No")

	select {
	case result := <-obs.results:
		s.Equal("alice", result.Winner)
		s.Equal(sentence, result.Sentence)
		s.Len(result.Entries, 2)
	case <-time.After(waitTimeout):
		s.FailNow("no match result")
	}
}

func (s *ServerSuite) TestRankMatchSkipsDistantPlayer() {
	s.start(model.MatchModeRank, 2)

	ctx := context.Background()
	for name, ranking := range map[string]int{"alice": 0, "bob": 20, "carol": 1} {
		p, err := s.app.AuthService.Register(ctx, name, "seed")
		s.Require().NoError(err)
		p.AddRanking(ranking)
	}

	login := func(c *client, username string) {
		c.expect("REC: Reconnect")
		c.send("LOG")
		c.expect("Enter your username!")
		c.send(username)
		c.expect("Enter your password!")
		c.send("seed")
		c.expect("You entered the waiting queue")
	}

	bob := s.dial()
	login(bob, "bob")
	alice := s.dial()
	login(alice, "alice")
	carol := s.dial()
	login(carol, "carol")

	carol.expect("The game started. The team for this game is: alice, carol.")
	s.Eventually(func() bool {
		snapshot := s.app.Queue.Snapshot()
		return len(snapshot) == 1 && snapshot[0].Username == "bob"
	}, waitTimeout, 10*time.Millisecond)
}

func (s *ServerSuite) TestShutdownClosesConnections() {
	s.start(model.MatchModeSimple, 3)

	queued := s.dial()
	queued.register("alice")
	idle := s.dial()
	idle.expect("REC: Reconnect")

	s.stop()

	_, err := queued.receive()
	s.ErrorIs(err, protocol.ErrPeerDisconnected)
	_, err = idle.receive()
	s.ErrorIs(err, protocol.ErrPeerDisconnected)
	s.Equal(0, s.app.Queue.Len())
}

func TestListenFailure(t *testing.T) {
	cfg := server.DefaultConfig()
	cfg.Addr = "127.0.0.1:-1"
	app := factory.NewTestApp(cfg)
	if err := app.Server.Listen(); err == nil {
		t.Fatal("expected listen error")
	}
}
