// Package game runs one round of the typing race for a formed team.
package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mcoot/typerace/internal/dependencies/clock"
	"github.com/mcoot/typerace/internal/model"
	"github.com/mcoot/typerace/internal/services/prompt"
	"github.com/mcoot/typerace/internal/services/queue"
	"github.com/mcoot/typerace/internal/services/scoring"
	"github.com/mcoot/typerace/internal/session"
)

// Messages sent during a round
const (
	promptFormat    = "Write this sentence in the less time possible:\n%q"
	mismatchMessage = "Input does not match with goal. Try again!"
	replayQuestion  = "Do you want to try again? (Yes/No)"
	farewellMessage = "Thank you for playing our game!"
)

// State is a round phase
type State string

const (
	StateStart          State = "start"
	StatePrompt         State = "prompt"
	StateResults        State = "results"
	StateReplayDecision State = "replay_decision"
	StateDone           State = "done"
)

// Saver persists rankings after a round
type Saver interface {
	SaveAll(ctx context.Context) error
}

// Requeuer takes continuing players back
type Requeuer interface {
	Enqueue(s *session.Session) error
}

// Outcome is what a finished round hands back
type Outcome struct {
	Result     model.MatchResult
	Continuing []*session.Session
}

// Controller runs rounds. It holds no per-round state and may run many
// rounds concurrently.
type Controller struct {
	prompts  *prompt.Service
	scoring  *scoring.Service
	saver    Saver
	requeuer Requeuer
	clock    clock.Clock
	logger   *slog.Logger
}

// NewController creates a new GameController
func NewController(
	prompts *prompt.Service,
	scoring *scoring.Service,
	saver Saver,
	requeuer Requeuer,
	clock clock.Clock,
	logger *slog.Logger,
) *Controller {
	return &Controller{
		prompts:  prompts,
		scoring:  scoring,
		saver:    saver,
		requeuer: requeuer,
		clock:    clock,
		logger:   logger.With(slog.String("component", "game")),
	}
}

// round tracks members that can no longer be reached
type round struct {
	id     string
	team   []*session.Session
	gone   map[session.ID]bool
	logger *slog.Logger
}

func (r *round) markGone(s *session.Session, state State, err error) {
	if r.gone[s.ID()] {
		return
	}
	r.gone[s.ID()] = true
	r.logger.Info("player disconnected during match",
		slog.String("username", s.Username()),
		slog.String("state", string(state)),
		slog.String("error", err.Error()),
	)
}

// Run plays a round, saves rankings and returns continuing players to
// the queue. A failed save is logged and picked up by the next round's save.
func (c *Controller) Run(ctx context.Context, team []*session.Session) Outcome {
	outcome := c.Play(ctx, team)

	if err := c.saver.SaveAll(ctx); err != nil {
		c.logger.Error("failed to save rankings, will retry after the next match",
			slog.String("match_id", outcome.Result.MatchID),
			slog.String("error", err.Error()),
		)
	}

	for _, s := range outcome.Continuing {
		c.requeue(s)
	}
	return outcome
}

func (c *Controller) requeue(s *session.Session) {
	s.MarkArrived(c.clock.Now())
	if err := c.requeuer.Enqueue(s); err != nil {
		if errors.Is(err, model.ErrAlreadyQueued) {
			_ = s.Send(queue.AlreadyQueuedMessage)
		}
		_ = s.Close()
		c.logger.Info("player not requeued",
			slog.String("username", s.Username()),
			slog.String("error", err.Error()),
		)
		return
	}

	p := s.Player()
	if err := s.Send(queue.ReenteredMessage(p.Ranking(), p.Token(), true)); err != nil {
		// left queued; the next liveness sweep decides
		c.logger.Info("requeue notice not delivered",
			slog.String("username", s.Username()),
			slog.String("error", err.Error()),
		)
	}
}

// Play runs START, PROMPT, RESULTS and REPLAY_DECISION for team. Members
// are prompted strictly one after another.
func (c *Controller) Play(ctx context.Context, team []*session.Session) Outcome {
	r := &round{
		id:   uuid.NewString(),
		team: team,
		gone: make(map[session.ID]bool),
	}
	r.logger = c.logger.With(slog.String("match_id", r.id))

	result := model.MatchResult{
		MatchID:   r.id,
		StartedAt: c.clock.Now(),
	}

	c.start(r)
	result.Sentence = c.prompt(ctx, r)
	result.Entries = c.results(r)
	result.Winner = c.scoring.Winner(result.Entries)
	result.FinishedAt = c.clock.Now()
	continuing := c.replayDecision(r)

	r.logger.Info("match finished",
		slog.String("winner", result.Winner),
		slog.String("results", c.scoring.FormatResults(result.Entries)),
		slog.Int("continuing", len(continuing)),
	)
	return Outcome{Result: result, Continuing: continuing}
}

func (c *Controller) start(r *round) {
	names := make([]string, len(r.team))
	for i, s := range r.team {
		names[i] = s.Username()
	}
	msg := fmt.Sprintf("The game started. The team for this game is: %s.", strings.Join(names, ", "))
	r.logger.Info("match started", slog.String("team", strings.Join(names, ", ")))

	for _, s := range r.team {
		if err := s.Send(msg); err != nil {
			r.logger.Warn("roster not delivered",
				slog.String("username", s.Username()),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (c *Controller) prompt(ctx context.Context, r *round) string {
	sentence := c.prompts.Pick()
	for _, s := range r.team {
		if err := ctx.Err(); err != nil {
			s.Player().SetPlayTime(model.PlayTimeDisconnected)
			r.markGone(s, StatePrompt, err)
			continue
		}
		elapsed, err := c.race(s, sentence)
		if err != nil {
			s.Player().SetPlayTime(model.PlayTimeDisconnected)
			r.markGone(s, StatePrompt, err)
			continue
		}
		s.Player().SetPlayTime(elapsed)
	}
	return sentence
}

// race times one member from the prompt to an exact copy of sentence.
// Wrong attempts are answered with a retry notice while the clock runs.
func (c *Controller) race(s *session.Session, sentence string) (elapsed time.Duration, err error) {
	if err := s.Send(fmt.Sprintf(promptFormat, sentence)); err != nil {
		return 0, err
	}
	startedAt := c.clock.Now()

	for {
		attempt, err := s.Receive()
		if err != nil {
			return 0, err
		}
		if attempt != sentence {
			if err := s.Send(mismatchMessage); err != nil {
				return 0, err
			}
			continue
		}
		elapsed = c.clock.Since(startedAt)
		if err := s.Send(fmt.Sprintf("Your time is %s seconds.", scoring.FormatSeconds(elapsed))); err != nil {
			return 0, err
		}
		return elapsed, nil
	}
}

func (c *Controller) results(r *round) []model.ResultEntry {
	players := make([]*model.Player, len(r.team))
	for i, s := range r.team {
		players[i] = s.Player()
	}
	entries := c.scoring.Apply(players)
	winner := c.scoring.Winner(entries)
	table := c.scoring.FormatResults(entries)

	for _, s := range r.team {
		s.Player().SetPlayTime(model.PlayTimeUnset)
		if r.gone[s.ID()] {
			continue
		}
		headline := "You lost!"
		if s.Username() == winner {
			headline = "You won!"
		}
		if err := s.Send(headline + "\n" + table); err != nil {
			r.markGone(s, StateResults, err)
		}
	}
	return entries
}

func (c *Controller) replayDecision(r *round) []*session.Session {
	var continuing []*session.Session
	for _, s := range r.team {
		if r.gone[s.ID()] {
			_ = s.Close()
			continue
		}
		if c.wantsReplay(s) {
			continuing = append(continuing, s)
			continue
		}
		_ = s.Send(farewellMessage)
		_ = s.Close()
	}
	return continuing
}

func (c *Controller) wantsReplay(s *session.Session) bool {
	if err := s.Send(replayQuestion); err != nil {
		return false
	}
	answer, err := s.Receive()
	if err != nil {
		return false
	}
	switch strings.ToUpper(strings.TrimSpace(answer)) {
	case "YES", "Y":
		return true
	default:
		return false
	}
}
