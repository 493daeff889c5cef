package scoring

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/mcoot/typerace/internal/model"
)

// Service turns finishing times into result entries and ranking changes
type Service struct{}

// New creates a new ScoringService
func New() *Service {
	return &Service{}
}

// Apply orders players by play time (disconnected last, ties in team
// order) and adds N-1, N-2, ..., 0 to their rankings by position.
func (s *Service) Apply(team []*model.Player) []model.ResultEntry {
	type timed struct {
		player *model.Player
		time   time.Duration
	}
	order := make([]timed, len(team))
	for i, p := range team {
		order[i] = timed{player: p, time: p.PlayTime()}
	}
	slices.SortStableFunc(order, func(a, b timed) int {
		return cmp.Compare(a.time, b.time)
	})

	entries := make([]model.ResultEntry, len(order))
	for i, t := range order {
		delta := len(order) - 1 - i
		entries[i] = model.ResultEntry{
			Position:     i + 1,
			Username:     t.player.Username,
			PlayTime:     t.time,
			RankingDelta: delta,
			Ranking:      t.player.AddRanking(delta),
		}
	}
	return entries
}

// Winner returns the first finisher, or "" if nobody finished
func (s *Service) Winner(entries []model.ResultEntry) string {
	if len(entries) == 0 || entries[0].Disconnected() || entries[0].PlayTime < 0 {
		return ""
	}
	return entries[0].Username
}

// FormatResults renders the results table sent to every player
func (s *Service) FormatResults(entries []model.ResultEntry) string {
	var b strings.Builder
	for _, e := range entries {
		if e.Disconnected() {
			fmt.Fprintf(&b, "%d. %s: disconnected\n", e.Position, e.Username)
			continue
		}
		fmt.Fprintf(&b, "%d. %s: %s seconds\n", e.Position, e.Username, FormatSeconds(e.PlayTime))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// FormatSeconds renders d as seconds with millisecond precision
func FormatSeconds(d time.Duration) string {
	return fmt.Sprintf("%.3f", d.Seconds())
}
