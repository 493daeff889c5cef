package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/mcoot/typerace/internal/api/response"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter
func NewOutput(format string, w io.Writer) *Output {
	return &Output{format: format, w: w}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case response.Health:
		fmt.Fprintf(o.w, "Status: %s\n", v.Status)
	case response.Player:
		fmt.Fprintf(o.w, "Player: %s\n", v.Username)
		fmt.Fprintf(o.w, "Ranking: %d\n", v.Ranking)
	case response.Leaderboard:
		o.printLeaderboard(v)
	case response.QueueStatus:
		o.printQueue(v)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

func (o *Output) printLeaderboard(l response.Leaderboard) {
	if len(l.Players) == 0 {
		fmt.Fprintln(o.w, "No players registered")
		return
	}
	for i, p := range l.Players {
		fmt.Fprintf(o.w, "%d. %s (ranking: %d)\n", i+1, p.Username, p.Ranking)
	}
}

func (o *Output) printQueue(q response.QueueStatus) {
	fmt.Fprintf(o.w, "Mode: %s\n", q.Mode)
	fmt.Fprintf(o.w, "Players per game: %d\n", q.PlayersPerGame)
	if q.Mode == "rank" {
		fmt.Fprintf(o.w, "Ranking difference: %d\n", q.RankingDifference)
	}
	fmt.Fprintf(o.w, "Waiting (%d):\n", len(q.Entries))
	for i, e := range q.Entries {
		fmt.Fprintf(o.w, "  %d. %s (ranking: %d) since %s\n", i+1, e.Username, e.Ranking, e.WaitingSince.Format(time.TimeOnly))
	}
}
