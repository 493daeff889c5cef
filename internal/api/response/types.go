package response

import (
	"time"

	"github.com/mcoot/typerace/internal/model"
)

// Health is the body of the health endpoint
type Health struct {
	Status string `json:"status"`
}

// Player is a player's public record
type Player struct {
	Username string `json:"username"`
	Ranking  int    `json:"ranking"`
}

// PlayerFromRecord converts a stored record, dropping the password digest
func PlayerFromRecord(rec model.PlayerRecord) Player {
	return Player{
		Username: rec.Username,
		Ranking:  rec.Ranking,
	}
}

// Leaderboard lists players by ranking, highest first
type Leaderboard struct {
	Players []Player `json:"players"`
}

// LeaderboardFromRecords converts an ordered record list
func LeaderboardFromRecords(recs []model.PlayerRecord) Leaderboard {
	players := make([]Player, len(recs))
	for i, rec := range recs {
		players[i] = PlayerFromRecord(rec)
	}
	return Leaderboard{Players: players}
}

// QueueEntry is one waiting player
type QueueEntry struct {
	Username     string    `json:"username"`
	Ranking      int       `json:"ranking"`
	WaitingSince time.Time `json:"waiting_since"`
}

// QueueStatus describes the waiting queue and matchmaking settings
type QueueStatus struct {
	Mode              string       `json:"mode"`
	PlayersPerGame    int          `json:"players_per_game"`
	RankingDifference int          `json:"ranking_difference"`
	Entries           []QueueEntry `json:"entries"`
}

// QueueStatusFromSnapshot converts a queue snapshot
func QueueStatusFromSnapshot(mode model.MatchMode, playersPerGame, rankingDifference int, snapshot []model.QueueEntry) QueueStatus {
	entries := make([]QueueEntry, len(snapshot))
	for i, e := range snapshot {
		entries[i] = QueueEntry{
			Username:     e.Username,
			Ranking:      e.Ranking,
			WaitingSince: e.WaitingSince,
		}
	}
	return QueueStatus{
		Mode:              mode.String(),
		PlayersPerGame:    playersPerGame,
		RankingDifference: rankingDifference,
		Entries:           entries,
	}
}

// TeamFormed announces a team leaving the queue for a match
type TeamFormed struct {
	Players []string `json:"players"`
}

// MatchEntry is one finishing line of a match
type MatchEntry struct {
	Position     int     `json:"position"`
	Username     string  `json:"username"`
	Seconds      float64 `json:"seconds"`
	Disconnected bool    `json:"disconnected"`
	RankingDelta int     `json:"ranking_delta"`
	Ranking      int     `json:"ranking"`
}

// MatchFinished summarises a finished match
type MatchFinished struct {
	MatchID    string       `json:"match_id"`
	Sentence   string       `json:"sentence"`
	Winner     string       `json:"winner,omitempty"`
	Entries    []MatchEntry `json:"entries"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
}

// MatchFinishedFromResult converts a match result
func MatchFinishedFromResult(result model.MatchResult) MatchFinished {
	entries := make([]MatchEntry, len(result.Entries))
	for i, e := range result.Entries {
		entries[i] = MatchEntry{
			Position:     e.Position,
			Username:     e.Username,
			Disconnected: e.Disconnected(),
			RankingDelta: e.RankingDelta,
			Ranking:      e.Ranking,
		}
		if !e.Disconnected() {
			entries[i].Seconds = e.PlayTime.Seconds()
		}
	}
	return MatchFinished{
		MatchID:    result.MatchID,
		Sentence:   result.Sentence,
		Winner:     result.Winner,
		Entries:    entries,
		StartedAt:  result.StartedAt,
		FinishedAt: result.FinishedAt,
	}
}
