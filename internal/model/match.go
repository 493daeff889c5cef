package model

import (
	"fmt"
	"time"
)

// MatchMode selects how the waiting queue forms teams
type MatchMode int

const (
	MatchModeSimple MatchMode = 0 // arrival order
	MatchModeRank   MatchMode = 1 // ranking window
)

func (m MatchMode) String() string {
	switch m {
	case MatchModeSimple:
		return "simple"
	case MatchModeRank:
		return "rank"
	default:
		return fmt.Sprintf("unknown(%d)", int(m))
	}
}

// QueueEntry is a read-only view of one waiting session
type QueueEntry struct {
	Username     string
	Ranking      int
	WaitingSince time.Time
}

// ResultEntry is one line of a match outcome, in finishing order
type ResultEntry struct {
	Position     int
	Username     string
	PlayTime     time.Duration
	RankingDelta int
	Ranking      int
}

// Disconnected reports whether the player dropped out before finishing
func (e ResultEntry) Disconnected() bool {
	return e.PlayTime == PlayTimeDisconnected
}

// MatchResult summarises a finished round
type MatchResult struct {
	MatchID    string
	Sentence   string
	Entries    []ResultEntry
	Winner     string // empty when nobody finished
	StartedAt  time.Time
	FinishedAt time.Time
}
