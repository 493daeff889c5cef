package model

import (
	"math"
	"sync"
	"time"
)

// Play-time sentinels. Disconnected sorts after every real time.
const (
	PlayTimeUnset        time.Duration = -1
	PlayTimeDisconnected time.Duration = math.MaxInt64
)

// InitialRanking is the ranking of a freshly registered player
const InitialRanking = 0

// PlayerRecord is the persisted form of a player
type PlayerRecord struct {
	Username     string `json:"username"`
	PasswordHash string `json:"password_hash"`
	Ranking      int    `json:"ranking"`
}

// Player is the in-memory identity shared by every session of one user.
// Username and PasswordHash never change; the rest is guarded by mu since
// match tasks, the queue and the store all touch it.
type Player struct {
	Username     string
	PasswordHash string

	mu       sync.RWMutex
	ranking  int
	token    string
	playTime time.Duration
}

// NewPlayer builds a Player from its persisted record
func NewPlayer(rec PlayerRecord) *Player {
	return &Player{
		Username:     rec.Username,
		PasswordHash: rec.PasswordHash,
		ranking:      rec.Ranking,
		playTime:     PlayTimeUnset,
	}
}

// Record returns a snapshot suitable for persisting
func (p *Player) Record() PlayerRecord {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return PlayerRecord{
		Username:     p.Username,
		PasswordHash: p.PasswordHash,
		Ranking:      p.ranking,
	}
}

func (p *Player) Ranking() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ranking
}

// AddRanking adjusts the ranking and returns the new value
func (p *Player) AddRanking(delta int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ranking += delta
	return p.ranking
}

func (p *Player) Token() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.token
}

func (p *Player) SetToken(token string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.token = token
}

func (p *Player) PlayTime() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.playTime
}

func (p *Player) SetPlayTime(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playTime = d
}
