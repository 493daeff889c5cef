package auth

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/mcoot/typerace/internal/dependencies/random"
	"github.com/mcoot/typerace/internal/model"
	"github.com/mcoot/typerace/internal/storage"
)

// Reconnection tokens carry a suffix in [tokenMin, tokenMax)
const (
	tokenMin = 1000
	tokenMax = 9999
)

// Config holds configuration for the auth service
type Config struct {
	HashAlgorithm string
}

// DefaultConfig returns default auth configuration
func DefaultConfig() Config {
	return Config{
		HashAlgorithm: HashSHA256,
	}
}

// Service owns the in-memory player registry and is the only path to the
// backing store. Every registry or store access holds mu, which callers
// must never hold together with the waiting queue lock.
type Service struct {
	storage storage.Storage
	random  random.Random
	hasher  Hasher
	logger  *slog.Logger

	mu      sync.Mutex
	players map[string]*model.Player
	order   []*model.Player
}

// New creates a new auth service
func New(storage storage.Storage, random random.Random, cfg Config, logger *slog.Logger) (*Service, error) {
	hasher, err := NewHasher(cfg.HashAlgorithm)
	if err != nil {
		return nil, err
	}
	return &Service{
		storage: storage,
		random:  random,
		hasher:  hasher,
		logger:  logger.With(slog.String("component", "auth")),
		players: make(map[string]*model.Player),
	}, nil
}

// Load replaces the registry with the contents of the store
func (s *Service) Load(ctx context.Context) error {
	recs, err := s.storage.LoadPlayers(ctx)
	if err != nil {
		return fmt.Errorf("load players: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.players = make(map[string]*model.Player, len(recs))
	s.order = s.order[:0]
	for _, rec := range recs {
		if _, dup := s.players[rec.Username]; dup {
			s.logger.Warn("duplicate player record ignored", slog.String("username", rec.Username))
			continue
		}
		p := model.NewPlayer(rec)
		s.players[rec.Username] = p
		s.order = append(s.order, p)
	}
	s.logger.Info("players loaded", slog.Int("count", len(s.order)))
	return nil
}

// Login returns the registered player whose password matches
func (s *Service) Login(ctx context.Context, username, password string) (*model.Player, error) {
	digest := s.hasher.Hash(password)

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[username]
	if !ok || !matches(p.PasswordHash, digest) {
		return nil, model.ErrInvalidCredentials
	}
	return p, nil
}

// Register creates and persists a new player with the initial ranking
func (s *Service) Register(ctx context.Context, username, password string) (*model.Player, error) {
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	rec := model.PlayerRecord{
		Username:     username,
		PasswordHash: s.hasher.Hash(password),
		Ranking:      model.InitialRanking,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.players[username]; exists {
		return nil, model.ErrUsernameExists
	}
	if err := s.storage.AppendPlayer(ctx, rec); err != nil {
		return nil, fmt.Errorf("append player: %w", err)
	}

	p := model.NewPlayer(rec)
	s.players[username] = p
	s.order = append(s.order, p)
	s.logger.Info("player registered", slog.String("username", username))
	return p, nil
}

// SaveAll rewrites the store from the registry
func (s *Service) SaveAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs := make([]model.PlayerRecord, len(s.order))
	for i, p := range s.order {
		recs[i] = p.Record()
	}
	if err := s.storage.SavePlayers(ctx, recs); err != nil {
		return fmt.Errorf("save players: %w", err)
	}
	return nil
}

// Player looks up a registered player
func (s *Service) Player(username string) (*model.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[username]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	return p, nil
}

// Leaderboard returns every player ordered by ranking, highest first
func (s *Service) Leaderboard() []model.PlayerRecord {
	s.mu.Lock()
	recs := make([]model.PlayerRecord, len(s.order))
	for i, p := range s.order {
		recs[i] = p.Record()
	}
	s.mu.Unlock()

	slices.SortStableFunc(recs, func(a, b model.PlayerRecord) int {
		if c := cmp.Compare(b.Ranking, a.Ranking); c != 0 {
			return c
		}
		return cmp.Compare(a.Username, b.Username)
	})
	return recs
}

// NewToken generates a reconnection token for username. It does not touch
// the registry, so it is safe to call while holding the queue lock.
func (s *Service) NewToken(username string) string {
	return fmt.Sprintf("%s-%d", username, s.random.Between(tokenMin, tokenMax))
}

// Algorithm reports the configured password digest
func (s *Service) Algorithm() string {
	return s.hasher.Algorithm()
}

func validateUsername(username string) error {
	if strings.TrimSpace(username) == "" || strings.ContainsAny(username, ",\r\n") {
		return model.ErrInvalidUsername
	}
	return nil
}
