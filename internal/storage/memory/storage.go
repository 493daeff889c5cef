package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/mcoot/typerace/internal/model"
	"github.com/mcoot/typerace/internal/storage"
)

// Storage is an in-memory implementation of the storage interface
type Storage struct {
	mu      sync.RWMutex
	records []model.PlayerRecord
	index   map[string]int
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		index: make(map[string]int),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

func (s *Storage) LoadPlayers(ctx context.Context) ([]model.PlayerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.records), nil
}

func (s *Storage) AppendPlayer(ctx context.Context, rec model.PlayerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.index[rec.Username]; ok {
		return model.ErrUsernameExists
	}
	s.index[rec.Username] = len(s.records)
	s.records = append(s.records, rec)
	return nil
}

func (s *Storage) SavePlayers(ctx context.Context, recs []model.PlayerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = slices.Clone(recs)
	s.index = make(map[string]int, len(recs))
	for i, rec := range s.records {
		s.index[rec.Username] = i
	}
	return nil
}
