// Package file stores player records in a flat CSV file, one
// "username,passwordHash,ranking" line per player.
package file

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/mcoot/typerace/internal/model"
	"github.com/mcoot/typerace/internal/storage"
)

const fieldsPerRecord = 3

// Storage is a CSV file implementation of the storage interface
type Storage struct {
	mu   sync.Mutex
	path string
}

// New opens the store at path, creating an empty file if none exists
func New(path string) (*Storage, error) {
	f, err := os.OpenFile(path, os.O_RDONLY|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open player file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, err
	}
	return &Storage{path: path}, nil
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Path returns the backing file location
func (s *Storage) Path() string {
	return s.path
}

func (s *Storage) LoadPlayers(ctx context.Context) ([]model.PlayerRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open player file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = fieldsPerRecord

	var recs []model.PlayerRecord
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			return recs, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read player file: %w", err)
		}
		ranking, err := strconv.Atoi(row[2])
		if err != nil {
			line, _ := r.FieldPos(2)
			return nil, fmt.Errorf("player file line %d: bad ranking %q", line, row[2])
		}
		recs = append(recs, model.PlayerRecord{
			Username:     row[0],
			PasswordHash: row[1],
			Ranking:      ranking,
		})
	}
}

func (s *Storage) AppendPlayer(ctx context.Context, rec model.PlayerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("open player file: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(row(rec)); err != nil {
		_ = f.Close()
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("append player: %w", err)
	}
	return f.Close()
}

// SavePlayers writes recs to a temp file next to the store and renames it
// over the original, so readers never see a half-written file.
func (s *Storage) SavePlayers(ctx context.Context, recs []model.PlayerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir, base := filepath.Split(s.path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, base+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp player file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	for _, rec := range recs {
		if err := w.Write(row(rec)); err != nil {
			_ = tmp.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write player file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace player file: %w", err)
	}
	return nil
}

func row(rec model.PlayerRecord) []string {
	return []string{rec.Username, rec.PasswordHash, strconv.Itoa(rec.Ranking)}
}
