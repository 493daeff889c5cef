package storage

import (
	"context"

	"github.com/mcoot/typerace/internal/model"
)

// Storage persists player records. Implementations need not be safe for
// concurrent writers; the auth service serializes every call.
type Storage interface {
	// LoadPlayers returns every stored record in registration order
	LoadPlayers(ctx context.Context) ([]model.PlayerRecord, error)

	// AppendPlayer persists a newly registered player
	AppendPlayer(ctx context.Context, rec model.PlayerRecord) error

	// SavePlayers rewrites the whole store with recs
	SavePlayers(ctx context.Context, recs []model.PlayerRecord) error
}
