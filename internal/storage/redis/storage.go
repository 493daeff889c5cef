package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/typerace/internal/model"
	"github.com/mcoot/typerace/internal/storage"
)

// Storage is a Redis-backed implementation of the storage interface
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Storage{
		client: client,
		cfg:    cfg,
	}, nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

func (s *Storage) LoadPlayers(ctx context.Context) ([]model.PlayerRecord, error) {
	usernames, err := s.client.LRange(ctx, playersIndexKey(), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(usernames) == 0 {
		return nil, nil
	}

	keys := make([]string, len(usernames))
	for i, username := range usernames {
		keys[i] = playerKey(username)
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	recs := make([]model.PlayerRecord, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// index entry without a record; skip it
			continue
		}
		var rec model.PlayerRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("decode player %q: %w", usernames[i], err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func (s *Storage) AppendPlayer(ctx context.Context, rec model.PlayerRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	created, err := s.client.SetNX(ctx, playerKey(rec.Username), data, 0).Result()
	if err != nil {
		return err
	}
	if !created {
		return model.ErrUsernameExists
	}
	return s.client.RPush(ctx, playersIndexKey(), rec.Username).Err()
}

func (s *Storage) SavePlayers(ctx context.Context, recs []model.PlayerRecord) error {
	existing, err := s.client.LRange(ctx, playersIndexKey(), 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}

	keep := make(map[string]struct{}, len(recs))
	for _, rec := range recs {
		keep[rec.Username] = struct{}{}
	}

	pipe := s.client.TxPipeline()
	for _, username := range existing {
		if _, ok := keep[username]; !ok {
			pipe.Del(ctx, playerKey(username))
		}
	}
	pipe.Del(ctx, playersIndexKey())
	for _, rec := range recs {
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		pipe.Set(ctx, playerKey(rec.Username), data, 0)
		pipe.RPush(ctx, playersIndexKey(), rec.Username)
	}
	_, err = pipe.Exec(ctx)
	return err
}
