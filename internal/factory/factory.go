package factory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/mcoot/typerace/internal/api/sse"
	"github.com/mcoot/typerace/internal/dependencies/clock"
	"github.com/mcoot/typerace/internal/dependencies/random"
	"github.com/mcoot/typerace/internal/server"
	"github.com/mcoot/typerace/internal/services/auth"
	"github.com/mcoot/typerace/internal/services/game"
	"github.com/mcoot/typerace/internal/services/handshake"
	"github.com/mcoot/typerace/internal/services/prompt"
	"github.com/mcoot/typerace/internal/services/queue"
	"github.com/mcoot/typerace/internal/services/scoring"
	"github.com/mcoot/typerace/internal/storage"
	filestorage "github.com/mcoot/typerace/internal/storage/file"
	"github.com/mcoot/typerace/internal/storage/memory"
	redisstorage "github.com/mcoot/typerace/internal/storage/redis"
)

// Storage type constants
const (
	StorageTypeFile   = "file"
	StorageTypeMemory = "memory"
	StorageTypeRedis  = "redis"
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock  clock.Clock
	Random random.Random

	// Services
	AuthService      *auth.Service
	PromptService    *prompt.Service
	ScoringService   *scoring.Service
	Queue            *queue.Manager
	GameController   *game.Controller
	HandshakeHandler *handshake.Handler
	Server           *server.Server

	// Events streams team and match events to status API subscribers
	Events *sse.Hub

	closer io.Closer
}

// Config holds configuration for the application factory
type Config struct {
	// StorageType selects the storage backend ("file", "memory" or "redis")
	// If empty, defaults to "file"
	StorageType string
	// DatabasePath is the CSV player store (required if StorageType is "file")
	DatabasePath string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// AuthConfig holds configuration for the auth service (optional)
	// If zero value, defaults to auth.DefaultConfig()
	AuthConfig auth.Config
	// CorpusPath replaces the built-in sentences when set
	CorpusPath string
	// Server holds listen address, match mode and team size
	Server server.Config
	// Queue holds the matchmaking timing policy (optional)
	// If zero value, defaults to queue.DefaultConfig()
	Queue queue.Config
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
}

// New creates a new application with all dependencies wired and the player
// registry loaded from storage
func New(ctx context.Context, cfg Config) (*App, error) {
	// Use no-op logger if not provided
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	store, closer, err := newStorage(cfg)
	if err != nil {
		return nil, err
	}

	authCfg := cfg.AuthConfig
	if authCfg.HashAlgorithm == "" {
		authCfg = auth.DefaultConfig()
	}
	queueCfg := cfg.Queue
	if queueCfg == (queue.Config{}) {
		queueCfg = queue.DefaultConfig()
	}

	app, err := newWithDependencies(store, clock.New(), random.New(), authCfg, queueCfg, cfg.Server, logger)
	if err != nil {
		closeQuietly(closer)
		return nil, err
	}
	app.closer = closer

	if cfg.CorpusPath != "" {
		if err := app.PromptService.LoadFromFile(cfg.CorpusPath); err != nil {
			_ = app.Close()
			return nil, fmt.Errorf("load corpus: %w", err)
		}
	}
	if err := app.AuthService.Load(ctx); err != nil {
		_ = app.Close()
		return nil, err
	}
	return app, nil
}

func newStorage(cfg Config) (storage.Storage, io.Closer, error) {
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeFile
	}

	switch storageType {
	case StorageTypeFile:
		if cfg.DatabasePath == "" {
			return nil, nil, errors.New("DatabasePath required when StorageType is file")
		}
		fileStore, err := filestorage.New(cfg.DatabasePath)
		if err != nil {
			return nil, nil, err
		}
		return fileStore, nil, nil
	case StorageTypeMemory:
		return memory.New(), nil, nil
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, nil, errors.New("RedisConfig required when StorageType is redis")
		}
		redisStore, err := redisstorage.New(*cfg.RedisConfig)
		if err != nil {
			return nil, nil, err
		}
		return redisStore, redisStore, nil
	default:
		return nil, nil, errors.New("invalid StorageType: must be 'file', 'memory' or 'redis'")
	}
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(
	store storage.Storage,
	clk clock.Clock,
	rnd random.Random,
	authCfg auth.Config,
	queueCfg queue.Config,
	serverCfg server.Config,
	logger *slog.Logger,
) (*App, error) {
	authService, err := auth.New(store, rnd, authCfg, logger)
	if err != nil {
		return nil, err
	}
	promptService := prompt.New(rnd)
	scoringService := scoring.New()
	queueManager := queue.NewManager(queueCfg, clk, authService, logger)
	gameController := game.NewController(promptService, scoringService, authService, queueManager, clk, logger)
	handshakeHandler := handshake.NewHandler(authService, queueManager, clk, logger)
	srv := server.New(serverCfg, queueManager, handshakeHandler, gameController, logger)
	events := sse.NewHub(logger)
	go events.Run()
	srv.SetObserver(sse.NewBroadcaster(events, logger))

	return &App{
		Storage:          store,
		Clock:            clk,
		Random:           rnd,
		AuthService:      authService,
		PromptService:    promptService,
		ScoringService:   scoringService,
		Queue:            queueManager,
		GameController:   gameController,
		HandshakeHandler: handshakeHandler,
		Server:           srv,
		Events:           events,
	}, nil
}

// Close stops the event hub and releases the storage connection, if any
func (a *App) Close() error {
	a.Events.Close()
	if a.closer == nil {
		return nil
	}
	return a.closer.Close()
}

func closeQuietly(c io.Closer) {
	if c != nil {
		_ = c.Close()
	}
}
