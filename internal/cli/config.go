package cli

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/mcoot/typerace/internal/factory"
	"github.com/mcoot/typerace/internal/services/auth"
	redisstorage "github.com/mcoot/typerace/internal/storage/redis"
)

// Config holds status CLI configuration
type Config struct {
	StatusURL string
	Output    string
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	return &Config{
		StatusURL: getEnvOrDefault("TYPERACE_STATUS_URL", "http://localhost:8080"),
		Output:    "text",
	}
}

// ServerFlags holds the server options that are not positional arguments
type ServerFlags struct {
	Storage  string
	RedisURL string
	Hash     string
	Corpus   string
	HTTPAddr string
	LogLevel string
}

// DefaultServerFlags reads flag defaults from the environment
func DefaultServerFlags() ServerFlags {
	return ServerFlags{
		Storage:  getEnvOrDefault("TYPERACE_STORAGE", factory.StorageTypeFile),
		RedisURL: getEnvOrDefault("REDIS_URL", redisstorage.DefaultConfig().URL),
		Hash:     getEnvOrDefault("TYPERACE_HASH", auth.HashSHA256),
		Corpus:   os.Getenv("TYPERACE_CORPUS"),
		HTTPAddr: os.Getenv("TYPERACE_HTTP_ADDR"),
		LogLevel: getEnvOrDefault("TYPERACE_LOG_LEVEL", "info"),
	}
}

// factoryConfig builds the application config for args and flags
func (f ServerFlags) factoryConfig(args ServerArgs, logger *slog.Logger) factory.Config {
	cfg := factory.Config{
		StorageType:  f.Storage,
		DatabasePath: args.DatabaseFile,
		AuthConfig:   auth.Config{HashAlgorithm: f.Hash},
		CorpusPath:   f.Corpus,
		Server:       args.serverConfig(),
		Logger:       logger,
	}
	if f.Storage == factory.StorageTypeRedis {
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = f.RedisURL
		cfg.RedisConfig = &redisCfg
	}
	return cfg
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
