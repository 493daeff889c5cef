package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mcoot/typerace/internal/api"
	"github.com/mcoot/typerace/internal/factory"
)

// NewServerCmd creates the matchmaking server command
func NewServerCmd(use string) *cobra.Command {
	flags := DefaultServerFlags()

	cmd := &cobra.Command{
		Use:   use + " <PORT> <DATABASE_FILE> <MODE> <PLAYERS_PER_GAME>",
		Short: "Run the typing race matchmaking server",
		Long: `Runs the typing race server on PORT.

Players are stored in DATABASE_FILE (a .csv file). MODE 0 forms teams in
arrival order, MODE 1 forms teams of players with similar rankings. Every
match has PLAYERS_PER_GAME players.`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			parsed, err := ParseServerArgs(args)
			if err != nil {
				fmt.Fprintln(out, err)
				return err
			}
			if err := runServer(cmd.Context(), out, cmd.ErrOrStderr(), parsed, flags); err != nil {
				fmt.Fprintf(out, "Server exception: %s\n", err)
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&flags.Storage, "storage", flags.Storage, "Player store: file, memory, redis (env: TYPERACE_STORAGE)")
	cmd.Flags().StringVar(&flags.RedisURL, "redis-url", flags.RedisURL, "Redis URL for --storage=redis (env: REDIS_URL)")
	cmd.Flags().StringVar(&flags.Hash, "hash", flags.Hash, "Password digest: sha256, sha3-256 (env: TYPERACE_HASH)")
	cmd.Flags().StringVar(&flags.Corpus, "corpus", flags.Corpus, "Sentence file, one per line (env: TYPERACE_CORPUS)")
	cmd.Flags().StringVar(&flags.HTTPAddr, "http-addr", flags.HTTPAddr, "Status API listen address, empty disables (env: TYPERACE_HTTP_ADDR)")
	cmd.Flags().StringVar(&flags.LogLevel, "log-level", flags.LogLevel, "Log level: debug, info, warn, error (env: TYPERACE_LOG_LEVEL)")

	return cmd
}

func runServer(ctx context.Context, stdout, stderr io.Writer, args ServerArgs, flags ServerFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}

	level, err := parseLogLevel(flags.LogLevel)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewJSONHandler(stderr, &slog.HandlerOptions{Level: level}))

	app, err := factory.New(ctx, flags.factoryConfig(args, logger))
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}
	defer func() { _ = app.Close() }()

	if err := app.Server.Listen(); err != nil {
		return err
	}

	var httpServer *api.Server
	if flags.HTTPAddr != "" {
		router := api.NewRouter(api.RouterConfig{
			Logger:         logger,
			Players:        app.AuthService,
			Queue:          app.Queue,
			Mode:           args.Mode,
			PlayersPerGame: args.PlayersPerGame,
			Events:         app.Events,
		})
		httpCfg := api.DefaultServerConfig()
		httpCfg.Addr = flags.HTTPAddr
		httpServer = api.NewServer(router, httpCfg, logger)
		if err := httpServer.Listen(); err != nil {
			return err
		}
	}

	printBanner(stdout, app.Server.Addr(), args, flags)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 1)
	if httpServer != nil {
		go func() {
			if err := httpServer.Start(); err != nil {
				errCh <- err
			}
		}()
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- app.Server.Serve(ctx)
	}()

	var runErr error
	select {
	case runErr = <-serveErr:
	case runErr = <-errCh:
		logger.Error("http server error", slog.String("error", runErr.Error()))
		cancel()
		<-serveErr
	}
	cancel()

	// ends open event streams so the HTTP shutdown does not wait on them
	app.Events.Close()
	if httpServer != nil {
		if err := httpServer.Shutdown(context.Background()); err != nil {
			logger.Error("shutdown error", slog.String("error", err.Error()))
		}
	}
	if err := app.AuthService.SaveAll(context.Background()); err != nil {
		logger.Error("failed to save rankings on shutdown", slog.String("error", err.Error()))
	}
	return runErr
}

func printBanner(w io.Writer, addr net.Addr, args ServerArgs, flags ServerFlags) {
	port := args.Port
	if tcp, ok := addr.(*net.TCPAddr); ok {
		port = tcp.Port
	}
	database := args.DatabaseFile
	if flags.Storage != "" && flags.Storage != factory.StorageTypeFile {
		database = flags.Storage
	}

	fmt.Fprintf(w, "Server is listening on port %d\n", port)
	fmt.Fprintf(w, "Database: %s\n", database)
	fmt.Fprintf(w, "Mode: %s\n", args.Mode)
	fmt.Fprintf(w, "Players per game: %d\n", args.PlayersPerGame)
}
