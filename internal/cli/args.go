package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mcoot/typerace/internal/model"
	"github.com/mcoot/typerace/internal/server"
)

const (
	serverUsage = "Usage: typerace-server <PORT (0-65535)> <DATABASE FILE: (*.csv)> <MATCHMAKING MODE (0/1)> <PLAYERS PER GAME (>0)>"
	clientUsage = "Usage: typerace-client <HOSTNAME> <PORT (0-65535)>"
)

// ArgsError is a rejected command line. Its message is meant for the user
// as is.
type ArgsError struct {
	msg string
}

func (e *ArgsError) Error() string {
	return e.msg
}

func argsErrorf(format string, a ...any) error {
	return &ArgsError{msg: fmt.Sprintf(format, a...)}
}

// ServerArgs are the server's positional arguments
type ServerArgs struct {
	Port           int
	DatabaseFile   string
	Mode           model.MatchMode
	PlayersPerGame int
}

func (a ServerArgs) serverConfig() server.Config {
	cfg := server.DefaultConfig()
	cfg.Addr = fmt.Sprintf(":%d", a.Port)
	cfg.Mode = a.Mode
	cfg.PlayersPerGame = a.PlayersPerGame
	return cfg
}

// ParseServerArgs validates PORT DATABASE_FILE MODE PLAYERS_PER_GAME
func ParseServerArgs(args []string) (ServerArgs, error) {
	if len(args) != 4 {
		return ServerArgs{}, argsErrorf("%s", serverUsage)
	}

	port, err := parsePort(args[0])
	if err != nil {
		return ServerArgs{}, err
	}

	databaseFile := args[1]
	if !strings.HasSuffix(databaseFile, ".csv") {
		return ServerArgs{}, argsErrorf("Invalid database file: %s. The database file must end with .csv.", databaseFile)
	}

	mode, err := strconv.Atoi(args[2])
	if err != nil || (model.MatchMode(mode) != model.MatchModeSimple && model.MatchMode(mode) != model.MatchModeRank) {
		return ServerArgs{}, argsErrorf("Invalid matchmaking mode: %s. The matchmaking mode must be either 0 or 1.", args[2])
	}

	playersPerGame, err := strconv.Atoi(args[3])
	if err != nil || playersPerGame < 1 {
		return ServerArgs{}, argsErrorf("Invalid number of players per game: %s. The number of players per game must be greater than 0.", args[3])
	}

	return ServerArgs{
		Port:           port,
		DatabaseFile:   databaseFile,
		Mode:           model.MatchMode(mode),
		PlayersPerGame: playersPerGame,
	}, nil
}

// ParseClientArgs validates HOSTNAME PORT
func ParseClientArgs(args []string) (host string, port int, err error) {
	if len(args) != 2 {
		return "", 0, argsErrorf("%s", clientUsage)
	}
	port, err = parsePort(args[1])
	if err != nil {
		return "", 0, err
	}
	return args[0], port, nil
}

func parsePort(s string) (int, error) {
	port, err := strconv.Atoi(s)
	if err != nil || port < 0 || port > 65535 {
		return 0, argsErrorf("Invalid port number: %s. The port number must be between 0 and 65535.", s)
	}
	return port, nil
}
