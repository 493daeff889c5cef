package cli

import (
	"bytes"
	"context"
	"net"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/typerace/internal/factory"
	"github.com/mcoot/typerace/internal/model"
	"github.com/mcoot/typerace/internal/protocol"
)

// syncBuffer is a bytes.Buffer safe for one writer and a polling reader
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

var listeningRe = regexp.MustCompile(`Server is listening on port (\d+)`)

func TestRunServerServesUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbPath := filepath.Join(t.TempDir(), "players.csv")
	args := ServerArgs{Port: 0, DatabaseFile: dbPath, Mode: model.MatchModeSimple, PlayersPerGame: 2}
	flags := DefaultServerFlags()
	flags.Storage = factory.StorageTypeFile
	flags.HTTPAddr = "127.0.0.1:0"
	flags.LogLevel = "debug"

	var stdout, stderr syncBuffer
	done := make(chan error, 1)
	go func() { done <- runServer(ctx, &stdout, &stderr, args, flags) }()

	var port string
	require.Eventually(t, func() bool {
		m := listeningRe.FindStringSubmatch(stdout.String())
		if m == nil {
			return false
		}
		port = m[1]
		return true
	}, 5*time.Second, 10*time.Millisecond)

	banner := stdout.String()
	assert.Contains(t, banner, "Database: "+dbPath)
	assert.Contains(t, banner, "Mode: simple")
	assert.Contains(t, banner, "Players per game: 2")

	dialCtx, dialCancel := context.WithTimeout(ctx, 5*time.Second)
	defer dialCancel()
	conn, err := protocol.Dial(dialCtx, net.JoinHostPort("127.0.0.1", port), protocol.DefaultConfig())
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	menu, err := conn.ReceiveFrame()
	require.NoError(t, err)
	assert.Contains(t, menu, "Welcome to the TypeRacer Game!")
	assert.True(t, strings.HasSuffix(menu, "REC: Reconnect"))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
	assert.Contains(t, stderr.String(), `"component":"server"`)
}

func TestRunServerBadStorage(t *testing.T) {
	flags := DefaultServerFlags()
	flags.Storage = "sqlite"
	args := ServerArgs{Port: 0, DatabaseFile: "x.csv", PlayersPerGame: 1}

	var stdout, stderr syncBuffer
	err := runServer(context.Background(), &stdout, &stderr, args, flags)
	assert.Error(t, err)
	assert.Empty(t, stdout.String())
}

func TestServerCmdPrintsArgumentErrorsToStdout(t *testing.T) {
	var out, errOut bytes.Buffer
	cmd := NewServerCmd("typerace-server")
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs([]string{"4000", "players.txt", "0", "2"})

	require.Error(t, cmd.Execute())
	assert.Equal(t, "Invalid database file: players.txt. The database file must end with .csv.\n", out.String())
	assert.Empty(t, errOut.String())
}

func TestPrintBannerStorageName(t *testing.T) {
	var out bytes.Buffer
	addr := &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 4567}
	printBanner(&out, addr, ServerArgs{Port: 0, DatabaseFile: "p.csv", Mode: model.MatchModeRank, PlayersPerGame: 4}, ServerFlags{Storage: factory.StorageTypeRedis})

	assert.Equal(t, "Server is listening on port 4567\nDatabase: redis\nMode: rank\nPlayers per game: 4\n", out.String())
}

func TestServerFlagsFromEnvironment(t *testing.T) {
	t.Setenv("TYPERACE_HTTP_ADDR", "")
	assert.Empty(t, DefaultServerFlags().HTTPAddr)

	t.Setenv("TYPERACE_STORAGE", "memory")
	t.Setenv("TYPERACE_HASH", "sha3-256")
	flags := DefaultServerFlags()
	assert.Equal(t, "memory", flags.Storage)
	assert.Equal(t, "sha3-256", flags.Hash)
}
