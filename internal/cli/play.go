package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/mcoot/typerace/internal/protocol"
)

const dialTimeout = 10 * time.Second

// NewClientCmd creates the interactive terminal client command
func NewClientCmd(use string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <HOSTNAME> <PORT>",
		Short: "Connect to a typing race server",
		Long: `Connects to a typing race server and relays the terminal.

Every line typed is sent as one message; every message from the server
is printed. The client exits when the server closes the connection.`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			host, port, err := ParseClientArgs(args)
			if err != nil {
				fmt.Fprintln(out, err)
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
			defer cancel()

			conn, err := protocol.Dial(dialCtx, net.JoinHostPort(host, strconv.Itoa(port)), protocol.DefaultConfig())
			if err != nil {
				fmt.Fprintf(out, "Client exception: %s.\n", err)
				return err
			}
			defer func() { _ = conn.Close() }()

			return RunClient(conn, cmd.InOrStdin(), out)
		},
	}
}

// RunClient relays lines from in to t as frames and prints every frame
// received until the server hangs up. End of input stops the relay only.
func RunClient(t protocol.Transport, in io.Reader, out io.Writer) error {
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			if err := t.SendFrame(protocol.Frame(scanner.Text())); err != nil {
				return
			}
		}
	}()

	for {
		payload, err := t.ReceiveFrame()
		if err != nil {
			if errors.Is(err, protocol.ErrPeerDisconnected) || errors.Is(err, protocol.ErrClosed) {
				return nil
			}
			return err
		}
		fmt.Fprintln(out, payload)
	}
}
