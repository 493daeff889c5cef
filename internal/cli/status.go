package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mcoot/typerace/internal/api/response"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Query a server's status API",
	}

	cmd.AddCommand(
		newStatusGetCmd("health", "Check server health", "/api/v1/health", func() any { return &response.Health{} }),
		newStatusGetCmd("queue", "Show the waiting queue", "/api/v1/queue", func() any { return &response.QueueStatus{} }),
		newStatusGetCmd("leaderboard", "Show players by ranking", "/api/v1/leaderboard", func() any { return &response.Leaderboard{} }),
		newPlayerCmd(),
		newWatchCmd(),
	)
	return cmd
}

func newStatusGetCmd(use, short, path string, newResult func() any) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result := newResult()
			if err := client.Get(path, result); err != nil {
				return err
			}
			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(deref(result))
			return nil
		},
	}
}

func newPlayerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "player <username>",
		Short: "Show one player's ranking",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.Player
			if err := client.Get(PlayerPath(args[0]), &result); err != nil {
				return err
			}
			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}
}

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stream team and match events until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			return client.Stream(cmd.Context(), "/api/v1/events", func(event, data string) {
				if cfg.Output == "json" {
					fmt.Fprintln(out, data)
					return
				}
				fmt.Fprintf(out, "%s %s\n", event, data)
			})
		},
	}
}

// deref turns the decode target back into a value for the text printer
func deref(v any) any {
	switch r := v.(type) {
	case *response.Health:
		return *r
	case *response.QueueStatus:
		return *r
	case *response.Leaderboard:
		return *r
	default:
		return v
	}
}
