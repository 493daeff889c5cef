package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	cfg    *Config
	client *Client
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cfg = DefaultConfig()

	rootCmd := &cobra.Command{
		Use:   "typerace",
		Short: "Multiplayer typing race server and client",
		Long: `typerace runs and plays a multiplayer typing race.

Players connect over TCP, log in or register, wait in a matchmaking queue
and race to retype a sentence. The status commands read a running server's
HTTP status API.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			client = NewClient(cfg.StatusURL)
			return nil
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfg.StatusURL, "url", cfg.StatusURL, "Status API URL (env: TYPERACE_STATUS_URL)")
	rootCmd.PersistentFlags().StringVarP(&cfg.Output, "output", "o", cfg.Output, "Output format: text, json")

	rootCmd.AddCommand(NewServerCmd("serve"))
	rootCmd.AddCommand(NewClientCmd("play"))
	rootCmd.AddCommand(newStatusCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// ExecuteServer runs the server command as a standalone program
func ExecuteServer() {
	if err := NewServerCmd("typerace-server").Execute(); err != nil {
		os.Exit(1)
	}
}

// ExecuteClient runs the client command as a standalone program
func ExecuteClient() {
	if err := NewClientCmd("typerace-client").Execute(); err != nil {
		os.Exit(1)
	}
}
