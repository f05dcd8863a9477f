package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reqforge",
		Short: "Collaborative BRD refinement server",
		Long: `ReqForge drafts and refines Business Requirements Documents with a
language model. Project members chat over a WebSocket; every accepted
change is written to the project's document and broadcast to the room.

Configuration is read from the environment (and a .env file when present).`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), serveOptions{migrate: true})
		},
	}

	cmd.AddCommand(serveCmd(), migrateCmd())
	return cmd
}
