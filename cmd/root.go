// Package cmd wires the dialer binary's subcommands: serve runs the
// routing core, migrate/reconcile manage the local reconciliation ledger.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags "-X .../cmd.Version=v1.0.0".
var Version = "dev"

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "dialer",
	Short: "dialer — round-robin call-center routing core",
	Long:  "dialer answers inbound calls over an ARI-style media-server control connection and routes them to logged-in agents, round-robin, backed by a shared Redis queue/agent store.",
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(reconcileCmd())
	rootCmd.AddCommand(versionCmd())
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dialer %s\n", Version)
		},
	}
}

// Execute runs the root cobra command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
