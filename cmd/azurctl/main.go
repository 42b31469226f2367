// Azurctl is a control utility for Cambridge Audio Azur 551R receivers.
//
// It speaks the receiver's serial control protocol over TCP and provides
// one-shot commands (power, volume, mute, input), a live watch
// dashboard, and an HTTP/WebSocket bridge for other clients on the
// network.
//
// Usage:
//
//	azurctl [command] [flags]
//
// Running without arguments launches the watch dashboard.
// See 'azurctl --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/openavr/azurctl/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "azurctl",
	Short: "Cambridge Audio Azur 551R control utility",
	Long: `A control utility for Cambridge Audio Azur 551R A/V receivers.

Connects to the receiver's control port over TCP and provides one-shot
commands, a live watch dashboard, and an HTTP/WebSocket bridge.

If no command is specified, the watch dashboard will launch automatically.`,
	Version: version.Version,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default behavior: run the watch dashboard when no subcommand
		// provided
		return runWatch(cmd, args)
	},
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("azurctl %s (commit: %s)\n", version.Version, version.Commit)
	},
}
