// Azursim is a protocol simulator for the Cambridge Audio Azur 551R.
//
// It listens on a TCP port and answers the receiver's control protocol,
// which makes it useful for developing and testing azurctl (and its
// HTTP bridge) without a receiver on the bench.
//
// Usage:
//
//	azursim [flags]
package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/openavr/azurctl/internal/config"
	"github.com/openavr/azurctl/internal/logging"
	"github.com/openavr/azurctl/internal/sim"
	"github.com/openavr/azurctl/internal/version"
)

var (
	host        string
	port        int
	attenuation int
	input       int
	swVersion   string
	logLevel    string
)

var rootCmd = &cobra.Command{
	Use:   "azursim",
	Short: "Azur 551R protocol simulator",
	Long: `A TCP simulator speaking the Azur 551R control protocol.

Starts powered off with a configurable initial volume and input, and
behaves like the real receiver: commands are echoed as attribute
reports, volume steps are ignored in standby, and malformed commands
draw protocol error replies.`,
	Example: `  # Listen on the default control port
  azursim

  # Custom port, louder initial volume, debug logging
  azursim --port 15000 --attenuation -20 --log-level debug`,
	Version: version.Version,
	RunE:    run,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.Flags().StringVar(&host, "host", "", "Listen host (empty = all interfaces)")
	rootCmd.Flags().IntVar(&port, "port", config.DefaultPort, "Listen port")
	rootCmd.Flags().IntVar(&attenuation, "attenuation", -40, "Initial attenuation in dB (-90..0)")
	rootCmd.Flags().IntVar(&input, "input", 1, "Initially selected input number")
	rootCmd.Flags().StringVar(&swVersion, "sw-version", "", "Reported software version string")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
}

func run(cmd *cobra.Command, args []string) error {
	if err := logging.Initialize(logLevel); err != nil {
		return err
	}
	defer logging.Sync()

	if attenuation < -90 || attenuation > 0 {
		return fmt.Errorf("attenuation must be in -90..0, got %d", attenuation)
	}

	s := sim.New(sim.Config{
		SwVersion:   swVersion,
		Attenuation: attenuation,
		InputNumber: input,
		Logger:      logging.GetLogger(),
	})

	addr, err := s.Listen(net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	defer s.Close()

	fmt.Printf("azursim %s listening on %s\n", version.Version, addr)

	// Block until interrupted
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	fmt.Println("shutting down")
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
