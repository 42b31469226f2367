package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/openavr/azurctl/internal/avr"
	"github.com/openavr/azurctl/internal/config"
	"github.com/openavr/azurctl/internal/logging"
	"github.com/openavr/azurctl/internal/server"
	"github.com/openavr/azurctl/internal/transport"
	"github.com/openavr/azurctl/internal/tui"
)

// Command flags
var (
	receiverName string
	hostFlag     string
	portFlag     int
	logLevel     string
	outputFormat string

	listenHost string
	listenPort int
)

// settleDelay is how long one-shot commands wait for the receiver to
// echo back the requested change before reading the result.
const settleDelay = 1500 * time.Millisecond

func init() {
	rootCmd.PersistentFlags().StringVar(&receiverName, "receiver", "", "Named receiver from the registry (see 'azurctl remember')")
	rootCmd.PersistentFlags().StringVar(&hostFlag, "host", "", "Receiver host or IP (overrides the registry)")
	rootCmd.PersistentFlags().IntVar(&portFlag, "port", config.DefaultPort, "Receiver control port")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error; silent when unset)")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return logging.Initialize(logLevel)
	}

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(powerCmd)
	rootCmd.AddCommand(muteCmd)
	rootCmd.AddCommand(volumeCmd)
	rootCmd.AddCommand(inputCmd)
	rootCmd.AddCommand(inputsCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(rememberCmd)
	rootCmd.AddCommand(receiversCmd)
}

// resolveAddr determines the receiver address from flags and the
// registry, in that order of preference.
func resolveAddr() (string, error) {
	if hostFlag != "" {
		return net.JoinHostPort(hostFlag, strconv.Itoa(portFlag)), nil
	}

	reg, err := config.LoadRegistry()
	if err != nil {
		return "", fmt.Errorf("failed to load receiver registry: %w", err)
	}

	if receiverName != "" {
		rec := reg.Lookup(receiverName)
		if rec == nil {
			return "", fmt.Errorf("no receiver named %q in the registry (see 'azurctl receivers')", receiverName)
		}
		return rec.Addr(), nil
	}

	if rec := reg.Default(); rec != nil {
		return rec.Addr(), nil
	}

	return "", fmt.Errorf("no receiver configured: use --host, or save one with 'azurctl remember <name> --host <ip>'")
}

// withSession connects, runs fn against the protocol handler, and
// tears the connection down.
func withSession(fn func(h *avr.Handler) error) error {
	addr, err := resolveAddr()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sess, err := transport.Connect(ctx, addr, transport.SessionConfig{})
	if err != nil {
		return fmt.Errorf("failed to connect to receiver at %s: %w", addr, err)
	}
	defer sess.Close()

	return fn(sess.Handler)
}

// statusCmd displays the receiver state
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show receiver state",
	Long: `Connect to the receiver and display its last known state.

The protocol has no state query for most attributes; the receiver only
reports values when they change or when a command is echoed. Fields the
receiver has not reported yet show as unknown. Version strings are
queried explicitly.`,
	Example: `  # Status of the default receiver
  azurctl status

  # Status of a specific host, as JSON
  azurctl status --host 192.168.1.40 --format json`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&outputFormat, "format", "detailed", "Output format (detailed, json)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	return withSession(func(h *avr.Handler) error {
		h.RequestVersions()
		time.Sleep(settleDelay)

		state := h.Snapshot()
		if outputFormat == "json" {
			data, err := json.MarshalIndent(state, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal JSON: %w", err)
			}
			fmt.Println(string(data))
			return nil
		}

		fmt.Printf("Power:        %s\n", onOff(state.Power))
		fmt.Printf("Mute:         %s\n", onOff(state.Mute))
		fmt.Printf("Volume:       %d%% (%d dB)\n", state.Volume, state.Attenuation)
		fmt.Printf("Input:        %s (%d)\n", state.InputName, state.InputNumber)
		fmt.Printf("Audio Source: %s\n", state.AudioSource)
		fmt.Printf("Software:     %s\n", state.SoftwareVersion)
		fmt.Printf("Protocol:     %s\n", state.ProtocolVersion)
		return nil
	})
}

func onOff(b bool) string {
	if b {
		return "On"
	}
	return "Off"
}

// powerCmd switches the receiver on or off
var powerCmd = &cobra.Command{
	Use:   "power <on|off>",
	Short: "Switch the receiver on or off",
	Example: `  azurctl power on
  azurctl power off --host 192.168.1.40`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		on, err := parseOnOff(args[0])
		if err != nil {
			return err
		}
		return withSession(func(h *avr.Handler) error {
			h.RequestPower(on)
			time.Sleep(settleDelay)
			fmt.Printf("Power: %s\n", onOff(h.Power()))
			return nil
		})
	},
}

// muteCmd mutes or unmutes the receiver
var muteCmd = &cobra.Command{
	Use:   "mute <on|off>",
	Short: "Mute or unmute the receiver",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		on, err := parseOnOff(args[0])
		if err != nil {
			return err
		}
		return withSession(func(h *avr.Handler) error {
			h.RequestMute(on)
			time.Sleep(settleDelay)
			fmt.Printf("Mute: %s\n", onOff(h.Mute()))
			return nil
		})
	},
}

func parseOnOff(s string) (bool, error) {
	switch s {
	case "on":
		return true, nil
	case "off":
		return false, nil
	default:
		return false, fmt.Errorf("expected 'on' or 'off', got %q", s)
	}
}

// volumeCmd sets the volume
var volumeCmd = &cobra.Command{
	Use:   "volume <0-100>",
	Short: "Set the volume level",
	Long: `Set the volume on a 0-100 scale.

The receiver only supports relative volume steps, so the level is
reached by stepping toward the target and watching the echoed level.
The command waits until the target is reached or the attempt times out.`,
	Example: `  azurctl volume 40`,
	Args:    cobra.ExactArgs(1),
	RunE:    runVolume,
}

func runVolume(cmd *cobra.Command, args []string) error {
	target, err := strconv.Atoi(args[0])
	if err != nil || target < 0 || target > 100 {
		return fmt.Errorf("volume must be a number from 0 to 100, got %q", args[0])
	}

	return withSession(func(h *avr.Handler) error {
		// The receiver must be powered on to accept volume steps, and
		// the current level is only known after its power-on report.
		// Wait briefly for the power-on probe to seed it.
		time.Sleep(settleDelay)

		h.RequestVolume(target)

		wantDb := avr.VolumeToAttenuation(target)
		deadline := time.Now().Add(30 * time.Second)
		for time.Now().Before(deadline) {
			if h.Attenuation() == wantDb {
				fmt.Printf("Volume: %d%% (%d dB)\n", h.Volume(), h.Attenuation())
				return nil
			}
			time.Sleep(100 * time.Millisecond)
		}
		return fmt.Errorf("receiver did not reach volume %d%% (last reported %d%%); is it powered on?", target, h.Volume())
	})
}

// inputCmd selects an input
var inputCmd = &cobra.Command{
	Use:   "input <name-or-number>",
	Short: "Select an input",
	Example: `  azurctl input Tuner
  azurctl input 6`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		// Multi-word names like "Video 1" may arrive as several args.
		name := args[0]
		for _, a := range args[1:] {
			name += " " + a
		}

		number := 0
		if n, err := strconv.Atoi(name); err == nil {
			number = n
		} else {
			number = avr.InputNumber(name)
			if number == 0 {
				return fmt.Errorf("unknown input %q (see 'azurctl inputs')", name)
			}
		}
		if number < 1 || number > 99 {
			return fmt.Errorf("input number %d out of range 1-99", number)
		}

		return withSession(func(h *avr.Handler) error {
			h.RequestInputNumber(number)
			time.Sleep(settleDelay)
			fmt.Printf("Input: %s (%d)\n", h.InputName(), h.InputNumber())
			return nil
		})
	},
}

// inputsCmd lists the selectable inputs
var inputsCmd = &cobra.Command{
	Use:   "inputs",
	Short: "List the receiver's inputs",
	Run: func(cmd *cobra.Command, args []string) {
		for i, name := range avr.InputList() {
			fmt.Printf("%d. %s\n", i+1, name)
		}
	},
}

// watchCmd launches the live dashboard
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Launch the live watch dashboard",
	Long: `Launch an interactive dashboard showing the receiver state live.

The dashboard updates as the receiver reports changes (including changes
made with the remote control) and offers single-key controls:
power, mute, volume and input selection.`,
	Example: `  # Watch the default receiver
  azurctl watch
  # Or simply (watch is the default):
  azurctl

  # Watch a specific host
  azurctl watch --host 192.168.1.40`,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	addr, err := resolveAddr()
	if err != nil {
		return err
	}
	if err := tui.Run(addr); err != nil {
		return fmt.Errorf("dashboard error: %w", err)
	}
	return nil
}

// serveCmd starts the HTTP/WebSocket bridge
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP/WebSocket bridge",
	Long: `Start an HTTP server that bridges the receiver to network clients.

The bridge maintains the receiver connection (reconnecting with backoff
when it drops) and exposes a JSON API plus a WebSocket state stream.`,
	Example: `  # Serve the default receiver on port 8080
  azurctl serve

  # Custom listen address and verbose logging
  azurctl serve --listen-port 9090 --log-level debug`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&listenHost, "listen-host", "", "Listen host (empty = all interfaces)")
	serveCmd.Flags().IntVar(&listenPort, "listen-port", 8080, "Listen port")
}

func runServe(cmd *cobra.Command, args []string) error {
	addr, err := resolveAddr()
	if err != nil {
		return err
	}

	srv, err := server.New(&server.Config{
		Host:         listenHost,
		Port:         listenPort,
		ReceiverAddr: addr,
		LogLevel:     logLevel,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	return srv.Start()
}

// rememberCmd saves a receiver in the registry
var rememberCmd = &cobra.Command{
	Use:   "remember <name>",
	Short: "Save a receiver in the registry",
	Long: `Save a receiver under a name so later commands can use --receiver,
or omit it entirely when only one receiver is registered.`,
	Example: `  azurctl remember living-room --host 192.168.1.40
  azurctl status --receiver living-room`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if hostFlag == "" {
			return fmt.Errorf("--host is required when remembering a receiver")
		}

		reg, err := config.LoadRegistry()
		if err != nil {
			return fmt.Errorf("failed to load receiver registry: %w", err)
		}
		rec := reg.Remember(args[0], hostFlag, portFlag)
		if err := reg.Save(); err != nil {
			return fmt.Errorf("failed to save registry: %w", err)
		}

		fmt.Printf("Saved %q -> %s\n", args[0], rec.Addr())
		return nil
	},
}

// receiversCmd lists saved receivers
var receiversCmd = &cobra.Command{
	Use:   "receivers",
	Short: "List saved receivers",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := config.LoadRegistry()
		if err != nil {
			return fmt.Errorf("failed to load receiver registry: %w", err)
		}

		if len(reg.Receivers) == 0 {
			fmt.Println("No receivers saved. Add one with 'azurctl remember <name> --host <ip>'.")
			return nil
		}

		names := make([]string, 0, len(reg.Receivers))
		for name := range reg.Receivers {
			names = append(names, name)
		}
		sort.Strings(names)

		def := reg.Default()
		for _, name := range names {
			rec := reg.Receivers[name]
			marker := " "
			if rec == def {
				marker = "*"
			}
			fmt.Printf("%s %-20s %s\n", marker, name, rec.Addr())
		}
		return nil
	},
}
