package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/lifxlab/internal/control"
	"github.com/muurk/lifxlab/internal/dispatch"
	"github.com/muurk/lifxlab/internal/protocol"
	"github.com/muurk/lifxlab/internal/ui"
)

// Command flags
var (
	discoverTimeout time.Duration
	broadcastAddr   string
	useCached       bool
	ackTimeout      time.Duration
	transition      time.Duration
	kelvin          uint16
)

func init() {
	rootCmd.PersistentFlags().DurationVar(&discoverTimeout, "timeout", 0, "Discovery listening window (default from config)")
	rootCmd.PersistentFlags().StringVar(&broadcastAddr, "broadcast", "", "Discovery broadcast address, e.g. 192.168.1.255:56700")

	for _, c := range []*cobra.Command{onCmd, offCmd, colorCmd} {
		c.Flags().BoolVar(&useCached, "cached", false, "Use devices remembered in the config file instead of discovering")
		c.Flags().DurationVar(&ackTimeout, "ack-timeout", 0, "Wait this long for acknowledgements (default from config)")
		c.Flags().DurationVar(&transition, "duration", -1, "Transition duration (default from config)")
	}
	colorCmd.Flags().Uint16Var(&kelvin, "kelvin", 0, "Color temperature (default from config)")

	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(onCmd)
	rootCmd.AddCommand(offCmd)
	rootCmd.AddCommand(colorCmd)
}

// applyOverrides copies command-line flags over the loaded config
func applyOverrides(cmd *cobra.Command) {
	if discoverTimeout > 0 {
		cfg.Discovery.Timeout = discoverTimeout
	}
	if broadcastAddr != "" {
		cfg.Network.BroadcastAddress = broadcastAddr
	}
	if ackTimeout > 0 {
		cfg.Commands.AckTimeout = ackTimeout
	}
	if kelvin > 0 {
		cfg.Commands.Kelvin = kelvin
	}
	if cmd.Flags().Changed("duration") && transition >= 0 {
		cfg.Commands.PowerOnDuration = transition
		cfg.Commands.PowerOffDuration = transition
		cfg.Commands.ColorDuration = transition
	}
}

// discoverCmd runs one discovery cycle
var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find LIFX lights on the network",
	Long: `Broadcast a discovery request and list every light that replies.

Lights that reply are remembered in the config file, so later commands can
use --cached to skip discovery.`,
	Example: `  # Discover with the configured timeout
  lifxlab discover

  # Wait longer on a busy network
  lifxlab discover --timeout 5s

  # Broadcast on one subnet only
  lifxlab discover --broadcast 192.168.1.255:56700`,
	Args: cobra.NoArgs,
	RunE: runDiscover,
}

func runDiscover(cmd *cobra.Command, args []string) error {
	applyOverrides(cmd)
	s := newStack()

	if !jsonOutput {
		fmt.Println(ui.NewHeader("Discovery", "lifxlab discover",
			ui.Param{Key: "Broadcast", Value: cfg.Network.BroadcastAddress},
			ui.Param{Key: "Timeout", Value: cfg.Discovery.Timeout.String()},
		).Render())
		fmt.Println()
	}

	res, err := s.discover(cmd.Context())
	if res != nil && len(res.Devices) > 0 {
		saveConfig()
	}
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(cmd, control.NewDiscoveryView(res))
	}
	fmt.Println(ui.RenderDiscovery(res, cfg.Nickname))
	return nil
}

// devicesCmd lists devices remembered in the config file
var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List remembered devices",
	Long: `List the devices recorded by previous discovery runs, with their
nicknames and last known addresses. No network traffic is sent.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s := newStack()
		s.seedFromConfig()

		if jsonOutput {
			res := s.ctrl.Invoke(cmd.Context(), control.CmdListDevices, nil)
			return printJSON(cmd, res.Data)
		}

		// Show when each device last replied, not when it was loaded
		devices := s.ctrl.Devices()
		for i := range devices {
			if meta, ok := cfg.Devices[devices[i].Identity.String()]; ok {
				devices[i].LastSeen = meta.LastSeen
			}
		}
		fmt.Println(ui.RenderDevices(devices, cfg.Nickname, time.Now()))
		return nil
	},
}

var onCmd = &cobra.Command{
	Use:   "on",
	Short: "Turn every light on",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDispatch(cmd, "lifxlab on", func(s *stack) (*dispatch.Report, error) {
			return s.ctrl.LightsOn(cmd.Context())
		})
	},
}

var offCmd = &cobra.Command{
	Use:   "off",
	Short: "Turn every light off",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDispatch(cmd, "lifxlab off", func(s *stack) (*dispatch.Report, error) {
			return s.ctrl.LightsOff(cmd.Context())
		})
	},
}

var colorCmd = &cobra.Command{
	Use:   "color <hue> <saturation> <brightness>",
	Short: "Set every light to a color",
	Long: `Set every light to the given hue, saturation and brightness.

All three values are raw protocol units from 0 to 65535. Hue wraps around
the color wheel, so 0 and 65535 are both red.`,
	Example: `  # Full-brightness green
  lifxlab color 21845 65535 65535

  # Warm white at half brightness
  lifxlab color 0 0 32768 --kelvin 2700`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		values := make([]uint16, len(args))
		names := []string{"hue", "saturation", "brightness"}
		for i, arg := range args {
			v, err := strconv.ParseUint(arg, 10, 16)
			if err != nil {
				return fmt.Errorf("invalid %s %q: must be 0-65535", names[i], arg)
			}
			values[i] = uint16(v)
		}

		return runDispatch(cmd, "lifxlab color", func(s *stack) (*dispatch.Report, error) {
			return s.ctrl.SetColor(cmd.Context(), values[0], values[1], values[2])
		})
	},
}

// runDispatch finds devices (or loads them from the config), runs send and
// renders the report
func runDispatch(cmd *cobra.Command, name string, send func(*stack) (*dispatch.Report, error)) error {
	applyOverrides(cmd)
	s := newStack()

	if useCached {
		s.seedFromConfig()
	} else {
		res, err := s.discover(cmd.Context())
		if err != nil {
			return err
		}
		if len(res.Devices) > 0 {
			saveConfig()
		}
	}

	if !jsonOutput {
		fmt.Println(ui.NewHeader("Command", name,
			ui.Param{Key: "Devices", Value: strconv.Itoa(s.registry.Len())},
			ui.Param{Key: "Source", Value: fmt.Sprintf("0x%08x", cfg.Commands.Source)},
		).Render())
		fmt.Println()
	}

	report, err := send(s)
	if report != nil {
		if jsonOutput {
			if jerr := printJSON(cmd, control.NewDispatchView(report)); jerr != nil {
				return jerr
			}
		} else {
			fmt.Println(ui.RenderReport(report, cfg.Nickname))
		}
	}
	return err
}

// parseTargetArg accepts a device identity in hex, with or without 0x
func parseTargetArg(arg string) (protocol.Target, error) {
	id, err := protocol.ParseTarget(arg)
	if err != nil {
		return 0, fmt.Errorf("invalid device identity %q: %w", arg, err)
	}
	return id, nil
}
