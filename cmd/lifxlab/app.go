package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/netip"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/lifxlab/internal/control"
	"github.com/muurk/lifxlab/internal/discovery"
	"github.com/muurk/lifxlab/internal/dispatch"
	"github.com/muurk/lifxlab/internal/events"
	"github.com/muurk/lifxlab/internal/logging"
	"github.com/muurk/lifxlab/internal/protocol"
	"github.com/muurk/lifxlab/internal/registry"
	"github.com/muurk/lifxlab/internal/ui"
)

// stack is the controller wired from the loaded configuration
type stack struct {
	registry *registry.Registry
	hub      *events.Hub
	ctrl     *control.Controller
}

// newStack builds the registry, discovery coordinator and dispatcher. Every
// discovered device is also recorded in cfg so it can be saved afterwards.
func newStack(extra ...events.Sink) *stack {
	reg := registry.New()
	hub := events.NewHub()

	recorder := events.SinkFunc(func(name string, payload any) {
		if name != events.DeviceDiscovered {
			return
		}
		if d, ok := payload.(discovery.DiscoveredDevice); ok {
			cfg.RecordSeen(d.Identity, d.AddrPort(), time.Now())
		}
	})
	sink := events.Multi(append([]events.Sink{hub, recorder}, extra...)...)

	netCfg := cfg.Transport()
	coord := discovery.New(reg, netCfg,
		discovery.WithTimeout(cfg.Discovery.Timeout),
		discovery.WithSource(cfg.Commands.Source),
		discovery.WithSink(sink),
	)
	disp := dispatch.New(netCfg,
		dispatch.WithSource(cfg.Commands.Source),
		dispatch.WithAckTimeout(cfg.Commands.AckTimeout),
		dispatch.WithRequireDevices(cfg.Commands.RequireDevices),
	)
	ctrl := control.New(reg, coord, disp, control.Options{
		Kelvin:           cfg.Commands.Kelvin,
		PowerOnDuration:  cfg.Commands.PowerOnDuration,
		PowerOffDuration: cfg.Commands.PowerOffDuration,
		ColorDuration:    cfg.Commands.ColorDuration,
	})

	return &stack{registry: reg, hub: hub, ctrl: ctrl}
}

// discover runs one discovery cycle. On an interactive terminal the devices
// are shown live as they reply; JSON and piped output stay plain.
func (s *stack) discover(ctx context.Context) (*discovery.Result, error) {
	if jsonOutput || !ui.IsTerminal() {
		return s.ctrl.DiscoverLights(ctx)
	}

	stream, unsubscribe := s.hub.Subscribe(64)
	defer unsubscribe()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	return ui.RunDiscoveryProgress(ui.DiscoveryProgress{
		Events: stream,
		Run: func() (*discovery.Result, error) {
			return s.ctrl.DiscoverLights(ctx)
		},
		Cancel:  cancel,
		Timeout: cfg.Discovery.Timeout,
		Names:   cfg.Nickname,
	})
}

// seedFromConfig loads devices remembered in the config file into the
// registry. Returns the number of devices added.
func (s *stack) seedFromConfig() int {
	n := 0
	for key, meta := range cfg.Devices {
		if meta == nil || meta.LastAddr == "" {
			continue
		}
		id, err := protocol.ParseTarget(key)
		if err != nil {
			logging.Warn("Ignoring device with invalid identity in config", zap.String("key", key))
			continue
		}
		addr, err := netip.ParseAddrPort(meta.LastAddr)
		if err != nil {
			logging.Warn("Ignoring device with invalid address in config",
				zap.String("target", key),
				zap.String("addr", meta.LastAddr),
			)
			continue
		}
		if s.registry.Upsert(id, addr) {
			n++
		}
	}
	return n
}

// saveConfig persists devices seen during this run. Failures are reported
// but never fail the command that already ran.
func saveConfig() {
	if err := cfg.Save(configPath); err != nil {
		logging.Warn("Failed to save config", zap.Error(err))
		fmt.Fprintf(os.Stderr, "Warning: could not save known devices: %v\n", err)
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
