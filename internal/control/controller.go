// Package control is the command surface shared by the CLI and the HTTP
// bridge. Every entry point goes through one Controller so discovery and
// dispatch behave the same no matter who asked.
package control

import (
	"context"
	"fmt"
	"time"

	"github.com/muurk/lifxlab/internal/discovery"
	"github.com/muurk/lifxlab/internal/dispatch"
	"github.com/muurk/lifxlab/internal/protocol"
	"github.com/muurk/lifxlab/internal/registry"
)

// Options are the per-command defaults
type Options struct {
	Kelvin           uint16
	PowerOnDuration  time.Duration
	PowerOffDuration time.Duration
	ColorDuration    time.Duration
}

// DefaultOptions returns the transitions used when nothing is configured
func DefaultOptions() Options {
	return Options{
		Kelvin:           3500,
		PowerOffDuration: time.Millisecond,
	}
}

// Controller runs discovery and dispatch against one registry
type Controller struct {
	registry    *registry.Registry
	coordinator *discovery.Coordinator
	dispatcher  *dispatch.Dispatcher
	opts        Options
}

// New creates a controller
func New(reg *registry.Registry, coord *discovery.Coordinator, disp *dispatch.Dispatcher, opts Options) *Controller {
	return &Controller{
		registry:    reg,
		coordinator: coord,
		dispatcher:  disp,
		opts:        opts,
	}
}

// Registry returns the device registry
func (c *Controller) Registry() *registry.Registry {
	return c.registry
}

// Coordinator returns the discovery coordinator
func (c *Controller) Coordinator() *discovery.Coordinator {
	return c.coordinator
}

// DiscoverLights runs one discovery cycle
func (c *Controller) DiscoverLights(ctx context.Context) (*discovery.Result, error) {
	result, err := c.coordinator.Discover(ctx)
	if err != nil {
		return result, fmt.Errorf("discover_lights: %w", err)
	}
	return result, nil
}

// LightsOn powers every known device on
func (c *Controller) LightsOn(ctx context.Context) (*dispatch.Report, error) {
	return c.dispatch(ctx, "lights_on", dispatch.PowerOn(c.opts.PowerOnDuration))
}

// LightsOff powers every known device off
func (c *Controller) LightsOff(ctx context.Context) (*dispatch.Report, error) {
	return c.dispatch(ctx, "lights_off", dispatch.PowerOff(c.opts.PowerOffDuration))
}

// SetColor sets every known device to the given hue, saturation and
// brightness at the configured kelvin
func (c *Controller) SetColor(ctx context.Context, hue, saturation, brightness uint16) (*dispatch.Report, error) {
	return c.SetColorKelvin(ctx, protocol.HSBK{
		Hue:        hue,
		Saturation: saturation,
		Brightness: brightness,
		Kelvin:     c.opts.Kelvin,
	})
}

// SetColorKelvin sets every known device to color
func (c *Controller) SetColorKelvin(ctx context.Context, color protocol.HSBK) (*dispatch.Report, error) {
	return c.dispatch(ctx, "set_color", dispatch.SetColor(color, c.opts.ColorDuration))
}

// Devices returns the registry snapshot
func (c *Controller) Devices() []registry.Device {
	return c.registry.Snapshot()
}

func (c *Controller) dispatch(ctx context.Context, op string, cmd dispatch.Command) (*dispatch.Report, error) {
	report, err := c.dispatcher.Dispatch(ctx, cmd, c.registry.Snapshot())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if report.AllFailed() {
		return report, fmt.Errorf("%s: all %d devices failed: %w", op, len(report.Outcomes), report.Err())
	}
	return report, nil
}
