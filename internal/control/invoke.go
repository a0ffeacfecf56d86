package control

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/netip"

	"github.com/muurk/lifxlab/internal/discovery"
	"github.com/muurk/lifxlab/internal/dispatch"
	"github.com/muurk/lifxlab/internal/protocol"
)

// Command names accepted by Invoke
const (
	CmdDiscoverLights = "discover_lights"
	CmdLightsOn       = "lights_on"
	CmdLightsOff      = "lights_off"
	CmdSetColor       = "set_color"
	CmdListDevices    = "list_devices"
)

var aliases = map[string]string{
	"lights_set_color": CmdSetColor,
}

// Commands lists every command Invoke accepts, aliases excluded
func Commands() []string {
	return []string{CmdDiscoverLights, CmdLightsOn, CmdLightsOff, CmdSetColor, CmdListDevices}
}

// IsCommand reports whether Invoke accepts name, aliases included
func IsCommand(name string) bool {
	if _, ok := aliases[name]; ok {
		return true
	}
	for _, c := range Commands() {
		if c == name {
			return true
		}
	}
	return false
}

// Result is what an external shell gets back from Invoke
type Result struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	Data  any    `json:"data,omitempty"`
}

// ColorArgs are the arguments of set_color
type ColorArgs struct {
	Hue        *uint16 `json:"hue"`
	Saturation *uint16 `json:"saturation"`
	Brightness *uint16 `json:"brightness"`
	Kelvin     *uint16 `json:"kelvin,omitempty"`
}

// DeviceView is a device as reported to a shell
type DeviceView struct {
	Identity protocol.Target `json:"identity"`
	MAC      string          `json:"mac"`
	Addr     netip.AddrPort  `json:"addr"`
}

// OutcomeView is one device's dispatch result as reported to a shell
type OutcomeView struct {
	Identity protocol.Target `json:"identity"`
	Addr     netip.AddrPort  `json:"addr"`
	Acked    bool            `json:"acked"`
	Error    string          `json:"error,omitempty"`
}

// DispatchView summarizes a dispatch report
type DispatchView struct {
	Command   string        `json:"command"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Outcomes  []OutcomeView `json:"outcomes"`
}

// DiscoveryView summarizes a discovery cycle
type DiscoveryView struct {
	Devices  []discovery.DiscoveredDevice `json:"devices"`
	Skipped  int                          `json:"skipped"`
	Duration string                       `json:"duration"`
}

// Invoke runs a named command. args is the command's JSON arguments and may
// be empty for commands that take none. Failures are reported in the
// Result, never as a panic.
func (c *Controller) Invoke(ctx context.Context, command string, args json.RawMessage) Result {
	if canonical, ok := aliases[command]; ok {
		command = canonical
	}

	switch command {
	case CmdDiscoverLights:
		res, err := c.DiscoverLights(ctx)
		if err != nil {
			return failure(err)
		}
		return Result{OK: true, Data: NewDiscoveryView(res)}

	case CmdLightsOn:
		return dispatchResult(c.LightsOn(ctx))

	case CmdLightsOff:
		return dispatchResult(c.LightsOff(ctx))

	case CmdSetColor:
		color, err := c.parseColor(args)
		if err != nil {
			return failure(fmt.Errorf("%s: %w", CmdSetColor, err))
		}
		return dispatchResult(c.SetColorKelvin(ctx, color))

	case CmdListDevices:
		devices := c.Devices()
		views := make([]DeviceView, 0, len(devices))
		for _, d := range devices {
			views = append(views, DeviceView{Identity: d.Identity, MAC: d.Identity.MAC().String(), Addr: d.Addr})
		}
		return Result{OK: true, Data: views}

	default:
		return Result{Error: fmt.Sprintf("unknown command %q", command)}
	}
}

func (c *Controller) parseColor(args json.RawMessage) (protocol.HSBK, error) {
	if len(bytes.TrimSpace(args)) == 0 {
		return protocol.HSBK{}, fmt.Errorf("missing arguments: hue, saturation, brightness")
	}

	var a ColorArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return protocol.HSBK{}, fmt.Errorf("invalid arguments: %w", err)
	}

	switch {
	case a.Hue == nil:
		return protocol.HSBK{}, fmt.Errorf("missing argument: hue")
	case a.Saturation == nil:
		return protocol.HSBK{}, fmt.Errorf("missing argument: saturation")
	case a.Brightness == nil:
		return protocol.HSBK{}, fmt.Errorf("missing argument: brightness")
	}

	color := protocol.HSBK{
		Hue:        *a.Hue,
		Saturation: *a.Saturation,
		Brightness: *a.Brightness,
		Kelvin:     c.opts.Kelvin,
	}
	if a.Kelvin != nil {
		color.Kelvin = *a.Kelvin
	}
	return color, nil
}

// NewDispatchView converts a report for a shell
func NewDispatchView(r *dispatch.Report) DispatchView {
	v := DispatchView{
		Command:  r.Command.Name,
		Outcomes: make([]OutcomeView, 0, len(r.Outcomes)),
	}
	for _, o := range r.Outcomes {
		if o.OK() {
			v.Succeeded++
		} else {
			v.Failed++
		}
		v.Outcomes = append(v.Outcomes, OutcomeView{
			Identity: o.Identity,
			Addr:     o.Addr,
			Acked:    o.Acked,
			Error:    o.Error(),
		})
	}
	return v
}

// NewDiscoveryView converts a discovery result for a shell
func NewDiscoveryView(r *discovery.Result) DiscoveryView {
	devices := r.Devices
	if devices == nil {
		devices = []discovery.DiscoveredDevice{}
	}
	return DiscoveryView{
		Devices:  devices,
		Skipped:  r.Skipped,
		Duration: r.Duration.String(),
	}
}

func dispatchResult(report *dispatch.Report, err error) Result {
	res := Result{OK: err == nil}
	if err != nil {
		res.Error = err.Error()
	}
	if report != nil {
		res.Data = NewDispatchView(report)
	}
	return res
}

func failure(err error) Result {
	return Result{Error: err.Error()}
}
