package discovery

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/muurk/lifxlab/internal/protocol"
)

// DiscoveredDevice is the payload of a device_discovered notification
type DiscoveredDevice struct {
	// IP is the address the reply came from
	IP string `json:"ip"`

	// Port is the advertised UDP service port, or the source port when the
	// device did not advertise one
	Port uint16 `json:"port"`

	// Identity is the device target from the reply header
	Identity protocol.Target `json:"identity"`

	// ServiceTypes lists every service the device advertised this cycle
	ServiceTypes []uint8 `json:"service_types"`

	// New is true when the device was added to the registry by this reply
	// (in a notification) or by this cycle (in a Result)
	New bool `json:"new"`
}

// String returns a human-readable string representation of the device
func (d *DiscoveredDevice) String() string {
	return fmt.Sprintf("LIFX device %s at %s", d.Identity, d.AddrPort())
}

// AddrPort returns the device's command address
func (d *DiscoveredDevice) AddrPort() netip.AddrPort {
	addr, err := netip.ParseAddr(d.IP)
	if err != nil {
		return netip.AddrPort{}
	}
	return netip.AddrPortFrom(addr, d.Port)
}

// MAC returns the device MAC address derived from its identity
func (d *DiscoveredDevice) MAC() string {
	return d.Identity.MAC().String()
}

// Result summarizes one discovery cycle
type Result struct {
	// Devices lists each responding device once, in order of first reply
	Devices []DiscoveredDevice `json:"devices"`

	// Replies counts StateService replies, including repeats
	Replies int `json:"replies"`

	// Skipped counts datagrams that were not usable StateService replies
	Skipped int `json:"skipped"`

	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
}

// NewDevices returns the devices first seen during this cycle
func (r *Result) NewDevices() []DiscoveredDevice {
	var out []DiscoveredDevice
	for _, d := range r.Devices {
		if d.New {
			out = append(out, d)
		}
	}
	return out
}

// Outcome is delivered on the channel returned by Coordinator.Start
type Outcome struct {
	Result *Result
	Err    error
}
