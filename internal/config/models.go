package config

import (
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/muurk/lifxlab/internal/protocol"
	"github.com/muurk/lifxlab/internal/transport"
	"go.uber.org/multierr"
)

// CurrentVersion is the config file format version
const CurrentVersion = 1

// Config represents the entire configuration file.
type Config struct {
	Version   int                    `yaml:"version"`
	LogLevel  string                 `yaml:"log_level,omitempty"` // debug, info, warn, error; empty = silent
	Network   NetworkConfig          `yaml:"network"`
	Discovery DiscoveryConfig        `yaml:"discovery"`
	Commands  CommandConfig          `yaml:"commands"`
	Server    ServerConfig           `yaml:"server"`
	Devices   map[string]*DeviceMeta `yaml:"devices,omitempty"` // Keyed by device target (hex)
}

// NetworkConfig holds UDP socket addresses.
type NetworkConfig struct {
	ListenAddress    string `yaml:"listen_address"`    // Discovery socket bind address
	CommandAddress   string `yaml:"command_address"`   // Command socket bind address (port 0 = ephemeral)
	BroadcastAddress string `yaml:"broadcast_address"` // Discovery broadcast destination
	ReadBufferSize   int    `yaml:"read_buffer_size,omitempty"`
}

// DiscoveryConfig controls discovery cycles.
type DiscoveryConfig struct {
	Timeout       time.Duration `yaml:"timeout"`        // Listening window per cycle
	StaleAfter    time.Duration `yaml:"stale_after"`    // Prune devices unseen this long; 0 = never
	PruneInterval time.Duration `yaml:"prune_interval"` // How often the server checks for stale devices
}

// CommandConfig controls how commands are built and sent.
type CommandConfig struct {
	Source           uint32        `yaml:"source"`             // Source identifier in every frame
	AckTimeout       time.Duration `yaml:"ack_timeout"`        // Wait for acknowledgements; 0 = fire and forget
	Kelvin           uint16        `yaml:"kelvin"`             // Color temperature used by set_color
	PowerOnDuration  time.Duration `yaml:"power_on_duration"`  // Transition for lights_on
	PowerOffDuration time.Duration `yaml:"power_off_duration"` // Transition for lights_off
	ColorDuration    time.Duration `yaml:"color_duration"`     // Transition for set_color
	RequireDevices   bool          `yaml:"require_devices"`    // Fail commands when no device is known
}

// ServerConfig controls the HTTP bridge.
type ServerConfig struct {
	ListenAddress string `yaml:"listen_address"`
	Advertise     bool   `yaml:"advertise"`               // Announce the bridge over mDNS
	InstanceName  string `yaml:"instance_name,omitempty"` // mDNS instance name; empty = hostname
}

// DeviceMeta represents user-defined metadata for a single device.
// The device itself never stores these values.
type DeviceMeta struct {
	Nickname string    `yaml:"nickname,omitempty"`
	LastAddr string    `yaml:"last_addr,omitempty"`
	LastSeen time.Time `yaml:"last_seen,omitempty"`
}

// Default returns a Config with default values.
func Default() *Config {
	net := transport.DefaultConfig()
	return &Config{
		Version: CurrentVersion,
		Network: NetworkConfig{
			ListenAddress:    net.ListenAddress,
			CommandAddress:   net.CommandAddress,
			BroadcastAddress: net.BroadcastAddress,
		},
		Discovery: DiscoveryConfig{
			Timeout:       2 * time.Second,
			PruneInterval: time.Minute,
		},
		Commands: CommandConfig{
			Source:           protocol.DefaultSource,
			Kelvin:           3500,
			PowerOffDuration: time.Millisecond,
		},
		Server: ServerConfig{
			ListenAddress: "127.0.0.1:8756",
			Advertise:     true,
		},
		Devices: make(map[string]*DeviceMeta),
	}
}

// Transport returns the socket configuration
func (c *Config) Transport() transport.Config {
	return transport.Config{
		ListenAddress:    c.Network.ListenAddress,
		CommandAddress:   c.Network.CommandAddress,
		BroadcastAddress: c.Network.BroadcastAddress,
		ReadBufferSize:   c.Network.ReadBufferSize,
	}
}

// Nickname returns the user-assigned name for a device, or "".
func (c *Config) Nickname(id protocol.Target) string {
	if c.Devices == nil {
		return ""
	}
	if meta, ok := c.Devices[id.String()]; ok {
		return meta.Nickname
	}
	return ""
}

// EnsureDevice ensures a device entry exists and returns it.
func (c *Config) EnsureDevice(id protocol.Target) *DeviceMeta {
	if c.Devices == nil {
		c.Devices = make(map[string]*DeviceMeta)
	}

	key := id.String()
	if meta, exists := c.Devices[key]; exists {
		return meta
	}

	meta := &DeviceMeta{}
	c.Devices[key] = meta
	return meta
}

// SetNickname sets the user-assigned name for a device.
func (c *Config) SetNickname(id protocol.Target, nickname string) {
	c.EnsureDevice(id).Nickname = nickname
}

// RecordSeen stores the last known address of a device.
func (c *Config) RecordSeen(id protocol.Target, addr netip.AddrPort, at time.Time) {
	meta := c.EnsureDevice(id)
	meta.LastAddr = addr.String()
	meta.LastSeen = at
}

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var err error

	if c.Version != CurrentVersion {
		err = multierr.Append(err, fmt.Errorf("unsupported config version: %d (expected %d)", c.Version, CurrentVersion))
	}

	addrs := []struct{ name, value string }{
		{"network.listen_address", c.Network.ListenAddress},
		{"network.command_address", c.Network.CommandAddress},
		{"network.broadcast_address", c.Network.BroadcastAddress},
	}
	for _, a := range addrs {
		if _, perr := netip.ParseAddrPort(a.value); perr != nil {
			err = multierr.Append(err, fmt.Errorf("invalid %s %q: %w", a.name, a.value, perr))
		}
	}

	if c.Network.ReadBufferSize < 0 {
		err = multierr.Append(err, fmt.Errorf("network.read_buffer_size must not be negative"))
	}
	if c.Discovery.Timeout <= 0 {
		err = multierr.Append(err, fmt.Errorf("discovery.timeout must be positive, got %s", c.Discovery.Timeout))
	}
	if c.Discovery.StaleAfter < 0 {
		err = multierr.Append(err, fmt.Errorf("discovery.stale_after must not be negative"))
	}
	if c.Discovery.StaleAfter > 0 && c.Discovery.PruneInterval <= 0 {
		err = multierr.Append(err, fmt.Errorf("discovery.prune_interval must be positive when stale_after is set"))
	}
	if c.Commands.AckTimeout < 0 {
		err = multierr.Append(err, fmt.Errorf("commands.ack_timeout must not be negative"))
	}

	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		err = multierr.Append(err, fmt.Errorf("unknown log_level %q", c.LogLevel))
	}

	for key := range c.Devices {
		if _, perr := protocol.ParseTarget(key); perr != nil {
			err = multierr.Append(err, fmt.Errorf("invalid device key %q: %w", key, perr))
		}
	}

	return err
}
