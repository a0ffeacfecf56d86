package server

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/muurk/lifxlab/internal/version"
)

const (
	// ServiceType is the mDNS service type the bridge advertises
	ServiceType = "_lifxlab._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultBrowseTimeout is how long Browse listens for bridges
	DefaultBrowseTimeout = 3 * time.Second
)

// Bridge is a lifxlab server found on the network
type Bridge struct {
	Instance string
	Hostname string
	IP       string
	Port     int
	Metadata map[string]string
}

// URL returns the bridge's base URL
func (b *Bridge) URL() string {
	scheme := "http"
	if b.Metadata["tls"] == "true" {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, b.IP, b.Port)
}

// Advertise registers the bridge over mDNS. Call Shutdown on the result to
// withdraw the announcement.
func Advertise(instance string, port int, useTLS bool) (*zeroconf.Server, error) {
	if instance == "" {
		host, err := os.Hostname()
		if err != nil {
			host = "lifxlab"
		}
		instance = "lifxlab on " + host
	}

	txt := []string{
		"version=" + version.Short(),
		"path=/api",
		fmt.Sprintf("tls=%t", useTLS),
	}

	srv, err := zeroconf.Register(instance, ServiceType, ServiceDomain, port, txt, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register mDNS service: %w", err)
	}
	return srv, nil
}

// Browse lists bridges advertising on the local network within timeout
func Browse(ctx context.Context, timeout time.Duration) ([]*Bridge, error) {
	if timeout <= 0 {
		timeout = DefaultBrowseTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	collected := make(chan []*Bridge, 1)

	go func() {
		var bridges []*Bridge
		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					collected <- bridges
					return
				}
				if b := parseServiceEntry(entry); b != nil {
					bridges = append(bridges, b)
				}
			case <-ctx.Done():
				collected <- bridges
				return
			}
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	return <-collected, nil
}

// parseServiceEntry converts a zeroconf service entry to a Bridge.
// Returns nil if the entry has no usable address.
func parseServiceEntry(entry *zeroconf.ServiceEntry) *Bridge {
	var ip string
	if len(entry.AddrIPv4) > 0 {
		ip = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" || entry.Port == 0 {
		return nil
	}

	metadata := make(map[string]string)
	for _, txt := range entry.Text {
		parts := strings.SplitN(txt, "=", 2)
		if len(parts) == 2 {
			metadata[parts[0]] = parts[1]
		} else {
			metadata[parts[0]] = ""
		}
	}

	return &Bridge{
		Instance: entry.Instance,
		Hostname: entry.HostName,
		IP:       ip,
		Port:     entry.Port,
		Metadata: metadata,
	}
}
