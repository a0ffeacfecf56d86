// Package discovery finds LIFX devices on the local network.
//
// A discovery cycle broadcasts one GetService request and then listens for
// StateService replies until the timeout (2 seconds by default) elapses.
// Each reply is upserted into the device registry and reported to the
// configured events.Sink as a device_discovered notification, in the order
// replies arrive.
//
// # Cycle Lifecycle
//
//	Idle -> Sending -> Listening -> Idle
//
// Only one cycle runs at a time. Discover and Start fail with
// ErrDiscoveryInProgress while a cycle is active; they do not queue.
//
// # Usage Example
//
//	reg := registry.New()
//	coord := discovery.New(reg, transport.DefaultConfig(),
//	    discovery.WithSink(hub),
//	)
//
//	result, err := coord.Discover(ctx)
//	if err != nil {
//	    return err
//	}
//	for _, d := range result.Devices {
//	    fmt.Printf("Found: %s at %s:%d\n", d.Identity, d.IP, d.Port)
//	}
//
// # Error Handling
//
// Datagrams that fail to decode, or that are not StateService replies, are
// logged at debug level and skipped. A receive timeout ends the cycle
// normally. Any other socket error ends the cycle early and is returned with
// the partial result. Cancelling the context (or calling Stop) makes the
// pending receive return at once.
//
// # Network Requirements
//
// The discovery socket binds UDP port 56700 with SO_REUSEADDR so it can
// coexist with other LIFX clients on the same host. Replies only arrive if
// the host firewall admits inbound UDP on that port.
package discovery
