// Package dispatch sends LIFX commands to every known device.
//
// A dispatch opens one command socket, builds a targeted frame with
// ack_required set for each device, and sends it by unicast. Each device
// gets its own Outcome: a send failure for one address is recorded and the
// loop moves on. The only top-level failures are ErrNoDevices (when
// required), ErrOpenSocket and a context that was cancelled beforehand.
//
// # Usage Example
//
//	d := dispatch.New(transport.DefaultConfig(),
//	    dispatch.WithAckTimeout(500*time.Millisecond),
//	)
//
//	report, err := d.Dispatch(ctx, dispatch.PowerOff(time.Millisecond), reg.Snapshot())
//	if err != nil {
//	    return err
//	}
//	if err := report.Err(); err != nil {
//	    log.Printf("some devices unreachable: %v", err)
//	}
//
// Power on uses level 0xFFFF, the protocol's full-power value. Durations are
// sent in milliseconds.
package dispatch
