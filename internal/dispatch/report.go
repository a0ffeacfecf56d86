package dispatch

import (
	"fmt"
	"net/netip"

	"github.com/muurk/lifxlab/internal/protocol"
	"go.uber.org/multierr"
)

// Outcome is the result of sending a command to one device.
//
// A device that was sent the command but never acknowledged it is still a
// success; LIFX devices drop acknowledgements under load.
type Outcome struct {
	Identity protocol.Target `json:"identity"`
	Addr     netip.AddrPort  `json:"addr"`
	Sequence uint8           `json:"sequence"`
	Sent     bool            `json:"sent"`
	Acked    bool            `json:"acked"`
	Err      error           `json:"-"`
}

// OK reports whether the device was reached without error
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Error returns the failure reason, or "" on success
func (o Outcome) Error() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// Report lists one outcome per device, in dispatch order
type Report struct {
	Command  Command
	Outcomes []Outcome
}

// Lookup returns the outcome for a device
func (r *Report) Lookup(id protocol.Target) (Outcome, bool) {
	for _, o := range r.Outcomes {
		if o.Identity == id {
			return o, true
		}
	}
	return Outcome{}, false
}

// Succeeded returns the outcomes without an error
func (r *Report) Succeeded() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.OK() {
			out = append(out, o)
		}
	}
	return out
}

// Failed returns the outcomes with an error
func (r *Report) Failed() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if !o.OK() {
			out = append(out, o)
		}
	}
	return out
}

// AllFailed reports whether every device failed. An empty report has not
// failed.
func (r *Report) AllFailed() bool {
	return len(r.Outcomes) > 0 && len(r.Failed()) == len(r.Outcomes)
}

// Err combines every per-device error, each prefixed with the device
func (r *Report) Err() error {
	var err error
	for _, o := range r.Outcomes {
		if o.Err != nil {
			err = multierr.Append(err, fmt.Errorf("%s (%s): %w", o.Identity, o.Addr, o.Err))
		}
	}
	return err
}

func (r *Report) String() string {
	return fmt.Sprintf("%s: %d/%d devices ok", r.Command.Name, len(r.Succeeded()), len(r.Outcomes))
}
