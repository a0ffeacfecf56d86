package dispatch

import (
	"fmt"
	"math"
	"time"

	"github.com/muurk/lifxlab/internal/protocol"
)

// Command is one logical operation sent to every device
type Command struct {
	// Name identifies the command in logs and reports
	Name string

	// Message is the payload sent to each device
	Message protocol.Message
}

func (c Command) String() string {
	if c.Message == nil {
		return c.Name
	}
	return fmt.Sprintf("%s %s", c.Name, c.Message)
}

// PowerOn turns devices on at full power over the given transition
func PowerOn(duration time.Duration) Command {
	return Command{
		Name:    "power_on",
		Message: &protocol.SetPower{Level: protocol.PowerLevelMax, Duration: millis(duration)},
	}
}

// PowerOff turns devices off over the given transition
func PowerOff(duration time.Duration) Command {
	return Command{
		Name:    "power_off",
		Message: &protocol.SetPower{Level: protocol.PowerLevelOff, Duration: millis(duration)},
	}
}

// SetColor sets hue, saturation, brightness and kelvin over the given
// transition
func SetColor(color protocol.HSBK, duration time.Duration) Command {
	return Command{
		Name:    "set_color",
		Message: &protocol.SetColor{Color: color, Duration: millis(duration)},
	}
}

// millis converts a transition to the wire's millisecond field, clamped
func millis(d time.Duration) uint32 {
	ms := d.Milliseconds()
	switch {
	case ms <= 0:
		return 0
	case ms > math.MaxUint32:
		return math.MaxUint32
	default:
		return uint32(ms)
	}
}
