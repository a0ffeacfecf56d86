package server

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/muurk/lifxlab/internal/events"
	"github.com/muurk/lifxlab/internal/logging"
	"github.com/muurk/lifxlab/internal/registry"
	"go.uber.org/zap"
)

// DefaultPruneInterval is used when no interval is configured
const DefaultPruneInterval = time.Minute

// Pruner periodically removes devices that have not replied to discovery
// for longer than the stale threshold
type Pruner struct {
	registry   *registry.Registry
	sink       events.Sink
	clock      clock.Clock
	interval   time.Duration
	staleAfter time.Duration

	started  atomic.Bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// NewPruner creates a pruner; it does nothing until Start is called
func NewPruner(reg *registry.Registry, staleAfter, interval time.Duration, clk clock.Clock, sink events.Sink) *Pruner {
	if interval <= 0 {
		interval = DefaultPruneInterval
	}
	if sink == nil {
		sink = events.Nop
	}
	return &Pruner{
		registry:   reg,
		sink:       sink,
		clock:      clk,
		interval:   interval,
		staleAfter: staleAfter,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// Start begins periodic pruning until ctx is done or Stop is called
func (p *Pruner) Start(ctx context.Context) {
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	ticker := p.clock.Ticker(p.interval)
	go func() {
		defer close(p.doneCh)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				p.PruneOnce()
			case <-p.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the pruner and waits for it to exit
func (p *Pruner) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	if p.started.Load() {
		<-p.doneCh
	}
}

// PruneOnce removes stale devices now and reports each one to the sink
func (p *Pruner) PruneOnce() []registry.Device {
	removed := p.registry.Prune(p.staleAfter)
	for _, d := range removed {
		logging.Info("Pruned stale device",
			zap.String("target", d.Identity.String()),
			zap.String("addr", d.Addr.String()),
			zap.Time("last_seen", d.LastSeen),
		)
		p.sink.Emit(events.DeviceRemoved, d)
	}
	return removed
}
