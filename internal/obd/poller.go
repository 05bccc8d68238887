package obd

import (
	"context"
	"errors"
	"time"

	"github.com/driveline-data/speedfusion/internal/monitoring"
	"github.com/driveline-data/speedfusion/internal/timeutil"
)

// Polling tier cadence, in poll ticks.
const (
	Tier2Interval = 5
	Tier3Interval = 20
)

// PollerConfig holds the poller's timing parameters.
type PollerConfig struct {
	// Interval between poll ticks. The request sequence for one tick runs
	// strictly sequentially within it.
	Interval time.Duration
	// Backoff after a transport-level failure, instead of busy-looping.
	Backoff time.Duration
}

// DefaultPollerConfig returns the production polling cadence.
func DefaultPollerConfig() PollerConfig {
	return PollerConfig{
		Interval: 100 * time.Millisecond,
		Backoff:  250 * time.Millisecond,
	}
}

// SampleRecorder persists decoded samples as they arrive. Implementations
// must tolerate being called at poll rate.
type SampleRecorder interface {
	RecordBusSample(signal string, value float64, t time.Time) error
}

// Poller issues tiered parameter requests over the transport and writes
// decoded values into the cache. It runs as a self-paced loop, independent of
// the fusion tick, and only ever writes to the cache.
type Poller struct {
	transport Transport
	cache     *Cache
	clock     timeutil.Clock
	cfg       PollerConfig
	samples   SampleRecorder // may be nil

	// tick is the monotonically increasing poll tick counter.
	tick uint64
}

// NewPoller creates a poller over the given transport and cache.
func NewPoller(transport Transport, cache *Cache, clock timeutil.Clock, cfg PollerConfig) *Poller {
	return &Poller{
		transport: transport,
		cache:     cache,
		clock:     clock,
		cfg:       cfg,
	}
}

// SetSampleRecorder enables persistence of every decoded sample. Must be
// called before Run.
func (p *Poller) SetSampleRecorder(r SampleRecorder) {
	p.samples = r
}

// Run polls until the context is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	ticker := p.clock.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C():
			p.PollTick(ctx)
		}
	}
}

// PollTick runs the request sequence for one tick: tier 1 every tick, tier 2
// every 5th, tier 3 every 20th. Requests execute one at a time over the
// half-duplex link.
func (p *Poller) PollTick(ctx context.Context) {
	p.tick++

	commands := append([]Command(nil), Tier1Commands...)
	if p.tick%Tier2Interval == 0 {
		commands = append(commands, Tier2Commands...)
	}
	if p.tick%Tier3Interval == 0 {
		commands = append(commands, Tier3Commands...)
	}

	for _, cmd := range commands {
		if ctx.Err() != nil {
			return
		}
		if err := p.request(ctx, cmd); err != nil {
			if errors.Is(err, ErrNoData) || errors.Is(err, ErrBadResponse) {
				// Sample discarded; the cache keeps its previous value.
				continue
			}
			// Transport-level failure: back off before the next attempt.
			monitoring.Logf("obd: transport failure on %s: %v", cmd.Signal, err)
			p.clock.Sleep(p.cfg.Backoff)
			return
		}
	}
}

// Tick returns the current poll tick count.
func (p *Poller) Tick() uint64 {
	return p.tick
}

func (p *Poller) request(ctx context.Context, cmd Command) error {
	raw, err := p.transport.SendAndAwait(ctx, cmd.Request)
	if err != nil {
		return err
	}
	value, err := DecodeResponse(cmd, raw)
	if err != nil {
		return err
	}
	now := p.clock.Now()
	p.cache.Set(cmd.Signal, value, now)
	if p.samples != nil {
		if err := p.samples.RecordBusSample(cmd.Signal.String(), value, now); err != nil {
			monitoring.Logf("obd: failed to record %s sample: %v", cmd.Signal, err)
		}
	}
	return nil
}
