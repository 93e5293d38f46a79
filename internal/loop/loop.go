// Package loop drives a simulation at a fixed timestep using an
// accumulator, the same shape as the teacher's engine.Start goroutine
// (internal/game/engine.go) but generalized: the stepped payload is any
// value, not specifically *game.Engine, and the accumulator (rather than a
// bare time.Ticker) is what keeps ticks exactly 1/TickRate seconds apart
// in simulation time regardless of scheduler jitter (§4.G).
package loop

import (
	"sync"
	"time"
)

// StepFunc advances the simulation by exactly one tick and reports
// whatever events that tick produced.
type StepFunc func() (events []interface{}, matchOver bool)

// Driver runs StepFunc at a fixed rate on its own goroutine.
type Driver struct {
	tickInterval time.Duration
	maxCatchup   time.Duration // spiral-of-death cap (§4.G: 10x tick interval)
	step         StepFunc
	onTick       func(events []interface{})
	onStop       func()
	onPanic      func(recovered interface{})

	stopOnce sync.Once
	stopChan chan struct{}
	doneChan chan struct{}
}

// New builds a Driver for the given tick rate. onTick is called once per
// simulated tick (never once per wall-clock wakeup) with that tick's
// events; onStop is called exactly once when the loop exits, whether
// because the simulation ended or Stop was called.
func New(tickRate int, step StepFunc, onTick func(events []interface{}), onStop func()) *Driver {
	interval := time.Second / time.Duration(tickRate)
	return &Driver{
		tickInterval: interval,
		maxCatchup:   10 * interval,
		step:         step,
		onTick:       onTick,
		onStop:       onStop,
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
	}
}

// SetOnPanic installs the hook invoked if step panics. The panic is
// recovered once at this boundary and the loop exits as if the step had
// reported matchOver, exactly as spec.md's SimulationError requires: "any
// exception from step is caught once at this boundary and translated into
// a synthetic matchEnd". nil is fine; a panic with no hook installed is
// simply swallowed and the loop still exits.
func (d *Driver) SetOnPanic(hook func(recovered interface{})) {
	d.onPanic = hook
}

// Run blocks, driving the simulation until the step function reports the
// match is over or Stop is called. Intended to be launched with `go`.
func (d *Driver) Run() {
	defer close(d.doneChan)
	defer func() {
		if d.onStop != nil {
			d.onStop()
		}
	}()

	ticker := time.NewTicker(d.tickInterval)
	defer ticker.Stop()

	var accumulator time.Duration
	last := time.Now()

	for {
		select {
		case <-d.stopChan:
			return
		case now := <-ticker.C:
			elapsed := now.Sub(last)
			last = now
			if elapsed > d.maxCatchup {
				// Spiral-of-death guard: drop the backlog instead of
				// trying to simulate minutes of missed ticks at once.
				elapsed = d.maxCatchup
			}
			accumulator += elapsed

			for accumulator >= d.tickInterval {
				events, over := d.runTick()
				accumulator -= d.tickInterval
				if d.onTick != nil {
					d.onTick(events)
				}
				if over {
					return
				}
			}
		}
	}
}

// runTick calls step, recovering a panic exactly once at this boundary
// (§4.G, SimulationError) and reporting the tick as match-over instead of
// letting the panic unwind into Run's goroutine and kill the process.
func (d *Driver) runTick() (events []interface{}, over bool) {
	defer func() {
		if r := recover(); r != nil {
			if d.onPanic != nil {
				d.onPanic(r)
			}
			events, over = nil, true
		}
	}()
	return d.step()
}

// Stop requests the loop exit and blocks until it has. Safe to call more
// than once and safe to call from a goroutine other than Run's.
func (d *Driver) Stop() {
	d.stopOnce.Do(func() { close(d.stopChan) })
	<-d.doneChan
}
