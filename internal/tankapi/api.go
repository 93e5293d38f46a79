package tankapi

import (
	"context"

	"tanks/internal/sim"
)

// Command is what a player goroutine sends to the match orchestrator to
// request starting an action on its own tank (§4.I). Reply is always
// non-nil: the orchestrator answers it either immediately (action
// rejected, or Shoot/Random resolved) or later, once the tick loop
// produces the matching ActionCompleteEvent.
type Command struct {
	Slot    string
	Kind    sim.ActionKind
	Degrees *float64 // TurnLeft/TurnRight only; nil means the default duration
	ADeg    float64  // Scan only
	BDeg    float64  // Scan only
	Reply   chan Completion
}

// Completion is the answer to a Command. ScanResult is only meaningful
// when Kind was ActionScan and Accepted is true; RandomResult only when
// Kind was ActionRandom.
type Completion struct {
	Accepted     bool
	ScanResult   bool
	RandomResult float64
}

// TankAPI is the only capability a player's Program receives (§4.I):
// nothing else reachable from inside Program.Loop touches real time or
// match state. Every timed action blocks the calling goroutine until it
// resolves or ctx is cancelled; Log returns immediately. Shoot and Random
// wait only for the orchestrator to answer their command on its next
// tick; Random round-trips through the command queue rather than drawing
// from the PRNG
// directly: the PRNG is match state, and §5 requires every read of match
// state to go through the single-writer tick goroutine, the same as every
// other action (§4.A, P9).
type TankAPI struct {
	slot     string
	commands chan<- Command
	logf     func(slot, msg string)
	onCall   func() // rearms the runtime watchdog; nil in tests is fine
}

// New builds the capability object bound to one tank slot. commands is
// the orchestrator's single command intake.
func New(slot string, commands chan<- Command, logf func(slot, msg string)) *TankAPI {
	return &TankAPI{slot: slot, commands: commands, logf: logf}
}

// SetOnCall installs the hook invoked at the start of every timed action —
// internal/runtime uses it to rearm a player's watchdog timer, so that a
// program stuck in a genuine infinite loop that starts no new timed
// action still times out, while one that is merely waiting on a slow but
// legitimate action does not (§4.J). Instant operations (Shoot, Log,
// Random) deliberately do not call this: a tight `for { api.Random() }`
// loop with no awaited action is exactly the hang the watchdog exists to
// catch, and rearming on every instant call would mask it forever.
func (a *TankAPI) SetOnCall(hook func()) {
	a.onCall = hook
}

func (a *TankAPI) touch() {
	if a.onCall != nil {
		a.onCall()
	}
}

func (a *TankAPI) request(ctx context.Context, kind sim.ActionKind, degrees *float64, aDeg, bDeg float64) (Completion, error) {
	a.touch()
	reply := make(chan Completion, 1)
	cmd := Command{Slot: a.slot, Kind: kind, Degrees: degrees, ADeg: aDeg, BDeg: bDeg, Reply: reply}

	select {
	case a.commands <- cmd:
	case <-ctx.Done():
		return Completion{}, ctx.Err()
	}

	select {
	case c := <-reply:
		return c, nil
	case <-ctx.Done():
		return Completion{}, ctx.Err()
	}
}

// TurnLeft rotates counter-clockwise. degrees == nil turns for the default
// action duration at the tank's own turn rate; otherwise the turn lasts
// exactly as long as covering |*degrees| takes.
func (a *TankAPI) TurnLeft(ctx context.Context, degrees *float64) (bool, error) {
	c, err := a.request(ctx, sim.ActionTurnLeft, degrees, 0, 0)
	return c.Accepted, err
}

// TurnRight rotates clockwise; see TurnLeft for the degrees contract.
func (a *TankAPI) TurnRight(ctx context.Context, degrees *float64) (bool, error) {
	c, err := a.request(ctx, sim.ActionTurnRight, degrees, 0, 0)
	return c.Accepted, err
}

// MoveForward advances along the tank's current heading for the default
// action duration.
func (a *TankAPI) MoveForward(ctx context.Context) (bool, error) {
	c, err := a.request(ctx, sim.ActionMoveForward, nil, 0, 0)
	return c.Accepted, err
}

// MoveBackward is MoveForward along the reverse heading.
func (a *TankAPI) MoveBackward(ctx context.Context) (bool, error) {
	c, err := a.request(ctx, sim.ActionMoveBackward, nil, 0, 0)
	return c.Accepted, err
}

// Scan sweeps the arc running clockwise from aDeg to bDeg and reports
// whether any opposing tank was inside it and in range at completion.
func (a *TankAPI) Scan(ctx context.Context, aDeg, bDeg float64) (bool, error) {
	c, err := a.request(ctx, sim.ActionScan, nil, aDeg, bDeg)
	if err != nil {
		return false, err
	}
	return c.ScanResult, nil
}

// Shoot fires instantly and never blocks on a timed completion; it
// reports false only if the tank is dead or already has a projectile in
// flight. It does not rearm the watchdog (see SetOnCall).
func (a *TankAPI) Shoot(ctx context.Context) (bool, error) {
	reply := make(chan Completion, 1)
	cmd := Command{Slot: a.slot, Kind: sim.ActionShoot, Reply: reply}

	select {
	case a.commands <- cmd:
	case <-ctx.Done():
		return false, ctx.Err()
	}

	select {
	case c := <-reply:
		return c.Accepted, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Log attaches a player-authored line to this tank's match log. It does
// not rearm the watchdog (see SetOnCall).
func (a *TankAPI) Log(msg string) {
	if a.logf != nil {
		a.logf(a.slot, msg)
	}
}

// Random draws the next value from the match's shared deterministic PRNG,
// routed through the orchestrator's command queue so the draw happens on
// the single tick goroutine that owns the PRNG (§4.A, §5, P9). It does
// not rearm the watchdog (see SetOnCall).
func (a *TankAPI) Random(ctx context.Context) (float64, error) {
	reply := make(chan Completion, 1)
	cmd := Command{Slot: a.slot, Kind: sim.ActionRandom, Reply: reply}

	select {
	case a.commands <- cmd:
	case <-ctx.Done():
		return 0, ctx.Err()
	}

	select {
	case c := <-reply:
		return c.RandomResult, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}
