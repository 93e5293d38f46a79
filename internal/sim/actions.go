package sim

import "math"

// epsilon absorbs floating-point accumulation error when comparing the
// current simulation time against a tank's BusyUntil deadline (§4.D/§4.E):
// a tank is idle once w.T >= BusyUntil - epsilon.
const epsilon = 1e-9

func isIdle(w *World, t *Tank) bool {
	return w.T >= t.BusyUntil-epsilon
}

// startAction is the shared gate every action starter goes through: the
// slot must name a living tank that is not already busy. durationFn is
// evaluated only once the gate passes, since some callers need the tank's
// class stats to compute it.
func startAction(w *World, slot string, kind ActionKind, aDeg, bDeg float64, durationFn func(*Tank) float64) bool {
	t, ok := w.Tanks[slot]
	if !ok || !t.Alive() {
		return false
	}
	if !isIdle(w, t) {
		return false
	}

	t.BusyUntil = w.T + durationFn(t)
	act := ActiveAction{Kind: kind}
	if kind == ActionScan {
		act.ADeg, act.BDeg = aDeg, bDeg
	}
	t.Active = &act
	return true
}

// turnDuration is the default full-turn duration unless the caller pinned
// an exact number of degrees, in which case the busy window scales with
// the tank's own turn rate (§4.D: "duration-scaled turns").
func turnDuration(t *Tank, constants Constants, degrees *float64) float64 {
	if degrees == nil {
		return constants.ActionDuration
	}
	return math.Abs(*degrees) / t.Stats.TurnRate
}

// TurnLeft starts a counter-clockwise turn. degrees == nil means "turn for
// the default action duration at the tank's turn rate"; otherwise the turn
// lasts exactly as long as covering |degrees| takes.
func TurnLeft(w *World, slot string, degrees *float64) bool {
	return startAction(w, slot, ActionTurnLeft, 0, 0, func(t *Tank) float64 {
		return turnDuration(t, w.Constants, degrees)
	})
}

// TurnRight starts a clockwise turn; see TurnLeft for the degrees contract.
func TurnRight(w *World, slot string, degrees *float64) bool {
	return startAction(w, slot, ActionTurnRight, 0, 0, func(t *Tank) float64 {
		return turnDuration(t, w.Constants, degrees)
	})
}

// MoveForward starts a fixed-duration move along the tank's current heading.
func MoveForward(w *World, slot string) bool {
	return startAction(w, slot, ActionMoveForward, 0, 0, func(t *Tank) float64 {
		return w.Constants.ActionDuration
	})
}

// MoveBackward starts a fixed-duration move opposite the tank's heading.
func MoveBackward(w *World, slot string) bool {
	return startAction(w, slot, ActionMoveBackward, 0, 0, func(t *Tank) float64 {
		return w.Constants.ActionDuration
	})
}

// Scan starts a fixed-duration sweep of the arc from aDeg to bDeg
// (clockwise from aDeg). The result is computed once, at completion, from
// the tank positions at that instant (§4.E).
func Scan(w *World, slot string, aDeg, bDeg float64) bool {
	return startAction(w, slot, ActionScan, aDeg, bDeg, func(t *Tank) float64 {
		return w.Constants.ActionDuration
	})
}

// Shoot is instantaneous: it never sets BusyUntil, so it never blocks a
// tank's other actions. It fails only if the tank is dead or already has a
// projectile in flight (§4.D: "one live projectile per tank").
func Shoot(w *World, slot string) bool {
	t, ok := w.Tanks[slot]
	if !ok || !t.Alive() {
		return false
	}
	if t.ActiveProjectileID != 0 {
		return false
	}

	rad := t.HeadingDeg * math.Pi / 180
	dirX, dirY := math.Cos(rad), math.Sin(rad)
	spawnOffset := w.Constants.TankRadius + w.Constants.ProjectileRadius + 1

	id := w.nextProjectileID
	w.nextProjectileID++

	p := &Projectile{
		ID:    id,
		Owner: slot,
		X:     t.X + dirX*spawnOffset,
		Y:     t.Y + dirY*spawnOffset,
		VX:    dirX * w.Constants.ProjectileSpeed,
		VY:    dirY * w.Constants.ProjectileSpeed,
	}
	w.Projectiles[id] = p
	w.ProjectileOrder = append(w.ProjectileOrder, id)
	t.ActiveProjectileID = id
	return true
}

// Kill immediately ends a tank's life outside the normal hit-detection
// path — used by the match orchestrator when a player's runtime forfeits
// via a program error or a watchdog timeout. Returns false if the slot is
// unknown or the tank was already dead.
func Kill(w *World, slot string) bool {
	t, ok := w.Tanks[slot]
	if !ok || !t.Alive() {
		return false
	}
	t.HP = 0
	t.Active = nil
	t.ActiveProjectileID = 0
	return true
}
