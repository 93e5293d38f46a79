package sim

import (
	"math"
	"sort"
)

// Event is the tagged union Step emits for one tick. Concrete types are
// ActionCompleteEvent, HitEvent, DespawnEvent and MatchEndEvent; callers
// type-switch on the concrete value.
type Event interface {
	isEvent()
}

// ActionCompleteEvent fires when a tank's timed action reaches its
// BusyUntil deadline. ScanResult is only meaningful when Action ==
// ActionScan.
type ActionCompleteEvent struct {
	Slot       string
	Action     ActionKind
	ScanResult bool
}

func (ActionCompleteEvent) isEvent() {}

// HitEvent fires when a projectile's narrow-phase check lands on a tank.
type HitEvent struct {
	ProjectileID ProjectileID
	Owner        string
	Target       string
	Damage       int
}

func (HitEvent) isEvent() {}

// DespawnEvent fires when a projectile is removed without hitting anyone.
type DespawnEvent struct {
	ProjectileID ProjectileID
	Owner        string
	Reason       string // "oob"
}

func (DespawnEvent) isEvent() {}

// MatchEndEvent fires the tick the match concludes. HasWinner is false for
// a double-KO or an exact-tie timeout (§4.F.5). A SimulationError abort
// (§4.G, §7) never produces a MatchEndEvent: internal/match reports it as
// its own MatchEnded with reason "error" from the loop driver's panic hook.
type MatchEndEvent struct {
	Winner    string
	HasWinner bool
	Reason    string // "hp", "timeout", "double_ko"
}

func (MatchEndEvent) isEvent() {}

// Step advances the world by exactly one tick, in the canonical order the
// spec fixes for reproducibility (§4.F): apply in-flight actions, move
// projectiles, despawn out-of-bounds ones, resolve hits, advance the clock,
// then check for match end. Step does not refuse to run after a prior call
// produced a MatchEndEvent — callers own stopping the loop.
func Step(w *World) []Event {
	var events []Event

	events = append(events, applyActions(w)...)

	dt := w.Constants.Dt()
	for _, id := range w.ProjectileOrder {
		p := w.Projectiles[id]
		p.X += p.VX * dt
		p.Y += p.VY * dt
	}

	events = append(events, despawnOutOfBounds(w)...)
	events = append(events, detectHits(w)...)

	w.T += dt

	if ev, ok := checkMatchEnd(w); ok {
		events = append(events, ev)
	}

	return events
}

// applyActions integrates each busy tank's kinematics for one tick and
// completes any action whose BusyUntil deadline has just been reached
// (§4.E). Dead tanks are skipped entirely: their Active action, if any, is
// left untouched for the orchestrator to resolve (§4.K, P10).
func applyActions(w *World) []Event {
	var events []Event
	dt := w.Constants.Dt()

	for _, slot := range w.SlotOrder {
		t := w.Tanks[slot]
		if !t.Alive() || t.Active == nil {
			continue
		}

		switch t.Active.Kind {
		case ActionTurnLeft:
			t.HeadingDeg = normalizeDeg(t.HeadingDeg - t.Stats.TurnRate*dt)
		case ActionTurnRight:
			t.HeadingDeg = normalizeDeg(t.HeadingDeg + t.Stats.TurnRate*dt)
		case ActionMoveForward:
			advanceTank(w, t, dt, 1)
		case ActionMoveBackward:
			advanceTank(w, t, dt, -1)
		case ActionScan:
			// no kinematic effect; result is computed at completion below
		}

		if w.T+dt >= t.BusyUntil-epsilon {
			completed := *t.Active
			var scanResult bool
			if completed.Kind == ActionScan {
				scanResult = evaluateScan(w, t, completed.ADeg, completed.BDeg)
				t.LastScanResult = scanResult
			}
			events = append(events, ActionCompleteEvent{
				Slot:       slot,
				Action:     completed.Kind,
				ScanResult: scanResult,
			})
			t.Active = nil
		}
	}

	return events
}

func advanceTank(w *World, t *Tank, dt, sign float64) {
	rad := t.HeadingDeg * math.Pi / 180
	t.X += sign * math.Cos(rad) * t.Stats.MoveSpeed * dt
	t.Y += sign * math.Sin(rad) * t.Stats.MoveSpeed * dt

	r := w.Constants.TankRadius
	t.X = clamp(t.X, r, w.Constants.ArenaWidth-r)
	t.Y = clamp(t.Y, r, w.Constants.ArenaHeight-r)
}

// despawnOutOfBounds removes any projectile that has left the arena plus a
// small margin, freeing its owner to fire again.
func despawnOutOfBounds(w *World) []Event {
	var events []Event
	r := w.Constants.ProjectileRadius
	kept := w.ProjectileOrder[:0:0]

	for _, id := range w.ProjectileOrder {
		p := w.Projectiles[id]
		if p.X < -r || p.X > w.Constants.ArenaWidth+r || p.Y < -r || p.Y > w.Constants.ArenaHeight+r {
			events = append(events, DespawnEvent{ProjectileID: id, Owner: p.Owner, Reason: "oob"})
			delete(w.Projectiles, id)
			clearOwnerProjectile(w, p.Owner, id)
			continue
		}
		kept = append(kept, id)
	}
	w.ProjectileOrder = kept

	return events
}

// detectHits runs the narrow-phase projectile/tank check (§4.F.4): each
// projectile is tested, in SlotOrder, against every other living tank
// until the first hit consumes it.
func detectHits(w *World) []Event {
	var events []Event

	projR := w.Constants.ProjectileRadius
	tankR := w.Constants.TankRadius
	rSum := projR + tankR
	rSq := rSum * rSum

	kept := w.ProjectileOrder[:0:0]
	for _, id := range w.ProjectileOrder {
		p, ok := w.Projectiles[id]
		if !ok {
			continue
		}

		hit := false
		for _, slot := range w.SlotOrder {
			if slot == p.Owner {
				continue
			}
			tank := w.Tanks[slot]
			if !tank.Alive() {
				continue
			}

			dx := tank.X - p.X
			dy := tank.Y - p.Y
			if dx*dx+dy*dy > rSq {
				continue
			}

			dmg := w.Constants.ProjectileDamage
			tank.HP -= dmg
			if tank.HP < 0 {
				tank.HP = 0
			}
			events = append(events, HitEvent{ProjectileID: id, Owner: p.Owner, Target: slot, Damage: dmg})
			delete(w.Projectiles, id)
			clearOwnerProjectile(w, p.Owner, id)
			hit = true
			break
		}

		if !hit {
			kept = append(kept, id)
		}
	}
	w.ProjectileOrder = kept

	return events
}

func clearOwnerProjectile(w *World, owner string, id ProjectileID) {
	if t, ok := w.Tanks[owner]; ok && t.ActiveProjectileID == id {
		t.ActiveProjectileID = 0
	}
}

// checkMatchEnd implements §4.F.5: the match ends the instant one or zero
// tanks remain alive, or when the clock reaches MatchTimeLimit, in which
// case the strictly-highest-HP survivor wins and an exact tie has no
// winner.
func checkMatchEnd(w *World) (Event, bool) {
	alive := make([]string, 0, len(w.SlotOrder))
	for _, slot := range w.SlotOrder {
		if w.Tanks[slot].Alive() {
			alive = append(alive, slot)
		}
	}

	if len(alive) <= 1 {
		if len(alive) == 1 {
			return MatchEndEvent{Winner: alive[0], HasWinner: true, Reason: "hp"}, true
		}
		return MatchEndEvent{Reason: "double_ko"}, true
	}

	if w.T >= w.Constants.MatchTimeLimit {
		sort.SliceStable(alive, func(i, j int) bool {
			return w.Tanks[alive[i]].HP > w.Tanks[alive[j]].HP
		})
		if w.Tanks[alive[0]].HP > w.Tanks[alive[1]].HP {
			return MatchEndEvent{Winner: alive[0], HasWinner: true, Reason: "timeout"}, true
		}
		return MatchEndEvent{Reason: "timeout"}, true
	}

	return nil, false
}
