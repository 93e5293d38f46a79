package sim

import (
	"math"
	"testing"
)

func newTestWorld(players map[string]ClassTag) *World {
	return NewWorld(42, DefaultConstants(), players)
}

// TestMoveForwardExactDistance is the spec's concrete scenario: a light
// tank moving forward for the default action duration covers exactly
// MoveSpeed * ActionDuration units along its heading (P5/P7).
func TestMoveForwardExactDistance(t *testing.T) {
	w := newTestWorld(map[string]ClassTag{"a": ClassLight})
	tank := w.Tanks["a"]
	tank.HeadingDeg = 0
	startX, startY := tank.X, tank.Y

	if !MoveForward(w, "a") {
		t.Fatal("MoveForward rejected on an idle tank")
	}

	dt := w.Constants.Dt()
	ticks := int(math.Round(w.Constants.ActionDuration / dt))
	for i := 0; i < ticks; i++ {
		Step(w)
	}

	wantDist := tank.Stats.MoveSpeed * w.Constants.ActionDuration
	gotDist := math.Hypot(tank.X-startX, tank.Y-startY)
	if math.Abs(gotDist-wantDist) > 1e-6 {
		t.Errorf("moved %.6f units, want %.6f", gotDist, wantDist)
	}
	if tank.Active != nil {
		t.Error("action should have completed by its exact duration")
	}
}

// TestActionDurationLaw checks P5 directly: an action completes on the
// smallest tick m with (m-n)*dt >= D-epsilon, never one tick early.
func TestActionDurationLaw(t *testing.T) {
	w := newTestWorld(map[string]ClassTag{"a": ClassLight})
	if !MoveForward(w, "a") {
		t.Fatal("MoveForward rejected")
	}

	dt := w.Constants.Dt()
	ticks := int(math.Round(w.Constants.ActionDuration / dt))

	for i := 0; i < ticks-1; i++ {
		Step(w)
		if w.Tanks["a"].Active == nil {
			t.Fatalf("action completed early, at tick %d of %d", i+1, ticks)
		}
	}
	Step(w)
	if w.Tanks["a"].Active != nil {
		t.Fatalf("action did not complete by tick %d", ticks)
	}
}

// TestBusyTankRejectsNewActions checks the startAction gate: a tank with an
// action in flight cannot start another until it's idle.
func TestBusyTankRejectsNewActions(t *testing.T) {
	w := newTestWorld(map[string]ClassTag{"a": ClassLight})
	if !MoveForward(w, "a") {
		t.Fatal("first MoveForward should succeed")
	}
	if MoveForward(w, "a") {
		t.Error("second MoveForward should be rejected while busy")
	}
	if TurnLeft(w, "a", nil) {
		t.Error("TurnLeft should be rejected while the tank is busy")
	}
}

// TestDeadTankRejectsActions ensures a tank with hp<=0 cannot act.
func TestDeadTankRejectsActions(t *testing.T) {
	w := newTestWorld(map[string]ClassTag{"a": ClassLight})
	w.Tanks["a"].HP = 0
	if MoveForward(w, "a") {
		t.Error("a dead tank must not be able to move")
	}
	if Shoot(w, "a") {
		t.Error("a dead tank must not be able to shoot")
	}
}

// TestShootOneAtATime is the spec's concrete one-shot-per-slot scenario
// (P4): a tank cannot fire a second projectile while its first is still
// in flight. Firing again after a despawn is checked by
// TestDespawnOutOfBounds.
func TestShootOneAtATime(t *testing.T) {
	w := newTestWorld(map[string]ClassTag{"a": ClassLight, "b": ClassLight})

	if !Shoot(w, "a") {
		t.Fatal("first shot should succeed")
	}
	if Shoot(w, "a") {
		t.Error("second shot should be rejected while the first is in flight")
	}

	count := 0
	for _, id := range w.ProjectileOrder {
		if w.Projectiles[id].Owner == "a" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected exactly 1 in-flight projectile for slot a, got %d", count)
	}
}

// TestTurnDurationScalesWithDegrees checks that pinning an exact degree
// count scales the busy window by the tank's own turn rate rather than
// using the fixed default action duration.
func TestTurnDurationScalesWithDegrees(t *testing.T) {
	w := newTestWorld(map[string]ClassTag{"a": ClassLight})
	tank := w.Tanks["a"]
	degrees := 30.0

	if !TurnRight(w, "a", &degrees) {
		t.Fatal("TurnRight rejected")
	}

	want := degrees / tank.Stats.TurnRate
	got := tank.BusyUntil - w.T
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("busy duration = %.6f, want %.6f", got, want)
	}
}

// TestKillStopsAction verifies Kill clears a tank's in-flight action, since
// the orchestrator relies on this to keep P10 (a dead tank's resolution
// never reaches its program through a stale Active record).
func TestKillStopsAction(t *testing.T) {
	w := newTestWorld(map[string]ClassTag{"a": ClassLight})
	MoveForward(w, "a")
	if !Kill(w, "a") {
		t.Fatal("Kill should succeed on a living tank")
	}
	if w.Tanks["a"].Active != nil {
		t.Error("Kill should clear the in-flight action")
	}
	if Kill(w, "a") {
		t.Error("Kill should report false on an already-dead tank")
	}
}
