package sim

import (
	"testing"
)

// TestDetectHitsAppliesDamage places a projectile on a direct collision
// course with another tank and checks the narrow-phase hit test lands.
func TestDetectHitsAppliesDamage(t *testing.T) {
	w := newTestWorld(map[string]ClassTag{"a": ClassLight, "b": ClassLight})
	a, b := w.Tanks["a"], w.Tanks["b"]

	b.X, b.Y = a.X+50, a.Y
	a.HeadingDeg = 0
	if !Shoot(w, "a") {
		t.Fatal("Shoot rejected")
	}

	startHP := b.HP
	var hit *HitEvent
	for i := 0; i < 10 && hit == nil; i++ {
		for _, ev := range Step(w) {
			if h, ok := ev.(HitEvent); ok {
				hit = &h
			}
		}
	}
	if hit == nil {
		t.Fatal("expected a hit within 10 ticks")
	}
	if hit.Target != "b" || hit.Owner != "a" {
		t.Errorf("hit owner/target = %s/%s, want a/b", hit.Owner, hit.Target)
	}
	if b.HP != startHP-w.Constants.ProjectileDamage {
		t.Errorf("hp = %d, want %d", b.HP, startHP-w.Constants.ProjectileDamage)
	}
	if a.ActiveProjectileID != 0 {
		t.Error("owner's projectile slot should clear once the shot lands")
	}
}

// TestDespawnOutOfBounds checks a projectile leaving the arena frees its
// owner to fire again.
func TestDespawnOutOfBounds(t *testing.T) {
	w := newTestWorld(map[string]ClassTag{"a": ClassLight})
	a := w.Tanks["a"]
	a.X, a.Y = w.Constants.ArenaWidth-5, w.Constants.ArenaHeight/2
	a.HeadingDeg = 0 // fires east, straight out of the arena

	if !Shoot(w, "a") {
		t.Fatal("Shoot rejected")
	}

	despawned := false
	for i := 0; i < 20 && !despawned; i++ {
		for _, ev := range Step(w) {
			if _, ok := ev.(DespawnEvent); ok {
				despawned = true
			}
		}
	}
	if !despawned {
		t.Fatal("expected the projectile to despawn out of bounds")
	}
	if a.ActiveProjectileID != 0 {
		t.Error("owner should be free to fire again after despawn")
	}
	if !Shoot(w, "a") {
		t.Error("second shot should succeed after the first despawned")
	}
}

// TestArenaContainment checks P3: after any tick, an alive tank's position
// stays within [R, ArenaW-R] x [R, ArenaH-R].
func TestArenaContainment(t *testing.T) {
	w := newTestWorld(map[string]ClassTag{"a": ClassHeavy})
	a := w.Tanks["a"]
	a.X, a.Y = w.Constants.TankRadius+1, w.Constants.TankRadius+1
	a.HeadingDeg = 225 // toward the corner, i.e. out of bounds

	MoveForward(w, "a")
	for i := 0; i < 120; i++ {
		Step(w)
		r := w.Constants.TankRadius
		if a.X < r-1e-9 || a.X > w.Constants.ArenaWidth-r+1e-9 {
			t.Fatalf("tick %d: x=%.4f out of bounds", i, a.X)
		}
		if a.Y < r-1e-9 || a.Y > w.Constants.ArenaHeight-r+1e-9 {
			t.Fatalf("tick %d: y=%.4f out of bounds", i, a.Y)
		}
	}
}

// TestMatchEndHPReason: the last tank standing wins with reason "hp".
func TestMatchEndHPReason(t *testing.T) {
	w := newTestWorld(map[string]ClassTag{"a": ClassLight, "b": ClassLight})
	w.Tanks["b"].HP = 0

	ev, ok := checkMatchEnd(w)
	if !ok {
		t.Fatal("expected match end")
	}
	end := ev.(MatchEndEvent)
	if !end.HasWinner || end.Winner != "a" || end.Reason != "hp" {
		t.Errorf("got %+v, want winner=a reason=hp", end)
	}
}

// TestMatchEndDoubleKO: both tanks dead at once ends with no winner.
func TestMatchEndDoubleKO(t *testing.T) {
	w := newTestWorld(map[string]ClassTag{"a": ClassLight, "b": ClassLight})
	w.Tanks["a"].HP = 0
	w.Tanks["b"].HP = 0

	ev, ok := checkMatchEnd(w)
	if !ok {
		t.Fatal("expected match end")
	}
	end := ev.(MatchEndEvent)
	if end.HasWinner || end.Reason != "double_ko" {
		t.Errorf("got %+v, want no winner, reason=double_ko", end)
	}
}

// TestMatchEndTimeoutTiebreak checks §4.F.5: at the timeout, the strictly
// higher-HP survivor wins; an exact tie has no winner.
func TestMatchEndTimeoutTiebreak(t *testing.T) {
	w := newTestWorld(map[string]ClassTag{"a": ClassLight, "b": ClassLight})
	w.T = w.Constants.MatchTimeLimit
	w.Tanks["a"].HP = 40
	w.Tanks["b"].HP = 30

	ev, ok := checkMatchEnd(w)
	if !ok {
		t.Fatal("expected match end")
	}
	end := ev.(MatchEndEvent)
	if !end.HasWinner || end.Winner != "a" || end.Reason != "timeout" {
		t.Errorf("got %+v, want winner=a reason=timeout", end)
	}

	w.Tanks["b"].HP = 40
	ev, ok = checkMatchEnd(w)
	if !ok {
		t.Fatal("expected match end")
	}
	end = ev.(MatchEndEvent)
	if end.HasWinner {
		t.Errorf("exact HP tie at timeout should have no winner, got %+v", end)
	}
}

// TestSingleShotInvariant checks P4 holds across a full run of actions: at
// most one projectile per owner exists after every tick.
func TestSingleShotInvariant(t *testing.T) {
	w := newTestWorld(map[string]ClassTag{"a": ClassLight, "b": ClassLight})
	for i := 0; i < 300; i++ {
		Shoot(w, "a")
		Shoot(w, "b")
		Step(w)

		counts := map[string]int{}
		for _, id := range w.ProjectileOrder {
			counts[w.Projectiles[id].Owner]++
		}
		for slot, c := range counts {
			if c > 1 {
				t.Fatalf("tick %d: slot %s has %d in-flight projectiles", i, slot, c)
			}
		}
	}
}

// TestDeterminism checks P1: two worlds built from the same seed and fed
// the same action sequence produce identical tank state at every tick.
func TestDeterminism(t *testing.T) {
	run := func() *World {
		w := newTestWorld(map[string]ClassTag{"a": ClassLight, "b": ClassHeavy})
		MoveForward(w, "a")
		d := 45.0
		TurnRight(w, "b", &d)
		for i := 0; i < 200; i++ {
			if w.Tanks["a"].Active == nil {
				Scan(w, "a", -20, 20)
			}
			if w.Tanks["b"].Active == nil {
				MoveBackward(w, "b")
			}
			Step(w)
		}
		return w
	}

	w1, w2 := run(), run()
	for _, slot := range w1.SlotOrder {
		t1, t2 := w1.Tanks[slot], w2.Tanks[slot]
		if t1.X != t2.X || t1.Y != t2.Y || t1.HeadingDeg != t2.HeadingDeg || t1.HP != t2.HP {
			t.Fatalf("slot %s diverged: %+v vs %+v", slot, t1, t2)
		}
	}
}
