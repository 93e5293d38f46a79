package match

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tanks/internal/runtime"
	"tanks/internal/sim"
	"tanks/internal/tankapi"
)

// fastTestConstants shrinks the arena and speeds everything up so a lethal
// fight resolves in well under a second of wall-clock time, and caps the
// match clock at 2s so a fight with no hits still ends, while keeping
// the same relative shape (ring spawn, a forward Sentry arc sees straight
// through the center) as the default ruleset.
func fastTestConstants() sim.Constants {
	c := sim.DefaultConstants()
	c.ArenaWidth = 400
	c.ArenaHeight = 400
	c.TickRate = 200
	c.ActionDuration = 0.05
	c.ScanRange = 2000
	c.ProjectileSpeed = 2000
	c.ProjectileDamage = 100
	c.MatchTimeLimit = 2
	c.SnapshotRate = 50
	c.Classes = map[sim.ClassTag]sim.ClassStats{
		sim.ClassLight: {HPMax: 100, MoveSpeed: 160, TurnRate: 120},
		sim.ClassHeavy: {HPMax: 100, MoveSpeed: 100, TurnRate: 90},
	}
	return c
}

// crashProgram simulates a player's submitted code erroring out almost
// immediately, the way a panic-turned-error from a malformed submission
// would surface to the runtime.
type crashProgram struct{}

func (crashProgram) ClassTag() string { return "light" }
func (crashProgram) Loop(ctx context.Context, api *tankapi.TankAPI) error {
	return errors.New("simulated player crash")
}

func collectEvents(t *testing.T, timeout time.Duration, stopOn func(Event) bool) (chan Event, func() []Event) {
	t.Helper()
	events := make(chan Event, 256)
	var mu sync.Mutex
	var seen []Event
	done := make(chan struct{})
	var closeOnce sync.Once

	go func() {
		for ev := range events {
			mu.Lock()
			seen = append(seen, ev)
			mu.Unlock()
			if stopOn(ev) {
				closeOnce.Do(func() { close(done) })
			}
		}
	}()

	return events, func() []Event {
		select {
		case <-done:
		case <-time.After(timeout):
			t.Fatal("timed out waiting for the expected terminal event")
		}
		mu.Lock()
		defer mu.Unlock()
		return append([]Event(nil), seen...)
	}
}

func TestMatchEndToEndTwoSentriesFightToConclusion(t *testing.T) {
	events, wait := collectEvents(t, 3*time.Second, func(ev Event) bool {
		_, ok := ev.(MatchEnded)
		return ok
	})

	cfg := Config{
		ID:        "m1",
		Seed:      1,
		Constants: fastTestConstants(),
		Players: map[string]sim.ClassTag{
			"p1": sim.ClassLight,
			"p2": sim.ClassLight,
		},
		Programs: map[string]runtime.Program{
			"p1": &runtime.Sentry{Class: "light", ADeg: -45, BDeg: 45},
			"p2": &runtime.Sentry{Class: "light", ADeg: -45, BDeg: 45},
		},
		Watchdog: time.Second,
		OnEvent:  func(ev Event) { events <- ev },
	}
	m := New(cfg)
	m.Start()
	defer m.Stop()

	seen := wait()

	var sawStart, sawEnd bool
	for _, ev := range seen {
		switch e := ev.(type) {
		case MatchStarted:
			sawStart = true
			if len(e.Slots) != 2 {
				t.Errorf("MatchStarted listed %d slots, want 2", len(e.Slots))
			}
		case MatchEnded:
			sawEnd = true
			if e.Reason != "hp" && e.Reason != "double_ko" {
				t.Errorf("unexpected match end reason %q for a short, lethal fight", e.Reason)
			}
		}
	}
	if !sawStart {
		t.Error("expected a MatchStarted event")
	}
	if !sawEnd {
		t.Error("expected a MatchEnded event")
	}
}

// TestMatchForfeitsCrashedPlayerAmongThree is the spec's concrete
// three-player scenario: one player's program errors out almost
// immediately, is forfeited, and the match carries on between the
// remaining two until it concludes instead of aborting. Two stationary
// Sentries 120 degrees apart on the spawn ring never hit each other, so
// here the match clock ends it.
func TestMatchForfeitsCrashedPlayerAmongThree(t *testing.T) {
	events, wait := collectEvents(t, 3*time.Second, func(ev Event) bool {
		_, ok := ev.(MatchEnded)
		return ok
	})

	cfg := Config{
		ID:        "m2",
		Seed:      2,
		Constants: fastTestConstants(),
		Players: map[string]sim.ClassTag{
			"crasher": sim.ClassLight,
			"p2":      sim.ClassLight,
			"p3":      sim.ClassLight,
		},
		Programs: map[string]runtime.Program{
			"crasher": crashProgram{},
			"p2":      &runtime.Sentry{Class: "light", ADeg: -45, BDeg: 45},
			"p3":      &runtime.Sentry{Class: "light", ADeg: -45, BDeg: 45},
		},
		Watchdog: time.Second,
		OnEvent:  func(ev Event) { events <- ev },
	}
	m := New(cfg)
	m.Start()
	defer m.Stop()

	seen := wait()

	var sawForfeit bool
	var end *MatchEnded
	for _, ev := range seen {
		switch e := ev.(type) {
		case Forfeited:
			if e.Slot == "crasher" {
				sawForfeit = true
			}
		case MatchEnded:
			e2 := e
			end = &e2
		}
	}
	if !sawForfeit {
		t.Fatal("expected the crashed player's slot to be forfeited")
	}
	if end == nil {
		t.Fatal("expected the match to still conclude after the forfeit")
	}
	if end.HasWinner && end.Winner == "crasher" {
		t.Error("the forfeited player must never be reported as the winner")
	}
}

func TestMatchSnapshotReflectsRunningState(t *testing.T) {
	cfg := Config{
		ID:        "m3",
		Seed:      3,
		Constants: fastTestConstants(),
		Players: map[string]sim.ClassTag{
			"p1": sim.ClassLight,
			"p2": sim.ClassLight,
		},
		Programs: map[string]runtime.Program{
			"p1": &runtime.Patroller{Class: "light"},
			"p2": &runtime.Patroller{Class: "light"},
		},
		Watchdog: time.Second,
	}
	m := New(cfg)
	m.Start()
	defer m.Stop()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		snap := m.Snapshot()
		if len(snap.Tanks) == 2 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("snapshot never reflected both tanks after the match started")
}
