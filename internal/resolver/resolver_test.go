package resolver

import (
	"testing"

	"tanks/internal/sim"
	"tanks/internal/tankapi"
)

func TestResolveAnswersPendingSlot(t *testing.T) {
	registry := tankapi.NewPendingRegistry([]string{"a"})
	reply := make(chan tankapi.Completion, 1)
	registry.Put("a", reply)

	events := []sim.Event{
		sim.ActionCompleteEvent{Slot: "a", Action: sim.ActionMoveForward},
	}
	Resolve(events, registry)

	select {
	case c := <-reply:
		if !c.Accepted {
			t.Error("expected Accepted=true on a completed action")
		}
	default:
		t.Fatal("expected a completion to be sent on the reply channel")
	}
}

func TestResolveCarriesScanResult(t *testing.T) {
	registry := tankapi.NewPendingRegistry([]string{"a"})
	reply := make(chan tankapi.Completion, 1)
	registry.Put("a", reply)

	events := []sim.Event{
		sim.ActionCompleteEvent{Slot: "a", Action: sim.ActionScan, ScanResult: true},
	}
	Resolve(events, registry)

	c := <-reply
	if !c.ScanResult {
		t.Error("expected ScanResult=true to pass through to the Completion")
	}
}

func TestResolveIgnoresOtherEventTypes(t *testing.T) {
	registry := tankapi.NewPendingRegistry([]string{"a"})
	reply := make(chan tankapi.Completion, 1)
	registry.Put("a", reply)

	events := []sim.Event{
		sim.HitEvent{Owner: "b", Target: "a", Damage: 20},
	}
	Resolve(events, registry)

	select {
	case <-reply:
		t.Error("a HitEvent should never trigger a completion send")
	default:
	}
	if _, ok := registry.Take("a"); !ok {
		t.Error("the pending reply should still be registered after an unrelated event")
	}
}

func TestResolveDropsCompletionForSlotWithNothingPending(t *testing.T) {
	registry := tankapi.NewPendingRegistry([]string{"a"})
	// Nothing registered for "a" — simulates a program that forfeited
	// mid-action.
	events := []sim.Event{
		sim.ActionCompleteEvent{Slot: "a", Action: sim.ActionMoveForward},
	}

	// Must not panic or block even though there is no channel to send on.
	Resolve(events, registry)
}

func TestResolveDetachesBeforeSending(t *testing.T) {
	registry := tankapi.NewPendingRegistry([]string{"a"})
	first := make(chan tankapi.Completion, 1)
	registry.Put("a", first)

	events := []sim.Event{
		sim.ActionCompleteEvent{Slot: "a", Action: sim.ActionMoveForward},
	}
	Resolve(events, registry)
	<-first

	// A fresh Put for the same slot must succeed: the mailbox was cleared
	// by Take before Resolve sent on the old channel.
	second := make(chan tankapi.Completion, 1)
	if !registry.Put("a", second) {
		t.Fatal("Put after Resolve should succeed; the mailbox must be empty")
	}
}
