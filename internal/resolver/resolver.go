// Package resolver bridges the simulation's tick events back to the
// player goroutines blocked waiting on them (§4.H).
package resolver

import (
	"tanks/internal/sim"
	"tanks/internal/tankapi"
)

// Resolve drains one tick's ActionCompleteEvents and answers each slot's
// pending reply channel. registry.Take detaches the channel before
// Resolve sends on it, so a program that synchronously starts a new timed
// action from inside its own continuation (the code right after an
// awaited call returns) finds the mailbox already clear and able to
// accept it — sending, then detaching, would instead race the new Put
// against the stale entry still sitting in the mailbox.
func Resolve(events []sim.Event, registry *tankapi.PendingRegistry) {
	for _, ev := range events {
		ce, ok := ev.(sim.ActionCompleteEvent)
		if !ok {
			continue
		}
		reply, ok := registry.Take(ce.Slot)
		if !ok {
			// No program was waiting (e.g. it forfeited mid-action); drop.
			continue
		}
		reply <- tankapi.Completion{Accepted: true, ScanResult: ce.ScanResult}
	}
}
