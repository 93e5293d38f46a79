package eventlog

import (
	"encoding/json"

	"tanks/internal/match"
)

// FromMatchEvent translates one match.Event into a loggable Event, or
// reports ok=false for event kinds this log doesn't persist (currently
// just the high-frequency StateUpdate, which the snapshot pool already
// serves to live viewers and would otherwise dominate the log).
func FromMatchEvent(matchID string, ev match.Event) (Event, bool) {
	switch e := ev.(type) {
	case match.MatchStarted:
		return build(matchID, EventMatchStart, "", e)
	case match.HitOccurred:
		return build(matchID, EventHit, e.Target, e)
	case match.ProjectileDespawned:
		return build(matchID, EventDespawn, e.Owner, e)
	case match.Forfeited:
		return build(matchID, EventForfeit, e.Slot, e)
	case match.MatchEnded:
		return build(matchID, EventMatchEnd, e.Winner, e)
	default:
		return Event{}, false
	}
}

func build(matchID string, t EventType, slot string, payload interface{}) (Event, bool) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, false
	}
	return Event{
		Type:    t,
		MatchID: matchID,
		Slot:    slot,
		Payload: raw,
	}, true
}
