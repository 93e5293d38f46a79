package api

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"tanks/internal/eventlog"
	"tanks/internal/match"
	"tanks/internal/runtime"
	"tanks/internal/sim"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ErrMatchNotFound reports a request against an unknown match ID.
	ErrMatchNotFound = errors.New("match not found")
	// ErrTooManyMatches reports the configured concurrency cap was hit.
	ErrTooManyMatches = errors.New("too many concurrent matches")
	// ErrUnknownClassTag is a ProtocolError (§7): the request named a class
	// this server's catalog has no program for.
	ErrUnknownClassTag = errors.New("unknown class tag")
	// ErrOversizeSubmission is a ProtocolError (§7).
	ErrOversizeSubmission = errors.New("player submission exceeds max size")
	ErrTooFewPlayers      = errors.New("match needs at least two players")
	ErrTooManyPlayers     = errors.New("too many players for one match")
)

// PlayerRequest is one collaborator-supplied tank entry. Kind selects a
// built-in Program from the catalog (§9 design notes: no embedded scripting
// engine exists in this stack, so "submitted source" resolves to a
// server-registered behavior rather than being interpreted directly).
type PlayerRequest struct {
	Slot     string `json:"slot"`
	ClassTag string `json:"classTag"`
	Kind     string `json:"kind"`
	Source   string `json:"source,omitempty"`
}

// CreateMatchRequest is the body of POST /api/matches.
type CreateMatchRequest struct {
	Seed    int64           `json:"seed"`
	Players []PlayerRequest `json:"players"`
}

// ProgramCatalog resolves a request's (kind, classTag) pair into a runnable
// Program. DefaultCatalog supplies two built-in entries ("sentry",
// "patroller"), and NewMatchManager uses it when no catalog is given.
type ProgramCatalog map[string]func(classTag string) runtime.Program

// DefaultCatalog returns the built-in program catalog.
func DefaultCatalog() ProgramCatalog {
	return ProgramCatalog{
		"sentry": func(classTag string) runtime.Program {
			return &runtime.Sentry{Class: classTag, ADeg: -45, BDeg: 45}
		},
		"patroller": func(classTag string) runtime.Program {
			return &runtime.Patroller{Class: classTag}
		},
	}
}

// MatchManager owns every in-flight match, enforcing the server's
// concurrency and roster limits and wiring each match's event stream into
// both the broadcast hub and the event log.
type MatchManager struct {
	mu      sync.RWMutex
	matches map[string]*match.Match

	constants sim.Constants
	maxMatches int
	maxPlayers int
	maxSource  int
	watchdog   time.Duration

	catalog ProgramCatalog
	hub     broadcastHub
	log     *eventlog.Log

	nextID uint64
}

// broadcastHub is the subset of *broadcast.Hub this package actually calls,
// kept narrow so tests can substitute a stub.
type broadcastHub interface {
	Broadcast(event string, data interface{})
}

// MatchManagerConfig bundles MatchManager's dependencies.
type MatchManagerConfig struct {
	Constants  sim.Constants
	MaxMatches int
	MaxPlayers int
	MaxSource  int
	Watchdog   time.Duration
	Catalog    ProgramCatalog
	Hub        broadcastHub
	Log        *eventlog.Log
}

// NewMatchManager builds an empty manager. No match runs until
// CreateMatch is called.
func NewMatchManager(cfg MatchManagerConfig) *MatchManager {
	catalog := cfg.Catalog
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &MatchManager{
		matches:    make(map[string]*match.Match),
		constants:  cfg.Constants,
		maxMatches: cfg.MaxMatches,
		maxPlayers: cfg.MaxPlayers,
		maxSource:  cfg.MaxSource,
		watchdog:   cfg.Watchdog,
		catalog:    catalog,
		hub:        cfg.Hub,
		log:        cfg.Log,
	}
}

// CreateMatch validates the request, builds a match.Config, and starts it.
func (m *MatchManager) CreateMatch(req CreateMatchRequest) (string, error) {
	if len(req.Players) < 2 {
		return "", ErrTooFewPlayers
	}
	if m.maxPlayers > 0 && len(req.Players) > m.maxPlayers {
		return "", ErrTooManyPlayers
	}

	players := make(map[string]sim.ClassTag, len(req.Players))
	programs := make(map[string]runtime.Program, len(req.Players))
	for _, p := range req.Players {
		if m.maxSource > 0 && len(p.Source) > m.maxSource {
			return "", fmt.Errorf("%w: slot %s", ErrOversizeSubmission, p.Slot)
		}
		if _, ok := m.constants.Classes[sim.ClassTag(p.ClassTag)]; !ok {
			return "", fmt.Errorf("%w: %q", ErrUnknownClassTag, p.ClassTag)
		}
		factory, ok := m.catalog[p.Kind]
		if !ok {
			return "", fmt.Errorf("%w: kind %q", ErrUnknownClassTag, p.Kind)
		}
		players[p.Slot] = sim.ClassTag(p.ClassTag)
		programs[p.Slot] = factory(p.ClassTag)
	}

	m.mu.Lock()
	if m.maxMatches > 0 && len(m.matches) >= m.maxMatches {
		m.mu.Unlock()
		return "", ErrTooManyMatches
	}
	id := fmt.Sprintf("match-%d", atomic.AddUint64(&m.nextID, 1))
	m.mu.Unlock()

	cfg := match.Config{
		ID:        id,
		Seed:      req.Seed,
		Constants: m.constants,
		Players:   players,
		Programs:  programs,
		Watchdog:  m.watchdog,
		OnEvent:   m.onEventFor(id),
	}
	mt := match.New(cfg)

	m.mu.Lock()
	m.matches[id] = mt
	m.mu.Unlock()

	mt.Start()
	matchesActive.Inc()
	return id, nil
}

func (m *MatchManager) onEventFor(matchID string) func(match.Event) {
	return func(ev match.Event) {
		if m.hub != nil {
			m.hub.Broadcast(eventName(ev), ev)
		}
		if m.log != nil {
			if logged, ok := eventlog.FromMatchEvent(matchID, ev); ok {
				m.log.Emit(logged)
			}
		}
		if _, ok := ev.(match.MatchEnded); ok {
			m.retire(matchID)
		}
	}
}

func (m *MatchManager) retire(matchID string) {
	m.mu.Lock()
	delete(m.matches, matchID)
	m.mu.Unlock()
	matchesActive.Dec()
}

func eventName(ev match.Event) string {
	switch ev.(type) {
	case match.MatchStarted:
		return "matchStart"
	case match.StateUpdate:
		return "state"
	case match.MatchEnded:
		return "matchEnd"
	case match.HitOccurred:
		return "hit"
	case match.ProjectileDespawned:
		return "despawn"
	case match.Forfeited:
		return "forfeit"
	default:
		return "unknown"
	}
}

// Snapshot returns the current state of a running match.
func (m *MatchManager) Snapshot(id string) (match.Snapshot, error) {
	m.mu.RLock()
	mt, ok := m.matches[id]
	m.mu.RUnlock()
	if !ok {
		return match.Snapshot{}, ErrMatchNotFound
	}
	return mt.Snapshot(), nil
}

// Stop ends a running match early.
func (m *MatchManager) Stop(id string) error {
	m.mu.Lock()
	mt, ok := m.matches[id]
	m.mu.Unlock()
	if !ok {
		return ErrMatchNotFound
	}
	mt.Stop()
	m.retire(id)
	return nil
}

// Count returns how many matches are currently running.
func (m *MatchManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.matches)
}

// StopAll stops every running match, for graceful shutdown.
func (m *MatchManager) StopAll() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.matches))
	for id := range m.matches {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	for _, id := range ids {
		m.Stop(id)
	}
}

var matchesActive = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "tanks_matches_active",
	Help: "Currently running matches",
})

func init() {
	prometheus.MustRegister(matchesActive)
}
