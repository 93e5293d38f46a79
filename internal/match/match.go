// Package match wires together a world, its fixed-timestep driver, every
// player's TankAPI and runtime, and the action resolver into one running
// game (§4.K). It is intentionally thin: almost everything it does is
// delegate to internal/sim, internal/loop, internal/resolver,
// internal/tankapi and internal/runtime in the right order each tick.
package match

import (
	"math"
	"time"

	"tanks/internal/loop"
	"tanks/internal/resolver"
	"tanks/internal/runtime"
	"tanks/internal/sim"
	"tanks/internal/tankapi"
)

// Config describes one match to run.
type Config struct {
	ID        string
	Seed      int64
	Constants sim.Constants
	Players   map[string]sim.ClassTag   // slot -> class
	Programs  map[string]runtime.Program // slot -> player program
	Watchdog  time.Duration
	OnEvent   func(Event)
	OnLog     func(slot, msg string)
}

type forfeitNotice struct {
	slot   string
	reason error
}

// Match runs one game from start to finish. Construct with New, then call
// Start; Stop tears everything down early if needed (e.g. server
// shutdown).
type Match struct {
	id        string
	constants sim.Constants
	world     *sim.World

	commands chan tankapi.Command
	forfeits chan forfeitNotice
	registry *tankapi.PendingRegistry

	apis     map[string]*tankapi.TankAPI
	runtimes map[string]*runtime.Runtime

	driver       *loop.Driver
	snapshotPool *SnapshotPool
	tickCount    int64
	ended        bool

	onEvent func(Event)
}

// New builds a match's entire wiring but does not start it.
func New(cfg Config) *Match {
	world := sim.NewWorld(cfg.Seed, cfg.Constants, cfg.Players)

	m := &Match{
		id:           cfg.ID,
		constants:    cfg.Constants,
		world:        world,
		commands:     make(chan tankapi.Command, 4*len(world.SlotOrder)+4),
		forfeits:     make(chan forfeitNotice, len(world.SlotOrder)+1),
		registry:     tankapi.NewPendingRegistry(world.SlotOrder),
		apis:         make(map[string]*tankapi.TankAPI, len(world.SlotOrder)),
		runtimes:     make(map[string]*runtime.Runtime, len(world.SlotOrder)),
		snapshotPool: NewSnapshotPool(len(world.SlotOrder), len(world.SlotOrder)),
		onEvent:      cfg.OnEvent,
	}

	for _, slot := range world.SlotOrder {
		api := tankapi.New(slot, m.commands, cfg.OnLog)
		m.apis[slot] = api

		program := cfg.Programs[slot]
		slotCopy := slot
		rt := runtime.New(slot, program, api, cfg.Watchdog, func(s string, reason error) {
			// Called from the runtime's own watchdog goroutine — never
			// touch world state here, only hand off to the sim goroutine.
			m.forfeits <- forfeitNotice{slot: slotCopy, reason: reason}
		})
		m.runtimes[slot] = rt
	}

	m.driver = loop.New(cfg.Constants.TickRate, m.step, nil, m.stopRuntimes)
	m.driver.SetOnPanic(m.handlePanic)
	return m
}

// Start launches every player's runtime and the tick driver. Returns
// immediately; the match runs on its own goroutines until it concludes or
// Stop is called.
func (m *Match) Start() {
	m.emit(MatchStarted{Slots: append([]string(nil), m.world.SlotOrder...)})
	for _, slot := range m.world.SlotOrder {
		m.runtimes[slot].Start()
	}
	go m.driver.Run()
}

// Stop ends the match early: it stops the tick driver and every runtime.
// Safe to call after the match has already concluded on its own.
func (m *Match) Stop() {
	m.driver.Stop()
	m.stopRuntimes()
}

// stopRuntimes stops every player's runtime. Installed as the driver's
// onStop so it runs the moment the tick loop exits for any reason —
// including a natural MatchEnded, not just an explicit Stop() — leaving
// no runtime blocked on a pending action that will never resolve (§4.K).
// runtime.Stop is idempotent, so running this again from an explicit
// Stop() call afterward is harmless.
func (m *Match) stopRuntimes() {
	for _, rt := range m.runtimes {
		rt.Stop()
	}
}

// Snapshot returns the most recently published state snapshot. Safe to
// call from any goroutine.
func (m *Match) Snapshot() Snapshot {
	return m.snapshotPool.AcquireRead()
}

// handlePanic is the loop driver's onPanic hook: a panic inside sim.Step
// (a SimulationError) is caught once at the loop boundary and turned into
// the same synthetic match end a real step() would report, with no winner
// (§4.G, §7).
func (m *Match) handlePanic(recovered interface{}) {
	m.ended = true
	m.emit(MatchEnded{HasWinner: false, Reason: "error"})
}

func (m *Match) emit(ev Event) {
	if m.onEvent != nil {
		m.onEvent(ev)
	}
}

// step is the loop.StepFunc driving this match: it applies any commands
// and forfeits that arrived since the last tick, advances the simulation
// exactly once, resolves completed actions, reacts to what happened, and
// reports whether the match is now over.
func (m *Match) step() ([]interface{}, bool) {
	m.drainForfeits()
	m.drainCommands()

	events := sim.Step(m.world)
	resolver.Resolve(events, m.registry)
	m.handleEvents(events)

	m.tickCount++
	if m.dueForSnapshot() {
		m.publishSnapshot()
	}

	return nil, m.ended
}

func (m *Match) drainForfeits() {
	for {
		select {
		case f := <-m.forfeits:
			if sim.Kill(m.world, f.slot) {
				m.emit(Forfeited{Slot: f.slot, Reason: f.reason.Error()})
				m.retireTank(f.slot)
			}
		default:
			return
		}
	}
}

func (m *Match) drainCommands() {
	for {
		select {
		case cmd := <-m.commands:
			m.applyCommand(cmd)
		default:
			return
		}
	}
}

func (m *Match) applyCommand(cmd tankapi.Command) {
	switch cmd.Kind {
	case sim.ActionShoot:
		cmd.Reply <- tankapi.Completion{Accepted: sim.Shoot(m.world, cmd.Slot)}
		return
	case sim.ActionRandom:
		cmd.Reply <- tankapi.Completion{Accepted: true, RandomResult: m.world.RNG.Float64()}
		return
	}

	var accepted bool
	switch cmd.Kind {
	case sim.ActionTurnLeft:
		accepted = sim.TurnLeft(m.world, cmd.Slot, cmd.Degrees)
	case sim.ActionTurnRight:
		accepted = sim.TurnRight(m.world, cmd.Slot, cmd.Degrees)
	case sim.ActionMoveForward:
		accepted = sim.MoveForward(m.world, cmd.Slot)
	case sim.ActionMoveBackward:
		accepted = sim.MoveBackward(m.world, cmd.Slot)
	case sim.ActionScan:
		accepted = sim.Scan(m.world, cmd.Slot, cmd.ADeg, cmd.BDeg)
	}

	if accepted {
		m.registry.Put(cmd.Slot, cmd.Reply)
	} else {
		cmd.Reply <- tankapi.Completion{Accepted: false}
	}
}

func (m *Match) handleEvents(events []sim.Event) {
	for _, ev := range events {
		switch e := ev.(type) {
		case sim.HitEvent:
			m.emit(HitOccurred{Owner: e.Owner, Target: e.Target, Damage: e.Damage})
			if !m.world.Tanks[e.Target].Alive() {
				m.retireTank(e.Target)
			}
		case sim.DespawnEvent:
			m.emit(ProjectileDespawned{Owner: e.Owner, Reason: e.Reason})
		case sim.MatchEndEvent:
			m.ended = true
			m.emit(MatchEnded{Winner: e.Winner, HasWinner: e.HasWinner, Reason: e.Reason})
		}
	}
}

// retireTank handles a tank that just stopped being alive, whether from
// combat or a forfeit: any program blocked on a pending action is woken
// with a negative result instead of hanging forever (P10), and its
// runtime is stopped so it makes no further TankAPI calls.
func (m *Match) retireTank(slot string) {
	if reply, ok := m.registry.Take(slot); ok {
		reply <- tankapi.Completion{Accepted: false}
	}
	if rt, ok := m.runtimes[slot]; ok {
		rt.Stop()
	}
}

func (m *Match) dueForSnapshot() bool {
	interval := int64(math.Round(float64(m.constants.TickRate) / m.constants.SnapshotRate))
	if interval < 1 {
		interval = 1
	}
	return m.tickCount%interval == 0
}

func (m *Match) publishSnapshot() {
	buf := m.snapshotPool.AcquireWrite()
	buf.TickNumber = m.tickCount
	buf.SimTime = m.world.T

	for _, slot := range m.world.SlotOrder {
		t := m.world.Tanks[slot]
		buf.Tanks = append(buf.Tanks, TankSnapshot{
			Slot:       slot,
			Class:      string(t.Class),
			X:          t.X,
			Y:          t.Y,
			HeadingDeg: t.HeadingDeg,
			HP:         t.HP,
			Alive:      t.Alive(),
		})
	}
	for _, id := range m.world.ProjectileOrder {
		p := m.world.Projectiles[id]
		buf.Projectiles = append(buf.Projectiles, ProjectileSnapshot{
			ID: uint64(id), Owner: p.Owner, X: p.X, Y: p.Y,
		})
	}

	m.snapshotPool.PublishWrite()
	m.emit(StateUpdate{Snapshot: *buf})
}
