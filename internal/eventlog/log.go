// Package eventlog is a bounded, rate-limited, asynchronous audit log for
// match events, adapted from the teacher's internal/game/event_log.go and
// event.go: a lock-free circular buffer absorbs bursts, a global and a
// per-match token-bucket limiter (golang.org/x/time/rate) cap sustained
// write pressure, and a background goroutine batches writes to disk so
// Emit never blocks the match tick goroutine that calls it.
package eventlog

import (
	"encoding/json"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// EventType names the kind of event recorded, mirroring the teacher's
// EventType enum but with this domain's own vocabulary.
type EventType uint8

const (
	EventUnknown EventType = iota
	EventMatchStart
	EventActionComplete
	EventHit
	EventDespawn
	EventForfeit
	EventMatchEnd
)

func (t EventType) String() string {
	switch t {
	case EventMatchStart:
		return "match_start"
	case EventActionComplete:
		return "action_complete"
	case EventHit:
		return "hit"
	case EventDespawn:
		return "despawn"
	case EventForfeit:
		return "forfeit"
	case EventMatchEnd:
		return "match_end"
	default:
		return "unknown"
	}
}

// EventVersion lets readers detect a future change to the payload shape.
const EventVersion = 1

// Event is one recorded entry. Payload is pre-marshaled JSON so Emit's hot
// path never reflects over the caller's own event struct.
type Event struct {
	Version   int             `json:"version"`
	Type      EventType       `json:"type"`
	Timestamp int64           `json:"ts"`
	Sequence  uint64          `json:"seq"`
	MatchID   string          `json:"match_id"`
	Slot      string          `json:"slot,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

const (
	bufferSize          = 1024
	maxEventsPerSec      = 10000
	maxEventsPerMatch    = 200
	batchFlushInterval   = 100 * time.Millisecond
	matchLimiterCleanup  = 5 * time.Minute
)

type matchLimiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Log is the bounded async event log itself.
type Log struct {
	buffer    [bufferSize]Event
	writeHead uint64 // atomic: next slot to write
	sequence  uint64 // atomic
	dropped   uint64 // atomic

	globalLimiter *rate.Limiter
	matchLimiters sync.Map // map[string]*matchLimiterEntry

	file     *os.File
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New builds a log. Start must be called before Emit will persist
// anything, but Emit is safe to call even before Start: such events are
// buffered in the ring and counted as written, and reach the file only
// once Start launches the writer.
func New() *Log {
	return &Log{
		globalLimiter: rate.NewLimiter(rate.Limit(maxEventsPerSec), maxEventsPerSec),
	}
}

// Start opens the output file and launches the writer and cleanup
// goroutines.
func (l *Log) Start(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	l.file = f
	l.stopChan = make(chan struct{})

	l.wg.Add(2)
	go l.writeLoop()
	go l.cleanupLoop()
	return nil
}

// Stop flushes any buffered events, stops the background goroutines, and
// closes the output file. Safe to call more than once.
func (l *Log) Stop() {
	l.stopOnce.Do(func() {
		if l.stopChan != nil {
			close(l.stopChan)
		}
	})
	l.wg.Wait()
	if l.file != nil {
		l.file.Close()
	}
}

// Emit records one event, subject to the global and per-match rate
// limits. Returns false if the event was dropped.
func (l *Log) Emit(e Event) bool {
	if !l.globalLimiter.Allow() {
		atomic.AddUint64(&l.dropped, 1)
		return false
	}
	if e.MatchID != "" && !l.matchLimiterFor(e.MatchID).Allow() {
		atomic.AddUint64(&l.dropped, 1)
		return false
	}

	e.Version = EventVersion
	e.Sequence = atomic.AddUint64(&l.sequence, 1)
	e.Timestamp = time.Now().UnixNano()

	idx := atomic.AddUint64(&l.writeHead, 1) - 1
	l.buffer[idx%bufferSize] = e
	return true
}

func (l *Log) matchLimiterFor(matchID string) *rate.Limiter {
	now := time.Now()
	if v, ok := l.matchLimiters.Load(matchID); ok {
		entry := v.(*matchLimiterEntry)
		entry.lastSeen = now
		return entry.limiter
	}
	entry := &matchLimiterEntry{
		limiter:  rate.NewLimiter(rate.Limit(maxEventsPerMatch), maxEventsPerMatch),
		lastSeen: now,
	}
	actual, _ := l.matchLimiters.LoadOrStore(matchID, entry)
	return actual.(*matchLimiterEntry).limiter
}

func (l *Log) writeLoop() {
	defer l.wg.Done()
	ticker := time.NewTicker(batchFlushInterval)
	defer ticker.Stop()

	var lastRead uint64
	flush := func() {
		writeHead := atomic.LoadUint64(&l.writeHead)
		for lastRead < writeHead {
			e := l.buffer[lastRead%bufferSize]
			lastRead++
			l.writeEvent(e)
		}
	}

	for {
		select {
		case <-l.stopChan:
			flush()
			return
		case <-ticker.C:
			flush()
		}
	}
}

func (l *Log) writeEvent(e Event) {
	if l.file == nil {
		return
	}
	b, err := json.Marshal(e)
	if err != nil {
		return
	}
	b = append(b, '\n')
	l.file.Write(b)
}

func (l *Log) cleanupLoop() {
	defer l.wg.Done()
	ticker := time.NewTicker(matchLimiterCleanup)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopChan:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-matchLimiterCleanup)
			l.matchLimiters.Range(func(k, v interface{}) bool {
				if v.(*matchLimiterEntry).lastSeen.Before(cutoff) {
					l.matchLimiters.Delete(k)
				}
				return true
			})
		}
	}
}

// Stats reports lifetime counters, for the /metrics and /health surfaces.
type Stats struct {
	Written uint64
	Dropped uint64
}

// Stats returns the log's lifetime write/drop counters.
func (l *Log) Stats() Stats {
	return Stats{
		Written: atomic.LoadUint64(&l.sequence),
		Dropped: atomic.LoadUint64(&l.dropped),
	}
}
