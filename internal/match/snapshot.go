package match

import "sync/atomic"

// TankSnapshot is the externally visible slice of one tank's state.
type TankSnapshot struct {
	Slot       string
	Class      string
	X, Y       float64
	HeadingDeg float64
	HP         int
	Alive      bool
}

// ProjectileSnapshot is the externally visible slice of one projectile.
type ProjectileSnapshot struct {
	ID    uint64
	Owner string
	X, Y  float64
}

// Snapshot is the payload behind the throttled §6 "state" event: only what
// a viewer needs to render or audit a match, not the full simulation
// state (no in-flight action or busy-timer details).
type Snapshot struct {
	Sequence    uint64
	TickNumber  int64
	SimTime     float64
	Tanks       []TankSnapshot
	Projectiles []ProjectileSnapshot
}

// SnapshotPool is a triple-buffered, lock-free publish point, adapted from
// the teacher's internal/game/game_snapshot.go SnapshotPool: the match's
// single tick goroutine is the sole writer, any number of HTTP/WS handler
// goroutines may read the most recently published buffer, and steady
// state costs no allocation since each buffer's slices are reused
// (truncated to length 0, capacity kept) on every write.
type SnapshotPool struct {
	buffers  [3]Snapshot
	writeIdx uint32
	readIdx  uint32
	sequence uint64
}

// NewSnapshotPool preallocates all three buffers to the given capacity
// hints.
func NewSnapshotPool(maxTanks, maxProjectiles int) *SnapshotPool {
	p := &SnapshotPool{}
	for i := range p.buffers {
		p.buffers[i].Tanks = make([]TankSnapshot, 0, maxTanks)
		p.buffers[i].Projectiles = make([]ProjectileSnapshot, 0, maxProjectiles)
	}
	return p
}

// AcquireWrite returns the next scratch buffer to fill, guaranteed not to
// be the one currently exposed to readers.
func (p *SnapshotPool) AcquireWrite() *Snapshot {
	cur := atomic.LoadUint32(&p.writeIdx)
	readAt := atomic.LoadUint32(&p.readIdx)
	next := (cur + 1) % 3
	if next == readAt {
		next = (next + 1) % 3
	}

	buf := &p.buffers[next]
	buf.Tanks = buf.Tanks[:0]
	buf.Projectiles = buf.Projectiles[:0]
	p.sequence++
	buf.Sequence = p.sequence

	atomic.StoreUint32(&p.writeIdx, next)
	return buf
}

// PublishWrite exposes the buffer last returned by AcquireWrite to readers.
func (p *SnapshotPool) PublishWrite() {
	atomic.StoreUint32(&p.readIdx, atomic.LoadUint32(&p.writeIdx))
}

// AcquireRead returns a shallow copy of the most recently published
// snapshot. The contained slices must be treated as read-only.
func (p *SnapshotPool) AcquireRead() Snapshot {
	idx := atomic.LoadUint32(&p.readIdx)
	return p.buffers[idx]
}
