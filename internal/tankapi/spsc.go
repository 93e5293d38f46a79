package tankapi

import (
	"sync/atomic"
)

// Mailbox is a capacity-1 single-producer/single-consumer slot, adapted from
// the teacher's lock-free SPSC ring buffer. It holds at most one pending
// completion callback: the action starter (D) is the sole producer, the
// resolver (H) is the sole consumer. Unlike a buffered channel, Take leaves
// the slot observably empty in the same atomic step it reads the value,
// which is what lets a callback invoked from Take synchronously re-arm the
// mailbox (§4.H.2: "detach ... before calling it").
type Mailbox[T any] struct {
	full uint32 // atomic: 1 if a value is present
	val  T
}

// Put stores a value, overwriting any value not yet taken. Returns false if
// it overwrote a pending value (should not happen for well-formed callers,
// since each timed action clears the mailbox before starting a new one).
func (m *Mailbox[T]) Put(v T) bool {
	overwrote := atomic.SwapUint32(&m.full, 1) == 1
	m.val = v
	return !overwrote
}

// Take removes and returns the pending value, if any.
func (m *Mailbox[T]) Take() (T, bool) {
	var zero T
	if !atomic.CompareAndSwapUint32(&m.full, 1, 0) {
		return zero, false
	}
	v := m.val
	m.val = zero
	return v, true
}

// Clear discards any pending value without returning it.
func (m *Mailbox[T]) Clear() {
	atomic.StoreUint32(&m.full, 0)
	var zero T
	m.val = zero
}

// Peek reports whether a value is currently pending, without consuming it.
func (m *Mailbox[T]) Peek() bool {
	return atomic.LoadUint32(&m.full) == 1
}
