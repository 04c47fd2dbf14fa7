// Package timeout implements the 24ths-of-a-microsecond timeout wheel
// used to schedule housekeeping callbacks (in this module, the
// engine's active-sensing watchdogs) against the engine's running
// clock. Grounded on original_source/timo.h and timo.c, with the
// pointer-to-pointer-to-next queue splice rendered as pool-arena
// indices per spec §9.
package timeout

import "github.com/grahamseamans/seqcore/pool"

// Handle is a reference to one scheduled (or unscheduled) timeout.
type Handle = pool.Index

type timo struct {
	cb   func()
	val  uint32
	set  bool
	next pool.Index
}

// Pool is the shared arena a Wheel allocates timo records from.
type Pool = pool.Pool[timo]

// NewPool returns a timeout arena with room for capacity handles.
func NewPool(capacity int) *Pool { return pool.New[timo](capacity) }

// Wheel is a sorted queue of pending timeouts plus the running
// absolute time reference they are compared against.
type Wheel struct {
	p       *Pool
	queue   pool.Index
	abstime uint32
}

// New returns an empty wheel backed by p, with its clock at zero.
func New(p *Pool) *Wheel {
	return &Wheel{p: p, queue: pool.NoIndex}
}

// Abstime returns the wheel's current absolute time reference, in
// 24ths of a microsecond.
func (w *Wheel) Abstime() uint32 { return w.abstime }

// Alloc reserves a handle for cb without scheduling it. The handle
// must eventually be released with Free once it will never be added
// again.
func (w *Wheel) Alloc(cb func()) Handle {
	i := w.p.Acquire()
	t := w.p.Get(i)
	t.cb = cb
	t.set = false
	t.next = pool.NoIndex
	return i
}

// Free returns h's slot to the pool. h must not currently be set; Del
// it first if unsure.
func (w *Wheel) Free(h Handle) { w.p.Release(h) }

// Add schedules h to fire delta 24ths-of-a-microsecond from now. h
// must not already be scheduled.
func (w *Wheel) Add(h Handle, delta uint32) {
	t := w.p.Get(h)
	val := w.abstime + delta

	// Insertion keeps the queue sorted by val under wraparound-safe
	// signed-difference comparison: (*i).val - val > 0 means *i is
	// still further out than val, so the new entry goes before it.
	pp := &w.queue
	for *pp != pool.NoIndex {
		cur := w.p.Get(*pp)
		if int32(cur.val-val) > 0 {
			break
		}
		pp = &cur.next
	}
	t.set = true
	t.val = val
	t.next = *pp
	*pp = h
}

// Del unschedules h. It is safe to call on a handle that already
// expired or was never added.
func (w *Wheel) Del(h Handle) {
	pp := &w.queue
	for *pp != pool.NoIndex {
		if *pp == h {
			*pp = w.p.Get(h).next
			w.p.Get(h).set = false
			return
		}
		pp = &w.p.Get(*pp).next
	}
}

// Update advances the wheel's clock by delta 24ths-of-a-microsecond
// and runs every callback whose deadline has now passed, in deadline
// order. A callback may reschedule itself (or any other handle)
// during the call; Update observes the queue state as it stands after
// each callback returns.
func (w *Wheel) Update(delta uint32) {
	w.abstime += delta

	for w.queue != pool.NoIndex {
		head := w.p.Get(w.queue)
		if int32(head.val-w.abstime) > 0 {
			break
		}
		w.queue = head.next
		head.set = false
		head.cb()
	}
}

// IsSet reports whether h is currently scheduled.
func (w *Wheel) IsSet(h Handle) bool { return w.p.Get(h).set }
