// Package state implements the statelist frame tracker: the running
// projection of "what is currently sounding / what value does each
// controller hold" for an event stream. Grounded on
// original_source/state.h and state.c, with the C "pool + singly
// linked most-recently-used list" rendered as a pool-arena index list
// per spec §9.
package state

import (
	"github.com/grahamseamans/seqcore/event"
	"github.com/grahamseamans/seqcore/pool"
)

// Flags mirrors original_source/state.h's STATE_* bits.
type Flags uint8

const (
	FlagNew     Flags = 1 << 0 // just created this update
	FlagChanged Flags = 1 << 1 // written during the current tick
	FlagBogus   Flags = 1 << 2 // frame started in mid-stream (NEXT/LAST with no prior FIRST)
	FlagNested  Flags = 1 << 3 // a new FIRST arrived while an identical frame was open
)

// State is the live record of one open or stateless frame.
type State struct {
	Ev    event.Event
	Phase event.Phase
	Flags Flags
	Tag   int32  // scratch for higher layers (e.g. mixout source id)
	Tic   uint32 // scratch tick counter (e.g. mixout housekeeping)
	Next  pool.Index
}

// Pool is the shared arena Statelists allocate State records from.
type Pool = pool.Pool[State]

// NewPool returns a state arena with room for capacity live frames,
// sized per original_source/defs.h's MAXNSTATES for a whole-process
// pool, smaller for a scoped one.
func NewPool(capacity int) *Pool { return pool.New[State](capacity) }

// Statelist is a singly-linked, most-recently-used-ordered list of
// States backed by a shared Pool.
type Statelist struct {
	p       *Pool
	head    pool.Index
	Changed bool
}

// New returns an empty statelist backed by p.
func New(p *Pool) *Statelist {
	return &Statelist{p: p, head: pool.NoIndex}
}

// Head returns the most-recently-touched state's index, or NoIndex.
func (sl *Statelist) Head() pool.Index { return sl.head }

// Get returns a pointer to the state at i.
func (sl *Statelist) Get(i pool.Index) *State { return sl.p.Get(i) }

// Each walks the list from most- to least-recently-used, calling fn
// for each state until fn returns false.
func (sl *Statelist) Each(fn func(i pool.Index, st *State) bool) {
	for i := sl.head; i != pool.NoIndex; {
		st := sl.p.Get(i)
		next := st.Next
		if !fn(i, st) {
			return
		}
		i = next
	}
}

func (sl *Statelist) findPred(i pool.Index) pool.Index {
	if sl.head == i {
		return pool.NoIndex
	}
	for p := sl.head; p != pool.NoIndex; p = sl.p.Get(p).Next {
		if sl.p.Get(p).Next == i {
			return p
		}
	}
	return pool.NoIndex
}

func (sl *Statelist) unlink(i pool.Index) {
	if sl.head == i {
		sl.head = sl.p.Get(i).Next
		return
	}
	pred := sl.findPred(i)
	sl.p.Get(pred).Next = sl.p.Get(i).Next
}

func (sl *Statelist) remove(i pool.Index) {
	sl.unlink(i)
	sl.p.Release(i)
}

func (sl *Statelist) moveToFront(i pool.Index) {
	if sl.head == i {
		return
	}
	sl.unlink(i)
	sl.p.Get(i).Next = sl.head
	sl.head = i
}

func (sl *Statelist) allocHead(ev event.Event, phase event.Phase, flags Flags) pool.Index {
	idx := sl.p.Acquire()
	st := sl.p.Get(idx)
	st.Ev = ev
	st.Phase = phase
	st.Flags = flags
	st.Next = sl.head
	sl.head = idx
	return idx
}

// Lookup returns the first state whose event-key matches key, or
// NoIndex.
func (sl *Statelist) Lookup(key event.Key) pool.Index {
	for i := sl.head; i != pool.NoIndex; i = sl.p.Get(i).Next {
		if event.KeyOf(sl.p.Get(i).Ev) == key {
			return i
		}
	}
	return pool.NoIndex
}

// LookupEvent is a convenience wrapper computing ev's key first.
func (sl *Statelist) LookupEvent(ev event.Event) pool.Index {
	return sl.Lookup(event.KeyOf(ev))
}

// droppable reports whether an existing match should be discarded and
// treated as "no match" before classifying the incoming event: either
// it is a terminated frame (phase exactly LAST, awaiting outdate) or
// it is a leftover synthetic BOGUS frame, which is always disposable
// on next contact rather than extended.
func droppable(st *State) bool {
	return st.Phase == event.PhaseLast || st.Flags&FlagBogus != 0
}

// Update is the central algorithm: classify ev's phase, find or
// allocate the matching state, and move it to the head of the list.
// Returns the index of the (possibly new) state holding ev.
func (sl *Statelist) Update(raw event.Event) pool.Index {
	ev := raw.Normalize()
	phase := ev.Phase()
	key := event.KeyOf(ev)

	existing := sl.Lookup(key)
	if existing != pool.NoIndex && droppable(sl.p.Get(existing)) {
		sl.remove(existing)
		existing = pool.NoIndex
	}
	sl.Changed = true

	switch phase {
	case event.PhaseFirst:
		if existing != pool.NoIndex {
			sl.p.Get(existing).Flags |= FlagNested
		}
		return sl.allocHead(ev, event.PhaseFirst, FlagNew)

	case event.PhaseNext:
		if existing == pool.NoIndex {
			return sl.allocHead(ev, event.PhaseFirst, FlagNew|FlagBogus)
		}
		st := sl.p.Get(existing)
		st.Ev = ev
		st.Flags = (st.Flags &^ FlagNew) | FlagChanged
		sl.moveToFront(existing)
		return existing

	case event.PhaseLast:
		if existing == pool.NoIndex {
			return sl.allocHead(ev, event.PhaseFirst|event.PhaseLast, FlagNew|FlagBogus)
		}
		st := sl.p.Get(existing)
		st.Ev = ev
		st.Phase = event.PhaseLast
		st.Flags = (st.Flags &^ FlagNew) | FlagChanged
		sl.moveToFront(existing)
		return existing

	case event.PhaseFirst | event.PhaseLast:
		if existing != pool.NoIndex {
			st := sl.p.Get(existing)
			st.Ev = ev
			st.Phase = event.PhaseFirst | event.PhaseLast
			st.Flags = (st.Flags &^ (FlagNew | FlagBogus | FlagNested)) | FlagChanged
			sl.moveToFront(existing)
			return existing
		}
		return sl.allocHead(ev, event.PhaseFirst|event.PhaseLast, FlagNew)

	case event.PhaseFirst | event.PhaseNext:
		if existing != pool.NoIndex {
			st := sl.p.Get(existing)
			if st.Flags&FlagNew != 0 {
				st.Ev = ev
				st.Phase = event.PhaseFirst
				st.Flags |= FlagChanged
			} else {
				st.Ev = ev
				st.Phase = event.PhaseNext
				st.Flags = (st.Flags &^ FlagNew) | FlagChanged
			}
			sl.moveToFront(existing)
			return existing
		}
		return sl.allocHead(ev, event.PhaseFirst, FlagNew)
	}

	return pool.NoIndex
}

// Outdate is called once per tick: if nothing changed, it is a no-op.
// Otherwise it clears CHANGED on every state and deletes those whose
// phase is exactly LAST (their frame is done); FIRST|LAST (stateless)
// states are kept so their current value stays queryable.
func (sl *Statelist) Outdate() {
	if !sl.Changed {
		return
	}
	sl.Changed = false

	var dead []pool.Index
	sl.Each(func(i pool.Index, st *State) bool {
		st.Flags &^= FlagChanged
		if st.Phase == event.PhaseLast {
			dead = append(dead, i)
		}
		return true
	})
	for _, i := range dead {
		sl.remove(i)
	}
}

// Cancel returns the event that would undo the open frame at i, and
// true if one exists. Returns false if the frame is already
// terminated or has no defined cancel form.
func (sl *Statelist) Cancel(i pool.Index) (event.Event, bool) {
	st := sl.p.Get(i)
	if st.Phase == event.PhaseLast {
		return event.Event{}, false
	}
	ev := st.Ev
	switch ev.Cmd {
	case event.CmdNoteOn, event.CmdKeyAftertouch:
		return event.Event{Cmd: event.CmdNoteOff, Dev: ev.Dev, Chan: ev.Chan, Val0: ev.Val0, Val1: event.NoteOffDefaultVelocity}, true
	case event.CmdChanAftertouch:
		return event.Event{Cmd: event.CmdChanAftertouch, Dev: ev.Dev, Chan: ev.Chan, Val0: event.CatDefaultValue}, true
	case event.CmdXCtl:
		return event.Event{Cmd: event.CmdXCtl, Dev: ev.Dev, Chan: ev.Chan, Val0: ev.Val0, Val1: event.CtlDefaultValue}, true
	case event.CmdCtl:
		return event.Event{Cmd: event.CmdCtl, Dev: ev.Dev, Chan: ev.Chan, Val0: ev.Val0, Val1: event.CtlDefaultValue}, true
	case event.CmdBend:
		return event.Event{Cmd: event.CmdBend, Dev: ev.Dev, Chan: ev.Chan, Val1: event.BendDefaultValue}, true
	default:
		return event.Event{}, false
	}
}

// Restore returns the event that re-establishes frame i's last-known
// value for a late listener, and true if one exists. Notes, BOGUS
// frames, and terminated non-stateless frames have none.
func (sl *Statelist) Restore(i pool.Index) (event.Event, bool) {
	st := sl.p.Get(i)
	if st.Ev.IsNote() {
		return event.Event{}, false
	}
	if st.Flags&FlagBogus != 0 {
		return event.Event{}, false
	}
	if st.Phase == event.PhaseLast {
		return event.Event{}, false
	}
	return st.Ev, true
}

// Dup returns a new, independent statelist backed by dstPool holding
// a copy of every state in src, in the same most-recently-used order.
func Dup(dstPool *Pool, src *Statelist) *Statelist {
	dst := New(dstPool)

	type item struct {
		ev    event.Event
		phase event.Phase
		flags Flags
	}
	var items []item
	src.Each(func(_ pool.Index, st *State) bool {
		items = append(items, item{st.Ev, st.Phase, st.Flags})
		return true
	})
	for i := len(items) - 1; i >= 0; i-- {
		dst.allocHead(items[i].ev, items[i].phase, items[i].flags)
	}
	dst.Changed = src.Changed
	return dst
}
