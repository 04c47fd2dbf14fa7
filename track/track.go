// Package track implements the delta-timed event list used for
// stored songs and runtime recording buffers: a pooled, doubly-linked
// list of seqev records terminated by an inline end-of-track
// sentinel. Grounded on original_source/track.h and track.c, with the
// "pointer to pointer to next" idiom replaced by pool-arena indices
// per spec §9.
package track

import (
	"github.com/grahamseamans/seqcore/event"
	"github.com/grahamseamans/seqcore/pool"
)

// Sentinel is the reserved index meaning "the track's own inline
// end-of-track record", never a real pool slot.
const Sentinel pool.Index = -2

// Seqev is one entry in a track: ticks of silence before it (Delta)
// plus the event itself, linked to its neighbors by pool index.
type Seqev struct {
	Delta int32
	Ev    event.Event
	Next  pool.Index
	Prev  pool.Index
}

// Pool is the shared arena all Tracks in one Engine allocate seqevs
// from.
type Pool = pool.Pool[Seqev]

// NewPool returns a seqev arena with room for capacity live records,
// sized per original_source/defs.h's MAXNSEQEVS for a whole-process
// pool, or smaller for a scoped one (e.g. a single recording buffer).
func NewPool(capacity int) *Pool { return pool.New[Seqev](capacity) }

// Track is a doubly-linked, pool-backed delta-timed event list.
type Track struct {
	p        *Pool
	first    pool.Index
	sentinel Seqev
}

// New returns an empty track backed by p.
func New(p *Pool) *Track {
	return &Track{p: p, first: Sentinel, sentinel: Seqev{Prev: Sentinel, Next: Sentinel}}
}

func (t *Track) node(i pool.Index) *Seqev {
	if i == Sentinel {
		return &t.sentinel
	}
	return t.p.Get(i)
}

// First returns the index of the first record, or Sentinel if empty.
func (t *Track) First() pool.Index { return t.first }

// IsEnd reports whether i is the end-of-track sentinel.
func (t *Track) IsEnd(i pool.Index) bool { return i == Sentinel }

// IsEmpty reports whether the track has no real records.
func (t *Track) IsEmpty() bool { return t.first == Sentinel }

// Next returns the record following i. The sentinel is the last record:
// its own Next field is rewritten whenever the head changes and does
// not name a successor, so callers stop at IsEnd instead of calling
// Next(Sentinel).
func (t *Track) Next(i pool.Index) pool.Index { return t.node(i).Next }

// Event returns the event stored at i.
func (t *Track) Event(i pool.Index) event.Event { return t.node(i).Ev }

// Delta returns the tick delta stored at i.
func (t *Track) Delta(i pool.Index) int32 { return t.node(i).Delta }

// SetEvent overwrites the event stored at i in place.
func (t *Track) SetEvent(i pool.Index, ev event.Event) { t.node(i).Ev = ev }

// SetDelta overwrites the tick delta stored at i in place, for callers
// reconstructing an exact delta-time layout (snapshot.RestoreTrack)
// rather than relying on InsertBefore's splice-point-inherits-delta
// convention.
func (t *Track) SetDelta(i pool.Index, delta int32) { t.node(i).Delta = delta }

// TailDelta returns the track's trailing silence: the sentinel's own
// delta, counted by NumTic but never visited by Next.
func (t *Track) TailDelta() int32 { return t.sentinel.Delta }

// SetTailDelta overwrites the track's trailing silence.
func (t *Track) SetTailDelta(delta int32) { t.sentinel.Delta = delta }

// NumTic returns the track's total tick length: the sum of every
// record's delta including the trailing sentinel delta.
func (t *Track) NumTic() int32 {
	total := int32(0)
	for i := t.first; i != Sentinel; i = t.node(i).Next {
		total += t.node(i).Delta
	}
	return total + t.sentinel.Delta
}

// NumEv returns the number of real (non-sentinel) records.
func (t *Track) NumEv() int {
	n := 0
	for i := t.first; i != Sentinel; i = t.node(i).Next {
		n++
	}
	return n
}

// InsertBefore allocates a new record holding ev and splices it
// immediately before position p (p == Sentinel appends at the end).
// The new record inherits p's current delta and p's delta is zeroed,
// per the §4.3 invariant.
func (t *Track) InsertBefore(p pool.Index, ev event.Event) pool.Index {
	idx := t.p.Acquire()
	n := t.p.Get(idx)
	target := t.node(p)

	n.Ev = ev
	n.Delta = target.Delta
	target.Delta = 0
	n.Prev = target.Prev
	n.Next = p

	t.node(target.Prev).Next = idx
	target.Prev = idx
	if p == t.first {
		t.first = idx
	}
	return idx
}

// Remove deletes the record at i (which must not be Sentinel), adding
// its delta to the following record's delta so total tick length is
// preserved.
func (t *Track) Remove(i pool.Index) {
	n := t.node(i)
	next := t.node(n.Next)
	next.Delta += n.Delta
	t.node(n.Prev).Next = n.Next
	next.Prev = n.Prev
	if t.first == i {
		t.first = n.Next
	}
	t.p.Release(i)
}

// Chomp trims the track's trailing silence to zero.
func (t *Track) Chomp() { t.sentinel.Delta = 0 }

// Shift adds delta ticks of leading silence, moving every event later
// in time without altering their relative spacing.
func (t *Track) Shift(delta int32) {
	t.node(t.first).Delta += delta
}

// Clear empties the track, releasing every record back to the pool.
func (t *Track) Clear() {
	for i := t.first; i != Sentinel; {
		next := t.node(i).Next
		t.p.Release(i)
		i = next
	}
	t.first = Sentinel
	t.sentinel = Seqev{Prev: Sentinel, Next: Sentinel}
}

// Swap exchanges the contents of a and b (including their inline
// sentinels) in place. Swap(a, b) twice is the identity.
func Swap(a, b *Track) {
	a.first, b.first = b.first, a.first
	a.sentinel, b.sentinel = b.sentinel, a.sentinel
}

// seek walks from the head and returns the first record whose
// absolute position exceeds pos, along with the absolute position of
// the record before it (0 at the head). If no real record lies beyond
// pos it returns Sentinel and the last record's position; the
// trailing sentinel delta is not counted.
func (t *Track) seek(pos int32) (at pool.Index, start int32) {
	cur := int32(0)
	i := t.first
	for i != Sentinel {
		n := t.node(i)
		if cur+n.Delta > pos {
			return i, cur
		}
		cur += n.Delta
		i = n.Next
	}
	return Sentinel, cur
}

// Merge interleaves src into dst by absolute tick position, consuming
// src (leaving it empty). Both tracks must share the same pool.
func Merge(dst, src *Track) {
	type item struct {
		idx pool.Index
		abs int32
	}
	var items []item
	abs := int32(0)
	for i := src.first; i != Sentinel; {
		n := src.node(i)
		abs += n.Delta
		next := n.Next
		items = append(items, item{i, abs})
		i = next
	}
	src.first = Sentinel
	src.sentinel = Seqev{Prev: Sentinel, Next: Sentinel}

	for _, it := range items {
		p, start := dst.seek(it.abs)
		target := dst.node(p)
		n := dst.node(it.idx)
		n.Delta = it.abs - start
		target.Delta -= n.Delta
		n.Prev = target.Prev
		n.Next = p
		dst.node(target.Prev).Next = it.idx
		target.Prev = it.idx
		if p == dst.first {
			dst.first = it.idx
		}
	}
}

// insertAt splices a new record holding ev so that it starts exactly
// pos ticks into the track, splitting whichever existing record
// currently spans that position. InsertBefore is the special case of
// this where pos already falls exactly on an existing record's start.
func (t *Track) insertAt(pos int32, ev event.Event) pool.Index {
	p, start := t.seek(pos)
	target := t.node(p)
	pad := pos - start
	target.Delta -= pad

	idx := t.p.Acquire()
	n := t.p.Get(idx)
	n.Ev = ev
	n.Delta = pad
	n.Prev = target.Prev
	n.Next = p
	t.node(target.Prev).Next = idx
	target.Prev = idx
	if p == t.first {
		t.first = idx
	}
	return idx
}

// Cut removes and returns, as a new track sharing t's pool, every
// record whose absolute start position lies in [start, start+length).
// Removed slots are relinked into the returned track rather than
// released and reacquired, so no event data is copied. The returned
// track's events keep their relative spacing, anchored so the first
// cut event starts at (its original absolute start − start).
func (t *Track) Cut(start, length int32) *Track {
	out := New(t.p)
	end := start + length
	pos := int32(0)
	lastOutPos := start

	i := t.first
	for i != Sentinel {
		n := t.node(i)
		evStart := pos + n.Delta
		next := n.Next
		if evStart >= start && evStart < end {
			// Unlink i from t without touching the pool: the
			// record's storage transfers ownership to out below.
			prevNode := t.node(n.Prev)
			nextNode := t.node(n.Next)
			nextNode.Delta += n.Delta
			prevNode.Next = n.Next
			nextNode.Prev = n.Prev
			if t.first == i {
				t.first = n.Next
			}

			n.Delta = evStart - lastOutPos
			last := out.node(out.sentinel.Prev)
			n.Prev = out.sentinel.Prev
			n.Next = Sentinel
			last.Next = i
			out.sentinel.Prev = i
			if out.first == Sentinel {
				out.first = i
			}
			lastOutPos = evStart
		} else {
			pos = evStart
		}
		i = next
	}
	return out
}

// Paste splices src into t starting at absolute tick start, consuming
// src (leaving it empty). Each src event is inserted via insertAt at
// start plus its position in src; events already in t keep their
// absolute positions and are not shifted later.
func (t *Track) Paste(start int32, src *Track) {
	pos := start
	for i := src.first; i != Sentinel; {
		n := src.node(i)
		pos += n.Delta
		ev := n.Ev
		next := n.Next
		t.insertAt(pos, ev)
		i = next
	}
	src.Clear()
}
