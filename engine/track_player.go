package engine

import (
	"github.com/grahamseamans/seqcore/event"
	"github.com/grahamseamans/seqcore/pool"
	"github.com/grahamseamans/seqcore/track"
)

// TrackPlayer walks a *track.Track forward one tick at a time, firing
// every event whose cumulative delta reaches zero on that tick. There
// is no seqptr.c in original_source to ground this against directly
// (the retrieved sources stop at track.c's storage layer); the delta-
// consumption loop below is the natural reading of track.c's own
// "ticks of silence before this event" invariant, driven once per
// Engine tick instead of track.c's own lack of a player at all.
type TrackPlayer struct {
	t     *track.Track
	cur   pool.Index
	wait  int32
	tic   uint32
	done  bool
}

// NewTrackPlayer returns a player positioned at the start of t.
func NewTrackPlayer(t *track.Track) *TrackPlayer {
	p := &TrackPlayer{t: t, cur: t.First()}
	if t.IsEnd(p.cur) {
		p.done = true
	} else {
		p.wait = t.Delta(p.cur)
	}
	return p
}

// Tic returns how many ticks this player has advanced since Rewind.
func (p *TrackPlayer) Tic() uint32 { return p.tic }

// Done reports whether playback has reached the end of the track.
func (p *TrackPlayer) Done() bool { return p.done }

// Stop halts playback immediately, as if the end had been reached.
func (p *TrackPlayer) Stop() { p.done = true }

// Rewind resets playback to the start of the track.
func (p *TrackPlayer) Rewind() {
	p.cur = p.t.First()
	p.tic = 0
	p.done = p.t.IsEnd(p.cur)
	if !p.done {
		p.wait = p.t.Delta(p.cur)
	}
}

// Advance consumes one tick of playback time and returns, in order,
// every event whose delta reached zero on this tick (several may
// chain with zero delta between them, all firing on the same tick).
func (p *TrackPlayer) Advance() []event.Event {
	if p.done {
		return nil
	}
	p.tic++
	var fired []event.Event
	for {
		if p.t.IsEnd(p.cur) {
			p.done = true
			return fired
		}
		if p.wait > 0 {
			p.wait--
			return fired
		}
		fired = append(fired, p.t.Event(p.cur))
		p.cur = p.t.Next(p.cur)
		if !p.t.IsEnd(p.cur) {
			p.wait = p.t.Delta(p.cur)
		}
	}
}
