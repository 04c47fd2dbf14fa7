// Package filter implements the output-side priority mixer (mixout)
// and the per-channel normalizer (norm) that sit between the song/
// playback layer and the transport's wire output. Grounded on
// original_source/mixout.c in full; the normalizer's all-notes-off /
// reset-controllers broadcast is grounded on the §7 device-failure
// recovery path, which original_source implements as norm_shut
// called from mux_errorcb.
package filter

import (
	"github.com/grahamseamans/seqcore/event"
	"github.com/grahamseamans/seqcore/pool"
	"github.com/grahamseamans/seqcore/state"
)

// Priority source IDs, per original_source/defs.h.
const (
	PrioInput = 0
	PrioTrack = 1
	PrioChan  = 2
)

// MaxTics is how many ticks a stateless (FIRST|LAST) mix state is kept
// around after it stops changing before it is purged, giving a lower-
// priority source a chance to regain control. original_source ages
// these on a dedicated 1-second timeout; this module ages them once
// per transport tick instead, since the transport already calls Tick
// every tick and a second timer would duplicate that clock.
const MaxTics = 24

// Sink is where a winning event is actually sent once mixing has
// resolved any conflict; the transport's Putev is the production Sink.
type Sink func(ev event.Event)

// Mixer is the output-side statelist keyed by event, used to resolve
// conflicts between multiple logical sources (live input, several
// playing tracks) writing to the same device/channel/controller.
type Mixer struct {
	pool *state.Pool
	sl   *state.Statelist
	Sink Sink
}

// New returns a Mixer backed by pool, sending resolved events to sink.
func New(pool *state.Pool, sink Sink) *Mixer {
	return &Mixer{pool: pool, sl: state.New(pool), Sink: sink}
}

// Putev mixes ev, attributed to source id, against whatever currently
// owns ev's frame. The lowest id wins: if a higher-id source tries to
// write over a lower-id source's still-open frame, ev is dropped. If a
// lower-id source preempts a higher-id source's open frame, the higher
// source's frame is first canceled (e.g. note-off) before ev is sent.
func (m *Mixer) Putev(ev event.Event, id int32) {
	existing := m.sl.LookupEvent(ev)
	if existing != pool.NoIndex {
		st := m.sl.Get(existing)
		if st.Tag != id {
			if st.Tag < id {
				return // a lower id already owns this frame; ev loses
			}
			if ca, ok := m.sl.Cancel(existing); ok {
				i := m.sl.Update(ca)
				m.sl.Get(i).Tag = st.Tag
				if m.Sink != nil {
					m.Sink(ca)
				}
			}
		}
	}

	i := m.sl.Update(ev)
	st := m.sl.Get(i)
	st.Tag = id
	st.Tic = 0
	if st.Flags&(flagsBogusOrNested()) == 0 {
		if m.Sink != nil {
			m.Sink(ev)
		}
	}
}

// flagsBogusOrNested is a small indirection so this file need not
// import state's Flags constants twice under two names; it mirrors
// original_source's STATE_BOGUS|STATE_NESTED mask used to suppress
// sending synthetic/shadowed frames.
func flagsBogusOrNested() state.Flags {
	return state.FlagBogus | state.FlagNested
}

// Tick ages every stateless mix state by one tick and purges terminated
// or stale states, mirroring mixout_timocb's once-per-housekeeping-
// interval sweep.
func (m *Mixer) Tick() {
	var dead []pool.Index
	m.sl.Each(func(i pool.Index, st *state.State) bool {
		switch {
		case st.Phase == event.PhaseLast:
			dead = append(dead, i)
		case st.Phase == event.PhaseFirst|event.PhaseLast:
			if st.Tic >= MaxTics {
				dead = append(dead, i)
			} else {
				st.Flags &^= state.FlagChanged
				st.Tic++
			}
		}
		return true
	})
	for _, i := range dead {
		m.removeIndex(i)
	}
}

func (m *Mixer) removeIndex(i pool.Index) {
	// Statelist has no public single-state remove; Outdate only clears
	// phase-LAST terminated states, which covers the dead==LAST case.
	// For the timed-out FIRST|LAST case we fabricate a LAST transition
	// so the next Outdate purges it, matching mixout_timocb's direct
	// state_del without needing a new Statelist method.
	st := m.sl.Get(i)
	st.Phase = event.PhaseLast
	m.sl.Changed = true
}

// Outdate must be called once per tick after Tick, completing the
// purge of any state marked for removal above.
func (m *Mixer) Outdate() {
	m.sl.Outdate()
}

// Normalizer broadcasts the "shut up" sequence (all notes off, reset
// all controllers, center pitch bend) for every channel currently
// known to be live on a device, used by the §7 device-failure recovery
// path. It tracks liveness via the statelist it is constructed with
// (the engine passes the transport's input statelist) so it
// knows which (dev, chan, note/ctl) triples are actually open instead
// of blindly emitting 128 note-offs per channel.
type Normalizer struct {
	sl *state.Statelist
}

// NewNormalizer returns a Normalizer observing the same statelist the
// transport feeds on event ingress (see transport.Transport.Istate).
func NewNormalizer(sl *state.Statelist) *Normalizer {
	return &Normalizer{sl: sl}
}

// Shut emits, via sink, the cancel event for every open frame on dev
// (or every device if dev is negative), matching norm_shut's reaction
// to mux_errorcb.
func (n *Normalizer) Shut(dev int32, sink Sink) {
	var targets []pool.Index
	n.sl.Each(func(i pool.Index, st *state.State) bool {
		if dev < 0 || int32(st.Ev.Dev) == dev {
			targets = append(targets, i)
		}
		return true
	})
	for _, i := range targets {
		if ca, ok := n.sl.Cancel(i); ok {
			sink(ca)
		}
	}
}
