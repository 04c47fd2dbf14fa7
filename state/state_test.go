package state

import (
	"testing"

	"github.com/grahamseamans/seqcore/event"
)

func TestNoteOnOffRoundTrip(t *testing.T) {
	p := NewPool(16)
	sl := New(p)

	on := event.Event{Cmd: event.CmdNoteOn, Chan: 0, Val0: 60, Val1: 100}
	i := sl.Update(on)
	st := sl.Get(i)
	if st.Phase != event.PhaseFirst || st.Flags&FlagNew == 0 {
		t.Fatalf("note-on should open a NEW FIRST frame, got phase=%v flags=%v", st.Phase, st.Flags)
	}

	off := event.Event{Cmd: event.CmdNoteOff, Chan: 0, Val0: 60, Val1: 0}
	j := sl.Update(off)
	if j != i {
		t.Fatalf("note-off should match the same frame as the note-on")
	}
	st = sl.Get(j)
	if st.Phase != event.PhaseLast {
		t.Fatalf("note-off should terminate the frame, got phase=%v", st.Phase)
	}

	sl.Outdate()
	if sl.Lookup(event.KeyOf(on)) != -1 {
		t.Fatalf("outdate should delete the terminated frame")
	}
}

// Scenario 2: a standalone NOTE_OFF on an empty statelist synthesizes
// a BOGUS, NEW, FIRST|LAST frame instead of being dropped.
func TestBogusStandaloneNoteOff(t *testing.T) {
	p := NewPool(16)
	sl := New(p)

	off := event.Event{Cmd: event.CmdNoteOff, Chan: 0, Val0: 60, Val1: 0}
	i := sl.Update(off)
	st := sl.Get(i)
	if st.Flags&FlagBogus == 0 || st.Flags&FlagNew == 0 {
		t.Fatalf("expected BOGUS|NEW flags, got %v", st.Flags)
	}
	if st.Phase != event.PhaseFirst|event.PhaseLast {
		t.Fatalf("expected synthesized phase FIRST|LAST, got %v", st.Phase)
	}
}

func TestKeyAftertouchWithNoPriorNoteOnIsBogusAndStaysOpen(t *testing.T) {
	p := NewPool(16)
	sl := New(p)

	kat := event.Event{Cmd: event.CmdKeyAftertouch, Chan: 0, Val0: 60, Val1: 80}
	i := sl.Update(kat)
	st := sl.Get(i)
	if st.Phase != event.PhaseFirst {
		t.Fatalf("bogus continuation should synthesize an open FIRST frame, got %v", st.Phase)
	}
	if st.Flags&FlagBogus == 0 {
		t.Fatalf("expected BOGUS flag")
	}

	// A following note-off drops the bogus frame rather than closing it,
	// and, with no open frame left, synthesizes a new BOGUS FIRST|LAST one.
	off := event.Event{Cmd: event.CmdNoteOff, Chan: 0, Val0: 60, Val1: 0}
	j := sl.Update(off)
	if st = sl.Get(j); st.Phase != event.PhaseFirst|event.PhaseLast || st.Flags&FlagBogus == 0 {
		t.Fatalf("note-off on a bogus frame should give a BOGUS FIRST|LAST frame, got phase=%v flags=%v", st.Phase, st.Flags)
	}
}

func TestStatelessControllerReplacesInPlace(t *testing.T) {
	p := NewPool(16)
	sl := New(p)

	first := event.Event{Cmd: event.CmdCtl, Chan: 0, Val0: 7, Val1: 10}
	i := sl.Update(first)

	second := event.Event{Cmd: event.CmdCtl, Chan: 0, Val0: 7, Val1: 20}
	j := sl.Update(second)
	if j != i {
		t.Fatalf("a later value for the same controller should reuse the same frame")
	}
	if sl.Get(j).Ev.Val1 != 20 {
		t.Fatalf("expected the frame's event to be replaced with the latest value")
	}

	sl.Outdate()
	// stateless (FIRST|LAST) frames survive outdate so they stay queryable.
	if sl.Lookup(event.KeyOf(first)) == -1 {
		t.Fatalf("stateless frame should not be deleted by outdate")
	}
}

func TestNestedNoteOnFlagsPriorFrame(t *testing.T) {
	p := NewPool(16)
	sl := New(p)

	on1 := event.Event{Cmd: event.CmdNoteOn, Chan: 0, Val0: 60, Val1: 100}
	i := sl.Update(on1)

	on2 := event.Event{Cmd: event.CmdNoteOn, Chan: 0, Val0: 60, Val1: 90}
	j := sl.Update(on2)

	if sl.Get(i).Flags&FlagNested == 0 {
		t.Fatalf("the first frame should be flagged NESTED once retriggered")
	}
	if i == j {
		t.Fatalf("a retrigger should allocate a fresh head frame, not reuse the old one")
	}
}

func TestCancelAndRestore(t *testing.T) {
	p := NewPool(16)
	sl := New(p)

	on := event.Event{Cmd: event.CmdNoteOn, Chan: 0, Val0: 60, Val1: 100}
	i := sl.Update(on)
	cancel, ok := sl.Cancel(i)
	if !ok || cancel.Cmd != event.CmdNoteOff || cancel.Val0 != 60 {
		t.Fatalf("expected a note-off cancel event, got %+v ok=%v", cancel, ok)
	}

	ctl := event.Event{Cmd: event.CmdCtl, Chan: 0, Val0: 7, Val1: 64}
	j := sl.Update(ctl)
	restored, ok := sl.Restore(j)
	if !ok || restored.Val1 != 64 {
		t.Fatalf("expected the controller's current value to be restorable, got %+v ok=%v", restored, ok)
	}

	if _, ok := sl.Restore(i); ok {
		t.Fatalf("notes should never be restorable")
	}
}

func TestDupPreservesOrderAndFields(t *testing.T) {
	srcPool := NewPool(16)
	src := New(srcPool)
	src.Update(event.Event{Cmd: event.CmdNoteOn, Chan: 0, Val0: 60, Val1: 100})
	src.Update(event.Event{Cmd: event.CmdCtl, Chan: 0, Val0: 7, Val1: 10})
	src.Update(event.Event{Cmd: event.CmdNoteOn, Chan: 0, Val0: 64, Val1: 80})

	dstPool := NewPool(16)
	dst := Dup(dstPool, src)

	// Walk both lists head to tail and compare.
	si, di := src.Head(), dst.Head()
	for si != -1 && di != -1 {
		ss, ds := src.Get(si), dst.Get(di)
		if ss.Ev.Cmd != ds.Ev.Cmd || ss.Ev.Val0 != ds.Ev.Val0 || ss.Phase != ds.Phase {
			t.Fatalf("dup mismatch at node: src=%+v dst=%+v", ss, ds)
		}
		si, di = ss.Next, ds.Next
	}
	if si != di {
		t.Fatalf("dup produced a different length list")
	}
}
