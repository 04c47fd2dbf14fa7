package snapshot

import (
	"testing"

	"github.com/grahamseamans/seqcore/event"
	"github.com/grahamseamans/seqcore/track"
)

func TestCaptureRestoreTrackRoundTrips(t *testing.T) {
	pool := track.NewPool(16)
	tr := track.New(pool)
	tr.InsertBefore(track.Sentinel, event.Event{Cmd: event.CmdNoteOn, Dev: 0, Chan: 0, Val0: 60, Val1: 100})
	off := tr.InsertBefore(track.Sentinel, event.Event{Cmd: event.CmdNoteOff, Dev: 0, Chan: 0, Val0: 60, Val1: 64})
	tr.SetDelta(off, 24)
	tr.SetTailDelta(12)

	snap := CaptureTrack(tr)
	if len(snap.Events) != 2 || snap.Events[1].Delta != 24 || snap.TailDelta != 12 {
		t.Fatalf("unexpected capture: %+v", snap)
	}

	restored := RestoreTrack(pool, snap)
	if restored.NumTic() != tr.NumTic() {
		t.Fatalf("restored track length %d, want %d", restored.NumTic(), tr.NumTic())
	}
	if restored.NumEv() != 2 {
		t.Fatalf("expected 2 restored events, got %d", restored.NumEv())
	}
}

func TestSaveLoadRoundTrips(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	pool := track.NewPool(16)
	tr := track.New(pool)
	tr.InsertBefore(track.Sentinel, event.Event{Cmd: event.CmdNoteOn, Dev: 0, Chan: 0, Val0: 60, Val1: 100})

	snap := Snapshot{
		Transport: TransportSnapshot{TickLength: 500000, TicRate: 96},
		Tracks:    []TrackSnapshot{CaptureTrack(tr)},
	}
	if err := Save("myproject", snap); err != nil {
		t.Fatalf("Save: %v", err)
	}

	saves, err := ListSaves("myproject")
	if err != nil || len(saves) != 1 {
		t.Fatalf("ListSaves: %v, %d saves", err, len(saves))
	}

	loaded, err := Load("myproject", "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Transport.TickLength != 500000 || len(loaded.Tracks) != 1 {
		t.Fatalf("unexpected loaded snapshot: %+v", loaded)
	}
}
