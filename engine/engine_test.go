package engine

import (
	"testing"

	"github.com/grahamseamans/seqcore/device"
	"github.com/grahamseamans/seqcore/event"
	"github.com/grahamseamans/seqcore/filter"
	"github.com/grahamseamans/seqcore/track"
	"github.com/grahamseamans/seqcore/transport"
)

type fakeBackend struct {
	handler func(raw []byte)
	sent    [][]byte
}

func (f *fakeBackend) Open(handler func(raw []byte)) error { f.handler = handler; return nil }
func (f *fakeBackend) Send(raw []byte) error {
	f.sent = append(f.sent, append([]byte{}, raw...))
	return nil
}
func (f *fakeBackend) Close() error { return nil }
func (f *fakeBackend) deliver(raw []byte) {
	if f.handler != nil {
		f.handler(raw)
	}
}

func newTestEngine(t *testing.T) (*Engine, *fakeBackend) {
	t.Helper()
	b := &fakeBackend{}
	d := device.New(b, 0, device.ModeIn|device.ModeOut)
	e := New([]*device.Device{d})
	if err := e.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	return e, b
}

// TestEngineTrackPlaybackReachesDevice exercises the full chain: a
// registered track's events advance on the transport's tick callback,
// mix into the output at PrioTrack, update Ostate, and reach the
// device's backend as encoded bytes.
func TestEngineTrackPlaybackReachesDevice(t *testing.T) {
	e, b := newTestEngine(t)

	tr := track.New(e.TrackPool)
	tr.InsertBefore(track.Sentinel, event.Event{Cmd: event.CmdNoteOn, Dev: 0, Chan: 0, Val0: 60, Val1: 100})
	tr.InsertBefore(track.Sentinel, event.Event{Cmd: event.CmdNoteOff, Dev: 0, Chan: 0, Val0: 60, Val1: 64})

	e.AddTrack(tr)
	e.Transport.StartReq(false)
	e.Transport.TimerCB(transport.StartDelay) // first tick: fires both zero-delta events

	if len(b.sent) != 2 {
		t.Fatalf("expected note-on and note-off to reach the device, got %d writes: %v", len(b.sent), b.sent)
	}
	if b.sent[0][0]&0xF0 != 0x90 {
		t.Fatalf("expected first write to be a note-on, got %v", b.sent[0])
	}
}

// TestEngineTrackPlayerRemovedAtEnd verifies a finished TrackPlayer is
// dropped from the engine's active player list so it does not keep
// being advanced every tick forever.
func TestEngineTrackPlayerRemovedAtEnd(t *testing.T) {
	e, _ := newTestEngine(t)

	tr := track.New(e.TrackPool)
	tr.InsertBefore(track.Sentinel, event.Event{Cmd: event.CmdNoteOn, Dev: 0, Chan: 0, Val0: 60, Val1: 100})

	e.AddTrack(tr)
	if len(e.players) != 1 {
		t.Fatalf("expected one registered player, got %d", len(e.players))
	}

	e.Transport.StartReq(false)
	e.Transport.TimerCB(transport.StartDelay)

	if len(e.players) != 0 {
		t.Fatalf("expected the finished player to be dropped, got %d still registered", len(e.players))
	}
}

// TestEngineLiveInputPreemptsTrack exercises the mixer's lowest-id-
// wins rule end to end: a track's controller value (PrioTrack) on a
// channel is canceled the instant live input (PrioInput) writes the
// same controller, since PrioInput < PrioTrack.
func TestEngineLiveInputPreemptsTrack(t *testing.T) {
	e, _ := newTestEngine(t)

	e.Mixer.Putev(event.Event{Cmd: event.CmdCtl, Dev: 0, Chan: 0, Val0: 7, Val1: 100}, filter.PrioTrack)
	e.Mixer.Putev(event.Event{Cmd: event.CmdCtl, Dev: 0, Chan: 0, Val0: 7, Val1: 40}, filter.PrioInput)

	i := e.Transport.Ostate.LookupEvent(event.Event{Cmd: event.CmdCtl, Dev: 0, Chan: 0, Val0: 7})
	st := e.Transport.Ostate.Get(i)
	if st.Ev.Val1 != 40 {
		t.Fatalf("expected live input's value to win, got %d", st.Ev.Val1)
	}
}

// TestEngineTrackTempoEventChangesTempoWithoutPanic plays a track
// containing a CmdTempo event alongside a voice event, verifying that
// a non-voice/non-sysex command reaches Transport.ChgTempo instead of
// Transport.Putev (which panics on tempo and other non-device
// events) and that its value is recorded for query via Ostate.
func TestEngineTrackTempoEventChangesTempoWithoutPanic(t *testing.T) {
	e, _ := newTestEngine(t)

	const newTickLength = 300000
	tr := track.New(e.TrackPool)
	tr.InsertBefore(track.Sentinel, event.Event{Cmd: event.CmdTempo, Val0: newTickLength})
	tr.InsertBefore(track.Sentinel, event.Event{Cmd: event.CmdNoteOn, Dev: 0, Chan: 0, Val0: 60, Val1: 100})

	e.AddTrack(tr)
	e.Transport.StartReq(false)
	e.Transport.TimerCB(transport.StartDelay) // must not panic on the tempo event

	if e.Transport.TickLength != newTickLength {
		t.Fatalf("expected tempo event to set TickLength to %d, got %d", newTickLength, e.Transport.TickLength)
	}

	i := e.Transport.Ostate.LookupEvent(event.Event{Cmd: event.CmdTempo})
	st := e.Transport.Ostate.Get(i)
	if st.Ev.Val0 != newTickLength {
		t.Fatalf("expected tempo's current value to be queryable via Ostate, got %d", st.Ev.Val0)
	}
}

// TestArmSenseInTimesOutDevice verifies the inbound sensing watchdog
// reports the device as failed once SenseTimeout elapses with no
// inbound traffic at all.
func TestArmSenseInTimesOutDevice(t *testing.T) {
	e, _ := newTestEngine(t)
	d := e.Device(0)

	e.armSenseIn(0)
	e.Wheel.Update(SenseTimeout - 1)
	if d.Failed() {
		t.Fatalf("device reported failed before the sensing timeout elapsed")
	}
	e.Wheel.Update(1)
	if !d.Failed() {
		t.Fatalf("expected device to be marked failed once the sensing timeout elapsed")
	}
}

// TestHandleInboundEventRearmsSensing verifies that any inbound event,
// not just an explicit active-sensing byte, resets the watchdog.
func TestHandleInboundEventRearmsSensing(t *testing.T) {
	e, _ := newTestEngine(t)
	d := e.Device(0)

	e.armSenseIn(0)
	e.Wheel.Update(SenseTimeout - 1)
	e.handleInboundEvent(0, event.Event{Cmd: event.CmdCtl, Dev: 0, Chan: 0, Val0: 1, Val1: 1})
	e.Wheel.Update(SenseTimeout - 1)
	if d.Failed() {
		t.Fatalf("expected the rearmed watchdog to survive another near-timeout window")
	}
}
