package transport

import (
	"testing"

	"github.com/grahamseamans/seqcore/state"
)

func newTestTransport() *Transport {
	ip := state.NewPool(32)
	op := state.NewPool(32)
	return New(nil, state.New(ip), state.New(op))
}

// TestInternalStartDelay exercises spec §8 scenario 4: with no
// external clock or MTC source, the first tick callback must fire
// exactly StartDelay units after StartReq, and subsequent ticks every
// TickLength units thereafter.
func TestInternalStartDelay(t *testing.T) {
	tr := newTestTransport()
	if tr.TickLength != DefaultTempo {
		t.Fatalf("expected default tempo %d, got %d", DefaultTempo, tr.TickLength)
	}

	var starts, moves int
	tr.OnStart = func() { starts++ }
	tr.OnMove = func() { moves++ }

	tr.StartReq(false)
	if tr.Phase != Start {
		t.Fatalf("expected Start phase immediately after internal StartReq, got %v", tr.Phase)
	}

	// advance in small increments; the first tick must land exactly at
	// StartDelay, not before.
	var advanced uint32
	step := uint32(1000)
	for advanced < StartDelay-step {
		tr.TimerCB(step)
		advanced += step
		if starts != 0 {
			t.Fatalf("OnStart fired early at %d units (< StartDelay=%d)", advanced, StartDelay)
		}
	}
	tr.TimerCB(StartDelay - advanced)
	if starts != 1 {
		t.Fatalf("expected exactly one OnStart at StartDelay, got %d", starts)
	}
	if tr.Phase != FirstTic {
		t.Fatalf("expected FirstTic phase after first tick, got %v", tr.Phase)
	}

	tr.TimerCB(tr.TickLength)
	if moves != 1 {
		t.Fatalf("expected one OnMove after one more TickLength, got %d", moves)
	}
	if tr.Phase != NextTic {
		t.Fatalf("expected NextTic phase, got %v", tr.Phase)
	}
}

func TestChgTempoShiftsNextPosSmoothly(t *testing.T) {
	tr := newTestTransport()
	tr.StartReq(false)
	tr.TimerCB(StartDelay) // now in FirstTic, NextPos == TickLength

	oldNext := tr.NextPos
	tr.ChgTempo(tr.TickLength + 1000)
	if tr.NextPos != oldNext+1000 {
		t.Fatalf("expected NextPos to shift by the tempo delta, got %d want %d", tr.NextPos, oldNext+1000)
	}
}

func TestStopReqHaltsPhase(t *testing.T) {
	tr := newTestTransport()
	tr.StartReq(false)
	tr.TimerCB(StartDelay)
	if tr.Phase == Stop {
		t.Fatalf("transport should be running before StopReq")
	}
	var stopped bool
	tr.OnStop = func() { stopped = true }
	tr.StopReq()
	if tr.Phase != Stop {
		t.Fatalf("expected Stop phase after StopReq, got %v", tr.Phase)
	}
	if !stopped {
		t.Fatalf("expected OnStop to fire")
	}
}
