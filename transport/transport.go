// Package transport implements the phase state machine that
// synchronizes the internal wall clock, external MIDI clock, and MIDI
// Time Code into one authoritative tick stream, plus the event
// ingress/egress paths (mux) that sit directly on top of it. Grounded
// on original_source/mux.h and mux.c in full: Phase mirrors MUX_*,
// and every exported method corresponds to one mux_* entry point,
// renamed to Go idiom (mux_startreq -> StartReq, mux_ticcb -> TicCB).
package transport

import (
	"github.com/grahamseamans/seqcore/device"
	"github.com/grahamseamans/seqcore/event"
	"github.com/grahamseamans/seqcore/state"
)

// Phase is the transport's position in the start/stop state machine.
type Phase uint8

const (
	Stop Phase = iota
	StartWait
	Start
	FirstTic
	NextTic
)

func (p Phase) String() string {
	switch p {
	case Stop:
		return "stop"
	case StartWait:
		return "startwait"
	case Start:
		return "start"
	case FirstTic:
		return "first_tic"
	case NextTic:
		return "next_tic"
	default:
		return "phase(?)"
	}
}

// StartDelay is the wait, in 24ths of a microsecond, between a start
// request and the first generated tick when no external clock or MTC
// source is configured: a third of a second, per original_source's
// MUX_START_DELAY.
const StartDelay uint32 = 24_000_000 / 3

// Transport is the process-wide (here: per-Engine) mux state: the
// phase machine, the position accumulator, the device registry it
// drives, and the two statelists tracking live input/output frames.
type Transport struct {
	Devices  []*device.Device
	ClockSrc *device.Device // at most one device may source MIDI clock
	MTCSrc   *device.Device // at most one device may source MTC

	Phase       Phase
	ReqPhase    Phase
	ManualStart bool

	TickLength uint32 // mux_ticlength: tempo, in 1/24-µs per tick
	TicRate    uint32 // mux_ticrate: ticks per quarter note (tics per unit)
	CurTic     uint32
	CurPos     uint32 // mux_curpos
	NextPos    uint32 // mux_nextpos
	Wallclock  uint32 // mux_wallclock

	Istate *state.Statelist // input-side frame tracker
	Ostate *state.Statelist // output-side frame tracker (running status/14-bit awareness)

	// Collaborator hooks, analogous to original_source's song_* and
	// norm_evcb call-backs. Nil hooks are simply skipped.
	OnStart func()             // song_startcb: first tick after START
	OnMove  func()             // song_movecb: every subsequent tick
	OnStop  func()             // song_stopcb
	OnEvent func(event.Event)  // norm_evcb: accepted input event, post-coalescing
	OnError func(unit uint8)   // mux_errorcb: unrecoverable device error
}

// DefaultTempo is 120 BPM at 24 ticks per beat, in 1/24-µs per tick:
// 60 * 24_000_000 / (120 * 24) = 500000.
const DefaultTempo uint32 = 60 * 24_000_000 / (120 * 24)

// DefaultTicRate is the default number of ticks per quarter note.
const DefaultTicRate uint32 = 96

// New returns a stopped Transport with default tempo/ticrate, driving
// devices and observing/updating istate and ostate.
func New(devices []*device.Device, istate, ostate *state.Statelist) *Transport {
	t := &Transport{
		Devices:    devices,
		TickLength: DefaultTempo,
		TicRate:    DefaultTicRate,
		Istate:     istate,
		Ostate:     ostate,
	}
	for _, d := range devices {
		if d.MTC != nil {
			t.MTCSrc = d
		}
	}
	return t
}

// sendTic broadcasts a MIDI-clock byte to every device that sends
// clock and is not itself the clock source, honoring each device's
// ticrate/TicRate ratio: a device configured with ticrate = 2*TicRate
// receives two clock bytes per mux tick. Grounded verbatim on
// mux_sendtic, including incrementing ticdelta by the device's own
// ticrate *after* the emit loop drains it below TicRate (see §9(b)).
func (t *Transport) sendTic() {
	for _, d := range t.Devices {
		if !d.SendClk || d == t.ClockSrc {
			continue
		}
		for d.TicDelta >= t.TicRate {
			d.SendClock()
			d.TicDelta -= t.TicRate
		}
		d.TicDelta += d.TicRate
	}
}

// sendStart broadcasts a MIDI start event, preceded by one spurious
// clock byte notifying downstream devices that this transport is the
// master clock, per mux_sendstart.
func (t *Transport) sendStart() {
	for _, d := range t.Devices {
		if !d.SendClk || d == t.ClockSrc {
			continue
		}
		d.TicDelta = d.TicRate
		d.SendClock()
		d.SendRaw([]byte{event.StatusStart})
	}
}

// sendStop broadcasts a MIDI stop event to every clock-sending device,
// per mux_sendstop.
func (t *Transport) sendStop() {
	for _, d := range t.Devices {
		if d.SendClk && d != t.ClockSrc {
			d.SendRaw([]byte{event.StatusStop})
		}
	}
}

// sendMMC writes raw to every device configured to receive MMC.
func (t *Transport) sendMMC(raw []byte) {
	for _, d := range t.Devices {
		if d.SendMMC {
			d.SendRaw(raw)
		}
	}
}

// StartReq begins waiting for a start event (or generates one
// immediately if this transport is its own clock master), per
// mux_startreq. manualStart mirrors the "don't trigger the 0-th tick"
// suppression original_source uses for hand-driven transports.
func (t *Transport) StartReq(manualStart bool) {
	t.ManualStart = manualStart
	t.ReqPhase = StartWait
	t.Phase = StartWait

	if t.ClockSrc == nil && t.MTCSrc == nil {
		t.CurPos = 0
		t.NextPos = StartDelay
		t.MTCStart(0)
	} else {
		t.CurPos = 0
		t.NextPos = t.TickLength
	}

	t.sendMMC(event.MMCStart)
}

// StopReq halts the transport, emitting MIDI stop to every clock-
// sending device and MMC stop to every MMC device, per mux_stopreq.
func (t *Transport) StopReq() {
	t.ReqPhase = Stop
	if t.Phase != Stop {
		t.stopCB()
	}
	t.sendMMC(event.MMCStop)
}

// GotoReq relocates via MMC locate, per mux_gotoreq. fps is the frames
// per second encoded in the MMC position (original_source hardcodes
// 25fps via DEFAULT_FPS).
func (t *Transport) GotoReq(mmcPos uint32, fpsBits byte, fps uint32) {
	const mtcSec = 2400
	hours := byte((mmcPos / (3600 * mtcSec)) % 24)
	minutes := byte((mmcPos / (60 * mtcSec)) % 60)
	seconds := byte((mmcPos / mtcSec) % 60)
	frames := byte((mmcPos / (mtcSec / fps)) % fps)
	t.sendMMC(event.MMCLocate(fpsBits, hours, minutes, seconds, frames, 0))
}

// startCB handles a received MIDI start event (or its internally
// generated equivalent), per mux_startcb.
func (t *Transport) startCB() {
	if t.Phase != StartWait {
		return
	}
	if t.ClockSrc != nil {
		t.CurPos = 0
		t.NextPos = t.TickLength
	}
	t.Phase = Start
	t.sendStart()
}

// stopCB handles a received MIDI stop event (or StopReq), per
// mux_stopcb.
func (t *Transport) stopCB() {
	if t.Phase >= Start && t.Phase <= NextTic {
		t.sendStop()
	}
	t.Phase = t.ReqPhase
	if t.OnStop != nil {
		t.OnStop()
	}
}

// MTCStart is called when the MTC timer starts (a full-frame sysex
// seen, no ticks yet), per mux_mtcstart.
func (t *Transport) MTCStart(pos uint32) {
	if t.Phase >= Start && t.Phase <= NextTic {
		t.MTCStop()
	}
	if t.Phase == Stop {
		return
	}
	if t.MTCSrc != nil {
		t.CurPos = pos
		t.NextPos = t.TickLength
	}
	t.startCB()
}

// MTCTick advances the position accumulator by delta (a quarter
// frame's worth of elapsed time) and fires TicCB-equivalent tick
// dispatch each time CurPos crosses NextPos, per mux_mtctick.
func (t *Transport) MTCTick(delta uint32) {
	t.CurPos += delta
	for t.CurPos >= t.NextPos {
		t.CurPos -= t.NextPos
		t.NextPos = t.TickLength
		if !t.ManualStart || t.Phase != Start {
			t.dispatchTick()
		}
	}
}

// MTCStop is called when the MTC timer stops, per mux_mtcstop.
func (t *Transport) MTCStop() {
	if t.ClockSrc != nil {
		return
	}
	if t.Phase >= Start {
		t.stopCB()
	}
}

// dispatchTick performs one tick's worth of phase advance and
// notification, the shared tail of TicCB and the internal MTCTick
// path, per mux_ticcb's phase-transition block.
func (t *Transport) dispatchTick() {
	if t.Phase == FirstTic {
		t.Phase = NextTic
	} else if t.Phase == Start {
		t.CurPos = 0
		t.NextPos = t.TickLength
		t.Phase = FirstTic
	}
	switch t.Phase {
	case NextTic:
		t.CurTic++
		t.sendTic()
		if t.OnMove != nil {
			t.OnMove()
		}
	case FirstTic:
		t.CurTic = 0
		t.sendTic()
		if t.OnStart != nil {
			t.OnStart()
		}
	}
}

// TicCB is called when a MIDI clock byte is received from the clock
// source device, per mux_ticcb. It loops because one wire tick from a
// source whose ticrate is below TicRate is worth several mux ticks; a
// source whose ticrate exceeds TicRate instead accumulates TicDelta
// over several calls before one mux tick fires.
func (t *Transport) TicCB() {
	for {
		if t.ClockSrc != nil && t.ClockSrc.TicDelta < t.ClockSrc.TicRate {
			t.ClockSrc.TicDelta += t.TicRate
			break
		}
		t.dispatchTick()
		if t.ClockSrc == nil {
			break
		}
		t.ClockSrc.TicDelta -= t.ClockSrc.TicRate
	}
}

// TimerCB is the internal-timer tick source: called once per periodic
// wake with the elapsed 1/24-µs delta, advancing the wall clock and,
// only when neither an external clock source nor an MTC source is
// configured, driving the phase machine directly, per mux_timercb's
// internal branch.
func (t *Transport) TimerCB(delta uint32) {
	t.Wallclock += delta

	if t.ClockSrc != nil || t.MTCSrc != nil {
		return
	}
	switch t.Phase {
	case StartWait:
		// nothing to do: waiting for StartReq's internally generated start
	case Start:
		t.CurPos += delta
		if t.CurPos >= t.NextPos {
			t.CurPos, t.NextPos = 0, 0
			t.MTCTick(0)
		}
	case FirstTic, NextTic:
		t.MTCTick(delta)
	}
}

// ChgTempo adjusts the tick length while running, shifting NextPos by
// the difference so the in-progress tick's timing drifts smoothly
// instead of snapping, per mux_chgtempo.
func (t *Transport) ChgTempo(newTickLength uint32) {
	if t.Phase == FirstTic || t.Phase == NextTic {
		t.NextPos += newTickLength
		t.NextPos -= t.TickLength
	}
	t.TickLength = newTickLength
}

// ChgTicRate changes the number of ticks per quarter note used to
// scale device clock-byte emission, per mux_chgticrate.
func (t *Transport) ChgTicRate(tpu uint32) { t.TicRate = tpu }

// Evcb accepts one decoded input event from unit (already passed
// through the device's per-channel 14-bit/NRPN/RPN coalescing), feeds
// it into the input statelist, and forwards it to OnEvent, per
// mux_evcb -> norm_evcb.
func (t *Transport) Evcb(ev event.Event) {
	t.Istate.Update(ev)
	if t.OnEvent != nil {
		t.OnEvent(ev)
	}
}

// Putev sends ev (which must be a voice, 14-bit controller, NRPN, RPN
// or sysex-pattern event) to the device whose Unit is ev.Dev, passing
// through the output statelist first so running status and
// 14-bit/NRPN/RPN re-expansion see consistent prior state, per
// mux_putev.
func (t *Transport) Putev(ev event.Event) {
	xvoice := ev.Cmd == event.CmdXCtl || ev.Cmd == event.CmdNRPN || ev.Cmd == event.CmdRPN
	if !ev.IsVoice() && !xvoice && !ev.IsSysex() {
		panic("transport: Putev requires a voice, XCtl/NRPN/RPN or sysex event")
	}
	t.Ostate.Update(ev)
	for _, d := range t.Devices {
		if d != nil && d.Unit == ev.Dev {
			d.SendEvent(ev)
			return
		}
	}
}

// ErrorCB reacts to an unrecoverable device error: broadcasts shut-up
// via OnError, which the engine wires to the filter.Normalizer, per
// mux_errorcb.
func (t *Transport) ErrorCB(unit uint8) {
	if t.OnError != nil {
		t.OnError(unit)
	}
}
