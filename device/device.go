// Package device implements the §6 device back-end contract: a
// uniform way to open a physical or virtual MIDI port, feed it raw
// bytes in, and push raw bytes out, with the running-status, active-
// sensing, and MTC bookkeeping that belongs to a single port. Grounded
// on original_source/mididev.h's devops/mididev structs for the
// contract shape; the concrete backend is grounded on the teacher's
// midi/keyboard.go and midi/launchpad.go use of
// gitlab.com/gomidi/midi/v2's ListenTo/SendTo callback style, which
// replaces the original's poll(2)-based nfds/pollfd/revents triad —
// Go delivers readiness via callback, not a pollable fd set.
package device

import (
	"fmt"
	"sync"
	"time"

	"github.com/grahamseamans/seqcore/event"
	"github.com/grahamseamans/seqcore/mtc"
)

// Mode is a bitmask of the directions a device is open in.
type Mode uint8

const (
	ModeIn  Mode = 1 << 0
	ModeOut Mode = 1 << 1
)

// Backend is the transport underneath a Device: something that can
// deliver raw MIDI bytes and accept raw MIDI bytes. A Backend never
// sees Events, only bytes — running status, sensing, and MTC live one
// layer up in Device.
type Backend interface {
	// Open starts delivering input. handler is called once per
	// complete incoming message's raw status+data bytes. Open must be
	// a no-op if the backend has no input side.
	Open(handler func(raw []byte)) error
	// Send writes one already-encoded message's bytes.
	Send(raw []byte) error
	// Close releases the backend's resources. Safe to call more than
	// once.
	Close() error
}

// Device wraps a Backend with the parser/encoder state original_source
// keeps per mididev: running status in both directions, active-sensing
// watchdogs, 14-bit/NRPN/RPN coalescing, and MTC quarter-frame
// reassembly on input.
type Device struct {
	Backend Backend
	Unit    uint8
	Mode    Mode

	TicRate  uint32 // clock ticks the transport expects per quarter note
	TicDelta uint32 // transport's sendTic/TicCB accumulator (mux_sendtic's i->ticdelta)
	SendClk  bool   // emit MIDI clock bytes
	SendMMC  bool   // emit MMC start/stop/locate sysex

	RunningStatus bool // use running status on output

	InConv  *event.Conv
	OutConv *event.Conv

	MTC *mtc.Parser // non-nil only for devices selected as the MTC source

	OnEvent func(ev event.Event) // called for each decoded input event
	OnError func(err error)      // called on an unrecoverable I/O error, per §7

	// OnMTCFull fires when this device's MTC parser reassembles a
	// complete quarter-frame group into an absolute position.
	// wasStopped reports whether this is the first full frame seen
	// since the parser was last Stop (mirrors mux_mtcstart's "trigger
	// a stop first if already started" guard living one layer up).
	OnMTCFull func(pos uint32, wasStopped bool)
	// OnMTCQuarter fires on every quarter-frame byte received after
	// the first full frame, carrying the incrementally advanced
	// position (mux_mtctick's per-quarter-frame delta source).
	OnMTCQuarter func(pos uint32)

	mu       sync.Mutex
	istatus  byte
	ostatus  byte
	eof      bool
	sensorAt time.Time
}

// New returns a Device around backend, with its own independent input
// and output controller-coalescing state.
func New(backend Backend, unit uint8, mode Mode) *Device {
	return &Device{
		Backend: backend,
		Unit:    unit,
		Mode:    mode,
		TicRate: 96,
		InConv:  event.NewConv(),
		OutConv: event.NewConv(),
	}
}

// Open starts the device: input bytes are parsed into Events and
// delivered to OnEvent, in FIFO arrival order, exactly as the
// original's mididev_inputcb feeds ev_parse.
func (d *Device) Open() error {
	return d.Backend.Open(func(raw []byte) {
		d.handleRaw(raw)
	})
}

// Close shuts the backend down. Once closed, a Device is inert; it
// does not auto-reopen, matching §7's device-failure isolation: the
// engine decides whether and when to retry.
func (d *Device) Close() error {
	return d.Backend.Close()
}

// Failed reports whether the device has hit an unrecoverable I/O
// error and should be treated as down by the engine.
func (d *Device) Failed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.eof
}

func (d *Device) fail(err error) {
	d.mu.Lock()
	d.eof = true
	d.mu.Unlock()
	if d.OnError != nil {
		d.OnError(err)
	}
}

// Fail marks the device failed and fires OnError, the same as an
// internal I/O error would, for callers outside this package that
// detect a failure by other means — the sensing watchdog's dropout
// detection in the engine package, for one.
func (d *Device) Fail(err error) { d.fail(err) }

// handleRaw decodes one complete incoming message (status byte plus
// its data bytes, or data bytes alone, in which case the last seen
// status byte is reapplied as running status) into zero or more
// high-level Events.
func (d *Device) handleRaw(raw []byte) {
	if len(raw) == 0 {
		return
	}
	status := raw[0]

	if event.IsRealtimeStatus(status) {
		if status == event.StatusActiveSense {
			d.mu.Lock()
			d.sensorAt = time.Now()
			d.mu.Unlock()
		}
		return
	}

	if status == event.StatusMTCQFrame && len(raw) >= 2 && d.MTC != nil {
		wasStopped := d.MTC.State() == mtc.Stop
		pos, complete := d.MTC.Feed(raw[1])
		if complete {
			if d.OnMTCFull != nil {
				d.OnMTCFull(pos, wasStopped)
			}
		} else if !wasStopped && d.OnMTCQuarter != nil {
			d.OnMTCQuarter(d.MTC.Tick())
		}
		return
	}

	if event.IsStatusByte(status) {
		d.istatus = status
	} else if d.istatus != 0 {
		// running status: prepend the last seen status byte.
		data := make([]byte, 0, len(raw)+1)
		data = append(data, d.istatus)
		data = append(data, raw...)
		raw = data
		status = d.istatus
	} else {
		return // no running status context to resolve this against
	}

	ev, ok := event.FromStatus(status, raw[1:])
	if !ok {
		return
	}

	d.dispatch(ev)
}

func (d *Device) dispatch(ev event.Event) {
	if (ev.Cmd == event.CmdCtl) && (d.InConv.Flags != 0 || d.InConv.XCtlSet != 0) {
		for _, out := range d.InConv.FeedCtl(ev.Dev, ev.Chan, ev.Val0, ev.Val1) {
			d.emit(out)
		}
		return
	}
	d.emit(ev)
}

func (d *Device) emit(ev event.Event) {
	ev.Dev = d.Unit
	if d.OnEvent != nil {
		d.OnEvent(ev.Normalize())
	}
}

// SendEvent encodes ev (splitting XCtl/NRPN/RPN through OutConv first)
// and writes it to the backend, applying running status if enabled.
func (d *Device) SendEvent(ev event.Event) error {
	for _, raw := range event.PackRaw(ev, d.OutConv.XCtlSet, d.OutConv.Flags) {
		if err := d.sendOne(raw); err != nil {
			return err
		}
	}
	return nil
}

func (d *Device) sendOne(ev event.Event) error {
	status, data, ok := ev.ToBytes()
	if !ok {
		return fmt.Errorf("device: cannot encode event %+v", ev)
	}

	var buf []byte
	if d.RunningStatus && event.IsStatusByte(status) && status == d.ostatus && event.IsVoiceStatus(status) {
		buf = data
	} else {
		buf = append([]byte{status}, data...)
		if event.IsVoiceStatus(status) {
			d.ostatus = status
		} else {
			d.ostatus = 0
		}
	}

	if err := d.Backend.Send(buf); err != nil {
		d.fail(err)
		return err
	}
	return nil
}

// SendRaw writes pre-encoded bytes (MMC sysex, clock bytes) directly,
// bypassing the event encoder and resetting running status since a
// raw write may not be a voice message.
func (d *Device) SendRaw(raw []byte) error {
	d.ostatus = 0
	if err := d.Backend.Send(raw); err != nil {
		d.fail(err)
		return err
	}
	return nil
}

// SendClock writes a single MIDI clock byte (0xF8), if SendClk is set.
func (d *Device) SendClock() error {
	if !d.SendClk {
		return nil
	}
	return d.SendRaw([]byte{event.StatusClock})
}

// LastSensed returns the time of the last active-sensing byte received
// from this device, the zero Time if none has ever arrived.
func (d *Device) LastSensed() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sensorAt
}
