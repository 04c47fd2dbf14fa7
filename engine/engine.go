// Package engine owns every subsystem and exposes the single context
// a caller constructs once per running sequencer: pools, tracks,
// statelists, the timeout wheel, devices, the transport, and the
// output-side mixer, all wired together the way spec §9's "wrap in
// owned Engine context" design note asks for, replacing teacher's
// sequencer/state.go global *State singleton with an explicit value a
// caller owns and can run more than one of in a test.
package engine

import (
	"errors"
	"fmt"
	"sync"

	"github.com/grahamseamans/seqcore/device"
	"github.com/grahamseamans/seqcore/filter"
	"github.com/grahamseamans/seqcore/mtc"
	"github.com/grahamseamans/seqcore/state"
	"github.com/grahamseamans/seqcore/timeout"
	"github.com/grahamseamans/seqcore/track"
	"github.com/grahamseamans/seqcore/transport"

	"github.com/grahamseamans/seqcore/event"
)

// Default pool capacities, sized generously for a handful of devices
// and tracks rather than original_source/defs.h's whole-process
// MAXNSTATES/MAXNSEQEVS constants, since each Engine here is scoped to
// one run instead of one process.
const (
	DefaultStatePoolCap   = 1024
	DefaultTrackPoolCap   = 4096
	DefaultTimeoutPoolCap = 64
)

// SenseInterval is how often every opened output device receives an
// active-sensing byte; the heartbeat runs on this fixed period, and
// other output sent to the device does not restart it. Per the
// standard MIDI active-sensing convention (not itself in
// original_source, which targets a specific hardware setup that never
// enabled it; see SPEC_FULL.md's device-failure section).
const SenseInterval = 250 * 1000 * 24 // 250ms in 24ths-of-a-microsecond

// SenseTimeout is how long an inbound active-sensing stream may go
// silent before the device is considered failed.
const SenseTimeout = 350 * 1000 * 24

// errSenseTimeout is the failure reason reported when a device's
// inbound sensing watchdog expires.
var errSenseTimeout = errors.New("engine: sensing timeout")

// Engine is the owned context wiring every subsystem together. Zero
// value is not useful; construct with New.
type Engine struct {
	Devices   []*device.Device
	byUnit    map[uint8]*device.Device
	Transport *transport.Transport

	StatePool   *state.Pool
	TrackPool   *track.Pool
	TimeoutPool *timeout.Pool

	Mixer      *filter.Mixer
	Normalizer *filter.Normalizer
	Wheel      *timeout.Wheel

	players []*TrackPlayer

	// inbox is how every device goroutine's callback (OnEvent, OnError,
	// OnMTCFull, OnMTCQuarter) hands its work to the single engine
	// goroutine Run drives: a closure capturing what to do, executed
	// there instead of on the calling device's own goroutine, so every
	// mutation of pool/track/state/timeout/transport state happens on
	// one goroutine per spec §5's single-threaded ordering guarantee,
	// the Go-channel rendering of the "goroutine-per-device feeding one
	// engine goroutine" decision in DESIGN.md.
	inbox chan func()

	senseOut map[uint8]timeout.Handle
	senseIn  map[uint8]timeout.Handle

	// mtcPrev holds each MTC-capable device's last reassembled absolute
	// position, in MTC's native MTCSec units, so OnMTCQuarter (which
	// only ever hears the new absolute position) can compute the delta
	// Transport.MTCTick needs.
	mtcPrev map[uint8]uint32

	// OnFatal is called, per §7, when a condition original_source
	// treats as unrecoverable (pool exhaustion) is hit; the default set
	// in New panics, matching a fatal condition original_source itself
	// has no graceful recovery from either.
	OnFatal func(error)

	// Log receives one line per noteworthy engine event, wired to the
	// logging package's per-subsystem writer by the caller; nil
	// disables logging entirely.
	Log func(subsystem, format string, args ...any)

	// statusMu guards status against concurrent reads from a monitor
	// goroutine while the engine goroutine keeps mutating it, the same
	// split the teacher's sequencer/manager.go gives its own mu/GetState
	// pair.
	statusMu sync.RWMutex
	status   Status

	// UpdateChan carries one notification per status change, non-
	// blocking and coalescing (buffered 1, drop if full), mirroring the
	// teacher's Manager.UpdateChan: a monitor selects on it to know when
	// to redraw without polling.
	UpdateChan chan struct{}
}

// New constructs an Engine around devices, ready for Open.
func New(devices []*device.Device) *Engine {
	statePool := state.NewPool(DefaultStatePoolCap)
	trackPool := track.NewPool(DefaultTrackPoolCap)
	timeoutPool := timeout.NewPool(DefaultTimeoutPoolCap)

	istate := state.New(statePool)
	ostate := state.New(statePool)

	e := &Engine{
		Devices:     devices,
		byUnit:      make(map[uint8]*device.Device, len(devices)),
		StatePool:   statePool,
		TrackPool:   trackPool,
		TimeoutPool: timeoutPool,
		Wheel:       timeout.New(timeoutPool),
		Normalizer:  filter.NewNormalizer(istate),
		inbox:       make(chan func(), 256),
		senseOut:    make(map[uint8]timeout.Handle),
		senseIn:     make(map[uint8]timeout.Handle),
		mtcPrev:     make(map[uint8]uint32),
		UpdateChan:  make(chan struct{}, 1),
	}
	e.OnFatal = func(err error) { panic(err) }
	statePool.Fatal = func(err error) { e.fatal(err) }
	trackPool.Fatal = func(err error) { e.fatal(err) }
	timeoutPool.Fatal = func(err error) { e.fatal(err) }

	e.Transport = transport.New(devices, istate, ostate)
	e.Mixer = filter.New(statePool, func(ev event.Event) { e.Transport.Putev(ev) })

	e.Transport.OnStart = func() { e.afterTick() }
	e.Transport.OnMove = func() { e.afterTick() }
	e.Transport.OnStop = func() { e.stopPlayers(); e.publishStatus() }
	e.Transport.OnEvent = func(ev event.Event) { e.Mixer.Putev(ev, filter.PrioInput) }
	e.Transport.OnError = func(unit uint8) { e.handleDeviceError(unit) }

	for _, d := range devices {
		e.byUnit[d.Unit] = d
		e.wireDevice(d)
	}
	return e
}

func (e *Engine) fatal(err error) {
	if e.Log != nil {
		e.Log("engine", "fatal: %v", err)
	}
	if e.OnFatal != nil {
		e.OnFatal(err)
	}
}

func (e *Engine) logf(subsystem, format string, args ...any) {
	if e.Log != nil {
		e.Log(subsystem, format, args...)
	}
}

// Device returns the device registered under unit, or nil.
func (e *Engine) Device(unit uint8) *device.Device { return e.byUnit[unit] }

// enqueue hands fn to the engine goroutine for execution. Called from
// whichever device goroutine received the triggering callback; fn
// itself must only be called from Run's own goroutine.
func (e *Engine) enqueue(fn func()) { e.inbox <- fn }

func (e *Engine) wireDevice(d *device.Device) {
	unit := d.Unit
	d.OnEvent = func(ev event.Event) {
		e.enqueue(func() { e.handleInboundEvent(unit, ev) })
	}
	d.OnError = func(err error) {
		e.enqueue(func() {
			e.logf("device", "unit %d failed: %v", unit, err)
			e.handleDeviceError(unit)
		})
	}
	if d.MTC != nil {
		d.OnMTCFull = func(pos uint32, wasStopped bool) {
			e.enqueue(func() {
				_ = wasStopped // MTCStart's own re-entry guard handles a resync mid-stream
				e.mtcPrev[unit] = pos
				e.Transport.MTCStart(mtc.ToUsec24(pos))
			})
		}
		d.OnMTCQuarter = func(pos uint32) {
			e.enqueue(func() {
				delta := pos - e.mtcPrev[unit] // wraps correctly: both are uint32
				e.mtcPrev[unit] = pos
				e.Transport.MTCTick(mtc.ToUsec24(delta))
			})
		}
	}
}

// handleInboundEvent is the single entry point every device's OnEvent
// callback funnels through: it stamps the originating device, feeds
// the transport's ingress path (which updates Istate and calls
// Transport.OnEvent), and arms that device's sensing watchdog.
func (e *Engine) handleInboundEvent(unit uint8, ev event.Event) {
	ev.Dev = unit
	e.armSenseIn(unit)
	e.Transport.Evcb(ev)
}

// handleDeviceError reacts to an unrecoverable device I/O error by
// shutting up every open frame on that device (all-notes-off etc, via
// the normalizer). It is the transport's OnError callback and also
// runs when a device's own OnError fires.
func (e *Engine) handleDeviceError(unit uint8) {
	e.Normalizer.Shut(int32(unit), func(ev event.Event) {
		if d := e.byUnit[unit]; d != nil {
			d.SendEvent(ev)
		}
	})
	e.publishStatus()
}

// afterTick runs the once-per-tick housekeeping original_source
// performs from song_startcb/song_movecb: outdate both statelists, age
// and purge stateless mix states, and advance every playing track by
// one tick.
func (e *Engine) afterTick() {
	e.Transport.Istate.Outdate()
	e.Transport.Ostate.Outdate()
	e.Mixer.Tick()
	e.Mixer.Outdate()
	e.advancePlayers()
	e.publishStatus()
}

func (e *Engine) stopPlayers() {
	for _, p := range e.players {
		p.Stop()
	}
}

// Open opens every device's backend and arms the sensing watchdogs.
// Devices that fail to open are logged through Log (not OnError) and
// left closed; Open itself only returns an error if no device opened
// at all, since a partially-wired rig is still useful (§7).
func (e *Engine) Open() error {
	opened := 0
	for _, d := range e.Devices {
		if err := d.Open(); err != nil {
			e.logf("device", "open unit %d: %v", d.Unit, err)
			continue
		}
		opened++
		if d.Mode&device.ModeOut != 0 {
			e.armSenseOut(d.Unit)
		}
	}
	if opened == 0 && len(e.Devices) > 0 {
		return fmt.Errorf("engine: no device opened out of %d configured", len(e.Devices))
	}
	e.publishStatus()
	return nil
}

// Close releases every device and every still-armed watchdog.
func (e *Engine) Close() {
	for _, h := range e.senseOut {
		e.Wheel.Del(h)
	}
	for _, h := range e.senseIn {
		e.Wheel.Del(h)
	}
	for _, d := range e.Devices {
		d.Close()
	}
}

// armSenseOut (re)schedules unit's outbound active-sensing heartbeat,
// per the standard MIDI convention, so a synth the transport is not
// currently writing to still sees periodic traffic and doesn't assume
// the link is dead.
func (e *Engine) armSenseOut(unit uint8) {
	if h, ok := e.senseOut[unit]; ok {
		e.Wheel.Del(h)
		e.Wheel.Free(h)
	}
	h := e.Wheel.Alloc(func() {
		if d := e.byUnit[unit]; d != nil && !d.Failed() {
			d.SendRaw([]byte{event.StatusActiveSense})
		}
		e.armSenseOut(unit)
	})
	e.senseOut[unit] = h
	e.Wheel.Add(h, SenseInterval)
}

// armSenseIn (re)arms unit's inbound sensing watchdog: if no event —
// sensing byte or otherwise — arrives within SenseTimeout, the device
// is treated as failed, per §6/§7's device-failure detection.
func (e *Engine) armSenseIn(unit uint8) {
	if h, ok := e.senseIn[unit]; ok {
		e.Wheel.Del(h)
		e.Wheel.Free(h)
	}
	h := e.Wheel.Alloc(func() {
		e.logf("device", "unit %d: sensing timeout", unit)
		if d := e.byUnit[unit]; d != nil {
			d.Fail(errSenseTimeout)
		}
	})
	e.senseIn[unit] = h
	e.Wheel.Add(h, SenseTimeout)
}

// AddTrack starts playing t from the beginning, mixed into the output
// at PrioTrack. The returned *TrackPlayer lets a caller stop or rewind
// it; it keeps playing, tick by tick, until it reaches t's end or is
// explicitly stopped.
func (e *Engine) AddTrack(t *track.Track) *TrackPlayer {
	p := NewTrackPlayer(t)
	e.players = append(e.players, p)
	return p
}

// RemoveTrack stops and unregisters p; it is a no-op if p is not
// currently registered.
func (e *Engine) RemoveTrack(p *TrackPlayer) {
	for i, cur := range e.players {
		if cur == p {
			p.Stop()
			e.players = append(e.players[:i], e.players[i+1:]...)
			return
		}
	}
}

// advancePlayers steps every registered TrackPlayer by one tick,
// routing each fired event to wherever its command kind belongs, and
// drops any player that has reached the end of its track.
func (e *Engine) advancePlayers() {
	live := e.players[:0]
	for _, p := range e.players {
		for _, ev := range p.Advance() {
			e.playerEvent(ev)
		}
		if !p.Done() {
			live = append(live, p)
		}
	}
	e.players = live
}

// playerEvent dispatches one event fired by a TrackPlayer. Only
// voice and sysex-pattern events go through the mixer; 14-bit
// controller, NRPN and RPN events in a track are dropped (§7 forbids a
// panic on valid track data, and a track may legitimately contain any
// of the ~20 command kinds per §3). Tempo changes the transport's own
// tick length directly; time-signature and marker events have no
// device-facing effect but are recorded into the output statelist so
// their "current value" stays queryable, per §4's outdate rule for
// FIRST+LAST frames; end-of-track and null carry no payload at all.
func (e *Engine) playerEvent(ev event.Event) {
	switch {
	case ev.IsVoice() || ev.IsSysex():
		e.Mixer.Putev(ev, filter.PrioTrack)
	case ev.Cmd == event.CmdTempo:
		e.Transport.ChgTempo(uint32(ev.Val0))
		e.Transport.Ostate.Update(ev)
	case ev.Cmd == event.CmdTimesig || ev.Cmd == event.CmdMarker:
		e.Transport.Ostate.Update(ev)
	}
}
