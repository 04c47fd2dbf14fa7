// Package event defines the semantic MIDI event used throughout the
// engine: a command tag, device/channel, up to two values, and the
// phase bits that the state package uses to track open frames. No
// ev.h/ev.c exists in the midish sources this module is grounded on,
// so the shape here is reconstructed from usage in conv.c, state.c
// and mux.c rather than ported line for line — see DESIGN.md.
package event

// Cmd is the command tag of an Event.
type Cmd uint8

const (
	CmdNone Cmd = iota
	CmdNoteOn
	CmdNoteOff
	CmdKeyAftertouch
	CmdChanAftertouch
	CmdProgChange
	CmdXProgChange // program change + bank, coalesced (XPC)
	CmdCtl         // plain 7-bit controller
	CmdXCtl        // extended 14-bit controller (MSB+LSB coalesced)
	CmdBend
	CmdNRPN
	CmdRPN
	CmdTempo
	CmdTimesig
	CmdSysex // custom sysex pattern slot; Val0 selects the pattern
	CmdMarker
	CmdEOT
	CmdNull
	cmdCount
)

func (c Cmd) String() string {
	names := [...]string{
		"none", "noteon", "noteoff", "keyaftertouch", "chanaftertouch",
		"progchange", "xprogchange", "ctl", "xctl", "bend", "nrpn",
		"rpn", "tempo", "timesig", "sysex", "marker", "eot", "null",
	}
	if int(c) < len(names) {
		return names[c]
	}
	return "cmd(?)"
}

// Phase is the 3-bit {FIRST, NEXT, LAST} mask marking an event's role
// in its frame.
type Phase uint8

const (
	PhaseFirst Phase = 1 << 0
	PhaseNext  Phase = 1 << 1
	PhaseLast  Phase = 1 << 2
)

func (p Phase) Has(bit Phase) bool { return p&bit != 0 }

// Event is the uniform representation of a MIDI action.
type Event struct {
	Cmd  Cmd
	Dev  uint8
	Chan uint8
	Val0 int32 // note/ctl number, NRPN/RPN param, tempo usec24, beats-per-measure, pattern id
	Val1 int32 // velocity/value/RPN value/ticks-per-beat
}

// evinfo describes the fixed shape of every command.
type evinfo struct {
	nparams  int
	hasDev   bool
	hasChan  bool
	phase    Phase // the phase instances of this command always carry
	isVoice  bool  // carries dev+chan and is subject to running status
	isNote   bool  // shares the note-family key space
	isSysex  bool
}

var infoTable = [cmdCount]evinfo{
	CmdNone:          {0, false, false, 0, false, false, false},
	CmdNoteOn:        {2, true, true, PhaseFirst, true, true, false},
	CmdNoteOff:       {2, true, true, PhaseLast, true, true, false},
	CmdKeyAftertouch: {2, true, true, PhaseNext, true, true, false},
	CmdChanAftertouch: {1, true, true, PhaseFirst | PhaseLast, true, false, false},
	CmdProgChange:    {1, true, true, PhaseFirst | PhaseLast, true, false, false},
	CmdXProgChange:   {2, true, true, PhaseFirst | PhaseLast, false, false, false},
	CmdCtl:           {2, true, true, PhaseFirst | PhaseLast, true, false, false},
	CmdXCtl:          {2, true, true, PhaseFirst | PhaseLast, false, false, false},
	CmdBend:          {1, true, true, PhaseFirst | PhaseLast, true, false, false},
	CmdNRPN:          {2, true, true, PhaseFirst | PhaseLast, false, false, false},
	CmdRPN:           {2, true, true, PhaseFirst | PhaseLast, false, false, false},
	CmdTempo:         {1, false, false, PhaseFirst | PhaseLast, false, false, false},
	CmdTimesig:       {2, false, false, PhaseFirst | PhaseLast, false, false, false},
	CmdSysex:         {2, true, false, PhaseFirst | PhaseLast, false, false, true},
	CmdMarker:        {1, false, false, PhaseFirst | PhaseLast, false, false, false},
	CmdEOT:           {0, false, false, PhaseFirst | PhaseLast, false, false, false},
	CmdNull:          {0, false, false, PhaseFirst | PhaseLast, false, false, false},
}

// Info returns the evinfo record for cmd.
func Info(cmd Cmd) (nparams int, hasDev, hasChan bool, isVoice bool) {
	e := infoTable[cmd]
	return e.nparams, e.hasDev, e.hasChan, e.isVoice
}

// IsVoice reports whether ev carries dev+chan and passes through
// running-status encoding on the wire.
func (ev Event) IsVoice() bool { return infoTable[ev.Cmd].isVoice }

// IsNote reports whether ev belongs to the note-on/off/aftertouch
// family, which all share one frame keyed by note number.
func (ev Event) IsNote() bool { return infoTable[ev.Cmd].isNote }

// IsSysex reports whether ev is a custom sysex pattern slot event.
func (ev Event) IsSysex() bool { return infoTable[ev.Cmd].isSysex }

// Normalize applies the one value-dependent phase rule: a note-on with
// velocity 0 is a note-off.
func (ev Event) Normalize() Event {
	if ev.Cmd == CmdNoteOn && ev.Val1 == 0 {
		ev.Cmd = CmdNoteOff
	}
	return ev
}

// Phase returns the phase bits an instance of ev's command always
// carries (after Normalize has been applied by the caller).
func (ev Event) Phase() Phase {
	return infoTable[ev.Cmd].phase
}

// Key identifies the frame an event belongs to: command family plus
// the discriminating fields (note number, controller number, NRPN/RPN
// parameter number, sysex pattern id) plus device/channel where the
// command carries them. Two events with equal Key compete for the
// same statelist slot.
type Key struct {
	Family Cmd
	Dev    uint8
	Chan   uint8
	Disc   int32
}

// KeyOf computes ev's frame key. Note-on/off/key-aftertouch all map to
// the same Family (CmdNoteOn) so they contend for one frame per note.
func KeyOf(ev Event) Key {
	k := Key{Dev: ev.Dev, Chan: ev.Chan}
	switch ev.Cmd {
	case CmdNoteOn, CmdNoteOff, CmdKeyAftertouch:
		k.Family = CmdNoteOn
		k.Disc = ev.Val0 // note number
	case CmdCtl, CmdXCtl:
		k.Family = ev.Cmd
		k.Disc = ev.Val0 // controller number
	case CmdNRPN, CmdRPN:
		k.Family = ev.Cmd
		k.Disc = ev.Val0 // parameter number
	case CmdSysex:
		k.Family = CmdSysex
		k.Disc = ev.Val0 // pattern id
	case CmdTempo, CmdTimesig:
		k.Family = ev.Cmd
		k.Dev, k.Chan = 0, 0
	default:
		k.Family = ev.Cmd
	}
	return k
}

// Default values used by Cancel (state package) to reset an open
// frame back to its MIDI-defined neutral value.
const (
	CtlDefaultValue  = 0
	BendDefaultValue = 0x2000 // center of 14-bit range
	CatDefaultValue  = 0
	NoteOffDefaultVelocity = 64
)
