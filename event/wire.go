package event

// Status byte high nibbles for channel voice messages.
const (
	StatusNoteOff        = 0x80
	StatusNoteOn         = 0x90
	StatusKeyAftertouch  = 0xA0
	StatusCtl            = 0xB0
	StatusProgChange     = 0xC0
	StatusChanAftertouch = 0xD0
	StatusBend           = 0xE0
)

// System common / real-time status bytes.
const (
	StatusSysexStart  = 0xF0
	StatusMTCQFrame   = 0xF1
	StatusSongPos     = 0xF2
	StatusSongSelect  = 0xF3
	StatusSysexEnd    = 0xF7
	StatusClock       = 0xF8
	StatusStart       = 0xFA
	StatusContinue    = 0xFB
	StatusStop        = 0xFC
	StatusActiveSense = 0xFE
	StatusReset       = 0xFF
)

// ToBytes encodes a single raw voice-family event (NoteOn/NoteOff/
// KeyAftertouch/ChanAftertouch/ProgChange/Ctl/Bend) to its status and
// data bytes, without running status (the device package elides the
// status byte when consecutive messages share one). Non-voice events
// return ok=false; they have no single-message wire form.
func (ev Event) ToBytes() (status byte, data []byte, ok bool) {
	switch ev.Cmd {
	case CmdNoteOn:
		return StatusNoteOn | ev.Chan, []byte{byte(ev.Val0), byte(ev.Val1)}, true
	case CmdNoteOff:
		return StatusNoteOff | ev.Chan, []byte{byte(ev.Val0), byte(ev.Val1)}, true
	case CmdKeyAftertouch:
		return StatusKeyAftertouch | ev.Chan, []byte{byte(ev.Val0), byte(ev.Val1)}, true
	case CmdChanAftertouch:
		return StatusChanAftertouch | ev.Chan, []byte{byte(ev.Val0)}, true
	case CmdProgChange:
		return StatusProgChange | ev.Chan, []byte{byte(ev.Val0)}, true
	case CmdCtl:
		return StatusCtl | ev.Chan, []byte{byte(ev.Val0), byte(ev.Val1)}, true
	case CmdBend:
		return StatusBend | ev.Chan, []byte{byte(ev.Val1 & 0x7f), byte((ev.Val1 >> 7) & 0x7f)}, true
	default:
		return 0, nil, false
	}
}

// FromStatus decodes one voice message (status byte already stripped
// of running-status ambiguity by the caller) plus its data bytes into
// a raw Event, then normalizes note-on-velocity-zero to note-off.
func FromStatus(status byte, data []byte) (Event, bool) {
	chanv := status & 0x0f
	switch status & 0xf0 {
	case StatusNoteOn:
		if len(data) < 2 {
			return Event{}, false
		}
		return Event{Cmd: CmdNoteOn, Chan: chanv, Val0: int32(data[0]), Val1: int32(data[1])}.Normalize(), true
	case StatusNoteOff:
		if len(data) < 2 {
			return Event{}, false
		}
		return Event{Cmd: CmdNoteOff, Chan: chanv, Val0: int32(data[0]), Val1: int32(data[1])}, true
	case StatusKeyAftertouch:
		if len(data) < 2 {
			return Event{}, false
		}
		return Event{Cmd: CmdKeyAftertouch, Chan: chanv, Val0: int32(data[0]), Val1: int32(data[1])}, true
	case StatusChanAftertouch:
		if len(data) < 1 {
			return Event{}, false
		}
		return Event{Cmd: CmdChanAftertouch, Chan: chanv, Val0: int32(data[0])}, true
	case StatusProgChange:
		if len(data) < 1 {
			return Event{}, false
		}
		return Event{Cmd: CmdProgChange, Chan: chanv, Val0: int32(data[0])}, true
	case StatusCtl:
		if len(data) < 2 {
			return Event{}, false
		}
		return Event{Cmd: CmdCtl, Chan: chanv, Val0: int32(data[0]), Val1: int32(data[1])}, true
	case StatusBend:
		if len(data) < 2 {
			return Event{}, false
		}
		v := int32(data[0]) | int32(data[1])<<7
		return Event{Cmd: CmdBend, Chan: chanv, Val1: v}, true
	}
	return Event{}, false
}

// DataLen returns how many data bytes follow a voice status byte.
func DataLen(status byte) int {
	switch status & 0xf0 {
	case StatusProgChange, StatusChanAftertouch:
		return 1
	case StatusNoteOn, StatusNoteOff, StatusKeyAftertouch, StatusCtl, StatusBend:
		return 2
	}
	return 0
}

// IsStatusByte reports whether b is a MIDI status byte (top bit set).
func IsStatusByte(b byte) bool { return b&0x80 != 0 }

// IsRealtimeStatus reports whether b is a system real-time status
// byte (0xF8-0xFF), which may interleave with any other message
// without disturbing running status or in-progress data collection.
func IsRealtimeStatus(b byte) bool { return b >= 0xF8 }

// IsVoiceStatus reports whether b is a channel voice status byte
// (0x80-0xEF), the only ones eligible for running-status elision.
func IsVoiceStatus(b byte) bool { return b >= 0x80 && b < 0xF0 }
