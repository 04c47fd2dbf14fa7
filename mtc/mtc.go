// Package mtc reassembles MIDI Time Code quarter-frame messages into
// an absolute tick position and detects the frame rate. Grounded on
// original_source/mididev.h's struct mtc (nibble/qfr/tps/pos/state/
// timo fields) and the MTC_SEC / MTC_PERIOD constants in defs.h; the
// quarter-frame wire format itself (8 quarter-frames per full frame,
// piece type in bits 4-6 of the data byte, rate id in bits 1-2 of
// piece 7's nibble) is standard MTC and is not ported from any file in this
// pack, since no mtc.c exists in it.
package mtc

// MTCSec is the number of position units per second: chosen to be a
// multiple of every supported quarter-frame rate (24, 25, 29.97, 30).
const MTCSec = 2400

// MTCPeriod is the length of a full day in position units, the point
// at which MTC position wraps.
const MTCPeriod = 24 * 60 * 60 * MTCSec

// Usec24PerMTCSec converts one MTCSec position unit into 1/24-µs
// units, the time base the transport's CurPos/NextPos accumulators
// use: 24_000_000 / MTCSec.
const Usec24PerMTCSec = 24_000_000 / MTCSec

// ToUsec24 converts a position expressed in MTCSec units (this
// package's native unit) into 1/24-µs units (the transport's native
// unit).
func ToUsec24(pos uint32) uint32 { return pos * Usec24PerMTCSec }

// State is the quarter-frame reassembly state.
type State uint8

const (
	Stop  State = iota // no full frame received yet
	Start              // got a full frame, waiting for the next tick
	Run                // at least one tick has elapsed since the full frame
)

// Rate is a decoded SMPTE frame rate.
type Rate uint8

const (
	Rate24 Rate = iota
	Rate25
	Rate30Drop
	Rate30
)

// TicksPerSecond returns r's frame rate in whole or rounded frames.
func (r Rate) TicksPerSecond() uint32 {
	switch r {
	case Rate24:
		return 24
	case Rate25:
		return 25
	case Rate30Drop:
		return 30 // drop-frame counts differently but ticks at the same nominal rate
	default:
		return 30
	}
}

// Parser reassembles a stream of quarter-frame data bytes (the low 7
// bits following a 0xF1 status) into absolute position updates.
type Parser struct {
	nibble [8]byte
	qfr    uint32
	state  State
	rate   Rate
	tps    uint32
	pos    uint32
}

// New returns a stopped parser.
func New() *Parser { return &Parser{state: Stop} }

// State returns the parser's current reassembly state.
func (p *Parser) State() State { return p.state }

// Pos returns the absolute position, in MTCSec units, of the last
// fully reassembled frame.
func (p *Parser) Pos() uint32 { return p.pos }

// Rate returns the frame rate decoded from the last full frame.
func (p *Parser) Rate() Rate { return p.rate }

// Stop resets the parser: used on MTC dropout or an explicit full
// SysEx MTC stop.
func (p *Parser) Stop() {
	p.state = Stop
	p.qfr = 0
}

// Feed processes one quarter-frame data byte (bits 6-4 are the piece
// index 0-7, bits 3-0 are the nibble). It returns true, along with the
// newly reassembled absolute position, exactly when piece 7 completes
// a full frame.
func (p *Parser) Feed(data byte) (pos uint32, complete bool) {
	piece := (data >> 4) & 0x7
	nib := data & 0xF
	p.nibble[piece] = nib
	p.qfr++

	if piece != 7 {
		return 0, false
	}

	hours := uint32(p.nibble[6] & 0xF) | uint32(p.nibble[7]&0x1)<<4
	minutes := uint32(p.nibble[4]&0xF) | uint32(p.nibble[5]&0x3)<<4
	seconds := uint32(p.nibble[2]&0xF) | uint32(p.nibble[3]&0x3)<<4
	frames := uint32(p.nibble[0]&0xF) | uint32(p.nibble[1]&0x1)<<4
	p.rate = Rate((p.nibble[7] >> 1) & 0x3)
	p.tps = p.rate.TicksPerSecond()

	p.pos = (hours*3600+minutes*60+seconds)*MTCSec + frames*(MTCSec/p.tps)
	if p.state == Stop {
		p.state = Start
	}
	return p.pos, true
}

// Tick advances the reassembled position by one quarter-frame's worth
// of elapsed time (the sequencer calls this once per incoming
// quarter-frame after the first full frame, matching the original's
// "got at least one tick" RUN transition) and moves the parser into
// Run state.
func (p *Parser) Tick() uint32 {
	if p.tps == 0 {
		p.tps = Rate25.TicksPerSecond()
	}
	p.pos += MTCSec / p.tps / 4
	p.state = Run
	return p.pos
}
