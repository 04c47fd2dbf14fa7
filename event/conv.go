package event

// Controller numbers used by the 14-bit / NRPN / RPN coalescing
// protocol, per original_source/defs.h.
const (
	CtlBankHi    = 0
	CtlDataEntHi = 6
	CtlDataEntLo = 38
	CtlBankLo    = 32
	CtlNRPNLo    = 98
	CtlNRPNHi    = 99
	CtlRPNLo     = 100
	CtlRPNHi     = 101
)

// ConvFlags selects which coalescing conversions are active on a
// device (original_source's ievset/oevset bitmaps).
type ConvFlags uint8

const (
	ConvXCtl ConvFlags = 1 << iota
	ConvNRPN
	ConvRPN
)

type target uint8

const (
	targetNone target = iota
	targetNRPN
	targetRPN
)

type chanConv struct {
	xctlHi    [32]int32
	haveXctl  [32]bool
	nrpnHi    int32
	nrpnLo    int32
	haveNrHi  bool
	haveNrLo  bool
	rpnHi     int32
	rpnLo     int32
	haveRpHi  bool
	haveRpLo  bool
	dataHi    int32
	haveDaHi  bool
	target    target
}

// Conv is the per-device coalescing decoder: it accumulates raw 7-bit
// controller messages into semantic XCtl/NRPN/RPN events. It is
// grounded on original_source/conv.c's conv_setctl/conv_getctl state
// machine, with the hi/lo pairs kept per MIDI channel.
type Conv struct {
	XCtlSet uint32 // bitmap: bit n set => controllers n/(n+32) pair is 14-bit
	Flags   ConvFlags
	chans   [16]chanConv
}

// NewConv returns a Conv with every coalescing mode disabled; set
// XCtlSet/Flags to enable specific conversions.
func NewConv() *Conv { return &Conv{} }

// FeedCtl processes one raw 7-bit controller message (dev/chan/ctlnum/
// value) and returns the semantic events it produces: zero for a
// message that is only a partial coalescing step, one for a complete
// XCtl/NRPN/RPN event or a pass-through plain Ctl event.
func (c *Conv) FeedCtl(dev, ch uint8, ctlnum, value int32) []Event {
	cc := &c.chans[ch]

	switch ctlnum {
	case CtlNRPNHi:
		cc.nrpnHi, cc.haveNrHi, cc.target = value, true, targetNRPN
		return nil
	case CtlNRPNLo:
		cc.nrpnLo, cc.haveNrLo, cc.target = value, true, targetNRPN
		return nil
	case CtlRPNHi:
		cc.rpnHi, cc.haveRpHi, cc.target = value, true, targetRPN
		return nil
	case CtlRPNLo:
		cc.rpnLo, cc.haveRpLo, cc.target = value, true, targetRPN
		return nil
	case CtlDataEntHi:
		cc.dataHi, cc.haveDaHi = value, true
		return nil
	case CtlDataEntLo:
		if !cc.haveDaHi {
			return nil
		}
		dataVal := (cc.dataHi << 7) | value
		switch cc.target {
		case targetNRPN:
			if c.Flags&ConvNRPN == 0 || !cc.haveNrHi || !cc.haveNrLo {
				return nil
			}
			num := (cc.nrpnHi << 7) | cc.nrpnLo
			return []Event{{Cmd: CmdNRPN, Dev: dev, Chan: ch, Val0: num, Val1: dataVal}}
		case targetRPN:
			if c.Flags&ConvRPN == 0 || !cc.haveRpHi || !cc.haveRpLo {
				return nil
			}
			num := (cc.rpnHi << 7) | cc.rpnLo
			return []Event{{Cmd: CmdRPN, Dev: dev, Chan: ch, Val0: num, Val1: dataVal}}
		}
		return nil
	}

	if c.Flags&ConvXCtl != 0 {
		if ctlnum >= 0 && ctlnum < 32 && c.XCtlSet&(1<<uint(ctlnum)) != 0 {
			cc.xctlHi[ctlnum], cc.haveXctl[ctlnum] = value, true
			return nil
		}
		if ctlnum >= 32 && ctlnum < 64 {
			n := ctlnum - 32
			if c.XCtlSet&(1<<uint(n)) != 0 {
				if !cc.haveXctl[n] {
					return nil
				}
				full := (cc.xctlHi[n] << 7) | value
				return []Event{{Cmd: CmdXCtl, Dev: dev, Chan: ch, Val0: n, Val1: full}}
			}
		}
	}

	return []Event{{Cmd: CmdCtl, Dev: dev, Chan: ch, Val0: ctlnum, Val1: value}}
}

// PackRaw decomposes a semantic event into the raw 7-bit controller
// (or single voice) messages needed to transmit it, per original_
// source/conv.c's conv_packev. Every returned Event has Cmd one of
// {CmdCtl} for coalesced forms, or is the original voice event
// unchanged.
func PackRaw(ev Event, oXCtlSet uint32, flags ConvFlags) []Event {
	switch ev.Cmd {
	case CmdXCtl:
		n := ev.Val0
		if flags&ConvXCtl == 0 || oXCtlSet&(1<<uint(n)) == 0 {
			return []Event{ev}
		}
		hi := (ev.Val1 >> 7) & 0x7f
		lo := ev.Val1 & 0x7f
		return []Event{
			{Cmd: CmdCtl, Dev: ev.Dev, Chan: ev.Chan, Val0: n, Val1: hi},
			{Cmd: CmdCtl, Dev: ev.Dev, Chan: ev.Chan, Val0: n + 32, Val1: lo},
		}
	case CmdNRPN:
		if flags&ConvNRPN == 0 {
			return []Event{ev}
		}
		numHi, numLo := (ev.Val0>>7)&0x7f, ev.Val0&0x7f
		valHi, valLo := (ev.Val1>>7)&0x7f, ev.Val1&0x7f
		return []Event{
			{Cmd: CmdCtl, Dev: ev.Dev, Chan: ev.Chan, Val0: CtlNRPNHi, Val1: numHi},
			{Cmd: CmdCtl, Dev: ev.Dev, Chan: ev.Chan, Val0: CtlNRPNLo, Val1: numLo},
			{Cmd: CmdCtl, Dev: ev.Dev, Chan: ev.Chan, Val0: CtlDataEntHi, Val1: valHi},
			{Cmd: CmdCtl, Dev: ev.Dev, Chan: ev.Chan, Val0: CtlDataEntLo, Val1: valLo},
		}
	case CmdRPN:
		if flags&ConvRPN == 0 {
			return []Event{ev}
		}
		numHi, numLo := (ev.Val0>>7)&0x7f, ev.Val0&0x7f
		valHi, valLo := (ev.Val1>>7)&0x7f, ev.Val1&0x7f
		return []Event{
			{Cmd: CmdCtl, Dev: ev.Dev, Chan: ev.Chan, Val0: CtlRPNHi, Val1: numHi},
			{Cmd: CmdCtl, Dev: ev.Dev, Chan: ev.Chan, Val0: CtlRPNLo, Val1: numLo},
			{Cmd: CmdCtl, Dev: ev.Dev, Chan: ev.Chan, Val0: CtlDataEntHi, Val1: valHi},
			{Cmd: CmdCtl, Dev: ev.Dev, Chan: ev.Chan, Val0: CtlDataEntLo, Val1: valLo},
		}
	default:
		return []Event{ev}
	}
}

// MMC sysex byte sequences (original_source/mux.c's
// mux_startreq/stopreq/gotoreq).
var (
	MMCStart = []byte{0xF0, 0x7F, 0x7F, 0x06, 0x02, 0xF7}
	MMCStop  = []byte{0xF0, 0x7F, 0x7F, 0x06, 0x01, 0xF7}
)

// MMCLocate builds the 13-byte MMC locate sysex for the given SMPTE
// position. fpsBits occupies the top 2 bits of the hours byte, per
// the MMC spec (00=24fps 01=25fps 10=29.97fps 11=30fps).
func MMCLocate(fpsBits, hours, minutes, seconds, frames, subframes byte) []byte {
	return []byte{
		0xF0, 0x7F, 0x7F, 0x06, 0x44, 0x06, 0x01,
		(fpsBits << 5) | (hours & 0x1F),
		minutes & 0x7F, seconds & 0x7F, frames & 0x7F, subframes & 0x7F,
		0xF7,
	}
}
