package event

import "testing"

// Scenario 3 (NRPN coalescing): feed raw bytes
// B0 63 01 B0 62 02 B0 06 7F B0 26 40 to a device with NRPN enabled;
// exactly one NRPN event must come out, carrying the 14-bit parameter
// number packed as (hi<<7)|lo and the 14-bit value the same way. With
// hi=1 lo=2 that number is 0x82 (see DESIGN.md "Open Question
// resolutions" for why this differs from a literal hi/lo transcription
// error in the originating text).
func TestNRPNCoalescing(t *testing.T) {
	c := NewConv()
	c.Flags = ConvNRPN

	var out []Event
	feed := func(ctl, val int32) {
		out = append(out, c.FeedCtl(0, 0, ctl, val)...)
	}
	feed(CtlNRPNHi, 0x01)
	feed(CtlNRPNLo, 0x02)
	feed(CtlDataEntHi, 0x7F)
	feed(CtlDataEntLo, 0x40)

	if len(out) != 1 {
		t.Fatalf("expected exactly one coalesced event, got %d: %+v", len(out), out)
	}
	got := out[0]
	if got.Cmd != CmdNRPN || got.Chan != 0 {
		t.Fatalf("unexpected event: %+v", got)
	}
	wantNum := int32(0x82)
	wantVal := int32(0x3FC0)
	if got.Val0 != wantNum || got.Val1 != wantVal {
		t.Fatalf("got v0=%#x v1=%#x, want v0=%#x v1=%#x", got.Val0, got.Val1, wantNum, wantVal)
	}
}

func TestRPNCoalescing(t *testing.T) {
	c := NewConv()
	c.Flags = ConvRPN
	var out []Event
	feed := func(ctl, val int32) {
		out = append(out, c.FeedCtl(0, 3, ctl, val)...)
	}
	feed(CtlRPNHi, 0)
	feed(CtlRPNLo, 0) // RPN 0x0000 = pitch bend sensitivity
	feed(CtlDataEntHi, 2)
	feed(CtlDataEntLo, 0)
	if len(out) != 1 || out[0].Cmd != CmdRPN {
		t.Fatalf("expected one RPN event, got %+v", out)
	}
	if out[0].Val0 != 0 || out[0].Val1 != 2<<7 {
		t.Fatalf("unexpected RPN payload: %+v", out[0])
	}
}

func TestXCtl14BitRoundTrip(t *testing.T) {
	c := NewConv()
	c.Flags = ConvXCtl
	c.XCtlSet = 1 << 1 // controller pair (1, 33) is 14-bit

	var out []Event
	out = append(out, c.FeedCtl(0, 0, 1, 0x40)...)
	if len(out) != 0 {
		t.Fatalf("expected no event after MSB only, got %+v", out)
	}
	out = append(out, c.FeedCtl(0, 0, 33, 0x10)...)
	if len(out) != 1 || out[0].Cmd != CmdXCtl {
		t.Fatalf("expected one XCtl event, got %+v", out)
	}
	full := int32(0x40)<<7 | 0x10
	if out[0].Val0 != 1 || out[0].Val1 != full {
		t.Fatalf("unexpected XCtl payload: %+v want value %#x", out[0], full)
	}

	packed := PackRaw(out[0], c.XCtlSet, c.Flags)
	if len(packed) != 2 {
		t.Fatalf("expected pack to split into 2 ctl messages, got %d", len(packed))
	}
	if packed[0].Val0 != 1 || packed[0].Val1 != 0x40 {
		t.Fatalf("unexpected MSB message: %+v", packed[0])
	}
	if packed[1].Val0 != 33 || packed[1].Val1 != 0x10 {
		t.Fatalf("unexpected LSB message: %+v", packed[1])
	}
}

func TestPlainCtlPassthrough(t *testing.T) {
	c := NewConv()
	out := c.FeedCtl(0, 0, 7, 100)
	if len(out) != 1 || out[0].Cmd != CmdCtl || out[0].Val0 != 7 || out[0].Val1 != 100 {
		t.Fatalf("expected passthrough ctl event, got %+v", out)
	}
}

func TestNoteOnVelocityZeroNormalizesToNoteOff(t *testing.T) {
	ev := Event{Cmd: CmdNoteOn, Chan: 0, Val0: 60, Val1: 0}.Normalize()
	if ev.Cmd != CmdNoteOff {
		t.Fatalf("expected normalization to NoteOff, got %v", ev.Cmd)
	}
}

func TestWireRoundTripVoiceMessages(t *testing.T) {
	cases := []Event{
		{Cmd: CmdNoteOn, Chan: 2, Val0: 60, Val1: 100},
		{Cmd: CmdNoteOff, Chan: 2, Val0: 60, Val1: 0},
		{Cmd: CmdKeyAftertouch, Chan: 2, Val0: 60, Val1: 50},
		{Cmd: CmdChanAftertouch, Chan: 2, Val0: 50},
		{Cmd: CmdProgChange, Chan: 2, Val0: 12},
		{Cmd: CmdCtl, Chan: 2, Val0: 7, Val1: 90},
		{Cmd: CmdBend, Chan: 2, Val1: 0x1234},
	}
	for _, ev := range cases {
		status, data, ok := ev.ToBytes()
		if !ok {
			t.Fatalf("ToBytes failed for %+v", ev)
		}
		got, ok := FromStatus(status, data)
		if !ok {
			t.Fatalf("FromStatus failed for status=%#x data=%v", status, data)
		}
		if got.Cmd != ev.Cmd || got.Chan != ev.Chan || got.Val0 != ev.Val0 || got.Val1 != ev.Val1 {
			t.Fatalf("round trip mismatch: got %+v want %+v", got, ev)
		}
	}
}

func TestKeyOfSharesNoteFamily(t *testing.T) {
	on := Event{Cmd: CmdNoteOn, Dev: 0, Chan: 1, Val0: 60}
	off := Event{Cmd: CmdNoteOff, Dev: 0, Chan: 1, Val0: 60}
	kat := Event{Cmd: CmdKeyAftertouch, Dev: 0, Chan: 1, Val0: 60}
	if KeyOf(on) != KeyOf(off) || KeyOf(on) != KeyOf(kat) {
		t.Fatalf("note family events should share one key")
	}
}
