package mtc

import "testing"

// Builds the 8 quarter-frame data bytes for a full frame at
// hh:mm:ss:ff under the given rate id (0=24,1=25,2=30drop,3=30).
func fullFrame(hh, mm, ss, ff byte, rateID byte) [8]byte {
	var b [8]byte
	b[0] = 0<<4 | (ff & 0xF)
	b[1] = 1<<4 | ((ff >> 4) & 0x1)
	b[2] = 2<<4 | (ss & 0xF)
	b[3] = 3<<4 | ((ss >> 4) & 0x3)
	b[4] = 4<<4 | (mm & 0xF)
	b[5] = 5<<4 | ((mm >> 4) & 0x3)
	b[6] = 6<<4 | (hh & 0xF)
	b[7] = 7<<4 | (((hh >> 4) & 0x1) | (rateID&0x3)<<1)
	return b
}

func TestFullFrameReassembly(t *testing.T) {
	p := New()
	frame := fullFrame(1, 2, 3, 10, 1) // 01:02:03:10 @ 25fps

	var pos uint32
	var complete bool
	for _, b := range frame {
		pos, complete = p.Feed(b)
	}
	if !complete {
		t.Fatalf("expected piece 7 to complete the frame")
	}
	want := uint32((1*3600+2*60+3))*MTCSec + 10*(MTCSec/25)
	if pos != want {
		t.Fatalf("got pos %d want %d", pos, want)
	}
	if p.Rate() != Rate25 {
		t.Fatalf("expected Rate25, got %v", p.Rate())
	}
	if p.State() != Start {
		t.Fatalf("expected Start state after first full frame, got %v", p.State())
	}
}

func TestIntermediatePiecesDoNotComplete(t *testing.T) {
	p := New()
	frame := fullFrame(0, 0, 0, 0, 0)
	for i := 0; i < 7; i++ {
		if _, complete := p.Feed(frame[i]); complete {
			t.Fatalf("piece %d should not complete a frame", i)
		}
	}
}

func TestTickAdvancesAndEntersRun(t *testing.T) {
	p := New()
	frame := fullFrame(0, 0, 0, 0, 1) // 25fps
	for _, b := range frame {
		p.Feed(b)
	}
	before := p.Pos()
	after := p.Tick()
	if after <= before {
		t.Fatalf("tick should advance position, got before=%d after=%d", before, after)
	}
	if p.State() != Run {
		t.Fatalf("expected Run state after a tick, got %v", p.State())
	}
}

func TestStopResetsReassembly(t *testing.T) {
	p := New()
	frame := fullFrame(1, 0, 0, 0, 1)
	for _, b := range frame {
		p.Feed(b)
	}
	p.Stop()
	if p.State() != Stop {
		t.Fatalf("expected Stop state after Stop()")
	}
}
