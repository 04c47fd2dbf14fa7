package device

import (
	"fmt"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

// MidiV2Backend is the concrete Backend over gitlab.com/gomidi/midi/v2,
// grounded on the teacher's midi/manager.go port enumeration and
// midi/keyboard.go's ListenTo/SendTo usage.
type MidiV2Backend struct {
	in   drivers.In
	out  drivers.Out
	stop func()
}

// NewMidiV2Backend wraps an already-resolved input/output port pair.
// Either may be nil for an output-only or input-only device.
func NewMidiV2Backend(in drivers.In, out drivers.Out) *MidiV2Backend {
	return &MidiV2Backend{in: in, out: out}
}

// Open starts delivering raw status+data bytes for every incoming
// message on the input port, via gomidi.ListenTo's callback, which
// already resolves running status internally — handler therefore
// always sees a complete status byte plus its data bytes, never a
// dangling running-status continuation. Device.handleRaw's own
// running-status tracking still applies for devices fed by a Backend
// that does not pre-resolve it (the fakeBackend test double).
func (b *MidiV2Backend) Open(handler func(raw []byte)) error {
	if b.in == nil {
		return nil
	}
	stop, err := gomidi.ListenTo(b.in, func(msg gomidi.Message, _ int32) {
		raw := msg.Bytes()
		if len(raw) == 0 {
			return
		}
		handler(raw)
	})
	if err != nil {
		return fmt.Errorf("device: open input %s: %w", b.in.String(), err)
	}
	b.stop = stop
	return nil
}

// Send writes one already-encoded message to the output port.
func (b *MidiV2Backend) Send(raw []byte) error {
	if b.out == nil {
		return nil
	}
	if !b.out.IsOpen() {
		if err := b.out.Open(); err != nil {
			return fmt.Errorf("device: open output %s: %w", b.out.String(), err)
		}
	}
	return gomidi.SendTo(b.out, gomidi.Message(raw))
}

// Close stops input delivery and closes the output port.
func (b *MidiV2Backend) Close() error {
	if b.stop != nil {
		b.stop()
		b.stop = nil
	}
	if b.out != nil && b.out.IsOpen() {
		return b.out.Close()
	}
	return nil
}

// FindPort locates an input/output port pair by exact name match, the
// same lookup the teacher's port-scanning code performs for Launchpad
// detection, generalized to any port name.
func FindPort(name string) (in drivers.In, out drivers.Out) {
	for _, p := range gomidi.GetInPorts() {
		if p.String() == name {
			in = p
			break
		}
	}
	for _, p := range gomidi.GetOutPorts() {
		if p.String() == name {
			out = p
			break
		}
	}
	return in, out
}
