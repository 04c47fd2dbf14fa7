package engine

import (
	"time"

	"github.com/grahamseamans/seqcore/device"
)

// DeviceStatus is one device's read-only health snapshot, grounded on
// the fields a monitor needs to render per-device liveness: whether
// it's failed and how recently it was last heard from.
type DeviceStatus struct {
	Unit       uint8
	Mode       string
	Failed     bool
	LastSensed time.Time
}

// Status is a point-in-time, race-free snapshot of the engine for a
// read-only observer (a monitor TUI, a health check), the equivalent
// of the teacher's Manager.GetState but covering transport phase and
// every device instead of one sequencer's step/playing/tempo triad.
type Status struct {
	Phase   string
	Tempo   uint32 // TickLength, in 1/24-µs per tick
	TicRate uint32
	CurTic  uint32
	CurPos  uint32
	Devices []DeviceStatus
}

// Status returns the most recently published snapshot. Safe to call
// from any goroutine.
func (e *Engine) Status() Status {
	e.statusMu.RLock()
	defer e.statusMu.RUnlock()
	return e.status
}

// publishStatus recomputes the snapshot from live engine state and
// notifies UpdateChan. Must only be called from the engine goroutine,
// the same rule as every other Engine mutation.
func (e *Engine) publishStatus() {
	devs := make([]DeviceStatus, len(e.Devices))
	for i, d := range e.Devices {
		mode := ""
		switch {
		case d.Mode&(device.ModeIn|device.ModeOut) == device.ModeIn|device.ModeOut:
			mode = "in/out"
		case d.Mode&device.ModeIn != 0:
			mode = "in"
		case d.Mode&device.ModeOut != 0:
			mode = "out"
		}
		devs[i] = DeviceStatus{
			Unit:       d.Unit,
			Mode:       mode,
			Failed:     d.Failed(),
			LastSensed: d.LastSensed(),
		}
	}

	next := Status{
		Phase:   e.Transport.Phase.String(),
		Tempo:   e.Transport.TickLength,
		TicRate: e.Transport.TicRate,
		CurTic:  e.Transport.CurTic,
		CurPos:  e.Transport.CurPos,
		Devices: devs,
	}

	e.statusMu.Lock()
	e.status = next
	e.statusMu.Unlock()

	select {
	case e.UpdateChan <- struct{}{}:
	default:
	}
}
