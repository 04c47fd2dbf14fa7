package engine

import (
	"context"
	"runtime"
	"time"
)

// TickPeriod is how often the engine goroutine wakes to service the
// timeout wheel and, absent an external clock or MTC source, advance
// the transport's own internal timer, independent of the MIDI event
// rate.
const TickPeriod = time.Millisecond

// usec24 converts a time.Duration's nanosecond count into
// 24ths-of-a-microsecond, the transport and timeout wheel's native
// unit: 24 per microsecond, so nanoseconds * 24 / 1000.
func usec24(d time.Duration) uint32 {
	return uint32(d.Nanoseconds() * 24 / 1000)
}

// Run drives the engine goroutine until ctx is canceled. It locks
// itself to its OS thread for the lifetime of the run, the same way
// the teacher's midiOutputLoop locks its output-dispatch goroutine so
// the periodic ticker's wakeups are not reordered behind unrelated
// goroutines by the Go scheduler.
//
// Every device is opened on its own goroutine (gomidi.ListenTo spawns
// one per port) and every device callback only ever enqueues a closure
// onto e.inbox rather than touching engine state directly; Run is the
// sole consumer of that channel, so pool/track/state/timeout/transport
// mutation is confined to this one goroutine for the engine's entire
// lifetime, matching spec §5's single-threaded core ordering guarantee
// despite the concurrent I/O boundary.
func (e *Engine) Run(ctx context.Context) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	ticker := time.NewTicker(TickPeriod)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-e.inbox:
			fn()
		case now := <-ticker.C:
			delta := now.Sub(last)
			last = now
			e.tick(delta)
		}
	}
}

func (e *Engine) tick(delta time.Duration) {
	if delta <= 0 {
		return
	}
	if delta > time.Second {
		// a suspend/resume or a debugger pause: discard the whole
		// interval rather than advancing the wheel and transport by it.
		return
	}
	units := usec24(delta)
	e.Wheel.Update(units)
	e.Transport.TimerCB(units)
}
