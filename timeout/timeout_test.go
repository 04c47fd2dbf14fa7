package timeout

import "testing"

func TestFiresInDeadlineOrder(t *testing.T) {
	p := NewPool(8)
	w := New(p)

	var fired []string
	a := w.Alloc(func() { fired = append(fired, "a") })
	b := w.Alloc(func() { fired = append(fired, "b") })
	c := w.Alloc(func() { fired = append(fired, "c") })

	w.Add(b, 200)
	w.Add(a, 50)
	w.Add(c, 100)

	w.Update(250)
	if want := []string{"a", "c", "b"}; !equal(fired, want) {
		t.Fatalf("got %v want %v", fired, want)
	}
}

func TestUpdateOnlyFiresExpired(t *testing.T) {
	p := NewPool(8)
	w := New(p)
	fired := 0
	a := w.Alloc(func() { fired++ })
	w.Add(a, 1000)

	w.Update(500)
	if fired != 0 {
		t.Fatalf("timeout should not have fired yet")
	}
	if !w.IsSet(a) {
		t.Fatalf("timeout should still be scheduled")
	}

	w.Update(500)
	if fired != 1 {
		t.Fatalf("expected exactly one fire, got %d", fired)
	}
}

func TestDelUnschedulesAndIsIdempotent(t *testing.T) {
	p := NewPool(8)
	w := New(p)
	fired := false
	a := w.Alloc(func() { fired = true })
	w.Add(a, 10)
	w.Del(a)
	w.Del(a) // must not panic on a non-scheduled handle

	w.Update(100)
	if fired {
		t.Fatalf("deleted timeout must not fire")
	}
}

func TestCallbackCanRescheduleItself(t *testing.T) {
	p := NewPool(8)
	w := New(p)
	count := 0
	var self Handle
	self = w.Alloc(func() {
		count++
		if count < 3 {
			w.Add(self, 10)
		}
	})
	w.Add(self, 10)

	w.Update(10)
	w.Update(10)
	w.Update(10)
	if count != 3 {
		t.Fatalf("expected 3 fires from self-rescheduling, got %d", count)
	}
}

// Scenario 5: ordering must hold across a 32-bit wrap of abstime.
func TestOrderingAcrossUint32Wraparound(t *testing.T) {
	p := NewPool(8)
	w := New(p)
	w.abstime = 0xFFFFFFF0 // 16 ticks from wrapping back to 0

	var fired []string
	early := w.Alloc(func() { fired = append(fired, "early") })
	late := w.Alloc(func() { fired = append(fired, "late") })

	w.Add(early, 5)  // deadline 0xFFFFFFF5, before the wrap
	w.Add(late, 25)  // deadline wraps to 0x00000009, after the wrap

	w.Update(10) // abstime -> 0xFFFFFFFA, only early has passed
	if !equal(fired, []string{"early"}) {
		t.Fatalf("expected only early to fire before the wrap, got %v", fired)
	}

	w.Update(20) // abstime -> 0x0000000E, past the wrap, late now due
	if !equal(fired, []string{"early", "late"}) {
		t.Fatalf("expected late to fire after the wrap, got %v", fired)
	}
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
