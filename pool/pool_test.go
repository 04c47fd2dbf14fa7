package pool

import "testing"

func TestAcquireReleaseNoAliasing(t *testing.T) {
	p := New[int](4)
	a := p.Acquire()
	b := p.Acquire()
	if a == b {
		t.Fatalf("aliasing indices: %d == %d", a, b)
	}
	*p.Get(a) = 1
	*p.Get(b) = 2
	if *p.Get(a) != 1 || *p.Get(b) != 2 {
		t.Fatalf("slots interfered: a=%d b=%d", *p.Get(a), *p.Get(b))
	}
	p.Release(a)
	c := p.Acquire()
	if c != a {
		t.Fatalf("expected reused slot %d, got %d", a, c)
	}
	if *p.Get(c) != 0 {
		t.Fatalf("acquired slot not zeroed: %d", *p.Get(c))
	}
}

func TestExhaustion(t *testing.T) {
	p := New[int](2)
	var fatalErr error
	p.Fatal = func(err error) { fatalErr = err }
	p.Acquire()
	p.Acquire()
	idx := p.Acquire()
	if idx != NoIndex {
		t.Fatalf("expected NoIndex on exhaustion, got %d", idx)
	}
	if fatalErr == nil {
		t.Fatalf("expected Fatal to be invoked on exhaustion")
	}
}

func TestDoubleReleasePanics(t *testing.T) {
	p := New[int](2)
	a := p.Acquire()
	p.Release(a)
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on double release")
		}
	}()
	p.Release(a)
}

func TestNetAliveWithinCapacityNeverAliases(t *testing.T) {
	p := New[int](8)
	live := map[Index]bool{}
	for i := 0; i < 1000; i++ {
		if len(live) < 8 && (i%3 != 0 || len(live) == 0) {
			idx := p.Acquire()
			if live[idx] {
				t.Fatalf("acquired already-live index %d", idx)
			}
			live[idx] = true
		} else {
			for idx := range live {
				p.Release(idx)
				delete(live, idx)
				break
			}
		}
	}
}
