package reactor

import (
	"testing"
	"time"
)

func TestTimerFires(t *testing.T) {
	r, err := New()
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer r.Close()

	fired := make(chan struct{}, 1)
	NewTimerEvent(r, 10*time.Millisecond, func() { fired <- struct{}{} }, false)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		cbs, err := r.Loop(50 * time.Millisecond)
		if err != nil {
			t.Fatalf("Loop() failed: %v", err)
		}
		for _, cb := range cbs {
			cb()
		}
		select {
		case <-fired:
			return
		default:
		}
	}
	t.Fatal("timer never fired")
}

func TestTimerCancelBeforeFire(t *testing.T) {
	r, err := New()
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer r.Close()

	fired := false
	ev := NewTimerEvent(r, 50*time.Millisecond, func() { fired = true }, false)
	ev.Close()

	cbs, err := r.Loop(100 * time.Millisecond)
	if err != nil {
		t.Fatalf("Loop() failed: %v", err)
	}
	for _, cb := range cbs {
		cb()
	}
	if fired {
		t.Error("canceled timer fired")
	}
}

func TestPersistentTimerRearms(t *testing.T) {
	r, err := New()
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer r.Close()

	count := 0
	ev := NewTimerEvent(r, 5*time.Millisecond, func() { count++ }, true)
	defer ev.Close()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && count < 3 {
		cbs, err := r.Loop(20 * time.Millisecond)
		if err != nil {
			t.Fatalf("Loop() failed: %v", err)
		}
		for _, cb := range cbs {
			cb()
		}
	}
	if count < 3 {
		t.Fatalf("expected at least 3 firings, got %d", count)
	}
}

func TestFdEventReadyBeforeTimeout(t *testing.T) {
	r, err := New()
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer r.Close()

	prA, pwA, err := pipeFDs()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer closeFDs(prA, pwA)

	ev := NewFdEvent(r, prA)
	ready := make(chan struct{}, 1)
	timedOut := make(chan struct{}, 1)
	if err := ev.Arm(Read, time.Second, func() { ready <- struct{}{} }, func() { timedOut <- struct{}{} }); err != nil {
		t.Fatalf("Arm: %v", err)
	}

	writeByte(pwA)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		cbs, err := r.Loop(50 * time.Millisecond)
		if err != nil {
			t.Fatalf("Loop() failed: %v", err)
		}
		for _, cb := range cbs {
			cb()
		}
		select {
		case <-ready:
			return
		case <-timedOut:
			t.Fatal("fd event timed out instead of firing ready")
		default:
		}
	}
	t.Fatal("fd event never fired")
}

func TestFdEventTimeout(t *testing.T) {
	r, err := New()
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer r.Close()

	prA, pwA, err := pipeFDs()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer closeFDs(prA, pwA)

	ev := NewFdEvent(r, prA)
	timedOut := make(chan struct{}, 1)
	if err := ev.Arm(Read, 20*time.Millisecond, func() { t.Error("unexpected ready") }, func() { timedOut <- struct{}{} }); err != nil {
		t.Fatalf("Arm: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		cbs, err := r.Loop(50 * time.Millisecond)
		if err != nil {
			t.Fatalf("Loop() failed: %v", err)
		}
		for _, cb := range cbs {
			cb()
		}
		select {
		case <-timedOut:
			return
		default:
		}
	}
	t.Fatal("fd event never timed out")
}
