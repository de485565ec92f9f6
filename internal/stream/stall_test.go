package stream

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestStallSupervisor_FiresAfterTimeout(t *testing.T) {
	var fired atomic.Int32
	s := NewStallSupervisor(30*time.Millisecond, func() { fired.Add(1) })

	s.Arm()
	time.Sleep(100 * time.Millisecond)

	if got := fired.Load(); got != 1 {
		t.Errorf("fired %d times, want 1", got)
	}
}

func TestStallSupervisor_FiresExactlyOnce(t *testing.T) {
	var fired atomic.Int32
	s := NewStallSupervisor(10*time.Millisecond, func() { fired.Add(1) })

	s.Arm()
	time.Sleep(100 * time.Millisecond)

	if got := fired.Load(); got != 1 {
		t.Errorf("fired %d times, want 1", got)
	}
}

func TestStallSupervisor_RearmDefersDeadline(t *testing.T) {
	var fired atomic.Int32
	s := NewStallSupervisor(80*time.Millisecond, func() { fired.Add(1) })

	// A frame arriving just before the deadline pushes it out by a full
	// window.
	s.Arm()
	time.Sleep(60 * time.Millisecond)
	s.Arm()
	time.Sleep(60 * time.Millisecond)

	if got := fired.Load(); got != 0 {
		t.Fatalf("fired %d times before the deferred deadline", got)
	}

	time.Sleep(60 * time.Millisecond)
	if got := fired.Load(); got != 1 {
		t.Errorf("fired %d times after the deferred deadline, want 1", got)
	}
}

func TestStallSupervisor_StopPreventsFiring(t *testing.T) {
	var fired atomic.Int32
	s := NewStallSupervisor(20*time.Millisecond, func() { fired.Add(1) })

	s.Arm()
	s.Stop()
	time.Sleep(80 * time.Millisecond)

	if got := fired.Load(); got != 0 {
		t.Errorf("fired %d times after Stop, want 0", got)
	}
}

func TestStallSupervisor_StopIdempotent(t *testing.T) {
	s := NewStallSupervisor(10*time.Millisecond, func() {})

	s.Stop()
	s.Stop()
	s.Arm() // no-op after Stop
	time.Sleep(30 * time.Millisecond)
}

func TestStallSupervisor_InertAfterFiring(t *testing.T) {
	var fired atomic.Int32
	s := NewStallSupervisor(10*time.Millisecond, func() { fired.Add(1) })

	s.Arm()
	time.Sleep(50 * time.Millisecond)
	if got := fired.Load(); got != 1 {
		t.Fatalf("fired %d times, want 1", got)
	}

	// Once fired the supervisor belongs to a dead attempt; re-arming is a
	// no-op.
	s.Arm()
	time.Sleep(50 * time.Millisecond)
	if got := fired.Load(); got != 1 {
		t.Errorf("fired %d times after inert re-arm, want 1", got)
	}
}
