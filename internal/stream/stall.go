package stream

import (
	"sync"
	"time"
)

// StallSupervisor watches for a connection that stays open but stops
// delivering frames. Arm replaces any pending deadline with a fresh one;
// if a deadline elapses unreplaced, onStall fires exactly once and the
// supervisor goes inert.
//
// One supervisor belongs to one connection attempt. At most one deadline
// is live at any time.
type StallSupervisor struct {
	timeout time.Duration
	onStall func()

	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64
	stopped bool
}

// NewStallSupervisor returns an unarmed supervisor.
func NewStallSupervisor(timeout time.Duration, onStall func()) *StallSupervisor {
	return &StallSupervisor{
		timeout: timeout,
		onStall: onStall,
	}
}

// Arm cancels any pending deadline and schedules a new one. Every received
// frame re-arms the supervisor.
func (s *StallSupervisor) Arm() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	// The generation check catches a timer callback that was already in
	// flight when Stop or a re-arm raced with it.
	s.gen++
	gen := s.gen
	s.timer = time.AfterFunc(s.timeout, func() { s.fire(gen) })
}

// Stop cancels the pending deadline permanently. Safe to call repeatedly,
// including on a supervisor that already fired.
func (s *StallSupervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *StallSupervisor) fire(gen uint64) {
	s.mu.Lock()
	if s.stopped || gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.timer = nil
	s.mu.Unlock()

	s.onStall()
}
