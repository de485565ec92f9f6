package archive

import (
	"encoding/json"
	"sync"
	"time"
)

// Record is one spooled stream message awaiting persistence.
type Record struct {
	ReceivedAt time.Time
	Payload    json.RawMessage
}

// Spool is a thread-safe FIFO for records that grows ahead of demand:
// once it reaches 70% of capacity it doubles, so a slow database flush
// does not drop messages.
type Spool struct {
	mu     sync.Mutex
	buf    []Record
	head   int
	tail   int
	count  int
	cap    int
	closed bool

	pushed  int64
	popped  int64
	resizes int
}

// SpoolStats is a snapshot of spool counters.
type SpoolStats struct {
	Count   int
	Cap     int
	Pushed  int64
	Popped  int64
	Resizes int
}

// NewSpool creates a spool with the given initial capacity.
func NewSpool(initial int) *Spool {
	if initial < 1 {
		initial = 1
	}
	return &Spool{
		buf: make([]Record, initial),
		cap: initial,
	}
}

// Push appends a record. Returns false once the spool is closed.
func (s *Spool) Push(r Record) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	threshold := (s.cap * 70) / 100
	if threshold < 1 {
		threshold = 1
	}
	if s.count+1 >= threshold {
		s.grow()
	}

	s.buf[s.tail] = r
	s.tail = (s.tail + 1) % s.cap
	s.count++
	s.pushed++
	return true
}

// TryPop removes the oldest record without blocking. The second return
// is false when the spool is empty.
func (s *Spool) TryPop() (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.count == 0 {
		return Record{}, false
	}
	return s.popLocked(), true
}

// Drain removes up to max records, oldest first. max <= 0 drains
// everything.
func (s *Spool) Drain(max int) []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.count == 0 {
		return nil
	}

	n := s.count
	if max > 0 && max < n {
		n = max
	}
	out := make([]Record, n)
	for i := range out {
		out[i] = s.popLocked()
	}
	return out
}

// Close marks the spool closed. Records already spooled remain
// poppable; further pushes are refused.
func (s *Spool) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// Len returns the number of spooled records.
func (s *Spool) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Stats returns a snapshot of the spool counters.
func (s *Spool) Stats() SpoolStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SpoolStats{
		Count:   s.count,
		Cap:     s.cap,
		Pushed:  s.pushed,
		Popped:  s.popped,
		Resizes: s.resizes,
	}
}

func (s *Spool) popLocked() Record {
	r := s.buf[s.head]
	s.buf[s.head] = Record{}
	s.head = (s.head + 1) % s.cap
	s.count--
	s.popped++
	return r
}

// grow doubles capacity, unwrapping the ring into the new slice. Caller
// holds the lock.
func (s *Spool) grow() {
	next := make([]Record, s.cap*2)
	if s.count > 0 {
		if s.head < s.tail {
			copy(next, s.buf[s.head:s.tail])
		} else {
			n := copy(next, s.buf[s.head:])
			copy(next[n:], s.buf[:s.tail])
		}
	}
	s.buf = next
	s.head = 0
	s.tail = s.count
	s.cap *= 2
	s.resizes++
}
