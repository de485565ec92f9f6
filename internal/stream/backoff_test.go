package stream

import (
	"testing"
	"time"
)

func TestBackoff_ErrorTierDoublesAndCaps(t *testing.T) {
	b := newBackoffState()

	want := []time.Duration{
		5 * time.Second, 10 * time.Second, 20 * time.Second, 40 * time.Second,
		80 * time.Second, 160 * time.Second, 320 * time.Second, 320 * time.Second,
		320 * time.Second,
	}
	for i, w := range want {
		if got := b.nextError(); got != w {
			t.Errorf("nextError #%d = %v, want %v", i, got, w)
		}
	}
}

func TestBackoff_RateLimitTierDoubles(t *testing.T) {
	b := newBackoffState()

	want := []time.Duration{
		60 * time.Second, 120 * time.Second, 240 * time.Second, 480 * time.Second,
	}
	for i, w := range want {
		if got := b.nextRateLimit(); got != w {
			t.Errorf("nextRateLimit #%d = %v, want %v", i, got, w)
		}
	}
}

func TestBackoff_PreEstablishedTierIncrementsAndCaps(t *testing.T) {
	b := newBackoffState()

	// First three consecutive pre-established failures.
	want := []time.Duration{
		250 * time.Millisecond, 500 * time.Millisecond, 750 * time.Millisecond,
	}
	for i, w := range want {
		if got := b.nextPreEstablished(); got != w {
			t.Errorf("nextPreEstablished #%d = %v, want %v", i, got, w)
		}
	}

	// Drain to the cap: 0.25s + n*0.25s tops out at 16s.
	var last time.Duration
	for i := 0; i < 100; i++ {
		last = b.nextPreEstablished()
	}
	if last != maxPreEstablishedDelay {
		t.Errorf("capped delay = %v, want %v", last, maxPreEstablishedDelay)
	}
}

func TestBackoff_ResetRestoresInitialDelays(t *testing.T) {
	b := newBackoffState()

	for i := 0; i < 4; i++ {
		b.nextError()
		b.nextRateLimit()
		b.nextPreEstablished()
	}

	b.reset()

	if got := b.nextError(); got != 5*time.Second {
		t.Errorf("nextError after reset = %v, want 5s", got)
	}
	if got := b.nextRateLimit(); got != 60*time.Second {
		t.Errorf("nextRateLimit after reset = %v, want 60s", got)
	}
	if got := b.nextPreEstablished(); got != 250*time.Millisecond {
		t.Errorf("nextPreEstablished after reset = %v, want 250ms", got)
	}
}

func TestBackoff_TiersAreIndependent(t *testing.T) {
	b := newBackoffState()

	// Advancing one tier must not move the others.
	b.nextError()
	b.nextError()

	if got := b.nextRateLimit(); got != 60*time.Second {
		t.Errorf("nextRateLimit = %v, want 60s", got)
	}
	if got := b.nextPreEstablished(); got != 250*time.Millisecond {
		t.Errorf("nextPreEstablished = %v, want 250ms", got)
	}
}
