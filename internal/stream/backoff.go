package stream

import "time"

// Reconnect-delay tier parameters.
const (
	initialErrorDelay = 5 * time.Second
	maxErrorDelay     = 320 * time.Second

	initialRateLimitDelay = 60 * time.Second

	initialPreEstablishedDelay = 250 * time.Millisecond
	preEstablishedStep         = 250 * time.Millisecond
	maxPreEstablishedDelay     = 16 * time.Second

	// Minimum spacing between connection attempts, regardless of tier.
	flapGuardWindow = 5 * time.Second
)

// backoffState tracks the three independent reconnect-delay tiers. It
// persists across connection attempts for the life of the controller.
type backoffState struct {
	errorDelay          time.Duration
	rateLimitDelay      time.Duration
	preEstablishedDelay time.Duration
}

func newBackoffState() backoffState {
	return backoffState{
		errorDelay:          initialErrorDelay,
		rateLimitDelay:      initialRateLimitDelay,
		preEstablishedDelay: initialPreEstablishedDelay,
	}
}

// reset returns every tier to its initial delay. Called on each successful
// stream establishment.
func (b *backoffState) reset() {
	*b = newBackoffState()
}

// nextError returns the current generic-error delay, then doubles it up to
// the cap.
func (b *backoffState) nextError() time.Duration {
	d := b.errorDelay
	if b.errorDelay < maxErrorDelay {
		b.errorDelay *= 2
	}
	return d
}

// nextRateLimit returns the current rate-limit delay, then doubles it.
func (b *backoffState) nextRateLimit() time.Duration {
	d := b.rateLimitDelay
	b.rateLimitDelay *= 2
	return d
}

// nextPreEstablished returns the current pre-established delay, then
// increments it up to the cap.
func (b *backoffState) nextPreEstablished() time.Duration {
	d := b.preEstablishedDelay
	if b.preEstablishedDelay < maxPreEstablishedDelay {
		b.preEstablishedDelay += preEstablishedStep
	}
	return d
}
