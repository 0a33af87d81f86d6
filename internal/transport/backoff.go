package transport

import "time"

const (
	defaultBackoffInitial = 1 * time.Second
	defaultBackoffMax     = 30 * time.Second
)

// Backoff produces reconnect delays: starts at the initial delay, doubles
// on each consecutive failure, caps at the maximum, and resets to the
// initial delay on the first successful reconnect.
type Backoff struct {
	initial time.Duration
	max     time.Duration
	next    time.Duration
}

func NewBackoff(initial, max time.Duration) *Backoff {
	if initial <= 0 {
		initial = defaultBackoffInitial
	}
	if max < initial {
		max = defaultBackoffMax
	}
	return &Backoff{initial: initial, max: max, next: initial}
}

// Next returns the delay to wait before the next attempt and advances the
// schedule.
func (b *Backoff) Next() time.Duration {
	delay := b.next
	doubled := b.next * 2
	if doubled > b.max {
		doubled = b.max
	}
	b.next = doubled
	return delay
}

func (b *Backoff) Reset() {
	b.next = b.initial
}
