package relay

import (
	"time"

	"github.com/ayusman/handrelay/internal/pose"
)

// DefaultInterval is the minimum spacing between two lines on the wire.
const DefaultInterval = 50 * time.Millisecond

// Throttle relays the most recent pose at most once per interval. A pose offered before
// the interval has elapsed is dropped, not queued, so the remote side never works
// through a backlog of stale positions.
type Throttle struct {
	encoder  Encoder
	sender   *Sender
	interval time.Duration
	now      func() time.Time

	last    time.Time
	sent    uint64
	dropped uint64
}

// NewThrottle creates a Throttle. A non-positive interval uses DefaultInterval.
func NewThrottle(enc Encoder, sender *Sender, interval time.Duration) *Throttle {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Throttle{
		encoder:  enc,
		sender:   sender,
		interval: interval,
		now:      time.Now,
	}
}

// Offer encodes and sends p if the interval since the last send has elapsed.
// It reports whether a line was written. Transport failures are returned as-is and the
// pose is not retried.
func (t *Throttle) Offer(p pose.Pose) (bool, error) {
	now := t.now()
	if !t.last.IsZero() && now.Sub(t.last) < t.interval {
		t.dropped++
		return false, nil
	}

	line, err := t.encoder.Encode(p)
	if err != nil {
		return false, err
	}

	if err := t.sender.Send(line); err != nil {
		return false, err
	}

	t.last = now
	t.sent++
	return true, nil
}

// Sent returns the number of lines written.
func (t *Throttle) Sent() uint64 {
	return t.sent
}

// Dropped returns the number of poses discarded by rate control.
func (t *Throttle) Dropped() uint64 {
	return t.dropped
}

// Interval returns the minimum spacing between sends.
func (t *Throttle) Interval() time.Duration {
	return t.interval
}
