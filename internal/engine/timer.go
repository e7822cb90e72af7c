package engine

import (
	"sync"
	"time"
)

// CountdownTimer is a cancellable, single-fire countdown. Remaining time is
// always derived from the wall-clock deadline rather than tick counting, so
// expiry fires correctly even if the process was suspended past the
// deadline: the callback re-checks the clock and never drifts late.
type CountdownTimer struct {
	mu         sync.Mutex
	armed      bool
	generation uint64
	deadline   time.Time
	timer      *time.Timer
}

func NewCountdownTimer() *CountdownTimer {
	return &CountdownTimer{}
}

// Arm starts a one-shot countdown that invokes onExpire exactly once when
// the duration elapses, unless Cancel is called first. Arming an armed
// timer is a caller bug; the owning controller cancels first.
func (t *CountdownTimer) Arm(duration time.Duration, onExpire func()) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.armed {
		return ErrTimerAlreadyArmed
	}

	t.armed = true
	t.generation++
	t.deadline = time.Now().Add(duration)

	gen := t.generation
	t.timer = time.AfterFunc(duration, func() {
		t.fire(gen, onExpire)
	})
	return nil
}

// fire runs when the host timer goes off. A stale generation means the
// timer was cancelled or re-armed since scheduling; the deadline check
// re-schedules if the clock says we are somehow early.
func (t *CountdownTimer) fire(gen uint64, onExpire func()) {
	t.mu.Lock()
	if !t.armed || gen != t.generation {
		t.mu.Unlock()
		return
	}
	if remaining := time.Until(t.deadline); remaining > 0 {
		t.timer = time.AfterFunc(remaining, func() {
			t.fire(gen, onExpire)
		})
		t.mu.Unlock()
		return
	}
	t.armed = false
	t.mu.Unlock()

	onExpire()
}

// Cancel stops the countdown. After Cancel returns, onExpire is guaranteed
// not to be invoked for this arming. Safe to call on an idle timer.
func (t *CountdownTimer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.armed {
		return
	}
	t.armed = false
	t.generation++
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

// Armed reports whether a countdown is currently running.
func (t *CountdownTimer) Armed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.armed
}

// Remaining returns the time left until expiry, floored at zero. It is
// monotonically non-increasing between Arm and expiry/Cancel.
func (t *CountdownTimer) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.armed {
		return 0
	}
	remaining := time.Until(t.deadline)
	if remaining < 0 {
		return 0
	}
	return remaining
}
