package voting

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// countdown is the moderator-side timer driver. The moderator's client is
// the sole source of countdown truth; every tick is broadcast and other
// clients only mirror the value. There is no server-side authoritative
// clock.
type countdown struct {
	clock clockwork.Clock

	mu        sync.Mutex
	limitSec  int
	remaining int
	active    bool
	running   bool
	stopCh    chan struct{}

	// onTick fires once per second while the countdown runs; onExpire
	// fires once when the countdown reaches zero. Both run outside the
	// countdown lock.
	onTick   func(remaining, limit int, active bool)
	onExpire func()
}

func newCountdown(clock clockwork.Clock) *countdown {
	return &countdown{clock: clock}
}

// Start begins a fresh countdown from limitSec, replacing any countdown
// already running.
func (t *countdown) Start(ctx context.Context, limitSec int) {
	t.mu.Lock()
	t.stopLocked()
	t.limitSec = limitSec
	t.remaining = limitSec
	t.active = true
	t.running = true
	stop := make(chan struct{})
	t.stopCh = stop
	t.mu.Unlock()

	go t.run(ctx, stop)
}

func (t *countdown) run(ctx context.Context, stop chan struct{}) {
	ticker := t.clock.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.Chan():
			t.mu.Lock()
			if !t.active {
				t.mu.Unlock()
				continue
			}
			t.remaining--
			remaining, limit := t.remaining, t.limitSec
			expired := remaining <= 0
			if expired {
				t.active = false
				t.running = false
			}
			onTick, onExpire := t.onTick, t.onExpire
			t.mu.Unlock()

			if onTick != nil {
				onTick(remaining, limit, !expired)
			}
			if expired {
				if onExpire != nil {
					onExpire()
				}
				return
			}
		}
	}
}

// Pause freezes the countdown without losing the remaining time.
func (t *countdown) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active = false
}

// Resume continues a paused countdown.
func (t *countdown) Resume() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		t.active = true
	}
}

// Reset returns the countdown to the full limit, paused.
func (t *countdown) Reset(limitSec int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.limitSec = limitSec
	t.remaining = limitSec
	t.active = false
}

// Stop ends the countdown goroutine.
func (t *countdown) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

func (t *countdown) stopLocked() {
	if t.running && t.stopCh != nil {
		close(t.stopCh)
		t.stopCh = nil
	}
	t.running = false
	t.active = false
}

// Remaining reports the current remaining seconds and whether the
// countdown is ticking.
func (t *countdown) Remaining() (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining, t.active
}
