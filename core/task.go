package core

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// EventMask is a set of task event bits.
type EventMask uint32

const (
	// EventI2CIdle is posted by the I2C interrupt dispatch when a port
	// finishes its bus cycle.
	EventI2CIdle EventMask = 1 << 0

	// EventTimer is synthesized by Wait when the deadline expires. It is
	// reserved; other code must not post it.
	EventTimer EventMask = 1 << 31
)

// Task is a cooperative execution context that can block on events.
// Drivers park the calling task until an interrupt posts the event they
// need; events posted while the task runs stay pending until the next
// Wait.
type Task struct {
	name string
	clk  clock.Clock

	mu      sync.Mutex
	pending EventMask

	// wake has capacity 1 so SetEvent never blocks, even from an
	// interrupt path.
	wake chan struct{}
}

// NewTask creates a task on the real clock.
func NewTask(name string) *Task {
	return NewTaskWithClock(name, clock.New())
}

// NewTaskWithClock creates a task whose deadlines run on clk.
func NewTaskWithClock(name string, clk clock.Clock) *Task {
	if clk == nil {
		clk = clock.New()
	}
	return &Task{
		name: name,
		clk:  clk,
		wake: make(chan struct{}, 1),
	}
}

// Name returns the task's name.
func (t *Task) Name() string { return t.name }

// SetEvent posts events to the task and wakes it if it is waiting.
// Safe to call from any goroutine, including interrupt dispatch.
func (t *Task) SetEvent(ev EventMask) {
	t.mu.Lock()
	t.pending |= ev
	t.mu.Unlock()

	select {
	case t.wake <- struct{}{}:
	default:
	}
}

// Events peeks at the pending events without clearing them.
func (t *Task) Events() EventMask {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending
}

// Wait blocks until at least one event is pending or the timeout
// expires, then returns and clears every pending bit. On timeout the
// returned mask has EventTimer set, possibly alongside events that
// arrived late. A timeout <= 0 waits forever.
func (t *Task) Wait(timeout time.Duration) EventMask {
	var timer *clock.Timer
	var expired <-chan time.Time
	if timeout > 0 {
		timer = t.clk.Timer(timeout)
		expired = timer.C
		defer timer.Stop()
	}

	for {
		t.mu.Lock()
		if t.pending != 0 {
			ev := t.pending
			t.pending = 0
			t.mu.Unlock()
			return ev
		}
		t.mu.Unlock()

		select {
		case <-t.wake:
			// Re-check pending; the wake may be stale.
		case <-expired:
			t.mu.Lock()
			ev := t.pending | EventTimer
			t.pending = 0
			t.mu.Unlock()
			return ev
		}
	}
}
