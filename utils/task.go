package utils

import (
	"sync"
	"time"
)

// Task is a cancellable scheduled callback bound to a surface lifecycle.
type Task struct {
	mu        sync.Mutex
	timer     *time.Timer
	cancelled bool
}

// Schedule runs fn once after d unless the task is cancelled first.
func Schedule(d time.Duration, fn func()) *Task {
	t := &Task{}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timer = time.AfterFunc(d, func() {
		t.mu.Lock()
		if t.cancelled {
			t.mu.Unlock()
			return
		}
		t.cancelled = true
		t.mu.Unlock()
		fn()
	})
	return t
}

// Cancel stops the task. It returns false if fn already started.
func (t *Task) Cancel() bool {
	if t == nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancelled {
		return false
	}
	t.cancelled = true
	t.timer.Stop()
	return true
}
