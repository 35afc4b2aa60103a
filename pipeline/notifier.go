package pipeline

import (
	"sync"
	"time"
)

// Deferred is a cancelable task scheduled by After.
type Deferred struct {
	timer *time.Timer
	done  chan struct{}

	once  sync.Once
	fired bool
}

// After runs fn once d has elapsed unless the returned task is cancelled
// first. A non-positive d disables the task.
func After(d time.Duration, fn func()) *Deferred {
	df := &Deferred{done: make(chan struct{})}
	if d <= 0 || fn == nil {
		return df
	}
	df.timer = time.AfterFunc(d, func() {
		defer close(df.done)
		fn()
	})
	return df
}

// Cancel stops the task. It reports whether fn already ran; in that case
// Cancel waits for fn to return so the caller can undo its effect.
// Repeated calls return the first result.
func (df *Deferred) Cancel() bool {
	df.once.Do(func() {
		if df.timer == nil || df.timer.Stop() {
			return
		}
		<-df.done
		df.fired = true
	})
	return df.fired
}
