package pipeline

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestDeferredCancelBeforeFire(t *testing.T) {
	var ran atomic.Bool
	df := After(time.Hour, func() { ran.Store(true) })
	if df.Cancel() {
		t.Error("Cancel reported fired for a pending task")
	}
	if ran.Load() {
		t.Error("task ran after cancel")
	}
}

func TestDeferredCancelAfterFire(t *testing.T) {
	fired := make(chan struct{})
	df := After(time.Millisecond, func() { close(fired) })
	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("task never fired")
	}
	if !df.Cancel() {
		t.Error("Cancel should report that the task ran")
	}
	if !df.Cancel() {
		t.Error("second Cancel should repeat the first result")
	}
}

func TestDeferredCancelWaitsForRunningTask(t *testing.T) {
	started := make(chan struct{})
	var finished atomic.Bool
	df := After(time.Millisecond, func() {
		close(started)
		time.Sleep(50 * time.Millisecond)
		finished.Store(true)
	})
	<-started
	if !df.Cancel() {
		t.Fatal("Cancel should report that the task ran")
	}
	if !finished.Load() {
		t.Error("Cancel returned before the task finished")
	}
}

func TestDeferredDisabled(t *testing.T) {
	var ran atomic.Bool
	for _, d := range []time.Duration{0, -time.Second} {
		df := After(d, func() { ran.Store(true) })
		if df.Cancel() {
			t.Errorf("After(%v): Cancel reported fired", d)
		}
	}
	time.Sleep(10 * time.Millisecond)
	if ran.Load() {
		t.Error("disabled task ran")
	}
}
