package cache

import (
	"testing"
	"time"

	"spritebot/model"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestCache() (*ResultCache, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	return New(WithClock(clock.now)), clock
}

func TestKeyIgnoresArgumentOrder(t *testing.T) {
	a := map[string]any{"location": "Paris", "units": "metric", "nested": map[string]any{"x": 1, "y": 2}}
	b := map[string]any{"nested": map[string]any{"y": 2, "x": 1}, "units": "metric", "location": "Paris"}

	if Key("get_weather", a) != Key("get_weather", b) {
		t.Error("keys differ for equal args with different insertion order")
	}
	if Key("get_weather", a) == Key("get_current_time", a) {
		t.Error("keys must differ across tool names")
	}
	if Key("get_weather", a) == Key("get_weather", map[string]any{"location": "Rome"}) {
		t.Error("keys must differ across args")
	}
}

func TestGetPutRoundTrip(t *testing.T) {
	c, _ := newTestCache()
	args := map[string]any{"location": "Paris"}
	want := model.ToolCallResult{Success: true, Content: "sunny", Metadata: map[string]any{"temp": 21.0}}

	if _, ok := c.Get("get_weather", args); ok {
		t.Fatal("empty cache returned a hit")
	}

	c.Put("get_weather", args, want, time.Minute)

	got, ok := c.Get("get_weather", map[string]any{"location": "Paris"})
	if !ok {
		t.Fatal("expected hit")
	}
	if got.Content != want.Content || got.Success != want.Success || got.Metadata["temp"] != 21.0 {
		t.Errorf("Get() = %+v, want %+v", got, want)
	}
}

func TestExpiry(t *testing.T) {
	c, clock := newTestCache()
	args := map[string]any{"location": "Paris"}
	c.Put("get_weather", args, model.ToolCallResult{Success: true}, 10*time.Minute)

	clock.advance(9 * time.Minute)
	if _, ok := c.Get("get_weather", args); !ok {
		t.Fatal("entry should still be present before ttl")
	}

	clock.advance(2 * time.Minute)
	if _, ok := c.Get("get_weather", args); ok {
		t.Error("entry should be absent after ttl")
	}
	if c.Stats().Size != 0 {
		t.Error("expired entry should be removed lazily on read")
	}
}

func TestDefaultTTL(t *testing.T) {
	c, clock := newTestCache()
	c.Put("t", nil, model.ToolCallResult{Success: true}, 0)

	clock.advance(DefaultTTL - time.Second)
	if _, ok := c.Get("t", nil); !ok {
		t.Fatal("entry should be present before default ttl")
	}
	clock.advance(2 * time.Second)
	if _, ok := c.Get("t", nil); ok {
		t.Error("entry should expire after default ttl")
	}
}

func TestSweepExpired(t *testing.T) {
	c, clock := newTestCache()
	c.Put("a", nil, model.ToolCallResult{Success: true}, time.Minute)
	c.Put("b", nil, model.ToolCallResult{Success: true}, time.Hour)

	clock.advance(2 * time.Minute)
	if n := c.SweepExpired(); n != 1 {
		t.Errorf("SweepExpired() = %d, want 1", n)
	}
	if s := c.Stats(); s.Size != 1 || s.Keys[0] != Key("b", nil) {
		t.Errorf("unexpected stats after sweep: %+v", s)
	}
}

func TestClear(t *testing.T) {
	c, _ := newTestCache()
	c.Put("a", nil, model.ToolCallResult{Success: true}, time.Minute)
	c.Clear()
	if c.Stats().Size != 0 {
		t.Error("Clear() left entries behind")
	}
}

func TestStartSweeper(t *testing.T) {
	c := New()
	stop, err := c.StartSweeper("")
	if err != nil {
		t.Fatalf("StartSweeper: %v", err)
	}
	stop()

	if _, err := c.StartSweeper("not a schedule"); err == nil {
		t.Error("expected error for invalid schedule")
	}
}
