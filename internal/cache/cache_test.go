package cache

import (
	"testing"
	"time"

	"horse.fit/pulse/internal/globaltime"
)

func TestGetMissing(t *testing.T) {
	c := New(time.Minute, 4)
	if _, _, ok := c.Get("stats"); ok {
		t.Fatal("empty cache returned a value")
	}
}

func TestFreshAndStale(t *testing.T) {
	defer globaltime.ResetTime()
	base := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	globaltime.SetMockTime(base)

	c := New(time.Minute, 4)
	c.Set("stats", 42)

	value, fresh, ok := c.Get("stats")
	if !ok || !fresh || value.(int) != 42 {
		t.Fatalf("Get = (%v, %v, %v), want fresh 42", value, fresh, ok)
	}

	globaltime.SetMockTime(base.Add(2 * time.Minute))
	value, fresh, ok = c.Get("stats")
	if !ok || fresh {
		t.Fatalf("expired entry should be returned stale, got (fresh=%v, ok=%v)", fresh, ok)
	}
	if value.(int) != 42 {
		t.Fatalf("stale value = %v, want 42", value)
	}
}

func TestOverwriteRefreshes(t *testing.T) {
	defer globaltime.ResetTime()
	base := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	globaltime.SetMockTime(base)

	c := New(time.Minute, 4)
	c.Set("stats", 1)
	globaltime.SetMockTime(base.Add(2 * time.Minute))
	c.Set("stats", 2)

	value, fresh, ok := c.Get("stats")
	if !ok || !fresh || value.(int) != 2 {
		t.Fatalf("Get = (%v, %v, %v), want fresh 2", value, fresh, ok)
	}
}

func TestEvictsOldestWhenFull(t *testing.T) {
	defer globaltime.ResetTime()
	base := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	c := New(time.Hour, 2)
	globaltime.SetMockTime(base)
	c.Set("a", "a")
	globaltime.SetMockTime(base.Add(time.Second))
	c.Set("b", "b")
	globaltime.SetMockTime(base.Add(2 * time.Second))
	c.Set("c", "c")

	if _, _, ok := c.Get("a"); ok {
		t.Fatal("oldest entry should have been evicted")
	}
	if _, _, ok := c.Get("b"); !ok {
		t.Fatal("entry b should survive")
	}
	if _, _, ok := c.Get("c"); !ok {
		t.Fatal("entry c should survive")
	}
}

func TestInvalidate(t *testing.T) {
	c := New(time.Minute, 4)
	c.Set("stats", 1)
	c.Invalidate("stats")
	if _, _, ok := c.Get("stats"); ok {
		t.Fatal("invalidated entry still present")
	}
}
