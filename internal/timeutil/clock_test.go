package timeutil

import (
	"testing"
	"time"
)

func TestRealClockNow(t *testing.T) {
	c := RealClock{}
	before := time.Now()
	got := c.Now()
	after := time.Now()

	if got.Before(before) || got.After(after) {
		t.Errorf("RealClock.Now() = %v, want between %v and %v", got, before, after)
	}
}

func TestRealClockSince(t *testing.T) {
	c := RealClock{}
	past := time.Now().Add(-time.Hour)
	if d := c.Since(past); d < time.Hour {
		t.Errorf("RealClock.Since() = %v, want at least an hour", d)
	}
}

func TestMockClockNow(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewMockClock(base)

	if got := c.Now(); !got.Equal(base) {
		t.Errorf("MockClock.Now() = %v, want %v", got, base)
	}

	// Time does not move on its own.
	if got := c.Now(); !got.Equal(base) {
		t.Errorf("MockClock.Now() moved to %v", got)
	}
}

func TestMockClockAdvance(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewMockClock(base)

	c.Advance(90 * time.Minute)
	want := base.Add(90 * time.Minute)
	if got := c.Now(); !got.Equal(want) {
		t.Errorf("after Advance, Now() = %v, want %v", got, want)
	}
}

func TestMockClockSet(t *testing.T) {
	c := NewMockClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	target := time.Date(2026, 6, 15, 8, 30, 0, 0, time.UTC)

	c.Set(target)
	if got := c.Now(); !got.Equal(target) {
		t.Errorf("after Set, Now() = %v, want %v", got, target)
	}
}

func TestMockClockSince(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewMockClock(base)

	start := base.Add(-10 * time.Minute)
	if d := c.Since(start); d != 10*time.Minute {
		t.Errorf("MockClock.Since() = %v, want 10m", d)
	}
}
