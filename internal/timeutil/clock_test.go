package timeutil

import (
	"testing"
	"time"
)

func TestRealClock_Now(t *testing.T) {
	clock := RealClock{}
	before := time.Now()
	now := clock.Now()
	after := time.Now()

	if now.Before(before) || now.After(after) {
		t.Errorf("Now() = %v, expected between %v and %v", now, before, after)
	}
}

func TestRealClock_Since(t *testing.T) {
	clock := RealClock{}
	past := time.Now().Add(-time.Second)
	if d := clock.Since(past); d < time.Second {
		t.Errorf("Since() returned %v, expected >= 1s", d)
	}
}

func TestRealClock_Sleep(t *testing.T) {
	clock := RealClock{}
	start := time.Now()
	clock.Sleep(5 * time.Millisecond)
	if d := time.Since(start); d < 5*time.Millisecond {
		t.Errorf("Sleep returned after %v", d)
	}
}

func TestMockClock(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	c := NewMockClock(start)
	var _ Clock = c

	if !c.Now().Equal(start) {
		t.Fatalf("Now() = %v, want %v", c.Now(), start)
	}

	c.Advance(time.Minute)
	if got := c.Since(start); got != time.Minute {
		t.Errorf("Since() = %v, want 1m", got)
	}

	c.Sleep(2 * time.Second)
	c.Sleep(3 * time.Second)
	if got := c.Since(start); got != time.Minute+5*time.Second {
		t.Errorf("Since() after sleeps = %v", got)
	}
	sleeps := c.Sleeps()
	if len(sleeps) != 2 || sleeps[0] != 2*time.Second || sleeps[1] != 3*time.Second {
		t.Errorf("Sleeps() = %v", sleeps)
	}

	sleeps[0] = 0
	if c.Sleeps()[0] != 2*time.Second {
		t.Error("Sleeps() must return a copy")
	}

	c.Set(start)
	if !c.Now().Equal(start) {
		t.Errorf("Set did not reset the clock")
	}
}
