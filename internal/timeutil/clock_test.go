package timeutil

import (
	"testing"
	"time"
)

func TestRealClockNow(t *testing.T) {
	c := RealClock{}
	before := time.Now()
	now := c.Now()
	if now.Before(before) {
		t.Error("RealClock.Now went backwards")
	}
	if c.Since(before) < 0 {
		t.Error("RealClock.Since returned negative duration")
	}
}

func TestManualClockAdvance(t *testing.T) {
	start := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	c := NewManualClock(start)

	if !c.Now().Equal(start) {
		t.Fatalf("Now = %v, want %v", c.Now(), start)
	}

	c.Advance(3 * time.Second)
	if got := c.Since(start); got != 3*time.Second {
		t.Errorf("Since = %v, want 3s", got)
	}
}

func TestManualTickerFires(t *testing.T) {
	c := NewManualClock(time.Unix(0, 0))
	tick := c.NewTicker(50 * time.Millisecond)
	defer tick.Stop()

	c.Advance(50 * time.Millisecond)
	select {
	case <-tick.C():
	default:
		t.Fatal("ticker did not fire after one period")
	}

	// Stopped tickers stay silent.
	tick.Stop()
	c.Advance(time.Second)
	select {
	case <-tick.C():
		t.Fatal("stopped ticker fired")
	default:
	}
}
