package engagement

import (
	"testing"
	"time"
)

func TestSampleIndexesCoversRange(t *testing.T) {
	// Rotating draw so the shuffle actually moves elements around
	calls := 0
	draw := func(min, max int) int {
		calls++
		return min + (calls*7)%(max-min+1)
	}

	got := sampleIndexes(8, 3, draw)
	if len(got) != 3 {
		t.Fatalf("sample size = %d, expected 3", len(got))
	}
	seen := make(map[int]bool)
	for _, idx := range got {
		if idx < 0 || idx >= 8 {
			t.Errorf("index %d out of range [0,8)", idx)
		}
		if seen[idx] {
			t.Errorf("index %d drawn twice", idx)
		}
		seen[idx] = true
	}
	if got[0] == 0 && got[1] == 1 && got[2] == 2 {
		t.Error("sample is the grid-order prefix, shuffle had no effect")
	}
}

func TestSampleIndexesClampsCount(t *testing.T) {
	draw := func(min, max int) int { return min }

	if got := sampleIndexes(2, 5, draw); len(got) != 2 {
		t.Errorf("sample size = %d, expected clamp to 2", len(got))
	}
	if got := sampleIndexes(0, 3, draw); len(got) != 0 {
		t.Errorf("sample from empty grid = %d entries, expected none", len(got))
	}
}

func TestCountersCaps(t *testing.T) {
	c := NewCounters(30, 100)

	if !c.CanFollow() || !c.CanLike() {
		t.Fatal("fresh counters should allow actions")
	}

	for i := 0; i < 100; i++ {
		if !c.CanLike() {
			t.Fatalf("like %d refused before cap", i+1)
		}
		c.RecordLike()
	}

	// The 101st like must be refused with no side effects
	if c.CanLike() {
		t.Error("like allowed past daily cap of 100")
	}
	if c.LikesToday() != 100 {
		t.Errorf("likes today = %d, expected 100", c.LikesToday())
	}

	for i := 0; i < 30; i++ {
		c.RecordFollow()
	}
	if c.CanFollow() {
		t.Error("follow allowed past daily cap of 30")
	}
}

func TestCountersIndependent(t *testing.T) {
	c := NewCounters(1, 1)

	c.RecordLike()
	if c.CanLike() {
		t.Error("like cap not enforced")
	}
	if !c.CanFollow() {
		t.Error("follow cap tripped by like counter")
	}
}

func TestCountersReset(t *testing.T) {
	c := NewCounters(30, 100)
	c.RecordLike()
	c.RecordFollow()

	c.ResetDailyCounts()

	if c.LikesToday() != 0 || c.FollowsToday() != 0 {
		t.Errorf("after reset: likes=%d follows=%d, expected zeros", c.LikesToday(), c.FollowsToday())
	}
	if !c.CanLike() || !c.CanFollow() {
		t.Error("reset counters should allow actions")
	}
}

func TestCountersDayRollover(t *testing.T) {
	c := NewCounters(1, 1)
	c.RecordLike()
	c.RecordFollow()

	// Simulate the counters having last reset yesterday
	c.lastReset = time.Now().AddDate(0, 0, -1)

	if !c.CanLike() || !c.CanFollow() {
		t.Error("day rollover should clear the caps")
	}
	if c.LikesToday() != 0 {
		t.Errorf("likes today after rollover = %d, expected 0", c.LikesToday())
	}
}
