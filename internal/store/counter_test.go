package store

import (
	"testing"
	"time"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestCounter_IncrementAndPersist(t *testing.T) {
	dir := t.TempDir()
	c, err := OpenCounter(dir)
	if err != nil {
		t.Fatalf("OpenCounter failed: %v", err)
	}
	for want := 1; want <= 3; want++ {
		got, err := c.Increment()
		if err != nil {
			t.Fatalf("Increment failed: %v", err)
		}
		if got != want {
			t.Errorf("Increment = %d, want %d", got, want)
		}
	}

	reopened, err := OpenCounter(dir)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	if got := reopened.Count(); got != 3 {
		t.Errorf("Count after reopen = %d, want 3", got)
	}
}

func TestCounter_DayRollover(t *testing.T) {
	dayOne := time.Date(2025, 3, 10, 23, 50, 0, 0, time.UTC)
	dayTwo := dayOne.Add(20 * time.Minute) // crosses the UTC day boundary

	c, err := OpenCounter(t.TempDir())
	if err != nil {
		t.Fatalf("OpenCounter failed: %v", err)
	}
	c.now = fixedClock(dayOne)
	for i := 0; i < 5; i++ {
		if _, err := c.Increment(); err != nil {
			t.Fatalf("Increment failed: %v", err)
		}
	}
	if got := c.Count(); got != 5 {
		t.Fatalf("Count on day one = %d, want 5", got)
	}

	c.now = fixedClock(dayTwo)
	if got := c.Count(); got != 0 {
		t.Errorf("Count on day two = %d, want 0", got)
	}
	got, err := c.Increment()
	if err != nil {
		t.Fatalf("Increment failed: %v", err)
	}
	if got != 1 {
		t.Errorf("first Increment on day two = %d, want 1", got)
	}
}

func TestCounter_RolloverObservedOnReadPersists(t *testing.T) {
	dir := t.TempDir()
	dayOne := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	c, err := OpenCounter(dir)
	if err != nil {
		t.Fatalf("OpenCounter failed: %v", err)
	}
	c.now = fixedClock(dayOne)
	if _, err := c.Increment(); err != nil {
		t.Fatal(err)
	}

	c.now = fixedClock(dayOne.AddDate(0, 0, 1))
	if got := c.Count(); got != 0 {
		t.Fatalf("Count = %d, want 0", got)
	}

	// The rollover must have been written through.
	reopened, err := OpenCounter(dir)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	reopened.now = fixedClock(dayOne.AddDate(0, 0, 1))
	if got := reopened.Count(); got != 0 {
		t.Errorf("Count after reopen = %d, want 0", got)
	}
}

func TestMarker(t *testing.T) {
	m := NewMarker(t.TempDir())
	if m.Exists() {
		t.Fatal("marker should not exist initially")
	}
	if err := m.Write(time.Now()); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if !m.Exists() {
		t.Fatal("marker should exist after Write")
	}
	if err := m.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if m.Exists() {
		t.Fatal("marker should be gone after Clear")
	}
}
