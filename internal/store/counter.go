package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Counter tracks how many messages were forwarded on the current UTC
// calendar day. The rollover to a new day is detected lazily on read and
// write, so the count resets exactly once per day transition.
type Counter struct {
	mu   sync.Mutex
	path string
	day  string
	n    int
	now  func() time.Time
}

type counterState struct {
	Day   string `json:"day"`
	Count int    `json:"count"`
}

// OpenCounter loads (or creates) the daily counter under dir. A missing
// or corrupt file starts today at zero.
func OpenCounter(dir string) (*Counter, error) {
	c := &Counter{
		path: filepath.Join(dir, counterFile),
		now:  time.Now,
	}
	if err := ensureDir(c.path); err != nil {
		return nil, err
	}
	c.day = c.today()
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("read counter: %w", err)
	}
	var st counterState
	if err := json.Unmarshal(data, &st); err != nil {
		return c, nil
	}
	if st.Day != "" {
		c.day = st.Day
		c.n = st.Count
	}
	return c, nil
}

// Increment bumps today's count and returns it.
func (c *Counter) Increment() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rolloverLocked()
	c.n++
	if err := c.persistLocked(); err != nil {
		return c.n, err
	}
	return c.n, nil
}

// Count returns today's count, rolling the day over first if needed.
func (c *Counter) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rolloverLocked() {
		// Persist the observed rollover so a restart sees the new day.
		if err := c.persistLocked(); err != nil {
			return c.n
		}
	}
	return c.n
}

func (c *Counter) today() string {
	return c.now().UTC().Format(time.DateOnly)
}

func (c *Counter) rolloverLocked() bool {
	today := c.today()
	if today == c.day {
		return false
	}
	c.day = today
	c.n = 0
	return true
}

func (c *Counter) persistLocked() error {
	data, err := json.MarshalIndent(counterState{Day: c.day, Count: c.n}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode counter: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0o600); err != nil {
		return fmt.Errorf("write counter: %w", err)
	}
	return nil
}
