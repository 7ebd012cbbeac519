package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

// Well-known settings keys.
const (
	KeyTargetEmail = "target_email"
	KeyPollingMin  = "polling_min_minutes"
	KeyPollingMax  = "polling_max_minutes"
)

// Default polling window in minutes.
const (
	DefaultPollingMin = 5
	DefaultPollingMax = 10
)

// Settings is a flat key/value map persisted as a JSON object. Every
// write is persisted immediately.
type Settings struct {
	mu     sync.Mutex
	path   string
	values map[string]string
}

// OpenSettings loads (or creates) the settings store under dir. A
// missing or corrupt file yields empty settings.
func OpenSettings(dir string) (*Settings, error) {
	s := &Settings{
		path:   filepath.Join(dir, settingsFile),
		values: map[string]string{},
	}
	if err := ensureDir(s.path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read settings: %w", err)
	}
	if err := json.Unmarshal(data, &s.values); err != nil {
		s.values = map[string]string{}
	}
	return s, nil
}

// Get returns the value for key, or def when unset.
func (s *Settings) Get(key, def string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.values[key]; ok {
		return v
	}
	return def
}

// Set stores key=value and persists the whole map.
func (s *Settings) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return s.persistLocked()
}

// All returns a copy of every setting.
func (s *Settings) All() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make(map[string]string, len(s.values))
	for k, v := range s.values {
		cp[k] = v
	}
	return cp
}

// TargetEmail returns the configured destination address, or "".
func (s *Settings) TargetEmail() string {
	return s.Get(KeyTargetEmail, "")
}

// PollingWindow returns the inter-tick sleep window in minutes. Values
// are defaulted when unset or unparsable, and a max below min is
// corrected to min+1 so the window is always well-formed.
func (s *Settings) PollingWindow() (min, max int) {
	min = s.intValue(KeyPollingMin, DefaultPollingMin)
	max = s.intValue(KeyPollingMax, DefaultPollingMax)
	if min < 1 {
		min = 1
	}
	if max < min {
		max = min + 1
	}
	return min, max
}

func (s *Settings) intValue(key string, def int) int {
	raw := s.Get(key, "")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func (s *Settings) persistLocked() error {
	data, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}
