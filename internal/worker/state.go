package worker

import (
	"sync"
	"time"
)

// Status is a point-in-time snapshot of the automation run state, read
// by the control surface.
type Status struct {
	Running        bool      `json:"running"`
	NeedsAttention bool      `json:"needs_attention"`
	LastRun        time.Time `json:"last_run"`
	CooldownUntil  time.Time `json:"cooldown_until"`
}

// runState holds the loop's shared mutable state. Mutated only by the
// loop and the start/stop triggers.
type runState struct {
	mu             sync.Mutex
	running        bool
	needsAttention bool
	lastRun        time.Time
	cooldownUntil  time.Time
}

func (s *runState) snapshot() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Running:        s.running,
		NeedsAttention: s.needsAttention,
		LastRun:        s.lastRun,
		CooldownUntil:  s.cooldownUntil,
	}
}

func (s *runState) isRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *runState) setRunning(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = v
}

func (s *runState) cooldown() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cooldownUntil, !s.cooldownUntil.IsZero()
}

func (s *runState) setCooldown(until time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cooldownUntil = until
}

func (s *runState) clearCooldown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cooldownUntil = time.Time{}
}

func (s *runState) markAttention() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.needsAttention = true
}

func (s *runState) clearAttention() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.needsAttention = false
}

func (s *runState) recordRun(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRun = t
}
