// Package worker runs the top-level automation state machine: acquire a
// usable session, scan, forward, then sleep a randomized interval; on
// failure, classify the error and apply a cooldown before retrying.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/Skytheredhead/outlookscrape/internal/browser"
	"github.com/Skytheredhead/outlookscrape/internal/mailer"
	"github.com/Skytheredhead/outlookscrape/internal/scanner"
	"github.com/Skytheredhead/outlookscrape/internal/session"
	"github.com/Skytheredhead/outlookscrape/internal/store"
)

// Cooldowns applied per failure class.
const (
	cooldownPending = 30 * time.Second
	cooldownManual  = 30 * time.Minute
	cooldownCaptcha = 30 * time.Minute
	cooldownGeneric = 10 * time.Minute

	stopJoinTimeout = 5 * time.Second
)

// Sessions is the session-manager contract the loop drives.
// *session.Manager satisfies it.
type Sessions interface {
	Ensure(ctx context.Context) (browser.Browser, error)
	Discard()
	ProfileReady() bool
}

// Scanner walks the folders with a live session. *scanner.Scanner
// satisfies it.
type Scanner interface {
	Scan(ctx context.Context, b browser.Browser, reg scanner.Registry) ([]scanner.Message, error)
}

// Forwarder relays one extracted message. *forwarder.Pipeline satisfies
// it.
type Forwarder interface {
	Forward(ctx context.Context, msg scanner.Message, to string) error
}

// Alerter sends the out-of-band failure notification. *mailer.Mailer
// satisfies it.
type Alerter interface {
	SendAlert(ctx context.Context, to, reason string) error
}

// Loop is the worker state machine. One background goroutine runs it;
// Start, Stop and RunOnce execute on caller goroutines and never block
// on the loop's network operations.
type Loop struct {
	sessions  Sessions
	scanner   Scanner
	forwarder Forwarder
	alerter   Alerter
	settings  *store.Settings
	registry  *store.Registry
	counter   *store.Counter
	logger    *slog.Logger

	state runState
	now   func() time.Time

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// New wires a worker loop.
func New(
	sessions Sessions,
	sc Scanner,
	fw Forwarder,
	alerter Alerter,
	settings *store.Settings,
	registry *store.Registry,
	counter *store.Counter,
	logger *slog.Logger,
) *Loop {
	return &Loop{
		sessions:  sessions,
		scanner:   sc,
		forwarder: fw,
		alerter:   alerter,
		settings:  settings,
		registry:  registry,
		counter:   counter,
		logger:    logger,
		now:       time.Now,
	}
}

// Status reports the current run state.
func (l *Loop) Status() Status {
	return l.state.snapshot()
}

// ForwardedToday returns the daily counter value.
func (l *Loop) ForwardedToday() int {
	return l.counter.Count()
}

// Start launches the background loop. It refuses to start when the
// destination address is not configured or the session profile has not
// been marked ready, and when already running.
func (l *Loop) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state.isRunning() {
		return fmt.Errorf("worker already running")
	}
	if l.settings.TargetEmail() == "" {
		return fmt.Errorf("target address not configured")
	}
	if !l.sessions.ProfileReady() {
		return fmt.Errorf("session profile not marked ready, complete the manual login first")
	}

	l.state.clearCooldown()
	l.state.clearAttention()
	l.state.setRunning(true)
	l.stop = make(chan struct{})
	l.done = make(chan struct{})
	go l.run(l.stop, l.done)
	return nil
}

// Stop raises the stop signal and joins the loop with a short timeout;
// past the timeout shutdown is best-effort.
func (l *Loop) Stop() {
	l.mu.Lock()
	if !l.state.isRunning() || l.stop == nil {
		l.mu.Unlock()
		return
	}
	stop, done := l.stop, l.done
	l.stop = nil
	l.mu.Unlock()

	close(stop)
	select {
	case <-done:
	case <-time.After(stopJoinTimeout):
		l.logger.Warn("worker did not stop within join timeout")
	}
}

// RunOnce executes one tick synchronously without engaging the loop.
// Failures record the same cooldown and attention state the loop would,
// so a loop started right after sees consistent state.
func (l *Loop) RunOnce(ctx context.Context) error {
	if l.state.isRunning() {
		return fmt.Errorf("worker loop is running, stop it before a manual check")
	}
	if l.settings.TargetEmail() == "" {
		return fmt.Errorf("target address not configured")
	}
	if err := l.tick(ctx); err != nil {
		l.applyFailure(ctx, err)
		return err
	}
	return nil
}

func (l *Loop) run(stop, done chan struct{}) {
	defer close(done)
	defer l.state.setRunning(false)
	defer l.sessions.Discard()

	l.logger.Info("automation worker started")
	for {
		if stopped(stop) {
			break
		}
		if until, ok := l.state.cooldown(); ok && l.now().Before(until) {
			wait := until.Sub(l.now())
			l.logger.Info("cooling down before retrying", "wait", wait.Round(time.Second))
			if !sleepInterruptible(stop, wait) {
				break
			}
			continue
		}

		if err := l.tick(context.Background()); err != nil {
			if fatal := l.applyFailure(context.Background(), err); fatal {
				break
			}
			// Retry timing after a failure belongs to the cooldown, not
			// the polling window.
			continue
		}
		if stopped(stop) {
			break
		}

		d := l.pollDelay()
		l.logger.Info("sleeping before next check", "duration", d.Round(time.Second))
		if !sleepInterruptible(stop, d) {
			break
		}
	}
	l.logger.Info("automation worker stopped")
}

// tick is one full iteration: ensure session, scan, forward each message
// in order, record the run. Any error tears the session down so the next
// tick starts from a fresh handle.
func (l *Loop) tick(ctx context.Context) error {
	b, err := l.sessions.Ensure(ctx)
	if err != nil {
		return err
	}

	msgs, err := l.scanner.Scan(ctx, b, l.registry)
	if err != nil {
		l.sessions.Discard()
		return err
	}

	if len(msgs) == 0 {
		l.logger.Info("no new unread emails detected")
	} else {
		to := l.settings.TargetEmail()
		for _, msg := range msgs {
			if err := l.forwarder.Forward(ctx, msg, to); err != nil {
				l.sessions.Discard()
				return err
			}
		}
	}

	l.state.recordRun(l.now())
	return nil
}

// applyFailure classifies err, records the cooldown and attention state,
// and reports whether the loop must terminate.
func (l *Loop) applyFailure(ctx context.Context, err error) bool {
	now := l.now()
	switch {
	case errors.Is(err, session.ErrManualLoginPending):
		l.state.markAttention()
		l.state.setCooldown(now.Add(cooldownPending))
		l.logger.Warn("manual login pending", "error", err)

	case errors.Is(err, session.ErrManualLoginRequired):
		l.state.markAttention()
		l.state.setCooldown(now.Add(cooldownManual))
		l.logger.Warn("manual login required", "error", err)
		l.sendAlert(ctx, err)

	case errors.Is(err, session.ErrCaptchaDetected):
		l.state.markAttention()
		l.state.setCooldown(now.Add(cooldownCaptcha))
		l.logger.Warn("captcha detected", "error", err)
		l.sendAlert(ctx, err)

	case errors.Is(err, mailer.ErrNoClientSecret):
		l.state.markAttention()
		l.logger.Error("gmail client secret missing, stopping worker", "error", err)
		return true

	default:
		l.state.setCooldown(now.Add(cooldownGeneric))
		l.logger.Error("unexpected error during check", "error", err)
	}
	return false
}

func (l *Loop) sendAlert(ctx context.Context, cause error) {
	to := l.settings.TargetEmail()
	if to == "" {
		return
	}
	if err := l.alerter.SendAlert(ctx, to, cause.Error()); err != nil {
		l.logger.Warn("alert email failed", "error", err)
		return
	}
	l.logger.Info("alert email sent", "to", to)
}

// pollDelay draws a uniform random duration from the configured polling
// window.
func (l *Loop) pollDelay() time.Duration {
	minMinutes, maxMinutes := l.settings.PollingWindow()
	lo := time.Duration(minMinutes) * time.Minute
	hi := time.Duration(maxMinutes) * time.Minute
	if hi <= lo {
		return lo
	}
	return lo + rand.N(hi-lo)
}

func stopped(stop chan struct{}) bool {
	select {
	case <-stop:
		return true
	default:
		return false
	}
}

func sleepInterruptible(stop chan struct{}, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-stop:
		return false
	case <-t.C:
		return true
	}
}
