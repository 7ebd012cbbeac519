// Package session owns the single long-lived authenticated browser
// session against the webmail site. Its one contract is Ensure: hand the
// caller a usable session or fail with a classified error.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Skytheredhead/outlookscrape/internal/browser"
	"github.com/Skytheredhead/outlookscrape/internal/store"
)

// Classified session failures. The worker loop maps these to cooldowns.
var (
	// ErrManualLoginPending means the profile has never completed a
	// first-time sign-in; a human must log in before polling can start.
	ErrManualLoginPending = errors.New("manual login pending: profile has not completed first-time sign-in")

	// ErrManualLoginRequired means a previously good session has been
	// invalidated by the site and the profile must be refreshed by a
	// human.
	ErrManualLoginRequired = errors.New("manual login required: saved session is no longer authenticated")

	// ErrCaptchaDetected means the site is showing a bot-verification or
	// account-protection prompt.
	ErrCaptchaDetected = errors.New("captcha or verification prompt detected")
)

const (
	// LoginURL is where the manual-login window starts.
	LoginURL = "https://outlook.office.com/mail/"
	// InboxURL is the view Ensure navigates to for classification.
	InboxURL = "https://outlook.office.com/mail/inbox"

	mainContentSelector = `[role="main"]`
	mainContentTimeout  = 30 * time.Second
)

// captchaKeywords is the fixed keyword set associated with
// bot-verification and account-protection prompts.
var captchaKeywords = []string{"captcha", "verify", "identity", "stay signed in", "blocked"}

// loginHosts appear in the location when the site has bounced the
// session back to credential entry.
var loginHosts = []string{"login.microsoftonline.com", "login.live.com"}

// loginFormSelectors identify a credential-entry form in the DOM.
var loginFormSelectors = []string{
	`input[name="loginfmt"]`,
	`input[type="password"][name="passwd"]`,
}

// Manager owns the live session handle. An internal mutex serializes
// Ensure against the manual-login actions so two control flows never
// drive a browser concurrently.
type Manager struct {
	mu       sync.Mutex
	launcher browser.Launcher
	marker   *store.Marker
	headless bool
	logger   *slog.Logger

	live   browser.Browser // scanning session, reused across ticks
	manual browser.Browser // headful manual-login window
}

// NewManager creates a session manager. headless controls the scanning
// session only.
func NewManager(l browser.Launcher, marker *store.Marker, headless bool, logger *slog.Logger) *Manager {
	return &Manager{
		launcher: l,
		marker:   marker,
		headless: headless,
		logger:   logger,
	}
}

// ProfileReady reports whether a human has confirmed the profile after a
// manual sign-in.
func (m *Manager) ProfileReady() bool {
	return m.marker.Exists()
}

// Ensure returns a usable authenticated session, launching one bound to
// the persistent profile if none is live. Failures are classified as
// ErrManualLoginPending, ErrManualLoginRequired or ErrCaptchaDetected;
// anything else is a transient session error.
func (m *Manager) Ensure(ctx context.Context) (browser.Browser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.marker.Exists() {
		m.logger.Warn("session check: profile not marked ready, first-time manual login needed")
		return nil, ErrManualLoginPending
	}

	if m.live == nil {
		b, err := m.launcher.Launch(ctx, m.headless)
		if err != nil {
			return nil, fmt.Errorf("launch browser: %w", err)
		}
		m.live = b
		m.logger.Info("opened browser session bound to persistent profile")
	}

	if err := m.classify(ctx, m.live); err != nil {
		m.closeLiveLocked()
		return nil, err
	}
	m.logger.Info("session check: authenticated and usable")
	return m.live, nil
}

// classify navigates to the inbox and decides whether the session is
// usable. Every outcome is logged.
func (m *Manager) classify(ctx context.Context, b browser.Browser) error {
	if err := b.Navigate(ctx, InboxURL); err != nil {
		return fmt.Errorf("open inbox: %w", err)
	}

	if err := m.checkLoginForm(ctx, b); err != nil {
		return err
	}

	if err := b.WaitVisible(ctx, mainContentSelector, mainContentTimeout); err != nil {
		// Main content never appeared. Distinguish a challenge page from
		// a bounced login before giving up on the saved session.
		if kw, hit := m.captchaHit(ctx, b); hit {
			m.logger.Warn("session check: verification prompt detected", "keyword", kw)
			return ErrCaptchaDetected
		}
		if err := m.checkLoginForm(ctx, b); err != nil {
			return err
		}
		m.logger.Warn("session check: inbox did not load, treating saved session as invalid")
		return ErrManualLoginRequired
	}

	if kw, hit := m.captchaHit(ctx, b); hit {
		m.logger.Warn("session check: verification prompt detected", "keyword", kw)
		return ErrCaptchaDetected
	}
	return nil
}

func (m *Manager) checkLoginForm(ctx context.Context, b browser.Browser) error {
	if loc, err := b.URL(ctx); err == nil {
		for _, host := range loginHosts {
			if strings.Contains(loc, host) {
				m.logger.Warn("session check: redirected to credential entry", "url", loc)
				return ErrManualLoginRequired
			}
		}
	}
	for _, sel := range loginFormSelectors {
		if els, err := b.Query(ctx, sel); err == nil && len(els) > 0 {
			m.logger.Warn("session check: credential form present", "selector", sel)
			return ErrManualLoginRequired
		}
	}
	return nil
}

// captchaHit reports the first matching keyword in the page text or
// title.
func (m *Manager) captchaHit(ctx context.Context, b browser.Browser) (string, bool) {
	var haystack strings.Builder
	if text, err := b.PageText(ctx); err == nil {
		haystack.WriteString(strings.ToLower(text))
	}
	if title, err := b.Title(ctx); err == nil {
		haystack.WriteString(" ")
		haystack.WriteString(strings.ToLower(title))
	}
	page := haystack.String()
	for _, kw := range captchaKeywords {
		if strings.Contains(page, kw) {
			return kw, true
		}
	}
	return "", false
}

// Discard closes the live session if any. The worker calls this at tick
// boundaries after any error so the next tick starts from a fresh
// handle.
func (m *Manager) Discard() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeLiveLocked()
}

func (m *Manager) closeLiveLocked() {
	if m.live == nil {
		return
	}
	if err := m.live.Close(); err != nil {
		m.logger.Warn("closing session failed", "error", err)
	}
	m.live = nil
}

// LaunchManualLogin opens a headful window on the sign-in page so a
// human can authenticate. Refuses when a manual window is already open.
func (m *Manager) LaunchManualLogin(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.manual != nil {
		m.logger.Info("manual login window already open")
		return nil
	}
	b, err := m.launcher.Launch(ctx, false)
	if err != nil {
		return fmt.Errorf("launch manual login window: %w", err)
	}
	if err := b.Navigate(ctx, LoginURL); err != nil {
		b.Close()
		return fmt.Errorf("open sign-in page: %w", err)
	}
	m.manual = b
	m.logger.Info("manual login window launched; complete sign-in then confirm")
	return nil
}

// ConfirmManualLogin verifies the webmail main content loaded in the
// manual window, writes the profile-ready marker, and closes the window.
// This is the only path that marks the profile ready.
func (m *Manager) ConfirmManualLogin(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.manual == nil {
		return fmt.Errorf("no manual login window is open")
	}
	if err := m.manual.WaitVisible(ctx, mainContentSelector, mainContentTimeout); err != nil {
		return fmt.Errorf("mailbox not visible yet, finish signing in first: %w", err)
	}
	if err := m.marker.Write(time.Now()); err != nil {
		return err
	}
	if err := m.manual.Close(); err != nil {
		m.logger.Warn("closing manual login window failed", "error", err)
	}
	m.manual = nil
	m.logger.Info("profile marked ready, saved session will be reused")
	return nil
}

// Close releases every browser resource. Called on process shutdown.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeLiveLocked()
	if m.manual != nil {
		if err := m.manual.Close(); err != nil {
			m.logger.Warn("closing manual login window failed", "error", err)
		}
		m.manual = nil
	}
}
