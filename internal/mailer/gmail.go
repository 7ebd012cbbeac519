// Package mailer sends messages through the Gmail API for the authorized
// user, handling OAuth client-secret discovery, the one-time interactive
// authorization flow and transparent token refresh.
package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

const tokenFile = "token.json"

// SendError is a per-message send failure. The caller leaves the message
// unmarked so it is rediscovered and retried on the next scan.
type SendError struct {
	Err error
}

func (e *SendError) Error() string { return fmt.Sprintf("send mail: %v", e.Err) }

func (e *SendError) Unwrap() error { return e.Err }

// Mailer is a lazily initialized Gmail API client.
type Mailer struct {
	stateDir string
	logger   *slog.Logger

	mu  sync.Mutex
	svc *gmail.Service
}

// New creates a Mailer rooted at the state directory. No network or
// credential work happens until the first send.
func New(stateDir string, logger *slog.Logger) *Mailer {
	return &Mailer{stateDir: stateDir, logger: logger}
}

// service builds the Gmail client on first use. A missing client secret
// surfaces as ErrNoClientSecret.
func (m *Mailer) service(ctx context.Context) (*gmail.Service, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.svc != nil {
		return m.svc, nil
	}

	secretPath, err := FindClientSecret(m.stateDir, ".")
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(secretPath)
	if err != nil {
		return nil, fmt.Errorf("read client secret: %w", err)
	}
	cfg, err := google.ConfigFromJSON(data, gmail.GmailSendScope)
	if err != nil {
		return nil, fmt.Errorf("parse client secret: %w", err)
	}

	cache := &tokenCache{path: filepath.Join(m.stateDir, tokenFile)}
	tok, err := cache.load()
	if err != nil {
		return nil, err
	}
	if tok == nil {
		tok, err = m.authorize(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if err := cache.save(tok); err != nil {
			return nil, err
		}
	}

	src := &persistingTokenSource{
		src:   cfg.TokenSource(context.Background(), tok),
		cache: cache,
		last:  tok.AccessToken,
	}
	client := oauth2.NewClient(context.Background(), src)

	svc, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("build gmail service: %w", err)
	}
	m.svc = svc
	return svc, nil
}

// Send relays one message to the destination address as the authorized
// user. Failures after the client is built are *SendError.
func (m *Mailer) Send(ctx context.Context, to, subject, htmlBody, textBody string) error {
	svc, err := m.service(ctx)
	if err != nil {
		return err
	}
	raw, err := buildMIME(to, subject, htmlBody, textBody)
	if err != nil {
		return &SendError{Err: err}
	}
	_, err = svc.Users.Messages.Send("me", &gmail.Message{Raw: raw}).Context(ctx).Do()
	if err != nil {
		return &SendError{Err: err}
	}
	m.logger.Info("sent email", "to", to, "subject", subject)
	return nil
}

// SendAlert notifies the destination address that the automation hit a
// condition needing a human.
func (m *Mailer) SendAlert(ctx context.Context, to, reason string) error {
	const subject = "Outlook check failed - possible block. Check manually."
	text := fmt.Sprintf("Automation failed with reason: %s\nPlease sign in manually.", reason)
	html := fmt.Sprintf(
		"<p>Automation failed with reason: <strong>%s</strong></p><p>Please sign in manually.</p>",
		reason,
	)
	return m.Send(ctx, to, subject, html, text)
}
