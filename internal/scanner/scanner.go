// Package scanner walks the configured webmail folders, finds unread
// messages that have not been forwarded yet, opens each one and extracts
// sender, subject and body.
package scanner

import (
	"context"
	"fmt"
	"hash/fnv"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/Skytheredhead/outlookscrape/internal/browser"
	"github.com/Skytheredhead/outlookscrape/internal/config"
)

// Message is one extracted unread message. Only its ID outlives the
// tick, via the forwarded registry.
type Message struct {
	ID       string
	Sender   string
	Subject  string
	BodyHTML string
	BodyText string
	Folder   string
}

// Registry is the dedup membership check the scanner consults.
// *store.Registry satisfies it.
type Registry interface {
	Has(id string) bool
}

const (
	listTimeout       = 30 * time.Second
	unknownSender     = "(unknown sender)"
	syntheticIDPrefix = "synthetic-"
)

// Scanner scans a fixed ordered folder list with a live session.
type Scanner struct {
	folders []config.Folder
	pacer   Pacer
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a scanner over folders with the given pacing policy.
func New(folders []config.Folder, pacer Pacer, logger *slog.Logger) *Scanner {
	return &Scanner{
		folders: folders,
		pacer:   pacer,
		logger:  logger,
		now:     time.Now,
	}
}

// Scan walks every folder in order and returns the extracted messages.
// Per-message and per-folder problems are logged and skipped; Scan only
// fails when every folder fails to open, or on context cancellation.
func (s *Scanner) Scan(ctx context.Context, b browser.Browser, reg Registry) ([]Message, error) {
	var msgs []Message
	failed := 0
	for _, folder := range s.folders {
		if err := ctx.Err(); err != nil {
			return msgs, err
		}
		if err := s.openFolder(ctx, b, folder); err != nil {
			s.logger.Warn("failed to open folder", "folder", folder.Name, "error", err)
			failed++
			continue
		}
		s.pacer.Pause(ctx)

		if err := b.WaitVisible(ctx, rowSelector, listTimeout); err != nil {
			s.logger.Info("folder appears empty or failed to load", "folder", folder.Name)
			continue
		}
		s.pacer.Pause(ctx)
		s.pacer.Wander(ctx, b)

		rows, err := b.Query(ctx, rowSelector)
		if err != nil {
			s.logger.Warn("failed to read message list", "folder", folder.Name, "error", err)
			continue
		}
		msgs = append(msgs, s.scanRows(ctx, b, reg, folder.Name, rows)...)
	}
	if failed > 0 && failed == len(s.folders) {
		return nil, fmt.Errorf("all %d folders failed to open", failed)
	}
	return msgs, nil
}

// openFolder tries the sidebar-click strategies first and falls back to
// navigating the folder URL directly.
func (s *Scanner) openFolder(ctx context.Context, b browser.Browser, folder config.Folder) error {
	for _, strat := range folderLinkStrategies {
		sel := fmt.Sprintf(strat.Selector, folder.Name)
		els, err := b.Query(ctx, sel)
		if err != nil || len(els) == 0 {
			continue
		}
		if err := s.click(ctx, els[0]); err != nil {
			s.logger.Debug("sidebar click failed", "folder", folder.Name, "strategy", strat.Name, "error", err)
			continue
		}
		s.logger.Debug("opened folder from sidebar", "folder", folder.Name, "strategy", strat.Name)
		return nil
	}
	return b.Navigate(ctx, folder.URL)
}

func (s *Scanner) scanRows(ctx context.Context, b browser.Browser, reg Registry, folder string, rows []browser.Element) []Message {
	var msgs []Message
	for _, row := range rows {
		if ctx.Err() != nil {
			return msgs
		}
		label, _, _ := row.Attr(ctx, "aria-label")
		id := s.rowID(ctx, row, label)
		if reg.Has(id) {
			continue
		}
		if !isUnread(ctx, row, label) {
			continue
		}

		if err := s.click(ctx, row); err != nil {
			s.logger.Warn("failed to select email row", "folder", folder, "error", err)
			continue
		}
		s.pacer.Pause(ctx)

		msg, err := s.extract(ctx, b)
		if err != nil {
			s.logger.Warn("failed to parse email content", "folder", folder, "error", err)
			continue
		}
		msg.ID = id
		msg.Folder = folder
		msgs = append(msgs, msg)
		s.logger.Info("captured email", "subject", msg.Subject, "from", msg.Sender, "folder", folder)
		s.pacer.ShortPause(ctx)
	}
	return msgs
}

// rowID derives a stable identifier for a message row: the native item
// ID when exposed, then the labelling element reference, then the
// accessible label itself, and as a last resort a hash of the label plus
// the current time. The hash fallback is only best-effort unique:
// near-simultaneous rows with identical labels can collide.
func (s *Scanner) rowID(ctx context.Context, row browser.Element, label string) string {
	if v, ok, _ := row.Attr(ctx, "data-itemid"); ok && v != "" {
		return v
	}
	if v, ok, _ := row.Attr(ctx, "aria-labelledby"); ok && v != "" {
		return v
	}
	if label != "" {
		return label
	}
	id := fallbackID(label, s.now())
	s.logger.Debug("row has no native identifier, using synthetic id", "id", id)
	return id
}

func fallbackID(label string, now time.Time) string {
	h := fnv.New64a()
	io.WriteString(h, label)
	io.WriteString(h, strconv.FormatInt(now.UnixNano(), 10))
	return syntheticIDPrefix + strconv.FormatUint(h.Sum64(), 16)
}

func isUnread(ctx context.Context, row browser.Element, label string) bool {
	class, _, _ := row.Attr(ctx, "class")
	return strings.Contains(strings.ToLower(class), "unread") ||
		strings.Contains(strings.ToLower(label), "unread")
}

// click selects an element with a synthesized pointer click, falling
// back to a programmatic click.
func (s *Scanner) click(ctx context.Context, el browser.Element) error {
	err := el.Click(ctx)
	if err == nil {
		return nil
	}
	s.logger.Debug("pointer click failed, trying programmatic click", "error", err)
	return el.JSClick(ctx)
}

// extract reads sender, subject and body from the opened message using
// the strategy chains. Subject and body are required; a missing sender
// degrades to a placeholder.
func (s *Scanner) extract(ctx context.Context, b browser.Browser) (Message, error) {
	var msg Message

	if el, ok := firstMatch(ctx, b, senderStrategies); ok {
		if text, err := el.Text(ctx); err == nil {
			msg.Sender = strings.TrimSpace(text)
		}
	}
	if msg.Sender == "" {
		msg.Sender = unknownSender
	}

	subjectEl, ok := firstMatch(ctx, b, subjectStrategies)
	if !ok {
		return Message{}, fmt.Errorf("subject: %w", browser.ErrNotFound)
	}
	subject, err := subjectEl.Text(ctx)
	if err != nil {
		return Message{}, fmt.Errorf("subject: %w", err)
	}
	msg.Subject = strings.TrimSpace(subject)

	bodyEl, ok := firstMatch(ctx, b, bodyStrategies)
	if !ok {
		return Message{}, fmt.Errorf("body: %w", browser.ErrNotFound)
	}
	if html, err := bodyEl.HTML(ctx); err == nil {
		msg.BodyHTML = html
	}
	text, err := bodyEl.Text(ctx)
	if err != nil {
		return Message{}, fmt.Errorf("body: %w", err)
	}
	msg.BodyText = text
	return msg, nil
}

func firstMatch(ctx context.Context, b browser.Browser, chain []Strategy) (browser.Element, bool) {
	for _, strat := range chain {
		if el, err := b.QueryOne(ctx, strat.Selector); err == nil {
			return el, true
		}
	}
	return nil, false
}
