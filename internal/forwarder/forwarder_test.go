package forwarder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/Skytheredhead/outlookscrape/internal/scanner"
	"github.com/Skytheredhead/outlookscrape/internal/store"
)

type sentMail struct {
	to, subject, htmlBody, textBody string
}

type stubSender struct {
	fail bool
	sent []sentMail
}

func (s *stubSender) Send(_ context.Context, to, subject, htmlBody, textBody string) error {
	if s.fail {
		return fmt.Errorf("smtp unavailable")
	}
	s.sent = append(s.sent, sentMail{to, subject, htmlBody, textBody})
	return nil
}

func newPipeline(t *testing.T, sender Sender) (*Pipeline, *store.Registry, *store.Counter) {
	t.Helper()
	dir := t.TempDir()
	reg, err := store.OpenRegistry(dir)
	if err != nil {
		t.Fatal(err)
	}
	counter, err := store.OpenCounter(dir)
	if err != nil {
		t.Fatal(err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(sender, reg, counter, logger), reg, counter
}

func TestForward_MarksAndCountsAfterSend(t *testing.T) {
	sender := &stubSender{}
	p, reg, counter := newPipeline(t, sender)

	msg := scanner.Message{
		ID:       "msg-1",
		Subject:  "Invoice",
		BodyHTML: "<p>hi</p>",
		BodyText: "hi",
	}
	if err := p.Forward(context.Background(), msg, "me@example.com"); err != nil {
		t.Fatalf("Forward failed: %v", err)
	}

	if len(sender.sent) != 1 {
		t.Fatalf("sent %d mails, want 1", len(sender.sent))
	}
	got := sender.sent[0]
	if got.subject != "FWD: Invoice" {
		t.Errorf("subject = %q, want FWD: Invoice", got.subject)
	}
	if got.to != "me@example.com" || got.htmlBody != "<p>hi</p>" || got.textBody != "hi" {
		t.Errorf("sent mail = %+v", got)
	}
	if !reg.Has("msg-1") {
		t.Error("forwarded id not recorded")
	}
	if counter.Count() != 1 {
		t.Errorf("counter = %d, want 1", counter.Count())
	}
}

func TestForward_SendFailureLeavesNothingMarked(t *testing.T) {
	sender := &stubSender{fail: true}
	p, reg, counter := newPipeline(t, sender)

	err := p.Forward(context.Background(), scanner.Message{ID: "msg-1", Subject: "x"}, "me@example.com")
	if err == nil {
		t.Fatal("Forward should propagate the send failure")
	}
	if reg.Has("msg-1") {
		t.Error("failed send must not be recorded as forwarded")
	}
	if counter.Count() != 0 {
		t.Errorf("counter = %d, want 0", counter.Count())
	}
}
