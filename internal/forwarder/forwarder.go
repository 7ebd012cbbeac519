// Package forwarder relays extracted messages to the destination mailbox
// and performs the dedup/counter bookkeeping that makes delivery
// at-least-once.
package forwarder

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Skytheredhead/outlookscrape/internal/scanner"
	"github.com/Skytheredhead/outlookscrape/internal/store"
)

// Sender delivers one fully formed message. *mailer.Mailer satisfies it.
type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody, textBody string) error
}

// Pipeline forwards messages and records the outcome.
type Pipeline struct {
	sender   Sender
	registry *store.Registry
	counter  *store.Counter
	logger   *slog.Logger
}

// New creates a forwarding pipeline.
func New(sender Sender, registry *store.Registry, counter *store.Counter, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		sender:   sender,
		registry: registry,
		counter:  counter,
		logger:   logger,
	}
}

// Forward sends msg to the destination address. The registry and counter
// are updated only after the send is confirmed: a send failure leaves
// the message unmarked so the next scan rediscovers it, while a crash
// between send and registry write can at worst duplicate the forward.
func (p *Pipeline) Forward(ctx context.Context, msg scanner.Message, to string) error {
	subject := fmt.Sprintf("FWD: %s", msg.Subject)
	if err := p.sender.Send(ctx, to, subject, msg.BodyHTML, msg.BodyText); err != nil {
		return err
	}

	if err := p.registry.Add(msg.ID); err != nil {
		// The message went out; a registry write failure means it may be
		// forwarded again next tick, which at-least-once accepts.
		p.logger.Warn("failed to record forwarded id", "msg_id", msg.ID, "error", err)
	}
	count, err := p.counter.Increment()
	if err != nil {
		p.logger.Warn("failed to persist daily counter", "error", err)
	}
	p.logger.Info("forwarded email", "msg_id", msg.ID, "to", to, "count_today", count)
	return nil
}
