// Package logbuf retains the most recent log lines in memory so the
// control surface can show operators what the worker has been doing.
package logbuf

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// DefaultSize matches the operator-visible history the UI shows.
const DefaultSize = 500

// Buffer is a bounded ring of rendered log lines.
type Buffer struct {
	mu      sync.Mutex
	max     int
	entries []string
}

// NewBuffer creates a buffer retaining at most max lines.
func NewBuffer(max int) *Buffer {
	if max <= 0 {
		max = DefaultSize
	}
	return &Buffer{max: max}
}

func (b *Buffer) append(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = append(b.entries, line)
	if len(b.entries) > b.max {
		b.entries = b.entries[len(b.entries)-b.max:]
	}
}

// Tail returns the last n lines (all of them when n <= 0).
func (b *Buffer) Tail(n int) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n <= 0 || n > len(b.entries) {
		n = len(b.entries)
	}
	out := make([]string, n)
	copy(out, b.entries[len(b.entries)-n:])
	return out
}

// Handler is a slog.Handler that renders every record into a Buffer and
// forwards it to the wrapped handler.
type Handler struct {
	next  slog.Handler
	buf   *Buffer
	attrs []slog.Attr
}

// Wrap tees records destined for next into buf.
func Wrap(next slog.Handler, buf *Buffer) *Handler {
	return &Handler{next: next, buf: buf}
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	var sb strings.Builder
	sb.WriteString(r.Time.Format("2006-01-02 15:04:05"))
	sb.WriteString(" ")
	sb.WriteString(r.Level.String())
	sb.WriteString(" ")
	sb.WriteString(r.Message)
	for _, a := range h.attrs {
		fmt.Fprintf(&sb, " %s", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(&sb, " %s", a)
		return true
	})
	h.buf.append(sb.String())
	return h.next.Handle(ctx, r)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{
		next:  h.next.WithAttrs(attrs),
		buf:   h.buf,
		attrs: append(append([]slog.Attr(nil), h.attrs...), attrs...),
	}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	// Group names are kept only on the wrapped handler; the buffer shows
	// flat lines.
	return &Handler{next: h.next.WithGroup(name), buf: h.buf, attrs: h.attrs}
}
