// Package browser defines the automation capabilities the session
// manager and folder scanner consume, and provides the chromedp-backed
// implementation. Keeping the capability set behind an interface lets
// tests script page content deterministically.
package browser

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a selector resolves to no element.
var ErrNotFound = errors.New("element not found")

// Browser is one live browser session bound to a profile directory.
type Browser interface {
	// Navigate loads url and waits for the load event.
	Navigate(ctx context.Context, url string) error

	// WaitVisible blocks until selector matches a visible element or the
	// timeout elapses.
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error

	// Query returns all elements matching selector, in DOM order. An
	// empty result is not an error.
	Query(ctx context.Context, selector string) ([]Element, error)

	// QueryOne returns the first element matching selector, or
	// ErrNotFound.
	QueryOne(ctx context.Context, selector string) (Element, error)

	// Title returns the current page title.
	Title(ctx context.Context) (string, error)

	// URL returns the current page location.
	URL(ctx context.Context) (string, error)

	// PageText returns the visible text of the current page.
	PageText(ctx context.Context) (string, error)

	// MoveMouse dispatches a synthetic pointer-move to viewport
	// coordinates.
	MoveMouse(ctx context.Context, x, y float64) error

	// Close tears the session down. The profile directory survives.
	Close() error
}

// Element is one located DOM element.
type Element interface {
	// Attr returns the value of the named attribute and whether it is
	// present.
	Attr(ctx context.Context, name string) (string, bool, error)

	// Text returns the element's visible text.
	Text(ctx context.Context) (string, error)

	// HTML returns the element's inner markup, without the element's own
	// tag.
	HTML(ctx context.Context) (string, error)

	// Click dispatches a synthesized pointer click at the element.
	Click(ctx context.Context) error

	// JSClick invokes the element's click() method. Fallback for rows
	// that reject synthetic pointer events.
	JSClick(ctx context.Context) error
}

// Launcher opens browser sessions bound to a persistent profile
// directory, so cookies and local storage survive process restarts.
type Launcher interface {
	Launch(ctx context.Context, headless bool) (Browser, error)
}
