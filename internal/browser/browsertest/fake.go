// Package browsertest provides a scripted, in-memory implementation of
// the browser capability interfaces for tests.
package browsertest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Skytheredhead/outlookscrape/internal/browser"
)

// Page is the scripted content served for one URL.
type Page struct {
	Title string
	Text  string
	// Elements maps a selector to the elements it resolves to.
	Elements map[string][]*Element
	// Visible lists selectors WaitVisible succeeds for. When nil, any
	// selector with elements is considered visible.
	Visible []string
}

// Element is one scripted DOM element.
type Element struct {
	Attrs       map[string]string
	TextContent string
	// Markup is the element's inner markup, what HTML returns.
	Markup      string
	FailClick   bool
	FailJSClick bool

	mu     sync.Mutex
	clicks int
}

// Clicks reports how many times the element was clicked, by either
// mechanism.
func (e *Element) Clicks() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clicks
}

func (e *Element) Attr(_ context.Context, name string) (string, bool, error) {
	v, ok := e.Attrs[name]
	return v, ok, nil
}

func (e *Element) Text(context.Context) (string, error) { return e.TextContent, nil }

func (e *Element) HTML(context.Context) (string, error) { return e.Markup, nil }

func (e *Element) Click(context.Context) error {
	if e.FailClick {
		return fmt.Errorf("scripted click failure")
	}
	e.mu.Lock()
	e.clicks++
	e.mu.Unlock()
	return nil
}

func (e *Element) JSClick(context.Context) error {
	if e.FailJSClick {
		return fmt.Errorf("scripted js click failure")
	}
	e.mu.Lock()
	e.clicks++
	e.mu.Unlock()
	return nil
}

// Fake is a scripted browser session.
type Fake struct {
	mu sync.Mutex

	// Pages maps URLs to scripted content.
	Pages map[string]*Page
	// NavigateErr, when set, is consulted before every navigation.
	NavigateErr func(url string) error
	// Redirects maps a requested URL to the URL the fake lands on, for
	// scripting login bounces.
	Redirects map[string]string

	current    string
	navLog     []string
	mouseMoves int
	closed     bool
}

var _ browser.Browser = (*Fake)(nil)

// NewFake returns an empty fake positioned on no page.
func NewFake() *Fake {
	return &Fake{Pages: map[string]*Page{}}
}

// AddPage scripts the content for url and returns it for further setup.
func (f *Fake) AddPage(url string, p *Page) *Page {
	if p.Elements == nil {
		p.Elements = map[string][]*Element{}
	}
	f.Pages[url] = p
	return p
}

// NavLog returns the URLs navigated to, in order.
func (f *Fake) NavLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.navLog...)
}

// MouseMoves reports the number of synthetic pointer moves dispatched.
func (f *Fake) MouseMoves() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mouseMoves
}

// Closed reports whether Close was called.
func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// SetCurrent positions the fake on url without recording a navigation.
func (f *Fake) SetCurrent(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = url
}

func (f *Fake) Navigate(_ context.Context, url string) error {
	if f.NavigateErr != nil {
		if err := f.NavigateErr(url); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.navLog = append(f.navLog, url)
	if target, ok := f.Redirects[url]; ok {
		f.current = target
	} else {
		f.current = url
	}
	return nil
}

func (f *Fake) page() *Page {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Pages[f.current]
}

func (f *Fake) WaitVisible(_ context.Context, selector string, _ time.Duration) error {
	p := f.page()
	if p == nil {
		return fmt.Errorf("wait %q: %w", selector, browser.ErrNotFound)
	}
	if p.Visible != nil {
		for _, v := range p.Visible {
			if v == selector {
				return nil
			}
		}
		return fmt.Errorf("wait %q: %w", selector, browser.ErrNotFound)
	}
	if len(p.Elements[selector]) > 0 {
		return nil
	}
	return fmt.Errorf("wait %q: %w", selector, browser.ErrNotFound)
}

func (f *Fake) Query(_ context.Context, selector string) ([]browser.Element, error) {
	p := f.page()
	if p == nil {
		return nil, nil
	}
	els := make([]browser.Element, 0, len(p.Elements[selector]))
	for _, e := range p.Elements[selector] {
		els = append(els, e)
	}
	return els, nil
}

func (f *Fake) QueryOne(ctx context.Context, selector string) (browser.Element, error) {
	els, err := f.Query(ctx, selector)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, fmt.Errorf("query %q: %w", selector, browser.ErrNotFound)
	}
	return els[0], nil
}

func (f *Fake) Title(context.Context) (string, error) {
	if p := f.page(); p != nil {
		return p.Title, nil
	}
	return "", nil
}

func (f *Fake) URL(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current, nil
}

func (f *Fake) PageText(context.Context) (string, error) {
	if p := f.page(); p != nil {
		return p.Text, nil
	}
	return "", nil
}

func (f *Fake) MoveMouse(context.Context, float64, float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mouseMoves++
	return nil
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Launcher hands out pre-built fakes in order, or fails with Err.
type Launcher struct {
	mu       sync.Mutex
	Browsers []*Fake
	Err      error
	launches int
}

var _ browser.Launcher = (*Launcher)(nil)

// Launches reports how many sessions were opened.
func (l *Launcher) Launches() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.launches
}

func (l *Launcher) Launch(context.Context, bool) (browser.Browser, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Err != nil {
		return nil, l.Err
	}
	if l.launches >= len(l.Browsers) {
		return nil, fmt.Errorf("browsertest: no more scripted browsers")
	}
	b := l.Browsers[l.launches]
	l.launches++
	return b, nil
}
