package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

// opTimeout bounds individual DOM operations so no query can hang a
// tick. Explicit waits carry their own timeout.
const opTimeout = 15 * time.Second

// ChromeLauncher starts Chrome/Chromium sessions bound to a persistent
// user-data directory.
type ChromeLauncher struct {
	ProfileDir string
	// Binary pins the browser executable; empty means probe the
	// environment and PATH.
	Binary string
	Logger *slog.Logger
}

var binaryCandidates = []string{
	"google-chrome",
	"chrome",
	"chromium",
	"chromium-browser",
	"msedge",
}

// FindBinary locates a browser executable: explicit path, then
// CHROME_BINARY and GOOGLE_CHROME_SHIM, then well-known names on PATH.
func FindBinary(explicit string) (string, bool) {
	if explicit != "" {
		return explicit, true
	}
	for _, env := range []string{"CHROME_BINARY", "GOOGLE_CHROME_SHIM"} {
		if v := os.Getenv(env); v != "" {
			return v, true
		}
	}
	for _, name := range binaryCandidates {
		if path, err := exec.LookPath(name); err == nil {
			return path, true
		}
	}
	return "", false
}

// Launch opens a new session. The caller owns the returned Browser and
// must Close it.
func (l *ChromeLauncher) Launch(ctx context.Context, headless bool) (Browser, error) {
	if err := os.MkdirAll(l.ProfileDir, 0o755); err != nil {
		return nil, fmt.Errorf("create profile dir: %w", err)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserDataDir(l.ProfileDir),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("lang", "en-US"),
		chromedp.WindowSize(1400, 900),
		chromedp.Flag("headless", headless),
	)
	if bin, ok := FindBinary(l.Binary); ok {
		opts = append(opts, chromedp.ExecPath(bin))
	} else if l.Logger != nil {
		l.Logger.Warn("browser binary not found automatically; relying on chromedp defaults")
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	// Start the browser process now so launch failures surface here
	// instead of on the first navigation.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	return &chromeSession{
		ctx:           browserCtx,
		cancelBrowser: cancelBrowser,
		cancelAlloc:   cancelAlloc,
	}, nil
}

// chromeSession adapts a chromedp context to the Browser interface.
// chromedp actions run on the session's own context; the caller context
// gates entry so cancellation is still observed between operations.
type chromeSession struct {
	ctx           context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc
}

func (s *chromeSession) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	opCtx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	return chromedp.Run(opCtx, actions...)
}

func (s *chromeSession) Navigate(ctx context.Context, url string) error {
	if err := s.run(ctx, opTimeout*2, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

func (s *chromeSession) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	return s.run(ctx, timeout, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

func (s *chromeSession) Query(ctx context.Context, selector string) ([]Element, error) {
	var nodes []*cdp.Node
	err := s.run(ctx, opTimeout,
		chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)))
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", selector, err)
	}
	els := make([]Element, 0, len(nodes))
	for _, n := range nodes {
		els = append(els, &chromeElement{s: s, node: n})
	}
	return els, nil
}

func (s *chromeSession) QueryOne(ctx context.Context, selector string) (Element, error) {
	els, err := s.Query(ctx, selector)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, fmt.Errorf("query %q: %w", selector, ErrNotFound)
	}
	return els[0], nil
}

func (s *chromeSession) Title(ctx context.Context) (string, error) {
	var title string
	if err := s.run(ctx, opTimeout, chromedp.Title(&title)); err != nil {
		return "", err
	}
	return title, nil
}

func (s *chromeSession) URL(ctx context.Context) (string, error) {
	var loc string
	if err := s.run(ctx, opTimeout, chromedp.Location(&loc)); err != nil {
		return "", err
	}
	return loc, nil
}

func (s *chromeSession) PageText(ctx context.Context) (string, error) {
	var text string
	if err := s.run(ctx, opTimeout, chromedp.Text("body", &text, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return text, nil
}

func (s *chromeSession) MoveMouse(ctx context.Context, x, y float64) error {
	return s.run(ctx, opTimeout, chromedp.ActionFunc(func(cctx context.Context) error {
		return input.DispatchMouseEvent(input.MouseMoved, x, y).Do(cctx)
	}))
}

func (s *chromeSession) Close() error {
	s.cancelBrowser()
	s.cancelAlloc()
	return nil
}

type chromeElement struct {
	s    *chromeSession
	node *cdp.Node
}

func (e *chromeElement) Attr(ctx context.Context, name string) (string, bool, error) {
	attrs := e.node.Attributes
	for i := 0; i+1 < len(attrs); i += 2 {
		if attrs[i] == name {
			return attrs[i+1], true, nil
		}
	}
	return "", false, nil
}

func (e *chromeElement) Text(ctx context.Context) (string, error) {
	res, err := e.call(ctx, `function() { return this.innerText; }`)
	if err != nil {
		return "", fmt.Errorf("element text: %w", err)
	}
	return res, nil
}

func (e *chromeElement) HTML(ctx context.Context) (string, error) {
	res, err := e.call(ctx, `function() { return this.innerHTML; }`)
	if err != nil {
		return "", fmt.Errorf("element html: %w", err)
	}
	return res, nil
}

func (e *chromeElement) Click(ctx context.Context) error {
	return e.s.run(ctx, opTimeout, chromedp.MouseClickNode(e.node))
}

func (e *chromeElement) JSClick(ctx context.Context) error {
	_, err := e.call(ctx, `function() { this.click(); return ""; }`)
	if err != nil {
		return fmt.Errorf("js click: %w", err)
	}
	return nil
}

// call resolves the node to a remote object and invokes fn on it,
// returning the string result.
func (e *chromeElement) call(ctx context.Context, fn string) (string, error) {
	var out string
	err := e.s.run(ctx, opTimeout, chromedp.ActionFunc(func(cctx context.Context) error {
		obj, err := dom.ResolveNode().WithNodeID(e.node.NodeID).Do(cctx)
		if err != nil {
			return err
		}
		res, exc, err := runtime.CallFunctionOn(fn).
			WithObjectID(obj.ObjectID).
			WithReturnByValue(true).
			Do(cctx)
		if err != nil {
			return err
		}
		if exc != nil {
			return fmt.Errorf("script exception: %s", exc.Text)
		}
		if res != nil && res.Value != nil {
			return json.Unmarshal(res.Value, &out)
		}
		return nil
	}))
	return out, err
}
