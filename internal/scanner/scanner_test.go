package scanner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/Skytheredhead/outlookscrape/internal/browser/browsertest"
	"github.com/Skytheredhead/outlookscrape/internal/config"
)

const (
	inboxURL = "https://outlook.office.com/mail/inbox"
	junkURL  = "https://outlook.office.com/mail/junkemail"
)

var testFolders = []config.Folder{
	{Name: "Inbox", URL: inboxURL},
	{Name: "Junk Email", URL: junkURL},
}

type memRegistry map[string]bool

func (m memRegistry) Has(id string) bool { return m[id] }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newScanner(folders []config.Folder) *Scanner {
	return New(folders, NopPacer(), testLogger())
}

func unreadRow(id, label string) *browsertest.Element {
	return &browsertest.Element{
		Attrs: map[string]string{
			"data-itemid": id,
			"aria-label":  label,
			"class":       "item unread",
		},
	}
}

// mailboxPage scripts a folder view with the given rows and a reading
// pane showing one message.
func mailboxPage(rows []*browsertest.Element) *browsertest.Page {
	return &browsertest.Page{
		Elements: map[string][]*browsertest.Element{
			rowSelector:                    rows,
			`div[role="main"] span[title]`: {{TextContent: "Alice <alice@example.com>"}},
			`div[role="main"] h1`:          {{TextContent: "Hello"}},
			`div[role="document"]`: {{
				TextContent: "plain body",
				Markup:      "<p>plain body</p>",
			}},
		},
	}
}

func TestScan_CleanSingleMessage(t *testing.T) {
	fake := browsertest.NewFake()
	fake.AddPage(inboxURL, mailboxPage([]*browsertest.Element{unreadRow("id-1", "Hello unread")}))
	fake.AddPage(junkURL, &browsertest.Page{})

	msgs, err := newScanner(testFolders).Scan(context.Background(), fake, memRegistry{})
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	m := msgs[0]
	if m.ID != "id-1" {
		t.Errorf("ID = %q, want id-1", m.ID)
	}
	if m.Sender != "Alice <alice@example.com>" {
		t.Errorf("Sender = %q", m.Sender)
	}
	if m.Subject != "Hello" {
		t.Errorf("Subject = %q, want Hello", m.Subject)
	}
	if m.BodyText != "plain body" || m.BodyHTML != "<p>plain body</p>" {
		t.Errorf("body = (%q, %q)", m.BodyText, m.BodyHTML)
	}
	if m.Folder != "Inbox" {
		t.Errorf("Folder = %q, want Inbox", m.Folder)
	}

	nav := fake.NavLog()
	if len(nav) != 2 || nav[0] != inboxURL || nav[1] != junkURL {
		t.Errorf("navigation order = %v", nav)
	}
}

func TestScan_SkipsForwardedAndReadRows(t *testing.T) {
	forwarded := unreadRow("seen", "Old unread")
	read := &browsertest.Element{
		Attrs: map[string]string{"data-itemid": "read-1", "aria-label": "Read mail", "class": "item"},
	}
	fresh := unreadRow("new-1", "New unread")

	fake := browsertest.NewFake()
	fake.AddPage(inboxURL, mailboxPage([]*browsertest.Element{forwarded, read, fresh}))
	fake.AddPage(junkURL, &browsertest.Page{})

	msgs, err := newScanner(testFolders).Scan(context.Background(), fake, memRegistry{"seen": true})
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(msgs) != 1 || msgs[0].ID != "new-1" {
		t.Fatalf("msgs = %+v, want only new-1", msgs)
	}
	if forwarded.Clicks() != 0 {
		t.Error("already-forwarded row must not be opened")
	}
	if read.Clicks() != 0 {
		t.Error("read row must not be opened")
	}
}

func TestScan_DedupAcrossScans(t *testing.T) {
	reg := memRegistry{}
	fake := browsertest.NewFake()
	fake.AddPage(inboxURL, mailboxPage([]*browsertest.Element{unreadRow("id-1", "Hello unread")}))
	fake.AddPage(junkURL, &browsertest.Page{})

	s := newScanner(testFolders)
	msgs, err := s.Scan(context.Background(), fake, reg)
	if err != nil || len(msgs) != 1 {
		t.Fatalf("first scan = (%v, %v)", msgs, err)
	}
	// The row is still unread on the page, but the id is now registered.
	reg["id-1"] = true
	msgs, err = s.Scan(context.Background(), fake, reg)
	if err != nil {
		t.Fatalf("second scan failed: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("second scan returned %d messages, want 0", len(msgs))
	}
}

func TestScan_MissingSubjectSkipsMessage(t *testing.T) {
	page := mailboxPage([]*browsertest.Element{unreadRow("id-1", "Hello unread")})
	delete(page.Elements, `div[role="main"] h1`)

	fake := browsertest.NewFake()
	fake.AddPage(inboxURL, page)
	fake.AddPage(junkURL, &browsertest.Page{})

	msgs, err := newScanner(testFolders).Scan(context.Background(), fake, memRegistry{})
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("got %d messages, want 0 (subject unresolvable)", len(msgs))
	}
}

func TestScan_MissingSenderDegradesToPlaceholder(t *testing.T) {
	page := mailboxPage([]*browsertest.Element{unreadRow("id-1", "Hello unread")})
	delete(page.Elements, `div[role="main"] span[title]`)

	fake := browsertest.NewFake()
	fake.AddPage(inboxURL, page)
	fake.AddPage(junkURL, &browsertest.Page{})

	msgs, err := newScanner(testFolders).Scan(context.Background(), fake, memRegistry{})
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Sender != unknownSender {
		t.Fatalf("msgs = %+v, want one message with placeholder sender", msgs)
	}
}

func TestScan_ClickFallbackAndTotalFailure(t *testing.T) {
	stubborn := unreadRow("js-only", "Needs js unread")
	stubborn.FailClick = true // pointer click rejected, JS click works

	dead := unreadRow("dead", "Unclickable unread")
	dead.FailClick = true
	dead.FailJSClick = true

	fake := browsertest.NewFake()
	fake.AddPage(inboxURL, mailboxPage([]*browsertest.Element{stubborn, dead}))
	fake.AddPage(junkURL, &browsertest.Page{})

	msgs, err := newScanner(testFolders).Scan(context.Background(), fake, memRegistry{})
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(msgs) != 1 || msgs[0].ID != "js-only" {
		t.Fatalf("msgs = %+v, want only js-only", msgs)
	}
}

func TestScan_EmptyFolderIsNotAnError(t *testing.T) {
	fake := browsertest.NewFake()
	fake.AddPage(inboxURL, &browsertest.Page{})
	fake.AddPage(junkURL, &browsertest.Page{})

	msgs, err := newScanner(testFolders).Scan(context.Background(), fake, memRegistry{})
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("got %d messages, want 0", len(msgs))
	}
}

func TestScan_AllFoldersFailingIsAnError(t *testing.T) {
	fake := browsertest.NewFake()
	fake.NavigateErr = func(url string) error { return fmt.Errorf("connection reset") }

	_, err := newScanner(testFolders).Scan(context.Background(), fake, memRegistry{})
	if err == nil {
		t.Fatal("expected an error when every folder fails to open")
	}
}

func TestScan_SingleFolderFailureIsSkipped(t *testing.T) {
	fake := browsertest.NewFake()
	fake.NavigateErr = func(url string) error {
		if url == inboxURL {
			return fmt.Errorf("connection reset")
		}
		return nil
	}
	fake.AddPage(junkURL, mailboxPage([]*browsertest.Element{unreadRow("junk-1", "Spam unread")}))

	msgs, err := newScanner(testFolders).Scan(context.Background(), fake, memRegistry{})
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Folder != "Junk Email" {
		t.Fatalf("msgs = %+v, want one message from Junk Email", msgs)
	}
}

func TestScan_SidebarClickAvoidsDirectNavigation(t *testing.T) {
	page := mailboxPage([]*browsertest.Element{unreadRow("id-1", "Hello unread")})
	page.Elements[`[title="Inbox"]`] = []*browsertest.Element{{}}

	fake := browsertest.NewFake()
	fake.AddPage("app", page)
	fake.SetCurrent("app")

	msgs, err := newScanner(testFolders[:1]).Scan(context.Background(), fake, memRegistry{})
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	if len(fake.NavLog()) != 0 {
		t.Errorf("direct navigation used despite sidebar match: %v", fake.NavLog())
	}
}

func TestRowID_FallbackChain(t *testing.T) {
	s := newScanner(testFolders)
	ctx := context.Background()

	native := &browsertest.Element{Attrs: map[string]string{"data-itemid": "native", "aria-labelledby": "lbl"}}
	if got := s.rowID(ctx, native, "label"); got != "native" {
		t.Errorf("rowID = %q, want native", got)
	}

	labelled := &browsertest.Element{Attrs: map[string]string{"aria-labelledby": "lbl-3"}}
	if got := s.rowID(ctx, labelled, "label"); got != "lbl-3" {
		t.Errorf("rowID = %q, want lbl-3", got)
	}

	bare := &browsertest.Element{Attrs: map[string]string{}}
	if got := s.rowID(ctx, bare, "Some label"); got != "Some label" {
		t.Errorf("rowID = %q, want the accessible label", got)
	}

	if got := s.rowID(ctx, bare, ""); !strings.HasPrefix(got, syntheticIDPrefix) {
		t.Errorf("rowID = %q, want synthetic fallback", got)
	}
}

func TestFallbackID(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	a := fallbackID("label", now)
	b := fallbackID("label", now)
	if a != b {
		t.Errorf("fallbackID not deterministic: %q vs %q", a, b)
	}
	c := fallbackID("label", now.Add(time.Nanosecond))
	if a == c {
		t.Error("fallbackID must change with time")
	}
}
