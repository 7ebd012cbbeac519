package scanner

// Strategy is one way of locating a page element. Chains are ordered;
// the first selector that resolves wins. Keeping them as data means the
// lists can track webmail markup changes without touching control flow.
type Strategy struct {
	Name     string
	Selector string
}

// rowSelector matches one message row in the list pane.
const rowSelector = `div[role="option"]`

// folderLinkStrategies locate a folder's entry in the sidebar. The
// selector is a format string taking the folder name.
var folderLinkStrategies = []Strategy{
	{Name: "title attribute", Selector: `[title=%q]`},
	{Name: "aria label", Selector: `[aria-label=%q]`},
}

// senderStrategies locate the sender of the opened message. A miss on
// every strategy degrades to a placeholder rather than skipping.
var senderStrategies = []Strategy{
	{Name: "reading pane title span", Selector: `div[role="main"] span[title]`},
	{Name: "from line", Selector: `div[role="main"] div[aria-label^="From"] span`},
}

// subjectStrategies locate the subject. A miss on every strategy skips
// the message.
var subjectStrategies = []Strategy{
	{Name: "reading pane heading", Selector: `div[role="main"] h1`},
	{Name: "heading role", Selector: `div[role="main"] div[role="heading"]`},
}

// bodyStrategies locate the message body container. A miss on every
// strategy skips the message.
var bodyStrategies = []Strategy{
	{Name: "document region", Selector: `div[role="document"]`},
	{Name: "message body label", Selector: `div[role="main"] div[aria-label="Message body"]`},
}
