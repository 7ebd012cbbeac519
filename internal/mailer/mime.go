package mailer

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-message/mail"
)

// buildMIME assembles a multipart/alternative message with a plain-text
// part and an HTML part (falling back to the plain text when no HTML is
// available), and returns it base64url-encoded the way the Gmail API
// expects raw messages.
func buildMIME(to, subject, htmlBody, textBody string) (string, error) {
	if subject == "" {
		subject = "(no subject)"
	}
	if textBody == "" {
		textBody = "(no body)"
	}
	if htmlBody == "" {
		htmlBody = textBody
	}

	var buf bytes.Buffer
	var h mail.Header
	h.SetDate(time.Now())
	h.SetAddressList("To", []*mail.Address{{Address: to}})
	h.SetSubject(subject)

	mw, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return "", fmt.Errorf("create message: %w", err)
	}
	iw, err := mw.CreateInline()
	if err != nil {
		return "", fmt.Errorf("create alternative part: %w", err)
	}

	// Plain part first; alternatives ascend in preference.
	var textHeader mail.InlineHeader
	textHeader.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	pw, err := iw.CreatePart(textHeader)
	if err != nil {
		return "", fmt.Errorf("create text part: %w", err)
	}
	if _, err := io.WriteString(pw, textBody); err != nil {
		return "", fmt.Errorf("write text part: %w", err)
	}
	pw.Close()

	var htmlHeader mail.InlineHeader
	htmlHeader.SetContentType("text/html", map[string]string{"charset": "utf-8"})
	hw, err := iw.CreatePart(htmlHeader)
	if err != nil {
		return "", fmt.Errorf("create html part: %w", err)
	}
	if _, err := io.WriteString(hw, htmlBody); err != nil {
		return "", fmt.Errorf("write html part: %w", err)
	}
	hw.Close()

	iw.Close()
	mw.Close()

	return base64.RawURLEncoding.EncodeToString(buf.Bytes()), nil
}
