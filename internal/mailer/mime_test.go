package mailer

import (
	"bytes"
	"encoding/base64"
	"io"
	"strings"
	"testing"

	"github.com/emersion/go-message/mail"
)

// decodeMessage decodes the Gmail raw payload back into a parsed reader.
func decodeMessage(t *testing.T, raw string) *mail.Reader {
	t.Helper()
	decoded, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		t.Fatalf("payload is not base64url: %v", err)
	}
	mr, err := mail.CreateReader(bytes.NewReader(decoded))
	if err != nil {
		t.Fatalf("payload is not a parsable message: %v", err)
	}
	return mr
}

// readParts returns content type and body for each part in order.
func readParts(t *testing.T, mr *mail.Reader) [][2]string {
	t.Helper()
	var parts [][2]string
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("NextPart failed: %v", err)
		}
		body, err := io.ReadAll(p.Body)
		if err != nil {
			t.Fatalf("read part body: %v", err)
		}
		parts = append(parts, [2]string{p.Header.Get("Content-Type"), string(body)})
	}
	return parts
}

func TestBuildMIME_AlternativeParts(t *testing.T) {
	raw, err := buildMIME("me@example.com", "Invoice", "<p>pay up</p>", "pay up")
	if err != nil {
		t.Fatalf("buildMIME failed: %v", err)
	}

	mr := decodeMessage(t, raw)
	subject, err := mr.Header.Subject()
	if err != nil || subject != "Invoice" {
		t.Errorf("Subject = %q (err %v), want Invoice", subject, err)
	}
	to, err := mr.Header.AddressList("To")
	if err != nil || len(to) != 1 || to[0].Address != "me@example.com" {
		t.Errorf("To = %v (err %v)", to, err)
	}

	parts := readParts(t, mr)
	if len(parts) != 2 {
		t.Fatalf("got %d parts, want 2", len(parts))
	}
	if !strings.HasPrefix(parts[0][0], "text/plain") || parts[0][1] != "pay up" {
		t.Errorf("first part = %v, want text/plain with the plain body", parts[0])
	}
	if !strings.HasPrefix(parts[1][0], "text/html") || parts[1][1] != "<p>pay up</p>" {
		t.Errorf("second part = %v, want text/html with the html body", parts[1])
	}
}

func TestBuildMIME_EmptyFieldsGetPlaceholders(t *testing.T) {
	raw, err := buildMIME("me@example.com", "", "", "")
	if err != nil {
		t.Fatalf("buildMIME failed: %v", err)
	}

	mr := decodeMessage(t, raw)
	subject, err := mr.Header.Subject()
	if err != nil || subject != "(no subject)" {
		t.Errorf("Subject = %q (err %v), want (no subject)", subject, err)
	}
	parts := readParts(t, mr)
	if len(parts) != 2 {
		t.Fatalf("got %d parts, want 2", len(parts))
	}
	for _, p := range parts {
		if p[1] != "(no body)" {
			t.Errorf("part %q body = %q, want (no body)", p[0], p[1])
		}
	}
}

func TestBuildMIME_HTMLFallsBackToText(t *testing.T) {
	raw, err := buildMIME("me@example.com", "Hi", "", "plain only")
	if err != nil {
		t.Fatalf("buildMIME failed: %v", err)
	}
	parts := readParts(t, decodeMessage(t, raw))
	if len(parts) != 2 {
		t.Fatalf("got %d parts, want 2", len(parts))
	}
	if parts[1][1] != "plain only" {
		t.Errorf("html part = %q, want the plain text fallback", parts[1][1])
	}
}
