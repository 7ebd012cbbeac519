package mailer

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func touch(t *testing.T, path string, mod time.Time) {
	t.Helper()
	if err := os.WriteFile(path, []byte("{}"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(path, mod, mod); err != nil {
		t.Fatal(err)
	}
}

func TestFindClientSecret_PrefersWellKnownName(t *testing.T) {
	base := time.Now().Add(-time.Hour)
	first := t.TempDir()
	second := t.TempDir()
	touch(t, filepath.Join(first, "client_secret_123.json"), base.Add(time.Minute))
	touch(t, filepath.Join(second, "credentials.json"), base)

	got, err := FindClientSecret(first, second)
	if err != nil {
		t.Fatalf("FindClientSecret failed: %v", err)
	}
	if want := filepath.Join(second, "credentials.json"); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestFindClientSecret_NewestDownloadWins(t *testing.T) {
	base := time.Now().Add(-time.Hour)
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "client_secret_old.json"), base)
	touch(t, filepath.Join(dir, "client_secret_new.json"), base.Add(10*time.Minute))
	touch(t, filepath.Join(dir, "notes.json"), base.Add(time.Hour)) // wrong prefix

	got, err := FindClientSecret(dir)
	if err != nil {
		t.Fatalf("FindClientSecret failed: %v", err)
	}
	if want := filepath.Join(dir, "client_secret_new.json"); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestFindClientSecret_Missing(t *testing.T) {
	_, err := FindClientSecret(t.TempDir(), filepath.Join(t.TempDir(), "nope"))
	if !errors.Is(err, ErrNoClientSecret) {
		t.Fatalf("err = %v, want ErrNoClientSecret", err)
	}
}
