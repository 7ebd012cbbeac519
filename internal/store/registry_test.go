package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestRegistry_AddIsIdempotent(t *testing.T) {
	r, err := OpenRegistry(t.TempDir())
	if err != nil {
		t.Fatalf("OpenRegistry failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := r.Add("msg-1"); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}
	if got := r.Count(); got != 1 {
		t.Errorf("Count = %d, want 1", got)
	}
	if !r.Has("msg-1") {
		t.Error("Has(msg-1) = false, want true")
	}
}

func TestRegistry_PersistsSortedAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	r, err := OpenRegistry(dir)
	if err != nil {
		t.Fatalf("OpenRegistry failed: %v", err)
	}
	for _, id := range []string{"charlie", "alpha", "bravo"} {
		if err := r.Add(id); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}

	data, err := os.ReadFile(filepath.Join(dir, registryFile))
	if err != nil {
		t.Fatalf("read registry file: %v", err)
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		t.Fatalf("registry file is not a JSON array: %v", err)
	}
	want := []string{"alpha", "bravo", "charlie"}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids[%d] = %q, want %q (file must be sorted)", i, ids[i], want[i])
		}
	}

	reopened, err := OpenRegistry(dir)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	if !reopened.Has("bravo") {
		t.Error("reopened registry lost an id")
	}
}

func TestRegistry_CorruptFileYieldsEmpty(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, registryFile), []byte("no"), 0o600); err != nil {
		t.Fatal(err)
	}
	r, err := OpenRegistry(dir)
	if err != nil {
		t.Fatalf("OpenRegistry failed: %v", err)
	}
	if got := r.Count(); got != 0 {
		t.Errorf("Count = %d, want 0", got)
	}
}
