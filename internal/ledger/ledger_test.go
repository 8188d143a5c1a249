package ledger

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFile(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "nope", "processed.txt"), nil)

	ids := s.Load()
	if len(ids) != 0 {
		t.Errorf("Load() on missing file returned %d ids, want 0", len(ids))
	}
}

func TestAppend_ThenReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "processed.txt")
	s := New(path, nil)

	if !s.Append("7123456789012345678") {
		t.Fatal("Append() returned false")
	}

	// Fresh store, same backing file
	s2 := New(path, nil)
	if !s2.Contains("7123456789012345678") {
		t.Error("Contains() = false after append and reload")
	}
	if s2.Contains("999") {
		t.Error("Contains() = true for unrecorded id")
	}
}

func TestAppend_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "processed.txt")
	s := New(path, nil)

	if !s.Append("id1") {
		t.Fatal("Append() returned false")
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("backing file not created: %v", err)
	}
}

func TestAppend_DuplicateIsSetMembership(t *testing.T) {
	path := filepath.Join(t.TempDir(), "processed.txt")
	s := New(path, nil)

	s.Append("dup")
	s.Append("dup")
	s.Append("other")

	ids := s.Load()
	if len(ids) != 2 {
		t.Errorf("Load() after duplicate appends has %d entries, want 2", len(ids))
	}
	if !s.Contains("dup") {
		t.Error("Contains(dup) = false")
	}
	if s.Count() != 2 {
		t.Errorf("Count() = %d, want 2", s.Count())
	}
}

func TestLoad_SkipsBlankLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "processed.txt")
	if err := os.WriteFile(path, []byte("a\n\nb\n\n"), 0644); err != nil {
		t.Fatal(err)
	}

	s := New(path, nil)
	ids := s.Load()
	if len(ids) != 2 {
		t.Errorf("Load() = %d entries, want 2", len(ids))
	}
}

func TestAppend_IsAppendOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "processed.txt")
	s := New(path, nil)

	s.Append("first")
	s.Append("second")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "first\nsecond\n" {
		t.Errorf("backing file = %q, want %q", string(data), "first\nsecond\n")
	}
}
