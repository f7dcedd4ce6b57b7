package keystore

import (
	"path/filepath"
	"testing"
)

func TestRegisterAndLookup(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	defer s.Close()

	if err := s.Register("relay", "example.org", 6680, []byte{1, 2, 3}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	e, ok, err := s.Lookup("relay")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !ok {
		t.Fatalf("expected tag to be found")
	}
	if e.Host != "example.org" || e.Port != 6680 {
		t.Fatalf("unexpected entry: %+v", e)
	}
}

func TestLookupMissingTag(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	defer s.Close()

	_, ok, err := s.Lookup("nope")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if ok {
		t.Fatalf("expected tag not to be found")
	}
}

func TestRegisterOverwritesExisting(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	defer s.Close()

	if err := s.Register("relay", "a.example", 1, nil); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := s.Register("relay", "b.example", 2, nil); err != nil {
		t.Fatalf("Register: %v", err)
	}
	e, _, _ := s.Lookup("relay")
	if e.Host != "b.example" || e.Port != 2 {
		t.Fatalf("expected overwrite, got %+v", e)
	}
}

func TestOnlyOneKeystoreOpenAtATime(t *testing.T) {
	dir1 := t.TempDir()
	dir2 := filepath.Join(t.TempDir(), "other")

	s, err := Open(dir1)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	defer s.Close()

	if _, err := Open(dir2); err != ErrAlreadyOpen {
		t.Fatalf("err = %v, want ErrAlreadyOpen", err)
	}
}

func TestRegisterRequiresTagAndHost(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	defer s.Close()

	if err := s.Register("", "host", 1, nil); err == nil {
		t.Fatalf("expected error for empty tag")
	}
	if err := s.Register("tag", "", 1, nil); err == nil {
		t.Fatalf("expected error for empty host")
	}
}
