package main

import (
	"strings"
	"testing"
)

func TestReadAuthSecretTrimsNewline(t *testing.T) {
	secret, keys, err := readAuthSecret(strings.NewReader("sekrit\n"), 2)
	if err != nil {
		t.Fatalf("readAuthSecret: %v", err)
	}
	if string(secret) != "sekrit" {
		t.Fatalf("secret = %q, want %q", secret, "sekrit")
	}
	if len(keys) != 2 {
		t.Fatalf("preauthSlots = %d, want 2", len(keys))
	}
}

func TestReadAuthSecretNoPreauth(t *testing.T) {
	_, keys, err := readAuthSecret(strings.NewReader("x"), 0)
	if err != nil {
		t.Fatalf("readAuthSecret: %v", err)
	}
	if keys != nil {
		t.Fatalf("expected no preauth slots, got %d", len(keys))
	}
}
