package packagemgr

import (
	"strings"
	"testing"
)

// The brew adapter auto-registers via init(), so it must be present.

func TestGetKnownManager(t *testing.T) {
	m, err := Get("brew")
	if err != nil {
		t.Fatalf("Get(brew) returned error: %v", err)
	}
	if m.Name() != "brew" {
		t.Errorf("Get(brew).Name() = %q, want brew", m.Name())
	}
}

func TestGetUnknownManager(t *testing.T) {
	_, err := Get("nonexistent")
	if err == nil {
		t.Fatal("Get(nonexistent) should return error")
	}
	if !strings.Contains(err.Error(), "unknown package manager") {
		t.Errorf("error message should mention 'unknown package manager', got: %v", err)
	}
}
