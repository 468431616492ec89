package services_test

import (
	"errors"
	"strings"
	"testing"

	"storyboard/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrProvider, "prompts", "batch call", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrProvider) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"prompts", "batch call", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapNilMarkerDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "images", "generate", "", errors.New("io"))
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
}

func TestFatalClassification(t *testing.T) {
	cases := []struct {
		name  string
		err   error
		fatal bool
	}{
		{"nil", nil, false},
		{"download degrades", services.Wrap(services.ErrDownload, "archiver", "fetch", "bad status", nil), false},
		{"storage degrades", services.Wrap(services.ErrStorage, "archiver", "upload", "", errors.New("disk full")), false},
		{"provider fatal", services.Wrap(services.ErrProvider, "prompts", "call", "", nil), true},
		{"validation fatal", services.Wrap(services.ErrValidation, "store", "write", "bad json", nil), true},
		{"conflict fatal", services.Wrap(services.ErrConflict, "store", "write", "", nil), true},
	}
	for _, tc := range cases {
		if got := services.Fatal(tc.err); got != tc.fatal {
			t.Fatalf("%s: Fatal = %v, want %v", tc.name, got, tc.fatal)
		}
	}
}
