package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLoadEmptyPathReturnsDefault(t *testing.T) {
	opts, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(Default(), opts); diff != "" {
		t.Errorf("Load(\"\") diverged from Default() (-want +got):\n%s", diff)
	}
}

func TestLoadOverridesNamedFieldsAndKeepsDefaultsForTheRest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.yaml")
	contents := "maxParallelRules: 7\nnonTermMode: true\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	opts, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.MaxParallelRules != 7 {
		t.Errorf("expected MaxParallelRules overridden to 7, got %d", opts.MaxParallelRules)
	}
	if !opts.NonTermMode {
		t.Error("expected NonTermMode overridden to true")
	}
	if opts.MaxUpperboundsForPropagation != Default().MaxUpperboundsForPropagation {
		t.Errorf("expected MaxUpperboundsForPropagation to keep its default, got %d", opts.MaxUpperboundsForPropagation)
	}
	if opts.PolyStrategy != Default().PolyStrategy {
		t.Errorf("expected PolyStrategy to keep its default, got %s", opts.PolyStrategy)
	}
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	if _, err := Load("/nonexistent/engine.yaml"); err == nil {
		t.Fatal("expected an error for a missing override file")
	}
}
