package sidecar

import (
	"os"
	"testing"
)

func TestWriteReadDelete(t *testing.T) {
	dir := t.TempDir()
	path := "/w/doc.md"

	if got := Read(path, dir); got != nil {
		t.Fatalf("expected absent sidecar, got %v", got)
	}

	mapping := map[string]any{"domain": "meetings"}
	if err := Write(path, dir, mapping); err != nil {
		t.Fatalf("write: %v", err)
	}

	got := Read(path, dir)
	if got["domain"] != "meetings" {
		t.Fatalf("expected domain meetings, got %v", got)
	}

	if err := Delete(path, dir); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := Read(path, dir); got != nil {
		t.Fatalf("expected absent after delete, got %v", got)
	}

	// Deleting again is still success.
	if err := Delete(path, dir); err != nil {
		t.Fatalf("second delete: %v", err)
	}
}

func TestWriteCreatesParentDirs(t *testing.T) {
	dir := t.TempDir() + "/nested/deeper"
	if err := Write("/w/doc.md", dir, map[string]any{"a": 1}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("expected dir created: %v", err)
	}
}
