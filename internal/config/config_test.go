package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jeeveswatcher.yaml")
	if err := os.WriteFile(path, []byte("watch:\n  paths:\n    - .\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MetadataDir != ".jeeves-watcher" {
		t.Fatalf("MetadataDir = %q", cfg.MetadataDir)
	}
	if cfg.Embedding.Dimensions != 256 {
		t.Fatalf("Embedding.Dimensions = %d", cfg.Embedding.Dimensions)
	}
	if cfg.ShutdownTimeoutMs != 10_000 {
		t.Fatalf("ShutdownTimeoutMs = %d", cfg.ShutdownTimeoutMs)
	}
	if cfg.API.Port != 8090 {
		t.Fatalf("API.Port = %d", cfg.API.Port)
	}
}

func TestLoadMissingPathsFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jeeveswatcher.yaml")
	if err := os.WriteFile(path, []byte("metadataDir: custom\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for missing watch.paths")
	}
}

func TestExpandAllResolvesDefaultAndEnv(t *testing.T) {
	t.Setenv("JEEVES_TEST_COLLECTION", "from-env")

	dir := t.TempDir()
	path := filepath.Join(dir, "jeeveswatcher.yaml")
	doc := "watch:\n  paths:\n    - .\nvectorStore:\n  collection: ${JEEVES_TEST_COLLECTION}\n  url: ${JEEVES_TEST_URL:http://localhost:6334}\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.VectorStore.Collection != "from-env" {
		t.Fatalf("Collection = %q", cfg.VectorStore.Collection)
	}
	if cfg.VectorStore.URL != "http://localhost:6334" {
		t.Fatalf("URL = %q", cfg.VectorStore.URL)
	}
}

func TestExpandAllIsDepthBounded(t *testing.T) {
	t.Setenv("JEEVES_CYCLE_A", "${JEEVES_CYCLE_A}")
	out := expandAll("${JEEVES_CYCLE_A}", 10)
	if out != "${JEEVES_CYCLE_A}" {
		t.Fatalf("expected cycle to stabilize unexpanded, got %q", out)
	}
}
