package ignore

import (
	"os"
	"path/filepath"
	"testing"
)

func setupRepo(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, ".gitignore"), []byte("*.log\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	sub := filepath.Join(root, "sub")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sub, ".gitignore"), []byte("*.tmp\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(root, "src"), 0o755); err != nil {
		t.Fatal(err)
	}
	return root
}

func TestGitignoreScoping(t *testing.T) {
	root := setupRepo(t)
	f, err := New([]string{root})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	cases := []struct {
		rel  string
		want bool
	}{
		{"a.log", true},
		{"sub/a.log", true},
		{"sub/b.tmp", true},
		{"b.tmp", false},
		{"src/index.ts", false},
	}
	for _, c := range cases {
		got := f.IsIgnored(filepath.Join(root, c.rel))
		if got != c.want {
			t.Errorf("IsIgnored(%s) = %v, want %v", c.rel, got, c.want)
		}
	}
}

func TestInvalidateReparses(t *testing.T) {
	root := setupRepo(t)
	f, err := New([]string{root})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ignoreFile := filepath.Join(root, ".gitignore")
	if err := os.WriteFile(ignoreFile, []byte("*.log\n*.bak\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := f.Invalidate(ignoreFile); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if !f.IsIgnored(filepath.Join(root, "x.bak")) {
		t.Fatalf("expected x.bak to be ignored after reparse")
	}
}

func TestPathOutsideAnyRepoNeverIgnored(t *testing.T) {
	root := setupRepo(t)
	f, err := New([]string{root})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	outside := t.TempDir()
	if f.IsIgnored(filepath.Join(outside, "a.log")) {
		t.Fatalf("expected path outside any repo to never be ignored")
	}
}
