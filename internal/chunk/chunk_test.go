package chunk

import (
	"strings"
	"testing"
)

func TestMarkdownSplitterKeepsHeadingWithBody(t *testing.T) {
	s := NewMarkdownSplitter(Config{Size: 1000, Overlap: 200})
	chunks := s.Split("# H\n\nBody.\n")
	if len(chunks) == 0 {
		t.Fatalf("expected at least one chunk")
	}
	joined := strings.Join(chunks, "\n")
	if !strings.Contains(joined, "# H") || !strings.Contains(joined, "Body.") {
		t.Fatalf("expected heading and body preserved, got %v", chunks)
	}
}

func TestRecursiveSplitterRespectsSize(t *testing.T) {
	s := NewRecursiveCharacterSplitter(Config{Size: 50, Overlap: 10})
	long := strings.Repeat("word ", 200)
	chunks := s.Split(long)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks for long text, got %d", len(chunks))
	}
	for _, c := range chunks {
		if runeLen(c) > 50 {
			t.Fatalf("chunk exceeds configured size: %d runes", runeLen(c))
		}
	}
}

func TestForExtensionDispatch(t *testing.T) {
	if _, ok := ForExtension(".md", Config{}).(*MarkdownSplitter); !ok {
		t.Fatalf("expected markdown splitter for .md")
	}
	if _, ok := ForExtension(".txt", Config{}).(*RecursiveCharacterSplitter); !ok {
		t.Fatalf("expected recursive splitter for .txt")
	}
}

func TestEmptyTextYieldsNoChunks(t *testing.T) {
	if got := NewRecursiveCharacterSplitter(Config{Size: 100}).Split("   \n  "); got != nil {
		t.Fatalf("expected nil for blank text, got %v", got)
	}
}
