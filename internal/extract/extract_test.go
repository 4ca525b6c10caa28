package extract

import (
	"strings"
	"testing"
)

func TestMarkdownFrontmatter(t *testing.T) {
	src := "---\ntitle: Hello\ntags:\n  - api\n---\n\n# H\n\nBody.\n"
	res, err := File("/w/doc.md", []byte(src))
	if err != nil {
		t.Fatalf("File: %v", err)
	}
	if res.Frontmatter["title"] != "Hello" {
		t.Fatalf("expected title Hello, got %v", res.Frontmatter["title"])
	}
	if !strings.Contains(res.Text, "# H") || !strings.Contains(res.Text, "Body.") {
		t.Fatalf("unexpected body: %q", res.Text)
	}
}

func TestMarkdownNoFrontmatterWhenUnclosed(t *testing.T) {
	src := "---\ntitle: Hello\n\n# H\n"
	res, err := File("/w/doc.md", []byte(src))
	if err != nil {
		t.Fatalf("File: %v", err)
	}
	if res.Frontmatter != nil {
		t.Fatalf("expected no frontmatter for unclosed block, got %v", res.Frontmatter)
	}
	if res.Text != src {
		t.Fatalf("expected whole input as body, got %q", res.Text)
	}
}

func TestMarkdownScalarFrontmatterIgnored(t *testing.T) {
	src := "---\njust a string\n---\nbody\n"
	res, err := File("/w/doc.md", []byte(src))
	if err != nil {
		t.Fatalf("File: %v", err)
	}
	if res.Frontmatter != nil {
		t.Fatalf("expected scalar frontmatter to be ignored, got %v", res.Frontmatter)
	}
}

func TestJSONPicksFirstTextField(t *testing.T) {
	res, err := File("/w/a.json", []byte(`{"subject":"hi","content":"body text"}`))
	if err != nil {
		t.Fatalf("File: %v", err)
	}
	if res.Text != "body text" {
		t.Fatalf("expected content field preferred, got %q", res.Text)
	}
	if res.Structured["subject"] != "hi" {
		t.Fatalf("expected structured data retained")
	}
}

func TestHTMLDropsScriptAndStyle(t *testing.T) {
	res, err := File("/w/a.html", []byte(`<html><head><style>.x{}</style></head><body><script>evil()</script><p>Hello world</p></body></html>`))
	if err != nil {
		t.Fatalf("File: %v", err)
	}
	if strings.Contains(res.Text, "evil") || strings.Contains(res.Text, ".x{}") {
		t.Fatalf("expected script/style stripped, got %q", res.Text)
	}
	if !strings.Contains(res.Text, "Hello world") {
		t.Fatalf("expected body text retained, got %q", res.Text)
	}
}

func TestPlaintextPassthrough(t *testing.T) {
	res, err := File("/w/a.ini", []byte("raw=1\n"))
	if err != nil {
		t.Fatalf("File: %v", err)
	}
	if res.Text != "raw=1\n" {
		t.Fatalf("expected passthrough, got %q", res.Text)
	}
}

func TestBOMStripped(t *testing.T) {
	withBOM := append([]byte{0xEF, 0xBB, 0xBF}, []byte("hello")...)
	res, err := File("/w/a.txt", withBOM)
	if err != nil {
		t.Fatalf("File: %v", err)
	}
	if res.Text != "hello" {
		t.Fatalf("expected BOM stripped, got %q", res.Text)
	}
}
