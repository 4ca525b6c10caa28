// Package extract dispatches text extraction by file extension, yielding a
// text body plus optional frontmatter and structured-body data.
package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"golang.org/x/net/html"
	"gopkg.in/yaml.v3"
)

// Result is the output of extracting one file.
type Result struct {
	Text        string
	Frontmatter map[string]any
	Structured  map[string]any
}

var bom = []byte{0xEF, 0xBB, 0xBF}

func stripBOM(b []byte) []byte {
	return bytes.TrimPrefix(b, bom)
}

// File extracts text (and optional frontmatter/structured data) from
// content, dispatching on path's lowercased extension.
func File(path string, content []byte) (Result, error) {
	ext := strings.ToLower(filepath.Ext(path))
	content = stripBOM(content)
	switch ext {
	case ".md", ".markdown":
		return markdown(content), nil
	case ".txt", ".text":
		return Result{Text: string(content)}, nil
	case ".json":
		return jsonExtract(content)
	case ".html", ".htm":
		return htmlExtract(content)
	case ".pdf":
		return pdfExtract(path)
	case ".docx":
		return docxExtract(path)
	default:
		return Result{Text: string(content)}, nil
	}
}

// markdown splits a leading "---"-delimited YAML block as frontmatter from
// the remaining body, mirroring the corpus's skill-file frontmatter parser.
func markdown(content []byte) Result {
	text := string(content)
	lines := strings.Split(text, "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "---" {
		return Result{Text: text}
	}
	closeIdx := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			closeIdx = i
			break
		}
	}
	if closeIdx == -1 {
		return Result{Text: text}
	}
	yamlBlock := strings.Join(lines[1:closeIdx], "\n")
	body := strings.TrimLeft(strings.Join(lines[closeIdx+1:], "\n"), "\n")

	var v any
	if err := yaml.Unmarshal([]byte(yamlBlock), &v); err != nil {
		return Result{Text: text}
	}
	fm, ok := v.(map[string]any)
	if !ok {
		return Result{Text: text}
	}
	return Result{Text: body, Frontmatter: normalizeYAMLMap(fm)}
}

// normalizeYAMLMap recursively converts map[any]any produced by some yaml.v3
// decodes into map[string]any so downstream JSON handling is uniform.
func normalizeYAMLMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = normalizeYAMLValue(v)
	}
	return out
}

func normalizeYAMLValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return normalizeYAMLMap(t)
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[fmt.Sprint(k)] = normalizeYAMLValue(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalizeYAMLValue(e)
		}
		return out
	default:
		return v
	}
}

var jsonTextFields = []string{"content", "body", "text", "snippet", "subject", "description", "summary", "transcript"}

func jsonExtract(content []byte) (Result, error) {
	var v any
	if err := json.Unmarshal(content, &v); err != nil {
		return Result{}, fmt.Errorf("parse json: %w", err)
	}
	obj, isObj := v.(map[string]any)
	var text string
	if isObj {
		for _, field := range jsonTextFields {
			if s, ok := obj[field].(string); ok && s != "" {
				text = s
				break
			}
		}
	}
	if text == "" {
		b, err := json.Marshal(v)
		if err != nil {
			return Result{}, fmt.Errorf("serialize json: %w", err)
		}
		text = string(b)
	}
	res := Result{Text: text}
	if isObj {
		res.Structured = obj
	}
	return res, nil
}

func htmlExtract(content []byte) (Result, error) {
	doc, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return Result{}, fmt.Errorf("parse html: %w", err)
	}
	body := findNode(doc, "body")
	root := body
	if root == nil {
		root = doc
	}
	var sb strings.Builder
	collectText(root, &sb)
	return Result{Text: strings.TrimSpace(sb.String())}, nil
}

func findNode(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findNode(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func collectText(n *html.Node, sb *strings.Builder) {
	if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
		return
	}
	if n.Type == html.TextNode {
		sb.WriteString(n.Data)
		sb.WriteString(" ")
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, sb)
	}
}

func pdfExtract(path string) (Result, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	var pages []string
	total := r.NumPage()
	for i := 1; i <= total; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		pages = append(pages, text)
	}
	return Result{Text: strings.Join(pages, "\n\n")}, nil
}

func docxExtract(path string) (Result, error) {
	r, err := docx.ReadDocxFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("open docx: %w", err)
	}
	defer r.Close()
	return Result{Text: r.Editable().GetContent()}, nil
}
