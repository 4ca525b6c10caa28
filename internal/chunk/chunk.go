// Package chunk splits extracted text into the contiguous substrings that
// become vector points, adapted from the corpus's text-splitter family:
// a markdown-aware splitter for structured documents and a recursive
// character splitter (paragraph, then sentence, then fixed-width fallback)
// for everything else.
package chunk

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Splitter turns one document's text into an ordered slice of chunk bodies.
type Splitter interface {
	Split(text string) []string
}

// Config holds the two knobs the processor exposes: chunk size and overlap,
// both measured in characters (runes).
type Config struct {
	Size    int
	Overlap int
}

func (c Config) normalized() Config {
	size := c.Size
	if size <= 0 {
		size = 1000
	}
	overlap := c.Overlap
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size - 1
	}
	return Config{Size: size, Overlap: overlap}
}

// ForExtension selects a markdown-aware splitter for ".md"/".markdown" and a
// recursive character splitter for everything else, per the processor's
// chunker-selection rule.
func ForExtension(ext string, cfg Config) Splitter {
	switch strings.ToLower(ext) {
	case ".md", ".markdown":
		return NewMarkdownSplitter(cfg)
	default:
		return NewRecursiveCharacterSplitter(cfg)
	}
}

var headingRe = regexp.MustCompile(`(?m)^(#{1,6})\s+.+$`)

// MarkdownSplitter breaks text at heading and paragraph boundaries,
// re-chunking any section that still exceeds Size using the fixed-width
// splitter with overlap.
type MarkdownSplitter struct {
	cfg Config
}

func NewMarkdownSplitter(cfg Config) *MarkdownSplitter {
	return &MarkdownSplitter{cfg: cfg.normalized()}
}

func (m *MarkdownSplitter) Split(text string) []string {
	text = normalizeNewlines(text)
	if strings.TrimSpace(text) == "" {
		return nil
	}

	sections := splitOnHeadings(text)
	var chunks []string
	for _, sec := range sections {
		paras := splitOnBlankLines(sec)
		var buf strings.Builder
		flush := func() {
			s := strings.TrimSpace(buf.String())
			if s != "" {
				chunks = append(chunks, fitToSize(s, m.cfg)...)
			}
			buf.Reset()
		}
		for _, p := range paras {
			if buf.Len() > 0 && runeLen(buf.String())+runeLen(p) > m.cfg.Size {
				flush()
			}
			if buf.Len() > 0 {
				buf.WriteString("\n\n")
			}
			buf.WriteString(p)
		}
		flush()
	}
	return chunks
}

// splitOnHeadings groups text into sections starting at each heading line;
// text before the first heading is its own leading section.
func splitOnHeadings(text string) []string {
	idx := headingRe.FindAllStringIndex(text, -1)
	if len(idx) == 0 {
		return []string{text}
	}
	var sections []string
	if idx[0][0] > 0 {
		sections = append(sections, text[:idx[0][0]])
	}
	for i, loc := range idx {
		end := len(text)
		if i+1 < len(idx) {
			end = idx[i+1][0]
		}
		sections = append(sections, text[loc[0]:end])
	}
	return sections
}

func splitOnBlankLines(text string) []string {
	raw := regexp.MustCompile(`\n\s*\n`).Split(text, -1)
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		if strings.TrimSpace(r) != "" {
			out = append(out, strings.TrimSpace(r))
		}
	}
	return out
}

// RecursiveCharacterSplitter layers paragraph, then sentence, then
// fixed-width-with-overlap splitting so most chunks land on natural
// boundaries while still respecting Size.
type RecursiveCharacterSplitter struct {
	cfg Config
}

func NewRecursiveCharacterSplitter(cfg Config) *RecursiveCharacterSplitter {
	return &RecursiveCharacterSplitter{cfg: cfg.normalized()}
}

var sentenceRe = regexp.MustCompile(`(?s)(.*?[.!?])(\s+|$)`)

func (r *RecursiveCharacterSplitter) Split(text string) []string {
	text = normalizeNewlines(text)
	if strings.TrimSpace(text) == "" {
		return nil
	}
	paras := splitOnBlankLines(text)
	if len(paras) == 0 {
		paras = []string{text}
	}

	var chunks []string
	var buf strings.Builder
	flush := func() {
		s := strings.TrimSpace(buf.String())
		if s != "" {
			chunks = append(chunks, fitToSize(s, r.cfg)...)
		}
		buf.Reset()
	}
	for _, p := range paras {
		sentences := splitSentences(p)
		for _, s := range sentences {
			if buf.Len() > 0 && runeLen(buf.String())+runeLen(s) > r.cfg.Size {
				flush()
			}
			if buf.Len() > 0 {
				buf.WriteString(" ")
			}
			buf.WriteString(s)
		}
	}
	flush()
	return chunks
}

func splitSentences(p string) []string {
	matches := sentenceRe.FindAllStringSubmatch(p, -1)
	if len(matches) == 0 {
		return []string{p}
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		s := strings.TrimSpace(m[1])
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// fitToSize re-chunks s with a fixed rune window and overlap whenever s
// still exceeds cfg.Size after boundary-aware grouping.
func fitToSize(s string, cfg Config) []string {
	if runeLen(s) <= cfg.Size {
		return []string{s}
	}
	runes := []rune(s)
	step := cfg.Size - cfg.Overlap
	if step <= 0 {
		step = 1
	}
	var out []string
	for start := 0; start < len(runes); start += step {
		end := start + cfg.Size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return out
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }

func normalizeNewlines(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}
