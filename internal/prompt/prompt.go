// Package prompt fills the note template for a topic and samples a voice
// snippet to be spliced into the generated text later.
package prompt

import (
	"errors"
	"fmt"
	"io/fs"
	"math/rand/v2"
	"os"
	"strings"

	"github.com/aktagon/note-writer/internal/topics"
)

// Rendered is a filled template plus the snippet chosen for this run.
// The snippet is not part of Prompt.
type Rendered struct {
	Prompt  string
	Snippet string
}

// Renderer substitutes topic fields into a template.
type Renderer struct {
	template string
	corpus   *Corpus
}

// NewRenderer creates a renderer. A nil corpus behaves as an empty one.
func NewRenderer(template string, corpus *Corpus) *Renderer {
	if corpus == nil {
		corpus = NewCorpus(nil, nil)
	}
	return &Renderer{template: template, corpus: corpus}
}

// Render fills every known placeholder and draws one snippet.
func (r *Renderer) Render(t topics.Topic) Rendered {
	return Rendered{
		Prompt:  Fill(r.template, t),
		Snippet: r.corpus.Sample(),
	}
}

// Fill replaces {pain_point}, {audience}, {book_title} and {quote}, or their
// Chinese equivalents, with the topic's values. Unknown braces are kept.
func Fill(template string, t topics.Topic) string {
	return strings.NewReplacer(
		"{pain_point}", t.PainPoint,
		"{audience}", t.Audience,
		"{book_title}", t.BookTitle,
		"{quote}", t.Quote,
		"{痛点}", t.PainPoint,
		"{目标人群}", t.Audience,
		"{匹配书籍}", t.BookTitle,
		"{书中金句}", t.Quote,
	).Replace(template)
}

// LoadTemplate reads a template file, returning fallback when path is empty.
func LoadTemplate(path, fallback string) (string, error) {
	if path == "" {
		return fallback, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading prompt template %s: %w", path, err)
	}
	return string(data), nil
}

// Corpus is a flat list of short human-sounding phrases.
type Corpus struct {
	lines []string
	rng   *rand.Rand
}

// NewCorpus keeps the non-empty trimmed lines. rng may be nil.
func NewCorpus(lines []string, rng *rand.Rand) *Corpus {
	kept := make([]string, 0, len(lines))
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			kept = append(kept, l)
		}
	}
	return &Corpus{lines: kept, rng: rng}
}

// LoadCorpus reads one snippet per non-empty line. A missing file is an
// empty corpus.
func LoadCorpus(path string, rng *rand.Rand) (*Corpus, error) {
	if path == "" {
		return NewCorpus(nil, rng), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return NewCorpus(nil, rng), nil
		}
		return nil, fmt.Errorf("reading voice snippets %s: %w", path, err)
	}
	return NewCorpus(strings.Split(string(data), "\n"), rng), nil
}

// Len returns the number of snippets.
func (c *Corpus) Len() int {
	return len(c.lines)
}

// Sample draws one snippet uniformly, or "" when the corpus is empty.
func (c *Corpus) Sample() string {
	if len(c.lines) == 0 {
		return ""
	}
	if c.rng != nil {
		return c.lines[c.rng.IntN(len(c.lines))]
	}
	return c.lines[rand.IntN(len(c.lines))]
}
