// Package textgen calls a chat-completion provider and post-processes the
// completion into note text.
package textgen

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"

	"github.com/aktagon/note-writer/internal/logger"
)

// DefaultMarker is the phrase the voice snippet is spliced in front of.
const DefaultMarker = "really saved me!"

// Client sends one prompt and returns the first completion's text.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Name() string
}

// Error is a failed text generation. It carries the provider and cause.
type Error struct {
	Provider string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("text generation failed (%s): %v", e.Provider, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Generator turns a rendered prompt into note text.
type Generator struct {
	client    Client
	marker    string
	converter *md.Converter
	log       *logger.Logger
}

// NewGenerator wraps client. An empty marker uses DefaultMarker.
func NewGenerator(client Client, marker string, log *logger.Logger) *Generator {
	if marker == "" {
		marker = DefaultMarker
	}
	return &Generator{
		client:    client,
		marker:    marker,
		converter: md.NewConverter("", true, nil),
		log:       logger.OrNop(log),
	}
}

// Generate issues a single completion call, normalizes HTML output to
// Markdown and injects snippet before the marker phrase.
func (g *Generator) Generate(ctx context.Context, prompt, snippet string) (string, error) {
	g.log.Info("→ Writing note", "provider", g.client.Name())
	text, err := g.client.Complete(ctx, prompt)
	if err != nil {
		return "", &Error{Provider: g.client.Name(), Err: err}
	}

	text = g.normalize(text)
	injected := InjectVoice(text, snippet, g.marker)
	if snippet != "" && injected == text {
		g.log.Debug("marker phrase absent, voice snippet dropped", "marker", g.marker)
	}

	g.log.Info("✓ Writing completed", "chars", len([]rune(injected)))
	return injected, nil
}

var htmlBlockTag = regexp.MustCompile(`(?i)<(p|h[1-6]|div|ul|ol|li|br|blockquote|strong|em)(\s[^>]*)?/?>`)

func (g *Generator) normalize(text string) string {
	if !htmlBlockTag.MatchString(text) {
		return text
	}
	converted, err := g.converter.ConvertString(text)
	if err != nil {
		g.log.Warn("HTML completion could not be converted, keeping raw text", "error", err)
		return text
	}
	return converted
}

// InjectVoice inserts snippet and a space immediately before the first
// occurrence of marker. Text is returned unchanged when either is empty or
// the marker does not occur.
func InjectVoice(text, snippet, marker string) string {
	if snippet == "" || marker == "" {
		return text
	}
	i := strings.Index(text, marker)
	if i < 0 {
		return text
	}
	return text[:i] + snippet + " " + text[i:]
}
