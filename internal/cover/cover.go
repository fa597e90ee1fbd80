// Package cover produces the cover image for a note: a remote image model is
// tried first and a locally composed title card is the last resort.
package cover

import (
	"context"
	"fmt"
	"image"
	"strings"

	"golang.org/x/image/draw"

	"github.com/aktagon/note-writer/internal/logger"
)

const (
	DefaultWidth  = 1080
	DefaultHeight = 1440

	// DefaultTitle is used when a note has no usable first line.
	DefaultTitle = "笔记标题"
)

// Request describes the cover to produce.
type Request struct {
	Prompt string
	Title  string
	Width  int
	Height int
}

func (r Request) withDefaults() Request {
	if r.Width <= 0 {
		r.Width = DefaultWidth
	}
	if r.Height <= 0 {
		r.Height = DefaultHeight
	}
	return r
}

// Strategy is one way of producing a cover. Any error means the strategy is
// unavailable for this request and the next one should be tried.
type Strategy interface {
	Name() string
	TryGenerate(ctx context.Context, req Request) (image.Image, error)
}

// Generator runs strategies in order and ends with the composer.
type Generator struct {
	strategies []Strategy
	composer   *Composer
	log        *logger.Logger
}

// NewGenerator creates a generator whose final step is composer.
func NewGenerator(composer *Composer, log *logger.Logger) *Generator {
	return &Generator{
		composer: composer,
		log:      logger.OrNop(log),
	}
}

// AddStrategy appends a strategy to the chain (most preferred first).
func (g *Generator) AddStrategy(s Strategy) {
	g.strategies = append(g.strategies, s)
}

// Generate returns an image of exactly req.Width x req.Height. Strategy
// failures are logged and absorbed; only a composer failure is returned.
func (g *Generator) Generate(ctx context.Context, req Request) (image.Image, error) {
	req = req.withDefaults()

	for _, s := range g.strategies {
		g.log.Info("→ Generating cover", "strategy", s.Name())
		img, err := s.TryGenerate(ctx, req)
		if err != nil {
			g.log.Warn("cover strategy unavailable", "strategy", s.Name(), "error", err)
			continue
		}
		g.log.Info("✓ Cover generated", "strategy", s.Name())
		return Fit(img, req.Width, req.Height), nil
	}

	g.log.Info("→ Composing fallback cover", "title", req.Title)
	img, err := g.composer.Compose(req)
	if err != nil {
		return nil, err
	}
	return img, nil
}

// Fit resizes img to exactly width x height with Catmull-Rom resampling.
// Images already at the target size are returned as they are.
func Fit(img image.Image, width, height int) image.Image {
	b := img.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

// TitleFromNote extracts a cover title from note text: the first line of the
// trimmed text with leading '#' characters removed.
func TitleFromNote(text string) string {
	text = strings.TrimSpace(text)
	first, _, _ := strings.Cut(text, "\n")
	title := strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(first), "#"))
	if title == "" {
		return DefaultTitle
	}
	return title
}

// BuildPrompt builds the image-model prompt for a note title and book.
func BuildPrompt(title, book string) string {
	if book = strings.TrimSpace(book); book == "" {
		book = "书籍推荐"
	}
	return fmt.Sprintf("请为小红书笔记生成一张封面图。笔记标题是'%s'，内容关于%s。"+
		"封面图应该符合小红书风格，色彩明亮，适合3:4竖屏比例（%dx%d）。",
		title, book, DefaultWidth, DefaultHeight)
}

// SizeTier maps target dimensions to the image API size tier.
func SizeTier(width, height int) string {
	if width >= 1000 || height >= 1000 {
		return "2K"
	}
	return "1K"
}
