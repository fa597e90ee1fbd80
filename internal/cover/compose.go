package cover

import (
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"strings"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/colornames"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"

	"github.com/aktagon/note-writer/internal/logger"
)

const (
	DefaultCanvasColor = "#FFE4E1"
	DefaultTextColor   = "white"
	DefaultStrokeColor = "black"
	DefaultFontSize    = 48
	DefaultStrokeWidth = 2
	DefaultTitleOffset = 300
)

// RenderError is a failure to compose the fallback cover.
type RenderError struct {
	Err error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("cover render failed: %v", e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// ComposerConfig controls the local title card.
type ComposerConfig struct {
	FontPath       string
	BackgroundPath string
	CanvasColor    string
	TextColor      string
	StrokeColor    string
	FontSize       float64
	StrokeWidth    int
	TitleOffset    int
}

// Composer draws the title over a background image or a solid canvas.
type Composer struct {
	cfg  ComposerConfig
	face font.Face
	log  *logger.Logger
}

// NewComposer loads the configured font once. A missing or unreadable font
// falls back to the built-in bitmap face.
func NewComposer(cfg ComposerConfig, log *logger.Logger) *Composer {
	log = logger.OrNop(log)
	if cfg.CanvasColor == "" {
		cfg.CanvasColor = DefaultCanvasColor
	}
	if cfg.TextColor == "" {
		cfg.TextColor = DefaultTextColor
	}
	if cfg.StrokeColor == "" {
		cfg.StrokeColor = DefaultStrokeColor
	}
	if cfg.FontSize <= 0 {
		cfg.FontSize = DefaultFontSize
	}
	if cfg.StrokeWidth < 0 {
		cfg.StrokeWidth = 0
	}
	if cfg.TitleOffset <= 0 {
		cfg.TitleOffset = DefaultTitleOffset
	}

	var face font.Face = basicfont.Face7x13
	if cfg.FontPath != "" {
		f, err := loadFontFace(cfg.FontPath, cfg.FontSize)
		if err != nil {
			log.Warn("cover font unavailable, using built-in face", "font", cfg.FontPath, "error", err)
		} else {
			face = f
		}
	}

	return &Composer{cfg: cfg, face: face, log: log}
}

// Compose renders req.Title onto a req.Width x req.Height image.
func (c *Composer) Compose(req Request) (image.Image, error) {
	req = req.withDefaults()

	fill, err := parseColor(c.cfg.TextColor)
	if err != nil {
		return nil, &RenderError{Err: fmt.Errorf("text color: %w", err)}
	}
	stroke, err := parseColor(c.cfg.StrokeColor)
	if err != nil {
		return nil, &RenderError{Err: fmt.Errorf("stroke color: %w", err)}
	}

	bg, err := c.background(req.Width, req.Height)
	if err != nil {
		return nil, &RenderError{Err: err}
	}

	dc := gg.NewContextForImage(bg)
	dc.SetFontFace(c.face)

	title := req.Title
	if strings.TrimSpace(title) == "" {
		title = DefaultTitle
	}
	cx := float64(req.Width) / 2
	top := float64(c.cfg.TitleOffset)

	// Outline: stamp the text in the stroke color at every offset within
	// the stroke radius, then draw the fill on top.
	sw := c.cfg.StrokeWidth
	dc.SetColor(stroke)
	for dy := -sw; dy <= sw; dy++ {
		for dx := -sw; dx <= sw; dx++ {
			if dx == 0 && dy == 0 || dx*dx+dy*dy > sw*sw {
				continue
			}
			dc.DrawStringAnchored(title, cx+float64(dx), top+float64(dy), 0.5, 1)
		}
	}
	dc.SetColor(fill)
	dc.DrawStringAnchored(title, cx, top, 0.5, 1)

	return dc.Image(), nil
}

func (c *Composer) background(width, height int) (image.Image, error) {
	if c.cfg.BackgroundPath != "" {
		if _, err := os.Stat(c.cfg.BackgroundPath); err == nil {
			img, err := gg.LoadImage(c.cfg.BackgroundPath)
			if err != nil {
				return nil, fmt.Errorf("loading background %s: %w", c.cfg.BackgroundPath, err)
			}
			return Fit(img, width, height), nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("background %s: %w", c.cfg.BackgroundPath, err)
		}
		c.log.Debug("cover background missing, using solid canvas", "path", c.cfg.BackgroundPath)
	}

	canvas, err := parseColor(c.cfg.CanvasColor)
	if err != nil {
		return nil, fmt.Errorf("canvas color: %w", err)
	}
	dc := gg.NewContext(width, height)
	dc.SetColor(canvas)
	dc.Clear()
	return dc.Image(), nil
}

func loadFontFace(fontPath string, size float64) (font.Face, error) {
	fontBytes, err := os.ReadFile(fontPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read font file: %w", err)
	}
	parsedFont, err := truetype.Parse(fontBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse TTF: %w", err)
	}
	return truetype.NewFace(parsedFont, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	}), nil
}

// parseColor accepts CSS color names ("white", "mistyrose") and #RRGGBB.
func parseColor(s string) (color.Color, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if c, ok := colornames.Map[s]; ok {
		return c, nil
	}
	if !strings.HasPrefix(s, "#") {
		return nil, fmt.Errorf("unknown color %q", s)
	}
	raw, err := hex.DecodeString(s[1:])
	if err != nil || len(raw) != 3 {
		return nil, fmt.Errorf("invalid hex color %q", s)
	}
	return color.NRGBA{R: raw[0], G: raw[1], B: raw[2], A: 0xff}, nil
}
