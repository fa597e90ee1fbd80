package cover

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidPNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func rgbaAt(img image.Image, x, y int) color.RGBA {
	return color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
}

func assertSize(t *testing.T, img image.Image, w, h int) {
	t.Helper()
	require.NotNil(t, img)
	assert.Equal(t, w, img.Bounds().Dx())
	assert.Equal(t, h, img.Bounds().Dy())
}

type stubStrategy struct {
	img   image.Image
	err   error
	calls int
}

func (s *stubStrategy) Name() string { return "stub" }

func (s *stubStrategy) TryGenerate(ctx context.Context, req Request) (image.Image, error) {
	s.calls++
	return s.img, s.err
}

func TestTitleFromNote(t *testing.T) {
	tests := []struct {
		name     string
		note     string
		expected string
	}{
		{name: "markdown heading", note: "# My Title\nBody text", expected: "My Title"},
		{name: "deeper heading", note: "### 拖延症救星\n正文", expected: "拖延症救星"},
		{name: "leading blank lines", note: "\n\n  ## Spaced  \nbody", expected: "Spaced"},
		{name: "plain first line", note: "Just a line\nmore", expected: "Just a line"},
		{name: "empty note", note: "", expected: DefaultTitle},
		{name: "only hashes", note: "###\nbody", expected: DefaultTitle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, TitleFromNote(tt.note))
		})
	}
}

func TestSizeTier(t *testing.T) {
	assert.Equal(t, "2K", SizeTier(1080, 1440))
	assert.Equal(t, "2K", SizeTier(1000, 10))
	assert.Equal(t, "2K", SizeTier(10, 1000))
	assert.Equal(t, "1K", SizeTier(999, 999))
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt("My Title", "《原子习惯》")
	assert.Contains(t, p, "My Title")
	assert.Contains(t, p, "《原子习惯》")
	assert.Contains(t, p, "1080x1440")

	assert.Contains(t, BuildPrompt("T", "  "), "书籍推荐")
}

func TestComposer_SolidCanvas(t *testing.T) {
	c := NewComposer(ComposerConfig{}, nil)

	img, err := c.Compose(Request{Title: "Hi"})
	require.NoError(t, err)
	assertSize(t, img, DefaultWidth, DefaultHeight)

	assert.Equal(t, color.RGBA{R: 0xff, G: 0xe4, B: 0xe1, A: 0xff}, rgbaAt(img, 0, 0))
	assert.Equal(t, color.RGBA{R: 0xff, G: 0xe4, B: 0xe1, A: 0xff}, rgbaAt(img, 1079, 1439))
}

func TestComposer_DrawsTitleNearOffset(t *testing.T) {
	c := NewComposer(ComposerConfig{}, nil)

	img, err := c.Compose(Request{Title: "Hello"})
	require.NoError(t, err)

	canvas := rgbaAt(img, 0, 0)
	changed := 0
	for y := 295; y < 325; y++ {
		for x := 500; x < 580; x++ {
			if rgbaAt(img, x, y) != canvas {
				changed++
			}
		}
	}
	assert.Positive(t, changed, "title should be drawn around y=300")

	for y := 0; y < 290; y += 7 {
		for x := 0; x < 1080; x += 7 {
			require.Equal(t, canvas, rgbaAt(img, x, y), "nothing above the title")
		}
	}
}

func TestComposer_CustomSize(t *testing.T) {
	c := NewComposer(ComposerConfig{}, nil)
	img, err := c.Compose(Request{Title: "x", Width: 300, Height: 400})
	require.NoError(t, err)
	assertSize(t, img, 300, 400)
}

func TestComposer_Background(t *testing.T) {
	dir := t.TempDir()
	bg := filepath.Join(dir, "bg.png")
	require.NoError(t, os.WriteFile(bg, solidPNG(t, 40, 30, color.RGBA{R: 200, A: 255}), 0644))

	c := NewComposer(ComposerConfig{BackgroundPath: bg}, nil)
	img, err := c.Compose(Request{Title: "T"})
	require.NoError(t, err)
	assertSize(t, img, DefaultWidth, DefaultHeight)

	px := rgbaAt(img, 540, 1200)
	assert.InDelta(t, 200, int(px.R), 2)
	assert.InDelta(t, 0, int(px.G), 2)
}

func TestComposer_MissingBackgroundUsesCanvas(t *testing.T) {
	c := NewComposer(ComposerConfig{
		BackgroundPath: filepath.Join(t.TempDir(), "absent.jpg"),
		CanvasColor:    "#112233",
	}, nil)

	img, err := c.Compose(Request{Title: "T"})
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{R: 0x11, G: 0x22, B: 0x33, A: 0xff}, rgbaAt(img, 5, 5))
}

func TestComposer_MissingFontFallsBack(t *testing.T) {
	c := NewComposer(ComposerConfig{FontPath: filepath.Join(t.TempDir(), "none.ttf")}, nil)
	img, err := c.Compose(Request{Title: "T"})
	require.NoError(t, err)
	assertSize(t, img, DefaultWidth, DefaultHeight)
}

func TestComposer_RenderErrors(t *testing.T) {
	dir := t.TempDir()
	corrupt := filepath.Join(dir, "corrupt.jpg")
	require.NoError(t, os.WriteFile(corrupt, []byte("not an image"), 0644))

	tests := []struct {
		name string
		cfg  ComposerConfig
	}{
		{name: "corrupt background", cfg: ComposerConfig{BackgroundPath: corrupt}},
		{name: "bad text color", cfg: ComposerConfig{TextColor: "notacolor"}},
		{name: "bad stroke color", cfg: ComposerConfig{StrokeColor: "#12"}},
		{name: "bad canvas color", cfg: ComposerConfig{CanvasColor: "#GGGGGG"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewComposer(tt.cfg, nil).Compose(Request{Title: "T"})
			var renderErr *RenderError
			assert.ErrorAs(t, err, &renderErr)
		})
	}
}

func TestParseColor(t *testing.T) {
	c, err := parseColor("White")
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, color.RGBAModel.Convert(c))

	c, err = parseColor("#FFE4E1")
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{R: 0xff, G: 0xe4, B: 0xe1, A: 0xff}, color.RGBAModel.Convert(c))
}

func TestGenerator_FallsBackToComposer(t *testing.T) {
	failing := &stubStrategy{err: errors.New("unavailable")}
	g := NewGenerator(NewComposer(ComposerConfig{}, nil), nil)
	g.AddStrategy(failing)

	img, err := g.Generate(context.Background(), Request{Title: "T"})
	require.NoError(t, err)
	assertSize(t, img, DefaultWidth, DefaultHeight)
	assert.Equal(t, 1, failing.calls)
}

func TestGenerator_UsesFirstAvailableStrategy(t *testing.T) {
	small := image.NewRGBA(image.Rect(0, 0, 10, 12))
	first := &stubStrategy{err: errors.New("down")}
	second := &stubStrategy{img: small}
	third := &stubStrategy{img: small}

	g := NewGenerator(NewComposer(ComposerConfig{}, nil), nil)
	g.AddStrategy(first)
	g.AddStrategy(second)
	g.AddStrategy(third)

	img, err := g.Generate(context.Background(), Request{Title: "T", Width: 60, Height: 80})
	require.NoError(t, err)
	assertSize(t, img, 60, 80)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)
	assert.Equal(t, 0, third.calls)
}

func TestGenerator_ComposerErrorIsReturned(t *testing.T) {
	g := NewGenerator(NewComposer(ComposerConfig{TextColor: "nope"}, nil), nil)
	_, err := g.Generate(context.Background(), Request{Title: "T"})
	var renderErr *RenderError
	assert.ErrorAs(t, err, &renderErr)
}

func TestRemoteStrategy_NoCredentialMakesNoCall(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	s := NewRemoteStrategy(RemoteConfig{BaseURL: server.URL})
	_, err := s.TryGenerate(context.Background(), Request{Prompt: "p"})
	assert.ErrorIs(t, err, ErrNoCredential)
	assert.Equal(t, int32(0), calls.Load())
}

func TestRemoteStrategy_GeneratesAndDownloads(t *testing.T) {
	pngBytes := solidPNG(t, 100, 120, color.RGBA{G: 180, A: 255})
	var payload map[string]any

	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/images/generations", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &payload)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"created": 1,
			"data":    []map[string]any{{"url": server.URL + "/files/cover.png"}},
		})
	})
	mux.HandleFunc("/files/cover.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(pngBytes)
	})

	s := NewRemoteStrategy(RemoteConfig{APIKey: "k", BaseURL: server.URL})
	img, err := s.TryGenerate(context.Background(), Request{Prompt: "a cover", Width: 1080, Height: 1440})
	require.NoError(t, err)
	assertSize(t, img, 1080, 1440)

	assert.Equal(t, "a cover", payload["prompt"])
	assert.Equal(t, DefaultRemoteModel, payload["model"])
	assert.Equal(t, "2K", payload["size"])
	assert.Equal(t, "url", payload["response_format"])
	assert.Equal(t, false, payload["stream"])
	assert.Equal(t, true, payload["watermark"])
	assert.Equal(t, "disabled", payload["sequential_image_generation"])
}

func TestRemoteStrategy_Failures(t *testing.T) {
	tests := []struct {
		name    string
		api     http.HandlerFunc
		wantErr func(t *testing.T, err error)
	}{
		{
			name: "api error",
			api: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"error":{"message":"boom"}}`))
			},
		},
		{
			name: "no data",
			api: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"created":1,"data":[]}`))
			},
		},
		{
			name: "download 404",
			api: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"created":1,"data":[{"url":"http://` + r.Host + `/missing.png"}]}`))
			},
			wantErr: func(t *testing.T, err error) {
				var httpErr *HTTPError
				require.ErrorAs(t, err, &httpErr)
				assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
			},
		},
		{
			name: "undecodable download",
			api: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"created":1,"data":[{"url":"http://` + r.Host + `/garbage"}]}`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var apiCalls atomic.Int32
			mux := http.NewServeMux()
			mux.HandleFunc("/images/generations", func(w http.ResponseWriter, r *http.Request) {
				apiCalls.Add(1)
				tt.api(w, r)
			})
			mux.HandleFunc("/garbage", func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("definitely not an image"))
			})
			server := httptest.NewServer(mux)
			defer server.Close()

			s := NewRemoteStrategy(RemoteConfig{APIKey: "k", BaseURL: server.URL})
			_, err := s.TryGenerate(context.Background(), Request{Prompt: "p"})
			require.Error(t, err)
			assert.Equal(t, int32(1), apiCalls.Load(), "must not retry")
			if tt.wantErr != nil {
				tt.wantErr(t, err)
			}
		})
	}
}
