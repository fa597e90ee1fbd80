package cover

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	_ "golang.org/x/image/webp"
)

const (
	RemoteName             = "seedream"
	DefaultRemoteBaseURL   = "https://ark.cn-beijing.volces.com/api/v3"
	DefaultRemoteModel     = "doubao-seedream-4-5-251128"
	DefaultRemoteTimeout   = 60 * time.Second
	DefaultDownloadTimeout = 30 * time.Second
)

// ErrNoCredential is returned without any network call when the remote
// strategy has no API key.
var ErrNoCredential = errors.New("no image API key configured")

// HTTPError is a non-200 response while downloading a generated image.
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d downloading %s", e.StatusCode, e.URL)
}

// RemoteConfig configures the image generation endpoint.
type RemoteConfig struct {
	APIKey          string
	BaseURL         string
	Model           string
	Timeout         time.Duration
	DownloadTimeout time.Duration
	HTTPClient      *http.Client // Optional (tests)
}

// RemoteStrategy generates covers with an OpenAI-compatible images endpoint
// (Volcengine Ark Seedream by default).
type RemoteStrategy struct {
	apiKey   string
	model    string
	timeout  time.Duration
	client   openai.Client
	download *http.Client
}

// NewRemoteStrategy creates the strategy. It makes exactly one attempt per
// request.
func NewRemoteStrategy(cfg RemoteConfig) *RemoteStrategy {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultRemoteBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultRemoteModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultRemoteTimeout
	}
	if cfg.DownloadTimeout == 0 {
		cfg.DownloadTimeout = DefaultDownloadTimeout
	}

	apiClient := cfg.HTTPClient
	if apiClient == nil {
		apiClient = &http.Client{Timeout: cfg.Timeout}
	}
	download := &http.Client{Timeout: cfg.DownloadTimeout}
	if cfg.HTTPClient != nil {
		download.Transport = cfg.HTTPClient.Transport
	}

	return &RemoteStrategy{
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		timeout: cfg.Timeout,
		client: openai.NewClient(
			option.WithAPIKey(cfg.APIKey),
			option.WithBaseURL(cfg.BaseURL),
			option.WithHTTPClient(apiClient),
			option.WithMaxRetries(0),
		),
		download: download,
	}
}

func (s *RemoteStrategy) Name() string {
	return RemoteName
}

// TryGenerate requests one image and downloads it.
func (s *RemoteStrategy) TryGenerate(ctx context.Context, req Request) (image.Image, error) {
	if s.apiKey == "" {
		return nil, ErrNoCredential
	}
	req = req.withDefaults()

	url, err := s.requestImage(ctx, req)
	if err != nil {
		return nil, err
	}
	img, err := s.fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	return Fit(img, req.Width, req.Height), nil
}

func (s *RemoteStrategy) requestImage(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt:         req.Prompt,
		Model:          openai.ImageModel(s.model),
		Size:           openai.ImageGenerateParamsSize(SizeTier(req.Width, req.Height)),
		ResponseFormat: openai.ImageGenerateParamsResponseFormatURL,
	},
		option.WithJSONSet("stream", false),
		option.WithJSONSet("watermark", true),
		option.WithJSONSet("sequential_image_generation", "disabled"),
	)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("image API error (status %d): %w", apiErr.StatusCode, err)
		}
		return "", fmt.Errorf("image request: %w", err)
	}
	if len(resp.Data) == 0 {
		return "", fmt.Errorf("image response has no data")
	}
	if resp.Data[0].URL == "" {
		return "", fmt.Errorf("image response has no URL")
	}
	return resp.Data[0].URL, nil
}

func (s *RemoteStrategy) fetch(ctx context.Context, url string) (image.Image, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building download request: %w", err)
	}
	resp, err := s.download.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("downloading %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPError{StatusCode: resp.StatusCode, URL: url}
	}

	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decoding downloaded image: %w", err)
	}
	return img, nil
}
