// Package config loads note-writer settings from embedded defaults, an
// optional YAML file, .env and NOTE_WRITER_* environment variables.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	EnvPrefix      = "NOTE_WRITER"
	ConfigName     = "note-writer"
	HomeConfigDir  = "$HOME/.note-writer"
	ProviderOpenAI = "openai"
	ProviderClaude = "anthropic"
)

//go:embed defaults/settings.yaml
var defaultSettingsYAML []byte

//go:embed defaults/prompt_template.txt
var defaultTemplate string

//go:embed defaults/personal_snippets.txt
var defaultSnippets string

// DefaultTemplate returns the embedded prompt template.
func DefaultTemplate() string {
	return defaultTemplate
}

// DefaultSnippets returns the embedded voice snippet corpus.
func DefaultSnippets() string {
	return defaultSnippets
}

type Data struct {
	Topics   string `mapstructure:"topics" yaml:"topics"`
	Snippets string `mapstructure:"snippets" yaml:"snippets"`
	Template string `mapstructure:"template" yaml:"template"`
}

type Output struct {
	Directory string `mapstructure:"directory" yaml:"directory"`
}

type TextGeneration struct {
	Provider       string  `mapstructure:"provider" yaml:"provider"`
	Endpoint       string  `mapstructure:"endpoint" yaml:"endpoint"`
	APIKey         string  `mapstructure:"api_key" yaml:"api_key"`
	Model          string  `mapstructure:"model" yaml:"model"`
	Temperature    float64 `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens      int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

func (t TextGeneration) Timeout() time.Duration {
	return time.Duration(t.TimeoutSeconds) * time.Second
}

// Credential is the API key, or "" when it is unset or still an unresolved
// ${VAR} reference.
func (t TextGeneration) Credential() string {
	return credential(t.APIKey)
}

type ImageGeneration struct {
	Endpoint               string `mapstructure:"endpoint" yaml:"endpoint"`
	APIKey                 string `mapstructure:"api_key" yaml:"api_key"`
	Model                  string `mapstructure:"model" yaml:"model"`
	TimeoutSeconds         int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	DownloadTimeoutSeconds int    `mapstructure:"download_timeout_seconds" yaml:"download_timeout_seconds"`
}

func (i ImageGeneration) Timeout() time.Duration {
	return time.Duration(i.TimeoutSeconds) * time.Second
}

func (i ImageGeneration) DownloadTimeout() time.Duration {
	return time.Duration(i.DownloadTimeoutSeconds) * time.Second
}

// Credential is the API key, or "" when it is unset or unresolved. The remote
// cover strategy is skipped without one.
func (i ImageGeneration) Credential() string {
	return credential(i.APIKey)
}

func credential(key string) string {
	key = strings.TrimSpace(key)
	if Unresolved(key) {
		return ""
	}
	return key
}

type Cover struct {
	Width       int     `mapstructure:"width" yaml:"width"`
	Height      int     `mapstructure:"height" yaml:"height"`
	Font        string  `mapstructure:"font" yaml:"font"`
	Background  string  `mapstructure:"background" yaml:"background"`
	CanvasColor string  `mapstructure:"canvas_color" yaml:"canvas_color"`
	TextColor   string  `mapstructure:"text_color" yaml:"text_color"`
	StrokeColor string  `mapstructure:"stroke_color" yaml:"stroke_color"`
	FontSize    float64 `mapstructure:"font_size" yaml:"font_size"`
	StrokeWidth int     `mapstructure:"stroke_width" yaml:"stroke_width"`
	TitleOffset int     `mapstructure:"title_offset" yaml:"title_offset"`
}

type Voice struct {
	Marker string `mapstructure:"marker" yaml:"marker"`
}

type App struct {
	Host    string `mapstructure:"host" yaml:"host"`
	Port    int    `mapstructure:"port" yaml:"port"`
	LogMode string `mapstructure:"log_mode" yaml:"log_mode"`
}

// Addr is host:port for the HTTP server.
func (a App) Addr() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

// Settings is an immutable snapshot of the configuration. Components receive
// it (or the parts they need) by argument.
type Settings struct {
	Data            Data            `mapstructure:"data" yaml:"data"`
	Output          Output          `mapstructure:"output" yaml:"output"`
	TextGeneration  TextGeneration  `mapstructure:"text_generation" yaml:"text_generation"`
	ImageGeneration ImageGeneration `mapstructure:"image_generation" yaml:"image_generation"`
	Cover           Cover           `mapstructure:"cover" yaml:"cover"`
	Voice           Voice           `mapstructure:"voice" yaml:"voice"`
	App             App             `mapstructure:"app" yaml:"app"`

	// ConfigFile is the file the settings were read from, empty when only
	// defaults and environment were used.
	ConfigFile string `mapstructure:"-" yaml:"-"`
}

// Default returns the embedded default settings without environment
// resolution.
func Default() (*Settings, error) {
	var s Settings
	if err := yaml.Unmarshal(defaultSettingsYAML, &s); err != nil {
		return nil, fmt.Errorf("failed to parse default settings: %w", err)
	}
	return &s, nil
}

// Load reads settings. path may be empty, in which case note-writer.yaml is
// looked up in the working directory and $HOME/.note-writer; a missing file
// there is not an error.
func Load(path string) (*Settings, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}
	v, err := newViper(path)
	if err != nil {
		return nil, err
	}
	return decode(v)
}

func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func newViper(path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if err := setDefaults(v); err != nil {
		return nil, err
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(ConfigName)
		v.AddConfigPath(".")
		v.AddConfigPath(HomeConfigDir)
	}

	if err := v.MergeInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return v, nil
}

// setDefaults registers every embedded key as a viper default so that a
// reloaded file that omits keys still falls back to them.
func setDefaults(v *viper.Viper) error {
	var tree map[string]any
	if err := yaml.Unmarshal(defaultSettingsYAML, &tree); err != nil {
		return fmt.Errorf("failed to parse default settings: %w", err)
	}
	var walk func(prefix string, m map[string]any)
	walk = func(prefix string, m map[string]any) {
		for k, val := range m {
			key := prefix + k
			if child, ok := val.(map[string]any); ok {
				walk(key+".", child)
				continue
			}
			v.SetDefault(key, val)
		}
	}
	walk("", tree)
	return nil
}

func decode(v *viper.Viper) (*Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	s.ConfigFile = v.ConfigFileUsed()
	s.resolveEnv()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Settings) resolveEnv() {
	for _, p := range []*string{
		&s.Data.Topics,
		&s.Data.Snippets,
		&s.Data.Template,
		&s.Output.Directory,
		&s.TextGeneration.Endpoint,
		&s.TextGeneration.APIKey,
		&s.TextGeneration.Model,
		&s.ImageGeneration.Endpoint,
		&s.ImageGeneration.APIKey,
		&s.ImageGeneration.Model,
		&s.Cover.Font,
		&s.Cover.Background,
	} {
		*p = ResolveEnvVars(*p)
	}
}

// Validate checks values that would otherwise fail deep inside a run.
func (s *Settings) Validate() error {
	switch s.TextGeneration.Provider {
	case ProviderOpenAI, ProviderClaude:
	default:
		return fmt.Errorf("text_generation.provider must be %q or %q, got %q",
			ProviderOpenAI, ProviderClaude, s.TextGeneration.Provider)
	}
	if s.Data.Topics == "" {
		return fmt.Errorf("data.topics is required")
	}
	if s.Output.Directory == "" {
		return fmt.Errorf("output.directory is required")
	}
	if s.Cover.Width <= 0 || s.Cover.Height <= 0 {
		return fmt.Errorf("cover size must be positive, got %dx%d", s.Cover.Width, s.Cover.Height)
	}
	if s.TextGeneration.TimeoutSeconds <= 0 || s.ImageGeneration.TimeoutSeconds <= 0 ||
		s.ImageGeneration.DownloadTimeoutSeconds <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	return nil
}

var envRef = regexp.MustCompile(`\$\{(\w+)\}`)

// ResolveEnvVars expands ${VAR} references. References to unset variables
// are left as they are.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	return envRef.ReplaceAllStringFunc(value, func(match string) string {
		if v, ok := os.LookupEnv(match[2 : len(match)-1]); ok {
			return v
		}
		return match
	})
}

// Unresolved reports whether value still contains a ${VAR} reference.
func Unresolved(value string) bool {
	return envRef.MatchString(value)
}

// WriteDefault writes the default settings to path.
func WriteDefault(path string) error {
	s, err := Default()
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# note-writer configuration
# API keys use ${ENV_VAR} syntax; values may also come from .env or
# NOTE_WRITER_<SECTION>_<KEY> environment variables.

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}
