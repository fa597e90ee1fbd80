package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/aktagon/note-writer/internal/config"
	"github.com/aktagon/note-writer/internal/prompt"
)

const defaultConfigFile = config.ConfigName + ".yaml"

// ConfigOverrides allows overriding configured data files from the command line
type ConfigOverrides struct {
	TemplatePath *string
	SnippetsPath *string
}

// templatePath returns the override, else the configured path. Empty means
// the embedded template.
func (o *ConfigOverrides) templatePath(s *config.Settings) string {
	if o != nil && o.TemplatePath != nil {
		return *o.TemplatePath
	}
	return s.Data.Template
}

func (o *ConfigOverrides) snippetsPath(s *config.Settings) string {
	if o != nil && o.SnippetsPath != nil {
		return *o.SnippetsPath
	}
	return s.Data.Snippets
}

// loadTemplate reads the prompt template (from override file, config or embedded)
func loadTemplate(s *config.Settings, o *ConfigOverrides) (string, error) {
	return prompt.LoadTemplate(o.templatePath(s), config.DefaultTemplate())
}

// ensureConfigExists writes the default config file, voice snippets and an
// empty topic dataset when they don't exist yet. It returns
// the files it created.
func ensureConfigExists(configPath string, s *config.Settings) ([]string, error) {
	var created []string

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create config directory: %w", err)
		}
		if err := config.WriteDefault(configPath); err != nil {
			return nil, fmt.Errorf("failed to write default settings: %w", err)
		}
		created = append(created, configPath)
	}

	files := []struct {
		path    string
		content string
	}{
		{path: s.Data.Snippets, content: config.DefaultSnippets()},
		{path: s.Data.Topics, content: "id,pain_point,audience,book_title,quote,status\n"},
	}
	for _, f := range files {
		if f.path == "" {
			continue
		}
		if _, err := os.Stat(f.path); !os.IsNotExist(err) {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
			return created, fmt.Errorf("failed to create directory for %s: %w", f.path, err)
		}
		if err := os.WriteFile(f.path, []byte(f.content), 0644); err != nil {
			return created, fmt.Errorf("failed to write %s: %w", f.path, err)
		}
		created = append(created, f.path)
	}

	return created, nil
}
