package main

import (
	"context"
	"fmt"

	"github.com/aktagon/note-writer/internal/artifact"
	"github.com/aktagon/note-writer/internal/config"
	"github.com/aktagon/note-writer/internal/cover"
	"github.com/aktagon/note-writer/internal/logger"
	"github.com/aktagon/note-writer/internal/pipeline"
	"github.com/aktagon/note-writer/internal/prompt"
	"github.com/aktagon/note-writer/internal/textgen"
	"github.com/aktagon/note-writer/internal/topics"
)

// NoteProcessor wires the pipeline for one settings snapshot.
type NoteProcessor struct {
	orchestrator *pipeline.Orchestrator
}

// NewNoteProcessor builds every pipeline component from settings.
func NewNoteProcessor(s *config.Settings, overrides *ConfigOverrides, log *logger.Logger) (*NoteProcessor, error) {
	log = logger.OrNop(log)

	client, err := newTextClient(s.TextGeneration, log)
	if err != nil {
		return nil, err
	}

	tmpl, err := loadTemplate(s, overrides)
	if err != nil {
		return nil, err
	}
	corpus, err := prompt.LoadCorpus(overrides.snippetsPath(s), nil)
	if err != nil {
		return nil, err
	}
	if corpus.Len() == 0 {
		log.Warn("voice snippet corpus is empty, notes will not be personalized", "path", overrides.snippetsPath(s))
	}

	store := topics.NewStore(s.Data.Topics)
	orchestrator := pipeline.New(
		pipeline.Config{
			OutputDir:   s.Output.Directory,
			CoverWidth:  s.Cover.Width,
			CoverHeight: s.Cover.Height,
		},
		store,
		prompt.NewRenderer(tmpl, corpus),
		textgen.NewGenerator(client, s.Voice.Marker, log),
		newCoverGenerator(s, log),
		artifact.New(log),
		log,
	)

	return &NoteProcessor{orchestrator: orchestrator}, nil
}

func newTextClient(tg config.TextGeneration, log *logger.Logger) (textgen.Client, error) {
	log = logger.OrNop(log)
	key := tg.Credential()
	switch tg.Provider {
	case config.ProviderClaude:
		return textgen.NewAnthropicClient(textgen.AnthropicConfig{
			APIKey:      key,
			Model:       tg.Model,
			Temperature: tg.Temperature,
			MaxTokens:   tg.MaxTokens,
			Timeout:     tg.Timeout(),
		})
	case config.ProviderOpenAI:
		if key == "" {
			log.Warn("text_generation.api_key is not set, requests will be rejected")
		}
		return textgen.NewOpenAIClient(textgen.OpenAIConfig{
			APIKey:      key,
			BaseURL:     tg.Endpoint,
			Model:       tg.Model,
			Temperature: tg.Temperature,
			MaxTokens:   tg.MaxTokens,
			Timeout:     tg.Timeout(),
		}), nil
	default:
		return nil, fmt.Errorf("unknown text generation provider %q", tg.Provider)
	}
}

func newCoverGenerator(s *config.Settings, log *logger.Logger) *cover.Generator {
	composer := cover.NewComposer(cover.ComposerConfig{
		FontPath:       s.Cover.Font,
		BackgroundPath: s.Cover.Background,
		CanvasColor:    s.Cover.CanvasColor,
		TextColor:      s.Cover.TextColor,
		StrokeColor:    s.Cover.StrokeColor,
		FontSize:       s.Cover.FontSize,
		StrokeWidth:    s.Cover.StrokeWidth,
		TitleOffset:    s.Cover.TitleOffset,
	}, log)

	g := cover.NewGenerator(composer, log)
	g.AddStrategy(cover.NewRemoteStrategy(cover.RemoteConfig{
		APIKey:          s.ImageGeneration.Credential(),
		BaseURL:         s.ImageGeneration.Endpoint,
		Model:           s.ImageGeneration.Model,
		Timeout:         s.ImageGeneration.Timeout(),
		DownloadTimeout: s.ImageGeneration.DownloadTimeout(),
	}))
	return g
}

// Generate runs the pipeline for a topic id.
func (p *NoteProcessor) Generate(ctx context.Context, id string) pipeline.Result {
	return p.orchestrator.Run(ctx, id)
}

// GenerateAt runs the pipeline for a position in the unpublished view.
func (p *NoteProcessor) GenerateAt(ctx context.Context, index int) pipeline.Result {
	return p.orchestrator.RunAt(ctx, index)
}
