// Package pipeline runs one topic through note writing, cover generation and
// publication.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/google/uuid"

	"github.com/aktagon/note-writer/internal/artifact"
	"github.com/aktagon/note-writer/internal/cover"
	"github.com/aktagon/note-writer/internal/logger"
	"github.com/aktagon/note-writer/internal/prompt"
	"github.com/aktagon/note-writer/internal/topics"
)

// StatusSuccess is the status string of a fully completed run.
const StatusSuccess = "success"

// State is a step of a pipeline run.
type State string

const (
	StateSelecting        State = "selecting"
	StateRendering        State = "rendering"
	StateGeneratingText   State = "generating_text"
	StatePersistingNote   State = "persisting_note"
	StateGeneratingImage  State = "generating_image"
	StatePersistingCover  State = "persisting_cover"
	StateMarkingPublished State = "marking_published"
	StateDone             State = "done"
	StatePartial          State = "partial"
	StateFailed           State = "failed"
)

var (
	// ErrSelection wraps every failure to pick a topic.
	ErrSelection        = errors.New("topic selection failed")
	ErrNoTopics         = fmt.Errorf("%w: no unpublished topics", ErrSelection)
	ErrAlreadyPublished = fmt.Errorf("%w: topic already published", ErrSelection)
)

// TopicStore is the dataset the pipeline reads and marks.
type TopicStore interface {
	ListUnpublished() ([]topics.Topic, error)
	Get(id string) (topics.Topic, error)
	MarkPublished(id string) error
}

// PromptRenderer turns a topic into a prompt and voice snippet.
type PromptRenderer interface {
	Render(t topics.Topic) prompt.Rendered
}

// TextGenerator writes the note.
type TextGenerator interface {
	Generate(ctx context.Context, prompt, snippet string) (string, error)
}

// CoverGenerator produces the cover image.
type CoverGenerator interface {
	Generate(ctx context.Context, req cover.Request) (image.Image, error)
}

// Persister stores artifacts.
type Persister interface {
	SaveText(path, content string) error
	SaveImage(path string, img image.Image) error
}

// Result is the outcome of one run. Callers branch on Status; Err keeps the
// typed cause for logging.
type Result struct {
	RunID     string
	TopicID   string
	NotePath  string
	CoverPath string
	Note      string
	Status    string
	State     State
	Err       error
}

func (r Result) Success() bool {
	return r.State == StateDone
}

// Partial reports a run whose note was saved but whose cover was not.
func (r Result) Partial() bool {
	return r.State == StatePartial
}

// Config holds the orchestrator's output settings.
type Config struct {
	OutputDir   string
	CoverWidth  int
	CoverHeight int
}

// Orchestrator wires the pipeline stages together.
type Orchestrator struct {
	cfg     Config
	topics  TopicStore
	prompts PromptRenderer
	text    TextGenerator
	covers  CoverGenerator
	persist Persister
	log     *logger.Logger
}

func New(cfg Config, store TopicStore, prompts PromptRenderer, text TextGenerator, covers CoverGenerator, persist Persister, log *logger.Logger) *Orchestrator {
	if cfg.CoverWidth <= 0 {
		cfg.CoverWidth = cover.DefaultWidth
	}
	if cfg.CoverHeight <= 0 {
		cfg.CoverHeight = cover.DefaultHeight
	}
	return &Orchestrator{
		cfg:     cfg,
		topics:  store,
		prompts: prompts,
		text:    text,
		covers:  covers,
		persist: persist,
		log:     logger.OrNop(log),
	}
}

// Run generates the note and cover for the topic with the given id.
func (o *Orchestrator) Run(ctx context.Context, id string) Result {
	res := Result{RunID: uuid.NewString(), TopicID: id, State: StateSelecting}
	log := o.log.With("run", res.RunID, "topic", id)

	topic, err := o.topics.Get(id)
	if err != nil {
		return fail(log, res, fmt.Errorf("%w: %w", ErrSelection, err))
	}
	if topic.Published() {
		return fail(log, res, ErrAlreadyPublished)
	}
	return o.run(ctx, log, res, topic)
}

// RunAt resolves index against the current unpublished view and runs that
// topic by id.
func (o *Orchestrator) RunAt(ctx context.Context, index int) Result {
	res := Result{RunID: uuid.NewString(), State: StateSelecting}
	log := o.log.With("run", res.RunID)

	list, err := o.topics.ListUnpublished()
	if err != nil {
		return fail(log, res, fmt.Errorf("%w: %w", ErrSelection, err))
	}
	if len(list) == 0 {
		return fail(log, res, ErrNoTopics)
	}
	if index < 0 || index >= len(list) {
		return fail(log, res, fmt.Errorf("%w: index %d out of range (%d unpublished): %w",
			ErrSelection, index, len(list), topics.ErrNotFound))
	}
	return o.Run(ctx, list[index].ID)
}

func (o *Orchestrator) run(ctx context.Context, log *logger.Logger, res Result, topic topics.Topic) Result {
	log.Info("→ Processing topic", "book", topic.BookTitle)

	res.State = StateRendering
	rendered := o.prompts.Render(topic)

	res.State = StateGeneratingText
	text, err := o.text.Generate(ctx, rendered.Prompt, rendered.Snippet)
	if err != nil {
		return fail(log, res, err)
	}

	res.State = StatePersistingNote
	notePath := artifact.NotePath(o.cfg.OutputDir, topic.ID)
	if err := o.persist.SaveText(notePath, text); err != nil {
		return fail(log, res, err)
	}
	res.NotePath = notePath
	res.Note = text

	res.State = StateGeneratingImage
	title := cover.TitleFromNote(text)
	img, err := o.covers.Generate(ctx, cover.Request{
		Prompt: cover.BuildPrompt(title, topic.BookTitle),
		Title:  title,
		Width:  o.cfg.CoverWidth,
		Height: o.cfg.CoverHeight,
	})
	if err != nil {
		return partial(log, res, err)
	}

	res.State = StatePersistingCover
	coverPath := artifact.CoverPath(o.cfg.OutputDir, topic.ID)
	if err := o.persist.SaveImage(coverPath, img); err != nil {
		return partial(log, res, err)
	}
	res.CoverPath = coverPath

	res.State = StateMarkingPublished
	if err := o.topics.MarkPublished(topic.ID); err != nil {
		res.Err = err
		res.State = StateFailed
		res.Status = fmt.Sprintf("artifacts saved but topic status not updated: %v", err)
		log.Error("marking published failed", "error", err)
		return res
	}

	res.State = StateDone
	res.Status = StatusSuccess
	log.Info("✓ Topic published", "note", res.NotePath, "cover", res.CoverPath)
	return res
}

func fail(log *logger.Logger, res Result, err error) Result {
	log.Error("pipeline failed", "state", res.State, "error", err)
	res.Err = err
	res.Status = err.Error()
	res.State = StateFailed
	return res
}

func partial(log *logger.Logger, res Result, err error) Result {
	log.Warn("cover failed, topic left unpublished", "state", res.State, "error", err)
	res.Err = err
	res.Status = fmt.Sprintf("cover generation failed: %v", err)
	res.State = StatePartial
	return res
}
