package main

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aktagon/note-writer/internal/config"
	"github.com/aktagon/note-writer/internal/logger"
	"github.com/aktagon/note-writer/internal/pipeline"
	"github.com/aktagon/note-writer/internal/textgen"
	"github.com/aktagon/note-writer/internal/topics"
)

// outputKinds maps the URL kind to the output subdirectory it may serve.
var outputKinds = map[string]string{
	"drafts": "drafts",
	"covers": "covers",
}

// Server is the HTTP front-end. Each generate request builds its pipeline
// from the settings snapshot current at that moment.
type Server struct {
	settings  func() *config.Settings
	overrides *ConfigOverrides
	log       *logger.Logger

	// one run at a time
	mu sync.Mutex
}

func NewServer(settings func() *config.Settings, overrides *ConfigOverrides, log *logger.Logger) *Server {
	return &Server{settings: settings, overrides: overrides, log: logger.OrNop(log)}
}

// Router builds the gin engine.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(s.log))

	r.GET("/healthcheck", s.HealthCheck)

	api := r.Group("/api")
	{
		api.GET("/topics", s.ListTopics)
		api.POST("/topics/:id/generate", s.Generate)
	}

	r.GET("/output/:kind/:filename", s.Output)
	return r
}

func requestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

func respondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{Error: APIError{Message: msg, Code: code}})
}

func (s *Server) HealthCheck(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// ListTopics returns the unpublished queue with dataset counts.
func (s *Server) ListTopics(c *gin.Context) {
	store := topics.NewStore(s.settings().Data.Topics)
	list, err := store.ListUnpublished()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "dataset_unreadable", err)
		return
	}
	stats, err := store.Stats()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "dataset_unreadable", err)
		return
	}
	if list == nil {
		list = []topics.Topic{}
	}
	c.JSON(http.StatusOK, TopicListResponse{
		Topics:    list,
		Published: stats.Published,
		Total:     stats.Total,
	})
}

// Generate runs the pipeline for the topic named in the path.
func (s *Server) Generate(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	processor, err := NewNoteProcessor(s.settings(), s.overrides, s.log)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "pipeline_unavailable", err)
		return
	}

	res := processor.Generate(c.Request.Context(), c.Param("id"))
	c.JSON(resultStatus(res), newGenerateResponse(res))
}

// resultStatus maps a run outcome to an HTTP status code.
func resultStatus(res pipeline.Result) int {
	if res.Success() {
		return http.StatusOK
	}
	if res.Partial() {
		return http.StatusMultiStatus
	}

	var textErr *textgen.Error
	switch {
	case errors.Is(res.Err, topics.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(res.Err, pipeline.ErrNoTopics), errors.Is(res.Err, pipeline.ErrAlreadyPublished):
		return http.StatusConflict
	case errors.As(res.Err, &textErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Output serves a generated note or cover.
func (s *Server) Output(c *gin.Context) {
	dir, ok := outputKinds[c.Param("kind")]
	if !ok {
		respondError(c, http.StatusNotFound, "unknown_kind", errors.New("no such output kind"))
		return
	}

	name := c.Param("filename")
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") || strings.ContainsAny(name, `/\`) {
		respondError(c, http.StatusBadRequest, "invalid_filename", errors.New("invalid file name"))
		return
	}

	path := filepath.Join(s.settings().Output.Directory, dir, name)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		respondError(c, http.StatusNotFound, "not_found", errors.New("file not found"))
		return
	}

	c.Header("Content-Type", "application/octet-stream")
	c.File(path)
}
