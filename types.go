package main

import (
	"github.com/aktagon/note-writer/internal/pipeline"
	"github.com/aktagon/note-writer/internal/topics"
)

// TopicListResponse is returned by GET /api/topics
type TopicListResponse struct {
	Topics    []topics.Topic `json:"topics"`
	Published int            `json:"published"`
	Total     int            `json:"total"`
}

// GenerateResponse is the result tuple of one pipeline run
type GenerateResponse struct {
	RunID     string `json:"run_id"`
	TopicID   string `json:"topic_id"`
	NotePath  string `json:"note_path"`
	CoverPath string `json:"cover_path"`
	Status    string `json:"status"`
	State     string `json:"state"`
	Note      string `json:"note,omitempty"`
}

func newGenerateResponse(res pipeline.Result) GenerateResponse {
	return GenerateResponse{
		RunID:     res.RunID,
		TopicID:   res.TopicID,
		NotePath:  res.NotePath,
		CoverPath: res.CoverPath,
		Status:    res.Status,
		State:     string(res.State),
		Note:      res.Note,
	}
}

// APIError mirrors the error envelope used by every endpoint
type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
