// Package topics reads and rewrites the CSV dataset of queued content topics.
package topics

import (
	"errors"
	"strings"
)

// ErrNotFound is returned when a topic cannot be resolved by id or position.
var ErrNotFound = errors.New("topic not found")

// Status is the publication state of a topic.
type Status string

const (
	StatusUnpublished Status = "unpublished"
	StatusPublished   Status = "published"
)

// ParseStatus maps a raw dataset cell to a Status. Only the exact value
// "published" (surrounding whitespace ignored) counts as published.
func ParseStatus(raw string) Status {
	if strings.TrimSpace(raw) == string(StatusPublished) {
		return StatusPublished
	}
	return StatusUnpublished
}

// Topic is a queued content idea.
type Topic struct {
	ID        string `json:"id"`
	PainPoint string `json:"pain_point"`
	Audience  string `json:"audience"`
	BookTitle string `json:"book_title"`
	Quote     string `json:"quote"`
	Status    Status `json:"status"`

	row int
}

// Published reports whether the topic has been published.
func (t Topic) Published() bool {
	return t.Status == StatusPublished
}

// Stats summarizes the dataset for display.
type Stats struct {
	Total     int `json:"total"`
	Published int `json:"published"`
}

// Unpublished returns the number of topics still in the queue.
func (s Stats) Unpublished() int {
	return s.Total - s.Published
}

type field int

const (
	fieldID field = iota
	fieldPainPoint
	fieldAudience
	fieldBookTitle
	fieldQuote
	fieldStatus
	fieldCount
)

// columnAliases maps accepted header spellings to fields. The first entry
// of each field is the canonical name used when a column must be added.
var columnAliases = [fieldCount][]string{
	fieldID:        {"id"},
	fieldPainPoint: {"pain_point", "痛点"},
	fieldAudience:  {"audience", "人群", "目标人群"},
	fieldBookTitle: {"book_title", "书籍", "匹配书籍"},
	fieldQuote:     {"quote", "金句", "书中金句"},
	fieldStatus:    {"status"},
}

func lookupField(header string) (field, bool) {
	h := strings.TrimSpace(header)
	for f, aliases := range columnAliases {
		for _, a := range aliases {
			if strings.EqualFold(h, a) {
				return field(f), true
			}
		}
	}
	return 0, false
}
