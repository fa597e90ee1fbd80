package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/aktagon/note-writer/internal/pipeline"
	"github.com/aktagon/note-writer/internal/topics"
)

var (
	headerRowStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	cellStyle      = lipgloss.NewStyle()
	labelStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	okStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

func renderTopicTable(list []topics.Topic) string {
	if len(list) == 0 {
		return "No unpublished topics."
	}
	rows := make([][]string, len(list))
	for i, t := range list {
		rows[i] = []string{strconv.Itoa(i), t.ID, t.BookTitle, t.Audience}
	}
	return table.New().
		Headers("#", "ID", "Book", "Audience").
		Rows(rows...).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("8"))).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerRowStyle
			}
			return cellStyle
		}).
		Render()
}

func renderStats(s topics.Stats) string {
	return labelStyle.Render("published:") + fmt.Sprintf(" %d/%d", s.Published, s.Total)
}

func renderField(label, value string) string {
	if value == "" {
		value = "-"
	}
	return labelStyle.Render(label+":") + " " + value
}

// renderResult prints the (note, cover, status) tuple of a run.
func renderResult(res pipeline.Result) string {
	status := errStyle.Render(res.Status)
	switch {
	case res.Success():
		status = okStyle.Render(res.Status)
	case res.Partial():
		status = warnStyle.Render(res.Status)
	}

	var sb strings.Builder
	for _, line := range []string{
		renderField("run", res.RunID),
		renderField("topic", res.TopicID),
		renderField("note", res.NotePath),
		renderField("cover", res.CoverPath),
		renderField("status", status),
	} {
		sb.WriteString(line + "\n")
	}
	return sb.String()
}

func renderMarkdown(content string) (string, error) {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle())
	if err != nil {
		return "", fmt.Errorf("creating renderer: %w", err)
	}
	out, err := r.Render(content)
	if err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}
	return out, nil
}
