package prompt

import (
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aktagon/note-writer/internal/topics"
)

var topic = topics.Topic{
	ID:        "t1",
	PainPoint: "procrastination",
	Audience:  "students",
	BookTitle: "Atomic Habits",
	Quote:     "small steps",
}

func TestFill(t *testing.T) {
	tests := []struct {
		name     string
		template string
		topic    topics.Topic
		expected string
	}{
		{
			name:     "english placeholders",
			template: "Write for {audience} about {pain_point} using {book_title}: \"{quote}\"",
			topic:    topic,
			expected: "Write for students about procrastination using Atomic Habits: \"small steps\"",
		},
		{
			name:     "chinese placeholders",
			template: "痛点:{痛点} 人群:{目标人群} 书:{匹配书籍} 金句:{书中金句}",
			topic:    topic,
			expected: "痛点:procrastination 人群:students 书:Atomic Habits 金句:small steps",
		},
		{
			name:     "missing fields become empty",
			template: "[{pain_point}][{quote}]",
			topic:    topics.Topic{ID: "x"},
			expected: "[][]",
		},
		{
			name:     "unknown placeholders are kept",
			template: "{audience} {unknown} {}",
			topic:    topic,
			expected: "students {unknown} {}",
		},
		{
			name:     "repeated placeholder",
			template: "{audience}/{audience}",
			topic:    topic,
			expected: "students/students",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Fill(tt.template, tt.topic))
		})
	}
}

func TestRender_SnippetNotEmbedded(t *testing.T) {
	corpus := NewCorpus([]string{"honestly, I cried"}, rand.New(rand.NewPCG(1, 2)))
	r := NewRenderer("About {book_title}", corpus)

	out := r.Render(topic)
	assert.Equal(t, "About Atomic Habits", out.Prompt)
	assert.Equal(t, "honestly, I cried", out.Snippet)
	assert.NotContains(t, out.Prompt, out.Snippet)
}

func TestRender_EmptyCorpus(t *testing.T) {
	r := NewRenderer("About {book_title}", nil)
	assert.Equal(t, "", r.Render(topic).Snippet)
}

func TestCorpus_SampleIsFromCorpus(t *testing.T) {
	lines := []string{"one", "two", "three"}
	c := NewCorpus(append([]string{"", "   "}, lines...), rand.New(rand.NewPCG(7, 7)))
	require.Equal(t, 3, c.Len())

	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		s := c.Sample()
		assert.Contains(t, lines, s)
		seen[s] = true
	}
	assert.Len(t, seen, 3)
}

func TestLoadCorpus(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snippets.txt")
	require.NoError(t, os.WriteFile(path, []byte("first\n\n  second  \n\r\n"), 0644))

	c, err := LoadCorpus(path, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, c.lines)

	missing, err := LoadCorpus(filepath.Join(dir, "absent.txt"), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, missing.Len())
	assert.Equal(t, "", missing.Sample())
}

func TestLoadTemplate(t *testing.T) {
	got, err := LoadTemplate("", "embedded")
	require.NoError(t, err)
	assert.Equal(t, "embedded", got)

	path := filepath.Join(t.TempDir(), "tpl.txt")
	require.NoError(t, os.WriteFile(path, []byte("from file"), 0644))
	got, err = LoadTemplate(path, "embedded")
	require.NoError(t, err)
	assert.Equal(t, "from file", got)

	_, err = LoadTemplate(filepath.Join(t.TempDir(), "missing.txt"), "embedded")
	assert.Error(t, err)
}
