package artifact

import (
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedTime = time.Date(2024, 3, 9, 14, 5, 7, 0, time.Local)

func newTestPersister() *Persister {
	return New(nil, WithClock(func() time.Time { return fixedTime }))
}

func TestSaveText_CreatesDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "drafts", "note_t1.txt")

	require.NoError(t, newTestPersister().SaveText(path, "# 标题\n正文"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "# 标题\n正文", string(data))
}

func TestSaveText_BacksUpExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note_t1.txt")
	require.NoError(t, os.WriteFile(path, []byte("X"), 0600))

	mtime := time.Date(2023, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, os.Chtimes(path, mtime, mtime))

	require.NoError(t, newTestPersister().SaveText(path, "Y"))

	current, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Y", string(current))

	backup := filepath.Join(dir, "note_t1_backup_20240309140507.txt")
	old, err := os.ReadFile(backup)
	require.NoError(t, err)
	assert.Equal(t, "X", string(old))

	info, err := os.Stat(backup)
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(mtime), "backup keeps modification time")
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestSaveText_SameSecondOverwritesBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.txt")
	p := newTestPersister()

	require.NoError(t, p.SaveText(path, "A"))
	require.NoError(t, p.SaveText(path, "B"))
	require.NoError(t, p.SaveText(path, "C"))

	backup, err := os.ReadFile(BackupPath(path, fixedTime))
	require.NoError(t, err)
	assert.Equal(t, "B", string(backup))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestSaveImage_WritesJPEG(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "covers", "cover_t1.jpg")

	img := image.NewRGBA(image.Rect(0, 0, 108, 144))
	for y := 0; y < 144; y++ {
		for x := 0; x < 108; x++ {
			img.Set(x, y, color.RGBA{R: 255, G: 228, B: 225, A: 255})
		}
	}

	p := newTestPersister()
	require.NoError(t, p.SaveImage(path, img))
	require.NoError(t, p.SaveImage(path, img))

	for _, f := range []string{path, BackupPath(path, fixedTime)} {
		file, err := os.Open(f)
		require.NoError(t, err)
		decoded, err := jpeg.Decode(file)
		file.Close()
		require.NoError(t, err)
		assert.Equal(t, 108, decoded.Bounds().Dx())
		assert.Equal(t, 144, decoded.Bounds().Dy())
	}
}

func TestSave_ErrorType(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	err := newTestPersister().SaveText(filepath.Join(blocker, "note.txt"), "y")
	var persistErr *Error
	require.ErrorAs(t, err, &persistErr)

	err = newTestPersister().SaveText(dir, "y")
	require.ErrorAs(t, err, &persistErr)
}

func TestBackupPath(t *testing.T) {
	assert.Equal(t, "/x/note_t1_backup_20240309140507.txt", BackupPath("/x/note_t1.txt", fixedTime))
	assert.Equal(t, "/x/README_backup_20240309140507", BackupPath("/x/README", fixedTime))
}

func TestPaths(t *testing.T) {
	tests := []struct {
		name  string
		id    string
		note  string
		cover string
	}{
		{name: "simple", id: "t1", note: "out/drafts/note_t1.txt", cover: "out/covers/cover_t1.jpg"},
		{name: "separators", id: "a/../b", note: "out/drafts/note_a_.._b.txt", cover: "out/covers/cover_a_.._b.jpg"},
		{name: "backslash", id: `x\y`, note: "out/drafts/note_x_y.txt", cover: "out/covers/cover_x_y.jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, filepath.FromSlash(tt.note), NotePath("out", tt.id))
			assert.Equal(t, filepath.FromSlash(tt.cover), CoverPath("out", tt.id))
		})
	}
}
