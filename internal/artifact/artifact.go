// Package artifact writes generated notes and covers to disk, keeping a
// timestamped backup of anything it overwrites.
package artifact

import (
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fogleman/gg"

	"github.com/aktagon/note-writer/internal/logger"
)

const (
	DraftsDir = "drafts"
	CoversDir = "covers"

	// JPEGQuality is the encoder quality for covers.
	JPEGQuality = 95

	backupTimeFormat = "20060102150405"
)

// Error is a failed write of a note or cover.
type Error struct {
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Persister saves artifacts. The zero value is not usable; use New.
type Persister struct {
	now func() time.Time
	log *logger.Logger
}

// Option configures a Persister.
type Option func(*Persister)

// WithClock overrides the clock used for backup names.
func WithClock(now func() time.Time) Option {
	return func(p *Persister) {
		p.now = now
	}
}

func New(log *logger.Logger, opts ...Option) *Persister {
	p := &Persister{now: time.Now, log: logger.OrNop(log)}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SaveText writes content as UTF-8 text.
func (p *Persister) SaveText(path, content string) error {
	if err := p.prepare(path); err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return &Error{Op: "write note", Path: path, Err: err}
	}
	p.log.Info("✓ Note saved", "path", path)
	return nil
}

// SaveImage writes img as a JPEG.
func (p *Persister) SaveImage(path string, img image.Image) error {
	if err := p.prepare(path); err != nil {
		return err
	}
	if err := gg.SaveJPG(path, img, JPEGQuality); err != nil {
		return &Error{Op: "write cover", Path: path, Err: err}
	}
	p.log.Info("✓ Cover saved", "path", path)
	return nil
}

func (p *Persister) prepare(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return &Error{Op: "create directory", Path: filepath.Dir(path), Err: err}
	}
	backup, err := p.backup(path)
	if err != nil {
		return &Error{Op: "backup", Path: path, Err: err}
	}
	if backup != "" {
		p.log.Info("Backed up existing file", "backup", filepath.Base(backup))
	}
	return nil
}

// backup copies an existing file to its timestamped sibling and returns the
// backup path, or "" when there was nothing to back up.
func (p *Persister) backup(path string) (string, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", path)
	}

	dst := BackupPath(path, p.now())
	if err := copyFile(path, dst, info); err != nil {
		return "", err
	}
	return dst, nil
}

// BackupPath returns <stem>_backup_<YYYYMMDDHHMMSS><ext> next to path.
func BackupPath(path string, at time.Time) string {
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	return stem + "_backup_" + at.Format(backupTimeFormat) + ext
}

func copyFile(src, dst string, info os.FileInfo) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	if err := os.Chmod(dst, info.Mode().Perm()); err != nil {
		return err
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}

// NotePath is <dir>/drafts/note_<id>.txt.
func NotePath(dir, id string) string {
	return filepath.Join(dir, DraftsDir, "note_"+safeID(id)+".txt")
}

// CoverPath is <dir>/covers/cover_<id>.jpg.
func CoverPath(dir, id string) string {
	return filepath.Join(dir, CoversDir, "cover_"+safeID(id)+".jpg")
}

var idReplacer = strings.NewReplacer("/", "_", "\\", "_", "\x00", "_", ":", "_")

func safeID(id string) string {
	return idReplacer.Replace(strings.TrimSpace(id))
}
