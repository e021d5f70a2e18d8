package unpack

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Scratch is the per-download temporary area: one ZIP file and one
// extraction directory, uniquely named so concurrent runs never collide.
type Scratch struct {
	// ZipPath is the file the archive is downloaded into.
	ZipPath string
	// Dir is the directory the archive is extracted into.
	Dir string
}

// NewScratch creates the scratch ZIP file and extraction directory under
// the system temp dir. Callers must arrange Remove — typically deferred
// right after NewScratch — so cleanup runs on success, failure and
// interruption alike.
func NewScratch() (*Scratch, error) {
	id := uuid.NewString()
	s := &Scratch{
		ZipPath: filepath.Join(os.TempDir(), "sjt-"+id+".zip"),
		Dir:     filepath.Join(os.TempDir(), "sjt-"+id),
	}

	f, err := os.OpenFile(s.ZipPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return nil, fmt.Errorf("creating scratch file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, err
	}

	if err := os.Mkdir(s.Dir, 0700); err != nil {
		os.Remove(s.ZipPath)
		return nil, fmt.Errorf("creating scratch directory: %w", err)
	}

	return s, nil
}

// Remove deletes the scratch artifacts. It is best-effort and safe to
// call repeatedly; a failed removal never fails the run.
func (s *Scratch) Remove() {
	os.Remove(s.ZipPath)
	os.RemoveAll(s.Dir)
}
