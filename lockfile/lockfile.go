// Package lockfile implements sjt.lock — a record of the source file
// checksums from the last successful push. It lets "sjt push
// --changed-only" skip files the service has already translated in their
// current form, saving uploads and processing time.
//
// The lock file is stored alongside sjt.yml as sjt.lock.
package lockfile

import (
	"crypto/md5"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileName is the lock file name.
const FileName = "sjt.lock"

// Version is the lock file format version.
const Version = 1

// Entry records one pushed file.
type Entry struct {
	// Checksum is the MD5 hex digest of the source file content.
	Checksum string `yaml:"checksum"`
	// Tag is the grouping tag the file was pushed under. A different tag
	// is a different remote identity, so the entry does not apply.
	Tag string `yaml:"tag"`
}

// LockFile is the sjt.lock structure, keyed by submitted file path.
type LockFile struct {
	Version int              `yaml:"version"`
	Files   map[string]Entry `yaml:"files"`

	path string `yaml:"-"`
}

// New returns an empty lock file bound to the given directory.
func New(dir string) *LockFile {
	return &LockFile{
		Version: Version,
		Files:   make(map[string]Entry),
		path:    filepath.Join(dir, FileName),
	}
}

// Load reads the lock file from the given directory. A missing file is
// not an error; an empty lock file is returned.
func Load(dir string) (*LockFile, error) {
	lf := New(dir)

	data, err := os.ReadFile(lf.path)
	if err != nil {
		if os.IsNotExist(err) {
			return lf, nil
		}
		return nil, fmt.Errorf("reading %s: %w", lf.path, err)
	}

	if err := yaml.Unmarshal(data, lf); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", lf.path, err)
	}
	if lf.Files == nil {
		lf.Files = make(map[string]Entry)
	}

	return lf, nil
}

// Save writes the lock file to disk.
func (lf *LockFile) Save() error {
	data, err := yaml.Marshal(lf)
	if err != nil {
		return fmt.Errorf("marshaling lock file: %w", err)
	}
	if err := os.WriteFile(lf.path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", lf.path, err)
	}
	return nil
}

// Path returns the lock file path.
func (lf *LockFile) Path() string {
	return lf.path
}

// HashFile computes the MD5 hex digest of a file's content.
func HashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return fmt.Sprintf("%x", md5.Sum(data)), nil
}

// Unchanged reports whether a file was already pushed under the same tag
// with the same content.
func (lf *LockFile) Unchanged(relPath, tag, checksum string) bool {
	e, ok := lf.Files[relPath]
	return ok && e.Tag == tag && e.Checksum == checksum
}

// Update records a file's checksum after a successful push.
func (lf *LockFile) Update(relPath, tag, checksum string) {
	lf.Files[relPath] = Entry{Checksum: checksum, Tag: tag}
}
