// Package unpack turns a downloaded translation archive into files in the
// project tree.
//
// The flow is: write the ZIP to a scratch file, extract it into a scratch
// directory, then relocate every recognized translation file (.json, .po,
// .pot, .mo) into the target directory — flat, by base name, discarding
// whatever directory structure the archive used. Scratch artifacts are
// removed on every exit path.
package unpack

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// translationExts are the file extensions relocated from an archive.
// Anything else the archive carries is left behind in the scratch area.
var translationExts = map[string]bool{
	".json": true,
	".po":   true,
	".pot":  true,
	".mo":   true,
}

// ---------------------------------------------------------------------------
// Extraction
// ---------------------------------------------------------------------------

// Extract unpacks the ZIP at zipPath into destDir and returns the paths of
// the extracted files. Entries that would resolve outside destDir are
// rejected.
func Extract(zipPath, destDir string) ([]string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	defer r.Close()

	var extracted []string
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		dest, err := entryPath(destDir, f.Name)
		if err != nil {
			return nil, err
		}
		if err := extractEntry(f, dest); err != nil {
			return nil, fmt.Errorf("extracting %s: %w", f.Name, err)
		}
		extracted = append(extracted, dest)
	}

	return extracted, nil
}

// entryPath joins an archive entry name onto destDir, refusing names that
// escape it (absolute paths or .. traversal).
func entryPath(destDir, name string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("archive entry %q escapes extraction directory", name)
	}
	return filepath.Join(destDir, cleaned), nil
}

func extractEntry(f *zip.File, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}

	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// ---------------------------------------------------------------------------
// Relocation
// ---------------------------------------------------------------------------

// Moved records one file placed into the target directory.
type Moved struct {
	// Path is the final destination path.
	Path string
	// Overwrote is true when an existing file was replaced. Callers
	// surface this so clobbering is never silent.
	Overwrote bool
}

// Relocate moves every recognized translation file found under
// extractedDir into targetDir, flat by base name, creating targetDir if
// needed. Archive-internal directories are discarded; when two entries
// share a base name the later one (in walk order) wins, flagged as an
// overwrite.
func Relocate(extractedDir, targetDir string) ([]Moved, error) {
	if err := os.MkdirAll(targetDir, 0755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", targetDir, err)
	}

	var moved []Moved
	err := filepath.Walk(extractedDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if !translationExts[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		dest := filepath.Join(targetDir, filepath.Base(path))
		_, statErr := os.Stat(dest)
		overwrote := statErr == nil

		if err := moveFile(path, dest); err != nil {
			return fmt.Errorf("relocating %s: %w", filepath.Base(path), err)
		}
		moved = append(moved, Moved{Path: dest, Overwrote: overwrote})
		return nil
	})
	if err != nil {
		return moved, err
	}

	return moved, nil
}

// moveFile renames src to dest, falling back to copy+remove when rename
// fails (the scratch area and the project may sit on different devices).
func moveFile(src, dest string) error {
	if err := os.Rename(src, dest); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
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

	return os.Remove(src)
}
