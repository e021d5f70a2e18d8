// Package resolve turns patterns or manifest entries into the concrete
// list of source files to submit for translation.
//
// Two modes exist, mutually exclusive:
//
//   - Pattern mode: each pattern has its {{lang}} token replaced with the
//     source language, then is either taken as a direct path (no glob
//     metacharacters) or expanded with filesystem globbing. Patterns that
//     match nothing produce warnings, not errors.
//   - Manifest mode: explicit (file, output) entries from sjt.yml. Every
//     listed file must exist; a missing one is a fatal error.
//
// The package also derives the per-file remote identity (the path relative
// to the project base) and, in pattern mode, the output template sent to
// the remote side.
package resolve

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pavel-te/simple-json-translations/config"
)

// LangToken is the locale placeholder understood in patterns and output
// templates. In patterns it expands to the source language; in output
// templates the remote side substitutes each target language for it.
const LangToken = "{{lang}}"

// ErrNoFilesFound is returned when discovery produces an empty set.
var ErrNoFilesFound = errors.New("no source files found")

// File is one resolved source file ready for submission.
type File struct {
	// Path is the absolute path on disk.
	Path string
	// RelativePath is the path relative to the project base, in slash
	// form — the remote API's identity for this file. Files outside the
	// base keep their absolute path unchanged.
	RelativePath string
	// OutputPattern is the output template containing the {{lang}} token.
	OutputPattern string
	// Additional are secondary output templates (manifest mode only).
	Additional []string
}

// ---------------------------------------------------------------------------
// Base directory
// ---------------------------------------------------------------------------

// BaseDir returns the project base used for relative paths: the closest
// ancestor of projectDir containing a .git entry, or projectDir itself
// when no repository is found.
func BaseDir(projectDir string) (string, error) {
	abs, err := filepath.Abs(projectDir)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", projectDir, err)
	}

	dir := abs
	for {
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return abs, nil
		}
		dir = parent
	}
}

// GitBranch returns the current branch name parsed from .git/HEAD, or ""
// when baseDir is not a repository or HEAD is detached.
func GitBranch(baseDir string) string {
	data, err := os.ReadFile(filepath.Join(baseDir, ".git", "HEAD"))
	if err != nil {
		return ""
	}
	head := strings.TrimSpace(string(data))
	const prefix = "ref: refs/heads/"
	if !strings.HasPrefix(head, prefix) {
		return ""
	}
	return strings.TrimPrefix(head, prefix)
}

// relativeTo returns absPath relative to baseDir in slash form, or absPath
// unchanged when it lies outside baseDir (an "external" file — still
// submitted, identified by its absolute path).
func relativeTo(baseDir, absPath string) string {
	rel, err := filepath.Rel(baseDir, absPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return absPath
	}
	return filepath.ToSlash(rel)
}

// ---------------------------------------------------------------------------
// Pattern mode
// ---------------------------------------------------------------------------

// ResolvePatterns expands patterns against baseDir with the {{lang}} token
// set to sourceLang. It returns the resolved files (first-seen order,
// deduplicated) and human-readable warnings for patterns or files that
// contributed nothing. An empty union is ErrNoFilesFound.
func ResolvePatterns(baseDir, sourceLang string, patterns []string) ([]File, []string, error) {
	var (
		files    []File
		warnings []string
	)
	seen := make(map[string]bool)

	for _, pattern := range patterns {
		expanded := strings.ReplaceAll(pattern, LangToken, sourceLang)
		rooted := expanded
		if !filepath.IsAbs(rooted) {
			rooted = filepath.Join(baseDir, filepath.FromSlash(expanded))
		}

		var matches []string
		if strings.ContainsAny(expanded, "*?[") {
			var err error
			matches, err = filepath.Glob(rooted)
			if err != nil {
				return nil, warnings, fmt.Errorf("pattern %q: %w", pattern, err)
			}
		} else if isRegularFile(rooted) {
			matches = []string{rooted}
		}

		added := 0
		for _, m := range matches {
			if !isRegularFile(m) {
				continue
			}
			abs, err := filepath.Abs(m)
			if err != nil {
				continue
			}
			if seen[abs] {
				continue
			}
			seen[abs] = true

			rel := relativeTo(baseDir, abs)
			output, ok := DeriveOutputPattern(rel, sourceLang)
			if !ok {
				warnings = append(warnings,
					fmt.Sprintf("%s: name does not contain source language %q, cannot derive output pattern — skipped", rel, sourceLang))
				continue
			}

			files = append(files, File{
				Path:          abs,
				RelativePath:  rel,
				OutputPattern: output,
			})
			added++
		}

		if added == 0 {
			warnings = append(warnings, fmt.Sprintf("pattern %q matched no files", pattern))
		}
	}

	if len(files) == 0 {
		return nil, warnings, ErrNoFilesFound
	}
	return files, warnings, nil
}

// isRegularFile reports whether path exists and is a regular file.
func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// ---------------------------------------------------------------------------
// Manifest mode
// ---------------------------------------------------------------------------

// ResolveManifest resolves explicit manifest entries against baseDir.
// Unlike pattern mode, a listed file that does not exist on disk is a
// fatal error: the manifest is author-curated and a miss means it is stale.
func ResolveManifest(baseDir string, entries []config.FileEntry) ([]File, error) {
	var files []File
	for _, e := range entries {
		path := filepath.FromSlash(e.File)
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		if !isRegularFile(path) {
			return nil, fmt.Errorf("manifest entry %s: no such file", e.File)
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("manifest entry %s: %w", e.File, err)
		}

		files = append(files, File{
			Path:          abs,
			RelativePath:  relativeTo(baseDir, abs),
			OutputPattern: e.Output,
			Additional:    e.Additional,
		})
	}

	if len(files) == 0 {
		return nil, ErrNoFilesFound
	}
	return files, nil
}

// ---------------------------------------------------------------------------
// Output-pattern derivation
// ---------------------------------------------------------------------------

// DeriveOutputPattern builds the output template for a source path by
// replacing the source language in its base name with the {{lang}} token.
// The directory part is never touched, and the language must stand alone
// in the name, delimited by '.', '_', '-' or the name's ends:
//
//	locales/en.json (en)  → locales/{{lang}}.json
//	root.en.json (en)     → root.{{lang}}.json
//
// The last such occurrence is replaced. ok is false when the base name
// contains no standalone occurrence of the language.
func DeriveOutputPattern(relPath, sourceLang string) (pattern string, ok bool) {
	if sourceLang == "" {
		return "", false
	}

	dir, base := splitSlashPath(relPath)

	idx := -1
	for i := strings.LastIndex(base, sourceLang); i >= 0; i = strings.LastIndex(base[:i], sourceLang) {
		if tokenBounded(base, i, len(sourceLang)) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return "", false
	}

	derived := base[:idx] + LangToken + base[idx+len(sourceLang):]
	if dir == "" {
		return derived, true
	}
	return dir + "/" + derived, true
}

// splitSlashPath splits a slash-form path into directory and base name.
// relPath may also be an absolute OS path (external files); the returned
// directory keeps whatever form the input had.
func splitSlashPath(p string) (dir, base string) {
	slashed := filepath.ToSlash(p)
	i := strings.LastIndex(slashed, "/")
	if i < 0 {
		return "", slashed
	}
	return slashed[:i], slashed[i+1:]
}

// tokenBounded reports whether the substring at [i, i+n) in base is
// delimited on both sides by a separator or the string boundary.
func tokenBounded(base string, i, n int) bool {
	boundary := func(b byte) bool {
		return b == '.' || b == '_' || b == '-'
	}
	if i > 0 && !boundary(base[i-1]) {
		return false
	}
	if end := i + n; end < len(base) && !boundary(base[end]) {
		return false
	}
	return true
}
