// Package config — sjt.yml configuration file support.
//
// When an sjt.yml file exists in the project root, sjt reads defaults for
// the push pipeline from it: the source language, the grouping tag, the API
// endpoint, and either glob patterns or an explicit file manifest.
// Command-line flags always override file values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// YAML schema
// ---------------------------------------------------------------------------

// Config is the top-level sjt.yml structure.
type Config struct {
	// SourceLang is the source language code substituted for the
	// {{lang}} token in patterns (default "en").
	SourceLang string `yaml:"source_lang,omitempty"`
	// Tag is the default grouping tag for submissions (usually a branch name).
	Tag string `yaml:"tag,omitempty"`
	// APIURL is the base URL of the translation service.
	APIURL string `yaml:"api_url,omitempty"`
	// PollInterval is the pause between monitoring rounds, in seconds.
	PollInterval int `yaml:"poll_interval,omitempty"`
	// MaxRounds is the monitoring round limit before pending jobs time out.
	MaxRounds int `yaml:"max_rounds,omitempty"`
	// Patterns are source-file patterns containing the {{lang}} token.
	// Mutually exclusive with Files.
	Patterns []string `yaml:"patterns,omitempty"`
	// Files is an explicit manifest of source files and output templates.
	// Mutually exclusive with Patterns.
	Files []FileEntry `yaml:"files,omitempty"`
}

// FileEntry describes a single manifest entry: one source file plus the
// output template telling the remote side where translated variants belong.
type FileEntry struct {
	// File is the source file path relative to the project root.
	File string `yaml:"file"`
	// Output is the output path template containing the {{lang}} token.
	Output string `yaml:"output"`
	// Additional are secondary output templates for derived-format
	// artifacts. They are submitted with the upload but not tracked
	// through monitoring.
	Additional []string `yaml:"additional,omitempty"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// FileName is the config file name looked up in the project root.
const FileName = "sjt.yml"

// Load reads and validates sjt.yml from the given directory.
// Returns nil if no sjt.yml exists.
func Load(rootDir string) (*Config, error) {
	path := filepath.Join(rootDir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if err := cfg.validate(path); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// validate checks schema-level constraints. Constraints that depend on the
// merged flag/file view (patterns vs. manifest exclusivity, tag presence)
// belong to the caller.
func (cfg *Config) validate(path string) error {
	if len(cfg.Patterns) > 0 && len(cfg.Files) > 0 {
		return fmt.Errorf("%s: patterns and files are mutually exclusive", path)
	}
	if cfg.PollInterval < 0 {
		return fmt.Errorf("%s: poll_interval must be positive, got %d", path, cfg.PollInterval)
	}
	if cfg.MaxRounds < 0 {
		return fmt.Errorf("%s: max_rounds must be positive, got %d", path, cfg.MaxRounds)
	}

	for i := range cfg.Files {
		e := &cfg.Files[i]
		if e.File == "" {
			return fmt.Errorf("%s: file entry #%d has no file", path, i+1)
		}
		if e.Output == "" {
			return fmt.Errorf("%s: file entry #%d (%s) has no output", path, i+1, e.File)
		}
	}

	return nil
}

// ---------------------------------------------------------------------------
// Starter file
// ---------------------------------------------------------------------------

// Starter is the template written by `sjt init`.
const Starter = `# sjt configuration — defaults for "sjt push".
# Command-line flags override everything in this file.

# Language code of your source files. The {{lang}} token in patterns
# and output templates expands to this value when locating sources.
source_lang: en

# Base URL of the translation service.
# api_url: https://translate.example.com/api/v1

# Grouping tag for submissions. Defaults to the current git branch.
# tag: main

# Seconds between status-polling rounds, and the round limit.
# poll_interval: 5
# max_rounds: 100

# EITHER: patterns containing the {{lang}} token (and optionally globs).
patterns:
  - locales/{{lang}}.json

# OR: an explicit manifest. Remove "patterns" above if you use this.
# files:
#   - file: locales/en.json
#     output: locales/{{lang}}.json
#     additional:
#       - locales/{{lang}}.po
`

// WriteStarter writes the starter sjt.yml into dir. It refuses to
// overwrite an existing file.
func WriteStarter(dir string) (string, error) {
	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); err == nil {
		return path, fmt.Errorf("%s already exists", path)
	}
	if err := os.WriteFile(path, []byte(Starter), 0644); err != nil {
		return path, fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}
