package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestLoadMissingAndMalformed(t *testing.T) {
	t.Parallel()

	t.Run("missing file returns nil", func(t *testing.T) {
		dir := t.TempDir()
		cfg, err := Load(dir)
		if err != nil {
			t.Fatalf("Load error: %v", err)
		}
		if cfg != nil {
			t.Fatalf("Load expected nil, got %#v", cfg)
		}
	})

	t.Run("malformed yaml", func(t *testing.T) {
		dir := t.TempDir()
		writeConfig(t, dir, "source_lang: [unterminated\n")
		if _, err := Load(dir); err == nil {
			t.Fatal("expected parse error")
		}
	})
}

func TestLoadFullConfig(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeConfig(t, dir, `source_lang: de
tag: release
api_url: https://translate.example.com/api/v1
poll_interval: 10
max_rounds: 20
files:
  - file: locales/de.json
    output: locales/{{lang}}.json
    additional:
      - locales/{{lang}}.po
  - file: root.de.json
    output: root.{{lang}}.json
`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.SourceLang != "de" {
		t.Fatalf("SourceLang = %q, want de", cfg.SourceLang)
	}
	if cfg.Tag != "release" {
		t.Fatalf("Tag = %q, want release", cfg.Tag)
	}
	if cfg.PollInterval != 10 || cfg.MaxRounds != 20 {
		t.Fatalf("PollInterval/MaxRounds = %d/%d, want 10/20", cfg.PollInterval, cfg.MaxRounds)
	}
	want := []FileEntry{
		{File: "locales/de.json", Output: "locales/{{lang}}.json", Additional: []string{"locales/{{lang}}.po"}},
		{File: "root.de.json", Output: "root.{{lang}}.json"},
	}
	if !reflect.DeepEqual(cfg.Files, want) {
		t.Fatalf("Files = %#v, want %#v", cfg.Files, want)
	}
}

func TestLoadValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "patterns and files together",
			content: "patterns:\n  - \"{{lang}}.json\"\nfiles:\n  - file: a.json\n    output: \"{{lang}}.json\"\n",
			wantErr: "mutually exclusive",
		},
		{
			name:    "entry missing file",
			content: "files:\n  - output: locales/{{lang}}.json\n",
			wantErr: "file entry #1 has no file",
		},
		{
			name:    "second entry missing output",
			content: "files:\n  - file: a.json\n    output: \"{{lang}}.json\"\n  - file: b.json\n",
			wantErr: "file entry #2 (b.json) has no output",
		},
		{
			name:    "negative poll interval",
			content: "poll_interval: -3\n",
			wantErr: "poll_interval must be positive",
		},
		{
			name:    "negative max rounds",
			content: "max_rounds: -1\n",
			wantErr: "max_rounds must be positive",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			writeConfig(t, dir, tc.content)
			_, err := Load(dir)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("error %q does not contain %q", err, tc.wantErr)
			}
		})
	}
}

func TestWriteStarter(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path, err := WriteStarter(dir)
	if err != nil {
		t.Fatalf("WriteStarter error: %v", err)
	}
	if path != filepath.Join(dir, FileName) {
		t.Fatalf("path = %q, want %q", path, filepath.Join(dir, FileName))
	}

	// The starter must itself be a loadable config.
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load(starter) error: %v", err)
	}
	if cfg == nil {
		t.Fatal("Load(starter) returned nil")
	}
	if cfg.SourceLang != "en" {
		t.Fatalf("starter SourceLang = %q, want en", cfg.SourceLang)
	}
	if len(cfg.Patterns) == 0 {
		t.Fatal("starter has no patterns")
	}

	if _, err := WriteStarter(dir); err == nil {
		t.Fatal("expected error overwriting existing sjt.yml")
	}
}
