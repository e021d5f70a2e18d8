package credentials

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFilePathUsesXDGDataHome(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("XDG_DATA_HOME", tmp)

	want := filepath.Join(tmp, "sjt", "auth.json")
	if got := FilePath(); got != want {
		t.Fatalf("FilePath() = %q, want %q", got, want)
	}
}

func TestSaveLoadRemoveLifecycle(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("XDG_DATA_HOME", tmp)

	if got := Load(); got != nil {
		t.Fatalf("Load() before save = %#v, want nil", got)
	}

	if err := Save(&Info{Token: "tok-123456789", APIURL: "https://translate.example.com"}); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	path := filepath.Join(tmp, "sjt", "auth.json")
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat auth.json: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Fatalf("auth.json mode = %o, want 600", info.Mode().Perm())
	}

	loaded := Load()
	if loaded == nil || loaded.Token != "tok-123456789" {
		t.Fatalf("Load() = %#v, want stored token", loaded)
	}
	if loaded.APIURL != "https://translate.example.com" {
		t.Fatalf("APIURL = %q, want stored url", loaded.APIURL)
	}

	if err := Remove(); err != nil {
		t.Fatalf("Remove() error: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("auth.json should be removed, stat err=%v", err)
	}
	if err := Remove(); err != nil {
		t.Fatalf("Remove() of missing file should be no-op, got: %v", err)
	}
}

func TestLoadIgnoresCorruptFile(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("XDG_DATA_HOME", tmp)

	dir := filepath.Join(tmp, "sjt")
	if err := os.MkdirAll(dir, 0700); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "auth.json"), []byte("{not json"), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if got := Load(); got != nil {
		t.Fatalf("Load() of corrupt file = %#v, want nil", got)
	}
}

func TestResolveTokenPriority(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("XDG_DATA_HOME", tmp)

	if err := Save(&Info{Token: "stored-token"}); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	t.Setenv(EnvVar, "env-token")

	if got := ResolveToken("flag-token"); got != "flag-token" {
		t.Fatalf("flag should win, got %q", got)
	}
	if got := ResolveToken(""); got != "env-token" {
		t.Fatalf("env should win over store, got %q", got)
	}

	t.Setenv(EnvVar, "")
	if got := ResolveToken(""); got != "stored-token" {
		t.Fatalf("stored token expected, got %q", got)
	}
}

func TestMaskToken(t *testing.T) {
	if got := MaskToken("short"); got != "****" {
		t.Fatalf("MaskToken(short) = %q, want ****", got)
	}
	if got := MaskToken("12345678"); got != "****" {
		t.Fatalf("MaskToken(8 chars) = %q, want ****", got)
	}
	if got := MaskToken("123456789"); got != "1234...6789" {
		t.Fatalf("MaskToken(9 chars) = %q, want 1234...6789", got)
	}
}
