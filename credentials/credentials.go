// Package credentials stores the translation-service API token.
//
// The token lives in the XDG data directory:
//
//	$XDG_DATA_HOME/sjt/auth.json  (default: ~/.local/share/sjt/auth.json)
//
// File permissions are 0600 (owner read/write only).
//
// Lookup order for the token:
//  1. --api-token flag (highest priority)
//  2. SJT_API_TOKEN environment variable
//  3. This credential store
package credentials

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	dataDirName = "sjt"
	fileName    = "auth.json"
)

// EnvVar is the environment variable consulted before the store.
const EnvVar = "SJT_API_TOKEN"

// Info is the stored credential record.
type Info struct {
	// Token is the bearer token sent as `Authorization: Bearer <token>`.
	Token string `json:"token"`
	// APIURL records which service the token was saved for (display only).
	APIURL string `json:"api_url,omitempty"`
}

// ---------------------------------------------------------------------------
// File path
// ---------------------------------------------------------------------------

// dataDir returns the XDG data directory for sjt.
// Respects $XDG_DATA_HOME (falls back to ~/.local/share).
func dataDir() (string, error) {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, dataDirName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", dataDirName), nil
}

// FilePath returns the auth.json file path for display purposes.
func FilePath() string {
	dir, err := dataDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, fileName)
}

// ---------------------------------------------------------------------------
// Load / Save / Remove
// ---------------------------------------------------------------------------

// Load reads the stored credential.
// Returns nil if the file doesn't exist or is invalid.
func Load() *Info {
	path := FilePath()
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return nil
	}
	if info.Token == "" {
		return nil
	}

	return &info
}

// Save writes the credential to disk with 0600 permissions.
func Save(info *Info) error {
	path := FilePath()
	if path == "" {
		return fmt.Errorf("cannot determine credential path")
	}

	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling credentials: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing auth file: %w", err)
	}

	return nil
}

// Remove deletes the stored credential. Removing a missing file is a no-op.
func Remove() error {
	path := FilePath()
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing auth file: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Resolution & display helpers
// ---------------------------------------------------------------------------

// ResolveToken returns the API token following the documented priority:
// flag value, then SJT_API_TOKEN, then the store. Empty when none is set.
func ResolveToken(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv(EnvVar); env != "" {
		return env
	}
	if info := Load(); info != nil {
		return info.Token
	}
	return ""
}

// MaskToken returns a masked version of a token for display.
func MaskToken(token string) string {
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + "..." + token[len(token)-4:]
}
