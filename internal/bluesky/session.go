package bluesky

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Session holds the tokens and identity returned by createSession. The
// access token is short-lived; the refresh token is exchanged for a new pair
// when the access token expires.
type Session struct {
	AccessJwt  string `json:"accessJwt"`
	RefreshJwt string `json:"refreshJwt"`
	Handle     string `json:"handle"`
	DID        string `json:"did"`
}

// ErrNoSession is returned when an operation requires a stored session and
// none exists.
var ErrNoSession = errors.New("no session: run login first")

// LoadSession reads a session file written by SaveSession.
func LoadSession(path string) (*Session, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session file: %w", err)
	}
	if sess.AccessJwt == "" || sess.DID == "" {
		return nil, fmt.Errorf("session file %s is incomplete", path)
	}
	return &sess, nil
}

// SaveSession writes the session to path with owner-only permissions,
// creating parent directories as needed.
func SaveSession(path string, sess *Session) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create session directory: %w", err)
	}

	raw, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	raw = append(raw, '\n')

	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	return nil
}

// RemoveSession deletes the session file. Missing files are not an error.
func RemoveSession(path string) error {
	err := os.Remove(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}
