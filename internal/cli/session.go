package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"payday/internal/game"
)

// ErrNoSession means nobody has run login on this machine yet, or the
// session was cleared.
var ErrNoSession = errors.New("no saved player")

// Session is the player the CLI acts for between invocations.
type Session struct {
	PlayerID   string    `json:"player_id"`
	APIBaseURL string    `json:"api_base_url,omitempty"`
	SavedAt    time.Time `json:"saved_at"`
}

// Dir overrides the session directory. Empty means ~/.payday, shared with
// the offline queue.
var Dir string

func sessionFile() (string, error) {
	dir := Dir
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(home, ".payday")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return filepath.Join(dir, "session.json"), nil
}

// SaveSession writes the session through a temp file so a crash never
// leaves half a session behind.
func SaveSession(s Session) error {
	s.PlayerID = strings.TrimSpace(s.PlayerID)
	if err := game.ValidatePlayerID(s.PlayerID); err != nil {
		return fmt.Errorf("session player id %q: %w", s.PlayerID, err)
	}
	s.APIBaseURL = strings.TrimRight(strings.TrimSpace(s.APIBaseURL), "/")
	if s.SavedAt.IsZero() {
		s.SavedAt = time.Now().UTC()
	}

	path, err := sessionFile()
	if err != nil {
		return err
	}
	raw, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func LoadSession() (Session, error) {
	path, err := sessionFile()
	if err != nil {
		return Session{}, err
	}
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Session{}, ErrNoSession
	}
	if err != nil {
		return Session{}, err
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return Session{}, fmt.Errorf("session %s: %w", path, err)
	}
	if strings.TrimSpace(s.PlayerID) == "" {
		return Session{}, fmt.Errorf("%w: %s has no player id", ErrNoSession, path)
	}
	return s, nil
}

// ClearSession forgets the saved player. Clearing twice is fine.
func ClearSession() error {
	path, err := sessionFile()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
