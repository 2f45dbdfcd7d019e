// Package syncq keeps CLI writes that could not reach the API so they can
// be replayed later with their original idempotency keys.
package syncq

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
)

type Command struct {
	Method         string         `json:"method"`
	Path           string         `json:"path"`
	Body           map[string]any `json:"body,omitempty"`
	IdempotencyKey string         `json:"idempotency_key"`
}

// Dir overrides the queue directory. Empty means ~/.payday.
var Dir string

func queuePath() (string, error) {
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
	return filepath.Join(dir, "queue.json"), nil
}

func Load() ([]Command, error) {
	path, err := queuePath()
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Command{}, nil
		}
		return nil, err
	}
	if len(raw) == 0 {
		return []Command{}, nil
	}
	var out []Command
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func Save(commands []Command) error {
	path, err := queuePath()
	if err != nil {
		return err
	}
	raw, err := json.MarshalIndent(commands, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o600)
}

func Push(cmd Command) error {
	commands, err := Load()
	if err != nil {
		return err
	}
	commands = append(commands, cmd)
	return Save(commands)
}

// Sender performs one queued request.
type Sender func(ctx context.Context, c Command) error

// Replay sends queued commands in order. Commands for which keep returns
// true after a failure stay queued; the rest are dropped.
func Replay(ctx context.Context, send Sender, keep func(error) bool) (sent int, failed []error, err error) {
	queue, err := Load()
	if err != nil {
		return 0, nil, err
	}
	remaining := make([]Command, 0, len(queue))
	for _, c := range queue {
		if err := send(ctx, c); err != nil {
			failed = append(failed, err)
			if keep(err) {
				remaining = append(remaining, c)
			}
			continue
		}
		sent++
	}
	if err := Save(remaining); err != nil {
		return sent, failed, err
	}
	return sent, failed, nil
}
