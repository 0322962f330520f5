package syncq

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"coinforge/internal/bot"
)

// Entry is a chat command that could not reach the server. It is replayed
// later through /v1/sync/replay with its original idempotency key.
type Entry struct {
	Command  bot.Command `json:"command"`
	QueuedAt time.Time   `json:"queued_at"`
}

func queuePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".cfk")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return filepath.Join(dir, "queue.json"), nil
}

func Load() ([]Entry, error) {
	path, err := queuePath()
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Entry{}, nil
		}
		return nil, err
	}
	if len(raw) == 0 {
		return []Entry{}, nil
	}
	var out []Entry
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func Save(entries []Entry) error {
	path, err := queuePath()
	if err != nil {
		return err
	}
	raw, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o600)
}

func Push(cmd bot.Command) error {
	entries, err := Load()
	if err != nil {
		return err
	}
	entries = append(entries, Entry{Command: cmd, QueuedAt: time.Now().UTC()})
	return Save(entries)
}

func Commands(entries []Entry) []bot.Command {
	out := make([]bot.Command, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Command)
	}
	return out
}
