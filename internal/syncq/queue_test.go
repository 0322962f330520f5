package syncq

import (
	"os"
	"path/filepath"
	"testing"

	"coinforge/internal/bot"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueRoundTrip(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	entries, err := Load()
	require.NoError(t, err)
	assert.Empty(t, entries)

	require.NoError(t, Push(bot.Command{Platform: "cli", RawUserID: "ana", Text: ".draw", IdempotencyKey: "k1"}))
	require.NoError(t, Push(bot.Command{Platform: "cli", RawUserID: "ana", Text: ".buy 01 2", IdempotencyKey: "k2"}))

	entries, err = Load()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.False(t, entries[0].QueuedAt.IsZero())

	cmds := Commands(entries)
	assert.Equal(t, []string{".draw", ".buy 01 2"}, []string{cmds[0].Text, cmds[1].Text})
	assert.Equal(t, "k2", cmds[1].IdempotencyKey)

	info, err := os.Stat(filepath.Join(home, ".cfk", "queue.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	require.NoError(t, Save(entries[1:]))
	entries, err = Load()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "k2", entries[0].Command.IdempotencyKey)
}

func TestLoadEmptyFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	require.NoError(t, os.MkdirAll(filepath.Join(home, ".cfk"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(home, ".cfk", "queue.json"), nil, 0o600))

	entries, err := Load()
	require.NoError(t, err)
	assert.Empty(t, entries)
}
