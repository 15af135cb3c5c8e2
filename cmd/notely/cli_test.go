package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notely/internal/account"
	"notely/internal/model"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	cfg := "backend = \"file\"\ndata_dir = \"data\"\nbcrypt_cost = 4\n"
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return path
}

func run(t *testing.T, cfgPath string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetIn(&bytes.Buffer{})
	rootCmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := rootCmd.ExecuteContext(context.Background())
	_ = shutdown()
	return out.String(), err
}

func TestCommandFlow(t *testing.T) {
	cfg := writeConfig(t)

	_, err := run(t, cfg, "whoami")
	require.Error(t, err)

	out, err := run(t, cfg, "register", "-u", "ana", "-p", "secret")
	require.NoError(t, err)
	assert.Contains(t, out, "Welcome, ana.")

	out, err = run(t, cfg, "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "ana")

	_, err = run(t, cfg, "note", "add", "--title", "Roadmap", "--tags", "work, draft", "--color", "blue")
	require.NoError(t, err)

	out, err = run(t, cfg, "note", "list", "--json")
	require.NoError(t, err)
	var notes []model.Note
	require.NoError(t, json.Unmarshal([]byte(out), &notes))
	require.Len(t, notes, 1)
	assert.Equal(t, []string{"work", "draft"}, notes[0].Tags)

	_, err = run(t, cfg, "task", "add", "--title", "Review", "--priority", "high", "--due", "2025-09-01", "--note", "roadmap")
	require.NoError(t, err)

	out, err = run(t, cfg, "task", "list", "--json", "--status", "pending")
	require.NoError(t, err)
	var ts []model.Task
	require.NoError(t, json.Unmarshal([]byte(out), &ts))
	require.Len(t, ts, 1)
	assert.Equal(t, model.PriorityHigh, ts[0].Priority)
	assert.Equal(t, notes[0].ID, ts[0].LinkedNoteID)

	_, err = run(t, cfg, "task", "done", ts[0].ID[:8])
	require.NoError(t, err)

	out, err = run(t, cfg, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Productivity: 100%")
	assert.Contains(t, out, "[x] First step")
	assert.Contains(t, out, "[ ] Organizer")

	out, err = run(t, cfg, "export", "--format", "json", "--out", "-")
	require.NoError(t, err)
	var doc account.Document
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Len(t, doc.Notes, 1)
	assert.Len(t, doc.Tasks, 1)
	assert.Empty(t, doc.User.PasswordHash)

	out, err = run(t, cfg, "note", "rm", "no-such-note")
	require.NoError(t, err)
	assert.Contains(t, out, "nothing deleted")
	out, err = run(t, cfg, "task", "rm", "no-such-task")
	require.NoError(t, err)
	assert.Contains(t, out, "nothing deleted")

	_, err = run(t, cfg, "wipe")
	require.ErrorIs(t, err, model.ErrValidation)

	out, err = run(t, cfg, "wipe", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed 1 notes and 1 tasks")

	_, err = run(t, cfg, "logout")
	require.NoError(t, err)
	_, err = run(t, cfg, "whoami")
	require.Error(t, err)
}

func TestResolveID(t *testing.T) {
	ids := []string{"abc123", "abd456", "xyz"}

	id, err := resolveID("xyz", ids)
	require.NoError(t, err)
	assert.Equal(t, "xyz", id)

	id, err = resolveID("abc", ids)
	require.NoError(t, err)
	assert.Equal(t, "abc123", id)

	_, err = resolveID("ab", ids)
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = resolveID("q", ids)
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = resolveID("", ids)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestParseDue(t *testing.T) {
	d, err := parseDue("")
	require.NoError(t, err)
	assert.Nil(t, d)

	d, err = parseDue("2025-01-31")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC), *d)

	_, err = parseDue("31/01/2025")
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestOneLine(t *testing.T) {
	assert.Equal(t, "a b", oneLine("a\n  b", 10))
	assert.Equal(t, "abc…", oneLine("abcdef", 4))
	assert.Equal(t, "12345678", shortID("1234567890"))
}
