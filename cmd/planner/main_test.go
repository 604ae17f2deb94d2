package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planner/internal/config"
	"planner/internal/domain"
	"planner/internal/engine"
)

func runCLI(t *testing.T, ws string, args ...string) (string, error) {
	t.Helper()
	viper.Reset()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--workspace", ws, "--timezone", "UTC"}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func mustRun(t *testing.T, ws string, args ...string) string {
	t.Helper()
	out, err := runCLI(t, ws, args...)
	require.NoError(t, err, out)
	return out
}

func decodeOut[T any](t *testing.T, out string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(out), &v), out)
	return v
}

func TestInitWritesConfigOnce(t *testing.T) {
	ws := t.TempDir()
	first := decodeOut[map[string]any](t, mustRun(t, ws, "init", "--json"))
	assert.Equal(t, true, first["config_written"])
	_, err := os.Stat(config.Path(ws))
	require.NoError(t, err)

	second := decodeOut[map[string]any](t, mustRun(t, ws, "init", "--json"))
	assert.Equal(t, false, second["config_written"])
}

func TestTaskCommandsRankAndPatch(t *testing.T) {
	ws := t.TempDir()
	mustRun(t, ws, "init")

	low := decodeOut[domain.Task](t, mustRun(t, ws, "task", "add", "Tidy backlog", "-p", "1", "-i", "1", "-c", "0.5", "-e", "1", "--json"))
	high := decodeOut[domain.Task](t, mustRun(t, ws, "task", "add", "Send proposal", "-p", "4", "-i", "3", "-c", "0.7", "-e", "2", "--due", "today", "--tag", "Sales", "--json"))
	assert.InDelta(t, 4.2, high.Score, 0.001)
	assert.Equal(t, domain.StatusInbox, high.Status)
	assert.Equal(t, []string{"Sales"}, high.Tags)
	require.NotNil(t, high.Due)

	list := decodeOut[[]domain.Task](t, mustRun(t, ws, "task", "list", "--json"))
	require.Len(t, list, 2)
	assert.Equal(t, high.ID, list[0].ID)
	assert.Equal(t, low.ID, list[1].ID)

	updated := decodeOut[domain.Task](t, mustRun(t, ws, "task", "update", high.ID, "--due", "none", "-e", "4", "--json"))
	assert.Nil(t, updated.Due)
	assert.InDelta(t, 2.1, updated.Score, 0.001)

	done := decodeOut[domain.Task](t, mustRun(t, ws, "task", "done", low.ID, "--json"))
	assert.Equal(t, domain.StatusDone, done.Status)

	open := decodeOut[[]domain.Task](t, mustRun(t, ws, "task", "list", "--open", "--json"))
	require.Len(t, open, 1)
	assert.Equal(t, high.ID, open[0].ID)

	_, err := runCLI(t, ws, "task", "list", "--sort", "alphabetical")
	assert.ErrorIs(t, err, engine.ErrValidation)

	out := mustRun(t, ws, "task", "board")
	assert.Contains(t, out, "Done (1)")
}

func TestTimeAndRAIDCommands(t *testing.T) {
	ws := t.TempDir()
	mustRun(t, ws, "init")

	client := decodeOut[domain.Client](t, mustRun(t, ws, "client", "add", "Acme", "--key-account", "--json"))
	entry := decodeOut[domain.TimeEntry](t, mustRun(t, ws, "time", "add", "1.5", "--client", client.ID, "--json"))
	assert.True(t, entry.Billable)
	mustRun(t, ws, "time", "add", "0.5", "--billable=false", "--client", client.ID)

	sum := decodeOut[engine.TimeSummary](t, mustRun(t, ws, "time", "summary", "--period", "day", "--json"))
	assert.InDelta(t, 2.0, sum.Total, 0.001)
	assert.InDelta(t, 1.5, sum.Billable, 0.001)

	_, err := runCLI(t, ws, "time", "stop")
	assert.ErrorIs(t, err, engine.ErrNoTimer)

	out := mustRun(t, ws, "raid", "add", "risk", "Key contact leaving", "--severity", "High", "--likelihood", "Medium")
	assert.Contains(t, out, "High")
	assert.Contains(t, out, "6")

	_, err = runCLI(t, ws, "raid", "add", "rumour", "Unknown kind")
	assert.ErrorIs(t, err, engine.ErrValidation)
}

func TestExportImportRoundTrip(t *testing.T) {
	src := t.TempDir()
	mustRun(t, src, "init")
	mustRun(t, src, "client", "add", "Globex")
	mustRun(t, src, "task", "add", "Kickoff")
	snap := filepath.Join(t.TempDir(), "snapshot.json")
	mustRun(t, src, "export", "json", "-o", snap)

	dst := t.TempDir()
	mustRun(t, dst, "init")
	stats := decodeOut[map[string]int](t, mustRun(t, dst, "import", snap, "--json"))
	assert.Equal(t, 1, stats[domain.KindClient])
	assert.Equal(t, 1, stats[domain.KindTask])

	tasks := decodeOut[[]domain.Task](t, mustRun(t, dst, "task", "list", "--json"))
	require.Len(t, tasks, 1)
	assert.Equal(t, "Kickoff", tasks[0].Title)
}

func TestConfigSetRejectsUnknownKey(t *testing.T) {
	ws := t.TempDir()
	mustRun(t, ws, "init")
	mustRun(t, ws, "config", "set", "theme", "light")
	cfg, err := config.Load(ws)
	require.NoError(t, err)
	assert.Equal(t, "light", cfg.Display.Theme)

	_, err = runCLI(t, ws, "config", "set", "display.wallpaper", "kittens")
	assert.Error(t, err)
}

func TestTokenRequiresSecret(t *testing.T) {
	ws := t.TempDir()
	_, err := runCLI(t, ws, "token", "--subject", "dana")
	assert.Error(t, err)

	out := mustRun(t, ws, "--jwt-secret", "s3cret", "token", "--subject", "dana")
	assert.NotEmpty(t, out)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}
