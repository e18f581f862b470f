package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/milohq/milo-memory/internal/hybrid"
	"github.com/milohq/milo-memory/internal/model"
)

// resetFlags restores every changed flag so runs do not leak into each other.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if !f.Changed {
			return
		}
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			sv.Replace(nil)
		} else {
			f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func run(t *testing.T, ws, stdin string, args ...string) (string, string) {
	t.Helper()
	resetFlags(RootCmd)

	var out, errOut bytes.Buffer
	RootCmd.SetOut(&out)
	RootCmd.SetErr(&errOut)
	RootCmd.SetIn(strings.NewReader(stdin))
	RootCmd.SetArgs(append([]string{"--workspace", ws}, args...))
	require.NoError(t, RootCmd.Execute())
	return out.String(), errOut.String()
}

func TestWriteThenHybridSearch(t *testing.T) {
	ws := t.TempDir()
	today := time.Now().Format("2006-01-02")

	out, _ := run(t, ws, "", "db", "--action", "init")
	assert.Contains(t, out, "Databases initialized\n")
	assert.Contains(t, out, "Created ")

	out, _ = run(t, ws, "", "write", "--content", "deploy the api on friday", "--type", "event")
	assert.Equal(t,
		"Logged to "+today+".md: deploy the api on friday\n"+
			"Stored [event] (importance: 5): deploy the api on friday\n", out)

	out, _ = run(t, ws, "", "write", "--update-memory", "--section", "key_facts", "--content", "deploy target is fly.io")
	assert.Equal(t, "Updated MEMORY.md [Key Facts]: deploy target is fly.io\n", out)

	run(t, ws, "", "write", "--content", "prefers green tea", "--type", "preference", "--importance", "8")

	out, _ = run(t, ws, "", "search", "--query", "deploy")
	assert.Contains(t, out, "# Hybrid Search: \"deploy\"")
	assert.Contains(t, out, "## Database (1 matches)\n\n- [event] (imp: 5) deploy the api on friday\n")
	assert.Contains(t, out, "## MEMORY.md (1 matches)")
	assert.Contains(t, out, "## Daily Logs (1 matches)\n\n- ["+today+".md] ")
	assert.Contains(t, out, "Total: 3 results across all sources")

	out, _ = run(t, ws, "", "search", "--query", "deploy", "--output", "json")
	var report hybrid.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Len(t, report.Database, 1)
	assert.Len(t, report.Curated, 1)
	assert.Len(t, report.Logs, 1)

	out, _ = run(t, ws, "", "search", "--query", "nothing-like-this")
	assert.Contains(t, out, "No results found for 'nothing-like-this'")
}

func TestSearchRequiresQuery(t *testing.T) {
	out, errOut := run(t, t.TempDir(), "", "search")
	assert.Empty(t, out)
	assert.Contains(t, errOut, "query")
}

func TestDBActions(t *testing.T) {
	ws := t.TempDir()
	for _, c := range []string{"alpha", "beta", "gamma"} {
		run(t, ws, "", "write", "--content", c)
	}
	for _, c := range []string{"likes tea", "likes jazz"} {
		run(t, ws, "", "write", "--content", c, "--type", "preference")
	}

	out, _ := run(t, ws, "", "db", "--action", "stats")
	assert.Equal(t, "Total entries: 5\n  fact: 3\n  preference: 2\n", out)

	out, _ = run(t, ws, "", "db", "--action", "list", "--type", "preference")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "[5] [preference] (imp: 5) likes jazz  ("), lines[0])

	out, _ = run(t, ws, "", "db", "--action", "search", "--query", "LIKES")
	assert.Contains(t, out, "likes tea")
	assert.Contains(t, out, "likes jazz")

	out, _ = run(t, ws, "", "db", "--action", "delete", "--id", "1")
	assert.Equal(t, "Deleted 1 entry(ies) with id=1\n", out)
	out, _ = run(t, ws, "", "db", "--action", "delete", "--id", "1")
	assert.Equal(t, "Deleted 0 entry(ies) with id=1\n", out)

	_, errOut := run(t, ws, "", "db", "--action", "search")
	assert.Contains(t, errOut, "--query required for search")
	_, errOut = run(t, ws, "", "db", "--action", "delete")
	assert.Contains(t, errOut, "--id required for delete")
	_, errOut = run(t, ws, "", "db", "--action", "vacuum")
	assert.Contains(t, errOut, "unknown action")

	out, _ = run(t, ws, "", "db", "--action", "search", "--query", "zzz")
	assert.Equal(t, "No results for 'zzz'\n", out)
}

func TestDBStatsYAML(t *testing.T) {
	ws := t.TempDir()
	run(t, ws, "", "write", "--content", "alpha")

	out, _ := run(t, ws, "", "db", "--action", "stats", "--output", "yaml")
	assert.Contains(t, out, "total: 1\n")
	assert.Contains(t, out, "per_type:\n  fact: 1\n")
}

func TestWriteValidation(t *testing.T) {
	ws := t.TempDir()

	out, errOut := run(t, ws, "", "write", "--content", "  ")
	assert.Empty(t, out)
	assert.Contains(t, errOut, "--content is required")

	out, errOut = run(t, ws, "", "write", "--content", "x", "--importance", "11")
	assert.Empty(t, out)
	assert.Contains(t, errOut, "importance")

	out, _ = run(t, ws, "", "write", "--update-memory", "--content", "x")
	assert.Equal(t, "MEMORY.md not found\n", out)

	_, errOut = run(t, ws, "", "write", "--content", "x", "--type", "event", "--date", "yesterday")
	assert.Contains(t, errOut, "invalid date")
}

func TestWriteRejectsBadImportanceBeforeLogging(t *testing.T) {
	ws := t.TempDir()

	out, errOut := run(t, ws, "", "write", "--content", "x", "--type", "event", "--importance", "11", "--date", "2026-10-15")
	assert.Empty(t, out)
	assert.Contains(t, errOut, "importance must be between 1 and 10, got 11")
	assert.NoFileExists(t, filepath.Join(ws, "memory", "logs", "2026-10-15.md"))

	out, errOut = run(t, ws, "", "write", "--content", "y", "--importance", "0")
	assert.Empty(t, out)
	assert.Contains(t, errOut, "importance must be between 1 and 10, got 0")

	out, _ = run(t, ws, "", "db", "--action", "stats")
	assert.Equal(t, "Total entries: 0\n", out)
}

func TestSemantic(t *testing.T) {
	ws := t.TempDir()

	out, _ := run(t, ws, "", "semantic", "--query", "red car")
	assert.Equal(t, "No memory entries found\n", out)

	run(t, ws, "", "write", "--content", "red car parked outside")
	run(t, ws, "", "write", "--content", "blue bicycle")
	run(t, ws, "", "write", "--content", "a red apple")

	out, _ = run(t, ws, "", "semantic", "--query", "red car", "--mode", "substring")
	assert.Equal(t,
		"[1] (score: 1.00) [fact] red car parked outside\n"+
			"[3] (score: 0.50) [fact] a red apple\n", out)

	out, _ = run(t, ws, "", "semantic", "--query", "zebra", "--mode", "substring")
	assert.Equal(t, "No matches for 'zebra'\n", out)

	out, _ = run(t, ws, "", "semantic", "--query", "zebra")
	assert.Equal(t, "No semantically similar results for 'zebra'\n", out)

	out, _ = run(t, ws, "", "semantic", "--query", "bicycle")
	assert.True(t, strings.HasPrefix(out, "[2] (score: "), out)

	_, errOut := run(t, ws, "", "semantic", "--query", "x", "--mode", "vectors")
	assert.Contains(t, errOut, "unknown mode")
}

func TestReadSentinels(t *testing.T) {
	ws := t.TempDir()

	out, _ := run(t, ws, "", "read", "--format", "raw", "--date", "2026-01-05")
	assert.Equal(t, "(MEMORY.md not found)\n\n---\n\n(No log for 2026-01-05)\n", out)

	run(t, ws, "", "write", "--content", "shipped v2", "--type", "event", "--date", "2026-01-05")
	out, _ = run(t, ws, "", "read", "--date", "2026-01-05")
	assert.Contains(t, out, "# Daily Log: 2026-01-05")
	assert.Contains(t, out, "] shipped v2")
	assert.Contains(t, out, "- [event] (importance: 5) shipped v2")

	out, _ = run(t, ws, "", "read", "--format", "json", "--date", "2026-01-05")
	var view hybrid.ContextView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.True(t, view.TodayFound)
	assert.False(t, view.CuratedFound)
	require.Len(t, view.Entries, 1)
}

func TestExportImport(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	run(t, src, "", "write", "--content", "first", "--importance", "9")
	run(t, src, "", "write", "--content", "second", "--type", "insight")

	dump, _ := run(t, src, "", "export")
	var entries []model.Entry
	require.NoError(t, json.Unmarshal([]byte(dump), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "first", entries[0].Content)

	out, _ := run(t, dst, dump, "import")
	assert.Equal(t, `{"ok":true,"imported":2}`+"\n", out)

	out, _ = run(t, dst, "", "db", "--action", "stats")
	assert.Equal(t, "Total entries: 2\n  fact: 1\n  insight: 1\n", out)

	for _, format := range []string{"TEXT", " text", ""} {
		out, errOut := run(t, src, "", "export", "--output", format)
		assert.Empty(t, errOut, format)
		assert.JSONEq(t, dump, out, format)
	}
}

func TestTaskLifecycle(t *testing.T) {
	ws := t.TempDir()

	out, _ := run(t, ws, "", "task", "add", "fix", "the", "printer", "--source", "chat")
	var task model.Task
	require.NoError(t, json.Unmarshal([]byte(out), &task))
	assert.Equal(t, "fix the printer", task.Request)
	assert.Equal(t, model.TaskPending, task.Status)
	require.Len(t, task.ID, 26)

	out, _ = run(t, ws, "", "task", "done", task.ID, "--summary", "replaced toner")
	require.NoError(t, json.Unmarshal([]byte(out), &task))
	assert.Equal(t, model.TaskDone, task.Status)
	assert.NotNil(t, task.CompletedAt)

	out, _ = run(t, ws, "", "task", "list")
	assert.Contains(t, out, task.ID+" [done] fix the printer")
	assert.Contains(t, out, "-> replaced toner")

	out, _ = run(t, ws, "", "task", "list", "--status", "pending")
	assert.Equal(t, "No tasks found\n", out)
}

func TestWriteOutputFormats(t *testing.T) {
	v := map[string]int{"total": 2}
	text := func(w io.Writer) error {
		_, err := io.WriteString(w, "two\n")
		return err
	}

	var b bytes.Buffer
	require.NoError(t, writeOutput(&b, "", v, text))
	assert.Equal(t, "two\n", b.String())

	b.Reset()
	require.NoError(t, writeOutput(&b, "JSON", v, text))
	assert.JSONEq(t, `{"total":2}`, b.String())

	b.Reset()
	require.NoError(t, writeOutput(&b, "yaml", v, text))
	assert.Equal(t, "total: 2\n", b.String())

	b.Reset()
	require.NoError(t, writeOutput(&b, " Text", v, nil))
	assert.JSONEq(t, `{"total":2}`, b.String())

	assert.Error(t, writeOutput(&b, "xml", v, text))
}

func TestWriteMarkdownPlainWhenPiped(t *testing.T) {
	var b bytes.Buffer
	require.NoError(t, writeMarkdown(&b, "# Title\n", true))
	assert.Equal(t, "# Title\n", b.String())
}
