package snapshot

import (
	"bufio"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// readJSONL decodes every line of path.
func readJSONL(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var rows []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var row map[string]any
		require.NoError(t, sonic.Unmarshal(scanner.Bytes(), &row))
		rows = append(rows, row)
	}
	require.NoError(t, scanner.Err())
	return rows
}

func TestWriteJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "launch_plan.jsonl")
	rows := []map[string]any{
		{"id": "1", "name": "alpha", "completed": int64(0)},
		{"id": "2", "name": "line\nbreak", "completed": nil},
	}

	require.NoError(t, WriteJSONL(path, rows))

	got := readJSONL(t, path)
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0]["id"])
	assert.Equal(t, float64(0), got[0]["completed"])
	assert.Equal(t, "line\nbreak", got[1]["name"])
	assert.Nil(t, got[1]["completed"])
}

func TestWriteJSONL_ReplacesExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rows.jsonl")
	require.NoError(t, WriteJSONL(path, []map[string]any{{"id": "1"}, {"id": "2"}}))
	require.NoError(t, WriteJSONL(path, []map[string]any{{"id": "3"}}))

	got := readJSONL(t, path)
	require.Len(t, got, 1)
	assert.Equal(t, "3", got[0]["id"])

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files are left behind")
}

func TestWriteJSONL_EmptyRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.jsonl")
	require.NoError(t, WriteJSONL(path, nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestWriteJSONL_UnencodableRowLeavesNoFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.jsonl")
	err := WriteJSONL(path, []map[string]any{{"id": "1"}, {"estimate": math.Inf(1)}})
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
