package workflow_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowhpc/row/workflow"
)

const manifest = `
[workspace]
path = "workspace"
value_file = "v.json"

[default.action]
[default.action.resources.processes]
per_submission = 1

[[action]]
name = "one"
command = "touch workspace/{directory}/one"
products = ["one"]

[[action]]
name = "two"
command = "touch workspace/{directory}/two"
products = ["two"]
previous_actions = ["one"]

[action.group]
include = [["/v", "<", 6]]
sort_by = ["/v"]
`

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "workflow.toml"), []byte(content), 0o644))
}

func TestLoad_Basic(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, manifest)

	w, err := workflow.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "workspace", w.WorkspacePath)
	assert.Equal(t, "v.json", w.ValueFileName)
	assert.Len(t, w.Actions, 2)

	one, ok := w.Action("one")
	require.True(t, ok)
	assert.Equal(t, int64(1), one.Resources.Processes.Total(1))

	two, ok := w.Action("two")
	require.True(t, ok)
	assert.Equal(t, []string{"one"}, two.PreviousActions)
}

func TestLoad_SearchesUpward(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, manifest)
	sub := filepath.Join(dir, "a", "b")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	w, err := workflow.Load(sub)
	require.NoError(t, err)
	assert.Equal(t, dir, w.Root)
}

func TestLoad_MissingManifest(t *testing.T) {
	dir := t.TempDir()
	_, err := workflow.Load(dir)
	require.Error(t, err)
}

func TestLoad_UnknownPreviousAction(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[[action]]
name = "two"
command = "echo {directory}"
previous_actions = ["missing"]
`)
	_, err := workflow.Load(dir)
	require.Error(t, err)
}

func TestLoad_DuplicateActionDisagreeing(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[[action]]
name = "one"
command = "echo {directory}"
products = ["a"]

[[action]]
name = "one"
command = "echo {directory}"
products = ["b"]
`)
	_, err := workflow.Load(dir)
	require.Error(t, err)
}
