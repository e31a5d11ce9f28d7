package state_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowhpc/row/state"
	"github.com/rowhpc/row/workspace"
)

func TestLoad_MissingFilesYieldEmpty(t *testing.T) {
	root := t.TempDir()
	s, err := state.Load(root, []string{"one", "two"})
	require.NoError(t, err)
	assert.Empty(t, s.Values)
	assert.Contains(t, s.Completed, "one")
	assert.Contains(t, s.Completed, "two")
}

func TestSaveThenLoad_RoundTrips(t *testing.T) {
	root := t.TempDir()
	workspaceDir := filepath.Join(root, "workspace")
	require.NoError(t, os.MkdirAll(filepath.Join(workspaceDir, "dir0"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(workspaceDir, "dir0", "v.json"), []byte(`{"v": 1}`), 0o644))
	require.NoError(t, state.WriteStagedCompletion(root, map[string]map[string]struct{}{
		"one": {"dir0": {}},
	}))

	s, err := state.Load(root, []string{"one"})
	require.NoError(t, err)

	// Populate Values and Completed through Synchronize so their modified
	// flags are set the way production code sets them.
	require.NoError(t, s.Synchronize(root, workspaceDir, []string{"one"}, []workspace.ActionProducts{
		{Action: "one", Products: nil},
	}, "v.json", 2, nil))
	require.Equal(t, map[string]interface{}{"v": float64(1)}, s.Values["dir0"])
	require.Contains(t, s.Completed["one"], "dir0")
	s.AddSubmitted("one", []string{"dir0"}, "cluster-a", 42)

	require.NoError(t, saveAllForce(s, root))

	reloaded, err := state.Load(root, []string{"one"})
	require.NoError(t, err)
	assert.Equal(t, s.Values, reloaded.Values)
	assert.Equal(t, s.Completed, reloaded.Completed)
	assert.Equal(t, s.Submitted, reloaded.Submitted)
}

// saveAllForce marks the submitted section modified and saves; the values
// and completed sections must already be marked modified (for example by
// Synchronize) for Save to write them.
func saveAllForce(s *state.State, root string) error {
	forceModified(s)
	return s.Save(root)
}

func forceModified(s *state.State) {
	// Touch the submitted section through its public mutator; Values and
	// Completed are marked modified only by Synchronize.
	s.AddSubmitted("__touch__", nil, "", 0)
	delete(s.Submitted, "__touch__")
}

func TestRemoveInactiveSubmitted(t *testing.T) {
	root := t.TempDir()
	s, err := state.Load(root, []string{"one"})
	require.NoError(t, err)

	s.AddSubmitted("one", []string{"dirA"}, "cluster-a", 1)
	s.AddSubmitted("one", []string{"dirB"}, "cluster-a", 2)
	s.AddSubmitted("one", []string{"dirC"}, "cluster-b", 3)

	s.RemoveInactiveSubmitted("cluster-a", map[uint32]struct{}{1: {}})

	_, hasA := s.Submitted["one"]["dirA"]
	_, hasB := s.Submitted["one"]["dirB"]
	_, hasC := s.Submitted["one"]["dirC"]
	assert.True(t, hasA)
	assert.False(t, hasB, "job 2 is not active on cluster-a, should be removed")
	assert.True(t, hasC, "dirC is on a different cluster, should be retained regardless of active set")
}

func TestWriteStagedCompletion_MergedBySynchronize(t *testing.T) {
	root := t.TempDir()
	workspaceDir := filepath.Join(root, "workspace")
	require.NoError(t, os.MkdirAll(filepath.Join(workspaceDir, "dirA"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(workspaceDir, "dirB"), 0o755))

	require.NoError(t, state.WriteStagedCompletion(root, map[string]map[string]struct{}{
		"one": {"dirA": {}},
	}))
	require.NoError(t, state.WriteStagedCompletion(root, map[string]map[string]struct{}{
		"one": {"dirB": {}},
	}))

	s, err := state.Load(root, []string{"one"})
	require.NoError(t, err)
	require.NoError(t, s.Synchronize(root, workspaceDir, []string{"one"}, []workspace.ActionProducts{
		{Action: "one", Products: nil},
	}, "", 2, nil))

	assert.Contains(t, s.Completed["one"], "dirA")
	assert.Contains(t, s.Completed["one"], "dirB")

	require.NoError(t, s.SaveCompleted(root))
	entries, err := os.ReadDir(filepath.Join(root, ".row", "completed"))
	require.NoError(t, err)
	assert.Empty(t, entries, "staged packs must be deleted after a successful merge+save")
}
