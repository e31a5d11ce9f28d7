package project_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowhpc/row/project"
	"github.com/rowhpc/row/state"
	"github.com/rowhpc/row/workflow"
)

func mkAction(name string, previous []string) workflow.Action {
	return workflow.Action{Name: name, Command: "touch {directory}/" + name, PreviousActions: previous, Products: []string{name}}
}

func newProjectForStatus(t *testing.T) *project.Project {
	w := workflow.Reindex(&workflow.Workflow{
		Actions: []workflow.Action{mkAction("one", nil), mkAction("two", []string{"one"})},
	})
	s := state.New([]string{"one", "two"})
	for i := 0; i < 10; i++ {
		dir := dirName(i)
		s.Values[dir] = map[string]interface{}{"v": float64(i)}
		s.Completed["one"][dir] = struct{}{}
	}
	return &project.Project{Workflow: w, State: s}
}

func dirName(i int) string {
	return "dir" + string(rune('0'+i))
}

func TestSeparateByStatus_TwoStepCompletion(t *testing.T) {
	p := newProjectForStatus(t)
	var all []string
	for i := 0; i < 10; i++ {
		all = append(all, dirName(i))
	}

	completed, submitted, eligible, waiting, err := p.SeparateByStatus("one", all)
	require.NoError(t, err)
	assert.Len(t, completed, 10)
	assert.Empty(t, submitted)
	assert.Empty(t, eligible)
	assert.Empty(t, waiting)

	completed, submitted, eligible, waiting, err = p.SeparateByStatus("two", all)
	require.NoError(t, err)
	assert.Empty(t, completed)
	assert.Empty(t, submitted)
	assert.Len(t, eligible, 10, "all directories have their previous action complete")
	assert.Empty(t, waiting)
}

func TestFindMatchingDirectories_IncludeConjunction(t *testing.T) {
	w := &workflow.Workflow{}
	s := state.New(nil)
	for i := 0; i < 10; i++ {
		s.Values[dirName(i)] = map[string]interface{}{"v": float64(i)}
	}
	action := workflow.Action{
		Name: "a",
		Group: workflow.Group{
			Include: []workflow.Selector{{All: []workflow.Condition{
				{Pointer: "/v", Op: "<", Value: float64(6)},
				{Pointer: "/v", Op: ">", Value: float64(3)},
			}}},
		},
	}
	w.Actions = []workflow.Action{action}
	p := &project.Project{Workflow: workflow.Reindex(w), State: s}

	var all []string
	for i := 0; i < 10; i++ {
		all = append(all, dirName(i))
	}
	matched, err := p.FindMatchingDirectories("a", all)
	require.NoError(t, err)
	assert.Equal(t, []string{dirName(4), dirName(5)}, matched)
}

func TestSeparateIntoGroups_SortAndSplit(t *testing.T) {
	w := &workflow.Workflow{Actions: []workflow.Action{{
		Name: "a",
		Group: workflow.Group{
			SortBy:         []string{"/j"},
			SplitBySortKey: true,
		},
	}}}
	s := state.New(nil)
	for i := 0; i < 8; i++ {
		s.Values[dirName(i)] = map[string]interface{}{"j": float64((7 - i) / 2)}
	}
	p := &project.Project{Workflow: workflow.Reindex(w), State: s}

	var all []string
	for i := 0; i < 8; i++ {
		all = append(all, dirName(i))
	}
	groups, err := p.SeparateIntoGroups("a", all)
	require.NoError(t, err)
	require.Len(t, groups, 4)
	assert.ElementsMatch(t, []string{dirName(6), dirName(7)}, groups[0])
	assert.ElementsMatch(t, []string{dirName(4), dirName(5)}, groups[1])
	assert.ElementsMatch(t, []string{dirName(2), dirName(3)}, groups[2])
	assert.ElementsMatch(t, []string{dirName(0), dirName(1)}, groups[3])
}

func TestSeparateIntoGroups_MaximumSize(t *testing.T) {
	size := 2
	w := &workflow.Workflow{Actions: []workflow.Action{{
		Name:  "a",
		Group: workflow.Group{MaximumSize: &size},
	}}}
	s := state.New(nil)
	p := &project.Project{Workflow: workflow.Reindex(w), State: s}

	groups, err := p.SeparateIntoGroups("a", []string{"d0", "d1", "d2", "d3", "d4"})
	require.NoError(t, err)
	require.Len(t, groups, 3)
	assert.Len(t, groups[0], 2)
	assert.Len(t, groups[2], 1)
}

func TestSeparateIntoGroups_EmptyInput(t *testing.T) {
	w := &workflow.Workflow{Actions: []workflow.Action{{Name: "a"}}}
	p := &project.Project{Workflow: workflow.Reindex(w), State: state.New(nil)}
	groups, err := p.SeparateIntoGroups("a", nil)
	require.NoError(t, err)
	assert.Empty(t, groups)
}
