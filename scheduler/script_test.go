package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowhpc/row/launcher"
	"github.com/rowhpc/row/workflow"
)

func TestExecution_RejectsCombinedTemplates(t *testing.T) {
	b := &scriptBuilder{
		action:      &workflow.Action{Name: "a", Command: "cmd {directory} {directories}"},
		directories: []string{"d0"},
	}
	_, err := b.execution()
	assert.Error(t, err)
}

func TestExecution_RejectsNoTemplate(t *testing.T) {
	b := &scriptBuilder{
		action:      &workflow.Action{Name: "a", Command: "cmd --flag"},
		directories: []string{"d0"},
	}
	_, err := b.execution()
	assert.Error(t, err)
}

func TestExecution_PerDirectoryLinesWithPointer(t *testing.T) {
	b := &scriptBuilder{
		action:      &workflow.Action{Name: "a", Command: "cmd {directory} {/v}"},
		directories: []string{"dir_a", "dir_b"},
		directoryValues: map[string]interface{}{
			"dir_a": map[string]interface{}{"v": "name a"},
			"dir_b": map[string]interface{}{"v": float64(7)},
		},
	}
	out, err := b.execution()
	require.NoError(t, err)
	assert.Contains(t, out, "cmd 'dir_a' 'name a'")
	assert.Contains(t, out, "cmd 'dir_b' '7'")
}

func TestExecution_LoopFormWithoutPointer(t *testing.T) {
	b := &scriptBuilder{
		action:      &workflow.Action{Name: "a", Command: "touch {directory}/done"},
		directories: []string{"d0", "d1"},
	}
	out, err := b.execution()
	require.NoError(t, err)
	assert.Contains(t, out, `for directory in "${directories[@]}"; do`)
	assert.Contains(t, out, `touch "$directory"/done`)
}

func TestExecution_DirectoriesForm(t *testing.T) {
	b := &scriptBuilder{
		action:      &workflow.Action{Name: "a", Command: "cmd {directories}"},
		directories: []string{"d0", "d1"},
	}
	out, err := b.execution()
	require.NoError(t, err)
	assert.Contains(t, out, `cmd "${directories[@]}"`)
}

func TestExecution_ComposesLauncherPrefix(t *testing.T) {
	processes := int64(2)
	b := &scriptBuilder{
		action: &workflow.Action{
			Name:      "a",
			Command:   "srun_placeholder cmd {directory}",
			Launchers: []string{"mpi"},
			Resources: workflow.Resources{Processes: workflow.Quantity{Value: processes}},
		},
		directories: []string{"d0"},
		launchers: map[string]launcher.Launcher{
			"mpi": {Executable: "srun", ProcessesTemplate: "--ntasks=%d"},
		},
	}
	out, err := b.execution()
	require.NoError(t, err)
	assert.Contains(t, out, "srun --ntasks=2 ")
}

func TestJobLabel(t *testing.T) {
	assert.Equal(t, "sim", JobLabel("sim", nil))
	assert.Equal(t, "sim-dir0", JobLabel("sim", []string{"dir0"}))
	assert.Equal(t, "sim-dir0+2", JobLabel("sim", []string{"dir0", "dir1", "dir2"}))
}
