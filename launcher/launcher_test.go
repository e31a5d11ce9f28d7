package launcher_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowhpc/row/launcher"
	"github.com/rowhpc/row/workflow"
)

func int64p(v int64) *int64 { return &v }

func TestPrefix_AllTemplates(t *testing.T) {
	mpi := launcher.Launcher{
		Executable:        "srun",
		ProcessesTemplate: "--ntasks=%d",
		ThreadsTemplate:   "--cpus-per-task=%d",
		GPUsTemplate:      "--tres-per-task=gres/gpu:%d",
	}
	resources := workflow.Resources{
		Processes:         workflow.Quantity{PerDirectory: true, Value: 6},
		ThreadsPerProcess: int64p(3),
		GPUsPerProcess:    int64p(8),
	}
	assert.Equal(t, "srun --ntasks=66 --cpus-per-task=3 --tres-per-task=gres/gpu:8 ", mpi.Prefix(resources, 11))
}

func TestPrefix_OmitsUnsetTemplates(t *testing.T) {
	openmp := launcher.Launcher{ThreadsTemplate: "--cpus-per-task=%d"}
	resources := workflow.Resources{
		Processes:         workflow.Quantity{Value: 1},
		ThreadsPerProcess: int64p(4),
	}
	assert.Equal(t, "--cpus-per-task=4 ", openmp.Prefix(resources, 1))
}

func TestPrefix_SkipsTemplateWithoutResourceValue(t *testing.T) {
	l := launcher.Launcher{ThreadsTemplate: "--cpus-per-task=%d"}
	resources := workflow.Resources{Processes: workflow.Quantity{Value: 1}}
	assert.Equal(t, "", l.Prefix(resources, 1))
}

func TestValidate_RequiresDefault(t *testing.T) {
	cfg := launcher.Configuration{Launchers: map[string]map[string]launcher.Launcher{
		"mpi": {"summit": {}},
	}}
	assert.Error(t, cfg.Validate())

	cfg.Launchers["mpi"]["default"] = launcher.Launcher{}
	assert.NoError(t, cfg.Validate())
}

func TestByCluster_FallsBackToDefault(t *testing.T) {
	cfg := launcher.Configuration{Launchers: map[string]map[string]launcher.Launcher{
		"mpi": {
			"default": {Executable: "mpirun"},
			"summit":  {Executable: "jsrun"},
		},
	}}
	resolved, err := cfg.ByCluster([]string{"mpi"}, "anvil")
	require.NoError(t, err)
	assert.Equal(t, "mpirun", resolved["mpi"].Executable)

	resolved, err = cfg.ByCluster([]string{"mpi"}, "summit")
	require.NoError(t, err)
	assert.Equal(t, "jsrun", resolved["mpi"].Executable)
}

func TestCompose_RequiresExactlyOneProcessLauncher(t *testing.T) {
	resources := workflow.Resources{Processes: workflow.Quantity{Value: 4}}

	none := map[string]launcher.Launcher{"openmp": {ThreadsTemplate: "--cpus-per-task=%d"}}
	_, err := launcher.Compose(none, []string{"openmp"}, "sim", resources, 1)
	assert.Error(t, err)

	both := map[string]launcher.Launcher{
		"a": {ProcessesTemplate: "--ntasks=%d"},
		"b": {ProcessesTemplate: "-n %d"},
	}
	_, err = launcher.Compose(both, []string{"a", "b"}, "sim", resources, 1)
	assert.Error(t, err)

	one := map[string]launcher.Launcher{"mpi": {Executable: "srun", ProcessesTemplate: "--ntasks=%d"}}
	out, err := launcher.Compose(one, []string{"mpi"}, "sim", resources, 1)
	require.NoError(t, err)
	assert.Equal(t, "srun --ntasks=4 ", out)
}
