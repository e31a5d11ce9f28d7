package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowhpc/row/cluster"
	"github.com/rowhpc/row/workflow"
)

func TestSlurmPreamble_CPUJob(t *testing.T) {
	cpusPerNode := int64(32)
	c := &cluster.Cluster{
		Name: "anvil",
		Partitions: []cluster.Partition{
			{Name: "shared", CPUsPerNode: &cpusPerNode, MemPerCPU: "2G"},
		},
	}
	s := &Slurm{Cluster: c}
	threads := int64(4)
	action := &workflow.Action{
		Name:    "sim",
		Command: "cmd {directory}",
		Resources: workflow.Resources{
			Processes:         workflow.Quantity{Value: 8},
			ThreadsPerProcess: &threads,
			Walltime:          workflow.Quantity{Value: 3600},
		},
	}
	out, err := s.preamble(action, []string{"dir0"})
	require.NoError(t, err)
	assert.Contains(t, out, "#SBATCH --job-name=sim-dir0")
	assert.Contains(t, out, "#SBATCH --ntasks=8")
	assert.Contains(t, out, "#SBATCH --cpus-per-task=4")
	assert.Contains(t, out, "#SBATCH --partition=shared")
	assert.Contains(t, out, "#SBATCH --nodes=1")
	assert.Contains(t, out, "#SBATCH --mem-per-cpu=2G")
	assert.Contains(t, out, "#SBATCH --time=60")
}

func TestSlurmPreamble_GPUJob(t *testing.T) {
	gpusPerNode := int64(4)
	c := &cluster.Cluster{
		Name: "gpu-cluster",
		Partitions: []cluster.Partition{
			{Name: "gpu", GPUsPerNode: &gpusPerNode, MemPerGPU: "16G"},
		},
	}
	s := &Slurm{Cluster: c}
	gpus := int64(1)
	action := &workflow.Action{
		Name:    "sim",
		Command: "cmd {directory}",
		Resources: workflow.Resources{
			Processes:      workflow.Quantity{Value: 8},
			GPUsPerProcess: &gpus,
			Walltime:       workflow.Quantity{Value: 600},
		},
	}
	out, err := s.preamble(action, []string{"dir0"})
	require.NoError(t, err)
	assert.Contains(t, out, "#SBATCH --gpus-per-task=1")
	assert.Contains(t, out, "#SBATCH --nodes=2")
	assert.Contains(t, out, "#SBATCH --mem-per-gpu=16G")
}

func TestSlurmPreamble_AccountWithPartitionSuffix(t *testing.T) {
	c := &cluster.Cluster{
		Name:          "anvil",
		SubmitOptions: workflow.SubmitOptions{Account: "myacct"},
		Partitions: []cluster.Partition{
			{Name: "shared", AccountSuffix: "-gpu"},
		},
	}
	s := &Slurm{Cluster: c}
	action := &workflow.Action{
		Name:    "sim",
		Command: "cmd {directory}",
		Resources: workflow.Resources{
			Processes: workflow.Quantity{Value: 1},
		},
	}
	out, err := s.preamble(action, []string{"dir0"})
	require.NoError(t, err)
	assert.Contains(t, out, "#SBATCH --account=myacct-gpu")
}
