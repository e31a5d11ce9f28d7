package cluster_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowhpc/row/cluster"
	"github.com/rowhpc/row/workflow"
)

func always(b bool) cluster.IdentificationMethod {
	v := b
	return cluster.IdentificationMethod{Always: &v}
}

func TestIdentify_ExplicitName(t *testing.T) {
	cfg := cluster.Configuration{Clusters: []cluster.Cluster{
		{Name: "A", Identification: always(false)},
		{Name: "B", Identification: always(true)},
	}}
	c, err := cfg.Identify("A")
	require.NoError(t, err)
	assert.Equal(t, "A", c.Name)
}

func TestIdentify_FirstMatchingEnv(t *testing.T) {
	os.Unsetenv("X")
	cfg := cluster.Configuration{Clusters: []cluster.Cluster{
		{Name: "A", Identification: always(false)},
		{Name: "B", Identification: cluster.IdentificationMethod{EnvVar: "X", EnvEq: "b"}},
		{Name: "C", Identification: always(true)},
	}}
	c, err := cfg.Identify("")
	require.NoError(t, err)
	assert.Equal(t, "C", c.Name)

	os.Setenv("X", "b")
	defer os.Unsetenv("X")
	c, err = cfg.Identify("")
	require.NoError(t, err)
	assert.Equal(t, "B", c.Name)
}

func TestIdentify_NotFound(t *testing.T) {
	cfg := cluster.Configuration{}
	_, err := cfg.Identify("")
	assert.Error(t, err)
	_, err = cfg.Identify("missing")
	assert.Error(t, err)
}

func TestPartition_MatchesCaps(t *testing.T) {
	maxCPUs := int64(8)
	p := cluster.Partition{Name: "small", MaxCPUs: &maxCPUs}
	r := workflow.Resources{Processes: workflow.Quantity{Value: 4}}
	ok, _ := p.Matches(r, 1)
	assert.True(t, ok)

	rBig := workflow.Resources{Processes: workflow.Quantity{Value: 16}}
	ok, reason := p.Matches(rBig, 1)
	assert.False(t, ok)
	assert.NotEmpty(t, reason)
}

func TestPartition_WarnMultipleOfStillAccepts(t *testing.T) {
	warnOf := int64(4)
	p := cluster.Partition{Name: "p", WarnCPUsMultipleOf: &warnOf}
	r := workflow.Resources{Processes: workflow.Quantity{Value: 3}}
	ok, _ := p.Matches(r, 1)
	assert.True(t, ok, "warn_cpus_multiple_of must not reject, only warn")
}

func TestPartition_RequireMultipleOfRejects(t *testing.T) {
	reqOf := int64(4)
	p := cluster.Partition{Name: "p", RequireCPUsMultipleOf: &reqOf}
	r := workflow.Resources{Processes: workflow.Quantity{Value: 3}}
	ok, _ := p.Matches(r, 1)
	assert.False(t, ok)
}

func TestFindPartition_AccumulatesReasons(t *testing.T) {
	maxCPUs := int64(1)
	c := cluster.Cluster{Partitions: []cluster.Partition{
		{Name: "a", MaxCPUs: &maxCPUs},
		{Name: "b", MaxCPUs: &maxCPUs},
	}}
	r := workflow.Resources{Processes: workflow.Quantity{Value: 4}}
	_, err := c.FindPartition("", r, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a")
	assert.Contains(t, err.Error(), "b")
}
