package cluster

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/rowhpc/row/rowerrors"
	"github.com/rowhpc/row/workflow"
)

type rawIdentification struct {
	Always *bool  `toml:"always"`
	EnvVar string `toml:"env_var"`
	EnvEq  string `toml:"env_equals"`
}

func (r rawIdentification) resolve() IdentificationMethod {
	return IdentificationMethod{Always: r.Always, EnvVar: r.EnvVar, EnvEq: r.EnvEq}
}

type rawPartition struct {
	Name                  string `toml:"name"`
	MaxCPUs               *int64 `toml:"max_cpus"`
	MaxGPUs               *int64 `toml:"max_gpus"`
	MinGPUs               *int64 `toml:"min_gpus"`
	RequireCPUsMultipleOf *int64 `toml:"require_cpus_multiple_of"`
	WarnCPUsMultipleOf    *int64 `toml:"warn_cpus_multiple_of"`
	RequireGPUsMultipleOf *int64 `toml:"require_gpus_multiple_of"`
	WarnGPUsMultipleOf    *int64 `toml:"warn_gpus_multiple_of"`
	MemPerCPU             string `toml:"mem_per_cpu"`
	MemPerGPU             string `toml:"mem_per_gpu"`
	CPUsPerNode           *int64 `toml:"cpus_per_node"`
	GPUsPerNode           *int64 `toml:"gpus_per_node"`
	PreventAutoSelect     bool   `toml:"prevent_auto_select"`
	AccountSuffix         string `toml:"account_suffix"`
}

func (r rawPartition) resolve() Partition {
	return Partition{
		Name:                  r.Name,
		MaxCPUs:               r.MaxCPUs,
		MaxGPUs:               r.MaxGPUs,
		MinGPUs:               r.MinGPUs,
		RequireCPUsMultipleOf: r.RequireCPUsMultipleOf,
		WarnCPUsMultipleOf:    r.WarnCPUsMultipleOf,
		RequireGPUsMultipleOf: r.RequireGPUsMultipleOf,
		WarnGPUsMultipleOf:    r.WarnGPUsMultipleOf,
		MemPerCPU:             r.MemPerCPU,
		MemPerGPU:             r.MemPerGPU,
		CPUsPerNode:           r.CPUsPerNode,
		GPUsPerNode:           r.GPUsPerNode,
		PreventAutoSelect:     r.PreventAutoSelect,
		AccountSuffix:         r.AccountSuffix,
	}
}

type rawCluster struct {
	Name           string               `toml:"name"`
	Identification rawIdentification    `toml:"identification"`
	Scheduler      string               `toml:"scheduler"`
	SubmitOptions  rawSubmitOptionsFlat `toml:"submit_options"`
	Partition      []rawPartition       `toml:"partition"`
}

// rawSubmitOptionsFlat mirrors workflow's SubmitOptions for the cluster's
// scheduler-global options (spec.md §3, Cluster.global submit options).
type rawSubmitOptionsFlat struct {
	Setup   string   `toml:"setup"`
	Account string   `toml:"account"`
	Custom  []string `toml:"custom"`
}

func (r rawCluster) resolve() Cluster {
	partitions := make([]Partition, len(r.Partition))
	for i, p := range r.Partition {
		partitions[i] = p.resolve()
	}
	kind := SchedulerBash
	if r.Scheduler == "slurm" {
		kind = SchedulerSlurm
	}
	return Cluster{
		Name:           r.Name,
		Identification: r.Identification.resolve(),
		Scheduler:      kind,
		SubmitOptions: workflow.SubmitOptions{
			Setup:   r.SubmitOptions.Setup,
			Account: r.SubmitOptions.Account,
			Custom:  r.SubmitOptions.Custom,
		},
		Partitions: partitions,
	}
}

type rawConfig struct {
	Cluster []rawCluster `toml:"cluster"`
}

// ConfigPath returns $ROW_HOME/.config/row/clusters.toml, falling back to
// the user home directory when ROW_HOME is unset (spec.md §6).
func ConfigPath() (string, error) {
	base := os.Getenv("ROW_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", rowerrors.FileRead("$HOME", err)
		}
		base = home
	}
	return filepath.Join(base, ".config", "row", "clusters.toml"), nil
}

// Open loads the user cluster config (if present) and merges it ahead of
// builtin, the out-of-scope built-in catalog (spec.md §1).
func Open(builtin []Cluster) (Configuration, error) {
	path, err := ConfigPath()
	if err != nil {
		return Configuration{}, err
	}
	var user []Cluster
	data, err := os.ReadFile(path)
	if err == nil {
		var raw rawConfig
		if _, err := toml.Decode(string(data), &raw); err != nil {
			return Configuration{}, rowerrors.TOMLParse(path, err)
		}
		user = make([]Cluster, len(raw.Cluster))
		for i, c := range raw.Cluster {
			user[i] = c.resolve()
		}
	} else if !os.IsNotExist(err) {
		return Configuration{}, rowerrors.FileRead(path, err)
	}
	return Merge(user, builtin), nil
}
