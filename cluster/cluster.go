// Package cluster implements cluster/partition configuration, loading, and
// identification (spec.md §3, §4.2).
package cluster

import (
	"fmt"
	"os"
	"strings"

	"github.com/rowhpc/row/logger"
	"github.com/rowhpc/row/rowerrors"
	"github.com/rowhpc/row/workflow"
)

var log = logger.New("cluster")

// SchedulerKind names which backend a cluster submits through.
type SchedulerKind string

const (
	SchedulerBash  SchedulerKind = "bash"
	SchedulerSlurm SchedulerKind = "slurm"
)

// IdentificationMethod decides whether a cluster is "the current one".
type IdentificationMethod struct {
	Always *bool
	EnvVar string
	EnvEq  string
}

// Matches reports whether this identification method succeeds in the
// current environment.
func (m IdentificationMethod) Matches() bool {
	if m.Always != nil {
		return *m.Always
	}
	if m.EnvVar != "" {
		return os.Getenv(m.EnvVar) == m.EnvEq
	}
	return false
}

// Partition is a cluster queue with capability constraints (spec.md §3).
type Partition struct {
	Name                  string
	MaxCPUs               *int64
	MaxGPUs               *int64
	MinGPUs               *int64
	RequireCPUsMultipleOf *int64
	WarnCPUsMultipleOf    *int64
	RequireGPUsMultipleOf *int64
	WarnGPUsMultipleOf    *int64
	MemPerCPU             string
	MemPerGPU             string
	CPUsPerNode           *int64
	GPUsPerNode           *int64
	PreventAutoSelect     bool
	AccountSuffix         string
}

// Matches reports whether the partition accepts a request for n directories
// of the given resources, following the check order and the warn/require
// distinction from spec.md §4.2, §9 (a warning accepts; a required multiple
// violation rejects).
func (p Partition) Matches(r workflow.Resources, n int) (bool, string) {
	if p.PreventAutoSelect {
		return false, fmt.Sprintf("partition %q prevents auto-selection", p.Name)
	}
	cpus := r.TotalCPUs(n)
	gpus := r.TotalGPUs(n)

	if p.MaxCPUs != nil && cpus > *p.MaxCPUs {
		return false, fmt.Sprintf("partition %q: %d CPUs exceeds max_cpus=%d", p.Name, cpus, *p.MaxCPUs)
	}
	if p.MaxGPUs != nil && gpus > *p.MaxGPUs {
		return false, fmt.Sprintf("partition %q: %d GPUs exceeds max_gpus=%d", p.Name, gpus, *p.MaxGPUs)
	}
	if p.MinGPUs != nil && gpus < *p.MinGPUs {
		return false, fmt.Sprintf("partition %q: %d GPUs is below min_gpus=%d", p.Name, gpus, *p.MinGPUs)
	}
	if p.RequireCPUsMultipleOf != nil && cpus%*p.RequireCPUsMultipleOf != 0 {
		return false, fmt.Sprintf("partition %q: %d CPUs is not a multiple of %d", p.Name, cpus, *p.RequireCPUsMultipleOf)
	}
	if p.WarnCPUsMultipleOf != nil && cpus%*p.WarnCPUsMultipleOf != 0 {
		log.Printf("partition %q: %d CPUs is not a multiple of %d (warning only, partition still accepted)", p.Name, cpus, *p.WarnCPUsMultipleOf)
	}
	if p.RequireGPUsMultipleOf != nil && gpus%*p.RequireGPUsMultipleOf != 0 {
		return false, fmt.Sprintf("partition %q: %d GPUs is not a multiple of %d", p.Name, gpus, *p.RequireGPUsMultipleOf)
	}
	if p.WarnGPUsMultipleOf != nil && gpus%*p.WarnGPUsMultipleOf != 0 {
		log.Printf("partition %q: %d GPUs is not a multiple of %d (warning only, partition still accepted)", p.Name, gpus, *p.WarnGPUsMultipleOf)
	}
	return true, ""
}

// Cluster is a named scheduler target (spec.md §3).
type Cluster struct {
	Name           string
	Identification IdentificationMethod
	Scheduler      SchedulerKind
	SubmitOptions  workflow.SubmitOptions
	Partitions     []Partition
}

// FindPartition implements spec.md §4.2's find_partition: with a name, the
// named partition if it matches; without one, the first matching partition
// in order, accumulating rejection reasons for the error case.
func (c Cluster) FindPartition(name string, r workflow.Resources, n int) (*Partition, error) {
	if name != "" {
		for i := range c.Partitions {
			if c.Partitions[i].Name == name {
				if ok, reason := c.Partitions[i].Matches(r, n); ok {
					return &c.Partitions[i], nil
				} else {
					return nil, rowerrors.PartitionNotFound(reason)
				}
			}
		}
		return nil, rowerrors.PartitionNameNotFound(name)
	}
	var reasons []string
	for i := range c.Partitions {
		ok, reason := c.Partitions[i].Matches(r, n)
		if ok {
			return &c.Partitions[i], nil
		}
		reasons = append(reasons, reason)
	}
	return nil, rowerrors.PartitionNotFound(strings.Join(reasons, "\n"))
}

// Configuration is the merged set of known clusters (spec.md §4.2).
type Configuration struct {
	Clusters []Cluster
}

// Identify picks the active cluster: by explicit name if given, else the
// first whose identification method matches the environment.
func (cfg Configuration) Identify(name string) (*Cluster, error) {
	if name != "" {
		for i := range cfg.Clusters {
			if cfg.Clusters[i].Name == name {
				return &cfg.Clusters[i], nil
			}
		}
		return nil, rowerrors.ClusterNameNotFound(name)
	}
	for i := range cfg.Clusters {
		if cfg.Clusters[i].Identification.Matches() {
			return &cfg.Clusters[i], nil
		}
	}
	return nil, rowerrors.ClusterNotFound()
}

// Merge prepends user clusters (which take precedence) ahead of built-ins,
// per spec.md §4.2 ("user entries precede built-ins").
func Merge(user, builtin []Cluster) Configuration {
	out := make([]Cluster, 0, len(user)+len(builtin))
	out = append(out, user...)
	out = append(out, builtin...)
	return Configuration{Clusters: out}
}
