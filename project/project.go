// Package project implements the facade that composes workflow, state, and
// scheduler into the open/close/match/status/group operations
// (spec.md §4.7).
package project

import (
	"path/filepath"
	"sort"

	"github.com/rowhpc/row/cluster"
	"github.com/rowhpc/row/launcher"
	"github.com/rowhpc/row/logger"
	"github.com/rowhpc/row/progress"
	"github.com/rowhpc/row/rowerrors"
	"github.com/rowhpc/row/scheduler"
	"github.com/rowhpc/row/state"
	"github.com/rowhpc/row/value"
	"github.com/rowhpc/row/workflow"
	"github.com/rowhpc/row/workspace"
)

var log = logger.New("project")

// Project owns the resolved workflow, the active cluster's scheduler, and
// the persisted state for a single project root (spec.md §3, "Ownership").
type Project struct {
	Workflow    *workflow.Workflow
	Cluster     *cluster.Cluster
	Launchers   map[string]launcher.Launcher // per-launcher-name, resolved for Cluster
	Scheduler   scheduler.Scheduler
	State       *state.State
	IOThreads   int
}

// Options configures Open.
type Options struct {
	ClusterName      string
	PartitionName    string
	BuiltinClusters  []cluster.Cluster
	BuiltinLaunchers launcher.Configuration
	IOThreads        int
	ProgressSink     progress.Sink
}

// Open performs the single-call sequence spec.md §4.7 describes: load
// workflow, identify cluster, load launchers, construct the scheduler, load
// state, kick off an async active-jobs query while synchronizing the
// workspace, then join and prune inactive submissions.
func Open(dir string, opts Options) (*Project, error) {
	w, err := workflow.Load(dir)
	if err != nil {
		return nil, err
	}

	clusterCfg, err := cluster.Open(opts.BuiltinClusters)
	if err != nil {
		return nil, err
	}
	active, err := clusterCfg.Identify(opts.ClusterName)
	if err != nil {
		return nil, err
	}

	launcherCfg, err := launcher.Open(opts.BuiltinLaunchers)
	if err != nil {
		return nil, err
	}
	allLauncherNames := make([]string, 0, len(launcherCfg.Launchers))
	for name := range launcherCfg.Launchers {
		allLauncherNames = append(allLauncherNames, name)
	}
	resolvedLaunchers, err := launcherCfg.ByCluster(allLauncherNames, active.Name)
	if err != nil {
		return nil, err
	}

	var sched scheduler.Scheduler
	switch active.Scheduler {
	case cluster.SchedulerSlurm:
		sched = &scheduler.Slurm{Cluster: active, PartitionName: opts.PartitionName}
	default:
		sched = &scheduler.Bash{ClusterName: active.Name}
	}

	s, err := state.Load(w.Root, w.ActionNames())
	if err != nil {
		return nil, err
	}

	ioThreads := opts.IOThreads
	if ioThreads <= 0 {
		ioThreads = workspace.DefaultIOThreads
	}

	activeJobsFuture := sched.ActiveJobs(s.JobsSubmittedOn(active.Name))

	workspacePath := filepath.Join(w.Root, w.WorkspacePath)
	actionsProducts := make([]workspace.ActionProducts, len(w.Actions))
	for i, a := range w.Actions {
		actionsProducts[i] = workspace.ActionProducts{Action: a.Name, Products: a.Products}
	}
	if err := s.Synchronize(w.Root, workspacePath, w.ActionNames(), actionsProducts, w.ValueFileName, ioThreads, opts.ProgressSink); err != nil {
		return nil, err
	}

	active_, err := activeJobsFuture.Get()
	if err != nil {
		return nil, err
	}
	s.RemoveInactiveSubmitted(active.Name, active_)

	log.Printf("opened project at %s on cluster %q with %d tracked directories", w.Root, active.Name, len(s.Values))

	return &Project{
		Workflow:  w,
		Cluster:   active,
		Launchers: resolvedLaunchers,
		Scheduler: sched,
		State:     s,
		IOThreads: ioThreads,
	}, nil
}

// Close persists the state caches (spec.md §4.7).
func (p *Project) Close() error {
	return p.State.Save(p.Workflow.Root)
}

// FindMatchingDirectories implements spec.md §4.7's matching rule: for each
// input directory, look up its value; directories absent from the value
// cache are skipped with a warning.
func (p *Project) FindMatchingDirectories(actionName string, directories []string) ([]string, error) {
	action, ok := p.Workflow.Action(actionName)
	if !ok {
		return nil, rowerrors.ActionNotFound(actionName)
	}
	var matched []string
	for _, dir := range directories {
		v, ok := p.State.Values[dir]
		if !ok {
			log.Printf("directory %q is not tracked, skipping", dir)
			continue
		}
		ok, err := action.Group.Matches(v)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, dir)
		}
	}
	return matched, nil
}

// Status buckets a directory can be in, for a given action
// (spec.md §4.7, "Separate by status").
type Status int

const (
	StatusWaiting Status = iota
	StatusEligible
	StatusSubmitted
	StatusCompleted
)

// SeparateByStatus partitions directories into completed/submitted/
// eligible/waiting for actionName (spec.md §4.7).
func (p *Project) SeparateByStatus(actionName string, directories []string) (completed, submitted, eligible, waiting []string, err error) {
	action, ok := p.Workflow.Action(actionName)
	if !ok {
		return nil, nil, nil, nil, rowerrors.ActionNotFound(actionName)
	}
	completedSet := p.State.Completed[actionName]
	submittedSet := p.State.Submitted[actionName]

	for _, dir := range directories {
		if _, ok := completedSet[dir]; ok {
			completed = append(completed, dir)
			continue
		}
		if _, ok := submittedSet[dir]; ok {
			submitted = append(submitted, dir)
			continue
		}
		if p.allPreviousComplete(action, dir) {
			eligible = append(eligible, dir)
			continue
		}
		waiting = append(waiting, dir)
	}
	return completed, submitted, eligible, waiting, nil
}

func (p *Project) allPreviousComplete(action *workflow.Action, dir string) bool {
	for _, prev := range action.PreviousActions {
		if _, ok := p.State.Completed[prev][dir]; !ok {
			return false
		}
	}
	return true
}

// SeparateIntoGroups sorts, optionally groups by sort key, splits/reverses,
// and chunks by maximum_size, per spec.md §4.7.
func (p *Project) SeparateIntoGroups(actionName string, directories []string) ([][]string, error) {
	action, ok := p.Workflow.Action(actionName)
	if !ok {
		return nil, rowerrors.ActionNotFound(actionName)
	}
	if len(directories) == 0 {
		return nil, nil
	}

	sorted := append([]string(nil), directories...)
	sort.Strings(sorted)

	group := action.Group
	var groups [][]string
	if len(group.SortBy) > 0 {
		keys := make(map[string][]interface{}, len(sorted))
		for _, dir := range sorted {
			key, err := sortKey(p.State.Values[dir], group.SortBy)
			if err != nil {
				return nil, err
			}
			keys[dir] = key
		}
		sort.SliceStable(sorted, func(i, j int) bool {
			return lessKey(keys[sorted[i]], keys[sorted[j]])
		})
		if group.ReverseSort {
			reverse(sorted)
		}
		if group.SplitBySortKey {
			groups = splitRuns(sorted, keys)
		} else {
			groups = [][]string{sorted}
		}
	} else {
		if group.ReverseSort {
			reverse(sorted)
		}
		groups = [][]string{sorted}
	}

	if group.MaximumSize != nil {
		var chunked [][]string
		for _, g := range groups {
			chunked = append(chunked, chunk(g, *group.MaximumSize)...)
		}
		groups = chunked
	}
	return groups, nil
}

func sortKey(dirValue interface{}, pointers []string) ([]interface{}, error) {
	key := make([]interface{}, len(pointers))
	for i, p := range pointers {
		v, err := value.MustPointer(dirValue, p)
		if err != nil {
			return nil, err
		}
		key[i] = v
	}
	return key, nil
}

func lessKey(a, b []interface{}) bool {
	for i := range a {
		if i >= len(b) {
			return false
		}
		if value.Less(a[i], b[i]) {
			return true
		}
		if !value.Equal(a[i], b[i]) {
			return false
		}
	}
	return false
}

func equalKey(a, b []interface{}) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !value.Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

func splitRuns(sorted []string, keys map[string][]interface{}) [][]string {
	var groups [][]string
	var current []string
	for i, dir := range sorted {
		if i > 0 && !equalKey(keys[sorted[i-1]], keys[dir]) {
			groups = append(groups, current)
			current = nil
		}
		current = append(current, dir)
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}
	return groups
}

func chunk(dirs []string, size int) [][]string {
	if size <= 0 {
		return [][]string{dirs}
	}
	var out [][]string
	for i := 0; i < len(dirs); i += size {
		end := i + size
		if end > len(dirs) {
			end = len(dirs)
		}
		out = append(out, dirs[i:end])
	}
	return out
}

func reverse(s []string) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
