// Package state implements the persisted per-project cache: directory
// values, completed actions, submitted jobs, and the staged-completion
// merge protocol (spec.md §3, §4.6).
package state

// SubmittedJob records the cluster and scheduler job ID a directory was
// submitted under for a given action (spec.md §3, State.submitted).
type SubmittedJob struct {
	Cluster string `json:"cluster" cbor:"cluster"`
	JobID   uint32 `json:"job_id" cbor:"job_id"`
}

// State is the in-memory form of the persisted cache (spec.md §3, State).
type State struct {
	Values    map[string]interface{}             // directory -> value (nil when no value file configured)
	Completed map[string]map[string]struct{}     // action -> set of directories
	Submitted map[string]map[string]SubmittedJob // action -> directory -> job

	valuesModified    bool
	completedModified bool
	submittedModified bool

	stagedFiles []string // staging pack paths merged into Completed, pending deletion on Save
}

// New returns an empty State with a completed-set entry for every action
// name (spec.md §4.6, "read" — ensures a key for every current action).
func New(actionNames []string) *State {
	s := &State{
		Values:    map[string]interface{}{},
		Completed: map[string]map[string]struct{}{},
		Submitted: map[string]map[string]SubmittedJob{},
	}
	for _, name := range actionNames {
		s.Completed[name] = map[string]struct{}{}
	}
	return s
}

// ListDirectories returns the directory names currently tracked in Values.
func (s *State) ListDirectories() []string {
	names := make([]string, 0, len(s.Values))
	for name := range s.Values {
		names = append(names, name)
	}
	return names
}

// AddSubmitted inserts a submitted-job entry for each directory under
// action (spec.md §4.6).
func (s *State) AddSubmitted(action string, directories []string, cluster string, jobID uint32) {
	if s.Submitted[action] == nil {
		s.Submitted[action] = map[string]SubmittedJob{}
	}
	for _, d := range directories {
		s.Submitted[action][d] = SubmittedJob{Cluster: cluster, JobID: jobID}
	}
	s.submittedModified = true
}

// RemoveInactiveSubmitted drops submitted entries for directories on
// cluster whose job is not in active (spec.md §4.6): entries are retained
// when their cluster differs from cluster, or their job ID is in active.
func (s *State) RemoveInactiveSubmitted(cluster string, active map[uint32]struct{}) {
	changed := false
	for action, byDir := range s.Submitted {
		for dir, job := range byDir {
			if job.Cluster != cluster {
				continue
			}
			if _, ok := active[job.JobID]; ok {
				continue
			}
			delete(byDir, dir)
			changed = true
		}
		s.Submitted[action] = byDir
	}
	if changed {
		s.submittedModified = true
	}
}

// JobsSubmittedOn returns the set of job IDs currently recorded as
// submitted on cluster, across all actions.
func (s *State) JobsSubmittedOn(cluster string) []uint32 {
	seen := map[uint32]struct{}{}
	for _, byDir := range s.Submitted {
		for _, job := range byDir {
			if job.Cluster == cluster {
				seen[job.JobID] = struct{}{}
			}
		}
	}
	out := make([]uint32, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	return out
}
