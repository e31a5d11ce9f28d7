// Package scheduler implements the Scheduler abstraction and its Bash and
// Slurm backends (spec.md §4.8).
package scheduler

import (
	"fmt"

	"github.com/rowhpc/row/launcher"
	"github.com/rowhpc/row/workflow"
	"github.com/rowhpc/row/workspace"
)

// Scheduler composes, submits, and polls the status of scheduler jobs
// (spec.md §4.8). It is a closed set of two variants, represented here as
// an interface per spec.md §9.
type Scheduler interface {
	// MakeScript constructs the text to be executed or submitted.
	MakeScript(action *workflow.Action, directories []string, workspacePath string, directoryValues map[string]interface{}, launchers map[string]launcher.Launcher) (string, error)
	// Submit runs the submission, returning a job ID for queueing schedulers
	// or nil for immediate execution.
	Submit(root string, action *workflow.Action, directories []string, workspacePath string, directoryValues map[string]interface{}, launchers map[string]launcher.Launcher, shouldTerminate func() bool) (*uint32, error)
	// ActiveJobs returns a deferred handle for the subset of jobIDs still
	// active. The Bash backend always returns the empty set.
	ActiveJobs(jobIDs []uint32) *workspace.Future[map[uint32]struct{}]
}

// JobLabel formats the action+directories label used for the Slurm
// --job-name directive: the action name, the first directory, and a "+N"
// suffix (N = number of further directories) when more than one directory
// is present (spec.md §4.8.2, grounded on the original's src/format.rs).
// The --output file name uses the action name alone, and the Bash backend
// does not use JobLabel.
func JobLabel(actionName string, directories []string) string {
	if len(directories) == 0 {
		return actionName
	}
	label := actionName + "-" + directories[0]
	if len(directories) > 1 {
		label += fmt.Sprintf("+%d", len(directories)-1)
	}
	return label
}

func ceilDiv(a, b int64) int64 {
	if b == 0 {
		return 0
	}
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}
