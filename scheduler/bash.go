package scheduler

import (
	"bytes"
	"fmt"
	"os/exec"
	"time"

	"github.com/rowhpc/row/launcher"
	"github.com/rowhpc/row/logger"
	"github.com/rowhpc/row/rowerrors"
	"github.com/rowhpc/row/workflow"
	"github.com/rowhpc/row/workspace"
)

var bashLog = logger.New("scheduler:bash")

// Bash executes actions immediately as a local subprocess
// (spec.md §4.8, §4.8.3).
type Bash struct {
	ClusterName string
	PollEvery   time.Duration // default 1ms, per spec.md §5
}

var _ Scheduler = (*Bash)(nil)

func (b *Bash) MakeScript(action *workflow.Action, directories []string, workspacePath string, directoryValues map[string]interface{}, launchers map[string]launcher.Launcher) (string, error) {
	sb := &scriptBuilder{
		action:          action,
		directories:     directories,
		workspacePath:   workspacePath,
		directoryValues: directoryValues,
		launchers:       launchers,
		clusterName:     b.ClusterName,
	}
	return sb.build()
}

// Submit forks bash, feeds it the script on stdin, and polls for
// completion, forwarding SIGINT when shouldTerminate becomes true
// (spec.md §4.8.3). Bash always runs immediately, so the returned job ID is
// always nil.
func (b *Bash) Submit(root string, action *workflow.Action, directories []string, workspacePath string, directoryValues map[string]interface{}, launchers map[string]launcher.Launcher, shouldTerminate func() bool) (*uint32, error) {
	if shouldTerminate != nil && shouldTerminate() {
		return nil, rowerrors.Interrupted()
	}
	script, err := b.MakeScript(action, directories, workspacePath, directoryValues, launchers)
	if err != nil {
		return nil, err
	}

	cmd := exec.Command("bash")
	cmd.Dir = root
	cmd.Stdin = bytes.NewBufferString(script)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, rowerrors.SpawnProcess("bash", err)
	}
	bashLog.Printf("running action %q over %d directories", action.Name, len(directories))

	pollEvery := b.PollEvery
	if pollEvery <= 0 {
		pollEvery = time.Millisecond
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	for {
		select {
		case err := <-done:
			return nil, interpretExit(action.Name, err, stderr.String())
		case <-time.After(pollEvery):
			if shouldTerminate != nil && shouldTerminate() {
				_ = cmd.Process.Signal(interruptSignal)
				err := <-done
				return nil, interpretExit(action.Name, err, stderr.String())
			}
		}
	}
}

// ActiveJobs always returns the empty set for the Bash backend
// (spec.md §4.8, "The Bash backend always returns the empty set").
func (b *Bash) ActiveJobs(jobIDs []uint32) *workspace.Future[map[uint32]struct{}] {
	return workspace.Go(func() (map[uint32]struct{}, error) {
		return map[uint32]struct{}{}, nil
	})
}

func interpretExit(actionName string, err error, stderrText string) error {
	if err == nil {
		return nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		if exitErr.ExitCode() >= 0 {
			return rowerrors.ExecuteAction(actionName, fmt.Sprintf("exited with status %d: %s", exitErr.ExitCode(), stderrText))
		}
		return rowerrors.ExecuteAction(actionName, fmt.Sprintf("terminated by signal: %s", stderrText))
	}
	return rowerrors.ExecuteAction(actionName, err.Error())
}
