package scheduler

import (
	"bufio"
	"bytes"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rowhpc/row/cluster"
	"github.com/rowhpc/row/launcher"
	"github.com/rowhpc/row/logger"
	"github.com/rowhpc/row/rowerrors"
	"github.com/rowhpc/row/workflow"
	"github.com/rowhpc/row/workspace"
)

var slurmLog = logger.New("scheduler:slurm")

// Slurm submits actions as batch jobs via sbatch and polls status with
// squeue (spec.md §4.8.2, §4.8.3).
type Slurm struct {
	Cluster       *cluster.Cluster
	PartitionName string // optional explicit partition; empty means auto-select
}

var _ Scheduler = (*Slurm)(nil)

func (s *Slurm) MakeScript(action *workflow.Action, directories []string, workspacePath string, directoryValues map[string]interface{}, launchers map[string]launcher.Launcher) (string, error) {
	preamble, err := s.preamble(action, directories)
	if err != nil {
		return "", err
	}
	sb := &scriptBuilder{
		preamble:        preamble,
		action:          action,
		directories:     directories,
		workspacePath:   workspacePath,
		directoryValues: directoryValues,
		launchers:       launchers,
		clusterName:     s.Cluster.Name,
	}
	return sb.build()
}

// preamble builds the #SBATCH directive block, in the order spec.md §4.8.2
// specifies, delegating to the shared Bash script builder for everything
// after it.
func (s *Slurm) preamble(action *workflow.Action, directories []string) (string, error) {
	n := len(directories)
	r := action.Resources
	label := JobLabel(action.Name, directories)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("#SBATCH --job-name=%s\n", label))
	sb.WriteString(fmt.Sprintf("#SBATCH --output=%s-%%j.out\n", action.Name))

	partition, err := s.Cluster.FindPartition(s.PartitionName, r, n)
	if err != nil {
		return "", err
	}
	sb.WriteString(fmt.Sprintf("#SBATCH --partition=%s\n", partition.Name))
	sb.WriteString(fmt.Sprintf("#SBATCH --ntasks=%d\n", r.TotalProcesses(n)))
	if r.ThreadsPerProcess != nil {
		sb.WriteString(fmt.Sprintf("#SBATCH --cpus-per-task=%d\n", *r.ThreadsPerProcess))
	}
	if r.GPUsPerProcess != nil {
		totalGPUs := r.TotalGPUs(n)
		sb.WriteString(fmt.Sprintf("#SBATCH --gpus-per-task=%d\n", *r.GPUsPerProcess))
		if partition.GPUsPerNode != nil {
			sb.WriteString(fmt.Sprintf("#SBATCH --nodes=%d\n", ceilDiv(totalGPUs, *partition.GPUsPerNode)))
			if partition.MemPerGPU != "" {
				sb.WriteString(fmt.Sprintf("#SBATCH --mem-per-gpu=%s\n", partition.MemPerGPU))
			}
		}
	} else {
		totalCPUs := r.TotalCPUs(n)
		if partition.CPUsPerNode != nil {
			sb.WriteString(fmt.Sprintf("#SBATCH --nodes=%d\n", ceilDiv(totalCPUs, *partition.CPUsPerNode)))
			if partition.MemPerCPU != "" {
				sb.WriteString(fmt.Sprintf("#SBATCH --mem-per-cpu=%s\n", partition.MemPerCPU))
			}
		}
	}
	sb.WriteString(fmt.Sprintf("#SBATCH --time=%d\n", ceilDiv(int64(r.TotalWalltime(n).Seconds()), 60)))

	for _, directive := range s.Cluster.SubmitOptions.Custom {
		sb.WriteString(directive + "\n")
	}

	account := ""
	if opts, ok := action.SubmitOptions[s.Cluster.Name]; ok {
		account = opts.Account
	}
	if account == "" {
		account = s.Cluster.SubmitOptions.Account
	}
	if account != "" {
		acct := account
		if partition.AccountSuffix != "" {
			acct += partition.AccountSuffix
		}
		sb.WriteString(fmt.Sprintf("#SBATCH --account=%s\n", acct))
	}
	if opts, ok := action.SubmitOptions[s.Cluster.Name]; ok {
		for _, directive := range opts.Custom {
			sb.WriteString(directive + "\n")
		}
	}

	return sb.String(), nil
}

// Submit runs `sbatch --parsable`, feeding the script on stdin and parsing
// the job ID from stdout (spec.md §4.8.3). should_terminate is checked
// before spawning only, since sbatch cannot be interrupted cleanly mid-run.
func (s *Slurm) Submit(root string, action *workflow.Action, directories []string, workspacePath string, directoryValues map[string]interface{}, launchers map[string]launcher.Launcher, shouldTerminate func() bool) (*uint32, error) {
	if shouldTerminate != nil && shouldTerminate() {
		return nil, rowerrors.Interrupted()
	}
	script, err := s.MakeScript(action, directories, workspacePath, directoryValues, launchers)
	if err != nil {
		return nil, err
	}

	cmd := exec.Command("sbatch", "--parsable")
	cmd.Dir = root
	cmd.Stdin = bytes.NewBufferString(script)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if _, ok := err.(*exec.ExitError); ok {
			return nil, rowerrors.SubmitAction(action.Name, stderr.String())
		}
		return nil, rowerrors.SpawnProcess("sbatch", err)
	}

	id, err := strconv.ParseUint(strings.TrimSpace(stdout.String()), 10, 32)
	if err != nil {
		return nil, rowerrors.UnexpectedOutput("sbatch", stdout.String())
	}
	jobID := uint32(id)
	slurmLog.Printf("submitted action %q as job %d", action.Name, jobID)
	return &jobID, nil
}

// ActiveJobs spawns `squeue --jobs <csv> -o "%A" --noheader` and parses the
// job IDs it reports as active (spec.md §4.8.3). An empty input list
// short-circuits without spawning a subprocess.
func (s *Slurm) ActiveJobs(jobIDs []uint32) *workspace.Future[map[uint32]struct{}] {
	return workspace.Go(func() (map[uint32]struct{}, error) {
		if len(jobIDs) == 0 {
			return map[uint32]struct{}{}, nil
		}
		ids := make([]string, len(jobIDs))
		for i, id := range jobIDs {
			ids[i] = strconv.FormatUint(uint64(id), 10)
		}
		csv := strings.Join(ids, ",")
		if len(jobIDs) == 1 {
			// squeue errors when the only requested job id is unknown; prepend
			// a sentinel id so the --jobs list always has more than one entry.
			csv = "1," + csv
		}

		cmd := exec.Command("squeue", "--jobs", csv, "-o", "%A", "--noheader")
		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil {
			return nil, rowerrors.ExecuteSqueue(err.Error(), stderr.String())
		}

		active := make(map[uint32]struct{}, len(jobIDs))
		scanner := bufio.NewScanner(&stdout)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			id, err := strconv.ParseUint(line, 10, 32)
			if err != nil {
				return nil, rowerrors.ExecuteSqueue("unexpected output", line)
			}
			active[uint32(id)] = struct{}{}
		}
		return active, nil
	})
}
