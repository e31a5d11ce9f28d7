package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rowhpc/row/logger"
	"github.com/rowhpc/row/state"
	"github.com/rowhpc/row/workflow"
	"github.com/rowhpc/row/workspace"
)

var scanLog = logger.New("scan")

// newScanCommand builds the self-reinvocation subcommand a job's EXIT trap
// calls: `row scan --no-progress -a <action> -` pipes the job's directory
// array on stdin; scan records which of those directories now have every
// product of the named action present, and appends a staging pack under
// .row/completed rather than touching the main caches directly
// (spec.md §6, "Scan self-reinvocation").
func newScanCommand() *cobra.Command {
	var actions []string
	var noProgress bool

	cmd := &cobra.Command{
		Use:   "scan [-]",
		Short: "record completed directories for one or more actions",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(actions) == 0 {
				return fmt.Errorf("at least one -a/--action is required")
			}
			return runScan(actions)
		},
	}
	cmd.Flags().StringArrayVarP(&actions, "action", "a", nil, "action name to record completions for (repeatable)")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "suppress progress output (always the case for scan)")
	return cmd
}

func runScan(actionNames []string) error {
	w, err := workflow.Load(".")
	if err != nil {
		return err
	}

	var directories []string
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		line := sc.Text()
		if line != "" {
			directories = append(directories, line)
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}

	var actionsProducts []workspace.ActionProducts
	for _, name := range actionNames {
		a, ok := w.Action(name)
		if !ok {
			continue
		}
		actionsProducts = append(actionsProducts, workspace.ActionProducts{Action: a.Name, Products: a.Products})
	}

	workspacePath := filepath.Join(w.Root, w.WorkspacePath)
	completed, err := workspace.FindCompletedDirectories(workspacePath, directories, actionsProducts, workspace.DefaultIOThreads).Get()
	if err != nil {
		return err
	}

	total := 0
	for _, set := range completed {
		total += len(set)
	}
	if total == 0 {
		scanLog.Printf("scan of %d directories found no new completions", len(directories))
		return nil
	}

	if err := state.WriteStagedCompletion(w.Root, completed); err != nil {
		return err
	}
	scanLog.Printf("staged %d new completions across %d actions", total, len(actionsProducts))
	return nil
}
