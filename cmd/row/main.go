// Command row is the thin CLI entrypoint. Per spec.md §1 and SPEC_FULL.md
// §A.4, only the `scan` self-reinvocation subcommand is built here; the
// engine's other facade operations (project.Open, project.FindMatchingDirectories,
// project.SeparateByStatus, project.SeparateIntoGroups) are exported for an
// external CLI to compose the remaining commands (init/clean/show/status/submit).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "row",
		Short: "row orchestrates workflow actions across HPC cluster schedulers",
	}
	root.AddCommand(newScanCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
