package scheduler

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/rowhpc/row/launcher"
	"github.com/rowhpc/row/rowerrors"
	"github.com/rowhpc/row/value"
	"github.com/rowhpc/row/workflow"
)

// rowExecutable is substituted into the EXIT trap's self-reinvocation
// (spec.md §6, "Scan self-reinvocation"). It defaults to "row"; callers
// can override it with SetRowExecutable.
var rowExecutable = "row"

// SetRowExecutable overrides the executable name substituted into the
// EXIT trap's self-reinvocation command.
func SetRowExecutable(path string) { rowExecutable = path }

var pointerTemplateRE = regexp.MustCompile(`\{(/[^{}]*|)\}`)

// scriptBuilder composes the four sections spec.md §4.8.1 names, in order:
// header, variables, setup, execution.
type scriptBuilder struct {
	preamble        string
	action          *workflow.Action
	directories     []string
	workspacePath   string
	directoryValues map[string]interface{}
	launchers       map[string]launcher.Launcher
	clusterName     string
}

func (b *scriptBuilder) build() (string, error) {
	var sb strings.Builder
	sb.WriteString(b.header())
	sb.WriteString(b.variables())
	setup, err := b.setup()
	if err != nil {
		return "", err
	}
	sb.WriteString(setup)
	exec, err := b.execution()
	if err != nil {
		return "", err
	}
	sb.WriteString(exec)
	return sb.String(), nil
}

func (b *scriptBuilder) header() string {
	var sb strings.Builder
	sb.WriteString("#!/bin/bash\n")
	if b.preamble != "" {
		sb.WriteString(b.preamble)
	}
	return sb.String()
}

// variables emits the shell array of directories and the ACTION_* exports
// (spec.md §4.8.1, "Variables").
func (b *scriptBuilder) variables() string {
	var sb strings.Builder
	sb.WriteString("directories=(")
	for _, d := range b.directories {
		sb.WriteString(shellQuote(d))
		sb.WriteByte(' ')
	}
	sb.WriteString(")\n")

	n := len(b.directories)
	r := b.action.Resources
	sb.WriteString(fmt.Sprintf("export ACTION_WORKSPACE_PATH=%s\n", shellQuote(b.workspacePath)))
	sb.WriteString(fmt.Sprintf("export ACTION_CLUSTER=%s\n", shellQuote(b.clusterName)))
	sb.WriteString(fmt.Sprintf("export ACTION_NAME=%s\n", shellQuote(b.action.Name)))
	sb.WriteString(fmt.Sprintf("export ACTION_PROCESSES=%d\n", r.TotalProcesses(n)))
	walltimeMinutes := ceilDiv(int64(r.TotalWalltime(n).Seconds()), 60)
	sb.WriteString(fmt.Sprintf("export ACTION_WALLTIME_IN_MINUTES=%d\n", walltimeMinutes))
	if r.Processes.PerDirectory {
		sb.WriteString(fmt.Sprintf("export ACTION_PROCESSES_PER_DIRECTORY=%d\n", r.Processes.Value))
	}
	if r.ThreadsPerProcess != nil {
		sb.WriteString(fmt.Sprintf("export ACTION_THREADS_PER_PROCESS=%d\n", *r.ThreadsPerProcess))
	}
	if r.GPUsPerProcess != nil {
		sb.WriteString(fmt.Sprintf("export ACTION_GPUS_PER_PROCESS=%d\n", *r.GPUsPerProcess))
	}
	return sb.String()
}

// setup emits the user setup (if configured for this cluster) and the EXIT
// trap that records completed directories via self-reinvocation
// (spec.md §4.8.1, "Setup").
func (b *scriptBuilder) setup() (string, error) {
	var sb strings.Builder
	if opts, ok := b.action.SubmitOptions[b.clusterName]; ok && opts.Setup != "" {
		sb.WriteString(opts.Setup)
		sb.WriteString("\n")
		sb.WriteString("if [ $? -ne 0 ]; then exit 1; fi\n")
	}
	sb.WriteString(fmt.Sprintf(
		"trap 'printf %%s\\n \"${directories[@]}\" | %s scan --no-progress -a %s - || exit 3' EXIT\n",
		shellQuote(rowExecutable), shellQuote(b.action.Name)))
	return sb.String(), nil
}

// execution validates template usage and emits the user command, composing
// launcher prefixes (spec.md §4.8.1, "Execution").
func (b *scriptBuilder) execution() (string, error) {
	cmd := b.action.Command
	hasDirectory := strings.Contains(cmd, "{directory}")
	hasDirectories := strings.Contains(cmd, "{directories}")
	hasPointer := hasPointerTemplate(cmd)

	if hasDirectory && hasDirectories {
		return "", rowerrors.ActionContainsMultipleTemplates(b.action.Name)
	}
	if !hasDirectory && !hasDirectories {
		return "", rowerrors.ActionContainsNoTemplate(b.action.Name)
	}
	if hasDirectories && hasPointer {
		return "", rowerrors.ActionContainsMultipleTemplates(b.action.Name)
	}

	prefix, err := launcher.Compose(b.launchers, b.action.Launchers, b.action.Name, b.action.Resources, len(b.directories))
	if err != nil {
		return "", err
	}

	if hasDirectory && hasPointer {
		return b.emitPerDirectoryLines(cmd, prefix), nil
	}
	return b.emitLoopBody(cmd, prefix), nil
}

func hasPointerTemplate(cmd string) bool {
	return pointerTemplateRE.MatchString(cmd)
}

// emitLoopBody handles the {directory} or {directories} (no pointer) forms.
func (b *scriptBuilder) emitLoopBody(cmd, prefix string) string {
	expanded := strings.ReplaceAll(cmd, "{workspace_path}", "\"$ACTION_WORKSPACE_PATH\"")
	if strings.Contains(expanded, "{directories}") {
		expanded = strings.ReplaceAll(expanded, "{directories}", "\"${directories[@]}\"")
		return prefix + expanded + "\n"
	}
	expanded = strings.ReplaceAll(expanded, "{directory}", "\"$directory\"")
	var sb strings.Builder
	sb.WriteString("for directory in \"${directories[@]}\"; do\n")
	sb.WriteString("  " + prefix + expanded + "\n")
	sb.WriteString("done\n")
	return sb.String()
}

// emitPerDirectoryLines handles {directory} combined with {} / {/pointer}
// templates: one command line per directory with literal substituted values
// (spec.md §4.8.1).
func (b *scriptBuilder) emitPerDirectoryLines(cmd, prefix string) string {
	var sb strings.Builder
	for _, dir := range b.directories {
		line := strings.ReplaceAll(cmd, "{directory}", shellQuote(dir))
		line = strings.ReplaceAll(line, "{workspace_path}", shellQuote(b.workspacePath))
		line = substitutePointers(line, b.directoryValues[dir])
		sb.WriteString(prefix + line + "\n")
	}
	return sb.String()
}

func substitutePointers(cmd string, dirValue interface{}) string {
	return pointerTemplateRE.ReplaceAllStringFunc(cmd, func(match string) string {
		pointer := match[1 : len(match)-1]
		resolved, ok := value.Pointer(dirValue, pointer)
		if !ok {
			return match
		}
		return shellQuote(jsonScalarString(resolved))
	})
}

// jsonScalarString serializes a JSON value to its compact textual form;
// strings are emitted unquoted before shell-quoting (spec.md §4.8.1).
func jsonScalarString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// shellQuote applies POSIX single-quote shell quoting.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
