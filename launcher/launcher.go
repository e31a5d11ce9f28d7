// Package launcher implements launcher command-prefix composition
// (spec.md §3, §4.3).
package launcher

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/rowhpc/row/rowerrors"
	"github.com/rowhpc/row/workflow"
)

const defaultKey = "default"

// Launcher is a command-line fragment composed from an action's requested
// resources (spec.md §3). Each field is a template containing a single "%d"
// style placeholder (expressed literally as a Go fmt verb at expansion time),
// except Executable which is emitted verbatim.
type Launcher struct {
	Executable        string
	ProcessesTemplate string // e.g. "--ntasks=%d"
	ThreadsTemplate   string // e.g. "--cpus-per-task=%d"
	GPUsTemplate      string // e.g. "--tres-per-task=gres/gpu:%d"
}

// SetsProcesses reports whether this launcher emits a processes flag.
func (l Launcher) SetsProcesses() bool { return l.ProcessesTemplate != "" }

// Prefix composes the leading command-line fragment for a submission of n
// directories (spec.md §3, §4.3; exact composition grounded on the original
// launcher.rs: executable, then processes, then threads (only when both the
// template and the resource value are set), then GPUs (same condition), each
// followed by a single trailing space).
func (l Launcher) Prefix(r workflow.Resources, n int) string {
	var b strings.Builder
	if l.Executable != "" {
		b.WriteString(l.Executable)
		b.WriteByte(' ')
	}
	if l.ProcessesTemplate != "" {
		b.WriteString(expand(l.ProcessesTemplate, r.TotalProcesses(n)))
		b.WriteByte(' ')
	}
	if l.ThreadsTemplate != "" && r.ThreadsPerProcess != nil {
		b.WriteString(expand(l.ThreadsTemplate, *r.ThreadsPerProcess))
		b.WriteByte(' ')
	}
	if l.GPUsTemplate != "" && r.GPUsPerProcess != nil {
		b.WriteString(expand(l.GPUsTemplate, *r.GPUsPerProcess))
		b.WriteByte(' ')
	}
	return b.String()
}

func expand(template string, n int64) string {
	return strings.ReplaceAll(template, "%d", strconv.FormatInt(n, 10))
}

// Configuration is the set of launchers known by name, each with per-cluster
// variants falling back to "default" (spec.md §3, §4.3).
type Configuration struct {
	Launchers map[string]map[string]Launcher // name -> cluster -> Launcher
}

// Validate checks that every launcher defines a "default" entry
// (spec.md §4.3).
func (c Configuration) Validate() error {
	for name, byCluster := range c.Launchers {
		if _, ok := byCluster[defaultKey]; !ok {
			return rowerrors.LauncherMissingDefault(name)
		}
	}
	return nil
}

// ByCluster resolves, for every named launcher, the variant for cluster
// (falling back to "default"). Unlike the Rust original (which panics when
// a launcher name is wholly undefined), this returns LauncherNotFound.
func (c Configuration) ByCluster(names []string, cluster string) (map[string]Launcher, error) {
	out := make(map[string]Launcher, len(names))
	for _, name := range names {
		byCluster, ok := c.Launchers[name]
		if !ok {
			return nil, rowerrors.LauncherNotFound(name)
		}
		if l, ok := byCluster[cluster]; ok {
			out[name] = l
			continue
		}
		out[name] = byCluster[defaultKey]
	}
	return out, nil
}

// Compose concatenates the prefixes of each named launcher in order and
// validates that exactly one sets a processes flag when more than one total
// process is requested (spec.md §4.8.1).
func Compose(launchers map[string]Launcher, order []string, action string, r workflow.Resources, n int) (string, error) {
	if r.TotalProcesses(n) > 1 {
		count := 0
		for _, name := range order {
			if launchers[name].SetsProcesses() {
				count++
			}
		}
		switch {
		case count == 0:
			return "", rowerrors.NoProcessLauncher(action)
		case count > 1:
			return "", rowerrors.TooManyProcessLaunchers(action)
		}
	}
	var b strings.Builder
	for _, name := range order {
		b.WriteString(launchers[name].Prefix(r, n))
	}
	return b.String(), nil
}

type rawLauncherVariant struct {
	Executable string `toml:"executable"`
	Processes  string `toml:"processes"`
	Threads    string `toml:"threads_per_process"`
	GPUs       string `toml:"gpus_per_process"`
}

func (r rawLauncherVariant) resolve() Launcher {
	return Launcher{
		Executable:        r.Executable,
		ProcessesTemplate: r.Processes,
		ThreadsTemplate:   r.Threads,
		GPUsTemplate:      r.GPUs,
	}
}

type rawConfig struct {
	Launcher map[string]map[string]rawLauncherVariant `toml:"launcher"`
}

func (r rawConfig) resolve() Configuration {
	out := make(map[string]map[string]Launcher, len(r.Launcher))
	for name, byCluster := range r.Launcher {
		m := make(map[string]Launcher, len(byCluster))
		for cluster, v := range byCluster {
			m[cluster] = v.resolve()
		}
		out[name] = m
	}
	return Configuration{Launchers: out}
}

// ConfigPath returns $ROW_HOME/.config/row/launchers.toml, falling back to
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
	return filepath.Join(base, ".config", "row", "launchers.toml"), nil
}

// Open loads the user launcher config (if present) and merges it over the
// out-of-scope built-in catalog (spec.md §1), per-launcher-name: user keys
// win on overlap (spec.md §4.3).
func Open(builtin Configuration) (Configuration, error) {
	path, err := ConfigPath()
	if err != nil {
		return Configuration{}, err
	}
	merged := make(map[string]map[string]Launcher, len(builtin.Launchers))
	for name, byCluster := range builtin.Launchers {
		m := make(map[string]Launcher, len(byCluster))
		for k, v := range byCluster {
			m[k] = v
		}
		merged[name] = m
	}

	data, err := os.ReadFile(path)
	if err == nil {
		var raw rawConfig
		if _, err := toml.Decode(string(data), &raw); err != nil {
			return Configuration{}, rowerrors.TOMLParse(path, err)
		}
		user := raw.resolve()
		for name, byCluster := range user.Launchers {
			if _, ok := merged[name]; !ok {
				merged[name] = map[string]Launcher{}
			}
			for cluster, l := range byCluster {
				merged[name][cluster] = l
			}
		}
	} else if !os.IsNotExist(err) {
		return Configuration{}, rowerrors.FileRead(path, err)
	}

	cfg := Configuration{Launchers: merged}
	if err := cfg.Validate(); err != nil {
		return Configuration{}, err
	}
	return cfg, nil
}
