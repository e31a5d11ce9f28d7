// Package workflow implements the project manifest model: workflows,
// actions, resources, and groups (spec.md §3, §4.1).
package workflow

import (
	"time"

	"github.com/rowhpc/row/rowerrors"
	"github.com/rowhpc/row/value"
)

// Quantity is a count or duration that is either fixed per submission or
// scaled per directory (spec.md §3, Resources).
type Quantity struct {
	PerDirectory bool
	Value        int64
}

// Total returns the quantity scaled to n directories.
func (q Quantity) Total(n int) int64 {
	if q.PerDirectory {
		return q.Value * int64(n)
	}
	return q.Value
}

// Resources holds the process/thread/GPU/walltime request for an action.
type Resources struct {
	Processes         Quantity
	ThreadsPerProcess *int64
	GPUsPerProcess    *int64
	Walltime          Quantity // seconds
}

func (r Resources) Threads() int64 {
	if r.ThreadsPerProcess != nil {
		return *r.ThreadsPerProcess
	}
	return 1
}

func (r Resources) GPUs() int64 {
	if r.GPUsPerProcess != nil {
		return *r.GPUsPerProcess
	}
	return 0
}

// TotalProcesses returns the total process count for a submission of n directories.
func (r Resources) TotalProcesses(n int) int64 { return r.Processes.Total(n) }

// TotalCPUs returns total processes × threads per process.
func (r Resources) TotalCPUs(n int) int64 { return r.TotalProcesses(n) * r.Threads() }

// TotalGPUs returns total processes × GPUs per process.
func (r Resources) TotalGPUs(n int) int64 { return r.TotalProcesses(n) * r.GPUs() }

// TotalWalltime returns the scaled or fixed walltime for n directories.
func (r Resources) TotalWalltime(n int) time.Duration {
	return time.Duration(r.Walltime.Total(n)) * time.Second
}

// Cost returns the resource cost for n directories, in GPU-hours when any
// GPUs are requested, else CPU-hours (spec.md §3).
func (r Resources) Cost(n int) (hours float64, unit string) {
	wallHours := r.TotalWalltime(n).Hours()
	if gpus := r.TotalGPUs(n); gpus > 0 {
		return wallHours * float64(gpus), "GPU-hours"
	}
	return wallHours * float64(r.TotalCPUs(n)), "CPU-hours"
}

// Condition is a single (pointer, operator, value) include/sort test.
type Condition struct {
	Pointer string
	Op      value.Comparison
	Value   interface{}
}

// Selector is a disjunction member: either a single Condition or an All
// conjunction of Conditions (spec.md §3, Group).
type Selector struct {
	All []Condition
}

// Evaluate reports whether dirValue satisfies this selector (all of its
// conditions hold).
func (s Selector) Evaluate(dirValue interface{}) (bool, error) {
	for _, c := range s.All {
		actual, err := value.MustPointer(dirValue, c.Pointer)
		if err != nil {
			return false, err
		}
		ok, comparable := value.Evaluate(c.Op, actual, c.Value)
		if !comparable {
			return false, rowerrors.CannotCompare()
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// Group controls how eligible directories for an action are batched into
// scheduler submissions (spec.md §3, §4.7).
type Group struct {
	Include        []Selector
	SortBy         []string
	ReverseSort    bool
	SplitBySortKey bool
	MaximumSize    *int
	SubmitWhole    bool
}

// Matches reports whether dirValue is selected by the group's include list.
// An empty include list matches everything.
func (g Group) Matches(dirValue interface{}) (bool, error) {
	if len(g.Include) == 0 {
		return true, nil
	}
	for _, sel := range g.Include {
		ok, err := sel.Evaluate(dirValue)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// SubmitOptions is the per-cluster submission configuration for an action.
type SubmitOptions struct {
	Setup   string
	Account string
	Custom  []string // verbatim scheduler directives, emitted as-is
}

func mergeSubmitOptions(action, base SubmitOptions) SubmitOptions {
	out := action
	if out.Setup == "" {
		out.Setup = base.Setup
	}
	if out.Account == "" {
		out.Account = base.Account
	}
	if len(out.Custom) == 0 {
		out.Custom = base.Custom
	}
	return out
}

// Action is a named unit of work (spec.md §3).
type Action struct {
	Name            string
	Command         string
	Launchers       []string
	PreviousActions []string
	Products        []string
	Resources       Resources
	SubmitOptions   map[string]SubmitOptions
	Group           Group
	From            string
}

// Workflow is the root of the project manifest model (spec.md §3).
type Workflow struct {
	Root          string
	WorkspacePath string
	ValueFileName string // empty means "no value file configured"
	Actions       []Action
	byName        map[string]*Action
}

// Action looks up an action by name.
func (w *Workflow) Action(name string) (*Action, bool) {
	a, ok := w.byName[name]
	return a, ok
}

// ActionNames returns the resolved action names in manifest order.
func (w *Workflow) ActionNames() []string {
	names := make([]string, len(w.Actions))
	for i, a := range w.Actions {
		names[i] = a.Name
	}
	return names
}

// Reindex (re)builds the by-name action index on a Workflow constructed
// directly rather than through Load; Load calls this internally, so
// callers only need it when building a Workflow value by hand (tests).
func Reindex(w *Workflow) *Workflow {
	w.index()
	return w
}

func (w *Workflow) index() {
	w.byName = make(map[string]*Action, len(w.Actions))
	for i := range w.Actions {
		w.byName[w.Actions[i].Name] = &w.Actions[i]
	}
}
