package workflow

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/rowhpc/row/logger"
	"github.com/rowhpc/row/rowerrors"
	"github.com/rowhpc/row/value"
)

var log = logger.New("workflow")

const manifestName = "workflow.toml"

// FindManifest searches dir and its ancestors for workflow.toml, returning
// the directory that contains it (spec.md §4.1, "loaded ... by searching
// upward").
func FindManifest(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", rowerrors.FileRead(dir, err)
	}
	cur := abs
	for {
		candidate := filepath.Join(cur, manifestName)
		if _, err := os.Stat(candidate); err == nil {
			return cur, nil
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return "", rowerrors.WorkflowNotFound()
		}
		cur = parent
	}
}

// rawQuantity mirrors the workflow.toml [resources.processes]/[walltime]
// single-variant tables (spec.md §6).
type rawQuantity struct {
	PerSubmission *int64 `toml:"per_submission"`
	PerDirectory  *int64 `toml:"per_directory"`
}

func (q rawQuantity) resolve() Quantity {
	if q.PerDirectory != nil {
		return Quantity{PerDirectory: true, Value: *q.PerDirectory}
	}
	if q.PerSubmission != nil {
		return Quantity{PerDirectory: false, Value: *q.PerSubmission}
	}
	return Quantity{}
}

type rawWalltime struct {
	PerSubmission *string `toml:"per_submission"`
	PerDirectory  *string `toml:"per_directory"`
}

func (w rawWalltime) resolve() (Quantity, error) {
	switch {
	case w.PerDirectory != nil:
		secs, err := parseWalltime(*w.PerDirectory)
		if err != nil {
			return Quantity{}, err
		}
		return Quantity{PerDirectory: true, Value: secs}, nil
	case w.PerSubmission != nil:
		secs, err := parseWalltime(*w.PerSubmission)
		if err != nil {
			return Quantity{}, err
		}
		return Quantity{PerDirectory: false, Value: secs}, nil
	}
	return Quantity{}, nil
}

var walltimeRE = regexp.MustCompile(`^(?:(\d+)-)?(?:(\d+):)?(\d+):(\d+)$`)

// parseWalltime parses "[days-][hours:]minutes:seconds" durations
// (spec.md §6).
func parseWalltime(s string) (int64, error) {
	s = strings.TrimSpace(s)
	m := walltimeRE.FindStringSubmatch(s)
	if m == nil {
		return 0, rowerrors.TOMLParse(s, fmt.Errorf("invalid walltime %q", s))
	}
	days, _ := strconv.ParseInt(m[1], 10, 64)
	hours, _ := strconv.ParseInt(m[2], 10, 64)
	minutes, _ := strconv.ParseInt(m[3], 10, 64)
	seconds, _ := strconv.ParseInt(m[4], 10, 64)
	return days*86400 + hours*3600 + minutes*60 + seconds, nil
}

type rawResources struct {
	Processes         rawQuantity `toml:"processes"`
	ThreadsPerProcess *int64      `toml:"threads_per_process"`
	GPUsPerProcess    *int64      `toml:"gpus_per_process"`
	Walltime          rawWalltime `toml:"walltime"`
}

func (r rawResources) resolve() (Resources, error) {
	wt, err := r.Walltime.resolve()
	if err != nil {
		return Resources{}, err
	}
	return Resources{
		Processes:         r.Processes.resolve(),
		ThreadsPerProcess: r.ThreadsPerProcess,
		GPUsPerProcess:    r.GPUsPerProcess,
		Walltime:          wt,
	}, nil
}

type rawGroup struct {
	Include        []toml.Primitive `toml:"include"`
	SortBy         []string         `toml:"sort_by"`
	ReverseSort    bool             `toml:"reverse_sort"`
	SplitBySortKey bool             `toml:"split_by_sort_key"`
	MaximumSize    *int             `toml:"maximum_size"`
	SubmitWhole    bool             `toml:"submit_whole"`
}

func decodeSelector(meta toml.MetaData, prim toml.Primitive) (Selector, error) {
	var raw interface{}
	if err := meta.PrimitiveDecode(prim, &raw); err != nil {
		return Selector{}, rowerrors.TOMLParse("include", err)
	}
	switch v := raw.(type) {
	case []interface{}:
		c, err := decodeCondition(v)
		if err != nil {
			return Selector{}, err
		}
		return Selector{All: []Condition{c}}, nil
	case map[string]interface{}:
		allRaw, ok := v["all"]
		if !ok {
			return Selector{}, rowerrors.TOMLParse("include", fmt.Errorf("selector table must set 'all'"))
		}
		items, ok := allRaw.([]interface{})
		if !ok {
			return Selector{}, rowerrors.TOMLParse("include", fmt.Errorf("'all' must be an array of conditions"))
		}
		conditions := make([]Condition, 0, len(items))
		for _, item := range items {
			arr, ok := item.([]interface{})
			if !ok {
				return Selector{}, rowerrors.TOMLParse("include", fmt.Errorf("condition must be [pointer, op, value]"))
			}
			c, err := decodeCondition(arr)
			if err != nil {
				return Selector{}, err
			}
			conditions = append(conditions, c)
		}
		return Selector{All: conditions}, nil
	default:
		return Selector{}, rowerrors.TOMLParse("include", fmt.Errorf("selector must be an array or an 'all' table"))
	}
}

func decodeCondition(arr []interface{}) (Condition, error) {
	if len(arr) != 3 {
		return Condition{}, rowerrors.TOMLParse("include", fmt.Errorf("condition must have exactly 3 elements, got %d", len(arr)))
	}
	pointer, ok := arr[0].(string)
	if !ok {
		return Condition{}, rowerrors.TOMLParse("include", fmt.Errorf("condition pointer must be a string"))
	}
	opStr, ok := arr[1].(string)
	if !ok {
		return Condition{}, rowerrors.TOMLParse("include", fmt.Errorf("condition operator must be a string"))
	}
	op := value.Comparison(opStr)
	switch op {
	case value.LessThan, value.LessThanOrEqualTo, value.EqualTo, value.GreaterThanOrEqual, value.GreaterThan:
	default:
		return Condition{}, rowerrors.TOMLParse("include", fmt.Errorf("unknown comparison operator %q", opStr))
	}
	if pointer != "" && !strings.HasPrefix(pointer, "/") {
		log.Printf("sort/include pointer %q does not start with '/'", pointer)
	}
	return Condition{Pointer: pointer, Op: op, Value: arr[2]}, nil
}

func (g rawGroup) resolve(meta toml.MetaData) (Group, error) {
	selectors := make([]Selector, 0, len(g.Include))
	for _, prim := range g.Include {
		sel, err := decodeSelector(meta, prim)
		if err != nil {
			return Group{}, err
		}
		selectors = append(selectors, sel)
	}
	for _, p := range g.SortBy {
		if p != "" && !strings.HasPrefix(p, "/") {
			log.Printf("sort_by pointer %q does not start with '/'", p)
		}
	}
	return Group{
		Include:        selectors,
		SortBy:         g.SortBy,
		ReverseSort:    g.ReverseSort,
		SplitBySortKey: g.SplitBySortKey,
		MaximumSize:    g.MaximumSize,
		SubmitWhole:    g.SubmitWhole,
	}, nil
}

type rawSubmitOptions struct {
	Setup   string   `toml:"setup"`
	Account string   `toml:"account"`
	Custom  []string `toml:"custom"`
}

func (o rawSubmitOptions) resolve() SubmitOptions {
	return SubmitOptions{Setup: o.Setup, Account: o.Account, Custom: o.Custom}
}

type rawAction struct {
	Name            string                      `toml:"name"`
	Command         string                      `toml:"command"`
	Launchers       []string                    `toml:"launchers"`
	PreviousActions []string                    `toml:"previous_actions"`
	Products        []string                    `toml:"products"`
	Resources       rawResources                `toml:"resources"`
	SubmitOptions   map[string]rawSubmitOptions `toml:"submit_options"`
	Group           rawGroup                    `toml:"group"`
	From            string                      `toml:"from"`
}

type rawWorkspace struct {
	Path      string `toml:"path"`
	ValueFile string `toml:"value_file"`
}

// Load finds and parses the manifest starting the upward search at dir, and
// fully resolves+validates it (spec.md §4.1).
func Load(dir string) (*Workflow, error) {
	root, err := FindManifest(dir)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(root, manifestName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, rowerrors.FileRead(path, err)
	}

	var raw struct {
		Workspace rawWorkspace `toml:"workspace"`
		Default   struct {
			Action rawAction `toml:"action"`
		} `toml:"default"`
		Action []rawAction `toml:"action"`
	}
	meta, err := toml.Decode(string(data), &raw)
	if err != nil {
		return nil, rowerrors.TOMLParse(path, err)
	}

	return resolve(root, raw.Workspace, raw.Default.Action, raw.Action, meta)
}

func resolve(root string, ws rawWorkspace, defaultRaw rawAction, actionsRaw []rawAction, meta toml.MetaData) (*Workflow, error) {
	if defaultRaw.From != "" {
		return nil, rowerrors.RecursiveFrom("default")
	}
	defaultAction, err := buildAction(defaultRaw, meta)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]rawAction, len(actionsRaw))
	for _, a := range actionsRaw {
		byName[a.Name] = a
	}

	resolved := make([]Action, 0, len(actionsRaw))
	seen := make(map[string]Action, len(actionsRaw))
	for _, raw := range actionsRaw {
		if raw.Name == "" {
			return nil, rowerrors.MissingName()
		}
		merged := raw
		if merged.From != "" {
			from, ok := byName[merged.From]
			if !ok {
				return nil, rowerrors.FromNotFound(raw.Name, merged.From)
			}
			if from.From != "" {
				return nil, rowerrors.RecursiveFrom(raw.Name)
			}
			merged = fillFrom(merged, from)
		}
		merged = fillFrom(merged, defaultRaw)

		action, err := buildAction(merged, meta)
		if err != nil {
			return nil, err
		}
		action.Name = raw.Name
		if action.Command == "" {
			return nil, rowerrors.MissingCommand(action.Name)
		}
		action.SubmitOptions = mergeSubmitOptionsMap(action.SubmitOptions, defaultAction.SubmitOptions)

		if prior, ok := seen[action.Name]; ok {
			if !sameStrings(prior.PreviousActions, action.PreviousActions) || !sameStrings(prior.Products, action.Products) {
				return nil, rowerrors.DuplicateAction(action.Name)
			}
			continue
		}
		seen[action.Name] = action
		resolved = append(resolved, action)
	}

	names := make(map[string]bool, len(resolved))
	for _, a := range resolved {
		names[a.Name] = true
	}
	for _, a := range resolved {
		for _, prev := range a.PreviousActions {
			if !names[prev] {
				return nil, rowerrors.PreviousActionNotFound(prev, a.Name)
			}
		}
	}

	w := &Workflow{
		Root:          root,
		WorkspacePath: ws.Path,
		ValueFileName: ws.ValueFile,
		Actions:       resolved,
	}
	w.index()
	return w, nil
}

// fillFrom fills zero-valued fields of dst from src (one-level inheritance,
// spec.md §4.1 step 2-3). dst's own From/Name fields are left untouched.
func fillFrom(dst, src rawAction) rawAction {
	out := dst
	if out.Command == "" {
		out.Command = src.Command
	}
	if len(out.Launchers) == 0 {
		out.Launchers = src.Launchers
	}
	if len(out.PreviousActions) == 0 {
		out.PreviousActions = src.PreviousActions
	}
	if len(out.Products) == 0 {
		out.Products = src.Products
	}
	if out.Resources.Processes.PerSubmission == nil && out.Resources.Processes.PerDirectory == nil {
		out.Resources.Processes = src.Resources.Processes
	}
	if out.Resources.ThreadsPerProcess == nil {
		out.Resources.ThreadsPerProcess = src.Resources.ThreadsPerProcess
	}
	if out.Resources.GPUsPerProcess == nil {
		out.Resources.GPUsPerProcess = src.Resources.GPUsPerProcess
	}
	if out.Resources.Walltime.PerSubmission == nil && out.Resources.Walltime.PerDirectory == nil {
		out.Resources.Walltime = src.Resources.Walltime
	}
	if len(out.Group.Include) == 0 {
		out.Group.Include = src.Group.Include
	}
	if len(out.Group.SortBy) == 0 {
		out.Group.SortBy = src.Group.SortBy
	}
	if out.Group.MaximumSize == nil {
		out.Group.MaximumSize = src.Group.MaximumSize
	}
	if out.SubmitOptions == nil {
		out.SubmitOptions = src.SubmitOptions
	}
	return out
}

func buildAction(raw rawAction, meta toml.MetaData) (Action, error) {
	resources, err := raw.Resources.resolve()
	if err != nil {
		return Action{}, err
	}
	group, err := raw.Group.resolve(meta)
	if err != nil {
		return Action{}, err
	}
	submitOptions := make(map[string]SubmitOptions, len(raw.SubmitOptions))
	for cluster, o := range raw.SubmitOptions {
		submitOptions[cluster] = o.resolve()
	}
	return Action{
		Name:            raw.Name,
		Command:         raw.Command,
		Launchers:       raw.Launchers,
		PreviousActions: raw.PreviousActions,
		Products:        raw.Products,
		Resources:       resources,
		SubmitOptions:   submitOptions,
		Group:           group,
		From:            raw.From,
	}, nil
}

func mergeSubmitOptionsMap(action, base map[string]SubmitOptions) map[string]SubmitOptions {
	out := make(map[string]SubmitOptions, len(action)+len(base))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range action {
		if baseV, ok := out[k]; ok {
			out[k] = mergeSubmitOptions(v, baseV)
		} else {
			out[k] = v
		}
	}
	return out
}

func sameStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
