// Package rowerrors defines the single closed error type that every row
// engine package returns, per the taxonomy in spec.md §7.
package rowerrors

import "fmt"

// Kind identifies which taxonomy entry an Error belongs to.
type Kind int

const (
	KindUnknown Kind = iota

	// I/O & serialization
	KindFileRead
	KindFileWrite
	KindFileRemove
	KindDirCreate
	KindDirRead
	KindNonUTF8Path
	KindTOMLParse
	KindJSONParse
	KindJSONSerialize
	KindBinaryParse
	KindBinarySerialize

	// Workflow
	KindDuplicateAction
	KindMissingName
	KindMissingCommand
	KindPreviousActionNotFound
	KindRecursiveFrom
	KindFromNotFound
	KindActionContainsNoTemplate
	KindActionContainsMultipleTemplates
	KindLauncherNotFound
	KindLauncherMissingDefault
	KindNoProcessLauncher
	KindTooManyProcessLaunchers
	KindWorkflowNotFound
	KindActionNotFound

	// Cluster
	KindClusterNameNotFound
	KindClusterNotFound
	KindPartitionNameNotFound
	KindPartitionNotFound

	// State / workspace
	KindDirectoryNotFound
	KindJSONPointerNotFound
	KindCannotCompare

	// Subprocess
	KindSpawnProcess
	KindExecuteAction
	KindSubmitAction
	KindUnexpectedOutput
	KindExecuteSqueue

	// Control
	KindInterrupted
)

// Error is the single error type surfaced by every row engine operation.
type Error struct {
	Kind    Kind
	Message string
	Reasons string // accumulated human-readable reasons (e.g. partition rejection)
	Err     error
}

func (e *Error) Error() string {
	if e.Reasons != "" {
		return fmt.Sprintf("%s\n%s", e.Message, e.Reasons)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func new(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// --- I/O & serialization ---

func FileRead(path string, err error) *Error {
	return wrap(KindFileRead, fmt.Sprintf("failed to read %q", path), err)
}

func FileWrite(path string, err error) *Error {
	return wrap(KindFileWrite, fmt.Sprintf("failed to write %q", path), err)
}

func FileRemove(path string, err error) *Error {
	return wrap(KindFileRemove, fmt.Sprintf("failed to remove %q", path), err)
}

func DirCreate(path string, err error) *Error {
	return wrap(KindDirCreate, fmt.Sprintf("failed to create directory %q", path), err)
}

func DirRead(path string, err error) *Error {
	return wrap(KindDirRead, fmt.Sprintf("failed to read directory %q", path), err)
}

func NonUTF8Path(path string) *Error {
	return new(KindNonUTF8Path, fmt.Sprintf("directory name %q is not valid UTF-8", path))
}

func TOMLParse(path string, err error) *Error {
	return wrap(KindTOMLParse, fmt.Sprintf("failed to parse %q", path), err)
}

func JSONParse(path string, err error) *Error {
	return wrap(KindJSONParse, fmt.Sprintf("failed to parse JSON in %q", path), err)
}

func JSONSerialize(err error) *Error {
	return wrap(KindJSONSerialize, "failed to serialize JSON", err)
}

func BinaryParse(path string, err error) *Error {
	return wrap(KindBinaryParse, fmt.Sprintf("failed to decode cache %q", path), err)
}

func BinarySerialize(path string, err error) *Error {
	return wrap(KindBinarySerialize, fmt.Sprintf("failed to encode cache %q", path), err)
}

// --- Workflow ---

func DuplicateAction(name string) *Error {
	return new(KindDuplicateAction, fmt.Sprintf("action %q is defined more than once with disagreeing previous_actions or products", name))
}

func MissingName() *Error {
	return new(KindMissingName, "action is missing a required name")
}

func MissingCommand(name string) *Error {
	return new(KindMissingCommand, fmt.Sprintf("action %q is missing a required command", name))
}

func PreviousActionNotFound(previous, action string) *Error {
	return new(KindPreviousActionNotFound, fmt.Sprintf("action %q names unknown previous action %q", action, previous))
}

func RecursiveFrom(name string) *Error {
	return new(KindRecursiveFrom, fmt.Sprintf("action %q chains 'from' through another action's 'from'", name))
}

func FromNotFound(name, from string) *Error {
	return new(KindFromNotFound, fmt.Sprintf("action %q names unknown 'from' action %q", name, from))
}

func ActionContainsNoTemplate(name string) *Error {
	return new(KindActionContainsNoTemplate, fmt.Sprintf("action %q's command has no {directory} or {directories} template", name))
}

func ActionContainsMultipleTemplates(name string) *Error {
	return new(KindActionContainsMultipleTemplates, fmt.Sprintf("action %q's command combines {directory} and {directories}, or {directories} with a JSON pointer template", name))
}

func LauncherNotFound(name string) *Error {
	return new(KindLauncherNotFound, fmt.Sprintf("launcher %q is not defined", name))
}

func LauncherMissingDefault(name string) *Error {
	return new(KindLauncherMissingDefault, fmt.Sprintf("launcher %q has no 'default' entry", name))
}

func NoProcessLauncher(action string) *Error {
	return new(KindNoProcessLauncher, fmt.Sprintf("action %q requests more than one process but no launcher sets a processes flag", action))
}

func TooManyProcessLaunchers(action string) *Error {
	return new(KindTooManyProcessLaunchers, fmt.Sprintf("action %q names more than one launcher that sets a processes flag", action))
}

func WorkflowNotFound() *Error {
	return new(KindWorkflowNotFound, "workflow.toml not found in this directory or any parent")
}

func ActionNotFound(name string) *Error {
	return new(KindActionNotFound, fmt.Sprintf("action %q is not defined", name))
}

// --- Cluster ---

func ClusterNameNotFound(name string) *Error {
	return new(KindClusterNameNotFound, fmt.Sprintf("cluster %q is not defined", name))
}

func ClusterNotFound() *Error {
	return new(KindClusterNotFound, "no cluster could be identified for the current environment")
}

func PartitionNameNotFound(name string) *Error {
	return new(KindPartitionNameNotFound, fmt.Sprintf("partition %q is not defined", name))
}

func PartitionNotFound(reasons string) *Error {
	return &Error{Kind: KindPartitionNotFound, Message: "no partition matches the requested resources", Reasons: reasons}
}

// --- State / workspace ---

func DirectoryNotFound(name string) *Error {
	return new(KindDirectoryNotFound, fmt.Sprintf("directory %q is not present in the value cache", name))
}

func JSONPointerNotFound(pointer string) *Error {
	return new(KindJSONPointerNotFound, fmt.Sprintf("JSON pointer %q does not resolve", pointer))
}

func CannotCompare() *Error {
	return new(KindCannotCompare, "values cannot be compared (incomparable types)")
}

// --- Subprocess ---

func SpawnProcess(name string, err error) *Error {
	return wrap(KindSpawnProcess, fmt.Sprintf("failed to spawn %q", name), err)
}

func ExecuteAction(action, message string) *Error {
	return new(KindExecuteAction, fmt.Sprintf("action %q %s", action, message))
}

func SubmitAction(action, message string) *Error {
	return new(KindSubmitAction, fmt.Sprintf("submitting action %q: %s", action, message))
}

func UnexpectedOutput(program, output string) *Error {
	return new(KindUnexpectedOutput, fmt.Sprintf("unexpected output from %q: %q", program, output))
}

func ExecuteSqueue(message, stderr string) *Error {
	return new(KindExecuteSqueue, fmt.Sprintf("squeue %s: %s", message, stderr))
}

// --- Control ---

func Interrupted() *Error {
	return new(KindInterrupted, "interrupted by user")
}
