package scheduler

import "os"

// interruptSignal is sent to a running Bash subprocess when shouldTerminate
// fires mid-execution (spec.md §5, "Running Bash subprocesses are forwarded
// SIGINT").
var interruptSignal = os.Interrupt
