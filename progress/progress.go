// Package progress defines the reporting sink used by long-running state
// operations (spec.md §4.6, "progress is reported ... when the count is
// above a threshold") and a console implementation built on lipgloss and
// briandowns/spinner. The CLI table/report rendering around it is out of
// scope per spec.md §1; this package only covers the sink interface the
// engine calls into.
package progress

// Threshold is the item count above which a Sink is engaged at all
// (spec.md §4.6).
const Threshold = 100

// Sink receives progress updates for a bounded piece of work.
type Sink interface {
	// Start begins reporting progress for total items under the given label.
	Start(label string, total int)
	// Advance reports that n additional items completed.
	Advance(n int)
	// Finish ends reporting, clearing any interactive display.
	Finish()
}

// Noop is a Sink that discards all updates; it is the default when the
// caller does not wire a console sink (spec.md §1, terminal rendering is an
// out-of-scope external collaborator).
type Noop struct{}

func (Noop) Start(string, int) {}
func (Noop) Advance(int)       {}
func (Noop) Finish()           {}

// Gate returns sink when count exceeds Threshold, else Noop{} — callers
// should always report through the result of Gate rather than branching
// themselves, so the threshold lives in one place.
func Gate(sink Sink, count int) Sink {
	if sink == nil || count <= Threshold {
		return Noop{}
	}
	return sink
}
