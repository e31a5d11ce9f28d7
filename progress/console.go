package progress

import (
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/charmbracelet/lipgloss"
)

var (
	labelStyle = lipgloss.NewStyle().Bold(true)
	countStyle = lipgloss.NewStyle().Faint(true)
)

// Console is a terminal progress sink using a briandowns/spinner spinner and
// lipgloss styling for the label/count, matching the teacher's console
// output conventions.
type Console struct {
	s     *spinner.Spinner
	label string
	total int
	done  int
}

// NewConsole constructs a Console sink writing to stderr.
func NewConsole() *Console {
	s := spinner.New(spinner.CharSets[11], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	return &Console{s: s}
}

func (c *Console) Start(label string, total int) {
	c.label = label
	c.total = total
	c.done = 0
	c.s.Suffix = c.suffix()
	c.s.Start()
}

func (c *Console) Advance(n int) {
	c.done += n
	c.s.Suffix = c.suffix()
}

func (c *Console) Finish() {
	c.s.Stop()
}

func (c *Console) suffix() string {
	return " " + labelStyle.Render(c.label) + " " + countStyle.Render(fmt.Sprintf("(%d/%d)", c.done, c.total))
}
