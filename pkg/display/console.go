// Package display implementation for terminal-based output.
package display

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

const (
	barWidth  = 20
	moveUp    = "\x1b[1A"
	clearLine = "\x1b[2K"
)

var (
	nameStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	doneStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	dimStyle  = lipgloss.NewStyle().Faint(true)
)

// consoleDisplay redraws the active tasks below the scrolling log.
// Mutable
type consoleDisplay struct {
	mu      sync.Mutex
	out     io.Writer
	tasks   []*consoleTask
	drawn   int
	verbose bool
	live    bool
}

// NewWriterDisplay creates a Display that writes to the provided io.Writer.
func NewWriterDisplay(w io.Writer) Display {
	return &consoleDisplay{out: w, live: true}
}

// NewPlainDisplay creates a Display that never redraws; task progress is
// not shown and only logs and output reach w.
func NewPlainDisplay(w io.Writer) Display {
	return &consoleDisplay{out: w}
}

func (d *consoleDisplay) SetVerbose(v bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.verbose = v
}

// Print writes a message directly to the output writer.
func (d *consoleDisplay) Print(msg string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.above(func() { fmt.Fprint(d.out, msg) })
}

func (d *consoleDisplay) Log(msg string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.verbose {
		return
	}
	d.above(func() { fmt.Fprintln(d.out, dimStyle.Render(msg)) })
}

func (d *consoleDisplay) StartTask(name string) Task {
	d.mu.Lock()
	defer d.mu.Unlock()
	t := &consoleTask{d: d, name: name}
	d.tasks = append(d.tasks, t)
	d.redraw()
	return t
}

func (d *consoleDisplay) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clear()
	d.tasks = nil
}

// above prints fn's output above the task lines. Must hold mu.
func (d *consoleDisplay) above(fn func()) {
	d.clear()
	fn()
	d.redraw()
}

// Must hold mu.
func (d *consoleDisplay) clear() {
	for ; d.drawn > 0; d.drawn-- {
		fmt.Fprint(d.out, moveUp+clearLine)
	}
}

// Must hold mu.
func (d *consoleDisplay) redraw() {
	if !d.live {
		return
	}
	d.clear()
	for _, t := range d.tasks {
		fmt.Fprintln(d.out, t.line())
	}
	d.drawn = len(d.tasks)
}

func (d *consoleDisplay) remove(t *consoleTask) {
	for i, other := range d.tasks {
		if other == t {
			d.tasks = append(d.tasks[:i], d.tasks[i+1:]...)
			return
		}
	}
}

// Mutable, guarded by the display's mutex.
type consoleTask struct {
	d        *consoleDisplay
	name     string
	stage    string
	target   string
	fraction float64
	message  string
}

func (t *consoleTask) Log(msg string) {
	t.d.mu.Lock()
	defer t.d.mu.Unlock()
	if !t.d.verbose {
		return
	}
	t.d.above(func() { fmt.Fprintf(t.d.out, "[%s] %s\n", t.name, msg) })
}

func (t *consoleTask) SetStage(name string, target string) {
	t.d.mu.Lock()
	defer t.d.mu.Unlock()
	t.stage = name
	t.target = target
	t.d.redraw()
}

func (t *consoleTask) Progress(fraction float64, message string) {
	t.d.mu.Lock()
	defer t.d.mu.Unlock()
	t.fraction = min(max(fraction, 0), 1)
	t.message = message
	t.d.redraw()
}

func (t *consoleTask) Done() {
	t.d.mu.Lock()
	defer t.d.mu.Unlock()
	t.d.clear()
	t.d.remove(t)
	if t.d.verbose {
		fmt.Fprintf(t.d.out, "[%s] %s\n", t.name, doneStyle.Render("Done"))
	}
	t.d.redraw()
}

func (t *consoleTask) line() string {
	filled := int(t.fraction * barWidth)
	bar := strings.Repeat("=", filled) + strings.Repeat(" ", barWidth-filled)

	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s]", nameStyle.Render(t.name))
	if t.stage != "" {
		fmt.Fprintf(&sb, " %s", t.stage)
	}
	fmt.Fprintf(&sb, " [%s] %3d%%", bar, int(t.fraction*100))
	if t.message != "" {
		fmt.Fprintf(&sb, " %s", t.message)
	}
	if t.target != "" {
		fmt.Fprintf(&sb, " %s", dimStyle.Render(t.target))
	}
	return sb.String()
}
