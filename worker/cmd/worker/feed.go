package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"paperPatent/api/models"
)

var (
	stepColor    = color.New(color.FgHiWhite, color.Bold)
	enterColor   = color.New(color.FgCyan)
	successColor = color.New(color.FgGreen)
	failColor    = color.New(color.FgRed)
	modelColor   = color.New(color.FgMagenta)
	busyColor    = color.New(color.FgYellow)
	plainColor   = color.New(color.FgWhite)
)

// feed renders a task's progress log in the terminal: one coloured line per
// log event and a progress bar per step.
type feed struct {
	out     io.Writer
	verbose bool
	bars    bool

	bar *progressbar.ProgressBar
}

func newFeed(out io.Writer, verbose, bars bool) *feed {
	return &feed{out: out, verbose: verbose, bars: bars}
}

func logColor(line string) *color.Color {
	lower := strings.ToLower(line)
	switch {
	case strings.Contains(line, ">>>"):
		return enterColor
	case strings.Contains(lower, "failed") || strings.Contains(lower, "error"):
		return failColor
	case strings.Contains(lower, "finished") || strings.Contains(lower, "saved") ||
		strings.Contains(lower, "completed") || strings.Contains(lower, "parsed"):
		return successColor
	case strings.Contains(lower, "calling model"):
		return modelColor
	case strings.Contains(lower, "generating"):
		return busyColor
	default:
		return plainColor
	}
}

// handle prints one event and reports whether it was the terminal one.
func (f *feed) handle(ev models.Event) (*models.DoneEvent, bool) {
	switch e := ev.(type) {
	case models.StepEvent:
		f.finishBar()
		stepColor.Fprintf(f.out, "\n[%s] %s\n", e.Step, e.Label)
		f.startBar(e.Label)

	case models.ContentEvent:
		if f.verbose {
			f.clearBar()
			fmt.Fprint(f.out, e.Text)
			return nil, false
		}
		if f.bar != nil {
			_ = f.bar.Add(len(e.Text))
		}

	case models.LogEvent:
		f.clearBar()
		logColor(e.Message).Fprintln(f.out, e.Message)

	case models.FileReadyEvent:
		f.clearBar()
		successColor.Fprintf(f.out, "File ready: %s\n", e.Kind)

	case models.FigureReadyEvent:
		f.clearBar()
		successColor.Fprintf(f.out, "Figure ready: %d (%d of %d)\n", e.Index+1, e.Total, e.Planned)

	case models.ErrorEvent:
		f.finishBar()
		failColor.Fprintf(f.out, "Error: %s\n", e.Message)

	case models.DoneEvent:
		f.finishBar()
		f.summary(e)
		return &e, true
	}
	return nil, false
}

func (f *feed) summary(done models.DoneEvent) {
	c := successColor
	if done.Status == models.StatusFailed {
		c = failColor
	}
	c.Fprintf(f.out, "\nTask %s\n", done.Status)

	kinds := make([]string, 0, len(done.Files))
	for kind := range done.Files {
		kinds = append(kinds, string(kind))
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		fmt.Fprintf(f.out, "  %-15s %s\n", kind, done.Files[models.ArtifactKind(kind)])
	}
	if done.Figures > 0 {
		fmt.Fprintf(f.out, "  %-15s %d\n", "figures", done.Figures)
	}
}

func (f *feed) startBar(label string) {
	if !f.bars {
		return
	}
	f.bar = progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(f.out),
		progressbar.OptionSetDescription(label),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
}

func (f *feed) clearBar() {
	if f.bar != nil {
		_ = f.bar.Clear()
	}
}

func (f *feed) finishBar() {
	if f.bar != nil {
		_ = f.bar.Finish()
		f.bar = nil
	}
}
