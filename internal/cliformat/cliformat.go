// Package cliformat renders SchedulingTask status to the terminal with the
// same color-scheme-by-meaning convention the conductor CLI uses for its
// run metrics: green for success, red for failure, yellow for warnings,
// cyan for labels. Colors are automatically suppressed when stdout is not
// a TTY, via fatih/color's own isatty check; IsTerminal exposes the same
// check to callers, and StatusLine does not consult it.
package cliformat

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/veritas-mfg/tobacco-aps/internal/planmodel"
)

type scheme struct {
	success *color.Color
	fail    *color.Color
	warn    *color.Color
	label   *color.Color
	value   *color.Color
}

func newScheme() *scheme {
	return &scheme{
		success: color.New(color.FgGreen),
		fail:    color.New(color.FgRed),
		warn:    color.New(color.FgYellow),
		label:   color.New(color.FgCyan),
		value:   color.New(color.FgWhite),
	}
}

// IsTerminal reports whether stdout is an interactive terminal.
func IsTerminal() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// StatusLine formats one task's status for a `schedule status`/`schedule
// list` listing: "<taskId>  <status>  stage=<stage> progress=<n>%".
func StatusLine(t planmodel.SchedulingTask) string {
	s := newScheme()
	statusColor := s.value
	switch t.Status {
	case planmodel.TaskCompleted:
		statusColor = s.success
	case planmodel.TaskFailed, planmodel.TaskCancelled:
		statusColor = s.fail
	case planmodel.TaskRunning, planmodel.TaskPending:
		statusColor = s.warn
	}

	return fmt.Sprintf("%s  %s  %s=%s %s=%d%%",
		s.label.Sprint(t.TaskID),
		statusColor.Sprint(string(t.Status)),
		s.label.Sprint("stage"), s.value.Sprint(t.CurrentStage),
		s.label.Sprint("progress"), t.Progress,
	)
}
