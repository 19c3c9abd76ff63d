// Package render writes session state as plain text for terminals and MCP
// tool replies.
package render

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"agentdesk/internal/core"
)

// Status prints the connection status line.
func Status(out io.Writer, status core.ConnectionStatus) {
	fmt.Fprintf(out, "status: %s\n", status.Label())
}

// View prints a full session snapshot.
func View(out io.Writer, v core.View) {
	Status(out, v.Status)
	state := "idle"
	if v.Running {
		state = "running"
	}
	fmt.Fprintf(out, "state: %s\n", state)
	if v.Warning != "" {
		fmt.Fprintf(out, "warning: %s\n", v.Warning)
	}
	switch {
	case v.Result != nil:
		Result(out, v.Result)
	case v.Error != nil:
		Error(out, v.Error)
	}
}

// Result prints a successful outcome with its generated files.
func Result(out io.Writer, r *core.ResultView) {
	fmt.Fprintf(out, "completed: %s", r.CompletedAt)
	if r.CompletedAgo != "" {
		fmt.Fprintf(out, " (%s)", r.CompletedAgo)
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "task: %s\n", r.Task)
	fmt.Fprintln(out, "output:")
	writeIndented(out, r.Output)
	if len(r.Files) == 0 {
		return
	}
	fmt.Fprintln(out, "files:")
	for _, f := range r.Files {
		fmt.Fprintf(out, "  %s (%s) %s\n", f.Name, f.SizeLabel, f.URL)
	}
}

// Error prints a failed outcome followed by its details block.
func Error(out io.Writer, e *core.ErrorView) {
	fmt.Fprintf(out, "error: %s\n", e.Message)
	fmt.Fprintln(out, "details:")
	writeIndented(out, e.Details)
}

// QuickTasks prints the canned task catalog.
func QuickTasks(out io.Writer, tasks []core.QuickTask) {
	if len(tasks) == 0 {
		fmt.Fprintln(out, "no quick tasks")
		return
	}
	for _, qt := range tasks {
		fmt.Fprintf(out, "%-18s %s\n", qt.ID, qt.Label)
	}
}

// Submissions prints recorded submissions, newest first.
func Submissions(out io.Writer, subs []*core.Submission, now time.Time) {
	if len(subs) == 0 {
		fmt.Fprintln(out, "no submissions")
		return
	}
	for _, sub := range subs {
		mark := "✓"
		if sub.Outcome != core.OutcomeSuccess {
			mark = "✗"
		}
		fmt.Fprintf(out, "%s %s  %s  %s\n", mark, sub.ID, humanize.RelTime(sub.EndedAt, now, "ago", "from now"), truncate(sub.Task, 60))
		if sub.Error != "" {
			fmt.Fprintf(out, "    error: %s\n", sub.Error)
		}
		if len(sub.Files) > 0 {
			names := make([]string, 0, len(sub.Files))
			for _, f := range sub.Files {
				names = append(names, f.Name+" ("+core.FormatFileSize(f.Size)+")")
			}
			fmt.Fprintf(out, "    files: %s\n", strings.Join(names, ", "))
		}
	}
}

func writeIndented(out io.Writer, text string) {
	for _, line := range strings.Split(text, "\n") {
		fmt.Fprintf(out, "  %s\n", line)
	}
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
