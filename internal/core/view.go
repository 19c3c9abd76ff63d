package core

import (
	"fmt"
	"time"
)

// FileView is a generated file prepared for display.
type FileView struct {
	Name      string `json:"name"`
	Size      int64  `json:"size"`
	SizeLabel string `json:"size_label"`
	URL       string `json:"url"`
}

// ResultView is a TaskResult prepared for display.
type ResultView struct {
	Task         string     `json:"task"`
	Timestamp    string     `json:"timestamp"`
	CompletedAt  string     `json:"completed_at"`
	CompletedAgo string     `json:"completed_ago,omitempty"`
	Output       string     `json:"output"`
	Files        []FileView `json:"files"`
}

// ErrorView is a TaskError prepared for display.
type ErrorView struct {
	Message    string `json:"message"`
	Task       string `json:"task"`
	Class      string `json:"class"`
	CapturedAt string `json:"captured_at"`
	Details    string `json:"details"`
}

// View is a snapshot of the session for rendering. At most one of Result and
// Error is set.
type View struct {
	Status      ConnectionStatus `json:"status"`
	StatusLabel string           `json:"status_label"`
	State       RunState         `json:"state"`
	Running     bool             `json:"running"`
	Input       string           `json:"input"`
	Warning     string           `json:"warning,omitempty"`
	QuickTasks  []QuickTask      `json:"quick_tasks"`
	Result      *ResultView      `json:"result,omitempty"`
	Error       *ErrorView       `json:"error,omitempty"`
}

// View renders the session state. Timestamps are formatted now, in loc.
func (s *Session) View(loc *time.Location) View {
	s.mu.Lock()
	v := View{
		Status:      s.status,
		StatusLabel: s.status.Label(),
		State:       s.state,
		Running:     s.state == RunRunning,
		Input:       s.input,
		Warning:     s.warning,
		QuickTasks:  s.QuickTasks(),
	}
	outcome := s.outcome
	s.mu.Unlock()

	switch o := outcome.(type) {
	case *TaskResult:
		v.Result = s.ResultView(o, loc)
	case *TaskError:
		v.Error = ErrorViewOf(o, loc)
	}
	return v
}

// ResultView prepares res for display, resolving file URLs against the agent.
func (s *Session) ResultView(res *TaskResult, loc *time.Location) *ResultView {
	files := make([]FileView, 0, len(res.Files))
	for _, f := range res.Files {
		files = append(files, FileView{
			Name:      f.Name,
			Size:      f.Size,
			SizeLabel: FormatFileSize(f.Size),
			URL:       s.agent.FileURL(f.Path),
		})
	}
	return &ResultView{
		Task:         res.Task,
		Timestamp:    res.Timestamp,
		CompletedAt:  FormatTimestamp(res.Timestamp, loc),
		CompletedAgo: RelativeTimestamp(res.Timestamp, s.now()),
		Output:       res.Output,
		Files:        files,
	}
}

// ErrorViewOf prepares e for display.
func ErrorViewOf(e *TaskError, loc *time.Location) *ErrorView {
	return &ErrorView{
		Message:    e.Message,
		Task:       e.Task,
		Class:      string(e.Class),
		CapturedAt: FormatTimestamp(e.CapturedAt.UTC().Format(time.RFC3339), loc),
		Details:    e.Details(),
	}
}

// Details renders the technical detail block for the error.
func (e *TaskError) Details() string {
	return fmt.Sprintf("Task: %s\nError: %s\nTimestamp: %s", e.Task, e.Message, e.CapturedAt.UTC().Format(time.RFC3339Nano))
}
