package core

import (
	"time"
)

// ConnectionStatus describes the last known health of the agent service.
type ConnectionStatus string

const (
	StatusConnected    ConnectionStatus = "connected"
	StatusDegraded     ConnectionStatus = "degraded"
	StatusDisconnected ConnectionStatus = "disconnected"
)

// Label returns the indicator text shown next to the status.
func (s ConnectionStatus) Label() string {
	switch s {
	case StatusConnected:
		return "🟢 Connected"
	case StatusDegraded:
		return "🟡 Warning"
	default:
		return "🔴 Disconnected"
	}
}

// RunState is either RunIdle or RunRunning.
type RunState string

const (
	RunIdle    RunState = "idle"
	RunRunning RunState = "running"
)

// OutcomeKind names which of the two result slots is filled.
type OutcomeKind string

const (
	OutcomeNone    OutcomeKind = "none"
	OutcomeSuccess OutcomeKind = "success"
	OutcomeError   OutcomeKind = "error"
)

// Outcome is the result of a finished submission cycle. It is implemented by
// *TaskResult and *TaskError only.
type Outcome interface {
	Kind() OutcomeKind
	outcome()
}

// GeneratedFile is an artifact the agent produced while running a task.
type GeneratedFile struct {
	Name string
	Size int64
	Path string
}

// TaskResult is the success outcome of a submission.
type TaskResult struct {
	Task      string
	Timestamp string
	Output    string
	Files     []GeneratedFile
}

func (*TaskResult) Kind() OutcomeKind { return OutcomeSuccess }
func (*TaskResult) outcome()          {}

// ErrorClass tells where a submission failed.
type ErrorClass string

const (
	ErrorApplication ErrorClass = "application"
	ErrorTransport   ErrorClass = "transport"
	ErrorNetwork     ErrorClass = "network"
)

// TaskError is the failure outcome of a submission.
type TaskError struct {
	Message    string
	Task       string
	Class      ErrorClass
	CapturedAt time.Time
}

func (*TaskError) Kind() OutcomeKind { return OutcomeError }
func (*TaskError) outcome()          {}

// RunReply is the decoded body of a 2xx task execution response.
type RunReply struct {
	Success   bool
	Task      string
	Timestamp string
	Output    string
	Files     []GeneratedFile
	Error     string
}

// Completion describes one finished submission cycle.
type Completion struct {
	ID        string
	Task      string
	Outcome   Outcome
	StartedAt time.Time
	EndedAt   time.Time
}

// KindOf reports the kind of an outcome, tolerating nil.
func KindOf(o Outcome) OutcomeKind {
	if o == nil {
		return OutcomeNone
	}
	return o.Kind()
}

// Submission is a recorded, finished submission cycle.
type Submission struct {
	ID             string
	Task           string
	Outcome        OutcomeKind
	Output         string
	Error          string
	ErrorClass     ErrorClass
	Files          []GeneratedFile
	AgentTimestamp string
	StartedAt      time.Time
	EndedAt        time.Time
	CreatedAt      time.Time
}

// SubmissionFromCompletion flattens a completion for storage.
func SubmissionFromCompletion(c Completion) *Submission {
	sub := &Submission{
		ID:        c.ID,
		Task:      c.Task,
		Outcome:   KindOf(c.Outcome),
		StartedAt: c.StartedAt,
		EndedAt:   c.EndedAt,
	}
	switch o := c.Outcome.(type) {
	case *TaskResult:
		sub.Output = o.Output
		sub.Files = o.Files
		sub.AgentTimestamp = o.Timestamp
	case *TaskError:
		sub.Error = o.Message
		sub.ErrorClass = o.Class
	}
	return sub
}
