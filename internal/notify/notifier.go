package notify

import (
	"context"
	"errors"
	"fmt"

	"agentdesk/internal/core"
)

// Notifier sends a short message to the user.
type Notifier interface {
	Send(ctx context.Context, title, body string) error
}

// MultiNotifier fans out to several notifiers.
type MultiNotifier struct {
	notifiers []Notifier
}

func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	return &MultiNotifier{notifiers: notifiers}
}

// Send delivers to every notifier and joins their errors.
func (m *MultiNotifier) Send(ctx context.Context, title, body string) error {
	var errs []error
	for _, n := range m.notifiers {
		if err := n.Send(ctx, title, body); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NoOpNotifier does nothing.
type NoOpNotifier struct{}

func (n *NoOpNotifier) Send(ctx context.Context, title, body string) error {
	return nil
}

// CompletionMessage builds the notification for a finished submission.
func CompletionMessage(c core.Completion) (title, body string) {
	switch o := c.Outcome.(type) {
	case *core.TaskResult:
		body = c.Task
		if n := len(o.Files); n > 0 {
			body = fmt.Sprintf("%s\n%d file(s) generated", c.Task, n)
		}
		return "Task completed", body
	case *core.TaskError:
		return "Task failed", fmt.Sprintf("%s\n%s", c.Task, o.Message)
	default:
		return "Task finished", c.Task
	}
}
