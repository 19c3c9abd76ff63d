package core

import "errors"

var (
	ErrEmptyTask        = errors.New("please enter a task for the agent to perform")
	ErrBusy             = errors.New("a task is already running")
	ErrUnknownQuickTask = errors.New("unknown quick task")
	ErrNoAgent          = errors.New("agent is nil")
)
