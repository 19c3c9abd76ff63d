package core

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// PlaceholderOutput is shown when the agent succeeds without output text.
const PlaceholderOutput = "Agent completed successfully."

// Agent is the remote service the session talks to.
type Agent interface {
	// Status performs the health request and returns the HTTP status code.
	Status(ctx context.Context) (int, error)
	// Run submits a task. Non-2xx responses are returned as *TransportError.
	Run(ctx context.Context, task string) (*RunReply, error)
	// FileURL returns the download URL for a server-relative file path.
	FileURL(path string) string
}

// TransportError reports a non-2xx response from the agent service.
type TransportError struct {
	StatusCode int
	StatusText string
}

func (e *TransportError) Error() string {
	text := e.StatusText
	if text == "" {
		text = http.StatusText(e.StatusCode)
	}
	return "HTTP " + strconv.Itoa(e.StatusCode) + ": " + text
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// WithQuickTasks replaces the canned task catalog. Empty lists are ignored.
func WithQuickTasks(tasks []QuickTask) Option {
	return func(s *Session) {
		if len(tasks) > 0 {
			s.quickTasks = tasks
		}
	}
}

// WithRunTimeout bounds every submission. Zero disables the bound.
func WithRunTimeout(d time.Duration) Option {
	return func(s *Session) { s.runTimeout = d }
}

// WithProbeTimeout bounds the health probe. Zero disables the bound.
func WithProbeTimeout(d time.Duration) Option {
	return func(s *Session) { s.probeTimeout = d }
}

// WithCompletionHook registers fn to be called after every finished cycle.
func WithCompletionHook(fn func(context.Context, Completion)) Option {
	return func(s *Session) {
		if fn != nil {
			s.hooks = append(s.hooks, fn)
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// Session is the task-execution client. It owns the task input, the
// connection status, the run state and the outcome of the last submission.
type Session struct {
	agent        Agent
	logger       *slog.Logger
	quickTasks   []QuickTask
	runTimeout   time.Duration
	probeTimeout time.Duration
	hooks        []func(context.Context, Completion)
	now          func() time.Time

	mu      sync.Mutex
	input   string
	warning string
	status  ConnectionStatus
	state   RunState
	outcome Outcome
	started time.Time

	subMu       sync.Mutex
	subscribers map[chan struct{}]struct{}

	wg sync.WaitGroup
}

// NewSession constructs an idle session with a disconnected status.
func NewSession(agent Agent, opts ...Option) (*Session, error) {
	if agent == nil {
		return nil, ErrNoAgent
	}
	s := &Session{
		agent:       agent,
		logger:      slog.Default(),
		quickTasks:  DefaultQuickTasks(),
		now:         time.Now,
		status:      StatusDisconnected,
		state:       RunIdle,
		subscribers: make(map[chan struct{}]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Probe checks the agent health and stores the resulting connection status.
// Failures only show up in the status.
func (s *Session) Probe(ctx context.Context) ConnectionStatus {
	if s.probeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.probeTimeout)
		defer cancel()
	}
	status := StatusConnected
	code, err := s.agent.Status(ctx)
	switch {
	case err != nil:
		status = StatusDisconnected
		s.logger.Debug("health probe failed", "err", err)
	case code < 200 || code > 299:
		status = StatusDegraded
		s.logger.Debug("health probe degraded", "status", code)
	}

	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
	s.notify()
	return status
}

// SetInput replaces the task input text.
func (s *Session) SetInput(text string) {
	s.mu.Lock()
	s.input = text
	s.warning = ""
	s.mu.Unlock()
	s.notify()
}

// Input returns the current task input text.
func (s *Session) Input() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input
}

// QuickTasks returns the canned task catalog.
func (s *Session) QuickTasks() []QuickTask {
	out := make([]QuickTask, len(s.quickTasks))
	copy(out, s.quickTasks)
	return out
}

// QuickTask looks up a canned task by id.
func (s *Session) QuickTask(id string) (QuickTask, bool) {
	for _, qt := range s.quickTasks {
		if qt.ID == id {
			return qt, true
		}
	}
	return QuickTask{}, false
}

// ApplyQuickTask copies a canned task into the input. It does not submit.
func (s *Session) ApplyQuickTask(id string) (QuickTask, error) {
	qt, ok := s.QuickTask(id)
	if !ok {
		return QuickTask{}, ErrUnknownQuickTask
	}
	s.SetInput(qt.Text)
	return qt, nil
}

// FileURL resolves a generated file path against the agent service.
func (s *Session) FileURL(path string) string {
	return s.agent.FileURL(path)
}

// Status returns the last probed connection status.
func (s *Session) Status() ConnectionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// State returns the current run state.
func (s *Session) State() RunState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Outcome returns the outcome of the last finished submission, or nil.
func (s *Session) Outcome() Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome
}

// Submit runs the current input as a task and waits for the outcome.
// It returns ErrEmptyTask for blank input and ErrBusy while another
// submission is in flight; neither issues a request.
func (s *Session) Submit(ctx context.Context) (Outcome, error) {
	task, err := s.begin(nil)
	if err != nil {
		return nil, err
	}
	return s.execute(ctx, task), nil
}

// SubmitText replaces the input with text and submits it in one step, so a
// concurrent SetInput cannot change what is sent. While busy the input is
// left untouched and ErrBusy is returned.
func (s *Session) SubmitText(ctx context.Context, text string) (Outcome, error) {
	task, err := s.begin(&text)
	if err != nil {
		return nil, err
	}
	return s.execute(ctx, task), nil
}

// Start is like Submit but runs the request in the background. Validation and
// the re-entrancy check happen before it returns.
func (s *Session) Start(ctx context.Context) error {
	return s.start(ctx, nil)
}

// StartText is the background form of SubmitText.
func (s *Session) StartText(ctx context.Context, text string) error {
	return s.start(ctx, &text)
}

func (s *Session) start(ctx context.Context, text *string) error {
	task, err := s.begin(text)
	if err != nil {
		return err
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.execute(context.WithoutCancel(ctx), task)
	}()
	return nil
}

// HandleKey applies the keyboard contract. It reports whether the default
// key behavior must be suppressed; when it is, a submission was attempted in
// the background and its validation error, if any, is returned.
func (s *Session) HandleKey(ctx context.Context, ev KeyEvent) (bool, error) {
	if !SubmitsTask(ev) {
		return false, nil
	}
	err := s.Start(ctx)
	if errors.Is(err, ErrBusy) {
		return true, nil
	}
	return true, err
}

// HandleKeyText is HandleKey for a client that sends its current text with
// the key press. A submitting key sets the input and starts atomically; any
// other key only stores the text.
func (s *Session) HandleKeyText(ctx context.Context, ev KeyEvent, text string) (bool, error) {
	if !SubmitsTask(ev) {
		s.SetInput(text)
		return false, nil
	}
	err := s.StartText(ctx, text)
	if errors.Is(err, ErrBusy) {
		return true, nil
	}
	return true, err
}

// Wait blocks until background submissions finish.
func (s *Session) Wait() {
	s.wg.Wait()
}

// begin moves to Running. A non-nil text replaces the input first, under
// the same lock.
func (s *Session) begin(text *string) (string, error) {
	s.mu.Lock()
	if s.state == RunRunning {
		s.mu.Unlock()
		return "", ErrBusy
	}
	if text != nil {
		s.input = *text
	}
	task := strings.TrimSpace(s.input)
	if task == "" {
		s.warning = ErrEmptyTask.Error()
		s.mu.Unlock()
		s.notify()
		return "", ErrEmptyTask
	}
	s.state = RunRunning
	s.outcome = nil
	s.warning = ""
	s.started = s.now()
	s.mu.Unlock()
	s.notify()
	return task, nil
}

func (s *Session) execute(ctx context.Context, task string) (outcome Outcome) {
	started := s.startedAt()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("task submission panicked", "panic", r)
			outcome = &TaskError{Message: "internal error", Task: task, Class: ErrorNetwork, CapturedAt: s.now()}
		}
		s.finish(task, started, outcome)
	}()

	if s.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.runTimeout)
		defer cancel()
	}

	s.logger.Info("submitting task", "task", task)
	reply, err := s.agent.Run(ctx, task)
	return s.outcomeFor(task, reply, err)
}

func (s *Session) outcomeFor(task string, reply *RunReply, err error) Outcome {
	if err != nil {
		class := ErrorNetwork
		var te *TransportError
		if errors.As(err, &te) {
			class = ErrorTransport
		}
		return &TaskError{Message: err.Error(), Task: task, Class: class, CapturedAt: s.now()}
	}
	if reply == nil || !reply.Success {
		msg := ""
		if reply != nil {
			msg = reply.Error
		}
		return &TaskError{Message: msg, Task: task, Class: ErrorApplication, CapturedAt: s.now()}
	}
	res := &TaskResult{
		Task:      reply.Task,
		Timestamp: reply.Timestamp,
		Output:    reply.Output,
		Files:     append([]GeneratedFile{}, reply.Files...),
	}
	if res.Task == "" {
		res.Task = task
	}
	if res.Output == "" {
		res.Output = PlaceholderOutput
	}
	return res
}

func (s *Session) finish(task string, started time.Time, outcome Outcome) {
	ended := s.now()
	s.mu.Lock()
	s.state = RunIdle
	s.outcome = outcome
	s.mu.Unlock()
	s.notify()

	switch o := outcome.(type) {
	case *TaskResult:
		s.logger.Info("task completed", "task", task, "files", len(o.Files))
	case *TaskError:
		s.logger.Warn("task failed", "task", task, "class", o.Class, "err", o.Message)
	}

	completion := Completion{ID: NewID(), Task: task, Outcome: outcome, StartedAt: started, EndedAt: ended}
	for _, hook := range s.hooks {
		hook(context.Background(), completion)
	}
}

func (s *Session) startedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Subscribe returns a channel that receives a signal after every state
// change. Signals are coalesced. Call the returned func to unsubscribe.
func (s *Session) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	s.subMu.Lock()
	s.subscribers[ch] = struct{}{}
	s.subMu.Unlock()
	return ch, func() {
		s.subMu.Lock()
		delete(s.subscribers, ch)
		s.subMu.Unlock()
	}
}

func (s *Session) notify() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for ch := range s.subscribers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
