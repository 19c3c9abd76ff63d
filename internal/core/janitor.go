package core

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/robfig/cron/v3"
)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseCron validates a 5-field cron expression or an @every/@hourly style descriptor.
func ParseCron(expr string) (cron.Schedule, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("cron expression is required")
	}
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression: %w", err)
	}
	return schedule, nil
}

// Pruner trims recorded submissions down to the newest keep entries.
type Pruner interface {
	PruneSubmissions(ctx context.Context, keep int) (int64, error)
}

// Janitor periodically prunes the submission history.
type Janitor struct {
	pruner Pruner
	keep   int
	logger *slog.Logger

	cron *cron.Cron
	mu   sync.Mutex
	ctx  context.Context
}

// NewJanitor builds a janitor that runs on the given cron schedule.
func NewJanitor(pruner Pruner, keep int, expr string, logger *slog.Logger) (*Janitor, error) {
	schedule, err := ParseCron(expr)
	if err != nil {
		return nil, err
	}
	j := &Janitor{
		pruner: pruner,
		keep:   keep,
		logger: logger,
		cron:   cron.New(cron.WithParser(cronParser)),
	}
	j.cron.Schedule(schedule, cron.FuncJob(j.run))
	return j, nil
}

// Start begins the schedule. ctx is used for the prune queries.
func (j *Janitor) Start(ctx context.Context) {
	j.mu.Lock()
	j.ctx = ctx
	j.mu.Unlock()
	j.cron.Start()
}

// Stop stops the schedule and returns a context that is done once a running prune finishes.
func (j *Janitor) Stop() context.Context {
	return j.cron.Stop()
}

// RunOnce prunes immediately.
func (j *Janitor) RunOnce(ctx context.Context) (int64, error) {
	removed, err := j.pruner.PruneSubmissions(ctx, j.keep)
	if err != nil {
		return 0, fmt.Errorf("prune submissions: %w", err)
	}
	if removed > 0 {
		j.logger.Info("pruned submission history", "removed", removed, "keep", j.keep)
	}
	return removed, nil
}

func (j *Janitor) run() {
	if _, err := j.RunOnce(j.ctxOrBackground()); err != nil {
		j.logger.Warn("history janitor", "err", err)
	}
}

func (j *Janitor) ctxOrBackground() context.Context {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.ctx != nil {
		return j.ctx
	}
	return context.Background()
}
