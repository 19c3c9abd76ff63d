package main

import (
	"context"
	"errors"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agentdesk/internal/agent"
	"agentdesk/internal/api"
	"agentdesk/internal/config"
	"agentdesk/internal/core"
	"agentdesk/internal/logging"
	agentdeskmcp "agentdesk/internal/mcp"
	"agentdesk/internal/notify"
	"agentdesk/internal/store"
)

func main() {
	cfg, err := config.Parse()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}

	// stdout carries the MCP protocol in stdio modes.
	var logOut io.Writer = os.Stdout
	if cfg.Mode != "http" {
		logOut = os.Stderr
	}
	logger := logging.New(cfg.LogLevel, logOut)

	baseCtx := context.Background()
	storeInst, err := store.Open(baseCtx, cfg.StateDir, cfg.History.Keep)
	if err != nil {
		logger.Error("open store", "err", err)
		os.Exit(1)
	}
	defer storeInst.Close()

	location := cfg.Location()

	quickTasks, err := config.LoadQuickTasks(cfg.StateDir)
	if err != nil {
		logger.Error("load quick tasks", "err", err)
		os.Exit(1)
	}

	client, err := agent.NewClient(cfg.Agent.URL, nil)
	if err != nil {
		logger.Error("create agent client", "err", err)
		os.Exit(1)
	}

	notifier := buildNotifier(cfg, logger)
	session, err := core.NewSession(client,
		core.WithLogger(logger),
		core.WithQuickTasks(quickTasks),
		core.WithProbeTimeout(cfg.Agent.ProbeTimeout),
		core.WithRunTimeout(cfg.Agent.RunTimeout),
		core.WithCompletionHook(recordCompletion(storeInst, logger)),
		core.WithCompletionHook(notifyCompletion(notifier, logger)),
	)
	if err != nil {
		logger.Error("create session", "err", err)
		os.Exit(1)
	}

	janitor, err := core.NewJanitor(storeInst, storeInst.HistoryKeep, cfg.History.PruneCron, logger)
	if err != nil {
		logger.Error("create history janitor", "err", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	janitor.Start(ctx)
	if _, err := janitor.RunOnce(ctx); err != nil {
		logger.Error("initial prune", "err", err)
	}

	go func() {
		status := session.Probe(ctx)
		logger.Info("agent health", "url", cfg.Agent.URL, "status", status)
	}()

	mcpServer := agentdeskmcp.NewMCPServer(session, storeInst, logger, location)

	switch cfg.Mode {
	case "http":
		runHTTPMode(cfg, storeInst, session, mcpServer, nil, logger, location)
	case "mcp":
		runMCPMode(session, mcpServer, logger, cancel)
	case "both":
		mcpErr := make(chan error, 1)
		go func() {
			if err := mcpServer.Run(); err != nil {
				mcpErr <- err
			}
		}()
		runHTTPMode(cfg, storeInst, session, mcpServer, mcpErr, logger, location)
	}

	stopCtx := janitor.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(cfg.ShutdownGrace):
		logger.Warn("janitor stop timed out")
	}
	logger.Info("shutdown complete")
}

func buildNotifier(cfg *config.Config, logger *slog.Logger) notify.Notifier {
	if !cfg.Notification.Bark.Enabled || cfg.Notification.Bark.URL == "" {
		return &notify.NoOpNotifier{}
	}
	bark, err := notify.NewBarkNotifier(cfg.Notification.Bark.URL)
	if err != nil {
		logger.Warn("bark notifier disabled", "err", err)
		return &notify.NoOpNotifier{}
	}
	logger.Info("bark notifications enabled")
	return notify.NewMultiNotifier(bark)
}

func recordCompletion(st *store.Store, logger *slog.Logger) func(context.Context, core.Completion) {
	return func(ctx context.Context, c core.Completion) {
		if err := st.InsertSubmission(ctx, core.SubmissionFromCompletion(c)); err != nil {
			logger.Error("record submission", "submission_id", c.ID, "err", err)
			return
		}
		if _, err := st.Prune(ctx); err != nil {
			logger.Warn("prune submissions", "err", err)
		}
	}
}

func notifyCompletion(n notify.Notifier, logger *slog.Logger) func(context.Context, core.Completion) {
	return func(ctx context.Context, c core.Completion) {
		title, body := notify.CompletionMessage(c)
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := n.Send(ctx, title, body); err != nil {
			logger.Warn("send notification", "submission_id", c.ID, "err", err)
		}
	}
}

// runHTTPMode serves the page, the API and MCP over HTTP until a signal
// arrives or a server fails. mcpErr reports stdio MCP failures in both mode.
func runHTTPMode(cfg *config.Config, st *store.Store, session *core.Session, mcpServer *agentdeskmcp.MCPServer, mcpErr <-chan error, logger *slog.Logger, location *time.Location) {
	server := api.NewServer(cfg.Server.Addr, api.Deps{
		Session:   session,
		History:   st,
		MCP:       mcpServer.HTTPHandler(),
		Logger:    logger,
		Location:  location,
		AuthToken: cfg.Server.AuthToken,
	})

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Info("received signal", "signal", sig.String())
	case err := <-serverErr:
		logger.Error("server error", "err", err)
	case err := <-mcpErr:
		logger.Error("mcp server error", "err", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "err", err)
	}
	waitSubmissions(shutdownCtx, session, logger)
}

// runMCPMode serves MCP on stdio only.
func runMCPMode(session *core.Session, mcpServer *agentdeskmcp.MCPServer, logger *slog.Logger, cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigs
		logger.Info("received signal, shutting down...")
		cancel()
	}()

	if err := mcpServer.Run(); err != nil {
		logger.Error("mcp server error", "err", err)
		os.Exit(1)
	}
	session.Wait()
}

// waitSubmissions lets an in-flight submission reach Idle within the grace period.
func waitSubmissions(ctx context.Context, session *core.Session, logger *slog.Logger) {
	done := make(chan struct{})
	go func() {
		session.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		logger.Warn("in-flight submission did not finish before shutdown")
	}
}
