package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"agentdesk/internal/core"
	"agentdesk/internal/render"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// History lists recorded submissions.
type History interface {
	ListSubmissions(ctx context.Context, limit, offset int) ([]*core.Submission, error)
}

// MCPServer exposes the task session as MCP tools.
type MCPServer struct {
	session  *core.Session
	history  History
	logger   *slog.Logger
	location *time.Location
	server   *server.MCPServer
}

// NewMCPServer creates a new MCP server instance. history may be nil.
func NewMCPServer(session *core.Session, history History, logger *slog.Logger, location *time.Location) *MCPServer {
	s := &MCPServer{
		session:  session,
		history:  history,
		logger:   logger,
		location: location,
	}
	s.server = server.NewMCPServer(
		"agentdesk",
		"1.0.0",
		server.WithToolCapabilities(true),
	)
	s.registerTools(s.server)
	return s
}

// Run starts the MCP server using stdio transport.
func (s *MCPServer) Run() error {
	s.logger.Info("MCP server starting on stdio")
	return server.ServeStdio(s.server)
}

// HTTPHandler serves the same tools over streamable HTTP.
func (s *MCPServer) HTTPHandler() http.Handler {
	return server.NewStreamableHTTPServer(s.server, server.WithStateLess(true))
}

func (s *MCPServer) registerTools(mcpServer *server.MCPServer) {
	mcpServer.AddTool(mcp.NewTool("agent_status",
		mcp.WithDescription("Probe the agent service and report the connection status and run state"),
	), s.handleStatus)

	mcpServer.AddTool(mcp.NewTool("agent_run_task",
		mcp.WithDescription("Submit a task to the agent and wait for its result. Give either task or quick_id."),
		mcp.WithString("task",
			mcp.Description("Free-form task text"),
		),
		mcp.WithString("quick_id",
			mcp.Description("ID of a quick task to run instead of task"),
		),
	), s.handleRunTask)

	mcpServer.AddTool(mcp.NewTool("agent_quick_tasks",
		mcp.WithDescription("List the canned quick tasks"),
	), s.handleQuickTasks)

	mcpServer.AddTool(mcp.NewTool("agent_last_outcome",
		mcp.WithDescription("Show the result or error of the last finished task"),
	), s.handleLastOutcome)

	mcpServer.AddTool(mcp.NewTool("agent_history",
		mcp.WithDescription("List recently finished submissions"),
		mcp.WithNumber("limit",
			mcp.Description("Number of submissions to return, default 10"),
			mcp.Min(1),
			mcp.Max(100),
		),
	), s.handleHistory)

	s.logger.Debug("MCP tools registered", "count", 5)
}

func (s *MCPServer) handleStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status := s.session.Probe(ctx)
	var b strings.Builder
	render.Status(&b, status)
	state := "idle"
	if s.session.State() == core.RunRunning {
		state = "running"
	}
	fmt.Fprintf(&b, "state: %s\n", state)
	return mcp.NewToolResultText(b.String()), nil
}

func (s *MCPServer) handleRunTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	task := mcp.ParseString(request, "task", "")
	if quickID := mcp.ParseString(request, "quick_id", ""); quickID != "" {
		qt, ok := s.session.QuickTask(quickID)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("unknown quick task: %s", quickID)), nil
		}
		task = qt.Text
	}

	outcome, err := s.session.SubmitText(ctx, task)
	if err != nil {
		if errors.Is(err, core.ErrBusy) {
			return mcp.NewToolResultError("the agent is already working on a task"), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}

	// Render this call's own outcome; the session may already be running
	// someone else's task.
	var b strings.Builder
	switch o := outcome.(type) {
	case *core.TaskResult:
		render.Result(&b, s.session.ResultView(o, s.location))
		return mcp.NewToolResultText(b.String()), nil
	case *core.TaskError:
		render.Error(&b, core.ErrorViewOf(o, s.location))
		return mcp.NewToolResultError(b.String()), nil
	}
	return mcp.NewToolResultError("task finished without an outcome"), nil
}

func (s *MCPServer) handleQuickTasks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var b strings.Builder
	render.QuickTasks(&b, s.session.QuickTasks())
	return mcp.NewToolResultText(b.String()), nil
}

func (s *MCPServer) handleLastOutcome(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	v := s.session.View(s.location)
	var b strings.Builder
	switch {
	case v.Running:
		b.WriteString("a task is running\n")
	case v.Result != nil:
		render.Result(&b, v.Result)
	case v.Error != nil:
		render.Error(&b, v.Error)
	default:
		b.WriteString("no task has finished yet\n")
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *MCPServer) handleHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.history == nil {
		return mcp.NewToolResultError("history is not available"), nil
	}
	limit := int(mcp.ParseFloat64(request, "limit", 10))
	subs, err := s.history.ListSubmissions(ctx, limit, 0)
	if err != nil {
		s.logger.Error("list submissions", "err", err)
		return mcp.NewToolResultError(fmt.Sprintf("failed to list history: %v", err)), nil
	}
	var b strings.Builder
	render.Submissions(&b, subs, time.Now())
	return mcp.NewToolResultText(b.String()), nil
}
