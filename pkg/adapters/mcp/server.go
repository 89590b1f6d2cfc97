// Package mcp exposes the run orchestrator as an MCP server so agent
// frameworks can drive the browser through the same closed step
// vocabulary.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/lifecycle"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/mitchellh/mapstructure"

	"github.com/aretw0/humanbrowse"
	"github.com/aretw0/humanbrowse/internal/engine"
	"github.com/aretw0/humanbrowse/pkg/domain"
)

// Orchestrator is the engine surface the MCP tools need.
type Orchestrator interface {
	RunSteps(ctx context.Context, req engine.RunRequest) (engine.RunResult, error)
	Resume(ctx context.Context, sessionID string) error
	CloseSession(ctx context.Context, sessionID string) error
	SessionStatus(ctx context.Context, sessionID string) (domain.SessionInfo, error)
	ListRuns() ([]domain.Run, error)
	GetRun(runID string) (*domain.RunDetail, error)
}

// Server wraps the orchestrator and exposes it as an MCP server.
type Server struct {
	engine    Orchestrator
	mcpServer *server.MCPServer
}

// NewServer creates the MCP server with every tool registered.
func NewServer(orch Orchestrator) *Server {
	s := &Server{
		engine:    orch,
		mcpServer: server.NewMCPServer("humanbrowse-mcp", humanbrowse.Version),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)

	lifecycle.Go(ctx, func(ctx context.Context) error {
		slog.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
		return nil
	})

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	runTool := mcp.NewTool("run_steps",
		mcp.WithDescription("Execute a JSON list of browser steps against the active session. "+
			"Supported step types: goto, click, type, press, wait_for, scroll, extract, extract_readable, links, quote, screenshot, pause_for_user."),
		mcp.WithString("session_id", mcp.Description("Session to reuse (omit with new_session to start fresh)")),
		mcp.WithBoolean("new_session", mcp.Description("Open a fresh browser session before running")),
		mcp.WithString("steps", mcp.Required(), mcp.Description("JSON array of step objects")),
		mcp.WithOutputSchema[engine.RunResult](),
	)
	s.mcpServer.AddTool(runTool, mcp.NewStructuredToolHandler(s.handleRunSteps))

	resumeTool := mcp.NewTool("resume",
		mcp.WithDescription("Clear a manual-assist pause after the human finished the challenge in the visible browser."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Paused session ID")),
	)
	s.mcpServer.AddTool(resumeTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionID := request.GetString("session_id", "")
		if err := s.engine.Resume(ctx, sessionID); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("resume failed: %v", err)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("session %s resumed", sessionID)), nil
	})

	closeTool := mcp.NewTool("close_session",
		mcp.WithDescription("Close the browser session. Run history stays available."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID to close")),
	)
	s.mcpServer.AddTool(closeTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionID := request.GetString("session_id", "")
		if err := s.engine.CloseSession(ctx, sessionID); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("close failed: %v", err)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("session %s closed", sessionID)), nil
	})

	statusTool := mcp.NewTool("session_status",
		mcp.WithDescription("Get the current session state, last run and pending manual-assist details."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithOutputSchema[domain.SessionInfo](),
	)
	s.mcpServer.AddTool(statusTool, mcp.NewStructuredToolHandler(s.handleSessionStatus))

	s.mcpServer.AddTool(mcp.NewTool("list_runs",
		mcp.WithDescription("List recorded runs, newest first."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		runs, err := s.engine.ListRuns()
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list runs failed: %v", err)), nil
		}
		jsonBytes, _ := json.Marshal(runs)
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})

	s.mcpServer.AddTool(mcp.NewTool("get_run",
		mcp.WithDescription("Get the full record of one run: metadata, step records, notes and violations."),
		mcp.WithString("run_id", mcp.Required(), mcp.Description("Run ID")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		detail, err := s.engine.GetRun(request.GetString("run_id", ""))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("get run failed: %v", err)), nil
		}
		jsonBytes, _ := json.Marshal(detail)
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})
}

// Handler methods for structured tools

func (s *Server) handleRunSteps(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (engine.RunResult, error) {
	req := engine.RunRequest{}
	if sessionID, ok := args["session_id"].(string); ok {
		req.SessionID = sessionID
	}
	if fresh, ok := args["new_session"].(bool); ok {
		req.NewSession = fresh
	}

	steps, err := decodeSteps(args["steps"])
	if err != nil {
		return engine.RunResult{}, err
	}
	req.Steps = steps

	result, err := s.engine.RunSteps(ctx, req)
	if err != nil {
		return engine.RunResult{}, fmt.Errorf("run_steps failed: %w", err)
	}
	return result, nil
}

func (s *Server) handleSessionStatus(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (domain.SessionInfo, error) {
	sessionID, _ := args["session_id"].(string)
	info, err := s.engine.SessionStatus(ctx, sessionID)
	if err != nil {
		return domain.SessionInfo{}, fmt.Errorf("session_status failed: %w", err)
	}
	return info, nil
}

// decodeSteps accepts either a JSON string or an already-decoded array.
func decodeSteps(raw any) ([]domain.Step, error) {
	switch v := raw.(type) {
	case string:
		var steps []domain.Step
		if err := json.Unmarshal([]byte(v), &steps); err != nil {
			return nil, fmt.Errorf("steps must be a JSON array: %w", err)
		}
		return steps, nil
	case []any:
		var steps []domain.Step
		if err := mapstructure.Decode(v, &steps); err != nil {
			return nil, fmt.Errorf("invalid steps payload: %w", err)
		}
		return steps, nil
	default:
		return nil, fmt.Errorf("steps are required")
	}
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource("humanbrowse://runs", "Recorded Runs",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		runs, err := s.engine.ListRuns()
		if err != nil {
			return nil, fmt.Errorf("failed to list runs: %w", err)
		}
		jsonBytes, _ := json.Marshal(runs)

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "humanbrowse://runs",
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
