// Package mcp exposes an engine as Model Context Protocol tools, so agents can
// dial USSD codes, check the engine and test keyword profiles.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ngabopay/ussdpilot"
	"github.com/ngabopay/ussdpilot/internal/logging"
	"github.com/ngabopay/ussdpilot/pkg/classify"
	"github.com/ngabopay/ussdpilot/pkg/domain"
	"github.com/ngabopay/ussdpilot/pkg/ports"
	"github.com/ngabopay/ussdpilot/pkg/session"
	"github.com/ngabopay/ussdpilot/pkg/ussdcode"
)

// ProfileURI is the resource holding the active keyword profile.
const ProfileURI = "ussd://profile"

// Engine is the part of the engine facade the tools drive.
type Engine interface {
	Dial(ctx context.Context, code string, steps ...domain.Step) *session.Pending
	Status() session.Status
	Classifier() *classify.Classifier
}

// Server wraps an Engine as an MCP server.
type Server struct {
	engine    Engine
	store     ports.ResultStore
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures the Server.
type Option func(*Server)

// WithResultStore enables the ussd_result tool.
func WithResultStore(store ports.ResultStore) Option {
	return func(s *Server) {
		s.store = store
	}
}

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(engine Engine, opts ...Option) *Server {
	s := &Server{
		engine:    engine,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("ussdpilot", ussdpilot.Version),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying server, for in-process clients.
func (s *Server) MCPServer() *server.MCPServer { return s.mcpServer }

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the SSE transport on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())
	httpServer := &http.Server{Addr: addr, Handler: mux}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("mcp server listening (sse)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

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

// DialResponse is the ussd_dial output.
type DialResponse struct {
	domain.Result
	Pending bool `json:"pending,omitempty" jsonschema_description:"True when the wait expired before the session resolved"`
}

func (s *Server) registerTools() {
	dialTool := mcp.NewTool("ussd_dial",
		mcp.WithDescription("Dial a USSD code on the device and wait for the session result. Busy engines answer immediately with outcome=busy."),
		mcp.WithString("code", mcp.Description("Dial string, e.g. *185#. Mutually exclusive with template.")),
		mcp.WithString("template", mcp.Description("Code template with {placeholders}, e.g. *185*9*{phone}*{amount}#")),
		mcp.WithString("vars", mcp.Description("JSON object of template variables")),
		mcp.WithString("steps", mcp.Description(`JSON array of inputs typed into successive screens, e.g. ["9","0772123456"]`)),
		mcp.WithString("secret_steps", mcp.Description("JSON array of step indexes to mask in logs (PINs)")),
		mcp.WithNumber("wait_seconds", mcp.Description("Maximum time to wait for the result (default 120)")),
		mcp.WithOutputSchema[DialResponse](),
	)
	s.mcpServer.AddTool(dialTool, mcp.NewStructuredToolHandler(s.handleDial))

	statusTool := mcp.NewTool("ussd_status",
		mcp.WithDescription("Report whether the engine is idle or running a session."),
		mcp.WithOutputSchema[session.Status](),
	)
	s.mcpServer.AddTool(statusTool, mcp.NewStructuredToolHandler(s.handleStatus))

	classifyTool := mcp.NewTool("ussd_classify",
		mcp.WithDescription("Classify a USSD screen text with the active keyword profile."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Screen text")),
		mcp.WithOutputSchema[classify.Verdict](),
	)
	s.mcpServer.AddTool(classifyTool, mcp.NewStructuredToolHandler(s.handleClassify))

	if s.store != nil {
		resultTool := mcp.NewTool("ussd_result",
			mcp.WithDescription("Fetch a stored session result by ID."),
			mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID returned by ussd_dial")),
			mcp.WithOutputSchema[domain.Result](),
		)
		s.mcpServer.AddTool(resultTool, mcp.NewStructuredToolHandler(s.handleResult))
	}
}

// DefaultWait bounds ussd_dial when wait_seconds is omitted.
const DefaultWait = 120 * time.Second

func (s *Server) handleDial(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (DialResponse, error) {
	code, err := dialCode(args)
	if err != nil {
		return DialResponse{}, err
	}
	steps, err := dialSteps(args)
	if err != nil {
		return DialResponse{}, err
	}

	wait := DefaultWait
	if secs, ok := args["wait_seconds"].(float64); ok && secs > 0 {
		wait = time.Duration(secs * float64(time.Second))
	}

	pending := s.engine.Dial(ctx, code, steps...)
	s.logger.Info("mcp dial", "session_id", pending.ID(), "steps", len(steps))

	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	res, err := pending.Wait(waitCtx)
	if err != nil {
		return DialResponse{Result: domain.Result{SessionID: pending.ID(), Code: code}, Pending: true}, nil
	}
	return DialResponse{Result: res}, nil
}

func dialCode(args map[string]any) (string, error) {
	code, _ := args["code"].(string)
	tplRaw, _ := args["template"].(string)
	switch {
	case code != "" && tplRaw != "":
		return "", errors.New("code and template are mutually exclusive")
	case tplRaw != "":
		tpl, err := ussdcode.Parse(tplRaw)
		if err != nil {
			return "", err
		}
		vars := map[string]string{}
		if raw, ok := args["vars"].(string); ok && raw != "" {
			if err := json.Unmarshal([]byte(raw), &vars); err != nil {
				return "", fmt.Errorf("invalid vars: %w", err)
			}
		}
		if code, err = tpl.Render(vars); err != nil {
			return "", err
		}
	case code == "":
		return "", errors.New("code or template is required")
	}
	return code, ussdcode.Validate(code)
}

func dialSteps(args map[string]any) ([]domain.Step, error) {
	var values []string
	if raw, ok := args["steps"].(string); ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &values); err != nil {
			return nil, fmt.Errorf("invalid steps: %w", err)
		}
	}
	steps := domain.Steps(values...)

	if raw, ok := args["secret_steps"].(string); ok && raw != "" {
		var idx []int
		if err := json.Unmarshal([]byte(raw), &idx); err != nil {
			return nil, fmt.Errorf("invalid secret_steps: %w", err)
		}
		for _, i := range idx {
			if i < 0 || i >= len(steps) {
				return nil, fmt.Errorf("secret step %d out of range", i)
			}
			steps[i].Secret = true
		}
	}
	return steps, nil
}

func (s *Server) handleStatus(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (session.Status, error) {
	return s.engine.Status(), nil
}

func (s *Server) handleClassify(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (classify.Verdict, error) {
	text, _ := args["text"].(string)
	return s.engine.Classifier().Explain(text), nil
}

func (s *Server) handleResult(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (domain.Result, error) {
	id, _ := args["session_id"].(string)
	return s.store.Load(ctx, id)
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(ProfileURI, "Active keyword profile",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		data, err := json.Marshal(s.engine.Classifier().Profile())
		if err != nil {
			return nil, fmt.Errorf("failed to encode profile: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      ProfileURI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}
