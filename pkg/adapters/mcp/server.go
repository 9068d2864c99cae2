// Package mcp exposes the dialogue engine as Model Context Protocol tools.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/canvasbuilder/internal/logging"
	"github.com/aretw0/canvasbuilder/pkg/clarify"
	"github.com/aretw0/canvasbuilder/pkg/dialogue"
	"github.com/aretw0/canvasbuilder/pkg/domain"
	"github.com/aretw0/canvasbuilder/pkg/ports"
	"github.com/aretw0/canvasbuilder/pkg/runner"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const scopesURI = "canvas://scopes"

// Classifier classifies a single message without touching any session.
type Classifier interface {
	Classify(ctx context.Context, message string, canvas *domain.CanvasContext) (domain.Classification, error)
}

// ClassifyResponse is the result of the classify_intent tool.
type ClassifyResponse struct {
	Classification     domain.Classification `json:"classification" jsonschema_description:"The classified intent with confidence and entities"`
	NeedsClarification bool                  `json:"needs_clarification" jsonschema_description:"True when the host should ask the user before acting"`
}

// Server wraps the runner and exposes it as an MCP Server.
type Server struct {
	runner     *runner.Runner
	classifier Classifier
	catalog    ports.ScopeCatalog
	logger     *slog.Logger
	mcpServer  *server.MCPServer
}

// Option configures the Server.
type Option func(*Server)

// WithCatalog exposes the scope catalog as the canvas://scopes resource.
func WithCatalog(catalog ports.ScopeCatalog) Option {
	return func(s *Server) {
		s.catalog = catalog
	}
}

// WithLogger configures a logger for the Server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(r *runner.Runner, classifier Classifier, version string, opts ...Option) *Server {
	s := &Server{
		runner:     r,
		classifier: classifier,
		logger:     logging.NewNop(),
		mcpServer:  server.NewMCPServer("canvas-mcp", version),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the SSE transport on port until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(fmt.Sprintf("http://localhost:%d", port)))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))
	httpServer := &http.Server{Addr: addr, Handler: mux}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
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

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	classifyTool := mcp.NewTool("classify_intent",
		mcp.WithDescription("Classify a canvas-builder request into an intent with confidence and entities. Does not change any session."),
		mcp.WithString("message", mcp.Required(), mcp.Description("The user's message")),
		mcp.WithString("canvas_json", mcp.Description("JSON object describing the canvas (node_count, edge_count, nodes, ...)")),
		mcp.WithOutputSchema[ClassifyResponse](),
	)
	s.mcpServer.AddTool(classifyTool, mcp.NewStructuredToolHandler(s.handleClassify))

	turnTool := mcp.NewTool("process_turn",
		mcp.WithDescription("Run one dialogue turn of a session and return every event it produced, including clarification questions and canvas operations."),
		mcp.WithString("message", mcp.Description("The user's message (may be empty when cancelling a question)")),
		mcp.WithString("session_id", mcp.Description("Session to continue; a new one is created when omitted")),
		mcp.WithString("clarification_json", mcp.Description("JSON ClarificationResponse answering the pending question")),
		mcp.WithString("canvas_json", mcp.Description("JSON object describing the current canvas")),
		mcp.WithOutputSchema[runner.Result](),
	)
	s.mcpServer.AddTool(turnTool, mcp.NewStructuredToolHandler(s.handleTurn))

	s.mcpServer.AddTool(mcp.NewTool("get_session",
		mcp.WithDescription("Get the stored state of a session: history, canvas and pending question."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
	), s.handleGetSession)
}

func (s *Server) handleClassify(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (ClassifyResponse, error) {
	message, _ := args["message"].(string)
	canvas, err := decodeOptional[domain.CanvasContext](args, "canvas_json")
	if err != nil {
		return ClassifyResponse{}, err
	}

	clean, err := dialogue.SanitizeInput(message)
	if err != nil {
		s.logger.Warn("MCP classify: Input rejected", "err", err, "size", len(message))
		return ClassifyResponse{}, fmt.Errorf("input rejected: %w", err)
	}

	cls, err := s.classifier.Classify(ctx, clean, canvas)
	if err != nil {
		return ClassifyResponse{}, fmt.Errorf("classify failed: %w", err)
	}
	return ClassifyResponse{
		Classification:     cls,
		NeedsClarification: clarify.NeedsClarification(cls.Confidence, nil),
	}, nil
}

func (s *Server) handleTurn(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (runner.Result, error) {
	req := runner.Request{}
	req.Message, _ = args["message"].(string)
	req.SessionID, _ = args["session_id"].(string)

	var err error
	if req.Clarification, err = decodeOptional[domain.ClarificationResponse](args, "clarification_json"); err != nil {
		return runner.Result{}, err
	}
	if req.Canvas, err = decodeOptional[domain.CanvasContext](args, "canvas_json"); err != nil {
		return runner.Result{}, err
	}

	res, err := s.runner.Collect(ctx, req)
	if err != nil {
		return runner.Result{}, fmt.Errorf("turn failed: %w", err)
	}
	return *res, nil
}

func (s *Server) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := request.GetString("session_id", "")
	state, err := s.runner.Sessions().Load(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("session %q not found", id)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("load failed: %v", err)), nil
	}
	data, err := json.Marshal(state)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) registerResources() {
	if s.catalog == nil {
		return
	}
	s.mcpServer.AddResource(mcp.NewResource(scopesURI, "Linkable scopes",
		mcp.WithResourceDescription("Skills, knowledge sources and actions nodes can be linked to"),
		mcp.WithMIMEType("application/json"),
	), s.readScopes)
}

func (s *Server) readScopes(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	scopes, err := s.catalog.ListScopes(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list scopes: %w", err)
	}
	data, err := json.Marshal(scopes)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      scopesURI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// decodeOptional parses args[key] as JSON into a new T. A missing or empty
// argument yields nil.
func decodeOptional[T any](args map[string]interface{}, key string) (*T, error) {
	raw, _ := args[key].(string)
	if raw == "" {
		return nil, nil
	}
	v := new(T)
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}
