// Package mcp exposes context assembly and memory lookup as MCP tools.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rcliao/sixmem/internal/engine"
	"github.com/rcliao/sixmem/internal/model"
)

// Version is reported to MCP clients.
const Version = "0.1.0"

// Options configures the MCP server.
type Options struct {
	// DefaultUser is used when a tool call omits user_id.
	DefaultUser string
	Logger      *slog.Logger
}

// Server implements the MCP server for one engine.
type Server struct {
	engine      *engine.Engine
	defaultUser string
	log         *slog.Logger
	mcpServer   *server.MCPServer
}

// NewServer creates the MCP server and registers its tools.
func NewServer(e *engine.Engine, opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		engine:      e,
		defaultUser: opts.DefaultUser,
		log:         log,
	}
	s.mcpServer = server.NewMCPServer(
		"sixmem",
		Version,
		server.WithToolCapabilities(true),
	)
	s.registerTools()
	return s
}

func str(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

var userProp = str("User whose memory is read or written. Defaults to the server's configured user.")

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.Tool{
		Name:        "build_context",
		Description: "Assemble the memory context for a user message. Returns the sectioned context text, the message, and retrieval stats. Call once per turn before answering.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"user_id": userProp,
				"message": str("The user's message for this turn"),
			},
			Required: []string{"message"},
		},
	}, s.handleBuildContext)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "record_episode",
		Description: "Append an event or conversation turn to the user's episodic timeline",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"user_id":    userProp,
				"event_type": str("Kind of event, e.g. 'chat', 'task', 'observation'"),
				"summary":    str("One-line summary of what happened"),
				"details":    str("Optional longer description"),
				"actor":      map[string]any{"type": "string", "enum": []string{"user", "assistant", "system"}, "description": "Who produced the event (default: user)"},
				"tree_path": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Optional hierarchical path, e.g. ['work', 'project-x']",
				},
				"occurred_at": str("When it happened (RFC 3339). Defaults to now."),
			},
			Required: []string{"event_type", "summary"},
		},
	}, s.handleRecordEpisode)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "search_memory",
		Description: "Search one memory dimension and return scored hits",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"user_id": userProp,
				"dimension": map[string]any{
					"type":        "string",
					"enum":        []string{"core", "episodic", "semantic", "procedural", "resource", "knowledge_vault"},
					"description": "Dimension to search",
				},
				"query": str("Natural language query"),
				"limit": map[string]any{"type": "integer", "description": "Maximum results (default: per-dimension default)"},
			},
			Required: []string{"dimension", "query"},
		},
	}, s.handleSearch)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "get_memory",
		Description: "Fetch one memory record by id. The id prefix selects the dimension.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"user_id": userProp,
				"id":      str("Record id, e.g. 'sem_...' or 'kv_...'"),
			},
			Required: []string{"id"},
		},
	}, s.handleGet)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "memory_stats",
		Description: "Count stored records per dimension for a user",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{"user_id": userProp},
		},
	}, s.handleStats)
}

// parseParams converts MCP request arguments to a struct
func parseParams(args any, target any) error {
	data, err := json.Marshal(args)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}

func (s *Server) user(id string) string {
	if id != "" {
		return id
	}
	return s.defaultUser
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) handleBuildContext(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params struct {
		UserID  string `json:"user_id"`
		Message string `json:"message"`
	}
	if err := parseParams(request.Params.Arguments, &params); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	res := s.engine.BuildContext(ctx, s.user(params.UserID), params.Message)
	return jsonResult(res)
}

func (s *Server) handleRecordEpisode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params struct {
		UserID string `json:"user_id"`
		model.EpisodicMemory
	}
	if err := parseParams(request.Params.Arguments, &params); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	rec, err := s.engine.RecordEpisode(ctx, s.user(params.UserID), params.EpisodicMemory)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to record episode: %v", err)), nil
	}
	return jsonResult(map[string]any{
		"success": true,
		"id":      rec.ID,
	})
}

func (s *Server) handleSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params struct {
		UserID    string `json:"user_id"`
		Dimension string `json:"dimension"`
		Query     string `json:"query"`
		Limit     int    `json:"limit"`
	}
	if err := parseParams(request.Params.Arguments, &params); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	d, ok := model.ParseDimension(params.Dimension)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("unknown dimension %q", params.Dimension)), nil
	}
	hits, err := s.engine.Search(ctx, s.user(params.UserID), d, params.Query, params.Limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	return jsonResult(hits)
}

func (s *Server) handleGet(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params struct {
		UserID string `json:"user_id"`
		ID     string `json:"id"`
	}
	if err := parseParams(request.Params.Arguments, &params); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	rec, err := s.engine.Get(ctx, s.user(params.UserID), params.ID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("get failed: %v", err)), nil
	}
	if rec == nil {
		return mcp.NewToolResultError(fmt.Sprintf("memory not found: %s", params.ID)), nil
	}
	return jsonResult(rec)
}

func (s *Server) handleStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params struct {
		UserID string `json:"user_id"`
	}
	if err := parseParams(request.Params.Arguments, &params); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	stats, err := s.engine.Stats(ctx, s.user(params.UserID))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("stats failed: %v", err)), nil
	}
	return jsonResult(stats)
}

// Serve runs the MCP server over stdio until the client disconnects.
func (s *Server) Serve() error {
	s.log.Info("mcp server on stdio", "version", Version)
	return server.ServeStdio(s.mcpServer)
}

// MCPServer returns the underlying server for other transports such as SSE.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}
