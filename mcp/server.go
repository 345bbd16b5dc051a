// Package mcp provides MCP (Model Context Protocol) tool adapters for
// Roster, so agent harnesses can query and mutate the registry over
// stdio.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hyperengineering/roster"
	"github.com/hyperengineering/roster/internal/harness"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Server wraps the MCP server with Roster tools.
type Server struct {
	client    *roster.Client
	mcpServer *server.MCPServer
}

// ToolResult represents the result of a tool call.
type ToolResult struct {
	Content string
	IsError bool
}

// ToolInfo represents a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

// NewServer creates a new MCP server with Roster tools registered.
func NewServer(client *roster.Client) *Server {
	s := &Server{client: client}

	s.mcpServer = server.NewMCPServer(
		"roster",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	s.registerTools()

	return s
}

// Run starts the MCP server, reading from stdin and writing to stdout.
func (s *Server) Run() error {
	return server.ServeStdio(s.mcpServer)
}

// HandleMessage processes a raw JSON-RPC message and returns a response.
// This is primarily for testing the MCP protocol layer.
func (s *Server) HandleMessage(ctx context.Context, message json.RawMessage) mcp.JSONRPCMessage {
	return s.mcpServer.HandleMessage(ctx, message)
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	return []ToolInfo{
		{Name: "roster_status", Description: "Registry summary: project, manifestation, harness config, and skill counts"},
		{Name: "roster_projects", Description: "List tracked projects"},
		{Name: "roster_discover", Description: "Discover harness configuration artifacts under a directory"},
		{Name: "roster_sync", Description: "Synchronize the local registry cache with Atlas"},
	}
}

// CallTool executes a tool by name with the given arguments.
// This is used for testing and direct invocation.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (*ToolResult, error) {
	switch name {
	case "roster_status":
		return s.handleStatus(ctx)
	case "roster_projects":
		return s.handleProjects(ctx)
	case "roster_discover":
		return s.handleDiscover(ctx, args)
	case "roster_sync":
		return s.handleSync(ctx, args)
	default:
		return &ToolResult{Content: fmt.Sprintf("unknown tool: %s", name), IsError: true}, nil
	}
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("roster_status",
		mcp.WithDescription("Registry summary: project, manifestation, harness config, and skill counts. Falls back to the cached snapshot when Atlas is unreachable."),
	), s.mcpHandleStatus)

	s.mcpServer.AddTool(mcp.NewTool("roster_projects",
		mcp.WithDescription("List tracked projects from the local registry cache."),
	), s.mcpHandleProjects)

	s.mcpServer.AddTool(mcp.NewTool("roster_discover",
		mcp.WithDescription("Discover harness configuration artifacts under a directory and record any real changes."),
		mcp.WithString("root",
			mcp.Description("Directory to scan (default: current directory)"),
		),
	), s.mcpHandleDiscover)

	s.mcpServer.AddTool(mcp.NewTool("roster_sync",
		mcp.WithDescription("Synchronize the local registry cache with Atlas. Requires ATLAS_URL and ATLAS_API_KEY to be configured."),
		mcp.WithString("direction",
			mcp.Description("Sync direction: push, pull, or both (default: both)"),
		),
	), s.mcpHandleSync)
}

func (s *Server) mcpHandleStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := s.handleStatus(ctx)
	if err != nil {
		return nil, err
	}
	return toMCPResult(result), nil
}

func (s *Server) mcpHandleProjects(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := s.handleProjects(ctx)
	if err != nil {
		return nil, err
	}
	return toMCPResult(result), nil
}

func (s *Server) mcpHandleDiscover(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := s.handleDiscover(ctx, req.GetArguments())
	if err != nil {
		return nil, err
	}
	return toMCPResult(result), nil
}

func (s *Server) mcpHandleSync(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := s.handleSync(ctx, req.GetArguments())
	if err != nil {
		return nil, err
	}
	return toMCPResult(result), nil
}

func (s *Server) handleStatus(ctx context.Context) (*ToolResult, error) {
	result, err := s.client.Status(ctx)
	if err != nil {
		return &ToolResult{Content: fmt.Sprintf("status failed: %v", err), IsError: true}, nil
	}

	var b strings.Builder
	view := result.Data
	fmt.Fprintf(&b, "projects: %d\nmanifestations: %d\nharness configs: %d\nskills: %d\n",
		view.Projects, view.Manifestations, view.HarnessConfigs, view.Skills)
	if !result.Fresh {
		fmt.Fprintf(&b, "(cached data as of %s; Atlas unreachable)\n", result.AsOf.Format("2006-01-02 15:04:05"))
	}
	return &ToolResult{Content: b.String()}, nil
}

func (s *Server) handleProjects(ctx context.Context) (*ToolResult, error) {
	records, err := s.client.Records(roster.EntityProject)
	if err != nil {
		return &ToolResult{Content: fmt.Sprintf("list projects failed: %v", err), IsError: true}, nil
	}
	if len(records) == 0 {
		return &ToolResult{Content: "no projects tracked"}, nil
	}

	var b strings.Builder
	for i := range records {
		payload, err := roster.DecodePayload(&records[i])
		if err != nil {
			continue
		}
		p, ok := payload.(*roster.Project)
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "%s  %s", records[i].ID, p.Name)
		if p.Language != "" {
			fmt.Fprintf(&b, " (%s)", p.Language)
		}
		b.WriteString("\n")
	}
	return &ToolResult{Content: b.String()}, nil
}

func (s *Server) handleDiscover(ctx context.Context, args map[string]any) (*ToolResult, error) {
	root := "."
	if v, ok := args["root"].(string); ok && v != "" {
		root = v
	}

	result, err := s.client.Discover(ctx, root, harness.DefaultProviders())
	if err != nil {
		return &ToolResult{Content: fmt.Sprintf("discovery failed: %v", err), IsError: true}, nil
	}

	return &ToolResult{Content: fmt.Sprintf("scanned %d artifacts: %d changed, %d unchanged",
		result.Scanned, result.Changed, result.Unchanged)}, nil
}

func (s *Server) handleSync(ctx context.Context, args map[string]any) (*ToolResult, error) {
	direction := "both"
	if v, ok := args["direction"].(string); ok && v != "" {
		direction = v
	}

	switch direction {
	case "push":
		stats, err := s.client.SyncPush(ctx)
		if err != nil {
			return &ToolResult{Content: fmt.Sprintf("push failed: %v", err), IsError: true}, nil
		}
		return &ToolResult{Content: fmt.Sprintf("pushed %d records (%d applied, %d conflicts)",
			stats.Pushed, stats.Applied, stats.Conflicts)}, nil
	case "pull":
		pulled, err := s.client.SyncPull(ctx)
		if err != nil {
			return &ToolResult{Content: fmt.Sprintf("pull failed: %v", err), IsError: true}, nil
		}
		return &ToolResult{Content: fmt.Sprintf("pulled %d records", pulled)}, nil
	case "both":
		stats, err := s.client.Sync(ctx)
		if err != nil {
			return &ToolResult{Content: fmt.Sprintf("sync failed: %v", err), IsError: true}, nil
		}
		return &ToolResult{Content: fmt.Sprintf("pushed %d (%d applied, %d conflicts), pulled %d",
			stats.Pushed, stats.Applied, stats.Conflicts, stats.Pulled)}, nil
	default:
		return &ToolResult{Content: fmt.Sprintf("invalid direction: %s (use push, pull, or both)", direction), IsError: true}, nil
	}
}

func toMCPResult(r *ToolResult) *mcp.CallToolResult {
	result := &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: r.Content,
			},
		},
	}
	if r.IsError {
		result.IsError = true
	}
	return result
}
