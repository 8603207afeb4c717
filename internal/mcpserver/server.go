// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Raido tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/raido/internal/engine"
)

// Server wraps the MCP server with Raido tools.
type Server struct {
	mcp *server.MCPServer
	eng *engine.Engine
}

// New creates a new MCP server with all Raido tools registered.
func New(eng *engine.Engine) *Server {
	s := &Server{eng: eng}

	s.mcp = server.NewMCPServer(
		"Raido",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_files",
		mcp.WithDescription("Ranked full-text search over indexed files by name, path, and content. "+
			"An empty query returns the most recently modified files."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithString("directory", mcp.Description("Optional directory to restrict results to")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 10)")),
	), s.searchFiles)

	s.mcp.AddTool(mcp.NewTool("index_path",
		mcp.WithDescription("Index a single file or walk a directory tree into the index."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Absolute path to a file or directory")),
	), s.indexPath)

	s.mcp.AddTool(mcp.NewTool("file_stats",
		mcp.WithDescription("Index, pool, and scheduler statistics: file counts by category, "+
			"cache entries, recent activity."),
	), s.fileStats)

	s.mcp.AddTool(mcp.NewTool("find_duplicates",
		mcp.WithDescription("Group indexed files by content fingerprint and report duplicate sets "+
			"with potential space savings."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of groups (default 100)")),
	), s.findDuplicates)

	s.mcp.AddTool(mcp.NewTool("recent_deletions",
		mcp.WithDescription("List recently recorded file deletions with reasons."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of records (default 10)")),
	), s.recentDeletions)

	s.mcp.AddTool(mcp.NewTool("recent_movements",
		mcp.WithDescription("List recently recorded file movements with types and reasons."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of records (default 10)")),
	), s.recentMovements)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func intArg(req mcp.CallToolRequest, name string, fallback int) int {
	args, ok := req.GetArguments()[name]
	if !ok {
		return fallback
	}
	if f, ok := args.(float64); ok && int(f) > 0 {
		return int(f)
	}
	return fallback
}

func (s *Server) searchFiles(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var dirs []string
	if d, dErr := req.RequireString("directory"); dErr == nil && d != "" {
		dirs = []string{d}
	}
	results, err := s.eng.Search(ctx, query, dirs, intArg(req, "limit", 10))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) indexPath(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if info.IsDir() {
		stats, dirErr := s.eng.IndexDirectory(ctx, path)
		if dirErr != nil {
			return mcp.NewToolResultError(dirErr.Error()), nil
		}
		out, _ := json.MarshalIndent(stats, "", "  ")
		return mcp.NewToolResultText(string(out)), nil
	}
	indexed, fileErr := s.eng.IndexFile(ctx, path)
	if fileErr != nil {
		return mcp.NewToolResultError(fileErr.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("indexed: %t", indexed)), nil
}

func (s *Server) fileStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	report, err := s.eng.Stats(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(report, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) findDuplicates(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	groups, err := s.eng.FindDuplicates(ctx, intArg(req, "limit", 100))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(groups) == 0 {
		return mcp.NewToolResultText("no duplicates found"), nil
	}
	out, _ := json.MarshalIndent(groups, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) recentDeletions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	records, err := s.eng.RecentDeletions(ctx, intArg(req, "limit", 10))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(records) == 0 {
		return mcp.NewToolResultText("no deletions recorded"), nil
	}
	out, _ := json.MarshalIndent(records, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) recentMovements(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	records, err := s.eng.RecentMovements(ctx, intArg(req, "limit", 10))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(records) == 0 {
		return mcp.NewToolResultText("no movements recorded"), nil
	}
	out, _ := json.MarshalIndent(records, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}
