// Package mcp implements the Model Context Protocol server for facultyhub.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/ajitpratap0/facultyhub/internal/directory"
	"github.com/ajitpratap0/facultyhub/internal/news"
	"github.com/ajitpratap0/facultyhub/internal/store"
)

const (
	// defaultNewsLimit is the default number of items returned by list_news.
	defaultNewsLimit = 20

	// maxNewsLimit caps list_news.
	maxNewsLimit = 100
)

// NewsFetcher runs one ingestion pass on demand.
type NewsFetcher interface {
	FetchAndStore(ctx context.Context) news.Result
}

// Server wraps an MCPServer with facultyhub dependencies.
type Server struct {
	mcp     *mcpserver.MCPServer
	engine  *directory.Engine
	fetcher NewsFetcher
	logger  *slog.Logger
}

// NewServer creates a new MCP server. If engine or fetcher are nil,
// the corresponding tool calls will return an error response instead of panicking.
func NewServer(engine *directory.Engine, fetcher NewsFetcher, logger *slog.Logger) *Server {
	s := &Server{
		engine:  engine,
		fetcher: fetcher,
		logger:  logger.With("component", "mcp"),
	}

	mcpSrv := mcpserver.NewMCPServer(
		"facultyhub",
		"1.0.0",
		mcpserver.WithToolCapabilities(true),
	)

	mcpSrv.AddTool(buildListDirectoryTool(), s.handleListDirectory)
	mcpSrv.AddTool(buildUpsertProfessorTool(), s.handleUpsertProfessor)
	mcpSrv.AddTool(buildDeleteProfessorTool(), s.handleDeleteProfessor)
	mcpSrv.AddTool(buildDeleteDepartmentTool(), s.handleDeleteDepartment)
	mcpSrv.AddTool(buildListNewsTool(), s.handleListNews)
	mcpSrv.AddTool(buildFetchNewsTool(), s.handleFetchNews)

	s.mcp = mcpSrv
	return s
}

// MCPServer returns the underlying mcp-go MCPServer for use with ServeStdio.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcp
}

// HandleListDirectory is the exported handler for the "list_directory" tool.
// It is exposed for direct testing without the mcp-go transport layer.
func (s *Server) HandleListDirectory(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleListDirectory(ctx, req)
}

// HandleUpsertProfessor is the exported handler for the "upsert_professor" tool.
func (s *Server) HandleUpsertProfessor(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleUpsertProfessor(ctx, req)
}

// HandleDeleteProfessor is the exported handler for the "delete_professor" tool.
func (s *Server) HandleDeleteProfessor(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleDeleteProfessor(ctx, req)
}

// HandleDeleteDepartment is the exported handler for the "delete_department" tool.
func (s *Server) HandleDeleteDepartment(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleDeleteDepartment(ctx, req)
}

// HandleListNews is the exported handler for the "list_news" tool.
func (s *Server) HandleListNews(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleListNews(ctx, req)
}

// HandleFetchNews is the exported handler for the "fetch_news" tool.
func (s *Server) HandleFetchNews(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleFetchNews(ctx, req)
}

// --- helpers ---

// toolResultJSON marshals v to JSON and returns it as a tool text result.
func toolResultJSON(v any) (*mcpgo.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("mcp: marshaling result: %w", err)
	}
	return mcpgo.NewToolResultText(string(b)), nil
}

// --- tool definitions ---

func buildListDirectoryTool() mcpgo.Tool {
	return mcpgo.NewTool("list_directory",
		mcpgo.WithDescription("Return the whole faculty directory: departments, branches, professors and news, newest news first."),
	)
}

func buildUpsertProfessorTool() mcpgo.Tool {
	return mcpgo.NewTool("upsert_professor",
		mcpgo.WithDescription("Create or update a professor keyed by email. Only supplied fields are written. "+
			"Missing branches and departments referenced by the professor are created."),
		mcpgo.WithString("payload",
			mcpgo.Required(),
			mcpgo.Description(`Professor JSON object, e.g. {"email":"a@uni.example","name":"A","branch":"ai","branchName":"AI","departmentId":"cse"}. Unknown fields are rejected.`),
		),
	)
}

func buildDeleteProfessorTool() mcpgo.Tool {
	return mcpgo.NewTool("delete_professor",
		mcpgo.WithDescription("Delete a professor by ID. Removes the professor's branch when no other professor uses it."),
		mcpgo.WithString("id",
			mcpgo.Required(),
			mcpgo.Description("The ID of the professor to delete"),
		),
	)
}

func buildDeleteDepartmentTool() mcpgo.Tool {
	return mcpgo.NewTool("delete_department",
		mcpgo.WithDescription("IRREVERSIBLE: delete a department, every branch it lists and every professor in those branches."),
		mcpgo.WithString("id",
			mcpgo.Required(),
			mcpgo.Description("Department ID or name"),
		),
	)
}

func buildListNewsTool() mcpgo.Tool {
	return mcpgo.NewTool("list_news",
		mcpgo.WithDescription("List stored news items, newest first."),
		mcpgo.WithNumber("limit",
			mcpgo.Description("Maximum number of items (default: 20, max: 100)"),
		),
	)
}

func buildFetchNewsTool() mcpgo.Tool {
	return mcpgo.NewTool("fetch_news",
		mcpgo.WithDescription("Run one news ingestion pass now and report how many new items were stored."),
	)
}

// --- tool handlers ---

// handleListDirectory returns the consolidated directory view.
func (s *Server) handleListDirectory(ctx context.Context, _ mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.engine == nil {
		return mcpgo.NewToolResultError("directory is unavailable"), nil
	}

	dir, err := s.engine.Directory(ctx)
	if err != nil {
		return mcpgo.NewToolResultErrorf("loading directory failed: %s", err.Error()), nil
	}
	return toolResultJSON(dir)
}

// handleUpsertProfessor validates the payload and reconciles the professor.
func (s *Server) handleUpsertProfessor(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.engine == nil {
		return mcpgo.NewToolResultError("directory is unavailable"), nil
	}

	raw := req.GetString("payload", "")
	if strings.TrimSpace(raw) == "" {
		return mcpgo.NewToolResultError("payload is required and must not be empty"), nil
	}

	payload, err := directory.ParseProfessorPayload([]byte(raw))
	if err != nil {
		return mcpgo.NewToolResultError(err.Error()), nil
	}

	prof, err := s.engine.UpsertProfessor(ctx, payload)
	if err != nil {
		return mcpgo.NewToolResultErrorf("upsert failed: %s", err.Error()), nil
	}

	s.logger.Info("mcp: upserted professor", "id", prof.ID, "email", prof.Email)
	return toolResultJSON(prof)
}

// handleDeleteProfessor deletes a professor by ID.
func (s *Server) handleDeleteProfessor(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.engine == nil {
		return mcpgo.NewToolResultError("directory is unavailable"), nil
	}

	id := req.GetString("id", "")
	if strings.TrimSpace(id) == "" {
		return mcpgo.NewToolResultError("id is required and must not be empty"), nil
	}

	res, err := s.engine.DeleteProfessor(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return mcpgo.NewToolResultErrorf("professor %s not found", id), nil
		}
		return mcpgo.NewToolResultErrorf("delete failed: %s", err.Error()), nil
	}
	return toolResultJSON(res)
}

// handleDeleteDepartment deletes a department and everything under it.
func (s *Server) handleDeleteDepartment(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.engine == nil {
		return mcpgo.NewToolResultError("directory is unavailable"), nil
	}

	id := req.GetString("id", "")
	if strings.TrimSpace(id) == "" {
		return mcpgo.NewToolResultError("id is required and must not be empty"), nil
	}

	res, err := s.engine.DeleteDepartment(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return mcpgo.NewToolResultErrorf("department %s not found", id), nil
		}
		return mcpgo.NewToolResultErrorf("delete failed: %s", err.Error()), nil
	}

	s.logger.Warn("mcp: department deleted", "id", res.DepartmentID, "professors", res.ProfessorsDeleted, "branches", res.BranchesDeleted)
	return toolResultJSON(res)
}

// handleListNews returns the newest stored news items.
func (s *Server) handleListNews(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.engine == nil {
		return mcpgo.NewToolResultError("directory is unavailable"), nil
	}

	limit := req.GetInt("limit", defaultNewsLimit)
	if limit <= 0 {
		limit = defaultNewsLimit
	}
	limit = min(limit, maxNewsLimit)

	items, err := s.engine.ListNews(ctx, limit)
	if err != nil {
		return mcpgo.NewToolResultErrorf("listing news failed: %s", err.Error()), nil
	}
	return toolResultJSON(map[string]any{"items": items})
}

// handleFetchNews runs one ingestion pass.
func (s *Server) handleFetchNews(ctx context.Context, _ mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.fetcher == nil {
		return mcpgo.NewToolResultError("news ingestion is unavailable"), nil
	}
	return toolResultJSON(s.fetcher.FetchAndStore(ctx))
}
