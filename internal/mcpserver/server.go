// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes GTD Space tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/gtdspace/internal/calendar"
	"github.com/starford/gtdspace/internal/docservice"
	"github.com/starford/gtdspace/internal/models"
	"github.com/starford/gtdspace/internal/workspace"
)

const formatResourceURI = "gtdspace://document-format"

// Server wraps the MCP server with GTD Space tools.
type Server struct {
	mcp *server.MCPServer
	svc *docservice.Service
}

// New creates a new MCP server with all tools registered.
func New(svc *docservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"GTD Space",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("get_schedule",
		mcp.WithDescription("Calendar entries (due dates, focus blocks, habit occurrences, external events) "+
			"for a range of days. Entries carry the id used by move_entry and resize_entry."),
		mcp.WithString("start", mcp.Description("First day, YYYY-MM-DD. Defaults to the current week")),
		mcp.WithString("end", mcp.Description("Last day, inclusive, YYYY-MM-DD")),
		mcp.WithString("span", mcp.Description("Length when end is omitted, e.g. 1w, 3d, 1w2d")),
		mcp.WithString("kinds", mcp.Description("Comma-separated subset of due,focus,habit,external")),
	), s.getSchedule)

	s.mcp.AddTool(mcp.NewTool("move_entry",
		mcp.WithDescription("Move a due or focus entry to another day, optionally at a new time. "+
			"Rewrites the single date field of the source document."),
		mcp.WithString("entry_id", mcp.Required(), mcp.Description("Entry id from get_schedule")),
		mcp.WithString("target_date", mcp.Required(), mcp.Description("Target day, YYYY-MM-DD")),
		mcp.WithNumber("target_hour", mcp.Description("Hour 0-23; keeps the entry's time when omitted")),
		mcp.WithNumber("target_minute", mcp.Description("Minute 0-59")),
		mcp.WithString("start", mcp.Description("First day of the window the entry was listed in")),
		mcp.WithString("end", mcp.Description("Last day of the window the entry was listed in")),
	), s.moveEntry)

	s.mcp.AddTool(mcp.NewTool("resize_entry",
		mcp.WithDescription("Change the planned duration of an action's focus block. "+
			"The duration is stored as the nearest effort bucket."),
		mcp.WithString("entry_id", mcp.Required(), mcp.Description("Focus entry id from get_schedule")),
		mcp.WithNumber("minutes", mcp.Required(), mcp.Description("New duration in minutes")),
		mcp.WithString("start", mcp.Description("First day of the window the entry was listed in")),
		mcp.WithString("end", mcp.Description("Last day of the window the entry was listed in")),
	), s.resizeEntry)

	s.mcp.AddTool(mcp.NewTool("read_document",
		mcp.WithDescription("Read a workspace document: raw Markdown plus decoded fields and backlinks."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path (e.g. Projects/Launch/README.md)")),
	), s.readDocument)

	s.mcp.AddTool(mcp.NewTool("list_habits",
		mcp.WithDescription("Every habit with its completion state, reset times and history ledger."),
	), s.listHabits)

	s.mcp.AddTool(mcp.NewTool("set_habit_status",
		mcp.WithDescription("Mark a habit complete or not complete. Appends a row to its history ledger."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Habit document path (e.g. Habits/Stretch.md)")),
		mcp.WithBoolean("completed", mcp.Required(), mcp.Description("New state")),
	), s.setHabitStatus)

	s.mcp.AddTool(mcp.NewTool("reference_options",
		mcp.WithDescription("Documents that a horizon's reference list may point at."),
		mcp.WithString("horizon", mcp.Required(),
			mcp.Enum("references", "projects", "areas", "goals", "vision", "purpose"),
			mcp.Description("Reference horizon")),
	), s.referenceOptions)

	s.mcp.AddTool(mcp.NewTool("search_documents",
		mcp.WithDescription("Full-text search through document content and titles."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchDocuments)

	s.mcp.AddTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("Find all documents that reference the specified document."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path of the document to find backlinks for")),
	), s.getBacklinks)

	s.mcp.AddTool(mcp.NewTool("get_document_contract",
		mcp.WithDescription("Returns the GTD Space document format contract: tag grammar, keys per "+
			"document kind and the history ledger layout."),
	), s.getDocumentContract)

	// Resource: document format contract.
	s.mcp.AddResource(
		mcp.NewResource(formatResourceURI, "Document Format Contract",
			mcp.WithResourceDescription("Tag and ledger grammar that all workspace documents follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readFormatResource,
	)

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

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) window(req mcp.CallToolRequest, span string) (calendar.Window, bool, error) {
	return calendar.ParseWindow(req.GetString("start", ""), req.GetString("end", ""), span,
		s.svc.Workspace().Location())
}

func (s *Server) getSchedule(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	win, ok, err := s.window(req, req.GetString("span", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	kinds, err := calendar.ParseKinds(req.GetString("kinds", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !ok {
		win = s.svc.Workspace().Window()
	}
	return jsonResult(s.svc.Schedule(ctx, win, kinds))
}

func optionalInt(req mcp.CallToolRequest, key string) *int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return nil
	}
	n := int(v)
	return &n
}

func (s *Server) moveEntry(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("entry_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	date, err := req.RequireString("target_date")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	win, _, err := s.window(req, "")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.MoveEntry(ctx, win, workspace.Gesture{
		EntryID:      id,
		TargetDate:   date,
		TargetHour:   optionalInt(req, "target_hour"),
		TargetMinute: optionalInt(req, "target_minute"),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res)
}

func (s *Server) resizeEntry(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("entry_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	minutes, err := req.RequireFloat("minutes")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	win, _, err := s.window(req, "")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.ResizeEntry(ctx, win, workspace.Gesture{EntryID: id, Minutes: int(minutes)})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res)
}

func (s *Server) readDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := s.svc.GetDocument(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}
	return jsonResult(doc)
}

func (s *Server) listHabits(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.svc.ListHabits(ctx))
}

func (s *Server) setHabitStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	completed, err := req.RequireBool("completed")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	sum, err := s.svc.SetHabitStatus(ctx, path, completed)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(sum)
}

func (s *Server) referenceOptions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	h, err := req.RequireString("horizon")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	opts, err := s.svc.ReferenceOptions(ctx, models.Horizon(h))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(opts)
}

func (s *Server) searchDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results)
}

func (s *Server) getBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	bl, err := s.svc.Backlinks(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(bl) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	lines := make([]string, len(bl))
	for i, b := range bl {
		lines[i] = b.Source
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) getDocumentContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(DocumentFormatContract), nil
}

func (s *Server) readFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      formatResourceURI,
			MIMEType: "text/markdown",
			Text:     DocumentFormatContract,
		},
	}, nil
}
