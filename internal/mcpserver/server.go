// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Sowilo notes and editing sessions for LLM integration via
// stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/sowilo/internal/document"
	"github.com/starford/sowilo/internal/notebook"
	"github.com/starford/sowilo/internal/outline"
	"github.com/starford/sowilo/internal/script"
	"github.com/starford/sowilo/internal/session"
)

const contractURI = "sowilo://outline-format"

// Server wraps the MCP server with Sowilo tools.
type Server struct {
	mcp      *server.MCPServer
	book     *notebook.Service
	sessions *session.Registry
}

// New creates a new MCP server with all Sowilo tools registered.
func New(book *notebook.Service, sessions *session.Registry, version string) *Server {
	s := &Server{book: book, sessions: sessions}

	s.mcp = server.NewMCPServer(
		"Sowilo",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List all notes with their ids and titles."),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Full-text search through note titles and element text."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read a note as a Markdown outline."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id (uuid)")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("create_note",
		mcp.WithDescription("Create a note, either empty with a title or from a Markdown outline. "+
			"The outline MUST follow the format returned by get_outline_contract."),
		mcp.WithString("title", mcp.Description("Title of an empty note")),
		mcp.WithString("outline", mcp.Description("Markdown outline to import")),
	), s.createNote)

	s.mcp.AddTool(mcp.NewTool("get_outline_contract",
		mcp.WithDescription("Returns the outline format and the edit step reference. "+
			"Call this before creating notes or applying steps."),
	), s.getContract)

	s.mcp.AddTool(mcp.NewTool("open_session",
		mcp.WithDescription("Open an editing session on a note. Each session has its own undo history."),
		mcp.WithString("note_id", mcp.Required(), mcp.Description("Note id (uuid)")),
	), s.openSession)

	s.mcp.AddTool(mcp.NewTool("apply_steps",
		mcp.WithDescription("Apply edit steps in a session. Steps run in order and stop at the first failure; "+
			"earlier steps stay applied."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id")),
		mcp.WithArray("steps", mcp.Required(),
			mcp.Description("Edit steps, e.g. {\"op\":\"type\",\"element\":\"0\",\"text\":\"hi\",\"cursor\":0}"),
			mcp.Items(map[string]any{"type": "object"}),
		),
	), s.applySteps)

	s.mcp.AddTool(mcp.NewTool("undo",
		mcp.WithDescription("Undo the newest history entry of a session."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id")),
	), s.undo)

	s.mcp.AddTool(mcp.NewTool("redo",
		mcp.WithDescription("Redo the newest undone entry of a session."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id")),
	), s.redo)

	s.mcp.AddTool(mcp.NewTool("close_session",
		mcp.WithDescription("Close a session and drop its history."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id")),
	), s.closeSession)

	s.mcp.AddTool(mcp.NewTool("upload_file",
		mcp.WithDescription("Upload an image from an http(s) URL or a base64 data URI. "+
			"Returns the file id to use in an insert_element step with kind \"image\"."),
		mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL or data URI")),
		mcp.WithString("filename", mcp.Description("Optional file name")),
	), s.uploadFile)

	// Resource: outline format contract.
	s.mcp.AddResource(
		mcp.NewResource(contractURI, "Outline Format Contract",
			mcp.WithResourceDescription("Markdown outline format and edit step reference."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContractResource,
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

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func requireID(req mcp.CallToolRequest, key string) (uuid.UUID, error) {
	raw, err := req.RequireString(key)
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return id, nil
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	notes := s.book.ListNotes()
	lines := make([]string, len(notes))
	for i, n := range notes {
		lines[i] = n.ID.String() + "\t" + n.Title
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.book.Search(query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireID(req, "id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var out []byte
	err = s.book.WithNote(id, func(n *document.Note) error {
		var err error
		out, err = outline.Export(n)
		return err
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) createNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title := req.GetString("title", "")
	text := req.GetString("outline", "")
	if text == "" {
		sum, err := s.book.CreateNote(title)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(sum), nil
	}

	n, err := outline.Import([]byte(text))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if title != "" {
		n.Title = title
	}
	sum, err := s.book.AddNote(n)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(sum), nil
}

func (s *Server) getContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(OutlineFormatContract), nil
}

func (s *Server) readContractResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contractURI,
			MIMEType: "text/markdown",
			Text:     OutlineFormatContract,
		},
	}, nil
}

func (s *Server) openSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	noteID, err := requireID(req, "note_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	sess, err := s.sessions.Open(noteID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(sess), nil
}

type applyResult struct {
	Results []script.Result `json:"results"`
	History any             `json:"history"`
	Error   string          `json:"error,omitempty"`
}

func (s *Server) applySteps(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireID(req, "session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	raw, ok := req.GetArguments()["steps"]
	if !ok {
		return mcp.NewToolResultError("steps are required"), nil
	}
	// Arguments arrive as generic JSON values.
	data, err := json.Marshal(raw)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var steps []script.Step
	if err := json.Unmarshal(data, &steps); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid steps: %v", err)), nil
	}
	if len(steps) == 0 {
		return mcp.NewToolResultError("steps are required"), nil
	}

	results, hist, err := s.sessions.Apply(id, steps)
	if err != nil && results == nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res := applyResult{Results: results, History: hist}
	if err != nil {
		res.Error = err.Error()
		out := jsonResult(res)
		out.IsError = true
		return out, nil
	}
	return jsonResult(res), nil
}

func (s *Server) undo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireID(req, "session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	hist, err := s.sessions.Undo(id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(hist), nil
}

func (s *Server) redo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireID(req, "session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	hist, err := s.sessions.Redo(id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(hist), nil
}

func (s *Server) closeSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireID(req, "session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.sessions.Close(id); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("closed: %s", id)), nil
}
