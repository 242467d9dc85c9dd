// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes Pile document tools for LLM integration over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/pile/internal/apperr"
	"github.com/starford/pile/internal/codec"
	"github.com/starford/pile/internal/docservice"
	"github.com/starford/pile/internal/document"
	"github.com/starford/pile/internal/upload"
)

const formatURI = "pile://document-format"

// Server wraps the MCP server with Pile tools.
type Server struct {
	mcp   *server.MCPServer
	docs  *docservice.Service
	vault *upload.Vault
}

// New creates an MCP server with all Pile tools registered.
func New(docs *docservice.Service, vault *upload.Vault) *Server {
	s := &Server{docs: docs, vault: vault}

	s.mcp = server.NewMCPServer(
		"Pile",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("parse_document",
		mcp.WithDescription("Split document text into its front-matter data and body. Never fails: "+
			"text without a valid front-matter block comes back as body with empty data."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Full document text")),
	), s.parseDocument)

	s.mcp.AddTool(mcp.NewTool("serialize_document",
		mcp.WithDescription("Build document text from front-matter data and a body."),
		mcp.WithString("data", mcp.Required(), mcp.Description(`Front-matter as a JSON object, e.g. {"title":"Hi"}`)),
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown body")),
		mcp.WithString("order", mcp.Description("Optional comma-separated keys to write first")),
	), s.serializeDocument)

	s.mcp.AddTool(mcp.NewTool("read_document",
		mcp.WithDescription("Read the full text of a document."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the document (e.g. posts/hello.md)")),
	), s.readDocument)

	s.mcp.AddTool(mcp.NewTool("list_documents",
		mcp.WithDescription("List documents, optionally inside a folder or carrying a tag."),
		mcp.WithString("folder", mcp.Description("Optional folder prefix (empty for all)")),
		mcp.WithString("tag", mcp.Description("Optional tag filter")),
	), s.listDocuments)

	s.mcp.AddTool(mcp.NewTool("search_documents",
		mcp.WithDescription("Full-text search through document titles, bodies and tags."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchDocuments)

	s.mcp.AddTool(mcp.NewTool("create_document",
		mcp.WithDescription("Create a new document at the specified path. Content MUST follow the "+
			"document format contract; read it first via get_document_contract or the "+formatURI+" resource."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path for the new document (.md or .mdx)")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Document text following the format contract")),
	), s.createDocument)

	s.mcp.AddTool(mcp.NewTool("get_document_contract",
		mcp.WithDescription("Returns the Pile document format contract. "+
			"Call this before creating documents to ensure correct structure."),
	), s.getDocumentContract)

	s.mcp.AddTool(mcp.NewTool("get_referrers",
		mcp.WithDescription("Find the documents that embed a media URL."),
		mcp.WithString("url", mcp.Required(), mcp.Description("Media URL as written in the body, e.g. /attachments/a.png")),
	), s.getReferrers)

	if vault != nil {
		s.mcp.AddTool(mcp.NewTool("upload_asset",
			mcp.WithDescription("Store an image or media file in the vault attachments from an http(s) URL "+
				"or a base64 data URI. Returns the stored path and a markdown reference."),
			mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL or data: URI")),
			mcp.WithString("filename", mcp.Description("Optional file name including extension")),
		), s.uploadAsset)
	}

	s.mcp.AddResource(
		mcp.NewResource(formatURI, "Document Format Contract",
			mcp.WithResourceDescription("Front matter and body layout every document follows."),
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

func (s *Server) parseDocument(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, err := json.MarshalIndent(codec.Parse(text), "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("front matter has no JSON form: %v", err)), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) serializeDocument(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rawData, err := req.RequireString("data")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var order []string
	if v, oErr := req.RequireString("order"); oErr == nil && v != "" {
		for _, k := range strings.Split(v, ",") {
			order = append(order, strings.TrimSpace(k))
		}
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(rawData), &data); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("data must be a JSON object: %v", err)), nil
	}
	out, err := codec.SerializeOrdered(document.Document{Data: data, Content: content}, order)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(out), nil
}

func (s *Server) readDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := s.docs.Get(ctx, path)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(doc.Raw), nil
}

func (s *Server) listDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	folder, tag := "", ""
	if v, err := req.RequireString("folder"); err == nil {
		folder = strings.Trim(v, "/")
	}
	if v, err := req.RequireString("tag"); err == nil {
		tag = v
	}

	items, _, err := s.docs.List(ctx, 10000, 0, tag, "")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var paths []string
	for _, it := range items {
		if folder != "" && !strings.HasPrefix(it.Path, folder+"/") {
			continue
		}
		paths = append(paths, it.Path)
	}
	if len(paths) == 0 {
		return mcp.NewToolResultText("no documents found"), nil
	}
	return mcp.NewToolResultText(strings.Join(paths, "\n")), nil
}

func (s *Server) searchDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	hits, err := s.docs.Search(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(hits, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) createDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if _, err := s.docs.Create(ctx, path, []byte(content)); err != nil {
		switch {
		case errors.Is(err, apperr.ErrAlreadyExists):
			return mcp.NewToolResultError(fmt.Sprintf("document already exists: %s", path)), nil
		case errors.Is(err, apperr.ErrInvalidInput):
			return mcp.NewToolResultError(fmt.Sprintf("invalid path: %s (must end with .md or .mdx)", path)), nil
		default:
			return mcp.NewToolResultError(err.Error()), nil
		}
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", path)), nil
}

func (s *Server) getDocumentContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(DocumentFormatContract), nil
}

func (s *Server) getReferrers(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	url, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	refs, err := s.docs.Referrers(ctx, url)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(refs) == 0 {
		return mcp.NewToolResultText("no referrers found"), nil
	}
	return mcp.NewToolResultText(strings.Join(refs, "\n")), nil
}

func (s *Server) readFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      formatURI,
			MIMEType: "text/markdown",
			Text:     DocumentFormatContract,
		},
	}, nil
}
