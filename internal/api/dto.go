package api

import (
	"time"

	"github.com/starford/pile/internal/codec"
	"github.com/starford/pile/internal/docservice"
	"github.com/starford/pile/internal/document"
	"github.com/starford/pile/internal/editor"
	"github.com/starford/pile/internal/models"
)

// CreateDocumentRequest is the request body for creating a document.
type CreateDocumentRequest struct {
	Path    string `json:"path" example:"posts/hello.md" validate:"required"`
	Content string `json:"content" example:"---\ntitle: Hello\n---\nWorld"`
}

// UpdateDocumentRequest is the request body for updating a document.
type UpdateDocumentRequest struct {
	Content string `json:"content" example:"---\ntitle: Hello\n---\nUpdated"`
}

// DocumentDetail is the full document response type.
type DocumentDetail = docservice.Detail

// DocumentListResponse wraps paginated document listings.
type DocumentListResponse struct {
	Documents []docservice.ListItem `json:"documents" validate:"required"`
	Total     int                   `json:"total" example:"42" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []models.SearchHit `json:"results" validate:"required"`
}

// ReferrersResponse lists the documents embedding a media URL.
type ReferrersResponse struct {
	URL   string   `json:"url" example:"/attachments/cover.png"`
	Paths []string `json:"paths" validate:"required"`
}

// AttachmentUploadResponse is returned after a successful attachment upload.
type AttachmentUploadResponse struct {
	Filename string `json:"filename" example:"image.png" validate:"required"`
	Size     int64  `json:"size" example:"12345" validate:"required"`
	URL      string `json:"url" example:"/attachments/image.png" validate:"required"`
	Markdown string `json:"markdown" example:"![image.png](/attachments/image.png)"`
}

// OpenSessionRequest opens an editing session on a document path.
type OpenSessionRequest struct {
	Path string `json:"path" example:"posts/hello.md" validate:"required"`
}

// SessionResponse describes a session and its current state.
type SessionResponse struct {
	ID       string       `json:"id"`
	Path     string       `json:"path"`
	OpenedAt time.Time    `json:"opened_at"`
	State    editor.State `json:"state"`
}

// SessionListResponse wraps the open sessions.
type SessionListResponse struct {
	Sessions []SessionResponse `json:"sessions" validate:"required"`
}

// FieldRequest sets one front matter field.
type FieldRequest struct {
	Value string `json:"value" example:"Hello"`
}

// BodyRequest replaces the body.
type BodyRequest struct {
	Body string `json:"body" example:"# Heading"`
}

// SchemaRequest replaces the field schema.
type SchemaRequest struct {
	Fields document.Schema `json:"fields" validate:"required"`
}

// ModeResponse reports the mode after a toggle.
type ModeResponse struct {
	Mode editor.Mode `json:"mode" example:"preview"`
}

// PreviewResponse carries rendered HTML.
type PreviewResponse struct {
	HTML string `json:"html"`
}

// UploadResponse reports the outcome of an inserted upload.
type UploadResponse struct {
	Outcome string       `json:"outcome" example:"inserted"`
	State   editor.State `json:"state"`
}

// SaveResponse carries the serialized document.
type SaveResponse struct {
	Document string `json:"document"`
}

// ParseRequest is the input of the codec parse endpoint.
type ParseRequest struct {
	Text string `json:"text" example:"---\ntitle: Hello\n---\nBody"`
}

// ParseResponse is the decoded document with derived metadata.
type ParseResponse struct {
	Data    map[string]any `json:"data"`
	Content string         `json:"content"`
	Summary codec.Summary  `json:"summary"`
}

// SerializeRequest is the input of the codec serialize endpoint. Keys named
// in Order come first, in that order.
type SerializeRequest struct {
	Data    map[string]any `json:"data"`
	Content string         `json:"content"`
	Order   []string       `json:"order,omitempty"`
}

// SerializeResponse carries the encoded document text.
type SerializeResponse struct {
	Text string `json:"text"`
}
