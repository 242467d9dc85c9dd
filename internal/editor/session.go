// Package editor holds the live state of one document editing session and
// the transitions a user drives on it: editing fields and body, switching
// between edit and preview, inserting uploaded media and saving.
//
// Every transition runs under the session lock and is atomic with respect to
// the others. The uploader call in InsertUpload is the single point where
// the lock is released mid-transition, so other transitions (including a
// Save that will not see the pending insertion) may interleave with it.
package editor

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/starford/pile/internal/codec"
	"github.com/starford/pile/internal/document"
	"github.com/starford/pile/internal/render"
	"github.com/starford/pile/internal/upload"
)

// Mode is the presentation state of the body.
type Mode string

// Modes.
const (
	ModeEdit    Mode = "edit"
	ModePreview Mode = "preview"
)

// PreviewPlaceholder is shown instead of rendering an empty body.
const PreviewPlaceholder = "No content yet. Start writing to see the preview."

var (
	// ErrBodyReadOnly is returned by EditBody while previewing.
	ErrBodyReadOnly = errors.New("editor: body is read-only in preview mode")
	// ErrNotPreviewing is returned by Preview in edit mode.
	ErrNotPreviewing = errors.New("editor: session is not in preview mode")
)

// SaveFunc receives the serialized document on every save.
type SaveFunc func(serialized string) error

// State is a point-in-time copy of the session.
type State struct {
	Schema    document.Schema      `json:"schema"`
	Fields    document.FrontMatter `json:"fields"`
	Body      string               `json:"body"`
	Mode      Mode                 `json:"mode"`
	Uploading bool                 `json:"uploading"`
}

// Session is one in-memory editing session.
type Session struct {
	mu         sync.Mutex
	schema     document.Schema
	fields     document.FrontMatter
	body       string
	mode       Mode
	inflight   int
	generation uint64

	onSave   SaveFunc
	renderer render.Renderer
	uploader upload.Uploader
	logger   *slog.Logger
	onEvent  EventFunc
}

// Option configures a Session.
type Option func(*Session)

// WithRenderer sets the preview renderer.
func WithRenderer(r render.Renderer) Option {
	return func(s *Session) { s.renderer = r }
}

// WithUploader sets the upload capability. It is resolved once here and
// used for every upload of the session.
func WithUploader(u upload.Uploader) Option {
	return func(s *Session) { s.uploader = u }
}

// WithLogger sets the sink for info and error events.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithEventCallback registers fn to observe session events.
func WithEventCallback(fn EventFunc) Option {
	return func(s *Session) { s.onEvent = fn }
}

// WithBody sets the initial body.
func WithBody(body string) Option {
	return func(s *Session) { s.body = body }
}

// New creates a session in edit mode with an empty value for every schema key.
func New(schema document.Schema, onSave SaveFunc, opts ...Option) (*Session, error) {
	if onSave == nil {
		return nil, errors.New("editor: save callback is required")
	}
	if err := schema.Validate(); err != nil {
		return nil, fmt.Errorf("editor: %w", err)
	}

	s := &Session{
		schema: append(document.Schema(nil), schema...),
		mode:   ModeEdit,
		onSave: onSave,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.renderer == nil {
		s.renderer = render.NewMarkdown()
	}
	if s.uploader == nil {
		s.uploader = upload.Default
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	s.fields = document.Resync(nil, s.schema.Keys())
	return s, nil
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		Schema:    append(document.Schema(nil), s.schema...),
		Fields:    s.fields.Clone(),
		Body:      s.body,
		Mode:      s.mode,
		Uploading: s.inflight > 0,
	}
}

// Uploading reports whether an upload is in flight.
func (s *Session) Uploading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight > 0
}

// ToggleMode flips between edit and preview and returns the new mode.
func (s *Session) ToggleMode() Mode {
	s.mu.Lock()
	if s.mode == ModeEdit {
		s.mode = ModePreview
	} else {
		s.mode = ModeEdit
	}
	mode := s.mode
	s.mu.Unlock()

	s.emit(EventModeChanged, map[string]string{"mode": string(mode)})
	return mode
}

// EditField sets one declared field. Undeclared keys are rejected with
// document.ErrInvalidFieldKey.
func (s *Session) EditField(key, value string) error {
	s.mu.Lock()
	fields, err := document.SetField(s.fields, key, value)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("editor: %w", err)
	}
	s.fields = fields
	s.mu.Unlock()

	s.emit(EventFieldChanged, map[string]string{"key": key})
	return nil
}

// EditBody replaces the body. The body is only editable in edit mode.
func (s *Session) EditBody(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != ModeEdit {
		return ErrBodyReadOnly
	}
	s.body = text
	return nil
}

// UpdateSchema replaces the schema and resyncs the fields to its keys.
// Body and mode are left alone.
func (s *Session) UpdateSchema(schema document.Schema) error {
	if err := schema.Validate(); err != nil {
		return fmt.Errorf("editor: %w", err)
	}
	s.mu.Lock()
	s.schema = append(document.Schema(nil), schema...)
	s.fields = document.Resync(s.fields, s.schema.Keys())
	s.mu.Unlock()

	s.emit(EventSchemaUpdated, map[string]string{"keys": strings.Join(schema.Keys(), ",")})
	return nil
}

// Preview renders the body. A body that is empty after trimming whitespace
// yields PreviewPlaceholder without calling the renderer.
func (s *Session) Preview() (string, error) {
	s.mu.Lock()
	mode, body := s.mode, s.body
	s.mu.Unlock()

	if mode != ModePreview {
		return "", ErrNotPreviewing
	}
	if strings.TrimSpace(body) == "" {
		return PreviewPlaceholder, nil
	}
	out, err := s.renderer.Render(body)
	if err != nil {
		return "", fmt.Errorf("editor: preview: %w", err)
	}
	return out, nil
}

// Save serializes the fields (in schema order) and body and hands the result
// to the save callback exactly once. The session state is not changed.
func (s *Session) Save() (string, error) {
	s.mu.Lock()
	doc := document.Document{Data: s.fields.Data(), Content: s.body}
	keys := s.schema.Keys()
	s.mu.Unlock()

	out, err := codec.SerializeOrdered(doc, keys)
	if err != nil {
		return "", fmt.Errorf("editor: save: %w", err)
	}
	s.logger.Info("document serialized", slog.Int("bytes", len(out)))
	s.logger.Debug("document output", slog.String("document", out))

	if err := s.onSave(out); err != nil {
		s.logger.Error("save callback failed", slog.String("error", err.Error()))
		return out, fmt.Errorf("editor: save: %w", err)
	}
	s.emit(EventDocumentSaved, map[string]string{"bytes": fmt.Sprint(len(out))})
	return out, nil
}

// Load replaces fields and body with the parsed form of text. Metadata keys
// the schema does not declare are dropped; non-string values are formatted.
// Uploads dispatched before Load are discarded when they complete.
func (s *Session) Load(text string) {
	doc := codec.Parse(text)
	loaded := make(document.FrontMatter, len(doc.Data))
	for k, v := range doc.Data {
		loaded[k] = scalarString(v)
	}

	s.mu.Lock()
	s.fields = document.Resync(loaded, s.schema.Keys())
	s.body = doc.Content
	s.generation++
	s.mu.Unlock()
}

func scalarString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}
