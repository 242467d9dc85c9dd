// Package workspace keeps the editing sessions a server hosts and binds
// each one to a vault document.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/pile/internal/apperr"
	"github.com/starford/pile/internal/docservice"
	"github.com/starford/pile/internal/document"
	"github.com/starford/pile/internal/editor"
	"github.com/starford/pile/internal/render"
	"github.com/starford/pile/internal/storage"
	"github.com/starford/pile/internal/upload"
)

// EventPublisher receives session events.
type EventPublisher interface {
	PublishSessionEvent(sessionID, kind string, attrs map[string]string)
}

// Entry is one open session.
type Entry struct {
	ID       string    `json:"id"`
	Path     string    `json:"path"`
	OpenedAt time.Time `json:"opened_at"`

	Session *editor.Session `json:"-"`
}

// Workspace is a registry of editing sessions keyed by id.
type Workspace struct {
	docs     *docservice.Service
	schema   document.Schema
	renderer render.Renderer
	uploader upload.Uploader
	events   EventPublisher
	logger   *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Entry
}

// Option configures a Workspace.
type Option func(*Workspace)

// WithRenderer sets the preview renderer for new sessions.
func WithRenderer(r render.Renderer) Option {
	return func(w *Workspace) { w.renderer = r }
}

// WithUploader sets the uploader for new sessions.
func WithUploader(u upload.Uploader) Option {
	return func(w *Workspace) { w.uploader = u }
}

// WithEventPublisher forwards session events to p.
func WithEventPublisher(p EventPublisher) Option {
	return func(w *Workspace) { w.events = p }
}

// WithLogger sets the logger sessions derive theirs from.
func WithLogger(l *slog.Logger) Option {
	return func(w *Workspace) { w.logger = l }
}

// New creates a workspace whose sessions use schema.
func New(docs *docservice.Service, schema document.Schema, opts ...Option) (*Workspace, error) {
	if err := schema.Validate(); err != nil {
		return nil, fmt.Errorf("workspace: %w", err)
	}
	w := &Workspace{
		docs:     docs,
		schema:   schema,
		sessions: make(map[string]*Entry),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	return w, nil
}

// Open creates a session for the document at path. An existing document
// hydrates the session; otherwise it starts empty and the first save creates
// the file.
func (w *Workspace) Open(ctx context.Context, path string) (*Entry, error) {
	if !storage.IsDocument(path) {
		return nil, fmt.Errorf("workspace: %q is not a .md or .mdx path: %w", path, apperr.ErrInvalidInput)
	}

	var existing string
	detail, err := w.docs.Get(ctx, path)
	switch {
	case err == nil:
		existing = detail.Raw
	case errors.Is(err, apperr.ErrNotFound):
	default:
		return nil, fmt.Errorf("workspace: open %s: %w", path, err)
	}

	id := uuid.NewString()
	logger := w.logger.With(slog.String("session", id), slog.String("path", path))

	opts := []editor.Option{
		editor.WithLogger(logger),
		editor.WithEventCallback(func(kind string, attrs map[string]string) {
			if w.events != nil {
				w.events.PublishSessionEvent(id, kind, attrs)
			}
		}),
	}
	if w.renderer != nil {
		opts = append(opts, editor.WithRenderer(w.renderer))
	}
	if w.uploader != nil {
		opts = append(opts, editor.WithUploader(w.uploader))
	}

	save := func(serialized string) error {
		_, err := w.docs.Put(context.Background(), path, []byte(serialized))
		return err
	}
	sess, err := editor.New(w.schema, save, opts...)
	if err != nil {
		return nil, fmt.Errorf("workspace: %w", err)
	}
	if detail != nil {
		sess.Load(existing)
	}

	entry := &Entry{ID: id, Path: path, OpenedAt: time.Now().UTC(), Session: sess}
	w.mu.Lock()
	w.sessions[id] = entry
	w.mu.Unlock()

	logger.Info("session opened", slog.Bool("existing", detail != nil))
	return entry, nil
}

// Get returns the session with id.
func (w *Workspace) Get(id string) (*Entry, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	e, ok := w.sessions[id]
	if !ok {
		return nil, fmt.Errorf("workspace: session %s: %w", id, apperr.ErrNotFound)
	}
	return e, nil
}

// Close discards the session with id. Unsaved changes are lost.
func (w *Workspace) Close(id string) error {
	w.mu.Lock()
	e, ok := w.sessions[id]
	delete(w.sessions, id)
	w.mu.Unlock()
	if !ok {
		return fmt.Errorf("workspace: session %s: %w", id, apperr.ErrNotFound)
	}
	w.logger.Info("session closed", slog.String("session", id), slog.String("path", e.Path))
	return nil
}

// List returns the open sessions, oldest first.
func (w *Workspace) List() []*Entry {
	w.mu.RLock()
	out := make([]*Entry, 0, len(w.sessions))
	for _, e := range w.sessions {
		out = append(out, e)
	}
	w.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].OpenedAt.Equal(out[j].OpenedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].OpenedAt.Before(out[j].OpenedAt)
	})
	return out
}

// Schema returns the schema new sessions start with.
func (w *Workspace) Schema() document.Schema {
	return append(document.Schema(nil), w.schema...)
}
