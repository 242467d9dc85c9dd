// Package docservice coordinates vault storage and the index for document
// reads and writes.
package docservice

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/starford/pile/internal/apperr"
	"github.com/starford/pile/internal/checksum"
	"github.com/starford/pile/internal/codec"
	"github.com/starford/pile/internal/index"
	"github.com/starford/pile/internal/models"
	"github.com/starford/pile/internal/storage"
)

// Detail is the full representation of a document.
type Detail struct {
	Path      string         `json:"path"`
	Title     string         `json:"title"`
	Raw       string         `json:"raw"`
	Data      map[string]any `json:"data"`
	Content   string         `json:"content"`
	Checksum  string         `json:"checksum"`
	Tags      []string       `json:"tags"`
	Media     []string       `json:"media"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// ListItem is a lightweight item in a list response.
type ListItem struct {
	Path      string    `json:"path"`
	Title     string    `json:"title"`
	Checksum  string    `json:"checksum"`
	Tags      []string  `json:"tags"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Service coordinates storage and index operations.
type Service struct {
	store    storage.Provider
	db       index.DocumentIndex
	onChange index.EventCallback
}

// Option configures a Service.
type Option func(*Service)

// WithChangeCallback registers fn to run after every successful write or
// delete, with the same kinds the vault watcher reports.
func WithChangeCallback(fn index.EventCallback) Option {
	return func(s *Service) { s.onChange = fn }
}

// NewService creates a new document service.
func NewService(store storage.Provider, db index.DocumentIndex, opts ...Option) *Service {
	s := &Service{store: store, db: db}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get reads a document from storage and parses it.
func (s *Service) Get(_ context.Context, path string) (*Detail, error) {
	data, err := s.read(path)
	if err != nil {
		return nil, err
	}
	return buildDetail(path, data), nil
}

// Exists reports whether a document is stored at path.
func (s *Service) Exists(_ context.Context, path string) (bool, error) {
	_, err := s.read(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, apperr.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// Create writes a new document and indexes it.
func (s *Service) Create(_ context.Context, path string, content []byte) (*Detail, error) {
	if err := validatePath(path); err != nil {
		return nil, err
	}
	if _, err := s.store.Read(path); err == nil {
		return nil, fmt.Errorf("docservice: %s: %w", path, apperr.ErrAlreadyExists)
	}
	if err := s.write(path, content); err != nil {
		return nil, err
	}
	s.notify(index.EventCreated, path)
	return buildDetail(path, content), nil
}

// Update writes new content with optimistic concurrency: a non-empty
// ifMatch must name the checksum of the stored file (see checksum.Matches).
func (s *Service) Update(_ context.Context, path string, content []byte, ifMatch string) (*Detail, error) {
	existing, err := s.read(path)
	if err != nil {
		return nil, err
	}
	if ifMatch != "" && !checksum.Matches(ifMatch, existing) {
		return nil, fmt.Errorf("docservice: %s: %w", path, apperr.ErrConflict)
	}
	if err := s.write(path, content); err != nil {
		return nil, err
	}
	s.notify(index.EventUpdated, path)
	return buildDetail(path, content), nil
}

// Put creates or replaces the document at path.
func (s *Service) Put(ctx context.Context, path string, content []byte) (*Detail, error) {
	exists, err := s.Exists(ctx, path)
	if err != nil {
		return nil, err
	}
	if exists {
		return s.Update(ctx, path, content, "")
	}
	return s.Create(ctx, path, content)
}

// Delete removes a document from storage and index.
func (s *Service) Delete(_ context.Context, path string) error {
	if err := s.store.Delete(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("docservice: %s: %w", path, apperr.ErrNotFound)
		}
		return err
	}
	if err := s.db.DeleteDocument(path); err != nil {
		return err
	}
	s.notify(index.EventDeleted, path)
	return nil
}

// List returns paginated documents with an optional tag filter.
func (s *Service) List(_ context.Context, limit, offset int, tag, sort string) ([]ListItem, int, error) {
	rows, total, err := s.db.ListDocuments(limit, offset, tag, sort)
	if err != nil {
		return nil, 0, err
	}
	items := make([]ListItem, len(rows))
	for i, r := range rows {
		items[i] = ListItem{
			Path:      r.Path,
			Title:     r.Title,
			Checksum:  r.Checksum,
			Tags:      nonNilSlice(r.Tags),
			UpdatedAt: r.UpdatedAt,
		}
	}
	return items, total, nil
}

// Search delegates full-text search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]models.SearchHit, error) {
	results, err := s.db.Search(query, limit)
	if err != nil {
		return nil, err
	}
	hits := make([]models.SearchHit, len(results))
	for i, r := range results {
		hits[i] = models.SearchHit{Path: r.Path, Title: r.Title, Snippet: r.Snippet}
	}
	return hits, nil
}

// Referrers returns the documents that embed the media at url.
func (s *Service) Referrers(_ context.Context, url string) ([]string, error) {
	refs, err := s.db.Referrers(url)
	if err != nil {
		return nil, err
	}
	return nonNilSlice(refs), nil
}

// IndexFile parses data and upserts it into the index.
func (s *Service) IndexFile(path string, data []byte) error {
	return index.IndexFile(s.db, path, data)
}

func (s *Service) read(path string) ([]byte, error) {
	data, err := s.store.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("docservice: %s: %w", path, apperr.ErrNotFound)
		}
		return nil, err
	}
	return data, nil
}

func (s *Service) write(path string, content []byte) error {
	if err := s.store.Write(path, content); err != nil {
		return err
	}
	return s.IndexFile(path, content)
}

func (s *Service) notify(kind, path string) {
	if s.onChange != nil {
		s.onChange(kind, path)
	}
}

// validatePath rejects paths that are not documents.
func validatePath(path string) error {
	if path == "" || !storage.IsDocument(path) {
		return fmt.Errorf("docservice: %q is not a .md or .mdx path: %w", path, apperr.ErrInvalidInput)
	}
	return nil
}

func buildDetail(path string, data []byte) *Detail {
	doc := codec.Parse(string(data))
	sum := codec.Inspect(doc)
	return &Detail{
		Path:      path,
		Title:     sum.Title,
		Raw:       string(data),
		Data:      doc.Data,
		Content:   doc.Content,
		Checksum:  checksum.Sum(data),
		Tags:      nonNilSlice(sum.Tags),
		Media:     nonNilSlice(sum.Media),
		UpdatedAt: time.Now().UTC(),
	}
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
