// Package storage defines the vault file-system abstraction.
package storage

import (
	"path/filepath"
	"strings"

	"github.com/starford/pile/internal/models"
)

// DocumentExtensions are the file extensions treated as documents.
var DocumentExtensions = []string{".md", ".mdx"}

// Provider is the interface for vault file operations.
type Provider interface {
	// List returns metadata for every document under dir (relative to vault root).
	List(dir string) ([]models.FileMetadata, error)
	// Read returns the raw bytes of the file at path (relative to vault root).
	Read(path string) ([]byte, error)
	// Write atomically writes content to path (relative to vault root).
	Write(path string, content []byte) error
	// Delete removes the file at path (relative to vault root).
	Delete(path string) error
	// Move renames oldPath to newPath (both relative to vault root).
	Move(oldPath, newPath string) error
}

// IsDocument reports whether name has a document extension.
func IsDocument(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range DocumentExtensions {
		if ext == e {
			return true
		}
	}
	return false
}
