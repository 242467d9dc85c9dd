// Package models defines the types shared between storage, the index and
// the services built on them.
package models

import "time"

// FileMetadata is what storage reports for a vault file without parsing it.
type FileMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SearchHit is a search result with an optional highlighted excerpt.
type SearchHit struct {
	Path    string `json:"path"`
	Title   string `json:"title"`
	Snippet string `json:"snippet,omitempty"`
}
