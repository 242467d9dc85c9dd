package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/starford/pile/internal/apperr"
)

// DocumentRow represents a row in the documents table.
type DocumentRow struct {
	Path      string
	Title     string
	Checksum  string
	Tags      []string
	Fields    map[string]any
	UpdatedAt time.Time
}

// SearchResult represents one search hit.
type SearchResult struct {
	Path    string
	Title   string
	Snippet string
}

// Sort orders accepted by ListDocuments.
const (
	SortPath    = "path"
	SortTitle   = "title"
	SortUpdated = "updated"
)

// UpsertDocument inserts or replaces a document, its FTS entry and its media
// references within a transaction.
func (db *DB) UpsertDocument(d DocumentRow, body string, media []string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	tags := d.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, _ := json.Marshal(tags)
	fieldsJSON, err := json.Marshal(d.Fields)
	if err != nil || d.Fields == nil {
		// Metadata with non-string map keys has no JSON form.
		fieldsJSON = []byte("{}")
	}

	_, err = tx.Exec(`
		INSERT INTO documents (path, title, checksum, tags, fields, body, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			title      = excluded.title,
			checksum   = excluded.checksum,
			tags       = excluded.tags,
			fields     = excluded.fields,
			body       = excluded.body,
			updated_at = excluded.updated_at
	`, d.Path, d.Title, d.Checksum, string(tagsJSON), string(fieldsJSON), body, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert document: %w", err)
	}

	if err := ftsUpsert(tx, d.Path, d.Title, body, d.Tags); err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM media WHERE source = ?`, d.Path); err != nil {
		return fmt.Errorf("index: clear media: %w", err)
	}
	if len(media) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO media (source, url) VALUES (?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare media insert: %w", err)
		}
		defer stmt.Close()
		for _, url := range media {
			if _, err := stmt.Exec(d.Path, url); err != nil {
				return fmt.Errorf("index: insert media: %w", err)
			}
		}
	}

	return tx.Commit()
}

// DeleteDocument removes a document, its FTS entry and its media references.
func (db *DB) DeleteDocument(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, path)
	_, _ = tx.Exec(`DELETE FROM media WHERE source = ?`, path)
	if _, err := tx.Exec(`DELETE FROM documents WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: delete document: %w", err)
	}

	return tx.Commit()
}

// GetChecksum returns the stored checksum for a document, or empty string
// if it is not indexed.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM documents WHERE path = ?`, path).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: checksum: %w", err)
	}
	return cs, nil
}

// GetDocument returns one indexed document.
func (db *DB) GetDocument(path string) (*DocumentRow, error) {
	row := db.conn.QueryRow(`
		SELECT path, title, checksum, tags, fields, updated_at
		FROM documents WHERE path = ?
	`, path)
	d, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: %s: %w", path, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: get document: %w", err)
	}
	return d, nil
}

// ListDocuments returns a page of documents and the total count. A non-empty
// tag restricts the listing to documents carrying it.
func (db *DB) ListDocuments(limit, offset int, tag, sort string) ([]DocumentRow, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	order := "path ASC"
	switch sort {
	case SortTitle:
		order = "title COLLATE NOCASE ASC, path ASC"
	case SortUpdated:
		order = "updated_at DESC, path ASC"
	}

	where := ""
	var args []any
	if tag != "" {
		where = `WHERE EXISTS (SELECT 1 FROM json_each(documents.tags) WHERE json_each.value = ?)`
		args = append(args, tag)
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM documents `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count documents: %w", err)
	}

	rows, err := db.conn.Query(`
		SELECT path, title, checksum, tags, fields, updated_at
		FROM documents `+where+`
		ORDER BY `+order+`
		LIMIT ? OFFSET ?
	`, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list documents: %w", err)
	}
	defer rows.Close()

	var out []DocumentRow
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("index: scan document: %w", err)
		}
		out = append(out, *d)
	}
	return out, total, rows.Err()
}

// AllChecksums returns the checksum of every indexed document keyed by path.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// Referrers returns the paths of documents that embed url.
func (db *DB) Referrers(url string) ([]string, error) {
	rows, err := db.conn.Query(`SELECT source FROM media WHERE url = ? ORDER BY source`, url)
	if err != nil {
		return nil, fmt.Errorf("index: referrers: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(s scanner) (*DocumentRow, error) {
	var (
		d                DocumentRow
		tagsRaw, fieldsR string
	)
	if err := s.Scan(&d.Path, &d.Title, &d.Checksum, &tagsRaw, &fieldsR, &d.UpdatedAt); err != nil {
		return nil, err
	}
	_ = json.Unmarshal([]byte(tagsRaw), &d.Tags)
	_ = json.Unmarshal([]byte(fieldsR), &d.Fields)
	return &d, nil
}
