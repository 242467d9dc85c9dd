package index

import (
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/pile/internal/apperr"
	"github.com/starford/pile/internal/storage"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "pile-test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func row(path, title, cs string, tags ...string) DocumentRow {
	return DocumentRow{Path: path, Title: title, Checksum: cs, Tags: tags, UpdatedAt: time.Now()}
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM documents`).Scan(&count); err != nil {
		t.Fatalf("documents table missing: %v", err)
	}
	if err := db.conn.QueryRow(`SELECT count(*) FROM media`).Scan(&count); err != nil {
		t.Fatalf("media table missing: %v", err)
	}
}

func TestUpsertAndGetDocument(t *testing.T) {
	db := testDB(t)
	r := row("hello.md", "Hello World", "abc123", "go", "test")
	r.Fields = map[string]any{"title": "Hello World", "slug": "hello"}
	if err := db.UpsertDocument(r, "body text", []string{"https://x/y.png"}); err != nil {
		t.Fatalf("UpsertDocument: %v", err)
	}

	cs, err := db.GetChecksum("hello.md")
	if err != nil {
		t.Fatalf("GetChecksum: %v", err)
	}
	if cs != "abc123" {
		t.Errorf("checksum = %q", cs)
	}

	got, err := db.GetDocument("hello.md")
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if diff := cmp.Diff([]string{"go", "test"}, got.Tags); diff != "" {
		t.Errorf("tags (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(map[string]any{"title": "Hello World", "slug": "hello"}, got.Fields); diff != "" {
		t.Errorf("fields (-want +got):\n%s", diff)
	}
}

func TestGetDocument_NotFound(t *testing.T) {
	db := testDB(t)
	if _, err := db.GetDocument("missing.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestUpsert_UnencodableFields(t *testing.T) {
	db := testDB(t)
	r := row("odd.md", "", "1")
	r.Fields = map[string]any{"nested": map[any]any{1: "x"}}
	if err := db.UpsertDocument(r, "", nil); err != nil {
		t.Fatalf("UpsertDocument: %v", err)
	}
	got, err := db.GetDocument("odd.md")
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if len(got.Fields) != 0 {
		t.Errorf("fields = %v, want empty", got.Fields)
	}
}

func TestReferrers(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertDocument(row("a.md", "", "1"), "body", []string{"/attachments/pic.png"})
	_ = db.UpsertDocument(row("c.md", "", "2"), "body", []string{"/attachments/pic.png", "https://x/other.png"})

	refs, err := db.Referrers("/attachments/pic.png")
	if err != nil {
		t.Fatalf("Referrers: %v", err)
	}
	if diff := cmp.Diff([]string{"a.md", "c.md"}, refs); diff != "" {
		t.Errorf("referrers (-want +got):\n%s", diff)
	}
}

func TestDeleteDocument(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertDocument(row("del.md", "", "x"), "body", []string{"u"})

	if err := db.DeleteDocument("del.md"); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	if cs, _ := db.GetChecksum("del.md"); cs != "" {
		t.Errorf("deleted document still has checksum %q", cs)
	}
	if refs, _ := db.Referrers("u"); len(refs) != 0 {
		t.Errorf("media left behind: %v", refs)
	}
}

func TestUpsertReplacesMedia(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertDocument(row("up.md", "Old", "1"), "old", []string{"x"})
	_ = db.UpsertDocument(row("up.md", "New", "2"), "new", []string{"y"})

	if cs, _ := db.GetChecksum("up.md"); cs != "2" {
		t.Errorf("checksum = %q, want 2", cs)
	}
	if refs, _ := db.Referrers("x"); len(refs) != 0 {
		t.Error("old media should be removed on upsert")
	}
	if refs, _ := db.Referrers("y"); len(refs) != 1 {
		t.Error("new media should exist")
	}
}

func TestGetChecksum_NotFound(t *testing.T) {
	db := testDB(t)
	cs, err := db.GetChecksum("nonexistent.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cs != "" {
		t.Errorf("expected empty checksum, got %q", cs)
	}
}

func TestListDocuments(t *testing.T) {
	db := testDB(t)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, r := range []DocumentRow{
		row("b.md", "Zeta", "1", "go"),
		row("a.md", "alpha", "2"),
		row("c.md", "Mid", "3", "go", "db"),
	} {
		r.UpdatedAt = base.Add(time.Duration(i) * time.Hour)
		if err := db.UpsertDocument(r, "", nil); err != nil {
			t.Fatal(err)
		}
	}

	paths := func(rows []DocumentRow) []string {
		var out []string
		for _, r := range rows {
			out = append(out, r.Path)
		}
		return out
	}

	cases := []struct {
		name       string
		limit, off int
		tag, sort  string
		want       []string
		total      int
	}{
		{"default by path", 0, 0, "", "", []string{"a.md", "b.md", "c.md"}, 3},
		{"by title", 0, 0, "", SortTitle, []string{"a.md", "c.md", "b.md"}, 3},
		{"by updated", 0, 0, "", SortUpdated, []string{"c.md", "a.md", "b.md"}, 3},
		{"tag filter", 0, 0, "go", "", []string{"b.md", "c.md"}, 2},
		{"paged", 1, 1, "", "", []string{"b.md"}, 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rows, total, err := db.ListDocuments(tc.limit, tc.off, tc.tag, tc.sort)
			if err != nil {
				t.Fatalf("ListDocuments: %v", err)
			}
			if total != tc.total {
				t.Errorf("total = %d, want %d", total, tc.total)
			}
			if diff := cmp.Diff(tc.want, paths(rows)); diff != "" {
				t.Errorf("paths (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSearch_Basic(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertDocument(row("s.md", "Search Me", "1"), "uniqueword appears here", nil)

	results, err := db.Search("uniqueword", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Path != "s.md" {
		t.Errorf("search results = %+v, want 1 hit for s.md", results)
	}
}

func TestSyncAndIndexFile(t *testing.T) {
	db := testDB(t)
	store, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	_ = store.Write("post.md", []byte("---\ntitle: Post\ntags: [go]\n---\nSee ![pic](/attachments/pic.png)\n"))
	_ = store.Write("notes/plain.mdx", []byte("# Plain heading\n\ntext #idea\n"))

	if err := Sync(db, store, discardLogger()); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	post, err := db.GetDocument("post.md")
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if post.Title != "Post" {
		t.Errorf("title = %q", post.Title)
	}
	if refs, _ := db.Referrers("/attachments/pic.png"); len(refs) != 1 || refs[0] != "post.md" {
		t.Errorf("referrers = %v", refs)
	}

	plain, err := db.GetDocument("notes/plain.mdx")
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if plain.Title != "Plain heading" {
		t.Errorf("title = %q", plain.Title)
	}
	if diff := cmp.Diff([]string{"idea"}, plain.Tags); diff != "" {
		t.Errorf("tags (-want +got):\n%s", diff)
	}

	_ = store.Delete("post.md")
	if err := Sync(db, store, discardLogger()); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if cs, _ := db.GetChecksum("post.md"); cs != "" {
		t.Error("stale document not removed")
	}
}
