package workspace

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/pile/internal/apperr"
	"github.com/starford/pile/internal/docservice"
	"github.com/starford/pile/internal/document"
	"github.com/starford/pile/internal/editor"
	"github.com/starford/pile/internal/testutil"
	"github.com/starford/pile/internal/upload"
)

type captured struct {
	mu     sync.Mutex
	events []string
}

func (c *captured) PublishSessionEvent(id, kind string, _ map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, kind)
}

func newWorkspace(t *testing.T, opts ...Option) (*Workspace, *docservice.Service) {
	t.Helper()
	_, store := testutil.TestVault(t)
	docs := docservice.NewService(store, testutil.TestDB(t))
	opts = append([]Option{WithLogger(testutil.DiscardLogger())}, opts...)
	w, err := New(docs, document.TextSchema("title", "slug"), opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return w, docs
}

func TestOpen_NewDocumentSaveCreates(t *testing.T) {
	w, docs := newWorkspace(t)
	ctx := context.Background()

	e, err := w.Open(ctx, "drafts/new.md")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if e.ID == "" {
		t.Fatal("empty session id")
	}
	if err := e.Session.EditField("title", "Fresh"); err != nil {
		t.Fatal(err)
	}
	if err := e.Session.EditBody("Hello"); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Session.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := docs.Get(ctx, "drafts/new.md")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Raw != "---\ntitle: Fresh\nslug: \"\"\n---\nHello" {
		t.Errorf("raw = %q", got.Raw)
	}

	// Second save updates the same file.
	_ = e.Session.EditField("slug", "fresh")
	if _, err := e.Session.Save(); err != nil {
		t.Fatalf("second Save: %v", err)
	}
	got, _ = docs.Get(ctx, "drafts/new.md")
	if got.Data["slug"] != "fresh" {
		t.Errorf("slug = %v", got.Data["slug"])
	}
}

func TestOpen_HydratesExisting(t *testing.T) {
	w, docs := newWorkspace(t)
	ctx := context.Background()
	_, err := docs.Create(ctx, "post.md", []byte("---\ntitle: Stored\nslug: stored\nextra: dropped\n---\nStored body\n"))
	if err != nil {
		t.Fatal(err)
	}

	e, err := w.Open(ctx, "post.md")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	st := e.Session.Snapshot()
	if diff := cmp.Diff(document.FrontMatter{"title": "Stored", "slug": "stored"}, st.Fields); diff != "" {
		t.Errorf("fields (-want +got):\n%s", diff)
	}
	if st.Body != "Stored body\n" {
		t.Errorf("body = %q", st.Body)
	}
}

func TestOpen_RejectsNonDocumentPath(t *testing.T) {
	w, _ := newWorkspace(t)
	if _, err := w.Open(context.Background(), "image.png"); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}

func TestGetCloseList(t *testing.T) {
	w, _ := newWorkspace(t)
	ctx := context.Background()
	a, _ := w.Open(ctx, "a.md")
	b, _ := w.Open(ctx, "b.md")

	if got, err := w.Get(a.ID); err != nil || got != a {
		t.Errorf("Get = %v, %v", got, err)
	}
	if n := len(w.List()); n != 2 {
		t.Errorf("List len = %d", n)
	}
	if err := w.Close(a.ID); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := w.Get(a.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Get after close: %v", err)
	}
	if err := w.Close(a.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("double close: %v", err)
	}
	if list := w.List(); len(list) != 1 || list[0] != b {
		t.Errorf("List = %v", list)
	}
}

func TestEventsForwarded(t *testing.T) {
	pub := &captured{}
	fixed := upload.Func(func(context.Context, *upload.File) (string, error) { return "https://x/y.png", nil })
	w, _ := newWorkspace(t, WithEventPublisher(pub), WithUploader(fixed))

	e, err := w.Open(context.Background(), "ev.md")
	if err != nil {
		t.Fatal(err)
	}
	e.Session.ToggleMode()
	if got := e.Session.InsertUpload(context.Background(), &upload.File{Name: "y.png"}); got != editor.UploadInserted {
		t.Fatalf("outcome = %v", got)
	}
	if _, err := e.Session.Save(); err != nil {
		t.Fatal(err)
	}

	want := []string{
		editor.EventModeChanged, editor.EventUploadStarted,
		editor.EventUploadCompleted, editor.EventDocumentSaved,
	}
	if diff := cmp.Diff(want, pub.events); diff != "" {
		t.Errorf("events (-want +got):\n%s", diff)
	}
}

func TestNew_InvalidSchema(t *testing.T) {
	_, store := testutil.TestVault(t)
	docs := docservice.NewService(store, testutil.TestDB(t))
	if _, err := New(docs, document.TextSchema("a", "a")); err == nil {
		t.Error("expected duplicate key error")
	}
}
