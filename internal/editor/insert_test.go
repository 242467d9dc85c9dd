package editor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/starford/pile/internal/upload"
)

type closeTracker struct {
	*strings.Reader
	closed bool
}

func (c *closeTracker) Close() error {
	c.closed = true
	return nil
}

// gatedUploader blocks until release is closed and then returns url.
type gatedUploader struct {
	started chan struct{}
	release chan struct{}
	url     string
	err     error
}

func newGated(url string, err error) *gatedUploader {
	return &gatedUploader{started: make(chan struct{}, 8), release: make(chan struct{}), url: url, err: err}
}

func (g *gatedUploader) Upload(_ context.Context, _ *upload.File) (string, error) {
	g.started <- struct{}{}
	<-g.release
	return g.url, g.err
}

func fixedURL(url string) upload.Uploader {
	return upload.Func(func(context.Context, *upload.File) (string, error) { return url, nil })
}

func TestAppendMedia(t *testing.T) {
	cases := []struct {
		body, want string
	}{
		{"Hello", "Hello\n\n![My Pic.png](https://x/y.png)\n"},
		{"", "![My Pic.png](https://x/y.png)\n"},
		{"  \n\t", "![My Pic.png](https://x/y.png)\n"},
		{"Hello\n\n\n", "Hello\n\n![My Pic.png](https://x/y.png)\n"},
	}
	for _, tc := range cases {
		if got := AppendMedia(tc.body, "My Pic.png", "https://x/y.png"); got != tc.want {
			t.Errorf("AppendMedia(%q) = %q, want %q", tc.body, got, tc.want)
		}
	}
}

func TestInsertUpload_AppendsReference(t *testing.T) {
	s, _ := newSession(t, WithBody("Hello"), WithUploader(fixedURL("https://x/y.png")))
	body := &closeTracker{Reader: strings.NewReader("data")}

	got := s.InsertUpload(context.Background(), &upload.File{Name: "My Pic.png", Body: body})
	if got != UploadInserted {
		t.Fatalf("outcome = %v", got)
	}
	st := s.Snapshot()
	if st.Body != "Hello\n\n![My Pic.png](https://x/y.png)\n" {
		t.Errorf("body = %q", st.Body)
	}
	if st.Uploading {
		t.Error("still uploading")
	}
	if !body.closed {
		t.Error("file not closed")
	}
}

func TestInsertUpload_EmptyBody(t *testing.T) {
	s, _ := newSession(t, WithUploader(fixedURL("https://x/y.png")))
	s.InsertUpload(context.Background(), &upload.File{Name: "My Pic.png"})
	if got := s.Snapshot().Body; got != "![My Pic.png](https://x/y.png)\n" {
		t.Errorf("body = %q", got)
	}
}

func TestInsertUpload_DefaultUploader(t *testing.T) {
	s, _ := newSession(t, WithBody("Intro"))
	s.InsertUpload(context.Background(), &upload.File{Name: "Summer Trip.JPG"})
	want := "Intro\n\n![Summer Trip.JPG](https://files.example.com/summer-trip.jpg)\n"
	if got := s.Snapshot().Body; got != want {
		t.Errorf("body = %q, want %q", got, want)
	}
}

func TestInsertUpload_NilFile(t *testing.T) {
	s, _ := newSession(t, WithBody("Hello"))
	if got := s.InsertUpload(context.Background(), nil); got != UploadSkipped {
		t.Errorf("outcome = %v", got)
	}
	if st := s.Snapshot(); st.Body != "Hello" || st.Uploading {
		t.Errorf("state changed: %+v", st)
	}
}

func TestInsertUpload_Failure(t *testing.T) {
	failing := upload.Func(func(context.Context, *upload.File) (string, error) {
		return "", errors.New("network down")
	})
	s, _ := newSession(t, WithBody("Hello"), WithUploader(failing))
	body := &closeTracker{Reader: strings.NewReader("data")}

	if got := s.InsertUpload(context.Background(), &upload.File{Name: "a.png", Body: body}); got != UploadFailed {
		t.Fatalf("outcome = %v", got)
	}
	st := s.Snapshot()
	if st.Body != "Hello" {
		t.Errorf("body changed: %q", st.Body)
	}
	if st.Uploading {
		t.Error("uploading not reset")
	}
	if !body.closed {
		t.Error("file not closed after failure")
	}
}

func TestInsertUpload_Panic(t *testing.T) {
	panicky := upload.Func(func(context.Context, *upload.File) (string, error) {
		panic("uploader bug")
	})
	s, _ := newSession(t, WithUploader(panicky))
	if got := s.InsertUpload(context.Background(), &upload.File{Name: "a.png"}); got != UploadFailed {
		t.Errorf("outcome = %v", got)
	}
	if s.Uploading() {
		t.Error("uploading not reset after panic")
	}
}

func TestInsertUpload_UploadingWhileInFlight(t *testing.T) {
	g := newGated("https://x/late.png", nil)
	s, _ := newSession(t, WithBody("Hello"), WithUploader(g))

	done := make(chan UploadOutcome)
	go func() { done <- s.InsertUpload(context.Background(), &upload.File{Name: "late.png"}) }()
	<-g.started

	if !s.Uploading() {
		t.Error("Uploading = false during upload")
	}
	// Other transitions proceed while the upload is pending.
	if err := s.EditBody("Edited"); err != nil {
		t.Fatalf("EditBody: %v", err)
	}
	s.ToggleMode()

	close(g.release)
	if got := <-done; got != UploadInserted {
		t.Fatalf("outcome = %v", got)
	}
	st := s.Snapshot()
	if st.Body != "Edited\n\n![late.png](https://x/late.png)\n" {
		t.Errorf("body = %q", st.Body)
	}
	if st.Mode != ModePreview || st.Uploading {
		t.Errorf("state = %+v", st)
	}
}

func TestInsertUpload_SaveDuringUploadMissesReference(t *testing.T) {
	g := newGated("https://x/y.png", nil)
	s, saved := newSession(t, WithBody("Hello"), WithUploader(g))

	done := make(chan UploadOutcome)
	go func() { done <- s.InsertUpload(context.Background(), &upload.File{Name: "y.png"}) }()
	<-g.started

	out, err := s.Save()
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if strings.Contains(out, "y.png") {
		t.Errorf("save saw pending upload: %q", out)
	}
	close(g.release)
	<-done
	if len(*saved) != 1 {
		t.Errorf("callback calls = %d", len(*saved))
	}
}

func TestInsertUpload_DiscardedAfterLoad(t *testing.T) {
	g := newGated("https://x/y.png", nil)
	s, _ := newSession(t, WithUploader(g))

	done := make(chan UploadOutcome)
	go func() { done <- s.InsertUpload(context.Background(), &upload.File{Name: "y.png"}) }()
	<-g.started

	s.Load("---\ntitle: Other\n---\nFresh")
	close(g.release)
	if got := <-done; got != UploadDiscarded {
		t.Fatalf("outcome = %v", got)
	}
	if got := s.Snapshot().Body; got != "Fresh" {
		t.Errorf("body = %q", got)
	}
	if s.Uploading() {
		t.Error("uploading not reset")
	}
}

func TestInsertUpload_Concurrent(t *testing.T) {
	s, _ := newSession(t, WithBody("Start"), WithUploader(upload.Func(
		func(_ context.Context, f *upload.File) (string, error) { return "https://x/" + f.Name, nil },
	)))

	const n = 10
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.InsertUpload(context.Background(), &upload.File{Name: string(rune('a'+i)) + ".png"})
		}()
	}
	wg.Wait()

	st := s.Snapshot()
	if st.Uploading {
		t.Error("uploading after all uploads finished")
	}
	if got := strings.Count(st.Body, "!["); got != n {
		t.Errorf("references = %d, want %d\n%s", got, n, st.Body)
	}
	if !strings.HasPrefix(st.Body, "Start\n\n") {
		t.Errorf("body = %q", st.Body)
	}
}

func TestUploadOutcomeString(t *testing.T) {
	if UploadDiscarded.String() != "discarded" || UploadOutcome(42).String() != "UploadOutcome(42)" {
		t.Error("unexpected String output")
	}
}
