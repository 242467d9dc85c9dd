package editor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/starford/pile/internal/upload"
)

// UploadOutcome reports what InsertUpload did.
type UploadOutcome int

const (
	// UploadSkipped means no file was given.
	UploadSkipped UploadOutcome = iota
	// UploadInserted means a media reference was appended to the body.
	UploadInserted
	// UploadFailed means the uploader failed and the body is unchanged.
	UploadFailed
	// UploadDiscarded means the upload succeeded but the session was
	// reloaded meanwhile, so the reference was dropped.
	UploadDiscarded
)

func (o UploadOutcome) String() string {
	switch o {
	case UploadSkipped:
		return "skipped"
	case UploadInserted:
		return "inserted"
	case UploadFailed:
		return "failed"
	case UploadDiscarded:
		return "discarded"
	default:
		return fmt.Sprintf("UploadOutcome(%d)", int(o))
	}
}

// InsertUpload uploads f and appends a media reference for it to the body.
// The session reports Uploading until the uploader returns. The file is
// closed before InsertUpload returns. Concurrent uploads each append in the
// order they complete.
func (s *Session) InsertUpload(ctx context.Context, f *upload.File) UploadOutcome {
	if f == nil {
		return UploadSkipped
	}
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn("close upload", slog.String("name", f.Name), slog.String("error", err.Error()))
		}
	}()

	s.mu.Lock()
	s.inflight++
	gen := s.generation
	s.mu.Unlock()
	s.emit(EventUploadStarted, map[string]string{"name": f.Name})

	url, err := s.callUploader(ctx, f)

	s.mu.Lock()
	s.inflight--
	outcome := UploadInserted
	switch {
	case err != nil:
		outcome = UploadFailed
	case gen != s.generation:
		outcome = UploadDiscarded
	default:
		s.body = AppendMedia(s.body, f.Name, url)
	}
	s.mu.Unlock()

	switch outcome {
	case UploadFailed:
		s.logger.Error("upload failed", slog.String("name", f.Name), slog.String("error", err.Error()))
		s.emit(EventUploadFailed, map[string]string{"name": f.Name, "error": err.Error()})
	case UploadDiscarded:
		s.logger.Info("upload discarded", slog.String("name", f.Name), slog.String("url", url))
	default:
		s.logger.Info("upload inserted", slog.String("name", f.Name), slog.String("url", url))
		s.emit(EventUploadCompleted, map[string]string{"name": f.Name, "url": url})
	}
	return outcome
}

// callUploader runs the uploader and turns a panic into an error so the
// in-flight count is always released.
func (s *Session) callUploader(ctx context.Context, f *upload.File) (url string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("editor: uploader panic: %v", r)
		}
	}()
	return s.uploader.Upload(ctx, f)
}

// AppendMedia appends an image reference for name at url to body, separated
// from existing content by one blank line.
func AppendMedia(body, name, url string) string {
	ref := "![" + name + "](" + url + ")\n"
	trimmed := strings.TrimRightFunc(body, unicode.IsSpace)
	if trimmed == "" {
		return ref
	}
	return trimmed + "\n\n" + ref
}
