// Package upload provides the capabilities that turn a selected media file
// into a URL the editor can reference from the document body.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DefaultBaseURL prefixes URLs produced by the stub uploader.
const DefaultBaseURL = "https://files.example.com"

// Modes accepted by Resolve.
const (
	ModeStub    = "stub"
	ModeStamped = "stamped"
	ModeVault   = "vault"
)

// ErrNoName is returned for a file without a name.
var ErrNoName = errors.New("upload: file name is required")

var whitespaceRe = regexp.MustCompile(`\s+`)

// File is a media file selected by the user.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Close releases the file body when it holds a resource.
func (f *File) Close() error {
	if c, ok := f.Body.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Uploader stores a file somewhere retrievable and returns its URL.
type Uploader interface {
	Upload(ctx context.Context, f *File) (string, error)
}

// Func adapts a plain function to Uploader.
type Func func(ctx context.Context, f *File) (string, error)

// Upload calls fn.
func (fn Func) Upload(ctx context.Context, f *File) (string, error) { return fn(ctx, f) }

// Stub derives a URL from the file name without storing anything.
type Stub struct {
	BaseURL string
}

// Default is the uploader used when none is configured.
var Default Uploader = Stub{}

// Upload returns BaseURL/<escaped slug of the name>.
func (s Stub) Upload(_ context.Context, f *File) (string, error) {
	if f == nil || f.Name == "" {
		return "", ErrNoName
	}
	return joinURL(s.BaseURL, escapeComponent(Slug(f.Name))), nil
}

// Stamped prefixes the slug with a millisecond timestamp under /uploads so
// repeated uploads of the same name get distinct URLs.
type Stamped struct {
	BaseURL string
	Now     func() time.Time
}

// Upload returns BaseURL/uploads/<unix-ms>-<escaped slug>.
func (s Stamped) Upload(_ context.Context, f *File) (string, error) {
	if f == nil || f.Name == "" {
		return "", ErrNoName
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	stamp := strconv.FormatInt(now().UnixMilli(), 10)
	return joinURL(s.BaseURL, "uploads/"+stamp+"-"+escapeComponent(Slug(f.Name))), nil
}

// Slug lower-cases name and collapses whitespace runs into hyphens.
func Slug(name string) string {
	return whitespaceRe.ReplaceAllString(strings.ToLower(name), "-")
}

// Resolve picks the uploader for mode. The vault uploader needs a store.
func Resolve(mode, baseURL string, store Store) (Uploader, error) {
	switch mode {
	case "", ModeStub:
		return Stub{BaseURL: baseURL}, nil
	case ModeStamped:
		return Stamped{BaseURL: baseURL}, nil
	case ModeVault:
		if store == nil {
			return nil, fmt.Errorf("upload: mode %q needs a vault store", mode)
		}
		return NewVault(store), nil
	default:
		return nil, fmt.Errorf("upload: unknown mode %q", mode)
	}
}

func joinURL(base, rest string) string {
	if base == "" {
		base = DefaultBaseURL
	}
	return strings.TrimSuffix(base, "/") + "/" + rest
}

// escapeComponent percent-encodes everything except the characters a URI
// component may carry unescaped: letters, digits and -_.!~*'().
func escapeComponent(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("-_.!~*'()", c) >= 0
}
