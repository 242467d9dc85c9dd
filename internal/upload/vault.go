package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/starford/pile/internal/checksum"
)

// AttachmentsDir is the vault directory that holds uploaded media.
const AttachmentsDir = "attachments"

// MaxAssetSize caps the size of a single stored attachment.
const MaxAssetSize = 50 << 20

// ErrRejected wraps every error caused by the file itself rather than by
// the store: size, extension, or content mismatch.
var ErrRejected = errors.New("upload: rejected")

var (
	// Extensions accepted by the vault, keyed to the content type sniffed
	// data must have. "media" accepts any audio or video type.
	allowedExtensions = map[string]string{
		".png": "image/png", ".jpg": "image/jpeg", ".jpeg": "image/jpeg",
		".gif": "image/gif", ".webp": "image/webp", ".svg": "image/svg+xml",
		".pdf": "application/pdf",
		".mp4": "media", ".webm": "media", ".m4a": "media",
		".mp3": "media", ".wav": "media", ".ogg": "media",
	}

	unsafeFilenameRe = regexp.MustCompile(`[^a-z0-9._-]`)
)

// Store is the slice of the vault the uploader writes through.
type Store interface {
	Read(path string) ([]byte, error)
	Write(path string, content []byte) error
}

// Vault stores uploads in the vault's attachments directory and serves
// them from /attachments/.
type Vault struct {
	store Store
}

// NewVault creates a vault uploader.
func NewVault(store Store) *Vault {
	return &Vault{store: store}
}

// Upload reads f and stores it. Upload of identical bytes under the same
// name returns the existing URL.
func (v *Vault) Upload(ctx context.Context, f *File) (string, error) {
	if f == nil || f.Name == "" {
		return "", ErrNoName
	}
	if f.Body == nil {
		return "", fmt.Errorf("upload: %s: empty body", f.Name)
	}
	data, err := io.ReadAll(io.LimitReader(f.Body, MaxAssetSize+1))
	if err != nil {
		return "", fmt.Errorf("upload: read %s: %w", f.Name, err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return v.Save(f.Name, data)
}

// Save validates data against the extension of name and writes it under
// attachments/. It returns the URL path of the stored file.
func (v *Vault) Save(name string, data []byte) (string, error) {
	if len(data) > MaxAssetSize {
		return "", fmt.Errorf("%w: file too large: exceeds %d bytes", ErrRejected, MaxAssetSize)
	}
	name = SanitizeFilename(name)

	ext := strings.ToLower(filepath.Ext(name))
	if _, ok := allowedExtensions[ext]; !ok {
		return "", fmt.Errorf("%w: unsupported file extension %q", ErrRejected, ext)
	}
	if err := validateContent(data, ext); err != nil {
		return "", err
	}

	target := path.Join(AttachmentsDir, name)
	if existing, err := v.store.Read(target); err == nil {
		if checksum.Sum(existing) == checksum.Sum(data) {
			return "/" + target, nil
		}
		name = uuid.New().String()[:8] + "-" + name
		target = path.Join(AttachmentsDir, name)
	}

	if err := v.store.Write(target, data); err != nil {
		return "", fmt.Errorf("upload: save %s: %w", name, err)
	}
	return "/" + target, nil
}

// SanitizeFilename reduces name to a flat, lower-case file name made of
// [a-z0-9._-]. Whitespace runs become hyphens, anything else unsafe an
// underscore.
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = unsafeFilenameRe.ReplaceAllString(Slug(name), "_")
	name = strings.TrimLeft(name, ".")
	if name == "" {
		name = uuid.New().String()
	}
	return name
}

// validateContent checks that the sniffed content type of data matches ext.
func validateContent(data []byte, ext string) error {
	if ext == ".svg" {
		prefix := data
		if len(prefix) > 1024 {
			prefix = prefix[:1024]
		}
		if !bytes.Contains(prefix, []byte("<svg")) {
			return fmt.Errorf("%w: content does not appear to be SVG", ErrRejected)
		}
		return nil
	}

	want := allowedExtensions[ext]
	detected := strings.Split(http.DetectContentType(data), ";")[0]
	if want == "media" {
		if !isMedia(detected) {
			return fmt.Errorf("%w: content does not match extension %s (detected: %s)", ErrRejected, ext, detected)
		}
		return nil
	}
	if detected != want {
		return fmt.Errorf("%w: content does not match extension %s (detected: %s)", ErrRejected, ext, detected)
	}
	return nil
}

func isMedia(contentType string) bool {
	return strings.HasPrefix(contentType, "audio/") ||
		strings.HasPrefix(contentType, "video/") ||
		contentType == "application/ogg"
}
