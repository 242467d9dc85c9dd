package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/starford/pile/internal/upload"
)

// AttachmentHandler serves and accepts attachment files.
type AttachmentHandler struct {
	dir   string
	vault *upload.Vault
}

// NewAttachmentHandler creates a handler serving vaultRoot/attachments and
// storing new files through vault.
func NewAttachmentHandler(vaultRoot string, vault *upload.Vault) *AttachmentHandler {
	return &AttachmentHandler{dir: filepath.Join(vaultRoot, upload.AttachmentsDir), vault: vault}
}

// ServeFile handles GET /attachments/{filename}. Only plain file names
// directly under the attachments directory are served.
func (h *AttachmentHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	if name == "" || name != filepath.Base(name) || !filepath.IsLocal(name) {
		http.Error(w, "invalid filename", http.StatusBadRequest)
		return
	}
	abs := filepath.Join(h.dir, name)
	if _, err := os.Stat(abs); errors.Is(err, os.ErrNotExist) {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, abs)
}

// Upload handles POST /api/attachments (multipart/form-data, field "file").
//
//	@Summary		Store a media file in the vault
//	@Tags			attachments
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file	formData	file	true	"Media file"
//	@Success		201		{object}	AttachmentUploadResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/attachments [post]
func (h *AttachmentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, upload.MaxAssetSize+1<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, upload.MaxAssetSize+1))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read file"))
		return
	}
	url, err := h.vault.Save(header.Filename, data)
	if err != nil {
		if errors.Is(err, upload.ErrRejected) {
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
			return
		}
		writeError(w, err, "save attachment", slog.String("filename", header.Filename))
		return
	}

	name := path.Base(url)
	writeJSON(w, http.StatusCreated, AttachmentUploadResponse{
		Filename: name,
		Size:     int64(len(data)),
		URL:      url,
		Markdown: "![" + name + "](" + url + ")",
	})
}
