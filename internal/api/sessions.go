package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/pile/internal/codec"
	"github.com/starford/pile/internal/document"
	"github.com/starford/pile/internal/editor"
	"github.com/starford/pile/internal/upload"
	"github.com/starford/pile/internal/workspace"
)

// SessionHandler exposes editing sessions.
type SessionHandler struct {
	ws *workspace.Workspace
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(ws *workspace.Workspace) *SessionHandler {
	return &SessionHandler{ws: ws}
}

func sessionResponse(e *workspace.Entry) SessionResponse {
	return SessionResponse{ID: e.ID, Path: e.Path, OpenedAt: e.OpenedAt, State: e.Session.Snapshot()}
}

// entry resolves the {id} URL parameter, writing the error response when
// the session does not exist.
func (h *SessionHandler) entry(w http.ResponseWriter, r *http.Request) (*workspace.Entry, bool) {
	e, err := h.ws.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err, "get session")
		return nil, false
	}
	return e, true
}

// List handles GET /api/sessions.
func (h *SessionHandler) List(w http.ResponseWriter, _ *http.Request) {
	entries := h.ws.List()
	out := make([]SessionResponse, len(entries))
	for i, e := range entries {
		out[i] = sessionResponse(e)
	}
	writeJSON(w, http.StatusOK, SessionListResponse{Sessions: out})
}

// Open handles POST /api/sessions.
//
//	@Summary		Open an editing session on a document
//	@Tags			sessions
//	@Accept			json
//	@Produce		json
//	@Param			body	body		OpenSessionRequest	true	"Document path"
//	@Success		201		{object}	SessionResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions [post]
func (h *SessionHandler) Open(w http.ResponseWriter, r *http.Request) {
	var req OpenSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	e, err := h.ws.Open(r.Context(), req.Path)
	if err != nil {
		writeError(w, err, "open session", slog.String("path", req.Path))
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse(e))
}

// Get handles GET /api/sessions/{id}.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	e, ok := h.entry(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(e))
}

// Close handles DELETE /api/sessions/{id}.
func (h *SessionHandler) Close(w http.ResponseWriter, r *http.Request) {
	if err := h.ws.Close(chi.URLParam(r, "id")); err != nil {
		writeError(w, err, "close session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ToggleMode handles POST /api/sessions/{id}/mode.
//
//	@Summary		Switch between edit and preview
//	@Tags			sessions
//	@Produce		json
//	@Param			id	path		string	true	"Session ID"
//	@Success		200	{object}	ModeResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id}/mode [post]
func (h *SessionHandler) ToggleMode(w http.ResponseWriter, r *http.Request) {
	e, ok := h.entry(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ModeResponse{Mode: e.Session.ToggleMode()})
}

// EditField handles PUT /api/sessions/{id}/fields/{key}.
//
//	@Summary		Set a front matter field
//	@Tags			sessions
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Session ID"
//	@Param			key		path		string			true	"Field key"
//	@Param			body	body		FieldRequest	true	"New value"
//	@Success		200		{object}	editor.State
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id}/fields/{key} [put]
func (h *SessionHandler) EditField(w http.ResponseWriter, r *http.Request) {
	e, ok := h.entry(w, r)
	if !ok {
		return
	}
	var req FieldRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := e.Session.EditField(chi.URLParam(r, "key"), req.Value); err != nil {
		if errors.Is(err, document.ErrInvalidFieldKey) {
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
			return
		}
		writeError(w, err, "edit field", slog.String("session", e.ID))
		return
	}
	writeJSON(w, http.StatusOK, e.Session.Snapshot())
}

// EditBody handles PUT /api/sessions/{id}/body.
//
//	@Summary		Replace the document body
//	@Tags			sessions
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string		true	"Session ID"
//	@Param			body	body		BodyRequest	true	"New body"
//	@Success		200		{object}	editor.State
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id}/body [put]
func (h *SessionHandler) EditBody(w http.ResponseWriter, r *http.Request) {
	e, ok := h.entry(w, r)
	if !ok {
		return
	}
	var req BodyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := e.Session.EditBody(req.Body); err != nil {
		if errors.Is(err, editor.ErrBodyReadOnly) {
			writeJSON(w, http.StatusConflict, errorBody(err.Error()))
			return
		}
		writeError(w, err, "edit body", slog.String("session", e.ID))
		return
	}
	writeJSON(w, http.StatusOK, e.Session.Snapshot())
}

// UpdateSchema handles PUT /api/sessions/{id}/schema.
func (h *SessionHandler) UpdateSchema(w http.ResponseWriter, r *http.Request) {
	e, ok := h.entry(w, r)
	if !ok {
		return
	}
	var req SchemaRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := e.Session.UpdateSchema(req.Fields); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, e.Session.Snapshot())
}

// Preview handles GET /api/sessions/{id}/preview.
//
//	@Summary		Render the body as HTML
//	@Tags			sessions
//	@Produce		json
//	@Param			id	path		string	true	"Session ID"
//	@Success		200	{object}	PreviewResponse
//	@Failure		404	{object}	errResponse
//	@Failure		409	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id}/preview [get]
func (h *SessionHandler) Preview(w http.ResponseWriter, r *http.Request) {
	e, ok := h.entry(w, r)
	if !ok {
		return
	}
	html, err := e.Session.Preview()
	if err != nil {
		if errors.Is(err, editor.ErrNotPreviewing) {
			writeJSON(w, http.StatusConflict, errorBody(err.Error()))
			return
		}
		writeError(w, err, "preview", slog.String("session", e.ID))
		return
	}
	writeJSON(w, http.StatusOK, PreviewResponse{HTML: html})
}

// InsertUpload handles POST /api/sessions/{id}/uploads (multipart/form-data,
// field "file"). The request returns once the upload has finished.
//
//	@Summary		Upload a media file and reference it from the body
//	@Tags			sessions
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			id		path		string	true	"Session ID"
//	@Param			file	formData	file	true	"Media file"
//	@Success		200		{object}	UploadResponse
//	@Failure		400		{object}	errResponse
//	@Failure		502		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id}/uploads [post]
func (h *SessionHandler) InsertUpload(w http.ResponseWriter, r *http.Request) {
	e, ok := h.entry(w, r)
	if !ok {
		return
	}
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

	outcome := e.Session.InsertUpload(r.Context(), &upload.File{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	})
	if outcome == editor.UploadFailed {
		writeJSON(w, http.StatusBadGateway, errorBody("upload failed"))
		return
	}
	writeJSON(w, http.StatusOK, UploadResponse{Outcome: outcome.String(), State: e.Session.Snapshot()})
}

// Save handles POST /api/sessions/{id}/save.
//
//	@Summary		Serialize the session and write it to its document
//	@Tags			sessions
//	@Produce		json
//	@Param			id	path		string	true	"Session ID"
//	@Success		200	{object}	SaveResponse
//	@Failure		404	{object}	errResponse
//	@Failure		422	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id}/save [post]
func (h *SessionHandler) Save(w http.ResponseWriter, r *http.Request) {
	e, ok := h.entry(w, r)
	if !ok {
		return
	}
	out, err := e.Session.Save()
	if err != nil {
		if errors.Is(err, codec.ErrUnencodableMetadata) {
			writeJSON(w, http.StatusUnprocessableEntity, errorBody(err.Error()))
			return
		}
		writeError(w, err, "save session", slog.String("session", e.ID), slog.String("path", e.Path))
		return
	}
	writeJSON(w, http.StatusOK, SaveResponse{Document: out})
}
