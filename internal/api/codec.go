package api

import (
	"errors"
	"net/http"

	"github.com/starford/pile/internal/codec"
	"github.com/starford/pile/internal/document"
)

// ParseDocument handles POST /api/codec/parse.
//
//	@Summary		Split a document into front matter and body
//	@Tags			codec
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ParseRequest	true	"Document text"
//	@Success		200		{object}	ParseResponse
//	@Failure		400		{object}	errResponse
//	@Router			/codec/parse [post]
func ParseDocument(w http.ResponseWriter, r *http.Request) {
	var req ParseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	doc := codec.Parse(req.Text)
	writeJSON(w, http.StatusOK, ParseResponse{
		Data:    doc.Data,
		Content: doc.Content,
		Summary: codec.Inspect(doc),
	})
}

// SerializeDocument handles POST /api/codec/serialize.
//
//	@Summary		Encode front matter and body as document text
//	@Tags			codec
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SerializeRequest	true	"Document parts"
//	@Success		200		{object}	SerializeResponse
//	@Failure		400		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Router			/codec/serialize [post]
func SerializeDocument(w http.ResponseWriter, r *http.Request) {
	var req SerializeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	text, err := codec.SerializeOrdered(document.Document{Data: req.Data, Content: req.Content}, req.Order)
	if err != nil {
		if errors.Is(err, codec.ErrUnencodableMetadata) {
			writeJSON(w, http.StatusUnprocessableEntity, errorBody(err.Error()))
			return
		}
		writeError(w, err, "serialize document")
		return
	}
	writeJSON(w, http.StatusOK, SerializeResponse{Text: text})
}
