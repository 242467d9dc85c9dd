package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/pile/internal/docservice"
	"github.com/starford/pile/internal/workspace"
)

// Deps holds what the API routes are built from. Nil Workspace, Attachments
// or Events leave the matching routes unmounted.
type Deps struct {
	Docs        *docservice.Service
	Workspace   *workspace.Workspace
	Attachments *AttachmentHandler
	Events      http.Handler
}

// NewRouter creates a chi router with all API routes mounted. authEnabled
// controls whether Bearer token auth is enforced on every route.
func NewRouter(deps Deps, authEnabled bool, token string) chi.Router {
	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	dh := NewDocumentHandler(deps.Docs)
	r.Get("/documents", dh.List)
	r.Post("/documents", dh.Create)
	r.Get("/documents/*", dh.Get)
	r.Put("/documents/*", dh.Update)
	r.Delete("/documents/*", dh.Delete)
	r.Get("/search", dh.Search)
	r.Get("/referrers", dh.Referrers)

	r.Post("/codec/parse", ParseDocument)
	r.Post("/codec/serialize", SerializeDocument)

	if deps.Workspace != nil {
		sh := NewSessionHandler(deps.Workspace)
		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", sh.List)
			r.Post("/", sh.Open)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", sh.Get)
				r.Delete("/", sh.Close)
				r.Post("/mode", sh.ToggleMode)
				r.Put("/fields/{key}", sh.EditField)
				r.Put("/body", sh.EditBody)
				r.Put("/schema", sh.UpdateSchema)
				r.Get("/preview", sh.Preview)
				r.Post("/uploads", sh.InsertUpload)
				r.Post("/save", sh.Save)
			})
		})
	}

	if deps.Attachments != nil {
		r.Post("/attachments", deps.Attachments.Upload)
	}
	if deps.Events != nil {
		r.Get("/events", deps.Events.ServeHTTP)
	}
	return r
}
