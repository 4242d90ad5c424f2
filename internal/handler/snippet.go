package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/snippet-runner/internal/service"
)

// SnippetHandler manages CRUD operations for saved snippets.
type SnippetHandler struct {
	service *service.SnippetService
	logger  *slog.Logger
}

// NewSnippetHandler creates a new SnippetHandler.
func NewSnippetHandler(svc *service.SnippetService, logger *slog.Logger) *SnippetHandler {
	return &SnippetHandler{service: svc, logger: logger}
}

// HandleList returns a page of snippets.
//
// HTTP: GET /api/snippets?limit=20&offset=0&language=js
func (h *SnippetHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	snippets, err := h.service.List(r.Context(), limit, offset, q.Get("language"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snippets)
}

// HandleGetByID returns one snippet.
//
// HTTP: GET /api/snippets/{id}
func (h *SnippetHandler) HandleGetByID(w http.ResponseWriter, r *http.Request) {
	snippet, err := h.service.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snippet)
}

// HandleCreate saves a new snippet.
//
// HTTP: POST /api/snippets
// REQUEST BODY: {"name": "hello", "language": "py", "code": "print('hi')"}
func (h *SnippetHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in service.SnippetInput
	if !decodeJSON(w, r, &in) {
		h.logger.Warn("invalid snippet JSON")
		return
	}

	snippet, err := h.service.Create(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, snippet)
}

// HandleUpdate replaces a snippet's fields.
//
// HTTP: PUT /api/snippets/{id}
func (h *SnippetHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var in service.SnippetInput
	if !decodeJSON(w, r, &in) {
		return
	}

	snippet, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snippet)
}

// HandleDelete removes a snippet.
//
// HTTP: DELETE /api/snippets/{id}
func (h *SnippetHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
