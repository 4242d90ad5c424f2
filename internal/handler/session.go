package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/sakif/snippet-runner/internal/apperror"
	"github.com/sakif/snippet-runner/internal/auth"
	"github.com/sakif/snippet-runner/internal/executor"
	"github.com/sakif/snippet-runner/internal/session"
)

// PreviewCSP confines rendered markup to an opaque origin with scripts
// allowed and nothing else.
const PreviewCSP = "sandbox allow-scripts"

const wsWriteWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // the session token is the access check
	},
}

// SessionRunner runs snippets against a session's Result Store.
type SessionRunner interface {
	RunInSession(ctx context.Context, sessionID string, req executor.ExecutionRequest) (executor.ExecutionResult, error)
	RunSnippet(ctx context.Context, sessionID, snippetID string) (executor.ExecutionResult, error)
}

// SessionHandler exposes sessions and their Result Stores.
type SessionHandler struct {
	sessions *session.Manager
	runner   SessionRunner
	tokens   *auth.TokenService
	logger   *slog.Logger
}

// NewSessionHandler creates a SessionHandler. tokens may be nil, in which
// case sessions are issued without a token.
func NewSessionHandler(sessions *session.Manager, runner SessionRunner, tokens *auth.TokenService, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		runner:   runner,
		tokens:   tokens,
		logger:   logger,
	}
}

type createSessionResponse struct {
	SessionID string `json:"sessionId"`
	Token     string `json:"token,omitempty"`
}

// HandleCreate opens a session and, when signing is enabled, returns a token
// bound to it. The token is also set as a cookie scoped to the session path.
//
// HTTP: POST /api/sessions
func (h *SessionHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	id, _ := h.sessions.Create()

	resp := createSessionResponse{SessionID: id}
	if h.tokens != nil {
		token, err := h.tokens.Generate(id)
		if err != nil {
			h.logger.Error("failed to sign session token", slog.String("error", err.Error()))
			_ = h.sessions.Delete(id)
			writeError(w, err)
			return
		}
		resp.Token = token
		http.SetCookie(w, &http.Cookie{
			Name:     auth.CookieName,
			Value:    token,
			Path:     "/api/sessions/" + id,
			HttpOnly: true,
			SameSite: http.SameSiteStrictMode,
		})
	}

	writeJSON(w, http.StatusCreated, resp)
}

// HandleRun runs the posted snippet in the session and returns the result it
// recorded.
//
// HTTP: POST /api/sessions/{id}/run
func (h *SessionHandler) HandleRun(w http.ResponseWriter, r *http.Request) {
	var req executor.ExecutionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.runner.RunInSession(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleRunSnippet runs a saved snippet in the session.
//
// HTTP: POST /api/sessions/{id}/snippets/{snippetId}/run
func (h *SessionHandler) HandleRunSnippet(w http.ResponseWriter, r *http.Request) {
	result, err := h.runner.RunSnippet(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "snippetId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleResult returns the session's current snapshot.
//
// HTTP: GET /api/sessions/{id}/result
func (h *SessionHandler) HandleResult(w http.ResponseWriter, r *http.Request) {
	store, err := h.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, store.Current())
}

// HandleClear resets the session's store to Idle.
//
// HTTP: DELETE /api/sessions/{id}/result
func (h *SessionHandler) HandleClear(w http.ResponseWriter, r *http.Request) {
	store, err := h.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	store.Clear()
	w.WriteHeader(http.StatusNoContent)
}

// HandleDelete ends the session.
//
// HTTP: DELETE /api/sessions/{id}
func (h *SessionHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Delete(chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandlePreview serves the held preview markup as a standalone document. The
// CSP sandbox keeps it away from the API origin, its cookies and storage.
//
// HTTP: GET /api/sessions/{id}/preview
func (h *SessionHandler) HandlePreview(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	store, err := h.sessions.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}

	snap := store.Current()
	if snap.Result == nil || snap.Result.Kind != executor.KindPreview {
		writeError(w, apperror.NotFound("preview", id))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Security-Policy", PreviewCSP)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(snap.Result.Content))
}

// HandleWebSocket streams snapshots as the store changes. Client messages
// are ignored; reading only detects the close.
//
// HTTP: GET /api/sessions/{id}/ws
func (h *SessionHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	store, err := h.sessions.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Time{})

	updates, unsubscribe := store.Subscribe()
	defer unsubscribe()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	logger := h.logger.With(slog.String("sessionId", id))
	logger.Debug("websocket subscribed")

	for {
		select {
		case snap, ok := <-updates:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "session ended"),
					time.Now().Add(wsWriteWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(snap); err != nil {
				logger.Debug("websocket write failed", slog.String("error", err.Error()))
				return
			}
		case <-closed:
			logger.Debug("websocket closed by client")
			return
		}
	}
}
