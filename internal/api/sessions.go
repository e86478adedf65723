package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sevigo/medrag/internal/chat"
	"github.com/sevigo/medrag/internal/domain"
	"github.com/sevigo/medrag/internal/store"
)

type sessionResponse struct {
	ID        string           `json:"id"`
	StartedAt time.Time        `json:"started_at"`
	Messages  []domain.Message `json:"messages"`
	Metrics   domain.Metrics   `json:"metrics"`
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.chat.NewSession(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to create session", "error", err)
		Error(w, http.StatusInternalServerError, "Failed to create session")
		return
	}
	JSON(w, http.StatusCreated, map[string]string{"id": session.ID})
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.loadSession(w, r)
	if !ok {
		return
	}
	messages := session.Messages
	if messages == nil {
		messages = []domain.Message{}
	}
	JSON(w, http.StatusOK, sessionResponse{
		ID:        session.ID,
		StartedAt: session.StartedAt,
		Messages:  messages,
		Metrics:   session.Metrics(time.Now()),
	})
}

func (h *Handler) handleClearSession(w http.ResponseWriter, r *http.Request) {
	if err := h.chat.Clear(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.sessionError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	_ = json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req)
	question, _ := req.Question.(string)

	answer, err := h.chat.Ask(r.Context(), chi.URLParam(r, "id"), question)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			Error(w, http.StatusNotFound, "Session not found")
			return
		}
		status, msg := chatError(err)
		if status >= http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "Ask failed", "error", err)
		}
		var genErr *chat.GenerationError
		if errors.As(err, &genErr) {
			JSON(w, status, map[string]any{"error": msg, "tips": chat.TroubleshootingTips})
			return
		}
		Error(w, status, msg)
		return
	}
	JSON(w, http.StatusOK, askResponse{Answer: answer.Text, Sources: answer.Sources})
}

func (h *Handler) handleExportSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.loadSession(w, r)
	if !ok {
		return
	}
	writeTranscript(w, h.chat, session)
}

func (h *Handler) loadSession(w http.ResponseWriter, r *http.Request) (*domain.Session, bool) {
	session, err := h.chat.Session(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.sessionError(w, r, err)
		return nil, false
	}
	return session, true
}

func (h *Handler) sessionError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, store.ErrNotFound) {
		Error(w, http.StatusNotFound, "Session not found")
		return
	}
	h.logger.ErrorContext(r.Context(), "Session lookup failed", "error", err)
	Error(w, http.StatusInternalServerError, "Internal server error")
}

func writeTranscript(w http.ResponseWriter, svc *chat.Service, session *domain.Session) {
	name, content := svc.Export(session)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	_, _ = w.Write([]byte(content))
}
