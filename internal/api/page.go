package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sevigo/medrag/internal/chat"
	"github.com/sevigo/medrag/internal/dashboard"
	"github.com/sevigo/medrag/internal/domain"
	"github.com/sevigo/medrag/internal/store"
)

// SessionCookie carries the chat session of the page.
const SessionCookie = "medrag_session"

type messageView struct {
	IsUser    bool
	Content   string
	CreatedAt time.Time
}

type pageData struct {
	Status       dashboard.Status
	Metrics      domain.Metrics
	Messages     []messageView
	QuickQueries []dashboard.QuickQuery
	Data         dashboard.Listing
	Error        string
	Tips         []string
	Banner       bool
	Architecture string
	Instructions string
}

func (h *Handler) handlePage(w http.ResponseWriter, r *http.Request) {
	session, err := h.pageSession(w, r)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to load session", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	h.render(w, r, session, "", nil)
}

// handlePageAsk answers the "prompt" form field and re-renders the page. A
// failed answer is shown inline with troubleshooting tips.
func (h *Handler) handlePageAsk(w http.ResponseWriter, r *http.Request) {
	session, err := h.pageSession(w, r)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to load session", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	var (
		errMsg string
		tips   []string
	)
	if _, err := h.chat.Ask(r.Context(), session.ID, r.PostFormValue("prompt")); err != nil {
		_, errMsg = chatError(err)
		var genErr *chat.GenerationError
		if errors.As(err, &genErr) {
			tips = chat.TroubleshootingTips
		}
	}

	session, err = h.chat.Session(r.Context(), session.ID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to reload session", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	h.render(w, r, session, errMsg, tips)
}

func (h *Handler) handlePageClear(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(SessionCookie); err == nil {
		if err := h.chat.Clear(r.Context(), c.Value); err != nil && !errors.Is(err, store.ErrNotFound) {
			h.logger.ErrorContext(r.Context(), "Failed to clear session", "error", err)
		}
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) handlePageExport(w http.ResponseWriter, r *http.Request) {
	session, err := h.pageSession(w, r)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to load session", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeTranscript(w, h.chat, session)
}

// pageSession returns the session named by the cookie, starting a new one
// when the cookie is absent or stale.
func (h *Handler) pageSession(w http.ResponseWriter, r *http.Request) (*domain.Session, error) {
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		session, err := h.chat.Session(r.Context(), c.Value)
		if err == nil {
			return session, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}

	session, err := h.chat.NewSession(r.Context())
	if err != nil {
		return nil, err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    session.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return session, nil
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, session *domain.Session, errMsg string, tips []string) {
	data := h.pageData(r.Context(), session)
	data.Error = errMsg
	data.Tips = tips

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.ExecuteTemplate(w, "index.html", data); err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to render page", "error", err)
	}
}

func (h *Handler) pageData(ctx context.Context, session *domain.Session) pageData {
	listing, err := dashboard.DataFiles(h.inspector.DataDir)
	if err != nil {
		h.logger.WarnContext(ctx, "Failed to list data directory", "error", err)
	}

	messages := make([]messageView, 0, len(session.Messages))
	for _, m := range session.Messages {
		messages = append(messages, messageView{
			IsUser:    m.Role == domain.RoleUser,
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
		})
	}

	_, banner := h.findImage(bannerImage)
	return pageData{
		Status:       h.inspector.Status(ctx),
		Metrics:      session.Metrics(time.Now()),
		Messages:     messages,
		QuickQueries: dashboard.QuickQueries(),
		Data:         listing,
		Banner:       banner,
		Architecture: h.architectureImage(),
		Instructions: instructions(),
	}
}
