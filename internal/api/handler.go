// Package api provides the HTTP handlers of the chatbot: the JSON query
// endpoint, the server-rendered chat page and the dashboard API.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/sevigo/medrag/internal/chat"
	"github.com/sevigo/medrag/internal/dashboard"
	"github.com/sevigo/medrag/internal/metrics"
	"github.com/sevigo/medrag/prompts"
	"github.com/sevigo/medrag/web"
)

// Deps are the collaborators of Handler. Chat and Inspector are required.
type Deps struct {
	Chat      *chat.Service
	Inspector *dashboard.Inspector
	// Metrics is optional; without it /metrics is not served.
	Metrics *metrics.Recorder
	LogDir  string
	// AssetsDir holds the optional banner and architecture images.
	AssetsDir   string
	CORSOrigins []string
	Logger      *slog.Logger
}

type Handler struct {
	chat      *chat.Service
	inspector *dashboard.Inspector
	metrics   *metrics.Recorder
	logDir    string
	assetsDir string
	origins   []string
	templates *template.Template
	logger    *slog.Logger
}

func NewHandler(d Deps) (*Handler, error) {
	if d.Chat == nil || d.Inspector == nil {
		return nil, errors.New("api: chat service and inspector are required")
	}
	tmpl, err := web.Templates()
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	assets := d.AssetsDir
	if assets == "" {
		assets = "."
	}
	return &Handler{
		chat:      d.Chat,
		inspector: d.Inspector,
		metrics:   d.Metrics,
		logDir:    d.LogDir,
		assetsDir: assets,
		origins:   d.CORSOrigins,
		templates: tmpl,
		logger:    logger.With("component", "api"),
	}, nil
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// chatError maps chat errors to a status and the message shown to users.
func chatError(err error) (int, string) {
	var genErr *chat.GenerationError
	switch {
	case errors.Is(err, chat.ErrEmptyQuestion):
		return http.StatusBadRequest, chat.MsgQuestionRequired
	case errors.Is(err, chat.ErrChainNotInitialized):
		return http.StatusServiceUnavailable, chat.MsgChainNotInitialized
	case errors.As(err, &genErr):
		return http.StatusInternalServerError, genErr.Error()
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func instructions() string {
	return prompts.MedicalQAPrompt.Instructions()
}
