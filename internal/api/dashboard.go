package api

import (
	"net/http"
	"os"
	"path/filepath"
	"slices"

	"github.com/go-chi/chi/v5"

	"github.com/sevigo/medrag/internal/dashboard"
)

// Images the page may show, looked up in the assets directory and CODE/.
var (
	bannerImage        = "banner.png"
	architectureImages = []string{"Medical_RAG_Workflow.png", "Architecture.png", "flowchart.png"}
)

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, h.inspector.Status(r.Context()))
}

func (h *Handler) handleQuickQueries(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, dashboard.QuickQueries())
}

func (h *Handler) handleData(w http.ResponseWriter, r *http.Request) {
	listing, err := dashboard.DataFiles(h.inspector.DataDir)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to list data directory", "error", err)
		Error(w, http.StatusInternalServerError, "Failed to list data directory")
		return
	}
	JSON(w, http.StatusOK, listing)
}

func (h *Handler) handleImage(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name != bannerImage && !slices.Contains(architectureImages, name) {
		http.NotFound(w, r)
		return
	}
	path, ok := h.findImage(name)
	if !ok {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, path)
}

func (h *Handler) findImage(name string) (string, bool) {
	for _, dir := range []string{h.assetsDir, filepath.Join(h.assetsDir, "CODE")} {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
	}
	return "", false
}

func (h *Handler) architectureImage() string {
	for _, name := range architectureImages {
		if _, ok := h.findImage(name); ok {
			return name
		}
	}
	return ""
}
