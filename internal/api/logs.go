package api

import (
	"errors"
	"io/fs"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sevigo/medrag/internal/logview"
)

type logsResponse struct {
	Dir    string          `json:"dir"`
	Files  []logview.File  `json:"files"`
	Result *logview.Result `json:"result,omitempty"`
}

// handleLogs lists the log files and reads the selected one (the newest by
// default), filtered by the search and level query parameters.
func (h *Handler) handleLogs(w http.ResponseWriter, r *http.Request) {
	viewer, err := logview.New(h.logDir)
	if err != nil {
		Error(w, http.StatusNotFound, "Logs directory not found. Expected at: "+h.logDir)
		return
	}
	files, err := viewer.ListFiles()
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to list log files", "error", err)
		Error(w, http.StatusInternalServerError, "Failed to list log files")
		return
	}

	resp := logsResponse{Dir: viewer.Dir(), Files: files}
	name := r.URL.Query().Get("file")
	if name == "" && len(files) > 0 {
		name = files[0].Name
	}
	if name != "" {
		filter := logview.Filter{Search: r.URL.Query().Get("search")}
		for _, level := range r.URL.Query()["level"] {
			for _, l := range strings.Split(level, ",") {
				if l = strings.TrimSpace(l); l != "" {
					filter.Levels = append(filter.Levels, l)
				}
			}
		}
		resp.Result, err = viewer.Read(name, filter)
		if err != nil {
			h.logError(w, r, err)
			return
		}
	}
	JSON(w, http.StatusOK, resp)
}

func (h *Handler) handleLogDownload(w http.ResponseWriter, r *http.Request) {
	viewer, err := logview.New(h.logDir)
	if err != nil {
		Error(w, http.StatusNotFound, "Logs directory not found. Expected at: "+h.logDir)
		return
	}
	name := chi.URLParam(r, "name")
	path, err := viewer.Path(name)
	if err != nil {
		h.logError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	http.ServeFile(w, r, path)
}

func (h *Handler) logError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, logview.ErrInvalidName):
		Error(w, http.StatusBadRequest, "Invalid log file name")
	case errors.Is(err, fs.ErrNotExist):
		Error(w, http.StatusNotFound, "Log file not found")
	default:
		h.logger.ErrorContext(r.Context(), "Failed to read log file", "error", err)
		Error(w, http.StatusInternalServerError, "Failed to read log file")
	}
}
