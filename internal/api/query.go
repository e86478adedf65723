package api

import (
	"encoding/json"
	"net/http"

	"github.com/sevigo/medrag/internal/chat"
)

type queryRequest struct {
	Question any `json:"question"`
}

// handleQuery answers {"question": "..."} without keeping history. Malformed
// bodies and non-string questions are treated as a missing question.
func (h *Handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	_ = json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req)

	question, _ := req.Question.(string)
	answer, err := h.chat.Query(r.Context(), question)
	if err != nil {
		status, msg := chatError(err)
		if status >= http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "Query failed", "error", err)
		}
		Error(w, status, msg)
		return
	}
	JSON(w, http.StatusOK, askResponse{Answer: answer.Text, Sources: answer.Sources})
}

// Answer body of /query and the session API.
type askResponse struct {
	Answer  string        `json:"answer"`
	Sources []chat.Source `json:"sources,omitempty"`
}
