package ollamaclient

import (
	"fmt"
	"net/http"
)

// StatusError represents an error response from the Ollama API.
type StatusError struct {
	Status       string `json:"status,omitempty"`
	ErrorMessage string `json:"error"`
	StatusCode   int    `json:"code,omitempty"`
}

func (e StatusError) Error() string {
	switch {
	case e.Status != "" && e.ErrorMessage != "":
		return fmt.Sprintf("%s: %s", e.Status, e.ErrorMessage)
	case e.Status != "":
		return e.Status
	case e.ErrorMessage != "":
		return e.ErrorMessage
	default:
		return "something went wrong, please see the ollama server logs for details"
	}
}

// NotFound reports whether the server answered 404, which Ollama uses for
// unknown models.
func (e StatusError) NotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// PullRequest represents a request to the /api/pull endpoint.
type PullRequest struct {
	Model  string `json:"model"`
	Stream bool   `json:"stream,omitempty"`
}
