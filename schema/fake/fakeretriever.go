package fake

import (
	"context"
	"sync"

	"github.com/sevigo/medrag/schema"
)

// Retriever is a mock retriever for testing purposes.
type Retriever struct {
	DocsToReturn []schema.Document
	ErrToReturn  error

	mu        sync.Mutex
	lastQuery string
}

// NewRetriever creates a new fake retriever.
func NewRetriever() *Retriever {
	return &Retriever{}
}

// GetRelevantDocuments returns the pre-configured documents and error.
func (r *Retriever) GetRelevantDocuments(_ context.Context, query string) ([]schema.Document, error) {
	r.mu.Lock()
	r.lastQuery = query
	r.mu.Unlock()
	return r.DocsToReturn, r.ErrToReturn
}

// LastQuery returns the query of the most recent call.
func (r *Retriever) LastQuery() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastQuery
}
