// Package chains combines a retriever with a language model to answer
// questions from indexed documents.
package chains

import (
	"context"
	"errors"
	"strings"

	"github.com/sevigo/medrag/schema"
)

// ErrEmptyQuery is returned when the question is blank.
var ErrEmptyQuery = errors.New("chains: query cannot be empty")

// DocumentSeparator joins retrieved passages in the prompt context.
const DocumentSeparator = "\n\n---\n\n"

// Chain answers a single question.
type Chain interface {
	Call(ctx context.Context, query string) (string, error)
}

// SourcedChain also reports the documents the answer was grounded on.
type SourcedChain interface {
	Chain
	CallWithSources(ctx context.Context, query string) (string, []schema.Document, error)
}

func joinDocuments(docs []schema.Document) string {
	parts := make([]string, len(docs))
	for i, doc := range docs {
		parts[i] = doc.PageContent
	}
	return strings.Join(parts, DocumentSeparator)
}
