// Package textsplitter cuts documents into chunks small enough to embed.
package textsplitter

import (
	"context"
	"errors"

	"github.com/sevigo/medrag/schema"
)

var ErrInvalidChunkSize = errors.New("textsplitter: chunk size must be positive and larger than the overlap")

type TextSplitter interface {
	SplitText(ctx context.Context, text string) ([]string, error)
	SplitDocuments(ctx context.Context, docs []schema.Document) ([]schema.Document, error)
}
