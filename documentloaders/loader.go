// Package documentloaders turns files on disk into schema.Documents ready for
// splitting and embedding.
package documentloaders

import (
	"context"
	"io/fs"

	"github.com/sevigo/medrag/schema"
)

// Loader loads documents from a source.
type Loader interface {
	Load(ctx context.Context) ([]schema.Document, error)
}

// ParserResolver finds the parser for a file. *parsers.Registry satisfies it.
type ParserResolver interface {
	ForFile(path string, info fs.FileInfo) (schema.ParserPlugin, error)
}
