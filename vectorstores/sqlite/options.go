package sqlite

import (
	"log/slog"

	"github.com/sevigo/medrag/embeddings"
)

const (
	DefaultPath           = "vectorstore/index.db"
	DefaultCollectionName = "medical_documents"
)

type options struct {
	path           string
	collectionName string
	embedder       embeddings.Embedder
	logger         *slog.Logger
}

type Option func(*options)

func parseOptions(opts ...Option) options {
	o := options{
		path:           DefaultPath,
		collectionName: DefaultCollectionName,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithPath sets the database file. ":memory:" keeps the index in memory.
func WithPath(path string) Option {
	return func(o *options) {
		if path != "" {
			o.path = path
		}
	}
}

func WithCollectionName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.collectionName = name
		}
	}
}

func WithEmbedder(e embeddings.Embedder) Option {
	return func(o *options) {
		o.embedder = e
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}
