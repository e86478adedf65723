// Package vectorstores defines the storage interface for embedded documents
// and the options shared by its implementations.
package vectorstores

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/sevigo/medrag/embeddings"
	"github.com/sevigo/medrag/schema"
)

var (
	ErrCollectionNotFound = errors.New("vectorstores: collection not found")
	ErrMissingEmbedder    = errors.New("vectorstores: embedder is required")
	ErrInvalidNumDocs     = errors.New("vectorstores: number of documents must be positive")
)

type VectorStore interface {
	AddDocuments(ctx context.Context, docs []schema.Document, options ...Option) ([]string, error)
	SimilaritySearch(ctx context.Context, query string, numDocuments int, options ...Option) ([]schema.Document, error)
	SimilaritySearchWithScores(ctx context.Context, query string, numDocuments int, options ...Option) ([]DocumentWithScore, error)
	ListCollections(ctx context.Context) ([]string, error)
}

// Deleter is implemented by stores that can drop documents by metadata, which
// re-ingesting a changed file relies on.
type Deleter interface {
	DeleteDocumentsByFilter(ctx context.Context, filters map[string]any, options ...Option) error
}

// Counter is implemented by stores that can report how many documents they hold.
type Counter interface {
	CountDocuments(ctx context.Context, options ...Option) (int, error)
}

// MetadataLister is implemented by stores that can enumerate the distinct
// string values stored under a metadata key, sorted.
type MetadataLister interface {
	MetadataValues(ctx context.Context, key string, options ...Option) ([]string, error)
}

type CollectionManager interface {
	DeleteCollection(ctx context.Context, collectionName string) error
	CollectionInfo(ctx context.Context, collectionName string) (*schema.CollectionInfo, error)
}

type DocumentWithScore struct {
	Document schema.Document
	Score    float32
}

type Option func(*Options)

type Options struct {
	Embedder       embeddings.Embedder
	NameSpace      string
	ScoreThreshold float32
	Filters        map[string]any
}

func WithEmbedder(embedder embeddings.Embedder) Option {
	return func(opts *Options) {
		opts.Embedder = embedder
	}
}

// WithNameSpace selects the collection to operate on.
func WithNameSpace(namespace string) Option {
	return func(opts *Options) {
		opts.NameSpace = namespace
	}
}

// WithScoreThreshold drops results scoring below threshold.
func WithScoreThreshold(threshold float32) Option {
	return func(opts *Options) {
		opts.ScoreThreshold = threshold
	}
}

func WithFilters(filters map[string]any) Option {
	return func(opts *Options) {
		if opts.Filters == nil {
			opts.Filters = make(map[string]any)
		}
		maps.Copy(opts.Filters, filters)
	}
}

func WithFilter(key string, value any) Option {
	return func(opts *Options) {
		if opts.Filters == nil {
			opts.Filters = make(map[string]any)
		}
		opts.Filters[key] = value
	}
}

func ParseOptions(options ...Option) Options {
	opts := Options{
		Filters: make(map[string]any),
	}
	for _, option := range options {
		option(&opts)
	}
	return opts
}

// MatchesFilters reports whether every filter key is present in metadata with
// an equal value. Values are compared by their string form so numbers decoded
// from JSON match the ints they were stored as.
func MatchesFilters(metadata map[string]any, filters map[string]any) bool {
	for k, want := range filters {
		got, ok := metadata[k]
		if !ok {
			return false
		}
		if fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}
