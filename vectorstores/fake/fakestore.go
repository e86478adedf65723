// Package fake provides an in-memory vector store for tests. Results come
// back in insertion order with a constant score.
package fake

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/sevigo/medrag/schema"
	"github.com/sevigo/medrag/vectorstores"
)

type entry struct {
	id  string
	doc schema.Document
}

type Store struct {
	mu      sync.Mutex
	entries []entry
	idSeq   int
	err     error
}

var (
	_ vectorstores.VectorStore    = (*Store)(nil)
	_ vectorstores.Deleter        = (*Store)(nil)
	_ vectorstores.Counter        = (*Store)(nil)
	_ vectorstores.MetadataLister = (*Store)(nil)
)

func New() *Store {
	return &Store{}
}

// SetError makes searches fail with err.
func (s *Store) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *Store) AddDocuments(_ context.Context, docs []schema.Document, _ ...vectorstores.Option) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, len(docs))
	for i, doc := range docs {
		id := fmt.Sprintf("fake-id-%d", s.idSeq)
		s.entries = append(s.entries, entry{id: id, doc: doc})
		ids[i] = id
		s.idSeq++
	}
	return ids, nil
}

func (s *Store) SimilaritySearch(ctx context.Context, query string, numDocuments int, options ...vectorstores.Option) ([]schema.Document, error) {
	scored, err := s.SimilaritySearchWithScores(ctx, query, numDocuments, options...)
	if err != nil {
		return nil, err
	}
	docs := make([]schema.Document, len(scored))
	for i, d := range scored {
		docs[i] = d.Document
	}
	return docs, nil
}

func (s *Store) SimilaritySearchWithScores(_ context.Context, _ string, numDocuments int, options ...vectorstores.Option) ([]vectorstores.DocumentWithScore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return nil, s.err
	}

	opts := vectorstores.ParseOptions(options...)
	var results []vectorstores.DocumentWithScore
	for _, e := range s.entries {
		if len(results) >= numDocuments {
			break
		}
		if !vectorstores.MatchesFilters(e.doc.Metadata, opts.Filters) {
			continue
		}
		results = append(results, vectorstores.DocumentWithScore{Document: e.doc, Score: 1.0})
	}
	return results, nil
}

func (s *Store) DeleteDocumentsByFilter(_ context.Context, filters map[string]any, _ ...vectorstores.Option) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.entries[:0]
	for _, e := range s.entries {
		if !vectorstores.MatchesFilters(e.doc.Metadata, filters) {
			kept = append(kept, e)
		}
	}
	s.entries = kept
	return nil
}

func (s *Store) CountDocuments(context.Context, ...vectorstores.Option) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries), nil
}

func (s *Store) MetadataValues(_ context.Context, key string, _ ...vectorstores.Option) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var values []string
	for _, e := range s.entries {
		if v, ok := e.doc.Metadata[key].(string); ok && !slices.Contains(values, v) {
			values = append(values, v)
		}
	}
	slices.Sort(values)
	return values, nil
}

func (s *Store) ListCollections(_ context.Context) ([]string, error) {
	return []string{"fake-collection"}, nil
}

// Docs returns all documents currently in the store in insertion order.
func (s *Store) Docs() []schema.Document {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := make([]schema.Document, len(s.entries))
	for i, e := range s.entries {
		docs[i] = e.doc
	}
	return docs
}
