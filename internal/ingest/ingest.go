// Package ingest loads the data directory, splits it into chunks and stores
// them in the vector store.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sevigo/medrag/documentloaders"
	"github.com/sevigo/medrag/schema"
	"github.com/sevigo/medrag/textsplitter"
	"github.com/sevigo/medrag/vectorstores"
)

var ErrNoDocuments = errors.New("ingest: no documents found")

// Recorder is notified of stored chunks.
type Recorder interface {
	AddIngestedChunks(n int)
}

// Stats summarizes one ingestion run.
type Stats struct {
	Files     int
	Documents int
	Chunks    int
	// Removed counts indexed sources that are no longer in the data directory.
	Removed  int
	Duration time.Duration
}

type Pipeline struct {
	loader   *documentloaders.Directory
	splitter textsplitter.TextSplitter
	store    vectorstores.VectorStore
	recorder Recorder
	logger   *slog.Logger

	batchSize int
	debounce  time.Duration
}

type Option func(*Pipeline)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) { p.recorder = r }
}

// WithBatchSize bounds the chunks sent to the store per call. Default 64.
func WithBatchSize(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// WithDebounce sets how long Watch waits for a file to settle. Default 300ms.
func WithDebounce(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.debounce = d
		}
	}
}

func New(loader *documentloaders.Directory, splitter textsplitter.TextSplitter, store vectorstores.VectorStore, opts ...Option) *Pipeline {
	p := &Pipeline{
		loader:    loader,
		splitter:  splitter,
		store:     store,
		logger:    slog.Default(),
		batchSize: 64,
		debounce:  300 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "ingest")
	return p
}

// Reset drops the collection when the store supports it. A missing
// collection is not an error.
func (p *Pipeline) Reset(ctx context.Context, collection string) error {
	cm, ok := p.store.(vectorstores.CollectionManager)
	if !ok {
		return nil
	}
	err := cm.DeleteCollection(ctx, collection)
	if err != nil && !errors.Is(err, vectorstores.ErrCollectionNotFound) {
		return fmt.Errorf("reset collection %s: %w", collection, err)
	}
	p.logger.InfoContext(ctx, "Collection reset", "collection", collection)
	return nil
}

// Run ingests the whole data directory. Chunks already stored for a source
// are replaced when the store is a vectorstores.Deleter, and sources that
// left the directory are dropped when it is also a vectorstores.MetadataLister.
func (p *Pipeline) Run(ctx context.Context) (Stats, error) {
	start := time.Now()
	p.logger.InfoContext(ctx, "Loading files from data directory", "dir", p.loader.Root())

	docs, err := p.loader.Load(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("load documents: %w", err)
	}
	if len(docs) == 0 {
		p.logger.WarnContext(ctx, "No documents were found")
		return Stats{Duration: time.Since(start)}, ErrNoDocuments
	}

	sources := make(map[string]struct{})
	for _, doc := range docs {
		sources[doc.Source()] = struct{}{}
	}
	for source := range sources {
		if err := p.deleteSource(ctx, source); err != nil {
			return Stats{}, err
		}
	}
	removed, err := p.pruneSources(ctx, func(source string) bool {
		_, ok := sources[source]
		return !ok
	})
	if err != nil {
		return Stats{}, err
	}

	chunks, err := p.addChunks(ctx, docs)
	stats := Stats{
		Files:     len(sources),
		Documents: len(docs),
		Chunks:    chunks,
		Removed:   removed,
		Duration:  time.Since(start),
	}
	if err != nil {
		return stats, err
	}

	p.logger.InfoContext(ctx, "Vector store built",
		"files", stats.Files,
		"documents", stats.Documents,
		"chunks", stats.Chunks,
		"removed", stats.Removed,
		"duration", stats.Duration,
	)
	return stats, nil
}

// IngestFile replaces the chunks of a single file and returns how many were
// stored.
func (p *Pipeline) IngestFile(ctx context.Context, path string) (int, error) {
	start := time.Now()
	docs, err := p.loader.LoadFile(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("load %s: %w", path, err)
	}
	if err := p.deleteSource(ctx, p.loader.Source(path)); err != nil {
		return 0, err
	}

	n, err := p.addChunks(ctx, docs)
	if err != nil {
		return n, err
	}
	p.logger.InfoContext(ctx, "File ingested",
		"source", p.loader.Source(path),
		"chunks", n,
		"duration", time.Since(start),
	)
	return n, nil
}

// RemoveFile drops the chunks of a deleted file. When path was a directory,
// the chunks of every file below it are dropped.
func (p *Pipeline) RemoveFile(ctx context.Context, path string) error {
	source := p.loader.Source(path)
	if err := p.deleteSource(ctx, source); err != nil {
		return err
	}
	prefix := strings.TrimSuffix(source, "/") + "/"
	removed, err := p.pruneSources(ctx, func(s string) bool {
		return strings.HasPrefix(s, prefix)
	})
	if err != nil {
		return err
	}
	p.logger.InfoContext(ctx, "Removed from index", "source", source, "nested_sources", removed)
	return nil
}

// pruneSources deletes the indexed sources matched by stale and returns how
// many there were. Stores that cannot list sources are left untouched.
func (p *Pipeline) pruneSources(ctx context.Context, stale func(source string) bool) (int, error) {
	lister, ok := p.store.(vectorstores.MetadataLister)
	if !ok {
		return 0, nil
	}
	indexed, err := lister.MetadataValues(ctx, "source")
	if err != nil {
		return 0, fmt.Errorf("list indexed sources: %w", err)
	}

	removed := 0
	for _, source := range indexed {
		if !stale(source) {
			continue
		}
		if err := p.deleteSource(ctx, source); err != nil {
			return removed, err
		}
		p.logger.DebugContext(ctx, "Dropped stale source", "source", source)
		removed++
	}
	return removed, nil
}

// Collections describes the collections of the store, with point counts
// when the store is a vectorstores.CollectionManager.
func (p *Pipeline) Collections(ctx context.Context) ([]schema.CollectionInfo, error) {
	names, err := p.store.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}

	cm, _ := p.store.(vectorstores.CollectionManager)
	infos := make([]schema.CollectionInfo, 0, len(names))
	for _, name := range names {
		if cm == nil {
			infos = append(infos, schema.CollectionInfo{Name: name})
			continue
		}
		info, err := cm.CollectionInfo(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("describe collection %s: %w", name, err)
		}
		infos = append(infos, *info)
	}
	return infos, nil
}

func (p *Pipeline) deleteSource(ctx context.Context, source string) error {
	deleter, ok := p.store.(vectorstores.Deleter)
	if !ok {
		return nil
	}
	if err := deleter.DeleteDocumentsByFilter(ctx, map[string]any{"source": source}); err != nil {
		return fmt.Errorf("delete chunks of %s: %w", source, err)
	}
	return nil
}

// addChunks splits docs and adds the chunks in batches.
func (p *Pipeline) addChunks(ctx context.Context, docs []schema.Document) (int, error) {
	chunks, err := p.splitter.SplitDocuments(ctx, docs)
	if err != nil {
		return 0, fmt.Errorf("split documents: %w", err)
	}
	p.logger.DebugContext(ctx, "Split documents", "documents", len(docs), "chunks", len(chunks))

	stored := 0
	for i := 0; i < len(chunks); i += p.batchSize {
		end := min(i+p.batchSize, len(chunks))
		if _, err := p.store.AddDocuments(ctx, chunks[i:end]); err != nil {
			return stored, fmt.Errorf("add chunks %d-%d: %w", i, end, err)
		}
		stored += end - i
		if p.recorder != nil {
			p.recorder.AddIngestedChunks(end - i)
		}
	}
	return stored, nil
}
