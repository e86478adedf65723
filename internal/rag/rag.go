// Package rag assembles the retrieval pipeline (embedder, vector store,
// model and QA chain) from configuration.
package rag

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/sony/gobreaker"

	"github.com/sevigo/medrag/chains"
	"github.com/sevigo/medrag/embeddings"
	hfembed "github.com/sevigo/medrag/embeddings/huggingface"
	"github.com/sevigo/medrag/internal/config"
	"github.com/sevigo/medrag/llms"
	"github.com/sevigo/medrag/llms/breaker"
	"github.com/sevigo/medrag/llms/gemini"
	"github.com/sevigo/medrag/llms/huggingface"
	"github.com/sevigo/medrag/llms/ollama"
	"github.com/sevigo/medrag/textsplitter"
	"github.com/sevigo/medrag/vectorstores"
	"github.com/sevigo/medrag/vectorstores/qdrant"
	"github.com/sevigo/medrag/vectorstores/sqlite"
)

// IndexFile is the SQLite index inside the vector store directory.
const IndexFile = "index.db"

var ErrIndexMissing = errors.New("rag: vector store not found, run the ingest command first")

// Pipeline holds the built components. Chain is nil when the QA chain could
// not be built.
type Pipeline struct {
	Embedder embeddings.Embedder
	Store    vectorstores.VectorStore
	Model    llms.Model
	Chain    chains.Chain

	closers []io.Closer
}

// Close releases the store connections.
func (p *Pipeline) Close() error {
	var errs []error
	for _, c := range p.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// IndexPath is the SQLite index location for cfg.
func IndexPath(cfg *config.Config) string {
	return filepath.Join(cfg.VectorStore.Dir, IndexFile)
}

// NewEmbedder builds the configured embedding provider behind the batching
// wrapper.
func NewEmbedder(ctx context.Context, cfg *config.Config, logger *slog.Logger) (embeddings.Embedder, error) {
	var (
		client embeddings.Embedder
		err    error
	)
	switch cfg.Embeddings.Provider {
	case config.ProviderHuggingFace:
		client, err = hfembed.New(
			hfembed.WithModel(cfg.Embeddings.Model),
			hfembed.WithToken(cfg.LLM.Token),
			hfembed.WithLogger(logger),
		)
	case config.ProviderOllama:
		client, err = newOllama(ctx, cfg.Embeddings.Model, cfg,
			ollama.WithLogger(logger),
		)
	case config.ProviderGemini:
		client, err = gemini.New(ctx,
			gemini.WithAPIKey(cfg.LLM.GeminiAPIKey),
			gemini.WithEmbeddingModel(cfg.Embeddings.Model),
			gemini.WithLogger(logger),
		)
	default:
		return nil, fmt.Errorf("unknown embeddings provider %q", cfg.Embeddings.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s embedder: %w", cfg.Embeddings.Provider, err)
	}

	return embeddings.NewEmbedder(client,
		embeddings.WithBatchSize(cfg.Embeddings.BatchSize),
		embeddings.WithMaxConcurrent(cfg.Embeddings.Concurrency),
	)
}

// NewStore opens the configured vector store. The returned closer releases it.
func NewStore(ctx context.Context, cfg *config.Config, embedder embeddings.Embedder, logger *slog.Logger) (vectorstores.VectorStore, io.Closer, error) {
	switch cfg.VectorStore.Provider {
	case config.ProviderSQLite:
		store, err := sqlite.New(ctx,
			sqlite.WithPath(IndexPath(cfg)),
			sqlite.WithCollectionName(cfg.VectorStore.Collection),
			sqlite.WithEmbedder(embedder),
			sqlite.WithLogger(logger),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite vector store: %w", err)
		}
		return store, store, nil
	case config.ProviderQdrant:
		store, err := qdrant.New(
			qdrant.WithURL(cfg.VectorStore.QdrantURL),
			qdrant.WithAPIKey(cfg.VectorStore.QdrantAPIKey),
			qdrant.WithCollectionName(cfg.VectorStore.Collection),
			qdrant.WithEmbedder(embedder),
			qdrant.WithLogger(logger),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("connect qdrant: %w", err)
		}
		return store, store, nil
	default:
		return nil, nil, fmt.Errorf("unknown vector store provider %q", cfg.VectorStore.Provider)
	}
}

// NewModel builds the configured chat model behind a circuit breaker.
func NewModel(ctx context.Context, cfg *config.Config, logger *slog.Logger) (llms.Model, error) {
	var (
		model llms.Model
		err   error
	)
	switch cfg.LLM.Provider {
	case config.ProviderHuggingFace:
		model, err = huggingface.New(
			huggingface.WithModel(cfg.LLM.Model),
			huggingface.WithToken(cfg.LLM.Token),
			huggingface.WithTemperature(cfg.LLM.Temperature),
			huggingface.WithMaxTokens(cfg.LLM.MaxTokens),
			huggingface.WithHTTPClient(&http.Client{Timeout: cfg.LLM.Timeout}),
			huggingface.WithLogger(logger),
		)
	case config.ProviderOllama:
		model, err = newOllama(ctx, cfg.LLM.Model, cfg,
			ollama.WithHTTPClient(&http.Client{Timeout: cfg.LLM.Timeout}),
			ollama.WithLogger(logger),
		)
	case config.ProviderGemini:
		model, err = gemini.New(ctx,
			gemini.WithModel(cfg.LLM.Model),
			gemini.WithAPIKey(cfg.LLM.GeminiAPIKey),
			gemini.WithLogger(logger),
		)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.LLM.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s model: %w", cfg.LLM.Provider, err)
	}

	return breaker.New(model,
		breaker.WithName(cfg.LLM.Provider),
		breaker.WithMaxFailures(cfg.LLM.MaxFailures),
		breaker.WithStateChangeFunc(func(name string, from, to gobreaker.State) {
			logger.Warn("Model endpoint availability changed", "provider", name, "state", to.String())
		}),
		breaker.WithLogger(logger),
	), nil
}

// newOllama connects to the Ollama server and makes sure model is available
// there, pulling it when cfg allows.
func newOllama(ctx context.Context, model string, cfg *config.Config, opts ...ollama.Option) (*ollama.LLM, error) {
	opts = append([]ollama.Option{
		ollama.WithModel(model),
		ollama.WithServerURL(cfg.LLM.OllamaURL),
		ollama.WithPullMissing(cfg.LLM.PullMissing),
	}, opts...)
	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, err
	}
	if err := llm.EnsureModel(ctx); err != nil {
		return nil, fmt.Errorf("ensure model %s: %w", model, err)
	}
	return llm, nil
}

// NewSplitter returns the configured recursive character splitter.
func NewSplitter(cfg *config.Config) (*textsplitter.RecursiveCharacter, error) {
	return textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(cfg.Splitter.ChunkSize),
		textsplitter.WithChunkOverlap(cfg.Splitter.ChunkOverlap),
	)
}

// OpenIndex builds the embedder and vector store used for ingestion.
func OpenIndex(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Pipeline, error) {
	embedder, err := NewEmbedder(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	store, closer, err := NewStore(ctx, cfg, embedder, logger)
	if err != nil {
		return nil, err
	}
	return &Pipeline{Embedder: embedder, Store: store, closers: []io.Closer{closer}}, nil
}

// Build assembles the whole pipeline for the server. Errors are logged and
// leave Chain nil so that the server can still start; the returned pipeline
// is never nil.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) *Pipeline {
	logger = logger.With("component", "rag")

	p, err := build(ctx, cfg, logger)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to create QA chain", "error", err)
		if p == nil {
			p = &Pipeline{}
		}
		p.Chain = nil
		return p
	}
	logger.InfoContext(ctx, "QA chain created successfully",
		"llm_provider", cfg.LLM.Provider,
		"model", cfg.LLM.Model,
		"vectorstore", cfg.VectorStore.Provider,
		"top_k", cfg.VectorStore.TopK,
	)
	return p
}

func build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Pipeline, error) {
	if cfg.VectorStore.Provider == config.ProviderSQLite && !sqlite.Exists(IndexPath(cfg)) {
		return nil, fmt.Errorf("%w: %s", ErrIndexMissing, IndexPath(cfg))
	}

	p, err := OpenIndex(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	logger.InfoContext(ctx, "Vector store loaded", "provider", cfg.VectorStore.Provider)

	model, err := NewModel(ctx, cfg, logger)
	if err != nil {
		return p, err
	}
	p.Model = model
	logger.InfoContext(ctx, "LLM loaded", "provider", cfg.LLM.Provider, "model", cfg.LLM.Model)

	var searchOpts []vectorstores.Option
	if cfg.VectorStore.ScoreThreshold > 0 {
		searchOpts = append(searchOpts, vectorstores.WithScoreThreshold(cfg.VectorStore.ScoreThreshold))
	}
	p.Chain, err = NewChain(p.Store, model, cfg, logger, searchOpts...)
	return p, err
}

// NewChain builds the QA chain over store, validating context first when
// configured.
func NewChain(store vectorstores.VectorStore, model llms.Model, cfg *config.Config, logger *slog.Logger, searchOpts ...vectorstores.Option) (chains.Chain, error) {
	retriever := vectorstores.ToRetriever(store, cfg.VectorStore.TopK, searchOpts...)
	if cfg.LLM.ValidateContext {
		chain, err := chains.NewValidatingRetrievalQA(retriever, model,
			chains.WithValidator(model),
			chains.WithLogger(logger),
		)
		if err != nil {
			return nil, fmt.Errorf("create validating chain: %w", err)
		}
		return chain, nil
	}
	return chains.NewRetrievalQA(retriever, model, chains.WithQALogger(logger)), nil
}
