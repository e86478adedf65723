// Package huggingface embeds text with the Hugging Face feature-extraction
// pipeline.
package huggingface

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sevigo/medrag/embeddings"
)

var (
	ErrNoToken     = errors.New("huggingface: access token is required (set HF_TOKEN)")
	ErrBadResponse = errors.New("huggingface: unexpected embedding response")
)

type featureRequest struct {
	Inputs  []string       `json:"inputs"`
	Options map[string]any `json:"options,omitempty"`
}

type Embedder struct {
	endpoint   string
	token      string
	model      string
	httpClient *http.Client
	logger     *slog.Logger

	dimMu     sync.Mutex
	dimension int
}

var _ embeddings.Embedder = (*Embedder)(nil)

func New(opts ...Option) (*Embedder, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	if o.token == "" {
		o.token = os.Getenv("HF_TOKEN")
	}
	if o.token == "" {
		return nil, ErrNoToken
	}

	return &Embedder{
		endpoint:   strings.TrimRight(o.baseURL, "/") + "/" + o.model + "/pipeline/feature-extraction",
		token:      o.token,
		model:      o.model,
		httpClient: o.httpClient,
		logger:     o.logger.With("component", "huggingface_embedder", "model", o.model),
	}, nil
}

func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	payload, err := json.Marshal(featureRequest{
		Inputs:  texts,
		Options: map[string]any{"wait_for_model": true},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.token)

	start := time.Now()
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		e.logger.ErrorContext(ctx, "Embedding request failed", "status", resp.StatusCode, "body", string(body))
		return nil, fmt.Errorf("huggingface returned %d %s: %s",
			resp.StatusCode, http.StatusText(resp.StatusCode), strings.TrimSpace(string(body)))
	}

	var vectors [][]float32
	if err := json.NewDecoder(resp.Body).Decode(&vectors); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadResponse, err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: requested %d texts, received %d embeddings", ErrBadResponse, len(texts), len(vectors))
	}

	e.logger.DebugContext(ctx, "Embedded texts", "count", len(texts), "duration", time.Since(start))
	return vectors, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, embeddings.ErrEmptyText
	}
	results, err := e.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return results[0], nil
}

// GetDimension lazily fetches the embedding dimension by sending a test query.
func (e *Embedder) GetDimension(ctx context.Context) (int, error) {
	e.dimMu.Lock()
	defer e.dimMu.Unlock()

	if e.dimension > 0 {
		return e.dimension, nil
	}
	sample, err := e.EmbedQuery(ctx, "dimension_check")
	if err != nil {
		return 0, fmt.Errorf("failed to get dimension: %w", err)
	}
	e.dimension = len(sample)
	return e.dimension, nil
}
