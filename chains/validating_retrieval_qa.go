package chains

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sevigo/medrag/llms"
	"github.com/sevigo/medrag/prompts"
	"github.com/sevigo/medrag/schema"
)

// ValidatingRetrievalQA asks a validator model whether the retrieved context
// is relevant before using it. Irrelevant context is dropped and the
// generator answers the bare question.
type ValidatingRetrievalQA struct {
	Retriever    schema.Retriever
	GeneratorLLM llms.Model
	ValidatorLLM llms.Model
	logger       *slog.Logger
}

var _ SourcedChain = (*ValidatingRetrievalQA)(nil)

type ValidatingRetrievalQAOption func(*ValidatingRetrievalQA)

func WithValidator(llm llms.Model) ValidatingRetrievalQAOption {
	return func(c *ValidatingRetrievalQA) {
		c.ValidatorLLM = llm
	}
}

func WithLogger(logger *slog.Logger) ValidatingRetrievalQAOption {
	return func(c *ValidatingRetrievalQA) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewValidatingRetrievalQA requires the WithValidator option.
func NewValidatingRetrievalQA(retriever schema.Retriever, generator llms.Model, opts ...ValidatingRetrievalQAOption) (*ValidatingRetrievalQA, error) {
	if retriever == nil {
		return nil, errors.New("retriever cannot be nil")
	}
	if generator == nil {
		return nil, errors.New("generator LLM cannot be nil")
	}

	chain := &ValidatingRetrievalQA{
		Retriever:    retriever,
		GeneratorLLM: generator,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(chain)
	}

	if chain.ValidatorLLM == nil {
		return nil, errors.New("validator LLM is required, use WithValidator() option")
	}
	return chain, nil
}

func (c *ValidatingRetrievalQA) Call(ctx context.Context, query string) (string, error) {
	answer, _, err := c.CallWithSources(ctx, query)
	return answer, err
}

// CallWithSources returns the documents only when they were judged relevant.
func (c *ValidatingRetrievalQA) CallWithSources(ctx context.Context, query string) (string, []schema.Document, error) {
	if strings.TrimSpace(query) == "" {
		return "", nil, ErrEmptyQuery
	}

	docs, err := c.Retriever.GetRelevantDocuments(ctx, query)
	if err != nil {
		c.logger.ErrorContext(ctx, "Document retrieval failed", "error", err)
		return "", nil, fmt.Errorf("document retrieval failed: %w", err)
	}
	if len(docs) == 0 {
		c.logger.InfoContext(ctx, "No documents retrieved, using direct generation")
		answer, err := c.GeneratorLLM.Call(ctx, query)
		return answer, nil, err
	}

	contextStr := joinDocuments(docs)
	relevant, err := c.validateContext(ctx, query, contextStr)
	if err != nil {
		return "", nil, fmt.Errorf("context validation failed: %w", err)
	}
	if !relevant {
		c.logger.InfoContext(ctx, "Context judged irrelevant, using direct generation", "documents", len(docs))
		answer, err := c.GeneratorLLM.Call(ctx, query)
		return answer, nil, err
	}

	prompt := prompts.MedicalQAPrompt.Format(map[string]string{
		"context": contextStr,
		"query":   query,
	})
	answer, err := c.GeneratorLLM.Call(ctx, prompt)
	if err != nil {
		return "", docs, err
	}
	return answer, docs, nil
}

func (c *ValidatingRetrievalQA) validateContext(ctx context.Context, query, contextStr string) (bool, error) {
	response, err := c.ValidatorLLM.Call(ctx, prompts.RelevancePrompt.Format(map[string]string{
		"context": contextStr,
		"query":   query,
	}))
	if err != nil {
		return false, err
	}

	verdict := strings.ToLower(strings.TrimSpace(response))
	verdict = strings.TrimLeft(verdict, "\"'` ")
	c.logger.DebugContext(ctx, "Context validation completed", "response", verdict)
	return strings.HasPrefix(verdict, "yes"), nil
}
