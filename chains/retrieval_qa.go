package chains

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sevigo/medrag/llms"
	"github.com/sevigo/medrag/prompts"
	"github.com/sevigo/medrag/schema"
)

// RetrievalQA stuffs the retrieved documents into a prompt and asks the model.
type RetrievalQA struct {
	Retriever schema.Retriever
	LLM       llms.Model
	Prompt    prompts.PromptTemplate
	logger    *slog.Logger
}

var _ SourcedChain = RetrievalQA{}

type RetrievalQAOption func(*RetrievalQA)

// WithPrompt replaces prompts.MedicalQAPrompt. The template receives
// `context` and `query`.
func WithPrompt(p prompts.PromptTemplate) RetrievalQAOption {
	return func(c *RetrievalQA) {
		c.Prompt = p
	}
}

func WithQALogger(logger *slog.Logger) RetrievalQAOption {
	return func(c *RetrievalQA) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func NewRetrievalQA(retriever schema.Retriever, llm llms.Model, opts ...RetrievalQAOption) RetrievalQA {
	c := RetrievalQA{
		Retriever: retriever,
		LLM:       llm,
		Prompt:    prompts.MedicalQAPrompt,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func (c RetrievalQA) Call(ctx context.Context, query string) (string, error) {
	answer, _, err := c.CallWithSources(ctx, query)
	return answer, err
}

// CallWithSources answers the query and returns the retrieved documents.
// Without documents the model receives the bare question.
func (c RetrievalQA) CallWithSources(ctx context.Context, query string) (string, []schema.Document, error) {
	if strings.TrimSpace(query) == "" {
		return "", nil, ErrEmptyQuery
	}

	start := time.Now()
	docs, err := c.Retriever.GetRelevantDocuments(ctx, query)
	if err != nil {
		return "", nil, fmt.Errorf("document retrieval failed: %w", err)
	}

	prompt := query
	if len(docs) > 0 {
		prompt = c.Prompt.Format(map[string]string{
			"context": joinDocuments(docs),
			"query":   query,
		})
	}

	answer, err := c.LLM.Call(ctx, prompt)
	if err != nil {
		return "", docs, err
	}

	c.logger.DebugContext(ctx, "Retrieval QA answered",
		"documents", len(docs),
		"prompt_length", len(prompt),
		"duration", time.Since(start),
	)
	return answer, docs, nil
}
