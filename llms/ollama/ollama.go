// Package ollama serves both chat completions and embeddings from a local
// Ollama server.
package ollama

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/sevigo/medrag/embeddings"
	"github.com/sevigo/medrag/llms"
	"github.com/sevigo/medrag/llms/ollama/ollamaclient"
	"github.com/sevigo/medrag/schema"
)

var (
	ErrEmptyResponse       = errors.New("ollama: empty response received")
	ErrIncompleteEmbedding = errors.New("ollama: not all input texts were embedded")
	ErrNoMessages          = errors.New("ollama: no messages provided")
	ErrModelNotFound       = errors.New("ollama: model not found")
	ErrInvalidModel        = errors.New("ollama: invalid model specified")
	ErrModelPullDisabled   = errors.New("ollama: model is missing and pulling is disabled")
)

type LLM struct {
	client  *ollamaclient.Client
	options options
	logger  *slog.Logger

	dimMu sync.Mutex
	dim   int
}

var (
	_ llms.Model          = (*LLM)(nil)
	_ embeddings.Embedder = (*LLM)(nil)
)

func New(opts ...Option) (*LLM, error) {
	o := applyOptions(opts...)

	if strings.TrimSpace(o.model) == "" {
		return nil, ErrInvalidModel
	}

	client, err := ollamaclient.NewClient(o.ollamaServerURL, o.httpClient, o.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama client: %w", err)
	}

	llm := &LLM{
		client:  client,
		options: o,
		logger:  o.logger.With("component", "ollama_llm", "model", o.model),
	}

	llm.logger.Info("Ollama LLM initialized", "server", client.BaseURL().String())
	return llm, nil
}

func (o *LLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	start := time.Now()
	result, err := llms.GenerateFromSinglePrompt(ctx, o, prompt, options...)
	if err != nil {
		o.logger.ErrorContext(ctx, "Call failed", "error", err, "duration", time.Since(start))
		return "", err
	}
	return result, nil
}

func (o *LLM) GenerateContent(
	ctx context.Context,
	messages []schema.MessageContent,
	options ...llms.CallOption,
) (*llms.ContentResponse, error) {
	if len(messages) == 0 {
		return nil, ErrNoMessages
	}

	start := time.Now()
	opts := llms.ParseCallOptions(options...)
	model := o.options.model
	if opts.Model != "" {
		model = opts.Model
	}

	stream := opts.StreamingFunc != nil
	req := &api.ChatRequest{
		Model:    model,
		Messages: toOllamaMessages(messages),
		Stream:   &stream,
		Options:  requestOptions(opts),
	}

	var full strings.Builder
	var final api.ChatResponse
	err := o.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		full.WriteString(resp.Message.Content)
		if stream && resp.Message.Content != "" {
			if errStream := opts.StreamingFunc(ctx, []byte(resp.Message.Content)); errStream != nil {
				return fmt.Errorf("streaming function returned an error: %w", errStream)
			}
		}
		if resp.Done {
			final = resp
		}
		return nil
	})
	duration := time.Since(start)
	if err != nil {
		o.logger.ErrorContext(ctx, "Ollama chat failed", "error", err, "duration", duration)
		return nil, err
	}

	content := strings.TrimSpace(full.String())
	if content == "" {
		return nil, ErrEmptyResponse
	}

	o.logger.InfoContext(ctx, "Content generation completed", "duration", duration)
	return llms.NewTextResponse(content, final.DoneReason, map[string]any{
		"CompletionTokens": final.EvalCount,
		"PromptTokens":     final.PromptEvalCount,
		"TotalTokens":      final.EvalCount + final.PromptEvalCount,
		"Duration":         duration,
		"Model":            model,
	}), nil
}

func requestOptions(opts llms.CallOptions) map[string]any {
	out := map[string]any{}
	if opts.Temperature > 0 {
		out["temperature"] = opts.Temperature
	}
	if opts.MaxTokens > 0 {
		out["num_predict"] = opts.MaxTokens
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func toOllamaMessages(messages []schema.MessageContent) []api.Message {
	out := make([]api.Message, 0, len(messages))
	for _, mc := range messages {
		out = append(out, api.Message{Role: typeToRole(mc.Role), Content: mc.GetTextContent()})
	}
	return out
}

func typeToRole(typ schema.ChatMessageType) string {
	switch typ {
	case schema.ChatMessageTypeSystem:
		return "system"
	case schema.ChatMessageTypeAI:
		return "assistant"
	default:
		return "user"
	}
}

// EmbedDocuments embeds all texts in one /api/embed request.
func (o *LLM) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	start := time.Now()
	resp, err := o.client.Embed(ctx, &api.EmbedRequest{Model: o.options.model, Input: texts})
	if err != nil {
		o.logger.ErrorContext(ctx, "Embedding API call failed", "error", err, "count", len(texts))
		return nil, fmt.Errorf("embedding generation failed: %w", err)
	}

	if len(resp.Embeddings) != len(texts) {
		o.logger.ErrorContext(ctx, "Embedding count mismatch", "expected", len(texts), "got", len(resp.Embeddings))
		return nil, ErrIncompleteEmbedding
	}

	o.logger.DebugContext(ctx, "Embedded documents", "count", len(texts), "duration", time.Since(start))
	return resp.Embeddings, nil
}

func (o *LLM) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := o.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors[0]) == 0 {
		return nil, ErrEmptyResponse
	}
	return vectors[0], nil
}

// GetDimension embeds a sample string and caches the vector length once it
// succeeds.
func (o *LLM) GetDimension(ctx context.Context) (int, error) {
	o.dimMu.Lock()
	defer o.dimMu.Unlock()

	if o.dim > 0 {
		return o.dim, nil
	}
	vec, err := o.EmbedQuery(ctx, "dimension sample")
	if err != nil {
		return 0, fmt.Errorf("failed to determine embedding dimension: %w", err)
	}
	o.dim = len(vec)
	return o.dim, nil
}

// EnsureModel pulls the configured model when the server does not have it.
func (o *LLM) EnsureModel(ctx context.Context) error {
	exists, err := o.ModelExists(ctx)
	if err != nil {
		return fmt.Errorf("model existence check failed: %w", err)
	}
	if exists {
		return nil
	}
	if !o.options.pullMissing {
		return ErrModelPullDisabled
	}

	o.logger.InfoContext(ctx, "Model not found locally, initiating pull")
	start := time.Now()
	err = o.client.Pull(ctx, &ollamaclient.PullRequest{Model: o.options.model, Stream: true},
		func(progress api.ProgressResponse) error {
			if progress.Total > 0 {
				percent := float64(progress.Completed) / float64(progress.Total) * 100
				o.logger.DebugContext(ctx, "Model pull progress",
					"status", progress.Status, "percent", fmt.Sprintf("%.1f%%", percent))
			}
			return nil
		})
	if err != nil {
		o.logger.ErrorContext(ctx, "Model pull failed", "error", err, "duration", time.Since(start))
		return fmt.Errorf("model pull failed: %w", err)
	}

	o.logger.InfoContext(ctx, "Model pull completed", "duration", time.Since(start))
	return nil
}

func (o *LLM) ModelExists(ctx context.Context) (bool, error) {
	_, err := o.client.Show(ctx, &api.ShowRequest{Model: o.options.model})
	if err != nil {
		var statusErr ollamaclient.StatusError
		if errors.As(err, &statusErr) && statusErr.NotFound() {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (o *LLM) GetModelDetails(ctx context.Context) (*schema.ModelDetails, error) {
	showResp, err := o.client.Show(ctx, &api.ShowRequest{Model: o.options.model})
	if err != nil {
		var statusErr ollamaclient.StatusError
		if errors.As(err, &statusErr) && statusErr.NotFound() {
			return nil, ErrModelNotFound
		}
		return nil, fmt.Errorf("failed to retrieve model information: %w", err)
	}

	return &schema.ModelDetails{
		Family:        showResp.Details.Family,
		ParameterSize: showResp.Details.ParameterSize,
		Quantization:  showResp.Details.QuantizationLevel,
	}, nil
}

// Ping reports whether the server is reachable.
func (o *LLM) Ping(ctx context.Context) error {
	_, err := o.client.List(ctx)
	return err
}
