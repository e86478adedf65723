// Package huggingface talks to hosted models through the Hugging Face router,
// which exposes an OpenAI-compatible chat completions API.
package huggingface

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/sevigo/medrag/llms"
	"github.com/sevigo/medrag/schema"
)

// TokenEnvVar is read when no token is passed explicitly.
const TokenEnvVar = "HF_TOKEN"

var (
	ErrNoToken    = errors.New("huggingface: access token is required (set HF_TOKEN)")
	ErrNoMessages = errors.New("huggingface: no messages to send")
	ErrNoContent  = errors.New("huggingface: no content generated")
)

// LLM is a chat model served by Hugging Face.
type LLM struct {
	client  *openai.Client
	options options
	logger  *slog.Logger
}

var _ llms.Model = (*LLM)(nil)

// New creates a client. The token comes from WithToken or the HF_TOKEN
// environment variable.
func New(opts ...Option) (*LLM, error) {
	o := applyOptions(opts...)
	if o.token == "" {
		o.token = os.Getenv(TokenEnvVar)
	}
	if o.token == "" {
		return nil, ErrNoToken
	}

	cfg := openai.DefaultConfig(o.token)
	cfg.BaseURL = strings.TrimRight(o.baseURL, "/")
	cfg.HTTPClient = o.httpClient

	llm := &LLM{
		client:  openai.NewClientWithConfig(cfg),
		options: o,
		logger:  o.logger.With("component", "huggingface_llm", "model", o.model),
	}
	llm.logger.Info("Hugging Face LLM initialized", "base_url", cfg.BaseURL)
	return llm, nil
}

// Call sends a single prompt and returns the completion text.
func (h *LLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, h, prompt, options...)
}

// GenerateContent sends a conversation. A streaming func in the options
// switches to server-sent events and receives every delta.
func (h *LLM) GenerateContent(
	ctx context.Context,
	messages []schema.MessageContent,
	options ...llms.CallOption,
) (*llms.ContentResponse, error) {
	if len(messages) == 0 {
		return nil, ErrNoMessages
	}

	opts := llms.ParseCallOptions(options...)
	req := h.buildRequest(messages, opts)

	start := time.Now()
	h.logger.DebugContext(ctx, "Sending chat completion", "message_count", len(messages), "stream", req.Stream)

	if opts.StreamingFunc != nil {
		return h.stream(ctx, req, opts.StreamingFunc, start)
	}

	resp, err := h.client.CreateChatCompletion(ctx, req)
	duration := time.Since(start)
	if err != nil {
		h.logger.ErrorContext(ctx, "Chat completion failed", "error", err, "duration", duration)
		return nil, fmt.Errorf("huggingface chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrNoContent
	}

	choice := resp.Choices[0]
	h.logger.InfoContext(ctx, "Chat completion finished",
		"duration", duration, "total_tokens", resp.Usage.TotalTokens)

	return llms.NewTextResponse(strings.TrimSpace(choice.Message.Content), string(choice.FinishReason), map[string]any{
		"PromptTokens":     resp.Usage.PromptTokens,
		"CompletionTokens": resp.Usage.CompletionTokens,
		"TotalTokens":      resp.Usage.TotalTokens,
		"Duration":         duration,
		"Model":            req.Model,
	}), nil
}

func (h *LLM) stream(
	ctx context.Context,
	req openai.ChatCompletionRequest,
	fn func(context.Context, []byte) error,
	start time.Time,
) (*llms.ContentResponse, error) {
	req.Stream = true
	stream, err := h.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		h.logger.ErrorContext(ctx, "Opening completion stream failed", "error", err)
		return nil, fmt.Errorf("huggingface chat stream: %w", err)
	}
	defer stream.Close()

	var full strings.Builder
	var finish string
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("huggingface chat stream: %w", err)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if chunk.Choices[0].FinishReason != "" {
			finish = string(chunk.Choices[0].FinishReason)
		}
		if delta == "" {
			continue
		}
		full.WriteString(delta)
		if err := fn(ctx, []byte(delta)); err != nil {
			return nil, fmt.Errorf("streaming function returned an error: %w", err)
		}
	}

	duration := time.Since(start)
	h.logger.InfoContext(ctx, "Streamed chat completion finished", "duration", duration)
	return llms.NewTextResponse(strings.TrimSpace(full.String()), finish, map[string]any{
		"Duration": duration,
		"Model":    req.Model,
	}), nil
}

func (h *LLM) buildRequest(messages []schema.MessageContent, opts llms.CallOptions) openai.ChatCompletionRequest {
	model := h.options.model
	if opts.Model != "" {
		model = opts.Model
	}
	temperature := h.options.temperature
	if opts.Temperature > 0 {
		temperature = opts.Temperature
	}
	maxTokens := h.options.maxTokens
	if opts.MaxTokens > 0 {
		maxTokens = opts.MaxTokens
	}

	msgs := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    roleFor(m.Role),
			Content: m.GetTextContent(),
		})
	}

	return openai.ChatCompletionRequest{
		Model:       model,
		Messages:    msgs,
		Temperature: float32(temperature),
		MaxTokens:   maxTokens,
	}
}

func roleFor(t schema.ChatMessageType) string {
	switch t {
	case schema.ChatMessageTypeSystem:
		return openai.ChatMessageRoleSystem
	case schema.ChatMessageTypeAI:
		return openai.ChatMessageRoleAssistant
	default:
		return openai.ChatMessageRoleUser
	}
}
