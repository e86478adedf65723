package huggingface

import (
	"log/slog"
	"net/http"
	"time"
)

const (
	// DefaultBaseURL is the OpenAI-compatible chat endpoint of the Hugging Face router.
	DefaultBaseURL = "https://router.huggingface.co/v1"
	// DefaultModel is the instruct model the chatbot answers with.
	DefaultModel = "mistralai/Mistral-7B-Instruct-v0.1"
)

type options struct {
	model       string
	token       string
	baseURL     string
	httpClient  *http.Client
	temperature float64
	maxTokens   int
	logger      *slog.Logger
}

// Option configures the Hugging Face client.
type Option func(*options)

func applyOptions(opts ...Option) options {
	o := options{
		model:       DefaultModel,
		baseURL:     DefaultBaseURL,
		httpClient:  &http.Client{Timeout: 2 * time.Minute},
		temperature: 0.5,
		maxTokens:   512,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func WithModel(model string) Option {
	return func(o *options) {
		if model != "" {
			o.model = model
		}
	}
}

// WithToken sets the access token. Without it New falls back to HF_TOKEN.
func WithToken(token string) Option {
	return func(o *options) {
		o.token = token
	}
}

func WithBaseURL(baseURL string) Option {
	return func(o *options) {
		if baseURL != "" {
			o.baseURL = baseURL
		}
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		if client != nil {
			o.httpClient = client
		}
	}
}

// WithTemperature sets the default sampling temperature. Per-call options win.
func WithTemperature(t float64) Option {
	return func(o *options) {
		o.temperature = t
	}
}

func WithMaxTokens(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxTokens = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}
