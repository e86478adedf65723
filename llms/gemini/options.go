package gemini

import (
	"log/slog"
)

const (
	DefaultModel          = "gemini-2.5-flash"
	DefaultEmbeddingModel = "text-embedding-004"
)

type options struct {
	model          string
	embeddingModel string
	apiKey         string
	baseURL        string
	logger         *slog.Logger
}

type Option func(*options)

func applyOptions(opts ...Option) options {
	o := options{
		model:          DefaultModel,
		embeddingModel: DefaultEmbeddingModel,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func WithModel(model string) Option {
	return func(opts *options) {
		opts.model = model
	}
}

// WithEmbeddingModel sets the model used by EmbedDocuments and EmbedQuery.
func WithEmbeddingModel(model string) Option {
	return func(opts *options) {
		if model != "" {
			opts.embeddingModel = model
		}
	}
}

// WithAPIKey sets the Gemini API key. Without it New reads GEMINI_API_KEY.
func WithAPIKey(apiKey string) Option {
	return func(opts *options) {
		opts.apiKey = apiKey
	}
}

// WithBaseURL overrides the API endpoint, mostly for proxies and tests.
func WithBaseURL(baseURL string) Option {
	return func(opts *options) {
		opts.baseURL = baseURL
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(opts *options) {
		if logger != nil {
			opts.logger = logger
		}
	}
}
