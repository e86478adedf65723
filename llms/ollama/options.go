package ollama

import (
	"log/slog"
	"net/http"
	"net/url"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "llama3.2"

type options struct {
	model           string
	ollamaServerURL *url.URL
	httpClient      *http.Client
	pullMissing     bool
	logger          *slog.Logger
}

type Option func(*options)

func applyOptions(opts ...Option) options {
	o := options{
		model:       DefaultModel,
		pullMissing: true,
		logger:      slog.Default(),
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

// WithServerURL points the client at a server other than OLLAMA_URL.
// Unparseable URLs are ignored.
func WithServerURL(rawURL string) Option {
	return func(opts *options) {
		if rawURL == "" {
			return
		}
		if parsedURL, err := url.Parse(rawURL); err == nil {
			opts.ollamaServerURL = parsedURL
		}
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(opts *options) {
		opts.httpClient = client
	}
}

// WithPullMissing controls whether EnsureModel downloads absent models.
func WithPullMissing(pull bool) Option {
	return func(opts *options) {
		opts.pullMissing = pull
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(opts *options) {
		if logger != nil {
			opts.logger = logger
		}
	}
}
