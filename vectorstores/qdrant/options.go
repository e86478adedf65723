package qdrant

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sevigo/medrag/embeddings"
)

const (
	DefaultCollectionName = "medical_documents"
	defaultHost           = "localhost"
	defaultPort           = 6334
	contentKey            = "page_content"
	// maxFacetValues bounds MetadataValues; a document folder has far fewer sources.
	maxFacetValues = 100000
)

var ErrInvalidOptions = errors.New("qdrant: invalid options provided")

type options struct {
	collectionName string
	host           string
	port           int
	useTLS         bool
	apiKey         string
	embedder       embeddings.Embedder
	logger         *slog.Logger
	batchSize      int
	maxConcurrency int
	retryAttempts  int
	retryDelay     time.Duration
	maxRetryDelay  time.Duration
}

type Option func(*options)

func WithCollectionName(name string) Option {
	return func(opts *options) {
		opts.collectionName = strings.TrimSpace(name)
	}
}

// WithURL parses a server address such as "http://qdrant:6334". An https
// scheme enables TLS. Unparseable values are ignored and validate reports them.
func WithURL(rawURL string) Option {
	return func(opts *options) {
		if rawURL == "" {
			return
		}
		u, err := url.Parse(rawURL)
		if err != nil || u.Hostname() == "" {
			opts.host = ""
			opts.port = -1
			return
		}
		opts.host = u.Hostname()
		opts.useTLS = u.Scheme == "https"
		if p := u.Port(); p != "" {
			port, err := strconv.Atoi(p)
			if err != nil {
				port = -1
			}
			opts.port = port
		}
	}
}

func WithAPIKey(apiKey string) Option {
	return func(opts *options) {
		opts.apiKey = strings.TrimSpace(apiKey)
	}
}

func WithEmbedder(embedder embeddings.Embedder) Option {
	return func(opts *options) {
		opts.embedder = embedder
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(opts *options) {
		if logger != nil {
			opts.logger = logger
		}
	}
}

// WithBatchSize sets how many points go into one upsert request.
func WithBatchSize(size int) Option {
	return func(opts *options) {
		if size > 0 {
			opts.batchSize = size
		}
	}
}

// WithRetryAttempts sets how often a failed upsert batch is retried.
func WithRetryAttempts(attempts int) Option {
	return func(opts *options) {
		if attempts >= 0 {
			opts.retryAttempts = attempts
		}
	}
}

func WithRetryDelay(initial, maxDelay time.Duration) Option {
	return func(opts *options) {
		if initial > 0 {
			opts.retryDelay = initial
		}
		if maxDelay > 0 {
			opts.maxRetryDelay = maxDelay
		}
	}
}

func parseOptions(opts ...Option) (options, error) {
	o := options{
		collectionName: DefaultCollectionName,
		host:           defaultHost,
		port:           defaultPort,
		logger:         slog.Default(),
		batchSize:      100,
		maxConcurrency: 8,
		retryAttempts:  3,
		retryDelay:     time.Second,
		maxRetryDelay:  30 * time.Second,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if err := o.validate(); err != nil {
		return o, err
	}
	return o, nil
}

func (o *options) validate() error {
	switch {
	case o.collectionName == "":
		return fmt.Errorf("%w: collection name is required", ErrInvalidOptions)
	case o.host == "":
		return fmt.Errorf("%w: host is required", ErrInvalidOptions)
	case o.port <= 0 || o.port > 65535:
		return fmt.Errorf("%w: port %d out of range", ErrInvalidOptions, o.port)
	case o.embedder == nil:
		return fmt.Errorf("%w: %w", ErrInvalidOptions, ErrMissingEmbedder)
	}
	return nil
}

// String omits the API key.
func (o *options) String() string {
	return fmt.Sprintf("QdrantOptions{collection=%s, host=%s:%d, tls=%t, has_api_key=%t}",
		o.collectionName, o.host, o.port, o.useTLS, o.apiKey != "")
}
