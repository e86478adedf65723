// Package ollamaclient is a small HTTP client for the Ollama REST API covering
// chat, embeddings and model management.
package ollamaclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/ollama/ollama/api"
)

const (
	DefaultOllamaURL = "http://127.0.0.1:11434"
	DefaultTimeout   = 10 * time.Minute
)

type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	logger     *slog.Logger
}

var jsonBufferPool = sync.Pool{
	New: func() any {
		return new(bytes.Buffer)
	},
}

// NewClient builds a client. A nil baseURL falls back to OLLAMA_URL and then
// to the local default; a nil httpClient gets a pooled transport.
func NewClient(baseURL *url.URL, httpClient *http.Client, logger *slog.Logger) (*Client, error) {
	if baseURL == nil {
		var err error
		baseURL, err = defaultURL()
		if err != nil {
			return nil, err
		}
	}

	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: DefaultTimeout,
			Transport: &http.Transport{
				MaxIdleConns:    100,
				IdleConnTimeout: 90 * time.Second,
				MaxConnsPerHost: 100,
			},
		}
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger.With("component", "ollama_client"),
	}, nil
}

func defaultURL() (*url.URL, error) {
	host := os.Getenv("OLLAMA_URL")
	if host == "" {
		host = DefaultOllamaURL
	}

	baseURL, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("failed to parse OLLAMA_URL: %w", err)
	}
	return baseURL, nil
}

func (c *Client) Embed(ctx context.Context, req *api.EmbedRequest) (*api.EmbedResponse, error) {
	var resp api.EmbedResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/embed", req, &resp); err != nil {
		return nil, fmt.Errorf("embed request failed: %w", err)
	}
	return &resp, nil
}

// List returns the locally available models. It doubles as a liveness probe.
func (c *Client) List(ctx context.Context) (*api.ListResponse, error) {
	var resp api.ListResponse
	if err := c.doRequest(ctx, http.MethodGet, "/api/tags", nil, &resp); err != nil {
		return nil, fmt.Errorf("list models request failed: %w", err)
	}
	return &resp, nil
}

func (c *Client) Show(ctx context.Context, req *api.ShowRequest) (*api.ShowResponse, error) {
	var resp api.ShowResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/show", req, &resp); err != nil {
		return nil, fmt.Errorf("show model request failed: %w", err)
	}
	return &resp, nil
}

func (c *Client) Pull(ctx context.Context, req *PullRequest, callback func(api.ProgressResponse) error) error {
	return c.streamRequest(ctx, http.MethodPost, "/api/pull", req, func(data []byte) error {
		var resp api.ProgressResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			return fmt.Errorf("failed to unmarshal pull response: %w", err)
		}
		if resp.Status == "error" {
			return StatusError{Status: resp.Status}
		}
		return callback(resp)
	})
}

func (c *Client) BaseURL() *url.URL {
	return c.baseURL
}

func (c *Client) doRequest(ctx context.Context, method, path string, reqData, respData any) error {
	var body io.Reader
	if reqData != nil {
		buf, ok := jsonBufferPool.Get().(*bytes.Buffer)
		if !ok {
			return errors.New("failed get data from buffer")
		}
		buf.Reset()
		defer jsonBufferPool.Put(buf)

		if err := json.NewEncoder(buf).Encode(reqData); err != nil {
			return fmt.Errorf("failed to encode request data: %w", err)
		}
		body = buf
	}

	request, err := http.NewRequestWithContext(ctx, method, c.baseURL.JoinPath(path).String(), body)
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Accept", "application/json")

	response, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer response.Body.Close()

	if err := checkError(response); err != nil {
		return err
	}

	if respData != nil {
		if err := json.NewDecoder(response.Body).Decode(respData); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// checkError turns a non-2xx response into a StatusError.
func checkError(response *http.Response) error {
	if response.StatusCode < http.StatusBadRequest {
		return nil
	}

	statusErr := StatusError{
		Status:     response.Status,
		StatusCode: response.StatusCode,
	}
	body, _ := io.ReadAll(io.LimitReader(response.Body, 64*1024))
	if err := json.Unmarshal(body, &statusErr); err != nil || statusErr.ErrorMessage == "" {
		statusErr.ErrorMessage = string(bytes.TrimSpace(body))
	}
	return statusErr
}
