package ollamaclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ollama/ollama/api"
)

const MaxBufferSize = 512 * 1024

// Chat posts to /api/chat. Non-streaming requests are accumulated into a
// single response before fn is called; streaming requests call fn per chunk.
func (c *Client) Chat(ctx context.Context, req *api.ChatRequest, fn api.ChatResponseFunc) error {
	if req.Stream != nil && *req.Stream {
		return c.streamRequest(ctx, http.MethodPost, "/api/chat", req, func(data []byte) error {
			var resp api.ChatResponse
			if err := json.Unmarshal(data, &resp); err != nil {
				return fmt.Errorf("unmarshal streaming chat chunk: %w", err)
			}
			return fn(resp)
		})
	}

	var final api.ChatResponse
	var content strings.Builder
	err := c.streamRequest(ctx, http.MethodPost, "/api/chat", req, func(data []byte) error {
		var resp api.ChatResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			return fmt.Errorf("unmarshal chat chunk: %w", err)
		}
		content.WriteString(resp.Message.Content)
		if resp.Done {
			final = resp
		}
		return nil
	})
	if err != nil {
		return err
	}

	final.Message.Content = content.String()
	return fn(final)
}

// streamRequest reads an NDJSON response line by line.
func (c *Client) streamRequest(ctx context.Context, method, path string, reqData any, callback func([]byte) error) error {
	buf, ok := jsonBufferPool.Get().(*bytes.Buffer)
	if !ok {
		return errors.New("failed get data from buffer")
	}
	buf.Reset()
	defer jsonBufferPool.Put(buf)

	if reqData != nil {
		if err := json.NewEncoder(buf).Encode(reqData); err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
	}

	requestURL := c.baseURL.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, method, requestURL.String(), buf)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/x-ndjson")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if err := checkError(resp); err != nil {
		c.logger.ErrorContext(ctx, "Ollama stream request failed",
			"status", resp.StatusCode, "method", method, "url", requestURL.String(), "error", err)
		return err
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, MaxBufferSize), MaxBufferSize)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var streamErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(line, &streamErr) == nil && streamErr.Error != "" {
			return StatusError{ErrorMessage: streamErr.Error}
		}

		if err := callback(line); err != nil {
			return fmt.Errorf("callback error: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("stream read error: %w", err)
	}
	return nil
}
