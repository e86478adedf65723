package ollama_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/medrag/llms"
	"github.com/sevigo/medrag/llms/ollama"
	"github.com/sevigo/medrag/schema"
)

func newOllamaServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		last := req.Messages[len(req.Messages)-1]
		fmt.Fprintf(w, "{\"model\":%q,\"message\":{\"role\":\"assistant\",\"content\":\"You asked: \"},\"done\":false}\n", req.Model)
		fmt.Fprintf(w, "{\"model\":%q,\"message\":{\"role\":\"assistant\",\"content\":%q},\"done\":false}\n", req.Model, last.Content)
		fmt.Fprintf(w, "{\"model\":%q,\"message\":{\"role\":\"assistant\",\"content\":\"\"},\"done\":true,\"done_reason\":\"stop\",\"prompt_eval_count\":5,\"eval_count\":3}\n", req.Model)
	})
	mux.HandleFunc("/api/embed", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		out := make([][]float32, len(req.Input))
		for i := range req.Input {
			out[i] = []float32{float32(i), 1, 0}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": out})
	})
	mux.HandleFunc("/api/show", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model string `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Model != "llama3.2" {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprintf(w, `{"error":"model '%s' not found"}`, req.Model)
			return
		}
		fmt.Fprint(w, `{"details":{"family":"llama","parameter_size":"3B","quantization_level":"Q4_K_M"}}`)
	})
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"models":[]}`)
	})
	return httptest.NewServer(mux)
}

func TestGenerateContent(t *testing.T) {
	srv := newOllamaServer(t)
	defer srv.Close()

	llm, err := ollama.New(ollama.WithServerURL(srv.URL))
	require.NoError(t, err)

	t.Run("accumulates a non-streaming reply", func(t *testing.T) {
		resp, err := llm.GenerateContent(context.Background(), []schema.MessageContent{
			schema.NewSystemMessage("be brief"),
			schema.NewHumanMessage("what is diabetes?"),
		})
		require.NoError(t, err)
		assert.Equal(t, "You asked: what is diabetes?", resp.Choices[0].Content)
		assert.Equal(t, "stop", resp.Choices[0].StopReason)
		assert.Equal(t, 8, resp.Choices[0].GenerationInfo["TotalTokens"])
	})

	t.Run("streams chunks", func(t *testing.T) {
		var chunks []string
		out, err := llm.Call(context.Background(), "hi", llms.WithStreamingFunc(func(_ context.Context, b []byte) error {
			chunks = append(chunks, string(b))
			return nil
		}))
		require.NoError(t, err)
		assert.Equal(t, "You asked: hi", out)
		assert.Equal(t, []string{"You asked: ", "hi"}, chunks)
	})

	t.Run("no messages", func(t *testing.T) {
		_, err := llm.GenerateContent(context.Background(), nil)
		require.ErrorIs(t, err, ollama.ErrNoMessages)
	})
}

func TestEmbeddings(t *testing.T) {
	srv := newOllamaServer(t)
	defer srv.Close()

	llm, err := ollama.New(ollama.WithServerURL(srv.URL), ollama.WithModel("nomic-embed-text"))
	require.NoError(t, err)

	vectors, err := llm.EmbedDocuments(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0, 1, 0}, {1, 1, 0}}, vectors)

	dim, err := llm.GetDimension(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, dim)

	empty, err := llm.EmbedDocuments(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestModelManagement(t *testing.T) {
	srv := newOllamaServer(t)
	defer srv.Close()

	llm, err := ollama.New(ollama.WithServerURL(srv.URL))
	require.NoError(t, err)

	exists, err := llm.ModelExists(context.Background())
	require.NoError(t, err)
	assert.True(t, exists)

	details, err := llm.GetModelDetails(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "llama", details.Family)
	assert.Equal(t, "Q4_K_M", details.Quantization)

	require.NoError(t, llm.Ping(context.Background()))

	missing, err := ollama.New(ollama.WithServerURL(srv.URL), ollama.WithModel("unknown"), ollama.WithPullMissing(false))
	require.NoError(t, err)

	exists, err = missing.ModelExists(context.Background())
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = missing.GetModelDetails(context.Background())
	require.ErrorIs(t, err, ollama.ErrModelNotFound)

	require.ErrorIs(t, missing.EnsureModel(context.Background()), ollama.ErrModelPullDisabled)
}

func TestEnsureModel_PullsMissingModel(t *testing.T) {
	var pulled []string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/show", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":"model not found"}`)
	})
	mux.HandleFunc("/api/pull", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model string `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		pulled = append(pulled, req.Model)
		fmt.Fprintln(w, `{"status":"pulling manifest"}`)
		fmt.Fprintln(w, `{"status":"downloading","total":100,"completed":50}`)
		fmt.Fprintln(w, `{"status":"success"}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	llm, err := ollama.New(ollama.WithServerURL(srv.URL), ollama.WithModel("nomic-embed-text"))
	require.NoError(t, err)

	require.NoError(t, llm.EnsureModel(context.Background()))
	assert.Equal(t, []string{"nomic-embed-text"}, pulled)
}

func TestNew_RejectsBlankModel(t *testing.T) {
	_, err := ollama.New(ollama.WithModel("  "))
	require.ErrorIs(t, err, ollama.ErrInvalidModel)
}
