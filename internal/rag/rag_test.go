package rag_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/medrag/chains"
	"github.com/sevigo/medrag/internal/config"
	"github.com/sevigo/medrag/internal/rag"
	"github.com/sevigo/medrag/llms/fake"
	"github.com/sevigo/medrag/llms/ollama"
	"github.com/sevigo/medrag/schema"
	fakestore "github.com/sevigo/medrag/vectorstores/fake"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.VectorStore.Dir = filepath.Join(t.TempDir(), "vectorstore")
	return cfg
}

func TestBuild_MissingIndexLeavesChainNil(t *testing.T) {
	cfg := testConfig(t)

	p := rag.Build(context.Background(), cfg, slog.New(slog.DiscardHandler))
	require.NotNil(t, p)
	assert.Nil(t, p.Chain)
	assert.NoError(t, p.Close())
}

func TestNewModel_UnknownProvider(t *testing.T) {
	cfg := testConfig(t)
	cfg.LLM.Provider = "unknown"

	_, err := rag.NewModel(context.Background(), cfg, slog.New(slog.DiscardHandler))
	require.Error(t, err)
}

// newOllamaServer knows the models in installed and records pull requests.
func newOllamaServer(t *testing.T, installed ...string) (*httptest.Server, *[]string) {
	t.Helper()
	var pulled []string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/show", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model string `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		for _, m := range installed {
			if m == req.Model {
				fmt.Fprint(w, `{"details":{"family":"llama"}}`)
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprintf(w, `{"error":"model '%s' not found"}`, req.Model)
	})
	mux.HandleFunc("/api/pull", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model string `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		pulled = append(pulled, req.Model)
		fmt.Fprintln(w, `{"status":"success"}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &pulled
}

func TestNewModel_OllamaEnsuresModel(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.DiscardHandler)

	t.Run("installed model is not pulled", func(t *testing.T) {
		srv, pulled := newOllamaServer(t, "llama3.2")
		cfg := testConfig(t)
		cfg.LLM.Provider = config.ProviderOllama
		cfg.LLM.Model = "llama3.2"
		cfg.LLM.OllamaURL = srv.URL

		model, err := rag.NewModel(ctx, cfg, logger)
		require.NoError(t, err)
		assert.NotNil(t, model)
		assert.Empty(t, *pulled)
	})

	t.Run("missing model is pulled", func(t *testing.T) {
		srv, pulled := newOllamaServer(t)
		cfg := testConfig(t)
		cfg.Embeddings.Provider = config.ProviderOllama
		cfg.Embeddings.Model = "nomic-embed-text"
		cfg.LLM.OllamaURL = srv.URL

		_, err := rag.NewEmbedder(ctx, cfg, logger)
		require.NoError(t, err)
		assert.Equal(t, []string{"nomic-embed-text"}, *pulled)
	})

	t.Run("pulling disabled", func(t *testing.T) {
		srv, pulled := newOllamaServer(t)
		cfg := testConfig(t)
		cfg.LLM.Provider = config.ProviderOllama
		cfg.LLM.Model = "llama3.2"
		cfg.LLM.OllamaURL = srv.URL
		cfg.LLM.PullMissing = false

		_, err := rag.NewModel(ctx, cfg, logger)
		require.ErrorIs(t, err, ollama.ErrModelPullDisabled)
		assert.Empty(t, *pulled)
	})
}

func TestNewChain(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	store := fakestore.New()
	_, err := store.AddDocuments(ctx, []schema.Document{
		schema.NewDocument("Fever is a raised body temperature.", map[string]any{"source": "a.txt"}),
	})
	require.NoError(t, err)

	t.Run("retrieval qa", func(t *testing.T) {
		llm := fake.NewFakeLLM([]string{"An elevated temperature."})
		chain, err := rag.NewChain(store, llm, cfg, slog.New(slog.DiscardHandler))
		require.NoError(t, err)
		assert.IsType(t, chains.RetrievalQA{}, chain)

		answer, err := chain.Call(ctx, "What is fever?")
		require.NoError(t, err)
		assert.Equal(t, "An elevated temperature.", answer)
	})

	t.Run("validating", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.LLM.ValidateContext = true
		chain, err := rag.NewChain(store, fake.NewFakeLLM([]string{"yes", "answer"}), cfg, slog.New(slog.DiscardHandler))
		require.NoError(t, err)
		assert.IsType(t, &chains.ValidatingRetrievalQA{}, chain)
	})
}

func TestNewSplitter(t *testing.T) {
	cfg := testConfig(t)
	splitter, err := rag.NewSplitter(cfg)
	require.NoError(t, err)
	assert.NotNil(t, splitter)
}
