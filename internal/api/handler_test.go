package api_test

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/medrag/chains"
	"github.com/sevigo/medrag/internal/api"
	"github.com/sevigo/medrag/internal/chat"
	"github.com/sevigo/medrag/internal/dashboard"
	"github.com/sevigo/medrag/internal/metrics"
	"github.com/sevigo/medrag/internal/store"
	"github.com/sevigo/medrag/llms/fake"
	"github.com/sevigo/medrag/schema"
	fakeretriever "github.com/sevigo/medrag/schema/fake"
)

type fixture struct {
	server *httptest.Server
	llm    *fake.LLM
	root   string
}

func newFixture(t *testing.T, withChain bool) *fixture {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "data"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "data", "gale.pdf"), []byte("%PDF"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "logs"), 0o755))

	llm := fake.NewFakeLLM([]string{"Cancer is caused by genetic mutations."})
	var chain chains.Chain
	if withChain {
		retriever := fakeretriever.NewRetriever()
		retriever.DocsToReturn = []schema.Document{
			schema.NewDocument("Cancer results from DNA damage.", map[string]any{"source": "gale.pdf", "page": 3}),
		}
		chain = chains.NewRetrievalQA(retriever, llm)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := chat.NewService(store.NewMemory(), chain, chat.WithLogger(logger))
	h, err := api.NewHandler(api.Deps{
		Chat: svc,
		Inspector: &dashboard.Inspector{
			DataDir:        filepath.Join(root, "data"),
			VectorStoreDir: filepath.Join(root, "vectorstore"),
			ChainReady:     svc.Ready,
		},
		Metrics:     metrics.New(prometheus.NewRegistry()),
		LogDir:      filepath.Join(root, "logs"),
		AssetsDir:   root,
		CORSOrigins: []string{"*"},
		Logger:      logger,
	})
	require.NoError(t, err)

	srv := httptest.NewServer(h.Router())
	t.Cleanup(srv.Close)
	return &fixture{server: srv, llm: llm, root: root}
}

func postJSON(t *testing.T, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestQuery(t *testing.T) {
	f := newFixture(t, true)

	t.Run("answer", func(t *testing.T) {
		resp, body := postJSON(t, f.server.URL+"/query", `{"question":"What causes cancer?"}`)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "Cancer is caused by genetic mutations.", body["answer"])
		sources, ok := body["sources"].([]any)
		require.True(t, ok, "sources: %v", body["sources"])
		assert.NotEmpty(t, sources)
	})

	for name, payload := range map[string]string{
		"missing":    `{}`,
		"empty":      `{"question":"   "}`,
		"not string": `{"question":42}`,
		"malformed":  `{"question":`,
	} {
		t.Run(name, func(t *testing.T) {
			resp, body := postJSON(t, f.server.URL+"/query", payload)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, map[string]any{"error": "Question is required"}, body)
		})
	}

	t.Run("chain error", func(t *testing.T) {
		f.llm.SetError(errors.New("410 Client Error: Gone"))
		defer f.llm.SetError(nil)

		resp, body := postJSON(t, f.server.URL+"/query", `{"question":"What causes cancer?"}`)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.Equal(t, "Error generating response: 410 Client Error: Gone", body["error"])
	})
}

func TestQuery_ChainNotInitialized(t *testing.T) {
	f := newFixture(t, false)
	resp, body := postJSON(t, f.server.URL+"/query", `{"question":"hello"}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "QA Chain not initialized", body["error"])
}

func TestSessionsAPI(t *testing.T) {
	f := newFixture(t, true)

	resp, created := postJSON(t, f.server.URL+"/api/sessions", ``)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id, _ := created["id"].(string)
	require.NotEmpty(t, id)

	resp, answer := postJSON(t, f.server.URL+"/api/sessions/"+id+"/messages", `{"question":"What causes cancer?"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Cancer is caused by genetic mutations.", answer["answer"])
	assert.NotEmpty(t, answer["sources"])

	get, err := http.Get(f.server.URL + "/api/sessions/" + id)
	require.NoError(t, err)
	var session struct {
		Messages []map[string]any `json:"messages"`
		Metrics  map[string]any   `json:"metrics"`
	}
	require.NoError(t, json.NewDecoder(get.Body).Decode(&session))
	get.Body.Close()
	assert.Len(t, session.Messages, 2)
	assert.EqualValues(t, 1, session.Metrics["questions"])
	assert.EqualValues(t, 1, session.Metrics["exchanges"])

	export, err := http.Get(f.server.URL + "/api/sessions/" + id + "/export")
	require.NoError(t, err)
	content, err := io.ReadAll(export.Body)
	export.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, export.Header.Get("Content-Disposition"), "medical_chat_")
	assert.True(t, strings.HasPrefix(string(content), "MEDICAL RAG CHATBOT - CONVERSATION HISTORY\n"))
	assert.Contains(t, string(content), "USER:\nWhat causes cancer?\n\n")

	req, err := http.NewRequest(http.MethodDelete, f.server.URL+"/api/sessions/"+id, nil)
	require.NoError(t, err)
	del, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	del.Body.Close()
	assert.Equal(t, http.StatusNoContent, del.StatusCode)

	missing, err := http.Get(f.server.URL + "/api/sessions/nope")
	require.NoError(t, err)
	missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestChatPage(t *testing.T) {
	f := newFixture(t, true)
	jar := newJar(t)
	client := &http.Client{Jar: jar}

	resp, err := client.Get(f.server.URL + "/")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = client.PostForm(f.server.URL+"/", url.Values{"prompt": {"what causes cancer?"}})
	require.NoError(t, err)
	page, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(page), "Cancer is caused by genetic mutations.")
	assert.NotContains(t, string(page), "Error :")

	f.llm.SetError(errors.New("410 Client Error: Gone"))
	resp, err = client.PostForm(f.server.URL+"/", url.Values{"prompt": {"and fever?"}})
	require.NoError(t, err)
	page, err = io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(page), "Error generating response: 410 Client Error: Gone")
	assert.Contains(t, string(page), chat.TroubleshootingTips[0])

	resp, err = client.Get(f.server.URL + "/export")
	require.NoError(t, err)
	transcript, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(transcript), "USER:\n"))
	assert.Equal(t, 1, strings.Count(string(transcript), "AI ASSISTANT:\n"))

	resp, err = client.PostForm(f.server.URL+"/clear", nil)
	require.NoError(t, err)
	page, err = io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(page), "Welcome!")
}

func TestDashboardAPI(t *testing.T) {
	f := newFixture(t, true)

	resp, err := http.Get(f.server.URL + "/api/status")
	require.NoError(t, err)
	var status dashboard.Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	resp.Body.Close()
	assert.Equal(t, dashboard.VectorStoreMissing, status.VectorStore)
	assert.Equal(t, dashboard.LLMNoToken, status.LLM)
	assert.True(t, status.ChainReady)
	assert.Equal(t, 1, status.Documents)

	resp, err = http.Get(f.server.URL + "/api/quick-queries")
	require.NoError(t, err)
	var queries []dashboard.QuickQuery
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&queries))
	resp.Body.Close()
	assert.Len(t, queries, 16)

	resp, err = http.Get(f.server.URL + "/api/data")
	require.NoError(t, err)
	var listing dashboard.Listing
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listing))
	resp.Body.Close()
	require.Len(t, listing.Files, 1)
	assert.Equal(t, "gale.pdf", listing.Files[0].Name)

	resp, err = http.Get(f.server.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(f.server.URL + "/images/banner.png")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(f.server.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), "medrag_http_requests_total")
}

func TestLogsAPI(t *testing.T) {
	f := newFixture(t, true)
	logFile := filepath.Join(f.root, "logs", "log_2024-03-05.log")
	require.NoError(t, os.WriteFile(logFile, []byte(
		"2024-03-05 10:00:00,000000 - INFO - Loading documents\n"+
			"2024-03-05 10:00:01,000000 - ERROR - Failed to create QA chain\n"), 0o644))

	resp, err := http.Get(f.server.URL + "/api/logs?level=ERROR")
	require.NoError(t, err)
	var logs struct {
		Files  []map[string]any `json:"files"`
		Result struct {
			File   string         `json:"file"`
			Counts map[string]int `json:"counts"`
			Lines  []string       `json:"lines"`
		} `json:"result"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&logs))
	resp.Body.Close()
	require.Len(t, logs.Files, 1)
	assert.Equal(t, "log_2024-03-05.log", logs.Result.File)
	assert.Equal(t, map[string]int{"info": 1, "error": 1, "warning": 0}, logs.Result.Counts)
	require.Len(t, logs.Result.Lines, 1)
	assert.Contains(t, logs.Result.Lines[0], "Failed to create QA chain")

	resp, err = http.Get(f.server.URL + "/api/logs/log_2024-03-05.log")
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Loading documents")

	resp, err = http.Get(f.server.URL + "/api/logs?file=..%2Fsecret.log")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCORS(t *testing.T) {
	f := newFixture(t, true)
	req, err := http.NewRequest(http.MethodOptions, f.server.URL+"/query", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://example.com")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://example.com", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Credentials"))
}
