package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/medrag/internal/chat"
	"github.com/sevigo/medrag/internal/metrics"
)

var _ chat.Observer = (*metrics.Recorder)(nil)

func TestRecorder_QAAndIngest(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := metrics.New(reg)

	rec.ObserveQA(chat.OutcomeSuccess, time.Second)
	rec.ObserveQA(chat.OutcomeSuccess, time.Second)
	rec.ObserveQA(chat.OutcomeError, time.Second)
	rec.AddIngestedChunks(12)
	rec.AddIngestedChunks(-1)

	expected := `
# HELP medrag_qa_requests_total Answered questions by outcome.
# TYPE medrag_qa_requests_total counter
medrag_qa_requests_total{outcome="error"} 1
medrag_qa_requests_total{outcome="success"} 2
# HELP medrag_ingested_chunks_total Chunks written to the vector store.
# TYPE medrag_ingested_chunks_total counter
medrag_ingested_chunks_total 12
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"medrag_qa_requests_total", "medrag_ingested_chunks_total"))
}

func TestRecorder_Middleware(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := metrics.New(reg)

	r := chi.NewRouter()
	r.Use(rec.Middleware)
	r.Get("/api/sessions/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Method(http.MethodGet, "/metrics", rec.Handler())

	for _, id := range []string{"a", "b"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/sessions/"+id, nil))
		assert.Equal(t, http.StatusNotFound, rr.Code)
	}

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `medrag_http_requests_total{code="404",method="GET",route="/api/sessions/{id}"} 2`)
}
