package embeddings_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/medrag/embeddings"
)

type recordingEmbedder struct {
	mu      sync.Mutex
	batches [][]string
	short   bool
	err     error
}

func (r *recordingEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	r.mu.Lock()
	r.batches = append(r.batches, texts)
	r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		out = append(out, []float32{float32(len(t))})
	}
	if r.short {
		out = out[:len(out)-1]
	}
	return out, nil
}

func (r *recordingEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	r.mu.Lock()
	r.batches = append(r.batches, []string{text})
	r.mu.Unlock()
	return []float32{float32(len(text))}, nil
}

func (r *recordingEmbedder) GetDimension(context.Context) (int, error) { return 1, nil }

func TestEmbedDocuments_BatchesAndKeepsOrder(t *testing.T) {
	client := &recordingEmbedder{}
	e, err := embeddings.NewEmbedder(client, embeddings.WithBatchSize(2), embeddings.WithMaxConcurrent(2))
	require.NoError(t, err)

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	vectors, err := e.EmbedDocuments(context.Background(), texts)
	require.NoError(t, err)

	require.Len(t, vectors, len(texts))
	for i, text := range texts {
		assert.Equal(t, float32(len(text)), vectors[i][0])
	}
	assert.Len(t, client.batches, 3)
}

func TestEmbedDocuments_StripsNewLines(t *testing.T) {
	client := &recordingEmbedder{}
	e, err := embeddings.NewEmbedder(client)
	require.NoError(t, err)

	_, err = e.EmbedDocuments(context.Background(), []string{"line one\nline two"})
	require.NoError(t, err)
	assert.False(t, strings.Contains(client.batches[0][0], "\n"))

	keep, err := embeddings.NewEmbedder(&recordingEmbedder{}, embeddings.WithStripNewLines(false))
	require.NoError(t, err)
	vectors, err := keep.EmbedDocuments(context.Background(), []string{"a\nb"})
	require.NoError(t, err)
	assert.Equal(t, float32(3), vectors[0][0])
}

func TestEmbedDocuments_Errors(t *testing.T) {
	t.Run("provider error", func(t *testing.T) {
		boom := errors.New("rate limited")
		e, err := embeddings.NewEmbedder(&recordingEmbedder{err: boom})
		require.NoError(t, err)

		_, err = e.EmbedDocuments(context.Background(), []string{"x"})
		require.ErrorIs(t, err, boom)
	})

	t.Run("count mismatch", func(t *testing.T) {
		e, err := embeddings.NewEmbedder(&recordingEmbedder{short: true})
		require.NoError(t, err)

		_, err = e.EmbedDocuments(context.Background(), []string{"x", "y"})
		require.ErrorIs(t, err, embeddings.ErrCountMismatch)
	})

	t.Run("empty input", func(t *testing.T) {
		e, err := embeddings.NewEmbedder(&recordingEmbedder{})
		require.NoError(t, err)

		vectors, err := e.EmbedDocuments(context.Background(), nil)
		require.NoError(t, err)
		assert.Empty(t, vectors)
	})
}

func TestEmbedQuery(t *testing.T) {
	e, err := embeddings.NewEmbedder(&recordingEmbedder{})
	require.NoError(t, err)

	_, err = e.EmbedQuery(context.Background(), "   ")
	require.ErrorIs(t, err, embeddings.ErrEmptyText)

	v, err := e.EmbedQuery(context.Background(), "fever")
	require.NoError(t, err)
	assert.Equal(t, []float32{5}, v)
}

func TestNewEmbedder_RejectsDoubleWrap(t *testing.T) {
	inner, err := embeddings.NewEmbedder(&recordingEmbedder{})
	require.NoError(t, err)

	_, err = embeddings.NewEmbedder(inner)
	require.ErrorIs(t, err, embeddings.ErrAlreadyWrapped)
}
