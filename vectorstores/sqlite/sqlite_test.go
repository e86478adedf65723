package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/medrag/embeddings/fake"
	"github.com/sevigo/medrag/schema"
	"github.com/sevigo/medrag/vectorstores"
	"github.com/sevigo/medrag/vectorstores/sqlite"
)

func newStore(t *testing.T) (*sqlite.Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vectorstore", "index.db")
	s, err := sqlite.New(context.Background(), sqlite.WithPath(path), sqlite.WithEmbedder(fake.NewEmbedder(64)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func seed(t *testing.T, s *sqlite.Store) {
	t.Helper()
	_, err := s.AddDocuments(context.Background(), []schema.Document{
		schema.NewDocument("Heart attack symptoms include chest pain and shortness of breath.", map[string]any{"source": "data/heart.pdf", "page": 1}),
		schema.NewDocument("Diabetes is a metabolic disease with high blood sugar.", map[string]any{"source": "data/diabetes.pdf", "page": 4}),
		schema.NewDocument("Migraine headaches often cause throbbing pain.", map[string]any{"source": "data/neuro.pdf", "page": 2}),
	})
	require.NoError(t, err)
}

func TestNew_RequiresEmbedder(t *testing.T) {
	_, err := sqlite.New(context.Background(), sqlite.WithPath(":memory:"))
	require.ErrorIs(t, err, vectorstores.ErrMissingEmbedder)
}

func TestSimilaritySearch(t *testing.T) {
	s, path := newStore(t)
	seed(t, s)
	assert.True(t, sqlite.Exists(path))

	t.Run("ranks the closest document first", func(t *testing.T) {
		results, err := s.SimilaritySearchWithScores(context.Background(), "heart attack symptoms", 3)
		require.NoError(t, err)
		require.Len(t, results, 3)

		assert.Equal(t, "data/heart.pdf", results[0].Document.Source())
		assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
		assert.GreaterOrEqual(t, results[1].Score, results[2].Score)
	})

	t.Run("limits to k", func(t *testing.T) {
		docs, err := s.SimilaritySearch(context.Background(), "pain", 2)
		require.NoError(t, err)
		assert.Len(t, docs, 2)
	})

	t.Run("filters on metadata", func(t *testing.T) {
		docs, err := s.SimilaritySearch(context.Background(), "pain", 3, vectorstores.WithFilter("source", "data/neuro.pdf"))
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, float64(2), docs[0].Metadata["page"])
	})

	t.Run("score threshold", func(t *testing.T) {
		docs, err := s.SimilaritySearch(context.Background(), "heart attack symptoms", 3, vectorstores.WithScoreThreshold(0.99))
		require.NoError(t, err)
		assert.Empty(t, docs)
	})

	t.Run("unknown collection", func(t *testing.T) {
		_, err := s.SimilaritySearch(context.Background(), "pain", 3, vectorstores.WithNameSpace("other"))
		require.ErrorIs(t, err, vectorstores.ErrCollectionNotFound)
	})

	t.Run("invalid k", func(t *testing.T) {
		_, err := s.SimilaritySearch(context.Background(), "pain", 0)
		require.ErrorIs(t, err, vectorstores.ErrInvalidNumDocs)
	})
}

func TestDeleteAndCount(t *testing.T) {
	s, _ := newStore(t)
	seed(t, s)
	ctx := context.Background()

	n, err := s.CountDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.NoError(t, s.DeleteDocumentsByFilter(ctx, map[string]any{"source": "data/heart.pdf"}))

	n, err = s.CountDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	info, err := s.CollectionInfo(ctx, sqlite.DefaultCollectionName)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), info.PointsCount)
	assert.Equal(t, uint64(64), info.VectorSize)

	names, err := s.ListCollections(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{sqlite.DefaultCollectionName}, names)

	require.NoError(t, s.DeleteCollection(ctx, sqlite.DefaultCollectionName))
	require.ErrorIs(t, s.DeleteCollection(ctx, sqlite.DefaultCollectionName), vectorstores.ErrCollectionNotFound)
}

func TestMetadataValues(t *testing.T) {
	s, _ := newStore(t)
	seed(t, s)
	ctx := context.Background()

	values, err := s.MetadataValues(ctx, "source")
	require.NoError(t, err)
	assert.Equal(t, []string{"data/diabetes.pdf", "data/heart.pdf", "data/neuro.pdf"}, values)

	values, err = s.MetadataValues(ctx, "page")
	require.NoError(t, err)
	assert.Empty(t, values)
}

func TestDimensionMismatch(t *testing.T) {
	s, _ := newStore(t)
	seed(t, s)

	_, err := s.AddDocuments(context.Background(),
		[]schema.Document{schema.NewDocument("short vector", nil)},
		vectorstores.WithEmbedder(fake.NewEmbedder(8)),
	)
	require.ErrorIs(t, err, sqlite.ErrDimensionMismatch)
}

func TestPersistsAcrossReopen(t *testing.T) {
	s, path := newStore(t)
	seed(t, s)
	require.NoError(t, s.Close())

	reopened, err := sqlite.New(context.Background(), sqlite.WithPath(path), sqlite.WithEmbedder(fake.NewEmbedder(64)))
	require.NoError(t, err)
	defer reopened.Close()

	n, err := reopened.CountDocuments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
