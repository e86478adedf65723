package fake_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/medrag/schema"
	"github.com/sevigo/medrag/vectorstores/fake"
)

func TestStore(t *testing.T) {
	ctx := context.Background()
	s := fake.New()

	ids, err := s.AddDocuments(ctx, []schema.Document{
		schema.NewDocument("a", map[string]any{"source": "x.pdf"}),
		schema.NewDocument("b", map[string]any{"source": "y.pdf"}),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"fake-id-0", "fake-id-1"}, ids)

	n, err := s.CountDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	values, err := s.MetadataValues(ctx, "source")
	require.NoError(t, err)
	assert.Equal(t, []string{"x.pdf", "y.pdf"}, values)

	require.NoError(t, s.DeleteDocumentsByFilter(ctx, map[string]any{"source": "x.pdf"}))
	docs := s.Docs()
	require.Len(t, docs, 1)
	assert.Equal(t, "b", docs[0].PageContent)

	boom := errors.New("index unavailable")
	s.SetError(boom)
	_, err = s.SimilaritySearch(ctx, "q", 3)
	require.ErrorIs(t, err, boom)
}
