package dashboard_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/medrag/internal/dashboard"
	"github.com/sevigo/medrag/vectorstores"
)

type countStub struct {
	n   int
	err error
}

func (c countStub) CountDocuments(context.Context, ...vectorstores.Option) (int, error) {
	return c.n, c.err
}

func TestDataFiles(t *testing.T) {
	t.Run("missing directory", func(t *testing.T) {
		listing, err := dashboard.DataFiles(filepath.Join(t.TempDir(), "data"))
		require.NoError(t, err)
		assert.True(t, listing.Missing)
		assert.Empty(t, listing.Files)
	})

	t.Run("regular files sorted by name", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "b.pdf"), []byte("12345"), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("1"), 0o644))
		require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))

		listing, err := dashboard.DataFiles(dir)
		require.NoError(t, err)
		assert.False(t, listing.Missing)
		require.Len(t, listing.Files, 2)
		assert.Equal(t, "a.txt", listing.Files[0].Name)
		assert.Equal(t, "b.pdf", listing.Files[1].Name)
		assert.EqualValues(t, 5, listing.Files[1].Size)
	})
}

func TestInspector_Status(t *testing.T) {
	ctx := context.Background()

	t.Run("nothing present", func(t *testing.T) {
		root := t.TempDir()
		in := &dashboard.Inspector{
			DataDir:        filepath.Join(root, "data"),
			VectorStoreDir: filepath.Join(root, "vectorstore"),
		}
		st := in.Status(ctx)
		assert.Equal(t, dashboard.VectorStoreMissing, st.VectorStore)
		assert.Equal(t, dashboard.LLMNoToken, st.LLM)
		assert.False(t, st.DataDirExists)
		assert.False(t, st.ChainReady)
		assert.Equal(t, -1, st.IndexedChunks)
	})

	t.Run("ready", func(t *testing.T) {
		root := t.TempDir()
		data := filepath.Join(root, "data")
		require.NoError(t, os.Mkdir(data, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(data, "gale.pdf"), []byte("x"), 0o644))
		require.NoError(t, os.Mkdir(filepath.Join(root, "vectorstore"), 0o755))

		in := &dashboard.Inspector{
			DataDir:        data,
			VectorStoreDir: filepath.Join(root, "vectorstore"),
			HasToken:       true,
			ChainReady:     func() bool { return true },
			Counter:        countStub{n: 42},
		}
		st := in.Status(ctx)
		assert.Equal(t, dashboard.Status{
			VectorStore:   dashboard.VectorStoreReady,
			LLM:           dashboard.LLMActive,
			ChainReady:    true,
			DataDirExists: true,
			Documents:     1,
			IndexedChunks: 42,
		}, st)
	})

	t.Run("count failure", func(t *testing.T) {
		in := &dashboard.Inspector{Counter: countStub{err: errors.New("down")}}
		assert.Equal(t, -1, in.Status(ctx).IndexedChunks)
	})
}

func TestQuickQueries(t *testing.T) {
	queries := dashboard.QuickQueries()
	require.Len(t, queries, 16)
	assert.Equal(t, "Fever", queries[0].Label)
	assert.Equal(t, "What causes cancer and what are the prevention methods?", queries[4].Question)
	assert.Equal(t, "Eye Care", queries[15].Label)

	queries[0].Label = "changed"
	assert.Equal(t, "Fever", dashboard.QuickQueries()[0].Label)
}
