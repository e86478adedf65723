package documentloaders_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/medrag/documentloaders"
	"github.com/sevigo/medrag/parsers"
)

func newLoader(t *testing.T, root string) *documentloaders.Directory {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry, err := parsers.RegisterDocumentPlugins(logger)
	require.NoError(t, err)
	return documentloaders.NewDirectory(root, registry, documentloaders.WithLogger(logger))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestDirectory_Load(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "fever.txt"), "FEVER\nA raised body temperature.")
	writeFile(t, filepath.Join(root, "guides", "asthma.md"), "# Asthma\n\nInflamed airways.\n\n# Treatment\n\nInhalers.\n")
	writeFile(t, filepath.Join(root, ".hidden", "secret.txt"), "should not load")
	writeFile(t, filepath.Join(root, "scan.png"), "\x89PNG")
	writeFile(t, filepath.Join(root, "data.csv"), "a,b\n1,2")
	writeFile(t, filepath.Join(root, "broken.pdf"), "not really a pdf")

	docs, err := newLoader(t, root).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 3)

	bySection := make(map[string]map[string]any)
	for _, d := range docs {
		bySection[d.Metadata["section"].(string)] = d.Metadata
	}

	fever := bySection["FEVER"]
	require.NotNil(t, fever)
	assert.Equal(t, "fever.txt", fever["source"])
	assert.Equal(t, "text", fever["format"])
	assert.NotContains(t, fever, "page")

	treatment := bySection["Treatment"]
	require.NotNil(t, treatment)
	assert.Equal(t, "guides/asthma.md", treatment["source"])
	assert.Equal(t, "markdown", treatment["format"])
	assert.NotEmpty(t, treatment["mod_time"])
}

func TestDirectory_LoadMissingRoot(t *testing.T) {
	_, err := newLoader(t, filepath.Join(t.TempDir(), "nope")).Load(context.Background())
	require.Error(t, err)
}

func TestDirectory_LoadCanceled(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), "text")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newLoader(t, root).Load(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestDirectory_LoadFile(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "sub", "anemia.txt")
	writeFile(t, path, "Anemia is a lack of red blood cells.")

	loader := newLoader(t, root)
	docs, err := loader.LoadFile(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "sub/anemia.txt", docs[0].Metadata["source"])
	assert.Equal(t, "Anemia", docs[0].Metadata["section"])
	assert.Equal(t, "sub/anemia.txt", loader.Source(path))

	unsupported := filepath.Join(root, "table.csv")
	writeFile(t, unsupported, "a,b")
	_, err = loader.LoadFile(context.Background(), unsupported)
	require.ErrorIs(t, err, documentloaders.ErrUnsupportedFile)
}
