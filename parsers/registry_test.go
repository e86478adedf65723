package parsers_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/medrag/parsers"
	ptesting "github.com/sevigo/medrag/parsers/testing"
	"github.com/sevigo/medrag/parsers/text"
)

func TestRegisterDocumentPlugins(t *testing.T) {
	logger, buf := ptesting.NewTestLogger(t)

	registry, err := parsers.RegisterDocumentPlugins(logger)
	require.NoError(t, err)

	names := make([]string, 0)
	for _, p := range registry.All() {
		names = append(names, p.Name())
	}
	assert.Equal(t, []string{"markdown", "pdf", "text"}, names)
	assert.Equal(t, []string{".markdown", ".md", ".pdf", ".text", ".txt"}, registry.Extensions())
	assert.Contains(t, buf.String(), "Document parsers registered")
}

func TestRegistry_Lookup(t *testing.T) {
	logger, _ := ptesting.NewTestLogger(t)
	registry, err := parsers.RegisterDocumentPlugins(logger)
	require.NoError(t, err)

	tests := []struct {
		name    string
		path    string
		want    string
		wantErr bool
	}{
		{name: "pdf upper case", path: "data/Book.PDF", want: "pdf"},
		{name: "markdown", path: "notes/guide.md", want: "markdown"},
		{name: "extensionless readme", path: "data/README", want: "text"},
		{name: "unsupported", path: "data/image.png", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := registry.ForFile(tt.path, nil)
			if tt.wantErr {
				require.ErrorIs(t, err, parsers.ErrPluginNotFound)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Name())
		})
	}

	p, err := registry.ForExtension("txt")
	require.NoError(t, err)
	assert.Equal(t, "text", p.Name())

	_, err = registry.Get("csv")
	require.ErrorIs(t, err, parsers.ErrPluginNotFound)
}

func TestRegistry_DuplicateAndNil(t *testing.T) {
	logger, _ := ptesting.NewTestLogger(t)
	registry := parsers.NewRegistry(logger)

	require.NoError(t, registry.Register(text.NewTextPlugin(logger)))
	require.Error(t, registry.Register(text.NewTextPlugin(logger)))
	require.Error(t, registry.Register(nil))
}
