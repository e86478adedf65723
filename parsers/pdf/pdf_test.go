package pdf

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ptesting "github.com/sevigo/medrag/parsers/testing"
)

func TestPDFPlugin_CanHandle(t *testing.T) {
	logger, _ := ptesting.NewTestLogger(t)
	p := NewPDFPlugin(logger)

	assert.Equal(t, "pdf", p.Name())
	assert.True(t, p.CanHandle("data/Gale_Encyclopedia.PDF", nil))
	assert.False(t, p.CanHandle("notes.txt", nil))
}

func TestCleanText(t *testing.T) {
	in := "The ﬁrst  \t sign of\r\n\r\n\r\n\r\ninﬂuenza   is fever. "
	assert.Equal(t, "The first sign of\n\ninfluenza is fever.", cleanText(in))
}

func TestIsHeader(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"Chapter 3 Cardiology", true},
		{"2.1 Risk Factors", true},
		{"Symptoms", true},
		{"ACUTE LEUKEMIA", true},
		{"The patient was admitted with chest pain and shortness of breath.", false},
		{"abc", false},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, isHeader(tt.line))
		})
	}
}

func TestFirstHeader(t *testing.T) {
	text := "some running text from the previous page\nDIABETES MELLITUS\nDiabetes is a disease."
	assert.Equal(t, "DIABETES MELLITUS", firstHeader(text))
	assert.Empty(t, firstHeader("only body text here"))
}

func TestHeuristicTitle(t *testing.T) {
	assert.Equal(t, "The Gale Encyclopedia of Medicine", heuristicTitle("\nThe Gale Encyclopedia of Medicine\nSecond Edition"))
	assert.Empty(t, heuristicTitle("short\nx"))
}

func TestParse_Errors(t *testing.T) {
	logger, _ := ptesting.NewTestLogger(t)
	p := NewPDFPlugin(logger)

	_, err := p.Parse(context.Background(), filepath.Join(t.TempDir(), "missing.pdf"))
	require.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.pdf")
	require.NoError(t, os.WriteFile(bad, []byte("not a pdf"), 0o600))
	_, err = p.Parse(context.Background(), bad)
	require.Error(t, err)

	_, err = p.ExtractMetadata(bad)
	require.Error(t, err)
}
