package textsplitter_test

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/medrag/schema"
	"github.com/sevigo/medrag/textsplitter"
)

func TestNewRecursiveCharacter_Validation(t *testing.T) {
	tests := []struct {
		name    string
		opts    []textsplitter.Option
		wantErr bool
	}{
		{name: "defaults", opts: nil},
		{name: "zero size", opts: []textsplitter.Option{textsplitter.WithChunkSize(0)}, wantErr: true},
		{name: "overlap equals size", opts: []textsplitter.Option{textsplitter.WithChunkSize(10), textsplitter.WithChunkOverlap(10)}, wantErr: true},
		{name: "negative overlap", opts: []textsplitter.Option{textsplitter.WithChunkOverlap(-1)}, wantErr: true},
		{name: "no overlap", opts: []textsplitter.Option{textsplitter.WithChunkSize(10), textsplitter.WithChunkOverlap(0)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := textsplitter.NewRecursiveCharacter(tt.opts...)
			if tt.wantErr {
				require.ErrorIs(t, err, textsplitter.ErrInvalidChunkSize)
				assert.Nil(t, s)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, s)
		})
	}
}

func TestSplitText_Overlap(t *testing.T) {
	s, err := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(8),
		textsplitter.WithChunkOverlap(4),
	)
	require.NoError(t, err)

	chunks, err := s.SplitText(context.Background(), "aaa bbb ccc ddd")
	require.NoError(t, err)
	assert.Equal(t, []string{"aaa bbb", "bbb ccc", "ccc ddd"}, chunks)
}

func TestSplitText_PrefersParagraphs(t *testing.T) {
	s, err := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(30),
		textsplitter.WithChunkOverlap(0),
	)
	require.NoError(t, err)

	text := "Diabetes is a chronic disease.\n\nInsulin lowers blood sugar."
	chunks, err := s.SplitText(context.Background(), text)
	require.NoError(t, err)
	assert.Equal(t, []string{"Diabetes is a chronic disease.", "Insulin lowers blood sugar."}, chunks)
}

func TestSplitText_ShortTextSingleChunk(t *testing.T) {
	s, err := textsplitter.NewRecursiveCharacter()
	require.NoError(t, err)

	chunks, err := s.SplitText(context.Background(), "  Fever is a symptom.  ")
	require.NoError(t, err)
	assert.Equal(t, []string{"Fever is a symptom."}, chunks)

	chunks, err = s.SplitText(context.Background(), "   \n\n  ")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestSplitText_RespectsChunkSize(t *testing.T) {
	s, err := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(50),
		textsplitter.WithChunkOverlap(10),
	)
	require.NoError(t, err)

	text := strings.Repeat("Hypertension increases the risk of stroke. ", 20) +
		"\n\n" + strings.Repeat("x", 120)
	chunks, err := s.SplitText(context.Background(), text)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 50, c)
		assert.NotEmpty(t, c)
	}
}

func TestSplitText_CountsRunes(t *testing.T) {
	s, err := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(5),
		textsplitter.WithChunkOverlap(0),
	)
	require.NoError(t, err)

	chunks, err := s.SplitText(context.Background(), "ääääääääää")
	require.NoError(t, err)
	assert.Equal(t, []string{"äääää", "äääää"}, chunks)
}

func TestSplitText_CanceledContext(t *testing.T) {
	s, err := textsplitter.NewRecursiveCharacter()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.SplitText(ctx, "text")
	require.ErrorIs(t, err, context.Canceled)
}

func TestSplitDocuments_Metadata(t *testing.T) {
	s, err := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(8),
		textsplitter.WithChunkOverlap(4),
	)
	require.NoError(t, err)

	docs := []schema.Document{
		schema.NewDocument("aaa bbb ccc ddd", map[string]any{"source": "a.pdf", "page": 2}),
		schema.NewDocument("short", map[string]any{"source": "b.txt"}),
	}
	out, err := s.SplitDocuments(context.Background(), docs)
	require.NoError(t, err)
	require.Len(t, out, 4)

	for i, doc := range out[:3] {
		assert.Equal(t, "a.pdf", doc.Metadata["source"])
		assert.Equal(t, 2, doc.Metadata["page"])
		assert.Equal(t, i, doc.Metadata["chunk_index"])
		assert.Equal(t, 3, doc.Metadata["total_chunks"])
	}
	assert.Equal(t, "short", out[3].PageContent)
	assert.Equal(t, 0, out[3].Metadata["chunk_index"])
	assert.Equal(t, 1, out[3].Metadata["total_chunks"])

	// source metadata must not be shared with the chunks
	out[0].Metadata["source"] = "changed"
	assert.Equal(t, "a.pdf", docs[0].Metadata["source"])
}
