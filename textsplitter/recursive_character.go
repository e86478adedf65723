package textsplitter

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"unicode/utf8"

	"github.com/sevigo/medrag/schema"
)

// RecursiveCharacter splits on the coarsest separator present in the text and
// recurses with finer separators into pieces that are still too long. Small
// pieces are merged back up to the chunk size, and each new chunk repeats
// trailing pieces of the previous one up to the overlap. Lengths are counted
// in runes.
type RecursiveCharacter struct {
	opts options
}

var _ TextSplitter = (*RecursiveCharacter)(nil)

func NewRecursiveCharacter(opts ...Option) (*RecursiveCharacter, error) {
	o := options{
		chunkSize:    DefaultChunkSize,
		chunkOverlap: DefaultChunkOverlap,
		separators:   DefaultSeparators,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if o.chunkSize <= 0 || o.chunkOverlap < 0 || o.chunkOverlap >= o.chunkSize {
		return nil, fmt.Errorf("%w: size=%d overlap=%d", ErrInvalidChunkSize, o.chunkSize, o.chunkOverlap)
	}
	return &RecursiveCharacter{opts: o}, nil
}

func (s *RecursiveCharacter) SplitText(ctx context.Context, text string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.split(text, s.opts.separators), nil
}

// SplitDocuments splits every document and copies its metadata onto each
// chunk together with chunk_index and total_chunks.
func (s *RecursiveCharacter) SplitDocuments(ctx context.Context, docs []schema.Document) ([]schema.Document, error) {
	out := make([]schema.Document, 0, len(docs))
	for _, doc := range docs {
		chunks, err := s.SplitText(ctx, doc.PageContent)
		if err != nil {
			return nil, err
		}
		for i, chunk := range chunks {
			meta := make(map[string]any, len(doc.Metadata)+2)
			maps.Copy(meta, doc.Metadata)
			meta["chunk_index"] = i
			meta["total_chunks"] = len(chunks)
			out = append(out, schema.NewDocument(chunk, meta))
		}
	}
	return out, nil
}

func (s *RecursiveCharacter) split(text string, separators []string) []string {
	separator := separators[len(separators)-1]
	var next []string
	for i, sep := range separators {
		if sep == "" {
			separator = sep
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			next = separators[i+1:]
			break
		}
	}

	var final, good []string
	for _, piece := range splitKeepingSeparator(text, separator) {
		if runeLen(piece) < s.opts.chunkSize {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			final = append(final, s.merge(good)...)
			good = nil
		}
		if len(next) == 0 {
			if trimmed := strings.TrimSpace(piece); trimmed != "" {
				final = append(final, trimmed)
			}
		} else {
			final = append(final, s.split(piece, next)...)
		}
	}
	if len(good) > 0 {
		final = append(final, s.merge(good)...)
	}
	return final
}

// merge joins consecutive pieces into chunks. Pieces already carry their
// separator, so they are concatenated directly.
func (s *RecursiveCharacter) merge(pieces []string) []string {
	var chunks, current []string
	total := 0

	for _, piece := range pieces {
		n := runeLen(piece)
		if total+n > s.opts.chunkSize && len(current) > 0 {
			if chunk := join(current); chunk != "" {
				chunks = append(chunks, chunk)
			}
			for len(current) > 0 && (total > s.opts.chunkOverlap || total+n > s.opts.chunkSize) {
				total -= runeLen(current[0])
				current = current[1:]
			}
		}
		current = append(current, piece)
		total += n
	}
	if chunk := join(current); chunk != "" {
		chunks = append(chunks, chunk)
	}
	return chunks
}

// splitKeepingSeparator splits text on sep and glues each separator to the
// start of the piece following it. An empty sep splits into runes.
func splitKeepingSeparator(text, sep string) []string {
	if sep == "" {
		out := make([]string, 0, utf8.RuneCountInString(text))
		for _, r := range text {
			out = append(out, string(r))
		}
		return out
	}

	parts := strings.Split(text, sep)
	out := make([]string, 0, len(parts))
	if parts[0] != "" {
		out = append(out, parts[0])
	}
	for _, p := range parts[1:] {
		out = append(out, sep+p)
	}
	return out
}

func join(pieces []string) string {
	return strings.TrimSpace(strings.Join(pieces, ""))
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
