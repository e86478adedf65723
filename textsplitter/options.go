package textsplitter

const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 50
)

// DefaultSeparators are tried in order, from paragraph breaks down to single
// characters.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

type options struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
}

type Option func(*options)

// WithChunkSize sets the maximum chunk length in characters.
func WithChunkSize(size int) Option {
	return func(o *options) {
		o.chunkSize = size
	}
}

// WithChunkOverlap sets how many characters of context consecutive chunks may share.
func WithChunkOverlap(overlap int) Option {
	return func(o *options) {
		o.chunkOverlap = overlap
	}
}

// WithSeparators replaces DefaultSeparators.
func WithSeparators(separators []string) Option {
	return func(o *options) {
		if len(separators) > 0 {
			o.separators = separators
		}
	}
}
