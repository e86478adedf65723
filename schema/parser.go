package schema

import (
	"context"
	"io/fs"
)

// ParserPlugin reads one document format into plain-text sections.
type ParserPlugin interface {
	Name() string
	Extensions() []string
	CanHandle(path string, info fs.FileInfo) bool
	Parse(ctx context.Context, path string) ([]Section, error)
	ExtractMetadata(path string) (FileMetadata, error)
}

// Section is a contiguous run of text from a source file. Page is 1-based and
// zero for formats without pages. Title is the nearest heading, if any.
type Section struct {
	Content string `json:"content"`
	Page    int    `json:"page"`
	Title   string `json:"title"`
}

type FileMetadata struct {
	FilePath   string            `json:"file_path"`
	Format     string            `json:"format"`
	Title      string            `json:"title"`
	Tags       []string          `json:"tags,omitempty"`
	Properties map[string]string `json:"properties"`
}
