package schema

import (
	"context"
	"fmt"
)

// Document is a piece of text with the metadata it was loaded with.
type Document struct {
	PageContent string
	Metadata    map[string]any
}

func (d Document) String() string {
	return d.PageContent
}

// NewDocument creates a document, allocating metadata when nil.
func NewDocument(content string, metadata map[string]any) Document {
	if metadata == nil {
		metadata = make(map[string]any)
	}
	return Document{
		PageContent: content,
		Metadata:    metadata,
	}
}

// Source returns the "source" metadata value, or an empty string.
func (d Document) Source() string {
	if s, ok := d.Metadata["source"].(string); ok {
		return s
	}
	return ""
}

type ModelDetails struct {
	Family        string
	ParameterSize string
	Quantization  string
	Dimension     int64
}

func (md ModelDetails) String() string {
	return fmt.Sprintf("%s (%s, %s, dim: %d)",
		md.Family, md.ParameterSize, md.Quantization, md.Dimension)
}

// Retriever fetches the documents relevant to a query.
type Retriever interface {
	GetRelevantDocuments(ctx context.Context, query string) ([]Document, error)
}

type CollectionInfo struct {
	Name           string `json:"name"`
	PointsCount    uint64 `json:"points_count"`
	VectorSize     uint64 `json:"vector_size"`
	VectorDistance string `json:"vector_distance"`
}
