package parsers

import (
	"fmt"
	"log/slog"

	"github.com/sevigo/medrag/parsers/markdown"
	"github.com/sevigo/medrag/parsers/pdf"
	"github.com/sevigo/medrag/parsers/text"
	"github.com/sevigo/medrag/schema"
)

// RegisterDocumentPlugins returns a registry holding the PDF, plain text and
// Markdown parsers.
func RegisterDocumentPlugins(logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	registry := NewRegistry(logger)

	factories := []struct {
		name    string
		factory func(*slog.Logger) schema.ParserPlugin
	}{
		{"pdf", pdf.NewPDFPlugin},
		{"text", text.NewTextPlugin},
		{"markdown", markdown.NewMarkdownPlugin},
	}

	for _, f := range factories {
		plugin := f.factory(logger.With("parser", f.name))
		if err := registry.Register(plugin); err != nil {
			return registry, fmt.Errorf("failed to register parser %s: %w", f.name, err)
		}
	}

	logger.Info("Document parsers registered", "count", len(registry.All()), "extensions", registry.Extensions())
	return registry, nil
}
