package text

import (
	"io/fs"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"github.com/sevigo/medrag/schema"
)

// TextPlugin implements schema.ParserPlugin for plain text files
type TextPlugin struct {
	logger *slog.Logger
}

var _ schema.ParserPlugin = (*TextPlugin)(nil)

func NewTextPlugin(logger *slog.Logger) schema.ParserPlugin {
	if logger == nil {
		logger = slog.Default()
	}
	return &TextPlugin{
		logger: logger,
	}
}

func (p *TextPlugin) Name() string {
	return "text"
}

func (p *TextPlugin) Extensions() []string {
	return []string{".txt", ".text"}
}

// CanHandle accepts known extensions and a few extension-less names like README.
func (p *TextPlugin) CanHandle(path string, info fs.FileInfo) bool {
	if info != nil && info.IsDir() {
		return false
	}

	ext := strings.ToLower(filepath.Ext(path))
	if slices.Contains(p.Extensions(), ext) {
		return true
	}
	if ext == "" {
		base := strings.ToLower(filepath.Base(path))
		return slices.Contains([]string{"readme", "notes", "license"}, base)
	}
	return false
}
