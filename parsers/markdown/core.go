package markdown

import (
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"

	"github.com/sevigo/medrag/schema"
)

const frontMatterSeparator = "---"

// MarkdownPlugin implements schema.ParserPlugin for Markdown files using goldmark
type MarkdownPlugin struct {
	logger   *slog.Logger
	markdown goldmark.Markdown
}

var _ schema.ParserPlugin = (*MarkdownPlugin)(nil)

func NewMarkdownPlugin(logger *slog.Logger) schema.ParserPlugin {
	if logger == nil {
		logger = slog.Default()
	}
	return &MarkdownPlugin{
		logger: logger,
		markdown: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		),
	}
}

func (p *MarkdownPlugin) Name() string {
	return "markdown"
}

func (p *MarkdownPlugin) Extensions() []string {
	return []string{".md", ".markdown"}
}

func (p *MarkdownPlugin) CanHandle(path string, info fs.FileInfo) bool {
	if info != nil && info.IsDir() {
		return false
	}
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".md" || ext == ".markdown"
}
