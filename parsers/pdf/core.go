package pdf

import (
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/sevigo/medrag/schema"
)

// PDFPlugin implements schema.ParserPlugin for PDF files
type PDFPlugin struct {
	logger *slog.Logger
}

var _ schema.ParserPlugin = (*PDFPlugin)(nil)

func NewPDFPlugin(logger *slog.Logger) schema.ParserPlugin {
	if logger == nil {
		logger = slog.Default()
	}
	return &PDFPlugin{
		logger: logger,
	}
}

func (p *PDFPlugin) Name() string {
	return "pdf"
}

func (p *PDFPlugin) Extensions() []string {
	return []string{".pdf"}
}

func (p *PDFPlugin) CanHandle(path string, info fs.FileInfo) bool {
	if info != nil && info.IsDir() {
		return false
	}
	return strings.ToLower(filepath.Ext(path)) == ".pdf"
}
