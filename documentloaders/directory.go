package documentloaders

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/sevigo/medrag/schema"
)

// DefaultMaxFileSize bounds the files the loader will read.
const DefaultMaxFileSize = 100 * 1024 * 1024

// ErrUnsupportedFile is returned by LoadFile when no parser handles the file.
var ErrUnsupportedFile = errors.New("documentloaders: unsupported file")

// Directory loads every supported file below a root directory. Each parsed
// section becomes one document.
type Directory struct {
	root        string
	resolver    ParserResolver
	maxFileSize int64
	logger      *slog.Logger
}

var _ Loader = (*Directory)(nil)

type DirectoryOption func(*Directory)

func WithLogger(logger *slog.Logger) DirectoryOption {
	return func(d *Directory) {
		if logger != nil {
			d.logger = logger
		}
	}
}

func WithMaxFileSize(n int64) DirectoryOption {
	return func(d *Directory) {
		if n > 0 {
			d.maxFileSize = n
		}
	}
}

func NewDirectory(root string, resolver ParserResolver, opts ...DirectoryOption) *Directory {
	d := &Directory{
		root:        root,
		resolver:    resolver,
		maxFileSize: DefaultMaxFileSize,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With("component", "directory_loader")
	return d
}

func (d *Directory) Root() string { return d.root }

// Load walks the root directory. Unreadable or unparsable files are logged
// and skipped; only context cancellation or a missing root aborts the walk.
func (d *Directory) Load(ctx context.Context) ([]schema.Document, error) {
	start := time.Now()
	if _, err := os.Stat(d.root); err != nil {
		return nil, fmt.Errorf("data directory %s: %w", d.root, err)
	}

	var (
		docs  []schema.Document
		files int
	)
	err := filepath.WalkDir(d.root, func(path string, entry fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			d.logger.Warn("Skipping unreadable path", "path", path, "error", err)
			return nil
		}
		if entry.IsDir() {
			if path != d.root && shouldSkipDir(entry.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		info, err := entry.Info()
		if err != nil {
			d.logger.Warn("Could not stat file, skipping", "path", path, "error", err)
			return nil
		}
		if d.shouldSkipFile(path, info) {
			d.logger.Debug("Skipping file", "path", path, "size", info.Size())
			return nil
		}

		fileDocs, err := d.loadFile(ctx, path, info)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			if errors.Is(err, ErrUnsupportedFile) {
				d.logger.Debug("No parser for file", "path", path)
			} else {
				d.logger.Warn("Failed to load file, skipping", "path", path, "error", err)
			}
			return nil
		}
		files++
		docs = append(docs, fileDocs...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	d.logger.Info("Directory loaded",
		"root", d.root,
		"files", files,
		"documents", len(docs),
		"duration", time.Since(start),
	)
	return docs, nil
}

// LoadFile loads a single file below the root.
func (d *Directory) LoadFile(ctx context.Context, path string) ([]schema.Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrUnsupportedFile, path)
	}
	if d.shouldSkipFile(path, info) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFile, path)
	}
	return d.loadFile(ctx, path, info)
}

// Source returns the metadata "source" value for a path: relative to the
// root and slash separated.
func (d *Directory) Source(path string) string {
	rel, err := filepath.Rel(d.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func (d *Directory) loadFile(ctx context.Context, path string, info fs.FileInfo) ([]schema.Document, error) {
	parser, err := d.resolver.ForFile(path, info)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFile, path)
	}

	sections, err := parser.Parse(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%s parser: %w", parser.Name(), err)
	}

	base := map[string]any{
		"source":    d.Source(path),
		"format":    parser.Name(),
		"file_size": info.Size(),
		"mod_time":  info.ModTime().UTC().Format(time.RFC3339),
	}

	docs := make([]schema.Document, 0, len(sections))
	for _, section := range sections {
		if strings.TrimSpace(section.Content) == "" {
			continue
		}
		meta := maps.Clone(base)
		if section.Page > 0 {
			meta["page"] = section.Page
		}
		if section.Title != "" {
			meta["section"] = section.Title
		}
		docs = append(docs, schema.NewDocument(section.Content, meta))
	}

	d.logger.Debug("File loaded", "path", path, "parser", parser.Name(), "documents", len(docs))
	return docs, nil
}

func shouldSkipDir(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	return slices.Contains([]string{"node_modules", "__pycache__", "vendor", "build", "dist", "logs", "vectorstore"}, name)
}

func (d *Directory) shouldSkipFile(path string, info fs.FileInfo) bool {
	if strings.HasPrefix(filepath.Base(path), ".") {
		return true
	}
	if info.Size() == 0 || info.Size() > d.maxFileSize {
		return true
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".exe", ".dll", ".so", ".dylib", ".png", ".jpg", ".jpeg", ".gif", ".bmp",
		".zip", ".tar", ".gz", ".7z", ".mp3", ".mp4", ".db", ".sqlite", ".bin":
		return true
	}
	return false
}
