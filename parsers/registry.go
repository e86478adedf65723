package parsers

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/sevigo/medrag/schema"
)

// ErrPluginNotFound is returned when no parser handles a name, extension or file.
var ErrPluginNotFound = errors.New("parser plugin not found")

// Registry maps parser names and file extensions to plugins. It is safe for
// concurrent use.
type Registry struct {
	plugins    map[string]schema.ParserPlugin
	extensions map[string]schema.ParserPlugin
	logger     *slog.Logger
	mu         sync.RWMutex
}

func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		plugins:    make(map[string]schema.ParserPlugin),
		extensions: make(map[string]schema.ParserPlugin),
		logger:     logger,
	}
}

func (r *Registry) Register(plugin schema.ParserPlugin) error {
	if plugin == nil {
		return errors.New("cannot register nil plugin")
	}

	name := plugin.Name()
	if name == "" {
		return errors.New("plugin must have a non-empty name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.plugins[name]; exists {
		return fmt.Errorf("plugin with name %q already registered", name)
	}
	r.plugins[name] = plugin

	for _, ext := range plugin.Extensions() {
		if ext = normalizeExt(ext); ext != "" {
			r.extensions[ext] = plugin
		}
	}

	r.logger.Debug("Registered parser plugin", "parser", name, "extensions", plugin.Extensions())
	return nil
}

func (r *Registry) Get(name string) (schema.ParserPlugin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	plugin, ok := r.plugins[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPluginNotFound, name)
	}
	return plugin, nil
}

func (r *Registry) ForExtension(ext string) (schema.ParserPlugin, error) {
	ext = normalizeExt(ext)
	if ext == "" {
		return nil, fmt.Errorf("%w: empty extension", ErrPluginNotFound)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	plugin, ok := r.extensions[ext]
	if !ok {
		return nil, fmt.Errorf("%w for extension %s", ErrPluginNotFound, ext)
	}
	return plugin, nil
}

// ForFile resolves by extension first and then asks each plugin's CanHandle,
// in name order so the result is deterministic.
func (r *Registry) ForFile(path string, info fs.FileInfo) (schema.ParserPlugin, error) {
	if plugin, err := r.ForExtension(filepath.Ext(path)); err == nil {
		return plugin, nil
	}

	for _, plugin := range r.All() {
		if plugin.CanHandle(path, info) {
			return plugin, nil
		}
	}
	return nil, fmt.Errorf("%w for file %s", ErrPluginNotFound, path)
}

// All returns the registered plugins sorted by name.
func (r *Registry) All() []schema.ParserPlugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	plugins := make([]schema.ParserPlugin, 0, len(r.plugins))
	for _, plugin := range r.plugins {
		plugins = append(plugins, plugin)
	}
	sort.Slice(plugins, func(i, j int) bool { return plugins[i].Name() < plugins[j].Name() })
	return plugins
}

// Extensions lists every registered extension, sorted.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exts := make([]string, 0, len(r.extensions))
	for ext := range r.extensions {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

func normalizeExt(ext string) string {
	if ext == "" {
		return ""
	}
	ext = strings.ToLower(ext)
	if ext[0] != '.' {
		ext = "." + ext
	}
	return ext
}
