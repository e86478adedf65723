package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/sevigo/medrag/documentloaders"
)

// Watch re-ingests files under the data directory as they change, until ctx
// is done. Bursts of events for one file are coalesced by the debounce delay.
func (p *Pipeline) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := p.addTree(watcher, p.loader.Root()); err != nil {
		return err
	}
	p.logger.InfoContext(ctx, "Watching data directory", "dir", p.loader.Root(), "debounce", p.debounce)

	var (
		mu      sync.Mutex
		pending = make(map[string]*time.Timer)
		wg      sync.WaitGroup
	)
	defer func() {
		mu.Lock()
		for _, t := range pending {
			if t.Stop() {
				wg.Done()
			}
		}
		mu.Unlock()
		wg.Wait()
	}()

	schedule := func(path string) {
		mu.Lock()
		defer mu.Unlock()
		if t, ok := pending[path]; ok && t.Stop() {
			wg.Done()
		}
		wg.Add(1)
		var t *time.Timer
		t = time.AfterFunc(p.debounce, func() {
			defer wg.Done()
			mu.Lock()
			if pending[path] == t {
				delete(pending, path)
			}
			mu.Unlock()
			p.handleChange(ctx, path)
		})
		pending[path] = t
	}

	for {
		select {
		case <-ctx.Done():
			p.logger.InfoContext(ctx, "Watcher stopped")
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return errors.New("watcher events channel closed")
			}
			if isHidden(event.Name) {
				continue
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := p.addTree(watcher, event.Name); err != nil {
						p.logger.WarnContext(ctx, "Failed to watch new directory", "dir", event.Name, "error", err)
					}
					continue
				}
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				schedule(event.Name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return errors.New("watcher errors channel closed")
			}
			p.logger.WarnContext(ctx, "Watcher error", "error", err)
		}
	}
}

// handleChange re-ingests path, or drops its chunks when it is gone.
func (p *Pipeline) handleChange(ctx context.Context, path string) {
	if ctx.Err() != nil {
		return
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := p.RemoveFile(ctx, path); err != nil {
			p.logger.ErrorContext(ctx, "Failed to remove file from index", "path", path, "error", err)
		}
		return
	}

	_, err := p.IngestFile(ctx, path)
	switch {
	case err == nil:
	case errors.Is(err, documentloaders.ErrUnsupportedFile):
		p.logger.DebugContext(ctx, "Ignoring unsupported file", "path", path)
	default:
		p.logger.ErrorContext(ctx, "Failed to ingest file", "path", path, "error", err)
	}
}

func (p *Pipeline) addTree(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && isHidden(path) {
			return filepath.SkipDir
		}
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

func isHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
