// Package logview reads the daily log files for the dashboard log viewer.
package logview

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

var (
	ErrInvalidName = errors.New("logview: invalid log file name")
	ErrNoLogDir    = errors.New("logview: log directory not found")
)

// FallbackDir is tried when the configured directory does not exist.
const FallbackDir = "CODE/logs"

// Levels a line can be filtered by.
var Levels = []string{"INFO", "ERROR", "WARNING"}

type File struct {
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

type Filter struct {
	Search string
	// Levels defaults to all of Levels when empty.
	Levels []string
}

// Counts are taken over the whole file, before filtering.
type Counts struct {
	Info    int `json:"info"`
	Error   int `json:"error"`
	Warning int `json:"warning"`
}

type Result struct {
	File   string   `json:"file"`
	Counts Counts   `json:"counts"`
	Lines  []string `json:"lines"`
}

// Viewer serves log files from a single directory.
type Viewer struct {
	dir string
}

// New resolves dir, falling back to FallbackDir when dir is missing.
func New(dir string) (*Viewer, error) {
	for _, candidate := range []string{dir, FallbackDir} {
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return &Viewer{dir: candidate}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoLogDir, dir)
}

func (v *Viewer) Dir() string { return v.dir }

// ListFiles returns the *.log files, newest first.
func (v *Viewer) ListFiles() ([]File, error) {
	entries, err := os.ReadDir(v.dir)
	if err != nil {
		return nil, fmt.Errorf("read log directory: %w", err)
	}
	files := []File{}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".log" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, File{Name: e.Name(), Size: info.Size(), ModTime: info.ModTime()})
	}
	sort.Slice(files, func(i, j int) bool {
		if !files[i].ModTime.Equal(files[j].ModTime) {
			return files[i].ModTime.After(files[j].ModTime)
		}
		return files[i].Name > files[j].Name
	})
	return files, nil
}

// Path returns the location of the named log file. Names that would leave
// the log directory are rejected.
func (v *Viewer) Path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || filepath.Ext(name) != ".log" {
		return "", ErrInvalidName
	}
	return filepath.Join(v.dir, name), nil
}

// Read returns the counts of the file and its matching non-empty lines,
// last line first. A line matches when it contains the search term (case
// insensitive) and at least one of the selected levels.
func (v *Viewer) Read(name string, filter Filter) (*Result, error) {
	path, err := v.Path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read log file %s: %w", name, err)
	}

	levels := filter.Levels
	if len(levels) == 0 {
		levels = Levels
	}
	search := strings.ToLower(filter.Search)

	lines := strings.Split(string(data), "\n")
	res := &Result{File: name, Lines: []string{}}
	for _, line := range lines {
		res.Counts.add(line)
	}
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(line), search) {
			continue
		}
		if !hasAny(line, levels) {
			continue
		}
		res.Lines = append(res.Lines, line)
	}
	return res, nil
}

func (c *Counts) add(line string) {
	if strings.Contains(line, "INFO") {
		c.Info++
	}
	if strings.Contains(line, "ERROR") {
		c.Error++
	}
	if strings.Contains(line, "WARNING") {
		c.Warning++
	}
}

func hasAny(line string, levels []string) bool {
	for _, level := range levels {
		if strings.Contains(line, strings.ToUpper(level)) {
			return true
		}
	}
	return false
}
