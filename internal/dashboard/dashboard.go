// Package dashboard computes the read-only views of the chat page: system
// status, the quick-start queries and the data directory listing.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/sevigo/medrag/vectorstores"
)

// Status labels.
const (
	VectorStoreReady   = "Ready"
	VectorStoreMissing = "Missing"
	LLMActive          = "Active"
	LLMNoToken         = "No Token"
)

// Status is the sidebar system status.
type Status struct {
	VectorStore   string `json:"vector_store"`
	LLM           string `json:"llm"`
	ChainReady    bool   `json:"chain_ready"`
	DataDirExists bool   `json:"data_dir_exists"`
	Documents     int    `json:"documents"`
	// IndexedChunks is -1 when the store cannot report a count.
	IndexedChunks int `json:"indexed_chunks"`
}

// Inspector gathers the status from the filesystem and the running pipeline.
type Inspector struct {
	DataDir        string
	VectorStoreDir string
	HasToken       bool
	// ChainReady reports whether the QA chain was built.
	ChainReady func() bool
	// Counter is optional.
	Counter vectorstores.Counter
	Logger  *slog.Logger
}

func (in *Inspector) Status(ctx context.Context) Status {
	st := Status{
		VectorStore:   VectorStoreMissing,
		LLM:           LLMNoToken,
		IndexedChunks: -1,
	}
	if exists(in.VectorStoreDir) {
		st.VectorStore = VectorStoreReady
	}
	if in.HasToken {
		st.LLM = LLMActive
	}
	if in.ChainReady != nil {
		st.ChainReady = in.ChainReady()
	}

	listing, err := DataFiles(in.DataDir)
	if err != nil {
		in.logger().WarnContext(ctx, "Failed to list data directory", "dir", in.DataDir, "error", err)
	}
	st.DataDirExists = !listing.Missing
	st.Documents = len(listing.Files)

	if in.Counter != nil {
		n, err := in.Counter.CountDocuments(ctx)
		if err != nil {
			in.logger().WarnContext(ctx, "Failed to count indexed chunks", "error", err)
		} else {
			st.IndexedChunks = n
		}
	}
	return st
}

func (in *Inspector) logger() *slog.Logger {
	if in.Logger != nil {
		return in.Logger
	}
	return slog.Default()
}

// File is an entry of the data directory.
type File struct {
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// Listing is the data directory content. Missing is set, without an error,
// when the directory does not exist.
type Listing struct {
	Dir     string `json:"dir"`
	Missing bool   `json:"missing"`
	Files   []File `json:"files"`
}

// DataFiles lists the regular files directly under dir, sorted by name.
func DataFiles(dir string) (Listing, error) {
	listing := Listing{Dir: dir, Files: []File{}}

	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		listing.Missing = true
		return listing, nil
	}
	if err != nil {
		return listing, fmt.Errorf("read data directory: %w", err)
	}

	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		listing.Files = append(listing.Files, File{
			Name:    e.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	sort.Slice(listing.Files, func(i, j int) bool {
		return listing.Files[i].Name < listing.Files[j].Name
	})
	return listing, nil
}

func exists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
