// Command ingest builds the vector store from the data directory.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sevigo/medrag/documentloaders"
	"github.com/sevigo/medrag/internal/config"
	"github.com/sevigo/medrag/internal/ingest"
	"github.com/sevigo/medrag/internal/logger"
	"github.com/sevigo/medrag/internal/rag"
	"github.com/sevigo/medrag/parsers"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to a YAML config file (default config.yaml when present)")
		watch      = flag.Bool("watch", false, "keep running and re-ingest files as they change")
		reset      = flag.Bool("reset", false, "drop the collection before ingesting")
	)
	flag.Parse()

	if err := run(*configPath, *watch, *reset); err != nil {
		fmt.Fprintln(os.Stderr, "ingest:", err)
		os.Exit(1)
	}
}

func printCollections(ctx context.Context, pipeline *ingest.Pipeline) {
	infos, err := pipeline.Collections(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ingest: list collections:", err)
		return
	}
	for _, info := range infos {
		fmt.Printf("  collection %s: %d points, %d dims, %s\n",
			info.Name, info.PointsCount, info.VectorSize, info.VectorDistance)
	}
}

func run(configPath string, watch, reset bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, closeLog, err := logger.New(logger.Options{Dir: cfg.Log.Dir, Level: cfg.Log.Level})
	if err != nil {
		return err
	}
	defer closeLog.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry, err := parsers.RegisterDocumentPlugins(log)
	if err != nil {
		return err
	}
	splitter, err := rag.NewSplitter(cfg)
	if err != nil {
		return err
	}
	index, err := rag.OpenIndex(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer index.Close()

	loader := documentloaders.NewDirectory(cfg.DataDir, registry, documentloaders.WithLogger(log))
	pipeline := ingest.New(loader, splitter, index.Store, ingest.WithLogger(log))

	if reset {
		if err := pipeline.Reset(ctx, cfg.VectorStore.Collection); err != nil {
			return err
		}
	}

	stats, err := pipeline.Run(ctx)
	switch {
	case errors.Is(err, ingest.ErrNoDocuments) && watch:
		log.Warn("Data directory is empty, waiting for files", "dir", cfg.DataDir)
	case err != nil:
		return err
	default:
		fmt.Printf("Ingested %d files: %d documents, %d chunks in %s\n",
			stats.Files, stats.Documents, stats.Chunks, stats.Duration.Round(time.Millisecond))
		if stats.Removed > 0 {
			fmt.Printf("Dropped %d sources no longer in %s\n", stats.Removed, cfg.DataDir)
		}
		printCollections(ctx, pipeline)
	}

	if watch {
		return pipeline.Watch(ctx)
	}
	return nil
}
