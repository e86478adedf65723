// Medical RAG chatbot server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/sevigo/medrag/documentloaders"
	"github.com/sevigo/medrag/internal/api"
	"github.com/sevigo/medrag/internal/chat"
	"github.com/sevigo/medrag/internal/config"
	"github.com/sevigo/medrag/internal/dashboard"
	"github.com/sevigo/medrag/internal/ingest"
	"github.com/sevigo/medrag/internal/logger"
	"github.com/sevigo/medrag/internal/metrics"
	"github.com/sevigo/medrag/internal/rag"
	"github.com/sevigo/medrag/internal/store"
	"github.com/sevigo/medrag/parsers"
	"github.com/sevigo/medrag/vectorstores"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to a YAML config file (default config.yaml when present)")
		watch      = flag.Bool("watch", false, "re-ingest files of the data directory as they change")
	)
	flag.Parse()

	if err := run(*configPath, *watch); err != nil {
		fmt.Fprintln(os.Stderr, "medrag:", err)
		os.Exit(1)
	}
}

func run(configPath string, watch bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log, closeLog, err := logger.New(logger.Options{Dir: cfg.Log.Dir, Level: cfg.Log.Level})
	if err != nil {
		return err
	}
	defer closeLog.Close()
	slog.SetDefault(log)

	log.Info("Starting server", "port", cfg.Server.Port, "llm_provider", cfg.LLM.Provider, "vectorstore", cfg.VectorStore.Provider)
	if !cfg.HasToken() {
		log.Warn("HF_TOKEN is not set, hosted models will reject requests")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := openRepository(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := repo.Close(); err != nil {
			log.Error("Failed to close repository", "error", err)
		}
	}()
	if err := repo.Ping(ctx); err != nil {
		return fmt.Errorf("chat history health check: %w", err)
	}

	pipeline := rag.Build(ctx, cfg, log)
	defer pipeline.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.New(reg)

	if watch && pipeline.Store != nil {
		if err := startWatcher(ctx, cfg, pipeline, recorder, log); err != nil {
			return err
		}
	}

	svc := chat.NewService(repo, pipeline.Chain, chat.WithObserver(recorder), chat.WithLogger(log))

	inspector := &dashboard.Inspector{
		DataDir:        cfg.DataDir,
		VectorStoreDir: cfg.VectorStore.Dir,
		HasToken:       cfg.HasToken(),
		ChainReady:     svc.Ready,
		Logger:         log,
	}
	if counter, ok := pipeline.Store.(vectorstores.Counter); ok {
		inspector.Counter = counter
	}

	handler, err := api.NewHandler(api.Deps{
		Chat:        svc,
		Inspector:   inspector,
		Metrics:     recorder,
		LogDir:      cfg.Log.Dir,
		CORSOrigins: cfg.Server.CORSOrigins,
		Logger:      log,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:        cfg.Addr(),
		Handler:     handler.Router(),
		ReadTimeout: cfg.Server.ReadTimeout,
		// No write timeout: answers can take as long as the model does.
		IdleTimeout: cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}
	stop()

	log.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info("Server stopped successfully")
	return nil
}

// startWatcher keeps the index in sync with the data directory while the
// server runs.
func startWatcher(ctx context.Context, cfg *config.Config, pipeline *rag.Pipeline, recorder *metrics.Recorder, log *slog.Logger) error {
	registry, err := parsers.RegisterDocumentPlugins(log)
	if err != nil {
		return err
	}
	splitter, err := rag.NewSplitter(cfg)
	if err != nil {
		return err
	}
	loader := documentloaders.NewDirectory(cfg.DataDir, registry, documentloaders.WithLogger(log))
	p := ingest.New(loader, splitter, pipeline.Store, ingest.WithLogger(log), ingest.WithRecorder(recorder))
	go func() {
		if err := p.Watch(ctx); err != nil {
			log.Error("Data directory watcher stopped", "error", err)
		}
	}()
	return nil
}

func openRepository(cfg *config.Config, log *slog.Logger) (store.Repository, error) {
	if cfg.History.Provider == config.ProviderMemory {
		log.Info("Chat history kept in memory")
		return store.NewMemory(), nil
	}
	repo, err := store.NewSQLite(cfg.History.Path, log)
	if err != nil {
		return nil, fmt.Errorf("open chat history: %w", err)
	}
	return repo, nil
}
