// Package app wires every component into a runnable process: it builds the
// logger, embedder, vector store client, rule table, processor, queue, and
// watcher, starts the HTTP surface, and tears everything down in reverse on
// shutdown. Grounded on the corpus's internal/agentd.Run/newApp shape (load
// config, init logger, build app, start listener), generalized to add a
// queue drain phase the teacher has no equivalent of.
package app

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"jeeveswatcher/internal/config"
	"jeeveswatcher/internal/embedding"
	"jeeveswatcher/internal/health"
	"jeeveswatcher/internal/httpapi"
	"jeeveswatcher/internal/logging"
	"jeeveswatcher/internal/processor"
	"jeeveswatcher/internal/queue"
	"jeeveswatcher/internal/rules"
	"jeeveswatcher/internal/vectorstore"
	"jeeveswatcher/internal/watcher"
)

// App owns every long-lived component and the order they start/stop in.
type App struct {
	cfg config.Config

	store     vectorstore.Store
	embedder  embedding.Embedder
	proc      *processor.Processor
	q         *queue.Queue
	sup       *health.Supervisor
	fsWatcher *watcher.Watcher
	server    *http.Server

	cfgWatch *configWatcher
}

// New builds an App from cfg without starting anything.
func New(cfg config.Config) (*App, error) {
	logging.Init(cfg.Logging.Path, cfg.Logging.Level)

	embedder, err := buildEmbedder(cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("app: build embedder: %w", err)
	}

	store, err := buildStore(cfg.VectorStore, embedder.Dimension())
	if err != nil {
		return nil, fmt.Errorf("app: build vector store: %w", err)
	}

	compiled, named, err := rules.Compile(cfg.InferenceRules, cfg.Maps)
	if err != nil {
		return nil, fmt.Errorf("app: compile inference rules: %w", err)
	}
	rulesTbl := rules.NewTable()
	rulesTbl.Update(compiled, named)

	proc := processor.New(processor.Config{
		ChunkSize:    cfg.Embedding.ChunkSize,
		ChunkOverlap: cfg.Embedding.ChunkOverlap,
		MetadataDir:  cfg.MetadataDir,
	}, rulesTbl, embedder, store)

	q := queue.New(queue.Config{
		Debounce:      cfg.Watch.Debounce(),
		Concurrency:   cfg.Embedding.Concurrency,
		RatePerMinute: float64(cfg.Embedding.RateLimitPerMinute),
	})

	sup := health.New(health.Config{
		OnFatal: func(lastErr error) {
			log.Error().Err(lastErr).Msg("app: watcher health supervisor reached fatal threshold")
		},
	})

	files := &fileLister{roots: cfg.Watch.Paths}

	fsWatcher, err := watcher.New(watcher.Options{
		Roots:           cfg.Watch.Paths,
		PollInterval:    cfg.Watch.PollInterval(),
		StabilityWindow: cfg.Watch.Stability(),
		StabilityPoll:   cfg.Watch.StabilityPoll(),
	}, processorHandler{proc}, q, sup)
	if err != nil {
		return nil, fmt.Errorf("app: build watcher: %w", err)
	}

	mux := httpapi.NewServer(proc, store, embedder, files)
	addr := net.JoinHostPort(cfg.API.Host, fmt.Sprintf("%d", cfg.API.Port))

	return &App{
		cfg:       cfg,
		store:     store,
		embedder:  embedder,
		proc:      proc,
		q:         q,
		sup:       sup,
		fsWatcher: fsWatcher,
		server:    &http.Server{Addr: addr, Handler: mux},
		cfgWatch:  newConfigWatcher(cfg.ConfigWatch.Path, cfg.ConfigWatch.Debounce(), proc),
	}, nil
}

// processorHandler adapts *processor.Processor to watcher.Handler.
type processorHandler struct {
	proc *processor.Processor
}

func (h processorHandler) ProcessFile(ctx context.Context, path string) error {
	return h.proc.ProcessFile(ctx, path)
}

func (h processorHandler) DeleteFile(ctx context.Context, path string) error {
	return h.proc.DeleteFile(ctx, path)
}

// Start brings every component up in dependency order: the vector store's
// collection must exist before the processor can probe or upsert into it;
// the watcher must not start until the processor and queue behind it are
// ready; the HTTP listener comes up before the filesystem and config
// watchers, so a listen failure aborts startup before any watcher runs.
func (a *App) Start(ctx context.Context) error {
	if err := a.store.EnsureCollection(ctx); err != nil {
		return fmt.Errorf("app: ensure collection: %w", err)
	}

	a.q.Start()

	ln, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		return fmt.Errorf("app: listen on %s: %w", a.server.Addr, err)
	}
	go func() {
		if err := a.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("app: http server stopped")
		}
	}()

	go func() {
		if err := a.fsWatcher.Start(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("app: filesystem watcher stopped")
		}
	}()

	a.cfgWatch.start()

	log.Info().Str("addr", a.server.Addr).Msg("app: started")
	return nil
}

// Stop tears components down in reverse order, draining the queue before
// the configured shutdown timeout elapses.
func (a *App) Stop(ctx context.Context) error {
	a.cfgWatch.stop()
	_ = a.fsWatcher.Stop()

	drainCtx, cancel := context.WithTimeout(ctx, a.cfg.ShutdownTimeout())
	defer cancel()
	if err := a.q.Drain(drainCtx); err != nil {
		log.Warn().Err(err).Msg("app: queue drain timed out")
	}
	a.q.Close()

	shutdownCtx, cancelHTTP := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelHTTP()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("app: http shutdown: %w", err)
	}
	return a.store.Close()
}

func buildEmbedder(cfg config.EmbeddingConfig) (embedding.Embedder, error) {
	switch cfg.Provider {
	case "http":
		return embedding.NewHTTPEmbedder(embedding.HTTPConfig{
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			APIKey:     cfg.APIKey,
			Dimensions: cfg.Dimensions,
		}), nil
	case "hash", "":
		return embedding.NewHashEmbedder(cfg.Dimensions, true, 1), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

func buildStore(cfg config.VectorStoreConfig, dimensions int) (vectorstore.Store, error) {
	if cfg.URL == "" {
		return vectorstore.NewMemoryStore(dimensions), nil
	}
	return vectorstore.NewQdrantStore(cfg.URL, cfg.Collection, dimensions)
}
