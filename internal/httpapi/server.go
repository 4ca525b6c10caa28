// Package httpapi exposes the thin HTTP surface around the document
// processor and vector store: status, search, metadata overlay, reindex,
// config-driven reindex, and sidecar rebuild. Handlers carry no business
// logic of their own, mirroring the corpus's agentd router idiom (a
// net/http.ServeMux with method-and-path patterns routed to small
// closures).
package httpapi

import (
	"context"
	"net/http"
	"time"

	"jeeveswatcher/internal/embedding"
	"jeeveswatcher/internal/processor"
	"jeeveswatcher/internal/vectorstore"
)

// Reindexer is the subset of watch configuration the /reindex and
// /config-reindex handlers need to enumerate files.
type Reindexer interface {
	WatchedFiles(ctx context.Context) ([]string, error)
}

// Server exposes the HTTP surface described in the external interfaces
// section: GET /status, POST /search, POST /metadata, POST /reindex,
// POST /config-reindex, POST /rebuild-metadata.
type Server struct {
	Processor *processor.Processor
	Store     vectorstore.Store
	Embedder  embedding.Embedder
	Files     Reindexer
	StartedAt time.Time

	mux *http.ServeMux
}

// NewServer builds a Server and registers its routes.
func NewServer(proc *processor.Processor, store vectorstore.Store, embedder embedding.Embedder, files Reindexer) *Server {
	s := &Server{
		Processor: proc,
		Store:     store,
		Embedder:  embedder,
		Files:     files,
		StartedAt: time.Now(),
		mux:       http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// ServeHTTP satisfies http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /status", s.handleStatus)
	s.mux.HandleFunc("POST /search", s.handleSearch)
	s.mux.HandleFunc("POST /metadata", s.handleMetadata)
	s.mux.HandleFunc("POST /reindex", s.handleReindex)
	s.mux.HandleFunc("POST /config-reindex", s.handleConfigReindex)
	s.mux.HandleFunc("POST /rebuild-metadata", s.handleRebuildMetadata)
}
