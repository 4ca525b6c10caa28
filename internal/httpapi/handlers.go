package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"jeeveswatcher/internal/processor"
	"jeeveswatcher/internal/sidecar"
)

type statusResponse struct {
	Status        string            `json:"status"`
	Uptime        string            `json:"uptime"`
	Collection    collectionSummary `json:"collection"`
	PayloadFields []string          `json:"payloadFields"`
}

type collectionSummary struct {
	Name       string `json:"name"`
	PointCount uint64 `json:"pointCount"`
	Dimensions int    `json:"dimensions"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	info, err := s.Store.CollectionInfo(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	fields := make([]string, 0, len(info.PayloadField))
	for name := range info.PayloadField {
		fields = append(fields, name)
	}
	respondJSON(w, http.StatusOK, statusResponse{
		Status: "ok",
		Uptime: time.Since(s.StartedAt).String(),
		Collection: collectionSummary{
			Name:       info.Name,
			PointCount: info.PointCount,
			Dimensions: info.Dimensions,
		},
		PayloadFields: fields,
	})
}

type searchRequest struct {
	Query  string         `json:"query"`
	Limit  int            `json:"limit"`
	Filter map[string]any `json:"filter"`
}

type searchHit struct {
	ID      string         `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if req.Limit <= 0 {
		req.Limit = 10
	}

	ctx := r.Context()
	vectors, err := s.Embedder.EmbedBatch(ctx, []string{req.Query})
	if err != nil || len(vectors) == 0 {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	results, err := s.Store.Search(ctx, vectors[0], req.Limit, req.Filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	hits := make([]searchHit, len(results))
	for i, res := range results {
		hits[i] = searchHit{ID: res.ID.String(), Score: res.Score, Payload: res.Payload}
	}
	respondJSON(w, http.StatusOK, hits)
}

type metadataRequest struct {
	Path     string         `json:"path"`
	Metadata map[string]any `json:"metadata"`
}

func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	var req metadataRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if _, _, err := s.Processor.ProcessMetadataUpdate(r.Context(), req.Path, req.Metadata); err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleReindex walks the watched files and processes them sequentially on
// the request goroutine, deliberately bypassing the event queue: a full
// reindex is an explicit, bounded, one-shot operation rather than routine
// filesystem churn, so it does not need debouncing or rate limiting.
func (s *Server) handleReindex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	paths, err := s.Files.WatchedFiles(ctx)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	indexed := 0
	for _, p := range paths {
		if err := s.Processor.ProcessFile(ctx, p); err != nil {
			log.Error().Err(err).Str("path", p).Msg("httpapi: reindex failed for file")
			continue
		}
		indexed++
	}
	respondJSON(w, http.StatusOK, map[string]any{"ok": true, "filesIndexed": indexed})
}

type configReindexRequest struct {
	Scope string `json:"scope"`
}

// handleConfigReindex spawns the requested pass asynchronously and returns
// immediately with "started", per the documented scope semantics: "rules"
// only recomputes inferred+enrichment metadata on already-indexed files;
// "full" is equivalent to a full reindex.
func (s *Server) handleConfigReindex(w http.ResponseWriter, r *http.Request) {
	var req configReindexRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.Scope == "" {
		req.Scope = "rules"
	}

	go func() {
		ctx := r.Context()
		paths, err := s.Files.WatchedFiles(context.WithoutCancel(ctx))
		if err != nil {
			log.Error().Err(err).Msg("httpapi: config-reindex file enumeration failed")
			return
		}
		for _, p := range paths {
			var procErr error
			switch req.Scope {
			case "full":
				procErr = s.Processor.ProcessFile(context.WithoutCancel(ctx), p)
			default:
				_, _, procErr = s.Processor.ProcessRulesUpdate(context.WithoutCancel(ctx), p)
			}
			if procErr != nil {
				log.Error().Err(procErr).Str("path", p).Str("scope", req.Scope).Msg("httpapi: config-reindex failed for file")
			}
		}
	}()

	respondJSON(w, http.StatusOK, map[string]any{"status": "started", "scope": req.Scope})
}

// handleRebuildMetadata scrolls every point in the store, strips the
// reserved system payload keys, and rewrites the corresponding sidecar
// file, restoring sidecars from whatever enrichment survives in the store
// when the metadata directory itself has been lost.
func (s *Server) handleRebuildMetadata(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	offset := ""
	seen := map[string]map[string]any{}
	for {
		page, err := s.Store.Scroll(ctx, nil, 256, offset)
		if err != nil {
			respondError(w, http.StatusInternalServerError, err)
			return
		}
		for _, point := range page.Points {
			path, _ := point.Payload["file_path"].(string)
			if path == "" {
				continue
			}
			merged := map[string]any{}
			for k, v := range point.Payload {
				merged[k] = v
			}
			for k := range processor.ReservedKeys {
				delete(merged, k)
			}
			seen[path] = merged
		}
		if page.NextOffset == "" {
			break
		}
		offset = page.NextOffset
	}

	for path, meta := range seen {
		if err := sidecar.Write(path, s.Processor.MetadataDir(), meta); err != nil {
			log.Error().Err(err).Str("path", path).Msg("httpapi: rebuild-metadata failed to write sidecar")
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, err error) {
	msg := "Internal server error"
	if status != http.StatusInternalServerError {
		msg = err.Error()
	} else {
		log.Error().Err(err).Msg("httpapi: unexpected failure")
	}
	respondJSON(w, status, map[string]any{"error": msg})
}
