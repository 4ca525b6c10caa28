// Package processor implements the per-file indexing pipeline: extract,
// attribute, rule-infer, merge, hash-skip, chunk, embed, upsert,
// orphan-cleanup, plus the metadata-only and rules-only mutation paths.
// Grounded in the corpus's embed-then-upsert loop
// (internal/rag/ingest/index_vector.go) and its phase-based ingest worker
// idiom (parse -> hash -> dedup-check -> chunk -> extract).
package processor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"jeeveswatcher/internal/chunk"
	"jeeveswatcher/internal/embedding"
	"jeeveswatcher/internal/extract"
	"jeeveswatcher/internal/identity"
	"jeeveswatcher/internal/rules"
	"jeeveswatcher/internal/sidecar"
	"jeeveswatcher/internal/vectorstore"
)

// ReservedKeys are the five system payload keys the processor owns.
// Enrichment must never contain them; the processor strips them on write
// and always overwrites them when building a point payload.
var ReservedKeys = map[string]bool{
	"file_path":    true,
	"chunk_index":  true,
	"total_chunks": true,
	"content_hash": true,
	"chunk_text":   true,
}

// Config holds the processor's tunables.
type Config struct {
	ChunkSize    int
	ChunkOverlap int
	MetadataDir  string
}

func (c Config) normalized() Config {
	if c.ChunkSize <= 0 {
		c.ChunkSize = 1000
	}
	if c.ChunkOverlap < 0 {
		c.ChunkOverlap = 200
	}
	if c.MetadataDir == "" {
		c.MetadataDir = ".jeeves-watcher"
	}
	return c
}

// Processor orchestrates the indexing pipeline against one vector store and
// one embedding backend, with a hot-swappable rule table.
type Processor struct {
	cfg      Config
	rules    *rules.Table
	embedder embedding.Embedder
	store    vectorstore.Store
}

// New constructs a Processor. rulesTable may be updated concurrently via
// UpdateRules; in-flight operations keep the snapshot they read at entry.
func New(cfg Config, rulesTable *rules.Table, embedder embedding.Embedder, store vectorstore.Store) *Processor {
	return &Processor{cfg: cfg.normalized(), rules: rulesTable, embedder: embedder, store: store}
}

// MetadataDir returns the configured sidecar directory.
func (p *Processor) MetadataDir() string {
	return p.cfg.MetadataDir
}

// UpdateRules atomically swaps the rule table used by subsequent operations.
func (p *Processor) UpdateRules(compiled []rules.CompiledRule, named map[string]rules.TransformDef) {
	p.rules.Update(compiled, named)
}

// ProcessFile runs the full pipeline for path. All failures are caught,
// logged with the file path, and swallowed: the caller (queue handler) sees
// "success" so routine per-file parse errors never penalize the health
// supervisor.
func (p *Processor) ProcessFile(ctx context.Context, path string) error {
	logger := log.With().Str("path", path).Logger()

	info, err := os.Stat(path)
	if err != nil {
		logger.Error().Err(err).Msg("processFile: stat failed")
		return nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		logger.Error().Err(err).Msg("processFile: read failed")
		return nil
	}

	res, err := extract.File(path, content)
	if err != nil {
		logger.Error().Err(err).Msg("processFile: extraction failed")
		return nil
	}
	if strings.TrimSpace(res.Text) == "" {
		logger.Debug().Msg("processFile: empty text, skipping")
		return nil
	}

	attrs := fileAttributes(path, info, res)
	inferred := p.rules.Evaluate(attrs)
	enrichment := sidecar.Read(path, p.cfg.MetadataDir)
	metadata := mergeMaps(inferred, enrichment)

	hash := identity.ContentHash(res.Text)

	zero := 0
	baseID := identity.PointID(path, &zero)
	probe, found, err := p.store.GetPayload(ctx, baseID)
	if err != nil {
		logger.Error().Err(err).Msg("processFile: probe failed")
		return nil
	}

	oldTotal := 0
	if found {
		if h, _ := probe["content_hash"].(string); h == hash {
			logger.Debug().Msg("processFile: unchanged, skipping")
			return nil
		}
		oldTotal = totalChunksOf(probe, 1)
	}

	splitter := chunk.ForExtension(attrs.Extension, chunk.Config{Size: p.cfg.ChunkSize, Overlap: p.cfg.ChunkOverlap})
	chunks := splitter.Split(res.Text)
	if len(chunks) == 0 {
		chunks = []string{res.Text}
	}

	vectors, err := p.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		logger.Error().Err(err).Msg("processFile: embedding failed")
		return nil
	}
	if len(vectors) != len(chunks) {
		logger.Error().Int("chunks", len(chunks)).Int("vectors", len(vectors)).Msg("processFile: embedder returned mismatched vector count")
		return nil
	}
	dim := p.embedder.Dimension()
	for i, v := range vectors {
		if dim > 0 && len(v) != dim {
			logger.Error().Int("chunk", i).Int("got", len(v)).Int("want", dim).Msg("processFile: embedding dimension mismatch")
			return nil
		}
	}

	forwardPath := identity.ForwardSlash(path)
	points := make([]vectorstore.Point, len(chunks))
	for i, c := range chunks {
		idx := i
		payload := make(map[string]any, len(metadata)+5)
		for k, v := range metadata {
			payload[k] = v
		}
		payload["file_path"] = forwardPath
		payload["chunk_index"] = idx
		payload["total_chunks"] = len(chunks)
		payload["content_hash"] = hash
		payload["chunk_text"] = c
		points[i] = vectorstore.Point{ID: identity.PointID(path, &idx), Vector: vectors[i], Payload: payload}
	}

	if err := p.store.Upsert(ctx, points); err != nil {
		logger.Error().Err(err).Msg("processFile: upsert failed")
		return nil
	}

	if oldTotal > len(chunks) {
		ids := make([]uuid.UUID, 0, oldTotal-len(chunks))
		for i := len(chunks); i < oldTotal; i++ {
			idx := i
			ids = append(ids, identity.PointID(path, &idx))
		}
		if err := p.store.Delete(ctx, ids); err != nil {
			logger.Error().Err(err).Msg("processFile: orphan cleanup failed")
		}
	}

	return nil
}

// DeleteFile removes every point for path and its sidecar. The base point
// is probed for total_chunks (default 1 when absent) so single-chunk files
// with no explicit total still get their lone point cleaned up.
func (p *Processor) DeleteFile(ctx context.Context, path string) error {
	zero := 0
	baseID := identity.PointID(path, &zero)
	probe, found, err := p.store.GetPayload(ctx, baseID)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("deleteFile: probe failed")
	}
	total := 1
	if found {
		total = totalChunksOf(probe, 1)
	}
	ids := make([]uuid.UUID, total)
	for i := 0; i < total; i++ {
		idx := i
		ids[i] = identity.PointID(path, &idx)
	}
	if err := p.store.Delete(ctx, ids); err != nil {
		return fmt.Errorf("deleteFile: delete points: %w", err)
	}
	if err := sidecar.Delete(path, p.cfg.MetadataDir); err != nil {
		return fmt.Errorf("deleteFile: delete sidecar: %w", err)
	}
	return nil
}

// ProcessMetadataUpdate overlays partial onto the sidecar (caller wins),
// writes the sidecar, and if the file is already indexed, sets the merged
// payload across every existing chunk without re-embedding. It returns
// (merged, false, nil) if the file has no indexed points yet.
func (p *Processor) ProcessMetadataUpdate(ctx context.Context, path string, partial map[string]any) (map[string]any, bool, error) {
	existing := sidecar.Read(path, p.cfg.MetadataDir)
	merged := mergeMaps(existing, partial)
	stripReserved(merged)
	if err := sidecar.Write(path, p.cfg.MetadataDir, merged); err != nil {
		return nil, false, fmt.Errorf("processMetadataUpdate: write sidecar: %w", err)
	}

	zero := 0
	probe, found, err := p.store.GetPayload(ctx, identity.PointID(path, &zero))
	if err != nil {
		return nil, false, fmt.Errorf("processMetadataUpdate: probe: %w", err)
	}
	if !found {
		return merged, false, nil
	}
	total := totalChunksOf(probe, 1)
	ids := make([]uuid.UUID, total)
	for i := 0; i < total; i++ {
		idx := i
		ids[i] = identity.PointID(path, &idx)
	}
	if err := p.store.SetPayload(ctx, ids, merged); err != nil {
		return nil, false, fmt.Errorf("processMetadataUpdate: set payload: %w", err)
	}
	return merged, true, nil
}

// ProcessRulesUpdate rebuilds a file's inferred+enrichment metadata (without
// hashing, chunking, or re-embedding) and writes it across every existing
// chunk's payload. It is a no-op returning (nil, false, nil) if the file has
// no indexed points.
func (p *Processor) ProcessRulesUpdate(ctx context.Context, path string) (map[string]any, bool, error) {
	zero := 0
	probe, found, err := p.store.GetPayload(ctx, identity.PointID(path, &zero))
	if err != nil {
		return nil, false, fmt.Errorf("processRulesUpdate: probe: %w", err)
	}
	if !found {
		return nil, false, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, false, fmt.Errorf("processRulesUpdate: stat: %w", err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, false, fmt.Errorf("processRulesUpdate: read: %w", err)
	}
	res, err := extract.File(path, content)
	if err != nil {
		return nil, false, fmt.Errorf("processRulesUpdate: extract: %w", err)
	}

	attrs := fileAttributes(path, info, res)
	inferred := p.rules.Evaluate(attrs)
	enrichment := sidecar.Read(path, p.cfg.MetadataDir)
	metadata := mergeMaps(inferred, enrichment)

	total := totalChunksOf(probe, 1)
	ids := make([]uuid.UUID, total)
	for i := 0; i < total; i++ {
		idx := i
		ids[i] = identity.PointID(path, &idx)
	}
	if err := p.store.SetPayload(ctx, ids, metadata); err != nil {
		return nil, false, fmt.Errorf("processRulesUpdate: set payload: %w", err)
	}
	return metadata, true, nil
}

func fileAttributes(path string, info os.FileInfo, res extract.Result) rules.Attributes {
	return rules.Attributes{
		Path:        identity.ForwardSlash(path),
		Dir:         identity.ForwardSlash(filepath.Dir(path)),
		Filename:    filepath.Base(path),
		Extension:   strings.ToLower(filepath.Ext(path)),
		SizeBytes:   info.Size(),
		ModifiedAt:  info.ModTime(),
		Frontmatter: res.Frontmatter,
		Structured:  res.Structured,
	}
}

// mergeMaps overlays b onto a, with b winning on key conflict. Either
// argument may be nil.
func mergeMaps(a, b map[string]any) map[string]any {
	out := make(map[string]any, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}

func stripReserved(m map[string]any) {
	for k := range ReservedKeys {
		delete(m, k)
	}
}

func totalChunksOf(payload map[string]any, fallback int) int {
	switch v := payload["total_chunks"].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return fallback
	}
}

