package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"jeeveswatcher/internal/embedding"
	"jeeveswatcher/internal/processor"
	"jeeveswatcher/internal/rules"
	"jeeveswatcher/internal/vectorstore"
)

type staticFiles struct {
	paths []string
}

func (f staticFiles) WatchedFiles(ctx context.Context) ([]string, error) {
	return f.paths, nil
}

func newTestServer(t *testing.T, files []string) (*Server, *vectorstore.MemoryStore, string) {
	t.Helper()
	dir := t.TempDir()
	store := vectorstore.NewMemoryStore(64)
	embedder := embedding.NewHashEmbedder(64, true, 1)
	proc := processor.New(processor.Config{MetadataDir: filepath.Join(dir, ".meta")}, rules.NewTable(), embedder, store)
	return NewServer(proc, store, embedder, staticFiles{paths: files}), store, dir
}

func TestHandleStatusReturnsCollectionInfo(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "ok", resp.Status)
	require.Equal(t, "memory", resp.Collection.Name)
	require.Equal(t, 64, resp.Collection.Dimensions)
}

func TestHandleMetadataWritesSidecarAndOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.txt")
	require.NoError(t, writeFile(path, "some content"))

	srv, _, _ := newTestServer(t, []string{path})
	if err := srv.Processor.ProcessFile(context.Background(), path); err != nil {
		t.Fatalf("processFile: %v", err)
	}

	body, _ := json.Marshal(metadataRequest{Path: path, Metadata: map[string]any{"domain": "ops"}})
	req := httptest.NewRequest(http.MethodPost, "/metadata", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleReindexProcessesWatchedFiles(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	b := filepath.Join(dir, "b.txt")
	require.NoError(t, writeFile(a, "alpha content here"))
	require.NoError(t, writeFile(b, "beta content here"))

	srv, _, _ := newTestServer(t, []string{a, b})

	req := httptest.NewRequest(http.MethodPost, "/reindex", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, true, resp["ok"])
	require.EqualValues(t, 2, resp["filesIndexed"])
}

func TestHandleConfigReindexReturnsStartedImmediately(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)

	body, _ := json.Marshal(configReindexRequest{Scope: "full"})
	req := httptest.NewRequest(http.MethodPost, "/config-reindex", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "started", resp["status"])
	require.Equal(t, "full", resp["scope"])
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}
