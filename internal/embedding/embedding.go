// Package embedding defines the abstract embedding backend the processor
// depends on, plus two concrete implementations: a deterministic hash-based
// stub for tests and config-free operation, and an HTTP client targeting an
// OpenAI-compatible embeddings endpoint.
package embedding

import "context"

// Embedder computes vector embeddings for text.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Name() string
	Dimension() int
	Ping(ctx context.Context) error
}
