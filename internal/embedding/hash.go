package embedding

import (
	"context"
	"hash/fnv"
	"math"
)

// HashEmbedder is a deterministic embedding stub: it hashes overlapping
// byte 3-grams of the input into a fixed-size vector, optionally L2
// normalized. It requires no network access, making it suitable for tests
// and as the zero-config default.
type HashEmbedder struct {
	dim       int
	normalize bool
	seed      uint64
}

// NewHashEmbedder returns a deterministic embedder producing dim-length
// vectors seeded by seed.
func NewHashEmbedder(dim int, normalize bool, seed uint64) *HashEmbedder {
	if dim <= 0 {
		dim = 256
	}
	return &HashEmbedder{dim: dim, normalize: normalize, seed: seed}
}

func (h *HashEmbedder) Name() string      { return "hash-stub" }
func (h *HashEmbedder) Dimension() int    { return h.dim }
func (h *HashEmbedder) Ping(context.Context) error { return nil }

func (h *HashEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = h.embedOne(t)
	}
	return out, nil
}

func (h *HashEmbedder) embedOne(s string) []float32 {
	v := make([]float32, h.dim)
	b := []byte(s)
	const gramSize = 3
	if len(b) < gramSize {
		addGram(h.seed, b, v)
	} else {
		for i := 0; i+gramSize <= len(b); i++ {
			addGram(h.seed, b[i:i+gramSize], v)
		}
	}
	if h.normalize {
		normalize(v)
	}
	return v
}

func addGram(seed uint64, gram []byte, v []float32) {
	hasher := fnv.New64a()
	var seedBytes [8]byte
	for i := 0; i < 8; i++ {
		seedBytes[i] = byte(seed >> (8 * i))
	}
	hasher.Write(seedBytes[:])
	hasher.Write(gram)
	hv := hasher.Sum64()
	idx := int(hv % uint64(len(v)))
	weight := float32(int32(hv>>32)) / float32(1<<31)
	v[idx] += weight
}

func normalize(v []float32) {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if sumSq == 0 {
		return
	}
	norm := float32(math.Sqrt(sumSq))
	for i := range v {
		v[i] /= norm
	}
}
