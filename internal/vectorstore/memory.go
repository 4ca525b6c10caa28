package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store fake used by tests and as the
// zero-config default, mirroring the corpus's pattern of pairing a
// production backend with a map-backed test double behind the same
// interface.
type MemoryStore struct {
	dimensions int

	mu     sync.RWMutex
	points map[uuid.UUID]Point
	order  []uuid.UUID
}

// NewMemoryStore returns an empty MemoryStore bound to dimensions (0 means
// unconstrained, accepting vectors of any length).
func NewMemoryStore(dimensions int) *MemoryStore {
	return &MemoryStore{dimensions: dimensions, points: map[uuid.UUID]Point{}}
}

func (m *MemoryStore) EnsureCollection(context.Context) error { return nil }

func (m *MemoryStore) Upsert(_ context.Context, points []Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range points {
		if m.dimensions > 0 && len(p.Vector) != m.dimensions {
			return fmt.Errorf("vectorstore: vector length %d does not match dimensions %d", len(p.Vector), m.dimensions)
		}
	}
	for _, p := range points {
		if _, exists := m.points[p.ID]; !exists {
			m.order = append(m.order, p.ID)
		}
		payload := make(map[string]any, len(p.Payload))
		for k, v := range p.Payload {
			payload[k] = v
		}
		vector := append([]float32{}, p.Vector...)
		m.points[p.ID] = Point{ID: p.ID, Vector: vector, Payload: payload}
	}
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, ids []uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.points, id)
	}
	m.order = removeMissing(m.order, m.points)
	return nil
}

func removeMissing(order []uuid.UUID, points map[uuid.UUID]Point) []uuid.UUID {
	out := order[:0]
	for _, id := range order {
		if _, ok := points[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

func (m *MemoryStore) SetPayload(_ context.Context, ids []uuid.UUID, payload map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		p, ok := m.points[id]
		if !ok {
			continue
		}
		for k, v := range payload {
			p.Payload[k] = v
		}
		m.points[id] = p
	}
	return nil
}

func (m *MemoryStore) GetPayload(_ context.Context, id uuid.UUID) (map[string]any, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.points[id]
	if !ok {
		return nil, false, nil
	}
	out := make(map[string]any, len(p.Payload))
	for k, v := range p.Payload {
		out[k] = v
	}
	return out, true, nil
}

func (m *MemoryStore) Search(_ context.Context, vector []float32, limit int, filter map[string]any) ([]SearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var results []SearchResult
	for _, id := range m.order {
		p := m.points[id]
		if !matchesFilter(p.Payload, filter) {
			continue
		}
		results = append(results, SearchResult{ID: id, Score: cosineSimilarity(vector, p.Vector), Payload: p.Payload})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (m *MemoryStore) Scroll(_ context.Context, filter map[string]any, pageSize int, offset string) (ScrollPage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if pageSize <= 0 {
		pageSize = 100
	}
	start := 0
	if offset != "" {
		for i, id := range m.order {
			if id.String() == offset {
				start = i + 1
				break
			}
		}
	}
	var page ScrollPage
	for i := start; i < len(m.order) && len(page.Points) < pageSize; i++ {
		id := m.order[i]
		p := m.points[id]
		if !matchesFilter(p.Payload, filter) {
			continue
		}
		page.Points = append(page.Points, IDPayload{ID: id, Payload: p.Payload})
	}
	if start+pageSize < len(m.order) {
		page.NextOffset = m.order[minInt(start+pageSize, len(m.order))-1].String()
	}
	return page, nil
}

func (m *MemoryStore) CollectionInfo(ctx context.Context) (CollectionInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sample := make([]IDPayload, 0, minInt(100, len(m.order)))
	for i := 0; i < len(m.order) && i < 100; i++ {
		id := m.order[i]
		sample = append(sample, IDPayload{ID: id, Payload: m.points[id].Payload})
	}
	return CollectionInfo{
		Name:         "memory",
		PointCount:   uint64(len(m.points)),
		Dimensions:   m.dimensions,
		PayloadField: inferSchema(sample),
	}, nil
}

func (m *MemoryStore) Close() error { return nil }

func matchesFilter(payload map[string]any, filter map[string]any) bool {
	for k, v := range filter {
		if payload[k] != v {
			return false
		}
	}
	return true
}

func cosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
