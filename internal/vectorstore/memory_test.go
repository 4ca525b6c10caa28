package vectorstore

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestMemoryStoreUpsertGetDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(4)

	id := uuid.New()
	if err := s.Upsert(ctx, []Point{{ID: id, Vector: []float32{1, 0, 0, 0}, Payload: map[string]any{"k": "v"}}}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	payload, ok, err := s.GetPayload(ctx, id)
	if err != nil || !ok {
		t.Fatalf("get payload: ok=%v err=%v", ok, err)
	}
	if payload["k"] != "v" {
		t.Fatalf("payload = %v", payload)
	}

	if err := s.Delete(ctx, []uuid.UUID{id}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := s.GetPayload(ctx, id); ok {
		t.Fatal("expected point to be gone after delete")
	}
}

func TestMemoryStoreSetPayloadMerges(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(2)
	id := uuid.New()
	_ = s.Upsert(ctx, []Point{{ID: id, Vector: []float32{1, 0}, Payload: map[string]any{"a": 1}}})

	if err := s.SetPayload(ctx, []uuid.UUID{id}, map[string]any{"b": 2}); err != nil {
		t.Fatalf("set payload: %v", err)
	}
	payload, _, _ := s.GetPayload(ctx, id)
	if payload["a"] != 1 || payload["b"] != 2 {
		t.Fatalf("payload = %v", payload)
	}
}

func TestMemoryStoreCollectionInfoInfersSchema(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(3)
	_ = s.Upsert(ctx, []Point{
		{ID: uuid.New(), Vector: []float32{0, 0, 0}, Payload: map[string]any{"count": 5, "flag": true, "tags": []any{"a"}}},
	})

	info, err := s.CollectionInfo(ctx)
	if err != nil {
		t.Fatalf("collection info: %v", err)
	}
	if info.PointCount != 1 || info.Dimensions != 3 {
		t.Fatalf("info = %+v", info)
	}
	if info.PayloadField["count"] != FieldInteger || info.PayloadField["flag"] != FieldBool || info.PayloadField["tags"] != FieldKeywordArray {
		t.Fatalf("payload fields = %v", info.PayloadField)
	}
}
