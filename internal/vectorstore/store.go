// Package vectorstore defines the narrow contract the processor depends on
// and provides a Qdrant-backed implementation plus an in-memory fake for
// tests, mirroring the corpus's pattern of pairing a production backend
// with a map-backed test double behind the same interface.
package vectorstore

import (
	"context"

	"github.com/google/uuid"
)

// Point is one (id, vector, payload) tuple to be upserted.
type Point struct {
	ID      uuid.UUID
	Vector  []float32
	Payload map[string]any
}

// SearchResult is one scored hit.
type SearchResult struct {
	ID      uuid.UUID
	Score   float64
	Payload map[string]any
}

// FieldKind is the inferred or indexed type of one payload field, per
// collection_info's discovered payload-field schema.
type FieldKind string

const (
	FieldInteger      FieldKind = "integer"
	FieldFloat        FieldKind = "float"
	FieldBool         FieldKind = "bool"
	FieldKeyword      FieldKind = "keyword"
	FieldText         FieldKind = "text"
	FieldKeywordArray FieldKind = "keyword_array"
)

// CollectionInfo reports the collection name, point count, vector
// dimensions, and discovered payload-field schema.
type CollectionInfo struct {
	Name         string
	PointCount   uint64
	Dimensions   int
	PayloadField map[string]FieldKind
}

// ScrollPage is one page of (id, payload) pairs plus a cursor for the next
// page; an empty NextOffset means the scroll is exhausted.
type ScrollPage struct {
	Points     []IDPayload
	NextOffset string
}

// IDPayload pairs a point id with its full payload.
type IDPayload struct {
	ID      uuid.UUID
	Payload map[string]any
}

// Store is the narrow vector-store client contract the processor depends
// on. Any backend with point/payload semantics can satisfy it.
type Store interface {
	EnsureCollection(ctx context.Context) error
	Upsert(ctx context.Context, points []Point) error
	Delete(ctx context.Context, ids []uuid.UUID) error
	SetPayload(ctx context.Context, ids []uuid.UUID, payload map[string]any) error
	GetPayload(ctx context.Context, id uuid.UUID) (map[string]any, bool, error)
	Search(ctx context.Context, vector []float32, limit int, filter map[string]any) ([]SearchResult, error)
	Scroll(ctx context.Context, filter map[string]any, pageSize int, offset string) (ScrollPage, error)
	CollectionInfo(ctx context.Context) (CollectionInfo, error)
	Close() error
}
