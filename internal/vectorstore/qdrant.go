package vectorstore

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// QdrantStore implements Store against a Qdrant collection, adapted from
// the corpus's qdrant_vector.go: same DSN parsing, same config-from-URL
// client construction, same cosine-distance collection creation. Unlike the
// teacher (which hashes arbitrary string ids into a UUID), point ids here
// are already v5 UUIDs computed by internal/identity, so no id translation
// is needed.
type QdrantStore struct {
	client     *qdrant.Client
	collection string
	dimensions int
}

// NewQdrantStore parses dsn (a "grpc://host:port?api_key=..." or plain
// "host:port" form) and returns a store bound to collection. It does not
// create the collection; call EnsureCollection for that.
func NewQdrantStore(dsn, collection string, dimensions int) (*QdrantStore, error) {
	if collection == "" {
		return nil, fmt.Errorf("vectorstore: collection name is required")
	}
	if !strings.Contains(dsn, "://") {
		dsn = "grpc://" + dsn
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: parse qdrant dsn: %w", err)
	}
	host := parsed.Hostname()
	if host == "" {
		host = "localhost"
	}
	port := parsed.Port()
	if port == "" {
		port = "6334"
	}
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: invalid port in qdrant dsn: %w", err)
	}
	cfg := &qdrant.Config{Host: host, Port: portNum}
	if parsed.Scheme == "https" || parsed.Scheme == "grpcs" {
		cfg.UseTLS = true
	}
	if apiKey := parsed.Query().Get("api_key"); apiKey != "" {
		cfg.APIKey = apiKey
	}
	client, err := qdrant.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: create qdrant client: %w", err)
	}
	return &QdrantStore{client: client, collection: collection, dimensions: dimensions}, nil
}

func (q *QdrantStore) EnsureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("check collection exists: %w", err)
	}
	if exists {
		return nil
	}
	if q.dimensions <= 0 {
		return fmt.Errorf("vectorstore: dimensions must be > 0 to create a collection")
	}
	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(q.dimensions),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	return nil
}

func (q *QdrantStore) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	qpoints := make([]*qdrant.PointStruct, len(points))
	for i, p := range points {
		qpoints[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(p.ID.String()),
			Vectors: qdrant.NewVectorsDense(p.Vector),
			Payload: qdrant.NewValueMap(p.Payload),
		}
	}
	wait := true
	return withRetry(ctx, defaultRetry, func() error {
		_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: q.collection,
			Points:         qpoints,
			Wait:           &wait,
		})
		return err
	})
}

func (q *QdrantStore) Delete(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	qids := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		qids[i] = qdrant.NewIDUUID(id.String())
	}
	wait := true
	return withRetry(ctx, defaultRetry, func() error {
		_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
			CollectionName: q.collection,
			Points:         qdrant.NewPointsSelector(qids...),
			Wait:           &wait,
		})
		return err
	})
}

func (q *QdrantStore) SetPayload(ctx context.Context, ids []uuid.UUID, payload map[string]any) error {
	if len(ids) == 0 {
		return nil
	}
	qids := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		qids[i] = qdrant.NewIDUUID(id.String())
	}
	wait := true
	_, err := q.client.SetPayload(ctx, &qdrant.SetPayloadPoints{
		CollectionName: q.collection,
		Payload:        qdrant.NewValueMap(payload),
		PointsSelector: qdrant.NewPointsSelector(qids...),
		Wait:           &wait,
	})
	return err
}

func (q *QdrantStore) GetPayload(ctx context.Context, id uuid.UUID) (map[string]any, bool, error) {
	withPayload := qdrant.NewWithPayload(true)
	points, err := q.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: q.collection,
		Ids:            []*qdrant.PointId{qdrant.NewIDUUID(id.String())},
		WithPayload:    withPayload,
	})
	if err != nil {
		// Per contract, transport errors collapse to "absent" so the
		// processor's unchanged? probe degrades to "reindex it".
		return nil, false, nil
	}
	if len(points) == 0 {
		return nil, false, nil
	}
	return valueMapToAny(points[0].GetPayload()), true, nil
}

func (q *QdrantStore) Search(ctx context.Context, vector []float32, limit int, filter map[string]any) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 10
	}
	limit64 := uint64(limit)
	hits, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQueryDense(vector),
		Limit:          &limit64,
		Filter:         buildFilter(filter),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	out := make([]SearchResult, len(hits))
	for i, h := range hits {
		out[i] = SearchResult{
			ID:      parseUUID(h.GetId()),
			Score:   float64(h.GetScore()),
			Payload: valueMapToAny(h.GetPayload()),
		}
	}
	return out, nil
}

func (q *QdrantStore) Scroll(ctx context.Context, filter map[string]any, pageSize int, offset string) (ScrollPage, error) {
	if pageSize <= 0 {
		pageSize = 100
	}
	limit32 := uint32(pageSize)
	req := &qdrant.ScrollPoints{
		CollectionName: q.collection,
		Filter:         buildFilter(filter),
		Limit:          &limit32,
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if offset != "" {
		req.Offset = qdrant.NewIDUUID(offset)
	}
	points, err := q.client.Scroll(ctx, req)
	if err != nil {
		return ScrollPage{}, fmt.Errorf("scroll: %w", err)
	}
	page := ScrollPage{Points: make([]IDPayload, len(points))}
	for i, p := range points {
		page.Points[i] = IDPayload{ID: parseUUID(p.GetId()), Payload: valueMapToAny(p.GetPayload())}
	}
	if len(points) == int(limit32) {
		page.NextOffset = page.Points[len(page.Points)-1].ID.String()
	}
	return page, nil
}

func (q *QdrantStore) CollectionInfo(ctx context.Context) (CollectionInfo, error) {
	info, err := q.client.GetCollectionInfo(ctx, q.collection)
	if err != nil {
		return CollectionInfo{}, fmt.Errorf("collection info: %w", err)
	}
	out := CollectionInfo{Name: q.collection, Dimensions: q.dimensions}
	if info.GetPointsCount() != 0 {
		out.PointCount = info.GetPointsCount()
	}
	if schema := info.GetPayloadSchema(); len(schema) > 0 {
		out.PayloadField = make(map[string]FieldKind, len(schema))
		for field, s := range schema {
			out.PayloadField[field] = qdrantSchemaKind(s)
		}
	} else {
		out.PayloadField = q.sampleSchema(ctx)
	}
	return out, nil
}

func qdrantSchemaKind(s *qdrant.PayloadSchemaInfo) FieldKind {
	switch s.GetDataType() {
	case qdrant.PayloadSchemaType_Integer:
		return FieldInteger
	case qdrant.PayloadSchemaType_Float:
		return FieldFloat
	case qdrant.PayloadSchemaType_Bool:
		return FieldBool
	case qdrant.PayloadSchemaType_Text:
		return FieldText
	case qdrant.PayloadSchemaType_Keyword:
		return FieldKeyword
	default:
		return FieldKeyword
	}
}

// sampleSchema infers field kinds from up to 100 scrolled points when the
// collection carries no indexed payload schema, per spec §4.F.
func (q *QdrantStore) sampleSchema(ctx context.Context) map[string]FieldKind {
	page, err := q.Scroll(ctx, nil, 100, "")
	if err != nil {
		return map[string]FieldKind{}
	}
	return inferSchema(page.Points)
}

func buildFilter(filter map[string]any) *qdrant.Filter {
	if len(filter) == 0 {
		return nil
	}
	must := make([]*qdrant.Condition, 0, len(filter))
	for k, v := range filter {
		must = append(must, qdrant.NewMatch(k, fmt.Sprintf("%v", v)))
	}
	return &qdrant.Filter{Must: must}
}

func parseUUID(id *qdrant.PointId) uuid.UUID {
	if id == nil {
		return uuid.UUID{}
	}
	s := id.GetUuid()
	if s == "" {
		s = id.String()
	}
	parsed, _ := uuid.Parse(s)
	return parsed
}

func valueMapToAny(vals map[string]*qdrant.Value) map[string]any {
	out := make(map[string]any, len(vals))
	for k, v := range vals {
		out[k] = qdrantValueToAny(v)
	}
	return out
}

func qdrantValueToAny(v *qdrant.Value) any {
	switch kind := v.GetKind().(type) {
	case *qdrant.Value_NullValue:
		return nil
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	case *qdrant.Value_IntegerValue:
		return kind.IntegerValue
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_ListValue:
		out := make([]any, len(kind.ListValue.GetValues()))
		for i, e := range kind.ListValue.GetValues() {
			out[i] = qdrantValueToAny(e)
		}
		return out
	case *qdrant.Value_StructValue:
		return valueMapToAny(kind.StructValue.GetFields())
	default:
		return nil
	}
}

func (q *QdrantStore) Close() error {
	return q.client.Close()
}
