package vectorstore

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/tommyshellberg/personna/internal/contextutil"
	"github.com/tommyshellberg/personna/internal/domain"
)

// QdrantStore implements VectorStore using the Qdrant gRPC client.
type QdrantStore struct {
	client *qdrant.Client
}

// NewQdrantStore connects to Qdrant at the given host and gRPC port
// (typically 6334).
func NewQdrantStore(host string, port int) (*QdrantStore, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}
	return &QdrantStore{client: client}, nil
}

// EnsureCollection creates the collection with cosine distance if it does not
// exist. If it exists, the configured vector size is validated; a mismatch is
// a fatal configuration error, never a silent migration.
func (s *QdrantStore) EnsureCollection(ctx context.Context, name string, dimension int) error {
	logger := contextutil.LoggerFromContext(ctx)

	exists, err := s.CollectionExists(ctx, name)
	if err != nil {
		return err
	}

	if !exists {
		err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: name,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(dimension),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return mapStoreErr("create collection", err)
		}
		logger.InfoContext(ctx, "collection created", "collection", name, "dimension", dimension)
		return nil
	}

	info, err := s.client.GetCollectionInfo(ctx, name)
	if err != nil {
		return mapStoreErr("get collection info", err)
	}

	var actual uint64
	if cfg := info.GetConfig(); cfg != nil && cfg.GetParams() != nil {
		if vc := cfg.GetParams().GetVectorsConfig(); vc != nil {
			if params := vc.GetParams(); params != nil {
				actual = params.GetSize()
			}
		}
	}
	if actual == 0 {
		return fmt.Errorf("collection %s: could not determine vector size", name)
	}
	if int(actual) != dimension {
		return fmt.Errorf("collection %s: %w: expected %d, got %d",
			name, domain.ErrDimensionMismatch, dimension, actual)
	}
	return nil
}

// CollectionExists reports whether the collection has been created.
func (s *QdrantStore) CollectionExists(ctx context.Context, name string) (bool, error) {
	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return false, mapStoreErr("check collection", err)
	}
	return exists, nil
}

// Upsert inserts or overwrites points, keyed by point ID. The write waits for
// durability so a successful return means the points are committed.
func (s *QdrantStore) Upsert(ctx context.Context, collection string, points []Point) error {
	logger := contextutil.LoggerFromContext(ctx)

	if len(points) == 0 {
		return nil
	}

	qdrantPoints := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		qp := &qdrant.PointStruct{
			Id:      qdrant.NewID(p.ID),
			Vectors: qdrant.NewVectors(p.Vector...),
		}
		if len(p.Payload) > 0 {
			qp.Payload = qdrant.NewValueMap(p.Payload)
		}
		qdrantPoints = append(qdrantPoints, qp)
	}

	wait := true
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Wait:           &wait,
		Points:         qdrantPoints,
	})
	if err != nil {
		return mapStoreErr(fmt.Sprintf("upsert %d points into %s", len(points), collection), err)
	}

	logger.DebugContext(ctx, "upserted points", "collection", collection, "count", len(points))
	return nil
}

// Search returns up to limit results ordered by descending cosine similarity.
func (s *QdrantStore) Search(ctx context.Context, collection string, query []float32, limit int, scoreThreshold float32) ([]SearchResult, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("search: limit must be greater than 0")
	}

	l := uint64(limit)
	req := &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(query...),
		Limit:          &l,
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if scoreThreshold > 0 {
		req.ScoreThreshold = &scoreThreshold
	}

	scored, err := s.client.Query(ctx, req)
	if err != nil {
		return nil, mapStoreErr(fmt.Sprintf("search %s", collection), err)
	}

	results := make([]SearchResult, 0, len(scored))
	for _, point := range scored {
		id := ""
		if point.Id != nil {
			id = point.Id.GetUuid()
		}
		payload := make(map[string]any)
		if point.Payload != nil {
			payload = payloadToMap(point.Payload)
		}
		results = append(results, SearchResult{
			ID:      id,
			Score:   point.Score,
			Payload: payload,
		})
	}
	return results, nil
}

// Exists reports whether a point with the given ID is already indexed.
func (s *QdrantStore) Exists(ctx context.Context, collection, id string) (bool, error) {
	points, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: collection,
		Ids:            []*qdrant.PointId{qdrant.NewID(id)},
	})
	if err != nil {
		return false, mapStoreErr(fmt.Sprintf("get point %s", id), err)
	}
	return len(points) > 0, nil
}

// Count returns the exact number of points in the collection.
func (s *QdrantStore) Count(ctx context.Context, collection string) (uint64, error) {
	exact := true
	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: collection,
		Exact:          &exact,
	})
	if err != nil {
		return 0, mapStoreErr(fmt.Sprintf("count %s", collection), err)
	}
	return count, nil
}

// mapStoreErr translates gRPC transport failures into the domain taxonomy.
func mapStoreErr(op string, err error) error {
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled:
		return fmt.Errorf("%s: %w: %v", op, domain.ErrStoreUnavailable, err)
	case codes.NotFound:
		return fmt.Errorf("%s: %w: %v", op, domain.ErrUnknownCollection, err)
	case codes.InvalidArgument:
		return fmt.Errorf("%s: %w: %v", op, domain.ErrInvalidPoint, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

func payloadToMap(payload map[string]*qdrant.Value) map[string]any {
	result := make(map[string]any, len(payload))
	for k, v := range payload {
		if v == nil {
			continue
		}
		result[k] = valueToAny(v)
	}
	return result
}

func valueToAny(v *qdrant.Value) any {
	switch val := v.Kind.(type) {
	case *qdrant.Value_BoolValue:
		return val.BoolValue
	case *qdrant.Value_IntegerValue:
		return val.IntegerValue
	case *qdrant.Value_DoubleValue:
		return val.DoubleValue
	case *qdrant.Value_StringValue:
		return val.StringValue
	case *qdrant.Value_ListValue:
		list := make([]any, len(val.ListValue.Values))
		for i, item := range val.ListValue.Values {
			list[i] = valueToAny(item)
		}
		return list
	case *qdrant.Value_StructValue:
		return payloadToMap(val.StructValue.Fields)
	default:
		return nil
	}
}
