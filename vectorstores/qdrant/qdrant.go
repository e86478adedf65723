// Package qdrant stores documents in a Qdrant collection over gRPC.
package qdrant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/sevigo/medrag/embeddings"
	"github.com/sevigo/medrag/schema"
	"github.com/sevigo/medrag/vectorstores"
)

var (
	ErrMissingEmbedder     = errors.New("qdrant: embedder is required but not provided")
	ErrInvalidNumDocuments = errors.New("qdrant: number of documents must be positive")
	ErrEmptyFilter         = errors.New("qdrant: cannot delete with an empty filter")
)

type Store struct {
	client         *qdrant.Client
	embedder       embeddings.Embedder
	collectionName string
	logger         *slog.Logger
	options        options
}

var (
	_ vectorstores.VectorStore       = (*Store)(nil)
	_ vectorstores.Deleter           = (*Store)(nil)
	_ vectorstores.Counter           = (*Store)(nil)
	_ vectorstores.CollectionManager = (*Store)(nil)
	_ vectorstores.MetadataLister    = (*Store)(nil)
)

func New(opts ...Option) (*Store, error) {
	o, err := parseOptions(opts...)
	if err != nil {
		return nil, err
	}
	logger := o.logger.With("component", "qdrant_store", "collection", o.collectionName)

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   o.host,
		Port:   o.port,
		APIKey: o.apiKey,
		UseTLS: o.useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Qdrant client: %w", err)
	}

	logger.Info("Qdrant store initialized", "config", o.String())
	return &Store{
		client:         client,
		embedder:       o.embedder,
		collectionName: o.collectionName,
		logger:         logger,
		options:        o,
	}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

// AddDocuments embeds docs and upserts them in concurrent batches. The
// collection is created on first use with the embedder's dimension.
func (s *Store) AddDocuments(ctx context.Context, docs []schema.Document, options ...vectorstores.Option) ([]string, error) {
	if len(docs) == 0 {
		return []string{}, nil
	}
	start := time.Now()
	opts := vectorstores.ParseOptions(options...)
	collectionName := s.getCollectionName(opts)
	embedder := s.getEmbedder(opts)

	if err := s.ensureCollection(ctx, collectionName, embedder); err != nil {
		return nil, fmt.Errorf("collection preparation failed: %w", err)
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.PageContent
	}
	vectors, err := embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("document embedding failed: %w", err)
	}
	if len(vectors) != len(docs) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d documents", len(vectors), len(docs))
	}

	points := make([]*qdrant.PointStruct, len(docs))
	ids := make([]string, len(docs))
	for i, doc := range docs {
		ids[i] = uuid.NewString()
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(ids[i]),
			Vectors: qdrant.NewVectorsDense(vectors[i]),
			Payload: documentToPayload(doc),
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.options.maxConcurrency)
	for batch := range slices.Chunk(points, s.options.batchSize) {
		g.Go(func() error {
			return s.upsertWithRetry(gctx, collectionName, batch)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Documents added", "count", len(docs), "duration", time.Since(start))
	return ids, nil
}

func (s *Store) upsertWithRetry(ctx context.Context, collectionName string, points []*qdrant.PointStruct) error {
	var lastErr error
	delay := s.options.retryDelay

	for attempt := 0; attempt <= s.options.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			delay = min(time.Duration(float64(delay)*1.5), s.options.maxRetryDelay)
		}

		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: collectionName,
			Wait:           qdrant.PtrOf(true),
			Points:         points,
		})
		if err == nil {
			return nil
		}
		lastErr = err
		s.logger.WarnContext(ctx, "Upsert batch failed", "attempt", attempt+1, "error", err)
	}
	return fmt.Errorf("upsert failed after %d attempts: %w", s.options.retryAttempts+1, lastErr)
}

func (s *Store) SimilaritySearch(ctx context.Context, query string, numDocuments int, options ...vectorstores.Option) ([]schema.Document, error) {
	scored, err := s.SimilaritySearchWithScores(ctx, query, numDocuments, options...)
	if err != nil {
		return nil, err
	}
	docs := make([]schema.Document, len(scored))
	for i, d := range scored {
		docs[i] = d.Document
	}
	return docs, nil
}

func (s *Store) SimilaritySearchWithScores(ctx context.Context, query string, numDocuments int, options ...vectorstores.Option) ([]vectorstores.DocumentWithScore, error) {
	if strings.TrimSpace(query) == "" {
		return []vectorstores.DocumentWithScore{}, nil
	}
	if numDocuments <= 0 {
		return nil, ErrInvalidNumDocuments
	}

	start := time.Now()
	opts := vectorstores.ParseOptions(options...)
	collectionName := s.getCollectionName(opts)

	queryVector, err := s.getEmbedder(opts).EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	req := &qdrant.SearchPoints{
		CollectionName: collectionName,
		Vector:         queryVector,
		Limit:          uint64(numDocuments),
		WithPayload:    qdrant.NewWithPayload(true),
		Filter:         buildQdrantFilter(opts.Filters),
	}
	if opts.ScoreThreshold > 0 {
		req.ScoreThreshold = qdrant.PtrOf(opts.ScoreThreshold)
	}

	resp, err := s.client.GetPointsClient().Search(ctx, req)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", vectorstores.ErrCollectionNotFound, collectionName)
		}
		s.logger.ErrorContext(ctx, "Search failed", "error", err)
		return nil, fmt.Errorf("qdrant search failed: %w", err)
	}

	results := resp.GetResult()
	out := make([]vectorstores.DocumentWithScore, len(results))
	for i, point := range results {
		out[i] = vectorstores.DocumentWithScore{
			Document: payloadToDocument(point.GetPayload()),
			Score:    point.GetScore(),
		}
	}

	s.logger.DebugContext(ctx, "Similarity search completed", "results", len(out), "duration", time.Since(start))
	return out, nil
}

func (s *Store) DeleteDocumentsByFilter(ctx context.Context, filters map[string]any, options ...vectorstores.Option) error {
	opts := vectorstores.ParseOptions(options...)
	collectionName := s.getCollectionName(opts)

	filter := buildQdrantFilter(filters)
	if filter == nil {
		return ErrEmptyFilter
	}

	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collectionName,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelectorFilter(filter),
	})
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to delete documents by filter: %w", err)
	}
	s.logger.InfoContext(ctx, "Documents deleted by filter", "filter_keys", slices.Sorted(maps.Keys(filters)))
	return nil
}

func (s *Store) CountDocuments(ctx context.Context, options ...vectorstores.Option) (int, error) {
	opts := vectorstores.ParseOptions(options...)
	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.getCollectionName(opts),
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		if isNotFound(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("qdrant count failed: %w", err)
	}
	return int(n), nil
}

// MetadataValues facets the collection on key. Faceting needs a keyword
// index, which is created on demand.
func (s *Store) MetadataValues(ctx context.Context, key string, options ...vectorstores.Option) ([]string, error) {
	opts := vectorstores.ParseOptions(options...)
	collection := s.getCollectionName(opts)

	_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: collection,
		FieldName:      key,
		FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("qdrant index %s failed: %w", key, err)
	}

	hits, err := s.client.Facet(ctx, &qdrant.FacetCounts{
		CollectionName: collection,
		Key:            key,
		Limit:          qdrant.PtrOf(uint64(maxFacetValues)),
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant facet %s failed: %w", key, err)
	}

	values := make([]string, 0, len(hits))
	for _, hit := range hits {
		if v := hit.GetValue().GetStringValue(); v != "" {
			values = append(values, v)
		}
	}
	slices.Sort(values)
	return values, nil
}

func (s *Store) ListCollections(ctx context.Context) ([]string, error) {
	names, err := s.client.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list qdrant collections: %w", err)
	}
	return names, nil
}

func (s *Store) CollectionInfo(ctx context.Context, name string) (*schema.CollectionInfo, error) {
	info, err := s.client.GetCollectionInfo(ctx, name)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", vectorstores.ErrCollectionNotFound, name)
		}
		return nil, fmt.Errorf("failed to get collection info: %w", err)
	}

	params := info.GetConfig().GetParams().GetVectorsConfig().GetParams()
	return &schema.CollectionInfo{
		Name:           name,
		PointsCount:    info.GetPointsCount(),
		VectorSize:     params.GetSize(),
		VectorDistance: params.GetDistance().String(),
	}, nil
}

func (s *Store) DeleteCollection(ctx context.Context, name string) error {
	if err := s.client.DeleteCollection(ctx, name); err != nil {
		if isNotFound(err) {
			return fmt.Errorf("%w: %s", vectorstores.ErrCollectionNotFound, name)
		}
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	s.logger.InfoContext(ctx, "Collection deleted", "name", name)
	return nil
}

// Health checks that the server answers.
func (s *Store) Health(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant health check failed: %w", err)
	}
	return nil
}

func (s *Store) getCollectionName(opts vectorstores.Options) string {
	if opts.NameSpace != "" {
		return opts.NameSpace
	}
	return s.collectionName
}

func (s *Store) getEmbedder(opts vectorstores.Options) embeddings.Embedder {
	if opts.Embedder != nil {
		return opts.Embedder
	}
	return s.embedder
}

func (s *Store) ensureCollection(ctx context.Context, name string, embedder embeddings.Embedder) error {
	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	dimension, err := embedder.GetDimension(ctx)
	if err != nil {
		return fmt.Errorf("could not get embedder dimension: %w", err)
	}

	s.logger.InfoContext(ctx, "Creating collection", "dimension", dimension)
	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create qdrant collection: %w", err)
	}
	return nil
}

func isNotFound(err error) bool {
	st, ok := status.FromError(err)
	return ok && st.Code() == codes.NotFound
}

func documentToPayload(doc schema.Document) map[string]*qdrant.Value {
	payload := make(map[string]*qdrant.Value, len(doc.Metadata)+1)
	payload[contentKey] = qdrant.NewValueString(doc.PageContent)
	for key, value := range doc.Metadata {
		payload[key] = toQdrantValue(value)
	}
	return payload
}

func toQdrantValue(value any) *qdrant.Value {
	switch v := value.(type) {
	case string:
		return qdrant.NewValueString(v)
	case int:
		return qdrant.NewValueInt(int64(v))
	case int32:
		return qdrant.NewValueInt(int64(v))
	case int64:
		return qdrant.NewValueInt(v)
	case float32:
		return qdrant.NewValueDouble(float64(v))
	case float64:
		return qdrant.NewValueDouble(v)
	case bool:
		return qdrant.NewValueBool(v)
	case []string:
		values := make([]*qdrant.Value, len(v))
		for i, str := range v {
			values[i] = qdrant.NewValueString(str)
		}
		return qdrant.NewValueFromList(values...)
	case nil:
		return qdrant.NewValueNull()
	default:
		return qdrant.NewValueString(fmt.Sprintf("%v", v))
	}
}

func payloadToDocument(payload map[string]*qdrant.Value) schema.Document {
	doc := schema.NewDocument("", nil)
	for key, value := range payload {
		if key == contentKey {
			doc.PageContent = value.GetStringValue()
			continue
		}
		if v := fromQdrantValue(value); v != nil {
			doc.Metadata[key] = v
		}
	}
	return doc
}

func fromQdrantValue(value *qdrant.Value) any {
	switch v := value.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return v.StringValue
	case *qdrant.Value_IntegerValue:
		return v.IntegerValue
	case *qdrant.Value_DoubleValue:
		return v.DoubleValue
	case *qdrant.Value_BoolValue:
		return v.BoolValue
	case *qdrant.Value_ListValue:
		list := make([]any, len(v.ListValue.GetValues()))
		for i, val := range v.ListValue.GetValues() {
			list[i] = fromQdrantValue(val)
		}
		return list
	default:
		return nil
	}
}

// buildQdrantFilter turns exact-match filters into a Must filter. Whole
// float64 values are matched as integers since that is how JSON numbers
// arrive.
func buildQdrantFilter(filters map[string]any) *qdrant.Filter {
	if len(filters) == 0 {
		return nil
	}

	keys := slices.Sorted(maps.Keys(filters))
	conditions := make([]*qdrant.Condition, 0, len(filters))
	for _, key := range keys {
		switch v := filters[key].(type) {
		case string:
			conditions = append(conditions, qdrant.NewMatchKeyword(key, v))
		case int:
			conditions = append(conditions, qdrant.NewMatchInt(key, int64(v)))
		case int64:
			conditions = append(conditions, qdrant.NewMatchInt(key, v))
		case float64:
			if v != math.Trunc(v) {
				slog.Warn("Non-integer float filters are not supported", "key", key)
				continue
			}
			conditions = append(conditions, qdrant.NewMatchInt(key, int64(v)))
		case bool:
			conditions = append(conditions, qdrant.NewMatchBool(key, v))
		case []string:
			conditions = append(conditions, qdrant.NewMatchKeywords(key, v...))
		default:
			slog.Warn("Unsupported filter type for key", "key", key, "type", fmt.Sprintf("%T", v))
		}
	}
	if len(conditions) == 0 {
		return nil
	}
	return &qdrant.Filter{Must: conditions}
}
