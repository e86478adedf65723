// Package sqlite is a vector store persisted in a single SQLite file. Search
// is an exact cosine scan over the collection, which is fast enough for the
// few thousand chunks a document folder produces.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/sevigo/medrag/embeddings"
	"github.com/sevigo/medrag/schema"
	"github.com/sevigo/medrag/vectorstores"
)

var ErrDimensionMismatch = errors.New("sqlite: embedding dimension does not match collection")

const schemaSQL = `
CREATE TABLE IF NOT EXISTS collections (
	name TEXT PRIMARY KEY,
	dimension INTEGER NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	collection TEXT NOT NULL REFERENCES collections(name) ON DELETE CASCADE,
	content TEXT NOT NULL,
	metadata TEXT NOT NULL,
	embedding BLOB NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents(collection);
`

type Store struct {
	db             *sql.DB
	path           string
	collectionName string
	embedder       embeddings.Embedder
	logger         *slog.Logger
}

var (
	_ vectorstores.VectorStore       = (*Store)(nil)
	_ vectorstores.Deleter           = (*Store)(nil)
	_ vectorstores.Counter           = (*Store)(nil)
	_ vectorstores.CollectionManager = (*Store)(nil)
	_ vectorstores.MetadataLister    = (*Store)(nil)
)

// New opens (creating when needed) the index at the configured path.
func New(ctx context.Context, opts ...Option) (*Store, error) {
	o := parseOptions(opts...)
	if o.embedder == nil {
		return nil, vectorstores.ErrMissingEmbedder
	}

	dsn := o.path
	if o.path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(o.path), 0o755); err != nil {
			return nil, fmt.Errorf("create index directory: %w", err)
		}
		dsn = o.path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	// One writer keeps SQLite from returning SQLITE_BUSY under concurrent ingest.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping index: %w", err)
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	s := &Store{
		db:             db,
		path:           o.path,
		collectionName: o.collectionName,
		embedder:       o.embedder,
		logger:         o.logger.With("component", "sqlite_vectorstore", "collection", o.collectionName),
	}
	s.logger.InfoContext(ctx, "Vector index opened", "path", o.path)
	return s, nil
}

// Exists reports whether an index file is present at path.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) collection(opts vectorstores.Options) string {
	if opts.NameSpace != "" {
		return opts.NameSpace
	}
	return s.collectionName
}

func (s *Store) embedderFor(opts vectorstores.Options) embeddings.Embedder {
	if opts.Embedder != nil {
		return opts.Embedder
	}
	return s.embedder
}

func (s *Store) AddDocuments(ctx context.Context, docs []schema.Document, options ...vectorstores.Option) ([]string, error) {
	if len(docs) == 0 {
		return []string{}, nil
	}
	opts := vectorstores.ParseOptions(options...)
	collection := s.collection(opts)

	start := time.Now()
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.PageContent
	}
	vectors, err := s.embedderFor(opts).EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed documents: %w", err)
	}
	if len(vectors) != len(docs) {
		return nil, fmt.Errorf("embed documents: got %d vectors for %d documents", len(vectors), len(docs))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := ensureCollection(ctx, tx, collection, len(vectors[0])); err != nil {
		return nil, err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO documents (id, collection, content, metadata, embedding, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	ids := make([]string, len(docs))
	for i, doc := range docs {
		if len(vectors[i]) != len(vectors[0]) {
			return nil, fmt.Errorf("document %d: %w", i, ErrDimensionMismatch)
		}
		meta := doc.Metadata
		if meta == nil {
			meta = map[string]any{}
		}
		metaJSON, err := json.Marshal(meta)
		if err != nil {
			return nil, fmt.Errorf("marshal metadata: %w", err)
		}

		ids[i] = uuid.NewString()
		if _, err := stmt.ExecContext(ctx, ids[i], collection, doc.PageContent, string(metaJSON), encodeVector(vectors[i]), now); err != nil {
			return nil, fmt.Errorf("insert document: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit documents: %w", err)
	}

	s.logger.InfoContext(ctx, "Documents added", "count", len(docs), "duration", time.Since(start))
	return ids, nil
}

func ensureCollection(ctx context.Context, tx *sql.Tx, name string, dim int) error {
	var existing int
	err := tx.QueryRowContext(ctx, `SELECT dimension FROM collections WHERE name = ?`, name).Scan(&existing)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = tx.ExecContext(ctx, `INSERT INTO collections (name, dimension, created_at) VALUES (?, ?, ?)`,
			name, dim, time.Now().Unix())
		if err != nil {
			return fmt.Errorf("create collection: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("lookup collection: %w", err)
	case existing != dim:
		return fmt.Errorf("%w: collection %q has %d, got %d", ErrDimensionMismatch, name, existing, dim)
	}
	return nil
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

// SimilaritySearchWithScores ranks documents by cosine similarity to the query.
func (s *Store) SimilaritySearchWithScores(ctx context.Context, query string, numDocuments int, options ...vectorstores.Option) ([]vectorstores.DocumentWithScore, error) {
	if numDocuments <= 0 {
		return nil, vectorstores.ErrInvalidNumDocs
	}
	opts := vectorstores.ParseOptions(options...)
	collection := s.collection(opts)

	found, err := s.collectionExists(ctx, collection)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", vectorstores.ErrCollectionNotFound, collection)
	}

	qv, err := s.embedderFor(opts).EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT content, metadata, embedding FROM documents WHERE collection = ?`, collection)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var results []vectorstores.DocumentWithScore
	for rows.Next() {
		var content, metaJSON string
		var blob []byte
		if err := rows.Scan(&content, &metaJSON, &blob); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}

		var meta map[string]any
		if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
		if !vectorstores.MatchesFilters(meta, opts.Filters) {
			continue
		}

		score := cosine(qv, decodeVector(blob))
		if opts.ScoreThreshold > 0 && score < opts.ScoreThreshold {
			continue
		}
		results = append(results, vectorstores.DocumentWithScore{
			Document: schema.NewDocument(content, meta),
			Score:    score,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > numDocuments {
		results = results[:numDocuments]
	}

	s.logger.DebugContext(ctx, "Similarity search completed", "results", len(results))
	return results, nil
}

// DeleteDocumentsByFilter removes every document whose metadata matches all filters.
func (s *Store) DeleteDocumentsByFilter(ctx context.Context, filters map[string]any, options ...vectorstores.Option) error {
	opts := vectorstores.ParseOptions(options...)
	collection := s.collection(opts)

	rows, err := s.db.QueryContext(ctx, `SELECT id, metadata FROM documents WHERE collection = ?`, collection)
	if err != nil {
		return fmt.Errorf("query documents: %w", err)
	}

	var ids []string
	for rows.Next() {
		var id, metaJSON string
		if err := rows.Scan(&id, &metaJSON); err != nil {
			rows.Close()
			return fmt.Errorf("scan document: %w", err)
		}
		var meta map[string]any
		if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
			rows.Close()
			return fmt.Errorf("decode metadata: %w", err)
		}
		if vectorstores.MatchesFilters(meta, filters) {
			ids = append(ids, id)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate documents: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete document: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}

	s.logger.InfoContext(ctx, "Documents deleted", "count", len(ids), "filters", filters)
	return nil
}

// MetadataValues returns the distinct string values of key in the collection.
func (s *Store) MetadataValues(ctx context.Context, key string, options ...vectorstores.Option) ([]string, error) {
	opts := vectorstores.ParseOptions(options...)
	rows, err := s.db.QueryContext(ctx, `SELECT metadata FROM documents WHERE collection = ?`, s.collection(opts))
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]struct{})
	for rows.Next() {
		var metaJSON string
		if err := rows.Scan(&metaJSON); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		var meta map[string]any
		if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
		if v, ok := meta[key].(string); ok {
			seen[v] = struct{}{}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}

	values := make([]string, 0, len(seen))
	for v := range seen {
		values = append(values, v)
	}
	sort.Strings(values)
	return values, nil
}

func (s *Store) CountDocuments(ctx context.Context, options ...vectorstores.Option) (int, error) {
	opts := vectorstores.ParseOptions(options...)
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE collection = ?`, s.collection(opts)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

func (s *Store) ListCollections(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM collections ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan collection: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *Store) CollectionInfo(ctx context.Context, name string) (*schema.CollectionInfo, error) {
	var dim uint64
	err := s.db.QueryRowContext(ctx, `SELECT dimension FROM collections WHERE name = ?`, name).Scan(&dim)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", vectorstores.ErrCollectionNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup collection: %w", err)
	}

	var count uint64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE collection = ?`, name).Scan(&count); err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}

	return &schema.CollectionInfo{
		Name:           name,
		PointsCount:    count,
		VectorSize:     dim,
		VectorDistance: "Cosine",
	}, nil
}

func (s *Store) DeleteCollection(ctx context.Context, name string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE collection = ?`, name); err != nil {
		return fmt.Errorf("delete documents: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM collections WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", vectorstores.ErrCollectionNotFound, name)
	}
	return tx.Commit()
}

func (s *Store) collectionExists(ctx context.Context, name string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM collections WHERE name = ?`, name).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup collection: %w", err)
	}
	return true, nil
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v
}

func cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
