package passages

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hydrolens/hydrolens/internal/db"
	"github.com/hydrolens/hydrolens/internal/domain"
)

const (
	indexName = "hydrolens-passages-idx"
	keyPrefix = domain.KeyPrefix + "passage:"

	fieldRecordID = "record_id"
	fieldSection  = "section"
	fieldContent  = "content"
	fieldVector   = "vector"
)

// store is the consumer interface for the passage index (ISP).
type store interface {
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// HNSWConfig tunes the passage vector index.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Repo runs nearest-neighbor search over indexed passport-text chunks.
type Repo struct {
	store     store
	vectorDim int
	hnsw      HNSWConfig
}

// New creates a passage repository.
func New(s store, vectorDim int) *Repo {
	return &Repo{store: s, vectorDim: vectorDim}
}

// WithHNSW overrides HNSW build parameters.
func (r *Repo) WithHNSW(cfg HNSWConfig) *Repo {
	r.hnsw = cfg
	return r
}

// EnsureIndex creates the passage vector index if absent.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, indexName)
	if err != nil {
		return fmt.Errorf("check passages index: %w", err)
	}
	if exists {
		return nil
	}

	def := db.NewIndex(indexName).
		Prefix(keyPrefix).
		Tag(fieldRecordID).
		Tag(fieldSection).
		Text(fieldContent).
		VectorHNSW(fieldVector, r.vectorDim, db.DistanceCosine, r.hnsw.M, r.hnsw.EFConstruct).
		MustBuild()

	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create passages index: %w", err)
	}
	return nil
}

// Search returns up to k passage hits nearest to the query vector, optionally
// restricted to the given record ids. Scores are cosine similarity in [0,1].
func (r *Repo) Search(
	ctx context.Context, vector []float32, scopeIDs []string, k int,
) ([]domain.PassageHit, error) {
	res, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    indexName,
		Prefilter:    scopeFilter(scopeIDs),
		Vector:       vector,
		K:            k,
		ReturnFields: []string{fieldRecordID, fieldSection, fieldContent, "__vector_score"},
	})
	if err != nil {
		return nil, fmt.Errorf("knn search: %w", err)
	}

	hits := make([]domain.PassageHit, 0, len(res.Entries))
	for _, e := range res.Entries {
		hits = append(hits, domain.PassageHit{
			RecordID: e.Fields[fieldRecordID],
			Section:  e.Fields[fieldSection],
			Content:  e.Fields[fieldContent],
			Score:    e.Score,
		})
	}
	return hits, nil
}

// scopeFilter builds a TAG OR-group prefilter, "" when unscoped. Ids are
// escaped: record ids are hyphenated and a bare "-" breaks TAG parsing.
func scopeFilter(scopeIDs []string) string {
	if len(scopeIDs) == 0 {
		return ""
	}
	escaped := make([]string, len(scopeIDs))
	for i, id := range scopeIDs {
		escaped[i] = db.EscapeTag(id)
	}
	return "@" + fieldRecordID + ":{" + strings.Join(escaped, "|") + "}"
}
