package records

import (
	"context"
	"errors"
	"fmt"

	"github.com/hydrolens/hydrolens/internal/db"
	"github.com/hydrolens/hydrolens/internal/domain"
)

const (
	indexName = "hydrolens-records-idx"
	keyPrefix = domain.KeyPrefix + "record:"
)

// store is the consumer interface for the record repository (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchList(ctx context.Context, index, query string, offset, limit int, fields []string) (*db.SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
}

// Repo reads water-object records from the external registry store.
// The engine consumes it read-only; Put exists for seeding and tests.
type Repo struct {
	store store
}

// New creates a record repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// EnsureIndex creates the FT index over record hashes if absent.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, indexName)
	if err != nil {
		return fmt.Errorf("check records index: %w", err)
	}
	if exists {
		return nil
	}

	def := db.NewIndex(indexName).
		Prefix(keyPrefix).
		Tag(fieldRegion).
		Tag(fieldResourceType).
		Tag(fieldWaterType).
		Tag(fieldPriorityLevel).
		Numeric(fieldCondition).
		Numeric(fieldPassportYear).
		Numeric(fieldPriority).
		MustBuild()

	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create records index: %w", err)
	}
	return nil
}

// Get fetches one record by id.
func (r *Repo) Get(ctx context.Context, id string) (domain.WaterRecord, error) {
	fields, err := r.store.HGetAll(ctx, keyPrefix+id)
	if err != nil {
		return domain.WaterRecord{}, fmt.Errorf("get record %s: %w: %w", id, domain.ErrStoreUnreachable, err)
	}
	// HGETALL on a missing key returns an empty map, not an error.
	if len(fields) == 0 {
		return domain.WaterRecord{}, fmt.Errorf("record %s: %w", id, domain.ErrRecordNotFound)
	}
	return recordFromFields(fields), nil
}

// Query runs a structured attribute lookup. Results are capped at limit and
// ordered by the index (stable for identical filters).
func (r *Repo) Query(ctx context.Context, f domain.Filters, limit int) ([]domain.WaterRecord, error) {
	res, err := r.store.SearchList(ctx, indexName, buildQuery(f), 0, limit, nil)
	if err != nil {
		return nil, fmt.Errorf("query records: %w: %w", domain.ErrStoreUnreachable, err)
	}

	out := make([]domain.WaterRecord, 0, len(res.Entries))
	for _, e := range res.Entries {
		out = append(out, recordFromFields(e.Fields))
	}
	return out, nil
}

// CountByLevel returns record counts grouped by priority level.
func (r *Repo) CountByLevel(ctx context.Context) (map[domain.PriorityLevel]int, error) {
	levels := []domain.PriorityLevel{domain.PriorityHigh, domain.PriorityMedium, domain.PriorityLow}

	counts := make(map[domain.PriorityLevel]int, len(levels))
	for _, level := range levels {
		query := "@" + fieldPriorityLevel + ":{" + string(level) + "}"
		n, err := r.store.SearchCount(ctx, indexName, query)
		if err != nil {
			return nil, fmt.Errorf("count level %s: %w: %w", level, domain.ErrStoreUnreachable, err)
		}
		counts[level] = n
	}
	return counts, nil
}

// Put stores a record hash. Used by seed tooling and tests only.
func (r *Repo) Put(ctx context.Context, rec domain.WaterRecord) error {
	if err := r.store.HSet(ctx, keyPrefix+rec.ID, recordToFields(rec)); err != nil {
		return fmt.Errorf("put record %s: %w", rec.ID, err)
	}
	return nil
}
