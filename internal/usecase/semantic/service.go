// Package semantic implements the vector-similarity retrieval tool.
package semantic

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/hydrolens/hydrolens/internal/domain"
)

// passages is the consumer interface over the passage index (ISP).
type passages interface {
	Search(ctx context.Context, vector []float32, scopeIDs []string, k int) ([]domain.PassageHit, error)
}

// Service embeds the query text and runs nearest-neighbor search over
// passport passages. Embedding gets its own deadline carved from the session
// budget; an embedding timeout is terminal for this invocation, never
// retried.
type Service struct {
	embedder     domain.Embedder
	passages     passages
	embedTimeout time.Duration
	logger       *zap.Logger
}

// New creates the semantic search tool.
func New(e domain.Embedder, p passages, embedTimeout time.Duration, logger *zap.Logger) *Service {
	return &Service{embedder: e, passages: p, embedTimeout: embedTimeout, logger: logger}
}

// Name implements the tool contract.
func (s *Service) Name() domain.ToolName { return domain.ToolSemantic }

// Invoke embeds inv.Params.Query and returns the top-k passages, scoped to
// inv.Params.ScopeIDs when set. Hits are ordered by score descending with
// ties broken by record id so identical inputs produce identical output.
func (s *Service) Invoke(ctx context.Context, inv domain.Invocation) domain.ToolResult {
	start := time.Now()

	embedCtx, cancel := context.WithTimeout(ctx, s.embedTimeout)
	defer cancel()

	emb, err := s.embedder.Embed(embedCtx, inv.Params.Query)
	if err != nil {
		detail := domain.ErrDetailSearchFailed
		switch {
		case ctx.Err() != nil:
			// The session budget expired, not the embed budget.
			detail = domain.ErrDetailDeadline
		case errors.Is(err, context.DeadlineExceeded):
			detail = domain.ErrDetailEmbeddingTimeout
		}
		s.logger.Warn("semantic search embed failed",
			zap.Error(err),
			zap.Int("seq", inv.Seq))
		return domain.FailedResult(domain.ToolSemantic, detail, time.Since(start))
	}

	hits, err := s.passages.Search(ctx, emb.Embedding, inv.Params.ScopeIDs, inv.Params.TopK)
	if err != nil {
		s.logger.Warn("semantic search failed",
			zap.Error(err),
			zap.Int("seq", inv.Seq))
		return domain.FailedResult(domain.ToolSemantic, domain.ErrDetailSearchFailed, time.Since(start))
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].RecordID < hits[j].RecordID
	})

	items := make([]domain.EvidenceItem, 0, len(hits))
	for _, h := range hits {
		items = append(items, domain.EvidenceItem{
			Content: h.Content,
			Score:   h.Score,
			Provenance: domain.Provenance{
				Tool:     domain.ToolSemantic,
				RecordID: h.RecordID,
				Section:  h.Section,
			},
		})
	}

	return domain.ToolResult{
		Tool:    domain.ToolSemantic,
		Items:   items,
		OK:      true,
		Elapsed: time.Since(start),
	}
}
