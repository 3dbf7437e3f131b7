// Package structured implements the attribute-filter retrieval tool.
package structured

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hydrolens/hydrolens/internal/domain"
)

const retryBackoff = 200 * time.Millisecond

// records is the consumer interface over the record repository (ISP).
type records interface {
	Query(ctx context.Context, f domain.Filters, limit int) ([]domain.WaterRecord, error)
}

// Service runs structured attribute lookups against the record registry.
// Transient store failures are retried once with a short backoff; a second
// failure surfaces as a failed ToolResult, never as a session error.
type Service struct {
	records records
	logger  *zap.Logger
}

// New creates the structured filter tool.
func New(r records, logger *zap.Logger) *Service {
	return &Service{records: r, logger: logger}
}

// Name implements the tool contract.
func (s *Service) Name() domain.ToolName { return domain.ToolStructured }

// Invoke runs the attribute query from the invocation params. Each matching
// record yields one public summary item plus one sensitive priority item;
// both carry score 1.0 because structured matches are direct data, not
// similarity guesses.
func (s *Service) Invoke(ctx context.Context, inv domain.Invocation) domain.ToolResult {
	start := time.Now()

	recs, err := s.query(ctx, inv.Params.Filters, inv.Params.Limit)
	if err != nil {
		s.logger.Warn("structured filter failed",
			zap.Error(err),
			zap.Int("seq", inv.Seq))
		return domain.FailedResult(domain.ToolStructured, domain.ErrDetailStoreUnreachable, time.Since(start))
	}

	items := make([]domain.EvidenceItem, 0, 2*len(recs))
	for _, rec := range recs {
		items = append(items,
			domain.EvidenceItem{
				Content: summarize(rec),
				Score:   1.0,
				Provenance: domain.Provenance{
					Tool:     domain.ToolStructured,
					RecordID: rec.ID,
				},
			},
			domain.EvidenceItem{
				Content:   priorityLine(rec),
				Score:     1.0,
				Sensitive: true,
				Provenance: domain.Provenance{
					Tool:     domain.ToolStructured,
					RecordID: rec.ID,
					Section:  "priority",
				},
			},
		)
	}

	return domain.ToolResult{
		Tool:    domain.ToolStructured,
		Items:   items,
		OK:      true,
		Elapsed: time.Since(start),
	}
}

// query retries once on a transient store failure, honoring ctx during the
// backoff wait.
func (s *Service) query(ctx context.Context, f domain.Filters, limit int) ([]domain.WaterRecord, error) {
	recs, err := s.records.Query(ctx, f, limit)
	if err == nil || !errors.Is(err, domain.ErrStoreUnreachable) {
		return recs, err
	}

	select {
	case <-time.After(retryBackoff):
	case <-ctx.Done():
		return nil, fmt.Errorf("retry aborted: %w", ctx.Err())
	}

	return s.records.Query(ctx, f, limit)
}

func summarize(rec domain.WaterRecord) string {
	line := fmt.Sprintf("%s (%s): %s, %s water, region %s",
		rec.Name, rec.ID, rec.ResourceType, rec.WaterType, rec.Region)
	if rec.TechnicalCondition > 0 {
		line += fmt.Sprintf(", technical condition %d/5", rec.TechnicalCondition)
	}
	if rec.PassportYear > 0 {
		line += fmt.Sprintf(", passport year %d", rec.PassportYear)
	}
	return line + "."
}

func priorityLine(rec domain.WaterRecord) string {
	return fmt.Sprintf("Inspection priority of %s: score %d, level %s.",
		rec.ID, rec.Priority, rec.PriorityLevel)
}
