// Package explain implements the deterministic priority-explainer tool.
package explain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hydrolens/hydrolens/internal/domain"
)

// records is the consumer interface over the record repository (ISP).
type records interface {
	Get(ctx context.Context, id string) (domain.WaterRecord, error)
	CountByLevel(ctx context.Context) (map[domain.PriorityLevel]int, error)
}

// Service recomputes a record's inspection priority from its stored
// attributes and renders the full derivation. No model calls: the breakdown
// is a pure function of the record and the current year, so repeated
// invocations for the same record are byte-identical within a year.
type Service struct {
	records records
	now     func() time.Time
	logger  *zap.Logger
}

// New creates the priority explainer tool.
func New(r records, logger *zap.Logger) *Service {
	return &Service{records: r, now: time.Now, logger: logger}
}

// WithClock overrides the time source. Tests only.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Name implements the tool contract.
func (s *Service) Name() domain.ToolName { return domain.ToolExplainer }

// Invoke fetches the record named by inv.Params.RecordID and emits one
// sensitive evidence item carrying the score derivation.
func (s *Service) Invoke(ctx context.Context, inv domain.Invocation) domain.ToolResult {
	start := time.Now()

	rec, err := s.records.Get(ctx, inv.Params.RecordID)
	if err != nil {
		detail := domain.ErrDetailStoreUnreachable
		if errors.Is(err, domain.ErrRecordNotFound) {
			detail = domain.ErrDetailRecordNotFound
		}
		s.logger.Warn("priority explain failed",
			zap.Error(err),
			zap.String("record_id", inv.Params.RecordID),
			zap.Int("seq", inv.Seq))
		return domain.FailedResult(domain.ToolExplainer, detail, time.Since(start))
	}

	b := domain.ExplainPriority(rec, s.now().Year())

	return domain.ToolResult{
		Tool: domain.ToolExplainer,
		Items: []domain.EvidenceItem{{
			Content:   renderBreakdown(rec, b),
			Score:     1.0,
			Sensitive: true,
			Provenance: domain.Provenance{
				Tool:     domain.ToolExplainer,
				RecordID: rec.ID,
				Section:  "priority",
			},
		}},
		OK:      true,
		Elapsed: time.Since(start),
	}
}

// Statistics returns registry-wide record counts per priority level.
func (s *Service) Statistics(ctx context.Context) (map[domain.PriorityLevel]int, error) {
	counts, err := s.records.CountByLevel(ctx)
	if err != nil {
		return nil, fmt.Errorf("priority statistics: %w", err)
	}
	return counts, nil
}

func renderBreakdown(rec domain.WaterRecord, b domain.PriorityBreakdown) string {
	age := "no passport on file"
	if b.PassportYear > 0 {
		age = fmt.Sprintf("passport from %d is %d year(s) old", b.PassportYear, b.AgeTerm)
	}
	return fmt.Sprintf(
		"Inspection priority of %s (%s): score %d, level %s. "+
			"Condition term: (6 - %d) * 3 = %d. Age term: %s, contributing %d. "+
			"Total: %d + %d = %d.",
		rec.ID, rec.Name, b.Score, b.Level,
		b.Condition, b.ConditionTerm, age, b.AgeTerm,
		b.ConditionTerm, b.AgeTerm, b.Score)
}
