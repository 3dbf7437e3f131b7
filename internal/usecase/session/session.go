// Package session drives one query through routing, parallel tool
// execution, assembly, redaction, and synthesis.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hydrolens/hydrolens/internal/domain"
	"github.com/hydrolens/hydrolens/internal/metrics"
	"github.com/hydrolens/hydrolens/internal/usecase/rolefilter"
	"github.com/hydrolens/hydrolens/internal/usecase/synthesize"
)

// Session phases, logged at each transition.
type phase string

const (
	phaseRouting      phase = "routing"
	phaseExecuting    phase = "executing"
	phaseAssembling   phase = "assembling"
	phaseSynthesizing phase = "synthesizing"
	phaseDone         phase = "done"
	phaseFailed       phase = "failed"
)

// Orchestrator runs query sessions under a wall-clock budget and a
// concurrency cap. Tool failures degrade the answer; only admission,
// validation, and authorization failures surface as errors.
type Orchestrator struct {
	tools       map[domain.ToolName]Tool
	router      router
	assembler   assembler
	synthesizer synthesizer
	budget      time.Duration
	sem         chan struct{}
	logger      *zap.Logger
}

// New creates an orchestrator over the given tools.
func New(
	tools []Tool,
	r router,
	a assembler,
	s synthesizer,
	budget time.Duration,
	maxConcurrent int,
	logger *zap.Logger,
) *Orchestrator {
	byName := make(map[domain.ToolName]Tool, len(tools))
	for _, t := range tools {
		byName[t.Name()] = t
	}
	return &Orchestrator{
		tools:       byName,
		router:      r,
		assembler:   a,
		synthesizer: s,
		budget:      budget,
		sem:         make(chan struct{}, maxConcurrent),
		logger:      logger,
	}
}

// Ask runs one full orchestration session for a query.
func (o *Orchestrator) Ask(ctx context.Context, q domain.Query) (domain.Answer, error) {
	if err := q.Validate(); err != nil {
		metrics.SessionsTotal.WithLabelValues("rejected").Inc()
		return domain.Answer{}, err
	}

	select {
	case o.sem <- struct{}{}:
		defer func() { <-o.sem }()
	default:
		metrics.SessionsTotal.WithLabelValues("overloaded").Inc()
		return domain.Answer{}, domain.ErrOverloaded
	}

	id := uuid.NewString()
	log := o.logger.With(zap.String("session_id", id), zap.String("role", string(q.Role)))
	start := time.Now()

	sessionCtx, cancel := context.WithTimeout(ctx, o.budget)
	defer cancel()

	log.Debug("session phase", zap.String("phase", string(phaseRouting)))
	plan := o.router.Route(q)

	log.Debug("session phase", zap.String("phase", string(phaseExecuting)), zap.Int("tools", len(plan)))
	results := o.execute(sessionCtx, plan, log)

	if allFailed(results) {
		metrics.SessionsTotal.WithLabelValues("failed").Inc()
		log.Warn("all tools failed",
			zap.String("phase", string(phaseFailed)),
			zap.Duration("elapsed", time.Since(start)))
		return domain.Answer{Text: synthesize.FailureText, Confidence: 0.0, ToolCalls: len(plan)}, nil
	}

	for i, res := range results {
		results[i] = rolefilter.ApplyResult(res, q.Role)
	}

	log.Debug("session phase", zap.String("phase", string(phaseAssembling)))
	bundle := o.assembler.Assemble(results)
	bundle = rolefilter.ApplyBundle(bundle, q.Role)
	metrics.ContextChars.Observe(float64(bundle.Chars))

	log.Debug("session phase", zap.String("phase", string(phaseSynthesizing)), zap.Int("context_chars", bundle.Chars))
	answer := o.synthesizer.Synthesize(ctx, q, bundle)
	answer.ToolCalls = len(plan)

	// Any synthesized answer is a terminal Done, degraded ones included.
	// Failed is reserved for sessions that never reached synthesis.
	metrics.SessionsTotal.WithLabelValues("done").Inc()
	log.Info("session finished",
		zap.String("phase", string(phaseDone)),
		zap.Int("tool_calls", answer.ToolCalls),
		zap.Float64("confidence", answer.Confidence),
		zap.Duration("elapsed", time.Since(start)))

	return answer, nil
}

// Explain runs the same pipeline with the route forced to the explainer
// plus semantic retrieval scoped to the record. Expert-only: rejected before
// any tool runs. A missing record is an error, not a degraded answer.
func (o *Orchestrator) Explain(ctx context.Context, recordID string, role domain.Role) (domain.Answer, error) {
	if !role.CanViewSensitive() {
		return domain.Answer{}, fmt.Errorf("explain %s as %s: %w", recordID, role, domain.ErrExpertOnly)
	}

	select {
	case o.sem <- struct{}{}:
		defer func() { <-o.sem }()
	default:
		metrics.SessionsTotal.WithLabelValues("overloaded").Inc()
		return domain.Answer{}, domain.ErrOverloaded
	}

	log := o.logger.With(zap.String("record_id", recordID))

	sessionCtx, cancel := context.WithTimeout(ctx, o.budget)
	defer cancel()

	plan := o.router.ExplainRoute(recordID)
	results := o.execute(sessionCtx, plan, log)

	for _, res := range results {
		if res.Tool == domain.ToolExplainer && !res.OK && res.ErrDetail == domain.ErrDetailRecordNotFound {
			metrics.SessionsTotal.WithLabelValues("failed").Inc()
			return domain.Answer{}, fmt.Errorf("explain %s: %w", recordID, domain.ErrRecordNotFound)
		}
	}

	if allFailed(results) {
		metrics.SessionsTotal.WithLabelValues("failed").Inc()
		return domain.Answer{Text: synthesize.FailureText, Confidence: 0.0, ToolCalls: len(plan)}, nil
	}

	q := domain.Query{
		Text:    "Explain the inspection priority of this water object.",
		Role:    role,
		Filters: domain.Filters{RecordID: recordID},
	}

	for i, res := range results {
		results[i] = rolefilter.ApplyResult(res, role)
	}

	bundle := o.assembler.Assemble(results)
	bundle = rolefilter.ApplyBundle(bundle, role)
	metrics.ContextChars.Observe(float64(bundle.Chars))

	answer := o.synthesizer.Synthesize(ctx, q, bundle)
	answer.ToolCalls = len(plan)

	metrics.SessionsTotal.WithLabelValues("done").Inc()
	log.Info("explain session finished",
		zap.Int("tool_calls", answer.ToolCalls),
		zap.Float64("confidence", answer.Confidence))

	return answer, nil
}

func allFailed(results []domain.ToolResult) bool {
	for _, res := range results {
		if res.OK {
			return false
		}
	}
	return len(results) > 0
}

type outcome struct {
	seq int
	res domain.ToolResult
}

// execute fans the plan out to goroutines and collects results until every
// tool reports or the session deadline passes. Tools still running at the
// deadline are recorded as failed with the "deadline" detail; their
// goroutines drain into the buffered channel and exit on their own.
func (o *Orchestrator) execute(ctx context.Context, plan []domain.Invocation, log *zap.Logger) []domain.ToolResult {
	outcomes := make(chan outcome, len(plan))

	// The structured result is published once so a dependent semantic
	// invocation can resolve its scope from it.
	structuredCh := make(chan domain.ToolResult, 1)
	hasStructured := false
	for _, inv := range plan {
		if inv.Tool == domain.ToolStructured {
			hasStructured = true
		}
	}

	for _, inv := range plan {
		go func(inv domain.Invocation) {
			if inv.Params.ScopeToStructured {
				inv = o.resolveScope(ctx, inv, hasStructured, structuredCh)
			}

			tool, ok := o.tools[inv.Tool]
			if !ok {
				outcomes <- outcome{inv.Seq, domain.FailedResult(inv.Tool, domain.ErrDetailSearchFailed, 0)}
				return
			}

			res := tool.Invoke(ctx, inv)
			if inv.Tool == domain.ToolStructured {
				structuredCh <- res
			}
			outcomes <- outcome{inv.Seq, res}
		}(inv)
	}

	results := make([]domain.ToolResult, len(plan))
	received := make([]bool, len(plan))
	pending := len(plan)

	for pending > 0 {
		select {
		case out := <-outcomes:
			results[out.seq] = out.res
			received[out.seq] = true
			pending--
			o.recordToolMetrics(out.res)

		case <-ctx.Done():
			for i, inv := range plan {
				if !received[i] {
					results[i] = domain.FailedResult(inv.Tool, domain.ErrDetailDeadline, 0)
					o.recordToolMetrics(results[i])
					log.Warn("tool missed session deadline",
						zap.String("tool", string(inv.Tool)),
						zap.Int("seq", inv.Seq))
				}
			}
			return results
		}
	}
	return results
}

// resolveScope waits for the structured result and narrows the semantic
// invocation to its record ids. A failed or absent structured result leaves
// the invocation unscoped.
func (o *Orchestrator) resolveScope(
	ctx context.Context, inv domain.Invocation, hasStructured bool, structuredCh <-chan domain.ToolResult,
) domain.Invocation {
	inv.Params.ScopeToStructured = false
	if !hasStructured {
		return inv
	}

	select {
	case res := <-structuredCh:
		if !res.OK {
			return inv
		}
		seen := make(map[string]struct{})
		for _, item := range res.Items {
			id := item.Provenance.RecordID
			if _, dup := seen[id]; dup || id == "" {
				continue
			}
			seen[id] = struct{}{}
			inv.Params.ScopeIDs = append(inv.Params.ScopeIDs, id)
		}
	case <-ctx.Done():
	}
	return inv
}

func (o *Orchestrator) recordToolMetrics(res domain.ToolResult) {
	status := "ok"
	if !res.OK {
		status = res.ErrDetail
	}
	metrics.ToolInvocationsTotal.WithLabelValues(string(res.Tool), status).Inc()
	metrics.ToolDuration.WithLabelValues(string(res.Tool)).Observe(res.Elapsed.Seconds())
}
