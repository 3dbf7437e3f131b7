package session

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/hydrolens/hydrolens/internal/domain"
	"github.com/hydrolens/hydrolens/internal/metrics"
	"github.com/hydrolens/hydrolens/internal/usecase/assemble"
	routerpkg "github.com/hydrolens/hydrolens/internal/usecase/router"
	"github.com/hydrolens/hydrolens/internal/usecase/synthesize"
)

type fakeTool struct {
	name  domain.ToolName
	fn    func(ctx context.Context, inv domain.Invocation) domain.ToolResult
	calls int32
}

func (f *fakeTool) Name() domain.ToolName { return f.name }

func (f *fakeTool) Invoke(ctx context.Context, inv domain.Invocation) domain.ToolResult {
	atomic.AddInt32(&f.calls, 1)
	return f.fn(ctx, inv)
}

func (f *fakeTool) callCount() int { return int(atomic.LoadInt32(&f.calls)) }

type fakeGenerator struct {
	prompts []string
	err     error
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return "synthesized answer", nil
}

func structuredResult(recordID string) domain.ToolResult {
	return domain.ToolResult{
		Tool: domain.ToolStructured,
		OK:   true,
		Items: []domain.EvidenceItem{
			{
				Content: "Canal X (" + recordID + "): canal, fresh water, region almaty, technical condition 2/5.",
				Score:   1.0,
				Provenance: domain.Provenance{
					Tool: domain.ToolStructured, RecordID: recordID,
				},
			},
			{
				Content:   "Inspection priority of " + recordID + ": score 14, level high.",
				Score:     1.0,
				Sensitive: true,
				Provenance: domain.Provenance{
					Tool: domain.ToolStructured, RecordID: recordID, Section: "priority",
				},
			},
		},
	}
}

func semanticResult(recordID, content string) domain.ToolResult {
	return domain.ToolResult{
		Tool: domain.ToolSemantic,
		OK:   true,
		Items: []domain.EvidenceItem{{
			Content: content,
			Score:   0.8,
			Provenance: domain.Provenance{
				Tool: domain.ToolSemantic, RecordID: recordID, Section: "state",
			},
		}},
	}
}

func testRouter() *routerpkg.Router {
	return routerpkg.New(routerpkg.Config{
		MaxTools: 3, TopK: 5, FilterLimit: 20, Regions: []string{"almaty"},
	})
}

func orchestrator(gen *fakeGenerator, maxConcurrent int, tools ...Tool) *Orchestrator {
	return New(
		tools,
		testRouter(),
		assemble.New(8000),
		synthesize.New(gen, time.Second, zap.NewNop()),
		5*time.Second,
		maxConcurrent,
		zap.NewNop(),
	)
}

func TestAsk_StructuredPlusScopedSemantic(t *testing.T) {
	var gotScope []string
	structured := &fakeTool{name: domain.ToolStructured,
		fn: func(_ context.Context, inv domain.Invocation) domain.ToolResult {
			if inv.Params.Filters.Region != "almaty" || inv.Params.Filters.ConditionMax != 2 {
				t.Errorf("filters = %+v", inv.Params.Filters)
			}
			return structuredResult("wo-1")
		}}
	semantic := &fakeTool{name: domain.ToolSemantic,
		fn: func(_ context.Context, inv domain.Invocation) domain.ToolResult {
			gotScope = inv.Params.ScopeIDs
			return semanticResult("wo-1", "the canal shows heavy siltation")
		}}

	gen := &fakeGenerator{}
	o := orchestrator(gen, 4, structured, semantic)

	ans, err := o.Ask(context.Background(), domain.Query{
		Text: "show records in region almaty with condition <= 2",
		Role: domain.RoleExpert,
	})
	if err != nil {
		t.Fatalf("ask: %v", err)
	}

	if len(gotScope) != 1 || gotScope[0] != "wo-1" {
		t.Errorf("semantic scope = %v, want [wo-1]", gotScope)
	}
	if ans.Confidence != 0.9 {
		t.Errorf("confidence = %v, want 0.9", ans.Confidence)
	}
	if ans.ToolCalls != 2 {
		t.Errorf("tool calls = %d, want 2", ans.ToolCalls)
	}
	found := false
	for _, src := range ans.Sources {
		if strings.HasPrefix(src.ProvenanceTag, string(domain.ToolStructured)) {
			found = true
		}
	}
	if !found {
		t.Errorf("no structured provenance in sources: %v", ans.Sources)
	}
}

func TestAsk_GuestNeverSeesSensitiveEvidence(t *testing.T) {
	structured := &fakeTool{name: domain.ToolStructured,
		fn: func(_ context.Context, _ domain.Invocation) domain.ToolResult {
			return structuredResult("wo-1")
		}}
	semantic := &fakeTool{name: domain.ToolSemantic,
		fn: func(_ context.Context, _ domain.Invocation) domain.ToolResult {
			return semanticResult("wo-1", "the canal shows heavy siltation")
		}}

	gen := &fakeGenerator{}
	o := orchestrator(gen, 4, structured, semantic)

	ans, err := o.Ask(context.Background(), domain.Query{
		Text: "show records in region almaty with condition <= 2",
		Role: domain.RoleGuest,
	})
	if err != nil {
		t.Fatalf("ask: %v", err)
	}

	for _, prompt := range gen.prompts {
		if strings.Contains(prompt, "Inspection priority") {
			t.Errorf("sensitive content reached the generator:\n%s", prompt)
		}
	}
	for _, src := range ans.Sources {
		if strings.Contains(src.ProvenanceTag, "priority") {
			t.Errorf("sensitive provenance in sources: %v", src)
		}
	}
}

// Every tool is compromised to leak a sensitive item; none may survive the
// double role filter for a guest.
func TestAsk_SensitiveInjectionProperty(t *testing.T) {
	poison := func(res domain.ToolResult) domain.ToolResult {
		res.Items = append(res.Items, domain.EvidenceItem{
			Content:   "SECRET-PRIORITY-DATA",
			Score:     1.0,
			Sensitive: true,
			Provenance: domain.Provenance{
				Tool: res.Tool, RecordID: "wo-1", Section: "priority",
			},
		})
		return res
	}
	structured := &fakeTool{name: domain.ToolStructured,
		fn: func(_ context.Context, _ domain.Invocation) domain.ToolResult {
			return poison(structuredResult("wo-1"))
		}}
	semantic := &fakeTool{name: domain.ToolSemantic,
		fn: func(_ context.Context, _ domain.Invocation) domain.ToolResult {
			return poison(semanticResult("wo-1", "passage"))
		}}

	gen := &fakeGenerator{}
	o := orchestrator(gen, 4, structured, semantic)

	ans, err := o.Ask(context.Background(), domain.Query{
		Text: "canals in almaty", Role: domain.RoleGuest,
	})
	if err != nil {
		t.Fatalf("ask: %v", err)
	}

	for _, prompt := range gen.prompts {
		if strings.Contains(prompt, "SECRET-PRIORITY-DATA") {
			t.Fatal("injected sensitive item reached the generator")
		}
	}
	if strings.Contains(ans.Text, "SECRET-PRIORITY-DATA") {
		t.Fatal("injected sensitive item reached the answer")
	}
}

func TestAsk_PartialFailureStillAnswers(t *testing.T) {
	structured := &fakeTool{name: domain.ToolStructured,
		fn: func(_ context.Context, _ domain.Invocation) domain.ToolResult {
			return structuredResult("wo-1")
		}}
	semantic := &fakeTool{name: domain.ToolSemantic,
		fn: func(_ context.Context, _ domain.Invocation) domain.ToolResult {
			return domain.FailedResult(domain.ToolSemantic, domain.ErrDetailEmbeddingTimeout, time.Millisecond)
		}}

	o := orchestrator(&fakeGenerator{}, 4, structured, semantic)

	ans, err := o.Ask(context.Background(), domain.Query{
		Text: "canals in almaty", Role: domain.RoleExpert,
	})
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if ans.Confidence != 0.9 {
		t.Errorf("confidence = %v, want 0.9 from surviving structured data", ans.Confidence)
	}
}

func TestAsk_AllToolsFailedIsTerminal(t *testing.T) {
	fail := func(name domain.ToolName, detail string) *fakeTool {
		return &fakeTool{name: name,
			fn: func(_ context.Context, _ domain.Invocation) domain.ToolResult {
				return domain.FailedResult(name, detail, time.Millisecond)
			}}
	}

	gen := &fakeGenerator{}
	o := orchestrator(gen, 4,
		fail(domain.ToolStructured, domain.ErrDetailStoreUnreachable),
		fail(domain.ToolSemantic, domain.ErrDetailSearchFailed),
	)

	ans, err := o.Ask(context.Background(), domain.Query{
		Text: "canals in almaty", Role: domain.RoleGuest,
	})
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if ans.Confidence != 0.0 {
		t.Errorf("confidence = %v, want 0.0", ans.Confidence)
	}
	if len(gen.prompts) != 0 {
		t.Error("generator called despite total tool failure")
	}
}

// A session that synthesized an answer is Done, even when that answer is the
// degraded zero-confidence one. Failed is for sessions that never reached
// synthesis.
func TestAsk_DegradedAnswerCountsDone(t *testing.T) {
	structured := &fakeTool{name: domain.ToolStructured,
		fn: func(_ context.Context, _ domain.Invocation) domain.ToolResult {
			return structuredResult("wo-1")
		}}

	gen := &fakeGenerator{err: errors.New("provider down")}
	o := orchestrator(gen, 4, structured)

	doneBefore := testutil.ToFloat64(metrics.SessionsTotal.WithLabelValues("done"))
	failedBefore := testutil.ToFloat64(metrics.SessionsTotal.WithLabelValues("failed"))

	ans, err := o.Ask(context.Background(), domain.Query{
		Text: "canals in almaty", Role: domain.RoleExpert,
	})
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if ans.Confidence != 0.0 {
		t.Fatalf("confidence = %v, want 0.0 after generation failure", ans.Confidence)
	}

	if d := testutil.ToFloat64(metrics.SessionsTotal.WithLabelValues("done")) - doneBefore; d != 1 {
		t.Errorf("done sessions += %v, want 1", d)
	}
	if d := testutil.ToFloat64(metrics.SessionsTotal.WithLabelValues("failed")) - failedBefore; d != 0 {
		t.Errorf("failed sessions += %v, want 0", d)
	}
}

func TestAsk_FailedStructuredLeavesSemanticUnscoped(t *testing.T) {
	var gotScope []string
	structured := &fakeTool{name: domain.ToolStructured,
		fn: func(_ context.Context, _ domain.Invocation) domain.ToolResult {
			return domain.FailedResult(domain.ToolStructured, domain.ErrDetailStoreUnreachable, time.Millisecond)
		}}
	semantic := &fakeTool{name: domain.ToolSemantic,
		fn: func(_ context.Context, inv domain.Invocation) domain.ToolResult {
			gotScope = inv.Params.ScopeIDs
			return semanticResult("wo-2", "fallback passage")
		}}

	o := orchestrator(&fakeGenerator{}, 4, structured, semantic)

	_, err := o.Ask(context.Background(), domain.Query{
		Text: "canals in almaty", Role: domain.RoleGuest,
	})
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if len(gotScope) != 0 {
		t.Errorf("scope = %v, want unscoped fallback", gotScope)
	}
}

func TestAsk_DeadlineProducesFailedResults(t *testing.T) {
	slow := &fakeTool{name: domain.ToolSemantic,
		fn: func(ctx context.Context, _ domain.Invocation) domain.ToolResult {
			<-ctx.Done()
			return domain.FailedResult(domain.ToolSemantic, domain.ErrDetailDeadline, 0)
		}}

	o := New(
		[]Tool{slow},
		testRouter(),
		assemble.New(8000),
		synthesize.New(&fakeGenerator{}, time.Second, zap.NewNop()),
		30*time.Millisecond,
		4,
		zap.NewNop(),
	)

	start := time.Now()
	ans, err := o.Ask(context.Background(), domain.Query{Text: "anything", Role: domain.RoleGuest})
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("session ran %v past its budget", elapsed)
	}
	if ans.Confidence != 0.0 {
		t.Errorf("confidence = %v, want 0.0", ans.Confidence)
	}
}

func TestAsk_RejectsInvalidQuery(t *testing.T) {
	o := orchestrator(&fakeGenerator{}, 4)

	_, err := o.Ask(context.Background(), domain.Query{Role: domain.RoleGuest})

	if !errors.Is(err, domain.ErrEmptyQuery) {
		t.Errorf("err = %v, want ErrEmptyQuery", err)
	}
}

func TestAsk_OverloadedWhenNoSlots(t *testing.T) {
	o := orchestrator(&fakeGenerator{}, 0)

	_, err := o.Ask(context.Background(), domain.Query{Text: "anything", Role: domain.RoleGuest})

	if !errors.Is(err, domain.ErrOverloaded) {
		t.Errorf("err = %v, want ErrOverloaded", err)
	}
}

func TestExplain_GuestRejectedBeforeAnyTool(t *testing.T) {
	explainer := &fakeTool{name: domain.ToolExplainer,
		fn: func(_ context.Context, _ domain.Invocation) domain.ToolResult {
			return domain.ToolResult{Tool: domain.ToolExplainer, OK: true}
		}}

	o := orchestrator(&fakeGenerator{}, 4, explainer)

	_, err := o.Explain(context.Background(), "wo-1", domain.RoleGuest)

	if !errors.Is(err, domain.ErrExpertOnly) {
		t.Fatalf("err = %v, want ErrExpertOnly", err)
	}
	if explainer.callCount() != 0 {
		t.Errorf("explainer ran %d times for a guest", explainer.callCount())
	}
}

func explainerTool() *fakeTool {
	return &fakeTool{name: domain.ToolExplainer,
		fn: func(_ context.Context, inv domain.Invocation) domain.ToolResult {
			return domain.ToolResult{
				Tool: domain.ToolExplainer,
				OK:   true,
				Items: []domain.EvidenceItem{{
					Content:   "Inspection priority of " + inv.Params.RecordID + ": score 12, level high.",
					Score:     1.0,
					Sensitive: true,
					Provenance: domain.Provenance{
						Tool: domain.ToolExplainer, RecordID: inv.Params.RecordID, Section: "priority",
					},
				}},
			}
		}}
}

func TestExplain_ExpertFullPipeline(t *testing.T) {
	var gotScope []string
	semantic := &fakeTool{name: domain.ToolSemantic,
		fn: func(_ context.Context, inv domain.Invocation) domain.ToolResult {
			gotScope = inv.Params.ScopeIDs
			return semanticResult("wo-17", "banks eroded, gates rusted")
		}}

	gen := &fakeGenerator{}
	o := orchestrator(gen, 4, explainerTool(), semantic)

	ans, err := o.Explain(context.Background(), "wo-17", domain.RoleExpert)
	if err != nil {
		t.Fatalf("explain: %v", err)
	}

	if len(gotScope) != 1 || gotScope[0] != "wo-17" {
		t.Errorf("semantic scope = %v, want [wo-17]", gotScope)
	}
	if len(gen.prompts) != 1 || !strings.Contains(gen.prompts[0], "score 12") {
		t.Fatalf("prompts = %v", gen.prompts)
	}
	if ans.ToolCalls != 2 || ans.Confidence != 0.9 {
		t.Errorf("answer = %+v", ans)
	}
	found := false
	for _, src := range ans.Sources {
		if strings.HasPrefix(src.ProvenanceTag, string(domain.ToolExplainer)) {
			found = true
		}
	}
	if !found {
		t.Errorf("no explainer provenance in sources: %v", ans.Sources)
	}
}

func TestExplain_RecordNotFound(t *testing.T) {
	explainer := &fakeTool{name: domain.ToolExplainer,
		fn: func(_ context.Context, _ domain.Invocation) domain.ToolResult {
			return domain.FailedResult(domain.ToolExplainer, domain.ErrDetailRecordNotFound, time.Millisecond)
		}}
	semantic := &fakeTool{name: domain.ToolSemantic,
		fn: func(_ context.Context, _ domain.Invocation) domain.ToolResult {
			return semanticResult("wo-404", "unrelated passage")
		}}

	o := orchestrator(&fakeGenerator{}, 4, explainer, semantic)

	_, err := o.Explain(context.Background(), "wo-404", domain.RoleExpert)

	if !errors.Is(err, domain.ErrRecordNotFound) {
		t.Errorf("err = %v, want ErrRecordNotFound", err)
	}
}
