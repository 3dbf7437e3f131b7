package explain

import (
	"context"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hydrolens/hydrolens/internal/domain"
)

type fakeRecords struct {
	recs   map[string]domain.WaterRecord
	getErr error
	counts map[domain.PriorityLevel]int
}

func (f *fakeRecords) Get(_ context.Context, id string) (domain.WaterRecord, error) {
	if f.getErr != nil {
		return domain.WaterRecord{}, f.getErr
	}
	rec, ok := f.recs[id]
	if !ok {
		return domain.WaterRecord{}, domain.ErrRecordNotFound
	}
	return rec, nil
}

func (f *fakeRecords) CountByLevel(context.Context) (map[domain.PriorityLevel]int, error) {
	return f.counts, nil
}

func fixedClock(year int) func() time.Time {
	return func() time.Time {
		return time.Date(year, time.June, 1, 0, 0, 0, 0, time.UTC)
	}
}

func service(recs ...domain.WaterRecord) *Service {
	byID := make(map[string]domain.WaterRecord, len(recs))
	for _, r := range recs {
		byID[r.ID] = r
	}
	return New(&fakeRecords{recs: byID}, zap.NewNop()).WithClock(fixedClock(2026))
}

func TestInvoke_BreakdownContent(t *testing.T) {
	svc := service(domain.WaterRecord{
		ID: "wo-9", Name: "Big Almaty Canal", TechnicalCondition: 5, PassportYear: 2017,
	})

	res := svc.Invoke(context.Background(), domain.Invocation{
		Tool:   domain.ToolExplainer,
		Params: domain.ToolParams{RecordID: "wo-9"},
	})

	if !res.OK || len(res.Items) != 1 {
		t.Fatalf("result = %+v", res)
	}
	item := res.Items[0]
	if !item.Sensitive {
		t.Error("breakdown not marked sensitive")
	}
	// (6-5)*3 + (2026-2017) = 3 + 9 = 12, high.
	for _, want := range []string{"score 12", "level high", "(6 - 5) * 3 = 3", "9 year(s) old"} {
		if !strings.Contains(item.Content, want) {
			t.Errorf("content missing %q:\n%s", want, item.Content)
		}
	}
	if item.Provenance.Section != "priority" {
		t.Errorf("section = %q", item.Provenance.Section)
	}
}

func TestInvoke_Deterministic(t *testing.T) {
	svc := service(domain.WaterRecord{ID: "wo-1", Name: "x", TechnicalCondition: 2, PassportYear: 2020})

	inv := domain.Invocation{Tool: domain.ToolExplainer, Params: domain.ToolParams{RecordID: "wo-1"}}
	a := svc.Invoke(context.Background(), inv)
	b := svc.Invoke(context.Background(), inv)

	if a.Items[0].Content != b.Items[0].Content {
		t.Errorf("breakdown not deterministic:\n%s\n%s", a.Items[0].Content, b.Items[0].Content)
	}
}

func TestInvoke_MissingPassportYear(t *testing.T) {
	svc := service(domain.WaterRecord{ID: "wo-2", Name: "y", TechnicalCondition: 1})

	res := svc.Invoke(context.Background(), domain.Invocation{
		Tool:   domain.ToolExplainer,
		Params: domain.ToolParams{RecordID: "wo-2"},
	})

	if !strings.Contains(res.Items[0].Content, "no passport on file") {
		t.Errorf("content = %q", res.Items[0].Content)
	}
	if !strings.Contains(res.Items[0].Content, "score 15") {
		t.Errorf("content = %q, want condition-only score 15", res.Items[0].Content)
	}
}

func TestInvoke_RecordNotFound(t *testing.T) {
	svc := service()

	res := svc.Invoke(context.Background(), domain.Invocation{
		Tool:   domain.ToolExplainer,
		Params: domain.ToolParams{RecordID: "wo-404"},
	})

	if res.OK || res.ErrDetail != domain.ErrDetailRecordNotFound {
		t.Errorf("result = %+v, want record-not-found", res)
	}
}

func TestInvoke_StoreError(t *testing.T) {
	svc := New(&fakeRecords{getErr: domain.ErrStoreUnreachable}, zap.NewNop()).WithClock(fixedClock(2026))

	res := svc.Invoke(context.Background(), domain.Invocation{
		Tool:   domain.ToolExplainer,
		Params: domain.ToolParams{RecordID: "wo-1"},
	})

	if res.OK || res.ErrDetail != domain.ErrDetailStoreUnreachable {
		t.Errorf("result = %+v, want store-unreachable", res)
	}
}

func TestStatistics(t *testing.T) {
	f := &fakeRecords{counts: map[domain.PriorityLevel]int{
		domain.PriorityHigh: 3, domain.PriorityMedium: 7, domain.PriorityLow: 12,
	}}
	svc := New(f, zap.NewNop())

	counts, err := svc.Statistics(context.Background())
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if counts[domain.PriorityHigh] != 3 || counts[domain.PriorityLow] != 12 {
		t.Errorf("counts = %v", counts)
	}
}
