package assemble

import (
	"strings"
	"testing"

	"github.com/hydrolens/hydrolens/internal/domain"
)

func item(tool domain.ToolName, recordID, content string, score float64) domain.EvidenceItem {
	return domain.EvidenceItem{
		Content:    content,
		Score:      score,
		Provenance: domain.Provenance{Tool: tool, RecordID: recordID},
	}
}

func okResult(tool domain.ToolName, items ...domain.EvidenceItem) domain.ToolResult {
	return domain.ToolResult{Tool: tool, OK: true, Items: items}
}

func TestAssemble_SortsByScoreThenToolRank(t *testing.T) {
	a := New(8000)

	results := []domain.ToolResult{
		okResult(domain.ToolSemantic,
			item(domain.ToolSemantic, "wo-2", "passage b", 0.7),
			item(domain.ToolSemantic, "wo-1", "passage a", 1.0),
		),
		okResult(domain.ToolStructured,
			item(domain.ToolStructured, "wo-3", "record c", 1.0),
		),
	}

	b := a.Assemble(results)

	if len(b.Items) != 3 {
		t.Fatalf("items = %d, want 3", len(b.Items))
	}
	// Equal scores: structured outranks semantic.
	if b.Items[0].Provenance.Tool != domain.ToolStructured {
		t.Errorf("first item tool = %s, want structured_filter", b.Items[0].Provenance.Tool)
	}
	if b.Items[1].Content != "passage a" || b.Items[2].Content != "passage b" {
		t.Errorf("order = %q, %q", b.Items[1].Content, b.Items[2].Content)
	}
}

func TestAssemble_SkipsFailedResults(t *testing.T) {
	a := New(8000)

	results := []domain.ToolResult{
		{Tool: domain.ToolStructured, OK: false, ErrDetail: domain.ErrDetailStoreUnreachable,
			Items: []domain.EvidenceItem{item(domain.ToolStructured, "wo-1", "stale", 1.0)}},
		okResult(domain.ToolSemantic, item(domain.ToolSemantic, "wo-2", "fresh", 0.5)),
	}

	b := a.Assemble(results)

	if len(b.Items) != 1 || b.Items[0].Content != "fresh" {
		t.Fatalf("items = %+v", b.Items)
	}
}

func TestAssemble_Deduplicates(t *testing.T) {
	a := New(8000)

	dup := item(domain.ToolSemantic, "wo-1", "same passage", 0.8)
	results := []domain.ToolResult{
		okResult(domain.ToolSemantic, dup, dup),
		okResult(domain.ToolSemantic, dup),
	}

	b := a.Assemble(results)

	if len(b.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(b.Items))
	}
}

func TestAssemble_BudgetNeverExceeded(t *testing.T) {
	const budget = 100
	a := New(budget)

	tests := []struct {
		name  string
		sizes []int
	}{
		{"all fit", []int{30, 30, 30}},
		{"one exactly at budget", []int{100}},
		{"one over budget", []int{101}},
		{"mixed with oversized", []int{60, 101, 50, 30}},
		{"many small", []int{9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var items []domain.EvidenceItem
			for i, size := range tt.sizes {
				items = append(items, item(domain.ToolSemantic, "wo-1",
					strings.Repeat("x", size-1)+string(rune('a'+i)), 1.0-float64(i)*0.01))
			}

			b := a.Assemble([]domain.ToolResult{okResult(domain.ToolSemantic, items...)})

			if b.Chars > budget {
				t.Fatalf("chars = %d exceeds budget %d", b.Chars, budget)
			}
			total := 0
			for _, it := range b.Items {
				total += len(it.Content)
			}
			if total != b.Chars {
				t.Errorf("chars = %d, actual total %d", b.Chars, total)
			}
		})
	}
}

func TestAssemble_OversizedItemDroppedNotTruncated(t *testing.T) {
	a := New(50)

	big := item(domain.ToolSemantic, "wo-1", strings.Repeat("x", 60), 0.9)
	small := item(domain.ToolSemantic, "wo-2", "fits", 0.5)

	b := a.Assemble([]domain.ToolResult{okResult(domain.ToolSemantic, big, small)})

	if len(b.Items) != 1 || b.Items[0].Content != "fits" {
		t.Fatalf("items = %+v", b.Items)
	}
}

func TestAssemble_EmptyInput(t *testing.T) {
	a := New(8000)

	b := a.Assemble(nil)

	if !b.Empty() || b.Chars != 0 {
		t.Errorf("bundle = %+v, want empty", b)
	}
}
