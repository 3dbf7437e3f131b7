package rolefilter

import (
	"testing"

	"github.com/hydrolens/hydrolens/internal/domain"
)

func sampleItems() []domain.EvidenceItem {
	return []domain.EvidenceItem{
		{Content: "public", Provenance: domain.Provenance{Tool: domain.ToolStructured, RecordID: "1"}},
		{Content: "priority", Sensitive: true, Provenance: domain.Provenance{Tool: domain.ToolExplainer, RecordID: "1"}},
		{Content: "passage", Provenance: domain.Provenance{Tool: domain.ToolSemantic, RecordID: "2"}},
	}
}

func TestApply_GuestDropsSensitive(t *testing.T) {
	out := Apply(sampleItems(), domain.RoleGuest)

	if len(out) != 2 {
		t.Fatalf("items = %d, want 2", len(out))
	}
	for _, item := range out {
		if item.Sensitive {
			t.Errorf("sensitive item leaked: %+v", item)
		}
	}
}

func TestApply_ExpertKeepsAll(t *testing.T) {
	items := sampleItems()
	out := Apply(items, domain.RoleExpert)

	if len(out) != len(items) {
		t.Fatalf("items = %d, want %d", len(out), len(items))
	}
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	items := sampleItems()
	_ = Apply(items, domain.RoleGuest)

	if len(items) != 3 {
		t.Fatal("input slice mutated")
	}
}

func TestApplyResult_KeepsStatus(t *testing.T) {
	res := domain.ToolResult{
		Tool:      domain.ToolExplainer,
		OK:        true,
		ErrDetail: "",
		Items:     sampleItems(),
	}

	out := ApplyResult(res, domain.RoleGuest)

	if !out.OK || out.Tool != domain.ToolExplainer {
		t.Errorf("status fields changed: %+v", out)
	}
	if len(out.Items) != 2 {
		t.Errorf("items = %d, want 2", len(out.Items))
	}
}

func TestApplyBundle_RecomputesChars(t *testing.T) {
	b := domain.Bundle{Items: sampleItems(), Chars: 21}

	out := ApplyBundle(b, domain.RoleGuest)

	want := len("public") + len("passage")
	if out.Chars != want {
		t.Errorf("chars = %d, want %d", out.Chars, want)
	}
}
