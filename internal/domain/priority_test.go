package domain

import "testing"

func TestPriorityScore(t *testing.T) {
	tests := []struct {
		name         string
		condition    int
		passportYear int
		currentYear  int
		want         int
	}{
		{"worst condition old passport", 1, 2015, 2024, 24},
		{"condition 5 passport 2015 in 2024", 5, 2015, 2024, 12},
		{"best condition fresh passport", 5, 2024, 2024, 3},
		{"missing passport year", 2, 0, 2024, 12},
		{"future passport year clamps to zero age", 3, 2030, 2024, 9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PriorityScore(tt.condition, tt.passportYear, tt.currentYear)
			if got != tt.want {
				t.Errorf("PriorityScore(%d, %d, %d) = %d, want %d",
					tt.condition, tt.passportYear, tt.currentYear, got, tt.want)
			}
		})
	}
}

func TestLevelForScore(t *testing.T) {
	tests := []struct {
		score int
		want  PriorityLevel
	}{
		{12, PriorityHigh},
		{10, PriorityHigh},
		{9, PriorityMedium},
		{6, PriorityMedium},
		{5, PriorityLow},
		{0, PriorityLow},
	}
	for _, tt := range tests {
		if got := LevelForScore(tt.score); got != tt.want {
			t.Errorf("LevelForScore(%d) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestExplainPriority_Idempotent(t *testing.T) {
	rec := WaterRecord{ID: "wo-1", TechnicalCondition: 5, PassportYear: 2015}

	first := ExplainPriority(rec, 2024)
	second := ExplainPriority(rec, 2024)

	if first != second {
		t.Fatalf("breakdown not idempotent: %+v vs %+v", first, second)
	}
	if first.Score != 12 {
		t.Errorf("score = %d, want 12", first.Score)
	}
	if first.ConditionTerm != 3 || first.AgeTerm != 9 {
		t.Errorf("terms = (%d, %d), want (3, 9)", first.ConditionTerm, first.AgeTerm)
	}
	if first.Level != PriorityHigh {
		t.Errorf("level = %s, want high", first.Level)
	}
}

func TestProvenanceTag(t *testing.T) {
	p := Provenance{Tool: ToolSemantic, RecordID: "wo-17", Section: "hydrology"}
	if got := p.Tag(); got != "semantic_search:wo-17:hydrology" {
		t.Errorf("Tag() = %q", got)
	}
	bare := Provenance{Tool: ToolStructured}
	if got := bare.Tag(); got != "structured_filter" {
		t.Errorf("Tag() = %q", got)
	}
}

func TestEvidenceDedupKey(t *testing.T) {
	a := EvidenceItem{Content: "x", Provenance: Provenance{Tool: ToolSemantic, RecordID: "1"}}
	b := EvidenceItem{Content: "x", Provenance: Provenance{Tool: ToolSemantic, RecordID: "1"}}
	c := EvidenceItem{Content: "y", Provenance: Provenance{Tool: ToolSemantic, RecordID: "1"}}

	if a.DedupKey() != b.DedupKey() {
		t.Error("identical items must share a dedup key")
	}
	if a.DedupKey() == c.DedupKey() {
		t.Error("different content must not collide")
	}
}
