package domain

// Bundle is the bounded evidence context handed to synthesis. Items are
// deduplicated, ordered by relevance, and their total content size never
// exceeds the assembler's character budget.
type Bundle struct {
	Items []EvidenceItem
	// Chars is the total serialized content size of Items.
	Chars int
}

// Empty reports whether the bundle carries no evidence.
func (b Bundle) Empty() bool {
	return len(b.Items) == 0
}

// Source is one distinct citation in the final answer.
type Source struct {
	ProvenanceTag string `json:"provenance_tag"`
	RecordID      string `json:"record_id,omitempty"`
}

// Answer is the terminal output of a session. The engine does not persist it.
type Answer struct {
	Text       string
	Sources    []Source
	Confidence float64
	ToolCalls  int
}
