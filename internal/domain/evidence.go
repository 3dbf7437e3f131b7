package domain

import (
	"time"

	"github.com/cespare/xxhash/v2"
)

// ToolName identifies one of the retrieval tools. Closed enum: the router
// selects tools by name, never by reflection.
type ToolName string

const (
	// ToolStructured is the attribute-filter lookup against the record store.
	ToolStructured ToolName = "structured_filter"
	// ToolSemantic is the vector similarity search over passport texts.
	ToolSemantic ToolName = "semantic_search"
	// ToolExplainer is the deterministic priority-score breakdown.
	ToolExplainer ToolName = "priority_explainer"
)

// MergeRank orders tools for context assembly tie-breaks: direct data first.
func (t ToolName) MergeRank() int {
	switch t {
	case ToolStructured:
		return 0
	case ToolExplainer:
		return 1
	case ToolSemantic:
		return 2
	}
	return 3
}

// Provenance identifies where a piece of evidence came from.
type Provenance struct {
	Tool     ToolName
	RecordID string
	Section  string // passport section or synthetic section like "priority"
}

// Tag renders the provenance as a citation tag, e.g.
// "semantic_search:wo-17:hydrology".
func (p Provenance) Tag() string {
	tag := string(p.Tool)
	if p.RecordID != "" {
		tag += ":" + p.RecordID
	}
	if p.Section != "" {
		tag += ":" + p.Section
	}
	return tag
}

// EvidenceItem is one atomic unit of retrieved or computed knowledge.
type EvidenceItem struct {
	Content    string
	Provenance Provenance
	// Score is the relevance in [0,1]. Structured and explainer evidence is
	// direct data and carries 1.0.
	Score float64
	// Sensitive marks evidence restricted to expert callers.
	Sensitive bool
}

// DedupKey collapses duplicates by provenance tag plus content hash.
func (e EvidenceItem) DedupKey() uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(e.Provenance.Tag())
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(e.Content)
	return d.Sum64()
}

// ToolParams is the immutable input snapshot of one tool invocation.
type ToolParams struct {
	Query    string
	RecordID string
	Filters  Filters
	// ScopeIDs restricts semantic search to the given record ids.
	ScopeIDs []string
	// ScopeToStructured tells the session to resolve ScopeIDs from the
	// structured tool's output at execution time.
	ScopeToStructured bool
	TopK              int
	Limit             int
}

// Invocation is one routing decision: which tool to run and with what.
type Invocation struct {
	Tool   ToolName
	Seq    int
	Params ToolParams
}

// Error details a ToolResult may carry. Stable strings, surfaced in logs
// and metrics, never as raw internal errors to the caller.
const (
	ErrDetailStoreUnreachable = "store-unreachable"
	ErrDetailEmbeddingTimeout = "embedding-timeout"
	ErrDetailSearchFailed     = "search-failed"
	ErrDetailRecordNotFound   = "record-not-found"
	ErrDetailDeadline         = "deadline"
)

// ToolResult is the output of one invocation. Owned by the session until
// merged into the evidence bundle.
type ToolResult struct {
	Tool      ToolName
	Items     []EvidenceItem
	OK        bool
	ErrDetail string
	Elapsed   time.Duration
}

// FailedResult builds a failed ToolResult with a stable error detail.
func FailedResult(tool ToolName, detail string, elapsed time.Duration) ToolResult {
	return ToolResult{Tool: tool, OK: false, ErrDetail: detail, Elapsed: elapsed}
}
