package session

import (
	"context"

	"github.com/hydrolens/hydrolens/internal/domain"
)

// Tool is the uniform contract every retrieval tool implements. Invoke
// never returns an error: failures are carried inside the ToolResult so a
// single broken tool degrades the session instead of aborting it.
type Tool interface {
	Name() domain.ToolName
	Invoke(ctx context.Context, inv domain.Invocation) domain.ToolResult
}

// router plans tool invocations for a query (ISP).
type router interface {
	Route(q domain.Query) []domain.Invocation
	ExplainRoute(recordID string) []domain.Invocation
}

// assembler merges tool results into a bounded evidence bundle (ISP).
type assembler interface {
	Assemble(results []domain.ToolResult) domain.Bundle
}

// synthesizer produces the final answer from redacted evidence (ISP).
type synthesizer interface {
	Synthesize(ctx context.Context, q domain.Query, b domain.Bundle) domain.Answer
}
