// Package rolefilter is the single choke point for role-based redaction.
// It is applied twice per session: once per ToolResult right after tool
// execution and once more on the assembled context before synthesis. The
// double application is a deliberate invariant, not redundancy: a bug in any
// single tool must not be able to leak restricted evidence.
package rolefilter

import "github.com/hydrolens/hydrolens/internal/domain"

// Apply removes evidence the role may not see. Pure and total: never errors,
// never mutates its input.
func Apply(items []domain.EvidenceItem, role domain.Role) []domain.EvidenceItem {
	if role.CanViewSensitive() {
		return items
	}

	filtered := make([]domain.EvidenceItem, 0, len(items))
	for _, item := range items {
		if item.Sensitive {
			continue
		}
		filtered = append(filtered, item)
	}
	return filtered
}

// ApplyResult redacts one tool result, leaving its status fields intact.
func ApplyResult(res domain.ToolResult, role domain.Role) domain.ToolResult {
	res.Items = Apply(res.Items, role)
	return res
}

// ApplyBundle redacts an assembled context. Chars is recomputed so the
// budget invariant keeps holding after redaction.
func ApplyBundle(b domain.Bundle, role domain.Role) domain.Bundle {
	items := Apply(b.Items, role)
	chars := 0
	for _, item := range items {
		chars += len(item.Content)
	}
	return domain.Bundle{Items: items, Chars: chars}
}
