// Package assemble merges tool outputs into a single bounded evidence bundle.
package assemble

import (
	"sort"

	"github.com/hydrolens/hydrolens/internal/domain"
)

// Assembler flattens, deduplicates, ranks, and budget-packs evidence.
// Runs single-threaded after the session's fan-in; the only serialization
// point of the pipeline.
type Assembler struct {
	budgetChars int
}

// New creates an assembler with the given character budget.
func New(budgetChars int) *Assembler {
	return &Assembler{budgetChars: budgetChars}
}

// Assemble builds the evidence bundle from successful tool results.
// Ranking: relevance score descending, ties broken by tool merge rank
// (direct data before semantic passages), then insertion order. Items are
// included whole or not at all; the bundle's total content size never
// exceeds the budget.
func (a *Assembler) Assemble(results []domain.ToolResult) domain.Bundle {
	type ranked struct {
		item domain.EvidenceItem
		pos  int
	}

	var flat []ranked
	seen := make(map[uint64]struct{})

	for _, res := range results {
		if !res.OK {
			continue
		}
		for _, item := range res.Items {
			key := item.DedupKey()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			flat = append(flat, ranked{item: item, pos: len(flat)})
		}
	}

	sort.SliceStable(flat, func(i, j int) bool {
		a, b := flat[i], flat[j]
		if a.item.Score != b.item.Score {
			return a.item.Score > b.item.Score
		}
		if ra, rb := a.item.Provenance.Tool.MergeRank(), b.item.Provenance.Tool.MergeRank(); ra != rb {
			return ra < rb
		}
		return a.pos < b.pos
	})

	var bundle domain.Bundle
	for _, r := range flat {
		size := len(r.item.Content)
		if bundle.Chars+size > a.budgetChars {
			continue // item does not fit whole; lower-ranked smaller items may still fit
		}
		bundle.Items = append(bundle.Items, r.item)
		bundle.Chars += size
	}
	return bundle
}
