// Package router turns a validated query into a deterministic tool plan.
package router

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/hydrolens/hydrolens/internal/domain"
)

// Config bounds the routing decision.
type Config struct {
	MaxTools    int
	TopK        int
	FilterLimit int
	// Regions is the known-region lexicon, lowercase.
	Regions []string
}

// Router selects tools for a query. Purely lexical and total: no model
// calls, no errors, identical queries always map to identical plans.
type Router struct {
	cfg     Config
	regions map[string]struct{}
}

// New creates a router with the given bounds and region lexicon.
func New(cfg Config) *Router {
	regions := make(map[string]struct{}, len(cfg.Regions))
	for _, r := range cfg.Regions {
		regions[strings.ToLower(r)] = struct{}{}
	}
	return &Router{cfg: cfg, regions: regions}
}

var (
	recordIDPattern  = regexp.MustCompile(`#([A-Za-z0-9][A-Za-z0-9_-]*)`)
	conditionPattern = regexp.MustCompile(`condition\s*(<=|>=|<|>|=)?\s*([1-5])\b`)
)

// resource keywords mapped to registry resource types.
var resourceLexicon = map[string]domain.ResourceType{
	"lake":       domain.ResourceLake,
	"lakes":      domain.ResourceLake,
	"river":      domain.ResourceRiver,
	"rivers":     domain.ResourceRiver,
	"canal":      domain.ResourceCanal,
	"canals":     domain.ResourceCanal,
	"reservoir":  domain.ResourceReservoir,
	"reservoirs": domain.ResourceReservoir,
}

// Route plans the tool invocations for a query. Three shapes:
//
//  1. A record id (explicit filter or a #id mention in the text) routes to
//     the priority explainer plus semantic search scoped to that record.
//     Guests never get the explainer; the plan fails closed to scoped
//     semantic search alone.
//  2. Attribute constraints (explicit filters or ones parsed from the text)
//     route to the structured filter plus semantic search scoped to the
//     structured results.
//  3. Anything else routes to unscoped semantic search.
//
// The plan never exceeds MaxTools; the explainer is dropped first when it
// would.
func (r *Router) Route(q domain.Query) []domain.Invocation {
	recordID := q.Filters.RecordID
	if recordID == "" {
		if m := recordIDPattern.FindStringSubmatch(q.Text); m != nil {
			recordID = m[1]
		}
	}

	var plan []domain.Invocation

	switch {
	case recordID != "":
		if q.Role.CanViewSensitive() {
			plan = append(plan, domain.Invocation{
				Tool:   domain.ToolExplainer,
				Params: domain.ToolParams{RecordID: recordID},
			})
		}
		plan = append(plan, domain.Invocation{
			Tool: domain.ToolSemantic,
			Params: domain.ToolParams{
				Query:    q.Text,
				ScopeIDs: []string{recordID},
				TopK:     r.cfg.TopK,
			},
		})

	case r.attributeFilters(q) != (domain.Filters{}):
		filters := r.attributeFilters(q)
		plan = append(plan, domain.Invocation{
			Tool:   domain.ToolStructured,
			Params: domain.ToolParams{Filters: filters, Limit: r.cfg.FilterLimit},
		})
		if strings.TrimSpace(q.Text) != "" {
			plan = append(plan, domain.Invocation{
				Tool: domain.ToolSemantic,
				Params: domain.ToolParams{
					Query:             q.Text,
					ScopeToStructured: true,
					TopK:              r.cfg.TopK,
				},
			})
		}

	default:
		plan = append(plan, domain.Invocation{
			Tool:   domain.ToolSemantic,
			Params: domain.ToolParams{Query: q.Text, TopK: r.cfg.TopK},
		})
	}

	plan = capPlan(plan, r.cfg.MaxTools)
	for i := range plan {
		plan[i].Seq = i
	}
	return plan
}

// explainContextQuery retrieves the passport passages most relevant to a
// priority discussion when the caller gave no free text of their own.
const explainContextQuery = "technical condition, maintenance state and inspection priority"

// ExplainRoute plans the forced path used by the explain endpoint: the
// explainer plus semantic retrieval scoped to the record, so the answer can
// ground the score breakdown in the record's own passport text.
func (r *Router) ExplainRoute(recordID string) []domain.Invocation {
	return []domain.Invocation{
		{
			Tool:   domain.ToolExplainer,
			Seq:    0,
			Params: domain.ToolParams{RecordID: recordID},
		},
		{
			Tool: domain.ToolSemantic,
			Seq:  1,
			Params: domain.ToolParams{
				Query:    explainContextQuery,
				ScopeIDs: []string{recordID},
				TopK:     r.cfg.TopK,
			},
		},
	}
}

// attributeFilters merges explicit filters with constraints parsed from the
// query text. Explicit filters win on conflict.
func (r *Router) attributeFilters(q domain.Query) domain.Filters {
	f := q.Filters
	f.RecordID = ""

	text := strings.ToLower(q.Text)
	words := strings.FieldsFunc(text, func(c rune) bool {
		return !('a' <= c && c <= 'z' || '0' <= c && c <= '9' || c == '-')
	})

	for _, w := range words {
		if f.ResourceType == "" {
			if rt, ok := resourceLexicon[w]; ok {
				f.ResourceType = string(rt)
			}
		}
		if f.Region == "" {
			if _, ok := r.regions[w]; ok {
				f.Region = w
			}
		}
	}

	if f.WaterType == "" && strings.Contains(text, "fresh") {
		f.WaterType = string(domain.WaterFresh)
	}

	if f.ConditionMin == 0 && f.ConditionMax == 0 {
		if m := conditionPattern.FindStringSubmatch(text); m != nil {
			n, _ := strconv.Atoi(m[2])
			switch m[1] {
			case "<":
				f.ConditionMax = n - 1
			case "<=", "":
				f.ConditionMax = n
			case ">":
				f.ConditionMin = n + 1
			case ">=":
				f.ConditionMin = n
			case "=":
				f.ConditionMin, f.ConditionMax = n, n
			}
		}
	}

	return f
}

func capPlan(plan []domain.Invocation, maxTools int) []domain.Invocation {
	if maxTools <= 0 || len(plan) <= maxTools {
		return plan
	}
	// Drop the explainer before any retrieval tool.
	for i, inv := range plan {
		if inv.Tool == domain.ToolExplainer {
			plan = append(plan[:i], plan[i+1:]...)
			break
		}
	}
	if len(plan) > maxTools {
		plan = plan[:maxTools]
	}
	return plan
}
