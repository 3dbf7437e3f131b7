// Package synthesize turns an evidence bundle into the final answer.
package synthesize

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hydrolens/hydrolens/internal/domain"
	"github.com/hydrolens/hydrolens/internal/metrics"
)

// Confidence bands. Direct registry data beats similarity-only evidence;
// empty evidence yields an honest refusal rather than a hallucinated answer.
const (
	confidenceDirect       = 0.9
	confidenceSemanticBase = 0.6
	confidenceSemanticSpan = 0.2
	confidenceNoEvidence   = 0.4
)

const refusalText = "I do not have enough information in the water-object registry to answer this question."

// FailureText is the terminal zero-confidence answer body, shared with the
// session for the case where every tool failed and there is nothing to
// synthesize from.
const FailureText = "I am unable to answer right now. Please try again later."

// Synthesizer renders the grounded prompt and calls the generation provider.
// One retry with a reduced context on failure; a second failure is terminal
// and produces a zero-confidence failure answer instead of an error.
type Synthesizer struct {
	gen     domain.Generator
	timeout time.Duration
	logger  *zap.Logger
}

// New creates a synthesizer with a per-attempt generation timeout.
func New(gen domain.Generator, timeout time.Duration, logger *zap.Logger) *Synthesizer {
	return &Synthesizer{gen: gen, timeout: timeout, logger: logger}
}

// Synthesize produces the answer for a query from redacted evidence. The
// ToolCalls field is left zero; the session fills it in. Never returns an
// error: every failure mode maps to a defined answer shape.
func (s *Synthesizer) Synthesize(ctx context.Context, q domain.Query, b domain.Bundle) domain.Answer {
	if b.Empty() {
		return domain.Answer{Text: refusalText, Confidence: confidenceNoEvidence}
	}

	text, err := s.generate(ctx, buildPrompt(q, b))
	if err != nil {
		s.logger.Warn("synthesis failed, retrying with reduced context", zap.Error(err))
		metrics.SynthesisRetriesTotal.Inc()

		reduced := reduce(b)
		text, err = s.generate(ctx, buildPrompt(q, reduced))
		if err != nil {
			s.logger.Error("synthesis failed terminally", zap.Error(err))
			return domain.Answer{Text: FailureText, Confidence: 0.0}
		}
		b = reduced
	}

	return domain.Answer{
		Text:       text,
		Sources:    collectSources(b),
		Confidence: confidence(b),
	}
}

func (s *Synthesizer) generate(ctx context.Context, prompt string) (string, error) {
	genCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.gen.Generate(genCtx, prompt)
}

// reduce keeps the top half of the evidence by rank. The bundle is already
// relevance-ordered, so a prefix is the top half.
func reduce(b domain.Bundle) domain.Bundle {
	n := (len(b.Items) + 1) / 2
	items := b.Items[:n]
	chars := 0
	for _, item := range items {
		chars += len(item.Content)
	}
	return domain.Bundle{Items: items, Chars: chars}
}

func buildPrompt(q domain.Query, b domain.Bundle) string {
	lang := q.Language
	if lang == "" {
		lang = "en"
	}

	var sb strings.Builder
	sb.WriteString("You are an assistant for a national water-object registry. ")
	sb.WriteString("Answer strictly from the evidence below; if it is insufficient, say so. ")
	sb.WriteString("Cite evidence by its [tag]. ")
	fmt.Fprintf(&sb, "The caller role is %q; answer in language %q.\n\n", q.Role, lang)

	sb.WriteString("Evidence:\n")
	for _, item := range b.Items {
		fmt.Fprintf(&sb, "[%s] %s\n", item.Provenance.Tag(), item.Content)
	}

	sb.WriteString("\nQuestion: ")
	if strings.TrimSpace(q.Text) != "" {
		sb.WriteString(q.Text)
	} else {
		sb.WriteString("Summarize the matching water objects above.")
	}
	return sb.String()
}

// confidence grades the answer by evidence quality: 0.9 with any direct
// registry data, otherwise 0.6-0.8 scaled by the mean semantic score.
func confidence(b domain.Bundle) float64 {
	sum := 0.0
	for _, item := range b.Items {
		if item.Provenance.Tool != domain.ToolSemantic {
			return confidenceDirect
		}
		sum += item.Score
	}
	mean := sum / float64(len(b.Items))
	if mean > 1.0 {
		mean = 1.0
	}
	return confidenceSemanticBase + confidenceSemanticSpan*mean
}

func collectSources(b domain.Bundle) []domain.Source {
	seen := make(map[string]struct{}, len(b.Items))
	sources := make([]domain.Source, 0, len(b.Items))
	for _, item := range b.Items {
		tag := item.Provenance.Tag()
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		sources = append(sources, domain.Source{
			ProvenanceTag: tag,
			RecordID:      item.Provenance.RecordID,
		})
	}
	return sources
}
