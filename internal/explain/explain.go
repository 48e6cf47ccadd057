// Package explain turns component scores into the reviewer-facing rationale
// attached to every match.
package explain

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/cpl-matcher/internal/scoring"
	"github.com/spigell/cpl-matcher/internal/unit"
)

const (
	reasonLowEvidence = "Low confidence because match is mostly name-based and lacks course-content evidence"
	reasonGood        = "Good content alignment from learning outcomes/topics"
	reasonModerate    = "Moderate alignment; check outcomes and AQF/credit manually"

	flagPrefix = "FLAG: Non-passing/Not Competent grade. Do NOT auto-approve credit. "

	transcriptOnly = "transcript-only"

	// Good alignment once outcome similarity reaches this value.
	GoodOutcomes = 0.40

	// Summary wording thresholds.
	StrongSummary   = 0.75
	ModerateSummary = 0.50
)

// SummaryRequest is what a natural-language summarizer sees about a pair.
type SummaryRequest struct {
	External unit.Unit
	Catalog  unit.Unit
	Score    float64
}

// Summarizer produces a short natural-language comparison. An absent value
// means the summarizer had nothing to say.
type Summarizer interface {
	Summarize(ctx context.Context, req SummaryRequest) (unit.Optional[string], error)
}

// Input carries everything one explanation is built from.
type Input struct {
	External   unit.Unit
	Catalog    unit.Unit
	Score      float64
	Method     string
	Components unit.Components
	Flagged    bool
	Gate       unit.GateDecision
}

// Explainer builds explanation strings.
type Explainer struct {
	summarizer Summarizer
	logger     *zap.Logger
}

// New returns an explainer. A nil summarizer makes every explanation use the
// deterministic summary.
func New(summarizer Summarizer, logger *zap.Logger) *Explainer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Explainer{summarizer: summarizer, logger: logger}
}

// Explain never fails; summarizer errors are logged and replaced by the fallback.
func (e *Explainer) Explain(ctx context.Context, in Input) string {
	var b strings.Builder

	b.WriteString(GatePrefix(in.Gate))
	if in.Flagged {
		b.WriteString(flagPrefix)
	}

	mode := strings.TrimSpace(in.External.RetrievalMode)
	if mode == "" {
		mode = transcriptOnly
	}

	c := in.Components
	fmt.Fprintf(&b, "%s. Method=%s. Confidence=%.1f%%. ", Reason(c), in.Method, in.Score*100)
	fmt.Fprintf(&b, "Components: name %.2f, description %.2f, outcomes %.2f, credit %.2f, grade_bonus %.2f. ",
		c.Name, c.Desc, c.Outcomes, c.Credit, c.GradeBonus)
	fmt.Fprintf(&b, "Retrieval source: %s (%.2f). ", mode, in.External.RetrievalConfidence)
	b.WriteString(e.summary(ctx, in))

	return b.String()
}

func (e *Explainer) summary(ctx context.Context, in Input) string {
	fallback := FallbackSummary(in.External.Title, in.Catalog.Title, in.Score)
	if e == nil || e.summarizer == nil {
		return fallback
	}

	text, err := e.summarizer.Summarize(ctx, SummaryRequest{
		External: in.External,
		Catalog:  in.Catalog,
		Score:    in.Score,
	})
	if err != nil {
		e.logger.Warn("summarizer failed; using deterministic summary",
			zap.String("external", in.External.Code),
			zap.String("catalog", in.Catalog.Code),
			zap.Error(err),
		)
		return fallback
	}

	s, ok := text.Get()
	if !ok || strings.TrimSpace(s) == "" {
		return fallback
	}
	return strings.TrimSpace(s)
}

// Reason picks the qualitative reason for a component breakdown.
func Reason(c unit.Components) string {
	switch {
	case scoring.LowEvidence(c):
		return reasonLowEvidence
	case c.Outcomes >= GoodOutcomes:
		return reasonGood
	default:
		return reasonModerate
	}
}

// FallbackSummary is the summary used when no summarizer output is available.
func FallbackSummary(externalTitle, catalogTitle string, score float64) string {
	strength := "low"
	switch {
	case score >= StrongSummary:
		strength = "strong"
	case score >= ModerateSummary:
		strength = "moderate"
	}

	return fmt.Sprintf("Summary: %s and %s show %s alignment overall (score %.2f). "+
		"The comparison is based on overlap between unit descriptions and learning outcomes. "+
		"Please review specific outcome verbs and scope depth before final approval.",
		externalTitle, catalogTitle, strength, score)
}

// GatePrefix records which level gate applied, if any.
func GatePrefix(g unit.GateDecision) string {
	if !g.Applied() {
		return "Level gate=not-detected. "
	}
	prefix := fmt.Sprintf("Level gate=%s via %s. ", g.Group, g.Source)
	if g.FellBack {
		prefix += "(no catalog units in group; using full catalog) "
	}
	return prefix
}
