// Package matching ranks catalog candidates for external units and scores the
// selected pairs.
package matching

import (
	"context"
	"slices"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/cpl-matcher/internal/explain"
	"github.com/spigell/cpl-matcher/internal/scoring"
	"github.com/spigell/cpl-matcher/internal/similarity"
	"github.com/spigell/cpl-matcher/internal/unit"
)

// DefaultTopK is the number of candidates kept per external unit.
const DefaultTopK = 1

// Similarity is the matrix source used for every text projection.
type Similarity interface {
	Similarity(ctx context.Context, a, b []string) similarity.Result
}

// Options tunes a run.
type Options struct {
	TopK int `mapstructure:"top-k"`
}

// Orchestrator computes ranked MatchResults.
type Orchestrator struct {
	similarity Similarity
	explainer  *explain.Explainer
	topK       int
	logger     *zap.Logger
}

// New builds an orchestrator. A nil explainer yields deterministic explanations.
func New(sim Similarity, explainer *explain.Explainer, opts Options, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if explainer == nil {
		explainer = explain.New(nil, logger)
	}
	topK := opts.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Orchestrator{similarity: sim, explainer: explainer, topK: topK, logger: logger}
}

// TopK returns the effective candidate count.
func (o *Orchestrator) TopK() int {
	return o.topK
}

type projections struct {
	full, title, content, outcomes []string
}

func project(units []unit.Unit) projections {
	p := projections{
		full:     make([]string, len(units)),
		title:    make([]string, len(units)),
		content:  make([]string, len(units)),
		outcomes: make([]string, len(units)),
	}
	for i, u := range units {
		p.full[i] = u.FullText()
		p.title[i] = u.Title
		p.content[i] = u.ContentText()
		p.outcomes[i] = u.OutcomesText()
	}
	return p
}

// Match pairs every external unit with its best pool candidates. Results for
// each external unit are ordered by score, ties by pool position, and appear in
// the order of externals. The gate decision is recorded on every result.
// Empty inputs give no results.
func (o *Orchestrator) Match(ctx context.Context, externals, pool []unit.Unit, gate unit.GateDecision) []unit.MatchResult {
	if len(externals) == 0 || len(pool) == 0 {
		return nil
	}

	ext := project(externals)
	cat := project(pool)

	full := o.similarity.Similarity(ctx, ext.full, cat.full)
	title := o.similarity.Similarity(ctx, ext.title, cat.title)
	content := o.similarity.Similarity(ctx, ext.content, cat.content)
	outcomes := o.similarity.Similarity(ctx, ext.outcomes, cat.outcomes)
	method := methodOf(full, title, content, outcomes)

	o.logger.Debug("similarity matrices computed",
		zap.Int("externals", len(externals)),
		zap.Int("pool", len(pool)),
		zap.String("method", method),
		zap.String("gate", string(gate.Source)),
	)

	results := make([]unit.MatchResult, 0, len(externals)*min(o.topK, len(pool)))
	for i, external := range externals {
		nonPassing := scoring.IsNonPassing(external.Grade)
		gradeBonus := scoring.GradeBonus(external.Grade)
		retrieval := scoring.RetrievalBonus(external.RetrievalConfidence)

		block := make([]unit.MatchResult, 0, o.topK)
		for _, j := range o.rank(full, i, len(pool)) {
			c := unit.Components{
				Name:           title.At(i, j),
				Desc:           content.At(i, j),
				Outcomes:       outcomes.At(i, j),
				Credit:         scoring.Compat(external.CreditPoints, pool[j].CreditPoints, scoring.CreditTolerance),
				GradeBonus:     gradeBonus,
				RetrievalBonus: retrieval,
			}
			score, band, _ := scoring.Score(c, nonPassing)

			block = append(block, unit.MatchResult{
				ExternalID:    external.ID,
				CatalogID:     pool[j].ID,
				ExternalIndex: i,
				CatalogIndex:  j,
				Score:         score,
				Band:          band,
				Components:    c,
				Method:        method,
				Gate:          gate,
				Explanation: o.explainer.Explain(ctx, explain.Input{
					External:   external,
					Catalog:    pool[j],
					Score:      score,
					Method:     method,
					Components: c,
					Flagged:    nonPassing,
					Gate:       gate,
				}),
			})
		}

		sort.SliceStable(block, func(a, b int) bool {
			if block[a].Score != block[b].Score {
				return block[a].Score > block[b].Score
			}
			return block[a].CatalogIndex < block[b].CatalogIndex
		})
		results = append(results, block...)
	}

	return results
}

// rank returns the top-K pool indices for external row i by full-text
// similarity, ties kept in pool order.
func (o *Orchestrator) rank(full similarity.Result, i, poolSize int) []int {
	idx := make([]int, poolSize)
	for j := range idx {
		idx[j] = j
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return full.At(i, idx[a]) > full.At(i, idx[b])
	})
	if len(idx) > o.topK {
		idx = idx[:o.topK]
	}
	return idx
}

// methodOf names the techniques behind the matrices. When a fallback replaced
// the primary for some projections the distinct methods are joined with "+".
func methodOf(results ...similarity.Result) string {
	var methods []string
	for _, r := range results {
		if !slices.Contains(methods, r.Method) {
			methods = append(methods, r.Method)
		}
	}
	return strings.Join(methods, "+")
}
