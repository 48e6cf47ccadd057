package matching

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/spigell/cpl-matcher/internal/explain"
	"github.com/spigell/cpl-matcher/internal/scoring"
	"github.com/spigell/cpl-matcher/internal/similarity"
	"github.com/spigell/cpl-matcher/internal/unit"
)

// queuedStrategy hands out one prepared matrix per call, in the order the
// orchestrator requests projections: full, title, content, outcomes.
type queuedStrategy struct {
	matrices [][][]float64
	calls    int
}

func (q *queuedStrategy) Name() string { return "Fixed" }

func (q *queuedStrategy) Matrix(_ context.Context, _, _ []string) ([][]float64, error) {
	m := q.matrices[q.calls%len(q.matrices)]
	q.calls++
	out := make([][]float64, len(m))
	for i := range m {
		out[i] = append([]float64(nil), m[i]...)
	}
	return out, nil
}

func fixed(full, title, content, outcomes [][]float64) *Orchestrator {
	s := &queuedStrategy{matrices: [][][]float64{full, title, content, outcomes}}
	return New(similarity.NewProvider(s, nil, nil), nil, Options{TopK: 1}, nil)
}

func TestMatchEmptyInputs(t *testing.T) {
	o := New(similarity.Select(nil, nil), nil, Options{}, nil)

	if got := o.Match(context.Background(), nil, []unit.Unit{{Title: "x"}}, unit.GateDecision{}); len(got) != 0 {
		t.Fatalf("expected no results for empty externals, got %d", len(got))
	}
	if got := o.Match(context.Background(), []unit.Unit{{Title: "x"}}, nil, unit.GateDecision{}); len(got) != 0 {
		t.Fatalf("expected no results for empty pool, got %d", len(got))
	}
}

func TestTopKDefaults(t *testing.T) {
	for _, k := range []int{0, -3} {
		if got := New(nil, nil, Options{TopK: k}, nil).TopK(); got != DefaultTopK {
			t.Fatalf("TopK(%d) = %d, want %d", k, got, DefaultTopK)
		}
	}
	if got := New(nil, nil, Options{TopK: 7}, nil).TopK(); got != 7 {
		t.Fatalf("expected any positive top-k to be kept, got %d", got)
	}
}

func TestMatchScenario(t *testing.T) {
	external := unit.Unit{
		ID:           11,
		Code:         "COMP1000",
		Title:        "Data Structures",
		Grade:        "Credit",
		CreditPoints: "10",
	}
	catalog := unit.Unit{
		ID:           42,
		Code:         "ICT201",
		Title:        "Data Structures and Algorithms",
		Description:  "Data structures, complexity analysis, sorting and searching algorithms.",
		CreditPoints: "10",
	}

	o := New(similarity.Select(nil, nil), nil, Options{TopK: 1}, nil)
	results := o.Match(context.Background(), []unit.Unit{external}, []unit.Unit{catalog}, unit.GateDecision{Source: unit.GateSourceNone})

	if len(results) != 1 {
		t.Fatalf("expected one result, got %d", len(results))
	}
	r := results[0]

	if r.ExternalID != 11 || r.CatalogID != 42 {
		t.Fatalf("unexpected ids %d/%d", r.ExternalID, r.CatalogID)
	}
	if r.Band != unit.BandLow && r.Band != unit.BandMedium {
		t.Fatalf("expected Low or Medium band, got %s", r.Band)
	}
	if r.Score >= scoring.HighThreshold || r.Score <= 0 {
		t.Fatalf("expected a moderate score, got %v", r.Score)
	}
	if r.Components.GradeBonus != 0.04 {
		t.Fatalf("expected credit grade bonus, got %v", r.Components.GradeBonus)
	}
	if r.Components.Credit != 1 {
		t.Fatalf("expected equal credit points to be compatible, got %v", r.Components.Credit)
	}
	if r.Method != similarity.MethodTFIDF {
		t.Fatalf("expected TF-IDF method, got %s", r.Method)
	}
	if !strings.HasPrefix(r.Explanation, "Level gate=not-detected. ") {
		t.Fatalf("expected gate prefix, got %q", r.Explanation)
	}
}

func TestMatchNonPassingDominates(t *testing.T) {
	one := [][]float64{{1}}
	o := fixed(one, one, one, one)

	results := o.Match(context.Background(),
		[]unit.Unit{{Title: "Networks", Grade: "Fail", CreditPoints: "10", RetrievalConfidence: 1}},
		[]unit.Unit{{Title: "Networks", CreditPoints: "10"}},
		unit.GateDecision{},
	)

	r := results[0]
	if r.Score > scoring.NonPassingCap {
		t.Fatalf("expected score <= %v, got %v", scoring.NonPassingCap, r.Score)
	}
	if r.Band != unit.BandFlagged {
		t.Fatalf("expected Flagged, got %s", r.Band)
	}
	if !strings.Contains(r.Explanation, "Do NOT auto-approve credit") {
		t.Fatalf("expected warning in explanation, got %q", r.Explanation)
	}
}

func TestMatchLowEvidenceCap(t *testing.T) {
	o := fixed([][]float64{{1}}, [][]float64{{1}}, [][]float64{{0.10}}, [][]float64{{0.05}})

	results := o.Match(context.Background(),
		[]unit.Unit{{Title: "Statistics", Grade: "HD", CreditPoints: "10", RetrievalConfidence: 1}},
		[]unit.Unit{{Title: "Statistics", CreditPoints: "10"}},
		unit.GateDecision{},
	)

	r := results[0]
	if r.Score > scoring.LowEvidenceCap {
		t.Fatalf("expected score <= %v, got %v", scoring.LowEvidenceCap, r.Score)
	}
	if !strings.Contains(r.Explanation, "mostly name-based") {
		t.Fatalf("expected low-evidence reason, got %q", r.Explanation)
	}
}

func TestMatchBoundsHoldForExtremeInputs(t *testing.T) {
	grades := []string{"HD", "Distinction", "Credit", "Pass", "Fail", "NYC", "", "weird"}
	allowed := map[float64]bool{-0.10: true, 0: true, 0.04: true, 0.07: true, 0.10: true}

	externals := make([]unit.Unit, 0, len(grades))
	for _, g := range grades {
		externals = append(externals, unit.Unit{
			Title:               "Operating Systems " + g,
			Grade:               g,
			CreditPoints:        "abc",
			RetrievalConfidence: 7,
		})
	}
	pool := []unit.Unit{
		{Title: "Operating Systems", CreditPoints: "-5"},
		{Title: "", CreditPoints: "1e400"},
		{Title: "Compilers", CreditPoints: "12"},
	}

	o := New(similarity.Select(nil, nil), nil, Options{TopK: 3}, nil)
	results := o.Match(context.Background(), externals, pool, unit.GateDecision{})

	if len(results) != len(externals)*len(pool) {
		t.Fatalf("expected %d results, got %d", len(externals)*len(pool), len(results))
	}
	for _, r := range results {
		c := r.Components
		for name, v := range map[string]float64{
			"score": r.Score, "name": c.Name, "desc": c.Desc, "outcomes": c.Outcomes, "credit": c.Credit,
		} {
			if v < 0 || v > 1 || math.IsNaN(v) {
				t.Fatalf("%s out of bounds: %v", name, v)
			}
		}
		if !allowed[c.GradeBonus] {
			t.Fatalf("unexpected grade bonus %v", c.GradeBonus)
		}
		if c.RetrievalBonus < 0 || c.RetrievalBonus > scoring.RetrievalWeight {
			t.Fatalf("retrieval bonus out of bounds: %v", c.RetrievalBonus)
		}
	}
}

func TestMatchOrdersByScoreThenPoolIndex(t *testing.T) {
	full := [][]float64{{0.9, 0.9, 0.1}}
	title := [][]float64{{0.2, 0.2, 1}}
	content := [][]float64{{0.5, 0.5, 1}}
	outcomes := [][]float64{{0.5, 0.5, 1}}

	s := &queuedStrategy{matrices: [][][]float64{full, title, content, outcomes}}
	o := New(similarity.NewProvider(s, nil, nil), nil, Options{TopK: 3}, nil)

	results := o.Match(context.Background(),
		[]unit.Unit{{Title: "x"}},
		[]unit.Unit{{Title: "a"}, {Title: "b"}, {Title: "c"}},
		unit.GateDecision{},
	)

	order := []int{results[0].CatalogIndex, results[1].CatalogIndex, results[2].CatalogIndex}
	if order[0] != 2 || order[1] != 0 || order[2] != 1 {
		t.Fatalf("unexpected order %v", order)
	}
}

func TestMatchTopKUsesFullTextRanking(t *testing.T) {
	full := [][]float64{{0.1, 0.8, 0.8}}
	other := [][]float64{{1, 0, 0}}

	o := fixed(full, other, other, other)
	results := o.Match(context.Background(),
		[]unit.Unit{{Title: "x"}},
		[]unit.Unit{{Title: "a"}, {Title: "b"}, {Title: "c"}},
		unit.GateDecision{},
	)

	if len(results) != 1 || results[0].CatalogIndex != 1 {
		t.Fatalf("expected first best full-text candidate, got %+v", results)
	}
}

func TestMatchGateFallbackRecorded(t *testing.T) {
	gate := unit.GateDecision{Group: "postgraduate", Source: unit.GateSourceLevel, FellBack: true}
	o := New(similarity.Select(nil, nil), nil, Options{}, nil)

	results := o.Match(context.Background(),
		[]unit.Unit{{Title: "Research Methods", LevelCode: "9"}},
		[]unit.Unit{{Title: "Research Methods", CourseGroup: "undergraduate"}},
		gate,
	)

	if len(results) != 1 {
		t.Fatalf("expected one result, got %d", len(results))
	}
	if results[0].Gate != gate {
		t.Fatalf("expected gate decision on result, got %+v", results[0].Gate)
	}
	if !strings.HasPrefix(results[0].Explanation, "Level gate=postgraduate via level. (no catalog units in group") {
		t.Fatalf("unexpected explanation %q", results[0].Explanation)
	}
}

func TestMatchDeterministic(t *testing.T) {
	externals := []unit.Unit{
		{Title: "Database Systems", Description: "Relational model, SQL, normalisation", Grade: "D", CreditPoints: "6"},
		{Title: "Web Development", LearningOutcomes: "Build responsive web applications", Grade: "P"},
	}
	pool := []unit.Unit{
		{Title: "Databases", Description: "SQL queries, relational design and normal forms", CreditPoints: "6"},
		{Title: "Web Technologies", LearningOutcomes: "Develop web applications with HTML and JavaScript"},
	}

	run := func() []unit.MatchResult {
		o := New(similarity.Select(nil, nil), explain.New(nil, nil), Options{TopK: 2}, nil)
		return o.Match(context.Background(), externals, pool, unit.GateDecision{})
	}

	first, second := run(), run()
	if len(first) != len(second) {
		t.Fatalf("result counts differ")
	}
	for i := range first {
		if first[i].Score != second[i].Score || first[i].Explanation != second[i].Explanation {
			t.Fatalf("result %d differs:\n%+v\n%+v", i, first[i], second[i])
		}
	}
}

// failingOnce errors on one call index and returns a constant matrix otherwise.
type failingOnce struct {
	failOn int
	calls  int
}

func (f *failingOnce) Name() string { return similarity.MethodEmbeddings }

func (f *failingOnce) Matrix(_ context.Context, a, b []string) ([][]float64, error) {
	call := f.calls
	f.calls++
	if call == f.failOn {
		return nil, errors.New("encoder unavailable")
	}
	m := make([][]float64, len(a))
	for i := range m {
		m[i] = make([]float64, len(b))
		for j := range m[i] {
			m[i][j] = 0.5
		}
	}
	return m, nil
}

func TestMatchReportsMethodActuallyUsed(t *testing.T) {
	externals := []unit.Unit{{Title: "Database Systems"}}
	pool := []unit.Unit{{Title: "Databases"}}

	tests := []struct {
		name   string
		failOn int
		want   string
	}{
		{name: "primary for every projection", failOn: -1, want: similarity.MethodEmbeddings},
		{name: "fallback for title only", failOn: 1, want: similarity.MethodEmbeddings + "+" + similarity.MethodTFIDF},
		{name: "fallback for full text", failOn: 0, want: similarity.MethodTFIDF + "+" + similarity.MethodEmbeddings},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := similarity.NewProvider(&failingOnce{failOn: tt.failOn}, similarity.NewTFIDF(), nil)
			results := New(provider, nil, Options{}, nil).Match(context.Background(), externals, pool, unit.GateDecision{})

			if len(results) != 1 {
				t.Fatalf("expected one result, got %d", len(results))
			}
			if results[0].Method != tt.want {
				t.Fatalf("Method = %q, want %q", results[0].Method, tt.want)
			}
			if !strings.Contains(results[0].Explanation, "Method="+tt.want+".") {
				t.Fatalf("explanation does not name %q: %q", tt.want, results[0].Explanation)
			}
		})
	}
}
