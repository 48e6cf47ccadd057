package scoring

import (
	"math"
	"testing"

	"github.com/spigell/cpl-matcher/internal/unit"
)

func TestCompat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		a, b   string
		expect float64
	}{
		{name: "equal", a: "10", b: "10", expect: 1},
		{name: "within tolerance", a: "10", b: "12", expect: 1},
		{name: "decays linearly", a: "10", b: "20", expect: 0.5},
		{name: "empty", a: "", b: "10", expect: 0},
		{name: "not a number", a: "abc", b: "10", expect: 0},
		{name: "zero", a: "0", b: "10", expect: 0},
		{name: "negative", a: "-5", b: "10", expect: 0},
		{name: "whitespace", a: " 12 ", b: "12.0", expect: 1},
		{name: "far apart", a: "1", b: "100", expect: 0.01},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Compat(tt.a, tt.b, CreditTolerance)
			if math.Abs(got-tt.expect) > 1e-9 {
				t.Fatalf("Compat(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.expect)
			}
		})
	}
}

func TestGradeBonus(t *testing.T) {
	t.Parallel()

	tests := map[string]float64{
		"HD":                0.10,
		"High Distinction":  0.10,
		"Distinction":       0.07,
		" dn ":              0.07,
		"Credit":            0.04,
		"CR":                0.04,
		"Pass":              0,
		"competent":         0,
		"Fail":              -0.10,
		"NYC":               -0.10,
		"Not Yet Competent": -0.10,
		"unsatisfactory":    -0.10,
		"A+":                0,
		"":                  0,
	}

	allowed := map[float64]bool{-0.10: true, 0: true, 0.04: true, 0.07: true, 0.10: true}

	for grade, expect := range tests {
		got := GradeBonus(grade)
		if got != expect {
			t.Fatalf("GradeBonus(%q) = %v, want %v", grade, got, expect)
		}
		if !allowed[got] {
			t.Fatalf("GradeBonus(%q) = %v is outside the fixed bonus set", grade, got)
		}
	}
}

func TestIsNonPassing(t *testing.T) {
	t.Parallel()

	for _, g := range []string{"fail", "FL", "F", "n", "NN", "nyc", "not  competent", "Unsatisfactory"} {
		if !IsNonPassing(g) {
			t.Fatalf("expected %q to be non-passing", g)
		}
	}
	for _, g := range []string{"pass", "credit", "", "withdrawn"} {
		if IsNonPassing(g) {
			t.Fatalf("expected %q to be passing or unknown", g)
		}
	}
}

func TestRetrievalBonusBounds(t *testing.T) {
	t.Parallel()

	for _, conf := range []float64{-1, 0, 0.5, 1, 3, math.NaN()} {
		got := RetrievalBonus(conf)
		if got < 0 || got > RetrievalWeight {
			t.Fatalf("RetrievalBonus(%v) = %v out of [0, %v]", conf, got, RetrievalWeight)
		}
	}
	if got := RetrievalBonus(1); got != RetrievalWeight {
		t.Fatalf("expected full bonus, got %v", got)
	}
}

func TestScoreNonPassingDominates(t *testing.T) {
	t.Parallel()

	c := unit.Components{
		Name:           1,
		Desc:           1,
		Outcomes:       1,
		Credit:         1,
		GradeBonus:     GradeBonus("Fail"),
		RetrievalBonus: RetrievalBonus(1),
	}

	score, band, guard := Score(c, IsNonPassing("Fail"))
	if score > NonPassingCap {
		t.Fatalf("expected score <= %v, got %v", NonPassingCap, score)
	}
	if band != unit.BandFlagged {
		t.Fatalf("expected Flagged band, got %s", band)
	}
	if !guard.NonPassing {
		t.Fatalf("expected non-passing guardrail to be recorded")
	}
}

func TestScoreLowEvidenceCap(t *testing.T) {
	t.Parallel()

	c := unit.Components{
		Name:           1,
		Desc:           0.10,
		Outcomes:       0.05,
		Credit:         1,
		GradeBonus:     0.10,
		RetrievalBonus: 0.08,
	}

	score, band, guard := Score(c, false)
	if score > LowEvidenceCap {
		t.Fatalf("expected score <= %v, got %v", LowEvidenceCap, score)
	}
	if !guard.LowEvidence {
		t.Fatalf("expected low-evidence guardrail")
	}
	if band == unit.BandHigh {
		t.Fatalf("name-only evidence must not be High")
	}
}

func TestScoreBands(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		c      unit.Components
		expect unit.Band
	}{
		{name: "high", c: unit.Components{Name: 1, Desc: 1, Outcomes: 1, Credit: 1}, expect: unit.BandHigh},
		{name: "medium", c: unit.Components{Name: 0.5, Desc: 0.6, Outcomes: 0.5, Credit: 1}, expect: unit.BandMedium},
		{name: "low", c: unit.Components{Name: 0.2, Desc: 0.3, Outcomes: 0.2}, expect: unit.BandLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, band, _ := Score(tt.c, false); band != tt.expect {
				t.Fatalf("expected %s, got %s", tt.expect, band)
			}
		})
	}
}

func TestScoreAlwaysClamped(t *testing.T) {
	t.Parallel()

	inputs := []unit.Components{
		{Name: 5, Desc: 5, Outcomes: 5, Credit: 5, GradeBonus: 0.10, RetrievalBonus: 0.08},
		{Name: -1, Desc: -1, Outcomes: -1, GradeBonus: -0.10},
		{Name: math.NaN(), Desc: math.NaN(), Outcomes: math.NaN()},
	}

	for _, c := range inputs {
		for _, flagged := range []bool{false, true} {
			score, _, _ := Score(c, flagged)
			if score < 0 || score > 1 || math.IsNaN(score) {
				t.Fatalf("score %v out of bounds for %+v", score, c)
			}
		}
	}
}
