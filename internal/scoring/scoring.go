// Package scoring turns similarity signals and structured attributes into a bounded
// match score with guardrails and a confidence band.
package scoring

import (
	"math"
	"strconv"
	"strings"

	"github.com/spigell/cpl-matcher/internal/unit"
)

// Component weights for the raw score.
const (
	WeightName     = 0.20
	WeightDesc     = 0.35
	WeightOutcomes = 0.35
	WeightCredit   = 0.10
)

const (
	// CreditTolerance is the credit-point difference still treated as equal.
	CreditTolerance = 2.0
	// RetrievalWeight scales the external unit's retrieval confidence.
	RetrievalWeight = 0.08

	// LowEvidenceOutcomes and LowEvidenceDesc mark a match as name-only when
	// both content signals fall below them.
	LowEvidenceOutcomes = 0.15
	LowEvidenceDesc     = 0.20
	// LowEvidenceCap bounds name-only matches.
	LowEvidenceCap = 0.58
	// NonPassingCap bounds any match whose external grade did not pass.
	NonPassingCap = 0.20

	HighThreshold   = 0.70
	MediumThreshold = 0.45
)

// Guardrails records which caps were applied to a score.
type Guardrails struct {
	LowEvidence bool
	NonPassing  bool
}

// Compat returns how compatible two numeric attributes are. Unparseable, empty,
// zero or negative values give 0; differences within tolerance give 1; otherwise
// the score decays linearly with the relative difference.
func Compat(a, b string, tolerance float64) float64 {
	aa, bb := parseNumber(a), parseNumber(b)
	if aa <= 0 || bb <= 0 {
		return 0
	}

	diff := math.Abs(aa - bb)
	if diff <= tolerance {
		return 1
	}

	return math.Max(0, 1-diff/math.Max(aa, bb))
}

func parseNumber(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// RetrievalBonus rewards matches backed by retrieved institutional content.
func RetrievalBonus(confidence float64) float64 {
	return RetrievalWeight * Clamp01(confidence)
}

// Band maps a score to a confidence band. Flagged is never returned here.
func Band(score float64) unit.Band {
	switch {
	case score >= HighThreshold:
		return unit.BandHigh
	case score >= MediumThreshold:
		return unit.BandMedium
	default:
		return unit.BandLow
	}
}

// LowEvidence reports whether a match rests on the title alone.
func LowEvidence(c unit.Components) bool {
	return c.Outcomes < LowEvidenceOutcomes && c.Desc < LowEvidenceDesc
}

// Score combines the components into the final score. The non-passing cap is
// applied last and always wins.
func Score(c unit.Components, nonPassing bool) (float64, unit.Band, Guardrails) {
	var guard Guardrails

	raw := WeightName*Clamp01(c.Name) +
		WeightDesc*Clamp01(c.Desc) +
		WeightOutcomes*Clamp01(c.Outcomes) +
		WeightCredit*Clamp01(c.Credit) +
		c.GradeBonus

	score := Clamp01(raw + c.RetrievalBonus)

	if LowEvidence(c) {
		guard.LowEvidence = true
		score = math.Min(score, LowEvidenceCap)
	}

	if nonPassing {
		guard.NonPassing = true
		return math.Min(score, NonPassingCap), unit.BandFlagged, guard
	}

	return score, Band(score), guard
}

// Clamp01 bounds x to [0,1]; NaN becomes 0.
func Clamp01(x float64) float64 {
	if math.IsNaN(x) || x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
