package scoring

import "strings"

// Grade bonuses by tier.
const (
	bonusHighDistinction = 0.10
	bonusDistinction     = 0.07
	bonusCredit          = 0.04
	bonusPass            = 0.00
	bonusNonPassing      = -0.10
)

var gradeTiers = map[string]float64{
	"hd":               bonusHighDistinction,
	"high distinction": bonusHighDistinction,

	"distinction": bonusDistinction,
	"dn":          bonusDistinction,
	"d":           bonusDistinction,

	"credit": bonusCredit,
	"cr":     bonusCredit,
	"c":      bonusCredit,

	"pass":      bonusPass,
	"ps":        bonusPass,
	"p":         bonusPass,
	"competent": bonusPass,
}

var nonPassingGrades = map[string]struct{}{
	"fail":              {},
	"fl":                {},
	"f":                 {},
	"n":                 {},
	"nn":                {},
	"nyc":               {},
	"not yet competent": {},
	"not competent":     {},
	"unsatisfactory":    {},
}

func normalizeGrade(grade string) string {
	return strings.Join(strings.Fields(strings.ToLower(grade)), " ")
}

// IsNonPassing reports whether the grade is a fail or not-yet-competent token.
func IsNonPassing(grade string) bool {
	_, ok := nonPassingGrades[normalizeGrade(grade)]
	return ok
}

// GradeBonus returns the additive bonus for a grade. Unknown grades give 0.
func GradeBonus(grade string) float64 {
	g := normalizeGrade(grade)
	if bonus, ok := gradeTiers[g]; ok {
		return bonus
	}
	if _, ok := nonPassingGrades[g]; ok {
		return bonusNonPassing
	}
	return 0
}
