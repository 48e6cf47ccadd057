// Package unit holds the records exchanged between the importers, the storage layer
// and the matching engine.
package unit

import (
	"strings"
)

// Unit describes an academic unit. External (transcript) units and catalog units
// share the shape; fields that only make sense on one side stay empty on the other.
type Unit struct {
	ID               int64  `json:"id,omitempty" mapstructure:"id"`
	Code             string `json:"unit_code" mapstructure:"unit_code"`
	Title            string `json:"title" mapstructure:"title"`
	Description      string `json:"description,omitempty" mapstructure:"description"`
	LearningOutcomes string `json:"learning_outcomes,omitempty" mapstructure:"learning_outcomes"`
	Topics           string `json:"topics,omitempty" mapstructure:"topics"`
	Keywords         string `json:"keywords,omitempty" mapstructure:"keywords"`
	CreditPoints     string `json:"credit_points,omitempty" mapstructure:"credit_points"`
	LevelCode        string `json:"aqf_level,omitempty" mapstructure:"aqf_level"`
	CourseGroup      string `json:"course,omitempty" mapstructure:"course"`

	// External side only.
	Grade               string  `json:"grade,omitempty" mapstructure:"grade"`
	Institution         string  `json:"institution,omitempty" mapstructure:"institution"`
	Source              string  `json:"source,omitempty" mapstructure:"source"`
	YearSemester        string  `json:"year_semester,omitempty" mapstructure:"year_semester"`
	SourceURL           string  `json:"source_url,omitempty" mapstructure:"source_url"`
	RetrievalMode       string  `json:"retrieval_mode,omitempty" mapstructure:"retrieval_mode"`
	RetrievalConfidence float64 `json:"retrieval_confidence,omitempty" mapstructure:"retrieval_confidence"`
}

// NormalizeCode returns the comparison form of a unit code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Normalized returns a copy with the code upper-cased and text fields trimmed.
func (u Unit) Normalized() Unit {
	u.Code = NormalizeCode(u.Code)
	u.Title = strings.TrimSpace(u.Title)
	u.Description = strings.TrimSpace(u.Description)
	u.LearningOutcomes = strings.TrimSpace(u.LearningOutcomes)
	u.Topics = strings.TrimSpace(u.Topics)
	u.Keywords = strings.TrimSpace(u.Keywords)
	u.CreditPoints = strings.TrimSpace(u.CreditPoints)
	u.LevelCode = strings.TrimSpace(u.LevelCode)
	u.CourseGroup = strings.TrimSpace(u.CourseGroup)
	u.Grade = strings.TrimSpace(u.Grade)
	return u
}

// FullText flattens every descriptive field into a single document.
func (u Unit) FullText() string {
	return strings.Join([]string{
		u.Code,
		u.Title,
		u.Description,
		u.LearningOutcomes,
		u.Topics,
		u.Keywords,
	}, " | ")
}

// ContentText is the descriptive content of the unit with the title appended so
// sparse records still have something to compare.
func (u Unit) ContentText() string {
	return strings.Join([]string{
		u.Description,
		u.LearningOutcomes,
		u.Topics,
		u.Keywords,
		u.Title,
	}, " | ")
}

// OutcomesText returns the first non-empty of learning outcomes, topics,
// description and title.
func (u Unit) OutcomesText() string {
	for _, s := range []string{u.LearningOutcomes, u.Topics, u.Description, u.Title} {
		if strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

// ContextText is the lowercased text scanned for qualification-level cues.
func (u Unit) ContextText() string {
	return strings.ToLower(strings.Join([]string{
		u.Title,
		u.Description,
		u.LearningOutcomes,
		u.Topics,
	}, " "))
}
