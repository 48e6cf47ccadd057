package unit

// Band is the coarse confidence bucket shown to reviewers.
type Band string

const (
	BandHigh    Band = "High"
	BandMedium  Band = "Medium"
	BandLow     Band = "Low"
	BandFlagged Band = "Flagged"
)

// GateSource records how the candidate pool for an external unit was chosen.
type GateSource string

const (
	GateSourceLevel   GateSource = "level"
	GateSourceKeyword GateSource = "keyword"
	GateSourceNone    GateSource = "none"
)

// GateDecision is the outcome of level/course gating for one external unit.
type GateDecision struct {
	// Group is the catalog course group selected; empty when no gate applied.
	Group  string
	Source GateSource
	// FellBack is set when Group matched no catalog unit and the full catalog
	// was used instead.
	FellBack bool
}

// Applied reports whether a target group was detected.
func (g GateDecision) Applied() bool {
	return g.Group != ""
}

// Components is the per-signal breakdown behind a match score.
type Components struct {
	Name           float64 `json:"name_sim"`
	Desc           float64 `json:"desc_sim"`
	Outcomes       float64 `json:"outcomes_sim"`
	Credit         float64 `json:"credit_sim"`
	GradeBonus     float64 `json:"grade_bonus"`
	RetrievalBonus float64 `json:"retrieval_bonus"`
}

// MatchResult is one ranked suggestion pairing an external unit with a catalog unit.
// Results are not modified after creation; reviewer decisions are stored apart.
type MatchResult struct {
	ExternalID    int64        `json:"external_unit_id"`
	CatalogID     int64        `json:"catalog_unit_id"`
	ExternalIndex int          `json:"-"`
	CatalogIndex  int          `json:"-"`
	Score         float64      `json:"score"`
	Band          Band         `json:"confidence_band"`
	Components    Components   `json:"components"`
	Method        string       `json:"method"`
	Gate          GateDecision `json:"-"`
	Explanation   string       `json:"explanation"`
}

// DecisionStatus is a reviewer verdict on a suggestion.
type DecisionStatus string

const (
	DecisionApproved    DecisionStatus = "approved"
	DecisionRejected    DecisionStatus = "rejected"
	DecisionNeedsReview DecisionStatus = "needs_review"
	DecisionOverride    DecisionStatus = "override"
	DecisionPending     DecisionStatus = "pending"
)

// Valid reports whether the status can be stored.
func (s DecisionStatus) Valid() bool {
	switch s {
	case DecisionApproved, DecisionRejected, DecisionNeedsReview, DecisionOverride:
		return true
	default:
		return false
	}
}

// Decision attaches a reviewer verdict to a stored suggestion.
type Decision struct {
	SuggestionID      int64
	Status            DecisionStatus
	OverrideCatalogID int64
	Reviewer          string
	Notes             string
}
