package unit

import "strings"

// Enrichment is the payload produced by an enrichment oracle for one external unit.
type Enrichment struct {
	Description      Optional[string]
	LearningOutcomes Optional[string]
	Topics           Optional[string]
	CreditPoints     Optional[string]
	LevelCode        Optional[string]
	SourceURL        Optional[string]
	Mode             Optional[string]
	Confidence       Optional[float64]
}

// Empty reports whether the enrichment carries no usable value.
func (e Enrichment) Empty() bool {
	for _, f := range []Optional[string]{
		e.Description, e.LearningOutcomes, e.Topics,
		e.CreditPoints, e.LevelCode, e.SourceURL, e.Mode,
	} {
		if v, ok := f.Get(); ok && strings.TrimSpace(v) != "" {
			return false
		}
	}
	return !e.Confidence.Present()
}

// MergeEnrichment returns existing with every present, non-empty incoming field
// applied. Fields are never cleared.
func MergeEnrichment(existing Unit, incoming Enrichment) Unit {
	merged := existing
	mergeString(&merged.Description, incoming.Description)
	mergeString(&merged.LearningOutcomes, incoming.LearningOutcomes)
	mergeString(&merged.Topics, incoming.Topics)
	mergeString(&merged.CreditPoints, incoming.CreditPoints)
	mergeString(&merged.LevelCode, incoming.LevelCode)
	mergeString(&merged.SourceURL, incoming.SourceURL)
	mergeString(&merged.RetrievalMode, incoming.Mode)

	if conf, ok := incoming.Confidence.Get(); ok {
		merged.RetrievalConfidence = clamp01(conf)
	}

	return merged
}

func mergeString(dst *string, incoming Optional[string]) {
	v, ok := incoming.Get()
	if !ok {
		return
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return
	}
	*dst = v
}

func clamp01(x float64) float64 {
	if x != x || x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
