// Package gating narrows the catalog to the course group an external unit
// most likely belongs to.
package gating

import (
	"math"
	"strconv"
	"strings"

	"github.com/spigell/cpl-matcher/internal/unit"
)

// PostgraduateLevel is the lowest numeric level treated as postgraduate.
const PostgraduateLevel = 9

// Config names the catalog course groups the gate selects.
type Config struct {
	PostgraduateGroup  string `mapstructure:"postgraduate-group"`
	UndergraduateGroup string `mapstructure:"undergraduate-group"`
}

// DefaultConfig uses plain group names.
func DefaultConfig() Config {
	return Config{PostgraduateGroup: "postgraduate", UndergraduateGroup: "undergraduate"}
}

var (
	postgraduateCues  = []string{"master", "postgraduate", "graduate diploma"}
	undergraduateCues = []string{"bachelor", "undergraduate"}
)

// Gate decides course groups and filters catalog pools.
type Gate struct {
	cfg Config
}

// New fills empty group names from DefaultConfig.
func New(cfg Config) *Gate {
	def := DefaultConfig()
	if strings.TrimSpace(cfg.PostgraduateGroup) == "" {
		cfg.PostgraduateGroup = def.PostgraduateGroup
	}
	if strings.TrimSpace(cfg.UndergraduateGroup) == "" {
		cfg.UndergraduateGroup = def.UndergraduateGroup
	}
	return &Gate{cfg: cfg}
}

// Decide infers the target group from the numeric level first and from
// keyword cues in the unit's text second.
func (g *Gate) Decide(external unit.Unit) unit.GateDecision {
	if level, ok := parseLevel(external.LevelCode); ok {
		if level >= PostgraduateLevel {
			return unit.GateDecision{Group: g.cfg.PostgraduateGroup, Source: unit.GateSourceLevel}
		}
		return unit.GateDecision{Group: g.cfg.UndergraduateGroup, Source: unit.GateSourceLevel}
	}

	text := external.ContextText()
	if containsAny(text, postgraduateCues) {
		return unit.GateDecision{Group: g.cfg.PostgraduateGroup, Source: unit.GateSourceKeyword}
	}
	if containsAny(text, undergraduateCues) {
		return unit.GateDecision{Group: g.cfg.UndergraduateGroup, Source: unit.GateSourceKeyword}
	}

	return unit.GateDecision{Source: unit.GateSourceNone}
}

// Pool returns the catalog units in the decided group. Without a group, or when
// the group matches nothing, the whole catalog is returned and the decision
// says so.
func (g *Gate) Pool(decision unit.GateDecision, catalog []unit.Unit) ([]unit.Unit, unit.GateDecision) {
	idx, decision := g.PoolIndices(decision, catalog)
	if len(idx) == len(catalog) {
		return catalog, decision
	}

	pool := make([]unit.Unit, len(idx))
	for i, j := range idx {
		pool[i] = catalog[j]
	}
	return pool, decision
}

// PoolIndices is Pool expressed as positions into catalog, in catalog order.
func (g *Gate) PoolIndices(decision unit.GateDecision, catalog []unit.Unit) ([]int, unit.GateDecision) {
	if decision.Applied() {
		idx := make([]int, 0, len(catalog))
		for i, u := range catalog {
			if strings.EqualFold(strings.TrimSpace(u.CourseGroup), decision.Group) {
				idx = append(idx, i)
			}
		}
		if len(idx) > 0 {
			return idx, decision
		}
		decision.FellBack = true
	}

	idx := make([]int, len(catalog))
	for i := range idx {
		idx[i] = i
	}
	return idx, decision
}

// parseLevel accepts a positive number, optionally prefixed ("AQF 9", "Level 7").
func parseLevel(code string) (float64, bool) {
	fields := strings.Fields(strings.TrimSpace(code))
	if len(fields) == 0 {
		return 0, false
	}
	v, err := strconv.ParseFloat(fields[len(fields)-1], 64)
	if err != nil || v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func containsAny(text string, cues []string) bool {
	for _, cue := range cues {
		if strings.Contains(text, cue) {
			return true
		}
	}
	return false
}
