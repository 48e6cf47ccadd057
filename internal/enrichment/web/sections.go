package web

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	descriptionLimit = 1800
	outcomesLimit    = 1200
	topicsLimit      = 1000
	fallbackOutcomes = 1500
)

// SuccessThreshold is the quality a page needs before its URL is cached.
const SuccessThreshold = 0.35

var (
	overviewStart     = regexp.MustCompile(`(?i)\boverview\b`)
	introductionStart = regexp.MustCompile(`(?i)\bintroduction\b`)
	outcomesStart     = regexp.MustCompile(`(?i)\blearning outcomes?\b`)
	topicsStart       = regexp.MustCompile(`(?i)\b(topics?|content)\b`)

	assessmentEnd   = regexp.MustCompile(`(?i)\bassessment\b`)
	courseEnd       = regexp.MustCompile(`(?i)\bas part of a course\b`)
	enquireEnd      = regexp.MustCompile(`(?i)\benquire\b`)
	prerequisiteEnd = regexp.MustCompile(`(?i)\bprerequisites?\b`)
	singleUnitEnd   = regexp.MustCompile(`(?i)\bstudy as a single unit\b`)

	// RE2 caps repeat counts at 1000, so the tails are truncated by hand.
	outcomesLoose = regexp.MustCompile(`(?i)(learning outcomes?|outcomes?)[:\-\s]+(.*)`)
	topicsLoose   = regexp.MustCompile(`(?i)(topics?|content)[:\-\s]+(.*)`)

	creditPattern = regexp.MustCompile(`\b(\d{1,2}\s*(credit points?|cp))\b`)
	levelPattern  = regexp.MustCompile(`aqf\s*level\s*(\d{1,2})`)
)

// Sections are the fields sliced out of a unit page.
type Sections struct {
	Description      string
	LearningOutcomes string
	Topics           string
	CreditPoints     string
	LevelCode        string
}

// ExtractSections slices the descriptive sections out of whitespace-collapsed page text.
func ExtractSections(text string) Sections {
	lower := strings.ToLower(text)

	desc := sliceBetween(text, overviewStart, descriptionLimit, outcomesStart, assessmentEnd, courseEnd, enquireEnd)
	if desc == "" {
		desc = sliceBetween(text, introductionStart, descriptionLimit, outcomesStart, assessmentEnd, prerequisiteEnd)
	}
	if desc == "" {
		desc = truncateRunes(text, descriptionLimit)
	}

	outcomes := sliceBetween(text, outcomesStart, outcomesLimit, assessmentEnd, singleUnitEnd, courseEnd, enquireEnd)
	if outcomes == "" {
		if m := outcomesLoose.FindStringSubmatch(text); m != nil {
			outcomes = truncateRunes(m[2], fallbackOutcomes)
		}
	}

	topics := sliceBetween(text, topicsStart, topicsLimit, outcomesStart, assessmentEnd, enquireEnd)
	if topics == "" {
		if m := topicsLoose.FindStringSubmatch(text); m != nil {
			topics = truncateRunes(m[2], topicsLimit)
		}
	}

	var s Sections
	s.Description = truncateRunes(collapse(desc), descriptionLimit)
	s.LearningOutcomes = truncateRunes(collapse(outcomes), outcomesLimit)
	s.Topics = truncateRunes(collapse(topics), topicsLimit)
	if m := creditPattern.FindStringSubmatch(lower); m != nil {
		s.CreditPoints = m[1]
	}
	if m := levelPattern.FindStringSubmatch(lower); m != nil {
		s.LevelCode = m[1]
	}
	return s
}

// Quality scores how much usable content the sections carry, in [0, 1].
func (s Sections) Quality() float64 {
	score := 0.0
	if utf8.RuneCountInString(s.Description) > 500 {
		score += 0.45
	}
	if utf8.RuneCountInString(s.LearningOutcomes) > 120 {
		score += 0.30
	}
	if utf8.RuneCountInString(s.Topics) > 80 {
		score += 0.15
	}
	if s.CreditPoints != "" {
		score += 0.05
	}
	if s.LevelCode != "" {
		score += 0.05
	}
	if score > 1 {
		return 1
	}
	return score
}

// HasText reports whether any descriptive section was found.
func (s Sections) HasText() bool {
	return s.Description != "" || s.LearningOutcomes != "" || s.Topics != ""
}

// overlay replaces each field with the candidate's value when that value is longer.
func (s Sections) overlay(c Sections) Sections {
	longer := func(cur, cand string) string {
		cand = strings.TrimSpace(cand)
		if utf8.RuneCountInString(cand) > utf8.RuneCountInString(strings.TrimSpace(cur)) {
			return cand
		}
		return cur
	}
	s.Description = longer(s.Description, c.Description)
	s.LearningOutcomes = longer(s.LearningOutcomes, c.LearningOutcomes)
	s.Topics = longer(s.Topics, c.Topics)
	s.CreditPoints = longer(s.CreditPoints, c.CreditPoints)
	s.LevelCode = longer(s.LevelCode, c.LevelCode)
	return s
}

// LooksLikeUnitPage reports whether text mentions code and reads like a unit page.
func LooksLikeUnitPage(text, code string) bool {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return false
	}
	lower := strings.ToLower(text)
	if !strings.Contains(lower, code) {
		return false
	}
	for _, cue := range []string{"learning outcomes", "assessment", "unit", "subject", "credit"} {
		if strings.Contains(lower, cue) {
			return true
		}
	}
	return false
}

func sliceBetween(text string, start *regexp.Regexp, limit int, ends ...*regexp.Regexp) string {
	loc := start.FindStringIndex(text)
	if loc == nil {
		return ""
	}
	from := loc[1]
	to := len(text)
	tail := text[from:]
	for _, end := range ends {
		if m := end.FindStringIndex(tail); m != nil && from+m[0] < to {
			to = from + m[0]
		}
	}
	return truncateRunes(collapse(text[from:to]), limit)
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
