// Package transcript turns plain transcript text into external units.
package transcript

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/spigell/cpl-matcher/internal/unit"
)

const maxTitleLen = 200

var (
	termFirst = regexp.MustCompile(`(?i)(semester\s*[12]|trimester\s*[123]|term\s*[123]).{0,15}(20\d{2})`)
	yearFirst = regexp.MustCompile(`(?i)(20\d{2}).{0,15}(semester\s*[12]|trimester\s*[123]|term\s*[123])`)

	unitLine  = regexp.MustCompile(`^([A-Z]{2,6}\d{2,4})\s*[-:]?\s*(.+)$`)
	partSplit = regexp.MustCompile(`\s*[-|–—]\s*`)

	longGrades = []struct {
		pattern *regexp.Regexp
		label   string
	}{
		{regexp.MustCompile(`\bhigh distinction\b`), "High Distinction"},
		{regexp.MustCompile(`\bdistinction\b`), "Distinction"},
		{regexp.MustCompile(`\bcredit\b`), "Credit"},
		{regexp.MustCompile(`\bpass\b`), "Pass"},
		{regexp.MustCompile(`\bfail\b`), "Fail"},
	}

	// Ordered: the first alias found wins.
	gradeAliases = []struct {
		token string
		label string
	}{
		{"HD", "HD"},
		{"DN", "Distinction"},
		{"DI", "Distinction"},
		{"D", "Distinction"},
		{"CR", "Credit"},
		{"C", "Credit"},
		{"PS", "Pass"},
		{"PP", "Pass"},
		{"P", "Pass"},
		{"FL", "Fail"},
		{"NN", "Fail"},
		{"F", "Fail"},
	}
	aliasPatterns = compileAliases()

	delimitedGrade = regexp.MustCompile(`(?i)(?:/|\||-|:)\s*(HD|DN|DI|D|CR|C|PS|PP|P|FL|NN|F)\b`)
	trailingGrade  = regexp.MustCompile(`(?i)\b(HD|DN|DI|D|CR|C|PS|PP|P|FL|NN|F|High Distinction|Distinction|Credit|Pass|Fail)\b\s*$`)

	titleCaser = cases.Title(language.English)
)

func compileAliases() []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(gradeAliases))
	for i, a := range gradeAliases {
		out[i] = regexp.MustCompile(`(?i)\b` + a.token + `\b`)
	}
	return out
}

// Parse extracts units from transcript text. Lines such as
// "COSC101 - Introduction to Programming - Credit" become units; lines such as
// "Semester 1 2024" set the term for the units that follow. The first
// occurrence of a code wins.
func Parse(text, source string) []unit.Unit {
	institution, _ := DetectInstitution(text)

	var (
		units []unit.Unit
		seen  = make(map[string]bool)
		term  string
	)
	for _, line := range strings.Split(text, "\n") {
		clean := strings.Join(strings.Fields(line), " ")
		if clean == "" {
			continue
		}

		if t := extractTerm(clean); t != "" {
			term = t
			continue
		}

		m := unitLine.FindStringSubmatch(clean)
		if m == nil {
			continue
		}
		code, rest := m[1], m[2]
		if seen[code] {
			continue
		}

		var parts []string
		for _, p := range partSplit.Split(rest, -1) {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		title := rest
		if len(parts) > 0 {
			title = parts[0]
		}

		grade := ""
		for _, p := range parts[min(1, len(parts)):] {
			if grade = extractGrade(p); grade != "" {
				break
			}
		}
		if grade == "" {
			grade = extractGrade(rest)
		}

		title = strings.Trim(trailingGrade.ReplaceAllString(title, ""), " -:,/|")
		title = strings.TrimSpace(title)
		if utf8.RuneCountInString(title) > maxTitleLen {
			title = string([]rune(title)[:maxTitleLen])
		}

		seen[code] = true
		units = append(units, unit.Unit{
			Source:       source,
			Institution:  institution,
			Code:         code,
			Title:        title,
			Grade:        grade,
			YearSemester: term,
		})
	}
	return units
}

func extractTerm(line string) string {
	if m := termFirst.FindStringSubmatch(line); m != nil {
		return titleCaser.String(m[1]) + " " + m[2]
	}
	if m := yearFirst.FindStringSubmatch(line); m != nil {
		return titleCaser.String(m[2]) + " " + m[1]
	}
	return ""
}

func extractGrade(text string) string {
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, g := range longGrades {
		if g.pattern.MatchString(lower) {
			return g.label
		}
	}

	if m := delimitedGrade.FindStringSubmatch(text); m != nil {
		up := strings.ToUpper(m[1])
		for _, a := range gradeAliases {
			if a.token == up {
				return a.label
			}
		}
	}

	for i, p := range aliasPatterns {
		if p.MatchString(text) {
			return gradeAliases[i].label
		}
	}
	return ""
}
