package transcript

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

const (
	headerLines       = 80
	maxInstitutionLen = 200
)

var orgKeywords = []string{"university", "institute", "college", "tafe", "polytechnic", "higher education"}

// Words that suggest a line is a heading about the student rather than the issuer.
var noisyWords = []string{"student", "transcript", "course", "subject", "semester"}

type alias struct {
	pattern   *regexp.Regexp
	short     bool
	canonical string
}

var knownAliases = compileKnownAliases([][2]string{
	{"uts", "University of Technology Sydney"},
	{"unsw", "University of New South Wales"},
	{"usyd", "The University of Sydney"},
	{"uq", "The University of Queensland"},
	{"qut", "Queensland University of Technology"},
	{"rmit", "RMIT University"},
	{"anu", "Australian National University"},
	{"deakin", "Deakin University"},
	{"monash", "Monash University"},
	{"federation university", "Federation University Australia"},
	{"federation", "Federation University Australia"},
	{"latrobe", "La Trobe University"},
	{"macquarie", "Macquarie University"},
	{"wollongong", "University of Wollongong"},
	{"griffith", "Griffith University"},
	{"curtin", "Curtin University"},
	{"swinburne", "Swinburne University of Technology"},
	{"victoria university", "Victoria University"},
})

func compileKnownAliases(pairs [][2]string) []alias {
	out := make([]alias, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, alias{
			pattern:   regexp.MustCompile(`\b` + regexp.QuoteMeta(p[0]) + `\b`),
			short:     len(p[0]) <= 4,
			canonical: p[1],
		})
	}
	return out
}

type candidate struct {
	name       string
	confidence float64
}

// DetectInstitution guesses the issuing institution from the transcript header.
// It returns an empty name and zero confidence when nothing looks like one.
func DetectInstitution(text string) (string, float64) {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if clean := strings.Join(strings.Fields(l), " "); clean != "" {
			lines = append(lines, clean)
		}
		if len(lines) == headerLines {
			break
		}
	}

	var candidates []candidate

	for i, line := range lines {
		lower := strings.ToLower(line)
		if !containsAny(lower, orgKeywords) {
			continue
		}
		conf := 0.88
		if containsAny(lower, noisyWords) {
			conf = 0.68
		}
		if i <= 10 {
			conf += 0.06
		}
		candidates = append(candidates, candidate{name: clip(line), confidence: min(conf, 0.95)})
	}

	for i, line := range lines {
		lower := strings.ToLower(line)
		for _, a := range knownAliases {
			if !a.pattern.MatchString(lower) {
				continue
			}
			conf := 0.82
			if a.short {
				conf = 0.74
			}
			if i <= 12 {
				conf += 0.08
			}
			candidates = append(candidates, candidate{name: a.canonical, confidence: min(conf, 0.93)})
		}
	}

	for i, line := range lines {
		lower := strings.ToLower(line)
		if !strings.Contains(lower, "academic transcript") && lower != "transcript" {
			continue
		}
		for j := max(0, i-3); j < min(len(lines), i+3); j++ {
			if containsAny(strings.ToLower(lines[j]), orgKeywords) {
				candidates = append(candidates, candidate{name: clip(lines[j]), confidence: 0.9})
			}
		}
	}

	if len(candidates) == 0 {
		return "", 0
	}

	// Highest confidence first; longer, more specific names win ties.
	sort.SliceStable(candidates, func(a, b int) bool {
		if candidates[a].confidence != candidates[b].confidence {
			return candidates[a].confidence > candidates[b].confidence
		}
		return utf8.RuneCountInString(candidates[a].name) > utf8.RuneCountInString(candidates[b].name)
	})
	best := candidates[0]
	return strings.TrimSpace(best.name), best.confidence
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func clip(s string) string {
	if utf8.RuneCountInString(s) > maxInstitutionLen {
		return string([]rune(s)[:maxInstitutionLen])
	}
	return s
}
