package transcript

import (
	"math"
	"testing"
)

const sampleTranscript = `Federation University Australia
Academic Transcript
Student: Jane Doe

Semester 1 2023
ITECH1000 - Programming Principles - HD
ITECH1100: Understanding the Digital Revolution - Credit
2023 Trimester 2
ITECH2000 Database Systems Distinction
ITECH1000 - Programming Principles - Pass
Total credit points 45
MATH101 Calculus 73 / D 12
`

func TestParse(t *testing.T) {
	units := Parse(sampleTranscript, "jane.txt")

	want := []struct {
		code  string
		title string
		grade string
		term  string
	}{
		{"ITECH1000", "Programming Principles", "HD", "Semester 1 2023"},
		{"ITECH1100", "Understanding the Digital Revolution", "Credit", "Semester 1 2023"},
		{"ITECH2000", "Database Systems", "Distinction", "Trimester 2 2023"},
		{"MATH101", "", "Distinction", "Trimester 2 2023"},
	}

	if len(units) != len(want) {
		t.Fatalf("expected %d units, got %d: %+v", len(want), len(units), units)
	}

	for i, w := range want {
		u := units[i]
		t.Run(w.code, func(t *testing.T) {
			if u.Code != w.code {
				t.Fatalf("code = %q, want %q", u.Code, w.code)
			}
			if w.title != "" && u.Title != w.title {
				t.Fatalf("title = %q, want %q", u.Title, w.title)
			}
			if u.Grade != w.grade {
				t.Fatalf("grade = %q, want %q", u.Grade, w.grade)
			}
			if u.YearSemester != w.term {
				t.Fatalf("term = %q, want %q", u.YearSemester, w.term)
			}
			if u.Source != "jane.txt" {
				t.Fatalf("source = %q", u.Source)
			}
			if u.Institution != "Federation University Australia" {
				t.Fatalf("institution = %q", u.Institution)
			}
		})
	}
}

func TestParseEmpty(t *testing.T) {
	if units := Parse("no units here\n\n", "x"); len(units) != 0 {
		t.Fatalf("expected no units, got %+v", units)
	}
}

func TestExtractGrade(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"High Distinction", "High Distinction"},
		{"distinction", "Distinction"},
		{"Credit", "Credit"},
		{"PASS", "Pass"},
		{"Fail", "Fail"},
		{"HD", "HD"},
		{"CR", "Credit"},
		{"NN", "Fail"},
		{"73 / D 12", "Distinction"},
		{"Mark: PS", "Pass"},
		{"Introduction", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := extractGrade(tt.in); got != tt.want {
				t.Fatalf("extractGrade(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestExtractTerm(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Semester 1 2024", "Semester 1 2024"},
		{"SEMESTER 2, 2022", "Semester 2 2022"},
		{"2021 Term 3", "Term 3 2021"},
		{"trimester 1 - 2020", "Trimester 1 2020"},
		{"ITECH1000 Programming", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := extractTerm(tt.in); got != tt.want {
				t.Fatalf("extractTerm(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestDetectInstitution(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		wantName string
		wantConf float64
	}{
		{
			name:     "header line",
			text:     sampleTranscript,
			wantName: "Federation University Australia",
			wantConf: 0.94,
		},
		{
			name:     "alias only",
			text:     "UNSW Sydney\nStatement of results",
			wantName: "University of New South Wales",
			wantConf: 0.82,
		},
		{
			name:     "noisy heading",
			text:     "Student transcript - Some College",
			wantName: "Student transcript - Some College",
			wantConf: 0.74,
		},
		{
			name: "nothing",
			text: "ITECH1000 Programming HD",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, conf := DetectInstitution(tt.text)
			if name != tt.wantName {
				t.Fatalf("name = %q, want %q", name, tt.wantName)
			}
			if math.Abs(conf-tt.wantConf) > 1e-9 {
				t.Fatalf("confidence = %v, want %v", conf, tt.wantConf)
			}
		})
	}
}
