package catalog

import (
	"strings"
	"testing"
)

func TestLoad(t *testing.T) {
	input := strings.Join([]string{
		"Unit Code,Title,Description,Learning Outcomes,Course,Credit Points,Notes",
		"bit105,Intro to Programming,Variables and loops,Write programs,BIT,10,ignored",
		"CODE,Title,,,,,",
		",Orphan row,,,,,",
		"BIT105,Intro to Programming,\"Variables, loops, functions and testing\",Write and test programs,BIT,10,",
		"MIT501,Advanced Databases,nan,Design schemas and queries,MIT,,",
		"MIT502,,Short,,mit,20",
	}, "\n")

	units, err := Load(strings.NewReader(input), Options{Levels: map[string]string{"MIT": "9", "BIT": "7"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(units) != 3 {
		t.Fatalf("expected 3 units, got %d: %+v", len(units), units)
	}

	first := units[0]
	if first.Code != "BIT105" {
		t.Fatalf("expected normalized code, got %q", first.Code)
	}
	if first.Description != "Variables, loops, functions and testing" {
		t.Fatalf("richer duplicate should win, got %q", first.Description)
	}
	if first.LevelCode != "7" || first.CreditPoints != "10" {
		t.Fatalf("unexpected level/credits: %q %q", first.LevelCode, first.CreditPoints)
	}

	second := units[1]
	if second.Description != "" {
		t.Fatalf("nan must be treated as empty, got %q", second.Description)
	}
	if second.LearningOutcomes != "Design schemas and queries" {
		t.Fatalf("unexpected outcomes: %q", second.LearningOutcomes)
	}
	if second.LevelCode != "9" {
		t.Fatalf("expected level from course group, got %q", second.LevelCode)
	}

	third := units[2]
	if third.Title != "MIT502" {
		t.Fatalf("missing title should fall back to the code, got %q", third.Title)
	}
	if third.LevelCode != "9" || third.CreditPoints != "20" {
		t.Fatalf("unexpected short row decoding: %+v", third)
	}
}

func TestLoadKeepsExplicitLevel(t *testing.T) {
	input := "unit_code,title,aqf_level,course\nMIT601,Capstone,8,MIT\n"
	units, err := Load(strings.NewReader(input), Options{Levels: map[string]string{"MIT": "9"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(units) != 1 || units[0].LevelCode != "8" {
		t.Fatalf("unexpected units: %+v", units)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
		want    int
	}{
		{name: "empty input", input: "", want: 0},
		{name: "header only", input: "code,title\n", want: 0},
		{name: "no code column", input: "title,description\nX,Y\n", wantErr: true},
		{name: "bad quoting", input: "code,title\nA1,\"broken\n", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			units, err := Load(strings.NewReader(tt.input), Options{})
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(units) != tt.want {
				t.Fatalf("expected %d units, got %d", tt.want, len(units))
			}
		})
	}
}

func TestColumnKey(t *testing.T) {
	tests := map[string]string{
		"Unit Code":          "unit_code",
		" learning outcomes": "learning_outcomes",
		"AQF":                "aqf_level",
		"Course":             "course",
		"Notes":              "",
	}
	for header, want := range tests {
		if got := columnKey(header); got != want {
			t.Fatalf("columnKey(%q) = %q, want %q", header, got, want)
		}
	}
}
