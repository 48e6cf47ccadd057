// Package catalog loads the local unit catalog from a CSV export.
package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/spigell/cpl-matcher/internal/unit"
)

// Header names accepted in place of the canonical column keys.
var headerAliases = map[string]string{
	"code":             "unit_code",
	"unit":             "unit_code",
	"unit_title":       "title",
	"name":             "title",
	"outcomes":         "learning_outcomes",
	"learning_outcome": "learning_outcomes",
	"aqf":              "aqf_level",
	"level":            "aqf_level",
	"course_group":     "course",
	"credits":          "credit_points",
	"cp":               "credit_points",
	"keyword":          "keywords",
	"unit_description": "description",
}

// Options tune how rows are interpreted.
type Options struct {
	// Levels maps a course group to the AQF level used when a row has none.
	Levels map[string]string `mapstructure:"levels"`
}

// Load reads catalog units from CSV with a header row. Rows without a code and
// repeated header rows are skipped. When a code appears twice the row with the
// richer description and outcomes wins.
func Load(r io.Reader, opts Options) ([]unit.Unit, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read catalog header: %w", err)
	}

	columns := make([]string, len(header))
	hasCode := false
	for i, h := range header {
		columns[i] = columnKey(h)
		if columns[i] == "unit_code" {
			hasCode = true
		}
	}
	if !hasCode {
		return nil, errors.New("catalog header has no unit code column")
	}

	var (
		units []unit.Unit
		index = make(map[string]int)
	)
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read catalog row %d: %w", line, err)
		}

		u, err := decodeRow(columns, record)
		if err != nil {
			return nil, fmt.Errorf("decode catalog row %d: %w", line, err)
		}
		u = u.Normalized()
		if u.Code == "" || u.Code == "CODE" || u.Code == "UNIT_CODE" {
			continue
		}
		if u.Title == "" {
			u.Title = u.Code
		}
		if u.LevelCode == "" && u.CourseGroup != "" {
			u.LevelCode = levelFor(opts.Levels, u.CourseGroup)
		}

		if i, ok := index[u.Code]; ok {
			if richness(u) > richness(units[i]) {
				units[i] = u
			}
			continue
		}
		index[u.Code] = len(units)
		units = append(units, u)
	}
	return units, nil
}

func decodeRow(columns, record []string) (unit.Unit, error) {
	raw := make(map[string]any, len(columns))
	for i, key := range columns {
		if key == "" || i >= len(record) {
			continue
		}
		if _, taken := raw[key]; taken {
			continue
		}
		raw[key] = cleanText(record[i])
	}

	var u unit.Unit
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &u,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return unit.Unit{}, err
	}
	if err := decoder.Decode(raw); err != nil {
		return unit.Unit{}, err
	}
	return u, nil
}

// columnKey maps a header cell to the unit field it feeds, or "" when unknown.
func columnKey(header string) string {
	key := strings.ToLower(cleanText(header))
	key = strings.Join(strings.Fields(key), "_")
	if alias, ok := headerAliases[key]; ok {
		return alias
	}
	switch key {
	case "unit_code", "title", "description", "learning_outcomes", "topics",
		"aqf_level", "course", "credit_points", "keywords":
		return key
	}
	return ""
}

func cleanText(s string) string {
	s = strings.NewReplacer("\u00a0", " ", "\u202f", " ").Replace(s)
	s = strings.Join(strings.Fields(s), " ")
	if strings.EqualFold(s, "nan") {
		return ""
	}
	return s
}

func levelFor(levels map[string]string, group string) string {
	for g, level := range levels {
		if strings.EqualFold(g, group) {
			return strings.TrimSpace(level)
		}
	}
	return ""
}

func richness(u unit.Unit) int {
	return len(u.Description) + len(u.LearningOutcomes)
}
