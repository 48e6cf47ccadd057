// Package export renders stored suggestions for reviewers and spreadsheets.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/spigell/cpl-matcher/internal/store"
	"github.com/spigell/cpl-matcher/internal/unit"
)

const maxCellWidth = 48

type column struct {
	header string
	value  func(store.SuggestionRow) string
	right  bool
}

var csvColumns = []column{
	{header: "suggestion_id", value: func(r store.SuggestionRow) string { return strconv.FormatInt(r.ID, 10) }},
	{header: "run_id", value: func(r store.SuggestionRow) string { return r.RunID }},
	{header: "external_code", value: func(r store.SuggestionRow) string { return r.ExternalCode }},
	{header: "external_title", value: func(r store.SuggestionRow) string { return r.ExternalTitle }},
	{header: "external_grade", value: func(r store.SuggestionRow) string { return r.ExternalGrade }},
	{header: "catalog_code", value: func(r store.SuggestionRow) string { return r.CatalogCode }},
	{header: "catalog_title", value: func(r store.SuggestionRow) string { return r.CatalogTitle }},
	{header: "score", value: func(r store.SuggestionRow) string { return formatFloat(r.Score) }},
	{header: "confidence_band", value: func(r store.SuggestionRow) string { return string(r.Band) }},
	{header: "method", value: func(r store.SuggestionRow) string { return r.Method }},
	{header: "name_sim", value: func(r store.SuggestionRow) string { return formatFloat(r.Components.Name) }},
	{header: "desc_sim", value: func(r store.SuggestionRow) string { return formatFloat(r.Components.Desc) }},
	{header: "outcomes_sim", value: func(r store.SuggestionRow) string { return formatFloat(r.Components.Outcomes) }},
	{header: "credit_sim", value: func(r store.SuggestionRow) string { return formatFloat(r.Components.Credit) }},
	{header: "grade_bonus", value: func(r store.SuggestionRow) string { return formatFloat(r.Components.GradeBonus) }},
	{header: "retrieval_bonus", value: func(r store.SuggestionRow) string { return formatFloat(r.Components.RetrievalBonus) }},
	{header: "gate_group", value: func(r store.SuggestionRow) string { return r.Gate.Group }},
	{header: "gate_source", value: func(r store.SuggestionRow) string { return string(r.Gate.Source) }},
	{header: "retrieval_mode", value: func(r store.SuggestionRow) string { return r.RetrievalMode }},
	{header: "source_url", value: func(r store.SuggestionRow) string { return r.SourceURL }},
	{header: "explanation", value: func(r store.SuggestionRow) string { return r.Explanation }},
	{header: "decision", value: decisionStatus},
	{header: "override_code", value: func(r store.SuggestionRow) string { return r.OverrideCode }},
	{header: "reviewer", value: func(r store.SuggestionRow) string { return r.Reviewer }},
	{header: "notes", value: func(r store.SuggestionRow) string { return r.Notes }},
}

var tableColumns = []column{
	{header: "ID", value: func(r store.SuggestionRow) string { return strconv.FormatInt(r.ID, 10) }, right: true},
	{header: "External", value: func(r store.SuggestionRow) string { return r.ExternalCode + " " + r.ExternalTitle }},
	{header: "Catalog", value: func(r store.SuggestionRow) string { return r.CatalogCode + " " + r.CatalogTitle }},
	{header: "Score", value: func(r store.SuggestionRow) string { return strconv.FormatFloat(r.Score, 'f', 3, 64) }, right: true},
	{header: "Band", value: func(r store.SuggestionRow) string { return string(r.Band) }},
	{header: "Decision", value: decisionStatus},
}

// WriteCSV writes rows with a header line. Nothing is written for no rows.
func WriteCSV(w io.Writer, rows []store.SuggestionRow) error {
	if len(rows) == 0 {
		return nil
	}

	writer := csv.NewWriter(w)
	header := make([]string, len(csvColumns))
	for i, c := range csvColumns {
		header[i] = c.header
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	record := make([]string, len(csvColumns))
	for _, row := range rows {
		for i, c := range csvColumns {
			record[i] = c.value(row)
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write suggestion %d: %w", row.ID, err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// RenderTable formats rows as a terminal table.
func RenderTable(rows []store.SuggestionRow) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(tableColumns))
	configs := make([]table.ColumnConfig, len(tableColumns))
	for i, c := range tableColumns {
		header[i] = c.header
		align := text.AlignLeft
		if c.right {
			align = text.AlignRight
		}
		configs[i] = table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
			WidthMax:    maxCellWidth,
		}
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)

	for _, row := range rows {
		r := make(table.Row, len(tableColumns))
		for i, c := range tableColumns {
			r[i] = c.value(row)
		}
		tw.AppendRow(r)
	}

	return tw.Render()
}

func decisionStatus(r store.SuggestionRow) string {
	if r.Status == "" {
		return string(unit.DecisionPending)
	}
	return string(r.Status)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
