package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/spigell/cpl-matcher/internal/unit"
)

// SuggestionRow is a stored suggestion joined with both units and its latest decision.
type SuggestionRow struct {
	ID     int64
	RunID  string
	Score  float64
	Band   unit.Band
	Method string

	ExternalID          int64
	ExternalCode        string
	ExternalTitle       string
	ExternalDescription string
	ExternalOutcomes    string
	ExternalGrade       string
	RetrievalMode       string
	SourceURL           string

	CatalogID          int64
	CatalogCode        string
	CatalogTitle       string
	CatalogDescription string
	CatalogOutcomes    string

	Components  unit.Components
	Gate        unit.GateDecision
	Explanation string

	Status       unit.DecisionStatus
	OverrideCode string
	Reviewer     string
	Notes        string
}

// ReplaceSuggestions deletes every stored suggestion and inserts results in one
// transaction, so readers see either the previous run or this one.
func (s *Store) ReplaceSuggestions(ctx context.Context, runID string, results []unit.MatchResult) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM suggestions`); err != nil {
			return fmt.Errorf("clear suggestions: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `INSERT INTO suggestions (
				run_id, external_unit_id, catalog_unit_id, score, confidence_band, method, explanation,
				name_sim, desc_sim, outcomes_sim, credit_sim, grade_bonus, retrieval_bonus,
				gate_group, gate_source, gate_fell_back, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare suggestion insert: %w", err)
		}
		defer stmt.Close()

		created := now()
		for _, r := range results {
			c := r.Components
			if _, err := stmt.ExecContext(ctx,
				runID, r.ExternalID, r.CatalogID, r.Score, string(r.Band),
				nullableString(r.Method), r.Explanation,
				c.Name, c.Desc, c.Outcomes, c.Credit, c.GradeBonus, c.RetrievalBonus,
				nullableString(r.Gate.Group), nullableString(string(r.Gate.Source)), boolToInt(r.Gate.FellBack),
				created,
			); err != nil {
				return fmt.Errorf("insert suggestion %d->%d: %w", r.ExternalID, r.CatalogID, err)
			}
		}
		return nil
	})
}

const suggestionQuery = `SELECT
		s.id, s.run_id, s.score, s.confidence_band, COALESCE(s.method, ''),
		eu.id, eu.unit_code, eu.title, COALESCE(eu.description, ''), COALESCE(eu.learning_outcomes, ''),
		COALESCE(eu.grade, ''), COALESCE(eu.retrieval_mode, ''), COALESCE(eu.source_url, ''),
		cu.id, cu.unit_code, cu.title, COALESCE(cu.description, ''), COALESCE(cu.learning_outcomes, ''),
		COALESCE(s.name_sim, 0), COALESCE(s.desc_sim, 0), COALESCE(s.outcomes_sim, 0),
		COALESCE(s.credit_sim, 0), COALESCE(s.grade_bonus, 0), COALESCE(s.retrieval_bonus, 0),
		COALESCE(s.gate_group, ''), COALESCE(s.gate_source, ''), s.gate_fell_back,
		COALESCE(s.explanation, ''),
		COALESCE(d.status, 'pending'), COALESCE(ov.unit_code, ''), COALESCE(d.reviewer, ''), COALESCE(d.notes, '')
	FROM suggestions s
	JOIN external_units eu ON eu.id = s.external_unit_id
	JOIN catalog_units cu ON cu.id = s.catalog_unit_id
	LEFT JOIN decisions d ON d.id = (
		SELECT MAX(id) FROM decisions WHERE suggestion_id = s.id
	)
	LEFT JOIN catalog_units ov ON ov.id = d.override_catalog_unit_id`

// ListSuggestions returns stored suggestions, best score first.
func (s *Store) ListSuggestions(ctx context.Context) ([]SuggestionRow, error) {
	return s.querySuggestions(ctx, suggestionQuery+` ORDER BY s.score DESC, s.id`)
}

// PendingSuggestions returns suggestions without a decision, best score first.
func (s *Store) PendingSuggestions(ctx context.Context) ([]SuggestionRow, error) {
	return s.querySuggestions(ctx, suggestionQuery+` WHERE d.id IS NULL ORDER BY s.score DESC, s.id`)
}

func (s *Store) querySuggestions(ctx context.Context, query string) ([]SuggestionRow, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list suggestions: %w", err)
	}
	defer rows.Close()

	var out []SuggestionRow
	for rows.Next() {
		var (
			r        SuggestionRow
			band     string
			source   string
			status   string
			fellBack int
		)
		if err := rows.Scan(
			&r.ID, &r.RunID, &r.Score, &band, &r.Method,
			&r.ExternalID, &r.ExternalCode, &r.ExternalTitle, &r.ExternalDescription, &r.ExternalOutcomes,
			&r.ExternalGrade, &r.RetrievalMode, &r.SourceURL,
			&r.CatalogID, &r.CatalogCode, &r.CatalogTitle, &r.CatalogDescription, &r.CatalogOutcomes,
			&r.Components.Name, &r.Components.Desc, &r.Components.Outcomes,
			&r.Components.Credit, &r.Components.GradeBonus, &r.Components.RetrievalBonus,
			&r.Gate.Group, &source, &fellBack,
			&r.Explanation,
			&status, &r.OverrideCode, &r.Reviewer, &r.Notes,
		); err != nil {
			return nil, fmt.Errorf("scan suggestion: %w", err)
		}
		r.Band = unit.Band(band)
		r.Gate.Source = unit.GateSource(source)
		r.Gate.FellBack = fellBack != 0
		r.Status = unit.DecisionStatus(status)
		out = append(out, r)
	}
	return out, rows.Err()
}

// SaveDecision records a reviewer decision. Earlier decisions are kept as history;
// the latest one wins in ListSuggestions.
func (s *Store) SaveDecision(ctx context.Context, d unit.Decision) error {
	if !d.Status.Valid() {
		return fmt.Errorf("invalid decision status %q", d.Status)
	}
	if d.Status == unit.DecisionOverride && d.OverrideCatalogID == 0 {
		return errors.New("override decision requires a catalog unit")
	}

	var exists int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM suggestions WHERE id = ?`, d.SuggestionID).Scan(&exists); err != nil {
		return fmt.Errorf("check suggestion: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("suggestion %d: %w", d.SuggestionID, ErrNotFound)
	}

	_, err := s.execWithRetry(ctx, `INSERT INTO decisions (
			suggestion_id, status, override_catalog_unit_id, reviewer, notes, updated_at
		) VALUES (?, ?, ?, ?, ?, ?)`,
		d.SuggestionID,
		string(d.Status),
		nullableID(d.OverrideCatalogID),
		nullableString(strings.TrimSpace(d.Reviewer)),
		nullableString(strings.TrimSpace(d.Notes)),
		now(),
	)
	if err != nil {
		return fmt.Errorf("save decision for suggestion %d: %w", d.SuggestionID, err)
	}
	return nil
}

// CatalogUnitByCode resolves a catalog unit id, used for override decisions.
func (s *Store) CatalogUnitByCode(ctx context.Context, code string) (unit.Unit, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+catalogColumns+` FROM catalog_units WHERE unit_code = ?`, unit.NormalizeCode(code))
	var u unit.Unit
	err := row.Scan(&u.ID, &u.Code, &u.Title, &u.Description, &u.LearningOutcomes,
		&u.Topics, &u.LevelCode, &u.CourseGroup, &u.CreditPoints, &u.Keywords)
	if errors.Is(err, sql.ErrNoRows) {
		return unit.Unit{}, fmt.Errorf("catalog unit %s: %w", code, ErrNotFound)
	}
	if err != nil {
		return unit.Unit{}, fmt.Errorf("get catalog unit %s: %w", code, err)
	}
	return u, nil
}
