package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/spigell/cpl-matcher/internal/unit"
)

const catalogColumns = `id, unit_code, title, COALESCE(description, ''), COALESCE(learning_outcomes, ''),
	COALESCE(topics, ''), COALESCE(aqf_level, ''), COALESCE(course, ''), COALESCE(credit_points, ''),
	COALESCE(keywords, '')`

const externalColumns = `id, COALESCE(source, ''), COALESCE(institution, ''), unit_code, title,
	COALESCE(description, ''), COALESCE(grade, ''), COALESCE(year_semester, ''),
	COALESCE(learning_outcomes, ''), COALESCE(topics, ''), COALESCE(keywords, ''),
	COALESCE(credit_points, ''), COALESCE(aqf_level, ''), COALESCE(source_url, ''),
	COALESCE(retrieval_mode, ''), COALESCE(retrieval_confidence, 0)`

type rowScanner interface {
	Scan(dest ...any) error
}

// UpsertCatalogUnits inserts catalog units or updates them by unit code. It
// returns the number of rows written.
func (s *Store) UpsertCatalogUnits(ctx context.Context, units []unit.Unit) (int, error) {
	written := 0
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		written = 0
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO catalog_units (
				unit_code, title, description, learning_outcomes, topics, aqf_level, course, credit_points, keywords
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(unit_code) DO UPDATE SET
				title = excluded.title,
				description = excluded.description,
				learning_outcomes = excluded.learning_outcomes,
				topics = excluded.topics,
				aqf_level = excluded.aqf_level,
				course = excluded.course,
				credit_points = excluded.credit_points,
				keywords = excluded.keywords`)
		if err != nil {
			return fmt.Errorf("prepare catalog upsert: %w", err)
		}
		defer stmt.Close()

		for _, raw := range units {
			u := raw.Normalized()
			if u.Code == "" {
				continue
			}
			if _, err := stmt.ExecContext(ctx,
				u.Code, u.Title,
				nullableString(u.Description),
				nullableString(u.LearningOutcomes),
				nullableString(u.Topics),
				nullableString(u.LevelCode),
				nullableString(u.CourseGroup),
				nullableString(u.CreditPoints),
				nullableString(u.Keywords),
			); err != nil {
				return fmt.Errorf("upsert catalog unit %s: %w", u.Code, err)
			}
			written++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return written, nil
}

// ListCatalogUnits returns every catalog unit ordered by code.
func (s *Store) ListCatalogUnits(ctx context.Context) ([]unit.Unit, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+catalogColumns+` FROM catalog_units ORDER BY unit_code, id`)
	if err != nil {
		return nil, fmt.Errorf("list catalog units: %w", err)
	}
	defer rows.Close()

	var units []unit.Unit
	for rows.Next() {
		var u unit.Unit
		if err := rows.Scan(&u.ID, &u.Code, &u.Title, &u.Description, &u.LearningOutcomes,
			&u.Topics, &u.LevelCode, &u.CourseGroup, &u.CreditPoints, &u.Keywords); err != nil {
			return nil, fmt.Errorf("scan catalog unit: %w", err)
		}
		units = append(units, u)
	}
	return units, rows.Err()
}

// InsertExternalUnits stores transcript units and returns their new ids.
func (s *Store) InsertExternalUnits(ctx context.Context, units []unit.Unit) ([]int64, error) {
	var ids []int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		ids = ids[:0]
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO external_units (
				source, institution, unit_code, title, description, grade, year_semester,
				learning_outcomes, topics, keywords, credit_points, aqf_level, source_url,
				retrieval_mode, retrieval_confidence
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare external insert: %w", err)
		}
		defer stmt.Close()

		for _, raw := range units {
			u := raw.Normalized()
			res, err := stmt.ExecContext(ctx,
				nullableString(u.Source),
				nullableString(u.Institution),
				u.Code, u.Title,
				nullableString(u.Description),
				nullableString(u.Grade),
				nullableString(u.YearSemester),
				nullableString(u.LearningOutcomes),
				nullableString(u.Topics),
				nullableString(u.Keywords),
				nullableString(u.CreditPoints),
				nullableString(u.LevelCode),
				nullableString(u.SourceURL),
				nullableString(u.RetrievalMode),
				u.RetrievalConfidence,
			)
			if err != nil {
				return fmt.Errorf("insert external unit %s: %w", u.Code, err)
			}
			id, err := res.LastInsertId()
			if err != nil {
				return fmt.Errorf("last insert id: %w", err)
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// ListExternalUnits returns external units in insertion order.
func (s *Store) ListExternalUnits(ctx context.Context) ([]unit.Unit, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+externalColumns+` FROM external_units ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list external units: %w", err)
	}
	defer rows.Close()

	var units []unit.Unit
	for rows.Next() {
		u, err := scanExternal(rows)
		if err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	return units, rows.Err()
}

// ExternalUnit fetches one external unit.
func (s *Store) ExternalUnit(ctx context.Context, id int64) (unit.Unit, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+externalColumns+` FROM external_units WHERE id = ?`, id)
	u, err := scanExternal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return unit.Unit{}, fmt.Errorf("external unit %d: %w", id, ErrNotFound)
	}
	return u, err
}

// UpdateExternalUnit writes enrichment results back. Empty fields never
// overwrite stored values.
func (s *Store) UpdateExternalUnit(ctx context.Context, u unit.Unit) error {
	res, err := s.execWithRetry(ctx, `UPDATE external_units
		SET description = COALESCE(?, description),
			learning_outcomes = COALESCE(?, learning_outcomes),
			topics = COALESCE(?, topics),
			credit_points = COALESCE(?, credit_points),
			aqf_level = COALESCE(?, aqf_level),
			source_url = COALESCE(?, source_url),
			retrieval_mode = COALESCE(?, retrieval_mode),
			retrieval_confidence = ?
		WHERE id = ?`,
		nullableString(u.Description),
		nullableString(u.LearningOutcomes),
		nullableString(u.Topics),
		nullableString(u.CreditPoints),
		nullableString(u.LevelCode),
		nullableString(u.SourceURL),
		nullableString(u.RetrievalMode),
		u.RetrievalConfidence,
		u.ID,
	)
	if err != nil {
		return fmt.Errorf("update external unit %d: %w", u.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("external unit %d: %w", u.ID, ErrNotFound)
	}
	return nil
}

// ClearExternalUnits removes all external units and, through cascades, their
// suggestions and decisions.
func (s *Store) ClearExternalUnits(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM external_units`)
	if err != nil {
		return 0, fmt.Errorf("clear external units: %w", err)
	}
	return res.RowsAffected()
}

func scanExternal(row rowScanner) (unit.Unit, error) {
	var u unit.Unit
	err := row.Scan(&u.ID, &u.Source, &u.Institution, &u.Code, &u.Title, &u.Description,
		&u.Grade, &u.YearSemester, &u.LearningOutcomes, &u.Topics, &u.Keywords,
		&u.CreditPoints, &u.LevelCode, &u.SourceURL, &u.RetrievalMode, &u.RetrievalConfidence)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return unit.Unit{}, err
		}
		return unit.Unit{}, fmt.Errorf("scan external unit: %w", err)
	}
	return u, nil
}
