package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// CachedURL is a previously successful source page for a unit.
type CachedURL struct {
	Institution string
	Code        string
	Title       string
	URL         string
	Confidence  float64
	Mode        string
}

// CachedUnitURL returns the last good URL for a unit, or "" when none is known.
func (s *Store) CachedUnitURL(ctx context.Context, institution, code string) (string, error) {
	var u string
	err := s.db.QueryRowContext(ctx, `SELECT source_url FROM unit_url_cache
		WHERE lower(institution) = lower(?) AND lower(unit_code) = lower(?)
		ORDER BY last_seen DESC LIMIT 1`,
		strings.TrimSpace(institution), strings.TrimSpace(code),
	).Scan(&u)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read cached url: %w", err)
	}
	return u, nil
}

// CacheUnitURL remembers the URL a unit was enriched from.
func (s *Store) CacheUnitURL(ctx context.Context, c CachedURL) error {
	code := strings.ToUpper(strings.TrimSpace(c.Code))
	if code == "" || strings.TrimSpace(c.URL) == "" {
		return nil
	}

	_, err := s.execWithRetry(ctx, `INSERT INTO unit_url_cache (
			institution, unit_code, unit_title, source_url, confidence, retrieval_mode, last_seen
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(institution, unit_code) DO UPDATE SET
			unit_title = excluded.unit_title,
			source_url = excluded.source_url,
			confidence = excluded.confidence,
			retrieval_mode = excluded.retrieval_mode,
			last_seen = excluded.last_seen`,
		strings.TrimSpace(c.Institution), code, c.Title, strings.TrimSpace(c.URL), c.Confidence, c.Mode, now(),
	)
	if err != nil {
		return fmt.Errorf("cache url for %s: %w", code, err)
	}
	return nil
}
