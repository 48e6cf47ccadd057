// Package enrichment fills in missing descriptions and outcomes for external
// units by asking an Oracle and merging whatever it finds.
package enrichment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/cpl-matcher/internal/logger"
	"github.com/spigell/cpl-matcher/internal/unit"
)

const (
	defaultWorkers = 4
	defaultTimeout = 30 * time.Second
	// minUsefulDescription is the length below which a description is treated as missing.
	minUsefulDescription = 80
)

// Request identifies the unit an oracle should look up.
type Request struct {
	Code        string
	Title       string
	Institution string
	// SourceHint is a URL known to describe the unit, if any.
	SourceHint string
}

// Oracle looks up unit details. An oracle that finds nothing returns an empty
// Enrichment and a nil error.
type Oracle interface {
	Enrich(ctx context.Context, req Request) (unit.Enrichment, error)
}

// Structurer turns raw page text into unit fields.
type Structurer interface {
	Structure(ctx context.Context, code, title, text string) (unit.Enrichment, error)
}

// Writer persists an enriched unit.
type Writer interface {
	UpdateExternalUnit(ctx context.Context, u unit.Unit) error
}

// Options tunes a batch.
type Options struct {
	Workers int           `mapstructure:"workers"`
	Timeout time.Duration `mapstructure:"timeout"`
	// Force re-enriches units that already have a description.
	Force bool `mapstructure:"force"`
}

// Report summarises a batch.
type Report struct {
	Total    int
	Skipped  int
	Enriched int
	Empty    int
	Failed   int
}

// Batch enriches many units concurrently.
type Batch struct {
	oracle Oracle
	writer Writer
	opts   Options
	logger *zap.Logger
}

// NewBatch builds a Batch. writer may be nil, in which case results are only returned.
func NewBatch(oracle Oracle, writer Writer, opts Options, logger *zap.Logger) *Batch {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	return &Batch{oracle: oracle, writer: writer, opts: opts, logger: logger}
}

// NeedsEnrichment reports whether a unit lacks the text matching depends on.
func NeedsEnrichment(u unit.Unit) bool {
	return len(strings.TrimSpace(u.Description)) < minUsefulDescription ||
		strings.TrimSpace(u.LearningOutcomes) == ""
}

// Run enriches units and returns them in input order. A unit whose lookup fails
// is returned unchanged; only context cancellation aborts the batch.
func (b *Batch) Run(ctx context.Context, units []unit.Unit) ([]unit.Unit, Report, error) {
	if b.oracle == nil {
		return nil, Report{}, errors.New("enrichment oracle is not configured")
	}

	out := make([]unit.Unit, len(units))
	copy(out, units)
	report := Report{Total: len(units)}

	var mu sync.Mutex
	count := func(f func(r *Report)) {
		mu.Lock()
		f(&report)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.opts.Workers)

	for i := range out {
		if !b.opts.Force && !NeedsEnrichment(out[i]) {
			report.Skipped++
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			u := out[i]
			log := logger.WithUnit(b.logger, u.Code, u.Institution)

			enriched, err := b.enrichOne(gctx, u)
			switch {
			case err != nil && gctx.Err() != nil:
				return gctx.Err()
			case err != nil:
				log.Warn("enrichment failed; unit left as-is", zap.Error(err))
				count(func(r *Report) { r.Failed++ })
				return nil
			case enriched.Empty():
				log.Info("no evidence found")
				count(func(r *Report) { r.Empty++ })
				return nil
			}

			merged := unit.MergeEnrichment(u, enriched)
			if b.writer != nil {
				if err := b.writer.UpdateExternalUnit(gctx, merged); err != nil {
					log.Warn("store enrichment", zap.Error(err))
					count(func(r *Report) { r.Failed++ })
					return nil
				}
			}
			out[i] = merged
			log.Info("unit enriched",
				zap.String("mode", merged.RetrievalMode),
				zap.Float64("confidence", merged.RetrievalConfidence),
				zap.String("source_url", merged.SourceURL),
			)
			count(func(r *Report) { r.Enriched++ })
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, report, fmt.Errorf("enrich units: %w", err)
	}

	b.logger.Info("enrichment finished",
		zap.Int("total", report.Total),
		zap.Int("skipped", report.Skipped),
		zap.Int("enriched", report.Enriched),
		zap.Int("empty", report.Empty),
		zap.Int("failed", report.Failed),
	)
	return out, report, nil
}

func (b *Batch) enrichOne(ctx context.Context, u unit.Unit) (unit.Enrichment, error) {
	ctx, cancel := context.WithTimeout(ctx, b.opts.Timeout)
	defer cancel()

	return b.oracle.Enrich(ctx, Request{
		Code:        u.Code,
		Title:       u.Title,
		Institution: u.Institution,
		SourceHint:  u.SourceURL,
	})
}
