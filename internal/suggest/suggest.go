// Package suggest runs a full suggestion generation: load units, gate, match,
// and replace the stored suggestions in one go.
package suggest

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/cpl-matcher/internal/unit"
)

// Store is the persistence the run reads from and writes to.
type Store interface {
	ListExternalUnits(ctx context.Context) ([]unit.Unit, error)
	ListCatalogUnits(ctx context.Context) ([]unit.Unit, error)
	ReplaceSuggestions(ctx context.Context, runID string, results []unit.MatchResult) error
}

// Locker is implemented by stores that can serialise generation runs.
type Locker interface {
	LockGeneration() (unlock func() error, err error)
}

// Gate decides and applies the course group for an external unit.
type Gate interface {
	Decide(external unit.Unit) unit.GateDecision
	PoolIndices(decision unit.GateDecision, catalog []unit.Unit) ([]int, unit.GateDecision)
}

// Matcher scores externals against one pool.
type Matcher interface {
	Match(ctx context.Context, externals, pool []unit.Unit, gate unit.GateDecision) []unit.MatchResult
}

// Options tunes a run.
type Options struct {
	// Workers bounds how many external units are matched at once; <= 1 runs serially.
	Workers int `mapstructure:"workers"`
}

// Step describes how gating narrowed the catalog for one group.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

// Run summarises a generation.
type Run struct {
	ID          string
	Method      string
	Externals   int
	Catalog     int
	Suggestions int
	// Sources counts external units per gate source.
	Sources  map[unit.GateSource]int
	FellBack int
	// Steps is keyed by the gate group label.
	Steps map[string]Step
}

// Service wires the store, gate and matcher.
type Service struct {
	store   Store
	gate    Gate
	matcher Matcher
	logger  *zap.Logger
}

// New builds a Service.
func New(store Store, gate Gate, matcher Matcher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, gate: gate, matcher: matcher, logger: logger}
}

// batch is the set of externals sharing one gate outcome and therefore one pool.
type batch struct {
	decision  unit.GateDecision
	externals []int
	pool      []int
}

func (b *batch) label() string {
	if !b.decision.Applied() {
		return string(unit.GateSourceNone)
	}
	if b.decision.FellBack {
		return b.decision.Group + " (fallback)"
	}
	return b.decision.Group
}

// Generate matches every external unit and replaces the stored suggestions.
// Either all results are stored or, on error, none are.
func (s *Service) Generate(ctx context.Context, opts Options) (*Run, error) {
	if locker, ok := s.store.(Locker); ok {
		unlock, err := locker.LockGeneration()
		if err != nil {
			return nil, fmt.Errorf("lock generation: %w", err)
		}
		defer func() {
			if err := unlock(); err != nil {
				s.logger.Warn("release generation lock", zap.Error(err))
			}
		}()
	}

	externals, err := s.store.ListExternalUnits(ctx)
	if err != nil {
		return nil, fmt.Errorf("list external units: %w", err)
	}
	catalog, err := s.store.ListCatalogUnits(ctx)
	if err != nil {
		return nil, fmt.Errorf("list catalog units: %w", err)
	}

	run := &Run{
		ID:        uuid.NewString(),
		Externals: len(externals),
		Catalog:   len(catalog),
		Sources:   make(map[unit.GateSource]int),
		Steps:     make(map[string]Step),
	}
	log := s.logger.With(zap.String("run", run.ID))

	if len(externals) == 0 || len(catalog) == 0 {
		log.Info("nothing to match",
			zap.Int("external_units", len(externals)),
			zap.Int("catalog_units", len(catalog)),
		)
	}

	batches := s.partition(externals, catalog, run)
	for _, b := range batches {
		step := Step{Initial: len(catalog), Dropped: len(catalog) - len(b.pool), Left: len(b.pool)}
		run.Steps[b.label()] = step
		log.Info("gate step",
			zap.String("group", b.label()),
			zap.String("source", string(b.decision.Source)),
			zap.Int("external_units", len(b.externals)),
			zap.Int("initial", step.Initial),
			zap.Int("dropped", step.Dropped),
			zap.Int("left", step.Left),
		)
	}

	perExternal, err := s.matchAll(ctx, opts, externals, catalog, batches)
	if err != nil {
		return nil, err
	}

	results := assemble(perExternal)
	run.Suggestions = len(results)
	if len(results) > 0 {
		run.Method = results[0].Method
	}

	if err := s.store.ReplaceSuggestions(ctx, run.ID, results); err != nil {
		return nil, fmt.Errorf("replace suggestions: %w", err)
	}

	log.Info("suggestions generated",
		zap.Int("external_units", run.Externals),
		zap.Int("catalog_units", run.Catalog),
		zap.Int("suggestions", run.Suggestions),
		zap.String("method", run.Method),
		zap.Int("gate_fallbacks", run.FellBack),
	)

	return run, nil
}

// partition groups externals by gate outcome, in order of first appearance.
func (s *Service) partition(externals, catalog []unit.Unit, run *Run) []*batch {
	var batches []*batch
	byDecision := make(map[unit.GateDecision]*batch)

	for i, external := range externals {
		pool, decision := s.gate.PoolIndices(s.gate.Decide(external), catalog)

		run.Sources[decision.Source]++
		if decision.FellBack {
			run.FellBack++
		}

		b, ok := byDecision[decision]
		if !ok {
			b = &batch{decision: decision, pool: pool}
			byDecision[decision] = b
			batches = append(batches, b)
		}
		b.externals = append(b.externals, i)
	}

	return batches
}

// matchAll matches every external unit on its own against its batch's pool,
// so no unit's similarities depend on the other units imported with it.
// Results are collected per external position.
func (s *Service) matchAll(ctx context.Context, opts Options, externals, catalog []unit.Unit, batches []*batch) ([][]unit.MatchResult, error) {
	g, gctx := errgroup.WithContext(ctx)
	if opts.Workers > 1 {
		g.SetLimit(opts.Workers)
	} else {
		g.SetLimit(1)
	}

	perExternal := make([][]unit.MatchResult, len(externals))
	for _, b := range batches {
		pool := make([]unit.Unit, len(b.pool))
		for i, idx := range b.pool {
			pool[i] = catalog[idx]
		}

		for _, ext := range b.externals {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}

				results := s.matcher.Match(gctx, []unit.Unit{externals[ext]}, pool, b.decision)
				for k := range results {
					results[k].ExternalIndex = ext
					results[k].CatalogIndex = b.pool[results[k].CatalogIndex]
				}
				perExternal[ext] = results
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("match units: %w", err)
	}
	return perExternal, nil
}

// assemble flattens per-external results in external order; each block keeps
// the matcher's ranking.
func assemble(perExternal [][]unit.MatchResult) []unit.MatchResult {
	var results []unit.MatchResult
	for _, block := range perExternal {
		results = append(results, block...)
	}
	return results
}
