// Package similarity computes pairwise text-similarity matrices between two ordered
// lists of documents.
package similarity

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Method tags reported with every matrix.
const (
	MethodEmbeddings = "Embeddings"
	MethodTFIDF      = "TF-IDF"
)

// Strategy is one technique for building a similarity matrix. Entries are in
// [0,1] and the matrix has len(a) rows and len(b) columns.
type Strategy interface {
	Name() string
	Matrix(ctx context.Context, a, b []string) ([][]float64, error)
}

// Result is a similarity matrix and the technique that produced it.
type Result struct {
	Matrix [][]float64
	Method string
}

// At returns the clamped entry at (i, j); out-of-range lookups give 0.
func (r Result) At(i, j int) float64 {
	if i < 0 || i >= len(r.Matrix) || j < 0 || j >= len(r.Matrix[i]) {
		return 0
	}
	return clamp01(r.Matrix[i][j])
}

// Provider runs the primary strategy and recomputes the whole matrix with the
// fallback when the primary fails.
type Provider struct {
	primary  Strategy
	fallback Strategy
	logger   *zap.Logger
}

// Select builds a Provider for the richest technique available: embeddings when an
// encoder is configured, TF-IDF otherwise. TF-IDF always backs the provider.
func Select(encoder Encoder, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}

	fallback := NewTFIDF()
	if encoder == nil {
		logger.Debug("similarity strategy selected", zap.String("method", MethodTFIDF))
		return &Provider{primary: fallback, logger: logger}
	}

	logger.Debug("similarity strategy selected",
		zap.String("method", MethodEmbeddings),
		zap.String("model", encoder.ModelID()),
	)
	return &Provider{primary: NewEmbeddings(encoder), fallback: fallback, logger: logger}
}

// NewProvider wraps an explicit strategy pair. fallback may be nil.
func NewProvider(primary, fallback Strategy, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{primary: primary, fallback: fallback, logger: logger}
}

// Similarity returns the similarity matrix between a and b. It never fails: a
// failing primary strategy is replaced by the fallback for the entire matrix, and
// when both fail a zero matrix is returned.
func (p *Provider) Similarity(ctx context.Context, a, b []string) Result {
	if len(a) == 0 || len(b) == 0 {
		return Result{Matrix: zeroMatrix(len(a), len(b)), Method: p.primaryName()}
	}

	m, err := p.run(ctx, p.primary, a, b)
	if err == nil {
		return Result{Matrix: m, Method: p.primary.Name()}
	}

	if p.fallback == nil {
		p.logger.Warn("similarity failed without fallback", zap.String("method", p.primary.Name()), zap.Error(err))
		return Result{Matrix: zeroMatrix(len(a), len(b)), Method: p.primary.Name()}
	}

	p.logger.Warn("similarity strategy failed; falling back",
		zap.String("method", p.primary.Name()),
		zap.String("fallback", p.fallback.Name()),
		zap.Error(err),
	)

	m, err = p.run(ctx, p.fallback, a, b)
	if err != nil {
		p.logger.Warn("fallback similarity failed", zap.String("method", p.fallback.Name()), zap.Error(err))
		return Result{Matrix: zeroMatrix(len(a), len(b)), Method: p.fallback.Name()}
	}

	return Result{Matrix: m, Method: p.fallback.Name()}
}

func (p *Provider) primaryName() string {
	if p.primary == nil {
		return MethodTFIDF
	}
	return p.primary.Name()
}

func (p *Provider) run(ctx context.Context, s Strategy, a, b []string) ([][]float64, error) {
	if s == nil {
		return nil, fmt.Errorf("no similarity strategy configured")
	}

	m, err := s.Matrix(ctx, a, b)
	if err != nil {
		return nil, err
	}
	if len(m) != len(a) {
		return nil, fmt.Errorf("%s returned %d rows, expected %d", s.Name(), len(m), len(a))
	}
	for i, row := range m {
		if len(row) != len(b) {
			return nil, fmt.Errorf("%s returned %d columns in row %d, expected %d", s.Name(), len(row), i, len(b))
		}
		for j := range row {
			row[j] = clamp01(row[j])
		}
	}
	return m, nil
}

func zeroMatrix(rows, cols int) [][]float64 {
	m := make([][]float64, rows)
	for i := range m {
		m[i] = make([]float64, cols)
	}
	return m
}

func clamp01(x float64) float64 {
	if x != x || x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
