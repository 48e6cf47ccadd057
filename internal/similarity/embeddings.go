package similarity

import (
	"context"
	"fmt"
)

// Encoder turns texts into dense vectors.
type Encoder interface {
	EncodeTexts(ctx context.Context, texts []string) ([][]float32, error)
	ModelID() string
}

// Embeddings is the semantic strategy: cosine similarity between dense vectors.
type Embeddings struct {
	encoder Encoder
}

// NewEmbeddings returns the semantic strategy backed by encoder.
func NewEmbeddings(encoder Encoder) *Embeddings {
	return &Embeddings{encoder: encoder}
}

func (e *Embeddings) Name() string { return MethodEmbeddings }

// Matrix fails when the encoder is missing or any text cannot be encoded.
func (e *Embeddings) Matrix(ctx context.Context, a, b []string) ([][]float64, error) {
	if e == nil || e.encoder == nil {
		return nil, fmt.Errorf("embedding encoder is not configured")
	}

	va, err := e.encoder.EncodeTexts(ctx, a)
	if err != nil {
		return nil, fmt.Errorf("encode left texts: %w", err)
	}
	vb, err := e.encoder.EncodeTexts(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("encode right texts: %w", err)
	}
	if len(va) != len(a) || len(vb) != len(b) {
		return nil, fmt.Errorf("encoder returned %d/%d vectors for %d/%d texts", len(va), len(vb), len(a), len(b))
	}

	left := widen(va)
	right := widen(vb)

	m := make([][]float64, len(left))
	for i, x := range left {
		m[i] = make([]float64, len(right))
		for j, y := range right {
			m[i][j] = clamp01(Cosine(x, y))
		}
	}
	return m, nil
}

func widen(vectors [][]float32) [][]float64 {
	out := make([][]float64, len(vectors))
	for i, v := range vectors {
		w := make([]float64, len(v))
		for k, x := range v {
			w[k] = float64(x)
		}
		out[i] = w
	}
	return out
}
