// Package onnx embeds texts with a sentence-transformer model exported to ONNX.
package onnx

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"sync"
	"unicode"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
	ort "github.com/yalue/onnxruntime_go"
	"golang.org/x/text/unicode/norm"
)

const (
	defaultMaxSeqLen  = 256
	defaultOutputName = "last_hidden_state"
)

// Config locates the runtime library, model and tokenizer.
type Config struct {
	SharedLibrary string `mapstructure:"shared-library"`
	ModelPath     string `mapstructure:"model"`
	TokenizerPath string `mapstructure:"tokenizer"`
	MaxSeqLen     int    `mapstructure:"max-seq-len"`
	CacheDir      string `mapstructure:"cache-dir"`
	ModelID       string `mapstructure:"model-id"`
	OutputName    string `mapstructure:"output"`
	TokenTypeIDs  bool   `mapstructure:"token-type-ids"`
}

// Enabled reports whether enough is configured to build an encoder.
func (c Config) Enabled() bool {
	return c.ModelPath != "" && c.TokenizerPath != ""
}

// Encoder produces mean-pooled, L2-normalised sentence embeddings.
type Encoder struct {
	cfg     Config
	tk      *tokenizer.Tokenizer
	session *ort.DynamicAdvancedSession
	cache   *vectorCache

	// ORT sessions are not used concurrently.
	mu sync.Mutex
}

// New initialises the ONNX runtime environment, the tokenizer and the session.
func New(cfg Config) (*Encoder, error) {
	if !cfg.Enabled() {
		return nil, errors.New("embedding model and tokenizer paths are required")
	}
	if cfg.MaxSeqLen <= 0 {
		cfg.MaxSeqLen = defaultMaxSeqLen
	}
	if cfg.OutputName == "" {
		cfg.OutputName = defaultOutputName
	}
	if cfg.ModelID == "" {
		cfg.ModelID = filepath.Base(cfg.ModelPath)
	}

	tk, err := pretrained.FromFile(cfg.TokenizerPath)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer %s: %w", cfg.TokenizerPath, err)
	}

	if !ort.IsInitialized() {
		if cfg.SharedLibrary != "" {
			ort.SetSharedLibraryPath(cfg.SharedLibrary)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("initialize onnxruntime: %w", err)
		}
	}

	inputs := []string{"input_ids", "attention_mask"}
	if cfg.TokenTypeIDs {
		inputs = append(inputs, "token_type_ids")
	}

	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath, inputs, []string{cfg.OutputName}, nil)
	if err != nil {
		return nil, fmt.Errorf("create onnx session for %s: %w", cfg.ModelPath, err)
	}

	cache, err := newVectorCache(cfg.CacheDir, cfg.ModelID)
	if err != nil {
		_ = session.Destroy()
		return nil, err
	}

	return &Encoder{cfg: cfg, tk: tk, session: session, cache: cache}, nil
}

// ModelID identifies the model in cache keys and logs.
func (e *Encoder) ModelID() string {
	return e.cfg.ModelID
}

// Close releases the session. The shared ORT environment stays alive for the process.
func (e *Encoder) Close() error {
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return nil
	}
	err := e.session.Destroy()
	e.session = nil
	return err
}

// EncodeTexts embeds every text, serving repeats from the cache.
func (e *Encoder) EncodeTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vec, err := e.encodeOne(normalizeText(text))
		if err != nil {
			return nil, fmt.Errorf("embed text %d: %w", i, err)
		}
		out[i] = vec
	}
	return out, nil
}

func (e *Encoder) encodeOne(text string) ([]float32, error) {
	if vec, ok := e.cache.get(text); ok {
		return vec, nil
	}

	enc, err := e.tk.EncodeSingle(text, true)
	if err != nil {
		return nil, fmt.Errorf("tokenize: %w", err)
	}

	ids := truncate(toInt64(enc.Ids), e.cfg.MaxSeqLen)
	mask := truncate(toInt64(enc.AttentionMask), e.cfg.MaxSeqLen)
	if len(ids) == 0 {
		return nil, errors.New("tokenizer produced no tokens")
	}
	if len(mask) != len(ids) {
		mask = ones(len(ids))
	}

	vec, err := e.run(ids, mask, truncate(toInt64(enc.TypeIds), e.cfg.MaxSeqLen))
	if err != nil {
		return nil, err
	}

	_ = e.cache.put(text, vec)
	return vec, nil
}

func (e *Encoder) run(ids, mask, typeIDs []int64) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session == nil {
		return nil, errors.New("encoder is closed")
	}

	shape := ort.NewShape(1, int64(len(ids)))

	idsTensor, err := ort.NewTensor(shape, ids)
	if err != nil {
		return nil, fmt.Errorf("input_ids tensor: %w", err)
	}
	defer idsTensor.Destroy()

	maskTensor, err := ort.NewTensor(shape, mask)
	if err != nil {
		return nil, fmt.Errorf("attention_mask tensor: %w", err)
	}
	defer maskTensor.Destroy()

	inputs := []ort.Value{idsTensor, maskTensor}
	if e.cfg.TokenTypeIDs {
		if len(typeIDs) != len(ids) {
			typeIDs = make([]int64, len(ids))
		}
		typeTensor, err := ort.NewTensor(shape, typeIDs)
		if err != nil {
			return nil, fmt.Errorf("token_type_ids tensor: %w", err)
		}
		defer typeTensor.Destroy()
		inputs = append(inputs, typeTensor)
	}

	outputs := []ort.Value{nil}
	if err := e.session.Run(inputs, outputs); err != nil {
		return nil, fmt.Errorf("onnx run: %w", err)
	}
	defer outputs[0].Destroy()

	hidden, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected output type %T", outputs[0])
	}

	dims := hidden.GetShape()
	if len(dims) != 3 || dims[1] != int64(len(ids)) {
		return nil, fmt.Errorf("unexpected output shape %v", dims)
	}

	vec := meanPool(hidden.GetData(), len(ids), int(dims[2]), mask)
	l2Normalize(vec)
	return vec, nil
}

// meanPool averages token vectors of a [seqLen x dim] row-major block over the
// positions where mask is set.
func meanPool(hidden []float32, seqLen, dim int, mask []int64) []float32 {
	out := make([]float32, dim)
	if dim == 0 || len(hidden) < seqLen*dim {
		return out
	}

	var count float32
	for t := 0; t < seqLen; t++ {
		if t < len(mask) && mask[t] == 0 {
			continue
		}
		row := hidden[t*dim : (t+1)*dim]
		for k, v := range row {
			out[k] += v
		}
		count++
	}
	if count == 0 {
		return out
	}
	for k := range out {
		out[k] /= count
	}
	return out
}

func l2Normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	n := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= n
	}
}

// truncate keeps the first max-1 tokens plus the final special token.
func truncate(ids []int64, max int) []int64 {
	if max <= 0 || len(ids) <= max {
		return ids
	}
	out := make([]int64, 0, max)
	out = append(out, ids[:max-1]...)
	return append(out, ids[len(ids)-1])
}

func toInt64(xs []int) []int64 {
	out := make([]int64, len(xs))
	for i, x := range xs {
		out[i] = int64(x)
	}
	return out
}

func ones(n int) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = 1
	}
	return out
}

func normalizeText(text string) string {
	text = strings.TrimSpace(norm.NFKC.String(text))
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, text)
}
