package cmd

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/cpl-matcher/internal/ai"
	"github.com/spigell/cpl-matcher/internal/ai/gemini"
	"github.com/spigell/cpl-matcher/internal/secrets"
	"github.com/spigell/cpl-matcher/internal/similarity"
	"github.com/spigell/cpl-matcher/internal/similarity/onnx"
)

// newGenerator returns nil when the ai section is disabled.
func newGenerator(ctx context.Context, cfg *AIConfig, logger *zap.Logger) (*gemini.Generator, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}

	if _, err := ai.Provider(cfg.Provider); err != nil {
		return nil, err
	}

	if cfg.Gemini == nil {
		return nil, errors.New("gemini configuration is required when ai is enabled")
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: cfg.Gemini.APIKey,
		Env:   "GEMINI_API_KEY",
		File:  cfg.Gemini.APIKeyFile,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY_FILE)", err)
	}

	genLogger := logger.With(
		zap.String("provider", ai.ProviderGemini),
		zap.Int("ai_retry_attempts", cfg.Gemini.MaxRetries),
	)

	return gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model, cfg.Gemini.MaxRetries, genLogger)
}

// newSimilarity prefers sentence embeddings and falls back to TF-IDF when no
// model is configured or it cannot be loaded. The returned close func is never nil.
func newSimilarity(cfg onnx.Config, logger *zap.Logger) (*similarity.Provider, func()) {
	if !cfg.Enabled() {
		return similarity.Select(nil, logger), func() {}
	}

	encoder, err := onnx.New(cfg)
	if err != nil {
		logger.Warn("embedding model unavailable; using tf-idf", zap.Error(err))
		return similarity.Select(nil, logger), func() {}
	}

	return similarity.Select(encoder, logger), func() {
		if err := encoder.Close(); err != nil {
			logger.Warn("closing embedding encoder", zap.Error(err))
		}
	}
}
