package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spigell/cpl-matcher/internal/ai"
	"github.com/spigell/cpl-matcher/internal/explain"
	"github.com/spigell/cpl-matcher/internal/logger"
	"github.com/spigell/cpl-matcher/internal/unit"
)

const (
	summarySystem = "You compare academic units for credit transfer. " +
		"Return JSON with one key: explanation. " +
		"Write 2-4 sentences in plain language covering what matches, what differs and how confident the match is."

	summaryDescriptionLimit = 2200
	summaryOutcomesLimit    = 1800
)

type summaryUnit struct {
	Title            string `json:"title"`
	Description      string `json:"description"`
	LearningOutcomes string `json:"learning_outcomes"`
}

type summaryPayload struct {
	External summaryUnit `json:"external"`
	Catalog  summaryUnit `json:"catalog"`
	Score    float64     `json:"numeric_score"`
}

// Summarizer writes the natural-language part of match explanations.
type Summarizer struct {
	generator ai.Generator
	logger    *zap.Logger
	maxLogLen int
}

var _ explain.Summarizer = (*Summarizer)(nil)

// NewSummarizer builds a Summarizer on top of generator.
func NewSummarizer(generator ai.Generator, maxLogLength int, log *zap.Logger) *Summarizer {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Summarizer{
		generator: generator,
		logger:    logger.WithCommonFields(log, ai.ProviderGemini, generator.Model()),
		maxLogLen: maxLogLength,
	}
}

// Summarize returns the model's explanation, or an absent value when it gave none.
func (s *Summarizer) Summarize(ctx context.Context, req explain.SummaryRequest) (unit.Optional[string], error) {
	if s == nil || s.generator == nil {
		return unit.None[string](), errors.New("gemini summarizer is not initialized")
	}

	payload, err := json.Marshal(summaryPayload{
		External: toSummaryUnit(req.External),
		Catalog:  toSummaryUnit(req.Catalog),
		Score:    req.Score,
	})
	if err != nil {
		return unit.None[string](), fmt.Errorf("marshal summary payload: %w", err)
	}

	s.logger.Debug("gemini summary request",
		zap.String("external", req.External.Code),
		zap.String("catalog", req.Catalog.Code),
		zap.Int("prompt_length", utf8.RuneCount(payload)),
	)

	raw, err := s.generator.GenerateContent(ctx, summarySystem, string(payload))
	if err != nil {
		return unit.None[string](), err
	}

	s.logger.Debug("gemini summary response",
		zap.String("external", req.External.Code),
		zap.String("catalog", req.Catalog.Code),
		zap.String("response_preview", logger.TruncateForLog(raw, s.maxLogLen)),
	)

	data, err := parseObject(raw)
	if err != nil {
		return unit.None[string](), err
	}
	return optionalString(data["explanation"]), nil
}

func toSummaryUnit(u unit.Unit) summaryUnit {
	return summaryUnit{
		Title:            u.Title,
		Description:      truncateRunes(u.Description, summaryDescriptionLimit),
		LearningOutcomes: truncateRunes(u.LearningOutcomes, summaryOutcomesLimit),
	}
}
