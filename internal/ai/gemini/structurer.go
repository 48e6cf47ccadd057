package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/cpl-matcher/internal/ai"
	"github.com/spigell/cpl-matcher/internal/enrichment"
	"github.com/spigell/cpl-matcher/internal/logger"
	"github.com/spigell/cpl-matcher/internal/unit"
)

const (
	structureSystem = "Extract unit details from academic page text. " +
		"Return JSON keys: description, learning_outcomes, topics, credit_points, aqf_level. " +
		"Use an empty string when a value is unknown. Keep it concise."

	structureTextLimit = 9000
)

// Structurer turns scraped unit page text into enrichment fields.
type Structurer struct {
	generator ai.Generator
	logger    *zap.Logger
	maxLogLen int
}

var _ enrichment.Structurer = (*Structurer)(nil)

// NewStructurer builds a Structurer on top of generator.
func NewStructurer(generator ai.Generator, maxLogLength int, log *zap.Logger) *Structurer {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Structurer{
		generator: generator,
		logger:    logger.WithCommonFields(log, ai.ProviderGemini, generator.Model()),
		maxLogLen: maxLogLength,
	}
}

// Structure asks the model for unit fields. Blank page text yields an empty result.
func (s *Structurer) Structure(ctx context.Context, code, title, text string) (unit.Enrichment, error) {
	if s == nil || s.generator == nil {
		return unit.Enrichment{}, errors.New("gemini structurer is not initialized")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return unit.Enrichment{}, nil
	}

	message := fmt.Sprintf("Unit: %s %s\n\n%s", code, title, truncateRunes(text, structureTextLimit))
	raw, err := s.generator.GenerateContent(ctx, structureSystem, message)
	if err != nil {
		return unit.Enrichment{}, err
	}

	s.logger.Debug("gemini structure response",
		zap.String("unit", code),
		zap.String("response_preview", logger.TruncateForLog(raw, s.maxLogLen)),
	)

	data, err := parseObject(raw)
	if err != nil {
		return unit.Enrichment{}, err
	}

	return unit.Enrichment{
		Description:      optionalString(data["description"]),
		LearningOutcomes: optionalString(data["learning_outcomes"]),
		Topics:           optionalString(data["topics"]),
		CreditPoints:     optionalString(data["credit_points"]),
		LevelCode:        optionalString(data["aqf_level"]),
	}, nil
}
