// Package ai holds the provider-neutral contract for the language models used to
// summarise matches and structure scraped unit pages.
package ai

import (
	"context"
	"fmt"
	"strings"
)

// ProviderGemini is the only supported provider.
const ProviderGemini = "gemini"

// Generator answers a system instruction plus one message with JSON text.
type Generator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
	Model() string
}

// Provider normalises a configured provider name. Empty selects Gemini.
func Provider(name string) (string, error) {
	switch p := strings.ToLower(strings.TrimSpace(name)); p {
	case "", ProviderGemini:
		return ProviderGemini, nil
	default:
		return "", fmt.Errorf("unsupported ai provider: %s", name)
	}
}
