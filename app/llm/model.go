package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
)

const (
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
)

// Schema is a JSON schema in the OpenAPI subset accepted by structured-output endpoints.
type Schema map[string]any

// Model produces a JSON document conforming to schema for the given prompt.
// Network failures surface as *news.TransportError, unusable payloads as *news.MalformedResponseError.
type Model interface {
	Name() string
	GenerateJSON(ctx context.Context, prompt string, schema Schema) ([]byte, error)
}

// New builds the model for the configured provider.
func New(provider, apiKey, model string, httpClient *http.Client, archive *Archive) (Model, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key for provider %s is required", provider)
	}

	switch provider {
	case ProviderGemini, "":
		return NewGeminiModel(apiKey, model, httpClient, archive), nil
	case ProviderAnthropic:
		return NewAnthropicModel(apiKey, model, httpClient, archive), nil
	default:
		return nil, fmt.Errorf("unknown model provider: %s", provider)
	}
}

var (
	fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(\\{.*\\})\\s*\\n?```")
	bareJSON   = regexp.MustCompile(`(?s)(\{.*\})`)
)

// extractJSON pulls a JSON object out of text that may be wrapped in a markdown fence or prose.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	if json.Valid([]byte(text)) {
		return text
	}
	if matches := fencedJSON.FindStringSubmatch(text); len(matches) > 1 {
		return matches[1]
	}
	if matches := bareJSON.FindStringSubmatch(text); len(matches) > 1 {
		return matches[1]
	}
	return text
}

// TestConnection asks the model for a trivial structured answer.
func TestConnection(ctx context.Context, model Model) error {
	schema := Schema{
		"type": "object",
		"properties": map[string]any{
			"test": map[string]any{"type": "string"},
		},
		"required": []string{"test"},
	}

	raw, err := model.GenerateJSON(ctx, "Respond with a test message", schema)
	if err != nil {
		return err
	}

	var payload struct {
		Test string `json:"test"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("failed to parse test response: %w", err)
	}
	if payload.Test == "" {
		return fmt.Errorf("test response has no message")
	}
	return nil
}
