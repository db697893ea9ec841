package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/lysyi3m/bruinbrief/app/news"
)

const DefaultAnthropicModel = "claude-sonnet-4-5"

// AnthropicModel asks Claude for JSON by embedding the schema in the prompt
// and prefilling the assistant turn with an opening brace.
type AnthropicModel struct {
	client  *anthropic.Client
	model   string
	archive *Archive
}

func NewAnthropicModel(apiKey, model string, httpClient *http.Client, archive *Archive, opts ...option.RequestOption) *AnthropicModel {
	if model == "" {
		model = DefaultAnthropicModel
	}

	requestOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if httpClient != nil {
		requestOpts = append(requestOpts, option.WithHTTPClient(httpClient))
	}
	requestOpts = append(requestOpts, opts...)

	client := anthropic.NewClient(requestOpts...)
	return &AnthropicModel{
		client:  &client,
		model:   model,
		archive: archive,
	}
}

func (a *AnthropicModel) Name() string {
	return ProviderAnthropic + "/" + a.model
}

func (a *AnthropicModel) GenerateJSON(ctx context.Context, prompt string, schema Schema) ([]byte, error) {
	schemaJSON, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode schema: %w", err)
	}
	fullPrompt := fmt.Sprintf("%s\n\nRespond only with a JSON object matching this JSON schema:\n%s", prompt, schemaJSON)

	message, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: 8192,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(fullPrompt)),
			anthropic.NewAssistantMessage(anthropic.NewTextBlock("{")),
		},
	})
	if err != nil {
		a.archive.record(ProviderAnthropic, a.model, fullPrompt, "", err)
		return nil, news.NewTransportError("anthropic", err)
	}

	var responseText string
	for _, block := range message.Content {
		if block.Type == "text" {
			responseText = block.Text
			break
		}
	}
	a.archive.record(ProviderAnthropic, a.model, fullPrompt, responseText, nil)

	if responseText == "" {
		return nil, &news.MalformedResponseError{Op: "anthropic", Err: errors.New("empty response")}
	}

	// The response continues after the prefilled brace.
	payload := extractJSON("{" + responseText)
	if !json.Valid([]byte(payload)) {
		return nil, &news.MalformedResponseError{Op: "anthropic", Err: fmt.Errorf("response is not valid JSON: %.200s", responseText)}
	}
	return []byte(payload), nil
}
