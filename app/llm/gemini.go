package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lysyi3m/bruinbrief/app/news"
)

const (
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultGeminiModel   = "gemini-2.0-flash"
)

// GeminiModel calls the generateContent endpoint with a response schema
type GeminiModel struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
	archive *Archive
}

func NewGeminiModel(apiKey, model string, client *http.Client, archive *Archive) *GeminiModel {
	if model == "" {
		model = DefaultGeminiModel
	}
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}
	return &GeminiModel{
		apiKey:  apiKey,
		model:   model,
		baseURL: DefaultGeminiBaseURL,
		client:  client,
		archive: archive,
	}
}

// WithBaseURL points the model at another endpoint root
func (g *GeminiModel) WithBaseURL(baseURL string) *GeminiModel {
	g.baseURL = baseURL
	return g
}

func (g *GeminiModel) Name() string {
	return ProviderGemini + "/" + g.model
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	Temperature      float64 `json:"temperature"`
	TopK             int     `json:"topK"`
	TopP             float64 `json:"topP"`
	MaxOutputTokens  int     `json:"maxOutputTokens"`
	ResponseMimeType string  `json:"responseMimeType"`
	ResponseSchema   Schema  `json:"responseSchema"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

func (g *GeminiModel) GenerateJSON(ctx context.Context, prompt string, schema Schema) ([]byte, error) {
	text, err := g.call(ctx, prompt, schema)
	g.archive.record(ProviderGemini, g.model, prompt, text, err)
	if err != nil {
		return nil, err
	}

	payload := extractJSON(text)
	if !json.Valid([]byte(payload)) {
		return nil, &news.MalformedResponseError{Op: "gemini", Err: fmt.Errorf("response is not valid JSON: %.200s", text)}
	}
	return []byte(payload), nil
}

func (g *GeminiModel) call(ctx context.Context, prompt string, schema Schema) (string, error) {
	reqBody := geminiRequest{
		Contents: []geminiContent{{
			Role:  "user",
			Parts: []geminiPart{{Text: prompt}},
		}},
		GenerationConfig: geminiGenerationConfig{
			Temperature:      0.7,
			TopK:             40,
			TopP:             0.95,
			MaxOutputTokens:  8192,
			ResponseMimeType: "application/json",
			ResponseSchema:   schema,
		},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, g.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", news.NewTransportError("gemini", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", news.NewTransportError("gemini", fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return "", &news.TransportError{
			Op:  "gemini",
			Err: fmt.Errorf("API returned status %d: %.300s", resp.StatusCode, string(body)),
		}
	}

	var geminiResp geminiResponse
	if err := json.Unmarshal(body, &geminiResp); err != nil {
		return "", &news.MalformedResponseError{Op: "gemini", Err: fmt.Errorf("failed to parse response envelope: %w", err)}
	}

	if geminiResp.Error != nil {
		return "", &news.TransportError{Op: "gemini", Err: fmt.Errorf("API error %d %s: %s", geminiResp.Error.Code, geminiResp.Error.Status, geminiResp.Error.Message)}
	}

	if len(geminiResp.Candidates) == 0 {
		reason := "no candidates returned"
		if geminiResp.PromptFeedback != nil && geminiResp.PromptFeedback.BlockReason != "" {
			reason = "prompt blocked: " + geminiResp.PromptFeedback.BlockReason
		}
		return "", &news.MalformedResponseError{Op: "gemini", Err: errors.New(reason)}
	}

	candidate := geminiResp.Candidates[0]
	if len(candidate.Content.Parts) == 0 || candidate.Content.Parts[0].Text == "" {
		return "", &news.MalformedResponseError{Op: "gemini", Err: fmt.Errorf("empty candidate (finish reason %s)", candidate.FinishReason)}
	}

	return candidate.Content.Parts[0].Text, nil
}
