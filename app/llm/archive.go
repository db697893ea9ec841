package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"
)

// Exchange is one prompt/response pair kept for debugging
type Exchange struct {
	Timestamp time.Time `json:"timestamp"`
	Provider  string    `json:"provider"`
	Model     string    `json:"model"`
	Prompt    string    `json:"prompt"`
	Response  string    `json:"response"`
	Error     string    `json:"error,omitempty"`
}

// Archive writes exchanges as JSON files into a directory. A nil Archive discards them.
type Archive struct {
	dir string
	seq atomic.Uint64
}

func NewArchive(dir string) *Archive {
	if dir == "" {
		return nil
	}
	return &Archive{dir: dir}
}

// Save writes the exchange and returns its path
func (a *Archive) Save(exchange Exchange) (string, error) {
	if a == nil {
		return "", nil
	}

	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	filename := fmt.Sprintf("%s-%s-%04d.json",
		exchange.Timestamp.UTC().Format("2006-01-02T15-04-05"), exchange.Provider, a.seq.Add(1))
	path := filepath.Join(a.dir, filename)

	data, err := json.MarshalIndent(exchange, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode exchange: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write exchange: %w", err)
	}

	return path, nil
}

func (a *Archive) record(provider, model, prompt, response string, callErr error) {
	if a == nil {
		return
	}

	exchange := Exchange{
		Timestamp: time.Now(),
		Provider:  provider,
		Model:     model,
		Prompt:    prompt,
		Response:  response,
	}
	if callErr != nil {
		exchange.Error = callErr.Error()
	}

	path, err := a.Save(exchange)
	if err != nil {
		slog.Warn("Failed to archive model exchange", "provider", provider, "error", err)
		return
	}
	slog.Debug("Archived model exchange", "provider", provider, "path", path)
}
