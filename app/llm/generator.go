package llm

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/lysyi3m/bruinbrief/app/news"
)

// Generator writes all articles and the daily mood in a single model call
type Generator struct {
	model      Model
	sentiments news.SentimentSet
}

func NewGenerator(model Model, sentiments news.SentimentSet) *Generator {
	return &Generator{model: model, sentiments: sentiments}
}

func (g *Generator) Sentiments() news.SentimentSet {
	return g.sentiments
}

type generateResponse struct {
	Articles     *[]news.GeneratedArticle  `json:"articles"`
	DailySummary *news.DailySummaryPayload `json:"daily_summary"`
}

// Generate returns drafts in opportunity order. Items are not validated here so
// that one bad draft does not discard the batch.
func (g *Generator) Generate(ctx context.Context, opps []news.Opportunity, ranked []news.RankedPost, civicDate string) (news.Generation, error) {
	if len(opps) == 0 {
		return news.Generation{}, nil
	}

	prompt := buildGeneratePrompt(opps, ranked, civicDate)
	raw, err := g.model.GenerateJSON(ctx, prompt, generateSchema(g.sentiments))
	if err != nil {
		return news.Generation{}, err
	}

	gen, err := decodeGeneration(raw)
	if err != nil {
		return news.Generation{}, err
	}

	if len(gen.Articles) != len(opps) {
		slog.Warn("Model returned a different number of articles than requested",
			"requested", len(opps), "returned", len(gen.Articles))
	}

	return gen, nil
}

func decodeGeneration(raw []byte) (news.Generation, error) {
	var resp generateResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return news.Generation{}, &news.MalformedResponseError{Op: "generate", Err: err}
	}
	if resp.Articles == nil {
		return news.Generation{}, &news.MalformedResponseError{Op: "generate", Err: errors.New("missing articles array")}
	}

	return news.Generation{
		Articles:     *resp.Articles,
		DailySummary: resp.DailySummary,
	}, nil
}
