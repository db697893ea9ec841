package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/bruinbrief/app/news"
)

// Identifier asks the model which ranked posts deserve an article
type Identifier struct {
	model Model
}

func NewIdentifier(model Model) *Identifier {
	return &Identifier{model: model}
}

type identifyResponse struct {
	Articles *[]news.Opportunity `json:"articles"`
}

// Identify returns the opportunities as proposed by the model. Enum values are
// checked here; post id resolution and humor filtering belong to the caller.
func (i *Identifier) Identify(ctx context.Context, ranked []news.RankedPost) ([]news.Opportunity, error) {
	if len(ranked) == 0 {
		return nil, nil
	}

	raw, err := i.model.GenerateJSON(ctx, buildIdentifyPrompt(ranked), identifySchema())
	if err != nil {
		return nil, err
	}

	opps, err := decodeOpportunities(raw)
	if err != nil {
		return nil, err
	}

	slog.Debug("Opportunities identified", "model", i.model.Name(), "posts", len(ranked), "opportunities", len(opps))
	return opps, nil
}

func decodeOpportunities(raw []byte) ([]news.Opportunity, error) {
	var resp identifyResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &news.MalformedResponseError{Op: "identify", Err: err}
	}
	if resp.Articles == nil {
		return nil, &news.MalformedResponseError{Op: "identify", Err: errors.New("missing articles array")}
	}

	opps := *resp.Articles
	for idx, opp := range opps {
		if !opp.Kind.Valid() {
			return nil, &news.MalformedResponseError{Op: "identify", Err: fmt.Errorf("opportunity %d has unknown type %q", idx, opp.Kind)}
		}
		if !opp.HumorPotential.Valid() {
			return nil, &news.MalformedResponseError{Op: "identify", Err: fmt.Errorf("opportunity %d has unknown humor_potential %q", idx, opp.HumorPotential)}
		}
	}

	return opps, nil
}
