package news

import (
	"fmt"
	"slices"
)

// SentimentSet is a closed vocabulary for the article sentiment label.
type SentimentSet struct {
	Name   string
	Values []string
}

var (
	ToneSentiments = SentimentSet{
		Name:   "tone",
		Values: []string{"positive", "negative", "neutral", "mixed"},
	}
	ContentTypeSentiments = SentimentSet{
		Name:   "content_type",
		Values: []string{"discussion", "question", "announcement", "experience", "advice", "resource"},
	}
)

func (s SentimentSet) Contains(v string) bool {
	return slices.Contains(s.Values, v)
}

// SentimentSetByName resolves a configured set name. Empty means tone.
func SentimentSetByName(name string) (SentimentSet, error) {
	switch name {
	case "", ToneSentiments.Name:
		return ToneSentiments, nil
	case ContentTypeSentiments.Name:
		return ContentTypeSentiments, nil
	default:
		return SentimentSet{}, fmt.Errorf("unknown sentiment set: %s", name)
	}
}
