package llm

import (
	"fmt"
	"strings"

	"github.com/lysyi3m/bruinbrief/app/news"
)

const maxPromptComments = 3

func writePost(b *strings.Builder, post news.RankedPost, withPermalink bool) {
	content := post.Body
	if content == "" {
		content = "[No content]"
	}

	fmt.Fprintf(b, "\nID: %s\n", post.ID)
	fmt.Fprintf(b, "Title: %s\n", post.Title)
	fmt.Fprintf(b, "Content: %s\n", content)
	fmt.Fprintf(b, "Score: %d upvotes | Comments: %d | Engagement Score: %d\n", post.Score, post.NumComments, post.EngagementScore)
	fmt.Fprintf(b, "Top Comments: %s\n", topComments(post.TopComments))
	if withPermalink {
		fmt.Fprintf(b, "Permalink: %s\n", post.Permalink)
	}
	b.WriteString("---\n")
}

func topComments(comments []news.Comment) string {
	bodies := make([]string, 0, maxPromptComments)
	for _, c := range comments {
		if len(bodies) == maxPromptComments {
			break
		}
		bodies = append(bodies, c.Body)
	}
	if len(bodies) == 0 {
		return "[No comments]"
	}
	return strings.Join(bodies, " | ")
}

func buildIdentifyPrompt(posts []news.RankedPost) string {
	var b strings.Builder

	b.WriteString("You are a witty trend analyst for UCLA's Reddit community. ")
	b.WriteString("Analyze these high-engagement UCLA posts and decide which ones deserve funny news articles.\n\n")
	b.WriteString("OPTIONS:\n")
	b.WriteString("1. Single viral post articles (one post with lots of engagement)\n")
	b.WriteString("2. Multi-post trend articles (group of related posts)\n")
	b.WriteString("3. Skip posts that aren't article-worthy\n\n")
	b.WriteString("Only reference post IDs listed below.\n\n")
	b.WriteString("POSTS DATA (sorted by engagement):\n")

	for _, post := range posts {
		writePost(&b, post, false)
	}

	return b.String()
}

func identifySchema() Schema {
	return Schema{
		"type": "object",
		"properties": map[string]any{
			"articles": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"type": map[string]any{
							"type": "string",
							"enum": []string{string(news.KindSingle), string(news.KindTrend)},
						},
						"theme": map[string]any{
							"type":        "string",
							"description": "Brief description of what makes this article-worthy",
						},
						"post_ids": map[string]any{
							"type":  "array",
							"items": map[string]any{"type": "string"},
						},
						"justification": map[string]any{
							"type":        "string",
							"description": "Why this deserves an article",
						},
						"humor_potential": map[string]any{
							"type": "string",
							"enum": []string{string(news.HumorHigh), string(news.HumorMedium), string(news.HumorLow)},
						},
					},
					"required": []string{"type", "theme", "post_ids", "justification", "humor_potential"},
				},
			},
		},
		"required": []string{"articles"},
	}
}

func buildGeneratePrompt(opps []news.Opportunity, posts []news.RankedPost, civicDate string) string {
	byID := make(map[string]news.RankedPost, len(posts))
	for _, p := range posts {
		byID[p.ID] = p
	}

	var b strings.Builder

	b.WriteString("You are a witty UCLA news writer creating funny articles for the campus community. ")
	b.WriteString("Write one article for each numbered opportunity below, in the same order, with Gen Z humor and UCLA-specific references.\n\n")

	for i, opp := range opps {
		subject := "trending topic"
		focus := "Connect the trending posts into a cohesive narrative"
		if opp.Kind == news.KindSingle {
			subject = "viral post"
			focus = "Focus on this one viral moment and why it captured attention"
		}

		fmt.Fprintf(&b, "=== ARTICLE %d (%s) ===\n", i+1, subject)
		fmt.Fprintf(&b, "ARTICLE TYPE: %s\n", opp.Kind)
		fmt.Fprintf(&b, "THEME: %s\n", opp.Theme)
		fmt.Fprintf(&b, "JUSTIFICATION: %s\n", opp.Justification)
		fmt.Fprintf(&b, "ANGLE: %s\n", focus)
		b.WriteString("POST DATA:\n")
		for _, id := range opp.PostIDs {
			if post, ok := byID[id]; ok {
				writePost(&b, post, true)
			}
		}
		b.WriteString("\n")
	}

	b.WriteString("WRITING STYLE:\n")
	b.WriteString("- Gen Z humor with UCLA references (Westwood, Powell Cat, dining halls, etc.)\n")
	b.WriteString("- Appropriate slang that resonates with college students\n")
	b.WriteString("- Light and entertaining, not mean-spirited\n\n")

	fmt.Fprintf(&b, "DAILY SUMMARY:\nAlso describe the overall campus mood for %s across all of these stories ", civicDate)
	b.WriteString("with a single emoji, a short mood title and a one or two sentence description.\n")

	return b.String()
}

func generateSchema(sentiments news.SentimentSet) Schema {
	return Schema{
		"type": "object",
		"properties": map[string]any{
			"articles": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"headline": map[string]any{
							"type":        "string",
							"description": "Catchy headline that captures the viral moment or trend",
						},
						"description": map[string]any{
							"type":        "string",
							"description": "Brief description (1-2 sentences) referencing the posts",
						},
						"content": map[string]any{
							"type":        "string",
							"description": "Full article (200-400 words) with UCLA humor and specific references",
						},
						"sentiment": map[string]any{
							"type": "string",
							"enum": sentiments.Values,
						},
						"tags": map[string]any{
							"type":        "array",
							"items":       map[string]any{"type": "string"},
							"description": "Relevant tags",
						},
						"trend_category": map[string]any{
							"type":        "string",
							"description": "The main theme or category",
						},
						"article_type": map[string]any{
							"type": "string",
							"enum": []string{string(news.KindSingle), string(news.KindTrend)},
						},
					},
					"required": []string{"headline", "description", "content", "sentiment", "tags", "trend_category", "article_type"},
				},
			},
			"daily_summary": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"mood_emoji": map[string]any{
						"type":        "string",
						"description": "One emoji for the campus mood",
					},
					"mood_title": map[string]any{
						"type":        "string",
						"description": "Short title for the day's vibe",
					},
					"mood_description": map[string]any{
						"type":        "string",
						"description": "One or two sentences on how campus is feeling",
					},
					"overall_sentiment": map[string]any{
						"type": "string",
						"enum": news.ToneSentiments.Values,
					},
				},
				"required": []string{"mood_emoji", "mood_title", "mood_description", "overall_sentiment"},
			},
		},
		"required": []string{"articles", "daily_summary"},
	}
}
