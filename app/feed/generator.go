package feed

import (
	"bytes"
	"cmp"
	"encoding/xml"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/lysyi3m/bruinbrief/app/news"
)

// Channel describes the generated RSS channel
type Channel struct {
	Title       string
	Link        string
	SelfURL     string
	Description string
	Language    string
	Version     string
}

func DefaultChannel(baseURL, version string) Channel {
	baseURL = strings.TrimRight(baseURL, "/")
	return Channel{
		Title:       "Bruin Brief",
		Link:        baseURL,
		SelfURL:     baseURL + "/feed.xml",
		Description: "What UCLA is talking about, written up from the campus subreddits",
		Language:    "en-us",
		Version:     version,
	}
}

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// Run renders articles (newest first) as RSS 2.0
func (g *Generator) Run(channel Channel, articles []news.Article) (string, error) {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/" xmlns:atom="http://www.w3.org/2005/Atom">`)
	buf.WriteString("\n  <channel>\n")

	g.writeElement(&buf, "title", channel.Title, 4)
	g.writeElement(&buf, "link", channel.Link, 4)
	g.writeElement(&buf, "description", cmp.Or(channel.Description, channel.Title), 4)

	if channel.SelfURL != "" {
		buf.WriteString(fmt.Sprintf("    <atom:link href=\"%s\" rel=\"self\" type=\"application/rss+xml\" />\n",
			html.EscapeString(channel.SelfURL)))
	}

	lastBuildDate := time.Now().In(time.Local)
	if len(articles) > 0 {
		lastBuildDate = articles[0].GeneratedAt
	}

	g.writeElement(&buf, "lastBuildDate", lastBuildDate.Format(time.RFC1123Z), 4)
	g.writeElement(&buf, "generator", fmt.Sprintf("BruinBrief/%s", cmp.Or(channel.Version, "dev")), 4)
	g.writeElement(&buf, "language", channel.Language, 4)

	for _, article := range articles {
		g.writeItem(&buf, channel, article)
	}

	buf.WriteString("  </channel>\n</rss>")

	return buf.String(), nil
}

func (g *Generator) writeItem(buf *bytes.Buffer, channel Channel, article news.Article) {
	buf.WriteString("    <item>\n")

	buf.WriteString("      <guid isPermaLink=\"false\">")
	xml.EscapeText(buf, []byte(article.ID))
	buf.WriteString("</guid>\n")

	g.writeElement(buf, "title", article.Headline, 6)

	if channel.Link != "" {
		g.writeElement(buf, "link", fmt.Sprintf("%s/api/articles/%s", channel.Link, article.ID), 6)
	}

	g.writeElement(buf, "description", cmp.Or(article.Description, "No description available"), 6)

	if article.Content != "" && article.Content != article.Description {
		buf.WriteString("      <content:encoded><![CDATA[")
		buf.WriteString(strings.ReplaceAll(article.Content, "]]>", "]]]]><![CDATA[>"))
		buf.WriteString("]]></content:encoded>\n")
	}

	g.writeElement(buf, "pubDate", article.GeneratedAt.Format(time.RFC1123Z), 6)

	if article.TrendCategory != "" {
		g.writeElement(buf, "category", news.CategoryLabel(article.TrendCategory), 6)
	}
	for _, tag := range article.Tags {
		if tag != "" {
			g.writeElement(buf, "category", tag, 6)
		}
	}

	buf.WriteString("    </item>\n")
}

func (g *Generator) writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}

	for i := 0; i < indent; i++ {
		buf.WriteByte(' ')
	}

	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	xml.EscapeText(buf, []byte(content))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}
