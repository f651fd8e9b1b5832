package ai

import (
	"fmt"
	"strings"
)

// MaxPromptContent caps the plain-text article body sent to the model, in runes.
const MaxPromptContent = 3000

const seoPromptTemplate = `You are an SEO expert. Analyze this article and provide SEO optimization for maximum search engine visibility.

Title: %s
Category: %s
Content: %s

Respond with ONLY valid JSON (no markdown, no code blocks, no explanation):
{
  "metaDescription": "Compelling 150-155 character SEO description with primary keyword",
  "keywords": ["keyword1", "keyword2", "keyword3", "keyword4", "keyword5"],
  "keyTakeaways": ["Key insight 1 (actionable)", "Key insight 2 (valuable)", "Key insight 3 (memorable)"],
  "optimizedTitle": "SEO-optimized title if improvement needed, otherwise same as original"
}

Requirements:
- metaDescription: Must be engaging, include main keyword, under 155 chars
- keywords: 5 highly relevant, searchable keywords (no generic words)
- keyTakeaways: 3 concise, valuable points readers will remember
- optimizedTitle: Only change if significant SEO improvement possible`

// BuildSEOPrompt creates the prompt for one article. plainContent must already be
// stripped of markup and truncated.
func BuildSEOPrompt(title, category, plainContent string) string {
	return fmt.Sprintf(seoPromptTemplate,
		escapeForPrompt(title),
		escapeForPrompt(category),
		strings.TrimSpace(plainContent),
	)
}

// escapeForPrompt flattens a single-line field
func escapeForPrompt(s string) string {
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\t", " ")
	return strings.TrimSpace(s)
}
