package ai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/skyauthor/newsroom/internal/apperr"
	"github.com/skyauthor/newsroom/internal/content"
	"github.com/skyauthor/newsroom/internal/models"
)

var controlChars = regexp.MustCompile(`[\x00-\x1F\x7F]`)

// PostProcessor turns raw model output into a clamped SEOResult
type PostProcessor struct {
	maxDescriptionLength int
	maxKeywords          int
	maxTakeaways         int
}

func NewPostProcessor() *PostProcessor {
	return &PostProcessor{
		maxDescriptionLength: content.MetaDescriptionLength,
		maxKeywords:          8,
		maxTakeaways:         5,
	}
}

// Process parses the model text and clamps every field. fallbackDescription is
// used when the model omits metaDescription.
func (p *PostProcessor) Process(raw, title, fallbackDescription string) (*models.SEOResult, error) {
	obj, err := extractObject(raw)
	if err != nil {
		return nil, err
	}

	result := &models.SEOResult{
		MetaDescription: content.Truncate(p.cleanText(stringField(obj, "metaDescription")), p.maxDescriptionLength),
		Keywords:        capList(content.NormalizeKeywords(stringList(obj, "keywords")), p.maxKeywords),
		KeyTakeaways:    capList(content.CleanTakeaways(stringList(obj, "keyTakeaways")), p.maxTakeaways),
		OptimizedTitle:  p.cleanText(stringField(obj, "optimizedTitle")),
		Source:          models.SEOSourceAI,
	}

	if result.MetaDescription == "" {
		result.MetaDescription = fallbackDescription
	}
	if result.OptimizedTitle == "" {
		result.OptimizedTitle = title
	}
	return result, nil
}

// cleanText removes control characters and normalizes whitespace
func (p *PostProcessor) cleanText(s string) string {
	s = controlChars.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

// extractObject strips Markdown code fences and decodes the first complete
// JSON object found in the text.
func extractObject(raw string) (map[string]any, error) {
	text := stripFences(raw)

	candidate, ok := firstObject(text)
	if !ok {
		return nil, fmt.Errorf("%w: no JSON object in response", apperr.ErrMalformedResponse)
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(candidate), &obj); err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrMalformedResponse, err)
	}
	if obj == nil {
		return nil, fmt.Errorf("%w: response is not an object", apperr.ErrMalformedResponse)
	}
	return obj, nil
}

func stripFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```JSON", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// firstObject returns the first balanced {...} span. Braces inside JSON
// strings do not count.
func firstObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

func stringField(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return s
}

// stringList returns the string entries of an array field. Anything that is
// not an array yields an empty list.
func stringList(obj map[string]any, key string) []string {
	items, ok := obj[key].([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func capList(in []string, n int) []string {
	if len(in) > n {
		return in[:n]
	}
	return in
}
