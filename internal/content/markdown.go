package content

import (
	"bytes"
	"fmt"

	"github.com/skyauthor/newsroom/internal/apperr"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
)

const (
	FormatHTML     = "html"
	FormatMarkdown = "markdown"
)

var markdown = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		extension.Linkify,
		extension.Table,
	),
	goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	goldmark.WithRendererOptions(html.WithUnsafe()),
)

// MarkdownToHTML renders editor markdown into the HTML stored as article content.
func MarkdownToHTML(src string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return buf.String(), nil
}

// Normalize returns the HTML body for the given input format.
func Normalize(body, format string) (string, error) {
	switch format {
	case "", FormatHTML:
		return body, nil
	case FormatMarkdown:
		return MarkdownToHTML(body)
	default:
		return "", fmt.Errorf("%w: unsupported content format %q", apperr.ErrInvalidInput, format)
	}
}
