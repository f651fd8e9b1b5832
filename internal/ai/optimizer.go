package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/skyauthor/newsroom/internal/apperr"
	"github.com/skyauthor/newsroom/internal/content"
	"github.com/skyauthor/newsroom/internal/logger"
	"github.com/skyauthor/newsroom/internal/models"
)

// Generator turns a prompt into model text
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Optimizer produces SEO metadata for an article. It asks the model when one is
// configured and falls back to the deterministic extractors otherwise.
type Optimizer struct {
	gen  Generator
	post *PostProcessor
	log  zerolog.Logger
}

// NewOptimizer returns an optimizer. A nil generator selects the basic path for
// every call.
func NewOptimizer(gen Generator) *Optimizer {
	return &Optimizer{
		gen:  gen,
		post: NewPostProcessor(),
		log:  logger.Component("seo"),
	}
}

// Enabled reports whether a model is configured.
func (o *Optimizer) Enabled() bool {
	return o.gen != nil
}

// Optimize returns SEO metadata for the article. Failures of the model call are
// logged and answered with the basic result; only blank input and caller
// cancellation are returned as errors.
func (o *Optimizer) Optimize(ctx context.Context, title, body, category string) (*models.SEOResult, error) {
	if strings.TrimSpace(title) == "" || strings.TrimSpace(body) == "" {
		return nil, fmt.Errorf("%w: %w", apperr.ErrOptimizationFailed,
			apperr.Invalid("content", "add title and content first"))
	}

	if o.gen == nil {
		return Basic(title, body), nil
	}

	result, err := o.optimizeWithModel(ctx, title, body, category)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		o.log.Warn().
			Err(err).
			Str("title", title).
			Bool("malformed", errors.Is(err, apperr.ErrMalformedResponse)).
			Msg("SEO model call failed, using basic extraction")
		return Basic(title, body), nil
	}
	return result, nil
}

func (o *Optimizer) optimizeWithModel(ctx context.Context, title, body, category string) (*models.SEOResult, error) {
	plain := content.Truncate(content.StripTags(body), MaxPromptContent)
	prompt := BuildSEOPrompt(title, category, plain)

	raw, err := o.gen.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return o.post.Process(raw, title, basicDescription(body))
}

// Basic derives SEO metadata without any network call.
func Basic(title, body string) *models.SEOResult {
	return &models.SEOResult{
		MetaDescription: basicDescription(body),
		Keywords:        content.ExtractKeywords(title, body),
		KeyTakeaways:    content.SynthesizeTakeaways(body),
		OptimizedTitle:  title,
		Source:          models.SEOSourceBasic,
	}
}

func basicDescription(body string) string {
	return content.ExtractExcerpt(body, content.FallbackDescriptionLength)
}
