package ai

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/skyauthor/newsroom/internal/apperr"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"
	DefaultModel   = "gemini-2.0-flash"
)

// GeminiClient calls the generateContent endpoint of the Gemini API
type GeminiClient struct {
	client      *resty.Client
	apiKey      string
	model       string
	baseURL     string
	temperature float64
	maxTokens   int
}

// GeminiOptions configures a GeminiClient. Zero values select the defaults.
type GeminiOptions struct {
	BaseURL     string
	Model       string
	Timeout     time.Duration
	Temperature float64
	MaxTokens   int
}

type geminiRequest struct {
	Contents         []geminiContent  `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func NewGeminiClient(apiKey string, opts GeminiOptions) *GeminiClient {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.Temperature == 0 {
		opts.Temperature = 0.3
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 600
	}

	return &GeminiClient{
		client:      resty.New().SetTimeout(opts.Timeout),
		apiKey:      apiKey,
		model:       opts.Model,
		baseURL:     opts.BaseURL,
		temperature: opts.Temperature,
		maxTokens:   opts.MaxTokens,
	}
}

// Generate sends one prompt and returns the text of the first candidate.
func (g *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	url := fmt.Sprintf("%s/%s:generateContent", g.baseURL, g.model)

	req := geminiRequest{
		Contents: []geminiContent{{
			Parts: []geminiPart{{Text: prompt}},
		}},
		GenerationConfig: generationConfig{
			Temperature:     g.temperature,
			MaxOutputTokens: g.maxTokens,
		},
	}

	var resp geminiResponse
	res, err := g.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetQueryParam("key", g.apiKey).
		SetBody(req).
		SetResult(&resp).
		SetError(&resp).
		Post(url)

	if err != nil {
		return "", fmt.Errorf("%w: gemini request: %w", apperr.ErrUpstreamUnavailable, err)
	}

	if resp.Error != nil {
		return "", fmt.Errorf("%w: gemini error %d: %s", apperr.ErrUpstreamUnavailable, resp.Error.Code, resp.Error.Message)
	}

	if res.StatusCode() < http.StatusOK || res.StatusCode() >= http.StatusMultipleChoices {
		return "", fmt.Errorf("%w: gemini returned status %d", apperr.ErrUpstreamUnavailable, res.StatusCode())
	}

	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("%w: no content in response", apperr.ErrMalformedResponse)
	}

	return resp.Candidates[0].Content.Parts[0].Text, nil
}
