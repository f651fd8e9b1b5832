// Package indexing tells search engines about newly published articles.
package indexing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/skyauthor/newsroom/internal/apperr"
	"github.com/skyauthor/newsroom/internal/logger"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
)

// IndexingScope is the OAuth scope of the Google Indexing API.
const IndexingScope = "https://www.googleapis.com/auth/indexing"

// Options configures a Notifier.
type Options struct {
	SitemapURL       string
	PingEndpoints    []string
	IndexingEndpoint string
	// ServiceAccountKey is the JSON key of a Google service account. Empty
	// disables the indexing notification.
	ServiceAccountKey []byte
	Timeout           time.Duration
}

// Notifier pings search engines and submits URLs to the indexing API
type Notifier struct {
	client  *resty.Client
	opts    Options
	jwt     *jwt.Config
	timeout time.Duration
	wg      sync.WaitGroup
	log     zerolog.Logger
}

func NewNotifier(opts Options) (*Notifier, error) {
	n := &Notifier{
		client:  resty.New().SetTimeout(opts.Timeout),
		opts:    opts,
		timeout: opts.Timeout,
		log:     logger.Component("indexing"),
	}
	if n.timeout <= 0 {
		n.timeout = 15 * time.Second
		n.client.SetTimeout(n.timeout)
	}

	if len(opts.ServiceAccountKey) > 0 {
		cfg, err := google.JWTConfigFromJSON(opts.ServiceAccountKey, IndexingScope)
		if err != nil {
			return nil, fmt.Errorf("unable to parse service account: %w", err)
		}
		n.jwt = cfg
	}
	return n, nil
}

// Credentialed reports whether indexing API submissions are enabled.
func (n *Notifier) Credentialed() bool {
	return n.jwt != nil
}

// NotifyPublish returns immediately. The pings and the indexing submission run
// in the background and their failures are only logged.
func (n *Notifier) NotifyPublish(url string) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()

		n.Notify(ctx, url)
	}()
}

// Notify runs every notification for url and waits for them.
func (n *Notifier) Notify(ctx context.Context, url string) {
	var wg sync.WaitGroup
	for _, endpoint := range n.opts.PingEndpoints {
		wg.Add(1)
		go func(endpoint string) {
			defer wg.Done()
			if err := n.ping(ctx, endpoint); err != nil {
				n.log.Debug().Err(err).Str("endpoint", endpoint).Msg("Sitemap ping failed")
			}
		}(endpoint)
	}

	if n.jwt != nil {
		if err := n.submit(ctx, url); err != nil {
			n.log.Warn().Err(err).Str("url", url).Msg("Indexing API notification failed")
		} else {
			n.log.Info().Str("url", url).Msg("Submitted URL to indexing API")
		}
	}
	wg.Wait()
}

// Drain waits for background notifications or for ctx to expire.
func (n *Notifier) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (n *Notifier) ping(ctx context.Context, endpoint string) error {
	resp, err := n.client.R().
		SetContext(ctx).
		SetQueryParam("sitemap", n.opts.SitemapURL).
		Get(endpoint)
	if err != nil {
		return fmt.Errorf("%w: %w", apperr.ErrUpstreamUnavailable, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%w: ping returned status %d", apperr.ErrUpstreamUnavailable, resp.StatusCode())
	}
	return nil
}

type urlNotification struct {
	URL  string `json:"url"`
	Type string `json:"type"`
}

func (n *Notifier) submit(ctx context.Context, url string) error {
	token, err := n.jwt.TokenSource(ctx).Token()
	if err != nil {
		return fmt.Errorf("%w: token exchange: %w", apperr.ErrUpstreamUnavailable, err)
	}

	resp, err := n.client.R().
		SetContext(ctx).
		SetAuthToken(token.AccessToken).
		SetHeader("Content-Type", "application/json").
		SetBody(urlNotification{URL: url, Type: "URL_UPDATED"}).
		Post(n.opts.IndexingEndpoint)
	if err != nil {
		return fmt.Errorf("%w: %w", apperr.ErrUpstreamUnavailable, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%w: indexing API returned status %d: %s",
			apperr.ErrUpstreamUnavailable, resp.StatusCode(), resp.String())
	}
	return nil
}
