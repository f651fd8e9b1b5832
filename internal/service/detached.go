package service

import (
	"context"
	"sync"
	"time"

	"github.com/skyauthor/newsroom/internal/logger"
)

// Detached runs a slow Invalidator in the background so the request that
// triggered it does not wait on it.
type Detached struct {
	next    Invalidator
	name    string
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewDetached(name string, next Invalidator, timeout time.Duration) *Detached {
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &Detached{next: next, name: name, timeout: timeout}
}

// InvalidateArticle returns immediately. Failures are logged.
func (d *Detached) InvalidateArticle(_ context.Context, slug, category string) error {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := d.next.InvalidateArticle(ctx, slug, category); err != nil {
			logger.Get().Error().
				Err(err).
				Str("invalidator", d.name).
				Str("slug", slug).
				Msg("Background invalidation failed")
		}
	}()
	return nil
}

// Wait blocks until running invalidations finish or ctx expires.
func (d *Detached) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
