package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/skyauthor/newsroom/internal/ai"
	"github.com/skyauthor/newsroom/internal/cache"
	"github.com/skyauthor/newsroom/internal/config"
	"github.com/skyauthor/newsroom/internal/feed"
	"github.com/skyauthor/newsroom/internal/indexing"
	"github.com/skyauthor/newsroom/internal/logger"
	"github.com/skyauthor/newsroom/internal/mirror"
	"github.com/skyauthor/newsroom/internal/models"
	"github.com/skyauthor/newsroom/internal/search"
	"github.com/skyauthor/newsroom/internal/service"
	"github.com/skyauthor/newsroom/internal/storage"
)

// app holds every long-lived component built from the configuration
type app struct {
	cfg        *config.Config
	store      *storage.Storage
	index      *search.Index
	pages      cache.PageCache
	notifier   *indexing.Notifier
	mirror     *service.Detached
	builder    *feed.Builder
	categories *models.CategoryTable
	articles   *service.Articles
}

func setupLogger(cfg *config.Config) (*zerolog.Logger, error) {
	output := "stdout"
	if cfg.LogFile != "" {
		output = cfg.LogFile
	}
	if err := logger.Init(logger.Config{
		Level:  cfg.LogLevel,
		Output: output,
		Pretty: cfg.Env == "development" && cfg.LogFile == "",
	}); err != nil {
		return nil, err
	}
	return logger.Get(), nil
}

// newGenerator returns the Gemini client, or nil when no credential is set.
func newGenerator(cfg *config.Config) ai.Generator {
	if !cfg.AIEnabled() {
		return nil
	}
	return ai.NewGeminiClient(cfg.AIApiKey, ai.GeminiOptions{
		BaseURL:   cfg.AIBaseURL,
		Model:     cfg.AIModel,
		Timeout:   cfg.AITimeout,
		MaxTokens: cfg.AIMaxTokens,
	})
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	log := logger.Get()
	a := &app{cfg: cfg}

	categories, err := config.LoadCategories(cfg.CategoriesFile)
	if err != nil {
		return nil, err
	}
	a.categories = categories

	a.store, err = storage.Open(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	a.index, err = search.Open(cfg.SearchIndexPath)
	if err != nil {
		a.Close()
		return nil, err
	}

	if cfg.RedisURL != "" {
		redisCache, err := cache.NewRedisCache(cfg.RedisURL, cfg.RedisPrefix)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to initialize Redis client: %w", err)
		}
		a.pages = redisCache
	} else {
		log.Warn().Msg("REDIS_URL not set, using the in-memory page cache")
		a.pages = cache.NewMemoryCache()
	}

	site := feed.Site{
		URL:         cfg.SiteURL,
		Name:        cfg.SiteName,
		Description: cfg.SiteName + " articles",
	}
	a.builder = feed.NewBuilder(site, categories.Keys())

	a.notifier, err = indexing.NewNotifier(indexing.Options{
		SitemapURL:        site.SitemapURL(),
		PingEndpoints:     cfg.PingEndpoints,
		IndexingEndpoint:  cfg.IndexingEndpoint,
		ServiceAccountKey: []byte(cfg.GoogleServiceAccountKey),
		Timeout:           cfg.NotifyTimeout,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	if !a.notifier.Credentialed() {
		log.Info().Msg("No Google service account configured, only sitemap pings are sent")
	}

	invalidators := []service.Invalidator{a.pages}
	if cfg.R2Enabled() {
		m, err := mirror.New(ctx, mirror.Options{
			Endpoint:  cfg.R2EndpointURL(),
			Region:    cfg.R2Region,
			AccessKey: cfg.R2AccessKey,
			SecretKey: cfg.R2SecretKey,
			Bucket:    cfg.R2Bucket,
		}, a.store, a.builder)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.mirror = service.NewDetached("r2-mirror", m, cfg.NotifyTimeout)
		invalidators = append(invalidators, a.mirror)
		log.Info().Str("bucket", cfg.R2Bucket).Msg("Mirroring feeds to R2")
	}

	gen := newGenerator(cfg)
	if gen == nil {
		log.Info().Msg("AI_API_KEY not set, SEO optimization uses the basic extractors")
	}

	a.articles = service.NewArticles(service.Deps{
		Store:           a.store,
		Index:           a.index,
		Invalidators:    invalidators,
		Notifier:        a.notifier,
		Optimizer:       ai.NewOptimizer(gen),
		Views:           a.pages,
		Categories:      categories,
		Site:            site,
		ViewDedupWindow: cfg.ViewDedupWindow,
		AdCode:          cfg.AdCode,
		AdPositions:     cfg.AdPositions,
	})
	return a, nil
}

// Drain waits for detached work: view counts, search engine notifications and
// mirror uploads.
func (a *app) Drain(ctx context.Context) {
	log := logger.Get()
	if a.articles != nil {
		if err := a.articles.Wait(ctx); err != nil {
			log.Warn().Err(err).Msg("View counts still pending at shutdown")
		}
	}
	if a.notifier != nil {
		if err := a.notifier.Drain(ctx); err != nil {
			log.Warn().Err(err).Msg("Search engine notifications still pending at shutdown")
		}
	}
	if a.mirror != nil {
		if err := a.mirror.Wait(ctx); err != nil {
			log.Warn().Err(err).Msg("Mirror uploads still pending at shutdown")
		}
	}
}

func (a *app) Close() {
	log := logger.Get()
	if a.pages != nil {
		if err := a.pages.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing page cache")
		}
	}
	if a.index != nil {
		if err := a.index.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing search index")
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database")
		}
	}
}
