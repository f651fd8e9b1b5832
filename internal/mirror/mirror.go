// Package mirror keeps a static copy of the feeds and sitemaps in an
// S3-compatible bucket (Cloudflare R2).
package mirror

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
	"github.com/skyauthor/newsroom/internal/feed"
	"github.com/skyauthor/newsroom/internal/logger"
	"github.com/skyauthor/newsroom/internal/models"
	"github.com/skyauthor/newsroom/internal/storage"
)

// CacheControl is set on every uploaded object.
const CacheControl = "public, max-age=3600"

// Options configures the R2 client.
type Options struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
}

type putter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// ArticleLister supplies the articles the documents are rendered from.
type ArticleLister interface {
	List(ctx context.Context, opts storage.ListOptions) ([]*models.Article, error)
}

// Mirror renders feed documents and uploads them
type Mirror struct {
	client  putter
	bucket  string
	prefix  string
	lister  ArticleLister
	builder *feed.Builder
	log     zerolog.Logger
}

// New builds an R2 client with static credentials.
func New(ctx context.Context, opts Options, lister ArticleLister, builder *feed.Builder) (*Mirror, error) {
	if opts.Bucket == "" {
		return nil, errors.New("mirror: bucket is required")
	}
	region := opts.Region
	if region == "" {
		region = "auto"
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(opts.Endpoint)
		o.UsePathStyle = true
	})

	return newMirror(client, opts.Bucket, opts.Prefix, lister, builder), nil
}

func newMirror(client putter, bucket, prefix string, lister ArticleLister, builder *feed.Builder) *Mirror {
	return &Mirror{
		client:  client,
		bucket:  bucket,
		prefix:  prefix,
		lister:  lister,
		builder: builder,
		log:     logger.Component("mirror"),
	}
}

// InvalidateArticle re-renders and uploads every document. The changed
// article is not special-cased since each document lists many articles.
func (m *Mirror) InvalidateArticle(ctx context.Context, slug, category string) error {
	return m.Sync(ctx)
}

// Sync uploads fresh copies of all documents concurrently.
func (m *Mirror) Sync(ctx context.Context) error {
	articles, err := m.lister.List(ctx, storage.ListOptions{PublishedOnly: true})
	if err != nil {
		return fmt.Errorf("list articles: %w", err)
	}

	docs, err := m.builder.All(articles)
	if err != nil {
		return fmt.Errorf("render documents: %w", err)
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, doc := range docs {
		wg.Add(1)
		go func(doc feed.Document) {
			defer wg.Done()
			if err := m.upload(ctx, doc); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}(doc)
	}
	wg.Wait()

	if len(errs) > 0 {
		return fmt.Errorf("encountered %d errors while uploading, first error: %w", len(errs), errs[0])
	}

	m.log.Info().
		Int("documents", len(docs)).
		Int("articles", len(articles)).
		Str("bucket", m.bucket).
		Msg("Mirrored feeds")
	return nil
}

func (m *Mirror) upload(ctx context.Context, doc feed.Document) error {
	key := m.prefix + doc.Path
	_, err := m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(m.bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(doc.Body),
		ContentType:  aws.String(doc.ContentType),
		CacheControl: aws.String(CacheControl),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}
