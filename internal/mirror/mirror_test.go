package mirror

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/skyauthor/newsroom/internal/feed"
	"github.com/skyauthor/newsroom/internal/models"
	"github.com/skyauthor/newsroom/internal/storage"
)

type staticLister struct {
	articles []*models.Article
	opts     storage.ListOptions
}

func (l *staticLister) List(ctx context.Context, opts storage.ListOptions) ([]*models.Article, error) {
	l.opts = opts
	return l.articles, nil
}

type fakePutter struct {
	mu   sync.Mutex
	puts map[string]*s3.PutObjectInput
	body map[string]string
	fail string
}

func (f *fakePutter) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	key := aws.ToString(in.Key)
	if key == f.fail {
		return nil, errors.New("boom")
	}
	data, _ := io.ReadAll(in.Body)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts[key] = in
	f.body[key] = string(data)
	return &s3.PutObjectOutput{}, nil
}

func testBuilder() *feed.Builder {
	return feed.NewBuilder(feed.Site{URL: "https://example.com", Name: "Example"}, []string{"tech"})
}

func testArticles() []*models.Article {
	return []*models.Article{{
		Title: "Mirrored", Slug: "mirrored", Category: "Tech",
		IsPublished: true, CreatedAt: time.Now().UTC(),
	}}
}

func TestSyncUploadsEveryDocument(t *testing.T) {
	lister := &staticLister{articles: testArticles()}
	put := &fakePutter{puts: map[string]*s3.PutObjectInput{}, body: map[string]string{}}
	m := newMirror(put, "site", "static/", lister, testBuilder())

	if err := m.InvalidateArticle(context.Background(), "mirrored", "Tech"); err != nil {
		t.Fatalf("InvalidateArticle() error: %v", err)
	}
	if !lister.opts.PublishedOnly {
		t.Error("mirror should only render published articles")
	}

	keys := make([]string, 0, len(put.puts))
	for k := range put.puts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	want := "static/feed.xml,static/news-sitemap.xml,static/robots.txt,static/rss.xml,static/sitemap.xml"
	if got := strings.Join(keys, ","); got != want {
		t.Fatalf("uploaded keys = %s, want %s", got, want)
	}

	rss := put.puts["static/rss.xml"]
	if aws.ToString(rss.Bucket) != "site" {
		t.Errorf("bucket = %q", aws.ToString(rss.Bucket))
	}
	if aws.ToString(rss.CacheControl) != CacheControl {
		t.Errorf("cache control = %q", aws.ToString(rss.CacheControl))
	}
	if aws.ToString(rss.ContentType) != feed.ContentTypeXML {
		t.Errorf("content type = %q", aws.ToString(rss.ContentType))
	}
	if !strings.Contains(put.body["static/rss.xml"], "https://example.com/article/mirrored") {
		t.Error("rss body does not list the article")
	}
}

func TestSyncReportsUploadFailure(t *testing.T) {
	put := &fakePutter{puts: map[string]*s3.PutObjectInput{}, body: map[string]string{}, fail: "sitemap.xml"}
	m := newMirror(put, "site", "", &staticLister{articles: testArticles()}, testBuilder())

	err := m.Sync(context.Background())
	if err == nil || !strings.Contains(err.Error(), "sitemap.xml") {
		t.Fatalf("Sync() error = %v, want the failing key", err)
	}
	if len(put.puts) != 4 {
		t.Errorf("other documents should still upload, got %d", len(put.puts))
	}
}

func TestNewTalksToS3Endpoint(t *testing.T) {
	var (
		mu    sync.Mutex
		paths []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method = %s", r.Method)
		}
		if !strings.HasPrefix(r.Header.Get("Authorization"), "AWS4-HMAC-SHA256") {
			t.Errorf("request is not signed")
		}
		io.Copy(io.Discard, r.Body)
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m, err := New(context.Background(), Options{
		Endpoint:  srv.URL,
		AccessKey: "key",
		SecretKey: "secret",
		Bucket:    "feeds",
	}, &staticLister{articles: testArticles()}, testBuilder())
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Sync(context.Background()); err != nil {
		t.Fatalf("Sync() error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	sort.Strings(paths)
	if len(paths) != 5 || paths[0] != "/feeds/feed.xml" {
		t.Errorf("paths = %v", paths)
	}
}

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), Options{}, &staticLister{}, testBuilder()); err == nil {
		t.Error("expected an error without a bucket")
	}
}
