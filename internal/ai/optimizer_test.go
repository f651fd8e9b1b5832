package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/skyauthor/newsroom/internal/apperr"
	"github.com/skyauthor/newsroom/internal/models"
)

const sampleContent = `<p>Go makes concurrent programming approachable for everyday services.</p>
<p>Channels and goroutines keep concurrent pipelines readable and testable.</p>
<p>Teams adopting concurrent patterns should measure before they optimize anything.</p>`

// geminiServer answers every generateContent call with text as the first candidate.
func geminiServer(t *testing.T, status int, text string, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			calls.Add(1)
		}
		if !strings.HasSuffix(r.URL.Path, ":generateContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "secret" {
			t.Errorf("api key not sent")
		}

		var req geminiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.GenerationConfig.Temperature != 0.3 || req.GenerationConfig.MaxOutputTokens != 600 {
			t.Errorf("generationConfig = %+v", req.GenerationConfig)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			w.Write([]byte(`{"error":{"code":503,"message":"overloaded"}}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []any{map[string]any{
				"content": map[string]any{"parts": []any{map[string]any{"text": text}}},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestOptimizer(srv *httptest.Server) *Optimizer {
	return NewOptimizer(NewGeminiClient("secret", GeminiOptions{BaseURL: srv.URL, Timeout: 2 * time.Second}))
}

func TestOptimizeWithoutCredential(t *testing.T) {
	res, err := NewOptimizer(nil).Optimize(context.Background(), "Concurrent Go", sampleContent, "Tech")
	if err != nil {
		t.Fatalf("Optimize() error: %v", err)
	}
	if res.Source != models.SEOSourceBasic {
		t.Errorf("Source = %q, want basic", res.Source)
	}
	if res.OptimizedTitle != "Concurrent Go" {
		t.Errorf("OptimizedTitle = %q", res.OptimizedTitle)
	}
	if len(res.Keywords) == 0 || len(res.Keywords) > 5 {
		t.Errorf("basic keywords = %v, want 1..5 entries", res.Keywords)
	}
	if res.Keywords[0] != "concurrent" {
		t.Errorf("top keyword = %q, want concurrent", res.Keywords[0])
	}
	if len([]rune(res.MetaDescription)) > 155 {
		t.Errorf("basic description exceeds 155 runes: %d", len([]rune(res.MetaDescription)))
	}
	if len(res.KeyTakeaways) != 3 {
		t.Errorf("KeyTakeaways = %v", res.KeyTakeaways)
	}
}

func TestOptimizeRejectsBlankInputBeforeNetwork(t *testing.T) {
	var calls atomic.Int32
	srv := geminiServer(t, http.StatusOK, `{}`, &calls)
	opt := newTestOptimizer(srv)

	for _, tc := range []struct{ title, body string }{
		{"", "some content"},
		{"Title", "   "},
	} {
		_, err := opt.Optimize(context.Background(), tc.title, tc.body, "Tech")
		if !errors.Is(err, apperr.ErrInvalidInput) {
			t.Errorf("Optimize(%q, %q) error = %v, want ErrInvalidInput", tc.title, tc.body, err)
		}
		if !errors.Is(err, apperr.ErrOptimizationFailed) {
			t.Errorf("error should also match ErrOptimizationFailed: %v", err)
		}
		if err != nil && !strings.Contains(err.Error(), "add title and content first") {
			t.Errorf("error message = %q", err.Error())
		}
	}
	if calls.Load() != 0 {
		t.Errorf("made %d network calls for blank input", calls.Load())
	}
}

func TestOptimizeUsesModelAnswer(t *testing.T) {
	answer := "```json\n" + `{
  "metaDescription": "Learn how {goroutines} make Go services concurrent.",
  "keywords": ["go", "concurrency", "Go", 42, "goroutines", "channels", "services", "pipelines", "testing", "latency", "extra"],
  "keyTakeaways": ["One", "Two", "", "Three", "Four", "Five", "Six"],
  "optimizedTitle": "Concurrent Go, Explained"
}` + "\n```"
	srv := geminiServer(t, http.StatusOK, answer, nil)

	res, err := newTestOptimizer(srv).Optimize(context.Background(), "Concurrent Go", sampleContent, "Tech")
	if err != nil {
		t.Fatalf("Optimize() error: %v", err)
	}
	if res.Source != models.SEOSourceAI {
		t.Fatalf("Source = %q, want ai", res.Source)
	}
	if res.MetaDescription != "Learn how {goroutines} make Go services concurrent." {
		t.Errorf("MetaDescription = %q", res.MetaDescription)
	}
	if len(res.Keywords) != 8 {
		t.Errorf("keywords not capped at 8: %v", res.Keywords)
	}
	for _, k := range res.Keywords {
		if k == "Go" {
			t.Errorf("duplicate keyword kept: %v", res.Keywords)
		}
	}
	if len(res.KeyTakeaways) != 5 || res.KeyTakeaways[2] != "Three" {
		t.Errorf("KeyTakeaways = %v", res.KeyTakeaways)
	}
	if res.OptimizedTitle != "Concurrent Go, Explained" {
		t.Errorf("OptimizedTitle = %q", res.OptimizedTitle)
	}
}

func TestOptimizeClampsAndDefaults(t *testing.T) {
	long := strings.Repeat("a", 300)
	srv := geminiServer(t, http.StatusOK, `Sure! {"metaDescription": "`+long+`", "keywords": "not a list"} trailing`, nil)

	res, err := newTestOptimizer(srv).Optimize(context.Background(), "Concurrent Go", sampleContent, "Tech")
	if err != nil {
		t.Fatalf("Optimize() error: %v", err)
	}
	if len(res.MetaDescription) != 160 {
		t.Errorf("MetaDescription length = %d, want 160", len(res.MetaDescription))
	}
	if res.Keywords == nil || len(res.Keywords) != 0 {
		t.Errorf("Keywords = %#v, want empty list", res.Keywords)
	}
	if res.KeyTakeaways == nil || len(res.KeyTakeaways) != 0 {
		t.Errorf("KeyTakeaways = %#v, want empty list", res.KeyTakeaways)
	}
	if res.OptimizedTitle != "Concurrent Go" {
		t.Errorf("OptimizedTitle = %q, want original title", res.OptimizedTitle)
	}
}

func TestOptimizeFallbackMatchesBasicShape(t *testing.T) {
	basic, err := NewOptimizer(nil).Optimize(context.Background(), "Concurrent Go", sampleContent, "Tech")
	if err != nil {
		t.Fatal(err)
	}

	cases := map[string]*httptest.Server{
		"server error":  geminiServer(t, http.StatusServiceUnavailable, "", nil),
		"not json":      geminiServer(t, http.StatusOK, "I cannot help with that.", nil),
		"broken object": geminiServer(t, http.StatusOK, `{"metaDescription": "x",`, nil),
	}
	for name, srv := range cases {
		t.Run(name, func(t *testing.T) {
			res, err := newTestOptimizer(srv).Optimize(context.Background(), "Concurrent Go", sampleContent, "Tech")
			if err != nil {
				t.Fatalf("Optimize() error: %v", err)
			}
			if res.Source != models.SEOSourceBasic {
				t.Errorf("Source = %q, want basic", res.Source)
			}
			if res.MetaDescription != basic.MetaDescription || res.OptimizedTitle != basic.OptimizedTitle {
				t.Errorf("fallback = %+v, want %+v", res, basic)
			}
			if strings.Join(res.Keywords, ",") != strings.Join(basic.Keywords, ",") {
				t.Errorf("keywords = %v, want %v", res.Keywords, basic.Keywords)
			}
			if len(res.KeyTakeaways) != len(basic.KeyTakeaways) {
				t.Errorf("takeaways = %v, want %v", res.KeyTakeaways, basic.KeyTakeaways)
			}
		})
	}
}

func TestOptimizeUnreachableUpstream(t *testing.T) {
	srv := geminiServer(t, http.StatusOK, "{}", nil)
	opt := newTestOptimizer(srv)
	srv.Close()

	res, err := opt.Optimize(context.Background(), "Concurrent Go", sampleContent, "Tech")
	if err != nil {
		t.Fatalf("Optimize() error: %v", err)
	}
	if res.Source != models.SEOSourceBasic {
		t.Errorf("Source = %q, want basic", res.Source)
	}
}

func TestOptimizeHonorsCancellation(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := newTestOptimizer(srv).Optimize(ctx, "Concurrent Go", sampleContent, "Tech")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Optimize() error = %v, want context.Canceled", err)
	}
}

func TestFirstObject(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{`{"a":1}`, `{"a":1}`, true},
		{`noise {"a":"}"} {"b":2}`, `{"a":"}"}`, true},
		{`{"a":"\"{"}`, `{"a":"\"{"}`, true},
		{`{"a":{"b":{}}} tail`, `{"a":{"b":{}}}`, true},
		{`{"a":`, "", false},
		{`no braces`, "", false},
	}
	for _, tt := range tests {
		got, ok := firstObject(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("firstObject(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestBuildSEOPrompt(t *testing.T) {
	p := BuildSEOPrompt("Line one\nline two", "Tech", "body text")
	if !strings.Contains(p, "Title: Line one line two") {
		t.Errorf("title not flattened:\n%s", p)
	}
	if !strings.Contains(p, "Category: Tech") || !strings.Contains(p, "Content: body text") {
		t.Errorf("prompt missing fields:\n%s", p)
	}
}
