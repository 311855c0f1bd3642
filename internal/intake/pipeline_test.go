package intake

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hyperjump/reviewdesk/internal/cache"
	"github.com/hyperjump/reviewdesk/internal/llm"
	"github.com/hyperjump/reviewdesk/internal/models"
	"github.com/hyperjump/reviewdesk/internal/search"
	"github.com/hyperjump/reviewdesk/internal/storage"
)

type fixture struct {
	pipeline *Pipeline
	store    *storage.SQLStore
	index    *search.BleveIndex
	cache    *cache.MemoryCache
	company  *models.Company
}

func newFixture(t *testing.T, client llm.Client, opts ...Option) *fixture {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewSQLiteStore(filepath.Join(dir, "reviews.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	idx, err := search.NewBleveIndex(filepath.Join(dir, "index"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	mc := cache.NewMemoryCache(100)

	all := append([]Option{WithSearchIndex(idx), WithCache(mc, DefaultNamespace, time.Hour)}, opts...)
	p := New(store, client, all...)

	ctx := context.Background()
	company := &models.Company{Name: "국민은행", AppID: "com.kbstar.kbbank", Category: "시중은행"}
	if err := p.CreateCompany(ctx, company); err != nil {
		t.Fatal(err)
	}
	if err := p.CreateDepartment(ctx, &models.Department{Name: "고객서비스팀", Description: "고객 문의", Keywords: []string{"문의"}}); err != nil {
		t.Fatal(err)
	}
	if err := p.CreateDepartment(ctx, &models.Department{Name: "보안팀", Description: "보안 및 인증", Keywords: []string{"로그인", "보안"}}); err != nil {
		t.Fatal(err)
	}
	return &fixture{pipeline: p, store: store, index: idx, cache: mc, company: company}
}

// loginFailureClient answers the sentiment prompt and the routing prompt differently.
func loginFailureClient() *llm.ScriptedClient {
	return llm.NewScriptedClient(
		"감정: negative\n점수: -0.8\n신뢰도: 0.9",
		"보안팀",
	)
}

func intPtr(v int) *int { return &v }

func TestIngest_LoginFailureRoutedToSecurity(t *testing.T) {
	client := loginFailureClient()
	f := newFixture(t, client)
	ctx := context.Background()

	r, err := f.pipeline.Ingest(ctx, models.ReviewInput{
		CompanyID: f.company.ID,
		Content:   "로그인이 안돼요",
		Rating:    intPtr(1),
		Platform:  models.PlatformGooglePlay,
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if !r.Processed || r.ID == 0 {
		t.Errorf("expected processed review with id, got %+v", r)
	}
	if r.Sentiment != models.SentimentNegative || r.SentimentScore == nil || *r.SentimentScore >= 0 {
		t.Errorf("expected negative sentiment, got %s %v", r.Sentiment, r.SentimentScore)
	}
	if r.DepartmentAssigned != "보안팀" {
		t.Errorf("department = %q, want 보안팀", r.DepartmentAssigned)
	}
	if client.Calls() != 2 {
		t.Errorf("expected 2 inference calls, got %d", client.Calls())
	}

	stored, err := f.pipeline.GetReview(ctx, r.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !stored.Processed || stored.DepartmentAssigned != "보안팀" {
		t.Errorf("stored review: %+v", stored)
	}

	logs, err := f.pipeline.ListAgentLogs(ctx, r.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 2 || logs[0].Action != ActionSentiment || logs[1].Action != ActionRouting {
		t.Errorf("agent logs: %+v", logs)
	}

	hits, err := f.pipeline.SearchReviews(ctx, models.SearchQuery{Query: "안돼요"})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].Document.DepartmentAssigned != "보안팀" {
		t.Errorf("search projection: %+v", hits)
	}
}

func TestIngest_InferenceUnavailable(t *testing.T) {
	f := newFixture(t, llm.Unavailable{})
	r, err := f.pipeline.Ingest(context.Background(), models.ReviewInput{
		CompanyID: f.company.ID,
		Content:   "앱이 느려요",
		Platform:  models.PlatformAppStore,
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if !r.Processed {
		t.Error("review should be processed")
	}
	if r.Sentiment != models.SentimentNeutral || r.SentimentScore == nil || *r.SentimentScore != 0 {
		t.Errorf("expected neutral default, got %s %v", r.Sentiment, r.SentimentScore)
	}
	if r.DepartmentAssigned != "" {
		t.Errorf("department should be unset, got %q", r.DepartmentAssigned)
	}
	logs, _ := f.pipeline.ListAgentLogs(context.Background(), r.ID)
	if len(logs) != 0 {
		t.Errorf("no inference steps should be logged, got %d", len(logs))
	}
}

func TestIngest_InferenceErrorDegrades(t *testing.T) {
	f := newFixture(t, &llm.ScriptedClient{Err: errors.New("upstream 500")})
	r, err := f.pipeline.Ingest(context.Background(), models.ReviewInput{
		CompanyID: f.company.ID,
		Content:   "송금이 안돼요",
		Platform:  models.PlatformGooglePlay,
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if !r.Processed || r.Sentiment != models.SentimentNeutral || r.DepartmentAssigned != "" {
		t.Errorf("expected degraded defaults, got %+v", r)
	}
}

func TestIngest_UnknownCompany(t *testing.T) {
	client := loginFailureClient()
	f := newFixture(t, client)
	ctx := context.Background()

	_, err := f.pipeline.Ingest(ctx, models.ReviewInput{CompanyID: 9999, Content: "x", Platform: models.PlatformGooglePlay})
	if !errors.Is(err, ErrUnknownReference) || !errors.Is(err, ErrUnknownCompany) {
		t.Fatalf("expected ErrUnknownCompany, got %v", err)
	}
	if client.Calls() != 0 {
		t.Error("inference should not run for an unknown company")
	}
	reviews, _ := f.store.ListReviews(ctx, models.ReviewFilter{})
	if len(reviews) != 0 {
		t.Errorf("no review should be committed, got %d", len(reviews))
	}
}

func TestIngest_Validation(t *testing.T) {
	f := newFixture(t, llm.Unavailable{})
	tests := []struct {
		name string
		in   models.ReviewInput
		want error
	}{
		{"empty content", models.ReviewInput{CompanyID: f.company.ID, Content: "   ", Platform: models.PlatformGooglePlay}, ErrValidation},
		{"bad platform", models.ReviewInput{CompanyID: f.company.ID, Content: "x", Platform: "windows_store"}, ErrInvalidPlatform},
		{"missing platform", models.ReviewInput{CompanyID: f.company.ID, Content: "x"}, ErrValidation},
		{"rating too high", models.ReviewInput{CompanyID: f.company.ID, Content: "x", Platform: models.PlatformAppStore, Rating: intPtr(6)}, ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.pipeline.Ingest(context.Background(), tt.in); !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestIngest_PersistenceError(t *testing.T) {
	f := newFixture(t, llm.Unavailable{})
	_ = f.store.Close()
	_, err := f.pipeline.Ingest(context.Background(), models.ReviewInput{CompanyID: f.company.ID, Content: "x", Platform: models.PlatformGooglePlay})
	if !errors.Is(err, ErrPersistence) {
		t.Errorf("expected ErrPersistence, got %v", err)
	}
}

type failingIndex struct{ search.Index }

func (failingIndex) Upsert(context.Context, int64, *models.ReviewDocument) error {
	return errors.New("index offline")
}

func TestIngest_ProjectionFailureIsAbsorbed(t *testing.T) {
	f := newFixture(t, llm.Unavailable{}, WithSearchIndex(failingIndex{}))
	r, err := f.pipeline.Ingest(context.Background(), models.ReviewInput{CompanyID: f.company.ID, Content: "x", Platform: models.PlatformGooglePlay})
	if err != nil {
		t.Fatalf("projection failure must not surface: %v", err)
	}
	if _, err := f.pipeline.GetReview(context.Background(), r.ID); err != nil {
		t.Errorf("review should be durable: %v", err)
	}
}

func TestIngest_InvalidatesCachedListings(t *testing.T) {
	f := newFixture(t, llm.Unavailable{})
	ctx := context.Background()
	filter := models.ReviewFilter{CompanyID: &f.company.ID}

	before, err := f.pipeline.ListReviews(ctx, filter)
	if err != nil {
		t.Fatal(err)
	}
	if len(before) != 0 {
		t.Fatalf("expected empty listing, got %d", len(before))
	}
	stats, _ := f.pipeline.SentimentStats(ctx, nil)
	if stats.Total != 0 {
		t.Fatalf("expected zero stats, got %+v", stats)
	}
	if f.cache.Len() != 2 {
		t.Fatalf("expected 2 cached entries, got %d", f.cache.Len())
	}

	if _, err := f.pipeline.Ingest(ctx, models.ReviewInput{CompanyID: f.company.ID, Content: "좋아요", Platform: models.PlatformGooglePlay}); err != nil {
		t.Fatal(err)
	}

	after, err := f.pipeline.ListReviews(ctx, filter)
	if err != nil {
		t.Fatal(err)
	}
	if len(after) != 1 {
		t.Errorf("listing is stale after ingest: got %d reviews", len(after))
	}
	stats, _ = f.pipeline.SentimentStats(ctx, nil)
	if stats.Total != 1 || stats.Neutral != 1 {
		t.Errorf("stats are stale after ingest: %+v", stats)
	}
}

func TestListReviews_ServedFromCache(t *testing.T) {
	f := newFixture(t, llm.Unavailable{})
	ctx := context.Background()
	if _, err := f.pipeline.Ingest(ctx, models.ReviewInput{CompanyID: f.company.ID, Content: "a", Platform: models.PlatformGooglePlay}); err != nil {
		t.Fatal(err)
	}
	first, _ := f.pipeline.ListReviews(ctx, models.ReviewFilter{})

	// A write that bypasses the pipeline is invisible until the cache entry expires or is swept.
	tx, _ := f.store.BeginTx(ctx)
	_ = tx.InsertReview(ctx, &models.Review{CompanyID: f.company.ID, Content: "b", Platform: models.PlatformAppStore})
	_ = tx.Commit()

	second, _ := f.pipeline.ListReviews(ctx, models.ReviewFilter{})
	if len(first) != 1 || len(second) != 1 {
		t.Errorf("expected cached listing of 1, got %d then %d", len(first), len(second))
	}
	if _, err := f.pipeline.ListReviews(ctx, models.ReviewFilter{Sentiment: "angry"}); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation for bad sentiment, got %v", err)
	}
}

func TestSentimentStats_Empty(t *testing.T) {
	f := newFixture(t, llm.Unavailable{})
	stats, err := f.pipeline.SentimentStats(context.Background(), &f.company.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Total != 0 || stats.Positive != 0 || stats.Negative != 0 || stats.Neutral != 0 || stats.Ratios != nil {
		t.Errorf("expected zero stats, got %+v", stats)
	}
}

func TestSearchReviews_Validation(t *testing.T) {
	f := newFixture(t, llm.Unavailable{})
	if _, err := f.pipeline.SearchReviews(context.Background(), models.SearchQuery{}); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

// slowClient delays every inference call so that ingest transactions overlap.
type slowClient struct {
	llm.Client
	delay time.Duration
}

func (c slowClient) Complete(ctx context.Context, messages []llm.Message) (string, error) {
	time.Sleep(c.delay)
	return c.Client.Complete(ctx, messages)
}

func TestIngest_ConcurrentOnSQLite(t *testing.T) {
	inner := &llm.ScriptedClient{Respond: func(messages []llm.Message) (string, error) {
		if strings.Contains(messages[0].Content, "부서") {
			return "보안팀", nil
		}
		return "감정: negative\n점수: -0.6\n신뢰도: 0.8", nil
	}}
	f := newFixture(t, slowClient{Client: inner, delay: 50 * time.Millisecond})
	ctx := context.Background()

	const workers = 6
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.pipeline.Ingest(ctx, models.ReviewInput{
				CompanyID: f.company.ID,
				Content:   fmt.Sprintf("로그인이 안돼요 %d", i),
				Platform:  models.PlatformAppStore,
			})
		}()
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Errorf("ingest %d: %v", i, err)
		}
	}

	stats, err := f.pipeline.SentimentStats(ctx, &f.company.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Total != workers || stats.Negative != workers {
		t.Errorf("expected %d negative reviews, got %+v", workers, stats)
	}
	reviews, err := f.pipeline.ListReviews(ctx, models.ReviewFilter{Department: "보안팀"})
	if err != nil {
		t.Fatal(err)
	}
	if len(reviews) != workers {
		t.Errorf("expected %d routed reviews, got %d", workers, len(reviews))
	}
	for _, r := range reviews {
		if !r.Processed {
			t.Errorf("review %d not processed", r.ID)
		}
	}
}

// racingStore runs afterCount once, after a stats query has read the store.
type racingStore struct {
	storage.Store
	afterCount func()
}

func (s *racingStore) CountSentiments(ctx context.Context, companyID *int64) (*models.SentimentStats, error) {
	stats, err := s.Store.CountSentiments(ctx, companyID)
	if hook := s.afterCount; hook != nil {
		s.afterCount = nil
		hook()
	}
	return stats, err
}

func TestSentimentStats_ReadOverlappingIngestIsNotCached(t *testing.T) {
	f := newFixture(t, llm.Unavailable{})
	ctx := context.Background()
	rs := &racingStore{Store: f.store}
	p := New(rs, llm.Unavailable{}, WithCache(f.cache, DefaultNamespace, time.Hour))
	rs.afterCount = func() {
		if _, err := p.Ingest(ctx, models.ReviewInput{CompanyID: f.company.ID, Content: "좋아요", Platform: models.PlatformGooglePlay}); err != nil {
			t.Errorf("Ingest: %v", err)
		}
	}

	stale, err := p.SentimentStats(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if stale.Total != 0 {
		t.Fatalf("expected the pre-ingest count, got %+v", stale)
	}
	if f.cache.Len() != 0 {
		t.Errorf("result read before the ingest was cached: %d entries", f.cache.Len())
	}

	fresh, err := p.SentimentStats(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if fresh.Total != 1 {
		t.Errorf("stats are stale after ingest: %+v", fresh)
	}
}
