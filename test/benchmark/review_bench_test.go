package benchmark

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/hyperjump/reviewdesk/internal/analysis"
	"github.com/hyperjump/reviewdesk/internal/cache"
	"github.com/hyperjump/reviewdesk/internal/collab"
	"github.com/hyperjump/reviewdesk/internal/intake"
	"github.com/hyperjump/reviewdesk/internal/llm"
	"github.com/hyperjump/reviewdesk/internal/models"
	"github.com/hyperjump/reviewdesk/internal/search"
	"github.com/hyperjump/reviewdesk/internal/storage"
)

func newPipeline(b *testing.B) (*intake.Pipeline, int64) {
	b.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(b.TempDir(), "bench.db"))
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { _ = store.Close() })
	idx, err := search.NewBleveIndex("")
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { _ = idx.Close() })

	client := llm.NewScriptedClient("감정: negative\n점수: -0.5\n신뢰도: 0.8")
	p := intake.New(store, client,
		intake.WithSearchIndex(idx),
		intake.WithCache(cache.NewMemoryCache(1000), intake.DefaultNamespace, 0))
	c := &models.Company{Name: "벤치뱅크", AppID: "com.bench.bank"}
	if err := p.CreateCompany(context.Background(), c); err != nil {
		b.Fatal(err)
	}
	return p, c.ID
}

func BenchmarkIngest(b *testing.B) {
	p, companyID := newPipeline(b)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		in := models.ReviewInput{CompanyID: companyID, Content: fmt.Sprintf("앱이 느려요 %d", i)}
		if _, err := p.Ingest(ctx, in); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSearchReviews(b *testing.B) {
	p, companyID := newPipeline(b)
	ctx := context.Background()
	for i := 0; i < 200; i++ {
		in := models.ReviewInput{CompanyID: companyID, Content: fmt.Sprintf("로그인 오류 %d 번째 리뷰", i)}
		if _, err := p.Ingest(ctx, in); err != nil {
			b.Fatal(err)
		}
	}
	q := models.SearchQuery{Query: "로그인"}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = p.SearchReviews(ctx, q)
	}
}

func BenchmarkSentimentStatsCached(b *testing.B) {
	p, _ := newPipeline(b)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = p.SentimentStats(ctx, nil)
	}
}

func BenchmarkParseSentiment(b *testing.B) {
	resp := "분석 결과입니다.\n감정: negative\n점수: -0.75\n신뢰도: 0.92\n"
	for i := 0; i < b.N; i++ {
		_ = analysis.ParseSentiment(resp)
	}
}

func BenchmarkFindJSONObject(b *testing.B) {
	reply := `검토 의견입니다. {"summary": "로그인 오류 {중괄호} 포함", "items": [{"a": 1}, {"b": 2}]} 이상입니다. TERMINATE`
	for i := 0; i < b.N; i++ {
		_, _ = collab.FindJSONObject(reply)
	}
}
