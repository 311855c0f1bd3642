package importer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hyperjump/reviewdesk/internal/models"
)

// fakeIngester accepts inputs for company 1 and rejects everything else.
type fakeIngester struct {
	mu       sync.Mutex
	nextID   int64
	inputs   []models.ReviewInput
	inflight atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
}

func (f *fakeIngester) Ingest(ctx context.Context, in models.ReviewInput) (*models.Review, error) {
	cur := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		p := f.peak.Load()
		if cur <= p || f.peak.CompareAndSwap(p, cur) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if in.CompanyID != 1 {
		return nil, errors.New("unknown reference: company")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.inputs = append(f.inputs, in)
	return &models.Review{ID: f.nextID, CompanyID: in.CompanyID, Content: in.Content}, nil
}

const batch = `{"company_id": 1, "content": "앱이 빨라졌어요", "rating": 5, "platform": "google_play"}

{"company_id": 9999, "content": "없는 회사", "platform": "app_store"}
not json
{"company_id": 1, "content": "로그인이 안돼요", "rating": 1, "platform": "app_store", "review_date": "2024-03-01"}
`

func TestImport_ReportsPerLine(t *testing.T) {
	ing := &fakeIngester{}
	im := New(ing, WithWorkers(2))

	report, err := im.Import(context.Background(), "batch.jsonl", strings.NewReader(batch))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if report.BatchID == "" || report.Source != "batch.jsonl" {
		t.Errorf("unexpected header: %+v", report)
	}
	if report.Total != 4 || report.Imported != 2 || report.Failed != 2 {
		t.Fatalf("total=%d imported=%d failed=%d", report.Total, report.Imported, report.Failed)
	}

	wantLines := []int{1, 3, 4, 5}
	for i, lr := range report.Lines {
		if lr.Line != wantLines[i] {
			t.Errorf("Lines[%d].Line = %d, want %d", i, lr.Line, wantLines[i])
		}
	}
	if report.Lines[0].ReviewID == 0 || report.Lines[0].Error != "" {
		t.Errorf("line 1 should succeed: %+v", report.Lines[0])
	}
	if report.Lines[1].Error == "" || report.Lines[2].Error == "" {
		t.Errorf("lines 3 and 4 should fail: %+v", report.Lines[1:3])
	}
	if !strings.Contains(report.Lines[2].Error, "invalid json") {
		t.Errorf("line 4 error = %q", report.Lines[2].Error)
	}

	var dated *models.ReviewInput
	for i := range ing.inputs {
		if ing.inputs[i].ReviewDate != nil {
			dated = &ing.inputs[i]
		}
	}
	if dated == nil || dated.ReviewDate.Format("2006-01-02") != "2024-03-01" {
		t.Errorf("review_date not parsed: %+v", dated)
	}
}

func TestImport_BoundedWorkers(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 12; i++ {
		b.WriteString(`{"company_id": 1, "content": "좋아요", "platform": "google_play"}` + "\n")
	}
	ing := &fakeIngester{delay: 10 * time.Millisecond}
	report, err := New(ing, WithWorkers(3)).Import(context.Background(), "x", strings.NewReader(b.String()))
	if err != nil {
		t.Fatal(err)
	}
	if report.Imported != 12 {
		t.Errorf("imported = %d", report.Imported)
	}
	if peak := ing.peak.Load(); peak > 3 {
		t.Errorf("peak concurrency = %d, want <= 3", peak)
	}
}

func TestImport_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New(&fakeIngester{}).Import(ctx, "x", strings.NewReader(batch)); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		wantErr bool
	}{
		{"minimal", `{"company_id": 1, "content": "x", "platform": "google_play"}`, false},
		{"rfc3339 date", `{"company_id": 1, "content": "x", "platform": "app_store", "review_date": "2024-03-01T10:00:00Z"}`, false},
		{"bad date", `{"company_id": 1, "content": "x", "review_date": "yesterday"}`, true},
		{"not json", `{company_id: 1}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseLine([]byte(tt.line))
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestProcessInboxFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reviews.jsonl")
	if err := os.WriteFile(path, []byte(batch), 0o644); err != nil {
		t.Fatal(err)
	}
	im := New(&fakeIngester{})

	report, err := im.ProcessInboxFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ProcessInboxFile: %v", err)
	}
	if report == nil || report.Imported != 2 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("original file should be renamed")
	}
	if _, err := os.Stat(path + DoneSuffix); err != nil {
		t.Errorf("done file missing: %v", err)
	}

	report, err = im.ProcessInboxFile(context.Background(), path+DoneSuffix)
	if err != nil || report != nil {
		t.Errorf("done files should be ignored, got %+v, %v", report, err)
	}
	report, err = im.ProcessInboxFile(context.Background(), path)
	if err != nil || report != nil {
		t.Errorf("vanished file should be ignored, got %+v, %v", report, err)
	}
}
