// Package importer ingests batches of reviews (JSON lines or XLSX sheets) through the intake pipeline.
package importer

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/reviewdesk/internal/models"
	"github.com/hyperjump/reviewdesk/pkg/utils"
)

const (
	defaultWorkers = 4
	maxLineBytes   = 1 << 20
	// DoneSuffix is appended to inbox files once they have been imported.
	DoneSuffix = ".done"
)

// Ingester is the part of the intake pipeline the importer drives.
type Ingester interface {
	Ingest(ctx context.Context, in models.ReviewInput) (*models.Review, error)
}

// LineResult is the outcome of one input line.
type LineResult struct {
	Line     int    `json:"line"`
	ReviewID int64  `json:"review_id,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Report summarizes one import batch. Lines is ordered by line number.
type Report struct {
	BatchID    string       `json:"batch_id"`
	Source     string       `json:"source"`
	Total      int          `json:"total"`
	Imported   int          `json:"imported"`
	Failed     int          `json:"failed"`
	Lines      []LineResult `json:"lines"`
	DurationMS int64        `json:"duration_ms"`
}

// Importer fans review inputs out to a bounded number of concurrent ingests.
type Importer struct {
	ingester Ingester
	workers  int
	logger   *zap.Logger
}

// Option configures an Importer.
type Option func(*Importer)

// WithWorkers bounds concurrent ingests. Values below 1 are ignored.
func WithWorkers(n int) Option {
	return func(im *Importer) {
		if n > 0 {
			im.workers = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(im *Importer) { im.logger = l }
}

// New creates an importer.
func New(ingester Ingester, opts ...Option) *Importer {
	im := &Importer{ingester: ingester, workers: defaultWorkers}
	for _, opt := range opts {
		opt(im)
	}
	im.logger = utils.OrNop(im.logger)
	return im
}

// inputLine accepts review_date as RFC 3339 or a plain date.
type inputLine struct {
	CompanyID  int64           `json:"company_id"`
	Content    string          `json:"content"`
	Rating     *int            `json:"rating"`
	ReviewDate string          `json:"review_date"`
	Platform   models.Platform `json:"platform"`
}

// ParseLine decodes one JSON line into a review input.
func ParseLine(line []byte) (models.ReviewInput, error) {
	var raw inputLine
	if err := json.Unmarshal(line, &raw); err != nil {
		return models.ReviewInput{}, fmt.Errorf("invalid json: %w", err)
	}
	in := models.ReviewInput{
		CompanyID: raw.CompanyID,
		Content:   raw.Content,
		Rating:    raw.Rating,
		Platform:  raw.Platform,
	}
	if raw.ReviewDate != "" {
		t, err := parseDate(raw.ReviewDate)
		if err != nil {
			return models.ReviewInput{}, err
		}
		in.ReviewDate = &t
	}
	return in, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid review_date %q", s)
}

// record is one input line or row, parsed lazily inside its worker.
type record struct {
	line  int
	parse func() (models.ReviewInput, error)
}

// Import reads JSON lines from r and ingests each one. Blank lines are skipped. A bad line is
// recorded in the report and never stops the batch; only a read error or a cancelled ctx
// returns an error.
func (im *Importer) Import(ctx context.Context, source string, r io.Reader) (*Report, error) {
	var records []record
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	n := 0
	for sc.Scan() {
		n++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		data := []byte(text)
		records = append(records, record{line: n, parse: func() (models.ReviewInput, error) { return ParseLine(data) }})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", source, err)
	}
	return im.run(ctx, source, records)
}

// run ingests records with bounded concurrency and reports each one in input order.
func (im *Importer) run(ctx context.Context, source string, records []record) (*Report, error) {
	start := time.Now()
	report := &Report{
		BatchID: uuid.NewString(),
		Source:  source,
		Total:   len(records),
		Lines:   make([]LineResult, len(records)),
	}
	var imported atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(im.workers)
	for i, rec := range records {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			res := LineResult{Line: rec.line}
			in, err := rec.parse()
			if err == nil {
				var rv *models.Review
				rv, err = im.ingester.Ingest(gctx, in)
				if err == nil {
					res.ReviewID = rv.ID
					imported.Add(1)
				}
			}
			if err != nil {
				res.Error = err.Error()
				im.logger.Debug("Import line failed",
					zap.String("batch_id", report.BatchID),
					zap.Int("line", rec.line),
					zap.Error(err))
			}
			report.Lines[i] = res
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	report.Imported = int(imported.Load())
	report.Failed = report.Total - report.Imported
	report.DurationMS = time.Since(start).Milliseconds()

	im.logger.Info("Import finished",
		zap.String("batch_id", report.BatchID),
		zap.String("source", source),
		zap.Int("total", report.Total),
		zap.Int("imported", report.Imported),
		zap.Int("failed", report.Failed))
	return report, nil
}

// ImportFile imports the file at path: an XLSX workbook when it has the .xlsx extension,
// JSON lines otherwise.
func (im *Importer) ImportFile(ctx context.Context, path string) (*Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	if strings.EqualFold(filepath.Ext(path), SheetExtension) {
		return im.ImportSheet(ctx, path, f)
	}
	return im.Import(ctx, path, f)
}

// ProcessInboxFile imports path and renames it with DoneSuffix so it is not picked up again.
// Files already carrying the suffix are ignored.
func (im *Importer) ProcessInboxFile(ctx context.Context, path string) (*Report, error) {
	if strings.HasSuffix(path, DoneSuffix) {
		return nil, nil
	}
	report, err := im.ImportFile(ctx, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	if err := os.Rename(path, path+DoneSuffix); err != nil {
		return report, fmt.Errorf("failed to mark %s done: %w", filepath.Base(path), err)
	}
	return report, nil
}
