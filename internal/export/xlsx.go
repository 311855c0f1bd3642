// Package export writes review listings and sentiment stats to spreadsheet workbooks.
package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/reviewdesk/internal/models"
)

const (
	SheetReviews = "Reviews"
	SheetStats   = "Stats"
)

var reviewHeader = []any{
	"id", "company_id", "platform", "rating", "review_date", "sentiment",
	"sentiment_score", "department_assigned", "processed", "created_at", "content",
}

// Workbook builds a workbook with a Reviews sheet (one row per review, in the given order)
// and a Stats sheet. stats may be nil. The caller must Close the returned file.
func Workbook(reviews []*models.Review, stats *models.SentimentStats) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetReviews); err != nil {
		f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if err := writeReviews(f, reviews); err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.NewSheet(SheetStats); err != nil {
		f.Close()
		return nil, fmt.Errorf("create stats sheet: %w", err)
	}
	if err := writeStats(f, stats); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func writeReviews(f *excelize.File, reviews []*models.Review) error {
	if err := f.SetSheetRow(SheetReviews, "A1", &reviewHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, r := range reviews {
		row := []any{
			r.ID, r.CompanyID, string(r.Platform), optional(r.Rating), formatTime(r.ReviewDate),
			string(r.Sentiment), optional(r.SentimentScore), r.DepartmentAssigned, r.Processed,
			r.CreatedAt.UTC().Format(time.RFC3339), r.Content,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetReviews, cell, &row); err != nil {
			return fmt.Errorf("write review %d: %w", r.ID, err)
		}
	}
	return nil
}

func writeStats(f *excelize.File, stats *models.SentimentStats) error {
	if stats == nil {
		stats = &models.SentimentStats{}
	}
	rows := [][]any{
		{"label", "count", "ratio"},
		{"total", stats.Total, ""},
		{"positive", stats.Positive, ratio(stats, func(r *models.SentimentRatios) float64 { return r.Positive })},
		{"negative", stats.Negative, ratio(stats, func(r *models.SentimentRatios) float64 { return r.Negative })},
		{"neutral", stats.Neutral, ratio(stats, func(r *models.SentimentRatios) float64 { return r.Neutral })},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetStats, cell, &row); err != nil {
			return fmt.Errorf("write stats: %w", err)
		}
	}
	return nil
}

// WriteXLSX writes the workbook to w.
func WriteXLSX(w io.Writer, reviews []*models.Review, stats *models.SentimentStats) error {
	f, err := Workbook(reviews, stats)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// SaveXLSX writes the workbook to path, creating parent directories.
func SaveXLSX(path string, reviews []*models.Review, stats *models.SentimentStats) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := Workbook(reviews, stats)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func optional[T any](v *T) any {
	if v == nil {
		return ""
	}
	return *v
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func ratio(s *models.SentimentStats, pick func(*models.SentimentRatios) float64) any {
	if s.Ratios == nil {
		return ""
	}
	return pick(s.Ratios)
}
