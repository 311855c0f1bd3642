// Package cli renders reviewdesk results for the command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/hyperjump/reviewdesk/internal/collab"
	"github.com/hyperjump/reviewdesk/internal/importer"
	"github.com/hyperjump/reviewdesk/internal/models"
	"github.com/hyperjump/reviewdesk/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

const (
	separator      = "─────────────────────────────────────────────────────────"
	contentPreview = 200
)

// ParseFormat maps a flag value to an OutputFormat; anything but "json" is text.
func ParseFormat(s string) OutputFormat {
	if strings.EqualFold(strings.TrimSpace(s), string(OutputJSON)) {
		return OutputJSON
	}
	return OutputText
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteReviews writes a review listing.
func WriteReviews(w io.Writer, reviews []*models.Review, format OutputFormat) error {
	if format == OutputJSON {
		if reviews == nil {
			reviews = []*models.Review{}
		}
		return WriteJSON(w, reviews)
	}
	fmt.Fprintf(w, "\n%d reviews\n\n", len(reviews))
	for _, r := range reviews {
		writeReview(w, r)
	}
	return nil
}

// WriteReview writes a single review.
func WriteReview(w io.Writer, r *models.Review, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, r)
	}
	writeReview(w, r)
	return nil
}

func writeReview(w io.Writer, r *models.Review) {
	fmt.Fprintln(w, separator)
	fmt.Fprintf(w, "#%d | company %d | %s | rating %s\n", r.ID, r.CompanyID, r.Platform, rating(r.Rating))
	fmt.Fprintf(w, "Sentiment: %s", orDash(string(r.Sentiment)))
	if r.SentimentScore != nil {
		fmt.Fprintf(w, " (%.2f)", *r.SentimentScore)
	}
	fmt.Fprintf(w, " | Department: %s\n", orDash(r.DepartmentAssigned))
	fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(r.Content, contentPreview))
}

// WriteStats writes sentiment stats.
func WriteStats(w io.Writer, stats *models.SentimentStats, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, stats)
	}
	fmt.Fprintf(w, "Total:    %d\n", stats.Total)
	rows := []struct {
		label string
		count int
		ratio func(*models.SentimentRatios) float64
	}{
		{"Positive", stats.Positive, func(r *models.SentimentRatios) float64 { return r.Positive }},
		{"Negative", stats.Negative, func(r *models.SentimentRatios) float64 { return r.Negative }},
		{"Neutral", stats.Neutral, func(r *models.SentimentRatios) float64 { return r.Neutral }},
	}
	for _, row := range rows {
		fmt.Fprintf(w, "%-9s %d", row.label+":", row.count)
		if stats.Ratios != nil {
			fmt.Fprintf(w, " (%.1f%%)", row.ratio(stats.Ratios)*100)
		}
		fmt.Fprintln(w)
	}
	return nil
}

// WriteSearchHits writes search results.
func WriteSearchHits(w io.Writer, query string, hits []*models.SearchHit, format OutputFormat) error {
	if format == OutputJSON {
		if hits == nil {
			hits = []*models.SearchHit{}
		}
		return WriteJSON(w, map[string]any{"query": query, "total": len(hits), "hits": hits})
	}
	fmt.Fprintf(w, "\nFound %d results for %q\n\n", len(hits), query)
	for i, h := range hits {
		fmt.Fprintln(w, separator)
		fmt.Fprintf(w, "Rank: %d | Score: %.4f | Review: %s\n", i+1, h.Score, h.ID)
		if h.Document == nil {
			fmt.Fprintln(w)
			continue
		}
		fmt.Fprintf(w, "Sentiment: %s | Department: %s\n",
			orDash(string(h.Document.Sentiment)), orDash(h.Document.DepartmentAssigned))
		text := h.Document.Content
		if len(h.Highlights) > 0 {
			text = strings.Join(h.Highlights, " … ")
		}
		fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(text, contentPreview))
	}
	return nil
}

// WriteAnalysis writes a collaborative analysis result.
func WriteAnalysis(w io.Writer, res *collab.Result, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, res)
	}
	fmt.Fprintf(w, "Analysis %s (%s)\n", res.RunID, res.AnalysisType)
	fmt.Fprintf(w, "Status: %s", res.Status)
	if res.Reason != "" {
		fmt.Fprintf(w, " [%s]", res.Reason)
	}
	fmt.Fprintf(w, " | Reviews: %d | Rounds: %d | %dms\n", res.ReviewCount, res.Rounds, res.DurationMS)
	fmt.Fprintf(w, "Participants: %s\n", strings.Join(res.Participants, ", "))
	if len(res.Result) > 0 {
		fmt.Fprintln(w, separator)
		keys := make([]string, 0, len(res.Result))
		for k := range res.Result {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			v, err := json.Marshal(res.Result[k])
			if err != nil {
				v = []byte(fmt.Sprint(res.Result[k]))
			}
			fmt.Fprintf(w, "%s: %s\n", k, v)
		}
	}
	return nil
}

// WriteImportReport writes a bulk import summary. Failed lines are listed in text mode.
func WriteImportReport(w io.Writer, report *importer.Report, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, report)
	}
	fmt.Fprintf(w, "Batch %s: %s\n", report.BatchID, report.Source)
	fmt.Fprintf(w, "Imported %d of %d lines (%d failed) in %dms\n",
		report.Imported, report.Total, report.Failed, report.DurationMS)
	for _, l := range report.Lines {
		if l.Error != "" {
			fmt.Fprintf(w, "  line %d: %s\n", l.Line, l.Error)
		}
	}
	return nil
}

func rating(r *int) string {
	if r == nil {
		return "-"
	}
	return fmt.Sprintf("%d/5", *r)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
