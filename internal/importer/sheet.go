package importer

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/reviewdesk/internal/models"
)

// SheetExtension marks files imported by ImportSheet.
const SheetExtension = ".xlsx"

// ImportSheet ingests the rows of the first sheet of an XLSX workbook. Row 1 names the columns
// using the JSON-lines keys; unknown columns are ignored, so workbooks written by the export
// package import as-is. Report line numbers are sheet row numbers.
func (im *Importer) ImportSheet(ctx context.Context, source string, r io.Reader) (*Report, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", source, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook %s has no sheets", source)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}

	var records []record
	if len(rows) > 0 {
		columns := columnIndex(rows[0])
		if _, ok := columns["content"]; !ok {
			return nil, fmt.Errorf("sheet %q has no content column", sheets[0])
		}
		for i, row := range rows[1:] {
			if blankRow(row) {
				continue
			}
			records = append(records, record{line: i + 2, parse: func() (models.ReviewInput, error) {
				return ParseRow(columns, row)
			}})
		}
	}
	return im.run(ctx, source, records)
}

func columnIndex(header []string) map[string]int {
	columns := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(name))
		if _, dup := columns[name]; name != "" && !dup {
			columns[name] = i
		}
	}
	return columns
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// ParseRow builds a review input from one sheet row. columns maps a column name to its index;
// rows may be shorter than the header.
func ParseRow(columns map[string]int, row []string) (models.ReviewInput, error) {
	cell := func(name string) string {
		i, ok := columns[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	in := models.ReviewInput{
		Content:  cell("content"),
		Platform: models.Platform(cell("platform")),
	}
	if v := cell("company_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return models.ReviewInput{}, fmt.Errorf("invalid company_id %q", v)
		}
		in.CompanyID = id
	}
	if v := cell("rating"); v != "" {
		rating, err := strconv.Atoi(v)
		if err != nil {
			return models.ReviewInput{}, fmt.Errorf("invalid rating %q", v)
		}
		in.Rating = &rating
	}
	if v := cell("review_date"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			return models.ReviewInput{}, err
		}
		in.ReviewDate = &t
	}
	return in, nil
}
