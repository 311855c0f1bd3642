package search

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/lang/cjk"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/hyperjump/reviewdesk/internal/models"
)

const (
	docType     = "review"
	sourceField = "source"
	// phraseBoost weights reviews where the query terms appear adjacent.
	phraseBoost = 2.0
)

// indexedReview is what Bleve sees. Source holds the full projection as JSON; it is stored but
// not indexed and is decoded back into the hit document.
type indexedReview struct {
	Content            string  `json:"content"`
	CompanyID          float64 `json:"company_id"`
	Platform           string  `json:"platform"`
	Sentiment          string  `json:"sentiment"`
	DepartmentAssigned string  `json:"department_assigned"`
	Source             string  `json:"source"`
}

// BleveType lets Bleve pick the review mapping.
func (indexedReview) BleveType() string { return docType }

// BleveIndex implements Index using Bleve.
type BleveIndex struct {
	index bleve.Index
}

// NewBleveIndex creates or opens a Bleve index at path. An empty path creates an in-memory index.
// If you change the index mapping in code, remove the index directory to force a full re-index.
func NewBleveIndex(path string) (*BleveIndex, error) {
	im := newIndexMapping()

	if path == "" {
		index, err := bleve.NewMemOnly(im)
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory Bleve index: %w", err)
		}
		return &BleveIndex{index: index}, nil
	}

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}
	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

func newIndexMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	docMapping.Dynamic = false

	// Hangul words carry attached particles ("로그인이"), so content is indexed as CJK bigrams
	// and "로그인" still matches.
	contentField := bleve.NewTextFieldMapping()
	contentField.Analyzer = cjk.AnalyzerName
	contentField.Store = true
	contentField.IncludeTermVectors = true
	docMapping.AddFieldMappingsAt("content", contentField)

	for _, name := range []string{"platform", "sentiment", "department_assigned"} {
		f := bleve.NewTextFieldMapping()
		f.Analyzer = keyword.Name
		f.Store = false
		docMapping.AddFieldMappingsAt(name, f)
	}

	companyField := bleve.NewNumericFieldMapping()
	companyField.Store = false
	docMapping.AddFieldMappingsAt("company_id", companyField)

	sourceMapping := bleve.NewTextFieldMapping()
	sourceMapping.Index = false
	sourceMapping.Store = true
	sourceMapping.IncludeInAll = false
	sourceMapping.IncludeTermVectors = false
	docMapping.AddFieldMappingsAt(sourceField, sourceMapping)

	im.AddDocumentMapping(docType, docMapping)
	im.DefaultType = docType
	im.DefaultMapping = docMapping
	return im
}

// Upsert indexes doc under the review id, replacing any previous document with that id.
func (b *BleveIndex) Upsert(ctx context.Context, reviewID int64, doc *models.ReviewDocument) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	source, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal review document: %w", err)
	}
	return b.index.Index(docID(reviewID), indexedReview{
		Content:            doc.Content,
		CompanyID:          float64(doc.CompanyID),
		Platform:           string(doc.Platform),
		Sentiment:          string(doc.Sentiment),
		DepartmentAssigned: doc.DepartmentAssigned,
		Source:             string(source),
	})
}

// Search runs a match query over review content, boosting phrase matches, optionally restricted
// to one sentiment. q must already be validated.
func (b *BleveIndex) Search(ctx context.Context, q models.SearchQuery) ([]*models.SearchHit, error) {
	match := bleve.NewMatchQuery(q.Query)
	match.SetField("content")
	phrase := bleve.NewMatchPhraseQuery(q.Query)
	phrase.SetField("content")
	phrase.SetBoost(phraseBoost)
	text := bleve.NewDisjunctionQuery(match, phrase)

	var root blevequery.Query = text
	if q.Sentiment != "" {
		term := bleve.NewTermQuery(string(q.Sentiment))
		term.SetField("sentiment")
		root = bleve.NewConjunctionQuery(text, term)
	}

	req := bleve.NewSearchRequestOptions(root, q.Size, 0, false)
	req.Fields = []string{sourceField}
	req.Highlight = bleve.NewHighlightWithStyle("html")
	req.Highlight.AddField("content")

	results, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}

	out := make([]*models.SearchHit, 0, len(results.Hits))
	for _, hit := range results.Hits {
		h := &models.SearchHit{ID: hit.ID, Score: hit.Score}
		if raw, ok := hit.Fields[sourceField].(string); ok {
			var doc models.ReviewDocument
			if err := json.Unmarshal([]byte(raw), &doc); err == nil {
				h.Document = &doc
			}
		}
		if frags := hit.Fragments["content"]; len(frags) > 0 {
			h.Highlights = frags
		}
		out = append(out, h)
	}
	return out, nil
}

// Delete removes a review document. Deleting an id that was never indexed is not an error.
func (b *BleveIndex) Delete(ctx context.Context, reviewID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.index.Delete(docID(reviewID))
}

// DocCount returns the total number of documents in the index.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}

func docID(reviewID int64) string {
	return strconv.FormatInt(reviewID, 10)
}
