package models

import "time"

// ReviewDocument is the denormalized projection of a committed review held by the search index.
type ReviewDocument struct {
	CompanyID          int64      `json:"company_id"`
	Content            string     `json:"content"`
	Rating             *int       `json:"rating"`
	ReviewDate         *time.Time `json:"review_date"`
	Platform           Platform   `json:"platform"`
	Sentiment          Sentiment  `json:"sentiment,omitempty"`
	SentimentScore     *float64   `json:"sentiment_score"`
	DepartmentAssigned string     `json:"department_assigned,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

// NewReviewDocument builds the search projection of r.
func NewReviewDocument(r *Review) *ReviewDocument {
	return &ReviewDocument{
		CompanyID:          r.CompanyID,
		Content:            r.Content,
		Rating:             r.Rating,
		ReviewDate:         r.ReviewDate,
		Platform:           r.Platform,
		Sentiment:          r.Sentiment,
		SentimentScore:     r.SentimentScore,
		DepartmentAssigned: r.DepartmentAssigned,
		CreatedAt:          r.CreatedAt,
	}
}

// SearchHit is a single search result. ID is the review id as a string.
type SearchHit struct {
	ID         string          `json:"id"`
	Score      float64         `json:"score"`
	Document   *ReviewDocument `json:"document"`
	Highlights []string        `json:"highlights,omitempty"`
}

// SentimentStats aggregates review sentiment counts. Ratios is nil when Total is zero.
type SentimentStats struct {
	Total    int              `json:"total"`
	Positive int              `json:"positive"`
	Negative int              `json:"negative"`
	Neutral  int              `json:"neutral"`
	Ratios   *SentimentRatios `json:"ratios,omitempty"`
}

// SentimentRatios are the per-label shares of Total.
type SentimentRatios struct {
	Positive float64 `json:"positive"`
	Negative float64 `json:"negative"`
	Neutral  float64 `json:"neutral"`
}

// ComputeRatios fills Ratios from the counts; leaves it nil when there are no reviews.
func (s *SentimentStats) ComputeRatios() {
	if s.Total == 0 {
		s.Ratios = nil
		return
	}
	total := float64(s.Total)
	s.Ratios = &SentimentRatios{
		Positive: float64(s.Positive) / total,
		Negative: float64(s.Negative) / total,
		Neutral:  float64(s.Neutral) / total,
	}
}
