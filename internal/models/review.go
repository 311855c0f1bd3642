// Package models defines core data structures for reviews, companies, departments and searches.
package models

import "time"

// Platform is the app store a review was collected from.
type Platform string

const (
	PlatformGooglePlay Platform = "google_play"
	PlatformAppStore   Platform = "app_store"
)

// Valid reports whether p is a recognized platform.
func (p Platform) Valid() bool {
	return p == PlatformGooglePlay || p == PlatformAppStore
}

// Sentiment is the classified polarity of a review. The empty value means unset.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// Valid reports whether s is one of positive, negative or neutral.
func (s Sentiment) Valid() bool {
	return s == SentimentPositive || s == SentimentNegative || s == SentimentNeutral
}

// Review is a customer review of a company's app.
type Review struct {
	ID                 int64      `json:"id" db:"id"`
	CompanyID          int64      `json:"company_id" db:"company_id"`
	Content            string     `json:"content" db:"content"`
	Rating             *int       `json:"rating" db:"rating"`
	ReviewDate         *time.Time `json:"review_date" db:"review_date"`
	Platform           Platform   `json:"platform" db:"platform"`
	Sentiment          Sentiment  `json:"sentiment,omitempty" db:"sentiment"`
	SentimentScore     *float64   `json:"sentiment_score" db:"sentiment_score"`
	DepartmentAssigned string     `json:"department_assigned,omitempty" db:"department_assigned"`
	Processed          bool       `json:"processed" db:"processed"`
	CreatedAt          time.Time  `json:"created_at" db:"created_at"`
}

// ReviewInput is the input for ingesting a review.
type ReviewInput struct {
	CompanyID  int64      `json:"company_id"`
	Content    string     `json:"content"`
	Rating     *int       `json:"rating,omitempty"`
	ReviewDate *time.Time `json:"review_date,omitempty"`
	Platform   Platform   `json:"platform"`
}

// Company is a financial company whose app is reviewed.
type Company struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	AppID     string    `json:"app_id" db:"app_id"`
	Category  string    `json:"category,omitempty" db:"category"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Department is an internal team that reviews can be routed to. Keywords are operator-facing
// metadata only.
type Department struct {
	ID          int64     `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description,omitempty" db:"description"`
	Keywords    []string  `json:"keywords" db:"keywords"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// AgentActionLog records one analysis step performed for a review.
type AgentActionLog struct {
	ID         int64     `json:"id" db:"id"`
	ReviewID   int64     `json:"review_id" db:"review_id"`
	AgentName  string    `json:"agent_name" db:"agent_name"`
	Action     string    `json:"action" db:"action"`
	Result     string    `json:"result" db:"result"`
	DurationMS int64     `json:"duration_ms" db:"duration_ms"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
