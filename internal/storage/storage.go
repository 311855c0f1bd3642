// Package storage defines the system-of-record interface for reviews and their relations.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/reviewdesk/internal/models"
)

var (
	// ErrNotFound is returned when a point lookup matches no row.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique constraint is violated.
	ErrDuplicate = errors.New("duplicate key")
	// ErrForeignKey is returned when a referenced row does not exist.
	ErrForeignKey = errors.New("foreign key violation")
)

// Store defines review, company and department persistence operations.
type Store interface {
	// BeginTx opens a unit of work. The caller must Commit or Rollback it.
	BeginTx(ctx context.Context) (Tx, error)

	// Company operations
	CreateCompany(ctx context.Context, c *models.Company) error
	GetCompany(ctx context.Context, id int64) (*models.Company, error)
	ListCompanies(ctx context.Context) ([]*models.Company, error)
	DeleteCompany(ctx context.Context, id int64) error

	// Department operations
	CreateDepartment(ctx context.Context, d *models.Department) error
	ListDepartments(ctx context.Context) ([]*models.Department, error)

	// Review operations
	GetReview(ctx context.Context, id int64) (*models.Review, error)
	GetReviewsByIDs(ctx context.Context, ids []int64) ([]*models.Review, error)
	ListReviews(ctx context.Context, filter models.ReviewFilter) ([]*models.Review, error)
	ReviewIDsByCompany(ctx context.Context, companyID int64) ([]int64, error)
	DeleteReview(ctx context.Context, id int64) error

	// Stats
	CountSentiments(ctx context.Context, companyID *int64) (*models.SentimentStats, error)

	ListAgentLogs(ctx context.Context, reviewID int64) ([]*models.AgentActionLog, error)

	Ping(ctx context.Context) error
	Close() error
}

// Tx is a unit of work used by the intake pipeline. Nothing written through it is visible to
// other readers until Commit.
type Tx interface {
	GetCompany(ctx context.Context, id int64) (*models.Company, error)
	ListDepartments(ctx context.Context) ([]*models.Department, error)
	// InsertReview inserts r and sets its ID and CreatedAt.
	InsertReview(ctx context.Context, r *models.Review) error
	// UpdateReviewAnalysis writes sentiment, score, department and processed for r.ID.
	UpdateReviewAnalysis(ctx context.Context, r *models.Review) error
	InsertAgentLog(ctx context.Context, l *models.AgentActionLog) error
	Commit() error
	Rollback() error
}
