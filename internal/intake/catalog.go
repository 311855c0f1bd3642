package intake

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/reviewdesk/internal/models"
	"github.com/hyperjump/reviewdesk/internal/storage"
)

// CreateCompany registers a company. Name and app id are required; app id must be unique.
func (p *Pipeline) CreateCompany(ctx context.Context, c *models.Company) error {
	c.Name = strings.TrimSpace(c.Name)
	c.AppID = strings.TrimSpace(c.AppID)
	if c.Name == "" || c.AppID == "" {
		return fmt.Errorf("%w: name and app_id are required", ErrValidation)
	}
	if err := p.store.CreateCompany(ctx, c); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return fmt.Errorf("%w: app_id %q already exists", ErrValidation, c.AppID)
		}
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	p.invalidate(ctx)
	p.logger.Info("company created", zap.Int64("company_id", c.ID), zap.String("app_id", c.AppID))
	return nil
}

// ListCompanies returns all companies.
func (p *Pipeline) ListCompanies(ctx context.Context) ([]*models.Company, error) {
	companies, err := p.store.ListCompanies(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if companies == nil {
		companies = []*models.Company{}
	}
	return companies, nil
}

// DeleteCompany removes a company and, by cascade, its reviews. Their search documents are
// removed afterwards on a best-effort basis.
func (p *Pipeline) DeleteCompany(ctx context.Context, id int64) error {
	reviewIDs, err := p.store.ReviewIDsByCompany(ctx, id)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if err := p.store.DeleteCompany(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: company %d", ErrNotFound, id)
		}
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	for _, rid := range reviewIDs {
		p.unproject(ctx, rid)
	}
	p.invalidate(ctx)
	p.logger.Info("company deleted", zap.Int64("company_id", id), zap.Int("reviews", len(reviewIDs)))
	return nil
}

// CreateDepartment adds a department to the routing catalog. Name is required and unique.
func (p *Pipeline) CreateDepartment(ctx context.Context, d *models.Department) error {
	d.Name = strings.TrimSpace(d.Name)
	if d.Name == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if d.Keywords == nil {
		d.Keywords = []string{}
	}
	if err := p.store.CreateDepartment(ctx, d); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return fmt.Errorf("%w: department %q already exists", ErrValidation, d.Name)
		}
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	p.invalidate(ctx)
	p.logger.Info("department created", zap.String("name", d.Name))
	return nil
}

// ListDepartments returns the routing catalog in catalog order.
func (p *Pipeline) ListDepartments(ctx context.Context) ([]*models.Department, error) {
	departments, err := p.store.ListDepartments(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if departments == nil {
		departments = []*models.Department{}
	}
	return departments, nil
}

// GetReview returns one review.
func (p *Pipeline) GetReview(ctx context.Context, id int64) (*models.Review, error) {
	r, err := p.store.GetReview(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: review %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return r, nil
}

// DeleteReview removes a review from the store, then from the index and cache.
func (p *Pipeline) DeleteReview(ctx context.Context, id int64) error {
	if err := p.store.DeleteReview(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: review %d", ErrNotFound, id)
		}
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	p.unproject(ctx, id)
	p.invalidate(ctx)
	return nil
}

// ListAgentLogs returns the analysis steps recorded for a review.
func (p *Pipeline) ListAgentLogs(ctx context.Context, reviewID int64) ([]*models.AgentActionLog, error) {
	if _, err := p.GetReview(ctx, reviewID); err != nil {
		return nil, err
	}
	logs, err := p.store.ListAgentLogs(ctx, reviewID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return logs, nil
}

// Reindex re-projects every stored review into the search index. Because documents are keyed
// by review id, running it repeatedly leaves one document per review.
func (p *Pipeline) Reindex(ctx context.Context) (int, error) {
	if p.index == nil {
		return 0, nil
	}
	reviews, err := p.store.ListReviews(ctx, models.ReviewFilter{})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	for _, r := range reviews {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if err := p.index.Upsert(ctx, r.ID, models.NewReviewDocument(r)); err != nil {
			return 0, fmt.Errorf("index review %d: %w", r.ID, err)
		}
	}
	p.logger.Info("search index rebuilt", zap.Int("reviews", len(reviews)))
	return len(reviews), nil
}
