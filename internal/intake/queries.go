package intake

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/hyperjump/reviewdesk/internal/cache"
	"github.com/hyperjump/reviewdesk/internal/models"
)

// ListReviews returns reviews matching filter, newest first, reading through the cache.
func (p *Pipeline) ListReviews(ctx context.Context, filter models.ReviewFilter) ([]*models.Review, error) {
	if err := filter.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	key := cache.Key(p.namespace, "reviews", map[string]string{
		"company_id": optionalID(filter.CompanyID),
		"sentiment":  string(filter.Sentiment),
		"department": filter.Department,
		"limit":      strconv.Itoa(filter.Limit),
	})

	var reviews []*models.Review
	if p.cacheGet(ctx, key, &reviews) {
		return reviews, nil
	}

	gen := p.cacheGeneration()
	reviews, err := p.store.ListReviews(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	p.cacheSet(ctx, key, reviews, gen)
	return reviews, nil
}

// SentimentStats returns sentiment counts and ratios, optionally for one company.
// Zero reviews yields an all-zero record without ratios.
func (p *Pipeline) SentimentStats(ctx context.Context, companyID *int64) (*models.SentimentStats, error) {
	key := cache.Key(p.namespace, "sentiment_stats", map[string]string{"company_id": optionalID(companyID)})

	var stats models.SentimentStats
	if p.cacheGet(ctx, key, &stats) {
		return &stats, nil
	}

	gen := p.cacheGeneration()
	result, err := p.store.CountSentiments(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	p.cacheSet(ctx, key, result, gen)
	return result, nil
}

// SearchReviews queries the search index. Results reflect whatever is currently indexed and
// may lag the store.
func (p *Pipeline) SearchReviews(ctx context.Context, q models.SearchQuery) ([]*models.SearchHit, error) {
	if err := q.Validate(p.defaultSize, p.maxSize); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if p.index == nil {
		return []*models.SearchHit{}, nil
	}
	ctx, cancel := p.searchCtx(ctx)
	defer cancel()
	hits, err := p.index.Search(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search reviews: %w", err)
	}
	p.logger.Debug("search completed", zap.String("query", q.Query), zap.Int("hits", len(hits)))
	return hits, nil
}

// cacheGet decodes a cached value into dst. Any cache error is a miss.
func (p *Pipeline) cacheGet(ctx context.Context, key string, dst any) bool {
	data, ok, err := p.cache.Get(ctx, key)
	if err != nil {
		p.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		p.logger.Warn("discarding undecodable cache entry", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (p *Pipeline) cacheGeneration() uint64 {
	p.genMu.RLock()
	defer p.genMu.RUnlock()
	return p.generation
}

// cacheSet stores v unless the cache was invalidated since gen was taken. The check and the
// write happen under the read lock, so an invalidation either rejects this write or sweeps it.
func (p *Pipeline) cacheSet(ctx context.Context, key string, v any, gen uint64) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	p.genMu.RLock()
	defer p.genMu.RUnlock()
	if p.generation != gen {
		p.logger.Debug("skipping cache write after invalidation", zap.String("key", key))
		return
	}
	if err := p.cache.Set(ctx, key, data, p.cacheTTL); err != nil {
		p.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func optionalID(id *int64) string {
	if id == nil {
		return ""
	}
	return strconv.FormatInt(*id, 10)
}
