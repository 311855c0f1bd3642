// Package intake implements the review intake pipeline and the read surface over reviews.
package intake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/reviewdesk/internal/analysis"
	"github.com/hyperjump/reviewdesk/internal/cache"
	"github.com/hyperjump/reviewdesk/internal/llm"
	"github.com/hyperjump/reviewdesk/internal/models"
	"github.com/hyperjump/reviewdesk/internal/search"
	"github.com/hyperjump/reviewdesk/internal/storage"
	"github.com/hyperjump/reviewdesk/pkg/utils"
)

// Agent and action names written to the agent log.
const (
	AgentSentiment  = "sentiment_analyzer"
	AgentRouter     = "department_router"
	ActionSentiment = "sentiment_analysis"
	ActionRouting   = "department_routing"
)

// DefaultNamespace prefixes every cache key written by the pipeline.
const DefaultNamespace = "review_service"

const (
	defaultSearchSize   = 10
	defaultMaxSearchHit = 100
)

// Pipeline ingests reviews and serves listing, stats and search queries.
type Pipeline struct {
	store      storage.Store
	inference  llm.Client
	classifier *analysis.SentimentClassifier
	router     *analysis.DepartmentRouter
	index      search.Index
	cache      cache.Cache
	logger     *zap.Logger

	namespace     string
	cacheTTL      time.Duration
	searchTimeout time.Duration
	defaultSize   int
	maxSize       int

	// generation counts invalidations. A read that started before an invalidation must not
	// write its result back to the cache.
	genMu      sync.RWMutex
	generation uint64
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithSearchIndex sets the index committed reviews are projected into.
func WithSearchIndex(idx search.Index) Option {
	return func(p *Pipeline) { p.index = idx }
}

// WithCache sets the listing/stats cache, its key namespace and entry TTL.
func WithCache(c cache.Cache, namespace string, ttl time.Duration) Option {
	return func(p *Pipeline) {
		p.cache = c
		if namespace != "" {
			p.namespace = namespace
		}
		p.cacheTTL = ttl
	}
}

// WithSearchLimits sets the default and maximum number of hits and the per-call timeout.
func WithSearchLimits(defaultSize, maxSize int, timeout time.Duration) Option {
	return func(p *Pipeline) {
		if defaultSize > 0 {
			p.defaultSize = defaultSize
		}
		if maxSize > 0 {
			p.maxSize = maxSize
		}
		p.searchTimeout = timeout
	}
}

// New creates a pipeline over store. inference may be nil, which behaves as unavailable.
func New(store storage.Store, inference llm.Client, opts ...Option) *Pipeline {
	if inference == nil {
		inference = llm.Unavailable{}
	}
	p := &Pipeline{
		store:       store,
		inference:   inference,
		cache:       cache.Noop{},
		namespace:   DefaultNamespace,
		cacheTTL:    time.Hour,
		defaultSize: defaultSearchSize,
		maxSize:     defaultMaxSearchHit,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = utils.OrNop(p.logger)
	p.classifier = analysis.NewSentimentClassifier(inference, p.logger)
	p.router = analysis.NewDepartmentRouter(inference, p.logger)
	return p
}

// Ingest validates in, stores the review, enriches it with sentiment and department inside the
// same transaction, commits, then projects it to the search index and sweeps the cache.
// The returned review is always processed. Projection failures are logged, not returned.
func (p *Pipeline) Ingest(ctx context.Context, in models.ReviewInput) (*models.Review, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, fmt.Errorf("%w: content is required", ErrValidation)
	}
	if !in.Platform.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPlatform, in.Platform)
	}
	if in.Rating != nil && (*in.Rating < 1 || *in.Rating > 5) {
		return nil, fmt.Errorf("%w: rating must be between 1 and 5", ErrValidation)
	}

	review, err := p.persist(ctx, in, content)
	if err != nil {
		return nil, err
	}

	p.project(ctx, review)
	p.invalidate(ctx)

	p.logger.Info("review ingested",
		zap.Int64("review_id", review.ID),
		zap.Int64("company_id", review.CompanyID),
		zap.String("sentiment", string(review.Sentiment)),
		zap.String("department", review.DepartmentAssigned),
	)
	return review, nil
}

func (p *Pipeline) persist(ctx context.Context, in models.ReviewInput, content string) (*models.Review, error) {
	tx, err := p.store.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.GetCompany(ctx, in.CompanyID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrUnknownCompany, in.CompanyID)
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	review := &models.Review{
		CompanyID:  in.CompanyID,
		Content:    content,
		Rating:     in.Rating,
		ReviewDate: in.ReviewDate,
		Platform:   in.Platform,
	}
	if err := tx.InsertReview(ctx, review); err != nil {
		if errors.Is(err, storage.ErrForeignKey) {
			return nil, fmt.Errorf("%w: %d", ErrUnknownCompany, in.CompanyID)
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	logs := p.enrich(ctx, tx, review)
	review.Processed = true

	if err := tx.UpdateReviewAnalysis(ctx, review); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	for _, l := range logs {
		l.ReviewID = review.ID
		if err := tx.InsertAgentLog(ctx, l); err != nil {
			p.logger.Warn("failed to record agent action", zap.Int64("review_id", review.ID), zap.String("action", l.Action), zap.Error(err))
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return review, nil
}

// enrich attaches sentiment and department to review. It never fails; when inference is
// unavailable the review gets the neutral default so that processed reviews always carry a
// sentiment.
func (p *Pipeline) enrich(ctx context.Context, tx storage.Tx, review *models.Review) []*models.AgentActionLog {
	if !p.inference.Available() {
		def := analysis.DefaultSentiment()
		review.Sentiment = def.Label
		review.SentimentScore = &def.Score
		return nil
	}

	var logs []*models.AgentActionLog

	start := time.Now()
	sentiment := p.classifier.Classify(ctx, review.Content)
	review.Sentiment = sentiment.Label
	score := sentiment.Score
	review.SentimentScore = &score
	logs = append(logs, agentLog(AgentSentiment, ActionSentiment, sentiment, start))

	catalog, err := tx.ListDepartments(ctx)
	if err != nil {
		p.logger.Warn("failed to load department catalog", zap.Error(err))
		return logs
	}
	if len(catalog) == 0 {
		return logs
	}

	start = time.Now()
	review.DepartmentAssigned = p.router.Route(ctx, review.Content, catalog)
	logs = append(logs, agentLog(AgentRouter, ActionRouting, map[string]string{"department": review.DepartmentAssigned}, start))
	return logs
}

func agentLog(agent, action string, result any, start time.Time) *models.AgentActionLog {
	data, _ := json.Marshal(result)
	return &models.AgentActionLog{
		AgentName:  agent,
		Action:     action,
		Result:     string(data),
		DurationMS: time.Since(start).Milliseconds(),
	}
}

// project writes the committed review to the search index. Failures are logged.
func (p *Pipeline) project(ctx context.Context, review *models.Review) {
	if p.index == nil {
		return
	}
	ctx, cancel := p.searchCtx(ctx)
	defer cancel()
	if err := p.index.Upsert(ctx, review.ID, models.NewReviewDocument(review)); err != nil {
		p.logger.Warn("failed to index review", zap.Int64("review_id", review.ID), zap.Error(err))
	}
}

func (p *Pipeline) unproject(ctx context.Context, reviewID int64) {
	if p.index == nil {
		return
	}
	ctx, cancel := p.searchCtx(ctx)
	defer cancel()
	if err := p.index.Delete(ctx, reviewID); err != nil {
		p.logger.Warn("failed to remove review from index", zap.Int64("review_id", reviewID), zap.Error(err))
	}
}

// invalidate drops every cached listing and aggregate under the pipeline namespace.
func (p *Pipeline) invalidate(ctx context.Context) {
	p.genMu.Lock()
	p.generation++
	p.genMu.Unlock()

	n, err := cache.Invalidate(ctx, p.cache, p.namespace)
	if err != nil {
		p.logger.Warn("failed to invalidate cache", zap.String("namespace", p.namespace), zap.Error(err))
		return
	}
	p.logger.Debug("cache invalidated", zap.String("namespace", p.namespace), zap.Int("keys", n))
}

func (p *Pipeline) searchCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.searchTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, p.searchTimeout)
}
