package collab

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/reviewdesk/internal/config"
	"github.com/hyperjump/reviewdesk/internal/llm"
	"github.com/hyperjump/reviewdesk/internal/models"
	"github.com/hyperjump/reviewdesk/pkg/utils"
)

// Outcome statuses.
const (
	StatusConcluded   = "concluded"
	StatusTimedOut    = "timed_out"
	StatusUnavailable = "unavailable"
	StatusEmpty       = "empty"
)

// Reasons a conversation stopped.
const (
	ReasonTerminalMarker = "terminal_marker"
	ReasonMaxRounds      = "max_rounds"
	ReasonTimeout        = "timeout"
	ReasonCanceled       = "canceled"
	ReasonDisabled       = "disabled"
	ReasonInference      = "inference_unavailable"
	ReasonNoReviews      = "no_reviews"
)

// ReviewReader loads the reviews an analysis runs over.
type ReviewReader interface {
	GetReviewsByIDs(ctx context.Context, ids []int64) ([]*models.Review, error)
}

// Settings bound a conversation.
type Settings struct {
	Enabled       bool
	MaxRounds     int
	Timeout       time.Duration
	DigestLimit   int
	ExcerptLength int
}

// DefaultSettings returns the settings used when none are configured.
func DefaultSettings() Settings {
	return Settings{
		Enabled:       true,
		MaxRounds:     10,
		Timeout:       300 * time.Second,
		DigestLimit:   20,
		ExcerptLength: 200,
	}
}

// SettingsFromConfig converts the analysis config section.
func SettingsFromConfig(cfg config.AnalysisConfig) Settings {
	s := Settings{
		Enabled:       cfg.EnabledOrDefault(),
		MaxRounds:     cfg.MaxRounds,
		Timeout:       cfg.Timeout,
		DigestLimit:   cfg.DigestLimit,
		ExcerptLength: cfg.ExcerptLength,
	}
	return s.withDefaults()
}

func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.MaxRounds <= 0 {
		s.MaxRounds = d.MaxRounds
	}
	if s.Timeout <= 0 {
		s.Timeout = d.Timeout
	}
	if s.DigestLimit <= 0 {
		s.DigestLimit = d.DigestLimit
	}
	if s.ExcerptLength <= 0 {
		s.ExcerptLength = d.ExcerptLength
	}
	return s
}

// Result is the outcome of one collaborative analysis run.
type Result struct {
	RunID         string         `json:"run_id"`
	Status        string         `json:"status"`
	Reason        string         `json:"reason,omitempty"`
	AnalysisType  string         `json:"analysis_type"`
	RequestedType string         `json:"requested_type,omitempty"`
	Participants  []string       `json:"participants"`
	ReviewCount   int            `json:"review_count"`
	Rounds        int            `json:"rounds"`
	Structured    bool           `json:"structured"`
	Result        map[string]any `json:"result,omitempty"`
	Transcript    []Turn         `json:"transcript,omitempty"`
	StartedAt     time.Time      `json:"started_at"`
	FinishedAt    time.Time      `json:"finished_at"`
	DurationMS    int64          `json:"duration_ms"`
}

// AgentStatus describes the orchestrator's configuration and readiness.
type AgentStatus struct {
	Enabled        bool                `json:"enabled"`
	Available      bool                `json:"available"`
	Provider       string              `json:"provider"`
	Agents         []string            `json:"agents"`
	Groups         map[string][]string `json:"groups"`
	MaxRounds      int                 `json:"max_rounds"`
	TimeoutSeconds float64             `json:"timeout_seconds"`
}

// Orchestrator runs bounded conversations among the analysis roles.
type Orchestrator struct {
	client   llm.Client
	reviews  ReviewReader
	settings Settings
	logger   *zap.Logger
	now      func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = l
	}
}

// WithSettings replaces the default settings. Zero fields keep their defaults.
func WithSettings(s Settings) Option {
	return func(o *Orchestrator) {
		o.settings = s.withDefaults()
	}
}

// New creates an orchestrator. client may be nil, in which case every run is unavailable.
func New(client llm.Client, reviews ReviewReader, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		client:   client,
		reviews:  reviews,
		settings: DefaultSettings(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = utils.OrNop(o.logger)
	return o
}

// Analyze loads reviewIDs and runs AnalyzeReviews over them. Unknown ids are skipped.
func (o *Orchestrator) Analyze(ctx context.Context, reviewIDs []int64, analysisType string) (*Result, error) {
	var reviews []*models.Review
	if len(reviewIDs) > 0 {
		if o.reviews == nil {
			return nil, errors.New("no review reader configured")
		}
		var err error
		reviews, err = o.reviews.GetReviewsByIDs(ctx, reviewIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to load reviews: %w", err)
		}
	}
	return o.AnalyzeReviews(ctx, reviews, analysisType), nil
}

// AnalyzeReviews runs one conversation over reviews. It never returns nil and never blocks
// past the configured timeout.
func (o *Orchestrator) AnalyzeReviews(ctx context.Context, reviews []*models.Review, analysisType string) *Result {
	resolved, participants := ResolveGroup(analysisType)
	res := &Result{
		RunID:        uuid.NewString(),
		AnalysisType: resolved,
		Participants: participants,
		ReviewCount:  len(reviews),
		StartedAt:    o.now(),
	}
	if analysisType != resolved {
		res.RequestedType = analysisType
	}

	switch {
	case len(reviews) == 0:
		res.Status, res.Reason = StatusEmpty, ReasonNoReviews
		res.Result = map[string]any{"analysis": "분석할 리뷰가 없습니다", "messages": []string{}}
		return o.finish(res)
	case !o.settings.Enabled:
		res.Status, res.Reason = StatusUnavailable, ReasonDisabled
		return o.finish(res)
	case o.client == nil || !o.client.Available():
		res.Status, res.Reason = StatusUnavailable, ReasonInference
		return o.finish(res)
	}

	ctx, cancel := context.WithTimeout(ctx, o.settings.Timeout)
	defer cancel()

	m := newMachine()
	brief := Brief(resolved, Digest(reviews, o.settings.DigestLimit, o.settings.ExcerptLength))
	tr := Transcript{}.Append(Turn{Round: 0, Speaker: RoleCoordinator, Content: brief, At: o.now()})
	o.must(m.to(StateBriefed))

	for m.state == StateBriefed || m.state == StateTurn {
		if res.Rounds >= o.settings.MaxRounds {
			res.Reason = ReasonMaxRounds
			o.must(m.to(StateConcluded))
			break
		}
		if err := ctx.Err(); err != nil {
			res.Reason = stopReason(err)
			o.must(m.to(StateTimedOut))
			break
		}

		speaker := NextSpeaker(participants, tr)
		reply, err := o.client.Complete(ctx, roleMessages(speaker, tr))
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				res.Reason = stopReason(ctxErr)
				o.must(m.to(StateTimedOut))
				break
			}
			o.logger.Warn("Analysis role unavailable",
				zap.String("run_id", res.RunID),
				zap.String("speaker", speaker),
				zap.Error(err))
			o.must(m.to(StateFailed))
			break
		}

		res.Rounds++
		o.must(m.to(StateTurn))
		tr = tr.Append(Turn{Round: res.Rounds, Speaker: speaker, Content: reply, At: o.now()})
		if hasTerminalMarker(reply) {
			res.Reason = ReasonTerminalMarker
			o.must(m.to(StateConcluded))
		}
	}

	switch m.state {
	case StateFailed:
		res.Status, res.Reason = StatusUnavailable, ReasonInference
		res.Rounds = 0
		return o.finish(res)
	case StateTimedOut:
		res.Status = StatusTimedOut
	default:
		res.Status = StatusConcluded
	}
	res.Result, res.Structured = ExtractResult(tr)
	res.Transcript = tr.Turns()
	return o.finish(res)
}

// Status reports whether analyses can run and which roles and groups exist.
func (o *Orchestrator) Status() AgentStatus {
	st := AgentStatus{
		Enabled:        o.settings.Enabled,
		Agents:         RoleNames(),
		Groups:         make(map[string][]string),
		MaxRounds:      o.settings.MaxRounds,
		TimeoutSeconds: o.settings.Timeout.Seconds(),
	}
	if o.client != nil {
		st.Available = o.settings.Enabled && o.client.Available()
		st.Provider = o.client.Name()
	}
	for _, g := range GroupNames() {
		_, st.Groups[g] = ResolveGroup(g)
	}
	return st
}

func (o *Orchestrator) finish(res *Result) *Result {
	res.FinishedAt = o.now()
	res.DurationMS = res.FinishedAt.Sub(res.StartedAt).Milliseconds()
	o.logger.Info("Collaborative analysis finished",
		zap.String("run_id", res.RunID),
		zap.String("analysis_type", res.AnalysisType),
		zap.String("status", res.Status),
		zap.String("reason", res.Reason),
		zap.Int("rounds", res.Rounds),
		zap.Bool("structured", res.Structured))
	return res
}

// must logs transitions the loop should never attempt.
func (o *Orchestrator) must(err error) {
	if err != nil {
		o.logger.Error("Conversation state error", zap.Error(err))
	}
}

func stopReason(err error) string {
	if errors.Is(err, context.Canceled) {
		return ReasonCanceled
	}
	return ReasonTimeout
}
