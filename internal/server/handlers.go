package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/reviewdesk/internal/collab"
	"github.com/hyperjump/reviewdesk/internal/intake"
	"github.com/hyperjump/reviewdesk/internal/models"
)

// envelope is the uniform response body.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Count   *int   `json:"count,omitempty"`
}

type analyzeRequest struct {
	ReviewIDs    []int64 `json:"review_ids"`
	AnalysisType string  `json:"analysis_type"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondOK(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListCompanies(w http.ResponseWriter, r *http.Request) {
	companies, err := s.pipeline.ListCompanies(r.Context())
	if err != nil {
		s.respondFailure(w, "list companies", err)
		return
	}
	s.respondList(w, companies, len(companies))
}

func (s *Server) handleCreateCompany(w http.ResponseWriter, r *http.Request) {
	var c models.Company
	if !s.decode(w, r, &c) {
		return
	}
	if err := s.pipeline.CreateCompany(r.Context(), &c); err != nil {
		s.respondFailure(w, "create company", err)
		return
	}
	s.respondOK(w, http.StatusCreated, c)
}

func (s *Server) handleDeleteCompany(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	if err := s.pipeline.DeleteCompany(r.Context(), id); err != nil {
		s.respondFailure(w, "delete company", err)
		return
	}
	s.respondOK(w, http.StatusOK, map[string]any{"id": id, "status": "deleted"})
}

func (s *Server) handleListDepartments(w http.ResponseWriter, r *http.Request) {
	depts, err := s.pipeline.ListDepartments(r.Context())
	if err != nil {
		s.respondFailure(w, "list departments", err)
		return
	}
	s.respondList(w, depts, len(depts))
}

func (s *Server) handleCreateDepartment(w http.ResponseWriter, r *http.Request) {
	var d models.Department
	if !s.decode(w, r, &d) {
		return
	}
	if err := s.pipeline.CreateDepartment(r.Context(), &d); err != nil {
		s.respondFailure(w, "create department", err)
		return
	}
	s.respondOK(w, http.StatusCreated, d)
}

func (s *Server) handleListReviews(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.ReviewFilter{
		Sentiment:  models.Sentiment(q.Get("sentiment")),
		Department: q.Get("department"),
	}
	companyID, err := optionalInt64(q.Get("company_id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid company_id")
		return
	}
	filter.CompanyID = companyID
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = n
	}

	reviews, err := s.pipeline.ListReviews(r.Context(), filter)
	if err != nil {
		s.respondFailure(w, "list reviews", err)
		return
	}
	if reviews == nil {
		reviews = []*models.Review{}
	}
	s.respondList(w, reviews, len(reviews))
}

func (s *Server) handleCreateReview(w http.ResponseWriter, r *http.Request) {
	var in models.ReviewInput
	if !s.decode(w, r, &in) {
		return
	}
	s.logger.Debug("ingest review request", zap.Int64("company_id", in.CompanyID), zap.String("platform", string(in.Platform)))
	review, err := s.pipeline.Ingest(r.Context(), in)
	if err != nil {
		s.respondFailure(w, "ingest review", err)
		return
	}
	s.respondOK(w, http.StatusCreated, review)
}

func (s *Server) handleSearchReviews(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := models.SearchQuery{
		Query:     strings.TrimSpace(q.Get("q")),
		Sentiment: models.Sentiment(q.Get("sentiment")),
	}
	if v := q.Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid size")
			return
		}
		query.Size = n
	}
	hits, err := s.pipeline.SearchReviews(r.Context(), query)
	if err != nil {
		s.respondFailure(w, "search reviews", err)
		return
	}
	s.respondList(w, hits, len(hits))
}

func (s *Server) handleSentimentStats(w http.ResponseWriter, r *http.Request) {
	companyID, err := optionalInt64(r.URL.Query().Get("company_id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid company_id")
		return
	}
	stats, err := s.pipeline.SentimentStats(r.Context(), companyID)
	if err != nil {
		s.respondFailure(w, "sentiment stats", err)
		return
	}
	s.respondOK(w, http.StatusOK, stats)
}

func (s *Server) handleAnalyzeReviews(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if !s.decode(w, r, &req) {
		return
	}
	if len(req.ReviewIDs) == 0 {
		s.respondError(w, http.StatusBadRequest, "review_ids is required")
		return
	}
	if req.AnalysisType == "" {
		req.AnalysisType = collab.TypeComprehensive
	}
	if s.analyzer == nil {
		s.respondError(w, http.StatusServiceUnavailable, "collaborative analysis is not configured")
		return
	}

	result, err := s.analyzer.Analyze(r.Context(), req.ReviewIDs, req.AnalysisType)
	if err != nil {
		s.respondFailure(w, "analyze reviews", err)
		return
	}
	switch result.Status {
	case collab.StatusEmpty:
		s.respondError(w, http.StatusNotFound, "no reviews found for the given ids")
	case collab.StatusUnavailable:
		s.respondJSON(w, http.StatusServiceUnavailable, envelope{
			Success: false,
			Error:   "collaborative analysis unavailable",
			Data:    result,
		})
	default:
		s.respondOK(w, http.StatusOK, result)
	}
}

func (s *Server) handleGetReview(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	review, err := s.pipeline.GetReview(r.Context(), id)
	if err != nil {
		s.respondFailure(w, "get review", err)
		return
	}
	s.respondOK(w, http.StatusOK, review)
}

func (s *Server) handleDeleteReview(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	if err := s.pipeline.DeleteReview(r.Context(), id); err != nil {
		s.respondFailure(w, "delete review", err)
		return
	}
	s.respondOK(w, http.StatusOK, map[string]any{"id": id, "status": "deleted"})
}

func (s *Server) handleReviewLogs(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	logs, err := s.pipeline.ListAgentLogs(r.Context(), id)
	if err != nil {
		s.respondFailure(w, "list agent logs", err)
		return
	}
	if logs == nil {
		logs = []*models.AgentActionLog{}
	}
	s.respondList(w, logs, len(logs))
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (s *Server) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		s.respondError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func optionalInt64(v string) (*int64, error) {
	if v == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// statusFor maps pipeline errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, intake.ErrValidation), errors.Is(err, intake.ErrUnknownReference):
		return http.StatusBadRequest
	case errors.Is(err, intake.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondFailure(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error(op+" failed", zap.Error(err))
	}
	s.respondError(w, status, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondOK(w http.ResponseWriter, status int, data any) {
	s.respondJSON(w, status, envelope{Success: true, Data: data})
}

func (s *Server) respondList(w http.ResponseWriter, data any, count int) {
	s.respondJSON(w, http.StatusOK, envelope{Success: true, Data: data, Count: &count})
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, envelope{Success: false, Error: message})
}
