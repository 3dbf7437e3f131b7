// Package chi exposes the query-orchestration engine over HTTP.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hydrolens/hydrolens/internal/domain"
	"github.com/hydrolens/hydrolens/internal/logger"
	healthuc "github.com/hydrolens/hydrolens/internal/usecase/health"
)

// Error response codes returned to clients.
const (
	codeBadRequest       = "bad_request"
	codeValidationFailed = "validation_failed"
	codeExpertOnly       = "expert_only"
	codeRecordNotFound   = "record_not_found"
	codeOverloaded       = "overloaded"
	codeInternalError    = "internal_error"
)

// orchestrator runs query and explain sessions (ISP).
type orchestrator interface {
	Ask(ctx context.Context, q domain.Query) (domain.Answer, error)
	Explain(ctx context.Context, recordID string, role domain.Role) (domain.Answer, error)
}

// statistics serves registry-wide priority counts (ISP).
type statistics interface {
	Statistics(ctx context.Context) (map[domain.PriorityLevel]int, error)
}

// healthService aggregates component health (ISP).
type healthService interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server routes HTTP requests to the orchestration engine. Handlers log
// through the request-scoped logger installed by the wide-event middleware.
type Server struct {
	sessions      orchestrator
	stats         statistics
	health        healthService
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(sessions orchestrator, stats statistics, health healthService) *Server {
	s := &Server{
		sessions: sessions,
		stats:    stats,
		health:   health,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrEmptyQuery, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrInvalidRole, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrExpertOnly, http.StatusForbidden, codeExpertOnly),
		sentinelHandler(domain.ErrRecordNotFound, http.StatusNotFound, codeRecordNotFound),
		sentinelHandler(domain.ErrOverloaded, http.StatusServiceUnavailable, codeOverloaded),
	}
	return s
}

// Routes mounts all endpoints on the router.
func (s *Server) Routes(r chi.Router) {
	r.Post("/v1/query", s.Query)
	r.Post("/v1/explain/{recordID}", s.Explain)
	r.Get("/v1/priorities/statistics", s.PriorityStatistics)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

type filtersRequest struct {
	RecordID     string `json:"record_id,omitempty"`
	Region       string `json:"region,omitempty"`
	ResourceType string `json:"resource_type,omitempty"`
	WaterType    string `json:"water_type,omitempty"`
	ConditionMin int    `json:"condition_min,omitempty"`
	ConditionMax int    `json:"condition_max,omitempty"`
	YearFrom     int    `json:"year_from,omitempty"`
	YearTo       int    `json:"year_to,omitempty"`
}

type queryRequest struct {
	Text     string          `json:"text"`
	Role     string          `json:"role"`
	Language string          `json:"language,omitempty"`
	Filters  *filtersRequest `json:"filters,omitempty"`
}

type answerResponse struct {
	Answer        string          `json:"answer"`
	Sources       []domain.Source `json:"sources"`
	Confidence    float64         `json:"confidence"`
	ToolCallsUsed int             `json:"tool_calls_used"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Query handles POST /v1/query.
func (s *Server) Query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	role, err := domain.ParseRole(req.Role)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return
	}

	q := domain.Query{
		Text:     req.Text,
		Role:     role,
		Language: req.Language,
		Filters:  filtersFromRequest(req.Filters),
	}

	ans, err := s.sessions.Ask(r.Context(), q)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, answerToResponse(ans))
}

type explainRequest struct {
	Role string `json:"role"`
}

// Explain handles POST /v1/explain/{recordID}. The caller role comes from
// the request body and defaults to guest, so the expert-only check fails
// closed when it is omitted.
func (s *Server) Explain(w http.ResponseWriter, r *http.Request) {
	recordID := chi.URLParam(r, "recordID")
	if recordID == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "record id is required")
		return
	}

	var req explainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Role == "" {
		req.Role = string(domain.RoleGuest)
	}
	role, err := domain.ParseRole(req.Role)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return
	}

	ans, err := s.sessions.Explain(r.Context(), recordID, role)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, answerToResponse(ans))
}

type statisticsResponse struct {
	Counts map[string]int `json:"counts"`
	Total  int            `json:"total"`
}

// PriorityStatistics handles GET /v1/priorities/statistics. Priority data is
// expert-only: the caller role comes from the role query parameter and
// defaults to guest, failing closed when it is omitted.
func (s *Server) PriorityStatistics(w http.ResponseWriter, r *http.Request) {
	roleParam := r.URL.Query().Get("role")
	if roleParam == "" {
		roleParam = string(domain.RoleGuest)
	}
	role, err := domain.ParseRole(roleParam)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return
	}
	if !role.CanViewSensitive() {
		s.handleDomainError(w, r, fmt.Errorf("priority statistics as %s: %w", role, domain.ErrExpertOnly))
		return
	}

	counts, err := s.stats.Statistics(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	resp := statisticsResponse{Counts: make(map[string]int, len(counts))}
	for level, n := range counts {
		resp.Counts[string(level)] = n
		resp.Total += n
	}
	writeJSON(w, http.StatusOK, resp)
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func filtersFromRequest(f *filtersRequest) domain.Filters {
	if f == nil {
		return domain.Filters{}
	}
	return domain.Filters{
		RecordID:     f.RecordID,
		Region:       f.Region,
		ResourceType: f.ResourceType,
		WaterType:    f.WaterType,
		ConditionMin: f.ConditionMin,
		ConditionMax: f.ConditionMax,
		YearFrom:     f.YearFrom,
		YearTo:       f.YearTo,
	}
}

func answerToResponse(ans domain.Answer) answerResponse {
	sources := ans.Sources
	if sources == nil {
		sources = []domain.Source{}
	}
	return answerResponse{
		Answer:        ans.Text,
		Sources:       sources,
		Confidence:    ans.Confidence,
		ToolCallsUsed: ans.ToolCalls,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrEmptyQuery,
		domain.ErrInvalidRole,
		domain.ErrExpertOnly,
		domain.ErrRecordNotFound,
		domain.ErrOverloaded,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
