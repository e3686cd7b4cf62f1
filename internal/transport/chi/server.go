package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/searchcore/internal/domain"
	"github.com/kailas-cloud/searchcore/internal/domain/event"
	"github.com/kailas-cloud/searchcore/internal/domain/search/query"
	"github.com/kailas-cloud/searchcore/internal/logger"
	healthuc "github.com/kailas-cloud/searchcore/internal/usecase/health"
)

const maxBodyBytes = 1 << 20

// errorMapping maps a domain sentinel to an HTTP status and error code.
type errorMapping struct {
	sentinel error
	status   int
	code     ErrorResponseCode
	// detail exposes the error text; only for errors caused by the request itself
	detail bool
}

// Order matters: a BackendError wrapping a rebuild conflict reports the conflict.
var errorMappings = []errorMapping{
	{domain.ErrRebuildInProgress, http.StatusConflict, ErrorResponseCodeRebuildInProgress, false},
	{domain.ErrQuery, http.StatusBadRequest, ErrorResponseCodeInvalidQuery, true},
	{domain.ErrMapping, http.StatusBadRequest, ErrorResponseCodeMappingFailed, true},
	{domain.ErrConfig, http.StatusBadRequest, ErrorResponseCodeInvalidConfig, true},
	{domain.ErrNotFound, http.StatusNotFound, ErrorResponseCodeNotFound, false},
	{domain.ErrBackendUnavailable, http.StatusServiceUnavailable, ErrorResponseCodeBackendUnavailable, false},
}

// Server serves the search HTTP API.
type Server struct {
	events  EventSink
	objects ObjectService
	search  SearchService
	rebuild RebuildService
	indexes IndexAdmin
	health  HealthChecker
	logger  *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(
	events EventSink,
	objects ObjectService,
	search SearchService,
	rebuild RebuildService,
	indexes IndexAdmin,
	health HealthChecker,
	logger *zap.Logger,
) *Server {
	return &Server{
		events:  events,
		objects: objects,
		search:  search,
		rebuild: rebuild,
		indexes: indexes,
		health:  health,
		logger:  logger,
	}
}

// Routes mounts the API on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/healthz", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/events", s.PostEvent)

		r.Put("/objects/{type}", s.PutObject)
		r.Get("/objects/{type}/{pk}", s.GetObject)
		r.Delete("/objects/{type}/{pk}", s.DeleteObject)

		r.Post("/search/{type}", s.SearchQuery)
		r.Get("/search/{type}", s.SearchText)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/rebuild", s.RebuildAll)
			r.Post("/rebuild/{type}", s.RebuildType)
			r.Get("/status", s.Status)
			r.Delete("/indexes/{type}", s.DropIndex)
		})
	})
}

// PostEvent handles POST /v1/events.
func (s *Server) PostEvent(w http.ResponseWriter, r *http.Request) {
	var ev event.Event
	if !decodeBody(w, r, &ev) {
		return
	}
	if err := s.events.OnObjectChanged(r.Context(), ev); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// PutObject handles PUT /v1/objects/{type}.
func (s *Server) PutObject(w http.ResponseWriter, r *http.Request) {
	var obj map[string]any
	if !decodeBody(w, r, &obj) {
		return
	}
	pk, created, err := s.objects.Put(r.Context(), chi.URLParam(r, "type"), obj)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, PutObjectResponse{PrimaryKey: pk, Created: created})
}

// GetObject handles GET /v1/objects/{type}/{pk}.
func (s *Server) GetObject(w http.ResponseWriter, r *http.Request) {
	obj, err := s.objects.Get(r.Context(), chi.URLParam(r, "type"), chi.URLParam(r, "pk"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, obj)
}

// DeleteObject handles DELETE /v1/objects/{type}/{pk}.
func (s *Server) DeleteObject(w http.ResponseWriter, r *http.Request) {
	if err := s.objects.Delete(r.Context(), chi.URLParam(r, "type"), chi.URLParam(r, "pk")); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SearchQuery handles POST /v1/search/{type} with a JSON query tree.
func (s *Server) SearchQuery(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	var q query.Node = query.MatchAll{}
	if len(req.Query) > 0 && string(req.Query) != "null" {
		n, err := query.Decode(req.Query)
		if err != nil {
			s.handleDomainError(w, r, err)
			return
		}
		q = n
	}
	page, err := s.search.Search(r.Context(), chi.URLParam(r, "type"), q)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// SearchText handles GET /v1/search/{type}?q=&offset=&limit=.
func (s *Server) SearchText(w http.ResponseWriter, r *http.Request) {
	var params SearchParams
	qv := r.URL.Query()
	for _, p := range []struct {
		name string
		dest any
	}{
		{"q", &params.Q},
		{"offset", &params.Offset},
		{"limit", &params.Limit},
	} {
		if err := runtime.BindQueryParameter("form", true, false, p.name, qv, p.dest); err != nil {
			writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest,
				fmt.Sprintf("Invalid format for parameter %s: %s", p.name, err))
			return
		}
	}

	page, err := s.search.SearchText(r.Context(), chi.URLParam(r, "type"),
		deref(params.Q), deref(params.Offset), deref(params.Limit))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// RebuildAll handles POST /v1/admin/rebuild. Reports are returned even when some types fail.
func (s *Server) RebuildAll(w http.ResponseWriter, r *http.Request) {
	reports, err := s.rebuild.RebuildAll(r.Context())
	if err != nil {
		logger.FromContextOr(r.Context(), s.logger).Warn("rebuild failed", zap.Error(err))
		status, _, _ := classify(err)
		writeJSON(w, status, RebuildResponse{Reports: reports})
		return
	}
	writeJSON(w, http.StatusOK, RebuildResponse{Reports: reports})
}

// RebuildType handles POST /v1/admin/rebuild/{type}.
func (s *Server) RebuildType(w http.ResponseWriter, r *http.Request) {
	rep, err := s.rebuild.Rebuild(r.Context(), chi.URLParam(r, "type"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// Status handles GET /v1/admin/status.
func (s *Server) Status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{Indexes: s.indexes.States()})
}

// DropIndex handles DELETE /v1/admin/indexes/{type}.
func (s *Server) DropIndex(w http.ResponseWriter, r *http.Request) {
	if err := s.indexes.Drop(r.Context(), chi.URLParam(r, "type")); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HealthCheck handles GET /healthz.
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

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		msg := "Invalid request body: " + err.Error()
		if errors.Is(err, io.EOF) {
			msg = "Request body is required"
		}
		writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, msg)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorResponseCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// classify returns the status, code and client message for err. Unknown errors are
// internal and their text is not exposed.
func classify(err error) (int, ErrorResponseCode, string) {
	for _, m := range errorMappings {
		if !errors.Is(err, m.sentinel) {
			continue
		}
		msg := m.sentinel.Error()
		if m.detail {
			msg = err.Error()
		}
		return m.status, m.code, msg
	}
	return http.StatusInternalServerError, ErrorResponseCodeInternalError, "internal error"
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContextOr(r.Context(), s.logger)
	status, code, msg := classify(err)
	if status == http.StatusInternalServerError {
		log.Error("internal error", zap.Error(err))
	} else {
		log.Warn("domain error", zap.Error(err))
	}
	writeError(w, status, code, msg)
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
