package chi

import (
	"encoding/json"

	"github.com/kailas-cloud/searchcore/internal/lifecycle"
	"github.com/kailas-cloud/searchcore/internal/usecase/rebuild"
)

// ErrorResponseCode is a machine-readable error code.
type ErrorResponseCode string

// Error codes.
const (
	ErrorResponseCodeBadRequest         ErrorResponseCode = "bad_request"
	ErrorResponseCodeUnauthorized       ErrorResponseCode = "unauthorized"
	ErrorResponseCodeInvalidQuery       ErrorResponseCode = "invalid_query"
	ErrorResponseCodeInvalidConfig      ErrorResponseCode = "invalid_config"
	ErrorResponseCodeMappingFailed      ErrorResponseCode = "mapping_failed"
	ErrorResponseCodeNotFound           ErrorResponseCode = "not_found"
	ErrorResponseCodeRebuildInProgress  ErrorResponseCode = "rebuild_in_progress"
	ErrorResponseCodeBackendUnavailable ErrorResponseCode = "backend_unavailable"
	ErrorResponseCodeInternalError      ErrorResponseCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorResponseCode `json:"code"`
	Message string            `json:"message"`
}

// SearchRequest is the body of POST /v1/search/{type}.
type SearchRequest struct {
	Query json.RawMessage `json:"query"`
}

// SearchParams are the query parameters of GET /v1/search/{type}.
type SearchParams struct {
	Q      *string
	Offset *int
	Limit  *int
}

// PutObjectResponse is returned by PUT /v1/objects/{type}.
type PutObjectResponse struct {
	PrimaryKey string `json:"pk"`
	Created    bool   `json:"created"`
}

// RebuildResponse lists per-type rebuild outcomes.
type RebuildResponse struct {
	Reports []rebuild.Report `json:"reports"`
}

// StatusResponse lists index states.
type StatusResponse struct {
	Indexes []lifecycle.Status `json:"indexes"`
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
