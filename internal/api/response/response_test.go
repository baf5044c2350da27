package response_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uvconsensus/uvconsensus/internal/api/middleware"
	"github.com/uvconsensus/uvconsensus/internal/api/models"
	"github.com/uvconsensus/uvconsensus/internal/api/response"
)

// requestWithID returns a request whose context carries the given request ID.
func requestWithID(t *testing.T, path, id string) *http.Request {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
	req.Header.Set("X-Request-Id", id)

	var processed *http.Request
	middleware.RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		processed = r
	})).ServeHTTP(httptest.NewRecorder(), req)

	require.NotNil(t, processed)
	return processed
}

func TestJSON_IncludesRequestID(t *testing.T) {
	req := requestWithID(t, "/v1/providers", "req_abc")
	rec := httptest.NewRecorder()

	response.JSON(rec, req, http.StatusOK, map[string]bool{"open_meteo": true})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req_abc", rec.Header().Get("X-Request-Id"))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"open_meteo":true}`, rec.Body.String())
}

func TestJSON_WithoutRequestID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", http.NoBody)
	rec := httptest.NewRecorder()

	response.JSON(rec, req, http.StatusOK, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Request-Id"))
	assert.Empty(t, rec.Body.String())
}

func TestProblemResponses(t *testing.T) {
	tests := []struct {
		name   string
		write  func(w http.ResponseWriter, r *http.Request)
		status int
		typ    string
	}{
		{
			name: "bad request",
			write: func(w http.ResponseWriter, r *http.Request) {
				response.BadRequest(w, r, "invalid query parameters", []models.FieldError{{Field: "lat", Message: "is required"}})
			},
			status: http.StatusBadRequest,
			typ:    models.ProblemTypeValidation,
		},
		{
			name:   "not found",
			write:  func(w http.ResponseWriter, r *http.Request) { response.NotFound(w, r, "missing") },
			status: http.StatusNotFound,
			typ:    models.ProblemTypeNotFound,
		},
		{
			name: "method not allowed",
			write: func(w http.ResponseWriter, r *http.Request) {
				response.MethodNotAllowed(w, r, "method POST is not supported", http.MethodGet)
			},
			status: http.StatusMethodNotAllowed,
			typ:    models.ProblemTypeMethodNotAllowed,
		},
		{
			name:   "internal error",
			write:  func(w http.ResponseWriter, r *http.Request) { response.InternalError(w, r, "boom") },
			status: http.StatusInternalServerError,
			typ:    models.ProblemTypeInternal,
		},
		{
			name:   "service unavailable",
			write:  func(w http.ResponseWriter, r *http.Request) { response.ServiceUnavailable(w, r, "down") },
			status: http.StatusServiceUnavailable,
			typ:    models.ProblemTypeUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := requestWithID(t, "/v1/uv", "req_problem")
			rec := httptest.NewRecorder()

			tt.write(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
			assert.Equal(t, "req_problem", rec.Header().Get("X-Request-Id"))

			var problem models.Problem
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
			assert.Equal(t, tt.typ, problem.Type)
			assert.Equal(t, "/v1/uv", problem.Instance)
			assert.Equal(t, "req_problem", problem.TraceID)
		})
	}
}
