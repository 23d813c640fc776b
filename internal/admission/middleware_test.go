package admission

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatekeeper/internal/models"
	"gatekeeper/internal/storage"
)

func newTestHandler(t *testing.T, cfg *models.Config) (http.Handler, *int) {
	t.Helper()
	c := newTestController(t, cfg, storage.NewMemoryStorage())

	calls := 0
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		// The handler must still be able to read the buffered body.
		body, _ := io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
		w.Write(body)
	})
	return Middleware(c)(inner), &calls
}

func storyRequest(body string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest("POST", "/api/v1/stories/generate", reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", "t1")
	req.Header.Set(HeaderUserID, "u1")
	return req
}

func TestMiddleware_AdmittedRequestReachesHandler(t *testing.T) {
	handler, calls := newTestHandler(t, newTestConfig())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, storyRequest(`{"prompt":"a story about dragons"}`))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, *calls)
	assert.Equal(t, `{"prompt":"a story about dragons"}`, rec.Body.String(),
		"handler sees the original body")
	assert.Equal(t, "100", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "99", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))
}

func TestMiddleware_MissingTenantHeaderIs400(t *testing.T) {
	handler, calls := newTestHandler(t, newTestConfig())

	req := httptest.NewRequest("POST", "/api/v1/stories/generate", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, *calls)

	var d models.Decision
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
	assert.Equal(t, models.ReasonTenantRequired, d.ReasonCode)
	assert.NotEmpty(t, d.RequestID, "rejections carry an identifier for support lookups")
}

func TestMiddleware_RateLimitedRequestIs429(t *testing.T) {
	cfg := newTestConfig()
	cfg.Limits.Endpoints = []models.EndpointLimit{{
		Method:      "POST",
		Path:        "/api/v1/stories/generate",
		WindowMs:    60_000,
		MaxRequests: 1,
	}}
	handler, calls := newTestHandler(t, cfg)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, storyRequest(""))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, storyRequest(""))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, 1, *calls)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", payload["reason_code"])
	assert.Greater(t, payload["retry_after_ms"], float64(0))
}

func TestMiddleware_ValidationFailureIs400(t *testing.T) {
	cfg := newTestConfig()
	minLen := 10
	cfg.Validation.Rules = []models.RuleConfig{{
		Method: "POST",
		Path:   "/api/v1/stories/generate",
		Body: &models.SchemaConfig{
			Required: []string{"prompt"},
			Properties: map[string]models.ConstraintConfig{
				"prompt": {Type: "string", MinLength: &minLen},
			},
		},
	}}
	handler, calls := newTestHandler(t, cfg)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, storyRequest(`{"prompt":"nope"}`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, *calls)

	var d models.Decision
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
	assert.Equal(t, models.ReasonValidationFailed, d.ReasonCode)
	assert.Equal(t, []string{"prompt must be at least 10 characters"}, d.FieldErrors)
}

func TestMiddleware_OldClientIs426(t *testing.T) {
	cfg := newTestConfig()
	cfg.Admission.MinClientVersion = "2.0.0"
	handler, _ := newTestHandler(t, cfg)

	req := storyRequest("")
	req.Header.Set(HeaderClientVersion, "1.0.0")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUpgradeRequired, rec.Code)
}

func TestMiddleware_MalformedJSONBodyIs400(t *testing.T) {
	handler, calls := newTestHandler(t, newTestConfig())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, storyRequest(`{"prompt": `))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, *calls)
}

func TestMiddleware_QueryValuesReachValidator(t *testing.T) {
	cfg := newTestConfig()
	max := 100.0
	cfg.Validation.Rules = []models.RuleConfig{{
		Method: "GET",
		Path:   "/api/v1/stories",
		Query: &models.SchemaConfig{
			Properties: map[string]models.ConstraintConfig{
				"limit": {Type: "number", Maximum: &max},
			},
		},
	}}
	handler, _ := newTestHandler(t, cfg)

	req := httptest.NewRequest("GET", "/api/v1/stories?limit=500", nil)
	req.Header.Set("X-Tenant-ID", "t1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest("GET", "/api/v1/stories?limit=50", nil)
	req.Header.Set("X-Tenant-ID", "t1")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMiddleware_DigitQueryValueSatisfiesStringRule(t *testing.T) {
	cfg := newTestConfig()
	minLen := 1
	cfg.Validation.Rules = []models.RuleConfig{{
		Method: "GET",
		Path:   "/api/v1/stories",
		Query: &models.SchemaConfig{
			Properties: map[string]models.ConstraintConfig{
				"q": {Type: "string", MinLength: &minLen},
			},
		},
	}}
	handler, calls := newTestHandler(t, cfg)

	req := httptest.NewRequest("GET", "/api/v1/stories?q=42", nil)
	req.Header.Set("X-Tenant-ID", "t1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code, "a search term made of digits is still a string")
	assert.Equal(t, 1, *calls)
}
