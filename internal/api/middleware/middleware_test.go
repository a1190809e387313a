package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/linkguard/internal/testutil"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		header     string
		want       int
	}{
		{"valid", "secret", "Bearer secret", http.StatusOK},
		{"wrong token", "secret", "Bearer nope", http.StatusUnauthorized},
		{"prefix of token", "secret", "Bearer sec", http.StatusUnauthorized},
		{"missing header", "secret", "", http.StatusUnauthorized},
		{"basic scheme", "secret", "Basic secret", http.StatusUnauthorized},
		{"nothing configured", "", "Bearer ", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := serve(BearerToken(tt.configured)(okHandler), req)
			assert.Equal(t, tt.want, rr.Code)
		})
	}
}

func TestRateLimiterPerClient(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	l := NewRateLimiter(RateLimitConfig{PerSecond: 1, Burst: 2}, testutil.NopLogger())
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.2"))

	now = now.Add(time.Second)
	assert.True(t, l.Allow("10.0.0.1"))
}

func TestRateLimiterPrunesIdleClients(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	l := NewRateLimiter(RateLimitConfig{PerSecond: 1, Burst: 1}, testutil.NopLogger())
	l.now = func() time.Time { return now }

	l.Allow("10.0.0.1")
	now = now.Add(idleLimiterTTL + time.Second)
	l.Allow("10.0.0.2")

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.NotContains(t, l.clients, "10.0.0.1")
	assert.Contains(t, l.clients, "10.0.0.2")
}

func TestRateLimiterDisabled(t *testing.T) {
	l := NewRateLimiter(RateLimitConfig{}, testutil.NopLogger())
	for range 100 {
		require.True(t, l.Allow("10.0.0.1"))
	}
}

func TestLoggingAssignsRequestID(t *testing.T) {
	logger, logs := testutil.CaptureLogger()
	var seen string
	h := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := serve(h, httptest.NewRequest(http.MethodGet, "/oauth/callback?code=secret", nil))

	id := rr.Header().Get(RequestIDHeader)
	_, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, id, seen)

	rec, ok := logs.Find("http request")
	require.True(t, ok)
	assert.Equal(t, "WARN", rec["level"])
	assert.Equal(t, "/oauth/callback", rec["path"])
	assert.Equal(t, id, rec["request_id"])
	assert.NotContains(t, rec, "query")
}

func TestLoggingKeepsValidIncomingID(t *testing.T) {
	logger, _ := testutil.CaptureLogger()
	incoming := uuid.NewString()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, incoming)
	rr := serve(Logging(logger)(okHandler), req)
	assert.Equal(t, incoming, rr.Header().Get(RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "not\nan id")
	rr = serve(Logging(logger)(okHandler), req)
	assert.NotEqual(t, "not\nan id", rr.Header().Get(RequestIDHeader))
}

func TestRecoveryWritesJSON500(t *testing.T) {
	logger, logs := testutil.CaptureLogger()
	h := Logging(logger)(Recovery(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})))

	rr := serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "INTERNAL_ERROR")

	rec, ok := logs.Find("panic recovered")
	require.True(t, ok)
	assert.Equal(t, rr.Header().Get(RequestIDHeader), rec["request_id"])

	access, ok := logs.Find("http request")
	require.True(t, ok)
	assert.Equal(t, "ERROR", access["level"])
}
