package httputil

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flooanalytics/ingest/pkg/contextkeys"
	"github.com/flooanalytics/ingest/pkg/observability"
)

type payload struct {
	Name string `json:"name"`
}

func TestParseJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"name":"x"}`, false},
		{"empty", ``, true},
		{"unknown field", `{"nope":1}`, true},
		{"trailing data", `{"name":"x"}{"name":"y"}`, true},
		{"malformed", `{`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var p payload
			err := ParseJSON(r, &p)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "x", p.Name)
		})
	}
}

func TestParseJSONOrError(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`[`))
	var p payload
	assert.False(t, ParseJSONOrError(w, r, &p))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestParsePathString(t *testing.T) {
	r := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"owner_id": " o1 "})
	v, err := ParsePathString(r, "owner_id")
	require.NoError(t, err)
	assert.Equal(t, "o1", v)

	_, err = ParsePathString(httptest.NewRequest(http.MethodGet, "/", nil), "owner_id")
	assert.Error(t, err)
}

func TestParseQueryString(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/collect?sid=abc", nil)
	assert.Equal(t, "abc", ParseQueryString(r, "sid", ""))
	assert.Equal(t, "dflt", ParseQueryString(r, "events", "dflt"))
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	h := RequestIDMiddleware(observability.NewLogger(observability.ErrorLevel, &bytes.Buffer{}))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = contextkeys.GetRequestID(r.Context())
		}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, w.Header().Get(RequestIDHeader))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(RequestIDHeader, "given")
	h.ServeHTTP(httptest.NewRecorder(), r)
	assert.Equal(t, "given", seen)
}

func TestRecoveryMiddleware(t *testing.T) {
	h := RecoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	ctx := observability.WithLogger(context.Background(), observability.NewLogger(observability.ErrorLevel, &bytes.Buffer{}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestCORSMiddleware(t *testing.T) {
	h := CORSMiddleware([]string{"https://site.example"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	r := httptest.NewRequest(http.MethodOptions, "/collect", nil)
	r.Header.Set("Origin", "https://site.example")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://site.example", w.Header().Get("Access-Control-Allow-Origin"))

	r = httptest.NewRequest(http.MethodGet, "/collect", nil)
	r.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestLoggingMiddleware_CapturesStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := observability.NewLogger(observability.DebugLevel, &buf)
	h := Chain(RequestIDMiddleware(logger), LoggingMiddleware(nil, nil))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/quota/o1", nil))
	assert.Contains(t, buf.String(), `"status":503`)
	assert.Contains(t, buf.String(), "request_id")
}
