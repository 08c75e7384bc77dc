package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flooanalytics/ingest/pkg/admission"
	"github.com/flooanalytics/ingest/pkg/observability"
	"github.com/flooanalytics/ingest/pkg/owners"
	"github.com/flooanalytics/ingest/pkg/plans"
	"github.com/flooanalytics/ingest/pkg/quota"
	"github.com/flooanalytics/ingest/pkg/sink"
)

var now = time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC)

type testServer struct {
	server *Server
	actor  *quota.Actor
	sink   *sink.MemorySink
}

func newTestServer(t *testing.T, plan plans.Plan) *testServer {
	t.Helper()
	catalog, err := plans.NewMemoryCatalog(plan)
	require.NoError(t, err)

	logger := observability.NewLogger(observability.ErrorLevel, &bytes.Buffer{})
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	clock := func() time.Time { return now }

	actor := quota.NewActor(quota.ActorConfig{
		Store:   quota.NewMemoryStore(),
		Catalog: catalog,
		Logger:  logger,
		Metrics: metrics,
		Now:     clock,
	})
	mem := sink.NewMemorySink()
	router := admission.NewRouter(admission.Config{
		Quota: actor,
		Resolver: owners.NewStaticResolver(map[string]owners.Owner{
			"A": {ID: "u1", PlanName: plan.Name},
			"D": {ID: "u1", PlanName: plan.Name},
		}),
		Sink:    mem,
		Logger:  logger,
		Metrics: metrics,
	})

	srv := NewServer(Config{
		Admitter:    router,
		Quota:       actor,
		Health:      observability.NewHealthChecker("test"),
		Logger:      logger,
		Metrics:     metrics,
		Registry:    registry,
		HomepageURL: "https://flooanalytics.com/",
		CORSOrigins: []string{"*"},
		Now:         clock,
	})
	return &testServer{server: srv, actor: actor, sink: mem}
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	ts.server.ServeHTTP(rec, req)
	return rec
}

func collectURL(path, sid, events string) string {
	q := url.Values{}
	if sid != "" {
		q.Set("sid", sid)
	}
	if events != "" {
		q.Set("events", events)
	}
	return path + "?" + q.Encode()
}

func smallPlan() plans.Plan {
	return plans.Plan{Name: "free", MaxPageViewsPerMonth: 3, MaxSites: 1, MaxTeamMembers: 1}
}

func TestCollect_Admitted(t *testing.T) {
	ts := newTestServer(t, smallPlan())

	req := httptest.NewRequest(http.MethodPost, collectURL("/", "A", `[["page_view",{"path":"/"}],["signup"]]`), nil)
	req.Header.Set("User-Agent", "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) Mobile/15E148 Safari/604.1")
	req.Header.Set(admission.HeaderCountry, "NL")
	rec := ts.do(req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	records := ts.sink.Records()
	require.Len(t, records, 2)
	assert.Equal(t, "page_view", records[0].EventType)
	assert.Equal(t, "signup", records[1].EventType)
	assert.Equal(t, "NL", records[0].Payload["country_code"])
	assert.Equal(t, now, records[0].Timestamp)
}

func TestCollect_Routes(t *testing.T) {
	ts := newTestServer(t, smallPlan())
	events := `[["page_view",{}]]`

	for _, target := range []string{
		collectURL("/collect", "A", events),
		collectURL("/anything/else", "A", events),
	} {
		rec := ts.do(httptest.NewRequest(http.MethodPost, target, nil))
		assert.Equal(t, http.StatusOK, rec.Code, target)
	}

	rec := ts.do(httptest.NewRequest(http.MethodGet, collectURL("/collect", "A", events), nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, ts.sink.Records(), 3)
}

func TestCollect_AnyNonGetMethodOnRoot(t *testing.T) {
	ts := newTestServer(t, smallPlan())
	events := `[["page_view",{}]]`

	for _, method := range []string{http.MethodPut, http.MethodPatch, http.MethodDelete} {
		for _, path := range []string{"/", "/collect"} {
			rec := ts.do(httptest.NewRequest(method, collectURL(path, "A", events), nil))
			assert.Equal(t, http.StatusOK, rec.Code, method+" "+path)
			assert.Equal(t, "OK", rec.Body.String(), method+" "+path)
		}
	}
	assert.Len(t, ts.sink.Records(), 6)
}

func TestWriteError_FallsBackToServerLogger(t *testing.T) {
	var buf bytes.Buffer
	srv := NewServer(Config{Logger: observability.NewLogger(observability.DebugLevel, &buf)})

	rec := httptest.NewRecorder()
	srv.writeError(rec, httptest.NewRequest(http.MethodPost, "/collect", nil), errors.New("boom"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, buf.String(), "Request failed")
	assert.Contains(t, buf.String(), "boom")
}

func TestCollect_DoubleEncodedEvents(t *testing.T) {
	ts := newTestServer(t, smallPlan())

	// the beacon client encodes the events value before building the query
	once := url.QueryEscape(`[["page_view",{"path":"/pricing"}]]`)
	rec := ts.do(httptest.NewRequest(http.MethodPost, "/?sid=A&events="+url.QueryEscape(once), nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	records := ts.sink.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "/pricing", records[0].Payload["path"])
}

func TestCollect_BodyEvents(t *testing.T) {
	ts := newTestServer(t, smallPlan())

	req := httptest.NewRequest(http.MethodPost, "/collect?sid=A", strings.NewReader(`[["page_view",{}]]`))
	req.Header.Set("Content-Type", "text/plain;charset=UTF-8")
	rec := ts.do(req)
	assert.Equal(t, http.StatusOK, rec.Code)

	form := url.Values{"sid": {"A"}, "events": {`[["site_created"]]`}}
	req = httptest.NewRequest(http.MethodPost, "/collect", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = ts.do(req)
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Len(t, ts.sink.Records(), 2)

	req = httptest.NewRequest(http.MethodPost, "/collect?sid=A", strings.NewReader(`<xml/>`))
	req.Header.Set("Content-Type", "application/xml")
	assert.Equal(t, http.StatusBadRequest, ts.do(req).Code)
}

func TestCollect_EmptyBatch(t *testing.T) {
	ts := newTestServer(t, smallPlan())

	for _, target := range []string{"/collect?sid=A", collectURL("/collect", "", "[]")} {
		rec := ts.do(httptest.NewRequest(http.MethodPost, target, nil))
		assert.Equal(t, http.StatusOK, rec.Code, target)
		assert.Equal(t, "ok", rec.Body.String(), target)
	}
	assert.Empty(t, ts.sink.Batches())
}

func TestCollect_BadRequests(t *testing.T) {
	ts := newTestServer(t, smallPlan())

	tests := []struct {
		name   string
		target string
	}{
		{"missing sid", collectURL("/collect", "", `[["page_view",{}]]`)},
		{"not json", collectURL("/collect", "A", `[[page_view`)},
		{"not an array", collectURL("/collect", "A", `[{"page_view":1}]`)},
		{"empty name", collectURL("/collect", "A", `[["",{}]]`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(httptest.NewRequest(http.MethodPost, tt.target, nil))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
	assert.Empty(t, ts.sink.Batches())
}

func TestCollect_UnknownSite(t *testing.T) {
	ts := newTestServer(t, smallPlan())

	rec := ts.do(httptest.NewRequest(http.MethodPost, collectURL("/collect", "nope", `[["page_view",{}]]`), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCollect_DeniedMidBatch(t *testing.T) {
	ts := newTestServer(t, plans.Plan{Name: "free", MaxPageViewsPerMonth: 1, MaxSites: 1, MaxTeamMembers: 1})

	rec := ts.do(httptest.NewRequest(http.MethodPost,
		collectURL("/", "A", `[["signup"],["page_view",{}],["page_view",{}],["click"]]`), nil))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "Monthly page view limit reached", rec.Body.String())

	records := ts.sink.Records()
	require.Len(t, records, 2, "events before the denial are forwarded")
	assert.Equal(t, "signup", records[0].EventType)
	assert.Equal(t, "page_view", records[1].EventType)
}

func TestCollect_SharedOwnerQuota(t *testing.T) {
	ts := newTestServer(t, plans.Plan{Name: "free", MaxPageViewsPerMonth: 2, MaxSites: 1, MaxTeamMembers: 1})

	for _, sid := range []string{"A", "D"} {
		rec := ts.do(httptest.NewRequest(http.MethodPost, collectURL("/", sid, `[["page_view",{}]]`), nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := ts.do(httptest.NewRequest(http.MethodPost, collectURL("/", "D", `[["page_view",{}]]`), nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestCollect_SinkFailure(t *testing.T) {
	ts := newTestServer(t, smallPlan())
	ts.sink.FailWith(errors.New("warehouse down"))

	rec := ts.do(httptest.NewRequest(http.MethodPost, collectURL("/", "A", `[["page_view",{}]]`), nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), "warehouse")
}

func TestRootAndAssets(t *testing.T) {
	ts := newTestServer(t, smallPlan())

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusMovedPermanently, rec.Code)
	assert.Equal(t, "https://flooanalytics.com/", rec.Header().Get("Location"))

	for _, p := range []string{"/favicon.ico", "/apple-touch-icon-precomposed.png", "/img/logo.JPG"} {
		rec := ts.do(httptest.NewRequest(http.MethodGet, p, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, p)
		assert.Empty(t, rec.Body.String(), p)
	}
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t, smallPlan())

	req := httptest.NewRequest(http.MethodOptions, "/collect", nil)
	req.Header.Set("Origin", "https://example.org")
	rec := ts.do(req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://example.org", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t, smallPlan())

	assert.Equal(t, http.StatusOK, ts.do(httptest.NewRequest(http.MethodGet, "/healthz", nil)).Code)
	assert.Equal(t, http.StatusOK, ts.do(httptest.NewRequest(http.MethodGet, "/readyz", nil)).Code)

	ts.do(httptest.NewRequest(http.MethodPost, collectURL("/", "A", `[["page_view",{}]]`), nil))
	rec := ts.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ingest_http_requests_total")
	assert.Contains(t, rec.Body.String(), "ingest_admission_events_total")
}

func TestRouteName(t *testing.T) {
	tests := map[string]string{
		"/":            "/",
		"/collect":     "/collect",
		"/quota/u1":    "/quota/{owner_id}",
		"/favicon.ico": "asset",
		"/x/y":         "other",
	}
	for path, want := range tests {
		assert.Equal(t, want, routeName(httptest.NewRequest(http.MethodGet, path, nil)), path)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&quota.DeniedError{Dimension: quota.DimensionSite}, http.StatusTooManyRequests},
		{fmt.Errorf("wrapped: %w", &quota.DeniedError{}), http.StatusTooManyRequests},
		{admission.ErrMalformedBatch, http.StatusBadRequest},
		{fmt.Errorf("%w: x", errBadRequest), http.StatusBadRequest},
		{owners.ErrSiteNotFound, http.StatusNotFound},
		{fmt.Errorf("%w: no plan", quota.ErrConfiguration), http.StatusUnprocessableEntity},
		{quota.ErrUnavailable, http.StatusServiceUnavailable},
		{context.DeadlineExceeded, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func decodeUsage(t *testing.T, rec *httptest.ResponseRecorder) quota.UsageSnapshot {
	t.Helper()
	var usage quota.UsageSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &usage))
	return usage
}
