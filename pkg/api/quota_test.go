package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quotaRequest(t *testing.T, ownerID string, body QuotaRequest) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/quota/"+ownerID, strings.NewReader(string(data)))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestQuota_IncrementAndRead(t *testing.T) {
	ts := newTestServer(t, smallPlan())

	rec := ts.do(quotaRequest(t, "u1", QuotaRequest{EventType: "page_view", PlanName: "free"}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = ts.do(quotaRequest(t, "u1", QuotaRequest{EventType: "site_created", Action: "increment", PlanName: "free", UserID: "u1"}))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(quotaRequest(t, "u1", QuotaRequest{Action: "read", PlanName: "free"}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	usage := decodeUsage(t, rec)
	assert.Equal(t, int64(1), usage.ConsumedPageViews)
	assert.Equal(t, int64(3), usage.AllowedPageViews)
	assert.Equal(t, int64(1), usage.ConsumedSites)
	assert.Equal(t, int64(1), usage.AllowedSites)
	assert.Equal(t, int64(0), usage.ConsumedTeamMembers)
	assert.Equal(t, "2024-05", usage.Month)
}

func TestQuota_ReadUnknownOwner(t *testing.T) {
	ts := newTestServer(t, smallPlan())

	rec := ts.do(quotaRequest(t, "fresh", QuotaRequest{Action: "read", PlanName: "free"}))
	require.Equal(t, http.StatusOK, rec.Code)
	usage := decodeUsage(t, rec)
	assert.Zero(t, usage.ConsumedPageViews)
	assert.Equal(t, int64(1), usage.AllowedTeamMembers)
}

func TestQuota_Denied(t *testing.T) {
	ts := newTestServer(t, smallPlan())

	req := QuotaRequest{EventType: "team_member_added", PlanName: "free"}
	require.Equal(t, http.StatusOK, ts.do(quotaRequest(t, "u1", req)).Code)

	rec := ts.do(quotaRequest(t, "u1", req))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "Team member limit reached", rec.Body.String())
}

func TestQuota_Errors(t *testing.T) {
	ts := newTestServer(t, smallPlan())

	tests := []struct {
		name string
		req  *http.Request
		want int
	}{
		{"unknown plan", quotaRequest(t, "u1", QuotaRequest{EventType: "page_view", PlanName: "gold"}), http.StatusUnprocessableEntity},
		{"missing plan", quotaRequest(t, "u1", QuotaRequest{EventType: "page_view"}), http.StatusBadRequest},
		{"unknown action", quotaRequest(t, "u1", QuotaRequest{Action: "reset", PlanName: "free"}), http.StatusBadRequest},
		{"custom event without action", quotaRequest(t, "u1", QuotaRequest{EventType: "click", PlanName: "free"}), http.StatusBadRequest},
		{"owner mismatch", quotaRequest(t, "u1", QuotaRequest{EventType: "page_view", PlanName: "free", UserID: "u2"}), http.StatusBadRequest},
		{"unknown field", httptest.NewRequest(http.MethodPost, "/quota/u1", strings.NewReader(`{"plan_name":"free","extra":1}`)), http.StatusBadRequest},
		{"empty body", httptest.NewRequest(http.MethodPost, "/quota/u1", strings.NewReader("")), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ts.do(tt.req).Code)
		})
	}
}

func TestQuota_CustomEventIncrementIsNoop(t *testing.T) {
	ts := newTestServer(t, smallPlan())

	rec := ts.do(quotaRequest(t, "u1", QuotaRequest{EventType: "click", Action: "increment", PlanName: "gold"}))
	assert.Equal(t, http.StatusOK, rec.Code)
}
