//go:build !integration

package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/netsheet-cli/internal/intake"
	"github.com/sells-group/netsheet-cli/internal/listing"
	"github.com/sells-group/netsheet-cli/internal/model"
	"github.com/sells-group/netsheet-cli/internal/store"
)

func testDeps(st store.Store) serverDeps {
	taxes := decimal.NewFromInt(3650)
	comm := decimal.NewFromInt(3)
	return serverDeps{
		Store: st,
		Listings: staticListings{
			"12 Oak Street, Little Rock 72201": {Address: "12 Oak Street", AnnualTaxes: &taxes, CommissionPercent: &comm},
		},
		Defaults: listing.Defaults{
			AnnualTaxes:       decimal.NewFromInt(2000),
			CommissionPercent: decimal.RequireFromString("0.06"),
		},
	}
}

func serve(t *testing.T, h http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestBuildRouter_Health(t *testing.T) {
	h := buildRouter(testDeps(nil))

	rr := serve(t, h, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.NotContains(t, body, "intake")
}

func TestBuildRouter_HealthDegraded(t *testing.T) {
	d := testDeps(nil)
	d.Health = intake.NewHealthState(2)
	d.Health.RecordFailure(errors.New("inbox unreadable"))
	h := buildRouter(d)

	rr := serve(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	d.Health.RecordFailure(errors.New("inbox unreadable"))
	rr = serve(t, h, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	var body struct {
		Status string                `json:"status"`
		Intake intake.HealthSnapshot `json:"intake"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, 2, body.Intake.ConsecutiveErrors)
	assert.Equal(t, "inbox unreadable", body.Intake.LastError)
}

func TestBuildRouter_NetSheet(t *testing.T) {
	h := buildRouter(testDeps(nil))

	payload, _ := json.Marshal(map[string]any{
		"fields": map[string]any{
			"property_address": "12 Oak Street",
			"property_city":    "Little Rock",
			"property_zip":     "72201",
			"purchase_price":   250000.0,
			"closing_date":     "2025-06-30",
		},
	})
	rr := serve(t, h, http.MethodPost, "/v1/netsheet", payload)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var resp struct {
		Address string `json:"address"`
		Listing struct {
			AnnualTaxes          decimal.Decimal `json:"annual_taxes"`
			CommissionPercent    decimal.Decimal `json:"commission_percent"`
			Found                bool            `json:"found"`
			NeedsTaxVerification bool            `json:"needs_tax_verification"`
		} `json:"listing"`
		NetSheet struct {
			SalesPrice decimal.Decimal `json:"sales_price"`
		} `json:"net_sheet"`
		Lines []json.RawMessage `json:"lines"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))

	assert.Equal(t, "12 Oak Street, Little Rock 72201", resp.Address)
	assert.True(t, resp.Listing.Found)
	assert.False(t, resp.Listing.NeedsTaxVerification)
	assert.True(t, resp.Listing.AnnualTaxes.Equal(decimal.NewFromInt(3650)))
	assert.True(t, resp.Listing.CommissionPercent.Equal(decimal.RequireFromString("0.03")))
	assert.True(t, resp.NetSheet.SalesPrice.Equal(decimal.NewFromInt(250000)))
	assert.NotEmpty(t, resp.Lines)
}

func TestBuildRouter_NetSheetBadRequest(t *testing.T) {
	h := buildRouter(testDeps(nil))

	tests := []struct {
		name string
		body []byte
		want string
	}{
		{"invalid json", []byte(`{not json`), "invalid request body"},
		{"missing fields", []byte(`{"address":"12 Oak Street"}`), "fields is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(t, h, http.MethodPost, "/v1/netsheet", tt.body)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, tt.want, body["error"])
		})
	}
}

func TestBuildRouter_GetRun(t *testing.T) {
	st := new(mockStore)
	run := &model.Run{
		ID:        "run-1",
		Document:  "contract.pdf",
		Status:    model.RunStatusComplete,
		CreatedAt: time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2025, 6, 15, 10, 1, 0, 0, time.UTC),
	}
	st.On("GetRun", mock.Anything, "run-1").Return(run, nil)
	st.On("GetRun", mock.Anything, "missing").Return(nil, store.ErrNotFound)
	st.On("GetRun", mock.Anything, "broken").Return(nil, errors.New("db down"))
	h := buildRouter(testDeps(st))

	rr := serve(t, h, http.MethodGet, "/v1/runs/run-1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var got model.Run
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, "contract.pdf", got.Document)
	assert.Equal(t, model.RunStatusComplete, got.Status)

	rr = serve(t, h, http.MethodGet, "/v1/runs/missing", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = serve(t, h, http.MethodGet, "/v1/runs/broken", nil)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)

	st.AssertExpectations(t)
}

func TestBuildRouter_ListRuns(t *testing.T) {
	st := new(mockStore)
	st.On("ListRuns", mock.Anything, store.RunFilter{Status: model.RunStatusFailed, Limit: 5}).
		Return([]model.Run{{ID: "run-2", Status: model.RunStatusFailed}}, nil)
	st.On("ListRuns", mock.Anything, store.RunFilter{}).Return(nil, nil)
	h := buildRouter(testDeps(st))

	rr := serve(t, h, http.MethodGet, "/v1/runs?status=failed&limit=5", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var runs []model.Run
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "run-2", runs[0].ID)

	rr = serve(t, h, http.MethodGet, "/v1/runs", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())

	st.AssertExpectations(t)
}

func TestBuildRouter_ListRunsBadLimit(t *testing.T) {
	st := new(mockStore)
	h := buildRouter(testDeps(st))

	rr := serve(t, h, http.MethodGet, "/v1/runs?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = serve(t, h, http.MethodGet, "/v1/runs?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	st.AssertNotCalled(t, "ListRuns", mock.Anything, mock.Anything)
}

func TestBuildRouter_ListRunsError(t *testing.T) {
	st := new(mockStore)
	st.On("ListRuns", mock.Anything, mock.Anything).Return(nil, errors.New("db down"))
	h := buildRouter(testDeps(st))

	rr := serve(t, h, http.MethodGet, "/v1/runs", nil)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestBuildRouter_NoStore(t *testing.T) {
	h := buildRouter(testDeps(nil))

	assert.Equal(t, http.StatusServiceUnavailable, serve(t, h, http.MethodGet, "/v1/runs", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, serve(t, h, http.MethodGet, "/v1/runs/run-1", nil).Code)
}

func TestBuildRouter_CORSPreflight(t *testing.T) {
	h := buildRouter(testDeps(nil))

	req := httptest.NewRequest(http.MethodOptions, "/v1/netsheet", nil)
	req.Header.Set("Origin", "https://closing.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestBuildRouter_UnknownRoute(t *testing.T) {
	h := buildRouter(testDeps(nil))
	assert.Equal(t, http.StatusNotFound, serve(t, h, http.MethodGet, "/v2/nothing", nil).Code)
}
