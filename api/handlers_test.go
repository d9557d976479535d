/*
handlers_test.go - HTTP tests for the API handlers

Tests for:
- Master data create/list/delete and error statuses
- Stage entry flow with availability and 422 rejections
- Reports, weeks, dashboard, status
- Demo scenarios and clear all
- Daily report range limits, static frontend fallback
*/
package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/towel-workflow/production/store"
	"github.com/warp/towel-workflow/workflow"
)

const day = "2024-03-04"

func setupRouter(t *testing.T) http.Handler {
	t.Helper()
	svc := workflow.New(store.NewMemory(), nil, nil)
	registry := prometheus.NewRegistry()
	return NewRouter(NewHandler(svc, nil), Options{
		Gatherer: registry,
		Metrics:  NewHTTPMetrics(registry),
	})
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func seedMasterData(t *testing.T, h http.Handler) {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/api/workers", CreateWorkerRequest{ID: "w1", Name: "Asha", Group: "Overlock"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = do(t, h, http.MethodPost, "/api/workers", CreateWorkerRequest{ID: "w2", Name: "Bina"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = do(t, h, http.MethodPost, "/api/places", CreatePlaceRequest{ID: "p1", Name: "Shop A"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestWorkers_CreateListDelete(t *testing.T) {
	h := setupRouter(t)
	seedMasterData(t, h)

	rec := do(t, h, http.MethodGet, "/api/workers", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	workers := decode[[]WorkerDTO](t, rec)
	require.Len(t, workers, 2)
	assert.Equal(t, "Asha", workers[0].Name)
	assert.True(t, workers[0].Active)

	// Duplicate id
	rec = do(t, h, http.MethodPost, "/api/workers", CreateWorkerRequest{ID: "w1", Name: "Again"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Missing name
	rec = do(t, h, http.MethodPost, "/api/workers", CreateWorkerRequest{ID: "w3"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "name", decode[ErrorResponse](t, rec).Field)

	rec = do(t, h, http.MethodDelete, "/api/workers/w2", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[DeleteResponse](t, rec).Deleted)

	rec = do(t, h, http.MethodDelete, "/api/workers/w2", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, decode[DeleteResponse](t, rec).Deleted)
}

func TestInvalidBody(t *testing.T) {
	h := setupRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/api/places", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEntryFlow(t *testing.T) {
	h := setupRouter(t)
	seedMasterData(t, h)

	// GIVEN: 10 overlocked towels for tassel at 2.5 each
	rec := do(t, h, http.MethodPost, "/api/overlock", map[string]any{
		"date": day, "workerId": "w1", "towelType": "Bath", "qty": 10, "rate": 2.5, "nextStep": "Tassel",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	o := decode[OverlockDTO](t, rec)
	assert.Equal(t, "2.50", o.Rate)
	assert.Equal(t, "25.00", o.Amount)

	// WHEN: tasselling 7
	rec = do(t, h, http.MethodPost, "/api/tassel", map[string]any{
		"date": day, "workerId": "w2", "overlockEntryId": o.ID, "qty": 7, "rate": "1",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	tassel := decode[TasselDTO](t, rec)
	assert.Equal(t, "Bath", tassel.TowelType)

	// THEN: 3 remain for tassel
	rec = do(t, h, http.MethodGet, "/api/availability/tassel?date="+day, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	avail := decode[[]map[string]any](t, rec)
	require.Len(t, avail, 1)
	assert.EqualValues(t, 3, avail[0]["remainingQty"])
	assert.Equal(t, "Asha", avail[0]["producingWorkerName"])

	// AND: asking for 4 more is refused with the numbers
	rec = do(t, h, http.MethodPost, "/api/tassel", map[string]any{
		"date": day, "workerId": "w2", "overlockEntryId": o.ID, "qty": 4, "rate": 1,
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	errResp := decode[ErrorResponse](t, rec)
	require.NotNil(t, errResp.Available)
	require.NotNil(t, errResp.Requested)
	assert.Equal(t, 3, *errResp.Available)
	assert.Equal(t, 4, *errResp.Requested)

	// Fold from the tassel entry, then deliver
	rec = do(t, h, http.MethodPost, "/api/fold", map[string]any{
		"date": day, "workerId": "w2", "source": map[string]string{"kind": "tassel", "id": tassel.ID}, "qty": 7, "rate": 0.5,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	fold := decode[FoldDTO](t, rec)
	assert.Equal(t, SourceDTO{Kind: "tassel", ID: tassel.ID}, fold.Source)

	rec = do(t, h, http.MethodPost, "/api/deliveries", CreateDeliveryRequest{Date: day, TowelType: "Bath", Qty: 5, PlaceID: "p1"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Shop A", decode[DeliveryDTO](t, rec).PlaceName)

	rec = do(t, h, http.MethodGet, "/api/availability/delivery?date="+day, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	deliverable := decode[[]map[string]any](t, rec)
	require.Len(t, deliverable, 1)
	assert.EqualValues(t, 2, deliverable[0]["remainingQty"])

	// Unknown place
	rec = do(t, h, http.MethodPost, "/api/deliveries", CreateDeliveryRequest{Date: day, TowelType: "Bath", Qty: 1, PlaceID: "nope"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// List filtered by date
	rec = do(t, h, http.MethodGet, "/api/fold?date=2024-03-05", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]FoldDTO](t, rec))

	rec = do(t, h, http.MethodGet, "/api/fold?date=03/04/2024", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAvailability_EmptyIsArray(t *testing.T) {
	h := setupRouter(t)
	for _, stage := range []string{"tassel", "fold", "delivery"} {
		rec := do(t, h, http.MethodGet, "/api/availability/"+stage+"?date="+day, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, "[]", rec.Body.String())
	}
}

func TestReports(t *testing.T) {
	h := setupRouter(t)
	seedMasterData(t, h)
	rec := do(t, h, http.MethodPost, "/api/overlock", map[string]any{
		"date": day, "workerId": "w1", "towelType": "Hand", "qty": 4, "rate": "1.25", "nextStep": "Fold",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/reports/workers?from=2024-03-04&to=2024-03-10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	report := decode[ReportDTO](t, rec)
	assert.False(t, report.Empty)
	assert.Equal(t, "5.00", report.GrandTotal)
	require.Len(t, report.Workers, 1)
	assert.Equal(t, "5.00", report.Workers[0].TowelTypes[0].Subtotal)

	rec = do(t, h, http.MethodGet, "/api/reports/daily?from=2024-03-04&to=2024-03-10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	daily := decode[DailyReportDTO](t, rec)
	assert.Len(t, daily.Days, 7)
	assert.Equal(t, "5.00", daily.GrandTotal)
	assert.True(t, daily.Days[1].Empty)

	rec = do(t, h, http.MethodGet, "/api/reports/workers?month=2024-03-20", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	monthly := decode[ReportDTO](t, rec)
	assert.Equal(t, "2024-03-01", monthly.From)
	assert.Equal(t, "2024-03-31", monthly.To)
	assert.Equal(t, "5.00", monthly.GrandTotal)

	rec = do(t, h, http.MethodGet, "/api/reports/workers?from=2024-03-10&to=2024-03-04", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/reports/workers?from=2024-03-04", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/reports/weeks?today=2024-03-06&n=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	weeks := decode[[]WeekDTO](t, rec)
	require.Len(t, weeks, 2)
	assert.Equal(t, "2024-02-26", weeks[0].Start)
	assert.Equal(t, "2024-03-10", weeks[1].End)

	rec = do(t, h, http.MethodGet, "/api/reports/weeks?n=0", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/dashboard?date="+day, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	dash := decode[DashboardDTO](t, rec)
	assert.Equal(t, 2, dash.TotalWorkers)
	assert.Equal(t, 4, dash.PendingFold)
	assert.Equal(t, "5.00", dash.TotalEarnings)

	rec = do(t, h, http.MethodGet, "/api/status?date="+day, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	statuses := decode[[]EntryStatusDTO](t, rec)
	require.Len(t, statuses, 1)
	assert.Equal(t, "Pending Fold", statuses[0].Status)
}

func TestScenariosAndClear(t *testing.T) {
	h := setupRouter(t)

	rec := do(t, h, http.MethodGet, "/api/scenarios", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]workflow.Scenario](t, rec), 3)

	rec = do(t, h, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "single-day", Date: day})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/deliveries?date="+day, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]DeliveryDTO](t, rec), 1)

	rec = do(t, h, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "nope"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodDelete, "/api/data", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Greater(t, decode[ClearResponse](t, rec).Removed, 0)

	rec = do(t, h, http.MethodGet, "/api/workers", nil)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	h := setupRouter(t)
	do(t, h, http.MethodGet, "/api/workers", nil)

	rec := do(t, h, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "towel_http_requests_total")
}

func TestDailyReport_RangeLimits(t *testing.T) {
	h := setupRouter(t)

	// The last day of the calendar still answers
	rec := do(t, h, http.MethodGet, "/api/reports/daily?from=9999-12-31&to=9999-12-31", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	daily := decode[DailyReportDTO](t, rec)
	require.Len(t, daily.Days, 1)
	assert.Equal(t, "9999-12-31", daily.Days[0].Date)

	// A range longer than a year is refused
	rec = do(t, h, http.MethodGet, "/api/reports/daily?from=0001-01-01&to=9998-12-31", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "period", decode[ErrorResponse](t, rec).Field)

	// The worker report is a single rollup and takes any range
	rec = do(t, h, http.MethodGet, "/api/reports/workers?from=0001-01-01&to=9999-12-31", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateWorker_UnknownGroup(t *testing.T) {
	h := setupRouter(t)

	rec := do(t, h, http.MethodPost, "/api/workers", CreateWorkerRequest{ID: "w9", Name: "Devi", Group: "Ironing"})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "group", decode[ErrorResponse](t, rec).Field)
}

func TestStaticFrontend(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>tracker</html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log(1)"), 0o644))

	svc := workflow.New(store.NewMemory(), nil, nil)
	h := NewRouter(NewHandler(svc, nil), Options{StaticDir: dir})

	// Existing files are served as is
	rec := do(t, h, http.MethodGet, "/app.js", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "console.log(1)", rec.Body.String())

	// Client-side routes fall back to index.html
	rec = do(t, h, http.MethodGet, "/reports/week", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tracker")

	// API routes are not shadowed
	rec = do(t, h, http.MethodGet, "/api/workers", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}
