/*
handlers.go - HTTP API handlers for the towel workflow tracker

PURPOSE:
  Exposes workflow.Service via REST. Handles HTTP request/response, JSON
  serialization, and delegates everything else to the service.

ENDPOINTS:
  Master data:
    GET    /api/workers                List workers
    POST   /api/workers                Add worker
    DELETE /api/workers/{id}           Remove worker
    GET    /api/places                 List delivery places
    POST   /api/places                 Add place
    DELETE /api/places/{id}            Remove place

  Entries (GET takes optional ?date=YYYY-MM-DD):
    GET|POST /api/overlock, DELETE /api/overlock/{id}
    GET|POST /api/tassel,   DELETE /api/tassel/{id}
    GET|POST /api/fold,     DELETE /api/fold/{id}
    GET|POST /api/deliveries, DELETE /api/deliveries/{id}

  Availability (?date=, default today):
    GET    /api/availability/tassel
    GET    /api/availability/fold
    GET    /api/availability/delivery

  Reports:
    GET    /api/reports/workers?from=&to=
    GET    /api/reports/daily?from=&to=
    GET    /api/reports/weeks?today=&n=
    GET    /api/dashboard?date=
    GET    /api/status?date=

  Admin:
    DELETE /api/data                   Clear all data
    GET    /api/scenarios              List demo scenarios
    POST   /api/scenarios/load         Clear, then load a demo scenario

ERROR HANDLING:
  Errors are returned as JSON (ErrorResponse) with:
  - 400: Validation errors, malformed body or query, bad period
  - 404: Unknown worker, place or upstream entry; delete of absent id
  - 409: Duplicate worker or place id
  - 422: Insufficient availability (body carries available/requested)
  - 503: Store failure
  - 500: Anything else

SECURITY NOTE:
  No authentication or authorization. All endpoints are public.
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/warp/towel-workflow/production"
	"github.com/warp/towel-workflow/workflow"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *workflow.Service
	Logger  *zap.Logger
}

// NewHandler creates a new handler over svc. A nil logger logs nothing.
func NewHandler(svc *workflow.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{Service: svc, Logger: logger}
}

// =============================================================================
// WORKER & PLACE HANDLERS
// =============================================================================

// ListWorkers returns all workers.
func (h *Handler) ListWorkers(w http.ResponseWriter, r *http.Request) {
	workers, err := h.Service.Workers(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to list workers", err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(workers, toWorkerDTO))
}

// CreateWorker adds a worker.
func (h *Handler) CreateWorker(w http.ResponseWriter, r *http.Request) {
	var req CreateWorkerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	worker, err := h.Service.AddWorker(r.Context(), production.WorkerRequest{
		ID:    req.ID,
		Name:  req.Name,
		Group: production.WorkerGroup(req.Group),
	})
	if err != nil {
		h.writeDomainError(w, "Failed to add worker", err)
		return
	}
	writeJSON(w, http.StatusCreated, toWorkerDTO(worker))
}

// DeleteWorker removes a worker. Entries referencing it are kept.
func (h *Handler) DeleteWorker(w http.ResponseWriter, r *http.Request) {
	h.writeDeleted(w, "Failed to remove worker")(h.Service.RemoveWorker(r.Context(), chi.URLParam(r, "id")))
}

// ListPlaces returns all delivery places.
func (h *Handler) ListPlaces(w http.ResponseWriter, r *http.Request) {
	places, err := h.Service.Places(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to list places", err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(places, toPlaceDTO))
}

// CreatePlace adds a delivery place.
func (h *Handler) CreatePlace(w http.ResponseWriter, r *http.Request) {
	var req CreatePlaceRequest
	if !decodeBody(w, r, &req) {
		return
	}
	place, err := h.Service.AddPlace(r.Context(), production.PlaceRequest{ID: req.ID, Name: req.Name})
	if err != nil {
		h.writeDomainError(w, "Failed to add place", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPlaceDTO(place))
}

// DeletePlace removes a place. Deliveries keep their snapshotted name.
func (h *Handler) DeletePlace(w http.ResponseWriter, r *http.Request) {
	h.writeDeleted(w, "Failed to remove place")(h.Service.RemovePlace(r.Context(), chi.URLParam(r, "id")))
}

// =============================================================================
// ENTRY HANDLERS
// =============================================================================

// ListOverlock returns overlock entries, filtered by ?date= when given.
func (h *Handler) ListOverlock(w http.ResponseWriter, r *http.Request) {
	date, ok := optionalDate(w, r, "date")
	if !ok {
		return
	}
	entries, err := h.Service.Overlock(r.Context(), date)
	if err != nil {
		h.writeDomainError(w, "Failed to list overlock entries", err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(entries, toOverlockDTO))
}

// CreateOverlock records an overlock entry.
func (h *Handler) CreateOverlock(w http.ResponseWriter, r *http.Request) {
	var req CreateOverlockRequest
	if !decodeBody(w, r, &req) {
		return
	}
	entry, err := h.Service.RecordOverlock(r.Context(), production.OverlockRequest{
		Date:      req.Date,
		WorkerID:  req.WorkerID,
		TowelType: req.TowelType,
		Qty:       req.Qty,
		Rate:      req.Rate,
		NextStep:  production.NextStep(req.NextStep),
	})
	if err != nil {
		h.writeDomainError(w, "Failed to record overlock entry", err)
		return
	}
	writeJSON(w, http.StatusCreated, toOverlockDTO(entry))
}

// ListTassel returns tassel entries, filtered by ?date= when given.
func (h *Handler) ListTassel(w http.ResponseWriter, r *http.Request) {
	date, ok := optionalDate(w, r, "date")
	if !ok {
		return
	}
	entries, err := h.Service.Tassel(r.Context(), date)
	if err != nil {
		h.writeDomainError(w, "Failed to list tassel entries", err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(entries, toTasselDTO))
}

// CreateTassel records a tassel entry against an overlock entry.
func (h *Handler) CreateTassel(w http.ResponseWriter, r *http.Request) {
	var req CreateTasselRequest
	if !decodeBody(w, r, &req) {
		return
	}
	entry, err := h.Service.RecordTassel(r.Context(), production.TasselRequest{
		Date:            req.Date,
		WorkerID:        req.WorkerID,
		OverlockEntryID: req.OverlockEntryID,
		Qty:             req.Qty,
		Rate:            req.Rate,
	})
	if err != nil {
		h.writeDomainError(w, "Failed to record tassel entry", err)
		return
	}
	writeJSON(w, http.StatusCreated, toTasselDTO(entry))
}

// ListFold returns fold entries, filtered by ?date= when given.
func (h *Handler) ListFold(w http.ResponseWriter, r *http.Request) {
	date, ok := optionalDate(w, r, "date")
	if !ok {
		return
	}
	entries, err := h.Service.Fold(r.Context(), date)
	if err != nil {
		h.writeDomainError(w, "Failed to list fold entries", err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(entries, toFoldDTO))
}

// CreateFold records a fold entry against a tassel or overlock entry.
func (h *Handler) CreateFold(w http.ResponseWriter, r *http.Request) {
	var req CreateFoldRequest
	if !decodeBody(w, r, &req) {
		return
	}
	entry, err := h.Service.RecordFold(r.Context(), production.FoldRequest{
		Date:     req.Date,
		WorkerID: req.WorkerID,
		Source:   production.UpstreamRef{Kind: production.SourceKind(req.Source.Kind), ID: req.Source.ID},
		Qty:      req.Qty,
		Rate:     req.Rate,
	})
	if err != nil {
		h.writeDomainError(w, "Failed to record fold entry", err)
		return
	}
	writeJSON(w, http.StatusCreated, toFoldDTO(entry))
}

// ListDeliveries returns deliveries, filtered by ?date= when given.
func (h *Handler) ListDeliveries(w http.ResponseWriter, r *http.Request) {
	date, ok := optionalDate(w, r, "date")
	if !ok {
		return
	}
	entries, err := h.Service.Deliveries(r.Context(), date)
	if err != nil {
		h.writeDomainError(w, "Failed to list deliveries", err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(entries, toDeliveryDTO))
}

// CreateDelivery records a delivery of folded towels to a place.
func (h *Handler) CreateDelivery(w http.ResponseWriter, r *http.Request) {
	var req CreateDeliveryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	entry, err := h.Service.RecordDelivery(r.Context(), production.DeliveryRequest{
		Date:      req.Date,
		TowelType: req.TowelType,
		Qty:       req.Qty,
		PlaceID:   req.PlaceID,
	})
	if err != nil {
		h.writeDomainError(w, "Failed to record delivery", err)
		return
	}
	writeJSON(w, http.StatusCreated, toDeliveryDTO(entry))
}

// DeleteEntry returns the delete handler for one stage's entries.
func (h *Handler) DeleteEntry(stage production.Stage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.writeDeleted(w, "Failed to delete entry")(h.Service.DeleteEntry(r.Context(), stage, chi.URLParam(r, "id")))
	}
}

// ClearAll removes every record.
func (h *Handler) ClearAll(w http.ResponseWriter, r *http.Request) {
	removed, err := h.Service.ClearAll(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to clear data", err)
		return
	}
	writeJSON(w, http.StatusOK, ClearResponse{Removed: removed})
}

// ListScenarios returns the demo scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, workflow.Scenarios())
}

// LoadScenario clears the store and loads a demo scenario anchored on
// the request's date (default today).
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !decodeBody(w, r, &req) {
		return
	}
	anchor := production.Today()
	if req.Date != "" {
		date, err := production.ParseDate(req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
			return
		}
		anchor = date
	}
	if err := h.Service.LoadScenario(r.Context(), req.ScenarioID, anchor); err != nil {
		h.writeDomainError(w, "Failed to load scenario", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// =============================================================================
// AVAILABILITY HANDLERS
// =============================================================================

func (h *Handler) TasselAvailability(w http.ResponseWriter, r *http.Request) {
	date, ok := dateOrToday(w, r)
	if !ok {
		return
	}
	avail, err := h.Service.TasselAvailability(r.Context(), date)
	if err != nil {
		h.writeDomainError(w, "Failed to compute availability", err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(avail))
}

func (h *Handler) FoldAvailability(w http.ResponseWriter, r *http.Request) {
	date, ok := dateOrToday(w, r)
	if !ok {
		return
	}
	avail, err := h.Service.FoldAvailability(r.Context(), date)
	if err != nil {
		h.writeDomainError(w, "Failed to compute availability", err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(avail))
}

func (h *Handler) DeliveryAvailability(w http.ResponseWriter, r *http.Request) {
	date, ok := dateOrToday(w, r)
	if !ok {
		return
	}
	avail, err := h.Service.DeliveryAvailability(r.Context(), date)
	if err != nil {
		h.writeDomainError(w, "Failed to compute availability", err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(avail))
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

// WorkerReport returns the per-worker rollup for [from, to].
func (h *Handler) WorkerReport(w http.ResponseWriter, r *http.Request) {
	period, ok := periodParam(w, r)
	if !ok {
		return
	}
	report, err := h.Service.WorkerReport(r.Context(), period)
	if err != nil {
		h.writeDomainError(w, "Failed to build report", err)
		return
	}
	writeJSON(w, http.StatusOK, toReportDTO(report))
}

// DailyReport returns one rollup per day of [from, to].
func (h *Handler) DailyReport(w http.ResponseWriter, r *http.Request) {
	period, ok := periodParam(w, r)
	if !ok {
		return
	}
	report, err := h.Service.DailyReport(r.Context(), period)
	if err != nil {
		h.writeDomainError(w, "Failed to build report", err)
		return
	}
	writeJSON(w, http.StatusOK, toDailyReportDTO(report))
}

// RecentWeeks lists the last n Monday to Sunday weeks, oldest first.
func (h *Handler) RecentWeeks(w http.ResponseWriter, r *http.Request) {
	today, ok := optionalDate(w, r, "today")
	if !ok {
		return
	}
	if today.IsZero() {
		today = production.Today()
	}
	n := 4
	if raw := r.URL.Query().Get("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 52 {
			writeError(w, http.StatusBadRequest, "n must be an integer between 1 and 52", err)
			return
		}
		n = parsed
	}
	writeJSON(w, http.StatusOK, mapSlice(production.RecentWeeks(today, n), toWeekDTO))
}

// Dashboard returns the single day overview.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	date, ok := dateOrToday(w, r)
	if !ok {
		return
	}
	d, err := h.Service.Dashboard(r.Context(), date)
	if err != nil {
		h.writeDomainError(w, "Failed to build dashboard", err)
		return
	}
	writeJSON(w, http.StatusOK, toDashboardDTO(d))
}

// EntryStatuses returns completion status for the day's upstream entries.
func (h *Handler) EntryStatuses(w http.ResponseWriter, r *http.Request) {
	date, ok := dateOrToday(w, r)
	if !ok {
		return
	}
	statuses, err := h.Service.EntryStatuses(r.Context(), date)
	if err != nil {
		h.writeDomainError(w, "Failed to build status", err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(statuses, toEntryStatusDTO))
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps err onto a status code and body.
func (h *Handler) writeDomainError(w http.ResponseWriter, message string, err error) {
	resp := ErrorResponse{Error: message, Details: err.Error()}
	status := http.StatusInternalServerError

	var (
		validation   *production.ValidationError
		insufficient *production.InsufficientAvailabilityError
	)
	switch {
	case errors.As(err, &insufficient):
		status = http.StatusUnprocessableEntity
		resp.Available = &insufficient.Available
		resp.Requested = &insufficient.Requested
	case errors.As(err, &validation):
		status = http.StatusBadRequest
		resp.Field = validation.Field
	case errors.Is(err, production.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, production.ErrDuplicateID):
		status = http.StatusConflict
	case production.IsClientError(err):
		status = http.StatusBadRequest
	case production.IsStoreFailure(err):
		status = http.StatusServiceUnavailable
	}

	if status >= http.StatusInternalServerError {
		h.Logger.Error(message, zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, resp)
}

// writeDeleted answers a remove: 200 when something went, 404 otherwise.
func (h *Handler) writeDeleted(w http.ResponseWriter, message string) func(bool, error) {
	return func(removed bool, err error) {
		if err != nil {
			h.writeDomainError(w, message, err)
			return
		}
		if !removed {
			writeJSON(w, http.StatusNotFound, DeleteResponse{Deleted: false})
			return
		}
		writeJSON(w, http.StatusOK, DeleteResponse{Deleted: true})
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

// optionalDate reads a YYYY-MM-DD query parameter. Absent gives the zero Date.
func optionalDate(w http.ResponseWriter, r *http.Request, key string) (production.Date, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return "", true
	}
	date, err := production.ParseDate(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid "+key+" format (use YYYY-MM-DD)", err)
		return "", false
	}
	return date, true
}

func dateOrToday(w http.ResponseWriter, r *http.Request) (production.Date, bool) {
	date, ok := optionalDate(w, r, "date")
	if ok && date.IsZero() {
		date = production.Today()
	}
	return date, ok
}

// periodParam reads ?from=&to=, or ?month= naming any day of a calendar
// month.
func periodParam(w http.ResponseWriter, r *http.Request) (production.Period, bool) {
	month, ok := optionalDate(w, r, "month")
	if !ok {
		return production.Period{}, false
	}
	if !month.IsZero() {
		return production.MonthRange(month), true
	}
	from, ok := optionalDate(w, r, "from")
	if !ok {
		return production.Period{}, false
	}
	to, ok := optionalDate(w, r, "to")
	if !ok {
		return production.Period{}, false
	}
	if from.IsZero() || to.IsZero() {
		writeError(w, http.StatusBadRequest, "from and to, or month, are required (YYYY-MM-DD)", nil)
		return production.Period{}, false
	}
	period, err := production.NewPeriod(from, to)
	if err != nil {
		writeError(w, http.StatusBadRequest, "to must not be before from", err)
		return production.Period{}, false
	}
	return period, true
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
