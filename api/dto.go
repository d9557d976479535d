/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the domain model in production/ from the wire contract consumed by the
  presentation layer.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Small wrappers (errors, delete results)

MONEY:
  Rates and amounts go out as strings with two fraction digits ("12.50").
  Requests accept rate as a JSON number or a numeric string.

FOLD SOURCE:
  A fold names its upstream as {"kind": "tassel"|"overlock", "id": "..."}.

VALIDATION:
  Done by production.Validator, not here. DTOs are pure data carriers.
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/towel-workflow/production"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

type CreateWorkerRequest struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Group string `json:"group,omitempty"`
}

type CreatePlaceRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type CreateOverlockRequest struct {
	Date      string          `json:"date"`
	WorkerID  string          `json:"workerId"`
	TowelType string          `json:"towelType"`
	Qty       int             `json:"qty"`
	Rate      decimal.Decimal `json:"rate"`
	NextStep  string          `json:"nextStep"`
}

type CreateTasselRequest struct {
	Date            string          `json:"date"`
	WorkerID        string          `json:"workerId"`
	OverlockEntryID string          `json:"overlockEntryId"`
	Qty             int             `json:"qty"`
	Rate            decimal.Decimal `json:"rate"`
}

type SourceDTO struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

type CreateFoldRequest struct {
	Date     string          `json:"date"`
	WorkerID string          `json:"workerId"`
	Source   SourceDTO       `json:"source"`
	Qty      int             `json:"qty"`
	Rate     decimal.Decimal `json:"rate"`
}

type CreateDeliveryRequest struct {
	Date      string `json:"date"`
	TowelType string `json:"towelType"`
	Qty       int    `json:"qty"`
	PlaceID   string `json:"placeId"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenarioId"`
	Date       string `json:"date,omitempty"`
}

// =============================================================================
// RESPONSE TYPES - master data and entries
// =============================================================================

type WorkerDTO struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Group  string `json:"group,omitempty"`
	Active bool   `json:"active"`
}

type PlaceDTO struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

type OverlockDTO struct {
	ID        string `json:"id"`
	Date      string `json:"date"`
	WorkerID  string `json:"workerId"`
	TowelType string `json:"towelType"`
	Qty       int    `json:"qty"`
	Rate      string `json:"rate"`
	Amount    string `json:"amount"`
	NextStep  string `json:"nextStep"`
	CreatedAt string `json:"createdAt,omitempty"`
}

type TasselDTO struct {
	ID              string `json:"id"`
	Date            string `json:"date"`
	WorkerID        string `json:"workerId"`
	OverlockEntryID string `json:"overlockEntryId"`
	TowelType       string `json:"towelType"`
	Qty             int    `json:"qty"`
	Rate            string `json:"rate"`
	Amount          string `json:"amount"`
	CreatedAt       string `json:"createdAt,omitempty"`
}

type FoldDTO struct {
	ID        string    `json:"id"`
	Date      string    `json:"date"`
	WorkerID  string    `json:"workerId"`
	Source    SourceDTO `json:"source"`
	TowelType string    `json:"towelType"`
	Qty       int       `json:"qty"`
	Rate      string    `json:"rate"`
	Amount    string    `json:"amount"`
	CreatedAt string    `json:"createdAt,omitempty"`
}

type DeliveryDTO struct {
	ID        string `json:"id"`
	Date      string `json:"date"`
	TowelType string `json:"towelType"`
	Qty       int    `json:"qty"`
	PlaceID   string `json:"placeId"`
	PlaceName string `json:"placeName"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// =============================================================================
// RESPONSE TYPES - reports
// =============================================================================

type LineItemDTO struct {
	Stage     string `json:"stage"`
	EntryID   string `json:"entryId"`
	Date      string `json:"date"`
	TowelType string `json:"towelType"`
	Qty       int    `json:"qty"`
	Rate      string `json:"rate"`
	Amount    string `json:"amount"`
	NextStep  string `json:"nextStep,omitempty"`
	Stitcher  string `json:"stitcher,omitempty"`
}

type TowelSubtotalDTO struct {
	TowelType string        `json:"towelType"`
	Lines     []LineItemDTO `json:"lines"`
	Qty       int           `json:"qty"`
	Subtotal  string        `json:"subtotal"`
}

type WorkerSummaryDTO struct {
	WorkerID   string             `json:"workerId"`
	WorkerName string             `json:"workerName"`
	TowelTypes []TowelSubtotalDTO `json:"towelTypes"`
	Qty        int                `json:"qty"`
	Total      string             `json:"total"`
}

type ReportDTO struct {
	From       string                     `json:"from"`
	To         string                     `json:"to"`
	Workers    []WorkerSummaryDTO         `json:"workers"`
	Deliveries []production.DeliveryGroup `json:"deliveries"`
	GrandTotal string                     `json:"grandTotal"`
	Empty      bool                       `json:"empty"`
}

type DayReportDTO struct {
	Date       string                     `json:"date"`
	Workers    []WorkerSummaryDTO         `json:"workers"`
	Deliveries []production.DeliveryGroup `json:"deliveries"`
	Total      string                     `json:"total"`
	Empty      bool                       `json:"empty"`
}

type DailyReportDTO struct {
	From       string         `json:"from"`
	To         string         `json:"to"`
	Days       []DayReportDTO `json:"days"`
	GrandTotal string         `json:"grandTotal"`
	Empty      bool           `json:"empty"`
}

type WeekDTO struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Label string `json:"label"`
}

type DashboardDTO struct {
	Date             string `json:"date"`
	TotalWorkers     int    `json:"totalWorkers"`
	OverlockWorkers  int    `json:"overlockWorkers"`
	TasselWorkers    int    `json:"tasselWorkers"`
	FoldWorkers      int    `json:"foldWorkers"`
	Completed        int    `json:"completed"`
	PendingFold      int    `json:"pendingFold"`
	OverlockEarnings string `json:"overlockEarnings"`
	TasselEarnings   string `json:"tasselEarnings"`
	FoldEarnings     string `json:"foldEarnings"`
	TotalEarnings    string `json:"totalEarnings"`
}

type EntryStatusDTO struct {
	Stage      string `json:"stage"`
	EntryID    string `json:"entryId"`
	WorkerName string `json:"workerName"`
	TowelType  string `json:"towelType"`
	Qty        int    `json:"qty"`
	Rate       string `json:"rate"`
	Amount     string `json:"amount"`
	NextStep   string `json:"nextStep,omitempty"`
	Consumed   int    `json:"consumed"`
	Status     string `json:"status"`
}

// =============================================================================
// RESPONSE TYPES - misc
// =============================================================================

// ErrorResponse is the body of every non-2xx answer. Available and Requested
// are set for insufficient availability.
type ErrorResponse struct {
	Error     string `json:"error"`
	Details   string `json:"details,omitempty"`
	Field     string `json:"field,omitempty"`
	Available *int   `json:"available,omitempty"`
	Requested *int   `json:"requested,omitempty"`
}

type DeleteResponse struct {
	Deleted bool `json:"deleted"`
}

type ClearResponse struct {
	Removed int `json:"removed"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func money(d decimal.Decimal) string { return production.FormatMoney(d) }

func stamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func toWorkerDTO(w production.Worker) WorkerDTO {
	return WorkerDTO{ID: w.ID, Name: w.Name, Group: string(w.Group), Active: w.Active}
}

func toPlaceDTO(p production.Place) PlaceDTO {
	return PlaceDTO{ID: p.ID, Name: p.Name, Active: p.Active}
}

func toOverlockDTO(e production.OverlockEntry) OverlockDTO {
	return OverlockDTO{
		ID: e.ID, Date: e.Date.String(), WorkerID: e.WorkerID, TowelType: e.TowelType,
		Qty: e.Qty, Rate: money(e.Rate), Amount: money(e.Amount()),
		NextStep: string(e.NextStep), CreatedAt: stamp(e.CreatedAt),
	}
}

func toTasselDTO(e production.TasselEntry) TasselDTO {
	return TasselDTO{
		ID: e.ID, Date: e.Date.String(), WorkerID: e.WorkerID, OverlockEntryID: e.OverlockEntryID,
		TowelType: e.TowelType, Qty: e.Qty, Rate: money(e.Rate), Amount: money(e.Amount()),
		CreatedAt: stamp(e.CreatedAt),
	}
}

func toFoldDTO(e production.FoldEntry) FoldDTO {
	src := e.Source()
	return FoldDTO{
		ID: e.ID, Date: e.Date.String(), WorkerID: e.WorkerID,
		Source:    SourceDTO{Kind: string(src.Kind), ID: src.ID},
		TowelType: e.TowelType, Qty: e.Qty, Rate: money(e.Rate), Amount: money(e.Amount()),
		CreatedAt: stamp(e.CreatedAt),
	}
}

func toDeliveryDTO(e production.DeliveryEntry) DeliveryDTO {
	return DeliveryDTO{
		ID: e.ID, Date: e.Date.String(), TowelType: e.TowelType, Qty: e.Qty,
		PlaceID: e.PlaceID, PlaceName: e.PlaceName, CreatedAt: stamp(e.CreatedAt),
	}
}

func mapSlice[T, D any](items []T, conv func(T) D) []D {
	out := make([]D, len(items))
	for i, item := range items {
		out[i] = conv(item)
	}
	return out
}

func toWorkerSummaryDTOs(workers []production.WorkerSummary) []WorkerSummaryDTO {
	out := make([]WorkerSummaryDTO, len(workers))
	for i, w := range workers {
		dto := WorkerSummaryDTO{
			WorkerID:   w.WorkerID,
			WorkerName: w.WorkerName,
			TowelTypes: make([]TowelSubtotalDTO, len(w.TowelTypes)),
			Qty:        w.Qty,
			Total:      money(w.Total),
		}
		for j, sub := range w.TowelTypes {
			dto.TowelTypes[j] = TowelSubtotalDTO{
				TowelType: sub.TowelType,
				Lines:     mapSlice(sub.Lines, toLineItemDTO),
				Qty:       sub.Qty,
				Subtotal:  money(sub.Amount),
			}
		}
		out[i] = dto
	}
	return out
}

func toLineItemDTO(l production.LineItem) LineItemDTO {
	return LineItemDTO{
		Stage: string(l.Stage), EntryID: l.EntryID, Date: l.Date.String(), TowelType: l.TowelType,
		Qty: l.Qty, Rate: money(l.Rate), Amount: money(l.Amount),
		NextStep: string(l.NextStep), Stitcher: l.Stitcher,
	}
}

func deliveriesOrEmpty(groups []production.DeliveryGroup) []production.DeliveryGroup {
	if groups == nil {
		return []production.DeliveryGroup{}
	}
	return groups
}

func toReportDTO(r production.Report) ReportDTO {
	return ReportDTO{
		From:       r.Period.Start.String(),
		To:         r.Period.End.String(),
		Workers:    toWorkerSummaryDTOs(r.Workers),
		Deliveries: deliveriesOrEmpty(r.Deliveries),
		GrandTotal: money(r.GrandTotal),
		Empty:      r.Empty,
	}
}

func toDailyReportDTO(r production.DailyReport) DailyReportDTO {
	out := DailyReportDTO{
		From:       r.Period.Start.String(),
		To:         r.Period.End.String(),
		Days:       make([]DayReportDTO, len(r.Days)),
		GrandTotal: money(r.GrandTotal),
		Empty:      r.Empty,
	}
	for i, d := range r.Days {
		out.Days[i] = DayReportDTO{
			Date:       d.Date.String(),
			Workers:    toWorkerSummaryDTOs(d.Workers),
			Deliveries: deliveriesOrEmpty(d.Deliveries),
			Total:      money(d.Total),
			Empty:      d.Empty,
		}
	}
	return out
}

func toWeekDTO(p production.Period) WeekDTO {
	return WeekDTO{
		Start: p.Start.String(),
		End:   p.End.String(),
		Label: p.Start.Time().Format("Jan 2") + " - " + p.End.Time().Format("Jan 2"),
	}
}

func toDashboardDTO(d production.Dashboard) DashboardDTO {
	return DashboardDTO{
		Date:             d.Date.String(),
		TotalWorkers:     d.TotalWorkers,
		OverlockWorkers:  d.OverlockWorkers,
		TasselWorkers:    d.TasselWorkers,
		FoldWorkers:      d.FoldWorkers,
		Completed:        d.Completed,
		PendingFold:      d.PendingFold,
		OverlockEarnings: money(d.OverlockEarnings),
		TasselEarnings:   money(d.TasselEarnings),
		FoldEarnings:     money(d.FoldEarnings),
		TotalEarnings:    money(d.TotalEarnings),
	}
}

func toEntryStatusDTO(s production.EntryStatus) EntryStatusDTO {
	return EntryStatusDTO{
		Stage: string(s.Stage), EntryID: s.EntryID, WorkerName: s.WorkerName, TowelType: s.TowelType,
		Qty: s.Qty, Rate: money(s.Rate), Amount: money(s.Amount), NextStep: string(s.NextStep),
		Consumed: s.Consumed, Status: s.Status,
	}
}
