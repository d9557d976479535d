/*
report.go - Earnings and completion rollups

PURPOSE:
  Turns the entries of a date range into the numbers workers are paid on.

WORKER REPORT:
  For [start, end] inclusive, overlock, tassel and fold entries are
  partitioned by worker, then by towel type:

    line     = qty x rate
    subtotal = sum(lines of one towel type for one worker)
    total    = sum(subtotals of one worker)
    grand    = sum(totals)

  Fold lines also name the stitcher: the worker of the overlock or tassel
  entry the fold consumed. Deliveries are not paid; they are grouped by
  (towelType, place) with qty summed, independent of worker.

DAILY REPORT:
  The same rollup per calendar day of the range plus a grand total across
  days. Used for the weekly view.

MONEY:
  decimal.Decimal throughout. FormatMoney renders two fraction digits.

EMPTY RANGES:
  Not an error. Report.Empty is set and the slices are empty.
*/
package production

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// REPORT TYPES
// =============================================================================

type LineItem struct {
	Stage     Stage           `json:"stage"`
	EntryID   string          `json:"entryId"`
	Date      Date            `json:"date"`
	TowelType string          `json:"towelType"`
	Qty       int             `json:"qty"`
	Rate      decimal.Decimal `json:"rate"`
	Amount    decimal.Decimal `json:"amount"`
	NextStep  NextStep        `json:"nextStep,omitempty"`
	Stitcher  string          `json:"stitcher,omitempty"`
}

type TowelSubtotal struct {
	TowelType string          `json:"towelType"`
	Lines     []LineItem      `json:"lines"`
	Qty       int             `json:"qty"`
	Amount    decimal.Decimal `json:"amount"`
}

type WorkerSummary struct {
	WorkerID   string          `json:"workerId"`
	WorkerName string          `json:"workerName"`
	TowelTypes []TowelSubtotal `json:"towelTypes"`
	Qty        int             `json:"qty"`
	Total      decimal.Decimal `json:"total"`
}

type DeliveryGroup struct {
	TowelType string `json:"towelType"`
	PlaceID   string `json:"placeId"`
	PlaceName string `json:"placeName"`
	Qty       int    `json:"qty"`
}

// Report is the per-worker rollup for a period.
type Report struct {
	Period     Period          `json:"period"`
	Workers    []WorkerSummary `json:"workers"`
	Deliveries []DeliveryGroup `json:"deliveries"`
	GrandTotal decimal.Decimal `json:"grandTotal"`
	Empty      bool            `json:"empty"`
}

// DayReport is the rollup of a single day inside a DailyReport.
type DayReport struct {
	Date       Date            `json:"date"`
	Workers    []WorkerSummary `json:"workers"`
	Deliveries []DeliveryGroup `json:"deliveries"`
	Total      decimal.Decimal `json:"total"`
	Empty      bool            `json:"empty"`
}

type DailyReport struct {
	Period     Period          `json:"period"`
	Days       []DayReport     `json:"days"`
	GrandTotal decimal.Decimal `json:"grandTotal"`
	Empty      bool            `json:"empty"`
}

// FormatMoney renders d with two fraction digits.
func FormatMoney(d decimal.Decimal) string { return d.StringFixed(2) }

// =============================================================================
// WORKER REPORT
// =============================================================================

type workerLine struct {
	workerID string
	line     LineItem
}

// WorkerReport rolls up all paid entries and deliveries within p.
func (s *Snapshot) WorkerReport(p Period) Report {
	workers, grand := s.rollup(s.paidLines(p))
	deliveries := s.deliveryGroups(p)
	return Report{
		Period:     p,
		Workers:    workers,
		Deliveries: deliveries,
		GrandTotal: grand,
		Empty:      len(workers) == 0 && len(deliveries) == 0,
	}
}

// DailyReport rolls up each day of p separately. p is not bounded here;
// Reporter.DailyReport applies MaxDailyDays.
func (s *Snapshot) DailyReport(p Period) DailyReport {
	out := DailyReport{Period: p, GrandTotal: decimal.Zero, Empty: true}
	for _, day := range p.Days() {
		single := s.WorkerReport(Period{Start: day, End: day})
		out.Days = append(out.Days, DayReport{
			Date:       day,
			Workers:    single.Workers,
			Deliveries: single.Deliveries,
			Total:      single.GrandTotal,
			Empty:      single.Empty,
		})
		out.GrandTotal = out.GrandTotal.Add(single.GrandTotal)
		if !single.Empty {
			out.Empty = false
		}
	}
	return out
}

func (s *Snapshot) paidLines(p Period) []workerLine {
	var lines []workerLine
	for _, e := range s.Overlock {
		if !p.Contains(e.Date) {
			continue
		}
		lines = append(lines, workerLine{workerID: e.WorkerID, line: LineItem{
			Stage: StageOverlock, EntryID: e.ID, Date: e.Date, TowelType: e.TowelType,
			Qty: e.Qty, Rate: e.Rate, Amount: e.Amount(), NextStep: e.NextStep,
		}})
	}
	for _, e := range s.Tassel {
		if !p.Contains(e.Date) {
			continue
		}
		lines = append(lines, workerLine{workerID: e.WorkerID, line: LineItem{
			Stage: StageTassel, EntryID: e.ID, Date: e.Date, TowelType: e.TowelType,
			Qty: e.Qty, Rate: e.Rate, Amount: e.Amount(),
		}})
	}
	for _, e := range s.Fold {
		if !p.Contains(e.Date) {
			continue
		}
		lines = append(lines, workerLine{workerID: e.WorkerID, line: LineItem{
			Stage: StageFold, EntryID: e.ID, Date: e.Date, TowelType: e.TowelType,
			Qty: e.Qty, Rate: e.Rate, Amount: e.Amount(), Stitcher: s.Stitcher(e),
		}})
	}
	return lines
}

// rollup partitions lines by worker, then towel type. Workers are ordered by
// name then id, towel types alphabetically, lines by date.
func (s *Snapshot) rollup(lines []workerLine) ([]WorkerSummary, decimal.Decimal) {
	byWorker := make(map[string]map[string]*TowelSubtotal)
	for _, wl := range lines {
		towels, ok := byWorker[wl.workerID]
		if !ok {
			towels = make(map[string]*TowelSubtotal)
			byWorker[wl.workerID] = towels
		}
		sub, ok := towels[wl.line.TowelType]
		if !ok {
			sub = &TowelSubtotal{TowelType: wl.line.TowelType, Amount: decimal.Zero}
			towels[wl.line.TowelType] = sub
		}
		sub.Lines = append(sub.Lines, wl.line)
		sub.Qty += wl.line.Qty
		sub.Amount = sub.Amount.Add(wl.line.Amount)
	}

	grand := decimal.Zero
	workers := make([]WorkerSummary, 0, len(byWorker))
	for workerID, towels := range byWorker {
		summary := WorkerSummary{
			WorkerID:   workerID,
			WorkerName: s.WorkerName(workerID),
			Total:      decimal.Zero,
		}
		for _, sub := range towels {
			sort.SliceStable(sub.Lines, func(i, j int) bool {
				return sub.Lines[i].Date.Before(sub.Lines[j].Date)
			})
			summary.TowelTypes = append(summary.TowelTypes, *sub)
			summary.Qty += sub.Qty
			summary.Total = summary.Total.Add(sub.Amount)
		}
		sort.Slice(summary.TowelTypes, func(i, j int) bool {
			return summary.TowelTypes[i].TowelType < summary.TowelTypes[j].TowelType
		})
		workers = append(workers, summary)
		grand = grand.Add(summary.Total)
	}
	sort.Slice(workers, func(i, j int) bool {
		if workers[i].WorkerName != workers[j].WorkerName {
			return workers[i].WorkerName < workers[j].WorkerName
		}
		return workers[i].WorkerID < workers[j].WorkerID
	})
	return workers, grand
}

// Stitcher resolves the worker of the entry a fold consumed.
func (s *Snapshot) Stitcher(f FoldEntry) string {
	if f.TasselEntryID != "" {
		if t, ok := s.TasselEntry(f.TasselEntryID); ok {
			return s.WorkerName(t.WorkerID)
		}
		return UnknownWorker
	}
	if o, ok := s.OverlockEntry(f.OverlockEntryID); ok {
		return s.WorkerName(o.WorkerID)
	}
	return UnknownWorker
}

func (s *Snapshot) deliveryGroups(p Period) []DeliveryGroup {
	type key struct{ towel, place string }
	var (
		order  []key
		groups = make(map[key]*DeliveryGroup)
	)
	for _, d := range s.Deliveries {
		if !p.Contains(d.Date) {
			continue
		}
		k := key{towel: d.TowelType, place: d.PlaceID}
		g, ok := groups[k]
		if !ok {
			g = &DeliveryGroup{TowelType: d.TowelType, PlaceID: d.PlaceID, PlaceName: d.PlaceName}
			groups[k] = g
			order = append(order, k)
		}
		g.Qty += d.Qty
	}
	out := make([]DeliveryGroup, 0, len(order))
	for _, k := range order {
		out = append(out, *groups[k])
	}
	return out
}

// =============================================================================
// DASHBOARD - Single day overview
// =============================================================================

type Dashboard struct {
	Date             Date            `json:"date"`
	TotalWorkers     int             `json:"totalWorkers"`
	OverlockWorkers  int             `json:"overlockWorkers"`
	TasselWorkers    int             `json:"tasselWorkers"`
	FoldWorkers      int             `json:"foldWorkers"`
	Completed        int             `json:"completed"`
	PendingFold      int             `json:"pendingFold"`
	OverlockEarnings decimal.Decimal `json:"overlockEarnings"`
	TasselEarnings   decimal.Decimal `json:"tasselEarnings"`
	FoldEarnings     decimal.Decimal `json:"foldEarnings"`
	TotalEarnings    decimal.Decimal `json:"totalEarnings"`
}

// Dashboard summarizes date. Completed and pending count fold consumption on
// any date, so a tassel batch folded the next morning still shows completed.
func (s *Snapshot) Dashboard(date Date) Dashboard {
	d := Dashboard{
		Date:             date,
		TotalWorkers:     len(s.Workers),
		OverlockEarnings: decimal.Zero,
		TasselEarnings:   decimal.Zero,
		FoldEarnings:     decimal.Zero,
	}
	for _, w := range s.Workers {
		switch w.Group {
		case GroupOverlock:
			d.OverlockWorkers++
		case GroupTassel:
			d.TasselWorkers++
		case GroupFold:
			d.FoldWorkers++
		}
	}

	for _, t := range s.Tassel {
		if t.Date != date {
			continue
		}
		folded := s.foldedEver(UpstreamRef{Kind: SourceTassel, ID: t.ID})
		d.Completed += folded
		d.PendingFold += t.Qty - folded
		d.TasselEarnings = d.TasselEarnings.Add(t.Amount())
	}
	for _, o := range s.Overlock {
		if o.Date != date {
			continue
		}
		if o.NextStep == NextFold {
			folded := s.foldedEver(UpstreamRef{Kind: SourceOverlock, ID: o.ID})
			d.Completed += folded
			d.PendingFold += o.Qty - folded
		}
		d.OverlockEarnings = d.OverlockEarnings.Add(o.Amount())
	}
	for _, f := range s.Fold {
		if f.Date == date {
			d.FoldEarnings = d.FoldEarnings.Add(f.Amount())
		}
	}
	d.TotalEarnings = d.OverlockEarnings.Add(d.TasselEarnings).Add(d.FoldEarnings)
	return d
}

// =============================================================================
// ENTRY STATUS - Completion badges for the day's upstream entries
// =============================================================================

const (
	StatusCompleted     = "Completed"
	StatusPendingTassel = "Pending Tassel"
	StatusPendingFold   = "Pending Fold"
)

type EntryStatus struct {
	Stage      Stage           `json:"stage"`
	EntryID    string          `json:"entryId"`
	WorkerName string          `json:"workerName"`
	TowelType  string          `json:"towelType"`
	Qty        int             `json:"qty"`
	Rate       decimal.Decimal `json:"rate"`
	Amount     decimal.Decimal `json:"amount"`
	NextStep   NextStep        `json:"nextStep,omitempty"`
	Consumed   int             `json:"consumed"`
	Status     string          `json:"status"`
}

// EntryStatuses reports, for every overlock and tassel entry of date, how
// much the next stage has taken on any date and whether it is done.
func (s *Snapshot) EntryStatuses(date Date) []EntryStatus {
	var out []EntryStatus
	for _, o := range s.Overlock {
		if o.Date != date {
			continue
		}
		st := EntryStatus{
			Stage: StageOverlock, EntryID: o.ID, WorkerName: s.WorkerName(o.WorkerID),
			TowelType: o.TowelType, Qty: o.Qty, Rate: o.Rate, Amount: o.Amount(), NextStep: o.NextStep,
		}
		pending := StatusPendingFold
		if o.NextStep == NextTassel {
			st.Consumed = s.tasselledEver(o.ID)
			pending = StatusPendingTassel
		} else {
			st.Consumed = s.foldedEver(UpstreamRef{Kind: SourceOverlock, ID: o.ID})
		}
		st.Status = completion(st.Consumed, o.Qty, pending)
		out = append(out, st)
	}
	for _, t := range s.Tassel {
		if t.Date != date {
			continue
		}
		consumed := s.foldedEver(UpstreamRef{Kind: SourceTassel, ID: t.ID})
		out = append(out, EntryStatus{
			Stage: StageTassel, EntryID: t.ID, WorkerName: s.WorkerName(t.WorkerID),
			TowelType: t.TowelType, Qty: t.Qty, Rate: t.Rate, Amount: t.Amount(),
			Consumed: consumed, Status: completion(consumed, t.Qty, StatusPendingFold),
		})
	}
	return out
}

func completion(consumed, qty int, pending string) string {
	if consumed >= qty {
		return StatusCompleted
	}
	return pending
}

func (s *Snapshot) tasselledEver(overlockID string) int {
	total := 0
	for _, t := range s.Tassel {
		if t.OverlockEntryID == overlockID {
			total += t.Qty
		}
	}
	return total
}

func (s *Snapshot) foldedEver(ref UpstreamRef) int {
	total := 0
	for _, f := range s.Fold {
		if f.Source() == ref {
			total += f.Qty
		}
	}
	return total
}

// =============================================================================
// REPORTER - Store-backed entry point
// =============================================================================

type Reporter struct {
	store Reader
}

func NewReporter(store Reader) *Reporter {
	return &Reporter{store: store}
}

func (r *Reporter) WorkerReport(ctx context.Context, p Period) (Report, error) {
	snap, err := LoadSnapshot(ctx, r.store)
	if err != nil {
		return Report{}, err
	}
	return snap.WorkerReport(p), nil
}

// DailyReport refuses periods longer than MaxDailyDays.
func (r *Reporter) DailyReport(ctx context.Context, p Period) (DailyReport, error) {
	if err := p.CheckDaily(); err != nil {
		return DailyReport{}, err
	}
	snap, err := LoadSnapshot(ctx, r.store)
	if err != nil {
		return DailyReport{}, err
	}
	return snap.DailyReport(p), nil
}

func (r *Reporter) Dashboard(ctx context.Context, date Date) (Dashboard, error) {
	snap, err := LoadSnapshot(ctx, r.store)
	if err != nil {
		return Dashboard{}, err
	}
	return snap.Dashboard(date), nil
}

func (r *Reporter) EntryStatuses(ctx context.Context, date Date) ([]EntryStatus, error) {
	snap, err := LoadSnapshot(ctx, r.store)
	if err != nil {
		return nil, err
	}
	return snap.EntryStatuses(date), nil
}
