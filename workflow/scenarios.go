/*
scenarios.go - Demo scenario loaders

PURPOSE:
  Populates the store with realistic data for demos and manual testing.
  Every entry goes through the normal Record* path, so a scenario that
  loads is also a scenario the validator accepts.

AVAILABLE SCENARIOS:
  single-day:      one towel type through all four stages on one day
  direct-to-fold:  overlock routed straight to fold, plus a tassel batch
  busy-week:       Monday to Saturday of the current week, three towel
                   types, two places; feeds the weekly report

HOW SCENARIOS WORK:
  1. Clear all data
  2. Add workers and places
  3. Record entries stage by stage, dated relative to the anchor day

NOTE:
  Scenarios clear the store. Only use in development/demo environments.
*/
package workflow

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/towel-workflow/production"
)

// Scenario describes a loadable demo data set.
type Scenario struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type scenarioLoader func(ctx context.Context, s *Service, anchor production.Date) error

var scenarios = []struct {
	Scenario
	load scenarioLoader
}{
	{Scenario{"single-day", "Single Day", "One towel type through overlock, tassel, fold and delivery"}, loadSingleDay},
	{Scenario{"direct-to-fold", "Direct to Fold", "Overlock routed straight to fold next to a tassel batch"}, loadDirectToFold},
	{Scenario{"busy-week", "Busy Week", "Six working days, three towel types, two delivery places"}, loadBusyWeek},
}

// Scenarios lists the available demo scenarios.
func Scenarios() []Scenario {
	out := make([]Scenario, len(scenarios))
	for i, sc := range scenarios {
		out[i] = sc.Scenario
	}
	return out
}

// LoadScenario clears the store and loads scenario id anchored on anchor.
func (s *Service) LoadScenario(ctx context.Context, id string, anchor production.Date) error {
	for _, sc := range scenarios {
		if sc.ID != id {
			continue
		}
		if _, err := s.ClearAll(ctx); err != nil {
			return err
		}
		if err := sc.load(ctx, s, anchor); err != nil {
			return fmt.Errorf("scenario %s: %w", id, err)
		}
		return nil
	}
	return &production.NotFoundError{Collection: "scenarios", ID: id}
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// seed collects the first error so loaders read as a script.
type seed struct {
	ctx context.Context
	s   *Service
	err error
}

func (sd *seed) worker(id, name string, group production.WorkerGroup) {
	if sd.err == nil {
		_, sd.err = sd.s.AddWorker(sd.ctx, production.WorkerRequest{ID: id, Name: name, Group: group})
	}
}

func (sd *seed) place(id, name string) {
	if sd.err == nil {
		_, sd.err = sd.s.AddPlace(sd.ctx, production.PlaceRequest{ID: id, Name: name})
	}
}

func (sd *seed) overlock(date production.Date, worker, towel string, qty int, rate string, next production.NextStep) string {
	if sd.err != nil {
		return ""
	}
	e, err := sd.s.RecordOverlock(sd.ctx, production.OverlockRequest{
		Date: date.String(), WorkerID: worker, TowelType: towel, Qty: qty,
		Rate: decimal.RequireFromString(rate), NextStep: next,
	})
	sd.err = err
	return e.ID
}

func (sd *seed) tassel(date production.Date, worker, overlockID string, qty int, rate string) string {
	if sd.err != nil {
		return ""
	}
	e, err := sd.s.RecordTassel(sd.ctx, production.TasselRequest{
		Date: date.String(), WorkerID: worker, OverlockEntryID: overlockID, Qty: qty,
		Rate: decimal.RequireFromString(rate),
	})
	sd.err = err
	return e.ID
}

func (sd *seed) fold(date production.Date, worker string, src production.UpstreamRef, qty int, rate string) {
	if sd.err != nil {
		return
	}
	_, sd.err = sd.s.RecordFold(sd.ctx, production.FoldRequest{
		Date: date.String(), WorkerID: worker, Source: src, Qty: qty,
		Rate: decimal.RequireFromString(rate),
	})
}

func (sd *seed) deliver(date production.Date, towel string, qty int, place string) {
	if sd.err != nil {
		return
	}
	_, sd.err = sd.s.RecordDelivery(sd.ctx, production.DeliveryRequest{
		Date: date.String(), TowelType: towel, Qty: qty, PlaceID: place,
	})
}

func tasselRef(id string) production.UpstreamRef {
	return production.UpstreamRef{Kind: production.SourceTassel, ID: id}
}

func overlockRef(id string) production.UpstreamRef {
	return production.UpstreamRef{Kind: production.SourceOverlock, ID: id}
}

func (sd *seed) team() {
	sd.worker("w-overlock-1", "Asha", production.GroupOverlock)
	sd.worker("w-overlock-2", "Devi", production.GroupOverlock)
	sd.worker("w-tassel-1", "Bina", production.GroupTassel)
	sd.worker("w-fold-1", "Chitra", production.GroupFold)
	sd.place("p-market", "Market Stall")
	sd.place("p-shop", "Town Shop")
}

func loadSingleDay(ctx context.Context, s *Service, day production.Date) error {
	sd := &seed{ctx: ctx, s: s}
	sd.team()

	o := sd.overlock(day, "w-overlock-1", "Bath", 20, "3.00", production.NextTassel)
	t := sd.tassel(day, "w-tassel-1", o, 15, "1.50")
	sd.fold(day, "w-fold-1", tasselRef(t), 12, "0.75")
	sd.deliver(day, "Bath", 10, "p-market")
	return sd.err
}

func loadDirectToFold(ctx context.Context, s *Service, day production.Date) error {
	sd := &seed{ctx: ctx, s: s}
	sd.team()

	hand := sd.overlock(day, "w-overlock-1", "Hand", 30, "1.25", production.NextFold)
	bath := sd.overlock(day, "w-overlock-2", "Bath", 12, "3.00", production.NextTassel)
	t := sd.tassel(day, "w-tassel-1", bath, 12, "1.50")
	sd.fold(day, "w-fold-1", tasselRef(t), 12, "0.75")
	sd.fold(day, "w-fold-1", overlockRef(hand), 25, "0.50")
	sd.deliver(day, "Hand", 20, "p-shop")
	sd.deliver(day, "Bath", 6, "p-market")
	return sd.err
}

func loadBusyWeek(ctx context.Context, s *Service, anchor production.Date) error {
	sd := &seed{ctx: ctx, s: s}
	sd.team()

	monday := production.WeekOf(anchor).Start
	towels := []string{"Bath", "Hand", "Face"}
	for i := 0; i < 6; i++ {
		day := monday.AddDays(i)
		towel := towels[i%len(towels)]
		qty := 10 + 2*i

		o := sd.overlock(day, "w-overlock-1", towel, qty, "2.00", production.NextTassel)
		t := sd.tassel(day, "w-tassel-1", o, qty-2, "1.00")
		sd.fold(day, "w-fold-1", tasselRef(t), qty-4, "0.50")

		direct := sd.overlock(day, "w-overlock-2", "Hand", 8, "1.25", production.NextFold)
		sd.fold(day, "w-fold-1", overlockRef(direct), 8, "0.50")

		sd.deliver(day, towel, qty-6, "p-market")
		sd.deliver(day, "Hand", 4, "p-shop")
	}
	return sd.err
}
