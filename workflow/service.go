/*
Package workflow is the application session of the tracker.

PURPOSE:
  One Service owns the Store and exposes every user action: master data,
  the four stage entries, availability, reports. The HTTP handlers and
  the CLI talk to nothing else.

WRITE PATH:
  1. lock the session mutex
  2. validate against a fresh snapshot (production.Validator)
  3. Add to the store
  4. unlock, log, count

  Holding the mutex across 2 and 3 makes check-then-write atomic for one
  process. Separate processes sharing a remote store are not coordinated.

FAILURES:
  A rejected request or a failed store write leaves the store unchanged.
  Rejections log at Warn with the reason, store failures at Error.

DELETES:
  Never cascade. Removing an upstream entry leaves its consumers in place;
  reports name their stitcher "Unknown" from then on.
*/
package workflow

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/warp/towel-workflow/production"
)

// Service runs every tracker action against one store.
type Service struct {
	store     production.Store
	validator *production.Validator
	engine    *production.AvailabilityEngine
	reporter  *production.Reporter
	logger    *zap.Logger
	metrics   *Metrics

	mu sync.Mutex
}

// New wires a Service. A nil logger logs nothing; nil metrics are created
// unregistered.
func New(store production.Store, logger *zap.Logger, metrics *Metrics) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Service{
		store:     store,
		validator: production.NewValidator(store),
		engine:    production.NewAvailabilityEngine(store),
		reporter:  production.NewReporter(store),
		logger:    logger,
		metrics:   metrics,
	}
}

// Validator exposes the validator so callers can pin its clock or id source.
func (s *Service) Validator() *production.Validator { return s.validator }

// commit validates with build and stores the result while holding the
// session lock.
func commit[T production.Record](ctx context.Context, s *Service, kind string, build func(context.Context) (T, error)) (T, error) {
	var zero T

	s.mu.Lock()
	rec, err := build(ctx)
	if err == nil {
		_, err = s.store.Add(ctx, rec)
	}
	s.mu.Unlock()

	if err != nil {
		reason := Reason(err)
		s.metrics.Rejected.WithLabelValues(kind, reason).Inc()
		if reason == "store" || reason == "internal" {
			s.logger.Error("write failed", zap.String("kind", kind), zap.Error(err))
		} else {
			s.logger.Warn("write rejected", zap.String("kind", kind), zap.String("reason", reason), zap.Error(err))
		}
		return zero, err
	}

	s.metrics.Recorded.WithLabelValues(kind).Inc()
	s.logger.Info("record added", zap.String("kind", kind), zap.String("id", rec.RecordID()))
	return rec, nil
}

func (s *Service) remove(ctx context.Context, c production.Collection, id string) (bool, error) {
	s.mu.Lock()
	removed, err := s.store.Remove(ctx, c, id)
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("remove failed", zap.String("collection", string(c)), zap.String("id", id), zap.Error(err))
		return false, err
	}
	if removed {
		s.metrics.Deleted.WithLabelValues(string(c)).Inc()
		s.logger.Info("record removed", zap.String("collection", string(c)), zap.String("id", id))
	}
	return removed, nil
}

// =============================================================================
// MASTER DATA
// =============================================================================

func (s *Service) Workers(ctx context.Context) ([]production.Worker, error) {
	return production.ListWorkers(ctx, s.store)
}

func (s *Service) AddWorker(ctx context.Context, req production.WorkerRequest) (production.Worker, error) {
	return commit(ctx, s, "worker", func(ctx context.Context) (production.Worker, error) {
		return s.validator.BuildWorker(ctx, req)
	})
}

func (s *Service) RemoveWorker(ctx context.Context, id string) (bool, error) {
	return s.remove(ctx, production.CollectionWorkers, id)
}

func (s *Service) Places(ctx context.Context) ([]production.Place, error) {
	return production.ListPlaces(ctx, s.store)
}

func (s *Service) AddPlace(ctx context.Context, req production.PlaceRequest) (production.Place, error) {
	return commit(ctx, s, "place", func(ctx context.Context) (production.Place, error) {
		return s.validator.BuildPlace(ctx, req)
	})
}

func (s *Service) RemovePlace(ctx context.Context, id string) (bool, error) {
	return s.remove(ctx, production.CollectionPlaces, id)
}

// =============================================================================
// STAGE ENTRIES
// =============================================================================

func (s *Service) RecordOverlock(ctx context.Context, req production.OverlockRequest) (production.OverlockEntry, error) {
	entry, err := commit(ctx, s, "overlock", func(ctx context.Context) (production.OverlockEntry, error) {
		return s.validator.BuildOverlock(ctx, req)
	})
	if err == nil {
		s.countQty(production.StageOverlock, entry.Qty)
	}
	return entry, err
}

func (s *Service) RecordTassel(ctx context.Context, req production.TasselRequest) (production.TasselEntry, error) {
	entry, err := commit(ctx, s, "tassel", func(ctx context.Context) (production.TasselEntry, error) {
		return s.validator.BuildTassel(ctx, req)
	})
	if err == nil {
		s.countQty(production.StageTassel, entry.Qty)
	}
	return entry, err
}

func (s *Service) RecordFold(ctx context.Context, req production.FoldRequest) (production.FoldEntry, error) {
	entry, err := commit(ctx, s, "fold", func(ctx context.Context) (production.FoldEntry, error) {
		return s.validator.BuildFold(ctx, req)
	})
	if err == nil {
		s.countQty(production.StageFold, entry.Qty)
	}
	return entry, err
}

func (s *Service) RecordDelivery(ctx context.Context, req production.DeliveryRequest) (production.DeliveryEntry, error) {
	entry, err := commit(ctx, s, "delivery", func(ctx context.Context) (production.DeliveryEntry, error) {
		return s.validator.BuildDelivery(ctx, req)
	})
	if err == nil {
		s.countQty(production.StageDelivery, entry.Qty)
	}
	return entry, err
}

func (s *Service) countQty(stage production.Stage, qty int) {
	s.metrics.Quantity.WithLabelValues(string(stage)).Add(float64(qty))
}

// DeleteEntry removes one entry of stage. Downstream entries stay.
func (s *Service) DeleteEntry(ctx context.Context, stage production.Stage, id string) (bool, error) {
	c, ok := stage.Collection()
	if !ok {
		return false, fmt.Errorf("%w: %q", production.ErrUnknownStage, stage)
	}
	return s.remove(ctx, c, id)
}

// Overlock lists overlock entries, only those of date when date is set.
func (s *Service) Overlock(ctx context.Context, date production.Date) ([]production.OverlockEntry, error) {
	entries, err := production.ListOverlock(ctx, s.store)
	return onDate(entries, err, date, func(e production.OverlockEntry) production.Date { return e.Date })
}

func (s *Service) Tassel(ctx context.Context, date production.Date) ([]production.TasselEntry, error) {
	entries, err := production.ListTassel(ctx, s.store)
	return onDate(entries, err, date, func(e production.TasselEntry) production.Date { return e.Date })
}

func (s *Service) Fold(ctx context.Context, date production.Date) ([]production.FoldEntry, error) {
	entries, err := production.ListFold(ctx, s.store)
	return onDate(entries, err, date, func(e production.FoldEntry) production.Date { return e.Date })
}

func (s *Service) Deliveries(ctx context.Context, date production.Date) ([]production.DeliveryEntry, error) {
	entries, err := production.ListDeliveries(ctx, s.store)
	return onDate(entries, err, date, func(e production.DeliveryEntry) production.Date { return e.Date })
}

func onDate[T any](entries []T, err error, date production.Date, dateOf func(T) production.Date) ([]T, error) {
	if err != nil || date.IsZero() {
		return entries, err
	}
	out := make([]T, 0, len(entries))
	for _, e := range entries {
		if dateOf(e) == date {
			out = append(out, e)
		}
	}
	return out, nil
}

// ClearAll removes every record of every collection and returns how many
// were removed. Consumers go before the entries they reference.
func (s *Service) ClearAll(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for i := len(production.Collections) - 1; i >= 0; i-- {
		c := production.Collections[i]
		records, err := s.store.List(ctx, c)
		if err != nil {
			s.logger.Error("clear failed", zap.String("collection", string(c)), zap.Error(err))
			return removed, err
		}
		for _, rec := range records {
			ok, err := s.store.Remove(ctx, c, rec.RecordID())
			if err != nil {
				s.logger.Error("clear failed", zap.String("collection", string(c)), zap.Error(err))
				return removed, err
			}
			if ok {
				removed++
				s.metrics.Deleted.WithLabelValues(string(c)).Inc()
			}
		}
	}
	s.logger.Warn("all data cleared", zap.Int("removed", removed))
	return removed, nil
}

// =============================================================================
// AVAILABILITY
// =============================================================================

func (s *Service) TasselAvailability(ctx context.Context, date production.Date) ([]production.Available, error) {
	return s.engine.ForTassel(ctx, date)
}

func (s *Service) FoldAvailability(ctx context.Context, date production.Date) ([]production.Available, error) {
	return s.engine.ForFold(ctx, date)
}

func (s *Service) DeliveryAvailability(ctx context.Context, date production.Date) ([]production.TowelAvailability, error) {
	return s.engine.ForDelivery(ctx, date)
}

// =============================================================================
// REPORTS
// =============================================================================

func (s *Service) WorkerReport(ctx context.Context, p production.Period) (production.Report, error) {
	return s.reporter.WorkerReport(ctx, p)
}

func (s *Service) DailyReport(ctx context.Context, p production.Period) (production.DailyReport, error) {
	return s.reporter.DailyReport(ctx, p)
}

func (s *Service) Dashboard(ctx context.Context, date production.Date) (production.Dashboard, error) {
	return s.reporter.Dashboard(ctx, date)
}

func (s *Service) EntryStatuses(ctx context.Context, date production.Date) ([]production.EntryStatus, error) {
	return s.reporter.EntryStatuses(ctx, date)
}
