package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/towel-workflow/production"
	"github.com/warp/towel-workflow/production/store"
)

const day = production.Date("2024-03-04")

func newService(t *testing.T) (*Service, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	svc := New(mem, nil, nil)
	_, err := svc.AddWorker(context.Background(), production.WorkerRequest{ID: "w1", Name: "Asha", Group: production.GroupOverlock})
	require.NoError(t, err)
	_, err = svc.AddWorker(context.Background(), production.WorkerRequest{ID: "w2", Name: "Bina", Group: production.GroupTassel})
	require.NoError(t, err)
	_, err = svc.AddPlace(context.Background(), production.PlaceRequest{ID: "p1", Name: "Shop A"})
	require.NoError(t, err)
	return svc, mem
}

func overlock(t *testing.T, svc *Service, qty int, next production.NextStep) production.OverlockEntry {
	t.Helper()
	e, err := svc.RecordOverlock(context.Background(), production.OverlockRequest{
		Date: day.String(), WorkerID: "w1", TowelType: "Bath", Qty: qty,
		Rate: decimal.RequireFromString("2.50"), NextStep: next,
	})
	require.NoError(t, err)
	return e
}

func TestService_FullPipeline(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	// GIVEN: 10 overlocked towels routed to tassel
	o := overlock(t, svc, 10, production.NextTassel)

	// WHEN: 6 are tasselled, then 6 folded, then 4 delivered
	ta, err := svc.RecordTassel(ctx, production.TasselRequest{
		Date: day.String(), WorkerID: "w2", OverlockEntryID: o.ID, Qty: 6, Rate: decimal.NewFromInt(1),
	})
	require.NoError(t, err)
	assert.Equal(t, "Bath", ta.TowelType)

	_, err = svc.RecordFold(ctx, production.FoldRequest{
		Date: day.String(), WorkerID: "w2", Source: production.UpstreamRef{Kind: production.SourceTassel, ID: ta.ID},
		Qty: 6, Rate: decimal.RequireFromString("0.5"),
	})
	require.NoError(t, err)

	stamp := time.Date(2024, 3, 4, 17, 0, 0, 0, time.UTC)
	svc.Validator().Now = func() time.Time { return stamp }
	d, err := svc.RecordDelivery(ctx, production.DeliveryRequest{Date: day.String(), TowelType: "Bath", Qty: 4, PlaceID: "p1"})
	require.NoError(t, err)
	assert.Equal(t, "Shop A", d.PlaceName)
	assert.Equal(t, stamp, d.CreatedAt)

	// THEN: availability reflects each consumption
	tassel, err := svc.TasselAvailability(ctx, day)
	require.NoError(t, err)
	require.Len(t, tassel, 1)
	assert.Equal(t, 4, tassel[0].Remaining)

	fold, err := svc.FoldAvailability(ctx, day)
	require.NoError(t, err)
	assert.Empty(t, fold)

	delivery, err := svc.DeliveryAvailability(ctx, day)
	require.NoError(t, err)
	require.Len(t, delivery, 1)
	assert.Equal(t, 2, delivery[0].Remaining)

	report, err := svc.WorkerReport(ctx, production.Period{Start: day, End: day})
	require.NoError(t, err)
	// 10*2.50 + 6*1 + 6*0.5
	assert.Equal(t, "34.00", production.FormatMoney(report.GrandTotal))

	assert.Equal(t, float64(10), testutil.ToFloat64(svc.metrics.Quantity.WithLabelValues("Overlock")))
	assert.Equal(t, float64(1), testutil.ToFloat64(svc.metrics.Recorded.WithLabelValues("delivery")))
}

func TestService_RejectionLeavesStoreUnchanged(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	o := overlock(t, svc, 5, production.NextTassel)

	// WHEN: asking for more than is left
	_, err := svc.RecordTassel(ctx, production.TasselRequest{
		Date: day.String(), WorkerID: "w2", OverlockEntryID: o.ID, Qty: 6, Rate: decimal.NewFromInt(1),
	})

	// THEN: the request is refused with the numbers
	var insufficient *production.InsufficientAvailabilityError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 5, insufficient.Available)
	assert.Equal(t, 6, insufficient.Requested)

	entries, err := svc.Tassel(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Equal(t, float64(1), testutil.ToFloat64(svc.metrics.Rejected.WithLabelValues("tassel", "insufficient")))
}

func TestService_ConcurrentWritesNeverOverConsume(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	o := overlock(t, svc, 5, production.NextTassel)

	// WHEN: 12 writers race for one towel each
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.RecordTassel(ctx, production.TasselRequest{
				Date: day.String(), WorkerID: "w2", OverlockEntryID: o.ID, Qty: 1, Rate: decimal.NewFromInt(1),
			})
			if err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// THEN: exactly the produced quantity was accepted
	assert.Equal(t, 5, accepted)
	avail, err := svc.TasselAvailability(ctx, day)
	require.NoError(t, err)
	assert.Empty(t, avail)
}

type failingStore struct {
	production.Store
}

func (failingStore) Add(context.Context, production.Record) (string, error) {
	return "", production.NewStoreError("add", "", errors.New("disk full"))
}

func TestService_StoreFailure(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	require.NoError(t, mem.Seed(ctx, production.Worker{ID: "w1", Name: "Asha", Active: true}))
	svc := New(failingStore{Store: mem}, nil, nil)

	_, err := svc.RecordOverlock(ctx, production.OverlockRequest{
		Date: day.String(), WorkerID: "w1", TowelType: "Bath", Qty: 3,
		Rate: decimal.NewFromInt(1), NextStep: production.NextFold,
	})

	assert.True(t, production.IsStoreFailure(err))
	entries, err := svc.Overlock(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Equal(t, float64(1), testutil.ToFloat64(svc.metrics.Rejected.WithLabelValues("overlock", "store")))
}

func TestService_DeleteDoesNotCascade(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	o := overlock(t, svc, 5, production.NextFold)
	_, err := svc.RecordFold(ctx, production.FoldRequest{
		Date: day.String(), WorkerID: "w2", Source: production.UpstreamRef{Kind: production.SourceOverlock, ID: o.ID},
		Qty: 2, Rate: decimal.NewFromInt(1),
	})
	require.NoError(t, err)

	removed, err := svc.DeleteEntry(ctx, production.StageOverlock, o.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	folds, err := svc.Fold(ctx, day)
	require.NoError(t, err)
	assert.Len(t, folds, 1)

	report, err := svc.WorkerReport(ctx, production.Period{Start: day, End: day})
	require.NoError(t, err)
	require.Len(t, report.Workers, 1)
	assert.Equal(t, production.UnknownWorker, report.Workers[0].TowelTypes[0].Lines[0].Stitcher)

	// Deleting again is a no-op
	removed, err = svc.DeleteEntry(ctx, production.StageOverlock, o.ID)
	require.NoError(t, err)
	assert.False(t, removed)

	_, err = svc.DeleteEntry(ctx, production.Stage("Iron"), o.ID)
	assert.ErrorIs(t, err, production.ErrUnknownStage)
}

func TestService_ListFiltersByDate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	overlock(t, svc, 5, production.NextFold)
	_, err := svc.RecordOverlock(ctx, production.OverlockRequest{
		Date: day.AddDays(1).String(), WorkerID: "w1", TowelType: "Hand", Qty: 2,
		Rate: decimal.NewFromInt(1), NextStep: production.NextFold,
	})
	require.NoError(t, err)

	all, err := svc.Overlock(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	today, err := svc.Overlock(ctx, day)
	require.NoError(t, err)
	require.Len(t, today, 1)
	assert.Equal(t, "Bath", today[0].TowelType)
}

func TestService_ClearAll(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	overlock(t, svc, 5, production.NextFold)

	removed, err := svc.ClearAll(ctx)
	require.NoError(t, err)
	// two workers, one place, one overlock entry
	assert.Equal(t, 4, removed)

	workers, err := svc.Workers(ctx)
	require.NoError(t, err)
	assert.Empty(t, workers)
}

func TestService_DuplicateWorker(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.AddWorker(context.Background(), production.WorkerRequest{ID: "w1", Name: "Other"})
	assert.ErrorIs(t, err, production.ErrDuplicateID)

	removed, err := svc.RemoveWorker(context.Background(), "w1")
	require.NoError(t, err)
	assert.True(t, removed)

	_, err = svc.AddWorker(context.Background(), production.WorkerRequest{ID: "w1", Name: "Other"})
	assert.NoError(t, err)
}

func TestReason(t *testing.T) {
	assert.Equal(t, "", Reason(nil))
	assert.Equal(t, "validation", Reason(&production.ValidationError{Field: "qty"}))
	assert.Equal(t, "not_found", Reason(&production.NotFoundError{}))
	assert.Equal(t, "duplicate", Reason(&production.DuplicateIDError{}))
	assert.Equal(t, "insufficient", Reason(&production.InsufficientAvailabilityError{}))
	assert.Equal(t, "store", Reason(&production.StoreError{Err: errors.New("x")}))
	assert.Equal(t, "internal", Reason(errors.New("boom")))
}
