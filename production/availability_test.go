/*
availability_test.go - Remaining quantity per stage

TESTS:
  - Tassel remaining never goes below zero and the next unit is refused
  - Availability is scoped to the entry date
  - Consumption dated another day never reduces a day's availability
  - Direct-to-fold overlock appears for fold, not for tassel
  - Delivery remaining is folded minus delivered per towel type
*/
package production_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/towel-workflow/production"
)

func TestTasselAvailability_ConsumesUpToProduced(t *testing.T) {
	f := newFixture(t)

	// GIVEN: 10 Bath towels overlocked for tassel
	o := f.overlock("2024-01-01", "W1", "Bath", 10, "5.00", production.NextTassel)

	avail := f.snapshot().TasselAvailability("2024-01-01")
	require.Len(t, avail, 1)
	assert.Equal(t, 10, avail[0].Remaining)
	assert.Equal(t, "Asha", avail[0].WorkerName)
	assert.Equal(t, production.SourceOverlock, avail[0].Source)

	// WHEN: all 10 are tasselled
	_, err := f.tassel("2024-01-01", "W2", o.ID, 10, "1.00")
	require.NoError(t, err)

	// THEN: nothing is offered and one more unit is refused
	assert.Empty(t, f.snapshot().TasselAvailability("2024-01-01"))

	_, err = f.tassel("2024-01-01", "W2", o.ID, 1, "1.00")
	var insufficient *production.InsufficientAvailabilityError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 0, insufficient.Available)
	assert.Equal(t, 1, insufficient.Requested)
	assert.Equal(t, production.StageTassel, insufficient.Stage)
}

func TestTasselAvailability_SumNeverExceedsProduced(t *testing.T) {
	f := newFixture(t)
	o := f.overlock("2024-01-01", "W1", "Bath", 7, "5.00", production.NextTassel)

	accepted := 0
	for _, qty := range []int{3, 3, 3, 1, 1} {
		if _, err := f.tassel("2024-01-01", "W2", o.ID, qty, "1.00"); err == nil {
			accepted += qty
		} else {
			assert.ErrorIs(t, err, production.ErrInsufficientAvailability)
		}
	}

	// 3 + 3 + 1, the third batch of 3 and the last unit are refused
	assert.Equal(t, 7, accepted)
	assert.Equal(t, 0, f.snapshot().RemainingFor(production.StageTassel, "2024-01-01", overlockSrc(o.ID)))
}

func TestAvailability_ScopedToDate(t *testing.T) {
	f := newFixture(t)
	o := f.overlock("2024-01-01", "W1", "Bath", 10, "5.00", production.NextTassel)

	// THEN: the next day sees nothing
	snap := f.snapshot()
	assert.Empty(t, snap.TasselAvailability("2024-01-02"))
	assert.Len(t, snap.TasselAvailability("2024-01-01"), 1)

	// AND: tasselling it on another day is refused with zero available
	_, err := f.tassel("2024-01-02", "W2", o.ID, 1, "1.00")
	var insufficient *production.InsufficientAvailabilityError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 0, insufficient.Available)
}

func TestAvailability_IgnoresConsumptionFromOtherDays(t *testing.T) {
	f := newFixture(t)

	// GIVEN: production on 2024-01-01
	bath := f.overlock("2024-01-01", "W1", "Bath", 10, "5.00", production.NextTassel)
	hand := f.overlock("2024-01-01", "W1", "Hand", 6, "2.00", production.NextFold)
	_, err := f.fold("2024-01-01", "W2", overlockSrc(hand.ID), 4, "0.50")
	require.NoError(t, err)

	// AND: consumption of those entries written under 2024-01-02, bypassing
	// the validator
	require.NoError(t, f.store.Seed(f.ctx,
		production.TasselEntry{ID: "t-late", Date: "2024-01-02", WorkerID: "W2", TowelType: "Bath",
			Qty: 7, Rate: rate("1.00"), OverlockEntryID: bath.ID},
		production.FoldEntry{ID: "f-late", Date: "2024-01-02", WorkerID: "W2", TowelType: "Hand",
			Qty: 2, Rate: rate("0.50"), OverlockEntryID: hand.ID},
		production.DeliveryEntry{ID: "d-late", Date: "2024-01-02", TowelType: "Hand",
			Qty: 3, PlaceID: "P1", PlaceName: "Shop A"},
	))

	snap := f.snapshot()

	// THEN: 2024-01-01 only counts its own consumption
	tassel := snap.TasselAvailability("2024-01-01")
	require.Len(t, tassel, 1)
	assert.Equal(t, 10, tassel[0].Remaining)

	fold := snap.FoldAvailability("2024-01-01")
	require.Len(t, fold, 1)
	assert.Equal(t, overlockSrc(hand.ID), fold[0].Ref())
	assert.Equal(t, 2, fold[0].Remaining)

	delivery := snap.DeliveryAvailability("2024-01-01")
	require.Len(t, delivery, 1)
	assert.Equal(t, production.TowelAvailability{TowelType: "Hand", Folded: 4, Delivered: 0, Remaining: 4}, delivery[0])

	assert.Equal(t, 10, snap.RemainingFor(production.StageTassel, "2024-01-01", overlockSrc(bath.ID)))
	assert.Equal(t, 4, snap.DeliverableRemaining("2024-01-01", "Hand"))
}

func TestFoldAvailability_DirectOverlock(t *testing.T) {
	f := newFixture(t)

	// GIVEN: 5 towels routed straight to fold
	o := f.overlock("2024-01-01", "W1", "Hand", 5, "2.00", production.NextFold)

	snap := f.snapshot()
	assert.Empty(t, snap.TasselAvailability("2024-01-01"))
	fold := snap.FoldAvailability("2024-01-01")
	require.Len(t, fold, 1)
	assert.Equal(t, 5, fold[0].Remaining)
	assert.Equal(t, overlockSrc(o.ID), fold[0].Ref())

	// WHEN: all 5 are folded
	_, err := f.fold("2024-01-01", "W2", overlockSrc(o.ID), 5, "0.50")
	require.NoError(t, err)

	// THEN: nothing remains for fold
	assert.Empty(t, f.snapshot().FoldAvailability("2024-01-01"))
}

func TestFoldAvailability_TasselBeforeOverlock(t *testing.T) {
	f := newFixture(t)
	direct := f.overlock("2024-01-01", "W1", "Hand", 4, "2.00", production.NextFold)
	o := f.overlock("2024-01-01", "W1", "Bath", 6, "2.00", production.NextTassel)
	ta, err := f.tassel("2024-01-01", "W2", o.ID, 6, "1.00")
	require.NoError(t, err)

	fold := f.snapshot().FoldAvailability("2024-01-01")
	require.Len(t, fold, 2)
	assert.Equal(t, tasselSrc(ta.ID), fold[0].Ref())
	assert.Equal(t, "Bath", fold[0].TowelType)
	assert.Equal(t, overlockSrc(direct.ID), fold[1].Ref())
}

func TestDeliveryAvailability(t *testing.T) {
	f := newFixture(t)

	// GIVEN: 8 Bath towels folded on the day
	o := f.overlock("2024-01-01", "W1", "Bath", 8, "2.00", production.NextFold)
	_, err := f.fold("2024-01-01", "W2", overlockSrc(o.ID), 8, "0.50")
	require.NoError(t, err)

	// WHEN: 9 are requested for delivery
	_, err = f.deliver("2024-01-01", "Bath", 9, "P1")

	// THEN: refused, 8 available
	var insufficient *production.InsufficientAvailabilityError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 8, insufficient.Available)
	assert.Equal(t, 9, insufficient.Requested)

	// WHEN: 3 are delivered
	d, err := f.deliver("2024-01-01", "Bath", 3, "P1")
	require.NoError(t, err)
	assert.Equal(t, "Shop A", d.PlaceName)

	// THEN: 5 remain and 6 is too many
	avail := f.snapshot().DeliveryAvailability("2024-01-01")
	require.Len(t, avail, 1)
	assert.Equal(t, production.TowelAvailability{TowelType: "Bath", Folded: 8, Delivered: 3, Remaining: 5}, avail[0])

	_, err = f.deliver("2024-01-01", "Bath", 6, "P1")
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 5, insufficient.Available)
}

func TestDeliveryAvailability_OtherTowelTypeOrDay(t *testing.T) {
	f := newFixture(t)
	o := f.overlock("2024-01-01", "W1", "Bath", 4, "2.00", production.NextFold)
	_, err := f.fold("2024-01-01", "W2", overlockSrc(o.ID), 4, "0.50")
	require.NoError(t, err)

	snap := f.snapshot()
	assert.Equal(t, 0, snap.DeliverableRemaining("2024-01-01", "Hand"))
	assert.Equal(t, 0, snap.DeliverableRemaining("2024-01-02", "Bath"))
	assert.Equal(t, 4, snap.DeliverableRemaining("2024-01-01", "Bath"))
}

func TestAvailabilityEngine_ReadsStore(t *testing.T) {
	f := newFixture(t)
	f.overlock("2024-01-01", "W1", "Bath", 3, "2.00", production.NextTassel)

	engine := production.NewAvailabilityEngine(f.store)
	tassel, err := engine.ForTassel(f.ctx, "2024-01-01")
	require.NoError(t, err)
	assert.Len(t, tassel, 1)

	fold, err := engine.ForFold(f.ctx, "2024-01-01")
	require.NoError(t, err)
	assert.Empty(t, fold)

	delivery, err := engine.ForDelivery(f.ctx, "2024-01-01")
	require.NoError(t, err)
	assert.Empty(t, delivery)
}
