package production_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/warp/towel-workflow/production"
	"github.com/warp/towel-workflow/production/store"
)

// =============================================================================
// TEST INFRASTRUCTURE
// =============================================================================

var fixedNow = time.Date(2024, time.January, 1, 9, 30, 0, 0, time.UTC)

type fixture struct {
	t     *testing.T
	ctx   context.Context
	store *store.Memory
	v     *production.Validator
	seq   int
}

// newFixture returns a memory store holding workers W1, W2 and place P1.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{t: t, ctx: context.Background(), store: store.NewMemory()}
	f.v = production.NewValidator(f.store)
	f.v.Now = func() time.Time { return fixedNow }
	f.v.NewID = func() string {
		f.seq++
		return fmt.Sprintf("id-%d", f.seq)
	}
	require.NoError(t, f.store.Seed(f.ctx,
		production.Worker{ID: "W1", Name: "Asha", Group: production.GroupOverlock, Active: true},
		production.Worker{ID: "W2", Name: "Bina", Group: production.GroupTassel, Active: true},
		production.Place{ID: "P1", Name: "Shop A", Active: true},
	))
	return f
}

func rate(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func (f *fixture) snapshot() *production.Snapshot {
	f.t.Helper()
	snap, err := production.LoadSnapshot(f.ctx, f.store)
	require.NoError(f.t, err)
	return snap
}

func (f *fixture) overlock(date, worker, towel string, qty int, r string, next production.NextStep) production.OverlockEntry {
	f.t.Helper()
	e, err := f.v.BuildOverlock(f.ctx, production.OverlockRequest{
		Date: date, WorkerID: worker, TowelType: towel, Qty: qty, Rate: rate(r), NextStep: next,
	})
	require.NoError(f.t, err)
	f.add(e)
	return e
}

func (f *fixture) tassel(date, worker, overlockID string, qty int, r string) (production.TasselEntry, error) {
	f.t.Helper()
	e, err := f.v.BuildTassel(f.ctx, production.TasselRequest{
		Date: date, WorkerID: worker, OverlockEntryID: overlockID, Qty: qty, Rate: rate(r),
	})
	if err == nil {
		f.add(e)
	}
	return e, err
}

func (f *fixture) fold(date, worker string, src production.UpstreamRef, qty int, r string) (production.FoldEntry, error) {
	f.t.Helper()
	e, err := f.v.BuildFold(f.ctx, production.FoldRequest{
		Date: date, WorkerID: worker, Source: src, Qty: qty, Rate: rate(r),
	})
	if err == nil {
		f.add(e)
	}
	return e, err
}

func (f *fixture) deliver(date, towel string, qty int, place string) (production.DeliveryEntry, error) {
	f.t.Helper()
	e, err := f.v.BuildDelivery(f.ctx, production.DeliveryRequest{
		Date: date, TowelType: towel, Qty: qty, PlaceID: place,
	})
	if err == nil {
		f.add(e)
	}
	return e, err
}

func (f *fixture) add(rec production.Record) {
	f.t.Helper()
	_, err := f.store.Add(f.ctx, rec)
	require.NoError(f.t, err)
}

func tasselSrc(id string) production.UpstreamRef {
	return production.UpstreamRef{Kind: production.SourceTassel, ID: id}
}

func overlockSrc(id string) production.UpstreamRef {
	return production.UpstreamRef{Kind: production.SourceOverlock, ID: id}
}
