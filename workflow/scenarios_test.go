/*
scenarios_test.go - Demo scenario loaders

TESTS:
  - Every scenario loads through the validator without error
  - Loading replaces whatever was there before
  - busy-week fills six days of the anchor's week
*/
package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/towel-workflow/production"
)

func TestScenario_AllScenariosLoadWithoutError(t *testing.T) {
	for _, sc := range Scenarios() {
		t.Run(sc.ID, func(t *testing.T) {
			svc, _ := newService(t)

			require.NoError(t, svc.LoadScenario(context.Background(), sc.ID, day))

			workers, err := svc.Workers(context.Background())
			require.NoError(t, err)
			assert.Len(t, workers, 4, "previous workers are cleared")
		})
	}
}

func TestScenario_SingleDay(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	require.NoError(t, svc.LoadScenario(ctx, "single-day", day))

	// 20 overlocked, 15 tasselled, 12 folded, 10 delivered
	tassel, err := svc.TasselAvailability(ctx, day)
	require.NoError(t, err)
	require.Len(t, tassel, 1)
	assert.Equal(t, 5, tassel[0].Remaining)

	fold, err := svc.FoldAvailability(ctx, day)
	require.NoError(t, err)
	require.Len(t, fold, 1)
	assert.Equal(t, 3, fold[0].Remaining)

	delivery, err := svc.DeliveryAvailability(ctx, day)
	require.NoError(t, err)
	require.Len(t, delivery, 1)
	assert.Equal(t, 2, delivery[0].Remaining)
}

func TestScenario_BusyWeek(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	require.NoError(t, svc.LoadScenario(ctx, "busy-week", day))

	week := production.WeekOf(day)
	daily, err := svc.DailyReport(ctx, week)
	require.NoError(t, err)

	require.Len(t, daily.Days, 7)
	for _, d := range daily.Days[:6] {
		assert.False(t, d.Empty, d.Date)
	}
	assert.True(t, daily.Days[6].Empty, "nothing on Sunday")

	report, err := svc.WorkerReport(ctx, week)
	require.NoError(t, err)
	assert.True(t, report.GrandTotal.Equal(daily.GrandTotal))
}

func TestScenario_Unknown(t *testing.T) {
	svc, _ := newService(t)

	err := svc.LoadScenario(context.Background(), "nope", day)

	assert.True(t, production.IsNotFound(err))
	workers, _ := svc.Workers(context.Background())
	assert.Len(t, workers, 2, "unknown scenario leaves data alone")
}
