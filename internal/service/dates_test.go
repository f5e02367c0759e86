package service_test

import (
	"testing"
	"time"

	"github.com/boddenberg/expense-assistant-go/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newResolver() *service.DateResolver {
	return service.NewDateResolver(time.UTC, fixedClock, zap.NewNop())
}

func TestResolveSymbolic_Periods(t *testing.T) {
	r := newResolver()
	day := func(m time.Month, d int) time.Time { return time.Date(2026, m, d, 0, 0, 0, 0, time.UTC) }

	tests := []struct {
		period     string
		start, end time.Time
	}{
		{"today", day(10, 18), day(10, 19)},
		{"yesterday", day(10, 17), day(10, 18)},
		{"this_month", day(10, 1), day(11, 1)},
		{"last_month", day(9, 1), day(10, 1)},
		{"last_week", day(10, 11), day(10, 18)},
	}

	for _, tt := range tests {
		t.Run(tt.period, func(t *testing.T) {
			got := r.ResolveSymbolic(tt.period)
			require.False(t, got.IsZero())
			assert.True(t, got.Start.Before(got.End), "start must precede end")
			assert.Equal(t, tt.start, got.Start)
			assert.Equal(t, tt.end, got.End)
		})
	}
}

func TestResolveSymbolic_DayPeriodsAre24h(t *testing.T) {
	r := newResolver()
	for _, p := range []string{"today", "yesterday"} {
		rng := r.ResolveSymbolic(p)
		assert.Equal(t, 24*time.Hour, rng.End.Sub(rng.Start), p)
	}
}

func TestResolveSymbolic_AcceptsSpacingVariants(t *testing.T) {
	r := newResolver()
	assert.Equal(t, r.ResolveSymbolic("this_month"), r.ResolveSymbolic("This Month"))
	assert.Equal(t, r.ResolveSymbolic("last_week"), r.ResolveSymbolic("last-week"))
}

func TestResolveSymbolic_UnknownIsUnfiltered(t *testing.T) {
	r := newResolver()
	for _, p := range []string{"", "fortnight", "next_month"} {
		assert.True(t, r.ResolveSymbolic(p).IsZero(), p)
	}
}

func TestResolveSymbolic_MonthBoundaryAcrossYear(t *testing.T) {
	jan := func() time.Time { return time.Date(2026, 1, 3, 9, 0, 0, 0, time.UTC) }
	r := service.NewDateResolver(time.UTC, jan, zap.NewNop())

	rng := r.ResolveSymbolic("last_month")
	assert.Equal(t, time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC), rng.Start)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), rng.End)
}

func TestResolveFreeform(t *testing.T) {
	r := newResolver()

	assert.Equal(t, fixedNow, r.ResolveFreeform(""))
	assert.Equal(t, fixedNow, r.ResolveFreeform(" Today "))
	assert.Equal(t, fixedNow.AddDate(0, 0, -1), r.ResolveFreeform("YESTERDAY"))
	assert.Equal(t, time.Date(2025, 2, 4, 0, 0, 0, 0, time.UTC), r.ResolveFreeform("2025-02-04"))
	assert.Equal(t, time.Date(2025, 2, 4, 0, 0, 0, 0, time.UTC), r.ResolveFreeform("Feb 4, 2025"))
}

func TestResolveFreeform_SlashedDatesAreDayFirst(t *testing.T) {
	r := newResolver()
	assert.Equal(t, time.Date(2025, 2, 4, 0, 0, 0, 0, time.UTC), r.ResolveFreeform("04/02/2025"))
	assert.Equal(t, time.Date(2025, 2, 13, 0, 0, 0, 0, time.UTC), r.ResolveFreeform("13/02/2025"))
}

func TestResolveFreeform_GarbageFallsBackToNow(t *testing.T) {
	r := newResolver()
	assert.Equal(t, fixedNow, r.ResolveFreeform("the day my cat sneezed"))
}

func TestDayWindow(t *testing.T) {
	r := newResolver()
	w := r.DayWindow(time.Date(2025, 2, 4, 23, 59, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2025, 2, 4, 0, 0, 0, 0, time.UTC), w.Start)
	assert.Equal(t, time.Date(2025, 2, 5, 0, 0, 0, 0, time.UTC), w.End)
	assert.True(t, w.Contains(time.Date(2025, 2, 4, 12, 0, 0, 0, time.UTC)))
	assert.False(t, w.Contains(w.End))
}
