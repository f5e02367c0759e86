package service

import (
	"strings"
	"time"

	"github.com/boddenberg/expense-assistant-go/internal/domain"

	"github.com/araddon/dateparse"
	"go.uber.org/zap"
)

// Symbolic periods understood by ResolveSymbolic.
const (
	PeriodToday     = "today"
	PeriodYesterday = "yesterday"
	PeriodThisMonth = "this_month"
	PeriodLastMonth = "last_month"
	PeriodLastWeek  = "last_week"
)

// DateResolver turns period tokens and free-form date strings into concrete
// instants and intervals, anchored to the moment of each call.
type DateResolver struct {
	loc    *time.Location
	now    func() time.Time
	logger *zap.Logger
}

// NewDateResolver creates a resolver for the given location. A nil clock
// means time.Now; a nil location means time.Local.
func NewDateResolver(loc *time.Location, now func() time.Time, logger *zap.Logger) *DateResolver {
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	return &DateResolver{loc: loc, now: now, logger: logger}
}

// Now returns the current instant in the resolver's location.
func (r *DateResolver) Now() time.Time {
	return r.now().In(r.loc)
}

// ResolveSymbolic maps a period token onto a half-open interval.
// Unrecognized tokens return the zero range, which callers treat as unfiltered.
//
// last_week ends at today's midnight, so it covers yesterday as well as the six
// days before it.
func (r *DateResolver) ResolveSymbolic(period string) domain.DateRange {
	now := r.Now()
	today := midnight(now)
	firstOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, r.loc)

	switch normalizePeriod(period) {
	case PeriodToday:
		return domain.DateRange{Start: today, End: today.AddDate(0, 0, 1)}
	case PeriodYesterday:
		return domain.DateRange{Start: today.AddDate(0, 0, -1), End: today}
	case PeriodThisMonth:
		return domain.DateRange{Start: firstOfMonth, End: firstOfMonth.AddDate(0, 1, 0)}
	case PeriodLastMonth:
		return domain.DateRange{Start: firstOfMonth.AddDate(0, -1, 0), End: firstOfMonth}
	case PeriodLastWeek:
		return domain.DateRange{Start: today.AddDate(0, 0, -7), End: today}
	default:
		return domain.DateRange{}
	}
}

// ResolveFreeform accepts "today", "yesterday" or a date in any format
// dateparse understands. Slashed dates are read day first (04/02/2025 is
// 4 February). It never fails: unparseable input logs a warning
// and resolves to now.
func (r *DateResolver) ResolveFreeform(s string) time.Time {
	now := r.Now()
	trimmed := strings.TrimSpace(s)

	switch strings.ToLower(trimmed) {
	case "", "now", PeriodToday:
		return now
	case PeriodYesterday:
		return now.AddDate(0, 0, -1)
	}

	t, err := dateparse.ParseIn(trimmed, r.loc, dateparse.PreferMonthFirst(false))
	if err != nil {
		r.logger.Warn("unparseable date, falling back to now",
			zap.String("date", trimmed),
			zap.Error(err),
		)
		return now
	}
	return t.In(r.loc)
}

// DayWindow returns the calendar day containing t.
func (r *DateResolver) DayWindow(t time.Time) domain.DateRange {
	start := midnight(t.In(r.loc))
	return domain.DateRange{Start: start, End: start.AddDate(0, 0, 1)}
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func normalizePeriod(p string) string {
	p = strings.ToLower(strings.TrimSpace(p))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(p)
}
