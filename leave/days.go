package leave

import "github.com/shopspring/decimal"

// halfDay is the only fractional day amount the engine accepts.
var halfDay = decimal.New(5, -1)

// LeaveDays computes the day count for a leave span.
//
// The count is inclusive: 2025-01-10 to 2025-01-12 is 3 days. A half-day
// request yields exactly 0.5 and is valid only when the span is a single
// day.
func LeaveDays(start, end Date, isHalfDay bool) (decimal.Decimal, error) {
	if start.IsZero() || end.IsZero() {
		return decimal.Zero, Validationf("start and end dates are required")
	}
	if end.Before(start) {
		return decimal.Zero, Validationf("end date %s is before start date %s", end, start)
	}
	if isHalfDay {
		if !start.Equal(end) {
			return decimal.Zero, Validationf("half-day leave must span a single day")
		}
		return halfDay, nil
	}
	return decimal.NewFromInt(int64(DaysBetween(start, end) + 1)), nil
}
