package domain

import (
	"fmt"
	"time"

	apperrors "github.com/utafrali/posledger/pkg/errors"
)

// DayLayout is the format of a calendar day, e.g. "2024-03-09".
const DayLayout = "2006-01-02"

// SaleDay returns the calendar day a sale belongs to: its creation instant
// converted to loc and truncated to year-month-day.
//
// Two rules decide which sales belong to a day and they must agree:
//
//   - Remote: GET /api/v1/sales/by-date?date=D is expected to return the sales
//     whose created_at falls on D in the store's local time zone. The backend
//     does not document this; TestLoadForDate_RemoteAndLocalRulesAgree in the
//     service package checks it against the local rule on the same data.
//   - Local: the fallback keeps sales with SaleDay(CreatedAt, loc) == D, as a
//     plain string comparison. Timestamps are never normalized to UTC first,
//     so a sale at 00:30 local time stays on its local day.
func SaleDay(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(DayLayout)
}

// ParseDay validates a YYYY-MM-DD day string and returns it unchanged.
func ParseDay(day string) (string, error) {
	t, err := time.Parse(DayLayout, day)
	if err != nil || t.Format(DayLayout) != day {
		return "", apperrors.InvalidInput(fmt.Sprintf("date %q must be in YYYY-MM-DD format", day))
	}
	return day, nil
}

// FilterByDay returns the sales whose SaleDay in loc equals day, keeping
// their order.
func FilterByDay(sales []Sale, day string, loc *time.Location) []Sale {
	out := make([]Sale, 0)
	for _, s := range sales {
		if SaleDay(s.CreatedAt, loc) == day {
			out = append(out, s)
		}
	}
	return out
}
